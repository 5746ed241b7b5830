package config

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// CredentialChangeCallback is called when the Looker API credentials change,
// so the Looker client can drop its cached token and re-login.
type CredentialChangeCallback func(clientID, clientSecret string)

// Reloader watches the Vault secret mount and reloads config in memory
type Reloader struct {
	config              atomic.Pointer[Config]
	loader              *VaultLoader
	watcher             *fsnotify.Watcher
	stopCh              chan struct{}
	credentialCallbacks []CredentialChangeCallback
}

// NewReloader creates a new config reloader
func NewReloader(initialConfig *Config, loader *VaultLoader) (*Reloader, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	r := &Reloader{
		loader:              loader,
		watcher:             watcher,
		stopCh:              make(chan struct{}),
		credentialCallbacks: make([]CredentialChangeCallback, 0),
	}
	r.config.Store(initialConfig)

	return r, nil
}

// GetConfig returns the current configuration atomically
func (r *Reloader) GetConfig() *Config {
	return r.config.Load()
}

// OnCredentialChange registers a callback invoked when the Looker
// client ID or secret changes on disk
func (r *Reloader) OnCredentialChange(callback CredentialChangeCallback) {
	r.credentialCallbacks = append(r.credentialCallbacks, callback)
}

// Start begins watching for configuration changes
func (r *Reloader) Start(ctx context.Context) error {
	if err := r.watcher.Add(r.loader.secretsDir); err != nil {
		return fmt.Errorf("failed to watch secrets directory: %w", err)
	}

	go r.watchLoop(ctx)
	slog.Info("Config reloader started", "secrets_dir", r.loader.secretsDir)
	return nil
}

// Stop stops watching for configuration changes
func (r *Reloader) Stop() error {
	close(r.stopCh)
	return r.watcher.Close()
}

// watchLoop processes file system events
func (r *Reloader) watchLoop(ctx context.Context) {
	// Debounce rapid file changes (Vault Agent may write multiple times)
	debounceTimer := time.NewTimer(0)
	<-debounceTimer.C // drain initial timer
	needsReload := false

	defer debounceTimer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopCh:
			return
		case event, ok := <-r.watcher.Events:
			if !ok {
				return
			}

			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				slog.Debug("Config file changed", "file", event.Name, "op", event.Op)
				needsReload = true
				debounceTimer.Reset(500 * time.Millisecond)
			}

		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("File watcher error", "error", err)

		case <-debounceTimer.C:
			if needsReload {
				if err := r.reload(); err != nil {
					slog.Error("Failed to reload configuration", "error", err)
				}
				needsReload = false
			}
		}
	}
}

// reload reloads the configuration from vault/environment
func (r *Reloader) reload() error {
	slog.Info("Reloading configuration")

	newConfig, err := Load()
	if err != nil {
		return fmt.Errorf("failed to load new config: %w", err)
	}

	oldConfig := r.config.Swap(newConfig)

	r.logChanges(oldConfig, newConfig)

	slog.Info("Configuration reloaded successfully")
	return nil
}

// logChanges logs what changed between old and new config
func (r *Reloader) logChanges(old, new *Config) {
	if old.Port != new.Port {
		slog.Info("Config changed", "key", "PORT", "old", old.Port, "new", new.Port)
	}
	if old.LookerBaseURL != new.LookerBaseURL {
		slog.Info("Config changed", "key", "LOOKER_BASE_URL", "old", old.LookerBaseURL, "new", new.LookerBaseURL)
	}
	if old.GroupMatchPolicy != new.GroupMatchPolicy {
		slog.Info("Config changed", "key", "GROUP_MATCH_POLICY", "old", old.GroupMatchPolicy, "new", new.GroupMatchPolicy)
	}
	if old.UnknownTokenPolicy != new.UnknownTokenPolicy {
		slog.Info("Config changed", "key", "UNKNOWN_TOKEN_POLICY", "old", old.UnknownTokenPolicy, "new", new.UnknownTokenPolicy)
	}
	if old.AuditDSN != new.AuditDSN {
		slog.Info("Config changed", "key", "AUDIT_DB_DSN")
	}
	if old.LookerClientID != new.LookerClientID || old.LookerClientSecret != new.LookerClientSecret {
		slog.Info("Config changed", "key", "LOOKER_CLIENT_SECRET")
		for _, callback := range r.credentialCallbacks {
			callback(new.LookerClientID, new.LookerClientSecret)
		}
	}
}
