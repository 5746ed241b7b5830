package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	// VaultSecretsDir is where vault-agent renders secret templates by default.
	VaultSecretsDir = "/vault/secrets"
	// DefaultSecretTimeout bounds how long startup waits for a required secret.
	DefaultSecretTimeout = 120 * time.Second
	// SecretPollInterval is how often the loader re-checks for a secret file.
	SecretPollInterval = 2 * time.Second
)

// clock abstracts time so tests can drive the wait loop with a fake.
type clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time                         { return time.Now() }
func (systemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// VaultLoader resolves configuration values from the environment first and a
// vault-agent secret mount second. Required values that have not been
// rendered yet are polled for, since the agent sidecar may still be logging
// in when the service starts.
type VaultLoader struct {
	secretsDir string
	timeout    time.Duration
	clock      clock
}

// NewVaultLoader builds a loader rooted at VAULT_SECRETS_DIR, or the
// conventional /vault/secrets mount when unset.
func NewVaultLoader() *VaultLoader {
	dir := os.Getenv("VAULT_SECRETS_DIR")
	if dir == "" {
		dir = VaultSecretsDir
	}

	return &VaultLoader{
		secretsDir: dir,
		timeout:    DefaultSecretTimeout,
		clock:      systemClock{},
	}
}

// LoadEnv returns the value for key, preferring the process environment over
// the secret mount. When required is true and neither source has the value,
// it waits up to the loader timeout for the secret file to appear.
func (v *VaultLoader) LoadEnv(key string, required bool) (string, error) {
	if value := os.Getenv(key); value != "" {
		slog.Debug("Using environment variable", "key", key)
		return value, nil
	}

	path := filepath.Join(v.secretsDir, key)
	if !required {
		if value, err := v.readSecret(path); err == nil && value != "" {
			slog.Debug("Loaded optional variable from Vault", "key", key)
			return value, nil
		}
		slog.Debug("Optional variable not found", "key", key)
		return "", nil
	}

	slog.Info("Waiting for required variable", "key", key, "timeout", v.timeout)
	return v.awaitSecret(key, path)
}

// readSecret reads one secret file. Vault-agent templates usually end with a
// newline, so the value is trimmed.
func (v *VaultLoader) readSecret(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func (v *VaultLoader) awaitSecret(key, path string) (string, error) {
	deadline := v.clock.Now().Add(v.timeout)

	for {
		value, err := v.readSecret(path)
		if err == nil && value != "" {
			elapsed := v.timeout - time.Until(deadline)
			slog.Info("Loaded required variable from Vault",
				"key", key,
				"elapsed", elapsed.Round(time.Second))
			return value, nil
		}

		if v.clock.Now().After(deadline) {
			return "", fmt.Errorf("timeout waiting for required variable %s after %v", key, v.timeout)
		}

		<-v.clock.After(SecretPollInterval)
	}
}

// MustLoadEnv is LoadEnv for values the process cannot run without.
func (v *VaultLoader) MustLoadEnv(key string) string {
	value, err := v.LoadEnv(key, true)
	if err != nil {
		panic(fmt.Sprintf("failed to load required config %s: %v", key, err))
	}
	return value
}

// LoadEnvWithDefault returns the configured value or defaultValue when absent.
func (v *VaultLoader) LoadEnvWithDefault(key, defaultValue string) string {
	value, err := v.LoadEnv(key, false)
	if err != nil || value == "" {
		return defaultValue
	}
	return value
}
