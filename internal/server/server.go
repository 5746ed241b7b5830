// Package server sets up and manages the main HTTP API server.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/iamcloud/looker-provisioner/internal/audit"
	"github.com/iamcloud/looker-provisioner/internal/auth"
	"github.com/iamcloud/looker-provisioner/internal/config"
	"github.com/iamcloud/looker-provisioner/internal/events"
	"github.com/iamcloud/looker-provisioner/internal/looker"
	"github.com/iamcloud/looker-provisioner/internal/provision"
	"github.com/iamcloud/looker-provisioner/internal/router"
	"github.com/iamcloud/looker-provisioner/internal/service"
	"github.com/iamcloud/looker-provisioner/internal/vault"
)

// Server represents the API server with all its dependencies.
type Server struct {
	config     *config.Config
	reloader   *config.Reloader
	httpServer *http.Server
	runner     *service.Runner
	auditStore *audit.Store
	sender     *events.PubSubSender
}

// New creates a new Server instance with all dependencies initialized.
func New(ctx context.Context, reloader *config.Reloader) (*Server, error) {
	cfg := reloader.GetConfig()

	runner, deps, err := BuildRunner(ctx, cfg)
	if err != nil {
		return nil, err
	}

	// When vault-agent rewrites the Looker secret files, drop the cached
	// API token so the next call logs in with the new credentials.
	reloader.OnCredentialChange(deps.Looker.RotateCredentials)

	var pushValidator router.PushAuthenticator
	if cfg.PushAudience != "" {
		validator := auth.NewPushTokenValidator(cfg.PushAudience, cfg.PushServiceAccount)
		if err := validator.Initialize(ctx); err != nil {
			return nil, fmt.Errorf("failed to initialize push token validator: %w", err)
		}
		pushValidator = validator
	} else {
		slog.Warn("Push endpoint authentication disabled (no PUSH_AUDIENCE)")
	}

	handler := router.New(&router.Dependencies{
		Runner:         runner,
		PushValidator:  pushValidator,
		AllowedOrigins: cfg.AllowedOrigins,
	})

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &Server{
		config:     cfg,
		reloader:   reloader,
		httpServer: httpServer,
		runner:     runner,
		auditStore: deps.AuditStore,
		sender:     deps.Sender,
	}, nil
}

// RunnerDeps exposes the closable dependencies behind a Runner so callers
// can shut them down.
type RunnerDeps struct {
	Looker     *looker.Client
	AuditStore *audit.Store
	Sender     *events.PubSubSender
}

// BuildRunner assembles the provisioning pipeline from configuration. It is
// shared by the HTTP server, the pull worker, and the one-shot CLI.
func BuildRunner(ctx context.Context, cfg *config.Config) (*service.Runner, *RunnerDeps, error) {
	clientID, clientSecret := cfg.LookerClientID, cfg.LookerClientSecret
	if cfg.VaultLookerSecretPath != "" {
		vaultClient, err := vault.NewClient(ctx, &vault.Config{
			Address: cfg.VaultAddr,
			Token:   cfg.VaultToken,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize vault client: %w", err)
		}

		creds, err := vaultClient.ReadLookerCredentials(ctx, cfg.VaultLookerSecretPath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read looker credentials: %w", err)
		}
		clientID, clientSecret = creds.ClientID, creds.ClientSecret
		slog.Info("Looker credentials loaded from Vault", "path", cfg.VaultLookerSecretPath)
	}

	lookerClient, err := looker.NewClient(looker.ClientConfig{
		BaseURL:      cfg.LookerBaseURL,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		VerifySSL:    cfg.LookerVerifySSL,
		Timeout:      cfg.LookerTimeout,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create looker client: %w", err)
	}

	provisioner := provision.New(lookerClient, provision.Options{
		DefaultTemplateDashboardIDs: cfg.DefaultTemplateDashboardIDs,
		DefaultParentFolderID:       cfg.DefaultParentFolderID,
		GroupMatchPolicy:            provision.GroupMatchPolicy(cfg.GroupMatchPolicy),
		FailOnUnknownToken:          cfg.UnknownTokenPolicy == "fail",
	})

	deps := &RunnerDeps{Looker: lookerClient}

	var publisher *events.ResultPublisher
	if cfg.GCPProjectID != "" && cfg.ResultsTopicID != "" {
		sender, err := events.NewPubSubSender(ctx, cfg.GCPProjectID, cfg.ResultsTopicID)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create pubsub sender: %w", err)
		}
		publisher = events.NewResultPublisher(events.NewSenderClient(sender))
		deps.Sender = sender
		slog.Info("Result events configured", "project", cfg.GCPProjectID, "topic", cfg.ResultsTopicID)
	} else {
		slog.Info("Result events disabled (no GCP_PROJECT_ID or RESULTS_TOPIC_ID)")
	}

	if cfg.AuditDSN != "" {
		store, err := audit.Open(cfg.AuditDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open audit store: %w", err)
		}
		deps.AuditStore = store
		slog.Info("Audit trail enabled")
	}

	return service.NewRunner(provisioner, publisher, deps.AuditStore), deps, nil
}

// Close releases the runner's backends.
func (d *RunnerDeps) Close() {
	if d == nil {
		return
	}
	if d.Sender != nil {
		d.Sender.Close()
	}
	if err := d.AuditStore.Close(); err != nil {
		slog.Error("Error closing audit store", "error", err)
	}
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	if err := s.reloader.Start(context.Background()); err != nil {
		return fmt.Errorf("failed to start config reloader: %w", err)
	}

	slog.Info("Starting Looker provisioner", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("Starting graceful shutdown")

	if err := s.reloader.Stop(); err != nil {
		slog.Error("Error stopping config reloader", "error", err)
	} else {
		slog.Info("Config reloader stopped")
	}

	if err := s.httpServer.Shutdown(ctx); err != nil {
		_ = s.httpServer.Close()
		return fmt.Errorf("could not stop server gracefully: %w", err)
	}

	if s.sender != nil {
		s.sender.Close()
	}
	if err := s.auditStore.Close(); err != nil {
		return fmt.Errorf("error closing audit store: %w", err)
	}

	slog.Info("Server stopped gracefully")
	return nil
}
