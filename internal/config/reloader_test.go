package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestReloader_ConfigUpdate tests that the Reloader detects and applies
// Looker credential rotation from the Vault secret mount.
func TestReloader_ConfigUpdate(t *testing.T) {
	_ = os.Unsetenv("LOOKER_CLIENT_ID")
	_ = os.Unsetenv("LOOKER_CLIENT_SECRET")
	_ = os.Setenv("LOOKER_BASE_URL", "https://looker.example.com")
	defer func() { _ = os.Unsetenv("LOOKER_BASE_URL") }()

	tmpDir := t.TempDir()
	_ = os.Setenv("VAULT_SECRETS_DIR", tmpDir)
	defer func() { _ = os.Unsetenv("VAULT_SECRETS_DIR") }()

	initialSecret := "initial-secret"
	if err := os.WriteFile(filepath.Join(tmpDir, "LOOKER_CLIENT_ID"), []byte("client-id"), 0600); err != nil {
		t.Fatalf("failed to write LOOKER_CLIENT_ID: %v", err)
	}
	secretPath := filepath.Join(tmpDir, "LOOKER_CLIENT_SECRET")
	if err := os.WriteFile(secretPath, []byte(initialSecret), 0600); err != nil {
		t.Fatalf("failed to write LOOKER_CLIENT_SECRET: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	loader := NewVaultLoader()
	reloader, err := NewReloader(cfg, loader)
	if err != nil {
		t.Fatalf("failed to create reloader: %v", err)
	}
	defer func() { _ = reloader.Stop() }()

	rotated := make(chan string, 1)
	reloader.OnCredentialChange(func(clientID, clientSecret string) {
		rotated <- clientSecret
	})

	ctx := context.Background()
	if err := reloader.Start(ctx); err != nil {
		t.Fatalf("failed to start reloader: %v", err)
	}

	currentCfg := reloader.GetConfig()
	if currentCfg.LookerClientSecret != initialSecret {
		t.Errorf("expected initial LOOKER_CLIENT_SECRET %q, got %q", initialSecret, currentCfg.LookerClientSecret)
	}

	updatedSecret := "rotated-secret"
	if err := os.WriteFile(secretPath, []byte(updatedSecret), 0600); err != nil {
		t.Fatalf("failed to write updated LOOKER_CLIENT_SECRET: %v", err)
	}

	// The reloader has a 500ms debounce, so wait a bit longer
	select {
	case got := <-rotated:
		if got != updatedSecret {
			t.Errorf("expected rotation callback with %q, got %q", updatedSecret, got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for credential rotation callback")
	}

	currentCfg = reloader.GetConfig()
	if currentCfg.LookerClientSecret != updatedSecret {
		t.Errorf("expected LOOKER_CLIENT_SECRET update to %q, got %q", updatedSecret, currentCfg.LookerClientSecret)
	}
}
