package database

import (
	"strings"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.MaxOpenConns != 10 {
		t.Errorf("MaxOpenConns = %d, want 10", cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns != 5 {
		t.Errorf("MaxIdleConns = %d, want 5", cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime <= 0 {
		t.Error("ConnMaxLifetime should be positive")
	}
	if cfg.ConnMaxIdleTime <= 0 {
		t.Error("ConnMaxIdleTime should be positive")
	}
	if cfg.PingTimeout <= 0 {
		t.Error("PingTimeout should be positive")
	}
}

func TestNewPool_InvalidDSN(t *testing.T) {
	_, err := NewPool("not-a-dsn", DefaultConfig())
	if err == nil {
		t.Fatal("NewPool() should fail with a malformed DSN")
	}
	if !strings.Contains(err.Error(), "open") && !strings.Contains(err.Error(), "ping") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNewPool_NilConfigUsesDefaults(t *testing.T) {
	// The host does not exist, so the ping fails. The point is that a nil
	// config must not panic before that.
	_, err := NewPool("audit:audit@tcp(nonexistent:3306)/provisioner", nil)
	if err == nil {
		t.Fatal("expected connection error")
	}
}
