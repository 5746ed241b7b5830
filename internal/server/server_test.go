package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iamcloud/looker-provisioner/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg := &config.Config{
		Port:               "0",
		LookerBaseURL:      "https://looker.example.com",
		LookerClientID:     "id",
		LookerClientSecret: "secret",
		LookerVerifySSL:    true,
		GroupMatchPolicy:   "lenient",
		UnknownTokenPolicy: "keep",
	}
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestBuildRunner(t *testing.T) {
	runner, deps, err := BuildRunner(context.Background(), testConfig(t))
	require.NoError(t, err)
	require.NotNil(t, runner)
	require.NotNil(t, deps.Looker)

	// Events and audit stay disabled without their configuration.
	assert.Nil(t, deps.Sender)
	assert.Nil(t, deps.AuditStore)

	deps.Close()
}

func TestNewServer(t *testing.T) {
	_ = os.Setenv("LOOKER_BASE_URL", "https://looker.example.com")
	_ = os.Setenv("LOOKER_CLIENT_ID", "id")
	_ = os.Setenv("LOOKER_CLIENT_SECRET", "secret")
	defer func() {
		_ = os.Unsetenv("LOOKER_BASE_URL")
		_ = os.Unsetenv("LOOKER_CLIENT_ID")
		_ = os.Unsetenv("LOOKER_CLIENT_SECRET")
	}()

	cfg, err := config.Load()
	require.NoError(t, err)

	reloader, err := config.NewReloader(cfg, config.NewVaultLoader())
	require.NoError(t, err)

	srv, err := New(context.Background(), reloader)
	require.NoError(t, err)
	require.NotNil(t, srv.httpServer)
	assert.Equal(t, ":8080", srv.httpServer.Addr)

	// The assembled handler serves the health endpoint.
	rec := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	// Provision requests reach the runner; validation rejects the payload
	// before any Looker call is attempted.
	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/provision",
		strings.NewReader(`{"projectId":"AB","groupEmail":"team@acme.com"}`))
	srv.httpServer.Handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
