package looker

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestServer returns a Looker API stub that answers /login and dispatches
// all other calls to handler.
func newTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *Client) {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/4.0/login" {
			require.Equal(t, http.MethodPost, r.Method)
			require.NoError(t, r.ParseForm())
			require.Equal(t, "test-id", r.FormValue("client_id"))

			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"access_token": "test-token",
				"token_type":   "Bearer",
				"expires_in":   3600,
			})
			return
		}

		require.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		handler(w, r)
	}))
	t.Cleanup(server.Close)

	client, err := NewClient(ClientConfig{
		BaseURL:      server.URL,
		ClientID:     "test-id",
		ClientSecret: "test-secret",
		VerifySSL:    true,
	})
	require.NoError(t, err)

	return server, client
}

// TestSearchGroupsExactMatch tests that pattern-matched search results are
// filtered to exact name matches.
func TestSearchGroupsExactMatch(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/4.0/groups/search", r.URL.Path)
		assert.Equal(t, "team@example.com", r.URL.Query().Get("name"))

		// Looker search can return fuzzy matches; ids may be strings.
		_, _ = w.Write([]byte(`[
			{"id": "12", "name": "team@example.com"},
			{"id": 13, "name": "team@example.com.suffix"}
		]`))
	})

	groups, err := client.SearchGroups(context.Background(), "team@example.com")
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, ID(12), groups[0].ID)
}

// TestCopyDashboardRenamesClone tests the two-step copy-then-rename flow.
func TestCopyDashboardRenamesClone(t *testing.T) {
	var patched DashboardText
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/4.0/dashboards/101/copy":
			_, _ = w.Write([]byte(`{"id": "501", "title": "Cost Overview", "folder_id": "9"}`))
		case r.Method == http.MethodPatch && r.URL.Path == "/api/4.0/dashboards/501":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&patched))
			w.WriteHeader(http.StatusOK)
		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
	})

	clone, err := client.CopyDashboard(context.Background(), 101, 9, "Cost Overview (project: demo-proj)")
	require.NoError(t, err)
	assert.Equal(t, ID(501), clone.ID)
	assert.Equal(t, "Cost Overview (project: demo-proj)", clone.Title)
	assert.Equal(t, "Cost Overview (project: demo-proj)", patched.Title)
}

// TestAPIErrorSurfaced tests that non-2xx responses become typed API errors.
func TestAPIErrorSurfaced(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "dashboard not found", http.StatusNotFound)
	})

	_, err := client.Dashboard(context.Background(), 999)
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Contains(t, apiErr.Message, "dashboard not found")
}

// TestBreakerIgnoresClientErrors tests that repeated 4xx responses do not trip
// the circuit breaker while 5xx responses do.
func TestBreakerIgnoresClientErrors(t *testing.T) {
	status := http.StatusNotFound
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	})

	ctx := context.Background()

	for range 10 {
		_, err := client.Dashboard(ctx, 1)
		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr, "4xx responses must keep surfacing as API errors")
	}

	status = http.StatusInternalServerError
	sawOpen := false
	for range 10 {
		_, err := client.Dashboard(ctx, 1)
		require.Error(t, err)
		if errors.Is(err, gobreaker.ErrOpenState) {
			sawOpen = true
		}
	}
	assert.True(t, sawOpen, "breaker should open after consecutive 5xx failures")
}

// TestIDUnmarshal tests decoding ids from both JSON numbers and strings.
func TestIDUnmarshal(t *testing.T) {
	var d Dashboard
	require.NoError(t, json.Unmarshal([]byte(`{"id": 7, "title": "x"}`), &d))
	assert.Equal(t, ID(7), d.ID)

	require.NoError(t, json.Unmarshal([]byte(`{"id": "42", "title": "x"}`), &d))
	assert.Equal(t, ID(42), d.ID)

	assert.Error(t, json.Unmarshal([]byte(`{"id": "abc"}`), &d))
}

// TestRotateCredentials tests that rotation drops the cached token and the
// next call logs in with the new client id.
func TestRotateCredentials(t *testing.T) {
	var logins []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/4.0/login" {
			require.NoError(t, r.ParseForm())
			logins = append(logins, r.FormValue("client_id"))

			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"access_token": "token-" + r.FormValue("client_id"),
				"token_type":   "Bearer",
				"expires_in":   3600,
			})
			return
		}
		_, _ = w.Write([]byte(`{"id": "1", "title": "x"}`))
	}))
	t.Cleanup(server.Close)

	client, err := NewClient(ClientConfig{
		BaseURL:      server.URL,
		ClientID:     "old-id",
		ClientSecret: "old-secret",
		VerifySSL:    true,
	})
	require.NoError(t, err)

	ctx := context.Background()
	_, err = client.Dashboard(ctx, 1)
	require.NoError(t, err)

	client.RotateCredentials("new-id", "new-secret")

	_, err = client.Dashboard(ctx, 1)
	require.NoError(t, err)

	assert.Equal(t, []string{"old-id", "new-id"}, logins)
}
