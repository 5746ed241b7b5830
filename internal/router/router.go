// Package router sets up and configures the HTTP router and all API endpoints.
package router

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/time/rate"

	"github.com/iamcloud/looker-provisioner/internal/events"
	"github.com/iamcloud/looker-provisioner/internal/middleware"
	"github.com/iamcloud/looker-provisioner/internal/provision"
	"github.com/iamcloud/looker-provisioner/internal/service"
)

// maxBodyBytes caps inbound request bodies; provisioning payloads are tiny.
const maxBodyBytes = 1 << 20

// PushAuthenticator guards the Pub/Sub push endpoint. Nil disables the check
// for deployments that rely on network-level protection instead.
type PushAuthenticator interface {
	Middleware(next http.Handler) http.Handler
}

// Dependencies holds all the dependencies needed to create routes.
type Dependencies struct {
	Runner         *service.Runner
	PushValidator  PushAuthenticator
	AllowedOrigins []string
}

// New creates a new HTTP handler with all routes configured.
func New(deps *Dependencies) http.Handler {
	mux := http.NewServeMux()

	h := &handlers{runner: deps.Runner}

	// Provisioning endpoints get a stricter per-route limit than the
	// global one: each call fans out into several Looker API requests.
	provisionLimiter := NewRateLimiter(rate.Limit(5), 10)

	pushHandler := http.Handler(http.HandlerFunc(h.handlePush))
	if deps.PushValidator != nil {
		pushHandler = deps.PushValidator.Middleware(pushHandler)
	}
	mux.Handle("POST /v1/pubsub/push", pushHandler)

	mux.Handle("POST /v1/provision", provisionLimiter.LimitByIP(http.HandlerFunc(h.handleProvision)))
	mux.Handle("POST /v1/decommission", provisionLimiter.LimitByIP(http.HandlerFunc(h.handleDecommission)))

	registerUtilityRoutes(mux)

	// Global rate limiter (100 rps per IP)
	globalRateLimiter := NewRateLimiter(rate.Limit(100), 100)

	var handler http.Handler = mux

	handler = middleware.CorrelationIDMiddleware(handler)
	handler = globalRateLimiter.LimitByIP(handler)
	handler = middleware.SecurityHeadersMiddleware(handler)
	handler = middleware.AccessLogger(handler)
	handler = middleware.CorsMiddleware(handler, deps.AllowedOrigins)
	handler = otelhttp.NewHandler(handler, "looker-provisioner")
	handler = h2c.NewHandler(handler, &http2.Server{})

	return handler
}

type handlers struct {
	runner *service.Runner
}

// handlePush accepts a Pub/Sub push delivery. The response is always 204
// once the envelope has been read: a failed run is reported through the
// result event, and returning an error here would make Pub/Sub redeliver
// the message, which would amount to an automatic retry.
func (h *handlers) handlePush(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	msg, err := events.DecodePushEnvelope(body)
	if err != nil {
		// Acknowledge malformed envelopes too; they will never parse better
		// on redelivery.
		slog.ErrorContext(r.Context(), "push.envelope.invalid", "error", err)
		w.WriteHeader(http.StatusNoContent)
		return
	}

	h.runner.RunProvision(r.Context(), msg.Data)
	w.WriteHeader(http.StatusNoContent)
}

// handleProvision runs one provisioning request synchronously and returns
// the structured result.
func (h *handlers) handleProvision(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	result := h.runner.RunProvision(r.Context(), body)
	writeJSON(w, statusCodeFor(result.Status), result)
}

// handleDecommission runs one teardown request synchronously.
func (h *handlers) handleDecommission(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	result := h.runner.RunDecommission(r.Context(), body)
	writeJSON(w, statusCodeFor(result.Status), result)
}

func statusCodeFor(status string) int {
	switch status {
	case provision.StatusOK:
		return http.StatusOK
	case provision.StatusValidationError:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "err", err)
	}
}

// registerUtilityRoutes adds health, version, and metrics routes.
func registerUtilityRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/health", handleHealth)

	mux.HandleFunc("/version", handleVersion)

	mux.Handle("/metrics", promhttp.Handler())
}

// handleHealth responds to health check requests.
func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleVersion responds with the service version.
func handleVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"version":"v1.2.0","service":"looker-provisioner"}`))
}
