// Package auth validates the OIDC tokens Pub/Sub attaches to push deliveries.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/lestrrat-go/jwx/v3/jwt"
)

// googleDiscoveryURL is Google's OIDC discovery document, which points at
// the JWKS used to sign Pub/Sub push tokens.
const googleDiscoveryURL = "https://accounts.google.com/.well-known/openid-configuration"

// PushTokenValidator validates the OIDC token Google attaches to push
// deliveries when the subscription is configured with an audience.
type PushTokenValidator struct {
	audience       string
	serviceAccount string // optional: restrict to one caller identity
	jwksSet        jwk.Set
	issuer         string
}

// NewPushTokenValidator creates a validator for the given audience. An
// optional service account email restricts accepted callers further.
func NewPushTokenValidator(audience, serviceAccount string) *PushTokenValidator {
	return &PushTokenValidator{
		audience:       audience,
		serviceAccount: serviceAccount,
	}
}

// Initialize fetches the OIDC discovery document and signing keys.
func (v *PushTokenValidator) Initialize(ctx context.Context) error {
	slog.Info("Initializing push token validator", "audience", v.audience)

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(googleDiscoveryURL)
	if err != nil {
		return fmt.Errorf("failed to fetch discovery document: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Error("Failed to close response body", "err", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("discovery endpoint returned status %d", resp.StatusCode)
	}

	var doc struct {
		Issuer  string `json:"issuer"`
		JwksURI string `json:"jwks_uri"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return fmt.Errorf("failed to decode discovery document: %w", err)
	}

	set, err := jwk.Fetch(ctx, doc.JwksURI)
	if err != nil {
		return fmt.Errorf("failed to fetch JWKS: %w", err)
	}

	v.issuer = doc.Issuer
	v.jwksSet = set
	slog.Info("Push token validator initialized", "issuer", v.issuer, "keys_count", set.Len())

	return nil
}

// Middleware rejects push deliveries that do not carry a valid OIDC token.
// Unlike a user-facing API there is no unauthenticated fallthrough: an
// unverified push request is dropped with 401 so Pub/Sub stops retrying
// only once the subscription itself is fixed.
func (v *PushTokenValidator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		tokenString := ""
		if parts := strings.Split(authHeader, " "); len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			tokenString = parts[1]
		}

		if tokenString == "" {
			slog.Warn("Push delivery without bearer token", "remote", r.RemoteAddr)
			http.Error(w, "missing bearer token", http.StatusUnauthorized)
			return
		}

		if err := v.ValidateToken(r.Context(), tokenString); err != nil {
			slog.Warn("Push delivery with invalid token", "err", err)
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// ValidateToken validates a raw OIDC token string against the configured
// audience and caller identity.
func (v *PushTokenValidator) ValidateToken(ctx context.Context, tokenString string) error {
	if v.jwksSet == nil {
		return fmt.Errorf("validator not initialized")
	}

	token, err := jwt.Parse([]byte(tokenString),
		jwt.WithKeySet(v.jwksSet),
		jwt.WithValidate(true),
		jwt.WithAudience(v.audience),
	)
	if err != nil {
		return fmt.Errorf("failed to verify token: %w", err)
	}

	if v.issuer != "" {
		iss, ok := token.Issuer()
		if !ok {
			return fmt.Errorf("token missing issuer")
		}
		// Google issues both forms depending on the token minting path
		if iss != v.issuer && iss != strings.TrimPrefix(v.issuer, "https://") {
			return fmt.Errorf("invalid issuer: expected %s, got %s", v.issuer, iss)
		}
	}

	if v.serviceAccount != "" {
		var email string
		if err := token.Get("email", &email); err != nil {
			return fmt.Errorf("unable to get email from token: %w", err)
		}
		if email != v.serviceAccount {
			return fmt.Errorf("unexpected caller identity %s", email)
		}
	}

	return nil
}
