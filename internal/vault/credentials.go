package vault

import (
	"context"
	"fmt"

	"github.com/hashicorp/vault/api"
)

// LookerCredentials holds the API3 credential pair for a Looker instance.
type LookerCredentials struct {
	ClientID     string
	ClientSecret string
}

// ReadLookerCredentials reads the Looker API credentials from the KV secret
// at path. Both KV v1 and KV v2 layouts are accepted: for v2 the fields live
// under a nested "data" map.
func (c *Client) ReadLookerCredentials(ctx context.Context, path string) (*LookerCredentials, error) {
	secret, err := retryWithBackoff(ctx, fmt.Sprintf("read %s", path), func() (*api.Secret, error) {
		return c.client.Logical().ReadWithContext(ctx, path)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read secret from %s: %w", path, err)
	}
	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("no secret found at %s", path)
	}

	data := secret.Data
	if nested, ok := data["data"].(map[string]any); ok {
		data = nested
	}

	clientID, _ := data["client_id"].(string)
	clientSecret, _ := data["client_secret"].(string)
	if clientID == "" || clientSecret == "" {
		return nil, fmt.Errorf("secret at %s missing client_id or client_secret", path)
	}

	return &LookerCredentials{
		ClientID:     clientID,
		ClientSecret: clientSecret,
	}, nil
}
