package events

import (
	"encoding/base64"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodePushEnvelope(t *testing.T) {
	payload := `{"projectId":"acme-prod","groupEmail":"team@acme.com"}`
	body := fmt.Sprintf(`{
		"message": {
			"data": %q,
			"messageId": "12345",
			"attributes": {"correlation_id": "abc-123"}
		},
		"subscription": "projects/acme/subscriptions/looker-provision"
	}`, base64.StdEncoding.EncodeToString([]byte(payload)))

	msg, err := DecodePushEnvelope([]byte(body))
	require.NoError(t, err)

	assert.Equal(t, payload, string(msg.Data))
	assert.Equal(t, "12345", msg.MessageID)
	assert.Equal(t, "abc-123", msg.Attributes["correlation_id"])
}

func TestDecodePushEnvelopeInvalidJSON(t *testing.T) {
	_, err := DecodePushEnvelope([]byte("not json"))
	assert.Error(t, err)
}

func TestDecodePushEnvelopeEmptyData(t *testing.T) {
	_, err := DecodePushEnvelope([]byte(`{"message":{"messageId":"1"},"subscription":"s"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no message data")
}

func TestDecodePushEnvelopeBadBase64(t *testing.T) {
	_, err := DecodePushEnvelope([]byte(`{"message":{"data":"%%%not-base64%%%"},"subscription":"s"}`))
	assert.Error(t, err)
}
