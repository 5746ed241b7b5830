package events

import (
	"encoding/json"
	"fmt"
	"time"
)

// PushEnvelope is the JSON wrapper Pub/Sub wraps around a message delivered
// to a push endpoint. Message data arrives base64-encoded; encoding/json
// decodes it into the []byte field.
type PushEnvelope struct {
	Message      PushMessage `json:"message"`
	Subscription string      `json:"subscription"`
}

// PushMessage is the inner Pub/Sub message of a push delivery.
type PushMessage struct {
	Data        []byte            `json:"data"`
	MessageID   string            `json:"messageId"`
	Attributes  map[string]string `json:"attributes"`
	PublishTime time.Time         `json:"publishTime"`
}

// DecodePushEnvelope parses a Pub/Sub push delivery body and returns the
// inner message. The payload carried in Data is left for the caller to parse.
func DecodePushEnvelope(body []byte) (*PushMessage, error) {
	var envelope PushEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("invalid push envelope: %w", err)
	}
	if len(envelope.Message.Data) == 0 {
		return nil, fmt.Errorf("push envelope has no message data")
	}
	return &envelope.Message, nil
}
