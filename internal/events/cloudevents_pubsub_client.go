package events

import (
	"context"
	"fmt"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/cloudevents/sdk-go/v2/protocol"
)

// SenderClient adapts a PubSubSender to the cloudevents.Client interface so
// the result publisher can be tested against any Client implementation.
type SenderClient struct {
	sender *PubSubSender
}

// NewSenderClient wraps sender in a send-only CloudEvents client.
func NewSenderClient(sender *PubSubSender) cloudevents.Client {
	return &SenderClient{sender: sender}
}

// Send publishes a CloudEvent to the results topic. The returned receipt
// answers cloudevents.IsNACK when the publish failed.
func (c *SenderClient) Send(ctx context.Context, event cloudevents.Event) protocol.Result {
	if err := c.sender.Send(ctx, event); err != nil {
		return protocol.NewReceipt(false, "pubsub publish failed: %v", err)
	}
	return protocol.ResultACK
}

// Request is unsupported: result events are fire-and-forget.
func (c *SenderClient) Request(ctx context.Context, event cloudevents.Event) (*cloudevents.Event, protocol.Result) {
	return nil, protocol.NewReceipt(false, "request/response not supported for Pub/Sub")
}

// StartReceiver is unsupported: inbound events arrive through the push
// endpoint or the pull worker, not through this client.
func (c *SenderClient) StartReceiver(ctx context.Context, fn any) error {
	return fmt.Errorf("receiver not supported on a send-only client")
}
