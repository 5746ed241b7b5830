package events

import (
	"context"
	"fmt"
	"log/slog"

	pubsub "cloud.google.com/go/pubsub/v2"

	"github.com/iamcloud/looker-provisioner/internal/logging"
)

// MessageHandler processes one pulled provisioning message. The returned
// error is logged only; messages are always acked because a run is never
// retried automatically.
type MessageHandler func(ctx context.Context, data []byte) error

// Worker consumes provisioning requests from a Pub/Sub pull subscription.
type Worker struct {
	client         *pubsub.Client
	subscriber     *pubsub.Subscriber
	subscriptionID string
	handler        MessageHandler
}

// NewWorker creates a pull worker bound to the given subscription.
func NewWorker(ctx context.Context, projectID, subscriptionID string, handler MessageHandler) (*Worker, error) {
	if projectID == "" {
		return nil, fmt.Errorf("project_id is required")
	}
	if subscriptionID == "" {
		return nil, fmt.Errorf("subscription_id is required")
	}

	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub client: %w", err)
	}

	return &Worker{
		client:         client,
		subscriber:     client.Subscriber(subscriptionID),
		subscriptionID: subscriptionID,
		handler:        handler,
	}, nil
}

// Run blocks receiving messages until the context is cancelled. Every
// message is acked exactly once: a failed run is reported through the
// result event, not through redelivery.
func (w *Worker) Run(ctx context.Context) error {
	slog.Info("Pull worker started", "subscription", w.subscriptionID)

	err := w.subscriber.Receive(ctx, func(msgCtx context.Context, msg *pubsub.Message) {
		defer msg.Ack()

		if correlationID := msg.Attributes["correlation_id"]; correlationID != "" {
			msgCtx = logging.WithCorrelationID(msgCtx, correlationID)
		}

		slog.InfoContext(msgCtx, "Message received", "message_id", msg.ID)

		if err := w.handler(msgCtx, msg.Data); err != nil {
			slog.ErrorContext(msgCtx, "Message handling failed", "message_id", msg.ID, "error", err)
		}
	})
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("subscription receive failed: %w", err)
	}
	return nil
}

// Close releases the underlying Pub/Sub client.
func (w *Worker) Close() error {
	return w.client.Close()
}
