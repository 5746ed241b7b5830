package events

import (
	"context"
	"log/slog"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"

	"github.com/iamcloud/looker-provisioner/internal/logging"
	"github.com/iamcloud/looker-provisioner/internal/provision"
)

// ResultPublisher emits provisioning outcomes as CloudEvents. A nil client
// disables publishing, which keeps the one-shot CLI and tests quiet.
type ResultPublisher struct {
	client cloudevents.Client
	source string
}

// NewResultPublisher creates a publisher for provisioning outcome events.
func NewResultPublisher(client cloudevents.Client) *ResultPublisher {
	return &ResultPublisher{
		client: client,
		source: EventSourceProvisioner,
	}
}

// PublishProvisionResult emits the completed/rejected/failed event for one
// provisioning run. Publish failures are logged, never surfaced: the outcome
// of the run itself is already decided.
func (p *ResultPublisher) PublishProvisionResult(ctx context.Context, result provision.Result) {
	var eventType string
	switch result.Status {
	case provision.StatusOK:
		eventType = EventTypeProvisionCompleted
	case provision.StatusValidationError:
		eventType = EventTypeProvisionRejected
	default:
		eventType = EventTypeProvisionFailed
	}

	p.publish(ctx, eventType, result.ProjectID, result)
}

// PublishDecommissionResult emits the outcome event for one teardown run.
func (p *ResultPublisher) PublishDecommissionResult(ctx context.Context, result provision.DecommissionResult) {
	eventType := EventTypeDecommissionCompleted
	if result.Status != provision.StatusOK {
		eventType = EventTypeDecommissionFailed
	}

	p.publish(ctx, eventType, result.ProjectID, result)
}

func (p *ResultPublisher) publish(ctx context.Context, eventType, subject string, data any) {
	if p == nil || p.client == nil {
		return
	}

	event := cloudevents.NewEvent()
	event.SetID(uuid.NewString())
	event.SetSource(p.source)
	event.SetType(eventType)
	event.SetSubject(subject)
	event.SetTime(time.Now())
	if correlationID, ok := logging.GetCorrelationID(ctx); ok {
		event.SetExtension("correlationid", correlationID)
	}

	if err := event.SetData(cloudevents.ApplicationJSON, data); err != nil {
		slog.ErrorContext(ctx, "Failed to set event data", "event_type", eventType, "error", err)
		return
	}

	if result := p.client.Send(ctx, event); cloudevents.IsNACK(result) {
		slog.ErrorContext(ctx, "Failed to publish event", "event_type", eventType, "error", result)
		return
	}

	slog.InfoContext(ctx, "Event published", "event_type", eventType, "subject", subject)
}
