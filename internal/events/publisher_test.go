package events

import (
	"context"
	"testing"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/cloudevents/sdk-go/v2/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iamcloud/looker-provisioner/internal/logging"
	"github.com/iamcloud/looker-provisioner/internal/provision"
)

// captureClient records sent events without any transport.
type captureClient struct {
	events []cloudevents.Event
}

func (c *captureClient) Send(ctx context.Context, event cloudevents.Event) protocol.Result {
	c.events = append(c.events, event)
	return nil
}

func (c *captureClient) Request(ctx context.Context, event cloudevents.Event) (*cloudevents.Event, protocol.Result) {
	return nil, nil
}

func (c *captureClient) StartReceiver(ctx context.Context, fn any) error {
	return nil
}

func TestPublishProvisionResultTypes(t *testing.T) {
	tests := []struct {
		status        string
		wantEventType string
	}{
		{provision.StatusOK, EventTypeProvisionCompleted},
		{provision.StatusValidationError, EventTypeProvisionRejected},
		{provision.StatusError, EventTypeProvisionFailed},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			capture := &captureClient{}
			publisher := NewResultPublisher(capture)

			publisher.PublishProvisionResult(context.Background(), provision.Result{
				Status:    tt.status,
				ProjectID: "acme-prod",
			})

			require.Len(t, capture.events, 1)
			event := capture.events[0]
			assert.Equal(t, tt.wantEventType, event.Type())
			assert.Equal(t, EventSourceProvisioner, event.Source())
			assert.Equal(t, "acme-prod", event.Subject())
		})
	}
}

func TestPublishProvisionResultCorrelationID(t *testing.T) {
	capture := &captureClient{}
	publisher := NewResultPublisher(capture)

	ctx := logging.WithCorrelationID(context.Background(), "corr-42")
	publisher.PublishProvisionResult(ctx, provision.Result{
		Status:    provision.StatusOK,
		ProjectID: "acme-prod",
	})

	require.Len(t, capture.events, 1)
	assert.Equal(t, "corr-42", capture.events[0].Extensions()["correlationid"])
}

func TestPublishDecommissionResult(t *testing.T) {
	capture := &captureClient{}
	publisher := NewResultPublisher(capture)

	publisher.PublishDecommissionResult(context.Background(), provision.DecommissionResult{
		Status:    provision.StatusOK,
		ProjectID: "acme-prod",
	})
	publisher.PublishDecommissionResult(context.Background(), provision.DecommissionResult{
		Status:    provision.StatusError,
		ProjectID: "acme-prod",
	})

	require.Len(t, capture.events, 2)
	assert.Equal(t, EventTypeDecommissionCompleted, capture.events[0].Type())
	assert.Equal(t, EventTypeDecommissionFailed, capture.events[1].Type())
}

func TestNilPublisherIsSilent(t *testing.T) {
	publisher := NewResultPublisher(nil)

	// Must not panic with no client configured.
	publisher.PublishProvisionResult(context.Background(), provision.Result{Status: provision.StatusOK})
}
