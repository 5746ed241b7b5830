// Package events carries provisioning requests and results over Google Cloud
// Pub/Sub, encoded as CloudEvents.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	pubsub "cloud.google.com/go/pubsub/v2"
	pb "cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	cloudevents "github.com/cloudevents/sdk-go/v2"
)

// PubSubSender publishes CloudEvents to the results topic. The topic is
// created on startup if it does not exist yet.
type PubSubSender struct {
	publisher *pubsub.Publisher
	client    *pubsub.Client
}

// NewPubSubSender connects to Pub/Sub and ensures the results topic exists.
func NewPubSubSender(ctx context.Context, projectID, topicID string) (*PubSubSender, error) {
	if projectID == "" {
		return nil, fmt.Errorf("project_id is required")
	}
	if topicID == "" {
		return nil, fmt.Errorf("topic_id is required")
	}

	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub client: %w", err)
	}

	if err := ensureTopic(ctx, client, projectID, topicID); err != nil {
		return nil, err
	}

	return &PubSubSender{
		publisher: client.Publisher(topicID),
		client:    client,
	}, nil
}

// Send publishes event as a JSON-encoded message with the CloudEvents
// attributes mirrored into Pub/Sub message attributes, so subscribers can
// filter on ce-type without decoding the payload.
func (s *PubSubSender) Send(ctx context.Context, event cloudevents.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	result := s.publisher.Publish(ctx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"ce-specversion": event.SpecVersion(),
			"ce-type":        event.Type(),
			"ce-source":      event.Source(),
			"ce-id":          event.ID(),
		},
	})

	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}

// Close releases the underlying Pub/Sub client.
func (s *PubSubSender) Close() {
	s.publisher.Stop()
	if err := s.client.Close(); err != nil {
		slog.Error("unable to close pubsub client", "err", err)
	}
}

// ensureTopic creates the topic if it doesn't already exist.
func ensureTopic(ctx context.Context, client *pubsub.Client, projectID, topicID string) error {
	topicPath := fmt.Sprintf("projects/%s/topics/%s", projectID, topicID)
	_, err := client.TopicAdminClient.GetTopic(ctx, &pb.GetTopicRequest{
		Topic: topicPath,
	})
	if err == nil {
		return nil
	}

	_, err = client.TopicAdminClient.CreateTopic(ctx, &pb.Topic{
		Name: topicPath,
	})
	if err != nil {
		return fmt.Errorf("failed to create topic: %w", err)
	}
	return nil
}
