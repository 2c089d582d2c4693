package sinks

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"

	"github.com/leadgenhq/leadgen-engine/internal/broadcast"
)

// PubSubSink forwards terminal project events to a Pub/Sub topic so
// downstream consumers (CRM sync, billing) can react without subscribing to
// the live websocket channel. Partial-results batches are deliberately not
// forwarded; they are high-volume and only matter to live subscribers.
type PubSubSink struct {
	client *pubsub.Client
	topic  *pubsub.Topic
}

// NewPubSubSink connects to the topic using Application Default Credentials.
func NewPubSubSink(ctx context.Context, projectID, topicID string) (*PubSubSink, error) {
	if projectID == "" || topicID == "" {
		return nil, fmt.Errorf("pubsub project id and topic id are required")
	}
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	topic := client.Topic(topicID)
	ok, err := topic.Exists(ctx)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("check pubsub topic %q: %w", topicID, err)
	}
	if !ok {
		_ = client.Close()
		return nil, fmt.Errorf("pubsub topic %q does not exist in project %q", topicID, projectID)
	}
	return &PubSubSink{client: client, topic: topic}, nil
}

// Deliver publishes terminal events without waiting for server acks; the
// client batches and retries in the background.
func (s *PubSubSink) Deliver(ctx context.Context, evt broadcast.Event) error {
	switch evt.Name {
	case broadcast.EventFinished, broadcast.EventCancelled, broadcast.EventFailed, broadcast.EventScrapingError:
	default:
		return nil
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	s.topic.Publish(ctx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"event":      evt.Name,
			"project_id": evt.ProjectID,
		},
	})
	return nil
}

// Close flushes pending publishes and releases the client.
func (s *PubSubSink) Close(context.Context) error {
	s.topic.Stop()
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("close pubsub client: %w", err)
	}
	return nil
}
