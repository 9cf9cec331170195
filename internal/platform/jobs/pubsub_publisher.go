package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"

	"github.com/hanko-field/commerce/internal/platform/textutil"
	"github.com/hanko-field/commerce/internal/services"
)

// PubSubEventPublisher publishes order and cart domain events to a Pub/Sub topic.
type PubSubEventPublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

var _ services.EventPublisher = (*PubSubEventPublisher)(nil)

// eventMessage is the JSON body of a published event.
type eventMessage struct {
	Type        string         `json:"type"`
	AggregateID string         `json:"aggregateId"`
	UserID      string         `json:"userId,omitempty"`
	OccurredAt  time.Time      `json:"occurredAt"`
	Payload     map[string]any `json:"payload,omitempty"`
}

// NewPubSubEventPublisher constructs a Pub/Sub backed event publisher.
func NewPubSubEventPublisher(topic *pubsub.Topic) (*PubSubEventPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub event publisher: topic is required")
	}
	return &PubSubEventPublisher{
		topic:   topic,
		marshal: json.Marshal,
	}, nil
}

// PublishEvent blocks until Pub/Sub acknowledged the message.
func (p *PubSubEventPublisher) PublishEvent(ctx context.Context, event services.DomainEvent) error {
	if p == nil || p.topic == nil {
		return errors.New("pubsub event publisher: not initialised")
	}

	data, err := p.marshal(eventMessage{
		Type:        event.Type,
		AggregateID: event.AggregateID,
		UserID:      event.UserID,
		OccurredAt:  event.OccurredAt.UTC(),
		Payload:     event.Payload,
	})
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", event.Type, err)
	}

	attrs := textutil.NormalizeStringMap(map[string]string{
		"eventType":   event.Type,
		"aggregateId": event.AggregateID,
		"userId":      event.UserID,
	})
	for key, value := range attrs {
		if value == "" {
			delete(attrs, key)
		}
	}

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish event %s: %w", event.Type, err)
	}
	return nil
}
