package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/pubsub"

	"github.com/bloomfield/api/internal/services"
)

// PubSubEventPublisher fans storefront domain events out to a Pub/Sub topic.
// Consumers (mail, analytics, courier sync) subscribe to the topic and filter
// on the event type attribute.
type PubSubEventPublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
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

type eventEnvelope struct {
	Type       string         `json:"type"`
	EntityID   string         `json:"entity_id"`
	OwnerID    string         `json:"owner_id,omitempty"`
	ActorID    string         `json:"actor_id,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// PublishEvent enqueues a domain event on the configured topic.
func (p *PubSubEventPublisher) PublishEvent(ctx context.Context, event services.StoreEvent) error {
	if p == nil || p.topic == nil {
		return errors.New("pubsub event publisher: not initialised")
	}

	data, err := p.marshal(eventEnvelope{
		Type:       event.Type,
		EntityID:   event.EntityID,
		OwnerID:    event.OwnerID,
		ActorID:    event.ActorID,
		OccurredAt: event.OccurredAt,
		Metadata:   event.Metadata,
	})
	if err != nil {
		return fmt.Errorf("marshal store event: %w", err)
	}

	attrs := make(map[string]string)
	setAttr(attrs, "eventType", event.Type)
	setAttr(attrs, "entityId", event.EntityID)
	setAttr(attrs, "ownerId", event.OwnerID)

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})

	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish store event: %w", err)
	}
	return nil
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}

var _ services.EventPublisher = (*PubSubEventPublisher)(nil)
