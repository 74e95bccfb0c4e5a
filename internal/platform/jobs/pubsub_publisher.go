package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/pubsub"

	"github.com/decoriva/api/internal/services"
)

// PubSubBookingEventPublisher publishes booking lifecycle events to a Pub/Sub topic.
type PubSubBookingEventPublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

// NewPubSubBookingEventPublisher constructs a Pub/Sub backed booking event publisher.
func NewPubSubBookingEventPublisher(topic *pubsub.Topic) (*PubSubBookingEventPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub booking event publisher: topic is required")
	}
	return &PubSubBookingEventPublisher{
		topic:   topic,
		marshal: json.Marshal,
	}, nil
}

// PublishBookingEvent enqueues a booking event message on the configured topic.
func (p *PubSubBookingEventPublisher) PublishBookingEvent(ctx context.Context, message services.BookingEventMessage) (string, error) {
	if p == nil || p.topic == nil {
		return "", errors.New("pubsub booking event publisher: not initialised")
	}

	data, err := p.marshal(message)
	if err != nil {
		return "", fmt.Errorf("marshal booking event: %w", err)
	}

	attrs := make(map[string]string)
	setAttr(attrs, "event", message.Event)
	setAttr(attrs, "bookingId", message.BookingID)
	setAttr(attrs, "serviceId", message.ServiceID)
	setAttr(attrs, "transactionId", message.TransactionID)

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})

	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish booking event: %w", err)
	}
	return id, nil
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}
