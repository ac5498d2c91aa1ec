package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/layer-3/gatekeeper/core"
	"github.com/layer-3/gatekeeper/ports"
	"github.com/oklog/ulid/v2"
)

// DefaultTopicPrefix is prepended to the event type to form the topic.
const DefaultTopicPrefix = "gatekeeper."

// WatermillPublisher implements the EventPublisher interface using Watermill
type WatermillPublisher struct {
	publisher message.Publisher
	prefix    string
}

// NewWatermillPublisher creates a new Watermill publisher
func NewWatermillPublisher(publisher message.Publisher) ports.EventPublisher {
	return &WatermillPublisher{
		publisher: publisher,
		prefix:    DefaultTopicPrefix,
	}
}

// Topic returns the topic an event of type t is published to.
func Topic(t core.EventType) string {
	return DefaultTopicPrefix + string(t)
}

// PublishAuthEvent publishes an auth event on the topic of its type
func (p *WatermillPublisher) PublishAuthEvent(ctx context.Context, event core.AuthEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(ulid.Make().String(), payload)
	msg.Metadata.Set("type", string(event.Type))
	msg.Metadata.Set("subject", event.SubjectID)
	msg.SetContext(ctx)

	if err := p.publisher.Publish(p.prefix+string(event.Type), msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}
