package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

const (
	TopicLogins        = "taskgrid.logins"
	TopicRegistrations = "taskgrid.registrations"
)

// WatermillPublisher implements Publisher on top of a watermill message
// publisher. The underlying transport (in-process channel, redis stream)
// is chosen by the caller.
type WatermillPublisher struct {
	publisher message.Publisher
}

func NewWatermillPublisher(publisher message.Publisher) *WatermillPublisher {
	return &WatermillPublisher{publisher: publisher}
}

func (p *WatermillPublisher) PublishLogin(ctx context.Context, event LoginEvent) error {
	return p.publish(TopicLogins, event)
}

func (p *WatermillPublisher) PublishRegistration(ctx context.Context, event RegistrationEvent) error {
	return p.publish(TopicRegistrations, event)
}

func (p *WatermillPublisher) publish(topic string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)

	if err := p.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}
