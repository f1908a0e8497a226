package events

import (
	"context"
	"time"
)

// LoginEvent is emitted after every successful authentication.
type LoginEvent struct {
	Username  string    `json:"username"`
	Address   string    `json:"address"`
	Timestamp time.Time `json:"timestamp"`
}

// RegistrationEvent is emitted when a new account is created.
type RegistrationEvent struct {
	Username  string    `json:"username"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher sends account lifecycle events to interested subscribers.
// Implementations must not block the request path for long; delivery is
// best effort and failures are logged, not returned to the client.
type Publisher interface {
	PublishLogin(ctx context.Context, event LoginEvent) error
	PublishRegistration(ctx context.Context, event RegistrationEvent) error
}

// NopPublisher discards every event. Used when eventing is disabled.
type NopPublisher struct{}

func (NopPublisher) PublishLogin(ctx context.Context, event LoginEvent) error { return nil }
func (NopPublisher) PublishRegistration(ctx context.Context, event RegistrationEvent) error {
	return nil
}
