package ports

import (
	"context"

	"github.com/layer-3/gatekeeper/core"
)

// EventPublisher publishes auth events to other services (mailers, audit).
type EventPublisher interface {
	PublishAuthEvent(ctx context.Context, event core.AuthEvent) error
}

// Metrics records operation outcomes.
type Metrics interface {
	ObserveOutcome(operation string, err error)
}
