package policies

import (
	"context"

	"stayvibe/internal/domain/shared/events"
)

// Publisher fans booking lifecycle events out to interested consumers.
type Publisher interface {
	Publish(ctx context.Context, event events.DomainEvent) error
}

// NopPublisher drops events; used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, event events.DomainEvent) error {
	return nil
}
