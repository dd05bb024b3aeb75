package event

import (
	"context"

	"ku-polls/internal/domain"
)

// BallotPublisher announces recorded ballots to downstream consumers
type BallotPublisher interface {
	Publish(ctx context.Context, ev domain.BallotEvent) error
	Close() error
}

// NopPublisher drops every event. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, domain.BallotEvent) error { return nil }

func (NopPublisher) Close() error { return nil }
