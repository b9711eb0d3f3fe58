package commands

import (
	"context"
	"errors"

	"github.com/felixgeelhaar/nestly/internal/scheduling/domain"
	sharedApplication "github.com/felixgeelhaar/nestly/internal/shared/application"
	sharedDomain "github.com/felixgeelhaar/nestly/internal/shared/domain"
	"github.com/felixgeelhaar/nestly/internal/shared/infrastructure/outbox"
	"github.com/google/uuid"
)

// staleWriteAttempts bounds how often a handler reloads and reapplies a
// transition that lost an optimistic version check.
const staleWriteAttempts = 3

type eventSource interface {
	PullEvents() []sharedDomain.DomainEvent
}

// writeEvents drains the aggregates' events, stamps them with request
// metadata and stores them in the outbox inside the current transaction.
func writeEvents(ctx context.Context, repo outbox.Repository, actorID uuid.UUID, sources ...eventSource) error {
	var events []sharedDomain.DomainEvent
	for _, src := range sources {
		events = append(events, src.PullEvents()...)
	}
	if len(events) == 0 {
		return nil
	}

	sharedApplication.ApplyEventMetadata(events, sharedApplication.EventMetadataFromContext(ctx, actorID))
	msgs, err := outbox.NewMessages(events)
	if err != nil {
		return err
	}
	return repo.SaveBatch(ctx, msgs)
}

// retryStale reruns fn while it fails with domain.ErrStaleWrite.
func retryStale(ctx context.Context, fn func(ctx context.Context) error) error {
	var err error
	for range staleWriteAttempts {
		if err = fn(ctx); !errors.Is(err, domain.ErrStaleWrite) {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return err
}
