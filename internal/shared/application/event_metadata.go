package application

import (
	"context"

	"github.com/felixgeelhaar/nestly/internal/shared/domain"
	"github.com/felixgeelhaar/nestly/pkg/observability"
	"github.com/google/uuid"
)

type metadataSetter interface {
	SetMetadata(metadata domain.EventMetadata)
}

// NewEventMetadata creates command-scoped metadata for domain events.
func NewEventMetadata(userID uuid.UUID) domain.EventMetadata {
	return domain.EventMetadata{
		CorrelationID: uuid.New(),
		CausationID:   uuid.New(),
		UserID:        userID,
	}
}

// EventMetadataFromContext reuses the request correlation id when the caller
// set one, so events can be joined to request logs.
func EventMetadataFromContext(ctx context.Context, userID uuid.UUID) domain.EventMetadata {
	md := NewEventMetadata(userID)
	if raw := observability.CorrelationIDFromContext(ctx); raw != "" {
		if id, err := uuid.Parse(raw); err == nil {
			md.CorrelationID = id
		}
	}
	return md
}

// ApplyEventMetadata sets metadata on all events that support it.
func ApplyEventMetadata(events []domain.DomainEvent, metadata domain.EventMetadata) {
	for _, event := range events {
		if setter, ok := event.(metadataSetter); ok {
			setter.SetMetadata(metadata)
		}
	}
}
