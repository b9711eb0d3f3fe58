package application

import (
	"context"

	"github.com/felixgeelhaar/nestly/internal/calendar/domain"
	"github.com/google/uuid"
)

// CalendarSyncAdapter writes entries into a provider's external calendar.
type CalendarSyncAdapter interface {
	// PushEvent creates or replaces the entry and returns its reference.
	PushEvent(ctx context.Context, entry domain.Entry) (string, error)
	// DeleteEvent removes the entry. Deleting a missing entry succeeds.
	DeleteEvent(ctx context.Context, entry domain.Entry) error
}

// RefLinker stores a calendar reference on the availability block it
// mirrors.
type RefLinker interface {
	LinkExternalCalendar(ctx context.Context, blockID uuid.UUID, ref string) error
}

// RefLinkerFunc adapts a function to RefLinker.
type RefLinkerFunc func(ctx context.Context, blockID uuid.UUID, ref string) error

func (f RefLinkerFunc) LinkExternalCalendar(ctx context.Context, blockID uuid.UUID, ref string) error {
	return f(ctx, blockID, ref)
}
