package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// BookingRepository persists bookings. Save must refuse, with a
// *ConflictError for ReasonBookingOverlap, any write that would leave two
// active bookings of one provider overlapping. FindByID returns nil, nil when
// the booking does not exist.
type BookingRepository interface {
	Save(ctx context.Context, booking *Booking) error
	FindByID(ctx context.Context, id uuid.UUID) (*Booking, error)
	// FindOverlapping returns the provider's bookings in statuses whose range
	// overlaps rng, skipping excludeID.
	FindOverlapping(ctx context.Context, providerID uuid.UUID, rng TimeRange, statuses []BookingStatus, excludeID uuid.UUID) ([]*Booking, error)
	FindByProvider(ctx context.Context, providerID uuid.UUID, window TimeRange) ([]*Booking, error)
	FindByConsumer(ctx context.Context, consumerID uuid.UUID, window TimeRange) ([]*Booking, error)
	// FindCompletable returns confirmed bookings whose end is at or before now.
	FindCompletable(ctx context.Context, now time.Time, limit int) ([]*Booking, error)
}

// AvailabilityRepository persists availability blocks. FindByID returns
// nil, nil when the block does not exist.
type AvailabilityRepository interface {
	Save(ctx context.Context, block *AvailabilityBlock) error
	FindByID(ctx context.Context, id uuid.UUID) (*AvailabilityBlock, error)
	Delete(ctx context.Context, id uuid.UUID) error
	// FindOverlapping returns the provider's blocks overlapping rng. An empty
	// kinds list means every kind.
	FindOverlapping(ctx context.Context, providerID uuid.UUID, rng TimeRange, kinds ...AvailabilityKind) ([]*AvailabilityBlock, error)
}

// ProviderLocker serializes writers on one provider's calendar for the rest
// of the current transaction.
type ProviderLocker interface {
	LockProvider(ctx context.Context, providerID uuid.UUID) error
}
