package services

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/felixgeelhaar/nestly/internal/scheduling/domain"
	"github.com/google/uuid"
)

// BookingLedger answers conflict and listing queries over the booking store.
type BookingLedger struct {
	repo domain.BookingRepository
}

// NewBookingLedger creates a ledger over repo.
func NewBookingLedger(repo domain.BookingRepository) *BookingLedger {
	return &BookingLedger{repo: repo}
}

// Conflicts returns the provider's active bookings overlapping rng, ordered by
// start. excludeID is skipped so a booking can be re-validated against the rest.
func (l *BookingLedger) Conflicts(ctx context.Context, providerID uuid.UUID, rng domain.TimeRange, excludeID uuid.UUID) ([]*domain.Booking, error) {
	return l.ConflictsIn(ctx, providerID, rng, domain.ActiveStatuses(), excludeID)
}

// ConflictsIn is Conflicts over an explicit status set.
func (l *BookingLedger) ConflictsIn(ctx context.Context, providerID uuid.UUID, rng domain.TimeRange, statuses []domain.BookingStatus, excludeID uuid.UUID) ([]*domain.Booking, error) {
	bookings, err := l.repo.FindOverlapping(ctx, providerID, rng, statuses, excludeID)
	if err != nil {
		return nil, fmt.Errorf("find overlapping bookings: %w", err)
	}
	sortByStart(bookings)
	return bookings, nil
}

// ForProvider lists every booking of the provider that overlaps window.
func (l *BookingLedger) ForProvider(ctx context.Context, providerID uuid.UUID, window domain.TimeRange) ([]*domain.Booking, error) {
	bookings, err := l.repo.FindByProvider(ctx, providerID, window)
	if err != nil {
		return nil, fmt.Errorf("find provider bookings: %w", err)
	}
	sortByStart(bookings)
	return bookings, nil
}

// ForConsumer lists every booking the consumer made that overlaps window.
func (l *BookingLedger) ForConsumer(ctx context.Context, consumerID uuid.UUID, window domain.TimeRange) ([]*domain.Booking, error) {
	bookings, err := l.repo.FindByConsumer(ctx, consumerID, window)
	if err != nil {
		return nil, fmt.Errorf("find consumer bookings: %w", err)
	}
	sortByStart(bookings)
	return bookings, nil
}

// Between lists the bookings one consumer holds with one provider.
func (l *BookingLedger) Between(ctx context.Context, consumerID, providerID uuid.UUID, window domain.TimeRange) ([]*domain.Booking, error) {
	bookings, err := l.ForConsumer(ctx, consumerID, window)
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(bookings, func(b *domain.Booking) bool {
		return b.ProviderID() != providerID
	}), nil
}

func sortByStart(bookings []*domain.Booking) {
	slices.SortFunc(bookings, func(a, b *domain.Booking) int {
		return cmp.Or(
			a.Range().Start().Compare(b.Range().Start()),
			cmp.Compare(a.ID().String(), b.ID().String()),
		)
	})
}

func bookingIDs(bookings []*domain.Booking) []uuid.UUID {
	ids := make([]uuid.UUID, len(bookings))
	for i, b := range bookings {
		ids[i] = b.ID()
	}
	return ids
}
