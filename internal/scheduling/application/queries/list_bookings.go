package queries

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/felixgeelhaar/nestly/internal/scheduling/application/services"
	"github.com/felixgeelhaar/nestly/internal/scheduling/domain"
	"github.com/google/uuid"
)

// ErrNoParty is returned when a listing names neither side of a booking.
var ErrNoParty = errors.New("a provider or consumer id is required")

// ListBookingsQuery lists bookings overlapping [From, To). Setting both ids
// lists the bookings between that pair. An empty Statuses means all.
type ListBookingsQuery struct {
	ProviderID uuid.UUID
	ConsumerID uuid.UUID
	From       time.Time
	To         time.Time
	Statuses   []domain.BookingStatus
}

// ListBookingsHandler handles the ListBookingsQuery.
type ListBookingsHandler struct {
	ledger *services.BookingLedger
}

// NewListBookingsHandler creates a new ListBookingsHandler.
func NewListBookingsHandler(ledger *services.BookingLedger) *ListBookingsHandler {
	return &ListBookingsHandler{ledger: ledger}
}

// Handle executes the ListBookingsQuery.
func (h *ListBookingsHandler) Handle(ctx context.Context, query ListBookingsQuery) ([]BookingDTO, error) {
	window, err := domain.NewTimeRange(query.From, query.To)
	if err != nil {
		return nil, err
	}

	var bookings []*domain.Booking
	switch {
	case query.ProviderID != uuid.Nil && query.ConsumerID != uuid.Nil:
		bookings, err = h.ledger.Between(ctx, query.ConsumerID, query.ProviderID, window)
	case query.ProviderID != uuid.Nil:
		bookings, err = h.ledger.ForProvider(ctx, query.ProviderID, window)
	case query.ConsumerID != uuid.Nil:
		bookings, err = h.ledger.ForConsumer(ctx, query.ConsumerID, window)
	default:
		return nil, ErrNoParty
	}
	if err != nil {
		return nil, err
	}

	dtos := make([]BookingDTO, 0, len(bookings))
	for _, b := range bookings {
		if len(query.Statuses) > 0 && !slices.Contains(query.Statuses, b.Status()) {
			continue
		}
		dtos = append(dtos, ToBookingDTO(b))
	}
	return dtos, nil
}
