package queries

import (
	"time"

	"github.com/felixgeelhaar/nestly/internal/scheduling/domain"
	"github.com/google/uuid"
)

// BookingDTO is a data transfer object for bookings.
type BookingDTO struct {
	ID               uuid.UUID   `json:"id"`
	ConsumerID       uuid.UUID   `json:"consumer_id"`
	ProviderID       uuid.UUID   `json:"provider_id"`
	Start            time.Time   `json:"start"`
	End              time.Time   `json:"end"`
	Status           string      `json:"status"`
	IsEmergency      bool        `json:"is_emergency"`
	SeriesID         *uuid.UUID  `json:"series_id,omitempty"`
	Children         []uuid.UUID `json:"children"`
	CancellationNote string      `json:"cancellation_note,omitempty"`
	CancelledAt      *time.Time  `json:"cancelled_at,omitempty"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

// AvailabilityBlockDTO is a data transfer object for availability blocks.
type AvailabilityBlockDTO struct {
	ID                  uuid.UUID  `json:"id"`
	ProviderID          uuid.UUID  `json:"provider_id"`
	Date                string     `json:"date"`
	Start               time.Time  `json:"start"`
	End                 time.Time  `json:"end"`
	Kind                string     `json:"kind"`
	Recurring           bool       `json:"recurring"`
	SeriesID            *uuid.UUID `json:"series_id,omitempty"`
	ExternalCalendarRef string     `json:"external_calendar_ref,omitempty"`
}

// ToBookingDTO converts a booking for the read side and the adapters.
func ToBookingDTO(b *domain.Booking) BookingDTO {
	children := b.Children()
	if children == nil {
		children = []uuid.UUID{}
	}
	return BookingDTO{
		ID:               b.ID(),
		ConsumerID:       b.ConsumerID(),
		ProviderID:       b.ProviderID(),
		Start:            b.Range().Start(),
		End:              b.Range().End(),
		Status:           string(b.Status()),
		IsEmergency:      b.IsEmergency(),
		SeriesID:         optionalID(b.SeriesID()),
		Children:         children,
		CancellationNote: b.CancellationNote(),
		CancelledAt:      b.CancelledAt(),
		CreatedAt:        b.CreatedAt(),
		UpdatedAt:        b.UpdatedAt(),
	}
}

func toBlockDTO(b *domain.AvailabilityBlock) AvailabilityBlockDTO {
	return AvailabilityBlockDTO{
		ID:                  b.ID(),
		ProviderID:          b.ProviderID(),
		Date:                b.Date().Format(time.DateOnly),
		Start:               b.Range().Start(),
		End:                 b.Range().End(),
		Kind:                string(b.Kind()),
		Recurring:           b.Recurrence() != nil,
		SeriesID:            optionalID(b.SeriesID()),
		ExternalCalendarRef: b.ExternalCalendarRef(),
	}
}

func optionalID(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}
