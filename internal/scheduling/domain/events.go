package domain

import (
	"time"

	sharedDomain "github.com/felixgeelhaar/nestly/internal/shared/domain"
	"github.com/google/uuid"
)

const (
	AggregateTypeBooking      = "Booking"
	AggregateTypeAvailability = "AvailabilityBlock"

	RoutingKeyBookingRequested      = "scheduling.booking.requested"
	RoutingKeyBookingConfirmed      = "scheduling.booking.confirmed"
	RoutingKeyBookingDeclined       = "scheduling.booking.declined"
	RoutingKeyBookingCancelled      = "scheduling.booking.cancelled"
	RoutingKeyBookingCompleted      = "scheduling.booking.completed"
	RoutingKeyAvailabilityDeclared  = "scheduling.availability.declared"
	RoutingKeyAvailabilityRetracted = "scheduling.availability.retracted"
)

// BookingEvent is raised on every booking state change. The routing key
// tells which change it was.
type BookingEvent struct {
	sharedDomain.BaseEvent
	BookingID      uuid.UUID     `json:"booking_id"`
	ConsumerID     uuid.UUID     `json:"consumer_id"`
	ProviderID     uuid.UUID     `json:"provider_id"`
	Start          time.Time     `json:"start"`
	End            time.Time     `json:"end"`
	Status         BookingStatus `json:"status"`
	PreviousStatus BookingStatus `json:"previous_status,omitempty"`
	IsEmergency    bool          `json:"is_emergency"`
	SeriesID       uuid.UUID     `json:"series_id,omitempty"`
	Children       []uuid.UUID   `json:"children,omitempty"`
	Note           string        `json:"note,omitempty"`
}

func newBookingEvent(b *Booking, routingKey string, previous BookingStatus, now time.Time) *BookingEvent {
	return &BookingEvent{
		BaseEvent:      sharedDomain.NewBaseEvent(b.ID(), AggregateTypeBooking, routingKey, now),
		BookingID:      b.ID(),
		ConsumerID:     b.consumerID,
		ProviderID:     b.providerID,
		Start:          b.rng.Start().UTC(),
		End:            b.rng.End().UTC(),
		Status:         b.status,
		PreviousStatus: previous,
		IsEmergency:    b.emergency,
		SeriesID:       b.seriesID,
		Children:       b.Children(),
		Note:           b.cancellationNote,
	}
}

// AvailabilityEvent is raised when a block is declared or retracted.
type AvailabilityEvent struct {
	sharedDomain.BaseEvent
	BlockID             uuid.UUID        `json:"block_id"`
	ProviderID          uuid.UUID        `json:"provider_id"`
	Date                string           `json:"date"`
	Start               time.Time        `json:"start"`
	End                 time.Time        `json:"end"`
	Kind                AvailabilityKind `json:"kind"`
	SeriesID            uuid.UUID        `json:"series_id,omitempty"`
	ExternalCalendarRef string           `json:"external_calendar_ref,omitempty"`
}

func newAvailabilityEvent(b *AvailabilityBlock, routingKey string, now time.Time) *AvailabilityEvent {
	return &AvailabilityEvent{
		BaseEvent:           sharedDomain.NewBaseEvent(b.ID(), AggregateTypeAvailability, routingKey, now),
		BlockID:             b.ID(),
		ProviderID:          b.providerID,
		Date:                b.date.Format(dateLayout),
		Start:               b.rng.Start().UTC(),
		End:                 b.rng.End().UTC(),
		Kind:                b.kind,
		SeriesID:            b.seriesID,
		ExternalCalendarRef: b.externalCalendarRef,
	}
}
