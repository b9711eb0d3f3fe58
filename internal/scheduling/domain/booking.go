package domain

import (
	"fmt"
	"slices"
	"strings"
	"time"

	sharedDomain "github.com/felixgeelhaar/nestly/internal/shared/domain"
	"github.com/google/uuid"
)

// Booking is a consumer's request for a provider's time and its lifecycle.
// Status only changes through Transition.
type Booking struct {
	sharedDomain.BaseAggregateRoot
	consumerID       uuid.UUID
	providerID       uuid.UUID
	rng              TimeRange
	status           BookingStatus
	emergency        bool
	recurrence       *RecurrenceRule
	seriesID         uuid.UUID
	children         []uuid.UUID
	cancellationNote string
	cancelledAt      *time.Time
}

// NewBookingParams describes a booking request.
type NewBookingParams struct {
	ConsumerID  uuid.UUID
	ProviderID  uuid.UUID
	Range       TimeRange
	Children    []uuid.UUID
	IsEmergency bool
	Recurrence  *RecurrenceRule
	// SeriesID groups the occurrences of one recurring request.
	SeriesID uuid.UUID
}

// NewBooking creates a PENDING booking. Admission is the caller's job; this
// only checks the request is well formed.
func NewBooking(p NewBookingParams, now time.Time) (*Booking, error) {
	if p.ConsumerID == uuid.Nil || p.ProviderID == uuid.Nil {
		return nil, fmt.Errorf("%w: consumer and provider are required", ErrInvalidBooking)
	}
	if p.ConsumerID == p.ProviderID {
		return nil, fmt.Errorf("%w: a provider cannot book themselves", ErrInvalidBooking)
	}
	if !p.Range.IsValid() {
		return nil, ErrInvalidRange
	}

	b := &Booking{
		BaseAggregateRoot: sharedDomain.NewBaseAggregateRoot(now),
		consumerID:        p.ConsumerID,
		providerID:        p.ProviderID,
		rng:               p.Range,
		status:            StatusPending,
		emergency:         p.IsEmergency,
		recurrence:        p.Recurrence,
		seriesID:          p.SeriesID,
		children:          dedupeIDs(p.Children),
	}
	b.Record(newBookingEvent(b, RoutingKeyBookingRequested, "", now))
	return b, nil
}

// BookingState is the persisted form of a booking.
type BookingState struct {
	ID               uuid.UUID
	ConsumerID       uuid.UUID
	ProviderID       uuid.UUID
	Start            time.Time
	End              time.Time
	Status           BookingStatus
	IsEmergency      bool
	Recurrence       *RecurrenceRule
	SeriesID         uuid.UUID
	Children         []uuid.UUID
	CancellationNote string
	CancelledAt      *time.Time
	Version          int
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// RehydrateBooking rebuilds a booking from storage without raising events.
func RehydrateBooking(s BookingState) *Booking {
	entity := sharedDomain.RehydrateBaseEntity(s.ID, s.CreatedAt, s.UpdatedAt)
	return &Booking{
		BaseAggregateRoot: sharedDomain.RehydrateBaseAggregateRoot(entity, s.Version),
		consumerID:        s.ConsumerID,
		providerID:        s.ProviderID,
		rng:               TimeRange{start: s.Start.UTC(), end: s.End.UTC()},
		status:            s.Status,
		emergency:         s.IsEmergency,
		recurrence:        s.Recurrence,
		seriesID:          s.SeriesID,
		children:          s.Children,
		cancellationNote:  s.CancellationNote,
		cancelledAt:       s.CancelledAt,
	}
}

func (b *Booking) ConsumerID() uuid.UUID       { return b.consumerID }
func (b *Booking) ProviderID() uuid.UUID       { return b.providerID }
func (b *Booking) Range() TimeRange            { return b.rng }
func (b *Booking) Status() BookingStatus       { return b.status }
func (b *Booking) IsEmergency() bool           { return b.emergency }
func (b *Booking) Recurrence() *RecurrenceRule { return b.recurrence }
func (b *Booking) SeriesID() uuid.UUID         { return b.seriesID }
func (b *Booking) CancellationNote() string    { return b.cancellationNote }
func (b *Booking) CancelledAt() *time.Time     { return b.cancelledAt }
func (b *Booking) Children() []uuid.UUID       { return slices.Clone(b.children) }

// RoleOf maps an actor to their role on this booking.
func (b *Booking) RoleOf(actorID uuid.UUID) (ActorRole, error) {
	switch actorID {
	case b.providerID:
		return RoleProvider, nil
	case b.consumerID:
		return RoleConsumer, nil
	default:
		return "", fmt.Errorf("%w: %s is not a party to booking %s", ErrUnauthorized, actorID, b.ID())
	}
}

// TransitionRequest asks for one state change.
type TransitionRequest struct {
	Action Action
	Role   ActorRole
	Note   string
	Now    time.Time
}

// Transition applies req and records the matching event. Accepting does not
// re-check availability here; the state machine service does that first.
func (b *Booking) Transition(req TransitionRequest, policy Policy) error {
	if err := CheckTransition(b.status, req.Action, req.Role); err != nil {
		return err
	}

	note := strings.TrimSpace(req.Note)
	previous := b.status
	var routingKey string

	switch req.Action {
	case ActionAccept:
		b.status = TargetStatus(previous, req.Action, false)
		routingKey = RoutingKeyBookingConfirmed

	case ActionDecline:
		if note == "" {
			return fmt.Errorf("%w to decline a booking", ErrNoteRequired)
		}
		b.status = TargetStatus(previous, req.Action, false)
		b.markCancelled(note, req.Now)
		routingKey = RoutingKeyBookingDeclined

	case ActionCancel:
		late := policy.IsLateCancellation(b.rng.Start(), req.Now)
		b.status = TargetStatus(previous, req.Action, late)
		b.markCancelled(note, req.Now)
		routingKey = RoutingKeyBookingCancelled

	case ActionComplete:
		if req.Now.Before(b.rng.End()) {
			return &TransitionError{
				From:   previous,
				Action: req.Action,
				Role:   req.Role,
				Detail: "booking has not ended yet",
				Err:    ErrIllegalTransition,
			}
		}
		b.status = TargetStatus(previous, req.Action, false)
		routingKey = RoutingKeyBookingCompleted
	}

	b.Touch(req.Now)
	b.Record(newBookingEvent(b, routingKey, previous, req.Now))
	return nil
}

func (b *Booking) markCancelled(note string, now time.Time) {
	at := now.UTC()
	b.cancelledAt = &at
	b.cancellationNote = note
}

func dedupeIDs(ids []uuid.UUID) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id != uuid.Nil && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}
