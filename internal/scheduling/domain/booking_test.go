package domain_test

import (
	"testing"
	"time"

	"github.com/felixgeelhaar/nestly/internal/scheduling/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPendingBooking(t *testing.T, rng domain.TimeRange) *domain.Booking {
	t.Helper()
	b, err := domain.NewBooking(domain.NewBookingParams{
		ConsumerID: uuid.New(),
		ProviderID: uuid.New(),
		Range:      rng,
		Children:   []uuid.UUID{uuid.New()},
	}, at(7, 0))
	require.NoError(t, err)
	b.PullEvents()
	return b
}

func confirm(t *testing.T, b *domain.Booking, now time.Time) {
	t.Helper()
	require.NoError(t, b.Transition(domain.TransitionRequest{Action: domain.ActionAccept, Role: domain.RoleProvider, Now: now}, domain.DefaultPolicy()))
	b.PullEvents()
}

func TestNewBooking(t *testing.T) {
	rng := mustRange(t, at(10, 0), at(12, 0))
	child := uuid.New()

	b, err := domain.NewBooking(domain.NewBookingParams{
		ConsumerID: uuid.New(),
		ProviderID: uuid.New(),
		Range:      rng,
		Children:   []uuid.UUID{child, child, uuid.Nil},
	}, at(7, 0))
	require.NoError(t, err)

	assert.Equal(t, domain.StatusPending, b.Status())
	assert.Equal(t, []uuid.UUID{child}, b.Children())
	events := b.PullEvents()
	require.Len(t, events, 1)
	assert.Equal(t, domain.RoutingKeyBookingRequested, events[0].RoutingKey())
}

func TestNewBooking_Invalid(t *testing.T) {
	provider := uuid.New()
	rng := mustRange(t, at(10, 0), at(12, 0))

	_, err := domain.NewBooking(domain.NewBookingParams{ConsumerID: uuid.New(), ProviderID: provider}, at(7, 0))
	assert.ErrorIs(t, err, domain.ErrInvalidRange)

	_, err = domain.NewBooking(domain.NewBookingParams{ConsumerID: provider, ProviderID: provider, Range: rng}, at(7, 0))
	assert.ErrorIs(t, err, domain.ErrInvalidBooking)

	_, err = domain.NewBooking(domain.NewBookingParams{ProviderID: provider, Range: rng}, at(7, 0))
	assert.ErrorIs(t, err, domain.ErrInvalidBooking)
}

func TestBooking_Accept(t *testing.T) {
	b := newPendingBooking(t, mustRange(t, at(10, 0), at(12, 0)))

	err := b.Transition(domain.TransitionRequest{Action: domain.ActionAccept, Role: domain.RoleProvider, Now: at(8, 0)}, domain.DefaultPolicy())
	require.NoError(t, err)

	assert.Equal(t, domain.StatusConfirmed, b.Status())
	events := b.PullEvents()
	require.Len(t, events, 1)
	event := events[0].(*domain.BookingEvent)
	assert.Equal(t, domain.RoutingKeyBookingConfirmed, event.RoutingKey())
	assert.Equal(t, domain.StatusPending, event.PreviousStatus)
	assert.Equal(t, domain.StatusConfirmed, event.Status)
}

func TestBooking_DeclineRequiresNote(t *testing.T) {
	b := newPendingBooking(t, mustRange(t, at(10, 0), at(12, 0)))

	err := b.Transition(domain.TransitionRequest{Action: domain.ActionDecline, Role: domain.RoleProvider, Note: "   ", Now: at(8, 0)}, domain.DefaultPolicy())
	assert.ErrorIs(t, err, domain.ErrNoteRequired)
	assert.Equal(t, domain.StatusPending, b.Status())
	assert.Empty(t, b.DomainEvents())

	err = b.Transition(domain.TransitionRequest{Action: domain.ActionDecline, Role: domain.RoleProvider, Note: "fully booked", Now: at(8, 0)}, domain.DefaultPolicy())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, b.Status())
	assert.Equal(t, "fully booked", b.CancellationNote())
	require.NotNil(t, b.CancelledAt())
	assert.Equal(t, at(8, 0), *b.CancelledAt())
}

func TestBooking_CancelLateBoundary(t *testing.T) {
	start := time.Date(2024, 6, 4, 10, 0, 0, 0, time.UTC)
	rng := mustRange(t, start, start.Add(2*time.Hour))

	tests := []struct {
		name    string
		confirm bool
		now     time.Time
		want    domain.BookingStatus
	}{
		{"confirmed exactly 24h before", true, start.Add(-24 * time.Hour), domain.StatusCancelled},
		{"confirmed 23h59m before", true, start.Add(-(23*time.Hour + 59*time.Minute)), domain.StatusLateCancelled},
		{"confirmed 2h before", true, start.Add(-2 * time.Hour), domain.StatusLateCancelled},
		{"confirmed 3 days before", true, start.Add(-72 * time.Hour), domain.StatusCancelled},
		{"pending 1h before", false, start.Add(-time.Hour), domain.StatusCancelled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newPendingBooking(t, rng)
			if tt.confirm {
				confirm(t, b, start.Add(-96*time.Hour))
			}

			err := b.Transition(domain.TransitionRequest{Action: domain.ActionCancel, Role: domain.RoleConsumer, Now: tt.now}, domain.DefaultPolicy())
			require.NoError(t, err)

			assert.Equal(t, tt.want, b.Status())
			require.NotNil(t, b.CancelledAt())
			events := b.PullEvents()
			require.Len(t, events, 1)
			assert.Equal(t, domain.RoutingKeyBookingCancelled, events[0].RoutingKey())
		})
	}
}

func TestBooking_CompleteOnlyAfterEnd(t *testing.T) {
	b := newPendingBooking(t, mustRange(t, at(10, 0), at(12, 0)))
	confirm(t, b, at(8, 0))

	err := b.Transition(domain.TransitionRequest{Action: domain.ActionComplete, Role: domain.RoleSystem, Now: at(11, 59)}, domain.DefaultPolicy())
	assert.ErrorIs(t, err, domain.ErrIllegalTransition)
	assert.Equal(t, domain.StatusConfirmed, b.Status())

	err = b.Transition(domain.TransitionRequest{Action: domain.ActionComplete, Role: domain.RoleSystem, Now: at(12, 0)}, domain.DefaultPolicy())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, b.Status())
}

func TestBooking_IllegalTransitionsLeaveStateAlone(t *testing.T) {
	b := newPendingBooking(t, mustRange(t, at(10, 0), at(12, 0)))
	require.NoError(t, b.Transition(domain.TransitionRequest{Action: domain.ActionCancel, Role: domain.RoleConsumer, Now: at(8, 0)}, domain.DefaultPolicy()))
	b.PullEvents()

	err := b.Transition(domain.TransitionRequest{Action: domain.ActionAccept, Role: domain.RoleProvider, Now: at(8, 30)}, domain.DefaultPolicy())

	var te *domain.TransitionError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, domain.StatusCancelled, te.From)
	assert.ErrorIs(t, err, domain.ErrIllegalTransition)
	assert.Equal(t, domain.StatusCancelled, b.Status())
	assert.Empty(t, b.DomainEvents())
}

func TestBooking_RoleOf(t *testing.T) {
	b := newPendingBooking(t, mustRange(t, at(10, 0), at(12, 0)))

	role, err := b.RoleOf(b.ProviderID())
	require.NoError(t, err)
	assert.Equal(t, domain.RoleProvider, role)

	role, err = b.RoleOf(b.ConsumerID())
	require.NoError(t, err)
	assert.Equal(t, domain.RoleConsumer, role)

	_, err = b.RoleOf(uuid.New())
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestRehydrateBooking(t *testing.T) {
	id := uuid.New()
	cancelledAt := at(9, 0)
	b := domain.RehydrateBooking(domain.BookingState{
		ID:          id,
		ConsumerID:  uuid.New(),
		ProviderID:  uuid.New(),
		Start:       at(10, 0),
		End:         at(12, 0),
		Status:      domain.StatusLateCancelled,
		CancelledAt: &cancelledAt,
		Version:     3,
		CreatedAt:   at(7, 0),
		UpdatedAt:   at(9, 0),
	})

	assert.Equal(t, id, b.ID())
	assert.Equal(t, domain.StatusLateCancelled, b.Status())
	assert.Equal(t, 3, b.Version())
	assert.Equal(t, 2*time.Hour, b.Range().Duration())
	assert.Empty(t, b.DomainEvents())
}
