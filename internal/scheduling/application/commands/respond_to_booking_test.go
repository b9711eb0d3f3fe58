package commands_test

import (
	"context"
	"testing"

	"github.com/felixgeelhaar/nestly/internal/scheduling/application/commands"
	"github.com/felixgeelhaar/nestly/internal/scheduling/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRespondToBooking(t *testing.T) {
	ctx := context.Background()

	t.Run("provider accepts", func(t *testing.T) {
		f := newFixture(t)
		id := f.book(t, at(3, 10, 0), at(3, 12, 0))

		booking, err := f.respond.Handle(ctx, commands.RespondToBookingCommand{BookingID: id, ActorID: f.provider, Action: domain.ActionAccept})
		require.NoError(t, err)
		assert.Equal(t, domain.StatusConfirmed, booking.Status())
		assert.Equal(t, []string{domain.RoutingKeyBookingRequested, domain.RoutingKeyBookingConfirmed}, f.outbox.RoutingKeys())
	})

	t.Run("decline needs a note", func(t *testing.T) {
		f := newFixture(t)
		id := f.book(t, at(3, 10, 0), at(3, 12, 0))

		_, err := f.respond.Handle(ctx, commands.RespondToBookingCommand{BookingID: id, ActorID: f.provider, Action: domain.ActionDecline})
		require.ErrorIs(t, err, domain.ErrNoteRequired)

		booking, err := f.respond.Handle(ctx, commands.RespondToBookingCommand{
			BookingID: id, ActorID: f.provider, Action: domain.ActionDecline, Note: "fully booked that week",
		})
		require.NoError(t, err)
		assert.Equal(t, domain.StatusCancelled, booking.Status())
		assert.Equal(t, "fully booked that week", booking.CancellationNote())
	})

	t.Run("only the provider responds", func(t *testing.T) {
		f := newFixture(t)
		id := f.book(t, at(3, 10, 0), at(3, 12, 0))

		_, err := f.respond.Handle(ctx, commands.RespondToBookingCommand{BookingID: id, ActorID: f.consumer, Action: domain.ActionAccept})
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})

	t.Run("unknown booking", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.respond.Handle(ctx, commands.RespondToBookingCommand{BookingID: uuid.New(), ActorID: f.provider, Action: domain.ActionAccept})
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("no longer available", func(t *testing.T) {
		f := newFixture(t)
		id := f.book(t, at(3, 10, 0), at(3, 12, 0))
		f.now = at(3, 11, 0)

		_, err := f.respond.Handle(ctx, commands.RespondToBookingCommand{BookingID: id, ActorID: f.provider, Action: domain.ActionAccept})
		require.ErrorIs(t, err, domain.ErrNoLongerAvailable)
		assert.ErrorIs(t, err, domain.ErrPastStart)

		stored, err := f.store.Bookings().FindByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusPending, stored.Status())
	})

	t.Run("accepting twice is illegal", func(t *testing.T) {
		f := newFixture(t)
		id := f.confirm(t, at(3, 10, 0), at(3, 12, 0))

		_, err := f.respond.Handle(ctx, commands.RespondToBookingCommand{BookingID: id, ActorID: f.provider, Action: domain.ActionAccept})
		assert.ErrorIs(t, err, domain.ErrIllegalTransition)
	})

	t.Run("respond only takes accept or decline", func(t *testing.T) {
		f := newFixture(t)
		id := f.book(t, at(3, 10, 0), at(3, 12, 0))

		_, err := f.respond.Handle(ctx, commands.RespondToBookingCommand{BookingID: id, ActorID: f.provider, Action: domain.ActionCancel})
		assert.ErrorIs(t, err, domain.ErrIllegalTransition)
	})
}
