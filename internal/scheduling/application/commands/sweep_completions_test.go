package commands_test

import (
	"context"
	"testing"

	"github.com/felixgeelhaar/nestly/internal/scheduling/application/commands"
	"github.com/felixgeelhaar/nestly/internal/scheduling/domain"
	"github.com/felixgeelhaar/nestly/pkg/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweepCompletions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	done := f.confirm(t, at(3, 10, 0), at(3, 12, 0))
	later := f.confirm(t, at(3, 14, 0), at(3, 16, 0))
	pending := f.book(t, at(3, 8, 0), at(3, 9, 0))

	result, err := f.sweep.Handle(ctx, commands.SweepCompletionsCommand{Now: at(3, 12, 0), BatchSize: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Completed)
	assert.Zero(t, result.Failed)

	stored, err := f.store.Bookings().FindByID(ctx, done)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, stored.Status())
	stored, err = f.store.Bookings().FindByID(ctx, later)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, stored.Status())
	stored, err = f.store.Bookings().FindByID(ctx, pending)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, stored.Status())

	f.now = at(4, 0, 0)
	result, err = f.sweep.Handle(ctx, commands.SweepCompletionsCommand{BatchSize: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Completed)
	assert.Equal(t, int64(2), f.metrics.CounterValue(observability.MetricBookingsCompleted))

	result, err = f.sweep.Handle(ctx, commands.SweepCompletionsCommand{})
	require.NoError(t, err)
	assert.Zero(t, result.Completed)
}
