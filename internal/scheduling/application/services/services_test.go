package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/felixgeelhaar/nestly/internal/scheduling/application/services"
	"github.com/felixgeelhaar/nestly/internal/scheduling/domain"
	"github.com/felixgeelhaar/nestly/internal/scheduling/infrastructure/persistence"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// June 3rd 2024 is a Monday.
func at(day, hour, minute int) time.Time {
	return time.Date(2024, 6, day, hour, minute, 0, 0, time.UTC)
}

func mustRange(t *testing.T, start, end time.Time) domain.TimeRange {
	t.Helper()
	rng, err := domain.NewTimeRange(start, end)
	require.NoError(t, err)
	return rng
}

type fixture struct {
	store        *persistence.MemoryStore
	ledger       *services.BookingLedger
	availability *services.AvailabilityStore
	resolver     *services.ConflictResolver
	machine      *services.BookingStateMachine
	provider     uuid.UUID
	now          time.Time
	policy       domain.Policy
}

func newFixture(t *testing.T, mutate ...func(*domain.Policy)) *fixture {
	t.Helper()
	policy := domain.DefaultPolicy()
	for _, m := range mutate {
		m(&policy)
	}

	f := &fixture{
		store:    persistence.NewMemoryStore(),
		provider: uuid.New(),
		now:      at(1, 8, 0),
		policy:   policy,
	}
	clock := domain.ClockFunc(func() time.Time { return f.now })
	f.ledger = services.NewBookingLedger(f.store.Bookings())
	f.availability = services.NewAvailabilityStore(f.store.Availability(), f.ledger, policy, clock, nil)
	f.resolver = services.NewConflictResolver(f.ledger, f.availability, policy, clock, nil)
	f.machine = services.NewBookingStateMachine(f.resolver, clock, nil)
	return f
}

func (f *fixture) declare(t *testing.T, kind domain.AvailabilityKind, start, end time.Time) uuid.UUID {
	t.Helper()
	block, err := domain.NewAvailabilityBlock(domain.NewAvailabilityBlockParams{
		ProviderID: f.provider,
		Range:      mustRange(t, start, end),
		Kind:       kind,
	}, f.policy.Loc(), f.now)
	require.NoError(t, err)
	id, err := f.availability.AddBlock(context.Background(), block)
	require.NoError(t, err)
	return id
}

func (f *fixture) book(t *testing.T, start, end time.Time) *domain.Booking {
	t.Helper()
	b, err := domain.NewBooking(domain.NewBookingParams{
		ConsumerID: uuid.New(),
		ProviderID: f.provider,
		Range:      mustRange(t, start, end),
	}, f.now)
	require.NoError(t, err)
	require.NoError(t, f.store.Bookings().Save(context.Background(), b))
	b.PullEvents()
	return b
}

func (f *fixture) admit(t *testing.T, start, end time.Time) domain.Admission {
	t.Helper()
	admission, err := f.resolver.Admit(context.Background(), services.AdmitRequest{
		ProviderID: f.provider,
		Range:      mustRange(t, start, end),
	})
	require.NoError(t, err)
	return admission
}
