package commands_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/felixgeelhaar/nestly/internal/scheduling/application/commands"
	"github.com/felixgeelhaar/nestly/internal/scheduling/application/services"
	"github.com/felixgeelhaar/nestly/internal/scheduling/domain"
	"github.com/felixgeelhaar/nestly/internal/scheduling/infrastructure/idempotency"
	"github.com/felixgeelhaar/nestly/internal/scheduling/infrastructure/persistence"
	"github.com/felixgeelhaar/nestly/internal/shared/infrastructure/outbox"
	"github.com/felixgeelhaar/nestly/pkg/observability"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// June 3rd 2024 is a Monday.
func at(day, hour, minute int) time.Time {
	return time.Date(2024, 6, day, hour, minute, 0, 0, time.UTC)
}

type fixture struct {
	store    *persistence.MemoryStore
	outbox   *outbox.InMemoryRepository
	metrics  *observability.InMemoryMetrics
	idem     *idempotency.MemoryStore
	provider uuid.UUID
	consumer uuid.UUID
	now      time.Time
	policy   domain.Policy
	clock    domain.Clock

	resolver     *services.ConflictResolver
	expander     *services.RecurrenceExpander
	availability *services.AvailabilityStore

	request *commands.RequestBookingHandler
	respond *commands.RespondToBookingHandler
	cancel  *commands.CancelBookingHandler
	declare *commands.DeclareAvailabilityHandler
	retract *commands.RetractAvailabilityHandler
	sweep   *commands.SweepCompletionsHandler
	link    *commands.LinkCalendarRefHandler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:    persistence.NewMemoryStore(),
		outbox:   outbox.NewInMemoryRepository(),
		metrics:  observability.NewInMemoryMetrics(),
		idem:     idempotency.NewMemoryStore(time.Hour),
		provider: uuid.New(),
		consumer: uuid.New(),
		now:      at(1, 8, 0),
		policy:   domain.DefaultPolicy(),
	}
	clock := domain.ClockFunc(func() time.Time { return f.now })
	f.clock = clock
	uow := f.store.UnitOfWork()
	locker := f.store.Locker()

	ledger := services.NewBookingLedger(f.store.Bookings())
	availability := services.NewAvailabilityStore(f.store.Availability(), ledger, f.policy, clock, nil)
	resolver := services.NewConflictResolver(ledger, availability, f.policy, clock, nil)
	machine := services.NewBookingStateMachine(resolver, clock, nil)
	expander := services.NewRecurrenceExpander(f.policy)
	f.resolver, f.expander, f.availability = resolver, expander, availability

	f.request = commands.NewRequestBookingHandler(f.store.Bookings(), locker, resolver, expander, f.outbox, uow, f.idem, clock, f.metrics, nil)
	f.respond = commands.NewRespondToBookingHandler(f.store.Bookings(), locker, machine, f.outbox, uow, f.metrics, nil)
	f.cancel = commands.NewCancelBookingHandler(f.store.Bookings(), machine, f.outbox, uow, f.metrics, nil)
	f.declare = commands.NewDeclareAvailabilityHandler(availability, locker, expander, f.outbox, uow, f.policy, clock, nil)
	f.retract = commands.NewRetractAvailabilityHandler(availability, locker, f.outbox, uow, nil)
	f.sweep = commands.NewSweepCompletionsHandler(f.store.Bookings(), machine, f.outbox, uow, clock, f.metrics, nil)
	f.link = commands.NewLinkCalendarRefHandler(availability, uow, clock, nil)
	return f
}

func (f *fixture) book(t *testing.T, start, end time.Time) uuid.UUID {
	t.Helper()
	result, err := f.request.Handle(context.Background(), commands.RequestBookingCommand{
		ConsumerID: f.consumer,
		ProviderID: f.provider,
		Start:      start,
		End:        end,
	})
	require.NoError(t, err)
	require.Len(t, result.Booked, 1)
	return result.Booked[0].BookingID
}

func (f *fixture) confirm(t *testing.T, start, end time.Time) uuid.UUID {
	t.Helper()
	id := f.book(t, start, end)
	_, err := f.respond.Handle(context.Background(), commands.RespondToBookingCommand{
		BookingID: id,
		ActorID:   f.provider,
		Action:    domain.ActionAccept,
	})
	require.NoError(t, err)
	return id
}

func (f *fixture) available(t *testing.T, start, end time.Time) uuid.UUID {
	t.Helper()
	result, err := f.declare.Handle(context.Background(), commands.DeclareAvailabilityCommand{
		ProviderID: f.provider,
		Start:      start,
		End:        end,
		Kind:       domain.KindAvailable,
	})
	require.NoError(t, err)
	return result.BlockID
}

func weekly(t *testing.T, horizon time.Time, days ...time.Weekday) *domain.RecurrenceRule {
	t.Helper()
	rule, err := domain.NewRecurrenceRule(domain.FrequencyWeekly, days, horizon)
	require.NoError(t, err)
	return &rule
}

// failingOutbox fails the failOn-th SaveBatch call and delegates every other.
type failingOutbox struct {
	outbox.Repository
	failOn int
	err    error

	mu    sync.Mutex
	calls int
}

func (o *failingOutbox) SaveBatch(ctx context.Context, msgs []*outbox.Message) error {
	o.mu.Lock()
	o.calls++
	call := o.calls
	o.mu.Unlock()
	if call == o.failOn {
		return o.err
	}
	return o.Repository.SaveBatch(ctx, msgs)
}
