package subscribers_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/felixgeelhaar/nestly/internal/calendar/application"
	"github.com/felixgeelhaar/nestly/internal/calendar/application/subscribers"
	calendarDomain "github.com/felixgeelhaar/nestly/internal/calendar/domain"
	"github.com/felixgeelhaar/nestly/internal/calendar/infrastructure/persistence"
	schedulingDomain "github.com/felixgeelhaar/nestly/internal/scheduling/domain"
	"github.com/felixgeelhaar/nestly/internal/shared/infrastructure/eventbus"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	op    string
	entry calendarDomain.Entry
}

type recordingAdapter struct {
	calls []call
}

func (a *recordingAdapter) PushEvent(_ context.Context, entry calendarDomain.Entry) (string, error) {
	a.calls = append(a.calls, call{op: "push", entry: entry})
	return "/cal/" + entry.UID.String() + ".ics", nil
}

func (a *recordingAdapter) DeleteEvent(_ context.Context, entry calendarDomain.Entry) error {
	a.calls = append(a.calls, call{op: "delete", entry: entry})
	return nil
}

func newSubscriber(adapter *recordingAdapter) *subscribers.CalendarSyncSubscriber {
	svc := application.NewSyncService(adapter, persistence.NewMemoryFailureRepository(), nil, calendarDomain.DefaultBackoff(), nil, nil)
	return subscribers.NewCalendarSyncSubscriber(svc, nil)
}

func consumed(t *testing.T, routingKey string, payload any) *eventbus.ConsumedEvent {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	return &eventbus.ConsumedEvent{EventID: uuid.New(), RoutingKey: routingKey, Payload: body}
}

var start = time.Date(2024, 6, 3, 10, 0, 0, 0, time.UTC)

func TestCalendarSyncSubscriber_EventTypes(t *testing.T) {
	types := newSubscriber(&recordingAdapter{}).EventTypes()
	assert.ElementsMatch(t, []string{
		"scheduling.booking.confirmed",
		"scheduling.booking.cancelled",
		"scheduling.availability.declared",
		"scheduling.availability.retracted",
	}, types)
}

func TestCalendarSyncSubscriber_Bookings(t *testing.T) {
	ctx := context.Background()
	adapter := &recordingAdapter{}
	sub := newSubscriber(adapter)
	booking := schedulingDomain.BookingEvent{
		BookingID:   uuid.New(),
		ProviderID:  uuid.New(),
		ConsumerID:  uuid.New(),
		Start:       start,
		End:         start.Add(2 * time.Hour),
		Status:      schedulingDomain.StatusConfirmed,
		IsEmergency: true,
		Children:    []uuid.UUID{uuid.New()},
	}

	require.NoError(t, sub.Handle(ctx, consumed(t, schedulingDomain.RoutingKeyBookingConfirmed, booking)))
	require.Len(t, adapter.calls, 1)
	assert.Equal(t, "push", adapter.calls[0].op)
	assert.Equal(t, booking.BookingID, adapter.calls[0].entry.UID)
	assert.Equal(t, calendarDomain.EntryBooking, adapter.calls[0].entry.Kind)
	assert.Equal(t, "Emergency childcare booking (1 child)", adapter.calls[0].entry.Summary)

	pending := booking
	pending.Status = schedulingDomain.StatusCancelled
	pending.PreviousStatus = schedulingDomain.StatusPending
	require.NoError(t, sub.Handle(ctx, consumed(t, schedulingDomain.RoutingKeyBookingCancelled, pending)))
	assert.Len(t, adapter.calls, 1, "pending bookings were never pushed")

	cancelled := booking
	cancelled.Status = schedulingDomain.StatusLateCancelled
	cancelled.PreviousStatus = schedulingDomain.StatusConfirmed
	require.NoError(t, sub.Handle(ctx, consumed(t, schedulingDomain.RoutingKeyBookingCancelled, cancelled)))
	require.Len(t, adapter.calls, 2)
	assert.Equal(t, "delete", adapter.calls[1].op)
}

func TestCalendarSyncSubscriber_Availability(t *testing.T) {
	ctx := context.Background()
	adapter := &recordingAdapter{}
	sub := newSubscriber(adapter)
	block := schedulingDomain.AvailabilityEvent{
		BlockID:    uuid.New(),
		ProviderID: uuid.New(),
		Date:       "2024-06-03",
		Start:      start,
		End:        start.Add(8 * time.Hour),
		Kind:       schedulingDomain.KindUnavailable,
	}

	require.NoError(t, sub.Handle(ctx, consumed(t, schedulingDomain.RoutingKeyAvailabilityDeclared, block)))

	block.ExternalCalendarRef = "/cal/stored.ics"
	require.NoError(t, sub.Handle(ctx, consumed(t, schedulingDomain.RoutingKeyAvailabilityRetracted, block)))

	require.Len(t, adapter.calls, 2)
	assert.Equal(t, calendarDomain.EntryUnavailable, adapter.calls[0].entry.Kind)
	assert.Equal(t, "delete", adapter.calls[1].op)
	assert.Equal(t, "/cal/stored.ics", adapter.calls[1].entry.Ref)
}

func TestCalendarSyncSubscriber_DisabledAndBadPayload(t *testing.T) {
	ctx := context.Background()
	adapter := &recordingAdapter{}
	sub := newSubscriber(adapter)

	bad := &eventbus.ConsumedEvent{EventID: uuid.New(), RoutingKey: schedulingDomain.RoutingKeyBookingConfirmed, Payload: []byte("{")}
	assert.NoError(t, sub.Handle(ctx, bad))

	sub.SetEnabled(false)
	event := consumed(t, schedulingDomain.RoutingKeyAvailabilityDeclared, schedulingDomain.AvailabilityEvent{BlockID: uuid.New()})
	assert.NoError(t, sub.Handle(ctx, event))
	assert.Empty(t, adapter.calls)
}
