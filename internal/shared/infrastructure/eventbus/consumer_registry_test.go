package eventbus_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/felixgeelhaar/nestly/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/nestly/pkg/observability"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockConsumer struct {
	eventTypes []string
	events     []*eventbus.ConsumedEvent
	err        error
}

func (m *mockConsumer) EventTypes() []string {
	return m.eventTypes
}

func (m *mockConsumer) Handle(ctx context.Context, event *eventbus.ConsumedEvent) error {
	m.events = append(m.events, event)
	return m.err
}

func TestConsumerRegistry_Register(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	registry := eventbus.NewConsumerRegistry(logger)

	consumer := &mockConsumer{
		eventTypes: []string{"scheduling.booking.requested", "scheduling.availability.declared"},
	}

	registry.Register(consumer)

	requestedConsumers := registry.GetConsumers("scheduling.booking.requested")
	assert.Len(t, requestedConsumers, 1)

	declaredConsumers := registry.GetConsumers("scheduling.availability.declared")
	assert.Len(t, declaredConsumers, 1)

	unknownConsumers := registry.GetConsumers("unknown.event.type")
	assert.Empty(t, unknownConsumers)
}

func TestConsumerRegistry_MultipleConsumers(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	registry := eventbus.NewConsumerRegistry(logger)

	consumer1 := &mockConsumer{
		eventTypes: []string{"scheduling.booking.requested"},
	}
	consumer2 := &mockConsumer{
		eventTypes: []string{"scheduling.booking.requested", "scheduling.booking.confirmed"},
	}

	registry.Register(consumer1)
	registry.Register(consumer2)

	requestedConsumers := registry.GetConsumers("scheduling.booking.requested")
	assert.Len(t, requestedConsumers, 2)

	confirmedConsumers := registry.GetConsumers("scheduling.booking.confirmed")
	assert.Len(t, confirmedConsumers, 1)
}

func TestConsumerRegistry_Dispatch(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	registry := eventbus.NewConsumerRegistry(logger)

	consumer := &mockConsumer{
		eventTypes: []string{"scheduling.booking.requested"},
	}
	registry.Register(consumer)

	event := &eventbus.ConsumedEvent{
		EventID:       uuid.New(),
		AggregateID:   uuid.New(),
		AggregateType: "Booking",
		RoutingKey:    "scheduling.booking.requested",
	}

	ctx := context.Background()
	err := registry.Dispatch(ctx, event)
	require.NoError(t, err)

	assert.Len(t, consumer.events, 1)
	assert.Equal(t, event.EventID, consumer.events[0].EventID)
}

func TestConsumerRegistry_DispatchToMultipleConsumers(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	registry := eventbus.NewConsumerRegistry(logger)

	consumer1 := &mockConsumer{
		eventTypes: []string{"scheduling.booking.requested"},
	}
	consumer2 := &mockConsumer{
		eventTypes: []string{"scheduling.booking.requested"},
	}

	registry.Register(consumer1)
	registry.Register(consumer2)

	event := &eventbus.ConsumedEvent{
		EventID:    uuid.New(),
		RoutingKey: "scheduling.booking.requested",
	}

	ctx := context.Background()
	err := registry.Dispatch(ctx, event)
	require.NoError(t, err)

	assert.Len(t, consumer1.events, 1)
	assert.Len(t, consumer2.events, 1)
}

func TestConsumerRegistry_DispatchNoConsumers(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	registry := eventbus.NewConsumerRegistry(logger)

	event := &eventbus.ConsumedEvent{
		EventID:    uuid.New(),
		RoutingKey: "unknown.event.type",
	}

	ctx := context.Background()
	err := registry.Dispatch(ctx, event)

	require.NoError(t, err)
}

func TestConsumerRegistry_DispatchConsumerError(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	registry := eventbus.NewConsumerRegistry(logger)

	expectedErr := errors.New("consumer error")
	consumer := &mockConsumer{
		eventTypes: []string{"scheduling.booking.requested"},
		err:        expectedErr,
	}
	registry.Register(consumer)

	event := &eventbus.ConsumedEvent{
		EventID:    uuid.New(),
		RoutingKey: "scheduling.booking.requested",
	}

	ctx := context.Background()
	err := registry.Dispatch(ctx, event)

	assert.ErrorIs(t, err, expectedErr)
	assert.Len(t, consumer.events, 1)
}

func TestConsumerRegistry_DispatchContinuesAfterError(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	registry := eventbus.NewConsumerRegistry(logger)

	// First consumer will error
	consumer1 := &mockConsumer{
		eventTypes: []string{"scheduling.booking.requested"},
		err:        errors.New("consumer 1 error"),
	}
	// Second consumer should still receive the event
	consumer2 := &mockConsumer{
		eventTypes: []string{"scheduling.booking.requested"},
	}

	registry.Register(consumer1)
	registry.Register(consumer2)

	event := &eventbus.ConsumedEvent{
		EventID:    uuid.New(),
		RoutingKey: "scheduling.booking.requested",
	}

	ctx := context.Background()
	err := registry.Dispatch(ctx, event)

	assert.EqualError(t, err, "consumer 1 error")
	// But both consumers should have received the event
	assert.Len(t, consumer1.events, 1)
	assert.Len(t, consumer2.events, 1)
}

func TestConsumerRegistry_GetAllEventTypes(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	registry := eventbus.NewConsumerRegistry(logger)

	consumer := &mockConsumer{
		eventTypes: []string{"scheduling.booking.requested", "scheduling.availability.declared"},
	}
	registry.Register(consumer)

	assert.Equal(t, []string{"scheduling.availability.declared", "scheduling.booking.requested"}, registry.GetAllEventTypes())
}

func TestConsumerRegistry_ConsumerCount(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	registry := eventbus.NewConsumerRegistry(logger)

	assert.Equal(t, 0, registry.ConsumerCount())

	consumer1 := &mockConsumer{
		eventTypes: []string{"scheduling.booking.requested"},
	}
	registry.Register(consumer1)
	assert.Equal(t, 1, registry.ConsumerCount())

	consumer2 := &mockConsumer{
		eventTypes: []string{"scheduling.booking.requested", "scheduling.booking.confirmed"},
	}
	registry.Register(consumer2)
	// consumer2 handles 2 event types, so count is 3
	assert.Equal(t, 3, registry.ConsumerCount())
}

func TestConsumerRegistry_RecordsConsumedMetric(t *testing.T) {
	registry := eventbus.NewConsumerRegistry(nil)
	metrics := observability.NewInMemoryMetrics()
	registry.SetMetrics(metrics)

	registry.Register(&mockConsumer{eventTypes: []string{"scheduling.booking.confirmed"}})
	registry.Register(&mockConsumer{eventTypes: []string{"scheduling.booking.confirmed"}, err: errors.New("smtp down")})

	_ = registry.Dispatch(context.Background(), &eventbus.ConsumedEvent{
		EventID:    uuid.New(),
		RoutingKey: "scheduling.booking.confirmed",
	})

	routing := observability.T("routing_key", "scheduling.booking.confirmed")
	assert.Equal(t, int64(1), metrics.CounterValue(observability.MetricEventsConsumed, routing, observability.T("result", "ok")))
	assert.Equal(t, int64(1), metrics.CounterValue(observability.MetricEventsConsumed, routing, observability.T("result", "error")))
}
