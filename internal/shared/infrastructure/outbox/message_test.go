package outbox

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/felixgeelhaar/nestly/internal/shared/domain"
	"github.com/felixgeelhaar/nestly/internal/shared/infrastructure/eventbus"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testEvent is a concrete implementation of DomainEvent for testing.
type testEvent struct {
	domain.BaseEvent
	Data string `json:"data"`
}

var testOccurredAt = time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)

func newTestEvent(aggregateID uuid.UUID, data string) *testEvent {
	return &testEvent{
		BaseEvent: domain.NewBaseEvent(aggregateID, "Booking", "scheduling.booking.requested", testOccurredAt),
		Data:      data,
	}
}

func TestNewMessage(t *testing.T) {
	t.Run("creates message from domain event", func(t *testing.T) {
		aggregateID := uuid.New()
		event := newTestEvent(aggregateID, "test data")

		msg, err := NewMessage(event)

		require.NoError(t, err)
		assert.Equal(t, event.EventID(), msg.EventID)
		assert.Equal(t, "Booking", msg.AggregateType)
		assert.Equal(t, aggregateID, msg.AggregateID)
		assert.Equal(t, "scheduling.booking.requested", msg.EventType)
		assert.Equal(t, "scheduling.booking.requested", msg.RoutingKey)
		assert.Equal(t, testOccurredAt, msg.CreatedAt)
		assert.Equal(t, int64(0), msg.ID)
		assert.False(t, msg.IsPublished())
		assert.Nil(t, msg.NextRetryAt)
	})

	t.Run("payload carries only the event fields", func(t *testing.T) {
		msg, err := NewMessage(newTestEvent(uuid.New(), "nap at 1pm"))

		require.NoError(t, err)
		assert.JSONEq(t, `{"data":"nap at 1pm"}`, string(msg.Payload))
	})

	t.Run("serializes event metadata to JSON", func(t *testing.T) {
		event := newTestEvent(uuid.New(), "test")
		metadata := domain.EventMetadata{
			CorrelationID: uuid.New(),
			CausationID:   uuid.New(),
			UserID:        uuid.New(),
		}
		event.SetMetadata(metadata)

		msg, err := NewMessage(event)

		require.NoError(t, err)
		decoded, err := msg.EventMetadata()
		require.NoError(t, err)
		assert.Equal(t, metadata, decoded)
	})
}

func TestNewMessages(t *testing.T) {
	events := []domain.DomainEvent{newTestEvent(uuid.New(), "a"), newTestEvent(uuid.New(), "b")}

	msgs, err := NewMessages(events)

	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, events[1].EventID(), msgs[1].EventID)
}

func TestMessage_Envelope(t *testing.T) {
	event := newTestEvent(uuid.New(), "hello")
	userID := uuid.New()
	correlationID := uuid.New()
	event.SetMetadata(domain.EventMetadata{CorrelationID: correlationID, UserID: userID})

	msg, err := NewMessage(event)
	require.NoError(t, err)

	body, err := msg.Envelope()
	require.NoError(t, err)

	decoded, err := eventbus.DecodeEnvelope(body, "")
	require.NoError(t, err)
	assert.Equal(t, event.EventID(), decoded.EventID)
	assert.Equal(t, event.AggregateID(), decoded.AggregateID)
	assert.Equal(t, "Booking", decoded.AggregateType)
	assert.Equal(t, "scheduling.booking.requested", decoded.RoutingKey)
	assert.True(t, testOccurredAt.Equal(decoded.OccurredAt))
	assert.Equal(t, userID, decoded.Metadata.UserID)
	assert.Equal(t, correlationID.String(), decoded.Metadata.CorrelationID)
	assert.Empty(t, decoded.Metadata.CausationID)

	var payload struct {
		Data string `json:"data"`
	}
	require.NoError(t, decoded.Decode(&payload))
	assert.Equal(t, "hello", payload.Data)
}

func TestMessage_EventMetadata(t *testing.T) {
	t.Run("missing metadata is the zero value", func(t *testing.T) {
		md, err := (&Message{}).EventMetadata()
		require.NoError(t, err)
		assert.Equal(t, domain.EventMetadata{}, md)
	})

	t.Run("corrupt metadata is an error", func(t *testing.T) {
		msg := &Message{EventID: uuid.New(), Metadata: json.RawMessage(`not json`)}

		_, err := msg.EventMetadata()
		require.Error(t, err)
		assert.Contains(t, err.Error(), msg.EventID.String())

		body, err := msg.Envelope()
		assert.Error(t, err)
		assert.Nil(t, body)
	})
}

func TestMessage_CanRetry(t *testing.T) {
	tests := []struct {
		retries, max int
		want         bool
	}{
		{0, 3, true},
		{2, 5, true},
		{5, 5, false},
		{10, 5, false},
		{0, 1, true},
		{0, 0, false},
	}
	for _, tt := range tests {
		msg := &Message{RetryCount: tt.retries}
		assert.Equal(t, tt.want, msg.CanRetry(tt.max), "retries=%d max=%d", tt.retries, tt.max)
	}
}
