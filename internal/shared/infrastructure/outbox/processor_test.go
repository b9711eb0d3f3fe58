package outbox_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/felixgeelhaar/nestly/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/nestly/internal/shared/infrastructure/outbox"
	"github.com/felixgeelhaar/nestly/pkg/observability"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockPublisher is a test double for eventbus.Publisher
type mockPublisher struct {
	mu          sync.Mutex
	published   []publishedMessage
	failForKeys map[string]bool
}

type publishedMessage struct {
	RoutingKey string
	Payload    []byte
}

func newMockPublisher() *mockPublisher {
	return &mockPublisher{failForKeys: make(map[string]bool)}
}

func (p *mockPublisher) Publish(ctx context.Context, routingKey string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.failForKeys[routingKey] {
		return errors.New("publish failed")
	}
	p.published = append(p.published, publishedMessage{RoutingKey: routingKey, Payload: payload})
	return nil
}

func (p *mockPublisher) Close() error {
	return nil
}

func (p *mockPublisher) PublishedCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.published)
}

func createTestMessage(routingKey string) *outbox.Message {
	payload, _ := json.Marshal(map[string]string{"booking": "b-1"})
	return &outbox.Message{
		EventID:       uuid.New(),
		AggregateType: "Booking",
		AggregateID:   uuid.New(),
		EventType:     routingKey,
		RoutingKey:    routingKey,
		Payload:       payload,
		CreatedAt:     time.Now(),
	}
}

func TestProcessor_ProcessOnce_PublishesEnvelopes(t *testing.T) {
	repo := outbox.NewInMemoryRepository()
	publisher := newMockPublisher()
	processor := outbox.NewProcessor(repo, publisher, outbox.DefaultProcessorConfig(), nil)

	msg1 := createTestMessage("scheduling.booking.requested")
	msg2 := createTestMessage("scheduling.booking.confirmed")
	require.NoError(t, repo.SaveBatch(context.Background(), []*outbox.Message{msg1, msg2}))

	require.NoError(t, processor.ProcessOnce(context.Background()))

	require.Equal(t, 2, publisher.PublishedCount())
	first, err := eventbus.DecodeEnvelope(publisher.published[0].Payload, "")
	require.NoError(t, err)
	assert.Equal(t, msg1.EventID, first.EventID)
	assert.Equal(t, msg1.AggregateID, first.AggregateID)
	assert.JSONEq(t, `{"booking":"b-1"}`, string(first.Payload))

	assert.True(t, msg1.IsPublished())
	assert.True(t, msg2.IsPublished())

	stats := processor.GetStats()
	assert.Equal(t, uint64(2), stats.PublishedCount)
	assert.NotNil(t, stats.LastProcessedAt)
	assert.NotNil(t, stats.OldestMessageAt)
	assert.GreaterOrEqual(t, stats.LagSeconds, 0.0)

	// Nothing is published twice.
	require.NoError(t, processor.ProcessOnce(context.Background()))
	assert.Equal(t, 2, publisher.PublishedCount())
}

func TestProcessor_ProcessOnce_PublishFailure(t *testing.T) {
	repo := outbox.NewInMemoryRepository()
	publisher := newMockPublisher()
	publisher.failForKeys["scheduling.booking.declined"] = true
	metrics := observability.NewInMemoryMetrics()
	processor := outbox.NewProcessor(repo, publisher, outbox.DefaultProcessorConfig(), nil)
	processor.SetMetrics(metrics)

	ok := createTestMessage("scheduling.booking.confirmed")
	failing := createTestMessage("scheduling.booking.declined")
	require.NoError(t, repo.SaveBatch(context.Background(), []*outbox.Message{ok, failing}))

	before := time.Now()
	require.NoError(t, processor.ProcessOnce(context.Background()))

	assert.Equal(t, 1, publisher.PublishedCount())
	assert.True(t, ok.IsPublished())
	assert.False(t, failing.IsPublished())
	assert.Equal(t, 1, failing.RetryCount)
	require.NotNil(t, failing.LastError)
	assert.Equal(t, "publish failed", *failing.LastError)
	require.NotNil(t, failing.NextRetryAt)
	assert.True(t, failing.NextRetryAt.After(before))

	// Backed off messages are not due yet.
	pending, err := repo.GetUnpublished(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	stats := processor.GetStats()
	assert.Equal(t, uint64(1), stats.PublishedCount)
	assert.Equal(t, uint64(1), stats.FailedCount)
	assert.NotNil(t, stats.LastErrorAt)

	assert.Equal(t, int64(1), metrics.CounterValue(observability.MetricEventsPublished,
		observability.T("routing_key", "scheduling.booking.confirmed"), observability.T("result", "ok")))
	assert.Equal(t, int64(1), metrics.CounterValue(observability.MetricEventsPublished,
		observability.T("routing_key", "scheduling.booking.declined"), observability.T("result", "error")))
}

func TestProcessor_ProcessOnce_DeadLettersAfterMaxRetries(t *testing.T) {
	repo := outbox.NewInMemoryRepository()
	publisher := newMockPublisher()
	publisher.failForKeys["scheduling.booking.cancelled"] = true
	config := outbox.DefaultProcessorConfig()
	config.MaxRetries = 1
	processor := outbox.NewProcessor(repo, publisher, config, nil)

	msg := createTestMessage("scheduling.booking.cancelled")
	require.NoError(t, repo.Save(context.Background(), msg))

	require.NoError(t, processor.ProcessOnce(context.Background()))

	assert.Equal(t, 0, publisher.PublishedCount())
	assert.NotNil(t, msg.DeadLetteredAt)
	assert.Equal(t, 0, msg.RetryCount)
	assert.Equal(t, uint64(1), processor.GetStats().DeadCount)
}

func TestProcessor_RetryBackoffGrowsAndCaps(t *testing.T) {
	repo := outbox.NewInMemoryRepository()
	publisher := newMockPublisher()
	publisher.failForKeys["scheduling.booking.requested"] = true
	config := outbox.DefaultProcessorConfig()
	config.MaxRetries = 100
	config.RetryBackoffBase = time.Second
	config.RetryBackoffMax = 4 * time.Second
	processor := outbox.NewProcessor(repo, publisher, config, nil)

	msg := createTestMessage("scheduling.booking.requested")
	require.NoError(t, repo.Save(context.Background(), msg))

	var delays []time.Duration
	for range 4 {
		msg.NextRetryAt = nil
		start := time.Now()
		require.NoError(t, processor.ProcessOnce(context.Background()))
		require.NotNil(t, msg.NextRetryAt)
		delays = append(delays, msg.NextRetryAt.Sub(start).Round(time.Second))
	}

	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 4 * time.Second}, delays)
}

func TestProcessor_Cleanup(t *testing.T) {
	repo := outbox.NewInMemoryRepository()
	config := outbox.DefaultProcessorConfig()
	config.RetentionDays = 7
	processor := outbox.NewProcessor(repo, newMockPublisher(), config, nil)

	old := createTestMessage("scheduling.booking.completed")
	fresh := createTestMessage("scheduling.booking.completed")
	unpublished := createTestMessage("scheduling.booking.completed")
	require.NoError(t, repo.SaveBatch(context.Background(), []*outbox.Message{old, fresh, unpublished}))

	longAgo := time.Now().AddDate(0, 0, -8)
	recently := time.Now().Add(-time.Hour)
	old.PublishedAt = &longAgo
	fresh.PublishedAt = &recently

	deleted, err := processor.Cleanup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
	assert.Len(t, repo.Messages(), 2)

	config.RetentionDays = 0
	keepAll := outbox.NewProcessor(repo, newMockPublisher(), config, nil)
	deleted, err = keepAll.Cleanup(context.Background())
	require.NoError(t, err)
	assert.Zero(t, deleted)
}

func TestProcessor_StartStop(t *testing.T) {
	repo := outbox.NewInMemoryRepository()
	publisher := newMockPublisher()
	config := outbox.ProcessorConfig{
		PollInterval:     10 * time.Millisecond,
		BatchSize:        10,
		MaxRetries:       3,
		RetryBackoffBase: 1 * time.Millisecond,
		RetryBackoffMax:  10 * time.Millisecond,
	}
	processor := outbox.NewProcessor(repo, publisher, config, nil)

	require.NoError(t, processor.Start(context.Background()))
	assert.True(t, processor.IsRunning())
	assert.True(t, processor.GetStats().IsRunning)

	require.NoError(t, repo.Save(context.Background(), createTestMessage("scheduling.booking.requested")))

	assert.Eventually(t, func() bool { return publisher.PublishedCount() == 1 }, time.Second, 5*time.Millisecond)

	processor.Stop()
	assert.False(t, processor.IsRunning())
}

func TestProcessor_StartAndStopAreIdempotent(t *testing.T) {
	processor := outbox.NewProcessor(outbox.NewInMemoryRepository(), newMockPublisher(), outbox.DefaultProcessorConfig(), nil)

	require.NoError(t, processor.Start(context.Background()))
	require.NoError(t, processor.Start(context.Background()))

	processor.Stop()
	processor.Stop()
	assert.False(t, processor.GetStats().IsRunning)
}
