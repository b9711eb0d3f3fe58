package eventbus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/felixgeelhaar/nestly/pkg/observability"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel/attribute"
)

// DefaultConsumerQueueName is the worker queue when none is configured.
const DefaultConsumerQueueName = "nestly.worker"

// ErrConsumerRunning is returned by a second Start.
var ErrConsumerRunning = errors.New("consumer already running")

// RabbitMQConsumerConfig configures the RabbitMQ consumer.
type RabbitMQConsumerConfig struct {
	URL       string
	QueueName string
	Exchange  string
	Logger    *slog.Logger
}

// RabbitMQConsumer feeds deliveries from one durable queue into a
// ConsumerRegistry. Deliveries that fail twice go to the queue's dead-letter
// queue (<queue>.dead) instead of cycling forever.
type RabbitMQConsumer struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	queue    string
	exchange string
	registry *ConsumerRegistry
	logger   *slog.Logger

	mu      sync.Mutex
	bound   map[string]bool
	running bool
	done    chan struct{}
	closed  bool
}

// NewRabbitMQConsumer connects and declares the exchange, the work queue and
// its dead-letter pair. Routing keys are bound when Start runs.
func NewRabbitMQConsumer(cfg RabbitMQConsumerConfig, registry *ConsumerRegistry) (*RabbitMQConsumer, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.QueueName == "" {
		cfg.QueueName = DefaultConsumerQueueName
	}
	if cfg.Exchange == "" {
		cfg.Exchange = ExchangeName
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	if err := declareTopology(ch, cfg.Exchange, cfg.QueueName); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}

	cfg.Logger.Info("RabbitMQ consumer connected", "queue", cfg.QueueName, "exchange", cfg.Exchange)

	return &RabbitMQConsumer{
		conn:     conn,
		channel:  ch,
		queue:    cfg.QueueName,
		exchange: cfg.Exchange,
		registry: registry,
		logger:   cfg.Logger,
		bound:    make(map[string]bool),
		done:     make(chan struct{}),
	}, nil
}

// deadLetterName is where rejected deliveries of queue end up.
func deadLetterName(queue string) string {
	return queue + ".dead"
}

func declareTopology(ch *amqp.Channel, exchange, queue string) error {
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	dead := deadLetterName(queue)
	if err := ch.ExchangeDeclare(dead, "fanout", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare dead-letter exchange: %w", err)
	}
	if _, err := ch.QueueDeclare(dead, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare dead-letter queue: %w", err)
	}
	if err := ch.QueueBind(dead, "", dead, false, nil); err != nil {
		return fmt.Errorf("failed to bind dead-letter queue: %w", err)
	}

	args := amqp.Table{"x-dead-letter-exchange": dead}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, args); err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}
	return nil
}

// RegisterConsumer adds consumer to the registry. Its routing keys are bound
// immediately when the consumer is already running.
func (c *RabbitMQConsumer) RegisterConsumer(consumer EventConsumer) {
	c.registry.Register(consumer)

	c.mu.Lock()
	running := c.running
	c.mu.Unlock()
	if !running {
		return
	}
	for _, key := range consumer.EventTypes() {
		if err := c.bind(key); err != nil {
			c.logger.Error("failed to bind routing key", "routing_key", key, "error", err)
		}
	}
}

func (c *RabbitMQConsumer) bind(routingKey string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.bound[routingKey] {
		return nil
	}
	if err := c.channel.QueueBind(c.queue, routingKey, c.exchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue: %w", err)
	}
	c.bound[routingKey] = true
	c.logger.Debug("bound routing key", "queue", c.queue, "routing_key", routingKey)
	return nil
}

// Start binds every routing key in the registry and blocks, dispatching one
// delivery at a time until ctx is done or Close is called.
func (c *RabbitMQConsumer) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return ErrConsumerRunning
	}
	c.running = true
	c.mu.Unlock()

	for _, key := range c.registry.GetAllEventTypes() {
		if err := c.bind(key); err != nil {
			return err
		}
	}

	if err := c.channel.Qos(1, 0, false); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}
	deliveries, err := c.channel.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	c.logger.Info("started consuming events", "queue", c.queue, "routing_keys", len(c.bound))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.done:
			return nil
		case msg, ok := <-deliveries:
			if !ok {
				return errors.New("delivery channel closed unexpectedly")
			}
			c.settle(msg, c.processMessage(ctx, msg))
		}
	}
}

// settle acks a handled delivery. A failed first delivery is requeued once; a
// failed redelivery is rejected into the dead-letter queue.
func (c *RabbitMQConsumer) settle(msg amqp.Delivery, handleErr error) {
	var err error
	switch {
	case handleErr == nil:
		err = msg.Ack(false)
	case msg.Redelivered:
		c.logger.Warn("dead-lettering event after retry",
			"routing_key", msg.RoutingKey,
			"dead_letter_queue", deadLetterName(c.queue),
			"error", handleErr,
		)
		err = msg.Nack(false, false)
	default:
		err = msg.Nack(false, true)
	}
	if err != nil {
		c.logger.Error("failed to settle delivery", "routing_key", msg.RoutingKey, "error", err)
	}
}

func (c *RabbitMQConsumer) processMessage(ctx context.Context, msg amqp.Delivery) error {
	event, err := DecodeEnvelope(msg.Body, msg.RoutingKey)
	if err != nil {
		// Malformed bodies never decode, so they are acked and dropped.
		c.logger.Error("failed to decode event envelope", "routing_key", msg.RoutingKey, "error", err)
		return nil
	}

	if msg.Headers != nil {
		ctx = observability.ExtractTraceContext(ctx, amqpHeaderCarrier(msg.Headers))
	}
	ctx, span := observability.StartSpan(ctx, "rabbitmq.consume",
		attribute.String("messaging.system", "rabbitmq"),
		attribute.String("messaging.destination", c.exchange),
		attribute.String("messaging.rabbitmq.routing_key", event.RoutingKey),
	)

	start := time.Now()
	err = c.registry.Dispatch(ctx, event)
	observability.EndSpan(span, err)

	logger := c.logger.With(
		"routing_key", event.RoutingKey,
		"event_id", event.EventID,
		"aggregate_id", event.AggregateID,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	if err != nil {
		logger.Error("event dispatch failed", "redelivered", msg.Redelivered, "error", err)
		return err
	}
	logger.Debug("event processed")
	return nil
}

// Close stops Start and closes the channel and connection. It is safe to call
// more than once.
func (c *RabbitMQConsumer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	c.running = false
	close(c.done)

	if err := c.channel.Close(); err != nil {
		c.logger.Warn("error closing channel", "error", err)
	}
	if err := c.conn.Close(); err != nil {
		return err
	}
	c.logger.Info("RabbitMQ consumer closed")
	return nil
}
