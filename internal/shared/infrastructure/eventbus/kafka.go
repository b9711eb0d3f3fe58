package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/felixgeelhaar/nestly/pkg/observability"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
)

const (
	headerEventID   = "event_id"
	headerEventType = "event_type"

	// DefaultKafkaGroupID is the consumer group of the worker.
	DefaultKafkaGroupID = "nestly-worker"
)

// TopicFor maps a routing key to its Kafka topic: one topic per aggregate,
// so "scheduling.booking.confirmed" lands on "<prefix>.scheduling.booking".
func TopicFor(prefix, routingKey string) string {
	parts := strings.Split(routingKey, ".")
	if len(parts) > 2 {
		parts = parts[:2]
	}
	topic := strings.Join(parts, ".")
	if prefix == "" {
		return topic
	}
	return prefix + "." + topic
}

// KafkaPublisher writes envelopes to per-aggregate topics keyed by aggregate
// id, so every event of one booking stays ordered on one partition.
type KafkaPublisher struct {
	writer *kafka.Writer
	prefix string
	logger *slog.Logger
}

// KafkaConfig configures both the publisher and the consumer.
type KafkaConfig struct {
	Brokers     []string
	TopicPrefix string
	GroupID     string
	Logger      *slog.Logger
}

// NewKafkaPublisher creates a publisher. The writer connects lazily.
func NewKafkaPublisher(cfg KafkaConfig) (*KafkaPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers not configured")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		BatchTimeout:           10 * time.Millisecond,
	}
	cfg.Logger.Info("kafka publisher configured",
		"brokers", strings.Join(cfg.Brokers, ","),
		"topic_prefix", cfg.TopicPrefix,
	)
	return &KafkaPublisher{writer: writer, prefix: cfg.TopicPrefix, logger: cfg.Logger}, nil
}

// Publish writes one envelope.
func (p *KafkaPublisher) Publish(ctx context.Context, routingKey string, payload []byte) error {
	msg, err := p.message(ctx, routingKey, payload)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("failed to publish message",
			"topic", msg.Topic,
			"routing_key", routingKey,
			"error", err,
		)
		return err
	}
	p.logger.Debug("message published",
		"topic", msg.Topic,
		"routing_key", routingKey,
		"size", len(payload),
	)
	return nil
}

func (p *KafkaPublisher) message(ctx context.Context, routingKey string, payload []byte) (kafka.Message, error) {
	var head struct {
		EventID     string `json:"event_id"`
		AggregateID string `json:"aggregate_id"`
	}
	if err := json.Unmarshal(payload, &head); err != nil {
		return kafka.Message{}, fmt.Errorf("kafka: decode envelope: %w", err)
	}

	carrier := &kafkaHeaderCarrier{headers: []kafka.Header{
		{Key: headerEventID, Value: []byte(head.EventID)},
		{Key: headerEventType, Value: []byte(routingKey)},
	}}
	observability.InjectTraceContext(ctx, carrier)

	return kafka.Message{
		Topic:   TopicFor(p.prefix, routingKey),
		Key:     []byte(head.AggregateID),
		Value:   payload,
		Headers: carrier.headers,
	}, nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// KafkaConsumer reads every topic its consumers' routing keys map to within
// one consumer group. Offsets are committed only after dispatch succeeds.
type KafkaConsumer struct {
	cfg      KafkaConfig
	registry *ConsumerRegistry
	logger   *slog.Logger

	mu     sync.Mutex
	reader *kafka.Reader
}

// NewKafkaConsumer creates a consumer. Register consumers before Start.
func NewKafkaConsumer(cfg KafkaConfig, registry *ConsumerRegistry) (*KafkaConsumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers not configured")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.GroupID == "" {
		cfg.GroupID = DefaultKafkaGroupID
	}
	return &KafkaConsumer{cfg: cfg, registry: registry, logger: cfg.Logger}, nil
}

func (c *KafkaConsumer) RegisterConsumer(consumer EventConsumer) {
	c.registry.Register(consumer)
}

// Topics lists the topics the registered consumers need.
func (c *KafkaConsumer) Topics() []string {
	seen := make(map[string]struct{})
	var topics []string
	for _, eventType := range c.registry.GetAllEventTypes() {
		topic := TopicFor(c.cfg.TopicPrefix, eventType)
		if _, ok := seen[topic]; ok {
			continue
		}
		seen[topic] = struct{}{}
		topics = append(topics, topic)
	}
	return topics
}

// Start blocks, reading until ctx is done.
func (c *KafkaConsumer) Start(ctx context.Context) error {
	topics := c.Topics()
	if len(topics) == 0 {
		return errors.New("kafka consumer has no registered event types")
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     c.cfg.Brokers,
		GroupID:     c.cfg.GroupID,
		GroupTopics: topics,
		MinBytes:    1,
		MaxBytes:    10e6,
	})
	c.mu.Lock()
	c.reader = reader
	c.mu.Unlock()

	c.logger.Info("started consuming events",
		"group_id", c.cfg.GroupID,
		"topics", strings.Join(topics, ","),
	)

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			c.logger.Error("kafka read error", "error", err)
			time.Sleep(time.Second)
			continue
		}

		if err := c.processMessage(ctx, msg); err != nil {
			// Leave the offset uncommitted so the group redelivers it.
			c.logger.Error("failed to process message",
				"topic", msg.Topic,
				"offset", msg.Offset,
				"error", err,
			)
			continue
		}
		if err := reader.CommitMessages(ctx, msg); err != nil {
			c.logger.Error("failed to commit offset", "topic", msg.Topic, "error", err)
		}
	}
}

func (c *KafkaConsumer) processMessage(ctx context.Context, msg kafka.Message) error {
	event, err := DecodeEnvelope(msg.Value, headerValue(msg.Headers, headerEventType))
	if err != nil {
		c.logger.Error("failed to decode event envelope",
			"topic", msg.Topic,
			"error", err,
		)
		return nil
	}

	ctx = observability.ExtractTraceContext(ctx, &kafkaHeaderCarrier{headers: msg.Headers})
	ctx, span := observability.StartSpan(ctx, "kafka.consume",
		attribute.String("messaging.system", "kafka"),
		attribute.String("messaging.destination", msg.Topic),
	)
	err = c.registry.Dispatch(ctx, event)
	observability.EndSpan(span, err)
	return err
}

func (c *KafkaConsumer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.reader == nil {
		return nil
	}
	err := c.reader.Close()
	c.reader = nil
	c.logger.Info("kafka consumer closed")
	return err
}

// KafkaReadyCheck dials the first broker.
func KafkaReadyCheck(brokers []string) func(context.Context) error {
	return func(ctx context.Context) error {
		if len(brokers) == 0 {
			return errors.New("kafka brokers not configured")
		}
		dialer := kafka.Dialer{Timeout: 2 * time.Second}
		conn, err := dialer.DialContext(ctx, "tcp", brokers[0])
		if err != nil {
			return err
		}
		return conn.Close()
	}
}

func headerValue(headers []kafka.Header, key string) string {
	for _, h := range headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

type kafkaHeaderCarrier struct {
	headers []kafka.Header
}

var _ propagation.TextMapCarrier = (*kafkaHeaderCarrier)(nil)

func (c *kafkaHeaderCarrier) Get(key string) string { return headerValue(c.headers, key) }

func (c *kafkaHeaderCarrier) Keys() []string {
	keys := make([]string, 0, len(c.headers))
	for _, h := range c.headers {
		keys = append(keys, h.Key)
	}
	return keys
}

func (c *kafkaHeaderCarrier) Set(key, value string) {
	for i := range c.headers {
		if c.headers[i].Key == key {
			c.headers[i].Value = []byte(value)
			return
		}
	}
	c.headers = append(c.headers, kafka.Header{Key: key, Value: []byte(value)})
}
