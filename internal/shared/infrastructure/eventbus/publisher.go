package eventbus

import (
	"context"
	"errors"
	"log/slog"
)

// ErrMissingEventID rejects envelopes without an event id.
var ErrMissingEventID = errors.New("eventbus: envelope has no event id")

// Publisher defines the interface for publishing events to a message broker.
type Publisher interface {
	// Publish sends a message to the event bus.
	Publish(ctx context.Context, routingKey string, payload []byte) error

	// Close closes the publisher connection.
	Close() error
}

// MultiPublisher fans one message out to several brokers. Publish is attempted
// on every target; the joined error reports the ones that failed.
type MultiPublisher struct {
	targets []Publisher
}

// NewMultiPublisher combines targets. Nil targets are skipped.
func NewMultiPublisher(targets ...Publisher) *MultiPublisher {
	m := &MultiPublisher{}
	for _, t := range targets {
		if t != nil {
			m.targets = append(m.targets, t)
		}
	}
	return m
}

func (m *MultiPublisher) Publish(ctx context.Context, routingKey string, payload []byte) error {
	var errs []error
	for _, t := range m.targets {
		if err := t.Publish(ctx, routingKey, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *MultiPublisher) Close() error {
	var errs []error
	for _, t := range m.targets {
		if err := t.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NoopPublisher is a no-op publisher for testing/development.
type NoopPublisher struct {
	logger *slog.Logger
}

// NewNoopPublisher creates a publisher that does nothing.
func NewNoopPublisher(logger *slog.Logger) *NoopPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &NoopPublisher{logger: logger}
}

// Publish logs the message but doesn't actually publish.
func (p *NoopPublisher) Publish(ctx context.Context, routingKey string, payload []byte) error {
	p.logger.Debug("noop publish",
		"routing_key", routingKey,
		"size", len(payload),
	)
	return nil
}

// Close is a no-op.
func (p *NoopPublisher) Close() error {
	return nil
}
