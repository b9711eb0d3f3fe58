package outbox

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/felixgeelhaar/nestly/internal/shared/domain"
	"github.com/felixgeelhaar/nestly/internal/shared/infrastructure/eventbus"
	"github.com/google/uuid"
)

// Message represents an outbox message ready for publishing.
type Message struct {
	ID               int64
	EventID          uuid.UUID
	AggregateType    string
	AggregateID      uuid.UUID
	EventType        string
	RoutingKey       string
	Payload          json.RawMessage
	Metadata         json.RawMessage
	CreatedAt        time.Time
	PublishedAt      *time.Time
	NextRetryAt      *time.Time
	RetryCount       int
	LastError        *string
	DeadLetteredAt   *time.Time
	DeadLetterReason *string
}

// NewMessage creates an outbox message from a domain event.
func NewMessage(event domain.DomainEvent) (*Message, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}

	metadata, err := json.Marshal(event.Metadata())
	if err != nil {
		return nil, err
	}

	return &Message{
		EventID:       event.EventID(),
		AggregateType: event.AggregateType(),
		AggregateID:   event.AggregateID(),
		EventType:     event.RoutingKey(), // Using routing key as event type
		RoutingKey:    event.RoutingKey(),
		Payload:       payload,
		Metadata:      metadata,
		CreatedAt:     event.OccurredAt(),
	}, nil
}

// NewMessages converts a batch of events, stopping at the first failure.
func NewMessages(events []domain.DomainEvent) ([]*Message, error) {
	msgs := make([]*Message, 0, len(events))
	for _, event := range events {
		msg, err := NewMessage(event)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// IsPublished returns true if the message has been published.
func (m *Message) IsPublished() bool {
	return m.PublishedAt != nil
}

// CanRetry returns true if the message can be retried.
func (m *Message) CanRetry(maxRetries int) bool {
	return m.RetryCount < maxRetries
}

// EventMetadata decodes the stored request metadata. Missing metadata yields
// the zero value; corrupt metadata is an error.
func (m *Message) EventMetadata() (domain.EventMetadata, error) {
	var md domain.EventMetadata
	if len(m.Metadata) == 0 {
		return md, nil
	}
	if err := json.Unmarshal(m.Metadata, &md); err != nil {
		return domain.EventMetadata{}, fmt.Errorf("decode metadata of event %s: %w", m.EventID, err)
	}
	return md, nil
}

// Envelope renders the broker message consumers decode with
// eventbus.DecodeEnvelope.
func (m *Message) Envelope() ([]byte, error) {
	md, err := m.EventMetadata()
	if err != nil {
		return nil, err
	}
	event := eventbus.ConsumedEvent{
		EventID:       m.EventID,
		AggregateID:   m.AggregateID,
		AggregateType: m.AggregateType,
		RoutingKey:    m.RoutingKey,
		OccurredAt:    m.CreatedAt.UTC(),
		Payload:       m.Payload,
		Metadata: eventbus.EventMetadata{
			UserID: md.UserID,
		},
	}
	if md.CorrelationID != uuid.Nil {
		event.Metadata.CorrelationID = md.CorrelationID.String()
	}
	if md.CausationID != uuid.Nil {
		event.Metadata.CausationID = md.CausationID.String()
	}
	return json.Marshal(event)
}
