package domain

import (
	"time"

	"github.com/google/uuid"
)

// AggregateRoot is the consistency boundary that records domain events.
type AggregateRoot interface {
	Entity
	DomainEvents() []DomainEvent
	PullEvents() []DomainEvent
	Version() int
}

// BaseAggregateRoot buffers uncommitted events and tracks a persistence version.
type BaseAggregateRoot struct {
	BaseEntity
	events  []DomainEvent
	version int
}

// NewBaseAggregateRoot creates an aggregate root with a fresh ID.
func NewBaseAggregateRoot(now time.Time) BaseAggregateRoot {
	return BaseAggregateRoot{BaseEntity: NewBaseEntity(now)}
}

// NewBaseAggregateRootWithID creates an aggregate root with a caller-chosen ID.
func NewBaseAggregateRootWithID(id uuid.UUID, now time.Time) BaseAggregateRoot {
	return BaseAggregateRoot{BaseEntity: NewBaseEntityWithID(id, now)}
}

// RehydrateBaseAggregateRoot recreates an aggregate root from persisted state.
func RehydrateBaseAggregateRoot(entity BaseEntity, version int) BaseAggregateRoot {
	return BaseAggregateRoot{BaseEntity: entity, version: version}
}

// Record appends an event to the uncommitted buffer.
func (a *BaseAggregateRoot) Record(event DomainEvent) {
	a.events = append(a.events, event)
}

// DomainEvents returns the uncommitted events without clearing them.
func (a *BaseAggregateRoot) DomainEvents() []DomainEvent {
	return a.events
}

// PullEvents returns the uncommitted events and empties the buffer.
func (a *BaseAggregateRoot) PullEvents() []DomainEvent {
	events := a.events
	a.events = nil
	return events
}

func (a *BaseAggregateRoot) Version() int { return a.version }

// SetVersion is used by repositories after a successful write.
func (a *BaseAggregateRoot) SetVersion(version int) {
	a.version = version
}
