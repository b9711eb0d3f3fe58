package domain

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Operation is the calendar call that failed.
type Operation string

const (
	OperationPush   Operation = "push"
	OperationDelete Operation = "delete"
)

// Backoff spaces retries of a failed calendar call.
type Backoff struct {
	Initial     time.Duration
	Max         time.Duration
	MaxAttempts int
}

// DefaultBackoff retries after 1m, 2m, 4m ... capped at 1h, 8 attempts in all.
func DefaultBackoff() Backoff {
	return Backoff{Initial: time.Minute, Max: time.Hour, MaxAttempts: 8}
}

// Delay returns the wait after the given number of failed attempts.
func (b Backoff) Delay(attempts int) time.Duration {
	if b.Initial <= 0 {
		b.Initial = time.Minute
	}
	delay := b.Initial
	for i := 1; i < attempts; i++ {
		delay *= 2
		if b.Max > 0 && delay >= b.Max {
			return b.Max
		}
	}
	if b.Max > 0 && delay > b.Max {
		return b.Max
	}
	return delay
}

// SyncFailure records a calendar call that did not go through so a worker
// can replay it later. The scheduling operation that caused it has already
// succeeded.
type SyncFailure struct {
	ID            uuid.UUID
	EventID       uuid.UUID
	RoutingKey    string
	Operation     Operation
	Entry         Entry
	Attempts      int
	LastError     string
	NextAttemptAt time.Time
	CreatedAt     time.Time
	ResolvedAt    *time.Time
	AbandonedAt   *time.Time
}

// NewSyncFailure records the first failed attempt.
func NewSyncFailure(eventID uuid.UUID, routingKey string, op Operation, entry Entry, cause error, backoff Backoff, now time.Time) *SyncFailure {
	now = now.UTC()
	return &SyncFailure{
		ID:            uuid.New(),
		EventID:       eventID,
		RoutingKey:    routingKey,
		Operation:     op,
		Entry:         entry,
		Attempts:      1,
		LastError:     cause.Error(),
		NextAttemptAt: now.Add(backoff.Delay(1)),
		CreatedAt:     now,
	}
}

// RecordAttempt notes another failure. Once MaxAttempts is reached the
// failure is abandoned and reported true.
func (f *SyncFailure) RecordAttempt(cause error, backoff Backoff, now time.Time) bool {
	now = now.UTC()
	f.Attempts++
	f.LastError = cause.Error()
	if backoff.MaxAttempts > 0 && f.Attempts >= backoff.MaxAttempts {
		f.AbandonedAt = &now
		return true
	}
	f.NextAttemptAt = now.Add(backoff.Delay(f.Attempts))
	return false
}

// Resolve marks the call as finally done.
func (f *SyncFailure) Resolve(now time.Time) {
	now = now.UTC()
	f.ResolvedAt = &now
}

// IsOpen reports whether the failure still waits for a retry.
func (f *SyncFailure) IsOpen() bool {
	return f.ResolvedAt == nil && f.AbandonedAt == nil
}

// MarshalEntry encodes the entry for storage.
func (f *SyncFailure) MarshalEntry() ([]byte, error) {
	return json.Marshal(f.Entry)
}

// SyncFailureRepository persists failed calendar calls.
type SyncFailureRepository interface {
	// Save inserts a new failure or updates an existing one by id.
	Save(ctx context.Context, failure *SyncFailure) error
	// FindDue returns open failures whose next attempt is at or before now,
	// oldest first.
	FindDue(ctx context.Context, now time.Time, limit int) ([]*SyncFailure, error)
	// CountOpen returns the number of failures still waiting for a retry.
	CountOpen(ctx context.Context) (int, error)
}
