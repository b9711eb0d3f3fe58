package persistence

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/felixgeelhaar/nestly/internal/calendar/domain"
	"github.com/google/uuid"
)

// MemoryFailureRepository keeps calendar failures in process.
type MemoryFailureRepository struct {
	mu       sync.Mutex
	failures map[uuid.UUID]domain.SyncFailure
}

var _ domain.SyncFailureRepository = (*MemoryFailureRepository)(nil)

// NewMemoryFailureRepository creates an empty repository.
func NewMemoryFailureRepository() *MemoryFailureRepository {
	return &MemoryFailureRepository{failures: make(map[uuid.UUID]domain.SyncFailure)}
}

func (r *MemoryFailureRepository) Save(_ context.Context, failure *domain.SyncFailure) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures[failure.ID] = *failure
	return nil
}

func (r *MemoryFailureRepository) FindDue(_ context.Context, now time.Time, limit int) ([]*domain.SyncFailure, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var due []*domain.SyncFailure
	for _, f := range r.failures {
		if f.IsOpen() && !f.NextAttemptAt.After(now) {
			copied := f
			due = append(due, &copied)
		}
	}
	slices.SortFunc(due, func(a, b *domain.SyncFailure) int {
		return a.NextAttemptAt.Compare(b.NextAttemptAt)
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (r *MemoryFailureRepository) CountOpen(context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, f := range r.failures {
		if f.IsOpen() {
			n++
		}
	}
	return n, nil
}

// All returns every stored failure, open or not.
func (r *MemoryFailureRepository) All() []domain.SyncFailure {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.SyncFailure, 0, len(r.failures))
	for _, f := range r.failures {
		out = append(out, f)
	}
	slices.SortFunc(out, func(a, b domain.SyncFailure) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out
}
