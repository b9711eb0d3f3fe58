package persistence

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/felixgeelhaar/nestly/internal/scheduling/domain"
	"github.com/google/uuid"
)

// MemoryStore holds bookings and availability in process. Its repositories
// share one mutex so a save sees the other aggregate consistently, and the
// booking repository rejects overlapping active writes like the SQL stores do.
type MemoryStore struct {
	mu       sync.Mutex
	bookings map[uuid.UUID]domain.BookingState
	blocks   map[uuid.UUID]domain.AvailabilityBlockState
	locks    map[uuid.UUID]*sync.Mutex
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		bookings: make(map[uuid.UUID]domain.BookingState),
		blocks:   make(map[uuid.UUID]domain.AvailabilityBlockState),
		locks:    make(map[uuid.UUID]*sync.Mutex),
	}
}

// Bookings returns the booking repository view.
func (s *MemoryStore) Bookings() *MemoryBookingRepository { return &MemoryBookingRepository{s: s} }

// Availability returns the availability repository view.
func (s *MemoryStore) Availability() *MemoryAvailabilityRepository {
	return &MemoryAvailabilityRepository{s: s}
}

// MemoryBookingRepository implements domain.BookingRepository.
type MemoryBookingRepository struct {
	s *MemoryStore
}

var _ domain.BookingRepository = (*MemoryBookingRepository)(nil)

func (r *MemoryBookingRepository) Save(ctx context.Context, booking *domain.Booking) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	state := bookingState(booking)
	if existing, ok := r.s.bookings[state.ID]; ok && existing.Version != state.Version {
		return domain.ErrStaleWrite
	}
	if state.Status.IsActive() {
		var clashing []uuid.UUID
		for _, other := range r.s.bookings {
			if other.ID == state.ID || other.ProviderID != state.ProviderID || !other.Status.IsActive() {
				continue
			}
			if other.Start.Before(state.End) && state.Start.Before(other.End) {
				clashing = append(clashing, other.ID)
			}
		}
		if len(clashing) > 0 {
			return &domain.ConflictError{Reason: domain.ReasonBookingOverlap, BookingIDs: clashing}
		}
	}

	journal(ctx, r.s.bookings, state.ID)
	state.Version++
	r.s.bookings[state.ID] = state
	booking.SetVersion(state.Version)
	return nil
}

func (r *MemoryBookingRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	state, ok := r.s.bookings[id]
	if !ok {
		return nil, nil
	}
	return domain.RehydrateBooking(state), nil
}

func (r *MemoryBookingRepository) FindOverlapping(ctx context.Context, providerID uuid.UUID, rng domain.TimeRange, statuses []domain.BookingStatus, excludeID uuid.UUID) ([]*domain.Booking, error) {
	return r.filter(func(b domain.BookingState) bool {
		return b.ProviderID == providerID && b.ID != excludeID &&
			slices.Contains(statuses, b.Status) && overlaps(b.Start, b.End, rng)
	}), nil
}

func (r *MemoryBookingRepository) FindByProvider(ctx context.Context, providerID uuid.UUID, window domain.TimeRange) ([]*domain.Booking, error) {
	return r.filter(func(b domain.BookingState) bool {
		return b.ProviderID == providerID && overlaps(b.Start, b.End, window)
	}), nil
}

func (r *MemoryBookingRepository) FindByConsumer(ctx context.Context, consumerID uuid.UUID, window domain.TimeRange) ([]*domain.Booking, error) {
	return r.filter(func(b domain.BookingState) bool {
		return b.ConsumerID == consumerID && overlaps(b.Start, b.End, window)
	}), nil
}

func (r *MemoryBookingRepository) FindCompletable(ctx context.Context, now time.Time, limit int) ([]*domain.Booking, error) {
	out := r.filter(func(b domain.BookingState) bool {
		return b.Status == domain.StatusConfirmed && !b.End.After(now)
	})
	slices.SortFunc(out, func(a, b *domain.Booking) int { return a.Range().End().Compare(b.Range().End()) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryBookingRepository) filter(keep func(domain.BookingState) bool) []*domain.Booking {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []*domain.Booking
	for _, state := range r.s.bookings {
		if keep(state) {
			out = append(out, domain.RehydrateBooking(state))
		}
	}
	return out
}

// MemoryAvailabilityRepository implements domain.AvailabilityRepository.
type MemoryAvailabilityRepository struct {
	s *MemoryStore
}

var _ domain.AvailabilityRepository = (*MemoryAvailabilityRepository)(nil)

func (r *MemoryAvailabilityRepository) Save(ctx context.Context, block *domain.AvailabilityBlock) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	state := blockState(block)
	journal(ctx, r.s.blocks, state.ID)
	state.Version++
	r.s.blocks[state.ID] = state
	block.SetVersion(state.Version)
	return nil
}

func (r *MemoryAvailabilityRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.AvailabilityBlock, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	state, ok := r.s.blocks[id]
	if !ok {
		return nil, nil
	}
	return domain.RehydrateAvailabilityBlock(state), nil
}

func (r *MemoryAvailabilityRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	journal(ctx, r.s.blocks, id)
	delete(r.s.blocks, id)
	return nil
}

func (r *MemoryAvailabilityRepository) FindOverlapping(ctx context.Context, providerID uuid.UUID, rng domain.TimeRange, kinds ...domain.AvailabilityKind) ([]*domain.AvailabilityBlock, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []*domain.AvailabilityBlock
	for _, state := range r.s.blocks {
		if state.ProviderID != providerID || !overlaps(state.Start, state.End, rng) {
			continue
		}
		if len(kinds) > 0 && !slices.Contains(kinds, state.Kind) {
			continue
		}
		out = append(out, domain.RehydrateAvailabilityBlock(state))
	}
	return out, nil
}

// MemoryUnitOfWork journals writes made through the store's repositories and
// undoes them on rollback. Provider locks taken inside it are held until
// commit or rollback.
type MemoryUnitOfWork struct {
	s *MemoryStore
}

// UnitOfWork returns a unit of work bound to the store.
func (s *MemoryStore) UnitOfWork() *MemoryUnitOfWork { return &MemoryUnitOfWork{s: s} }

type memoryTxKey struct{}

type memoryTx struct {
	undo     []func()
	releases []func()
	locked   map[uuid.UUID]bool
}

func memoryTxFrom(ctx context.Context) *memoryTx {
	tx, _ := ctx.Value(memoryTxKey{}).(*memoryTx)
	return tx
}

func (u *MemoryUnitOfWork) Begin(ctx context.Context) (context.Context, error) {
	return context.WithValue(ctx, memoryTxKey{}, &memoryTx{locked: make(map[uuid.UUID]bool)}), nil
}

func (u *MemoryUnitOfWork) Commit(ctx context.Context) error {
	if tx := memoryTxFrom(ctx); tx != nil {
		tx.undo = nil
		tx.release()
	}
	return nil
}

func (u *MemoryUnitOfWork) Rollback(ctx context.Context) error {
	tx := memoryTxFrom(ctx)
	if tx == nil {
		return nil
	}
	u.s.mu.Lock()
	for i := len(tx.undo) - 1; i >= 0; i-- {
		tx.undo[i]()
	}
	u.s.mu.Unlock()
	tx.undo = nil
	tx.release()
	return nil
}

func (tx *memoryTx) release() {
	for i := len(tx.releases) - 1; i >= 0; i-- {
		tx.releases[i]()
	}
	tx.releases = nil
}

// journal records how to restore key in m. Callers hold the store mutex.
func journal[V any](ctx context.Context, m map[uuid.UUID]V, key uuid.UUID) {
	tx := memoryTxFrom(ctx)
	if tx == nil {
		return
	}
	prev, existed := m[key]
	tx.undo = append(tx.undo, func() {
		if existed {
			m[key] = prev
		} else {
			delete(m, key)
		}
	})
}

// MemoryLocker implements domain.ProviderLocker for the memory store. Outside
// a unit of work it does nothing.
type MemoryLocker struct {
	s *MemoryStore
}

var _ domain.ProviderLocker = (*MemoryLocker)(nil)

// Locker returns a provider locker bound to the store.
func (s *MemoryStore) Locker() *MemoryLocker { return &MemoryLocker{s: s} }

func (l *MemoryLocker) LockProvider(ctx context.Context, providerID uuid.UUID) error {
	tx := memoryTxFrom(ctx)
	if tx == nil || tx.locked[providerID] {
		return nil
	}

	l.s.mu.Lock()
	m, ok := l.s.locks[providerID]
	if !ok {
		m = &sync.Mutex{}
		l.s.locks[providerID] = m
	}
	l.s.mu.Unlock()

	m.Lock()
	tx.locked[providerID] = true
	tx.releases = append(tx.releases, m.Unlock)
	return nil
}

func bookingState(b *domain.Booking) domain.BookingState {
	return domain.BookingState{
		ID:               b.ID(),
		ConsumerID:       b.ConsumerID(),
		ProviderID:       b.ProviderID(),
		Start:            b.Range().Start(),
		End:              b.Range().End(),
		Status:           b.Status(),
		IsEmergency:      b.IsEmergency(),
		Recurrence:       b.Recurrence(),
		SeriesID:         b.SeriesID(),
		Children:         b.Children(),
		CancellationNote: b.CancellationNote(),
		CancelledAt:      b.CancelledAt(),
		Version:          b.Version(),
		CreatedAt:        b.CreatedAt(),
		UpdatedAt:        b.UpdatedAt(),
	}
}

func blockState(b *domain.AvailabilityBlock) domain.AvailabilityBlockState {
	return domain.AvailabilityBlockState{
		ID:                  b.ID(),
		ProviderID:          b.ProviderID(),
		Date:                b.Date(),
		Start:               b.Range().Start(),
		End:                 b.Range().End(),
		Kind:                b.Kind(),
		Recurrence:          b.Recurrence(),
		SeriesID:            b.SeriesID(),
		ExternalCalendarRef: b.ExternalCalendarRef(),
		Version:             b.Version(),
		CreatedAt:           b.CreatedAt(),
		UpdatedAt:           b.UpdatedAt(),
	}
}

func overlaps(start, end time.Time, rng domain.TimeRange) bool {
	return start.Before(rng.End()) && rng.Start().Before(end)
}
