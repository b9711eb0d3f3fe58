package services

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"slices"
	"time"

	"github.com/felixgeelhaar/nestly/internal/scheduling/domain"
	"github.com/google/uuid"
)

// AvailabilityStore is the only writer of availability blocks. It enforces
// the block overlap rules and the guards against orphaning active bookings.
type AvailabilityStore struct {
	repo   domain.AvailabilityRepository
	ledger *BookingLedger
	policy domain.Policy
	clock  domain.Clock
	logger *slog.Logger
}

// NewAvailabilityStore creates an availability store.
func NewAvailabilityStore(
	repo domain.AvailabilityRepository,
	ledger *BookingLedger,
	policy domain.Policy,
	clock domain.Clock,
	logger *slog.Logger,
) *AvailabilityStore {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AvailabilityStore{
		repo:   repo,
		ledger: ledger,
		policy: policy,
		clock:  clock,
		logger: logger,
	}
}

// AddBlock saves block unless a block of the same kind overlaps it, or it is
// UNAVAILABLE and would cover an active booking. Adjacent blocks are fine.
func (s *AvailabilityStore) AddBlock(ctx context.Context, block *domain.AvailabilityBlock) (uuid.UUID, error) {
	same, err := s.repo.FindOverlapping(ctx, block.ProviderID(), block.Range(), block.Kind())
	if err != nil {
		return uuid.Nil, fmt.Errorf("find overlapping blocks: %w", err)
	}
	same = slices.DeleteFunc(same, func(b *domain.AvailabilityBlock) bool { return b.ID() == block.ID() })
	if len(same) > 0 {
		return uuid.Nil, domain.Rejected(domain.ReasonOverlappingAvailability, nil, blockIDs(same)).Err()
	}

	if !block.IsAvailable() {
		active, err := s.ledger.Conflicts(ctx, block.ProviderID(), block.Range(), uuid.Nil)
		if err != nil {
			return uuid.Nil, err
		}
		if len(active) > 0 {
			return uuid.Nil, domain.Rejected(domain.ReasonUnavailableOverBooking, bookingIDs(active), nil).Err()
		}
	}

	if err := s.repo.Save(ctx, block); err != nil {
		return uuid.Nil, fmt.Errorf("save availability block: %w", err)
	}

	s.logger.Debug("availability block added",
		"block_id", block.ID(),
		"provider_id", block.ProviderID(),
		"kind", block.Kind(),
		"range", block.Range().String(),
	)
	return block.ID(), nil
}

// RemoveBlock deletes a block. An AVAILABLE block that any active booking
// overlaps is refused with BlockInUse; UNAVAILABLE blocks always go. The
// returned aggregate carries the retraction event.
func (s *AvailabilityStore) RemoveBlock(ctx context.Context, blockID uuid.UUID) (*domain.AvailabilityBlock, error) {
	block, err := s.repo.FindByID(ctx, blockID)
	if err != nil {
		return nil, fmt.Errorf("find availability block: %w", err)
	}
	if block == nil {
		return nil, domain.ErrBlockNotFound
	}

	if block.IsAvailable() {
		active, err := s.ledger.Conflicts(ctx, block.ProviderID(), block.Range(), uuid.Nil)
		if err != nil {
			return nil, err
		}
		if len(active) > 0 {
			return nil, domain.Rejected(domain.ReasonBlockInUse, bookingIDs(active), []uuid.UUID{block.ID()}).Err()
		}
	}

	block.Retract(s.clock.Now())
	if err := s.repo.Delete(ctx, block.ID()); err != nil {
		return nil, fmt.Errorf("delete availability block: %w", err)
	}

	s.logger.Debug("availability block removed", "block_id", block.ID(), "provider_id", block.ProviderID())
	return block, nil
}

// Get loads one block, returning ErrBlockNotFound when it does not exist.
func (s *AvailabilityStore) Get(ctx context.Context, blockID uuid.UUID) (*domain.AvailabilityBlock, error) {
	block, err := s.repo.FindByID(ctx, blockID)
	if err != nil {
		return nil, fmt.Errorf("find availability block: %w", err)
	}
	if block == nil {
		return nil, domain.ErrBlockNotFound
	}
	return block, nil
}

// Save persists changes to an existing block, such as a calendar reference.
func (s *AvailabilityStore) Save(ctx context.Context, block *domain.AvailabilityBlock) error {
	if err := s.repo.Save(ctx, block); err != nil {
		return fmt.Errorf("save availability block: %w", err)
	}
	return nil
}

// BlocksCovering yields the provider's blocks that touch date in the service
// time zone, ordered by start. Iterating twice yields the same blocks.
func (s *AvailabilityStore) BlocksCovering(ctx context.Context, providerID uuid.UUID, date time.Time) (iter.Seq[*domain.AvailabilityBlock], error) {
	blocks, err := s.overlapping(ctx, providerID, domain.DayRange(date, s.policy.Loc()))
	if err != nil {
		return nil, err
	}
	return slices.Values(blocks), nil
}

func (s *AvailabilityStore) overlapping(ctx context.Context, providerID uuid.UUID, rng domain.TimeRange, kinds ...domain.AvailabilityKind) ([]*domain.AvailabilityBlock, error) {
	blocks, err := s.repo.FindOverlapping(ctx, providerID, rng, kinds...)
	if err != nil {
		return nil, fmt.Errorf("find availability blocks: %w", err)
	}
	slices.SortFunc(blocks, func(a, b *domain.AvailabilityBlock) int {
		return a.Range().Start().Compare(b.Range().Start())
	})
	return blocks, nil
}

func blockIDs(blocks []*domain.AvailabilityBlock) []uuid.UUID {
	ids := make([]uuid.UUID, len(blocks))
	for i, b := range blocks {
		ids[i] = b.ID()
	}
	return ids
}
