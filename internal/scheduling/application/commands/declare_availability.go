package commands

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/nestly/internal/scheduling/application/services"
	"github.com/felixgeelhaar/nestly/internal/scheduling/domain"
	sharedApplication "github.com/felixgeelhaar/nestly/internal/shared/application"
	"github.com/felixgeelhaar/nestly/internal/shared/infrastructure/outbox"
	"github.com/google/uuid"
)

// DeclareAvailabilityCommand declares a block, once or weekly.
type DeclareAvailabilityCommand struct {
	ProviderID uuid.UUID
	Start      time.Time
	End        time.Time
	Kind       domain.AvailabilityKind
	Recurrence *domain.RecurrenceRule
}

// DeclareAvailabilityResult reports the committed blocks. BlockID is the
// first of them.
type DeclareAvailabilityResult struct {
	BlockID  uuid.UUID            `json:"block_id"`
	BlockIDs []uuid.UUID          `json:"block_ids"`
	SeriesID uuid.UUID            `json:"series_id,omitzero"`
	Rejected []RejectedOccurrence `json:"rejected"`
	Pending  []PendingOccurrence  `json:"pending,omitempty"`
}

// DeclareAvailabilityHandler handles the DeclareAvailabilityCommand.
type DeclareAvailabilityHandler struct {
	store      *services.AvailabilityStore
	locker     domain.ProviderLocker
	expander   *services.RecurrenceExpander
	outboxRepo outbox.Repository
	uow        sharedApplication.UnitOfWork
	policy     domain.Policy
	clock      domain.Clock
	logger     *slog.Logger
}

// NewDeclareAvailabilityHandler creates a new DeclareAvailabilityHandler.
func NewDeclareAvailabilityHandler(
	store *services.AvailabilityStore,
	locker domain.ProviderLocker,
	expander *services.RecurrenceExpander,
	outboxRepo outbox.Repository,
	uow sharedApplication.UnitOfWork,
	policy domain.Policy,
	clock domain.Clock,
	logger *slog.Logger,
) *DeclareAvailabilityHandler {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DeclareAvailabilityHandler{
		store:      store,
		locker:     locker,
		expander:   expander,
		outboxRepo: outboxRepo,
		uow:        uow,
		policy:     policy,
		clock:      clock,
		logger:     logger,
	}
}

// Handle executes the DeclareAvailabilityCommand. Like bookings, each
// occurrence commits on its own; a single declaration that is refused
// returns the typed error. An infrastructure failure after some blocks
// committed returns the partial result with an error wrapping
// domain.ErrSeriesInterrupted.
func (h *DeclareAvailabilityHandler) Handle(ctx context.Context, cmd DeclareAvailabilityCommand) (*DeclareAvailabilityResult, error) {
	rng, err := domain.NewTimeRange(cmd.Start, cmd.End)
	if err != nil {
		return nil, domain.Rejected(domain.ReasonInvalidRange, nil, nil).Err()
	}
	kind, err := domain.ParseAvailabilityKind(string(cmd.Kind))
	if err != nil {
		return nil, err
	}

	occurrences := []domain.TimeRange{rng}
	result := &DeclareAvailabilityResult{BlockIDs: []uuid.UUID{}, Rejected: []RejectedOccurrence{}}
	if cmd.Recurrence != nil {
		occurrences, err = h.expander.Plan(*cmd.Recurrence, rng)
		if err != nil {
			return nil, err
		}
		result.SeriesID = uuid.New()
	}

	loc := h.policy.Loc()
	for i, occurrence := range occurrences {
		id, err := h.declareOne(ctx, cmd.ProviderID, occurrence, kind, cmd.Recurrence, result.SeriesID)
		if conflict, ok := domain.AsConflict(err); ok {
			result.Rejected = append(result.Rejected, RejectedOccurrence{
				Date:       domain.DateOf(occurrence.Start(), loc).Format(time.DateOnly),
				Start:      occurrence.Start(),
				End:        occurrence.End(),
				Reason:     conflict.Reason,
				BookingIDs: conflict.BookingIDs,
				BlockIDs:   conflict.BlockIDs,
			})
			continue
		}
		if err != nil {
			if len(result.BlockIDs) == 0 {
				return nil, err
			}
			result.BlockID = result.BlockIDs[0]
			result.Pending = pendingFrom(occurrences[i:])
			h.logger.Error("availability series interrupted",
				"series_id", result.SeriesID,
				"blocks", len(result.BlockIDs),
				"pending", len(result.Pending),
				"error", err,
			)
			return result, fmt.Errorf("%w after %d of %d occurrences: %w", domain.ErrSeriesInterrupted, i, len(occurrences), err)
		}
		result.BlockIDs = append(result.BlockIDs, id)
	}

	if cmd.Recurrence == nil && len(result.Rejected) == 1 {
		return nil, result.Rejected[0].Err()
	}
	if len(result.BlockIDs) > 0 {
		result.BlockID = result.BlockIDs[0]
	}

	h.logger.Info("availability declared",
		"provider_id", cmd.ProviderID,
		"kind", kind,
		"blocks", len(result.BlockIDs),
		"rejected", len(result.Rejected),
	)
	return result, nil
}

func (h *DeclareAvailabilityHandler) declareOne(ctx context.Context, providerID uuid.UUID, rng domain.TimeRange, kind domain.AvailabilityKind, rule *domain.RecurrenceRule, seriesID uuid.UUID) (uuid.UUID, error) {
	var id uuid.UUID
	err := sharedApplication.WithUnitOfWork(ctx, h.uow, func(txCtx context.Context) error {
		if err := h.locker.LockProvider(txCtx, providerID); err != nil {
			return err
		}
		block, err := domain.NewAvailabilityBlock(domain.NewAvailabilityBlockParams{
			ProviderID: providerID,
			Range:      rng,
			Kind:       kind,
			Recurrence: rule,
			SeriesID:   seriesID,
		}, h.policy.Loc(), h.clock.Now())
		if err != nil {
			return err
		}
		if id, err = h.store.AddBlock(txCtx, block); err != nil {
			return err
		}
		return writeEvents(txCtx, h.outboxRepo, providerID, block)
	})
	if err != nil {
		if _, ok := domain.AsConflict(err); ok {
			return uuid.Nil, err
		}
		return uuid.Nil, fmt.Errorf("declare %s: %w", rng, err)
	}
	return id, nil
}
