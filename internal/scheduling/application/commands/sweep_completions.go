package commands

import (
	"context"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/nestly/internal/scheduling/application/services"
	"github.com/felixgeelhaar/nestly/internal/scheduling/domain"
	sharedApplication "github.com/felixgeelhaar/nestly/internal/shared/application"
	"github.com/felixgeelhaar/nestly/internal/shared/infrastructure/outbox"
	"github.com/felixgeelhaar/nestly/pkg/observability"
	"github.com/google/uuid"
)

const defaultSweepBatchSize = 100

// SweepCompletionsCommand completes confirmed bookings that ended by Now.
// A zero Now uses the scheduling clock.
type SweepCompletionsCommand struct {
	Now       time.Time
	BatchSize int
}

// SweepCompletionsResult counts the outcome of one sweep.
type SweepCompletionsResult struct {
	Completed int
	Failed    int
}

// SweepCompletionsHandler handles the SweepCompletionsCommand. Completions go
// through the BookingStateMachine with the system role.
type SweepCompletionsHandler struct {
	bookings   domain.BookingRepository
	machine    *services.BookingStateMachine
	outboxRepo outbox.Repository
	uow        sharedApplication.UnitOfWork
	clock      domain.Clock
	metrics    observability.Metrics
	logger     *slog.Logger
}

// NewSweepCompletionsHandler creates a new SweepCompletionsHandler.
func NewSweepCompletionsHandler(
	bookings domain.BookingRepository,
	machine *services.BookingStateMachine,
	outboxRepo outbox.Repository,
	uow sharedApplication.UnitOfWork,
	clock domain.Clock,
	metrics observability.Metrics,
	logger *slog.Logger,
) *SweepCompletionsHandler {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SweepCompletionsHandler{
		bookings:   bookings,
		machine:    machine,
		outboxRepo: outboxRepo,
		uow:        uow,
		clock:      clock,
		metrics:    metrics,
		logger:     logger,
	}
}

// Handle executes the SweepCompletionsCommand. Every booking commits on its
// own; one that fails is logged and left for the next sweep.
func (h *SweepCompletionsHandler) Handle(ctx context.Context, cmd SweepCompletionsCommand) (*SweepCompletionsResult, error) {
	now := cmd.Now
	if now.IsZero() {
		now = h.clock.Now()
	}
	limit := cmd.BatchSize
	if limit <= 0 {
		limit = defaultSweepBatchSize
	}

	result := &SweepCompletionsResult{}
	failed := make(map[uuid.UUID]bool)
	for {
		batch, err := h.bookings.FindCompletable(ctx, now, limit+len(failed))
		if err != nil {
			return result, err
		}

		progressed := false
		for _, booking := range batch {
			if failed[booking.ID()] {
				continue
			}
			done, err := h.complete(ctx, booking.ID(), now)
			if err != nil {
				h.logger.Warn("failed to complete booking", "booking_id", booking.ID(), "error", err)
				failed[booking.ID()] = true
				result.Failed++
				continue
			}
			progressed = true
			if done {
				result.Completed++
			}
		}

		if !progressed || len(batch) < limit+len(failed) {
			break
		}
		if err := ctx.Err(); err != nil {
			return result, err
		}
	}

	if result.Completed > 0 {
		h.metrics.Counter(observability.MetricBookingsCompleted, int64(result.Completed))
	}
	h.logger.Info("completion sweep finished", "completed", result.Completed, "failed", result.Failed)
	return result, nil
}

// complete reports false when another writer already moved the booking on.
func (h *SweepCompletionsHandler) complete(ctx context.Context, bookingID uuid.UUID, now time.Time) (bool, error) {
	var done bool
	err := retryStale(ctx, func(ctx context.Context) error {
		done = false
		return sharedApplication.WithUnitOfWork(ctx, h.uow, func(txCtx context.Context) error {
			booking, err := loadBooking(txCtx, h.bookings, bookingID)
			if err != nil {
				return err
			}
			if booking.Status() != domain.StatusConfirmed {
				return nil
			}
			if err := h.machine.TransitionAt(txCtx, booking, domain.ActionComplete, domain.RoleSystem, "", now); err != nil {
				return err
			}
			if err := h.bookings.Save(txCtx, booking); err != nil {
				return err
			}
			done = true
			return writeEvents(txCtx, h.outboxRepo, uuid.Nil, booking)
		})
	})
	return done && err == nil, err
}
