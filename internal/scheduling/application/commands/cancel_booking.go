package commands

import (
	"context"
	"log/slog"

	"github.com/felixgeelhaar/nestly/internal/scheduling/application/services"
	"github.com/felixgeelhaar/nestly/internal/scheduling/domain"
	sharedApplication "github.com/felixgeelhaar/nestly/internal/shared/application"
	"github.com/felixgeelhaar/nestly/internal/shared/infrastructure/outbox"
	"github.com/felixgeelhaar/nestly/pkg/observability"
	"github.com/google/uuid"
)

// CancelBookingCommand cancels a booking on behalf of either party.
type CancelBookingCommand struct {
	BookingID uuid.UUID
	ActorID   uuid.UUID
	Note      string
}

// CancelBookingHandler handles the CancelBookingCommand.
type CancelBookingHandler struct {
	bookings     domain.BookingRepository
	stateMachine *services.BookingStateMachine
	outboxRepo   outbox.Repository
	uow          sharedApplication.UnitOfWork
	metrics      observability.Metrics
	logger       *slog.Logger
}

// NewCancelBookingHandler creates a new CancelBookingHandler.
func NewCancelBookingHandler(
	bookings domain.BookingRepository,
	stateMachine *services.BookingStateMachine,
	outboxRepo outbox.Repository,
	uow sharedApplication.UnitOfWork,
	metrics observability.Metrics,
	logger *slog.Logger,
) *CancelBookingHandler {
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CancelBookingHandler{
		bookings:     bookings,
		stateMachine: stateMachine,
		outboxRepo:   outboxRepo,
		uow:          uow,
		metrics:      metrics,
		logger:       logger,
	}
}

// Handle executes the CancelBookingCommand. Confirmed bookings cancelled
// inside the late-cancellation window end LATE_CANCELLED.
func (h *CancelBookingHandler) Handle(ctx context.Context, cmd CancelBookingCommand) (*domain.Booking, error) {
	var booking *domain.Booking
	err := retryStale(ctx, func(ctx context.Context) error {
		return sharedApplication.WithUnitOfWork(ctx, h.uow, func(txCtx context.Context) error {
			var err error
			booking, err = loadBooking(txCtx, h.bookings, cmd.BookingID)
			if err != nil {
				return err
			}
			role, err := booking.RoleOf(cmd.ActorID)
			if err != nil {
				return err
			}
			if err := h.stateMachine.Transition(txCtx, booking, domain.ActionCancel, role, cmd.Note); err != nil {
				return err
			}
			if err := h.bookings.Save(txCtx, booking); err != nil {
				return err
			}
			return writeEvents(txCtx, h.outboxRepo, cmd.ActorID, booking)
		})
	})
	if err != nil {
		return nil, err
	}

	h.metrics.Counter(observability.MetricBookingsCancelled, 1, observability.T("status", string(booking.Status())))
	h.logger.Info("booking cancelled",
		"booking_id", booking.ID(),
		"actor_id", cmd.ActorID,
		"status", booking.Status(),
	)
	return booking, nil
}
