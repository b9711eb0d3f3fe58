package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/felixgeelhaar/nestly/internal/scheduling/application/services"
	"github.com/felixgeelhaar/nestly/internal/scheduling/domain"
	sharedApplication "github.com/felixgeelhaar/nestly/internal/shared/application"
	"github.com/felixgeelhaar/nestly/internal/shared/infrastructure/outbox"
	"github.com/felixgeelhaar/nestly/pkg/observability"
	"github.com/google/uuid"
)

// RespondToBookingCommand is the provider's answer to a pending request.
type RespondToBookingCommand struct {
	BookingID uuid.UUID
	ActorID   uuid.UUID
	Action    domain.Action
	Note      string
}

// RespondToBookingHandler handles the RespondToBookingCommand.
type RespondToBookingHandler struct {
	bookings     domain.BookingRepository
	locker       domain.ProviderLocker
	stateMachine *services.BookingStateMachine
	outboxRepo   outbox.Repository
	uow          sharedApplication.UnitOfWork
	metrics      observability.Metrics
	logger       *slog.Logger
}

// NewRespondToBookingHandler creates a new RespondToBookingHandler.
func NewRespondToBookingHandler(
	bookings domain.BookingRepository,
	locker domain.ProviderLocker,
	stateMachine *services.BookingStateMachine,
	outboxRepo outbox.Repository,
	uow sharedApplication.UnitOfWork,
	metrics observability.Metrics,
	logger *slog.Logger,
) *RespondToBookingHandler {
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RespondToBookingHandler{
		bookings:     bookings,
		locker:       locker,
		stateMachine: stateMachine,
		outboxRepo:   outboxRepo,
		uow:          uow,
		metrics:      metrics,
		logger:       logger,
	}
}

// Handle executes the RespondToBookingCommand. Only the booking's provider
// may respond. Accepting re-admits the booking under the provider lock and
// fails with domain.ErrNoLongerAvailable if its time has been taken.
func (h *RespondToBookingHandler) Handle(ctx context.Context, cmd RespondToBookingCommand) (*domain.Booking, error) {
	if cmd.Action != domain.ActionAccept && cmd.Action != domain.ActionDecline {
		return nil, fmt.Errorf("%w: respond takes accept or decline, got %q", domain.ErrIllegalTransition, cmd.Action)
	}

	var booking *domain.Booking
	err := retryStale(ctx, func(ctx context.Context) error {
		return sharedApplication.WithUnitOfWork(ctx, h.uow, func(txCtx context.Context) error {
			var err error
			booking, err = loadBooking(txCtx, h.bookings, cmd.BookingID)
			if err != nil {
				return err
			}
			if booking.ProviderID() != cmd.ActorID {
				return fmt.Errorf("%w: only the provider can respond to booking %s", domain.ErrUnauthorized, booking.ID())
			}

			if cmd.Action == domain.ActionAccept {
				if err := h.locker.LockProvider(txCtx, booking.ProviderID()); err != nil {
					return err
				}
			}
			if err := h.stateMachine.Transition(txCtx, booking, cmd.Action, domain.RoleProvider, cmd.Note); err != nil {
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

	if cmd.Action == domain.ActionAccept {
		h.metrics.Counter(observability.MetricBookingsConfirmed, 1)
	} else {
		h.metrics.Counter(observability.MetricBookingsCancelled, 1, observability.T("status", string(booking.Status())))
	}
	h.logger.Info("booking answered",
		"booking_id", booking.ID(),
		"action", cmd.Action,
		"status", booking.Status(),
	)
	return booking, nil
}

func loadBooking(ctx context.Context, repo domain.BookingRepository, id uuid.UUID) (*domain.Booking, error) {
	booking, err := repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find booking: %w", err)
	}
	if booking == nil {
		return nil, domain.ErrBookingNotFound
	}
	return booking, nil
}
