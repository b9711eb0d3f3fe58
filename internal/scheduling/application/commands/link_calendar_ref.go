package commands

import (
	"context"
	"errors"
	"log/slog"

	"github.com/felixgeelhaar/nestly/internal/scheduling/application/services"
	"github.com/felixgeelhaar/nestly/internal/scheduling/domain"
	sharedApplication "github.com/felixgeelhaar/nestly/internal/shared/application"
	"github.com/google/uuid"
)

// LinkCalendarRefCommand stores the external calendar reference of a block.
type LinkCalendarRefCommand struct {
	BlockID uuid.UUID
	Ref     string
}

// LinkCalendarRefHandler handles the LinkCalendarRefCommand.
type LinkCalendarRefHandler struct {
	store  *services.AvailabilityStore
	uow    sharedApplication.UnitOfWork
	clock  domain.Clock
	logger *slog.Logger
}

// NewLinkCalendarRefHandler creates a new LinkCalendarRefHandler.
func NewLinkCalendarRefHandler(store *services.AvailabilityStore, uow sharedApplication.UnitOfWork, clock domain.Clock, logger *slog.Logger) *LinkCalendarRefHandler {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LinkCalendarRefHandler{store: store, uow: uow, clock: clock, logger: logger}
}

// Handle executes the LinkCalendarRefCommand. A block retracted in the
// meantime is not an error.
func (h *LinkCalendarRefHandler) Handle(ctx context.Context, cmd LinkCalendarRefCommand) error {
	err := retryStale(ctx, func(ctx context.Context) error {
		return sharedApplication.WithUnitOfWork(ctx, h.uow, func(txCtx context.Context) error {
			block, err := h.store.Get(txCtx, cmd.BlockID)
			if err != nil {
				return err
			}
			if block.ExternalCalendarRef() == cmd.Ref {
				return nil
			}
			block.LinkExternalCalendar(cmd.Ref, h.clock.Now())
			return h.store.Save(txCtx, block)
		})
	})
	if errors.Is(err, domain.ErrBlockNotFound) {
		h.logger.Debug("block gone before calendar link", "block_id", cmd.BlockID)
		return nil
	}
	return err
}
