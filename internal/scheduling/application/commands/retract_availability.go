package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/felixgeelhaar/nestly/internal/scheduling/application/services"
	"github.com/felixgeelhaar/nestly/internal/scheduling/domain"
	sharedApplication "github.com/felixgeelhaar/nestly/internal/shared/application"
	"github.com/felixgeelhaar/nestly/internal/shared/infrastructure/outbox"
	"github.com/google/uuid"
)

// RetractAvailabilityCommand removes a block. ProviderID, when set, must own
// the block.
type RetractAvailabilityCommand struct {
	BlockID    uuid.UUID
	ProviderID uuid.UUID
}

// RetractAvailabilityHandler handles the RetractAvailabilityCommand.
type RetractAvailabilityHandler struct {
	store      *services.AvailabilityStore
	locker     domain.ProviderLocker
	outboxRepo outbox.Repository
	uow        sharedApplication.UnitOfWork
	logger     *slog.Logger
}

// NewRetractAvailabilityHandler creates a new RetractAvailabilityHandler.
func NewRetractAvailabilityHandler(
	store *services.AvailabilityStore,
	locker domain.ProviderLocker,
	outboxRepo outbox.Repository,
	uow sharedApplication.UnitOfWork,
	logger *slog.Logger,
) *RetractAvailabilityHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RetractAvailabilityHandler{
		store:      store,
		locker:     locker,
		outboxRepo: outboxRepo,
		uow:        uow,
		logger:     logger,
	}
}

// Handle executes the RetractAvailabilityCommand.
func (h *RetractAvailabilityHandler) Handle(ctx context.Context, cmd RetractAvailabilityCommand) error {
	err := sharedApplication.WithUnitOfWork(ctx, h.uow, func(txCtx context.Context) error {
		block, err := h.store.Get(txCtx, cmd.BlockID)
		if err != nil {
			return err
		}
		if cmd.ProviderID != uuid.Nil && block.ProviderID() != cmd.ProviderID {
			return fmt.Errorf("%w: block %s belongs to another provider", domain.ErrUnauthorized, block.ID())
		}
		if err := h.locker.LockProvider(txCtx, block.ProviderID()); err != nil {
			return err
		}

		removed, err := h.store.RemoveBlock(txCtx, block.ID())
		if err != nil {
			return err
		}
		return writeEvents(txCtx, h.outboxRepo, removed.ProviderID(), removed)
	})
	if err != nil {
		return err
	}

	h.logger.Info("availability retracted", "block_id", cmd.BlockID)
	return nil
}
