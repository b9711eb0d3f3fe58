package mcp

import (
	"github.com/felixgeelhaar/nestly/adapter/cli"
	"github.com/felixgeelhaar/nestly/internal/app"
	"github.com/google/uuid"
)

// NewCLIApp creates a CLI application instance backed by the provided container.
func NewCLIApp(container *app.Container, currentUser uuid.UUID) *cli.App {
	cliApp := cli.NewApp(
		container.RequestBookingHandler,
		container.RespondToBookingHandler,
		container.CancelBookingHandler,
		container.SweepCompletionsHandler,
		container.DeclareAvailabilityHandler,
		container.RetractAvailabilityHandler,
		container.ListBookingsHandler,
		container.GetAvailabilityHandler,
		container.CheckAdmissionHandler,
		container.FindOpenSlotsHandler,
	)

	cliApp.SetCurrentUserID(currentUser)
	cliApp.SetHealth(container.Health)
	if container.Config != nil {
		cliApp.SetLocation(container.Config.Location())
	}

	// Only the in-process bus depends on the caller to deliver events; a
	// broker deployment has the worker draining the outbox.
	if container.EventBus != nil {
		cliApp.SetOutboxFlusher(container.FlushOutbox)
	}

	return cliApp
}
