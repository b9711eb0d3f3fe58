package cli

import (
	"context"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/nestly/internal/scheduling/application/commands"
	"github.com/felixgeelhaar/nestly/internal/scheduling/application/queries"
	"github.com/felixgeelhaar/nestly/pkg/observability"
	"github.com/google/uuid"
)

// App holds the CLI application dependencies.
type App struct {
	// Booking Command Handlers
	RequestBookingHandler   *commands.RequestBookingHandler
	RespondToBookingHandler *commands.RespondToBookingHandler
	CancelBookingHandler    *commands.CancelBookingHandler
	SweepCompletionsHandler *commands.SweepCompletionsHandler

	// Availability Command Handlers
	DeclareAvailabilityHandler *commands.DeclareAvailabilityHandler
	RetractAvailabilityHandler *commands.RetractAvailabilityHandler

	// Query Handlers
	ListBookingsHandler    *queries.ListBookingsHandler
	GetAvailabilityHandler *queries.GetAvailabilityHandler
	CheckAdmissionHandler  *queries.CheckAdmissionHandler
	FindOpenSlotsHandler   *queries.FindOpenSlotsHandler

	Health *observability.HealthRegistry

	// Location interprets wall-clock input such as "2024-06-03 09:00".
	Location *time.Location

	// Current user (configured per environment)
	CurrentUserID uuid.UUID

	flush func(ctx context.Context) error
}

// NewApp creates a new CLI application with the provided handlers.
func NewApp(
	requestBookingHandler *commands.RequestBookingHandler,
	respondToBookingHandler *commands.RespondToBookingHandler,
	cancelBookingHandler *commands.CancelBookingHandler,
	sweepCompletionsHandler *commands.SweepCompletionsHandler,
	declareAvailabilityHandler *commands.DeclareAvailabilityHandler,
	retractAvailabilityHandler *commands.RetractAvailabilityHandler,
	listBookingsHandler *queries.ListBookingsHandler,
	getAvailabilityHandler *queries.GetAvailabilityHandler,
	checkAdmissionHandler *queries.CheckAdmissionHandler,
	findOpenSlotsHandler *queries.FindOpenSlotsHandler,
) *App {
	return &App{
		RequestBookingHandler:      requestBookingHandler,
		RespondToBookingHandler:    respondToBookingHandler,
		CancelBookingHandler:       cancelBookingHandler,
		SweepCompletionsHandler:    sweepCompletionsHandler,
		DeclareAvailabilityHandler: declareAvailabilityHandler,
		RetractAvailabilityHandler: retractAvailabilityHandler,
		ListBookingsHandler:        listBookingsHandler,
		GetAvailabilityHandler:     getAvailabilityHandler,
		CheckAdmissionHandler:      checkAdmissionHandler,
		FindOpenSlotsHandler:       findOpenSlotsHandler,
		Location:                   time.UTC,
		CurrentUserID:              uuid.Nil,
	}
}

// SetCurrentUserID updates the current user ID.
func (a *App) SetCurrentUserID(id uuid.UUID) {
	a.CurrentUserID = id
}

// SetLocation updates the input time zone.
func (a *App) SetLocation(loc *time.Location) {
	if loc != nil {
		a.Location = loc
	}
}

// SetHealth updates the health registry.
func (a *App) SetHealth(health *observability.HealthRegistry) {
	a.Health = health
}

// SetOutboxFlusher installs the func run after every command. With the
// in-process broker it delivers the events the command wrote.
func (a *App) SetOutboxFlusher(flush func(ctx context.Context) error) {
	a.flush = flush
}

// Flush runs the outbox flusher, if any. Failures are logged; the command
// itself already committed.
func (a *App) Flush(ctx context.Context) {
	if a.flush == nil {
		return
	}
	if err := a.flush(ctx); err != nil {
		l := logger
		if l == nil {
			l = slog.Default()
		}
		l.WarnContext(ctx, "failed to deliver pending events", "error", err)
	}
}

// app is the global CLI application instance
var app *App

// SetApp sets the global CLI application instance.
func SetApp(a *App) {
	app = a
}

// GetApp returns the global CLI application instance.
func GetApp() *App {
	return app
}
