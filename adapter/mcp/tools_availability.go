package mcp

import (
	"context"
	"errors"
	"time"

	"github.com/felixgeelhaar/mcp-go"
	"github.com/felixgeelhaar/nestly/adapter/cli"
	"github.com/felixgeelhaar/nestly/internal/scheduling/application/commands"
	"github.com/felixgeelhaar/nestly/internal/scheduling/application/queries"
	"github.com/felixgeelhaar/nestly/internal/scheduling/domain"
)

type availabilityDeclareInput struct {
	ProviderID string `json:"provider_id,omitempty"`
	Start      string `json:"start" jsonschema:"required"`
	End        string `json:"end" jsonschema:"required"`
	Kind       string `json:"kind,omitempty"`
	Repeat     string `json:"repeat,omitempty"`
	Until      string `json:"until,omitempty"`
}

type availabilityRetractInput struct {
	BlockID string `json:"block_id" jsonschema:"required"`
}

type availabilityShowInput struct {
	ProviderID string `json:"provider_id,omitempty"`
	Date       string `json:"date,omitempty"`
}

type availabilitySlotsInput struct {
	ProviderID      string `json:"provider_id,omitempty"`
	Date            string `json:"date,omitempty"`
	DurationMinutes int    `json:"duration_minutes,omitempty"`
	StepMinutes     int    `json:"step_minutes,omitempty"`
	Emergency       bool   `json:"emergency,omitempty"`
}

func registerAvailabilityTools(srv *mcp.Server, deps ToolDependencies) error {
	app := deps.App

	srv.Tool("availability.declare").
		Description("Declare a provider's available or unavailable time, once or weekly").
		Handler(func(ctx context.Context, input availabilityDeclareInput) (*commands.DeclareAvailabilityResult, error) {
			return declareAvailability(ctx, app, input)
		})

	srv.Tool("availability.retract").
		Description("Remove an availability block the current provider owns").
		Handler(func(ctx context.Context, input availabilityRetractInput) (map[string]string, error) {
			return retractAvailability(ctx, app, input)
		})

	srv.Tool("availability.show").
		Description("Show a provider's blocks and active bookings on a date").
		Handler(func(ctx context.Context, input availabilityShowInput) (*queries.DayAvailabilityDTO, error) {
			return showAvailability(ctx, app, input)
		})

	srv.Tool("availability.slots").
		Description("Find the open slots of a given length on a provider's date").
		Handler(func(ctx context.Context, input availabilitySlotsInput) ([]queries.TimeSlotDTO, error) {
			return findSlots(ctx, app, input)
		})

	return nil
}

func declareAvailability(ctx context.Context, app *cli.App, input availabilityDeclareInput) (*commands.DeclareAvailabilityResult, error) {
	if app == nil || app.DeclareAvailabilityHandler == nil {
		return nil, errors.New("declaring availability requires database connection")
	}
	providerID, err := userOr(app, "provider_id", input.ProviderID)
	if err != nil {
		return nil, err
	}
	start, end, err := parseRange(app, input.Start, input.End)
	if err != nil {
		return nil, err
	}
	kind := domain.KindAvailable
	if input.Kind != "" {
		if kind, err = domain.ParseAvailabilityKind(input.Kind); err != nil {
			return nil, err
		}
	}
	rule, err := cli.ParseRecurrence(input.Repeat, input.Until, app.Location)
	if err != nil {
		return nil, err
	}

	result, err := app.DeclareAvailabilityHandler.Handle(ctx, commands.DeclareAvailabilityCommand{
		ProviderID: providerID,
		Start:      start,
		End:        end,
		Kind:       kind,
		Recurrence: rule,
	})
	if err != nil {
		if result != nil {
			app.Flush(ctx)
			return nil, interruptedError(err, result.BlockIDs)
		}
		return nil, toolError(err)
	}
	app.Flush(ctx)
	return result, nil
}

func retractAvailability(ctx context.Context, app *cli.App, input availabilityRetractInput) (map[string]string, error) {
	if app == nil || app.RetractAvailabilityHandler == nil {
		return nil, errors.New("retracting availability requires database connection")
	}
	blockID, err := parseUUID("block_id", input.BlockID)
	if err != nil {
		return nil, err
	}
	err = app.RetractAvailabilityHandler.Handle(ctx, commands.RetractAvailabilityCommand{
		BlockID:    blockID,
		ProviderID: app.CurrentUserID,
	})
	if err != nil {
		return nil, toolError(err)
	}
	app.Flush(ctx)
	return map[string]string{"block_id": blockID.String(), "status": "removed"}, nil
}

func showAvailability(ctx context.Context, app *cli.App, input availabilityShowInput) (*queries.DayAvailabilityDTO, error) {
	if app == nil || app.GetAvailabilityHandler == nil {
		return nil, errors.New("availability requires database connection")
	}
	providerID, err := userOr(app, "provider_id", input.ProviderID)
	if err != nil {
		return nil, err
	}
	date, err := cli.ParseDate(input.Date, app.Location)
	if err != nil {
		return nil, err
	}
	day, err := app.GetAvailabilityHandler.Handle(ctx, queries.GetAvailabilityQuery{
		ProviderID: providerID,
		Date:       date,
	})
	if err != nil {
		return nil, toolError(err)
	}
	return day, nil
}

func findSlots(ctx context.Context, app *cli.App, input availabilitySlotsInput) ([]queries.TimeSlotDTO, error) {
	if app == nil || app.FindOpenSlotsHandler == nil {
		return nil, errors.New("slot search requires database connection")
	}
	providerID, err := userOr(app, "provider_id", input.ProviderID)
	if err != nil {
		return nil, err
	}
	date, err := cli.ParseDate(input.Date, app.Location)
	if err != nil {
		return nil, err
	}
	duration := input.DurationMinutes
	if duration <= 0 {
		duration = 60
	}
	step := input.StepMinutes
	if step <= 0 {
		step = 30
	}

	slots, err := app.FindOpenSlotsHandler.Handle(ctx, queries.FindOpenSlotsQuery{
		ProviderID:  providerID,
		Date:        date,
		Duration:    time.Duration(duration) * time.Minute,
		Step:        time.Duration(step) * time.Minute,
		IsEmergency: input.Emergency,
	})
	if err != nil {
		return nil, toolError(err)
	}
	return slots, nil
}
