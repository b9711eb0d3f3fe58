package mcp

import (
	"context"
	"errors"

	"github.com/felixgeelhaar/mcp-go"
	"github.com/felixgeelhaar/nestly/adapter/cli"
	"github.com/felixgeelhaar/nestly/internal/scheduling/application/commands"
	"github.com/felixgeelhaar/nestly/internal/scheduling/application/queries"
	"github.com/felixgeelhaar/nestly/internal/scheduling/domain"
	"github.com/google/uuid"
)

type bookingRequestInput struct {
	ProviderID     string   `json:"provider_id" jsonschema:"required"`
	ConsumerID     string   `json:"consumer_id,omitempty"`
	Start          string   `json:"start" jsonschema:"required"`
	End            string   `json:"end" jsonschema:"required"`
	Children       []string `json:"children,omitempty"`
	Emergency      bool     `json:"emergency,omitempty"`
	Repeat         string   `json:"repeat,omitempty"`
	Until          string   `json:"until,omitempty"`
	IdempotencyKey string   `json:"idempotency_key,omitempty"`
}

type bookingRespondInput struct {
	BookingID string `json:"booking_id" jsonschema:"required"`
	Note      string `json:"note,omitempty"`
}

type bookingListInput struct {
	ProviderID string   `json:"provider_id,omitempty"`
	ConsumerID string   `json:"consumer_id,omitempty"`
	From       string   `json:"from,omitempty"`
	Days       int      `json:"days,omitempty"`
	Statuses   []string `json:"statuses,omitempty"`
}

type bookingCheckInput struct {
	ProviderID string `json:"provider_id" jsonschema:"required"`
	Start      string `json:"start" jsonschema:"required"`
	End        string `json:"end" jsonschema:"required"`
	Emergency  bool   `json:"emergency,omitempty"`
}

type sweepInput struct {
	BatchSize int `json:"batch_size,omitempty"`
}

func registerBookingTools(srv *mcp.Server, deps ToolDependencies) error {
	app := deps.App

	srv.Tool("booking.request").
		Description("Request a booking with a provider, once or weekly. Free occurrences are booked; refused ones are listed with the reason").
		Handler(func(ctx context.Context, input bookingRequestInput) (*commands.RequestBookingResult, error) {
			return requestBooking(ctx, app, input)
		})

	srv.Tool("booking.accept").
		Description("Accept a pending booking as its provider").
		Handler(func(ctx context.Context, input bookingRespondInput) (*queries.BookingDTO, error) {
			return respondToBooking(ctx, app, domain.ActionAccept, input)
		})

	srv.Tool("booking.decline").
		Description("Decline a pending booking as its provider. A note is required").
		Handler(func(ctx context.Context, input bookingRespondInput) (*queries.BookingDTO, error) {
			return respondToBooking(ctx, app, domain.ActionDecline, input)
		})

	srv.Tool("booking.cancel").
		Description("Cancel a booking as its family or provider. Late cancellations are flagged").
		Handler(func(ctx context.Context, input bookingRespondInput) (*queries.BookingDTO, error) {
			return cancelBooking(ctx, app, input)
		})

	srv.Tool("booking.list").
		Description("List bookings of a provider or a family in a date window").
		Handler(func(ctx context.Context, input bookingListInput) ([]queries.BookingDTO, error) {
			return listBookings(ctx, app, input)
		})

	srv.Tool("booking.check").
		Description("Check whether a time could be booked, without booking it").
		Handler(func(ctx context.Context, input bookingCheckInput) (*queries.AdmissionDTO, error) {
			return checkAdmission(ctx, app, input)
		})

	srv.Tool("booking.sweep").
		Description("Mark confirmed bookings that have ended as completed").
		Handler(func(ctx context.Context, input sweepInput) (*commands.SweepCompletionsResult, error) {
			if app == nil || app.SweepCompletionsHandler == nil {
				return nil, errors.New("sweeping requires database connection")
			}
			result, err := app.SweepCompletionsHandler.Handle(ctx, commands.SweepCompletionsCommand{BatchSize: input.BatchSize})
			if err != nil {
				return nil, toolError(err)
			}
			app.Flush(ctx)
			return result, nil
		})

	return nil
}

func requestBooking(ctx context.Context, app *cli.App, input bookingRequestInput) (*commands.RequestBookingResult, error) {
	if app == nil || app.RequestBookingHandler == nil {
		return nil, errors.New("booking requires database connection")
	}
	providerID, err := parseUUID("provider_id", input.ProviderID)
	if err != nil {
		return nil, err
	}
	consumerID, err := userOr(app, "consumer_id", input.ConsumerID)
	if err != nil {
		return nil, err
	}
	start, end, err := parseRange(app, input.Start, input.End)
	if err != nil {
		return nil, err
	}
	children, err := cli.ParseIDs("child", input.Children)
	if err != nil {
		return nil, err
	}
	rule, err := cli.ParseRecurrence(input.Repeat, input.Until, app.Location)
	if err != nil {
		return nil, err
	}

	result, err := app.RequestBookingHandler.Handle(ctx, commands.RequestBookingCommand{
		ConsumerID:     consumerID,
		ProviderID:     providerID,
		Start:          start,
		End:            end,
		Children:       children,
		IsEmergency:    input.Emergency,
		Recurrence:     rule,
		IdempotencyKey: input.IdempotencyKey,
	})
	if err != nil {
		if result != nil {
			app.Flush(ctx)
			committed := make([]uuid.UUID, len(result.Booked))
			for i, b := range result.Booked {
				committed[i] = b.BookingID
			}
			return nil, interruptedError(err, committed)
		}
		return nil, toolError(err)
	}
	app.Flush(ctx)
	return result, nil
}

func respondToBooking(ctx context.Context, app *cli.App, action domain.Action, input bookingRespondInput) (*queries.BookingDTO, error) {
	if app == nil || app.RespondToBookingHandler == nil {
		return nil, errors.New("responding requires database connection")
	}
	bookingID, err := parseUUID("booking_id", input.BookingID)
	if err != nil {
		return nil, err
	}
	booking, err := app.RespondToBookingHandler.Handle(ctx, commands.RespondToBookingCommand{
		BookingID: bookingID,
		ActorID:   app.CurrentUserID,
		Action:    action,
		Note:      input.Note,
	})
	if err != nil {
		return nil, toolError(err)
	}
	app.Flush(ctx)
	dto := queries.ToBookingDTO(booking)
	return &dto, nil
}

func cancelBooking(ctx context.Context, app *cli.App, input bookingRespondInput) (*queries.BookingDTO, error) {
	if app == nil || app.CancelBookingHandler == nil {
		return nil, errors.New("cancelling requires database connection")
	}
	bookingID, err := parseUUID("booking_id", input.BookingID)
	if err != nil {
		return nil, err
	}
	booking, err := app.CancelBookingHandler.Handle(ctx, commands.CancelBookingCommand{
		BookingID: bookingID,
		ActorID:   app.CurrentUserID,
		Note:      input.Note,
	})
	if err != nil {
		return nil, toolError(err)
	}
	app.Flush(ctx)
	dto := queries.ToBookingDTO(booking)
	return &dto, nil
}

func listBookings(ctx context.Context, app *cli.App, input bookingListInput) ([]queries.BookingDTO, error) {
	if app == nil || app.ListBookingsHandler == nil {
		return nil, errors.New("booking listing requires database connection")
	}
	query := queries.ListBookingsQuery{}
	var err error
	if input.ProviderID != "" {
		if query.ProviderID, err = cli.ParseID("provider_id", input.ProviderID); err != nil {
			return nil, err
		}
	}
	if input.ConsumerID != "" {
		if query.ConsumerID, err = cli.ParseID("consumer_id", input.ConsumerID); err != nil {
			return nil, err
		}
	}
	if query.ProviderID == uuid.Nil && query.ConsumerID == uuid.Nil {
		query.ConsumerID = app.CurrentUserID
	}

	from, err := cli.ParseDate(input.From, app.Location)
	if err != nil {
		return nil, err
	}
	days := input.Days
	if days <= 0 {
		days = 7
	}
	query.From = from
	query.To = from.AddDate(0, 0, days)

	for _, raw := range input.Statuses {
		status, err := domain.ParseBookingStatus(raw)
		if err != nil {
			return nil, err
		}
		query.Statuses = append(query.Statuses, status)
	}

	bookings, err := app.ListBookingsHandler.Handle(ctx, query)
	if err != nil {
		return nil, toolError(err)
	}
	return bookings, nil
}

func checkAdmission(ctx context.Context, app *cli.App, input bookingCheckInput) (*queries.AdmissionDTO, error) {
	if app == nil || app.CheckAdmissionHandler == nil {
		return nil, errors.New("checking requires database connection")
	}
	providerID, err := parseUUID("provider_id", input.ProviderID)
	if err != nil {
		return nil, err
	}
	start, end, err := parseRange(app, input.Start, input.End)
	if err != nil {
		return nil, err
	}
	verdict, err := app.CheckAdmissionHandler.Handle(ctx, queries.CheckAdmissionQuery{
		ProviderID:  providerID,
		Start:       start,
		End:         end,
		IsEmergency: input.Emergency,
	})
	if err != nil {
		return nil, toolError(err)
	}
	return verdict, nil
}
