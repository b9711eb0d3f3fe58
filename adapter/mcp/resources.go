package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/felixgeelhaar/mcp-go"
	"github.com/felixgeelhaar/nestly/internal/scheduling/application/queries"
	"github.com/felixgeelhaar/nestly/internal/scheduling/domain"
)

// upcomingDays is how far ahead the booking resources look.
const upcomingDays = 14

// RegisterResources registers read-only views of the current user's calendar.
func RegisterResources(srv *mcp.Server, deps ToolDependencies) error {
	if srv == nil {
		return fmt.Errorf("server is required")
	}
	app := deps.App

	srv.Resource("nestly://bookings/upcoming").
		Name("Upcoming bookings").
		Description("Bookings the current user made for the next two weeks").
		MimeType("application/json").
		Handler(func(ctx context.Context, uri string, params map[string]string) (*mcp.ResourceContent, error) {
			if app == nil || app.ListBookingsHandler == nil {
				return nil, fmt.Errorf("booking listing requires database connection")
			}
			from := domain.DateOf(time.Now(), app.Location)
			bookings, err := app.ListBookingsHandler.Handle(ctx, queries.ListBookingsQuery{
				ConsumerID: app.CurrentUserID,
				From:       from,
				To:         from.AddDate(0, 0, upcomingDays),
			})
			if err != nil {
				return nil, err
			}
			return jsonContent(uri, bookings)
		})

	srv.Resource("nestly://bookings/requests").
		Name("Pending requests").
		Description("Pending requests waiting for the current user to accept or decline").
		MimeType("application/json").
		Handler(func(ctx context.Context, uri string, params map[string]string) (*mcp.ResourceContent, error) {
			if app == nil || app.ListBookingsHandler == nil {
				return nil, fmt.Errorf("booking listing requires database connection")
			}
			from := domain.DateOf(time.Now(), app.Location)
			bookings, err := app.ListBookingsHandler.Handle(ctx, queries.ListBookingsQuery{
				ProviderID: app.CurrentUserID,
				From:       from,
				To:         from.AddDate(0, 0, upcomingDays),
				Statuses:   []domain.BookingStatus{domain.StatusPending},
			})
			if err != nil {
				return nil, err
			}
			return jsonContent(uri, bookings)
		})

	srv.Resource("nestly://availability/today").
		Name("Today's availability").
		Description("The current provider's blocks and bookings for today").
		MimeType("application/json").
		Handler(func(ctx context.Context, uri string, params map[string]string) (*mcp.ResourceContent, error) {
			if app == nil || app.GetAvailabilityHandler == nil {
				return nil, fmt.Errorf("availability requires database connection")
			}
			day, err := app.GetAvailabilityHandler.Handle(ctx, queries.GetAvailabilityQuery{
				ProviderID: app.CurrentUserID,
				Date:       time.Now(),
			})
			if err != nil {
				return nil, err
			}
			return jsonContent(uri, day)
		})

	srv.Resource("nestly://system/health").
		Name("Health").
		Description("Dependency health report").
		MimeType("application/json").
		Handler(func(ctx context.Context, uri string, params map[string]string) (*mcp.ResourceContent, error) {
			report, err := healthTool(ctx, app)
			if err != nil {
				return nil, err
			}
			return jsonContent(uri, report)
		})

	return nil
}

func jsonContent(uri string, v any) (*mcp.ResourceContent, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return &mcp.ResourceContent{
		URI:      uri,
		MimeType: "application/json",
		Text:     string(data),
	}, nil
}
