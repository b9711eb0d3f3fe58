package mcp

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/felixgeelhaar/mcp-go"
	"github.com/felixgeelhaar/mcp-go/testutil"
	"github.com/felixgeelhaar/nestly/adapter/cli"
	internalApp "github.com/felixgeelhaar/nestly/internal/app"
	"github.com/felixgeelhaar/nestly/internal/scheduling/domain"
	"github.com/felixgeelhaar/nestly/pkg/config"
	"github.com/felixgeelhaar/nestly/pkg/observability"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(t *testing.T) *cli.App {
	t.Helper()

	policy := config.DefaultSchedulingPolicy()
	policy.Timezone = "UTC"
	cfg := &config.Config{
		AppEnv:          "test",
		DatabaseURL:     "memory",
		EventBroker:     config.BrokerInProcess,
		OutboxBatchSize: 100,
		Scheduling:      policy,
	}
	container, err := internalApp.NewContainer(context.Background(), cfg, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Close() })

	app := cli.NewApp(
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
	app.SetHealth(container.Health)
	app.SetOutboxFlusher(container.FlushOutbox)
	return app
}

func at(offset, hour int) string {
	d := time.Now().UTC().AddDate(0, 0, offset)
	return time.Date(d.Year(), d.Month(), d.Day(), hour, 0, 0, 0, time.UTC).Format(time.RFC3339)
}

func TestRegisterCLITools_ListTools(t *testing.T) {
	srv := mcp.NewServer(mcp.ServerInfo{
		Name:    "test",
		Version: "1.0.0",
		Capabilities: mcp.Capabilities{
			Tools: true,
		},
	})

	app := &cli.App{}
	require.NoError(t, RegisterCLITools(srv, ToolDependencies{App: app}))

	tc := testutil.NewTestClient(t, srv)
	defer tc.Close()

	tools, err := tc.ListTools()
	require.NoError(t, err)

	names := make(map[any]bool)
	for _, tool := range tools {
		names[tool["name"]] = true
	}
	for _, want := range []string{
		"cli.health", "cli.version",
		"booking.request", "booking.accept", "booking.decline", "booking.cancel",
		"booking.list", "booking.check", "booking.sweep",
		"availability.declare", "availability.retract", "availability.show", "availability.slots",
	} {
		assert.True(t, names[want], "%s should be registered", want)
	}
}

func TestRegisterCLITools_RequiresApp(t *testing.T) {
	srv := mcp.NewServer(mcp.ServerInfo{Name: "test", Version: "1.0.0"})
	assert.Error(t, RegisterCLITools(srv, ToolDependencies{}))
	assert.Error(t, RegisterCLITools(nil, ToolDependencies{App: &cli.App{}}))
}

func TestBookingTools_Workflow(t *testing.T) {
	app := newTestApp(t)
	ctx := context.Background()
	provider := uuid.New()
	family := uuid.New()

	app.SetCurrentUserID(provider)
	declared, err := declareAvailability(ctx, app, availabilityDeclareInput{Start: at(3, 8), End: at(3, 18)})
	require.NoError(t, err)
	require.Len(t, declared.BlockIDs, 1)

	app.SetCurrentUserID(family)
	requested, err := requestBooking(ctx, app, bookingRequestInput{
		ProviderID: provider.String(),
		Start:      at(3, 9),
		End:        at(3, 12),
	})
	require.NoError(t, err)
	require.Len(t, requested.Booked, 1)
	bookingID := requested.Booked[0].BookingID.String()

	_, err = requestBooking(ctx, app, bookingRequestInput{
		ProviderID: provider.String(),
		ConsumerID: uuid.NewString(),
		Start:      at(3, 10),
		End:        at(3, 11),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already booked")

	verdict, err := checkAdmission(ctx, app, bookingCheckInput{ProviderID: provider.String(), Start: at(3, 19), End: at(3, 20)})
	require.NoError(t, err)
	assert.False(t, verdict.OK)
	assert.Equal(t, string(domain.ReasonOutsideDeclaredAvailability), verdict.Reason)

	app.SetCurrentUserID(provider)
	confirmed, err := respondToBooking(ctx, app, domain.ActionAccept, bookingRespondInput{BookingID: bookingID})
	require.NoError(t, err)
	assert.Equal(t, string(domain.StatusConfirmed), confirmed.Status)

	listed, err := listBookings(ctx, app, bookingListInput{Statuses: []string{"confirmed"}, Days: 7})
	require.NoError(t, err)
	assert.Empty(t, listed, "without ids the current user is taken as the family")

	listed, err = listBookings(ctx, app, bookingListInput{ProviderID: provider.String(), Days: 7})
	require.NoError(t, err)
	require.Len(t, listed, 1)

	slots, err := findSlots(ctx, app, availabilitySlotsInput{Date: at(3, 0)[:10], DurationMinutes: 60, StepMinutes: 60})
	require.NoError(t, err)
	for _, s := range slots {
		assert.False(t, s.Start.Hour() >= 9 && s.Start.Hour() < 12, "slot at %s overlaps the booking", s.Start)
	}

	app.SetCurrentUserID(family)
	cancelled, err := cancelBooking(ctx, app, bookingRespondInput{BookingID: bookingID, Note: "sick"})
	require.NoError(t, err)
	assert.Equal(t, string(domain.StatusCancelled), cancelled.Status)
}

func TestBookingTools_InputErrors(t *testing.T) {
	app := newTestApp(t)
	ctx := context.Background()

	_, err := requestBooking(ctx, app, bookingRequestInput{Start: at(3, 9), End: at(3, 12)})
	assert.ErrorContains(t, err, "provider_id is required")

	_, err = requestBooking(ctx, app, bookingRequestInput{ProviderID: uuid.NewString(), Start: at(3, 9), End: at(3, 12)})
	assert.ErrorContains(t, err, "consumer_id is required")

	app.SetCurrentUserID(uuid.New())
	_, err = requestBooking(ctx, app, bookingRequestInput{ProviderID: uuid.NewString(), Start: at(3, 9)})
	assert.ErrorContains(t, err, "start and end are required")

	_, err = respondToBooking(ctx, app, domain.ActionAccept, bookingRespondInput{BookingID: "nope"})
	assert.ErrorContains(t, err, "invalid booking_id")

	_, err = respondToBooking(ctx, app, domain.ActionAccept, bookingRespondInput{BookingID: uuid.NewString()})
	assert.ErrorContains(t, err, "booking not found")

	var nilApp *cli.App
	_, err = requestBooking(ctx, nilApp, bookingRequestInput{})
	assert.Error(t, err)
}

func TestAvailabilityTools(t *testing.T) {
	app := newTestApp(t)
	ctx := context.Background()
	provider := uuid.New()
	app.SetCurrentUserID(provider)

	declared, err := declareAvailability(ctx, app, availabilityDeclareInput{Start: at(4, 9), End: at(4, 12), Kind: "unavailable"})
	require.NoError(t, err)
	require.Len(t, declared.BlockIDs, 1)

	day, err := showAvailability(ctx, app, availabilityShowInput{Date: at(4, 0)[:10]})
	require.NoError(t, err)
	require.Len(t, day.Blocks, 1)
	assert.Equal(t, string(domain.KindUnavailable), day.Blocks[0].Kind)

	_, err = declareAvailability(ctx, app, availabilityDeclareInput{Start: at(4, 9), End: at(4, 12), Kind: "busy"})
	assert.Error(t, err)

	removed, err := retractAvailability(ctx, app, availabilityRetractInput{BlockID: declared.BlockIDs[0].String()})
	require.NoError(t, err)
	assert.Equal(t, "removed", removed["status"])

	_, err = retractAvailability(ctx, app, availabilityRetractInput{BlockID: declared.BlockIDs[0].String()})
	assert.ErrorContains(t, err, "availability block not found")
}

func TestHealthTool(t *testing.T) {
	report, err := healthTool(context.Background(), &cli.App{})
	require.NoError(t, err)
	assert.Equal(t, observability.HealthStatusHealthy, report.Status)

	app := newTestApp(t)
	report, err = healthTool(context.Background(), app)
	require.NoError(t, err)
	assert.Contains(t, report.Checks, "process")

	_, err = healthTool(context.Background(), nil)
	assert.Error(t, err)
}
