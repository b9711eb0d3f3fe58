package mcp

import (
	"context"
	"log/slog"
	"testing"

	"github.com/felixgeelhaar/mcp-go/testutil"
	"github.com/felixgeelhaar/nestly/adapter/cli"
	"github.com/felixgeelhaar/nestly/internal/app"
	"github.com/felixgeelhaar/nestly/pkg/config"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testContainer(t *testing.T) *app.Container {
	t.Helper()
	policy := config.DefaultSchedulingPolicy()
	policy.Timezone = "Europe/Amsterdam"
	cfg := &config.Config{
		AppEnv:          "test",
		DatabaseURL:     "memory",
		EventBroker:     config.BrokerInProcess,
		OutboxBatchSize: 100,
		Scheduling:      policy,
	}
	container, err := app.NewContainer(context.Background(), cfg, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Close() })
	return container
}

func TestNewCLIApp(t *testing.T) {
	container := testContainer(t)
	user := uuid.New()

	cliApp := NewCLIApp(container, user)
	assert.Equal(t, user, cliApp.CurrentUserID)
	assert.Equal(t, "Europe/Amsterdam", cliApp.Location.String())
	assert.Same(t, container.Health, cliApp.Health)
	assert.NotNil(t, cliApp.RequestBookingHandler)
	assert.NotNil(t, cliApp.FindOpenSlotsHandler)
}

func TestNewServer_RegistersTools(t *testing.T) {
	srv, err := NewServer(NewCLIApp(testContainer(t), uuid.New()), nil)
	require.NoError(t, err)

	tc := testutil.NewTestClient(t, srv)
	defer tc.Close()

	tools, err := tc.ListTools()
	require.NoError(t, err)
	names := make(map[any]bool)
	for _, tool := range tools {
		names[tool["name"]] = true
	}
	assert.True(t, names["booking.request"])
	assert.True(t, names["availability.declare"])
}

func TestNewServer_RequiresApp(t *testing.T) {
	_, err := NewServer(nil, nil)
	assert.Error(t, err)

	err = Serve(context.Background(), nil, &cli.App{}, nil)
	assert.Error(t, err)
}

func TestMiddlewareStack(t *testing.T) {
	adapter := mcpLogger{logger: slog.New(slog.DiscardHandler)}
	open := middlewareStack("", adapter)
	secured := middlewareStack("secret", adapter)
	assert.Len(t, secured, len(open)+1)
}
