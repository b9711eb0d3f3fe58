package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/felixgeelhaar/nestly/adapter/cli"
	"github.com/felixgeelhaar/nestly/adapter/cli/availability"
	"github.com/felixgeelhaar/nestly/adapter/cli/booking"
	"github.com/felixgeelhaar/nestly/adapter/cli/mcp"
	"github.com/felixgeelhaar/nestly/internal/app"
	mcpinternal "github.com/felixgeelhaar/nestly/internal/mcp"
	"github.com/felixgeelhaar/nestly/pkg/config"
	"github.com/felixgeelhaar/nestly/pkg/observability"
	"github.com/google/uuid"
)

func main() {
	logger := observability.LoggerFromEnv("")

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		cancel()
	}()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cli.SetLogger(logger)

	var cliApp *cli.App
	container, err := app.NewContainer(ctx, cfg, logger)
	if err != nil {
		if cfg.IsDevelopment() {
			// version and help still work without storage
			logger.Warn("failed to initialize container, running in limited mode", "error", err)
		} else {
			logger.Error("failed to initialize container", "error", err)
			os.Exit(1)
		}
	} else {
		defer func() { _ = container.Close() }()

		userID := uuid.Nil
		if cfg.UserID != "" {
			userID, err = uuid.Parse(cfg.UserID)
			if err != nil {
				logger.Error("invalid NESTLY_USER_ID", "error", err)
				os.Exit(1)
			}
		}
		cliApp = mcpinternal.NewCLIApp(container, userID)
	}

	cli.SetApp(cliApp)

	cli.AddCommand(booking.Cmd)
	cli.AddCommand(availability.Cmd)
	cli.AddCommand(mcp.Cmd)

	cli.Execute(ctx)
}
