package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/felixgeelhaar/nestly/adapter/cli"
	"github.com/felixgeelhaar/nestly/internal/app"
	mcpinternal "github.com/felixgeelhaar/nestly/internal/mcp"
	"github.com/felixgeelhaar/nestly/pkg/config"
	"github.com/felixgeelhaar/nestly/pkg/observability"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start an MCP server over HTTP. Tools act as NESTLY_USER_ID.

Set MCP_AUTH_TOKEN to require a bearer token.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if serveAddr != "" {
			cfg.MCPAddr = serveAddr
		}
		if cfg.UserID == "" {
			return errors.New("NESTLY_USER_ID is required")
		}
		userID, err := uuid.Parse(cfg.UserID)
		if err != nil {
			return fmt.Errorf("invalid NESTLY_USER_ID: %w", err)
		}

		logger := observability.LoggerFromEnv("")
		container, err := app.NewContainer(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer func() { _ = container.Close() }()

		cliApp := mcpinternal.NewCLIApp(container, userID)
		err = mcpinternal.Serve(ctx, cfg, cliApp, logger)
		if err != nil && !errors.Is(err, context.Canceled) {
			return errors.New(cli.Explain(err))
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (defaults to MCP_ADDR)")
}
