package cli

import (
	"fmt"
	"time"

	"github.com/felixgeelhaar/nestly/internal/scheduling/application/commands"
	"github.com/spf13/cobra"
)

var sweepBatch int

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Complete confirmed bookings that have ended",
	Long: `Mark every confirmed booking whose end has passed as completed.

The worker runs this on a schedule; the command is for one-off runs.

Examples:
  nestly sweep
  nestly sweep --batch 50`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app := GetApp()
		if app == nil || app.SweepCompletionsHandler == nil {
			return fmt.Errorf("application not initialized - database connection required")
		}

		result, err := app.SweepCompletionsHandler.Handle(cmd.Context(), commands.SweepCompletionsCommand{
			Now:       time.Now(),
			BatchSize: sweepBatch,
		})
		if err != nil {
			return fmt.Errorf("sweep failed: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Completed %d booking(s)", result.Completed)
		if result.Failed > 0 {
			fmt.Fprintf(cmd.OutOrStdout(), ", %d failed", result.Failed)
		}
		fmt.Fprintln(cmd.OutOrStdout())
		return nil
	},
}

func init() {
	sweepCmd.Flags().IntVar(&sweepBatch, "batch", 200, "bookings per batch")
	rootCmd.AddCommand(sweepCmd)
}
