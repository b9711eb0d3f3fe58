package availability

import (
	"errors"
	"fmt"

	"github.com/felixgeelhaar/nestly/adapter/cli"
	"github.com/felixgeelhaar/nestly/internal/scheduling/application/commands"
	"github.com/felixgeelhaar/nestly/internal/scheduling/domain"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	declareProvider string
	declareStart    string
	declareEnd      string
	declareKind     string
	declareRepeat   string
	declareUntil    string
)

var declareCmd = &cobra.Command{
	Use:   "declare",
	Short: "Declare available or unavailable time",
	Long: `Declare a block of available or unavailable time, once or weekly.

Unavailable time cannot cover bookings that already hold the provider's time.

Examples:
  nestly availability declare --start "2024-06-03 08:00" --end "2024-06-03 18:00"
  nestly availability declare --start "2024-06-03 08:00" --end "2024-06-03 18:00" --repeat mon,tue,wed,thu,fri --until 2024-08-30
  nestly availability declare --kind unavailable --start "2024-06-05 12:00" --end "2024-06-05 14:00"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		if app == nil || app.DeclareAvailabilityHandler == nil {
			return fmt.Errorf("application not initialized - database connection required")
		}

		providerID, err := providerOrCurrent(app, declareProvider)
		if err != nil {
			return err
		}
		kind, err := domain.ParseAvailabilityKind(declareKind)
		if err != nil {
			return err
		}
		start, err := cli.ParseInstant(declareStart, app.Location)
		if err != nil {
			return err
		}
		end, err := cli.ParseInstant(declareEnd, app.Location)
		if err != nil {
			return err
		}
		rule, err := cli.ParseRecurrence(declareRepeat, declareUntil, app.Location)
		if err != nil {
			return err
		}

		result, err := app.DeclareAvailabilityHandler.Handle(cmd.Context(), commands.DeclareAvailabilityCommand{
			ProviderID: providerID,
			Start:      start,
			End:        end,
			Kind:       kind,
			Recurrence: rule,
		})
		out := cmd.OutOrStdout()
		if err != nil {
			if result != nil {
				fmt.Fprintf(out, "Declared %d %s block(s) before the failure\n", len(result.BlockIDs), kind)
				for _, id := range result.BlockIDs {
					fmt.Fprintf(out, "  %s\n", id)
				}
				app.Flush(cmd.Context())
			}
			return errors.New(cli.Explain(err))
		}

		if result.SeriesID != uuid.Nil {
			fmt.Fprintf(out, "Series: %s\n", result.SeriesID)
		}
		fmt.Fprintf(out, "Declared %d %s block(s)\n", len(result.BlockIDs), kind)
		for _, id := range result.BlockIDs {
			fmt.Fprintf(out, "  %s\n", id)
		}
		for _, r := range result.Rejected {
			fmt.Fprintf(out, "Refused %s: %s\n", r.Date, cli.Explain(r.Err()))
		}
		return nil
	},
}

func providerOrCurrent(app *cli.App, raw string) (uuid.UUID, error) {
	if raw != "" {
		return cli.ParseID("provider", raw)
	}
	if app.CurrentUserID == uuid.Nil {
		return uuid.Nil, errors.New("provider is required: pass --provider or set NESTLY_USER_ID")
	}
	return app.CurrentUserID, nil
}

func init() {
	declareCmd.Flags().StringVar(&declareProvider, "provider", "", "provider id (defaults to the current user)")
	declareCmd.Flags().StringVar(&declareStart, "start", "", "start time")
	declareCmd.Flags().StringVar(&declareEnd, "end", "", "end time")
	declareCmd.Flags().StringVar(&declareKind, "kind", string(domain.KindAvailable), "available or unavailable")
	declareCmd.Flags().StringVar(&declareRepeat, "repeat", "", "weekdays to repeat on, e.g. mon,wed")
	declareCmd.Flags().StringVar(&declareUntil, "until", "", "last date of the series (YYYY-MM-DD)")
}
