package availability

import (
	"errors"
	"fmt"

	"github.com/felixgeelhaar/nestly/adapter/cli"
	"github.com/felixgeelhaar/nestly/internal/scheduling/application/queries"
	"github.com/spf13/cobra"
)

var (
	showProvider string
	showDate     string
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show a provider's day",
	Long: `Show the availability blocks and active bookings of a provider on a date.

Examples:
  nestly availability show --provider <id>
  nestly availability show --provider <id> --date 2024-06-03`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		if app == nil || app.GetAvailabilityHandler == nil {
			return fmt.Errorf("application not initialized - database connection required")
		}
		providerID, err := providerOrCurrent(app, showProvider)
		if err != nil {
			return err
		}
		date, err := cli.ParseDate(showDate, app.Location)
		if err != nil {
			return err
		}

		day, err := app.GetAvailabilityHandler.Handle(cmd.Context(), queries.GetAvailabilityQuery{
			ProviderID: providerID,
			Date:       date,
		})
		if err != nil {
			return errors.New(cli.Explain(err))
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s\n", date.Format("Monday, January 2, 2006"))
		if len(day.Blocks) == 0 {
			fmt.Fprintln(out, "  no availability declared")
		}
		for _, b := range day.Blocks {
			fmt.Fprintf(out, "  %s - %s  %-11s %s\n",
				b.Start.In(app.Location).Format("15:04"),
				b.End.In(app.Location).Format("15:04"),
				b.Kind,
				b.ID,
			)
		}
		if len(day.Bookings) > 0 {
			fmt.Fprintln(out, "Bookings:")
			for _, b := range day.Bookings {
				fmt.Fprintf(out, "  %s - %s  %-11s %s\n",
					b.Start.In(app.Location).Format("15:04"),
					b.End.In(app.Location).Format("15:04"),
					b.Status,
					b.ID,
				)
			}
		}
		return nil
	},
}

func init() {
	showCmd.Flags().StringVar(&showProvider, "provider", "", "provider id (defaults to the current user)")
	showCmd.Flags().StringVar(&showDate, "date", "", "date (YYYY-MM-DD, default today)")
}
