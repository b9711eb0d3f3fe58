package availability

import (
	"errors"
	"fmt"
	"time"

	"github.com/felixgeelhaar/nestly/adapter/cli"
	"github.com/felixgeelhaar/nestly/internal/scheduling/application/queries"
	"github.com/spf13/cobra"
)

var (
	slotsProvider  string
	slotsDate      string
	slotsDuration  int
	slotsStep      int
	slotsEmergency bool
)

var slotsCmd = &cobra.Command{
	Use:   "slots",
	Short: "Find bookable start times",
	Long: `List the start times on a date at which a booking of the given length
would be accepted right now.

Examples:
  nestly availability slots --provider <id> --date 2024-06-03 --duration 240
  nestly availability slots --provider <id> --duration 60 --step 15`,
	Aliases: []string{"free"},
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		if app == nil || app.FindOpenSlotsHandler == nil {
			return fmt.Errorf("application not initialized - database connection required")
		}
		providerID, err := providerOrCurrent(app, slotsProvider)
		if err != nil {
			return err
		}
		date, err := cli.ParseDate(slotsDate, app.Location)
		if err != nil {
			return err
		}

		slots, err := app.FindOpenSlotsHandler.Handle(cmd.Context(), queries.FindOpenSlotsQuery{
			ProviderID:  providerID,
			Date:        date,
			Duration:    time.Duration(slotsDuration) * time.Minute,
			Step:        time.Duration(slotsStep) * time.Minute,
			IsEmergency: slotsEmergency,
		})
		if err != nil {
			return errors.New(cli.Explain(err))
		}

		out := cmd.OutOrStdout()
		dateStr := date.Format("Monday, January 2, 2006")
		if len(slots) == 0 {
			fmt.Fprintf(out, "No open %d minute slots on %s\n", slotsDuration, dateStr)
			return nil
		}
		fmt.Fprintf(out, "Open %d minute slots on %s:\n", slotsDuration, dateStr)
		for _, s := range slots {
			fmt.Fprintf(out, "  %s - %s\n", s.Start.In(app.Location).Format("15:04"), s.End.In(app.Location).Format("15:04"))
		}
		return nil
	},
}

func init() {
	slotsCmd.Flags().StringVar(&slotsProvider, "provider", "", "provider id (defaults to the current user)")
	slotsCmd.Flags().StringVar(&slotsDate, "date", "", "date (YYYY-MM-DD, default today)")
	slotsCmd.Flags().IntVarP(&slotsDuration, "duration", "d", 60, "booking length in minutes")
	slotsCmd.Flags().IntVar(&slotsStep, "step", 30, "minutes between candidate starts")
	slotsCmd.Flags().BoolVar(&slotsEmergency, "emergency", false, "search as an emergency booking")
}
