package booking

import (
	"fmt"

	"github.com/felixgeelhaar/nestly/adapter/cli"
	"github.com/felixgeelhaar/nestly/internal/scheduling/application/queries"
	"github.com/spf13/cobra"
)

var (
	checkProvider  string
	checkStart     string
	checkEnd       string
	checkEmergency bool
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check whether a time could be booked, without booking it",
	Long: `Run admission for a time range and print the verdict. Nothing is stored.

Examples:
  nestly booking check --provider <id> --start "2024-06-03 09:00" --end "2024-06-03 13:00"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		if app == nil || app.CheckAdmissionHandler == nil {
			return fmt.Errorf("application not initialized - database connection required")
		}
		providerID, err := cli.ParseID("provider", checkProvider)
		if err != nil {
			return err
		}
		start, err := cli.ParseInstant(checkStart, app.Location)
		if err != nil {
			return err
		}
		end, err := cli.ParseInstant(checkEnd, app.Location)
		if err != nil {
			return err
		}

		verdict, err := app.CheckAdmissionHandler.Handle(cmd.Context(), queries.CheckAdmissionQuery{
			ProviderID:  providerID,
			Start:       start,
			End:         end,
			IsEmergency: checkEmergency,
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if verdict.OK {
			fmt.Fprintln(out, "Available")
			return nil
		}
		fmt.Fprintf(out, "Not available: %s\n", verdict.Message)
		for _, id := range verdict.BookingIDs {
			fmt.Fprintf(out, "  booking %s\n", id)
		}
		for _, id := range verdict.BlockIDs {
			fmt.Fprintf(out, "  block %s\n", id)
		}
		return nil
	},
}

func init() {
	checkCmd.Flags().StringVar(&checkProvider, "provider", "", "provider id")
	checkCmd.Flags().StringVar(&checkStart, "start", "", "start time")
	checkCmd.Flags().StringVar(&checkEnd, "end", "", "end time")
	checkCmd.Flags().BoolVar(&checkEmergency, "emergency", false, "check as an emergency booking")
}
