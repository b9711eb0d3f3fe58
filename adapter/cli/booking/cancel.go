package booking

import (
	"errors"
	"fmt"

	"github.com/felixgeelhaar/nestly/adapter/cli"
	"github.com/felixgeelhaar/nestly/internal/scheduling/application/commands"
	"github.com/felixgeelhaar/nestly/internal/scheduling/domain"
	"github.com/spf13/cobra"
)

var cancelNote string

var cancelCmd = &cobra.Command{
	Use:   "cancel [booking-id]",
	Short: "Cancel a booking",
	Long: `Cancel a pending or confirmed booking as its family or provider.

Cancelling a confirmed booking shortly before it starts is recorded as a
late cancellation.

Examples:
  nestly booking cancel <id>
  nestly booking cancel <id> --note "Child is sick"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		if app == nil || app.CancelBookingHandler == nil {
			return fmt.Errorf("application not initialized - database connection required")
		}
		bookingID, err := cli.ParseID("booking id", args[0])
		if err != nil {
			return err
		}

		booking, err := app.CancelBookingHandler.Handle(cmd.Context(), commands.CancelBookingCommand{
			BookingID: bookingID,
			ActorID:   app.CurrentUserID,
			Note:      cancelNote,
		})
		if err != nil {
			return errors.New(cli.Explain(err))
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Booking %s cancelled\n", booking.ID())
		if booking.Status() == domain.StatusLateCancelled {
			fmt.Fprintln(out, "  recorded as a late cancellation")
		}
		return nil
	},
}

func init() {
	cancelCmd.Flags().StringVar(&cancelNote, "note", "", "note for the other party")
}
