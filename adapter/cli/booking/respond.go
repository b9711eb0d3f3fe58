package booking

import (
	"errors"
	"fmt"

	"github.com/felixgeelhaar/nestly/adapter/cli"
	"github.com/felixgeelhaar/nestly/internal/scheduling/application/commands"
	"github.com/felixgeelhaar/nestly/internal/scheduling/domain"
	"github.com/spf13/cobra"
)

var declineNote string

var acceptCmd = &cobra.Command{
	Use:   "accept [booking-id]",
	Short: "Accept a pending booking as its provider",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return respond(cmd, args[0], domain.ActionAccept, "")
	},
}

var declineCmd = &cobra.Command{
	Use:   "decline [booking-id]",
	Short: "Decline a pending booking as its provider",
	Long: `Decline a pending booking. A note for the family is required.

Examples:
  nestly booking decline <id> --note "Away that week"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return respond(cmd, args[0], domain.ActionDecline, declineNote)
	},
}

func respond(cmd *cobra.Command, rawID string, action domain.Action, note string) error {
	app := cli.GetApp()
	if app == nil || app.RespondToBookingHandler == nil {
		return fmt.Errorf("application not initialized - database connection required")
	}
	bookingID, err := cli.ParseID("booking id", rawID)
	if err != nil {
		return err
	}

	booking, err := app.RespondToBookingHandler.Handle(cmd.Context(), commands.RespondToBookingCommand{
		BookingID: bookingID,
		ActorID:   app.CurrentUserID,
		Action:    action,
		Note:      note,
	})
	if err != nil {
		return errors.New(cli.Explain(err))
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Booking %s is now %s\n", booking.ID(), booking.Status())
	return nil
}

func init() {
	declineCmd.Flags().StringVar(&declineNote, "note", "", "reason for declining")
}
