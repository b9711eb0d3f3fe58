package availability

import (
	"errors"
	"fmt"

	"github.com/felixgeelhaar/nestly/adapter/cli"
	"github.com/felixgeelhaar/nestly/internal/scheduling/application/commands"
	"github.com/spf13/cobra"
)

var retractCmd = &cobra.Command{
	Use:     "retract [block-id]",
	Short:   "Remove an availability block",
	Aliases: []string{"rm"},
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		if app == nil || app.RetractAvailabilityHandler == nil {
			return fmt.Errorf("application not initialized - database connection required")
		}
		blockID, err := cli.ParseID("block id", args[0])
		if err != nil {
			return err
		}

		err = app.RetractAvailabilityHandler.Handle(cmd.Context(), commands.RetractAvailabilityCommand{
			BlockID:    blockID,
			ProviderID: app.CurrentUserID,
		})
		if err != nil {
			return errors.New(cli.Explain(err))
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Availability block %s removed\n", blockID)
		return nil
	},
}
