package availability

import (
	"github.com/spf13/cobra"
)

// Cmd is the availability command group
var Cmd = &cobra.Command{
	Use:     "availability",
	Short:   "Declare and inspect provider availability",
	Long:    `Declare when a provider is available or unavailable, and see what is free.`,
	Aliases: []string{"avail"},
}

func init() {
	Cmd.AddCommand(declareCmd)
	Cmd.AddCommand(retractCmd)
	Cmd.AddCommand(showCmd)
	Cmd.AddCommand(slotsCmd)
}
