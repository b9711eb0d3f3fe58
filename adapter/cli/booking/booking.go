package booking

import (
	"fmt"
	"io"
	"time"

	"github.com/felixgeelhaar/nestly/internal/scheduling/application/queries"
	"github.com/spf13/cobra"
)

// Cmd is the booking command group
var Cmd = &cobra.Command{
	Use:   "booking",
	Short: "Request and manage bookings",
	Long:  `Request childcare, respond to requests, cancel and list bookings.`,
}

func init() {
	Cmd.AddCommand(requestCmd)
	Cmd.AddCommand(acceptCmd)
	Cmd.AddCommand(declineCmd)
	Cmd.AddCommand(cancelCmd)
	Cmd.AddCommand(listCmd)
	Cmd.AddCommand(checkCmd)
}

func printBooking(out io.Writer, b queries.BookingDTO, loc *time.Location) {
	emergency := ""
	if b.IsEmergency {
		emergency = " [emergency]"
	}
	fmt.Fprintf(out, "%s  %s - %s  %-14s%s\n",
		b.ID,
		b.Start.In(loc).Format("Mon 2006-01-02 15:04"),
		b.End.In(loc).Format("15:04"),
		b.Status,
		emergency,
	)
	if b.CancellationNote != "" {
		fmt.Fprintf(out, "    note: %s\n", b.CancellationNote)
	}
}
