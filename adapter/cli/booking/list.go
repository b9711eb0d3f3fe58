package booking

import (
	"errors"
	"fmt"
	"time"

	"github.com/felixgeelhaar/nestly/adapter/cli"
	"github.com/felixgeelhaar/nestly/internal/scheduling/application/queries"
	"github.com/felixgeelhaar/nestly/internal/scheduling/domain"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	listProvider string
	listConsumer string
	listFrom     string
	listDays     int
	listStatuses []string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List bookings of a provider or consumer",
	Long: `List bookings in a window of days. Without --provider or --consumer the
current user's bookings as a consumer are listed.

Examples:
  nestly booking list
  nestly booking list --provider <id> --from 2024-06-01 --days 30
  nestly booking list --consumer <id> --status pending,confirmed`,
	Aliases: []string{"ls"},
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		if app == nil || app.ListBookingsHandler == nil {
			return fmt.Errorf("application not initialized - database connection required")
		}

		query := queries.ListBookingsQuery{}
		var err error
		if listProvider != "" {
			if query.ProviderID, err = cli.ParseID("provider", listProvider); err != nil {
				return err
			}
		}
		if listConsumer != "" {
			if query.ConsumerID, err = cli.ParseID("consumer", listConsumer); err != nil {
				return err
			}
		}
		if query.ProviderID == uuid.Nil && query.ConsumerID == uuid.Nil {
			query.ConsumerID = app.CurrentUserID
		}

		from, err := cli.ParseDate(listFrom, app.Location)
		if err != nil {
			return err
		}
		if listDays <= 0 {
			listDays = 7
		}
		query.From = from
		query.To = from.AddDate(0, 0, listDays)

		for _, s := range listStatuses {
			status, err := domain.ParseBookingStatus(s)
			if err != nil {
				return err
			}
			query.Statuses = append(query.Statuses, status)
		}

		bookings, err := app.ListBookingsHandler.Handle(cmd.Context(), query)
		if err != nil {
			if errors.Is(err, queries.ErrNoParty) {
				return errors.New("pass --provider or --consumer, or set NESTLY_USER_ID")
			}
			return errors.New(cli.Explain(err))
		}

		out := cmd.OutOrStdout()
		if len(bookings) == 0 {
			fmt.Fprintf(out, "No bookings between %s and %s\n", query.From.Format(cli.DateLayout), query.To.Add(-time.Nanosecond).Format(cli.DateLayout))
			return nil
		}
		for _, b := range bookings {
			printBooking(out, b, app.Location)
		}
		return nil
	},
}

func init() {
	listCmd.Flags().StringVar(&listProvider, "provider", "", "provider id")
	listCmd.Flags().StringVar(&listConsumer, "consumer", "", "consumer id")
	listCmd.Flags().StringVar(&listFrom, "from", "", "first date (YYYY-MM-DD, default today)")
	listCmd.Flags().IntVar(&listDays, "days", 7, "number of days")
	listCmd.Flags().StringSliceVar(&listStatuses, "status", nil, "only these statuses")
}
