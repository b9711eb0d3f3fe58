package booking

import (
	"errors"
	"fmt"
	"io"

	"github.com/felixgeelhaar/nestly/adapter/cli"
	"github.com/felixgeelhaar/nestly/internal/scheduling/application/commands"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	requestProvider  string
	requestConsumer  string
	requestStart     string
	requestEnd       string
	requestChildren  []string
	requestEmergency bool
	requestRepeat    string
	requestUntil     string
	requestKey       string
)

var requestCmd = &cobra.Command{
	Use:   "request",
	Short: "Request a booking with a provider",
	Long: `Request a provider's time, once or every week on the given days.

A recurring request books every occurrence that is free and lists the
ones that were refused.

Examples:
  nestly booking request --provider <id> --start "2024-06-03 09:00" --end "2024-06-03 13:00"
  nestly booking request --provider <id> --start "2024-06-03 09:00" --end "2024-06-03 13:00" --repeat mon,wed --until 2024-07-31
  nestly booking request --provider <id> --start 2024-06-03T18:00:00Z --end 2024-06-03T22:00:00Z --emergency`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		if app == nil || app.RequestBookingHandler == nil {
			return fmt.Errorf("application not initialized - database connection required")
		}

		providerID, err := cli.ParseID("provider", requestProvider)
		if err != nil {
			return err
		}
		consumerID := app.CurrentUserID
		if requestConsumer != "" {
			if consumerID, err = cli.ParseID("consumer", requestConsumer); err != nil {
				return err
			}
		}
		if consumerID == uuid.Nil {
			return errors.New("consumer is required: pass --consumer or set NESTLY_USER_ID")
		}
		start, err := cli.ParseInstant(requestStart, app.Location)
		if err != nil {
			return err
		}
		end, err := cli.ParseInstant(requestEnd, app.Location)
		if err != nil {
			return err
		}
		children, err := cli.ParseIDs("child", requestChildren)
		if err != nil {
			return err
		}
		rule, err := cli.ParseRecurrence(requestRepeat, requestUntil, app.Location)
		if err != nil {
			return err
		}

		result, err := app.RequestBookingHandler.Handle(cmd.Context(), commands.RequestBookingCommand{
			ConsumerID:     consumerID,
			ProviderID:     providerID,
			Start:          start,
			End:            end,
			Children:       children,
			IsEmergency:    requestEmergency,
			Recurrence:     rule,
			IdempotencyKey: requestKey,
		})
		if err != nil {
			if result != nil {
				printRequestResult(cmd.OutOrStdout(), app, result)
				app.Flush(cmd.Context())
			}
			return errors.New(cli.Explain(err))
		}

		printRequestResult(cmd.OutOrStdout(), app, result)
		if len(result.Booked) == 0 && len(result.Rejected) > 0 {
			return errors.New("no occurrence could be booked")
		}
		return nil
	},
}

func printRequestResult(out io.Writer, app *cli.App, result *commands.RequestBookingResult) {
	if result.Replayed {
		fmt.Fprintln(out, "Request already made, showing the original result")
	}
	if result.SeriesID != uuid.Nil {
		fmt.Fprintf(out, "Series: %s\n", result.SeriesID)
	}
	for _, b := range result.Booked {
		fmt.Fprintf(out, "Booking requested: %s  %s - %s\n",
			b.BookingID,
			b.Start.In(app.Location).Format("Mon 2006-01-02 15:04"),
			b.End.In(app.Location).Format("15:04"),
		)
	}
	for _, r := range result.Rejected {
		fmt.Fprintf(out, "Refused %s: %s\n", r.Date, cli.Explain(r.Err()))
	}
	for _, p := range result.Pending {
		fmt.Fprintf(out, "Not attempted: %s\n", p.Start.In(app.Location).Format("Mon 2006-01-02 15:04"))
	}
}

func init() {
	requestCmd.Flags().StringVar(&requestProvider, "provider", "", "provider id")
	requestCmd.Flags().StringVar(&requestConsumer, "consumer", "", "consumer id (defaults to the current user)")
	requestCmd.Flags().StringVar(&requestStart, "start", "", "start time")
	requestCmd.Flags().StringVar(&requestEnd, "end", "", "end time")
	requestCmd.Flags().StringSliceVar(&requestChildren, "child", nil, "child id (repeatable)")
	requestCmd.Flags().BoolVar(&requestEmergency, "emergency", false, "emergency booking")
	requestCmd.Flags().StringVar(&requestRepeat, "repeat", "", "weekdays to repeat on, e.g. mon,wed")
	requestCmd.Flags().StringVar(&requestUntil, "until", "", "last date of the series (YYYY-MM-DD)")
	requestCmd.Flags().StringVar(&requestKey, "key", "", "idempotency key")
}
