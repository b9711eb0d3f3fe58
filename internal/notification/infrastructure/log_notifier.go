package infrastructure

import (
	"context"
	"log/slog"

	"github.com/felixgeelhaar/nestly/internal/notification/application"
)

// LogNotifier writes notifications to the log. It is the default when no
// delivery channel is configured.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, msg application.Notification) error {
	n.logger.InfoContext(ctx, "notification",
		"user_id", msg.UserID,
		"kind", msg.Kind,
		"booking_id", msg.BookingID,
		"subject", msg.Subject,
	)
	return nil
}
