package workers

import (
	"context"
	"log/slog"

	"github.com/felixgeelhaar/nestly/internal/calendar/application"
	"github.com/felixgeelhaar/nestly/internal/calendar/domain"
	"github.com/felixgeelhaar/nestly/pkg/observability"
)

// DefaultRetryBatch bounds one retry pass.
const DefaultRetryBatch = 50

// CalendarRetryWorker replays recorded calendar failures. The worker process
// runs it on a cron schedule.
type CalendarRetryWorker struct {
	sync      *application.SyncService
	failures  domain.SyncFailureRepository
	batchSize int
	metrics   observability.Metrics
	logger    *slog.Logger
}

// NewCalendarRetryWorker creates a new calendar retry worker.
func NewCalendarRetryWorker(sync *application.SyncService, failures domain.SyncFailureRepository, batchSize int, metrics observability.Metrics, logger *slog.Logger) *CalendarRetryWorker {
	if batchSize <= 0 {
		batchSize = DefaultRetryBatch
	}
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CalendarRetryWorker{
		sync:      sync,
		failures:  failures,
		batchSize: batchSize,
		metrics:   metrics,
		logger:    logger,
	}
}

// RunOnce performs one retry pass and reports the open backlog.
func (w *CalendarRetryWorker) RunOnce(ctx context.Context) (application.RetryResult, error) {
	timer := observability.StartTimer("calendar.retry").WithMetrics(w.metrics)

	result, err := w.sync.RetryDue(ctx, w.batchSize)
	timer.StopWithError(err)
	if err != nil {
		w.logger.Error("calendar retry pass failed", "error", err)
		return result, err
	}

	if open, err := w.failures.CountOpen(ctx); err == nil {
		w.metrics.Gauge(observability.MetricCalendarBacklog, float64(open))
	}
	if result.Resolved+result.Failed+result.Abandoned > 0 {
		w.logger.Info("calendar retry pass",
			"resolved", result.Resolved,
			"failed", result.Failed,
			"abandoned", result.Abandoned,
		)
	}
	return result, nil
}
