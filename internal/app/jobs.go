package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/felixgeelhaar/nestly/internal/scheduling/application/commands"
	"github.com/robfig/cron/v3"
)

// Jobs runs the worker's periodic work: the completion sweep, calendar
// failure retries and outbox cleanup.
type Jobs struct {
	cron   *cron.Cron
	logger *slog.Logger
}

// NewJobs schedules every periodic job the container supports. Calendar
// retries are skipped while calendar sync is off, and outbox cleanup when
// no cleanup interval is configured.
func NewJobs(ctx context.Context, c *Container) (*Jobs, error) {
	logger := c.Logger.With("component", "jobs")
	cl := cronLogger{logger: logger}
	j := &Jobs{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		logger: logger,
	}

	if _, err := j.cron.AddFunc(c.Config.SweepSchedule, func() {
		result, err := c.SweepCompletionsHandler.Handle(ctx, commands.SweepCompletionsCommand{
			BatchSize: c.Config.SweepBatchSize,
		})
		if err != nil {
			logger.ErrorContext(ctx, "completion sweep failed", "error", err)
			return
		}
		if result.Completed > 0 || result.Failed > 0 {
			logger.InfoContext(ctx, "completion sweep finished", "completed", result.Completed, "failed", result.Failed)
		}
	}); err != nil {
		return nil, fmt.Errorf("schedule completion sweep %q: %w", c.Config.SweepSchedule, err)
	}

	if c.CalendarRetryWorker != nil {
		if _, err := j.cron.AddFunc(c.Config.CalendarRetrySchedule, func() {
			result, err := c.CalendarRetryWorker.RunOnce(ctx)
			if err != nil {
				logger.ErrorContext(ctx, "calendar retry failed", "error", err)
				return
			}
			if result.Resolved+result.Failed+result.Abandoned > 0 {
				logger.InfoContext(ctx, "calendar retry finished",
					"resolved", result.Resolved,
					"failed", result.Failed,
					"abandoned", result.Abandoned,
				)
			}
		}); err != nil {
			return nil, fmt.Errorf("schedule calendar retry %q: %w", c.Config.CalendarRetrySchedule, err)
		}
	}

	if interval := c.Config.OutboxCleanupInterval; interval > 0 {
		j.cron.Schedule(cron.Every(interval), cron.FuncJob(func() {
			if _, err := c.OutboxProcessor.Cleanup(ctx); err != nil {
				logger.ErrorContext(ctx, "outbox cleanup failed", "error", err)
			}
		}))
	}

	return j, nil
}

// Len returns the number of scheduled jobs.
func (j *Jobs) Len() int {
	return len(j.cron.Entries())
}

// Start runs the scheduler in its own goroutine.
func (j *Jobs) Start() {
	j.cron.Start()
	j.logger.Info("jobs started", "count", j.Len())
}

// Stop stops scheduling and waits for running jobs until ctx is done.
func (j *Jobs) Stop(ctx context.Context) {
	done := j.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		j.logger.Warn("jobs still running at shutdown")
	}
}

type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append([]any{"error", err}, keysAndValues...)...)
}
