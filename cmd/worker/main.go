package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/felixgeelhaar/nestly/internal/app"
	"github.com/felixgeelhaar/nestly/pkg/config"
	"github.com/felixgeelhaar/nestly/pkg/observability"
)

const consumerGroup = "nestly.worker"

func main() {
	logger := observability.LoggerFromEnv("")
	logger.Info("starting nestly worker")

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	shutdownTracing, err := observability.SetupTracing(ctx, observability.TracingConfig{
		Enabled:     cfg.TracingEnabled,
		ServiceName: "nestly-worker",
		Endpoint:    cfg.TracingEndpoint,
		SampleRatio: cfg.TracingSampleRatio,
	})
	if err != nil {
		logger.Error("failed to set up tracing", "error", err)
		os.Exit(1)
	}

	container, err := app.NewContainer(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize container", "error", err)
		os.Exit(1)
	}

	// The worker always drains the outbox.
	if err := container.OutboxProcessor.Start(ctx); err != nil {
		logger.Error("failed to start outbox processor", "error", err)
		os.Exit(1)
	}

	consumer, err := container.NewBrokerConsumer(consumerGroup)
	if err != nil {
		logger.Error("failed to connect event consumer", "broker", cfg.EventBroker, "error", err)
		os.Exit(1)
	}
	if consumer != nil {
		go func() {
			if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("event consumer stopped", "error", err)
				cancel()
			}
		}()
		logger.Info("event consumer started", "broker", cfg.EventBroker, "group", consumerGroup)
	}

	jobs, err := app.NewJobs(ctx, container)
	if err != nil {
		logger.Error("failed to schedule jobs", "error", err)
		os.Exit(1)
	}
	jobs.Start()

	var healthSrv *http.Server
	if cfg.WorkerHealthAddr != "" {
		healthSrv = &http.Server{
			Addr:              cfg.WorkerHealthAddr,
			Handler:           app.NewHealthHandler(container.Health, container.OutboxProcessor),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("health server starting", "addr", cfg.WorkerHealthAddr)
			if err := healthSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("health server error", "error", err)
			}
		}()
	}

	// Wait for shutdown
	<-ctx.Done()
	logger.Info("shutting down worker")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if healthSrv != nil {
		if err := healthSrv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("health server shutdown error", "error", err)
		}
	}
	jobs.Stop(shutdownCtx)
	container.OutboxProcessor.Stop()
	if consumer != nil {
		if err := consumer.Close(); err != nil {
			logger.Warn("event consumer close error", "error", err)
		}
	}
	if err := container.Close(); err != nil {
		logger.Warn("container close error", "error", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("tracing shutdown error", "error", err)
	}

	logger.Info("worker stopped")
	fmt.Println("Goodbye!")
}
