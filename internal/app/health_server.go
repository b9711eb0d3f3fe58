package app

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/felixgeelhaar/nestly/internal/shared/infrastructure/outbox"
	"github.com/felixgeelhaar/nestly/pkg/observability"
)

// NewHealthHandler serves /healthz for liveness and /readyz for readiness.
// Liveness reports the outbox processor; readiness runs every registered
// check and answers 503 when the report is unhealthy.
func NewHealthHandler(health *observability.HealthRegistry, processor *outbox.Processor) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		response := map[string]any{"status": "ok"}
		if processor != nil {
			stats := processor.GetStats()
			response["running"] = stats.IsRunning
			response["published"] = stats.PublishedCount
			response["failed"] = stats.FailedCount
			response["dead"] = stats.DeadCount
			response["last_processed_at"] = stats.LastProcessedAt
			response["last_error_at"] = stats.LastErrorAt
			response["last_error"] = stats.LastError
		}
		writeJSON(w, http.StatusOK, response)
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if health == nil {
			writeJSON(w, http.StatusOK, map[string]any{"status": observability.HealthStatusHealthy})
			return
		}
		checkCtx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		report := health.Check(checkCtx)
		status := http.StatusOK
		if report.Status == observability.HealthStatusUnhealthy {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, report)
	})

	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
