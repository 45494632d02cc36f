package health

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/dmitrymomot/photon/core/logger"
)

// DefaultCheckTimeout bounds each readiness check.
const DefaultCheckTimeout = 5 * time.Second

// Check reports whether a dependency is usable.
type Check func(ctx context.Context) error

// Liveness indicates the process is running. It always answers 200 "ALIVE"
// and runs no dependency checks.
//
// Example:
//
//	mux.HandleFunc("GET /health/live", health.Liveness)
func Liveness(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, "ALIVE")
}

// Readiness verifies every dependency check succeeds. It answers 200 "READY"
// or 503 when any check fails.
//
// Example:
//
//	mux.Handle("GET /health/ready", health.Readiness(logger,
//		redis.Healthcheck(client),
//	))
func Readiness(log *slog.Logger, checks ...Check) http.HandlerFunc {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), DefaultCheckTimeout)
		defer cancel()

		for _, check := range checks {
			if err := check(ctx); err != nil {
				log.ErrorContext(ctx, "readiness check failed", logger.Error(err))
				http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
				return
			}
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, "READY")
	}
}

// Register mounts Liveness at /health/live and Readiness at /health/ready.
func Register(mux *http.ServeMux, log *slog.Logger, checks ...Check) {
	mux.HandleFunc("GET /health/live", Liveness)
	mux.Handle("GET /health/ready", Readiness(log, checks...))
}
