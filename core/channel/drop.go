package channel

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/dmitrymomot/photon/core/logger"
)

// DropReporter accounts for inbound frames that could not be parsed. Every
// drop is counted; a log line is written only in debug mode and at most a
// few times per interval so a noisy peer cannot flood the log.
type DropReporter struct {
	logger    *slog.Logger
	metrics   *Metrics
	debug     bool
	sometimes rate.Sometimes
}

// NewDropReporter creates a reporter. log and m may be nil.
func NewDropReporter(log *slog.Logger, m *Metrics, debug bool) *DropReporter {
	return &DropReporter{
		logger:    log,
		metrics:   m,
		debug:     debug,
		sometimes: rate.Sometimes{First: 5, Interval: 10 * time.Second},
	}
}

// Drop records a discarded frame.
func (r *DropReporter) Drop(ctx context.Context, reason string, err error, attrs ...slog.Attr) {
	if r == nil {
		return
	}
	r.metrics.Dropped(ctx)

	if !r.debug || r.logger == nil {
		return
	}
	r.sometimes.Do(func() {
		args := make([]any, 0, len(attrs)+2)
		args = append(args, slog.String("reason", reason), logger.Error(err))
		for _, a := range attrs {
			args = append(args, a)
		}
		r.logger.WarnContext(ctx, "dropped malformed frame", args...)
	})
}
