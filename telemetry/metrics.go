// Package telemetry provides Prometheus metrics, OpenTelemetry tracing setup,
// and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	RoamsEnqueued      prometheus.Counter
	RoamsRejected      prometheus.Counter
	RoamsResolved      prometheus.Counter
	RoamFailures       prometheus.Counter
	BatchesSent        prometheus.Counter
	CommandsHandled    prometheus.Counter
	RepliesSuppressed  prometheus.Counter
	EffectLookupErrors prometheus.Counter

	// Histograms (seconds)
	BatchDuration prometheus.Observer

	// Gauges
	QueueDepthGauge    prometheus.Gauge
	ActivePlayersGauge prometheus.Gauge
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		RoamsEnqueued = promauto.NewCounter(prometheus.CounterOpts{Name: "roam_enqueued_total", Help: "Roam requests accepted into the queue"})
		RoamsRejected = promauto.NewCounter(prometheus.CounterOpts{Name: "roam_rejected_total", Help: "Roam requests rejected because the player was already roaming"})
		RoamsResolved = promauto.NewCounter(prometheus.CounterOpts{Name: "roam_resolved_total", Help: "Roams resolved with a persisted catch"})
		RoamFailures = promauto.NewCounter(prometheus.CounterOpts{Name: "roam_failures_total", Help: "Roams that fell back to a generic result after a resolution failure"})
		BatchesSent = promauto.NewCounter(prometheus.CounterOpts{Name: "roam_batches_total", Help: "Batches drained from the roam queue"})
		CommandsHandled = promauto.NewCounter(prometheus.CounterOpts{Name: "chat_commands_total", Help: "Chat commands dispatched to a handler"})
		RepliesSuppressed = promauto.NewCounter(prometheus.CounterOpts{Name: "chat_replies_suppressed_total", Help: "Replies dropped by the global reply cooldown"})
		EffectLookupErrors = promauto.NewCounter(prometheus.CounterOpts{Name: "roam_effect_lookup_errors_total", Help: "Effect lookups that failed and defaulted to neutral modifiers"})
		BatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "roam_batch_duration_seconds", Help: "Batch drain duration seconds", Buckets: prometheus.DefBuckets})
		QueueDepthGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "roam_queue_depth", Help: "Current number of queued roam requests"})
		ActivePlayersGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "roam_active_players", Help: "Players currently queued or resolving"})
	})
}

// SetQueueDepth records current queue length and active-player count.
func SetQueueDepth(queued, active int) {
	if QueueDepthGauge != nil {
		QueueDepthGauge.Set(float64(queued))
	}
	if ActivePlayersGauge != nil {
		ActivePlayersGauge.Set(float64(active))
	}
}

// Correlation ID helpers ----------------------------------------------------

type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding the correlation id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns the correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	if s, ok := ctx.Value(corrKey).(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with a corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
