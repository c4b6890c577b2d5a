// Package server exposes the operational HTTP surface: health and readiness
// probes, a status snapshot of the game, and Prometheus metrics.
package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"

	"github.com/vanillachan6571/catroam/game"
	"github.com/vanillachan6571/catroam/store"
	"github.com/vanillachan6571/catroam/telemetry"
)

// Server wraps the HTTP listener and its dependencies.
type Server struct {
	db      *sql.DB
	sched   *game.Scheduler
	started time.Time
	http    *http.Server
}

// New builds the server on addr.
func New(addr string, db *sql.DB, sched *game.Scheduler) *Server {
	s := &Server{
		db:      db,
		sched:   sched,
		started: time.Now(),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/readyz", s.handleReadyz)
	mux.HandleFunc("/status", s.handleStatus)
	mux.Handle("/metrics", promhttp.Handler())
	s.http = &http.Server{
		Addr:              addr,
		Handler:           withTracing(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// withTracing injects a correlation id, opens a span per request, and records
// error status for non-2xx/3xx responses.
func withTracing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		corr := r.Header.Get("X-Correlation-ID")
		if corr == "" {
			corr = uuid.New().String()
		}
		ctx := telemetry.WithCorrelation(r.Context(), corr)
		w.Header().Set("X-Correlation-ID", corr)

		ctx, span := telemetry.StartSpan(ctx, "http-server", r.Method+" "+r.URL.Path,
			attribute.String("http.method", r.Method),
			attribute.String("http.route", r.URL.Path),
		)
		defer span.End()

		rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(ctx))

		span.SetAttributes(attribute.Int("http.status_code", rec.statusCode))
		if rec.statusCode >= 400 {
			telemetry.RecordError(span, fmt.Errorf("HTTP %d", rec.statusCode))
		}
	})
}

// statusRecorder captures the response status for the tracing middleware.
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *statusRecorder) WriteHeader(statusCode int) {
	r.statusCode = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", slog.String("addr", s.http.Addr), slog.String("component", "server"))
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.http.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return <-errCh
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.db.PingContext(ctx); err != nil {
		http.Error(w, "db unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// statusResponse is the /status JSON payload.
type statusResponse struct {
	UptimeSeconds     int64     `json:"uptime_seconds"`
	QueueDepth        int       `json:"queue_depth"`
	ActivePlayers     int       `json:"active_players"`
	LastBatchSentAt   time.Time `json:"last_batch_sent_at"`
	CooldownRemaining string    `json:"cooldown_remaining"`
	JoinedChannels    []string  `json:"joined_channels"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	state := s.sched.Snapshot()
	resp := statusResponse{
		UptimeSeconds:     int64(time.Since(s.started).Seconds()),
		QueueDepth:        state.QueueDepth,
		ActivePlayers:     state.ActivePlayers,
		LastBatchSentAt:   state.LastBatchSentAt,
		CooldownRemaining: state.CooldownRemaining,
	}
	channels, err := store.JoinedChannels(r.Context(), s.db)
	if err != nil {
		slog.Warn("status channel list failed", slog.Any("err", err), slog.String("component", "server"))
	}
	for _, c := range channels {
		resp.JoinedChannels = append(resp.JoinedChannels, c.Name)
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Warn("status encode failed", slog.Any("err", err), slog.String("component", "server"))
	}
}
