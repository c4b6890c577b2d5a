// Package game holds the roam engine: the batch scheduler that drains queued
// players on a timer, the reward resolver, and the effect aggregator.
package game

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/vanillachan6571/catroam/store"
	"github.com/vanillachan6571/catroam/telemetry"
)

// EffectSource reads a player's live effects and retires spent consumables.
type EffectSource interface {
	ActiveEffects(ctx context.Context, playerID string, now time.Time) ([]store.ActiveEffect, error)
	MarkEffectsUsed(ctx context.Context, ids []int64) error
}

// CatchSink persists resolved catches.
type CatchSink interface {
	RecordCatch(ctx context.Context, c Catch) error
}

// Catch aliases the store record so scheduler collaborators share one shape.
type Catch = store.Catch

// Sayer sends one outbound chat line to a channel.
type Sayer interface {
	Say(channel, text string)
}

// SchedulerConfig tunes batching behavior.
type SchedulerConfig struct {
	BatchSize      int           // max players resolved per tick
	Cooldown       time.Duration // min gap between outbound batch messages
	ResolveTimeout time.Duration // max time to persist one player's catch
}

type request struct {
	playerID    string
	displayName string
	channel     string
}

// State is a snapshot of scheduler internals for !debug and /status.
type State struct {
	QueueDepth        int       `json:"queue_depth"`
	ActivePlayers     int       `json:"active_players"`
	LastBatchSentAt   time.Time `json:"last_batch_sent_at"`
	CooldownRemaining string    `json:"cooldown_remaining"`
}

// Scheduler owns the roam queue, the active-player set, and the batch
// cooldown. It is the only writer of that state: command handlers enqueue,
// the periodic tick drains, nothing else touches it.
type Scheduler struct {
	mu       sync.Mutex
	queue    []request
	active   map[string]string // playerID -> origin channel
	lastSent time.Time
	draining bool

	cfg      SchedulerConfig
	effects  EffectSource
	catches  CatchSink
	say      Sayer
	resolver *Resolver

	now func() time.Time
}

// NewScheduler wires a scheduler over its collaborators.
func NewScheduler(cfg SchedulerConfig, effects EffectSource, catches CatchSink, say Sayer, resolver *Resolver) *Scheduler {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 10 * time.Second
	}
	if cfg.ResolveTimeout <= 0 {
		cfg.ResolveTimeout = 5 * time.Second
	}
	return &Scheduler{
		active:   make(map[string]string),
		cfg:      cfg,
		effects:  effects,
		catches:  catches,
		say:      say,
		resolver: resolver,
		now:      time.Now,
	}
}

// Enqueue appends a roam request unless the player is already queued or being
// resolved. The membership check and insert happen under one lock, so a
// player can never be double-queued no matter how handlers interleave.
func (s *Scheduler) Enqueue(playerID, displayName, channel string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.active[playerID]; ok {
		if telemetry.RoamsRejected != nil {
			telemetry.RoamsRejected.Inc()
		}
		return false
	}
	s.queue = append(s.queue, request{playerID: playerID, displayName: displayName, channel: channel})
	s.active[playerID] = channel
	if telemetry.RoamsEnqueued != nil {
		telemetry.RoamsEnqueued.Inc()
	}
	telemetry.SetQueueDepth(len(s.queue), len(s.active))
	return true
}

// IsActive reports whether a player is queued or currently being resolved.
func (s *Scheduler) IsActive(playerID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.active[playerID]
	return ok
}

// Snapshot returns the current scheduler state.
func (s *Scheduler) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	remaining := s.cfg.Cooldown - s.now().Sub(s.lastSent)
	if remaining < 0 {
		remaining = 0
	}
	return State{
		QueueDepth:        len(s.queue),
		ActivePlayers:     len(s.active),
		LastBatchSentAt:   s.lastSent,
		CooldownRemaining: remaining.Round(time.Millisecond).String(),
	}
}

// Run drives Tick on a fixed period until the context ends. It is the sole
// driver of batch draining.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) {
	slog.Info("roam scheduler starting", slog.Duration("interval", interval), slog.String("component", "roam_sched"))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.Info("roam scheduler stopped", slog.String("component", "roam_sched"))
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick drains one batch: it pops up to BatchSize requests in FIFO order,
// resolves them independently, and flushes one aggregated message per origin
// channel. A no-op while a previous drain is in flight, while the queue is
// empty, or while the outbound cooldown has not elapsed (the queue keeps
// growing in the meantime).
func (s *Scheduler) Tick(ctx context.Context) {
	s.mu.Lock()
	if s.draining || len(s.queue) == 0 {
		s.mu.Unlock()
		return
	}
	if s.now().Sub(s.lastSent) < s.cfg.Cooldown {
		s.mu.Unlock()
		return
	}
	n := s.cfg.BatchSize
	if n > len(s.queue) {
		n = len(s.queue)
	}
	batch := make([]request, n)
	copy(batch, s.queue[:n])
	s.queue = append(s.queue[:0:0], s.queue[n:]...)
	s.draining = true
	s.mu.Unlock()

	ctx = telemetry.WithCorrelation(ctx, uuid.NewString())
	logger := telemetry.LoggerWithCorr(ctx).With(slog.String("component", "roam_sched"))
	ctx, span := telemetry.StartSpan(ctx, "catroam/game", "roam.batch",
		attribute.Int("batch_size", n))
	defer span.End()

	start := s.now()
	logger.Info("draining roam batch", slog.Int("batch_size", n))

	// Fragments land in pre-allocated slots so per-channel output preserves
	// pop order even though resolutions complete in any order.
	fragments := make([]string, n)
	var g errgroup.Group
	for i := range batch {
		i, req := i, batch[i]
		g.Go(func() error {
			fragments[i] = s.resolveOne(ctx, logger, req)
			s.mu.Lock()
			delete(s.active, req.playerID)
			s.mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	// One message per channel, channels in first-appearance order.
	var channels []string
	byChannel := make(map[string][]string)
	for i, req := range batch {
		if _, ok := byChannel[req.channel]; !ok {
			channels = append(channels, req.channel)
		}
		byChannel[req.channel] = append(byChannel[req.channel], fragments[i])
	}
	for _, ch := range channels {
		s.say.Say(ch, strings.Join(byChannel[ch], " "))
	}

	s.mu.Lock()
	s.lastSent = s.now()
	s.draining = false
	telemetry.SetQueueDepth(len(s.queue), len(s.active))
	s.mu.Unlock()

	if telemetry.BatchesSent != nil {
		telemetry.BatchesSent.Inc()
	}
	if telemetry.BatchDuration != nil {
		telemetry.BatchDuration.Observe(s.now().Sub(start).Seconds())
	}
	logger.Info("roam batch flushed", slog.Int("channels", len(channels)), slog.Duration("took", s.now().Sub(start)))
}

// resolveOne resolves a single player's roam and returns the chat fragment.
// Failures never propagate: a broken effect read degrades to neutral
// modifiers, and a failed or timed-out persist yields a fallback fragment so
// the rest of the batch still flushes.
func (s *Scheduler) resolveOne(ctx context.Context, logger *slog.Logger, req request) string {
	rctx, cancel := context.WithTimeout(ctx, s.cfg.ResolveTimeout)
	defer cancel()

	now := s.now()
	mods := NeutralModifiers()
	rows, err := s.effects.ActiveEffects(rctx, req.playerID, now)
	if err != nil {
		logger.Warn("effect lookup failed; using neutral modifiers",
			slog.String("player_id", req.playerID), slog.Any("err", err))
		if telemetry.EffectLookupErrors != nil {
			telemetry.EffectLookupErrors.Inc()
		}
	} else {
		mods = Aggregate(rows)
	}

	outcome := s.resolver.Roll(mods)
	catch := Catch{
		PlayerID:    req.playerID,
		DisplayName: req.displayName,
		Item:        outcome.Item,
		Tier:        outcome.Tier.String(),
		Value:       outcome.Value,
		CaughtAt:    now,
	}
	if outcome.HasLuckTag {
		catch.LuckTag = outcome.LuckTag.String()
	}

	if err := s.catches.RecordCatch(rctx, catch); err != nil {
		logger.Error("record catch failed", slog.String("player_id", req.playerID), slog.Any("err", err))
		if telemetry.RoamFailures != nil {
			telemetry.RoamFailures.Inc()
		}
		return fmt.Sprintf("@%s's cat came back empty-pawed... something spooked it! Try another !roam", req.displayName)
	}

	// Consumables burn only once the catch is durably recorded.
	if len(mods.ConsumedEffectIDs) > 0 {
		if err := s.effects.MarkEffectsUsed(rctx, mods.ConsumedEffectIDs); err != nil {
			logger.Warn("mark effects used failed", slog.String("player_id", req.playerID), slog.Any("err", err))
		}
	}

	if telemetry.RoamsResolved != nil {
		telemetry.RoamsResolved.Inc()
	}
	return formatCatch(req.displayName, outcome)
}

func formatCatch(displayName string, out Outcome) string {
	var b strings.Builder
	fmt.Fprintf(&b, "@%s's cat returned! it found %s rarity of %s", displayName, out.Item, out.Tier)
	if out.HasLuckTag {
		fmt.Fprintf(&b, " x %s", out.LuckTag)
	}
	fmt.Fprintf(&b, " worth over %d Vanilla Coins!", out.Value)
	return b.String()
}
