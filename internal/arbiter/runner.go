/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package arbiter

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/friendsincode/playgate/internal/history"
	"github.com/friendsincode/playgate/internal/jellyfin"
	"github.com/friendsincode/playgate/internal/sabnzbd"
	"github.com/friendsincode/playgate/internal/telemetry"
)

// PlaybackSource reads the aggregate playback-activity signal. A failed
// read must come back as (false, nil, err).
type PlaybackSource interface {
	ActivePlayback(ctx context.Context, includePaused bool) (bool, []jellyfin.SessionSummary, error)
}

// Queue reads the downstream queue state and issues pause/resume
// commands. A failed read must come back as the failure-default state
// plus the error.
type Queue interface {
	QueueStatus(ctx context.Context) (sabnzbd.QueueState, error)
	SetPaused(ctx context.Context, pause bool) error
}

// Status is a point-in-time view of the runner for the status endpoint.
type Status struct {
	InstanceID     string                    `json:"instance_id"`
	LastTick       time.Time                 `json:"last_tick"`
	TickCount      uint64                    `json:"tick_count"`
	PlaybackActive bool                      `json:"playback_active"`
	Sessions       []jellyfin.SessionSummary `json:"sessions"`
	QueuePaused    *bool                     `json:"queue_paused"`
	QueueSpeedKBps float64                   `json:"queue_speed_kbps"`
	SpeedLimitPct  int                       `json:"speed_limit_pct"`
	IdleSeconds    int                       `json:"idle_seconds"`
	LastCommanded  string                    `json:"last_commanded"`
	Recent         []history.Entry           `json:"recent,omitempty"`
}

// Runner drives the poll loop: one tick reads both signals, runs the
// engine, optionally actuates, then sleeps. Ticks never overlap and the
// engine state is touched only by the loop goroutine.
type Runner struct {
	source        PlaybackSource
	queue         Queue
	engine        *Engine
	interval      time.Duration
	includePaused bool
	instanceID    string
	logger        zerolog.Logger
	ring          *history.Ring

	mu     sync.RWMutex
	status Status
}

// NewRunner wires a runner around the given collaborators.
func NewRunner(source PlaybackSource, queue Queue, engine *Engine, interval time.Duration, includePaused bool, instanceID string, logger zerolog.Logger) *Runner {
	return &Runner{
		source:        source,
		queue:         queue,
		engine:        engine,
		interval:      interval,
		includePaused: includePaused,
		instanceID:    instanceID,
		logger:        logger.With().Str("component", "arbiter").Logger(),
		ring:          history.NewRing(256),
		status:        Status{InstanceID: instanceID, SpeedLimitPct: 100, LastCommanded: CommandedUnknown.String()},
	}
}

// Run executes ticks until the context is cancelled. The first tick runs
// immediately; cancellation is checked between ticks, so at most one
// in-flight tick finishes before Run returns.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Info().
		Dur("interval", r.interval).
		Bool("include_paused", r.includePaused).
		Msg("poll loop started")

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			r.logger.Info().Msg("poll loop stopped")
			return ctx.Err()
		case <-ticker.C:
			r.Tick(ctx)
		}
	}
}

// Tick runs one iteration: read both signals, decide, optionally act.
// It never fails; degraded signals and failed actuations are logged and
// the next tick starts fresh.
func (r *Runner) Tick(ctx context.Context) {
	ctx, span := telemetry.StartSpan(ctx, "playgate/arbiter", "tick")
	defer span.End()

	active, sessions, err := r.source.ActivePlayback(ctx, r.includePaused)
	if err != nil {
		telemetry.FetchErrorsTotal.WithLabelValues("jellyfin").Inc()
	}
	for _, s := range sessions {
		r.logger.Debug().
			Str("user", s.User).
			Str("client", s.Client).
			Str("item", s.Item).
			Bool("is_playing", s.IsPlaying).
			Bool("is_paused", s.IsPaused).
			Bool("is_buffering", s.IsBuffering).
			Bool("watching", s.Watching).
			Msg("session")
	}

	q, err := r.queue.QueueStatus(ctx)
	if err != nil {
		telemetry.FetchErrorsTotal.WithLabelValues("sabnzbd").Inc()
	}

	decision := r.engine.Decide(active, q)

	span.SetAttributes(
		attribute.Bool("playback.active", active),
		attribute.Int("queue.speed_limit_pct", q.SpeedLimitPct),
		attribute.String("decision.action", decision.Action.String()),
		attribute.Bool("decision.override", decision.Override),
	)

	entry := history.Entry{
		Timestamp:      time.Now().UTC(),
		PlaybackActive: active,
		QueuePaused:    q.Paused,
		SpeedKBps:      q.SpeedKBps,
		SpeedLimitPct:  q.SpeedLimitPct,
		IdleSeconds:    decision.IdleSeconds,
		Action:         decision.Action.String(),
		Override:       decision.Override,
	}

	switch {
	case decision.Override:
		telemetry.OverridesTotal.Inc()
		r.logger.Info().
			Int("speed_limit_pct", q.SpeedLimitPct).
			Msg("manual override: SABnzbd speed limit not at 100%, skipping auto-pause")

	case decision.Action == ActionPause:
		if err := r.queue.SetPaused(ctx, true); err != nil {
			span.RecordError(err)
			entry.ActuationErr = err.Error()
			telemetry.ActuationsTotal.WithLabelValues("pause", "error").Inc()
		} else {
			telemetry.ActuationsTotal.WithLabelValues("pause", "ok").Inc()
			r.logger.Info().Msg("paused SABnzbd due to active playback")
		}

	case decision.Action == ActionResume:
		if err := r.queue.SetPaused(ctx, false); err != nil {
			span.RecordError(err)
			entry.ActuationErr = err.Error()
			telemetry.ActuationsTotal.WithLabelValues("resume", "error").Inc()
		} else {
			telemetry.ActuationsTotal.WithLabelValues("resume", "ok").Inc()
			r.logger.Info().
				Int("idle_seconds", decision.IdleSeconds).
				Msg("idle threshold reached, resuming SABnzbd")
		}

	case active:
		r.logger.Debug().Msg("already paused, no action")

	default:
		r.logger.Debug().Int("idle_seconds", decision.IdleSeconds).Msg("no active playback")
	}

	r.ring.Add(entry)

	telemetry.TicksTotal.Inc()
	if active {
		telemetry.PlaybackActive.Set(1)
	} else {
		telemetry.PlaybackActive.Set(0)
	}
	state := r.engine.Snapshot()
	telemetry.IdleSeconds.Set(float64(state.IdleAccumSeconds))
	telemetry.QueueSpeedKBps.Set(q.SpeedKBps)

	r.mu.Lock()
	r.status = Status{
		InstanceID:     r.instanceID,
		LastTick:       entry.Timestamp,
		TickCount:      r.status.TickCount + 1,
		PlaybackActive: active,
		Sessions:       sessions,
		QueuePaused:    q.Paused,
		QueueSpeedKBps: q.SpeedKBps,
		SpeedLimitPct:  q.SpeedLimitPct,
		IdleSeconds:    state.IdleAccumSeconds,
		LastCommanded:  state.LastCommanded.String(),
	}
	r.mu.Unlock()
}

// Status returns the current runner snapshot, with up to limit recent
// tick records attached.
func (r *Runner) Status(limit int) Status {
	r.mu.RLock()
	s := r.status
	r.mu.RUnlock()
	s.Recent = r.ring.Recent(limit)
	return s
}
