/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package arbiter decides, once per tick, whether the SABnzbd queue
// should be paused or resumed based on Jellyfin playback activity.
package arbiter

import (
	"time"

	"github.com/friendsincode/playgate/internal/sabnzbd"
)

// Action is the actuation command a tick may emit. At most one per tick.
type Action int

const (
	ActionNone Action = iota
	ActionPause
	ActionResume
)

func (a Action) String() string {
	switch a {
	case ActionPause:
		return "pause"
	case ActionResume:
		return "resume"
	default:
		return "none"
	}
}

// CommandedState remembers the last action this process itself took on
// the queue. Unknown only before the first actuation.
type CommandedState int

const (
	CommandedUnknown CommandedState = iota
	CommandedPaused
	CommandedRunning
)

func (c CommandedState) String() string {
	switch c {
	case CommandedPaused:
		return "paused"
	case CommandedRunning:
		return "running"
	default:
		return "unknown"
	}
}

// State is the engine's memory across ticks. It lives for the process
// lifetime, is owned by the single loop goroutine, and is never persisted.
type State struct {
	IdleAccumSeconds int            `json:"idle_accum_seconds"`
	LastCommanded    CommandedState `json:"-"`
}

// Decision is the outcome of one tick.
type Decision struct {
	Action Action
	// Override reports that a manual throttle on the queue suppressed
	// automatic control for this tick.
	Override bool
	// IdleSeconds is the accumulator value after this tick.
	IdleSeconds int
}

// Engine is the pause/resume state machine. It is not safe for
// concurrent use; the poll loop is its only caller.
type Engine struct {
	state           State
	tickSeconds     int
	cooldownSeconds int
}

// NewEngine creates an engine with a zeroed accumulator and unknown
// last-commanded state.
func NewEngine(interval, resumeCooldown time.Duration) *Engine {
	return &Engine{
		tickSeconds:     int(interval / time.Second),
		cooldownSeconds: int(resumeCooldown / time.Second),
	}
}

// Decide runs one tick of the state machine and mutates the engine state
// in place.
//
// Order matters: the override guard first, then the active branch, then
// the idle branch. While playback is active the queue is paused unless it
// is already known paused; the unknown case re-pauses only when our own
// last command was not pause, so an out-of-band unpause still gets
// corrected without hammering the API every tick. While idle, seconds
// accumulate until the cooldown elapses, then resume fires whenever the
// queue is not known to be running. The accumulator stays saturated after
// a resume so later idle ticks keep re-confirming the running state.
//
// LastCommanded is committed when a command is emitted, before the
// actuation outcome is known. A failed actuation leaves the engine
// believing the action happened until a later tick observes the real
// queue state.
func (e *Engine) Decide(anyActive bool, q sabnzbd.QueueState) Decision {
	if anyActive && q.SpeedLimitPct != 100 {
		e.state.IdleAccumSeconds = 0
		return Decision{Action: ActionNone, Override: true}
	}

	if anyActive {
		e.state.IdleAccumSeconds = 0

		knownRunning := q.Paused != nil && !*q.Paused
		unknownAndNotOurPause := q.Paused == nil && e.state.LastCommanded != CommandedPaused
		if knownRunning || unknownAndNotOurPause {
			e.state.LastCommanded = CommandedPaused
			return Decision{Action: ActionPause}
		}
		return Decision{}
	}

	e.state.IdleAccumSeconds += e.tickSeconds
	if e.state.IdleAccumSeconds >= e.cooldownSeconds {
		if q.Paused == nil || *q.Paused {
			e.state.LastCommanded = CommandedRunning
			return Decision{Action: ActionResume, IdleSeconds: e.state.IdleAccumSeconds}
		}
	}
	return Decision{IdleSeconds: e.state.IdleAccumSeconds}
}

// Snapshot returns a copy of the engine state for status reporting.
func (e *Engine) Snapshot() State {
	return e.state
}
