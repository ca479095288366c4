/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package history provides an in-memory ring buffer of recent tick
// decisions for the status endpoint.
package history

import (
	"sync"
	"time"
)

// Entry records the outcome of one poll-loop tick.
type Entry struct {
	Timestamp      time.Time `json:"timestamp"`
	PlaybackActive bool      `json:"playback_active"`
	QueuePaused    *bool     `json:"queue_paused"`
	SpeedKBps      float64   `json:"speed_kbps"`
	SpeedLimitPct  int       `json:"speed_limit_pct"`
	IdleSeconds    int       `json:"idle_seconds"`
	Action         string    `json:"action"`
	Override       bool      `json:"override,omitempty"`
	ActuationErr   string    `json:"actuation_error,omitempty"`
}

// Ring is a thread-safe fixed-capacity ring of tick entries. The poll
// loop writes, the status handler reads.
type Ring struct {
	mu       sync.RWMutex
	entries  []Entry
	capacity int
	head     int
	count    int
}

// NewRing creates a ring with the specified capacity.
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = 256
	}
	return &Ring{
		entries:  make([]Entry, capacity),
		capacity: capacity,
	}
}

// Add appends an entry, evicting the oldest once full.
func (r *Ring) Add(entry Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[r.head] = entry
	r.head = (r.head + 1) % r.capacity
	if r.count < r.capacity {
		r.count++
	}
}

// Recent returns up to limit entries, newest first. limit <= 0 returns
// everything.
func (r *Ring) Recent(limit int) []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := r.count
	if limit > 0 && limit < n {
		n = limit
	}

	result := make([]Entry, n)
	for i := 0; i < n; i++ {
		idx := (r.head - 1 - i + r.capacity) % r.capacity
		result[i] = r.entries[idx]
	}
	return result
}

// Len returns the number of stored entries.
func (r *Ring) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.count
}
