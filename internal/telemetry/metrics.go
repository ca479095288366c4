/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package telemetry exposes Prometheus metrics and OpenTelemetry tracing.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TicksTotal counts completed poll-loop ticks.
	TicksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "playgate_ticks_total",
		Help: "Completed poll loop ticks",
	})

	// ActuationsTotal counts pause/resume commands by outcome.
	ActuationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "playgate_actuations_total",
		Help: "Queue state change commands issued, by action and outcome",
	}, []string{"action", "outcome"})

	// OverridesTotal counts ticks suppressed by a manual queue throttle.
	OverridesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "playgate_overrides_total",
		Help: "Ticks skipped because of a manual SABnzbd speed limit",
	})

	// FetchErrorsTotal counts upstream/downstream read failures.
	FetchErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "playgate_fetch_errors_total",
		Help: "Failed reads against the upstream services, by service",
	}, []string{"service"})

	// PlaybackActive reports the current aggregate playback signal.
	PlaybackActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "playgate_playback_active",
		Help: "Whether any Jellyfin session currently counts as watching",
	})

	// IdleSeconds reports the engine's idle accumulator.
	IdleSeconds = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "playgate_idle_seconds",
		Help: "Consecutive seconds without active playback",
	})

	// QueueSpeedKBps reports the last observed SABnzbd download speed.
	QueueSpeedKBps = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "playgate_queue_speed_kbps",
		Help: "Last observed SABnzbd download speed in KB/s",
	})

	// APIRequestsTotal tracks status server requests.
	APIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "playgate_api_requests_total",
		Help: "Status server requests by method, endpoint and status code",
	}, []string{"method", "endpoint", "status"})

	// APIRequestDuration tracks status server latency.
	APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "playgate_api_request_duration_seconds",
		Help:    "Status server request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint", "status"})
)

// Handler exposes the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
