/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package sabnzbd talks to the SABnzbd JSON API: it normalizes queue
// status into a tri-state snapshot and issues pause/resume commands.
package sabnzbd

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// QueueState is the normalized downstream queue snapshot for one tick.
// Paused is nil when the upstream signal was absent or unparseable.
type QueueState struct {
	Paused        *bool
	SpeedKBps     float64
	SpeedLimitPct int
}

// FailureState is what a tick sees when SABnzbd is unreachable or returns
// garbage: unknown paused state, zero speed, unthrottled limit.
func FailureState() QueueState {
	return QueueState{Paused: nil, SpeedKBps: 0, SpeedLimitPct: 100}
}

// Client issues requests against a single SABnzbd instance.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient creates a SABnzbd client. baseURL must not have a trailing slash.
func NewClient(baseURL, apiKey string, timeout time.Duration, verifyTLS bool, logger zerolog.Logger) *Client {
	transport := http.DefaultTransport
	if !verifyTLS {
		transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec
		}
	}

	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(transport),
		},
		logger: logger.With().Str("component", "sabnzbd").Logger(),
	}
}

func (c *Client) apiURL(params url.Values) string {
	params.Set("apikey", c.apiKey)
	return c.baseURL + "/sabnzbd/api?" + params.Encode()
}

// queueResponse mirrors the wire shape of mode=queue. SABnzbd serializes
// numeric fields as strings, and older versions omit the paused boolean,
// so everything numeric stays raw until normalization.
type queueResponse struct {
	Queue *rawQueue `json:"queue"`
}

type rawQueue struct {
	Paused     *bool           `json:"paused"`
	Status     string          `json:"status"`
	KBPerSec   json.RawMessage `json:"kbpersec"`
	SpeedLimit json.RawMessage `json:"speedlimit"`
}

// QueueStatus fetches and normalizes the current queue state. Any
// transport or decode failure yields FailureState alongside the error,
// so the caller keeps running on a degraded signal either way.
func (c *Client) QueueStatus(ctx context.Context) (QueueState, error) {
	params := url.Values{}
	params.Set("mode", "queue")
	params.Set("output", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL(params), nil)
	if err != nil {
		c.logger.Error().Err(err).Msg("SABnzbd queue request build failed")
		return FailureState(), fmt.Errorf("create queue request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error().Err(err).Str("url", c.baseURL).Msg("SABnzbd queue fetch failed")
		return FailureState(), fmt.Errorf("fetch queue: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Error().Int("status", resp.StatusCode).Msg("SABnzbd queue fetch returned error status")
		return FailureState(), fmt.Errorf("queue endpoint returned status %d", resp.StatusCode)
	}

	var decoded queueResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		c.logger.Error().Err(err).Msg("SABnzbd queue response decode failed")
		return FailureState(), fmt.Errorf("decode queue response: %w", err)
	}
	return Normalize(decoded.Queue), nil
}

// Normalize reduces a raw queue object to a QueueState. The paused flag
// resolves from the explicit boolean when present, else from the status
// text ("paused", case-insensitive), else stays unknown. Numeric fields
// fall back to 0 speed and a 100% limit on any parse error.
func Normalize(q *rawQueue) QueueState {
	state := FailureState()
	if q == nil {
		return state
	}

	if q.Paused != nil {
		state.Paused = q.Paused
	} else if q.Status != "" {
		paused := strings.EqualFold(q.Status, "paused")
		state.Paused = &paused
	}

	if v, ok := rawNumber(q.KBPerSec); ok {
		if speed, err := strconv.ParseFloat(v, 64); err == nil && speed >= 0 {
			state.SpeedKBps = speed
		}
	}

	if v, ok := rawNumber(q.SpeedLimit); ok {
		if pct, err := strconv.Atoi(v); err == nil {
			state.SpeedLimitPct = pct
		}
	}

	return state
}

// rawNumber unwraps a JSON value that may arrive as a quoted string or a
// bare number.
func rawNumber(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return "", false
	}
	if strings.HasPrefix(s, `"`) {
		var unquoted string
		if err := json.Unmarshal(raw, &unquoted); err != nil {
			return "", false
		}
		return strings.TrimSpace(unquoted), true
	}
	return s, true
}

// SetPaused pauses or resumes the queue. Exactly one request is issued;
// there is no retry here, the poll loop will reconcile on a later tick.
func (c *Client) SetPaused(ctx context.Context, pause bool) error {
	mode := "resume"
	if pause {
		mode = "pause"
	}

	params := url.Values{}
	params.Set("mode", mode)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL(params), nil)
	if err != nil {
		return fmt.Errorf("create %s request: %w", mode, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error().Err(err).Str("action", mode).Msg("SABnzbd state change failed")
		return fmt.Errorf("%s queue: %w", mode, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Error().Str("action", mode).Int("status", resp.StatusCode).Msg("SABnzbd state change rejected")
		return fmt.Errorf("%s queue: status %d", mode, resp.StatusCode)
	}

	c.logger.Info().Str("action", mode).Msg("SABnzbd state change requested")
	return nil
}
