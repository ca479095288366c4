/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package jellyfin reads playback sessions from a Jellyfin server and
// reduces them to a single "is anything being watched" signal.
package jellyfin

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Client is a read-only client for the Jellyfin sessions endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient creates a Jellyfin client. baseURL must not have a trailing
// slash. When verifyTLS is false, certificate validation is disabled for
// self-signed local installs.
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
		logger: logger.With().Str("component", "jellyfin").Logger(),
	}
}

// Sessions fetches the raw session list from Jellyfin.
func (c *Client) Sessions(ctx context.Context) ([]Session, error) {
	url := c.baseURL + "/Sessions"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create sessions request: %w", err)
	}
	req.Header.Set("X-Emby-Token", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch sessions: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("sessions endpoint returned status %d", resp.StatusCode)
	}

	var sessions []Session
	if err := json.NewDecoder(resp.Body).Decode(&sessions); err != nil {
		return nil, fmt.Errorf("decode sessions: %w", err)
	}
	return sessions, nil
}

// ActivePlayback reports whether any Jellyfin session counts as being
// watched, plus per-session diagnostics. A fetch or decode failure is
// treated as "nothing is playing": it logs the error and returns
// (false, nil, err) so the caller's loop keeps running on a degraded
// signal. The error is informational only; the returned values are
// already safe to act on.
func (c *Client) ActivePlayback(ctx context.Context, includePaused bool) (bool, []SessionSummary, error) {
	sessions, err := c.Sessions(ctx)
	if err != nil {
		c.logger.Error().Err(err).Str("url", c.baseURL+"/Sessions").Msg("Jellyfin sessions fetch failed")
		return false, nil, err
	}
	active, summaries := Classify(sessions, includePaused)
	return active, summaries, nil
}

// Classify reduces raw sessions to the aggregate activity signal.
// Sessions without a now-playing item are skipped entirely. A session is
// playing when it has an item and is neither paused nor buffering; with
// includePaused set, paused/buffering sessions also count as watching.
func Classify(sessions []Session, includePaused bool) (bool, []SessionSummary) {
	anyActive := false
	var summaries []SessionSummary

	for _, s := range sessions {
		if s.NowPlayingItem == nil {
			continue
		}

		isPaused := false
		isBuffering := false
		if s.PlayState != nil {
			isPaused = s.PlayState.IsPaused || s.PlayState.IsVideoPaused
			isBuffering = s.PlayState.IsBuffering
		}

		isPlaying := !isPaused && !isBuffering
		watching := isPlaying || (includePaused && (isPaused || isBuffering))

		user := s.UserName
		if user == "" {
			user = s.UserID
		}

		summaries = append(summaries, SessionSummary{
			User:        user,
			Client:      s.Client,
			Item:        s.NowPlayingItem.Name,
			IsPlaying:   isPlaying,
			IsPaused:    isPaused,
			IsBuffering: isBuffering,
			Watching:    watching,
		})

		if watching {
			anyActive = true
		}
	}

	return anyActive, summaries
}
