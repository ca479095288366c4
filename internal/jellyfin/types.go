/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package jellyfin

// Session is one entry from the Jellyfin /Sessions endpoint. Only the
// fields the classifier needs are decoded; the rest of the upstream
// object is ignored.
type Session struct {
	UserName       string          `json:"UserName"`
	UserID         string          `json:"UserId"`
	Client         string          `json:"Client"`
	NowPlayingItem *NowPlayingItem `json:"NowPlayingItem"`
	PlayState      *PlayState      `json:"PlayState"`
}

// NowPlayingItem is the item a session is currently playing, if any.
type NowPlayingItem struct {
	Name string `json:"Name"`
}

// PlayState holds the playback-state flags for a session. Missing flags
// decode to false.
type PlayState struct {
	IsPaused      bool `json:"IsPaused"`
	IsVideoPaused bool `json:"IsVideoPaused"`
	IsBuffering   bool `json:"IsBuffering"`
}

// SessionSummary is the per-session diagnostic record produced by the
// classifier. Order matches the upstream session order.
type SessionSummary struct {
	User        string `json:"user"`
	Client      string `json:"client"`
	Item        string `json:"item"`
	IsPlaying   bool   `json:"is_playing"`
	IsPaused    bool   `json:"is_paused"`
	IsBuffering bool   `json:"is_buffering"`
	Watching    bool   `json:"watching"`
}
