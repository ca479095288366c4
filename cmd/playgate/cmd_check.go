/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/friendsincode/playgate/internal/jellyfin"
	"github.com/friendsincode/playgate/internal/sabnzbd"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Query both services once and print what the loop would see",
	Long: `Perform a single read of Jellyfin sessions and the SABnzbd queue
and print the result, without issuing any pause or resume command.

Useful for verifying URLs and API keys before starting the daemon:

  playgate check
`,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout)
	defer cancel()

	jf := jellyfin.NewClient(cfg.JellyfinURL, cfg.JellyfinAPIKey, cfg.RequestTimeout, cfg.VerifyTLS, logger)
	active, sessions, jfErr := jf.ActivePlayback(ctx, cfg.IncludePaused)

	sab := sabnzbd.NewClient(cfg.SabURL, cfg.SabAPIKey, cfg.RequestTimeout, cfg.VerifyTLS, logger)
	q, sabErr := sab.QueueStatus(ctx)

	fmt.Printf("jellyfin: %s\n", cfg.JellyfinURL)
	if jfErr != nil {
		fmt.Printf("  error: %v (treated as no active playback)\n", jfErr)
	}
	fmt.Printf("  active playback: %v\n", active)
	for _, s := range sessions {
		fmt.Printf("  - %s on %s: %s (playing=%v paused=%v)\n", s.User, s.Client, s.Item, s.IsPlaying, s.IsPaused)
	}

	fmt.Printf("sabnzbd: %s\n", cfg.SabURL)
	if sabErr != nil {
		fmt.Printf("  error: %v (treated as unknown queue state)\n", sabErr)
	}
	switch {
	case q.Paused == nil:
		fmt.Println("  paused: unknown")
	default:
		fmt.Printf("  paused: %v\n", *q.Paused)
	}
	fmt.Printf("  speed: %.1f KB/s\n", q.SpeedKBps)
	fmt.Printf("  speed limit: %d%%\n", q.SpeedLimitPct)

	if jfErr != nil || sabErr != nil {
		return fmt.Errorf("one or more services unreachable")
	}
	return nil
}
