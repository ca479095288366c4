/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/friendsincode/playgate/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the Playgate version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("playgate %s (%s %s/%s)\n", version.Version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
