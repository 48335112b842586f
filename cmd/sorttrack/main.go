package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/LdDl/sort-go/internal/cli"
	"github.com/LdDl/sort-go/internal/version"
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "sorttrack",
		Short:   "SORT multi-object tracker over detection files",
		Version: version.String(),
		Long: `sorttrack links per-frame detections into persistent tracks with the
SORT algorithm (Kalman prediction, IoU association, Hungarian matching).

Detections are read in MOTChallenge format, results are written in the same
format and may be published to NATS. Tracker state can be checkpointed into
SQLite and resumed later.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(cli.TrackCmd())
	rootCmd.AddCommand(cli.CheckpointsCmd())
	rootCmd.AddCommand(cli.VersionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
