// Command csd runs the credisync replica's sync engine from the
// command line: one-shot sync, the background daemon, and sync stats.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string

	rootCmd = &cobra.Command{
		Use:   "csd",
		Short: "credisync replica sync tool",
		Long: `csd manages the on-device credisync replica.

The replica is a local SQLite database holding tenant-scoped business
records. csd uploads unsynced local changes to the central store,
downloads remote deltas, and resolves write-write conflicts with an
auditable last-write-wins log.`,
	}
)

func main() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default credisync.yaml in cwd)")

	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(statsCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
