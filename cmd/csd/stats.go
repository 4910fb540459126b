package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show sync status for the configured tenant",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, store, engine := mustOpenEngine()
		defer store.Close()

		stats, err := engine.Stats(context.Background(), cfg.TenantID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading stats: %v\n", err)
			os.Exit(1)
		}

		if stats.LastSync.IsZero() {
			fmt.Println("Last sync: never")
		} else {
			fmt.Printf("Last sync: %s\n", stats.LastSync.Format("2006-01-02 15:04:05"))
		}
		fmt.Println("Pending rows:")
		total := 0
		for table, n := range stats.Pending {
			fmt.Printf("   %-14s %d\n", table, n)
			total += n
		}
		fmt.Printf("   %-14s %d\n", "total", total)
		fmt.Printf("Resolved conflicts on record: %d\n", stats.Conflicts)
	},
}
