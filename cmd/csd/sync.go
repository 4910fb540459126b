package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/credisync/credisync/internal/config"
	"github.com/credisync/credisync/internal/remote"
	"github.com/credisync/credisync/internal/replica"
	"github.com/credisync/credisync/internal/sync"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one full sync cycle",
	Long: `Run a single upload/download/merge cycle against the central store.

This performs a full cycle:
  1. Uploads unsynced local rows in batches
  2. Downloads remote deltas since the last checkpoint
  3. Merges them, resolving conflicts last-write-wins
  4. Advances the checkpoint if everything succeeded`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, store, engine := mustOpenEngine()
		defer store.Close()

		start := time.Now()
		result, err := engine.FullSync(context.Background(), cfg.TenantID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error during sync: %v\n", err)
			os.Exit(1)
		}

		status := "complete"
		if result.Partial {
			status = "partial (checkpoint withheld)"
		}
		fmt.Printf("Sync %s in %v\n", status, time.Since(start).Round(time.Millisecond))
		fmt.Printf("   Uploaded:   %d\n", result.Uploaded)
		fmt.Printf("   Downloaded: %d\n", result.Downloaded)
		fmt.Printf("   Conflicts:  %d\n", result.Conflicts)
		if result.FailedBatches > 0 || result.FailedTables > 0 {
			fmt.Printf("   Failed:     %d batches, %d tables\n", result.FailedBatches, result.FailedTables)
		}
	},
}

// mustOpenEngine loads config and wires store, remote client, and
// engine, exiting on any setup failure.
func mustOpenEngine() (*config.Config, *replica.Store, *sync.Engine) {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if cfg.TenantID == "" {
		fmt.Fprintf(os.Stderr, "Error: tenant_id is not configured\n")
		os.Exit(1)
	}
	if cfg.RemoteURL == "" {
		fmt.Fprintf(os.Stderr, "Error: remote_url is not configured\n")
		os.Exit(1)
	}

	store, err := replica.Open(filepath.Join(cfg.DataDir, "replica.db"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening replica: %v\n", err)
		os.Exit(1)
	}
	if err := store.InitSchema(context.Background()); err != nil {
		store.Close()
		fmt.Fprintf(os.Stderr, "Error initializing schema: %v\n", err)
		os.Exit(1)
	}

	client := remote.NewClient(cfg.RemoteURL, cfg.RemoteToken, nil)
	engine := sync.New(store, client, &sync.Config{
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
	})
	return cfg, store, engine
}
