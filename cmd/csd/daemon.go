package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/credisync/credisync/internal/sync"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the background sync daemon",
	Long: `Run continuous background sync on the configured interval.

The daemon keeps syncing until interrupted. Cycle errors are logged and
never stop the timer. With metrics_addr configured, prometheus metrics
are served on /metrics.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, store, engine := mustOpenEngine()
		defer store.Close()

		logger := log.New(os.Stderr, "[daemon] ", log.LstdFlags)
		if cfg.LogFile != "" {
			logger.SetOutput(&lumberjack.Logger{
				Filename:   cfg.LogFile,
				MaxSize:    10, // megabytes
				MaxBackups: 3,
				MaxAge:     28, // days
			})
		}

		if cfg.MetricsAddr != "" {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			go func() {
				logger.Printf("Serving metrics on %s", cfg.MetricsAddr)
				if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
					logger.Printf("Metrics listener failed: %v", err)
				}
			}()
		}

		scheduler := sync.NewScheduler(engine, cfg.TenantID, cfg.SyncInterval, logger)
		scheduler.Start()
		fmt.Printf("Sync daemon running (interval %v). Ctrl-C to stop.\n", cfg.SyncInterval)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh

		scheduler.Stop()
	},
}
