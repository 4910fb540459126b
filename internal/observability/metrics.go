// Package observability exposes prometheus metrics for the sync
// engine. The daemon serves them on /metrics; one-shot CLI runs just
// update the in-process registry and exit.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	syncCyclesCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "credisync",
		Subsystem: "sync",
		Name:      "cycles_total",
		Help:      "Sync cycles by outcome (success, partial, failed, rejected).",
	}, []string{"outcome"})

	uploadedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "credisync",
		Subsystem: "sync",
		Name:      "records_uploaded_total",
		Help:      "Local records confirmed by the remote store.",
	})

	downloadedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "credisync",
		Subsystem: "sync",
		Name:      "records_downloaded_total",
		Help:      "Remote records merged into the local replica.",
	})

	conflictCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "credisync",
		Subsystem: "sync",
		Name:      "conflicts_resolved_total",
		Help:      "Write-write conflicts detected and resolved during merge.",
	})

	batchFailureCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "credisync",
		Subsystem: "sync",
		Name:      "batch_failures_total",
		Help:      "Upload batches that failed and were left for the next cycle.",
	})

	lastSyncGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "credisync",
		Subsystem: "sync",
		Name:      "last_success_timestamp_seconds",
		Help:      "Unix timestamp of the last fully successful sync cycle.",
	})

	pendingGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "credisync",
		Subsystem: "replica",
		Name:      "pending_records",
		Help:      "Rows awaiting upload, per table.",
	}, []string{"table"})
)

func init() {
	prometheus.MustRegister(
		syncCyclesCounter,
		uploadedCounter,
		downloadedCounter,
		conflictCounter,
		batchFailureCounter,
		lastSyncGauge,
		pendingGauge,
	)
}

// RecordCycle counts one finished (or rejected) sync cycle.
func RecordCycle(outcome string) {
	syncCyclesCounter.WithLabelValues(outcome).Inc()
}

// RecordUploaded counts records confirmed by the remote store.
func RecordUploaded(n int) {
	uploadedCounter.Add(float64(n))
}

// RecordDownloaded counts remote records merged locally.
func RecordDownloaded(n int) {
	downloadedCounter.Add(float64(n))
}

// RecordConflict counts one resolved write-write conflict.
func RecordConflict() {
	conflictCounter.Inc()
}

// RecordBatchFailure counts one failed upload batch.
func RecordBatchFailure() {
	batchFailureCounter.Inc()
}

// RecordSyncSuccess updates the last-success watermark.
func RecordSyncSuccess(ts time.Time) {
	if ts.IsZero() {
		return
	}
	lastSyncGauge.Set(float64(ts.Unix()))
}

// RecordPending sets the pending-rows gauge for a table.
func RecordPending(table string, n int) {
	pendingGauge.WithLabelValues(table).Set(float64(n))
}
