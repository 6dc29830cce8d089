// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ArchiveBytesWritten counts payload and framing bytes handed to the destination.
	ArchiveBytesWritten = promauto.NewCounter(prometheus.CounterOpts{
		Name: "xg2g_archive_bytes_written_total",
		Help: "Total number of bytes written to archive destinations",
	})

	// ArchiveSamplesTotal counts samples by outcome (written, dropped, failed).
	ArchiveSamplesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "xg2g_archive_samples_total",
		Help: "Total number of samples leaving the archive queue by outcome",
	}, []string{"outcome"})

	// ArchiveMarkersTotal counts signaled markers by status.
	ArchiveMarkersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "xg2g_archive_markers_total",
		Help: "Total number of markers signaled by status",
	}, []string{"status"})

	// ArchiveOperationsRejected counts synchronously rejected operations.
	ArchiveOperationsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "xg2g_archive_operations_rejected_total",
		Help: "Total number of stream operations rejected during validation",
	}, []string{"op", "reason"})

	// ArchiveDispatchDuration tracks how long one dispatched operation runs.
	ArchiveDispatchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "xg2g_archive_dispatch_duration_seconds",
		Help:    "Time spent executing one dispatched stream operation",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}, []string{"op"})

	// ArchiveFinalizeTotal counts finalize completions by result.
	ArchiveFinalizeTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "xg2g_archive_finalize_total",
		Help: "Total number of finalize operations by result",
	}, []string{"result"})
)

// AddArchiveBytes records bytes written to a destination.
func AddArchiveBytes(n int) {
	if n <= 0 {
		return
	}
	ArchiveBytesWritten.Add(float64(n))
}

// IncArchiveSample records a sample outcome.
func IncArchiveSample(outcome string) {
	ArchiveSamplesTotal.WithLabelValues(outcome).Inc()
}

// IncArchiveMarker records a signaled marker.
func IncArchiveMarker(status string) {
	ArchiveMarkersTotal.WithLabelValues(status).Inc()
}

// IncArchiveRejected records a rejected operation.
func IncArchiveRejected(op, reason string) {
	ArchiveOperationsRejected.WithLabelValues(op, reason).Inc()
}

// ObserveArchiveDispatch records the duration of a dispatched operation.
func ObserveArchiveDispatch(op string, d time.Duration) {
	ArchiveDispatchDuration.WithLabelValues(op).Observe(d.Seconds())
}

// IncArchiveFinalize records a finalize result ("ok" or "error").
func IncArchiveFinalize(result string) {
	ArchiveFinalizeTotal.WithLabelValues(result).Inc()
}
