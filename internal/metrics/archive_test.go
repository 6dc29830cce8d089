// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ManuGH/xg2g-archive/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPromhttpExposure(t *testing.T) {
	srv := httptest.NewServer(promhttp.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAddArchiveBytesIgnoresNonPositive(t *testing.T) {
	before := testutil.ToFloat64(metrics.ArchiveBytesWritten)
	metrics.AddArchiveBytes(0)
	metrics.AddArchiveBytes(-5)
	assert.Equal(t, before, testutil.ToFloat64(metrics.ArchiveBytesWritten))

	metrics.AddArchiveBytes(128)
	assert.Equal(t, before+128, testutil.ToFloat64(metrics.ArchiveBytesWritten))
}

func TestArchiveCounters(t *testing.T) {
	tests := []struct {
		name string
		inc  func()
		read func() float64
	}{
		{
			name: "sample written",
			inc:  func() { metrics.IncArchiveSample("written") },
			read: func() float64 { return testutil.ToFloat64(metrics.ArchiveSamplesTotal.WithLabelValues("written")) },
		},
		{
			name: "marker dropped",
			inc:  func() { metrics.IncArchiveMarker("dropped") },
			read: func() float64 { return testutil.ToFloat64(metrics.ArchiveMarkersTotal.WithLabelValues("dropped")) },
		},
		{
			name: "rejected pause",
			inc:  func() { metrics.IncArchiveRejected("pause", "invalid_state") },
			read: func() float64 {
				return testutil.ToFloat64(metrics.ArchiveOperationsRejected.WithLabelValues("pause", "invalid_state"))
			},
		},
		{
			name: "finalize ok",
			inc:  func() { metrics.IncArchiveFinalize("ok") },
			read: func() float64 { return testutil.ToFloat64(metrics.ArchiveFinalizeTotal.WithLabelValues("ok")) },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := tt.read()
			tt.inc()
			assert.Equal(t, before+1, tt.read())
		})
	}
}

func TestObserveArchiveDispatch(t *testing.T) {
	metrics.ObserveArchiveDispatch("stop", 3*time.Millisecond)
	assert.GreaterOrEqual(t, testutil.CollectAndCount(metrics.ArchiveDispatchDuration), 1)
}

func TestBusCountersDefaultLabels(t *testing.T) {
	before := testutil.ToFloat64(metrics.BusPublishedTotal.WithLabelValues("unknown", "memory"))
	metrics.IncBusPublished("", "memory")
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.BusPublishedTotal.WithLabelValues("unknown", "memory")))

	dropped := testutil.ToFloat64(metrics.BusDroppedTotal.WithLabelValues("unknown", "unknown"))
	metrics.IncBusDropReason("", "")
	assert.Equal(t, dropped+1, testutil.ToFloat64(metrics.BusDroppedTotal.WithLabelValues("unknown", "unknown")))
}
