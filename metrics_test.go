// SPDX-License-Identifier: GPL-3.0
// Copyright 2024 Pete Heist

package dot11dcf

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// collectMetrics scrapes m the way a Prometheus registry would, in the
// fixed order Collect emits them: delivered, failed, retries,
// duplicate, dropped, gaps, cw, then offset (only if bound).
func collectMetrics(t *testing.T, m *Metrics) []*dto.Metric {
	t.Helper()
	ch := make(chan prometheus.Metric, 16)
	go func() {
		m.Collect(ch)
		close(ch)
	}()
	var out []*dto.Metric
	for metric := range ch {
		var d dto.Metric
		require.NoError(t, metric.Write(&d))
		out = append(out, &d)
	}
	return out
}

func TestMetricsCollectReportsCountersAndGauges(t *testing.T) {
	m := NewMetrics("test-mac")
	m.delivered.Inc()
	m.failed.Inc()
	m.retries.Inc()
	m.duplicate.Inc()
	m.dropped.Inc()
	m.gaps.Inc()
	m.SetCW(31)

	values := collectMetrics(t, m)
	require.Len(t, values, 7)
	for i, want := range []float64{1, 1, 1, 1, 1, 1} {
		assert.Equal(t, want, values[i].GetCounter().GetValue())
	}
	assert.Equal(t, 31.0, values[6].GetGauge().GetValue())
}

func TestMetricsClockOffsetReportedOnlyOnceBound(t *testing.T) {
	m := NewMetrics("test-mac")
	assert.Len(t, collectMetrics(t, m), 7, "offset gauge absent until BindClockOffset is called")

	clock := NewSyncClock(1, -1, 0, 0)
	m.BindClockOffset(clock)
	values := collectMetrics(t, m)
	require.Len(t, values, 8)
	assert.Equal(t, 0.0, values[7].GetGauge().GetValue())
}
