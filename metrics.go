// SPDX-License-Identifier: GPL-3.0
// Copyright 2024 Pete Heist

package dot11dcf

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the counters SendTask and RecvTask update directly, and
// exposes them to Prometheus through a Collector. Grounded on
// runZeroInc-sockstats' exporter, which wraps a handful of raw counters
// behind a single Collector rather than using prometheus' CounterVec
// helpers, so scraping never takes a lock the hot path also needs.
type Metrics struct {
	delivered counter
	failed    counter
	retries   counter
	duplicate counter
	dropped   counter
	gaps      counter

	cw         atomic.Int64 // current contention window, set on every draw/retry
	offsetFunc func() int64 // clock offset in nanoseconds, nil until bound

	macID string
}

type counter struct{ v atomic.Int64 }

func (c *counter) Inc()         { c.v.Add(1) }
func (c *counter) Value() int64 { return c.v.Load() }

// SetCW records the contention window SendTask just drew a backoff from.
func (m *Metrics) SetCW(cw int) {
	m.cw.Store(int64(cw))
}

// BindClockOffset wires the gauge reported for dot11dcf_clock_offset_ns to
// clock's accumulated offset.
func (m *Metrics) BindClockOffset(clock *SyncClock) {
	m.offsetFunc = clock.Offset
}

// NewMetrics returns a Metrics instance labeled with the owning Mac's
// instance ID.
func NewMetrics(macID string) *Metrics {
	return &Metrics{macID: macID}
}

var (
	deliveredDesc = prometheus.NewDesc("dot11dcf_tx_delivered_total",
		"Data frames successfully delivered and acknowledged.", []string{"mac"}, nil)
	failedDesc = prometheus.NewDesc("dot11dcf_tx_failed_total",
		"Data frames abandoned after exhausting the retry limit.", []string{"mac"}, nil)
	retriesDesc = prometheus.NewDesc("dot11dcf_retries_total",
		"Transmission attempts that were retried after collision or ACK timeout.", []string{"mac"}, nil)
	duplicateDesc = prometheus.NewDesc("dot11dcf_rx_duplicate_total",
		"Inbound data frames discarded as duplicates of an already-delivered sequence.", []string{"mac"}, nil)
	droppedDesc = prometheus.NewDesc("dot11dcf_rx_dropped_total",
		"Inbound frames dropped as too short to parse or failing CRC validation.", []string{"mac"}, nil)
	gapsDesc = prometheus.NewDesc("dot11dcf_rx_sequence_gap_total",
		"Inbound sequence gaps observed per peer.", []string{"mac"}, nil)
	cwDesc = prometheus.NewDesc("dot11dcf_backoff_cw",
		"Current contention window used for backoff draws.", []string{"mac"}, nil)
	clockOffsetDesc = prometheus.NewDesc("dot11dcf_clock_offset_ns",
		"Accumulated forward offset applied to this Mac's logical clock.", []string{"mac"}, nil)
)

// Describe implements prometheus.Collector.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	ch <- deliveredDesc
	ch <- failedDesc
	ch <- retriesDesc
	ch <- duplicateDesc
	ch <- droppedDesc
	ch <- gapsDesc
	ch <- cwDesc
	ch <- clockOffsetDesc
}

// Collect implements prometheus.Collector.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(deliveredDesc, prometheus.CounterValue, float64(m.delivered.Value()), m.macID)
	ch <- prometheus.MustNewConstMetric(failedDesc, prometheus.CounterValue, float64(m.failed.Value()), m.macID)
	ch <- prometheus.MustNewConstMetric(retriesDesc, prometheus.CounterValue, float64(m.retries.Value()), m.macID)
	ch <- prometheus.MustNewConstMetric(duplicateDesc, prometheus.CounterValue, float64(m.duplicate.Value()), m.macID)
	ch <- prometheus.MustNewConstMetric(droppedDesc, prometheus.CounterValue, float64(m.dropped.Value()), m.macID)
	ch <- prometheus.MustNewConstMetric(gapsDesc, prometheus.CounterValue, float64(m.gaps.Value()), m.macID)
	ch <- prometheus.MustNewConstMetric(cwDesc, prometheus.GaugeValue, float64(m.cw.Load()), m.macID)
	if m.offsetFunc != nil {
		ch <- prometheus.MustNewConstMetric(clockOffsetDesc, prometheus.GaugeValue, float64(m.offsetFunc()), m.macID)
	}
}
