// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package watcher

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/juju/casbinwatcher/core/changestream"
)

const metricsNamespace = "casbinwatcher"

// Collector is a prometheus.Collector that collects metrics about
// watchers. One Collector may be shared by several watchers.
type Collector struct {
	changes      *prometheus.CounterVec
	streamCloses prometheus.Counter
	readyWait    prometheus.Histogram
}

// NewMetricsCollector returns a new Collector.
func NewMetricsCollector() *Collector {
	return &Collector{
		changes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "changes_total",
				Help:      "The number of changes received from change streams.",
			}, []string{"operation"},
		),
		streamCloses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "stream_closes_total",
				Help:      "The number of change streams that have ended.",
			},
		),
		readyWait: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "ready_wait_seconds",
				Help:      "The time taken for a change stream to attach to the operation log.",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
		),
	}
}

// Describe is part of the prometheus.Collector interface.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.changes.Describe(ch)
	c.streamCloses.Describe(ch)
	c.readyWait.Describe(ch)
}

// Collect is part of the prometheus.Collector interface.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.changes.Collect(ch)
	c.streamCloses.Collect(ch)
	c.readyWait.Collect(ch)
}

func (c *Collector) changeReceived(op changestream.OperationType) {
	if c == nil {
		return
	}
	c.changes.WithLabelValues(string(op)).Inc()
}

func (c *Collector) streamClosed() {
	if c == nil {
		return
	}
	c.streamCloses.Inc()
}

func (c *Collector) observeReady(d time.Duration) {
	if c == nil {
		return
	}
	c.readyWait.Observe(d.Seconds())
}
