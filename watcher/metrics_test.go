// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package watcher_test

import (
	"context"

	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	gc "gopkg.in/check.v1"

	"github.com/juju/casbinwatcher/core/changestream"
	"github.com/juju/casbinwatcher/watcher"
)

type metricsSuite struct {
	testing.IsolationSuite
}

var _ = gc.Suite(&metricsSuite{})

func (s *metricsSuite) TestCollector(c *gc.C) {
	store := newFakeStore()
	collector := watcher.NewMetricsCollector()
	registry := prometheus.NewPedanticRegistry()
	c.Assert(registry.Register(collector), jc.ErrorIsNil)

	w, err := watcher.NewWatcher(context.Background(), testURL, watcher.Config{
		Driver:  store,
		Metrics: collector,
	})
	c.Assert(err, jc.ErrorIsNil)
	rec := newRecorder()
	w.SetUpdateCallback(rec.callback)

	store.emit(changestream.Event{Operation: changestream.Insert, ID: "01"})
	store.emit(changestream.Event{Operation: changestream.Insert, ID: "02"})
	store.emit(changestream.Event{Operation: changestream.Delete, ID: "03"})
	for i := 0; i < 3; i++ {
		rec.next(c)
	}
	c.Assert(w.Close(context.Background()), jc.ErrorIsNil)

	families, err := registry.Gather()
	c.Assert(err, jc.ErrorIsNil)
	byName := make(map[string]*dto.MetricFamily)
	for _, f := range families {
		byName[f.GetName()] = f
	}

	changes := byName["casbinwatcher_changes_total"]
	c.Assert(changes, gc.NotNil)
	counts := make(map[string]float64)
	for _, m := range changes.GetMetric() {
		counts[m.GetLabel()[0].GetValue()] = m.GetCounter().GetValue()
	}
	c.Check(counts, jc.DeepEquals, map[string]float64{"insert": 2, "delete": 1})

	closes := byName["casbinwatcher_stream_closes_total"]
	c.Assert(closes, gc.NotNil)
	c.Check(closes.GetMetric()[0].GetCounter().GetValue(), gc.Equals, float64(1))

	ready := byName["casbinwatcher_ready_wait_seconds"]
	c.Assert(ready, gc.NotNil)
	c.Check(ready.GetMetric()[0].GetHistogram().GetSampleCount(), gc.Equals, uint64(1))
}
