// Copyright 2024 The entigraph Authors.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package xmetrics declares the engine's Prometheus collectors,
// grounded on the teacher's storage/disk/metrics.go: a small set of
// collectors, built per Metrics value by New and registered against a
// caller-supplied
// Registerer, rather than the global default registry, so a process
// embedding more than one System doesn't double-register.
package xmetrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles the collectors one System's dispatcher reports
// through. The dispatcher updates QueueDepth, OperationLatency and
// WriteErrors. EntityCount and StubCount are registered with the rest,
// but nothing in this module sets them, so they always report 0.
type Metrics struct {
	QueueDepth       prometheus.Gauge
	OperationLatency *prometheus.HistogramVec
	EntityCount      prometheus.Gauge
	StubCount        prometheus.Gauge
	WriteErrors      prometheus.Counter
}

// New constructs a Metrics set. Call Register to attach it to a
// registry before use.
func New() *Metrics {
	return &Metrics{
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "entigraph_dispatch_queue_depth",
			Help: "Approximate number of operations waiting in the dispatcher ring.",
		}),
		OperationLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "entigraph_operation_latency_seconds",
			Help:    "Time from operation submission to result, by operation kind.",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind"}),
		EntityCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "entigraph_entity_count",
			Help: "Number of entity nodes currently tracked by the store, live or stub.",
		}),
		StubCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "entigraph_stub_count",
			Help: "Number of stub nodes (forward references to not-yet-written entities).",
		}),
		WriteErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "entigraph_write_errors_total",
			Help: "Number of write operations that returned an error.",
		}),
	}
}

// Register attaches every collector in m to reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		m.QueueDepth,
		m.OperationLatency,
		m.EntityCount,
		m.StubCount,
		m.WriteErrors,
	} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// ObserveLatency records how long an operation of the given kind took.
func (m *Metrics) ObserveLatency(kind string, seconds float64) {
	m.OperationLatency.WithLabelValues(kind).Observe(seconds)
}
