// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package metrics instruments the fsops filesystem operation surface with
// Prometheus counters and a latency histogram, in place of the teacher's
// OpenCensus/OpenTelemetry exporter pair (see DESIGN.md).
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// opLabel/errorCategoryLabel name the label dimensions, grounded on the
// teacher's common/otel_metrics.go (FSOpKey, FSErrCategoryKey).
const (
	opLabel            = "fs_op"
	errorCategoryLabel = "fs_error_category"
)

var defaultLatencyBucketsUS = []float64{
	1, 2, 3, 4, 5, 6, 8, 10, 13, 16, 20, 25, 30, 40, 50, 65, 80, 100, 130, 160,
	200, 250, 300, 400, 500, 650, 800, 1000, 2000, 5000, 10000, 20000, 50000, 100000,
}

// Handle is the interface internal/fsops depends on. cmd/ffs passes a
// *Metrics when --metrics-addr is set; otherwise fsops falls back to Noop,
// which also keeps tests that don't care about metrics free of a
// prometheus.Registerer.
type Handle interface {
	OpsCount(op string)
	OpsErrorCount(op, errorCategory string)
	OpsLatency(op string, d time.Duration)
}

// Metrics is the Prometheus-backed Handle used by every ffs binary.
type Metrics struct {
	opsCount      *prometheus.CounterVec
	opsErrorCount *prometheus.CounterVec
	opsLatency    *prometheus.HistogramVec
}

// New registers ffs's metrics on reg and returns a handle to them. Callers
// typically pass prometheus.NewRegistry() so tests don't collide with the
// global DefaultRegisterer.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		opsCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ffs",
			Subsystem: "fs",
			Name:      "ops_count",
			Help:      "Cumulative number of filesystem operations processed.",
		}, []string{opLabel}),
		opsErrorCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ffs",
			Subsystem: "fs",
			Name:      "ops_error_count",
			Help:      "Cumulative number of filesystem operations that returned an error.",
		}, []string{opLabel, errorCategoryLabel}),
		opsLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ffs",
			Subsystem: "fs",
			Name:      "ops_latency_microseconds",
			Help:      "Distribution of filesystem operation latencies.",
			Buckets:   defaultLatencyBucketsUS,
		}, []string{opLabel}),
	}

	reg.MustRegister(m.opsCount, m.opsErrorCount, m.opsLatency)
	return m
}

func (m *Metrics) OpsCount(op string) {
	m.opsCount.WithLabelValues(op).Inc()
}

func (m *Metrics) OpsErrorCount(op, errorCategory string) {
	m.opsErrorCount.WithLabelValues(op, errorCategory).Inc()
}

func (m *Metrics) OpsLatency(op string, d time.Duration) {
	m.opsLatency.WithLabelValues(op).Observe(float64(d.Microseconds()))
}

// Handler exposes the registry in the text exposition format, suitable for
// mounting under --metrics-addr.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// noop discards every measurement; used where no --metrics-addr was given.
type noop struct{}

func (noop) OpsCount(string)                  {}
func (noop) OpsErrorCount(string, string)      {}
func (noop) OpsLatency(string, time.Duration) {}

// Noop is the Handle fsops falls back to when metrics are disabled.
var Noop Handle = noop{}
