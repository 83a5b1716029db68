/*
Copyright 2026 The mintward Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package metrics contains the prometheus collectors exposed by this
// library:
// acme_client_request_count{scheme, host, path, method, status}
// acme_client_request_duration_seconds{scheme, host, path, method, status}
// issuance_call_count{operation, outcome}
//
// The hosting application owns the metrics endpoint; Handler is provided
// for embedding.
package metrics

import (
	"net/http"
	"time"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	// namespace is the namespace for mintward metric names
	namespace = "mintward"
)

type Metrics struct {
	log      logr.Logger
	registry *prometheus.Registry

	acmeClientRequestDurationSeconds *prometheus.SummaryVec
	acmeClientRequestCount           *prometheus.CounterVec
	issuanceCallCount                *prometheus.CounterVec
}

// New creates a Metrics struct and populates it with prometheus metric types.
func New(log logr.Logger) *Metrics {
	var (
		acmeClientRequestCount = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "acme_client_request_count",
				Help:      "The number of requests made by the ACME client.",
				Subsystem: "http",
			},
			[]string{"scheme", "host", "path", "method", "status"},
		)

		acmeClientRequestDurationSeconds = prometheus.NewSummaryVec(
			prometheus.SummaryOpts{
				Namespace:  namespace,
				Name:       "acme_client_request_duration_seconds",
				Help:       "The HTTP request latencies in seconds for the ACME client.",
				Subsystem:  "http",
				Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
			},
			[]string{"scheme", "host", "path", "method", "status"},
		)

		issuanceCallCount = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "issuance_call_count",
				Help:      "The number of issuance operations, by operation and outcome.",
			},
			[]string{"operation", "outcome"},
		)
	)

	m := &Metrics{
		log:      log.WithName("metrics"),
		registry: prometheus.NewRegistry(),

		acmeClientRequestCount:           acmeClientRequestCount,
		acmeClientRequestDurationSeconds: acmeClientRequestDurationSeconds,
		issuanceCallCount:                issuanceCallCount,
	}

	m.registry.MustRegister(
		m.acmeClientRequestCount,
		m.acmeClientRequestDurationSeconds,
		m.issuanceCallCount,
	)

	return m
}

// Handler returns an http.Handler serving the collectors owned by this
// Metrics instance.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ACMERequestCounter exposes the ACME client request counter, for tests and
// for registration on an application-owned registry.
func (m *Metrics) ACMERequestCounter() prometheus.Collector {
	return m.acmeClientRequestCount
}

// ObserveACMERequestDuration increases bucket counters for that ACME client duration.
func (m *Metrics) ObserveACMERequestDuration(duration time.Duration, labels ...string) {
	m.acmeClientRequestDurationSeconds.WithLabelValues(labels...).Observe(duration.Seconds())
}

// IncrementACMERequestCount increases the acme client request counter.
func (m *Metrics) IncrementACMERequestCount(labels ...string) {
	m.acmeClientRequestCount.WithLabelValues(labels...).Inc()
}

// IncrementIssuanceCallCount increases the issuance operation counter.
func (m *Metrics) IncrementIssuanceCallCount(operation, outcome string) {
	m.issuanceCallCount.WithLabelValues(operation, outcome).Inc()
}
