/*
Copyright 2025.

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

package server

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Status label constants for metrics.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Metrics holds the Prometheus metrics for the operations endpoint.
type Metrics struct {
	// CallsTotal counts operation calls by operation and status.
	CallsTotal *prometheus.CounterVec

	// CallDuration is the histogram of operation call durations.
	CallDuration *prometheus.HistogramVec

	// RequestsTotal counts decoded protocol requests by method.
	RequestsTotal *prometheus.CounterVec
}

// DefaultCallDurationBuckets are the histogram buckets for operation call
// durations. Cluster queries are normally sub-second but log retrieval can
// run long.
var DefaultCallDurationBuckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30}

// NewMetrics creates and registers the endpoint metrics on a registerer.
// Passing nil registers on the default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		CallsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "virtualsre_operation_calls_total",
			Help: "Total number of operation calls",
		}, []string{"operation", "status"}),

		CallDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "virtualsre_operation_call_duration_seconds",
			Help:    "Duration of operation calls in seconds",
			Buckets: DefaultCallDurationBuckets,
		}, []string{"operation"}),

		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "virtualsre_protocol_requests_total",
			Help: "Total number of protocol requests by method",
		}, []string{"method"}),
	}
}

// ObserveCall records one operation call.
func (m *Metrics) ObserveCall(operation string, start time.Time, err error) {
	status := StatusSuccess
	if err != nil {
		status = StatusError
	}
	m.CallsTotal.WithLabelValues(operation, status).Inc()
	m.CallDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
