// SPDX-License-Identifier: MPL-2.0

package loader

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Resolution outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Metrics counts what a Manager does.
type Metrics struct {
	Resolutions   *prometheus.CounterVec
	Injected      *prometheus.CounterVec
	FetchDuration prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg when reg is
// non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Resolutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "depload_resolutions_total",
				Help: "Root coordinates resolved, by outcome",
			},
			[]string{"outcome"},
		),
		Injected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "depload_artifacts_injected_total",
				Help: "Artifacts made visible to the host, by injection strategy",
			},
			[]string{"strategy"},
		),
		FetchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "depload_fetch_duration_seconds",
				Help:    "Time spent fetching one artifact, cache hits included",
				Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
			},
		),
	}
	if reg != nil {
		reg.MustRegister(m.Resolutions, m.Injected, m.FetchDuration)
	}
	return m
}
