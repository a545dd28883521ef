package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	renewalAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "renewd",
			Subsystem: "renewal",
			Name:      "attempts_total",
			Help:      "Number of renewal attempts by outcome.",
		}, []string{"outcome"},
	)
	attemptDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "renewd",
			Subsystem: "renewal",
			Name:      "attempt_duration_seconds",
			Help:      "Duration of renewal attempts.",
			Buckets:   prometheus.DefBuckets,
		},
	)
	lastSuccess = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "renewd",
			Subsystem: "renewal",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful renewal.",
		},
	)
	ticketRemaining = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "renewd",
			Subsystem: "ticket",
			Name:      "remaining_seconds",
			Help:      "Remaining lifetime of the primary ticket at the last check.",
		},
	)
	childExits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "renewd",
			Subsystem: "child",
			Name:      "exits_total",
			Help:      "Number of supervised command exits by status class.",
		}, []string{"clean"},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{renewalAttempts, attemptDuration, lastSuccess, ticketRemaining, childExits}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			// If already registered, ignore (allows double Register with default registry)
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler returns an http.Handler serving Prometheus metrics for the
// DefaultGatherer. The caller wires it into a route.
func Handler() http.Handler { return promhttp.Handler() }

// Below are lightweight helpers used by the scheduler to record metrics.
// They no-op if Register hasn't been called.

func IncAttempt(outcome string) {
	if regOK.Load() {
		renewalAttempts.WithLabelValues(outcome).Inc()
	}
}

func ObserveAttemptDuration(seconds float64) {
	if regOK.Load() {
		attemptDuration.Observe(seconds)
	}
}

func SetLastSuccess(unixSeconds float64) {
	if regOK.Load() {
		lastSuccess.Set(unixSeconds)
	}
}

func SetTicketRemaining(seconds float64) {
	if regOK.Load() {
		ticketRemaining.Set(seconds)
	}
}

func IncChildExit(clean bool) {
	if regOK.Load() {
		v := "false"
		if clean {
			v = "true"
		}
		childExits.WithLabelValues(v).Inc()
	}
}
