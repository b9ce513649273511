// Package metrics exposes Prometheus counters for checkout and engagement.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "racer_platform"

// Recorder groups the service counters. A nil *Recorder is valid and records nothing.
type Recorder struct {
	registry *prometheus.Registry

	chargesInitiated *prometheus.CounterVec
	chargesFailed    *prometheus.CounterVec
	chargesFinalized *prometheus.CounterVec
	grossCents       *prometheus.CounterVec
	views            *prometheus.CounterVec
	follows          *prometheus.CounterVec
}

// New registers all counters on a fresh registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	r := &Recorder{
		registry: reg,
		chargesInitiated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "checkout", Name: "initiated_total",
			Help: "Checkout sessions created, by charge kind.",
		}, []string{"kind"}),
		chargesFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "checkout", Name: "initiation_failures_total",
			Help: "Checkout initiations that failed, by reason.",
		}, []string{"reason"}),
		chargesFinalized: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "checkout", Name: "finalized_total",
			Help: "Finalize calls, by resulting status and whether side effects were applied.",
		}, []string{"status", "applied"}),
		grossCents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "checkout", Name: "gross_cents_total",
			Help: "Gross cents of succeeded charges, by kind.",
		}, []string{"kind"}),
		views: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "engagement", Name: "profile_views_total",
			Help: "Profile view recording attempts, by outcome.",
		}, []string{"outcome"}),
		follows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "engagement", Name: "follow_changes_total",
			Help: "Follow state changes, by action.",
		}, []string{"action"}),
	}
	reg.MustRegister(
		r.chargesInitiated, r.chargesFailed, r.chargesFinalized, r.grossCents, r.views, r.follows,
		collectors.NewGoCollector(),
	)
	return r
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func (r *Recorder) ChargeInitiated(kind string) {
	if r != nil {
		r.chargesInitiated.WithLabelValues(kind).Inc()
	}
}

func (r *Recorder) ChargeInitiationFailed(reason string) {
	if r != nil {
		r.chargesFailed.WithLabelValues(reason).Inc()
	}
}

func (r *Recorder) ChargeFinalized(status string, applied bool) {
	if r == nil {
		return
	}
	a := "false"
	if applied {
		a = "true"
	}
	r.chargesFinalized.WithLabelValues(status, a).Inc()
}

func (r *Recorder) ChargeSettled(kind string, grossCents int64) {
	if r != nil {
		r.grossCents.WithLabelValues(kind).Add(float64(grossCents))
	}
}

func (r *Recorder) ViewRecorded(outcome string) {
	if r != nil {
		r.views.WithLabelValues(outcome).Inc()
	}
}

func (r *Recorder) FollowChanged(action string) {
	if r != nil {
		r.follows.WithLabelValues(action).Inc()
	}
}
