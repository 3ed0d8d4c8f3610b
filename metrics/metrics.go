// Package metrics holds the prometheus collectors for progression activity.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	Registry *prometheus.Registry

	XPGranted      *prometheus.CounterVec
	BadgesAwarded  *prometheus.CounterVec
	LevelUps       prometheus.Counter
	ReconcileRuns  *prometheus.CounterVec
	ActionFailures *prometheus.CounterVec
}

// New builds a private registry so tests can create as many as they like.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		XPGranted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "campus",
			Name:      "xp_granted_total",
			Help:      "XP granted, by triggering action.",
		}, []string{"action"}),
		BadgesAwarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "campus",
			Name:      "badges_awarded_total",
			Help:      "Badges awarded, by badge name.",
		}, []string{"badge"}),
		LevelUps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "campus",
			Name:      "level_ups_total",
			Help:      "Actions that moved a user to a higher level.",
		}),
		ReconcileRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "campus",
			Name:      "badge_reconcile_runs_total",
			Help:      "Badge reconciliation runs, by trigger.",
		}, []string{"trigger"}),
		ActionFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "campus",
			Name:      "action_failures_total",
			Help:      "Activity calls that rolled back, by action.",
		}, []string{"action"}),
	}
	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.XPGranted,
		m.BadgesAwarded,
		m.LevelUps,
		m.ReconcileRuns,
		m.ActionFailures,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
