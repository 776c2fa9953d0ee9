package prom

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ActionCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "idlefleet_switcher_action_counter",
			Help: "Counter for handled actions",
		},
		[]string{"action", "status", "error"},
	)

	ActionHistogram = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "idlefleet_switcher_action_duration",
			Help:    "Histogram of the time (seconds) taken to apply an action",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"action", "error"},
	)

	StageFailureCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "idlefleet_switcher_stage_failure_counter",
			Help: "Counter for failed resource updates, by stage",
		},
		[]string{"stage", "partial"},
	)
)
