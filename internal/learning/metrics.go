package learning

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	extractionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "loadpilot_learning_extractions_total",
		Help: "Extractions produced from conversation turns, per extraction type.",
	}, []string{"type"})

	persistFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "loadpilot_learning_persist_failures_total",
		Help: "Extractions that failed to persist, per extraction type. Failures are tolerated, not retried.",
	}, []string{"type"})
)
