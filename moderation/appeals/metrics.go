package appeals

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var appealSubmittedCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "guardian_appeals_submitted_total",
	Help: "Number of appeals accepted for review.",
})

var appealResolvedCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "guardian_appeals_resolved_total",
	Help: "Number of appeals resolved, by outcome.",
}, []string{"outcome"})
