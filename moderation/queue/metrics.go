package queue

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var queueEscalatedCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "guardian_queue_escalated",
	Help: "Number of violations escalated to the review queue",
})

var queueResolvedCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "guardian_queue_resolved",
	Help: "Number of review items resolved, by outcome",
}, []string{"outcome"})
