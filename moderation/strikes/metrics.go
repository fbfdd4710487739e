package strikes

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var strikeAppliedCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "guardian_strikes_applied",
	Help: "Number of strikes applied, by level",
}, []string{"level"})
