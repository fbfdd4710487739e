package massreport

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var reportRecordedCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "guardian_massreport_reports_total",
	Help: "Number of stream reports recorded.",
})

var lockdownTriggeredCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "guardian_massreport_lockdowns_total",
	Help: "Number of mass-report lockdowns triggered.",
})

var lockdownResolvedCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "guardian_massreport_lockdowns_resolved_total",
	Help: "Number of lockdowns acknowledged by creators.",
})
