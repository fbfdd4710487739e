package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var enforceDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "guardian_enforce_duration_seconds",
	Help:    "Time spent in the classify-and-enforce pipeline.",
	Buckets: prometheus.ExponentialBucketsRange(0.0001, 2, 12),
})

var actionDecidedCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "guardian_actions_decided_total",
	Help: "Number of policy decisions, by action.",
}, []string{"action"})

var spamTrippedCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "guardian_spam_trips_total",
	Help: "Number of spam detector trips.",
})

var userReportCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "guardian_user_reports_total",
	Help: "Number of user reports recorded.",
})

var reportTimeoutCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "guardian_report_timeouts_total",
	Help: "Number of report-triggered automatic timeouts.",
})

var enforcePanicCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "guardian_enforce_panics_total",
	Help: "Number of recovered panics in the enforcement pipeline.",
})

var violationWriteFailCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "guardian_violation_write_failures_total",
	Help: "Number of violation writes that failed after retry.",
})

var quotaExceededCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "guardian_quota_exceeded_total",
	Help: "Number of automated actions withheld by a daily quota.",
}, []string{"quota"})

var sweepExpiredCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "guardian_sweep_expired_total",
	Help: "Number of records deactivated by the expiry sweep.",
}, []string{"kind"})
