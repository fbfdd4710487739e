package notify

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var notifySentCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "guardian_notify_sent",
	Help: "Number of push notifications sent",
}, []string{"type"})

var notifySuppressedCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "guardian_notify_suppressed",
	Help: "Number of push notifications suppressed",
}, []string{"reason"})

var notifyErrorCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "guardian_notify_errors",
	Help: "Number of failed notification deliveries",
}, []string{"channel"})
