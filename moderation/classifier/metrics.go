package classifier

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var classifierFailOpenCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "guardian_classifier_fail_open",
	Help: "Number of classification calls which failed and were allowed through",
})

var remoteClassifyDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name: "guardian_classifier_remote_duration_sec",
	Help: "Duration of remote classifier API calls",
})

var remoteClassifyErrorCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "guardian_classifier_remote_errors",
	Help: "Number of failed remote classifier API calls",
})
