package consumer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var eventReceivedCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "guardian_consumer_events_total",
	Help: "Number of events received from the chat event stream, by kind.",
}, []string{"kind"})

var eventErrorCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "guardian_consumer_event_errors_total",
	Help: "Number of events that failed to decode or process.",
})

var reconnectCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "guardian_consumer_reconnects_total",
	Help: "Number of event stream reconnects.",
})
