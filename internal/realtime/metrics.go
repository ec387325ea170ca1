package realtime

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Realtime delivery is best-effort, so drops are normal operation; the
// counters make the realtime-vs-poller split observable in production.
var (
	hubConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "lms",
		Subsystem: "realtime",
		Name:      "hub_connections",
		Help:      "Currently registered websocket channels.",
	})

	hubDelivered = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lms",
		Subsystem: "realtime",
		Name:      "hub_events_delivered_total",
		Help:      "Events enqueued to a live channel, by event type.",
	}, []string{"type"})

	hubDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lms",
		Subsystem: "realtime",
		Name:      "hub_events_dropped_total",
		Help:      "Events dropped instead of delivered, by event type and reason.",
	}, []string{"type", "reason"})
)
