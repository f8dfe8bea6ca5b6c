package events

import "github.com/prometheus/client_golang/prometheus"

var (
	eventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_events_published_total",
			Help: "Domain events accepted by the event bus.",
		},
		[]string{"type"},
	)
	eventsDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_events_dropped_total",
			Help: "Domain events dropped because the bus queue was full or closed.",
		},
		[]string{"type"},
	)
	handlerErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_event_handler_errors_total",
			Help: "Event handler invocations that returned an error or panicked.",
		},
		[]string{"type"},
	)
)

func init() {
	prometheus.MustRegister(eventsPublished, eventsDropped, handlerErrors)
}
