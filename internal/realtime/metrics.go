package realtime

import "github.com/prometheus/client_golang/prometheus"

var (
	openConnections = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "storefront_ws_connections",
			Help: "Open websocket sessions per consumer.",
		},
		[]string{"consumer"},
	)

	rejectedConnections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_ws_rejected_total",
			Help: "Websocket connections closed during authorization.",
		},
		[]string{"consumer"},
	)

	framesSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_ws_frames_sent_total",
			Help: "Frames written to websocket clients.",
		},
		[]string{"consumer"},
	)

	commandErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_ws_command_errors_total",
			Help: "Inbound commands answered with an error frame.",
		},
		[]string{"consumer", "command"},
	)
)

func init() {
	prometheus.MustRegister(openConnections, rejectedConnections, framesSent, commandErrors)
}
