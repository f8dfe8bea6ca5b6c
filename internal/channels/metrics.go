package channels

import "github.com/prometheus/client_golang/prometheus"

var (
	groupMembers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "storefront_channel_group_members",
			Help: "Current number of group memberships held by this process.",
		},
	)
	messagesDelivered = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "storefront_channel_messages_delivered_total",
			Help: "Group messages accepted by members.",
		},
	)
	messagesDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "storefront_channel_messages_dropped_total",
			Help: "Group messages dropped because a member could not accept them.",
		},
	)
	subscribeFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "storefront_channel_subscribe_failures_total",
			Help: "Redis channel layer subscriptions that failed or dropped.",
		},
	)
)

func init() {
	prometheus.MustRegister(groupMembers, messagesDelivered, messagesDropped, subscribeFailures)
}
