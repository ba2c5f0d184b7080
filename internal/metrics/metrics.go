package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Gateway metrics
	ActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "smobile_chat_active_connections",
			Help: "Currently registered gateway connections",
		},
	)

	MessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smobile_chat_messages_sent_total",
			Help: "Total messages persisted",
		},
		[]string{"room_type"}, // "direct" or "support"
	)

	BroadcastDeliveries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "smobile_chat_broadcast_deliveries_total",
			Help: "Messages delivered to online recipients",
		},
	)

	BroadcastDrops = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "smobile_chat_broadcast_drops_total",
			Help: "Broadcast sends dropped because the recipient transport failed",
		},
	)

	// Provisioning metrics
	RoomsProvisioned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "smobile_chat_rooms_provisioned_total",
			Help: "Support rooms created by order provisioning",
		},
	)

	// Rate limit metrics
	RateLimitHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "smobile_chat_rate_limit_hits_total",
			Help: "Requests rejected by the rate limiter",
		},
	)
)
