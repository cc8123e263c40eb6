package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BotEnabled - whether the channel's multichat is enabled.
	BotEnabled = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "multichat_enabled",
			Help: "Whether the channel is enabled (1) or disabled (0)",
		},
		[]string{"channel"},
	)

	// Messages - accepted messages per source.
	Messages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "multichat_messages_total",
			Help: "Total number of chat messages accepted per source",
		},
		[]string{"channel", "source"},
	)

	// StaleMessages - messages dropped for being too old on arrival.
	StaleMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "multichat_stale_messages_total",
			Help: "Total number of inbound messages dropped as stale",
		},
		[]string{"channel", "source"},
	)

	// AdapterConnected - source adapter connection state.
	AdapterConnected = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "multichat_adapter_connected",
			Help: "Whether the source adapter is connected (1) or not (0)",
		},
		[]string{"channel", "source"},
	)

	// ViewerConnections - open viewer sockets.
	ViewerConnections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "multichat_viewer_connections",
			Help: "Current number of connected viewer sockets",
		},
		[]string{"channel"},
	)

	// DroppedDeliveries - envelopes not delivered to a slow viewer.
	DroppedDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "multichat_dropped_deliveries_total",
			Help: "Total number of envelopes dropped because a viewer buffer was full",
		},
		[]string{"channel"},
	)

	// CacheRefresh - emote and pronoun refresh outcomes.
	CacheRefresh = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "multichat_cache_refresh_total",
			Help: "Total number of cache refreshes by cache and result",
		},
		[]string{"channel", "cache", "result"},
	)

	// Commands - recognized chat commands.
	Commands = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "multichat_commands_total",
			Help: "Total number of chat commands handled",
		},
		[]string{"channel", "command"},
	)

	// Greetings - greetings sent per tier.
	Greetings = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "multichat_greetings_total",
			Help: "Total number of greetings sent",
		},
		[]string{"channel", "kind"},
	)

	// MessageProcessingTime - time spent in the message pipeline.
	MessageProcessingTime = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "multichat_message_processing_milliseconds",
			Help:    "Time to process an inbound message",
			Buckets: prometheus.ExponentialBuckets(0.00005, 1.5, 25),
		},
	)
)

func BoolGauge(v bool) float64 {
	return map[bool]float64{true: 1, false: 0}[v]
}
