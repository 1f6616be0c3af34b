// Package obsv holds the Prometheus metrics this engine exports: venue
// connection health, tick throughput, and opportunity/batch counters.
package obsv

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ============ Latency ============

// PriceUpdateLatency is the time to process one inbound tick, from
// websocket read to matrix update.
var PriceUpdateLatency = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "arbitrage",
		Subsystem: "detector",
		Name:      "price_update_latency_ms",
		Help:      "Time to process a price tick in milliseconds",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 25},
	},
	[]string{"venue"},
)

// DetectionSweepLatency is the time one full cross-venue detection sweep
// over the price matrix takes.
var DetectionSweepLatency = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: "arbitrage",
		Subsystem: "detector",
		Name:      "sweep_latency_ms",
		Help:      "Time to sweep the price matrix for opportunities in milliseconds",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50},
	},
)

// BatchEncodeLatency is the time to encode one outbound opportunity batch.
var BatchEncodeLatency = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "arbitrage",
		Subsystem: "egress",
		Name:      "batch_encode_latency_ms",
		Help:      "Time to encode an outbound batch in milliseconds",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	},
	[]string{"format"}, // binary, msgpack, json
)

// ============ Counters ============

// TicksProcessed counts inbound price ticks per venue.
var TicksProcessed = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "arbitrage",
		Subsystem: "detector",
		Name:      "ticks_processed_total",
		Help:      "Total number of price ticks processed",
	},
	[]string{"venue"},
)

// OpportunitiesDetected counts opportunities found, split by whether they
// cleared the minimum-premium threshold.
var OpportunitiesDetected = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "arbitrage",
		Subsystem: "detector",
		Name:      "opportunities_detected_total",
		Help:      "Number of arbitrage opportunities detected",
	},
	[]string{"asset", "triggered"}, // triggered: yes, no
)

// WSReconnects counts reconnect attempts per venue, labeled by outcome.
var WSReconnects = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "arbitrage",
		Subsystem: "exchange",
		Name:      "ws_reconnects_total",
		Help:      "Number of websocket reconnect attempts",
	},
	[]string{"venue", "outcome"}, // outcome: success, failed
)

// BufferOverflows counts dropped events from full internal channels.
var BufferOverflows = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "arbitrage",
		Subsystem: "detector",
		Name:      "buffer_overflows_total",
		Help:      "Number of channel buffer overflows (events dropped)",
	},
	[]string{"buffer"},
)

// OrderbookResets counts per-venue order book cache clears, fired on
// connect, reconnect, and disconnect since the old depth is untrustworthy
// until the next snapshot arrives.
var OrderbookResets = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "arbitrage",
		Subsystem: "detector",
		Name:      "orderbook_resets_total",
		Help:      "Number of times a venue's cached order book was cleared",
	},
	[]string{"venue"},
)

// FeeSyncErrors counts failed fee registry sync attempts.
var FeeSyncErrors = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "arbitrage",
		Subsystem: "feeregistry",
		Name:      "sync_errors_total",
		Help:      "Number of failed fee registry sync attempts",
	},
)

// ============ Gauges ============

// ExchangeConnections reports per-venue websocket connection state.
var ExchangeConnections = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "arbitrage",
		Subsystem: "exchange",
		Name:      "connection_status",
		Help:      "Exchange websocket connection status (1=connected, 0=disconnected)",
	},
	[]string{"venue"},
)

// CommonMarkets reports the number of base assets currently tradable on
// at least N venues, the input discovery feeds the detector with.
var CommonMarkets = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "arbitrage",
		Subsystem: "discovery",
		Name:      "common_markets",
		Help:      "Number of base assets tradable on the minimum required venue count",
	},
)

// StreamSubscribers reports the number of clients attached to the
// websocket fan-out.
var StreamSubscribers = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "arbitrage",
		Subsystem: "egress",
		Name:      "stream_subscribers",
		Help:      "Current number of websocket fan-out subscribers",
	},
)

// ============ Helpers ============

// RecordTick records one processed price tick and its latency.
func RecordTick(venue string, latencyMs float64) {
	TicksProcessed.WithLabelValues(venue).Inc()
	PriceUpdateLatency.WithLabelValues(venue).Observe(latencyMs)
}

// RecordOpportunity records a detected opportunity, whether or not it
// cleared the configured minimum premium.
func RecordOpportunity(asset string, triggered bool) {
	label := "no"
	if triggered {
		label = "yes"
	}
	OpportunitiesDetected.WithLabelValues(asset, label).Inc()
}

// RecordReconnect records a websocket reconnect outcome for venue.
func RecordReconnect(venue string, success bool) {
	outcome := "failed"
	if success {
		outcome = "success"
	}
	WSReconnects.WithLabelValues(venue, outcome).Inc()
}

// SetConnectionStatus updates the gauge tracking whether venue's
// websocket is currently connected.
func SetConnectionStatus(venue string, connected bool) {
	if connected {
		ExchangeConnections.WithLabelValues(venue).Set(1)
	} else {
		ExchangeConnections.WithLabelValues(venue).Set(0)
	}
}

// RecordBufferOverflow records a dropped event from a full channel.
func RecordBufferOverflow(buffer string) {
	BufferOverflows.WithLabelValues(buffer).Inc()
}

// RecordOrderbookReset records that venue's cached order book was cleared.
func RecordOrderbookReset(venue string) {
	OrderbookResets.WithLabelValues(venue).Inc()
}
