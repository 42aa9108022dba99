package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ETF Service Metrics Collector
// Provides metrics for the feed decoders, order book, clearing store,
// ETF ledger and the fanout surfaces.

var (
	// Singleton collector
	collector     *Collector
	collectorOnce sync.Once
)

// Collector holds all ETF service metrics
type Collector struct {
	// Feed metrics
	FeedPackets      *prometheus.CounterVec
	FeedBytes        *prometheus.CounterVec
	FeedMessages     *prometheus.CounterVec
	FeedDropped      *prometheus.CounterVec
	FeedSequenceGaps *prometheus.CounterVec

	// Order book metrics
	BookOps    *prometheus.CounterVec
	BookOrders prometheus.Gauge
	BestBid    *prometheus.GaugeVec
	BestAsk    *prometheus.GaugeVec

	// Trade tape metrics (from trade summaries)
	LastTradePrice *prometheus.GaugeVec
	TradeVolume    *prometheus.CounterVec

	// Clearing metrics
	FillsTotal    *prometheus.CounterVec
	FillVolume    *prometheus.CounterVec
	ActiveClients prometheus.Gauge

	// ETF ledger metrics
	ConversionsTotal *prometheus.CounterVec
	HistoryLength    prometheus.Gauge

	// WebSocket metrics
	WSConnectionsActive prometheus.Gauge
	WSFramesTotal       prometheus.Counter
	WSSlowDrops         prometheus.Counter
	FrameBuildLatency   prometheus.Histogram

	// API metrics
	APIRequestsTotal  *prometheus.CounterVec
	APIRequestLatency *prometheus.HistogramVec
	RateLimitHits     *prometheus.CounterVec
}

// GetCollector returns the singleton metrics collector
func GetCollector() *Collector {
	collectorOnce.Do(func() {
		collector = newCollector()
	})
	return collector
}

// newCollector creates a new metrics collector
func newCollector() *Collector {
	c := &Collector{}

	// Feed metrics
	c.FeedPackets = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "etf",
			Subsystem: "feed",
			Name:      "packets_total",
			Help:      "Total datagrams received per feed",
		},
		[]string{"feed"},
	)

	c.FeedBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "etf",
			Subsystem: "feed",
			Name:      "bytes_total",
			Help:      "Total bytes received per feed",
		},
		[]string{"feed"},
	)

	c.FeedMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "etf",
			Subsystem: "feed",
			Name:      "messages_total",
			Help:      "Decoded messages per feed and message type",
		},
		[]string{"feed", "type"},
	)

	c.FeedDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "etf",
			Subsystem: "feed",
			Name:      "dropped_total",
			Help:      "Datagrams dropped per feed and reason",
		},
		[]string{"feed", "reason"},
	)

	c.FeedSequenceGaps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "etf",
			Subsystem: "feed",
			Name:      "sequence_gaps_total",
			Help:      "Observed sequence number gaps per feed",
		},
		[]string{"feed"},
	)

	// Order book metrics
	c.BookOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "etf",
			Subsystem: "book",
			Name:      "ops_total",
			Help:      "Order book operations applied, by kind",
		},
		[]string{"op"},
	)

	c.BookOrders = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "etf",
			Subsystem: "book",
			Name:      "resting_orders",
			Help:      "Number of resting orders across all symbols",
		},
	)

	c.BestBid = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "etf",
			Subsystem: "book",
			Name:      "best_bid",
			Help:      "Best bid price per symbol",
		},
		[]string{"symbol"},
	)

	c.BestAsk = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "etf",
			Subsystem: "book",
			Name:      "best_ask",
			Help:      "Best ask price per symbol",
		},
		[]string{"symbol"},
	)

	// Trade tape metrics
	c.LastTradePrice = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "etf",
			Subsystem: "trades",
			Name:      "last_price",
			Help:      "Last trade price per symbol, from trade summaries",
		},
		[]string{"symbol"},
	)

	c.TradeVolume = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "etf",
			Subsystem: "trades",
			Name:      "volume_total",
			Help:      "Total traded quantity per symbol, from trade summaries",
		},
		[]string{"symbol"},
	)

	// Clearing metrics
	c.FillsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "etf",
			Subsystem: "clearing",
			Name:      "fills_total",
			Help:      "Fills applied to the position store, by side",
		},
		[]string{"side"},
	)

	c.FillVolume = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "etf",
			Subsystem: "clearing",
			Name:      "fill_volume_total",
			Help:      "Total filled quantity per symbol",
		},
		[]string{"symbol"},
	)

	c.ActiveClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "etf",
			Subsystem: "clearing",
			Name:      "active_clients",
			Help:      "Number of clients with any cleared activity",
		},
	)

	// ETF ledger metrics
	c.ConversionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "etf",
			Subsystem: "ledger",
			Name:      "conversions_total",
			Help:      "Create/redeem attempts by kind and result",
		},
		[]string{"kind", "result"},
	)

	c.HistoryLength = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "etf",
			Subsystem: "ledger",
			Name:      "history_length",
			Help:      "Number of committed create/redeem records",
		},
	)

	// WebSocket metrics
	c.WSConnectionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "etf",
			Subsystem: "websocket",
			Name:      "connections_active",
			Help:      "Number of connected snapshot subscribers",
		},
	)

	c.WSFramesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "etf",
			Subsystem: "websocket",
			Name:      "frames_total",
			Help:      "Total snapshot frames broadcast",
		},
	)

	c.WSSlowDrops = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "etf",
			Subsystem: "websocket",
			Name:      "slow_drops_total",
			Help:      "Subscribers disconnected for not keeping up",
		},
	)

	c.FrameBuildLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "etf",
			Subsystem: "websocket",
			Name:      "frame_build_ms",
			Help:      "Snapshot frame composition latency in milliseconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 25},
		},
	)

	// API metrics
	c.APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "etf",
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Total API requests",
		},
		[]string{"method", "path", "status"},
	)

	c.APIRequestLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "etf",
			Subsystem: "api",
			Name:      "request_latency_ms",
			Help:      "API request latency in milliseconds",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"method", "path"},
	)

	c.RateLimitHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "etf",
			Subsystem: "api",
			Name:      "rate_limit_hits",
			Help:      "Total rate limit hits",
		},
		[]string{"limit_type"},
	)

	// Register all metrics
	c.registerAll()

	return c
}

// registerAll registers all metrics with Prometheus
func (c *Collector) registerAll() {
	// Feed metrics
	prometheus.MustRegister(c.FeedPackets)
	prometheus.MustRegister(c.FeedBytes)
	prometheus.MustRegister(c.FeedMessages)
	prometheus.MustRegister(c.FeedDropped)
	prometheus.MustRegister(c.FeedSequenceGaps)

	// Order book metrics
	prometheus.MustRegister(c.BookOps)
	prometheus.MustRegister(c.BookOrders)
	prometheus.MustRegister(c.BestBid)
	prometheus.MustRegister(c.BestAsk)

	// Trade tape metrics
	prometheus.MustRegister(c.LastTradePrice)
	prometheus.MustRegister(c.TradeVolume)

	// Clearing metrics
	prometheus.MustRegister(c.FillsTotal)
	prometheus.MustRegister(c.FillVolume)
	prometheus.MustRegister(c.ActiveClients)

	// ETF ledger metrics
	prometheus.MustRegister(c.ConversionsTotal)
	prometheus.MustRegister(c.HistoryLength)

	// WebSocket metrics
	prometheus.MustRegister(c.WSConnectionsActive)
	prometheus.MustRegister(c.WSFramesTotal)
	prometheus.MustRegister(c.WSSlowDrops)
	prometheus.MustRegister(c.FrameBuildLatency)

	// API metrics
	prometheus.MustRegister(c.APIRequestsTotal)
	prometheus.MustRegister(c.APIRequestLatency)
	prometheus.MustRegister(c.RateLimitHits)
}

// ============ Recording Helpers ============

// RecordPacket records one accepted datagram for a feed
func (c *Collector) RecordPacket(feed string, size int) {
	c.FeedPackets.WithLabelValues(feed).Inc()
	c.FeedBytes.WithLabelValues(feed).Add(float64(size))
}

// RecordMessage records one decoded message by type
func (c *Collector) RecordMessage(feed, msgType string) {
	c.FeedMessages.WithLabelValues(feed, msgType).Inc()
}

// RecordDrop records a dropped datagram with its reason
func (c *Collector) RecordDrop(feed, reason string) {
	c.FeedDropped.WithLabelValues(feed, reason).Inc()
}

// RecordSequenceGap records an observed sequence gap
func (c *Collector) RecordSequenceGap(feed string) {
	c.FeedSequenceGaps.WithLabelValues(feed).Inc()
}

// RecordBookOp records an order book operation
func (c *Collector) RecordBookOp(op string) {
	c.BookOps.WithLabelValues(op).Inc()
}

// RecordFill records a fill applied to the clearing store
func (c *Collector) RecordFill(side, symbol string, quantity uint32) {
	c.FillsTotal.WithLabelValues(side).Inc()
	c.FillVolume.WithLabelValues(symbol).Add(float64(quantity))
}

// RecordTradeSummary records a trade summary message
func (c *Collector) RecordTradeSummary(symbol string, quantity uint32, price int32) {
	c.LastTradePrice.WithLabelValues(symbol).Set(float64(price))
	c.TradeVolume.WithLabelValues(symbol).Add(float64(quantity))
}

// RecordConversion records a create/redeem attempt
func (c *Collector) RecordConversion(kind, result string) {
	c.ConversionsTotal.WithLabelValues(kind, result).Inc()
}

// RecordFrame records one broadcast frame and its composition latency
func (c *Collector) RecordFrame(buildMs float64) {
	c.WSFramesTotal.Inc()
	c.FrameBuildLatency.Observe(buildMs)
}

// RecordWSConnection records subscriber connection changes
func (c *Collector) RecordWSConnection(delta int) {
	c.WSConnectionsActive.Add(float64(delta))
}

// SetBBO records the top of book for a symbol
func (c *Collector) SetBBO(symbol string, bid, ask int32) {
	c.BestBid.WithLabelValues(symbol).Set(float64(bid))
	c.BestAsk.WithLabelValues(symbol).Set(float64(ask))
}

// RecordAPIRequest records an API request
func (c *Collector) RecordAPIRequest(method, path, status string, latencyMs float64) {
	c.APIRequestsTotal.WithLabelValues(method, path, status).Inc()
	c.APIRequestLatency.WithLabelValues(method, path).Observe(latencyMs)
}

// ============ HTTP Handler ============

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for measuring latency
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ElapsedMs returns the elapsed time in milliseconds
func (t *Timer) ElapsedMs() float64 {
	return float64(time.Since(t.start).Microseconds()) / 1000.0
}
