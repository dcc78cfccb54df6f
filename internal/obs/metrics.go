package obs

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "mm"

// Metrics owns the Prometheus collectors of the quoting loop. A nil *Metrics is
// a valid no-op sink.
type Metrics struct {
	ticks        *prometheus.CounterVec
	orders       *prometheus.CounterVec
	gateBlocks   *prometheus.CounterVec
	overlay      *prometheus.CounterVec
	rejections   *prometheus.CounterVec
	position     prometheus.Gauge
	tickSeconds  prometheus.Histogram
	journalDrops prometheus.Counter
	restarts     prometheus.Counter

	tickLatency   LatencyStats
	submitLatency LatencyStats
}

// NewMetrics registers the collectors on reg. Pass prometheus.NewRegistry() in
// tests to keep them isolated.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ticks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Control loop iterations by outcome.",
		}, []string{"outcome"}),
		orders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_total",
			Help:      "Orders submitted by action and side.",
		}, []string{"action", "side"}),
		gateBlocks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gate_blocks_total",
			Help:      "Ladder suppressions by gate reason.",
		}, []string{"reason"}),
		overlay: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "overlay_total",
			Help:      "Risk overlay outcomes by status.",
		}, []string{"status"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejections_total",
			Help:      "Submission errors by class.",
		}, []string{"class"}),
		position: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "position_contracts",
			Help:      "Signed position in contracts.",
		}),
		tickSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_seconds",
			Help:      "Duration of one control loop iteration.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
		}),
		journalDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "journal_drops_total",
			Help:      "Plan journal records dropped because the queue was full or closed.",
		}),
		restarts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_restarts_total",
			Help:      "Supervisor restarts after a stream disconnect.",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.ticks, m.orders, m.gateBlocks, m.overlay, m.rejections,
			m.position, m.tickSeconds, m.journalDrops, m.restarts,
		)
	}
	return m
}

// ObserveTick records the outcome and duration of one iteration.
func (m *Metrics) ObserveTick(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.ticks.WithLabelValues(outcome).Inc()
	m.tickSeconds.Observe(d.Seconds())
	m.tickLatency.Observe(d)
}

// AddOrders counts submitted orders.
func (m *Metrics) AddOrders(action, side string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.orders.WithLabelValues(action, side).Add(float64(n))
}

// ObserveSubmit records the duration of one plan submission.
func (m *Metrics) ObserveSubmit(d time.Duration) {
	if m == nil {
		return
	}
	m.submitLatency.Observe(d)
}

func (m *Metrics) IncGateBlock(reason string) {
	if m == nil {
		return
	}
	m.gateBlocks.WithLabelValues(reason).Inc()
}

func (m *Metrics) IncOverlay(status string) {
	if m == nil {
		return
	}
	m.overlay.WithLabelValues(status).Inc()
}

func (m *Metrics) IncRejection(class string) {
	if m == nil {
		return
	}
	m.rejections.WithLabelValues(class).Inc()
}

func (m *Metrics) SetPosition(qty int64) {
	if m == nil {
		return
	}
	m.position.Set(float64(qty))
}

func (m *Metrics) IncJournalDrop() {
	if m == nil {
		return
	}
	m.journalDrops.Inc()
}

func (m *Metrics) IncRestart() {
	if m == nil {
		return
	}
	m.restarts.Inc()
}

// Latency is the in-process latency view served by the status endpoint.
type Latency struct {
	Tick   LatencySnapshot `json:"tick"`
	Submit LatencySnapshot `json:"submit"`
}

// Latency returns the current latency snapshots.
func (m *Metrics) Latency() Latency {
	if m == nil {
		return Latency{}
	}
	return Latency{
		Tick:   m.tickLatency.Snapshot(),
		Submit: m.submitLatency.Snapshot(),
	}
}
