package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"EdgeScan/internal/domain/models"
	domrepo "EdgeScan/internal/domain/repository"
)

// ScanMetrics records per-symbol scan outcomes.
type ScanMetrics struct {
	scanLatency *prometheus.HistogramVec
	opLatency   *prometheus.HistogramVec
	scored      prometheus.Counter
	failures    *prometheus.CounterVec
	signals     *prometheus.CounterVec
	lastScore   *prometheus.GaugeVec
}

var _ domrepo.Metrics = (*ScanMetrics)(nil)

// NewScanMetrics builds the collectors and registers them with reg. A nil
// reg leaves them unregistered.
func NewScanMetrics(reg prometheus.Registerer) *ScanMetrics {
	m := &ScanMetrics{
		scanLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "edgescan",
			Subsystem: "scan",
			Name:      "symbol_seconds",
			Help:      "Time to analyse one symbol",
			Buckets:   prometheus.DefBuckets,
		}, []string{"symbol"}),
		opLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "edgescan",
			Name:      "operation_seconds",
			Help:      "Latency of pipeline stages and batch runs",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		scored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "edgescan",
			Name:      "symbols_scored_total",
			Help:      "Symbols that produced an edge score",
		}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "edgescan",
			Name:      "symbol_failures_total",
			Help:      "Symbols that failed, by reason",
		}, []string{"reason"}),
		signals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "edgescan",
			Name:      "signals_total",
			Help:      "Detected signals by kind and direction",
		}, []string{"kind", "direction"}),
		lastScore: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "edgescan",
			Name:      "last_score",
			Help:      "Most recent edge score per symbol",
		}, []string{"symbol"}),
	}
	if reg != nil {
		reg.MustRegister(m.scanLatency, m.opLatency, m.scored, m.failures, m.signals, m.lastScore)
	}
	return m
}

func (m *ScanMetrics) RecordScan(symbol string, seconds float64) {
	m.scanLatency.WithLabelValues(symbol).Observe(seconds)
}

func (m *ScanMetrics) RecordScore(symbol string, score float64) {
	m.scored.Inc()
	m.lastScore.WithLabelValues(symbol).Set(score)
}

func (m *ScanMetrics) RecordSignal(kind models.SignalKind, dir models.Direction) {
	m.signals.WithLabelValues(string(kind), string(dir)).Inc()
}

func (m *ScanMetrics) RecordFailure(reason string) {
	m.failures.WithLabelValues(reason).Inc()
}

func (m *ScanMetrics) RecordLatency(op string, seconds float64) {
	m.opLatency.WithLabelValues(op).Observe(seconds)
}

// Nop discards every observation.
type Nop struct{}

var _ domrepo.Metrics = Nop{}

func (Nop) RecordScan(string, float64) {}
func (Nop) RecordScore(string, float64) {}
func (Nop) RecordSignal(models.SignalKind, models.Direction) {}
func (Nop) RecordFailure(string) {}
func (Nop) RecordLatency(string, float64) {}
