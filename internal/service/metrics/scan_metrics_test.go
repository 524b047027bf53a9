package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"EdgeScan/internal/domain/models"
)

func TestScanMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewScanMetrics(reg)

	m.RecordFailure("insufficient_history")
	m.RecordFailure("insufficient_history")
	m.RecordFailure("timeout")
	m.RecordScore("AAPL", 72.5)
	m.RecordScore("MSFT", 40)
	m.RecordSignal(models.KindReversal, models.Bullish)
	m.RecordScan("AAPL", 0.02)
	m.RecordLatency("batch", 1.5)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.failures.WithLabelValues("insufficient_history")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("timeout")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.scored))
	assert.Equal(t, 72.5, testutil.ToFloat64(m.lastScore.WithLabelValues("AAPL")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.signals.WithLabelValues("reversal", "bullish")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.scanLatency))

	n, err := testutil.GatherAndCount(reg, "edgescan_symbol_failures_total")
	assert.NoError(t, err)
	assert.Equal(t, 2, n)
}
