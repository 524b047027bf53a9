package usecase

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"EdgeScan/internal/domain/models"
	svcmetrics "EdgeScan/internal/service/metrics"
)

type memStore struct {
	stored map[string]models.PriceSeries
	err    error
}

func (m *memStore) StoreSeries(_ context.Context, s models.PriceSeries) error {
	if m.err != nil {
		return m.err
	}
	if m.stored == nil {
		m.stored = map[string]models.PriceSeries{}
	}
	m.stored[s.Symbol] = s
	return nil
}

func TestIngest_Run(t *testing.T) {
	prices := newFakePrices()
	prices.series["AAPL"] = wave("AAPL", 30, 0.1)
	bad := wave("BAD", 10, 0)
	bad.Bars[4].Close = math.NaN()
	prices.series["BAD"] = bad
	prices.errs["DOWN"] = errors.New("503")

	store := &memStore{}
	g := NewIngest(prices, store, svcmetrics.Nop{}, nil)
	res, err := g.Run(context.Background(), []string{"aapl", "NONE", "BAD", "DOWN"}, 60)
	require.NoError(t, err)

	assert.Equal(t, map[string]int{"AAPL": 30}, res.Bars)
	require.Contains(t, store.stored, "AAPL")
	assert.Equal(t, 30, store.stored["AAPL"].Len())

	reasons := map[string]string{}
	for _, f := range res.Failures {
		reasons[f.Symbol] = f.Reason
	}
	assert.Equal(t, map[string]string{
		"NONE": "data_unavailable",
		"BAD":  "missing_field",
		"DOWN": "unknown",
	}, reasons)
}

func TestIngest_StoreError(t *testing.T) {
	prices := newFakePrices()
	prices.series["AAPL"] = wave("AAPL", 5, 0)
	g := NewIngest(prices, &memStore{err: errors.New("ch down")}, svcmetrics.Nop{}, nil)
	res, err := g.Run(context.Background(), []string{"AAPL"}, 10)
	require.NoError(t, err)
	assert.Empty(t, res.Bars)
	require.Len(t, res.Failures, 1)
}

func TestIngest_NoSymbols(t *testing.T) {
	g := NewIngest(newFakePrices(), &memStore{}, svcmetrics.Nop{}, nil)
	_, err := g.Run(context.Background(), nil, 10)
	assert.ErrorIs(t, err, models.ErrMissingField)
}
