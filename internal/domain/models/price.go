package models

import (
	"fmt"
	"math"
	"time"
)

// PriceBar is one daily OHLCV observation. Missing numeric fields are NaN.
type PriceBar struct {
	Date   time.Time `json:"date" db:"date"`
	Open   float64   `json:"open" db:"open"`
	High   float64   `json:"high" db:"high"`
	Low    float64   `json:"low" db:"low"`
	Close  float64   `json:"close" db:"close"`
	Volume float64   `json:"volume" db:"volume"`
}

// PriceSeries is the ordered bar history of one symbol, oldest first.
type PriceSeries struct {
	Symbol string     `json:"symbol"`
	Bars   []PriceBar `json:"bars"`
}

func (s PriceSeries) Len() int { return len(s.Bars) }

func (s PriceSeries) Empty() bool { return len(s.Bars) == 0 }

// Last returns the most recent bar.
func (s PriceSeries) Last() (PriceBar, bool) {
	if len(s.Bars) == 0 {
		return PriceBar{}, false
	}
	return s.Bars[len(s.Bars)-1], true
}

// Head returns the series truncated to its first n bars. The bars are shared.
func (s PriceSeries) Head(n int) PriceSeries {
	if n > len(s.Bars) {
		n = len(s.Bars)
	}
	if n < 0 {
		n = 0
	}
	return PriceSeries{Symbol: s.Symbol, Bars: s.Bars[:n]}
}

// IndexAfter returns the index of the first bar strictly after t, or Len() if none.
func (s PriceSeries) IndexAfter(t time.Time) int {
	for i, b := range s.Bars {
		if b.Date.After(t) {
			return i
		}
	}
	return len(s.Bars)
}

func (s PriceSeries) Opens() []float64   { return s.column(func(b PriceBar) float64 { return b.Open }) }
func (s PriceSeries) Highs() []float64   { return s.column(func(b PriceBar) float64 { return b.High }) }
func (s PriceSeries) Lows() []float64    { return s.column(func(b PriceBar) float64 { return b.Low }) }
func (s PriceSeries) Closes() []float64  { return s.column(func(b PriceBar) float64 { return b.Close }) }
func (s PriceSeries) Volumes() []float64 { return s.column(func(b PriceBar) float64 { return b.Volume }) }

func (s PriceSeries) column(get func(PriceBar) float64) []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = get(b)
	}
	return out
}

// Validate checks ordering and finiteness. A NaN close is ErrMissingField,
// an infinite value anywhere or a non-increasing date is ErrComputation.
func (s PriceSeries) Validate() error {
	if len(s.Bars) == 0 {
		return fmt.Errorf("%s: %w", s.Symbol, ErrDataUnavailable)
	}
	for i, b := range s.Bars {
		if i > 0 && !b.Date.After(s.Bars[i-1].Date) {
			return fmt.Errorf("%s: bar %d date %s not after %s: %w",
				s.Symbol, i, b.Date.Format(time.DateOnly), s.Bars[i-1].Date.Format(time.DateOnly), ErrComputation)
		}
		if math.IsNaN(b.Close) {
			return fmt.Errorf("%s: close missing at %s: %w", s.Symbol, b.Date.Format(time.DateOnly), ErrMissingField)
		}
		for _, v := range [...]float64{b.Open, b.High, b.Low, b.Close, b.Volume} {
			if math.IsInf(v, 0) {
				return fmt.Errorf("%s: non-finite value at %s: %w", s.Symbol, b.Date.Format(time.DateOnly), ErrComputation)
			}
		}
	}
	return nil
}
