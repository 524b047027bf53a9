package indicators

import (
	"math"
	"sort"

	talib "github.com/markcheno/go-talib"
)

// Undefined is the marker for positions inside an indicator's warm-up window.
var Undefined = math.NaN()

// IsDefined reports whether v carries a usable value.
func IsDefined(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// NaNs returns a slice of n undefined values.
func NaNs(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = Undefined
	}
	return out
}

// windowed applies a talib rolling function to every run of defined values
// long enough to fill one window. Positions whose window is not fully
// defined stay undefined; talib itself pads the warm-up with zeros and
// propagates NaN through its running sums, so it never sees either.
func windowed(x []float64, n int, fn func([]float64) []float64) []float64 {
	out := NaNs(len(x))
	if n <= 0 {
		return out
	}
	start := -1
	flush := func(end int) {
		if start >= 0 && end-start >= n {
			res := fn(x[start:end])
			for i := start + n - 1; i < end; i++ {
				out[i] = res[i-start]
			}
		}
		start = -1
	}
	for i, v := range x {
		if IsDefined(v) {
			if start < 0 {
				start = i
			}
			continue
		}
		flush(i)
	}
	flush(len(x))
	return out
}

// SMA is the simple moving average over n bars. A constant window averages
// to exactly its value; talib's running sum would leave rounding residue.
func SMA(x []float64, n int) []float64 {
	if n == 1 {
		return windowed(x, n, identity)
	}
	return windowed(x, n, func(seg []float64) []float64 {
		out := talib.Sma(seg, n)
		hi, lo := talib.Max(seg, n), talib.Min(seg, n)
		for i := n - 1; i < len(seg); i++ {
			if hi[i] == lo[i] {
				out[i] = seg[i]
			}
		}
		return out
	})
}

// RollingStd is the population standard deviation over n bars.
func RollingStd(x []float64, n int) []float64 {
	if n < 2 {
		return windowed(x, n, func(seg []float64) []float64 { return make([]float64, len(seg)) })
	}
	return windowed(x, n, func(seg []float64) []float64 { return talib.StdDev(seg, n, 1) })
}

// RollingMax is the highest value over the trailing n bars, current included.
func RollingMax(x []float64, n int) []float64 {
	if n == 1 {
		return windowed(x, n, identity)
	}
	return windowed(x, n, func(seg []float64) []float64 { return talib.Max(seg, n) })
}

// RollingMin is the lowest value over the trailing n bars, current included.
func RollingMin(x []float64, n int) []float64 {
	if n == 1 {
		return windowed(x, n, identity)
	}
	return windowed(x, n, func(seg []float64) []float64 { return talib.Min(seg, n) })
}

func identity(seg []float64) []float64 {
	out := make([]float64, len(seg))
	copy(out, seg)
	return out
}

// EMA is an exponential moving average with alpha = 2/(span+1), seeded with
// the first defined value and without bias correction. An undefined input
// holds the previous average.
func EMA(x []float64, span int) []float64 {
	out := NaNs(len(x))
	if span <= 0 {
		return out
	}
	alpha := 2.0 / (float64(span) + 1)
	prev := Undefined
	for i, v := range x {
		switch {
		case !IsDefined(v):
			out[i] = prev
		case !IsDefined(prev):
			prev = v
			out[i] = v
		default:
			prev = alpha*v + (1-alpha)*prev
			out[i] = prev
		}
	}
	return out
}

// Diff returns x[t] - x[t-k].
func Diff(x []float64, k int) []float64 {
	out := NaNs(len(x))
	if k <= 0 {
		return out
	}
	for i := k; i < len(x); i++ {
		out[i] = x[i] - x[i-k]
	}
	return out
}

// Shift moves the series k bars forward; the first k positions become undefined.
func Shift(x []float64, k int) []float64 {
	out := NaNs(len(x))
	for i := k; i < len(x); i++ {
		out[i] = x[i-k]
	}
	return out
}

// TrueRange is max(high-low, |high-prevClose|, |low-prevClose|). The first
// bar has no previous close and is undefined.
func TrueRange(high, low, close []float64) []float64 {
	out := NaNs(len(close))
	for i := 1; i < len(close); i++ {
		pc := close[i-1]
		out[i] = math.Max(high[i]-low[i], math.Max(math.Abs(high[i]-pc), math.Abs(low[i]-pc)))
	}
	return out
}

// Last returns the final value of x if it is defined.
func Last(x []float64) (float64, bool) {
	if len(x) == 0 {
		return Undefined, false
	}
	v := x[len(x)-1]
	return v, IsDefined(v)
}

// Quantile is the q-th quantile of the defined values in x using linear
// interpolation between closest ranks.
func Quantile(x []float64, q float64) (float64, bool) {
	vals := make([]float64, 0, len(x))
	for _, v := range x {
		if IsDefined(v) {
			vals = append(vals, v)
		}
	}
	if len(vals) == 0 {
		return Undefined, false
	}
	sort.Float64s(vals)
	if q <= 0 {
		return vals[0], true
	}
	if q >= 1 {
		return vals[len(vals)-1], true
	}
	pos := q * float64(len(vals)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return vals[lo], true
	}
	w := pos - float64(lo)
	return vals[lo]*(1-w) + vals[hi]*w, true
}
