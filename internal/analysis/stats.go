package analysis

import (
	"math"
	"sort"
)

// quantile interpolates linearly over an already sorted slice.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	w := pos - float64(lo)
	return sorted[lo]*(1-w) + sorted[hi]*w
}

// Spread summarizes a sample by median and interquartile range.
type Spread struct {
	Median float64
	Q1, Q3 float64
}

// IQR returns Q3-Q1.
func (s Spread) IQR() float64 { return s.Q3 - s.Q1 }

func spreadOf(vals []float64) Spread {
	cp := make([]float64, len(vals))
	copy(cp, vals)
	sort.Float64s(cp)
	return Spread{Median: quantile(cp, 0.5), Q1: quantile(cp, 0.25), Q3: quantile(cp, 0.75)}
}
