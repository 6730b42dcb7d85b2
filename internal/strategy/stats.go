package strategy

import (
	"math"
	"sort"

	"dongpa/internal/domain"
)

// minStdDev treats a deviation below this as a constant series.
const minStdDev = 1e-12

// nonZeroReturns collects the cumulative return rate of every ledger row
// whose return is not exactly zero.
func nonZeroReturns(trades []domain.Trade) []float64 {
	out := make([]float64, 0, len(trades))
	for _, t := range trades {
		if t.ReturnRate != 0 {
			out = append(out, t.ReturnRate)
		}
	}
	return out
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// stdDev is the population standard deviation.
func stdDev(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	m := mean(xs)
	var ss float64
	for _, x := range xs {
		d := x - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)))
}

// percentile returns the q-th percentile (0-100) using linear interpolation
// between closest ranks.
func percentile(xs []float64, q float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)

	pos := q / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}
