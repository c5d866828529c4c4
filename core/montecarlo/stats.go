package montecarlo

import (
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Stats summarizes a deficit distribution.
type Stats struct {
	N      int     `json:"n" yaml:"n"`
	Mean   float64 `json:"mean" yaml:"mean"`
	StdDev float64 `json:"std_dev" yaml:"std_dev"`
	Min    float64 `json:"min" yaml:"min"`
	Max    float64 `json:"max" yaml:"max"`
	P5     float64 `json:"p5" yaml:"p5"`
	P50    float64 `json:"p50" yaml:"p50"`
	P95    float64 `json:"p95" yaml:"p95"`
}

// Summarize computes descriptive statistics of samples. The input is left
// untouched. An empty input yields the zero Stats.
func Summarize(samples []float64) Stats {
	if len(samples) == 0 {
		return Stats{}
	}
	sorted := append([]float64(nil), samples...)
	sort.Float64s(sorted)
	s := Stats{
		N:   len(sorted),
		Min: floats.Min(sorted),
		Max: floats.Max(sorted),
		P5:  stat.Quantile(0.05, stat.Empirical, sorted, nil),
		P50: stat.Quantile(0.5, stat.Empirical, sorted, nil),
		P95: stat.Quantile(0.95, stat.Empirical, sorted, nil),
	}
	if len(sorted) > 1 {
		s.Mean, s.StdDev = stat.MeanStdDev(sorted, nil)
	} else {
		s.Mean = sorted[0]
	}
	return s
}

// Histogram counts samples into bins equal-width bins spanning [min, max].
// It returns the bin edges (bins+1 values) and the counts.
func Histogram(samples []float64, bins int) ([]float64, []float64) {
	if len(samples) == 0 || bins < 1 {
		return nil, nil
	}
	sorted := append([]float64(nil), samples...)
	sort.Float64s(sorted)
	lo, hi := sorted[0], sorted[len(sorted)-1]
	if lo == hi {
		hi = lo + 1
	}
	dividers := make([]float64, bins+1)
	floats.Span(dividers, lo, hi)
	// stat.Histogram excludes the upper edge, nudge it past the maximum.
	dividers[bins] = hi + (hi-lo)*1e-9
	counts := stat.Histogram(nil, dividers, sorted, nil)
	dividers[bins] = hi
	return dividers, counts
}
