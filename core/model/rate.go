package model

import "gonum.org/v1/gonum/stat"

// RateCurve holds one throughput multiplier per hour of the charging window.
// Its length defines the window length.
type RateCurve []float64

// Hours returns the window length.
func (r RateCurve) Hours() int { return len(r) }

// At returns the multiplier of hour h.
func (r RateCurve) At(h int) float64 { return r[h] }

// Mean returns the blended rate of the window. An empty curve yields 0.
func (r RateCurve) Mean() float64 {
	if len(r) == 0 {
		return 0
	}
	return stat.Mean(r, nil)
}

// Validate checks the curve is non-empty and every multiplier is in (0, 1].
func (r RateCurve) Validate() error {
	if len(r) == 0 {
		return invalidf("rate curve must cover at least one hour")
	}
	for h, m := range r {
		if !(m > 0 && m <= 1) {
			return invalidf("rate for hour %d must be in (0, 1], got %g", h, m)
		}
	}
	return nil
}

// Ceiling returns a demand ceiling pointer for v. A nil ceiling means the
// hourly demand is unconstrained.
func Ceiling(v float64) *float64 { return &v }
