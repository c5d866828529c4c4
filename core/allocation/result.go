package allocation

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Assignment records one slot handed to a vehicle during one hour.
type Assignment struct {
	Hour    int     `json:"hour"`
	ClassID int     `json:"class_id"`
	Slot    int     `json:"slot"` // ordinal of the slot within its class for that hour
	Vehicle int     `json:"vehicle"`
	Energy  float64 `json:"energy"`
}

// Result is the outcome of one allocation run. It is never modified once
// returned; accessors hand out copies.
type Result struct {
	matrix      *mat.Dense // nil when the fleet is empty
	rows, hours int
	assignments []Assignment
	remaining   []float64
}

func newResult(rows, hours int, data []float64, asn []Assignment, remaining []float64) *Result {
	r := &Result{rows: rows, hours: hours, assignments: asn, remaining: remaining}
	if rows > 0 {
		r.matrix = mat.NewDense(rows, hours, data)
	}
	return r
}

// Rows returns the number of vehicles.
func (r *Result) Rows() int { return r.rows }

// Hours returns the window length.
func (r *Result) Hours() int { return r.hours }

// At returns the energy delivered to vehicle v during hour h.
func (r *Result) At(v, h int) float64 { return r.matrix.At(v, h) }

// Row returns the hourly energy delivered to vehicle v.
func (r *Result) Row(v int) []float64 {
	return mat.Row(nil, v, r.matrix)
}

// HourColumn returns the energy delivered to each vehicle during hour h.
func (r *Result) HourColumn(h int) []float64 {
	if r.matrix == nil {
		return []float64{}
	}
	return mat.Col(nil, h, r.matrix)
}

// Sum returns the total energy delivered.
func (r *Result) Sum() float64 {
	if r.matrix == nil {
		return 0
	}
	return mat.Sum(r.matrix)
}

// HourTotal returns the energy delivered to all vehicles during hour h.
func (r *Result) HourTotal(h int) float64 {
	return floats.Sum(r.HourColumn(h))
}

// VehicleTotal returns the energy delivered to vehicle v over the window.
func (r *Result) VehicleTotal(v int) float64 {
	return floats.Sum(r.Row(v))
}

// Dense returns a copy of the allocation matrix (vehicles x hours), or nil
// for an empty fleet.
func (r *Result) Dense() *mat.Dense {
	if r.matrix == nil {
		return nil
	}
	return mat.DenseCopyOf(r.matrix)
}

// Matrix returns the allocation as nested slices indexed [vehicle][hour].
func (r *Result) Matrix() [][]float64 {
	out := make([][]float64, r.rows)
	for v := range out {
		out[v] = r.Row(v)
	}
	return out
}

// Assignments returns the slot log in allocation order, including slots that
// committed zero energy once the demand ceiling was exhausted.
func (r *Result) Assignments() []Assignment {
	out := make([]Assignment, len(r.assignments))
	copy(out, r.assignments)
	return out
}

// RemainingDeficit returns each vehicle's deficit at the end of the window.
func (r *Result) RemainingDeficit() []float64 {
	out := make([]float64, len(r.remaining))
	copy(out, r.remaining)
	return out
}

// Unmet returns the energy still missing at the end of the window.
func (r *Result) Unmet() float64 {
	return floats.Sum(r.remaining)
}
