package report

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/kilianp07/fleetcharge/core/allocation"
)

// Record is one cell of the allocation matrix.
type Record struct {
	Vehicle int     `json:"vehicle" yaml:"vehicle"`
	Hour    int     `json:"hour" yaml:"hour"`
	Energy  float64 `json:"energy" yaml:"energy"`
}

// ToRecords flattens the grid into one record per vehicle and hour,
// zero cells included, vehicle-major.
func ToRecords(g Grid) []Record {
	out := make([]Record, 0, g.Rows()*g.Hours())
	for v := 0; v < g.Rows(); v++ {
		for h := 0; h < g.Hours(); h++ {
			out = append(out, Record{Vehicle: v, Hour: h, Energy: g.At(v, h)})
		}
	}
	return out
}

// Reaggregate sums records back into a vehicles x hours matrix. It returns
// nil when vehicles is zero.
func Reaggregate(records []Record, vehicles, hours int) (*mat.Dense, error) {
	if vehicles == 0 {
		if len(records) > 0 {
			return nil, fmt.Errorf("reaggregate: %d records for an empty fleet", len(records))
		}
		return nil, nil
	}
	if hours < 1 {
		return nil, fmt.Errorf("reaggregate: hours must be positive")
	}
	m := mat.NewDense(vehicles, hours, nil)
	for _, r := range records {
		if r.Vehicle < 0 || r.Vehicle >= vehicles || r.Hour < 0 || r.Hour >= hours {
			return nil, fmt.Errorf("reaggregate: record (%d, %d) outside %dx%d", r.Vehicle, r.Hour, vehicles, hours)
		}
		m.Set(r.Vehicle, r.Hour, m.At(r.Vehicle, r.Hour)+r.Energy)
	}
	return m, nil
}

// AssignmentRecord attributes the energy of one hour to a charger slot.
type AssignmentRecord struct {
	Hour    int     `json:"hour" yaml:"hour"`
	ClassID int     `json:"class_id" yaml:"class_id"`
	Slot    int     `json:"slot" yaml:"slot"`
	Vehicle int     `json:"vehicle" yaml:"vehicle"`
	Energy  float64 `json:"energy" yaml:"energy"`
}

// ToAssignmentRecords rebuilds slot assignments from the grid alone. For
// each hour the first slotCount vehicles with positive energy, in index
// order, get slot ordinals 0..slotCount-1. Slot identity is not stored in
// the grid, so this can misattribute vehicles; use FromAssignmentLog when
// exact provenance matters.
func ToAssignmentRecords(g Grid, slotCount int) []AssignmentRecord {
	var out []AssignmentRecord
	for h := 0; h < g.Hours(); h++ {
		used := 0
		for v := 0; v < g.Rows() && used < slotCount; v++ {
			e := g.At(v, h)
			if e <= 0 {
				continue
			}
			out = append(out, AssignmentRecord{Hour: h, Slot: used, Vehicle: v, Energy: e})
			used++
		}
	}
	return out
}

// FromAssignmentLog converts the engine's slot log into records, dropping
// slots that delivered nothing.
func FromAssignmentLog(log []allocation.Assignment) []AssignmentRecord {
	var out []AssignmentRecord
	for _, a := range log {
		if a.Energy <= 0 {
			continue
		}
		out = append(out, AssignmentRecord{Hour: a.Hour, ClassID: a.ClassID, Slot: a.Slot, Vehicle: a.Vehicle, Energy: a.Energy})
	}
	return out
}
