package model

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidConfiguration is wrapped by every validation error returned by
// this package and by the engines built on top of it.
var ErrInvalidConfiguration = errors.New("invalid configuration")

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfiguration, fmt.Sprintf(format, args...))
}

// Vehicle represents one electric vehicle waiting to be charged.
type Vehicle struct {
	// Index is the stable position of the vehicle within its fleet. Priority
	// ties are broken on it so it must be unique and deterministic.
	Index         int     `json:"index" yaml:"index"`
	Capacity      float64 `json:"capacity" yaml:"capacity"`             // battery capacity in kWh
	InitialCharge float64 `json:"initial_charge" yaml:"initial_charge"` // energy already stored in kWh
}

// Deficit returns the energy needed to reach full capacity.
func (v Vehicle) Deficit() float64 {
	d := v.Capacity - v.InitialCharge
	if d < 0 {
		return 0
	}
	return d
}

// Validate checks that the vehicle configuration is sound.
func (v Vehicle) Validate() error {
	if !(v.Capacity > 0) || math.IsInf(v.Capacity, 1) {
		return invalidf("vehicle %d: capacity must be positive and finite, got %g", v.Index, v.Capacity)
	}
	if !(v.InitialCharge >= 0 && v.InitialCharge <= v.Capacity) {
		return invalidf("vehicle %d: initial charge %.3f outside [0, %.3f]", v.Index, v.InitialCharge, v.Capacity)
	}
	return nil
}

// VehicleGroup declares Count identical vehicles of the given capacity.
type VehicleGroup struct {
	Count    int     `json:"count" yaml:"count"`
	Capacity float64 `json:"capacity" yaml:"capacity"`
}

// Validate checks the group declaration.
func (g VehicleGroup) Validate() error {
	if g.Count < 1 {
		return invalidf("vehicle group: count must be at least 1, got %d", g.Count)
	}
	if !(g.Capacity > 0) || math.IsInf(g.Capacity, 1) {
		return invalidf("vehicle group: capacity must be positive and finite, got %g", g.Capacity)
	}
	return nil
}

// Fleet is an ordered list of vehicles. Vehicle i is expected at position i.
type Fleet []Vehicle

// ExpandFleet replicates the groups into individual vehicles. Groups are
// expanded in declaration order, then in replication order, and indices are
// assigned sequentially from zero. All vehicles start empty.
func ExpandFleet(groups []VehicleGroup) (Fleet, error) {
	var n int
	for i, g := range groups {
		if err := g.Validate(); err != nil {
			return nil, fmt.Errorf("group %d: %w", i, err)
		}
		n += g.Count
	}
	fleet := make(Fleet, 0, n)
	for _, g := range groups {
		for j := 0; j < g.Count; j++ {
			fleet = append(fleet, Vehicle{Index: len(fleet), Capacity: g.Capacity})
		}
	}
	return fleet, nil
}

// WithInitialCharges returns a copy of the fleet with the given initial
// charges applied in order.
func (f Fleet) WithInitialCharges(charges []float64) (Fleet, error) {
	if len(charges) != len(f) {
		return nil, invalidf("expected %d initial charges, got %d", len(f), len(charges))
	}
	out := make(Fleet, len(f))
	copy(out, f)
	for i := range out {
		out[i].InitialCharge = charges[i]
		if err := out[i].Validate(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Validate checks every vehicle and that indices match positions.
func (f Fleet) Validate() error {
	for i, v := range f {
		if v.Index != i {
			return invalidf("vehicle at position %d carries index %d", i, v.Index)
		}
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Capacities returns the capacity of each vehicle.
func (f Fleet) Capacities() []float64 {
	out := make([]float64, len(f))
	for i, v := range f {
		out[i] = v.Capacity
	}
	return out
}

// InitialCharges returns the initial charge of each vehicle.
func (f Fleet) InitialCharges() []float64 {
	out := make([]float64, len(f))
	for i, v := range f {
		out[i] = v.InitialCharge
	}
	return out
}

// Deficits returns the deficit of each vehicle.
func (f Fleet) Deficits() []float64 {
	out := make([]float64, len(f))
	for i, v := range f {
		out[i] = v.Deficit()
	}
	return out
}

// TotalDeficit sums the deficits of the fleet.
func (f Fleet) TotalDeficit() float64 {
	var sum float64
	for _, v := range f {
		sum += v.Deficit()
	}
	return sum
}
