package model

import "math"

// ResourceClass groups interchangeable chargers sharing the same throughput.
type ResourceClass struct {
	// ID identifies the class in assignment logs. ExpandResources assigns it
	// from the declaration order when left to zero.
	ID           int     `json:"id" yaml:"id"`
	Name         string  `json:"name" yaml:"name"`
	Count        int     `json:"count" yaml:"count"`                 // number of chargers, i.e. slots per hour
	UnitCapacity float64 `json:"unit_capacity" yaml:"unit_capacity"` // kWh one charger delivers in one hour at rate 1
}

// Validate checks that the class can serve at least one vehicle.
func (c ResourceClass) Validate() error {
	if c.Count < 1 {
		return invalidf("resource class %d: count must be at least 1, got %d", c.ID, c.Count)
	}
	if !(c.UnitCapacity > 0) || math.IsInf(c.UnitCapacity, 1) {
		return invalidf("resource class %d: unit capacity must be positive and finite, got %g", c.ID, c.UnitCapacity)
	}
	return nil
}

// Throughput returns the energy the whole class can deliver in an hour with
// the given rate multiplier.
func (c ResourceClass) Throughput(rate float64) float64 {
	return float64(c.Count) * c.UnitCapacity * rate
}

// SingleChargerPool builds the configuration where every charger is identical.
func SingleChargerPool(count int, unitCapacity float64) []ResourceClass {
	return []ResourceClass{{ID: 0, Name: "pool", Count: count, UnitCapacity: unitCapacity}}
}

// ExpandResources returns a copy of classes with IDs set from their position.
func ExpandResources(classes []ResourceClass) []ResourceClass {
	out := make([]ResourceClass, len(classes))
	for i, c := range classes {
		c.ID = i
		out[i] = c
	}
	return out
}

// ValidateResources checks every class of a configuration.
func ValidateResources(classes []ResourceClass) error {
	if len(classes) == 0 {
		return invalidf("at least one resource class is required")
	}
	for _, c := range classes {
		if err := c.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// TotalSlots sums the counts of all classes.
func TotalSlots(classes []ResourceClass) int {
	var n int
	for _, c := range classes {
		n += c.Count
	}
	return n
}

// SlotMode selects how resource counts limit the number of vehicles served
// per hour.
type SlotMode int

const (
	// PerClass lets every class serve up to its own count of vehicles.
	PerClass SlotMode = iota
	// Global additionally shares one cap on concurrently charging vehicles
	// across classes. Each class still serves at most its own count and
	// classes are visited in order so earlier classes fill first.
	Global
)

// String returns the configuration name of the mode.
func (m SlotMode) String() string {
	switch m {
	case PerClass:
		return "per_class"
	case Global:
		return "global"
	default:
		return "unknown"
	}
}

// ParseSlotMode converts a configuration string into a SlotMode. The empty
// string selects PerClass.
func ParseSlotMode(s string) (SlotMode, error) {
	switch s {
	case "", "per_class":
		return PerClass, nil
	case "global":
		return Global, nil
	default:
		return PerClass, invalidf("unknown slot mode %q", s)
	}
}
