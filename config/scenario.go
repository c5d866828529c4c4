package config

import (
	"fmt"

	"github.com/kilianp07/fleetcharge/core/model"
	"github.com/kilianp07/fleetcharge/core/montecarlo"
	"github.com/kilianp07/fleetcharge/core/report"
)

// FleetConfig describes the vehicles waiting at the depot.
type FleetConfig struct {
	Groups []model.VehicleGroup `json:"groups" yaml:"groups"`
	// InitialCharge is the range initial charges are sampled from when
	// InitialCharges is empty. Unset selects montecarlo.DefaultChargeRange;
	// an explicit {min_pct: 0, max_pct: 0} means every vehicle starts empty.
	InitialCharge *montecarlo.ChargeRange `json:"initial_charge" yaml:"initial_charge"`
	// InitialCharges pins the energy already stored in each vehicle, in
	// expansion order.
	InitialCharges []float64 `json:"initial_charges" yaml:"initial_charges"`
	Seed           uint64    `json:"seed" yaml:"seed"`
}

// SetDefaults applies sane defaults.
func (c *FleetConfig) SetDefaults() {
	if c.InitialCharge == nil {
		r := montecarlo.DefaultChargeRange
		c.InitialCharge = &r
	}
}

// ChargeRange returns the sampling range, the default one when unset.
func (c FleetConfig) ChargeRange() montecarlo.ChargeRange {
	if c.InitialCharge == nil {
		return montecarlo.DefaultChargeRange
	}
	return *c.InitialCharge
}

// Validate checks groups, the sampling range and pinned charges.
func (c FleetConfig) Validate() error {
	if len(c.Groups) == 0 {
		return fmt.Errorf("%w: at least one vehicle group is required", model.ErrInvalidConfiguration)
	}
	fleet, err := model.ExpandFleet(c.Groups)
	if err != nil {
		return err
	}
	if err := c.ChargeRange().Validate(); err != nil {
		return err
	}
	if len(c.InitialCharges) > 0 {
		if _, err := fleet.WithInitialCharges(c.InitialCharges); err != nil {
			return err
		}
	}
	return nil
}

// Vehicles returns the number of vehicles described by the groups.
func (c FleetConfig) Vehicles() int {
	var n int
	for _, g := range c.Groups {
		n += g.Count
	}
	return n
}

// ChargersConfig describes the charging infrastructure.
type ChargersConfig struct {
	// Mode is "per_class" or "global".
	Mode    string                `json:"mode" yaml:"mode"`
	Classes []model.ResourceClass `json:"classes" yaml:"classes"`
	// MaxConcurrent caps the vehicles charging at the same time across all
	// classes. Required in global mode, ignored otherwise.
	MaxConcurrent int `json:"max_concurrent" yaml:"max_concurrent"`
	// ExclusivePlug keeps a vehicle on a single charger per hour.
	ExclusivePlug bool `json:"exclusive_plug" yaml:"exclusive_plug"`
}

// SetDefaults applies sane defaults.
func (c *ChargersConfig) SetDefaults() {
	if c.Mode == "" {
		c.Mode = model.PerClass.String()
	}
}

// Validate checks the slot mode and every charger class.
func (c ChargersConfig) Validate() error {
	mode, err := model.ParseSlotMode(c.Mode)
	if err != nil {
		return err
	}
	if mode == model.Global && c.MaxConcurrent < 1 {
		return fmt.Errorf("%w: global mode needs max_concurrent >= 1, got %d", model.ErrInvalidConfiguration, c.MaxConcurrent)
	}
	if c.MaxConcurrent < 0 {
		return fmt.Errorf("%w: max_concurrent must not be negative", model.ErrInvalidConfiguration)
	}
	return model.ValidateResources(c.Resources())
}

// SlotMode returns the parsed slot mode. Invalid modes fall back to
// PerClass; Validate reports them.
func (c ChargersConfig) SlotMode() model.SlotMode {
	m, _ := model.ParseSlotMode(c.Mode)
	return m
}

// Resources returns the charger classes with IDs set from their position.
func (c ChargersConfig) Resources() []model.ResourceClass {
	return model.ExpandResources(c.Classes)
}

// WindowConfig describes the overnight charging window.
type WindowConfig struct {
	Rates model.RateCurve `json:"rates" yaml:"rates"`
	// DemandCeiling caps the fleet wide energy drawn per hour when set.
	DemandCeiling *float64 `json:"demand_ceiling" yaml:"demand_ceiling"`
	OperatingDays []string `json:"operating_days" yaml:"operating_days"`
}

// SetDefaults applies sane defaults.
func (c *WindowConfig) SetDefaults() {
	if len(c.OperatingDays) == 0 {
		c.OperatingDays = append([]string(nil), report.DefaultOperatingDays...)
	}
}

// Validate checks the rate curve and the operating days.
func (c WindowConfig) Validate() error {
	if err := c.Rates.Validate(); err != nil {
		return err
	}
	_, err := report.ParseOperatingDays(c.OperatingDays)
	return err
}

// Days returns the parsed operating days.
func (c WindowConfig) Days() report.OperatingDays {
	d, err := report.ParseOperatingDays(c.OperatingDays)
	if err != nil {
		return report.DefaultOperatingDays
	}
	return d
}

// MonteCarloConfig configures the deficit sensitivity analysis.
type MonteCarloConfig struct {
	// Iterations defaults to montecarlo.DefaultIterations when zero.
	Iterations int `json:"iterations" yaml:"iterations"`
	// Workers defaults to GOMAXPROCS when zero.
	Workers int    `json:"workers" yaml:"workers"`
	Seed    uint64 `json:"seed" yaml:"seed"`
}

// Validate rejects negative counts.
func (c MonteCarloConfig) Validate() error {
	if c.Iterations < 0 {
		return fmt.Errorf("%w: iterations must not be negative", model.ErrInvalidConfiguration)
	}
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers must not be negative", model.ErrInvalidConfiguration)
	}
	return nil
}

// Options converts the section into sampler options using the fleet's
// initial charge range.
func (c MonteCarloConfig) Options(r montecarlo.ChargeRange) montecarlo.Options {
	return montecarlo.Options{Iterations: c.Iterations, Workers: c.Workers, Seed: c.Seed, Range: &r}
}
