package report

import (
	"fmt"

	"github.com/kilianp07/fleetcharge/core/allocation"
	"github.com/kilianp07/fleetcharge/core/model"
)

// unmetTolerance absorbs floating point residue when checking the window.
const unmetTolerance = 1e-6

// Summary gathers the figures reported for one plan.
type Summary struct {
	Vehicles           int      `json:"vehicles" yaml:"vehicles"`
	Hours              int      `json:"hours" yaml:"hours"`
	RequiredEnergy     float64  `json:"required_energy" yaml:"required_energy"`
	DeliveredEnergy    float64  `json:"delivered_energy" yaml:"delivered_energy"`
	UnmetEnergy        float64  `json:"unmet_energy" yaml:"unmet_energy"`
	OfferedEnergy      float64  `json:"offered_energy" yaml:"offered_energy"`
	Utilization        float64  `json:"utilization" yaml:"utilization"`
	MeanRate           float64  `json:"mean_rate" yaml:"mean_rate"`
	TotalCost          float64  `json:"total_cost" yaml:"total_cost"`
	OperatingDays      int      `json:"operating_days" yaml:"operating_days"`
	WeeklyCost         float64  `json:"weekly_cost" yaml:"weekly_cost"`
	AverageCostPerUnit *float64 `json:"average_cost_per_unit,omitempty" yaml:"average_cost_per_unit,omitempty"`
	WindowInsufficient bool     `json:"window_insufficient" yaml:"window_insufficient"`
	Warnings           []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// Input is what Summarize needs besides the allocation itself.
type Input struct {
	Fleet     model.Fleet
	Resources []model.ResourceClass
	Rates     model.RateCurve
	Days      OperatingDays
}

// OfferedEnergy returns the rate-scaled throughput of all classes over the
// window.
func OfferedEnergy(resources []model.ResourceClass, rates model.RateCurve) float64 {
	var sum float64
	for _, rate := range rates {
		for _, c := range resources {
			sum += c.Throughput(rate)
		}
	}
	return sum
}

// CheckWindow reports whether the charging window was too short, that is
// energy is still missing when the window closes.
func CheckWindow(res *allocation.Result) bool {
	return res.Unmet() > unmetTolerance
}

// Summarize computes the plan figures from an allocation result.
func Summarize(res *allocation.Result, in Input) Summary {
	delivered := res.Sum()
	total := TotalCost(res, in.Rates)
	s := Summary{
		Vehicles:        res.Rows(),
		Hours:           res.Hours(),
		RequiredEnergy:  in.Fleet.TotalDeficit(),
		DeliveredEnergy: delivered,
		UnmetEnergy:     res.Unmet(),
		OfferedEnergy:   OfferedEnergy(in.Resources, in.Rates),
		MeanRate:        in.Rates.Mean(),
		TotalCost:       total,
		OperatingDays:   in.Days.Count(),
		WeeklyCost:      WeeklyCost(total, in.Days.Count()),
	}
	if s.OfferedEnergy > 0 {
		s.Utilization = delivered / s.OfferedEnergy
	}
	if avg, err := AverageCostPerUnit(total, delivered); err == nil {
		s.AverageCostPerUnit = &avg
	} else {
		s.Warnings = append(s.Warnings, "average cost per unit undefined: no energy delivered")
	}
	if CheckWindow(res) {
		s.WindowInsufficient = true
		s.Warnings = append(s.Warnings, fmt.Sprintf(
			"charging window insufficient: %.2f kWh unmet, consider extending the charging time or adding more chargers",
			s.UnmetEnergy))
	}
	return s
}
