// Package report derives cost figures, utilization and tabular records from
// allocation results.
package report

import (
	"errors"
	"fmt"
	"strings"

	"gonum.org/v1/gonum/floats"

	"github.com/kilianp07/fleetcharge/core/model"
)

// ErrDegenerateResult is returned by metrics that are undefined because no
// energy was delivered.
var ErrDegenerateResult = errors.New("degenerate result")

// Grid is a read-only view of an allocation matrix indexed [vehicle][hour].
// *allocation.Result implements it.
type Grid interface {
	Rows() int
	Hours() int
	At(v, h int) float64
}

// Delivered sums every cell of the grid. Grids that know their own total,
// such as *allocation.Result, are asked for it directly.
func Delivered(g Grid) float64 {
	if s, ok := g.(interface{ Sum() float64 }); ok {
		return s.Sum()
	}
	row := make([]float64, g.Hours())
	var sum float64
	for v := 0; v < g.Rows(); v++ {
		for h := range row {
			row[h] = g.At(v, h)
		}
		sum += floats.Sum(row)
	}
	return sum
}

// TotalCost prices the delivered energy at the mean rate of the window. The
// blended rate is intentional: hours are not priced individually.
func TotalCost(g Grid, rates model.RateCurve) float64 {
	return Delivered(g) * rates.Mean()
}

// WeeklyCost scales the cost of one charging session to the number of
// operating days in a week.
func WeeklyCost(total float64, days int) float64 {
	return total * float64(days)
}

// AverageCostPerUnit returns the cost of one unit of delivered energy. It
// fails with ErrDegenerateResult when nothing was delivered.
func AverageCostPerUnit(total, delivered float64) (float64, error) {
	if delivered == 0 {
		return 0, fmt.Errorf("%w: no energy delivered", ErrDegenerateResult)
	}
	return total / delivered, nil
}

var weekdays = []string{"Mo", "Tu", "We", "Th", "Fr", "Sa", "Su"}

// DefaultOperatingDays is the Monday to Friday schedule.
var DefaultOperatingDays = OperatingDays{"Mo", "Tu", "We", "Th", "Fr"}

// OperatingDays lists the weekdays on which the charging session runs,
// using two letter tokens Mo..Su.
type OperatingDays []string

// ParseOperatingDays validates tokens, drops duplicates and returns the
// days in week order. Tokens are case-insensitive.
func ParseOperatingDays(tokens []string) (OperatingDays, error) {
	selected := make(map[string]bool, len(tokens))
	for _, tok := range tokens {
		norm := normalizeDay(tok)
		if norm == "" {
			return nil, fmt.Errorf("%w: unknown operating day %q", model.ErrInvalidConfiguration, tok)
		}
		selected[norm] = true
	}
	out := make(OperatingDays, 0, len(selected))
	for _, d := range weekdays {
		if selected[d] {
			out = append(out, d)
		}
	}
	return out, nil
}

func normalizeDay(tok string) string {
	tok = strings.TrimSpace(tok)
	for _, d := range weekdays {
		if strings.EqualFold(tok, d) {
			return d
		}
	}
	return ""
}

// Count returns the number of operating days.
func (d OperatingDays) Count() int { return len(d) }
