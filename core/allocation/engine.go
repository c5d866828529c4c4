package allocation

import (
	"fmt"
	"math"
	"sort"

	"github.com/kilianp07/fleetcharge/core/logger"
	"github.com/kilianp07/fleetcharge/core/model"
)

// tolerance below which a deficit is considered met.
const tolerance = 1e-9

// Request gathers the inputs of one allocation run.
type Request struct {
	Vehicles  model.Fleet
	Resources []model.ResourceClass
	Rates     model.RateCurve
	// DemandCeiling caps the energy delivered to all vehicles within one
	// hour. Nil leaves the hourly demand unconstrained; a ceiling <= 0 lets
	// no energy through.
	DemandCeiling *float64
	Mode          model.SlotMode
	// MaxConcurrent is the number of vehicles that may charge at the same
	// time across all classes. Only Global mode reads it and there it must
	// be at least 1.
	MaxConcurrent int
	// ExclusivePlug prevents a vehicle from holding slots in more than one
	// class during the same hour.
	ExclusivePlug bool
}

// Validate checks the preconditions of Allocate.
func (r Request) Validate() error {
	if err := r.Vehicles.Validate(); err != nil {
		return err
	}
	if err := model.ValidateResources(r.Resources); err != nil {
		return err
	}
	if err := r.Rates.Validate(); err != nil {
		return err
	}
	switch r.Mode {
	case model.PerClass:
	case model.Global:
		if r.MaxConcurrent < 1 {
			return fmt.Errorf("%w: global slot mode needs max concurrent >= 1, got %d", model.ErrInvalidConfiguration, r.MaxConcurrent)
		}
	default:
		return fmt.Errorf("%w: unknown slot mode %d", model.ErrInvalidConfiguration, r.Mode)
	}
	if r.DemandCeiling != nil && math.IsNaN(*r.DemandCeiling) {
		return fmt.Errorf("%w: demand ceiling is not a number", model.ErrInvalidConfiguration)
	}
	seen := make(map[int]bool, len(r.Resources))
	for _, c := range r.Resources {
		if seen[c.ID] {
			return fmt.Errorf("%w: duplicate resource class id %d", model.ErrInvalidConfiguration, c.ID)
		}
		seen[c.ID] = true
	}
	return nil
}

// Engine runs the greedy allocation. The zero value is ready to use.
type Engine struct {
	log logger.Logger
}

// NewEngine returns an engine reporting hourly progress on log. A nil
// logger disables logging.
func NewEngine(log logger.Logger) *Engine {
	return &Engine{log: log}
}

var defaultEngine Engine

// Allocate runs the allocation with a silent engine.
func Allocate(req Request) (*Result, error) {
	return defaultEngine.Allocate(req)
}

// Allocate validates req and computes the energy delivered to each vehicle
// in each hour. Invalid requests are rejected before any work is done.
func (e *Engine) Allocate(req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	n := len(req.Vehicles)
	hours := req.Rates.Hours()
	deficit := req.Vehicles.Deficits()
	data := make([]float64, n*hours)
	var log []Assignment

	if n > 0 {
		order := make([]int, n)
		served := make([]bool, n)
		for h := 0; h < hours; h++ {
			rankByDeficit(order, deficit)
			for i := range served {
				served[i] = false
			}
			st := hourState{
				hour:     h,
				rate:     req.Rates.At(h),
				limited:  req.DemandCeiling != nil,
				slotsCap: req.MaxConcurrent,
			}
			if st.limited {
				st.ceiling = math.Max(*req.DemandCeiling, 0)
			}
			for _, class := range req.Resources {
				log = st.fillClass(class, req, order, deficit, served, data, hours, log)
			}
			if e.log != nil {
				e.log.Debugw("hour allocated", map[string]any{
					"hour":       h,
					"delivered":  st.delivered,
					"slots_used": st.slotsUsed,
					"ceiling":    st.ceiling,
				})
			}
		}
	}

	for i, d := range deficit {
		if d < tolerance {
			deficit[i] = 0
		}
	}
	return newResult(n, hours, data, log, deficit), nil
}

// rankByDeficit fills order with vehicle indices sorted by descending
// deficit. The sort is stable over ascending indices so ties favour the
// lower index.
func rankByDeficit(order []int, deficit []float64) {
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return deficit[order[a]] > deficit[order[b]]
	})
}

type hourState struct {
	hour      int
	rate      float64
	limited   bool
	ceiling   float64
	slotsCap  int // shared cap in Global mode
	slotsUsed int
	delivered float64
}

// fillClass hands the slots of one class to vehicles in priority order and
// appends each commitment to log.
func (st *hourState) fillClass(class model.ResourceClass, req Request, order []int, deficit []float64, served []bool, data []float64, hours int, log []Assignment) []Assignment {
	slots := class.Count
	if req.Mode == model.Global {
		slots = min(slots, st.slotsCap-st.slotsUsed)
	}
	perSlot := class.UnitCapacity * st.rate
	used := 0
	for _, v := range order {
		if used >= slots {
			break
		}
		if deficit[v] <= tolerance {
			continue
		}
		if req.ExclusivePlug && served[v] {
			continue
		}
		amount := math.Min(deficit[v], perSlot)
		if st.limited {
			amount = math.Min(amount, st.ceiling)
			st.ceiling -= amount
		}
		data[v*hours+st.hour] += amount
		deficit[v] -= amount
		served[v] = true
		st.delivered += amount
		log = append(log, Assignment{Hour: st.hour, ClassID: class.ID, Slot: used, Vehicle: v, Energy: amount})
		used++
	}
	st.slotsUsed += used
	return log
}
