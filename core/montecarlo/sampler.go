// Package montecarlo estimates how the fleet's total energy deficit varies
// with the initial charge of its vehicles.
package montecarlo

import (
	"context"
	"fmt"
	"math/rand/v2"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/kilianp07/fleetcharge/core/model"
)

// DefaultIterations is the number of draws used when none is configured.
const DefaultIterations = 10000

// ctxCheckEvery is the number of iterations between cancellation checks.
const ctxCheckEvery = 256

// ChargeRange bounds the initial charge of a vehicle, in percent of its
// capacity.
type ChargeRange struct {
	MinPct float64 `json:"min_pct" yaml:"min_pct"`
	MaxPct float64 `json:"max_pct" yaml:"max_pct"`
}

// DefaultChargeRange draws initial charges between 15 and 40 percent.
var DefaultChargeRange = ChargeRange{MinPct: 15, MaxPct: 40}

// Validate checks 0 <= MinPct <= MaxPct <= 100.
func (r ChargeRange) Validate() error {
	if !(r.MinPct >= 0 && r.MinPct <= r.MaxPct && r.MaxPct <= 100) {
		return fmt.Errorf("%w: initial charge range [%g, %g] must lie within [0, 100]", model.ErrInvalidConfiguration, r.MinPct, r.MaxPct)
	}
	return nil
}

func (r ChargeRange) uniform(src rand.Source) distuv.Uniform {
	return distuv.Uniform{Min: r.MinPct, Max: r.MaxPct, Src: src}
}

// NewSource returns a PCG source for seed. A zero seed derives one from the
// current time.
func NewSource(seed uint64) rand.Source {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)
}

// SampleInitialCharges returns a copy of fleet where every vehicle starts
// with a charge drawn uniformly from r.
func SampleInitialCharges(fleet model.Fleet, r ChargeRange, src rand.Source) (model.Fleet, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	u := r.uniform(src)
	charges := make([]float64, len(fleet))
	for i, v := range fleet {
		charges[i] = u.Rand() / 100 * v.Capacity
	}
	return fleet.WithInitialCharges(charges)
}

// Options configure SampleDeficit.
type Options struct {
	Iterations int
	// Workers defaults to GOMAXPROCS.
	Workers int
	// Seed makes runs reproducible for a fixed worker count. Zero seeds
	// from the clock.
	Seed uint64
	// Range defaults to DefaultChargeRange when nil. A zero range is a
	// valid choice meaning every vehicle starts empty.
	Range *ChargeRange
}

func (o Options) withDefaults() Options {
	if o.Iterations == 0 {
		o.Iterations = DefaultIterations
	}
	if o.Workers <= 0 {
		o.Workers = runtime.GOMAXPROCS(0)
	}
	if o.Workers > o.Iterations && o.Iterations > 0 {
		o.Workers = o.Iterations
	}
	if o.Range == nil {
		r := DefaultChargeRange
		o.Range = &r
	}
	if o.Seed == 0 {
		o.Seed = uint64(time.Now().UnixNano())
	}
	return o
}

// SampleDeficit draws opts.Iterations independent initial charge scenarios
// for the fleet described by groups and returns the total deficit of each.
// Draws are split across workers; the returned order carries no meaning.
func SampleDeficit(ctx context.Context, groups []model.VehicleGroup, opts Options) ([]float64, error) {
	if opts.Iterations < 0 {
		return nil, fmt.Errorf("%w: iterations must be positive, got %d", model.ErrInvalidConfiguration, opts.Iterations)
	}
	opts = opts.withDefaults()
	if err := opts.Range.Validate(); err != nil {
		return nil, err
	}
	for i, g := range groups {
		if err := g.Validate(); err != nil {
			return nil, fmt.Errorf("group %d: %w", i, err)
		}
	}

	out := make([]float64, opts.Iterations)
	chunk := (opts.Iterations + opts.Workers - 1) / opts.Workers
	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < opts.Workers; w++ {
		start := w * chunk
		if start >= len(out) {
			break
		}
		end := min(start+chunk, len(out))
		part := out[start:end]
		src := rand.NewPCG(opts.Seed, uint64(w))
		g.Go(func() error {
			return sampleInto(ctx, part, groups, opts.Range.uniform(src))
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func sampleInto(ctx context.Context, dst []float64, groups []model.VehicleGroup, u distuv.Uniform) error {
	for i := range dst {
		if i%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		var total float64
		for _, grp := range groups {
			for j := 0; j < grp.Count; j++ {
				total += grp.Capacity * (1 - u.Rand()/100)
			}
		}
		dst[i] = total
	}
	return nil
}
