package allocation

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/fleetcharge/core/model"
	"github.com/kilianp07/fleetcharge/infra/logger"
)

// fleetWithDeficits builds empty vehicles whose capacities equal the deficits.
func fleetWithDeficits(deficits ...float64) model.Fleet {
	f := make(model.Fleet, len(deficits))
	for i, d := range deficits {
		f[i] = model.Vehicle{Index: i, Capacity: d}
	}
	return f
}

func TestAllocate_SingleChargerServesLargestDeficit(t *testing.T) {
	res, err := Allocate(Request{
		Vehicles:  fleetWithDeficits(100, 50, 10),
		Resources: model.SingleChargerPool(1, 60),
		Rates:     model.RateCurve{1.0},
	})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{60}, {0}, {0}}, res.Matrix())
	assert.Equal(t, []float64{40, 50, 10}, res.RemainingDeficit())
	assert.InDelta(t, 100, res.Unmet(), 1e-9)
}

func TestAllocate_EachSlotCappedByNeed(t *testing.T) {
	res, err := Allocate(Request{
		Vehicles:  fleetWithDeficits(100, 50, 10),
		Resources: model.SingleChargerPool(3, 60),
		Rates:     model.RateCurve{1.0},
	})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{60}, {50}, {10}}, res.Matrix())
	asn := res.Assignments()
	require.Len(t, asn, 3)
	for i, a := range asn {
		assert.Equal(t, i, a.Slot)
		assert.Equal(t, i, a.Vehicle)
	}
}

func TestAllocate_DemandCeilingBindsFirst(t *testing.T) {
	res, err := Allocate(Request{
		Vehicles:      fleetWithDeficits(100, 50, 10),
		Resources:     model.SingleChargerPool(1, 60),
		Rates:         model.RateCurve{1.0},
		DemandCeiling: model.Ceiling(20),
	})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{20}, {0}, {0}}, res.Matrix())
}

func TestAllocate_CeilingExhaustedMidHour(t *testing.T) {
	res, err := Allocate(Request{
		Vehicles: fleetWithDeficits(100, 100, 100),
		Resources: []model.ResourceClass{
			{ID: 0, Count: 2, UnitCapacity: 50},
			{ID: 1, Count: 1, UnitCapacity: 50},
		},
		Rates:         model.RateCurve{1.0},
		DemandCeiling: model.Ceiling(70),
	})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{50}, {20}, {0}}, res.Matrix())
	asn := res.Assignments()
	require.Len(t, asn, 3, "the later class still consumes its slot")
	assert.Equal(t, 1, asn[2].ClassID)
	assert.Zero(t, asn[2].Energy)
}

func TestAllocate_NonPositiveCeilingDeliversNothing(t *testing.T) {
	for _, c := range []float64{0, -5} {
		res, err := Allocate(Request{
			Vehicles:      fleetWithDeficits(100, 50),
			Resources:     model.SingleChargerPool(2, 60),
			Rates:         model.RateCurve{1, 1},
			DemandCeiling: model.Ceiling(c),
		})
		require.NoError(t, err)
		assert.Zero(t, res.Sum())
		assert.InDelta(t, 150, res.Unmet(), 1e-9)
	}
}

func TestAllocate_PriorityRecomputedEveryHour(t *testing.T) {
	res, err := Allocate(Request{
		Vehicles:  fleetWithDeficits(100, 50, 10),
		Resources: model.SingleChargerPool(1, 60),
		Rates:     model.RateCurve{1, 1, 1},
	})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{60, 0, 40}, {0, 50, 0}, {0, 0, 0}}, res.Matrix())
	assert.InDelta(t, 10, res.Unmet(), 1e-9)
}

func TestAllocate_TieBreakOnLowerIndex(t *testing.T) {
	res, err := Allocate(Request{
		Vehicles:  fleetWithDeficits(50, 50),
		Resources: model.SingleChargerPool(1, 10),
		Rates:     model.RateCurve{1, 1},
	})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{10, 0}, {0, 10}}, res.Matrix())
}

func TestAllocate_RateScalesThroughput(t *testing.T) {
	res, err := Allocate(Request{
		Vehicles:  fleetWithDeficits(100),
		Resources: model.SingleChargerPool(1, 50),
		Rates:     model.RateCurve{0.5, 0.25},
	})
	require.NoError(t, err)
	assert.Equal(t, []float64{25, 12.5}, res.Row(0))
}

func TestAllocate_ZeroDeficitNeverTakesSlot(t *testing.T) {
	fleet := model.Fleet{
		{Index: 0, Capacity: 100, InitialCharge: 100},
		{Index: 1, Capacity: 80},
	}
	res, err := Allocate(Request{
		Vehicles:  fleet,
		Resources: model.SingleChargerPool(1, 30),
		Rates:     model.RateCurve{1},
	})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{0}, {30}}, res.Matrix())
}

func TestAllocate_LaterClassRevisitsPriorityOrder(t *testing.T) {
	classes := []model.ResourceClass{
		{ID: 0, Count: 1, UnitCapacity: 60},
		{ID: 1, Count: 1, UnitCapacity: 30},
	}
	res, err := Allocate(Request{Vehicles: fleetWithDeficits(100, 50, 10), Resources: classes, Rates: model.RateCurve{1}})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{90}, {0}, {0}}, res.Matrix())

	res, err = Allocate(Request{Vehicles: fleetWithDeficits(100, 50, 10), Resources: classes, Rates: model.RateCurve{1}, ExclusivePlug: true})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{60}, {30}, {0}}, res.Matrix())
}

func TestAllocate_GlobalSlotMode(t *testing.T) {
	classes := []model.ResourceClass{
		{ID: 0, Count: 1, UnitCapacity: 60},
		{ID: 1, Count: 2, UnitCapacity: 30},
	}
	res, err := Allocate(Request{Vehicles: fleetWithDeficits(100, 50, 10), Resources: classes, Rates: model.RateCurve{1}, Mode: model.Global, MaxConcurrent: 2})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{90}, {0}, {0}}, res.Matrix())
	require.Len(t, res.Assignments(), 2)
	assert.Equal(t, 0, res.Assignments()[0].ClassID)
	assert.Equal(t, 1, res.Assignments()[1].ClassID, "second class keeps one slot of the shared cap")

	res, err = Allocate(Request{Vehicles: fleetWithDeficits(100, 50, 10), Resources: classes, Rates: model.RateCurve{1}})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{90}, {30}, {0}}, res.Matrix())
}

func TestAllocate_GlobalSlotModeKeepsClassCounts(t *testing.T) {
	classes := []model.ResourceClass{
		{ID: 0, Count: 1, UnitCapacity: 100},
		{ID: 1, Count: 5, UnitCapacity: 10},
	}
	res, err := Allocate(Request{
		Vehicles:      fleetWithDeficits(100, 100, 100, 100, 100, 100),
		Resources:     classes,
		Rates:         model.RateCurve{1},
		Mode:          model.Global,
		MaxConcurrent: 6,
	})
	require.NoError(t, err)
	assert.InDelta(t, 150, res.Sum(), 1e-9)
	assert.Equal(t, 100.0, res.At(0, 0))
	for v := 1; v < 6; v++ {
		assert.Equal(t, 10.0, res.At(v, 0))
	}
}

func TestResult_Totals(t *testing.T) {
	res, err := Allocate(Request{Vehicles: fleetWithDeficits(100, 50, 10), Resources: model.SingleChargerPool(2, 40), Rates: model.RateCurve{1, 0.5}})
	require.NoError(t, err)
	assert.InDelta(t, 80, res.HourTotal(0), 1e-9)
	assert.InDelta(t, 30, res.HourTotal(1), 1e-9)
	assert.InDelta(t, 60, res.VehicleTotal(0), 1e-9)
	assert.InDelta(t, 50, res.VehicleTotal(1), 1e-9)
	assert.InDelta(t, 50, res.Unmet(), 1e-9)
}

func TestAllocate_EmptyFleet(t *testing.T) {
	res, err := Allocate(Request{Resources: model.SingleChargerPool(1, 60), Rates: model.RateCurve{1, 1}})
	require.NoError(t, err)
	assert.Zero(t, res.Rows())
	assert.Equal(t, 2, res.Hours())
	assert.Zero(t, res.Sum())
	assert.Nil(t, res.Dense())
	assert.Empty(t, res.HourColumn(0))
}

func TestAllocate_InvalidConfiguration(t *testing.T) {
	cases := map[string]Request{
		"capacity":     {Vehicles: model.Fleet{{Index: 0, Capacity: 0}}, Resources: model.SingleChargerPool(1, 10), Rates: model.RateCurve{1}},
		"count":        {Vehicles: fleetWithDeficits(10), Resources: model.SingleChargerPool(0, 10), Rates: model.RateCurve{1}},
		"unit":         {Vehicles: fleetWithDeficits(10), Resources: model.SingleChargerPool(1, 0), Rates: model.RateCurve{1}},
		"rates":        {Vehicles: fleetWithDeficits(10), Resources: model.SingleChargerPool(1, 10)},
		"no classes":   {Vehicles: fleetWithDeficits(10), Rates: model.RateCurve{1}},
		"duplicate":    {Vehicles: fleetWithDeficits(10), Resources: []model.ResourceClass{{Count: 1, UnitCapacity: 1}, {Count: 1, UnitCapacity: 1}}, Rates: model.RateCurve{1}},
		"mode":         {Vehicles: fleetWithDeficits(10), Resources: model.SingleChargerPool(1, 10), Rates: model.RateCurve{1}, Mode: model.SlotMode(7)},
		"global cap":   {Vehicles: fleetWithDeficits(10), Resources: model.SingleChargerPool(1, 10), Rates: model.RateCurve{1}, Mode: model.Global},
		"nan capacity": {Vehicles: model.Fleet{{Index: 0, Capacity: math.NaN()}}, Resources: model.SingleChargerPool(1, 10), Rates: model.RateCurve{1}},
		"inf capacity": {Vehicles: model.Fleet{{Index: 0, Capacity: math.Inf(1)}}, Resources: model.SingleChargerPool(1, 10), Rates: model.RateCurve{1}},
		"nan charge":   {Vehicles: model.Fleet{{Index: 0, Capacity: 10, InitialCharge: math.NaN()}}, Resources: model.SingleChargerPool(1, 10), Rates: model.RateCurve{1}},
		"nan unit":     {Vehicles: fleetWithDeficits(10), Resources: model.SingleChargerPool(1, math.NaN()), Rates: model.RateCurve{1}},
		"inf unit":     {Vehicles: fleetWithDeficits(10), Resources: model.SingleChargerPool(1, math.Inf(1)), Rates: model.RateCurve{1}},
		"nan rate":     {Vehicles: fleetWithDeficits(10), Resources: model.SingleChargerPool(1, 10), Rates: model.RateCurve{math.NaN()}},
		"nan ceiling":  {Vehicles: fleetWithDeficits(10), Resources: model.SingleChargerPool(1, 10), Rates: model.RateCurve{1}, DemandCeiling: model.Ceiling(math.NaN())},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			res, err := Allocate(req)
			if !errors.Is(err, model.ErrInvalidConfiguration) {
				t.Fatalf("expected invalid configuration, got %v", err)
			}
			if res != nil {
				t.Fatalf("expected no result")
			}
		})
	}
}

func TestEngine_LogsEachHour(t *testing.T) {
	e := NewEngine(logger.NopLogger{})
	res, err := e.Allocate(Request{Vehicles: fleetWithDeficits(10), Resources: model.SingleChargerPool(1, 5), Rates: model.RateCurve{1, 1}})
	require.NoError(t, err)
	assert.InDelta(t, 10, res.Sum(), 1e-9)
}

func randomRequest(r *rand.Rand) Request {
	n := r.Intn(12)
	fleet := make(model.Fleet, n)
	for i := range fleet {
		c := 50 + r.Float64()*250
		fleet[i] = model.Vehicle{Index: i, Capacity: c, InitialCharge: r.Float64() * c}
	}
	classes := make([]model.ResourceClass, 1+r.Intn(3))
	for i := range classes {
		classes[i] = model.ResourceClass{ID: i, Count: 1 + r.Intn(4), UnitCapacity: 10 + r.Float64()*90}
	}
	rates := make(model.RateCurve, 1+r.Intn(10))
	for i := range rates {
		rates[i] = 0.1 + r.Float64()*0.9
	}
	req := Request{Vehicles: fleet, Resources: classes, Rates: rates, ExclusivePlug: r.Intn(2) == 0}
	if r.Intn(2) == 0 {
		req.Mode = model.Global
		req.MaxConcurrent = 1 + r.Intn(model.TotalSlots(classes))
	}
	if r.Intn(2) == 0 {
		req.DemandCeiling = model.Ceiling(r.Float64() * 200)
	}
	return req
}

func TestAllocate_Invariants(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	const eps = 1e-6
	for i := 0; i < 200; i++ {
		req := randomRequest(r)
		res, err := Allocate(req)
		require.NoError(t, err)

		for v, veh := range req.Vehicles {
			var total float64
			for h := 0; h < res.Hours(); h++ {
				e := res.At(v, h)
				if e < 0 {
					t.Fatalf("negative allocation %v", e)
				}
				total += e
			}
			if total > veh.Deficit()+eps {
				t.Fatalf("vehicle %d over-delivered: %v > %v", v, total, veh.Deficit())
			}
		}

		for h, rate := range req.Rates {
			var supply float64
			for _, c := range req.Resources {
				supply += c.Throughput(rate)
			}
			got := res.HourTotal(h)
			if got > supply+eps {
				t.Fatalf("hour %d over-supplied: %v > %v", h, got, supply)
			}
			if req.DemandCeiling != nil && got > math.Max(*req.DemandCeiling, 0)+eps {
				t.Fatalf("hour %d exceeds ceiling: %v > %v", h, got, *req.DemandCeiling)
			}
		}

		perClass := map[[2]int]map[int]bool{}
		perHour := map[int]int{}
		for _, a := range res.Assignments() {
			if a.Energy <= 0 {
				continue
			}
			perHour[a.Hour]++
			k := [2]int{a.Hour, a.ClassID}
			if perClass[k] == nil {
				perClass[k] = map[int]bool{}
			}
			perClass[k][a.Vehicle] = true
		}
		for k, vs := range perClass {
			if len(vs) > req.Resources[k[1]].Count {
				t.Fatalf("class %d served %d vehicles in hour %d", k[1], len(vs), k[0])
			}
		}
		if req.Mode == model.Global {
			for h, n := range perHour {
				if n > req.MaxConcurrent {
					t.Fatalf("hour %d used %d slots over the shared cap %d", h, n, req.MaxConcurrent)
				}
			}
		}

		again, err := Allocate(req)
		require.NoError(t, err)
		assert.Equal(t, res.Matrix(), again.Matrix(), "allocation must be deterministic")
	}
}
