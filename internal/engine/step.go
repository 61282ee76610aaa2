package engine

import (
	"math"

	"github.com/talgya/gridworks/internal/catalog"
	"github.com/talgya/gridworks/internal/entity"
	"github.com/talgya/gridworks/internal/production"
	"github.com/talgya/gridworks/internal/transport"
)

// runEntity is one entity's production step: source inputs, check power,
// convert inputs to outputs.
func (s *Simulation) runEntity(e *entity.Entity) {
	def, ok := s.Catalog.Building(e.Type)
	if !ok {
		return
	}
	e.LastInput, e.LastOutput, e.LastPower = nil, nil, 0

	switch def.Kind {
	case catalog.KindBank, catalog.KindZone:
		e.Status = entity.StatusWorking
		return
	case catalog.KindWarehouse:
		s.runWarehouse(e, def)
		return
	}

	r := s.Calc.Amounts(e, def, production.Live, s.Tick)

	fuelStarved := s.source(e, def, r)
	for _, k := range r.Inputs.Keys() {
		if !e.Has(k, r.Inputs[k]) {
			if fuelStarved {
				e.Status = entity.StatusNotEnoughFuel
			} else {
				e.Status = entity.StatusNotEnoughResources
			}
			return
		}
	}

	if r.Power < 0 {
		if !s.drawPower(e, def, -r.Power) {
			e.Status = entity.StatusNotEnoughPower
			return
		}
	}

	if err := e.DebitAll(r.Inputs); err != nil {
		s.invariant("storage", "pre-checked input debit failed", "grid", e.Grid, "error", err)
		e.Status = entity.StatusNotEnoughResources
		return
	}
	for k, v := range r.Inputs {
		s.tickStats.consumed[k] += v
	}

	if r.Power > 0 {
		s.Grid.AddSupply(r.Power)
	}
	for _, k := range r.Outputs.Keys() {
		s.deliverOutput(e, def, k, r.Outputs[k])
	}

	e.LastInput = r.Inputs
	e.LastOutput = r.Outputs
	e.LastPower = r.Power
	if def.IsGenerator() && r.Power == 0 && len(r.Outputs) == 0 {
		e.Status = entity.StatusIdle
		return
	}
	e.Status = entity.StatusWorking
}

// source requests every input the entity is short of. It reports whether any
// request failed for lack of fuel.
func (s *Simulation) source(e *entity.Entity, def *catalog.BuildingDefinition, r production.Result) bool {
	fuelStarved := false
	buffer := s.bufferTicks(e)
	for _, k := range r.Inputs.Keys() {
		perRun := r.Inputs[k]
		have := e.Amount(k) + e.Incoming[k]
		target := perRun * buffer
		if have >= target || perRun <= 0 {
			continue
		}
		out := s.Resolver.Resolve(transport.Request{
			Consumer: e,
			Resource: k,
			Amount:   target - have,
			Min:      math.Max(perRun-e.Amount(k), 0),
		})
		if out.Result == transport.NoFuel {
			fuelStarved = true
		}
	}
	return fuelStarved
}

// bufferTicks is how many runs of input the entity tries to keep on hand.
func (s *Simulation) bufferTicks(e *entity.Entity) float64 {
	var b float64
	switch e.Buffer {
	case entity.BufferStockpile:
		b = s.Tuning.StockpileBufferTicks
	case entity.BufferFixed:
		b = e.BufferMultiplier
	default:
		b = s.Tuning.AutoBufferTicks
	}
	if e.CapacityMultiplier > 0 {
		b *= e.CapacityMultiplier
	}
	return math.Max(b, 1)
}

// drawPower takes need from the grid, or for capacitors from their charge
// after topping it up from the grid.
func (s *Simulation) drawPower(e *entity.Entity, def *catalog.BuildingDefinition, need float64) bool {
	if e.Charge == nil {
		if !s.Grid.HasEnoughPower(need) {
			return false
		}
		if !s.Grid.TryDeductPower(need) {
			s.invariant("power", "pre-checked power deduction failed", "grid", e.Grid, "amount", need)
			return false
		}
		return true
	}

	capacity := def.Capacity * float64(e.Level)
	top := math.Min(capacity-e.Charge.Charge, 2*need)
	if top > 0 && s.Grid.HasEnoughPower(top) {
		if s.Grid.TryDeductPower(top) {
			e.Charge.Charge += top
		} else {
			s.invariant("power", "pre-checked capacitor charge failed", "grid", e.Grid, "amount", top)
		}
	}
	if e.Charge.Charge+1e-9 < need {
		return false
	}
	e.Charge.Charge = math.Max(e.Charge.Charge-need, 0)
	return true
}

// deliverOutput stores produced goods, sending the fuel resource and any
// overflow beyond the output buffer to the depot.
func (s *Simulation) deliverOutput(e *entity.Entity, def *catalog.BuildingDefinition, k catalog.ResourceKey, amount float64) {
	s.tickStats.produced[k] += amount
	if k == s.Catalog.FuelResource {
		s.Depot.Deposit(k, amount)
		return
	}
	limit := amount * s.Tuning.OutputBufferTicks
	if e.CapacityMultiplier > 0 {
		limit *= e.CapacityMultiplier
	}
	keep := math.Max(math.Min(amount, limit-e.Amount(k)), 0)
	if keep > 0 {
		if err := e.Credit(k, keep); err != nil {
			s.invariant("storage", "output credit rejected", "grid", e.Grid, "resource", k, "error", err)
			return
		}
	}
	if rest := amount - keep; rest > 0 {
		s.Depot.Deposit(k, rest)
	}
}
