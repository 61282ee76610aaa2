package engine

import (
	"errors"
	"math"

	"github.com/talgya/gridworks/internal/catalog"
	"github.com/talgya/gridworks/internal/entity"
	"github.com/talgya/gridworks/internal/transport"
)

// runWarehouse executes a warehouse's routes. Each direction shares
// RouteRate × level between its routes by weight; inbound routes pull from
// the partner up to the warehouse's free capacity, outbound routes push
// stored goods to the partner.
func (s *Simulation) runWarehouse(e *entity.Entity, def *catalog.BuildingDefinition) {
	if e.Warehouse == nil {
		e.Status = entity.StatusIdle
		return
	}
	rate := def.RouteRate * float64(e.Level)
	capacity := def.Capacity * float64(e.Level)
	moved := make(catalog.Amounts)
	starved := false

	stored := func() float64 {
		total := 0.0
		for _, v := range e.Storage {
			total += v
		}
		for _, v := range e.Incoming {
			total += v
		}
		return total
	}

	for _, r := range e.Warehouse.Inbound {
		partner := s.Store.Get(r.Partner)
		if partner == nil || partner == e {
			continue
		}
		amount := math.Min(rate*share(r, e.Warehouse.Inbound), partner.Amount(r.Resource))
		amount = math.Min(amount, capacity-stored())
		if amount <= 1e-9 {
			continue
		}
		n, err := s.Resolver.Transfer(partner, e, r.Resource, amount)
		if errors.Is(err, transport.ErrNoFuel) {
			starved = true
			continue
		}
		moved[r.Resource] += n
	}

	for _, r := range e.Warehouse.Outbound {
		partner := s.Store.Get(r.Partner)
		if partner == nil || partner == e {
			continue
		}
		amount := math.Min(rate*share(r, e.Warehouse.Outbound), e.Amount(r.Resource))
		if amount <= 1e-9 {
			continue
		}
		n, err := s.Resolver.Transfer(e, partner, r.Resource, amount)
		if errors.Is(err, transport.ErrNoFuel) {
			starved = true
			continue
		}
		moved[r.Resource] += n
	}

	e.LastOutput = moved
	switch {
	case len(moved) > 0:
		e.Status = entity.StatusWorking
	case starved:
		e.Status = entity.StatusNotEnoughFuel
	default:
		e.Status = entity.StatusIdle
	}
}

// share is r's weight over the total weight of routes.
func share(r entity.Route, routes []entity.Route) float64 {
	total := 0.0
	for _, x := range routes {
		total += math.Max(x.Weight, 0)
	}
	if total <= 0 {
		return 1 / float64(len(routes))
	}
	return math.Max(r.Weight, 0) / total
}
