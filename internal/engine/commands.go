package engine

import (
	"log/slog"
	"math"
	"slices"

	"github.com/talgya/gridworks/internal/batch"
	"github.com/talgya/gridworks/internal/catalog"
	"github.com/talgya/gridworks/internal/entity"
	"github.com/talgya/gridworks/internal/world"
)

// Receipt reports the outcome of a command that spends or earns cash.
// Rejections carry a reason and leave the session untouched.
type Receipt struct {
	OK     bool    `json:"ok"`
	Reason string  `json:"reason,omitempty"`
	Cost   float64 `json:"cost,omitempty"`
	Gain   float64 `json:"gain,omitempty"`
}

func reject(reason string) Receipt {
	return Receipt{Reason: reason}
}

// Route directions for AddRoute.
const (
	Inbound  = "inbound"
	Outbound = "outbound"
)

// PlaceBuilding puts an active level-1 entity at grid, seeded with initial
// storage. It returns nil without effect when the grid is occupied or the
// type is unknown.
func (s *Simulation) PlaceBuilding(grid world.HexCoord, typ catalog.BuildingKey, initial catalog.Amounts) *entity.Entity {
	def, ok := s.Catalog.Building(typ)
	if !ok {
		return nil
	}
	if s.Store.Get(grid) != nil {
		return nil
	}
	e := entity.New(grid, def)
	for _, k := range initial.Keys() {
		if _, known := s.Catalog.Resource(k); !known {
			continue
		}
		if err := e.Credit(k, initial[k]); err != nil {
			slog.Warn("initial storage rejected", "grid", grid, "resource", k, "error", err)
		}
	}
	s.Store.Insert(e)
	return e
}

// RemoveBuilding detaches the entity at grid and returns it, or nil. Routes
// and overrides naming it are removed; refunds are the caller's business.
func (s *Simulation) RemoveBuilding(grid world.HexCoord) *entity.Entity {
	return s.Store.Detach(grid)
}

// IsUnlocked reports whether typ may be built. Buildings without an unlock
// cost are always unlocked.
func (s *Simulation) IsUnlocked(typ catalog.BuildingKey) bool {
	def, ok := s.Catalog.Building(typ)
	if !ok {
		return false
	}
	return def.UnlockCost <= 0 || s.Unlocked[typ]
}

// Unlock researches typ, paying its unlock cost once.
func (s *Simulation) Unlock(typ catalog.BuildingKey) Receipt {
	def, ok := s.Catalog.Building(typ)
	switch {
	case !ok:
		return reject("unknown building type")
	case s.IsUnlocked(typ):
		return reject("already unlocked")
	}
	if err := s.Treasury.Spend(def.UnlockCost); err != nil {
		return reject("insufficient funds")
	}
	s.Unlocked[typ] = true
	slog.Info("building unlocked", "type", typ, "cost", def.UnlockCost)
	return Receipt{OK: true, Cost: def.UnlockCost}
}

// Available reports whether typ passes its availability predicate now.
func (s *Simulation) Available(typ catalog.BuildingKey) bool {
	def, ok := s.Catalog.Building(typ)
	if !ok {
		return false
	}
	if def.Available == nil {
		return s.IsUnlocked(typ)
	}
	return def.Available(catalog.AvailabilityContext{
		Profile:  s.Profile.Key,
		Unlocked: s.IsUnlocked(typ),
		Counts:   s.Store.CountByType(),
	})
}

// Build places a construction site for typ at grid. The level-1 cost is paid
// now; with allowDefer an unaffordable site waits unpaid until cash allows.
func (s *Simulation) Build(grid world.HexCoord, typ catalog.BuildingKey, allowDefer bool) Receipt {
	def, ok := s.Catalog.Building(typ)
	switch {
	case !ok:
		return reject("unknown building type")
	case !s.IsUnlocked(typ):
		return reject("building locked")
	case !s.Available(typ):
		return reject("building unavailable")
	case s.Store.Get(grid) != nil:
		return reject("grid occupied")
	case !def.Placeable(s.Map.Get(grid)):
		return reject("tile does not allow this building")
	}

	cost := catalog.LevelCost(def, 1, s.Tuning.LevelCostGrowth)
	e := entity.New(grid, def)
	if err := s.Treasury.Spend(cost); err != nil {
		if !allowDefer {
			return reject("insufficient funds")
		}
		e.Construction = entity.ConstructionUnpaid
		e.Status = entity.StatusUnderConstruction
		s.Store.Insert(e)
		return Receipt{OK: true, Reason: "deferred until funds allow"}
	}
	e.Invested = cost
	e.Construction = entity.ConstructionQueued
	e.Status = entity.StatusUnderConstruction
	s.Store.Insert(e)
	return Receipt{OK: true, Cost: cost}
}

// SellBuilding removes the entity at grid for a refund.
func (s *Simulation) SellBuilding(grid world.HexCoord) Receipt {
	if s.Store.Get(grid) == nil {
		return reject("no building at grid")
	}
	gain := batch.Liquidate(s.Store, s.Treasury, s.Depot, s.Tuning, grid)
	return Receipt{OK: true, Gain: gain}
}

// withEntity runs fn on the active or constructing entity at grid and its
// definition. It returns false when either is missing.
func (s *Simulation) withEntity(grid world.HexCoord, fn func(*entity.Entity, *catalog.BuildingDefinition) bool) bool {
	e := s.Store.Get(grid)
	if e == nil {
		return false
	}
	def, ok := s.Catalog.Building(e.Type)
	if !ok {
		return false
	}
	return fn(e, def)
}

// SetEntityLevel sets the level directly. A recipe no longer unlocked at the
// new level reverts to the default.
func (s *Simulation) SetEntityLevel(grid world.HexCoord, level int) bool {
	if level < 1 {
		return false
	}
	return s.withEntity(grid, func(e *entity.Entity, def *catalog.BuildingDefinition) bool {
		e.Level = level
		if e.Recipe != nil && def.HasRecipes() && !def.RecipeUnlocked(e.Recipe.Active, level) {
			e.Recipe.Active = def.DefaultRecipe
		}
		return true
	})
}

func (s *Simulation) SetTurnOff(grid world.HexCoord, off bool) bool {
	return s.withEntity(grid, func(e *entity.Entity, _ *catalog.BuildingDefinition) bool {
		e.TurnedOff = off
		if off {
			e.Status = entity.StatusTurnedOff
		} else if e.Status == entity.StatusTurnedOff {
			e.Status = entity.StatusIdle
		}
		return true
	})
}

func (s *Simulation) SetHighPriority(grid world.HexCoord, on bool) bool {
	return s.withEntity(grid, func(e *entity.Entity, _ *catalog.BuildingDefinition) bool {
		e.HighPriority = on
		return true
	})
}

func (s *Simulation) SetAllowPartial(grid world.HexCoord, on bool) bool {
	return s.withEntity(grid, func(e *entity.Entity, _ *catalog.BuildingDefinition) bool {
		e.AllowPartial = on
		return true
	})
}

// SetSearchRadius limits supplier search; 0 removes the limit.
func (s *Simulation) SetSearchRadius(grid world.HexCoord, radius int) bool {
	if radius < 0 {
		return false
	}
	return s.withEntity(grid, func(e *entity.Entity, _ *catalog.BuildingDefinition) bool {
		e.SearchRadius = radius
		return true
	})
}

// SetBuffer selects the input buffer policy. multiplier is the run count for
// BufferFixed and must be at least 1 there.
func (s *Simulation) SetBuffer(grid world.HexCoord, policy entity.BufferPolicy, multiplier float64) bool {
	if policy > entity.BufferFixed || (policy == entity.BufferFixed && !(multiplier >= 1)) {
		return false
	}
	return s.withEntity(grid, func(e *entity.Entity, _ *catalog.BuildingDefinition) bool {
		e.Buffer = policy
		e.BufferMultiplier = 0
		if policy == entity.BufferFixed {
			e.BufferMultiplier = multiplier
		}
		return true
	})
}

// SetCapacityMultiplier scales buffers and output storage; 0 resets it.
func (s *Simulation) SetCapacityMultiplier(grid world.HexCoord, f float64) bool {
	if f < 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return false
	}
	return s.withEntity(grid, func(e *entity.Entity, _ *catalog.BuildingDefinition) bool {
		e.CapacityMultiplier = f
		return true
	})
}

// SetTickLength makes the entity run once every n ticks; 0 restores the
// catalog default.
func (s *Simulation) SetTickLength(grid world.HexCoord, n int) bool {
	if n < 0 {
		return false
	}
	return s.withEntity(grid, func(e *entity.Entity, _ *catalog.BuildingDefinition) bool {
		e.TickLength = n
		return true
	})
}

// SetInputOverride pins the supplier of res for the entity at grid. A nil
// source clears the override. The entity must consume res and the source
// must be another placed entity.
func (s *Simulation) SetInputOverride(grid world.HexCoord, res catalog.ResourceKey, source *world.HexCoord, fallback entity.Fallback) bool {
	if fallback > entity.FallbackSkip {
		return false
	}
	return s.withEntity(grid, func(e *entity.Entity, def *catalog.BuildingDefinition) bool {
		if source == nil {
			if _, ok := e.Overrides[res]; !ok {
				return false
			}
			delete(e.Overrides, res)
			return true
		}
		if _, ok := e.IO(def).Inputs[res]; !ok {
			return false
		}
		if *source == grid || s.Store.Get(*source) == nil {
			return false
		}
		if e.Overrides == nil {
			e.Overrides = make(map[catalog.ResourceKey]entity.SourceOverride)
		}
		e.Overrides[res] = entity.SourceOverride{Source: *source, Fallback: fallback}
		return true
	})
}

// SetRecipe selects a recipe, which must be unlocked at the current level.
func (s *Simulation) SetRecipe(grid world.HexCoord, key string) bool {
	return s.withEntity(grid, func(e *entity.Entity, def *catalog.BuildingDefinition) bool {
		if e.Recipe == nil || !def.RecipeUnlocked(key, e.Level) {
			return false
		}
		e.Recipe.Active = key
		return true
	})
}

// SetMix sets the input ratio of a dynamic building.
func (s *Simulation) SetMix(grid world.HexCoord, mix float64) bool {
	if !(mix >= 0 && mix <= 1) {
		return false
	}
	return s.withEntity(grid, func(e *entity.Entity, def *catalog.BuildingDefinition) bool {
		if def.Dynamic == nil || e.Recipe == nil {
			return false
		}
		e.Recipe.Mix = mix
		return true
	})
}

// AddRoute links a warehouse to a partner for res in the given direction.
// An existing route for the same partner and resource has its weight replaced.
func (s *Simulation) AddRoute(warehouse world.HexCoord, direction string, r entity.Route) bool {
	if !(r.Weight > 0) || r.Partner == warehouse || s.Store.Get(r.Partner) == nil {
		return false
	}
	if _, ok := s.Catalog.Resource(r.Resource); !ok {
		return false
	}
	return s.withEntity(warehouse, func(e *entity.Entity, _ *catalog.BuildingDefinition) bool {
		if e.Warehouse == nil {
			return false
		}
		var routes *[]entity.Route
		switch direction {
		case Inbound:
			routes = &e.Warehouse.Inbound
		case Outbound:
			routes = &e.Warehouse.Outbound
		default:
			return false
		}
		for i, x := range *routes {
			if x.Partner == r.Partner && x.Resource == r.Resource {
				(*routes)[i].Weight = r.Weight
				return true
			}
		}
		*routes = append(*routes, r)
		return true
	})
}

// RemoveRoute drops every route between warehouse and partner for res.
func (s *Simulation) RemoveRoute(warehouse, partner world.HexCoord, res catalog.ResourceKey) bool {
	return s.withEntity(warehouse, func(e *entity.Entity, _ *catalog.BuildingDefinition) bool {
		if e.Warehouse == nil {
			return false
		}
		match := func(x entity.Route) bool { return x.Partner == partner && x.Resource == res }
		before := len(e.Warehouse.Inbound) + len(e.Warehouse.Outbound)
		e.Warehouse.Inbound = slices.DeleteFunc(e.Warehouse.Inbound, match)
		e.Warehouse.Outbound = slices.DeleteFunc(e.Warehouse.Outbound, match)
		return len(e.Warehouse.Inbound)+len(e.Warehouse.Outbound) < before
	})
}

// TogglePolicy activates or deactivates a policy. Activation pays the policy
// cost. The catalog is re-prepared at the next tick boundary.
func (s *Simulation) TogglePolicy(key string, on bool) Receipt {
	p, ok := s.PolicyTable[key]
	if !ok {
		return reject("unknown policy")
	}
	if s.Policies[key] == on {
		return reject("policy already in that state")
	}
	cost := 0.0
	if on {
		if err := s.Treasury.Spend(p.Cost); err != nil {
			return reject("insufficient funds")
		}
		cost = p.Cost
		s.Policies[key] = true
	} else {
		delete(s.Policies, key)
	}
	s.catalogDirty = true
	slog.Info("policy toggled", "policy", key, "active", on, "cost", cost)
	return Receipt{OK: true, Cost: cost}
}

// SetAutoSell adds or removes res from the end-of-tick sell set.
func (s *Simulation) SetAutoSell(res catalog.ResourceKey, on bool) bool {
	if _, ok := s.Catalog.Resource(res); !ok {
		return false
	}
	if on {
		s.AutoSell[res] = true
	} else {
		delete(s.AutoSell, res)
	}
	return true
}

// SetPermits changes the permit cap from the next tick on; 0 is unlimited.
func (s *Simulation) SetPermits(n int) bool {
	if n < 0 {
		return false
	}
	s.Permits = n
	return true
}

// BatchApply runs a batch action over the group selected from ref.
func (s *Simulation) BatchApply(ref world.HexCoord, mode batch.Mode, action batch.Action) batch.Result {
	return s.Operator().Apply(ref, mode, action)
}

// SellResource sells qty of res from the depot at the elastic spot price.
func (s *Simulation) SellResource(res catalog.ResourceKey, qty float64) Receipt {
	if !(qty > 0) {
		return reject("quantity must be positive")
	}
	if s.Depot.Amount(res)+1e-9 < qty {
		return reject("depot holds too little")
	}
	revenue, err := s.Market.Sell(res, qty)
	if err != nil {
		return reject("resource has no price")
	}
	if err := s.Depot.Withdraw(res, qty); err != nil {
		s.invariant("depot", "pre-checked depot withdrawal failed", "resource", res, "error", err)
		return reject("depot holds too little")
	}
	s.Treasury.Earn(revenue)
	return Receipt{OK: true, Gain: revenue}
}

// BuyResource buys qty of res into the depot.
func (s *Simulation) BuyResource(res catalog.ResourceKey, qty float64) Receipt {
	if !(qty > 0) {
		return reject("quantity must be positive")
	}
	if s.Market.Entry(res) == nil {
		return reject("resource has no price")
	}
	cost := s.Market.QuoteBuy(res, qty)
	if !s.Treasury.CanAfford(cost) {
		return reject("insufficient funds")
	}
	paid, err := s.Market.Buy(res, qty)
	if err != nil {
		return reject("resource has no price")
	}
	if err := s.Treasury.Purchase(paid); err != nil {
		s.invariant("treasury", "pre-checked purchase failed", "resource", res, "error", err)
		return reject("insufficient funds")
	}
	s.Depot.Deposit(res, qty)
	return Receipt{OK: true, Cost: paid}
}
