package engine

import (
	"sort"

	"github.com/talgya/gridworks/internal/catalog"
	"github.com/talgya/gridworks/internal/entity"
	"github.com/talgya/gridworks/internal/power"
	"github.com/talgya/gridworks/internal/production"
	"github.com/talgya/gridworks/internal/world"
)

// Rates is an entity's per-second IO under both evaluations.
type Rates struct {
	Stable production.Result `json:"stable"`
	Live   production.Result `json:"live"`
}

// EntityView is a read-only copy of one entity with its derived rates.
type EntityView struct {
	*entity.Entity
	Status       string           `json:"status_name"`
	Construction string           `json:"construction_name"`
	Rates        Rates            `json:"rates"`
	Industry     string           `json:"industry,omitempty"`
	Recipes      []string         `json:"recipes,omitempty"`
	NextLevel    float64          `json:"next_level_cost"`
	Key          string           `json:"key"`
	Neighbors    []world.HexCoord `json:"neighbors,omitempty"`
}

// PriceView is the public price state of one resource.
type PriceView struct {
	Resource   catalog.ResourceKey `json:"resource"`
	Price      float64             `json:"price"`
	BasePrice  float64             `json:"base_price"`
	Elasticity float64             `json:"elasticity"`
	Net        float64             `json:"net"`
	LastNet    float64             `json:"last_net"`
	Rate       float64             `json:"rate"`
	Cliff      float64             `json:"cliff"`
	Depot      float64             `json:"depot"`
	AutoSell   bool                `json:"auto_sell"`
}

// viewCalc returns a calculator over a cache rebuilt from the current store.
// Queries never touch the tick's own cache, whose snapshot must stay fixed
// while the queue drains.
func (s *Simulation) viewCalc() *production.Calculator {
	cache := production.NewBoostCache()
	cache.Rebuild(s.Store, s.Catalog)
	calc := *s.Calc
	calc.Cache = cache
	return &calc
}

func (s *Simulation) rates(calc *production.Calculator, e *entity.Entity, def *catalog.BuildingDefinition) Rates {
	ticks := e.Ticks(def)
	return Rates{
		Stable: production.Rate(calc.Amounts(e, def, production.Stable, s.Tick), ticks, s.Tuning.TickSeconds),
		Live:   production.Rate(calc.Amounts(e, def, production.Live, s.Tick), ticks, s.Tuning.TickSeconds),
	}
}

// EntityRate is the entity's per-second IO under mode.
func (s *Simulation) EntityRate(grid world.HexCoord, mode production.Mode) (production.Result, bool) {
	e := s.Store.Get(grid)
	if e == nil {
		return production.Result{}, false
	}
	def, ok := s.Catalog.Building(e.Type)
	if !ok {
		return production.Result{}, false
	}
	calc := s.viewCalc()
	r := calc.Amounts(e, def, mode, s.Tick)
	return production.Rate(r, e.Ticks(def), s.Tuning.TickSeconds), true
}

// EntityStatus is the visible state of the entity at grid.
func (s *Simulation) EntityStatus(grid world.HexCoord) (entity.Status, bool) {
	e := s.Store.Get(grid)
	if e == nil {
		return entity.StatusIdle, false
	}
	return e.Status, true
}

// Entity returns a view of the entity at grid.
func (s *Simulation) Entity(grid world.HexCoord) (EntityView, bool) {
	e := s.Store.Get(grid)
	if e == nil {
		return EntityView{}, false
	}
	return s.view(s.viewCalc(), e), true
}

// Entities returns views of every entity in grid order, optionally filtered
// by type.
func (s *Simulation) Entities(typ catalog.BuildingKey) []EntityView {
	calc := s.viewCalc()
	var out []EntityView
	for _, e := range s.Store.All() {
		if typ != "" && e.Type != typ {
			continue
		}
		out = append(out, s.view(calc, e))
	}
	return out
}

func (s *Simulation) view(calc *production.Calculator, e *entity.Entity) EntityView {
	v := EntityView{
		Entity:       e.Clone(),
		Status:       e.Status.String(),
		Construction: e.Construction.String(),
		Key:          e.Grid.Key(),
	}
	def, ok := s.Catalog.Building(e.Type)
	if !ok {
		return v
	}
	v.Industry = def.Industry
	v.NextLevel = catalog.LevelCost(def, e.Level+1, s.Tuning.LevelCostGrowth)
	for _, r := range def.Recipes {
		if e.Level >= r.MinLevel {
			v.Recipes = append(v.Recipes, r.Key)
		}
	}
	for _, n := range s.Store.Neighbors(e.Grid) {
		v.Neighbors = append(v.Neighbors, n.Grid)
	}
	if e.Active() {
		v.Rates = s.rates(calc, e, def)
	}
	return v
}

// PriceInfo returns the price state of res.
func (s *Simulation) PriceInfo(res catalog.ResourceKey) (PriceView, bool) {
	me := s.Market.Entry(res)
	if me == nil {
		return PriceView{}, false
	}
	return PriceView{
		Resource:   res,
		Price:      s.Market.Price(res),
		BasePrice:  me.BasePrice,
		Elasticity: me.Elasticity,
		Net:        me.Net,
		LastNet:    me.LastNet,
		Rate:       me.Rate,
		Cliff:      s.Market.Cliff(res),
		Depot:      s.Depot.Amount(res),
		AutoSell:   s.AutoSell[res],
	}, true
}

// PriceTable returns every priced resource in key order.
func (s *Simulation) PriceTable() []PriceView {
	var out []PriceView
	for _, k := range s.Market.Keys() {
		if v, ok := s.PriceInfo(k); ok {
			out = append(out, v)
		}
	}
	return out
}

// PowerBalance is the grid balance of the last prepared tick.
func (s *Simulation) PowerBalance() power.Balance {
	return s.Grid.Balance()
}

// StatusCounts counts entities per status name.
func (s *Simulation) StatusCounts() map[string]int {
	out := make(map[string]int)
	for _, e := range s.Store.All() {
		out[e.Status.String()]++
	}
	return out
}

// BuildingInfo describes a catalog entry for the current session.
type BuildingInfo struct {
	Key        catalog.BuildingKey `json:"key"`
	Industry   string              `json:"industry,omitempty"`
	Cost       float64             `json:"cost"`
	UnlockCost float64             `json:"unlock_cost"`
	Unlocked   bool                `json:"unlocked"`
	Available  bool                `json:"available"`
	Power      float64             `json:"power"`
	Inputs     catalog.Amounts     `json:"inputs,omitempty"`
	Outputs    catalog.Amounts     `json:"outputs,omitempty"`
	Placed     int                 `json:"placed"`
}

// Buildings lists the session catalog in key order.
func (s *Simulation) Buildings() []BuildingInfo {
	counts := s.Store.CountByType()
	keys := s.Catalog.BuildingKeys()
	out := make([]BuildingInfo, 0, len(keys))
	for _, k := range keys {
		def, _ := s.Catalog.Building(k)
		io := def.IO(def.DefaultRecipe, 0.5)
		out = append(out, BuildingInfo{
			Key:        k,
			Industry:   def.Industry,
			Cost:       catalog.LevelCost(def, 1, s.Tuning.LevelCostGrowth),
			UnlockCost: def.UnlockCost,
			Unlocked:   s.IsUnlocked(k),
			Available:  s.Available(k),
			Power:      io.Power,
			Inputs:     io.Inputs,
			Outputs:    io.Outputs,
			Placed:     counts[k],
		})
	}
	return out
}

// PolicyInfo describes a policy and whether it is active.
type PolicyInfo struct {
	Key         string  `json:"key"`
	Description string  `json:"description"`
	Cost        float64 `json:"cost"`
	Active      bool    `json:"active"`
}

// PolicyList lists the policy table in key order.
func (s *Simulation) PolicyList() []PolicyInfo {
	out := make([]PolicyInfo, 0, len(s.PolicyTable))
	for k, p := range s.PolicyTable {
		out = append(out, PolicyInfo{Key: k, Description: p.Description, Cost: p.Cost, Active: s.Policies[k]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
