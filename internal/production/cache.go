// Package production computes effective per-entity input/output amounts from
// the multiplier stack, and keeps the per-tick adjacency and boost caches the
// stack reads.
package production

import (
	"github.com/talgya/gridworks/internal/catalog"
	"github.com/talgya/gridworks/internal/entity"
	"github.com/talgya/gridworks/internal/world"
)

// Mode selects between steady-state and live evaluation.
type Mode uint8

const (
	// Stable counts placed neighbours and ignores market news.
	Stable Mode = iota
	// Live counts neighbours that worked last tick and applies market news.
	Live
)

// BoostCache is rebuilt once per tick, before any entity runs. It snapshots
// which entities were working at the start of the tick so that the drain
// order within the tick cannot change any entity's multipliers.
type BoostCache struct {
	working map[world.HexCoord]bool
	placed  map[world.HexCoord]bool

	stableBoost map[world.HexCoord]float64
	liveBoost   map[world.HexCoord]float64

	// zoneBonus is the productionMultiplier contribution per industry.
	stableZone map[string]float64
	liveZone   map[string]float64

	boosters int

	adjStable map[world.HexCoord]int
	adjLive   map[world.HexCoord]int

	store *entity.Store
	cat   *catalog.Catalog
}

// NewBoostCache returns an empty cache; Rebuild must run before use.
func NewBoostCache() *BoostCache {
	return &BoostCache{}
}

// Rebuild recomputes every boost from the current store.
func (c *BoostCache) Rebuild(store *entity.Store, cat *catalog.Catalog) {
	c.store = store
	c.cat = cat
	c.working = make(map[world.HexCoord]bool)
	c.placed = make(map[world.HexCoord]bool)
	c.stableBoost = make(map[world.HexCoord]float64)
	c.liveBoost = make(map[world.HexCoord]float64)
	c.stableZone = make(map[string]float64)
	c.liveZone = make(map[string]float64)
	c.adjStable = make(map[world.HexCoord]int)
	c.adjLive = make(map[world.HexCoord]int)
	c.boosters = 0

	for _, e := range store.All() {
		if !e.Active() || e.TurnedOff {
			continue
		}
		c.placed[e.Grid] = true
		if e.Working() {
			c.working[e.Grid] = true
		}
	}

	for _, e := range store.All() {
		if !c.placed[e.Grid] {
			continue
		}
		def, ok := cat.Building(e.Type)
		if !ok {
			continue
		}
		switch def.Kind {
		case catalog.KindBooster:
			c.boosters++
			c.spread(e, def, func(t *entity.Entity, td *catalog.BuildingDefinition) bool {
				return !td.Exempt() && !td.IsGenerator() && td.Kind != catalog.KindBank && td.Kind != catalog.KindWarehouse
			})
		case catalog.KindZone:
			amount := def.GlobalBonus * float64(e.Level)
			c.stableZone[def.Industry] += amount
			c.liveZone[def.Industry] += amount
			c.spread(e, def, func(t *entity.Entity, td *catalog.BuildingDefinition) bool {
				return !td.Exempt() && td.Industry == def.Industry
			})
		}
	}
}

// spread adds a booster's or zone's per-level amount to every qualifying
// entity in range. Zones have no inputs and count as working whenever placed.
func (c *BoostCache) spread(src *entity.Entity, def *catalog.BuildingDefinition, qualifies func(*entity.Entity, *catalog.BuildingDefinition) bool) {
	amount := def.BoostAmount * float64(src.Level)
	live := def.Kind == catalog.KindZone || c.working[src.Grid]
	for _, t := range c.store.Within(src.Grid, def.BoostRadius) {
		if !c.placed[t.Grid] {
			continue
		}
		td, ok := c.cat.Building(t.Type)
		if !ok || !qualifies(t, td) {
			continue
		}
		c.stableBoost[t.Grid] += amount
		if live {
			c.liveBoost[t.Grid] += amount
		}
	}
}

// Boost returns the summed booster and zone contribution for grid.
func (c *BoostCache) Boost(grid world.HexCoord, mode Mode) float64 {
	if mode == Live {
		return c.liveBoost[grid]
	}
	return c.stableBoost[grid]
}

// ZoneBonus returns the productionMultiplier bonus for an industry.
func (c *BoostCache) ZoneBonus(industry string, mode Mode) float64 {
	if industry == "" {
		return 0
	}
	if mode == Live {
		return c.liveZone[industry]
	}
	return c.stableZone[industry]
}

// Boosters is the number of placed resource boosters.
func (c *BoostCache) Boosters() int {
	return c.boosters
}

// WasWorking reports whether grid was working when the cache was built.
func (c *BoostCache) WasWorking(grid world.HexCoord) bool {
	return c.working[grid]
}

// Adjacency counts same-qualifying-type neighbours of e, memoized per grid.
func (c *BoostCache) Adjacency(e *entity.Entity, def *catalog.BuildingDefinition, mode Mode) int {
	if def.IgnoreAdjacency || def.Exempt() {
		return 0
	}
	memo := c.adjStable
	if mode == Live {
		memo = c.adjLive
	}
	if n, ok := memo[e.Grid]; ok {
		return n
	}
	n := 0
	for _, nb := range c.store.Neighbors(e.Grid) {
		if !sameKind(e, nb, def) {
			continue
		}
		if mode == Live && !c.working[nb.Grid] {
			continue
		}
		if mode == Stable && !c.placed[nb.Grid] {
			continue
		}
		n++
	}
	memo[e.Grid] = n
	return n
}

// sameKind reports whether nb counts toward e's adjacency. Monuments compare
// by level as well as type.
func sameKind(e, nb *entity.Entity, def *catalog.BuildingDefinition) bool {
	if nb.Type != e.Type {
		return false
	}
	if def.Kind == catalog.KindMonument {
		return nb.Level == e.Level
	}
	return true
}
