package engine

import (
	"log/slog"

	"github.com/talgya/gridworks/internal/catalog"
	"github.com/talgya/gridworks/internal/entity"
)

// advanceConstruction moves the build pipeline one tick: finished sites
// activate, unpaid sites are billed when cash allows, and queued sites take
// free build slots.
func (s *Simulation) advanceConstruction() {
	building := 0
	var unpaid, queued []*entity.Entity
	for _, e := range s.Store.All() {
		switch e.Construction {
		case entity.ConstructionBuilding:
			e.ConstructionLeft--
			if e.ConstructionLeft <= 0 {
				s.activate(e)
				continue
			}
			building++
		case entity.ConstructionUnpaid:
			unpaid = append(unpaid, e)
		case entity.ConstructionQueued:
			queued = append(queued, e)
		}
	}

	for _, e := range unpaid {
		def, ok := s.Catalog.Building(e.Type)
		if !ok {
			continue
		}
		cost := catalog.LevelCost(def, 1, s.Tuning.LevelCostGrowth)
		if s.Treasury.Spend(cost) != nil {
			break
		}
		e.Invested += cost
		e.Construction = entity.ConstructionQueued
		queued = append(queued, e)
		slog.Debug("construction billed", "grid", e.Grid, "type", e.Type, "cost", cost)
	}

	for _, e := range queued {
		if s.Tuning.ConstructionTick <= 0 {
			s.activate(e)
			continue
		}
		if building >= max(s.Tuning.BuildSlots, 1) {
			break
		}
		e.Construction = entity.ConstructionBuilding
		e.ConstructionLeft = s.Tuning.ConstructionTick
		building++
	}
}

func (s *Simulation) activate(e *entity.Entity) {
	e.Construction = entity.ConstructionNone
	e.ConstructionLeft = 0
	e.Status = entity.StatusIdle
	slog.Debug("construction finished", "grid", e.Grid, "type", e.Type)
}

// Constructions counts sites in each pipeline stage.
func (s *Simulation) Constructions() map[string]int {
	out := make(map[string]int)
	for _, e := range s.Store.All() {
		if e.Construction != entity.ConstructionNone {
			out[e.Construction.String()]++
		}
	}
	return out
}
