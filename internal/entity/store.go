package entity

import (
	"sort"

	"github.com/talgya/gridworks/internal/catalog"
	"github.com/talgya/gridworks/internal/world"
)

// Store holds every placed entity keyed by grid. Iteration helpers return
// entities in grid order so every pass over the store is deterministic.
type Store struct {
	byGrid map[world.HexCoord]*Entity
	sorted []*Entity // nil when stale
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{byGrid: make(map[world.HexCoord]*Entity)}
}

// Insert adds e. It returns false without effect when the grid is occupied.
func (s *Store) Insert(e *Entity) bool {
	if _, taken := s.byGrid[e.Grid]; taken {
		return false
	}
	s.byGrid[e.Grid] = e
	s.sorted = nil
	return true
}

// Remove deletes the entity at grid and returns it, or nil.
func (s *Store) Remove(grid world.HexCoord) *Entity {
	e, ok := s.byGrid[grid]
	if !ok {
		return nil
	}
	delete(s.byGrid, grid)
	s.sorted = nil
	return e
}

// Get returns the entity at grid, or nil.
func (s *Store) Get(grid world.HexCoord) *Entity {
	return s.byGrid[grid]
}

// Len returns the number of entities.
func (s *Store) Len() int {
	return len(s.byGrid)
}

// All returns every entity in grid order. The slice is shared until the next
// Insert or Remove; callers must not modify it.
func (s *Store) All() []*Entity {
	if s.sorted == nil {
		s.sorted = make([]*Entity, 0, len(s.byGrid))
		for _, e := range s.byGrid {
			s.sorted = append(s.sorted, e)
		}
		sort.Slice(s.sorted, func(i, j int) bool { return s.sorted[i].Grid.Less(s.sorted[j].Grid) })
	}
	return s.sorted
}

// OfType returns every entity of type k in grid order.
func (s *Store) OfType(k catalog.BuildingKey) []*Entity {
	var out []*Entity
	for _, e := range s.All() {
		if e.Type == k {
			out = append(out, e)
		}
	}
	return out
}

// CountByType tallies entities per building type.
func (s *Store) CountByType() map[catalog.BuildingKey]int {
	counts := make(map[catalog.BuildingKey]int)
	for _, e := range s.byGrid {
		counts[e.Type]++
	}
	return counts
}

// Neighbors returns the entities on the six hexes around grid, in direction order.
func (s *Store) Neighbors(grid world.HexCoord) []*Entity {
	var out []*Entity
	for _, n := range grid.Neighbors() {
		if e := s.byGrid[n]; e != nil {
			out = append(out, e)
		}
	}
	return out
}

// Within returns entities whose hex distance from grid is at most radius,
// excluding grid itself, in grid order.
func (s *Store) Within(grid world.HexCoord, radius int) []*Entity {
	var out []*Entity
	for _, e := range s.All() {
		if e.Grid != grid && world.Distance(e.Grid, grid) <= radius {
			out = append(out, e)
		}
	}
	return out
}

// Detach removes the entity at grid and strips every route and source
// override that referenced it. It returns the removed entity, or nil.
func (s *Store) Detach(grid world.HexCoord) *Entity {
	e := s.Remove(grid)
	if e == nil {
		return nil
	}
	for _, other := range s.All() {
		other.RemoveRoutesTo(grid)
	}
	return e
}
