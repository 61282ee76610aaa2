package world

import (
	"fmt"
	"sort"
)

// Tile is a single cell of the map.
type Tile struct {
	Coord     HexCoord `json:"coord"`
	Terrain   Terrain  `json:"terrain"`
	Elevation float64  `json:"elevation"`
	// Deposit is the resource key of the raw deposit under this tile, or "".
	Deposit string `json:"deposit,omitempty"`
}

// Buildable reports whether anything may be placed on the tile.
func (t *Tile) Buildable() bool {
	return t != nil && t.Terrain != TerrainWater
}

// Map holds the complete hex grid.
type Map struct {
	Tiles  map[HexCoord]*Tile `json:"-"`
	Radius int                `json:"radius"`
	Seed   int64              `json:"seed"`
}

// NewMap creates an empty map with the given radius.
// A hex grid of radius R contains hexes where max(|q|, |r|, |s|) <= R.
func NewMap(radius int, seed int64) *Map {
	return &Map{
		Tiles:  make(map[HexCoord]*Tile),
		Radius: radius,
		Seed:   seed,
	}
}

// Get returns the tile at the given coordinate, or nil if out of bounds.
func (m *Map) Get(coord HexCoord) *Tile {
	return m.Tiles[coord]
}

// Set places a tile at its coordinate.
func (m *Map) Set(t *Tile) {
	m.Tiles[t.Coord] = t
}

// InBounds returns true if the coordinate is within the map radius.
func (m *Map) InBounds(coord HexCoord) bool {
	return Distance(coord, HexCoord{}) <= m.Radius
}

// TileCount returns the total number of tiles in the map.
func (m *Map) TileCount() int {
	return len(m.Tiles)
}

// Coords returns every tile coordinate in stable (Q, R) order.
func (m *Map) Coords() []HexCoord {
	out := make([]HexCoord, 0, len(m.Tiles))
	for c := range m.Tiles {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// DepositCounts returns how many tiles carry each deposit.
func (m *Map) DepositCounts() map[string]int {
	counts := make(map[string]int)
	for _, t := range m.Tiles {
		if t.Deposit != "" {
			counts[t.Deposit]++
		}
	}
	return counts
}

// Abundance returns each deposit's share of deposit tiles relative to an even
// split, so 1.0 means average, below 1.0 scarce. Deposits absent from the map
// are omitted.
func (m *Map) Abundance() map[string]float64 {
	counts := m.DepositCounts()
	total := 0
	for _, c := range counts {
		total += c
	}
	out := make(map[string]float64, len(counts))
	if total == 0 {
		return out
	}
	even := float64(total) / float64(len(counts))
	for dep, c := range counts {
		out[dep] = float64(c) / even
	}
	return out
}

// String returns a summary of the map.
func (m *Map) String() string {
	return fmt.Sprintf("Map(radius=%d, tiles=%d, seed=%d)", m.Radius, m.TileCount(), m.Seed)
}
