// Package world provides the hex grid, terrain, deposits, and the deterministic
// per-tile hashing used by the production simulation.
// Uses axial coordinates (q, r) for the hex grid.
package world

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// HexCoord represents a position on the hex grid using axial coordinates.
// The third cube coordinate s is derived: s = -q - r.
type HexCoord struct {
	Q int `json:"q"`
	R int `json:"r"`
}

// S returns the implicit third cube coordinate.
func (h HexCoord) S() int {
	return -h.Q - h.R
}

// Key returns the canonical grid string, e.g. "3,-2". Entities are persisted under it.
func (h HexCoord) Key() string {
	return strconv.Itoa(h.Q) + "," + strconv.Itoa(h.R)
}

func (h HexCoord) String() string {
	return h.Key()
}

// ErrBadGridKey is returned when a grid string cannot be parsed.
var ErrBadGridKey = errors.New("bad grid key")

// ParseKey parses a grid string produced by Key.
func ParseKey(key string) (HexCoord, error) {
	qs, rs, ok := strings.Cut(key, ",")
	if !ok {
		return HexCoord{}, fmt.Errorf("%w: %q", ErrBadGridKey, key)
	}
	q, err := strconv.Atoi(strings.TrimSpace(qs))
	if err != nil {
		return HexCoord{}, fmt.Errorf("%w: %q", ErrBadGridKey, key)
	}
	r, err := strconv.Atoi(strings.TrimSpace(rs))
	if err != nil {
		return HexCoord{}, fmt.Errorf("%w: %q", ErrBadGridKey, key)
	}
	return HexCoord{Q: q, R: r}, nil
}

// Less orders coordinates by (Q, R). Used wherever iteration order must be stable.
func (h HexCoord) Less(o HexCoord) bool {
	if h.Q != o.Q {
		return h.Q < o.Q
	}
	return h.R < o.R
}

// Terrain types for hex tiles.
type Terrain uint8

const (
	TerrainPlains   Terrain = iota // Fertile, crops
	TerrainForest                  // Timber
	TerrainMountain                // Ore deposits
	TerrainDesert                  // Sand, oil
	TerrainWater                   // Unbuildable
)

// HexNeighborDirections defines the six neighbor offsets in axial coordinates.
var HexNeighborDirections = [6]HexCoord{
	{Q: 1, R: 0},
	{Q: 1, R: -1},
	{Q: 0, R: -1},
	{Q: -1, R: 0},
	{Q: -1, R: 1},
	{Q: 0, R: 1},
}

// Neighbors returns the six adjacent hex coordinates.
func (h HexCoord) Neighbors() [6]HexCoord {
	var result [6]HexCoord
	for i, dir := range HexNeighborDirections {
		result[i] = HexCoord{Q: h.Q + dir.Q, R: h.R + dir.R}
	}
	return result
}

// Adjacent reports whether two coordinates share an edge.
func Adjacent(a, b HexCoord) bool {
	return Distance(a, b) == 1
}

// Distance returns the hex (step) distance between two coordinates.
func Distance(a, b HexCoord) int {
	dq := abs(a.Q - b.Q)
	dr := abs(a.R - b.R)
	ds := abs(a.S() - b.S())
	return max(dq, dr, ds)
}

// SquaredDistance returns the squared Euclidean distance between tile centres,
// in units where adjacent centres are 1 apart. With x = q + r/2 and
// y = r*sqrt(3)/2 this reduces to the integer dq² + dq·dr + dr².
func SquaredDistance(a, b HexCoord) int {
	dq := a.Q - b.Q
	dr := a.R - b.R
	return dq*dq + dq*dr + dr*dr
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
