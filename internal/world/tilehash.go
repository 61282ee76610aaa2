package world

import (
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"
)

// Hash64 mixes a seed, a coordinate and a tag into a stable 64-bit value.
// It depends on nothing but its arguments, so re-simulation reproduces it.
func Hash64(seed int64, c HexCoord, tag string) uint64 {
	var buf [24]byte
	binary.LittleEndian.PutUint64(buf[0:8], uint64(seed))
	binary.LittleEndian.PutUint64(buf[8:16], uint64(int64(c.Q)))
	binary.LittleEndian.PutUint64(buf[16:24], uint64(int64(c.R)))
	d := xxhash.New()
	_, _ = d.Write(buf[:])
	_, _ = d.WriteString(tag)
	return d.Sum64()
}

// Unit maps a hash to [0, 1).
func Unit(h uint64) float64 {
	return float64(h>>11) / float64(1<<53)
}

// TileModifier returns the per-(tile, building type) production variance in
// [-rng, +rng], rounded to the nearest step.
func TileModifier(seed int64, c HexCoord, buildingType string, rng, step float64) float64 {
	if rng <= 0 {
		return 0
	}
	v := (2*Unit(Hash64(seed, c, buildingType)) - 1) * rng
	if step > 0 {
		v = math.Round(v/step) * step
	}
	if v > rng {
		v = rng
	}
	if v < -rng {
		v = -rng
	}
	// Normalise -0 so results compare equal to 0.
	if v == 0 {
		return 0
	}
	return v
}
