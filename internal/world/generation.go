// Map generation using layered simplex noise.
// Elevation and rainfall decide terrain; one extra noise layer per deposit
// type decides which raw resource, if any, sits under each tile.
package world

import (
	"math"
	"math/rand"
	"sort"

	opensimplex "github.com/ojrac/opensimplex-go"
)

// GenConfig holds map generation parameters.
type GenConfig struct {
	Radius      int     // Hex grid radius
	Seed        int64   // Random seed (0 = random)
	SeaLevel    float64 // Elevation threshold for water (0.0–1.0)
	MountainLvl float64 // Elevation threshold for mountains (0.0–1.0)

	// DepositThreshold is the noise level a deposit layer must exceed.
	DepositThreshold float64
	// DepositWeights scales each deposit layer; keys are resource keys.
	// A deposit missing from the map is never generated.
	DepositWeights map[string]float64
}

// depositTerrain lists where each deposit may appear.
var depositTerrain = map[string][]Terrain{
	"Coal":  {TerrainMountain, TerrainPlains},
	"Fe":    {TerrainMountain},
	"Cu":    {TerrainMountain},
	"Stone": {TerrainMountain, TerrainPlains, TerrainDesert},
	"Oil":   {TerrainDesert, TerrainPlains},
	"Sand":  {TerrainDesert},
	"U":     {TerrainMountain},
}

// DefaultDepositWeights returns the weights used by the standard map profile.
func DefaultDepositWeights() map[string]float64 {
	return map[string]float64{
		"Coal":  1.0,
		"Fe":    1.0,
		"Cu":    0.9,
		"Stone": 1.0,
		"Oil":   0.8,
		"Sand":  1.0,
		"U":     0.6,
	}
}

// DefaultGenConfig returns a reasonable starting configuration.
func DefaultGenConfig() GenConfig {
	return GenConfig{
		Radius:           20,
		Seed:             0,
		SeaLevel:         0.22,
		MountainLvl:      0.68,
		DepositThreshold: 0.62,
		DepositWeights:   DefaultDepositWeights(),
	}
}

// SmallTestConfig returns a tiny map for rapid iteration.
func SmallTestConfig() GenConfig {
	cfg := DefaultGenConfig()
	cfg.Radius = 5
	cfg.Seed = 42
	return cfg
}

// Generate creates a complete map with terrain and deposits.
func Generate(cfg GenConfig) *Map {
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Int63()
	}

	elevNoise := opensimplex.NewNormalized(seed)
	rainNoise := opensimplex.NewNormalized(seed + 1)

	deposits := make([]string, 0, len(cfg.DepositWeights))
	for dep := range cfg.DepositWeights {
		deposits = append(deposits, dep)
	}
	sort.Strings(deposits)
	depNoise := make([]opensimplex.Noise, len(deposits))
	for i := range deposits {
		depNoise[i] = opensimplex.NewNormalized(seed + 10 + int64(i))
	}

	m := NewMap(cfg.Radius, seed)

	for q := -cfg.Radius; q <= cfg.Radius; q++ {
		for r := -cfg.Radius; r <= cfg.Radius; r++ {
			coord := HexCoord{Q: q, R: r}
			if Distance(coord, HexCoord{}) > cfg.Radius {
				continue
			}

			// Hex axial → cartesian: x = q + r*0.5, y = r * sqrt(3)/2
			x := float64(q) + float64(r)*0.5
			y := float64(r) * math.Sqrt(3.0) / 2.0

			elev := octaveNoise(elevNoise, x, y, 4, 0.08, 0.5)
			rain := octaveNoise(rainNoise, x, y, 3, 0.06, 0.5)

			// Continental shaping: lower the rim so the map is ringed by water.
			distFromCenter := math.Sqrt(x*x+y*y) / float64(cfg.Radius+1)
			edgeFalloff := 1.0 - math.Pow(distFromCenter, 3.5)
			if edgeFalloff < 0 {
				edgeFalloff = 0
			}
			elev *= edgeFalloff

			tile := &Tile{
				Coord:     coord,
				Terrain:   deriveTerrain(elev, rain, cfg),
				Elevation: elev,
			}
			if tile.Terrain != TerrainWater {
				tile.Deposit = pickDeposit(tile.Terrain, x, y, deposits, depNoise, cfg)
			}
			m.Set(tile)
		}
	}

	return m
}

// deriveTerrain determines terrain type from environmental parameters.
func deriveTerrain(elev, rain float64, cfg GenConfig) Terrain {
	switch {
	case elev < cfg.SeaLevel:
		return TerrainWater
	case elev > cfg.MountainLvl:
		return TerrainMountain
	case rain < 0.3:
		return TerrainDesert
	case rain > 0.55:
		return TerrainForest
	default:
		return TerrainPlains
	}
}

// pickDeposit returns the strongest deposit layer above threshold that is
// allowed on the terrain. Ties resolve to the alphabetically first deposit.
func pickDeposit(t Terrain, x, y float64, deposits []string, noise []opensimplex.Noise, cfg GenConfig) string {
	best := ""
	bestVal := cfg.DepositThreshold
	for i, dep := range deposits {
		if !terrainAllows(dep, t) {
			continue
		}
		v := noise[i].Eval2(x*0.21, y*0.21) * cfg.DepositWeights[dep]
		if v > bestVal {
			best = dep
			bestVal = v
		}
	}
	return best
}

func terrainAllows(dep string, t Terrain) bool {
	allowed, ok := depositTerrain[dep]
	if !ok {
		// Deposits introduced by a map profile may sit on any land.
		return true
	}
	for _, a := range allowed {
		if a == t {
			return true
		}
	}
	return false
}

// octaveNoise generates fractal noise by layering multiple frequencies.
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}

// TerrainCounts returns a summary of terrain type distribution.
func TerrainCounts(m *Map) map[Terrain]int {
	counts := make(map[Terrain]int)
	for _, t := range m.Tiles {
		counts[t.Terrain]++
	}
	return counts
}

// TerrainName returns a human-readable name for a terrain type.
func TerrainName(t Terrain) string {
	switch t {
	case TerrainPlains:
		return "Plains"
	case TerrainForest:
		return "Forest"
	case TerrainMountain:
		return "Mountain"
	case TerrainDesert:
		return "Desert"
	case TerrainWater:
		return "Water"
	default:
		return "Unknown"
	}
}
