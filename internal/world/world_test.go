package world

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHexDistances(t *testing.T) {
	tests := []struct {
		name      string
		a, b      HexCoord
		steps     int
		squared   int
		adjacency bool
	}{
		{"same", HexCoord{0, 0}, HexCoord{0, 0}, 0, 0, false},
		{"east neighbor", HexCoord{0, 0}, HexCoord{1, 0}, 1, 1, true},
		{"north-east neighbor", HexCoord{0, 0}, HexCoord{1, -1}, 1, 1, true},
		{"two east", HexCoord{0, 0}, HexCoord{2, 0}, 2, 4, false},
		{"diagonal", HexCoord{0, 0}, HexCoord{1, 1}, 2, 3, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.steps, Distance(tt.a, tt.b))
			assert.Equal(t, tt.squared, SquaredDistance(tt.a, tt.b))
			assert.Equal(t, tt.adjacency, Adjacent(tt.a, tt.b))
		})
	}
}

func TestSquaredDistance_MatchesCartesian(t *testing.T) {
	a := HexCoord{Q: 3, R: -5}
	b := HexCoord{Q: -2, R: 4}
	ax, ay := float64(a.Q)+float64(a.R)/2, float64(a.R)*math.Sqrt(3)/2
	bx, by := float64(b.Q)+float64(b.R)/2, float64(b.R)*math.Sqrt(3)/2
	want := (ax-bx)*(ax-bx) + (ay-by)*(ay-by)

	assert.InDelta(t, want, float64(SquaredDistance(a, b)), 1e-9)
}

func TestKeyRoundTrip(t *testing.T) {
	c := HexCoord{Q: -7, R: 12}
	got, err := ParseKey(c.Key())
	require.NoError(t, err)
	assert.Equal(t, c, got)

	_, err = ParseKey("nope")
	assert.ErrorIs(t, err, ErrBadGridKey)
}

func TestTileModifier_DeterministicAndStepped(t *testing.T) {
	for q := -10; q <= 10; q++ {
		for r := -10; r <= 10; r++ {
			c := HexCoord{Q: q, R: r}
			v := TileModifier(99, c, "IronMine", 0.25, 0.05)
			assert.Equal(t, v, TileModifier(99, c, "IronMine", 0.25, 0.05))
			assert.LessOrEqual(t, v, 0.25)
			assert.GreaterOrEqual(t, v, -0.25)
			steps := v / 0.05
			assert.InDelta(t, math.Round(steps), steps, 1e-9)
		}
	}
}

func TestTileModifier_VariesWithTypeAndSeed(t *testing.T) {
	c := HexCoord{Q: 1, R: 2}
	seen := map[float64]bool{}
	for seed := int64(1); seed <= 40; seed++ {
		seen[TileModifier(seed, c, "Farm", 0.25, 0.05)] = true
	}
	assert.Greater(t, len(seen), 3)
	assert.Equal(t, 0.0, TileModifier(1, c, "Farm", 0, 0.05))
}

func TestGenerate_Deterministic(t *testing.T) {
	cfg := SmallTestConfig()
	a := Generate(cfg)
	b := Generate(cfg)

	require.Equal(t, a.TileCount(), b.TileCount())
	assert.Equal(t, 91, a.TileCount())
	for _, c := range a.Coords() {
		assert.Equal(t, *a.Get(c), *b.Get(c))
	}
}

func TestAbundance_RelativeToEvenSplit(t *testing.T) {
	m := NewMap(2, 1)
	m.Set(&Tile{Coord: HexCoord{0, 0}, Deposit: "Fe"})
	m.Set(&Tile{Coord: HexCoord{1, 0}, Deposit: "Fe"})
	m.Set(&Tile{Coord: HexCoord{0, 1}, Deposit: "Fe"})
	m.Set(&Tile{Coord: HexCoord{1, -1}, Deposit: "Coal"})

	ab := m.Abundance()

	assert.InDelta(t, 1.5, ab["Fe"], 1e-9)
	assert.InDelta(t, 0.5, ab["Coal"], 1e-9)
}
