package production

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/gridworks/internal/catalog"
	"github.com/talgya/gridworks/internal/entity"
	"github.com/talgya/gridworks/internal/tuning"
	"github.com/talgya/gridworks/internal/weather"
	"github.com/talgya/gridworks/internal/world"
)

type fixture struct {
	cat   *catalog.Catalog
	store *entity.Store
	cache *BoostCache
	calc  *Calculator
}

func newFixture(mods catalog.Modifiers) *fixture {
	f := &fixture{
		cat:   catalog.Default(),
		store: entity.NewStore(),
		cache: NewBoostCache(),
	}
	f.calc = &Calculator{
		Tuning:    tuning.Default(),
		Modifiers: mods,
		Seed:      7,
		Weather:   weather.Clock{Seed: 7, DayTicks: 100, WindPeriodTicks: 10, WindDutyCycle: 0.5},
		Cache:     f.cache,
	}
	return f
}

func flatLand() catalog.Modifiers {
	m := catalog.NeutralModifiers()
	m.TileModifierOff = true
	return m
}

func (f *fixture) place(t *testing.T, k catalog.BuildingKey, g world.HexCoord) *entity.Entity {
	t.Helper()
	def, ok := f.cat.Building(k)
	require.True(t, ok)
	e := entity.New(g, def)
	require.True(t, f.store.Insert(e))
	return e
}

func (f *fixture) def(k catalog.BuildingKey) *catalog.BuildingDefinition {
	d, _ := f.cat.Building(k)
	return d
}

func TestCoalPowerPlant_LevelOne(t *testing.T) {
	// Arrange
	f := newFixture(flatLand())
	plant := f.place(t, catalog.CoalPowerPlant, world.HexCoord{})
	f.cache.Rebuild(f.store, f.cat)

	// Act
	r := f.calc.Amounts(plant, f.def(catalog.CoalPowerPlant), Live, 0)

	// Assert
	assert.InDelta(t, 10, r.Inputs[catalog.Coal], 1e-9)
	assert.InDelta(t, 150, r.Power, 1e-9)
	assert.Equal(t, 0, r.Mult.Adjacency)
}

func TestAdjacentIronMines_CountEachOther(t *testing.T) {
	// Arrange
	f := newFixture(flatLand())
	a := f.place(t, catalog.IronMine, world.HexCoord{Q: 0, R: 0})
	b := f.place(t, catalog.IronMine, world.HexCoord{Q: 1, R: 0})
	f.cache.Rebuild(f.store, f.cat)
	def := f.def(catalog.IronMine)

	// Act
	ma := f.calc.Multipliers(a, def, Stable)
	mb := f.calc.Multipliers(b, def, Stable)

	// Assert
	assert.Equal(t, 1, ma.Adjacency)
	assert.Equal(t, 1, mb.Adjacency)
	assert.InDelta(t, 1.1, ma.AdjOut, 1e-9)
	assert.InDelta(t, 1.1, ma.AdjIn, 1e-9)
	assert.InDelta(t, 11, ma.Output, 1e-9)
}

func TestLiveAdjacency_CountsOnlyWorkingNeighbours(t *testing.T) {
	f := newFixture(flatLand())
	a := f.place(t, catalog.IronMine, world.HexCoord{})
	b := f.place(t, catalog.IronMine, world.HexCoord{Q: 1})
	b.Status = entity.StatusNotEnoughPower
	f.cache.Rebuild(f.store, f.cat)

	assert.Equal(t, 0, f.calc.Multipliers(a, f.def(catalog.IronMine), Live).Adjacency)
	assert.Equal(t, 1, f.calc.Multipliers(a, f.def(catalog.IronMine), Stable).Adjacency)
}

func TestMonumentAdjacency_ComparesLevel(t *testing.T) {
	f := newFixture(flatLand())
	a := f.place(t, catalog.Monument, world.HexCoord{})
	b := f.place(t, catalog.Monument, world.HexCoord{Q: 1})
	b.Level = 2
	f.cache.Rebuild(f.store, f.cat)

	assert.Equal(t, 0, f.calc.Multipliers(a, f.def(catalog.Monument), Stable).Adjacency)
}

func TestBoosterAndZone_ExemptFromProductionMultiplier(t *testing.T) {
	// Arrange
	f := newFixture(catalog.NeutralModifiers())
	b1 := f.place(t, catalog.ResourceBooster, world.HexCoord{})
	f.place(t, catalog.ResourceBooster, world.HexCoord{Q: 5})
	zone := f.place(t, catalog.IndustryZone, world.HexCoord{Q: -5})
	f.cache.Rebuild(f.store, f.cat)

	// Act
	mb := f.calc.Multipliers(b1, f.def(catalog.ResourceBooster), Stable)
	mz := f.calc.Multipliers(zone, f.def(catalog.IndustryZone), Stable)

	// Assert: booster throughput scales with the booster count, no tile modifier.
	assert.Equal(t, 2.0, mb.Production)
	assert.Equal(t, 1.0, mb.TileIn)
	assert.Equal(t, 1.0, mz.Production)
	assert.Equal(t, 1.0, mz.TileOut)
	assert.Zero(t, mz.Boost)
}

func TestBooster_BoostsNeighboursInRange(t *testing.T) {
	// Arrange
	f := newFixture(flatLand())
	booster := f.place(t, catalog.ResourceBooster, world.HexCoord{})
	near := f.place(t, catalog.CoalMine, world.HexCoord{Q: 1})
	far := f.place(t, catalog.CoalMine, world.HexCoord{Q: 3})
	booster.Status = entity.StatusWorking
	f.cache.Rebuild(f.store, f.cat)
	def := f.def(catalog.CoalMine)

	// Act
	mn := f.calc.Multipliers(near, def, Live)
	mf := f.calc.Multipliers(far, def, Live)

	// Assert
	assert.InDelta(t, 0.25, mn.Boost, 1e-9)
	assert.Zero(t, mf.Boost)
	assert.InDelta(t, 12.5, mn.Output, 1e-9)
}

func TestIdleBooster_OnlyBoostsStable(t *testing.T) {
	f := newFixture(flatLand())
	f.place(t, catalog.ResourceBooster, world.HexCoord{})
	near := f.place(t, catalog.CoalMine, world.HexCoord{Q: 1})
	f.cache.Rebuild(f.store, f.cat)
	def := f.def(catalog.CoalMine)

	assert.Zero(t, f.calc.Multipliers(near, def, Live).Boost)
	assert.InDelta(t, 0.25, f.calc.Multipliers(near, def, Stable).Boost, 1e-9)
}

func TestIndustryZone_AddsGlobalBonusToItsIndustry(t *testing.T) {
	f := newFixture(flatLand())
	f.place(t, catalog.IndustryZone, world.HexCoord{Q: 10})
	smelter := f.place(t, catalog.IronSmelter, world.HexCoord{})
	bakery := f.place(t, catalog.Bakery, world.HexCoord{Q: -10})
	f.cache.Rebuild(f.store, f.cat)

	ms := f.calc.Multipliers(smelter, f.def(catalog.IronSmelter), Stable)
	mb := f.calc.Multipliers(bakery, f.def(catalog.Bakery), Stable)

	assert.InDelta(t, 10*1.01, ms.Production, 1e-9)
	assert.InDelta(t, 10, mb.Production, 1e-9)
}

func TestOutputOnlyPolicies_SplitInputAndOutput(t *testing.T) {
	// Arrange
	mods := catalog.NeutralModifiers()
	mods.AdjacencyOutputOnly = true
	mods.TileOutputOnly = true
	f := newFixture(mods)
	a := f.place(t, catalog.IronMine, world.HexCoord{})
	f.place(t, catalog.IronMine, world.HexCoord{Q: 1})
	f.cache.Rebuild(f.store, f.cat)

	// Act
	m := f.calc.Multipliers(a, f.def(catalog.IronMine), Stable)

	// Assert
	assert.Equal(t, 1.0, m.AdjIn)
	assert.Equal(t, 1.0, m.TileIn)
	assert.InDelta(t, 1.1, m.AdjOut, 1e-9)
	assert.InDelta(t, m.Level*m.Production, m.Input, 1e-9)
}

func TestTileModifier_StaysInRangeAcrossGrid(t *testing.T) {
	f := newFixture(catalog.NeutralModifiers())
	def := f.def(catalog.Farm)
	for q := -4; q <= 4; q++ {
		e := entity.New(world.HexCoord{Q: q, R: 1}, def)
		m := f.calc.Multipliers(e, def, Stable)
		assert.GreaterOrEqual(t, m.TileOut, 0.75)
		assert.LessOrEqual(t, m.TileOut, 1.25)
	}
}

func TestSolarPanel_DarkAtNight(t *testing.T) {
	f := newFixture(flatLand())
	panel := f.place(t, catalog.SolarPanel, world.HexCoord{})
	f.cache.Rebuild(f.store, f.cat)
	def := f.def(catalog.SolarPanel)

	day := f.calc.Amounts(panel, def, Live, 10)
	night := f.calc.Amounts(panel, def, Live, 60)

	assert.InDelta(t, 40, day.Power, 1e-9)
	assert.Zero(t, night.Power)
}

func TestNews_AppliesOnlyLive(t *testing.T) {
	f := newFixture(flatLand())
	mine := f.place(t, catalog.CoalMine, world.HexCoord{})
	f.cache.Rebuild(f.store, f.cat)
	f.calc.News = News{Output: map[catalog.ResourceKey]float64{catalog.Coal: 0.2}}
	def := f.def(catalog.CoalMine)

	live := f.calc.Amounts(mine, def, Live, 0)
	stable := f.calc.Amounts(mine, def, Stable, 0)

	assert.InDelta(t, 12, live.Outputs[catalog.Coal], 1e-9)
	assert.InDelta(t, 10, stable.Outputs[catalog.Coal], 1e-9)
}

func TestRate_DividesByPeriod(t *testing.T) {
	r := Result{Outputs: catalog.Amounts{catalog.Coal: 10}, Power: -20}

	got := Rate(r, 5, 2)

	assert.InDelta(t, 1, got.Outputs[catalog.Coal], 1e-9)
	assert.InDelta(t, -2, got.Power, 1e-9)
}
