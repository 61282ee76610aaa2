package batch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/gridworks/internal/catalog"
	"github.com/talgya/gridworks/internal/economy"
	"github.com/talgya/gridworks/internal/entity"
	"github.com/talgya/gridworks/internal/tuning"
	"github.com/talgya/gridworks/internal/world"
)

func newOperator(cash float64) *Operator {
	return &Operator{
		Store:    entity.NewStore(),
		Catalog:  catalog.Default(),
		Treasury: economy.NewTreasury(cash),
		Depot:    economy.NewStockpile(),
		Tuning:   tuning.Default(),
	}
}

// build places a level-1 entity and charges its base cost the way a build command does.
func (o *Operator) build(t *testing.T, k catalog.BuildingKey, g world.HexCoord) *entity.Entity {
	t.Helper()
	def, ok := o.Catalog.Building(k)
	require.True(t, ok)
	require.NoError(t, o.Treasury.Spend(def.BaseCost))
	e := entity.New(g, def)
	e.Invested = def.BaseCost
	require.True(t, o.Store.Insert(e))
	return e
}

func grids(es []*entity.Entity) []world.HexCoord {
	out := make([]world.HexCoord, len(es))
	for i, e := range es {
		out[i] = e.Grid
	}
	return out
}

func TestCluster_SameMembershipFromAnyMember(t *testing.T) {
	// Arrange: a bent chain of four farms, a farm off on its own, and a mine touching the chain.
	o := newOperator(1e6)
	chain := []world.HexCoord{{Q: 0, R: 0}, {Q: 1, R: 0}, {Q: 1, R: 1}, {Q: 0, R: 2}}
	for _, g := range chain {
		o.build(t, catalog.Farm, g)
	}
	o.build(t, catalog.Farm, world.HexCoord{Q: 5, R: 5})
	o.build(t, catalog.CoalMine, world.HexCoord{Q: 2, R: 0})

	// Act
	var groups [][]world.HexCoord
	for _, g := range chain {
		groups = append(groups, grids(o.Select(g, ModeCluster)))
	}

	// Assert
	for _, g := range groups {
		assert.Equal(t, groups[0], g)
	}
	assert.Len(t, groups[0], 4)
}

func TestSelect_AdjacentAndAll(t *testing.T) {
	o := newOperator(1e6)
	for _, g := range []world.HexCoord{{Q: 0}, {Q: 1}, {Q: 2}, {Q: 9}} {
		o.build(t, catalog.Farm, g)
	}

	assert.Len(t, o.Select(world.HexCoord{Q: 0}, ModeAdjacent), 2)
	assert.Len(t, o.Select(world.HexCoord{Q: 1}, ModeAdjacent), 3)
	assert.Len(t, o.Select(world.HexCoord{Q: 0}, ModeAll), 4)
	assert.Len(t, o.Select(world.HexCoord{Q: 0}, ModeSingle), 1)
	assert.Empty(t, o.Select(world.HexCoord{Q: 50}, ModeAll))
}

func TestUpgrade_PartialFundsFailIndividually(t *testing.T) {
	// Arrange: three farms, cash for two upgrades to level 2.
	o := newOperator(30)
	for _, g := range []world.HexCoord{{Q: 0}, {Q: 1}, {Q: 2}} {
		o.build(t, catalog.Farm, g)
	}
	step := catalog.LevelCost(o.Catalog.Buildings[catalog.Farm], 2, o.Tuning.LevelCostGrowth)
	o.Treasury.Cash = 2*step + 1

	// Act
	res := o.Apply(world.HexCoord{Q: 0}, ModeAll, Action{Kind: Upgrade, Level: 2})

	// Assert
	assert.Equal(t, 3, res.Selected)
	assert.Equal(t, 2, res.Succeeded)
	assert.Equal(t, 1, res.Failed)
	assert.InDelta(t, 2*step, res.TotalCost, 1e-9)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "insufficient funds", res.Failures[0].Reason)
}

func TestUpgrade_SkipsEntitiesAtTarget(t *testing.T) {
	o := newOperator(1e6)
	a := o.build(t, catalog.Farm, world.HexCoord{Q: 0})
	b := o.build(t, catalog.Farm, world.HexCoord{Q: 1})
	b.Level = 5

	res := o.Apply(a.Grid, ModeCluster, Action{Kind: Upgrade, Level: 3})

	assert.Equal(t, 1, res.Succeeded)
	assert.Equal(t, 3, a.Level)
	assert.Equal(t, 5, b.Level)
}

func TestDowngrade_RefundsAndResetsLockedRecipe(t *testing.T) {
	// Arrange
	o := newOperator(1e6)
	ref := o.build(t, catalog.Refinery, world.HexCoord{})
	up := o.Apply(ref.Grid, ModeSingle, Action{Kind: Upgrade, Level: 6})
	require.Equal(t, 1, up.Succeeded)
	ref.Recipe.Active = "plastic"
	cash := o.Treasury.Cash

	// Act
	res := o.Apply(ref.Grid, ModeSingle, Action{Kind: Downgrade, Level: 2})

	// Assert
	assert.Equal(t, 1, res.Succeeded)
	assert.Equal(t, 2, ref.Level)
	assert.Equal(t, "petrol", ref.Recipe.Active)
	assert.Greater(t, res.TotalGain, 0.0)
	assert.InDelta(t, cash+res.TotalGain, o.Treasury.Cash, 1e-9)
}

func TestSell_RoundTripRefundsLessThanSpent(t *testing.T) {
	// Arrange
	o := newOperator(1000)
	mine := o.build(t, catalog.CoalMine, world.HexCoord{})
	require.NoError(t, mine.Credit(catalog.Coal, 40))
	spent := o.Treasury.TotalSpent

	// Act
	res := o.Apply(mine.Grid, ModeSingle, Action{Kind: Sell})

	// Assert
	assert.Equal(t, 1, res.Succeeded)
	assert.Less(t, res.TotalGain, spent)
	assert.LessOrEqual(t, o.Treasury.TotalRefunded, o.Treasury.TotalSpent)
	assert.Nil(t, o.Store.Get(mine.Grid))
	assert.Equal(t, 20.0, o.Depot.Amount(catalog.Coal))
}

func TestSell_RefundNeverExceedsRecordedSpend(t *testing.T) {
	o := newOperator(1000)
	e := o.build(t, catalog.CoalMine, world.HexCoord{})
	e.Invested = 1e6 // inflated by a bad save

	res := o.Apply(e.Grid, ModeSingle, Action{Kind: Sell})

	assert.LessOrEqual(t, res.TotalGain, o.Treasury.TotalSpent)
}

func TestParse(t *testing.T) {
	m, err := ParseMode("cluster")
	require.NoError(t, err)
	assert.Equal(t, ModeCluster, m)
	_, err = ParseMode("ring")
	assert.ErrorIs(t, err, ErrUnknownMode)

	k, err := ParseKind("sell")
	require.NoError(t, err)
	assert.Equal(t, Sell, k)
	_, err = ParseKind("melt")
	assert.ErrorIs(t, err, ErrUnknownAction)
}
