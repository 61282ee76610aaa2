package entity

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/gridworks/internal/catalog"
	"github.com/talgya/gridworks/internal/world"
)

func building(t *testing.T, k catalog.BuildingKey) *catalog.BuildingDefinition {
	t.Helper()
	def, ok := catalog.Default().Building(k)
	require.True(t, ok)
	return def
}

func TestNew_AttachesVariantByKind(t *testing.T) {
	tests := []struct {
		key                             catalog.BuildingKey
		recipe, bank, charge, warehouse bool
	}{
		{catalog.CoalMine, false, false, false, false},
		{catalog.Refinery, true, false, false, false},
		{catalog.AlloyFoundry, true, false, false, false},
		{catalog.PowerBank, false, true, false, false},
		{catalog.CryptoMiner, false, false, true, false},
		{catalog.Warehouse, false, false, false, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.key), func(t *testing.T) {
			e := New(world.HexCoord{}, building(t, tt.key))

			assert.Equal(t, tt.recipe, e.Recipe != nil)
			assert.Equal(t, tt.bank, e.Bank != nil)
			assert.Equal(t, tt.charge, e.Charge != nil)
			assert.Equal(t, tt.warehouse, e.Warehouse != nil)
			assert.Equal(t, 1, e.Level)
			assert.True(t, e.Active())
		})
	}
}

func TestDebit_RejectsBeforeMutation(t *testing.T) {
	// Arrange
	e := New(world.HexCoord{}, building(t, catalog.CoalPowerPlant))
	require.NoError(t, e.Credit(catalog.Coal, 5))

	// Act
	err := e.Debit(catalog.Coal, 6)

	// Assert
	assert.ErrorIs(t, err, ErrInsufficient)
	assert.Equal(t, 5.0, e.Amount(catalog.Coal))
}

func TestDebit_RemovesEmptiedKey(t *testing.T) {
	e := New(world.HexCoord{}, building(t, catalog.CoalPowerPlant))
	require.NoError(t, e.Credit(catalog.Coal, 2))

	require.NoError(t, e.Debit(catalog.Coal, 2))

	_, present := e.Storage[catalog.Coal]
	assert.False(t, present)
}

func TestCreditDebit_RejectInvalidAmounts(t *testing.T) {
	e := New(world.HexCoord{}, building(t, catalog.CoalPowerPlant))

	assert.ErrorIs(t, e.Credit(catalog.Coal, -1), ErrInvalidAmount)
	assert.ErrorIs(t, e.Credit(catalog.Coal, math.NaN()), ErrInvalidAmount)
	assert.ErrorIs(t, e.Debit(catalog.Coal, math.Inf(1)), ErrInvalidAmount)
	assert.Empty(t, e.Storage)
}

func TestDebitAll_IsAtomic(t *testing.T) {
	e := New(world.HexCoord{}, building(t, catalog.IronSmelter))
	require.NoError(t, e.Credit(catalog.Fe, 10))
	require.NoError(t, e.Credit(catalog.Coal, 1))

	err := e.DebitAll(catalog.Amounts{catalog.Fe: 2, catalog.Coal: 3})

	assert.ErrorIs(t, err, ErrInsufficient)
	assert.Equal(t, 10.0, e.Amount(catalog.Fe))
	assert.Equal(t, 1.0, e.Amount(catalog.Coal))
}

func TestCorrupt_FindsNegativeAndNaN(t *testing.T) {
	e := New(world.HexCoord{}, building(t, catalog.CoalMine))
	e.Storage[catalog.Coal] = -3
	e.Storage[catalog.Fe] = math.NaN()
	e.Storage[catalog.Cu] = 4

	assert.Equal(t, []catalog.ResourceKey{catalog.Coal, catalog.Fe}, e.Corrupt())
}

func TestRemoveRoutesTo(t *testing.T) {
	partner := world.HexCoord{Q: 2, R: 0}
	e := New(world.HexCoord{}, building(t, catalog.Warehouse))
	e.Overrides = map[catalog.ResourceKey]SourceOverride{catalog.Coal: {Source: partner}}
	e.Warehouse.Inbound = []Route{{Partner: partner, Resource: catalog.Coal, Weight: 1}, {Partner: world.HexCoord{Q: 1}, Resource: catalog.Fe, Weight: 1}}
	e.Warehouse.Outbound = []Route{{Partner: partner, Resource: catalog.Fe, Weight: 1}}

	n := e.RemoveRoutesTo(partner)

	assert.Equal(t, 3, n)
	assert.Empty(t, e.Overrides)
	assert.Len(t, e.Warehouse.Inbound, 1)
	assert.Nil(t, e.Warehouse.Outbound)
}

func TestStore_InsertOccupiedIsNoop(t *testing.T) {
	s := NewStore()
	g := world.HexCoord{Q: 1, R: 1}
	first := New(g, building(t, catalog.CoalMine))

	require.True(t, s.Insert(first))
	assert.False(t, s.Insert(New(g, building(t, catalog.Farm))))
	assert.Same(t, first, s.Get(g))
	assert.Equal(t, 1, s.Len())
}

func TestStore_AllIsGridOrdered(t *testing.T) {
	s := NewStore()
	def := building(t, catalog.Farm)
	for _, g := range []world.HexCoord{{Q: 2, R: 0}, {Q: -1, R: 3}, {Q: 0, R: 0}, {Q: -1, R: -1}} {
		s.Insert(New(g, def))
	}

	all := s.All()

	require.Len(t, all, 4)
	for i := 1; i < len(all); i++ {
		assert.True(t, all[i-1].Grid.Less(all[i].Grid))
	}
	assert.Equal(t, 4, s.CountByType()[catalog.Farm])
}

func TestStore_RemoveReturnsEntity(t *testing.T) {
	s := NewStore()
	g := world.HexCoord{Q: 3, R: -1}
	s.Insert(New(g, building(t, catalog.Farm)))

	got := s.Remove(g)

	require.NotNil(t, got)
	assert.Equal(t, g, got.Grid)
	assert.Nil(t, s.Remove(g))
	assert.Empty(t, s.All())
}

func TestStore_NeighborsAndWithin(t *testing.T) {
	s := NewStore()
	def := building(t, catalog.Farm)
	origin := world.HexCoord{}
	s.Insert(New(origin, def))
	s.Insert(New(world.HexCoord{Q: 1, R: 0}, def))
	s.Insert(New(world.HexCoord{Q: 0, R: 2}, def))

	assert.Len(t, s.Neighbors(origin), 1)
	assert.Len(t, s.Within(origin, 2), 2)
}

func TestClone_IsDeep(t *testing.T) {
	e := New(world.HexCoord{}, building(t, catalog.Refinery))
	require.NoError(t, e.Credit(catalog.Oil, 3))

	cp := e.Clone()
	cp.Storage[catalog.Oil] = 99
	cp.Recipe.Active = "plastic"

	assert.Equal(t, 3.0, e.Amount(catalog.Oil))
	assert.Equal(t, "petrol", e.Recipe.Active)
}

func TestStatusNames_RoundTrip(t *testing.T) {
	for s := StatusIdle; s <= StatusUnderConstruction; s++ {
		got, ok := ParseStatus(s.String())
		require.True(t, ok)
		assert.Equal(t, s, got)
	}
}

func TestPolicyNames_Parse(t *testing.T) {
	b, ok := ParseBufferPolicy("fixed")
	require.True(t, ok)
	assert.Equal(t, BufferFixed, b)

	f, ok := ParseFallback("drain")
	require.True(t, ok)
	assert.Equal(t, FallbackDrain, f)

	_, ok = ParseFallback("maybe")
	assert.False(t, ok)
}

func TestStore_DetachUnlinksReferences(t *testing.T) {
	s := NewStore()
	mine := New(world.HexCoord{Q: 1}, building(t, catalog.CoalMine))
	plant := New(world.HexCoord{}, building(t, catalog.CoalPowerPlant))
	plant.Overrides = map[catalog.ResourceKey]SourceOverride{catalog.Coal: {Source: mine.Grid}}
	s.Insert(mine)
	s.Insert(plant)

	got := s.Detach(mine.Grid)

	assert.Same(t, mine, got)
	assert.Empty(t, plant.Overrides)
	assert.Nil(t, s.Detach(mine.Grid))
}
