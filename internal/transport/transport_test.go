package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/gridworks/internal/catalog"
	"github.com/talgya/gridworks/internal/entity"
	"github.com/talgya/gridworks/internal/world"
)

type pool struct {
	stock catalog.Amounts
}

func (p *pool) Amount(res catalog.ResourceKey) float64 { return p.stock[res] }

func (p *pool) Withdraw(res catalog.ResourceKey, amount float64) error {
	if p.stock[res] < amount {
		return ErrNoFuel
	}
	p.stock[res] -= amount
	return nil
}

func (p *pool) Deposit(res catalog.ResourceKey, amount float64) { p.stock[res] += amount }

type fixture struct {
	cat      *catalog.Catalog
	store    *entity.Store
	fuel     *pool
	resolver *Resolver
}

func newFixture(fuel float64) *fixture {
	f := &fixture{
		cat:   catalog.Default(),
		store: entity.NewStore(),
		fuel:  &pool{stock: catalog.Amounts{catalog.Petrol: fuel}},
	}
	f.resolver = &Resolver{
		Catalog:        f.cat,
		Store:          f.store,
		Fuel:           f.fuel,
		Queue:          NewQueue(),
		FuelCostScale:  1,
		TransitSeconds: 2,
	}
	return f
}

func (f *fixture) place(t *testing.T, k catalog.BuildingKey, g world.HexCoord, stock catalog.Amounts) *entity.Entity {
	t.Helper()
	def, ok := f.cat.Building(k)
	require.True(t, ok)
	e := entity.New(g, def)
	for res, v := range stock {
		require.NoError(t, e.Credit(res, v))
	}
	require.True(t, f.store.Insert(e))
	return e
}

func TestResolve_PicksNearestHoldingMinimum(t *testing.T) {
	// Arrange
	f := newFixture(1000)
	plant := f.place(t, catalog.CoalPowerPlant, world.HexCoord{}, nil)
	f.place(t, catalog.CoalMine, world.HexCoord{Q: 1}, catalog.Amounts{catalog.Coal: 3})
	far := f.place(t, catalog.CoalMine, world.HexCoord{Q: 3}, catalog.Amounts{catalog.Coal: 50})
	f.resolver.Rebuild()

	// Act
	out := f.resolver.Resolve(Request{Consumer: plant, Resource: catalog.Coal, Amount: 20, Min: 10})

	// Assert
	assert.Equal(t, Satisfied, out.Result)
	assert.Equal(t, 20.0, out.Moved)
	assert.Equal(t, 30.0, far.Amount(catalog.Coal))
	assert.Equal(t, 20.0, plant.Incoming[catalog.Coal])
	assert.Zero(t, plant.Amount(catalog.Coal), "credit waits for arrival")
}

func TestResolve_ConsumerOfSameResourceIsNeverASource(t *testing.T) {
	f := newFixture(1000)
	plant := f.place(t, catalog.CoalPowerPlant, world.HexCoord{}, nil)
	f.place(t, catalog.CoalPowerPlant, world.HexCoord{Q: 1}, catalog.Amounts{catalog.Coal: 100})
	f.resolver.Rebuild()

	out := f.resolver.Resolve(Request{Consumer: plant, Resource: catalog.Coal, Amount: 10, Min: 10})

	assert.Equal(t, NoSupplier, out.Result)
}

func TestResolve_WarehouseWithOutboundRoutesExcluded(t *testing.T) {
	// Arrange
	f := newFixture(1000)
	plant := f.place(t, catalog.CoalPowerPlant, world.HexCoord{}, nil)
	routed := f.place(t, catalog.Warehouse, world.HexCoord{Q: 1}, catalog.Amounts{catalog.Coal: 100})
	routed.Warehouse.Outbound = []entity.Route{{Partner: world.HexCoord{Q: 5}, Resource: catalog.Coal, Weight: 1}}
	open := f.place(t, catalog.Warehouse, world.HexCoord{Q: 2}, catalog.Amounts{catalog.Coal: 100})
	f.resolver.Rebuild()

	// Act
	out := f.resolver.Resolve(Request{Consumer: plant, Resource: catalog.Coal, Amount: 10, Min: 10})

	// Assert
	assert.Equal(t, Satisfied, out.Result)
	assert.Equal(t, 100.0, routed.Amount(catalog.Coal))
	assert.Equal(t, 90.0, open.Amount(catalog.Coal))
}

func TestResolve_MultiSourceByAscendingDistance(t *testing.T) {
	// Arrange
	f := newFixture(1000)
	plant := f.place(t, catalog.CoalPowerPlant, world.HexCoord{}, nil)
	plant.AllowPartial = true
	near := f.place(t, catalog.CoalMine, world.HexCoord{Q: 1}, catalog.Amounts{catalog.Coal: 4})
	mid := f.place(t, catalog.CoalMine, world.HexCoord{Q: 2}, catalog.Amounts{catalog.Coal: 4})
	far := f.place(t, catalog.CoalMine, world.HexCoord{Q: 3}, catalog.Amounts{catalog.Coal: 4})
	f.resolver.Rebuild()

	// Act
	out := f.resolver.Resolve(Request{Consumer: plant, Resource: catalog.Coal, Amount: 10, Min: 10})

	// Assert
	assert.Equal(t, Satisfied, out.Result)
	assert.Equal(t, 3, out.Transfers)
	assert.Zero(t, near.Amount(catalog.Coal))
	assert.Zero(t, mid.Amount(catalog.Coal))
	assert.Equal(t, 2.0, far.Amount(catalog.Coal))
}

func TestResolve_SearchRadiusExcludesFarSuppliers(t *testing.T) {
	f := newFixture(1000)
	plant := f.place(t, catalog.CoalPowerPlant, world.HexCoord{}, nil)
	plant.SearchRadius = 2
	f.place(t, catalog.CoalMine, world.HexCoord{Q: 4}, catalog.Amounts{catalog.Coal: 100})
	f.resolver.Rebuild()

	out := f.resolver.Resolve(Request{Consumer: plant, Resource: catalog.Coal, Amount: 10, Min: 10})

	assert.Equal(t, NoSupplier, out.Result)
}

func TestResolve_OverrideFallbacks(t *testing.T) {
	tests := []struct {
		name     string
		fallback entity.Fallback
		result   Result
		moved    float64
	}{
		{"auto tops up from others", entity.FallbackAuto, Satisfied, 10},
		{"drain takes what is there", entity.FallbackDrain, Partial, 3},
		{"skip moves nothing", entity.FallbackSkip, Skipped, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			f := newFixture(1000)
			plant := f.place(t, catalog.CoalPowerPlant, world.HexCoord{}, nil)
			pinned := world.HexCoord{Q: 3}
			f.place(t, catalog.CoalMine, pinned, catalog.Amounts{catalog.Coal: 3})
			f.place(t, catalog.CoalMine, world.HexCoord{Q: 1}, catalog.Amounts{catalog.Coal: 50})
			plant.Overrides = map[catalog.ResourceKey]entity.SourceOverride{catalog.Coal: {Source: pinned, Fallback: tt.fallback}}
			f.resolver.Rebuild()

			// Act
			out := f.resolver.Resolve(Request{Consumer: plant, Resource: catalog.Coal, Amount: 10, Min: 7})

			// Assert
			assert.Equal(t, tt.result, out.Result)
			assert.InDelta(t, tt.moved, out.Moved, 1e-9)
		})
	}
}

func TestTransfer_FuelCostAndStarvation(t *testing.T) {
	// Arrange: distance 2, amount 16, Coal fuel factor 0.01 => 0.08 fuel.
	f := newFixture(0.05)
	plant := f.place(t, catalog.CoalPowerPlant, world.HexCoord{}, nil)
	mine := f.place(t, catalog.CoalMine, world.HexCoord{Q: 2}, catalog.Amounts{catalog.Coal: 16})
	f.resolver.Rebuild()

	// Act
	out := f.resolver.Resolve(Request{Consumer: plant, Resource: catalog.Coal, Amount: 16, Min: 16})

	// Assert
	assert.InDelta(t, 0.08, f.resolver.FuelCost(catalog.Coal, 2, 16), 1e-9)
	assert.Equal(t, NoFuel, out.Result)
	assert.Equal(t, 16.0, mine.Amount(catalog.Coal), "source untouched when fuel is short")
	assert.Equal(t, 1, f.resolver.Stats.FuelStarved)
	assert.Zero(t, f.resolver.Queue.Len())
}

func TestArrive_CreditsAfterTransitAndFallsBackWhenGone(t *testing.T) {
	// Arrange
	f := newFixture(1000)
	plant := f.place(t, catalog.CoalPowerPlant, world.HexCoord{}, nil)
	f.place(t, catalog.CoalMine, world.HexCoord{Q: 1}, catalog.Amounts{catalog.Coal: 30})
	other := f.place(t, catalog.CoalPowerPlant, world.HexCoord{Q: 2}, nil)
	f.resolver.Rebuild()
	f.resolver.Resolve(Request{Consumer: plant, Resource: catalog.Coal, Amount: 10, Min: 10})
	f.resolver.Resolve(Request{Consumer: other, Resource: catalog.Coal, Amount: 10, Min: 10})
	f.store.Remove(other.Grid)
	fuelBefore := f.fuel.stock[catalog.Coal]

	// Act
	early := f.resolver.Arrive(1.9, f.fuel)
	landed := f.resolver.Arrive(2.0, f.fuel)
	rest := f.resolver.Arrive(10, f.fuel)

	// Assert: both trips are one hex long and land at t=2.
	assert.Zero(t, early)
	assert.Equal(t, 2, landed)
	assert.Zero(t, rest)
	assert.Equal(t, 10.0, plant.Amount(catalog.Coal))
	assert.Empty(t, plant.Incoming)
	assert.Equal(t, fuelBefore+10, f.fuel.stock[catalog.Coal])
}

func TestQueue_OrdersByDeadlineThenInsertion(t *testing.T) {
	q := NewQueue()
	q.Push(&Delivery{Resource: "b", Deadline: 5})
	q.Push(&Delivery{Resource: "a", Deadline: 1})
	q.Push(&Delivery{Resource: "c", Deadline: 5})

	pending := q.Pending()
	due := q.PollDue(5)

	require.Len(t, pending, 3)
	assert.Equal(t, []catalog.ResourceKey{"a", "b", "c"}, []catalog.ResourceKey{pending[0].Resource, pending[1].Resource, pending[2].Resource})
	require.Len(t, due, 3)
	assert.Equal(t, catalog.ResourceKey("c"), due[2].Resource)
	assert.Zero(t, q.Len())
}
