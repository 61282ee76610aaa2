package economy

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/gridworks/internal/catalog"
	"github.com/talgya/gridworks/internal/tuning"
)

func evenAbundance(cat *catalog.Catalog) map[string]float64 {
	out := make(map[string]float64)
	for _, k := range cat.ResourceKeys() {
		if cat.Resources[k].Kind == catalog.ResourceDeposit {
			out[string(k)] = 1
		}
	}
	return out
}

func repriced(t *testing.T) (*Market, *catalog.Catalog) {
	t.Helper()
	cat := catalog.Default()
	m := NewMarket(tuning.Default())
	m.Reprice(PriceInputs{Catalog: cat, Abundance: evenAbundance(cat), Seed: 11, Tick: 300})
	return m, cat
}

func TestReprice_EveryResourcePricedPositive(t *testing.T) {
	m, cat := repriced(t)

	for _, k := range cat.ResourceKeys() {
		e := m.Entry(k)
		require.NotNil(t, e, "%s", k)
		assert.Greater(t, e.BasePrice, 0.0, "%s", k)
		assert.Greater(t, e.Elasticity, 0.0, "%s", k)
	}
	assert.Equal(t, uint64(1), m.Epoch)
}

func TestReprice_DeterministicForSeedAndEpoch(t *testing.T) {
	a, _ := repriced(t)
	b, _ := repriced(t)

	assert.Equal(t, a.Prices(), b.Prices())
}

func TestReprice_ManufacturedCostsMoreThanItsInputs(t *testing.T) {
	m, _ := repriced(t)

	// Iron takes 2 Fe + 1 Coal + power; the band is at most ±10%.
	inputs := 2*m.Entry(catalog.Fe).BasePrice + m.Entry(catalog.Coal).BasePrice
	assert.Greater(t, m.Entry(catalog.Iron).BasePrice, inputs*0.9)
	assert.Greater(t, m.Entry(catalog.Computer).BasePrice, m.Entry(catalog.Circuit).BasePrice)
}

func TestReprice_ScarceDepositPricesHigher(t *testing.T) {
	cat := catalog.Default()
	plenty := evenAbundance(cat)
	scarce := evenAbundance(cat)
	scarce[string(catalog.Cu)] = 0.25

	a := NewMarket(tuning.Default())
	a.Reprice(PriceInputs{Catalog: cat, Abundance: plenty, Seed: 3})
	b := NewMarket(tuning.Default())
	b.Reprice(PriceInputs{Catalog: cat, Abundance: scarce, Seed: 3})

	assert.InDelta(t, 4*a.Entry(catalog.Cu).BasePrice, b.Entry(catalog.Cu).BasePrice, 1e-9)
}

func TestReprice_ResetsNetAndKeepsLast(t *testing.T) {
	m, cat := repriced(t)
	_, err := m.Buy(catalog.Coal, 40)
	require.NoError(t, err)

	m.Reprice(PriceInputs{Catalog: cat, Abundance: evenAbundance(cat), Seed: 11})

	assert.Zero(t, m.Entry(catalog.Coal).Net)
	assert.Equal(t, 40.0, m.Entry(catalog.Coal).LastNet)
}

func TestMedianCost_ChargesRecipePower(t *testing.T) {
	// Arrange
	cat := catalog.Default()
	unit := func(catalog.ResourceKey) float64 { return 1 }
	free := tuning.Default()
	free.PowerUnitPrice = 0

	// Act
	withPower := NewMarket(tuning.Default()).medianCost(cat, catalog.Iron, unit)
	inputsOnly := NewMarket(free).medianCost(cat, catalog.Iron, unit)

	// Assert
	assert.Greater(t, inputsOnly, 0.0)
	assert.Greater(t, withPower, inputsOnly)
}

func TestReprice_UnproducibleResourceFallsBackToRawBase(t *testing.T) {
	// Arrange
	cat := catalog.Default().Clone()
	cat.Resources["Relic"] = &catalog.ResourceDefinition{Key: "Relic", Kind: catalog.ResourceManufactured, Tier: 2}
	m := NewMarket(tuning.Default())

	// Act
	m.Reprice(PriceInputs{Catalog: cat, Abundance: evenAbundance(cat), Seed: 5})

	// Assert
	e := m.Entry("Relic")
	require.NotNil(t, e)
	assert.InEpsilon(t, tuning.Default().RawPriceBase, e.BasePrice, 0.101)
}

func TestMedian(t *testing.T) {
	assert.Zero(t, median(nil))
	assert.Equal(t, 2.0, median([]float64{3, 1, 2}))
	assert.Equal(t, 2.5, median([]float64{4, 1, 3, 2}))
}

func TestSpot_FloorHoldsForAnyQuantity(t *testing.T) {
	m, _ := repriced(t)
	e := m.Entry(catalog.Steel)
	floor := e.BasePrice * 0.1

	for _, q := range []float64{-1e9, -1e5, -1 / e.Elasticity, -10, 0, 10, 1e5} {
		assert.GreaterOrEqual(t, m.SpotAt(catalog.Steel, q), floor-1e-12, "q=%v", q)
	}
}

func TestSpot_ContinuousAtCliffAndMonotone(t *testing.T) {
	m, _ := repriced(t)
	cliff := m.Cliff(catalog.Glass)

	below := m.SpotAt(catalog.Glass, cliff*(1-1e-9))
	above := m.SpotAt(catalog.Glass, cliff*(1+1e-9))

	assert.InDelta(t, below, above, 1e-6)
	assert.InDelta(t, 2*m.Entry(catalog.Glass).BasePrice, m.SpotAt(catalog.Glass, cliff), 1e-9)
	assert.Less(t, m.SpotAt(catalog.Glass, cliff), m.SpotAt(catalog.Glass, 4*cliff))
}

func TestSell_BatchedRevenueBelowFlatSpot(t *testing.T) {
	// Arrange
	m, _ := repriced(t)
	spot := m.Price(catalog.Wheat)
	qty := 500.0

	// Act
	quote := m.QuoteSell(catalog.Wheat, qty)
	revenue, err := m.Sell(catalog.Wheat, qty)

	// Assert
	require.NoError(t, err)
	assert.InDelta(t, quote, revenue, 1e-9)
	assert.Less(t, revenue, spot*qty)
	assert.Equal(t, -qty, m.Entry(catalog.Wheat).Net)
	assert.Less(t, m.Price(catalog.Wheat), spot)
}

func TestBuy_RaisesPrice(t *testing.T) {
	m, _ := repriced(t)
	before := m.Price(catalog.Coal)

	cost, err := m.Buy(catalog.Coal, 200)

	require.NoError(t, err)
	assert.Greater(t, cost, before*200)
	assert.Greater(t, m.Price(catalog.Coal), before)
}

func TestTrade_Unpriced(t *testing.T) {
	m := NewMarket(tuning.Default())

	_, err := m.Sell("Unobtainium", 1)

	assert.ErrorIs(t, err, ErrUnpriced)
}

func TestObserveRates_LowersElasticityNextRepricing(t *testing.T) {
	m, cat := repriced(t)
	before := m.Entry(catalog.Coal).Elasticity

	for i := 0; i < 100; i++ {
		m.ObserveRates(map[catalog.ResourceKey]float64{catalog.Coal: 500})
	}
	m.Reprice(PriceInputs{Catalog: cat, Abundance: evenAbundance(cat), Seed: 11})

	assert.Greater(t, m.Entry(catalog.Coal).Rate, 400.0)
	assert.Less(t, m.Entry(catalog.Coal).Elasticity, before)
}

func TestNews_TablesMatchHeadline(t *testing.T) {
	tn := tuning.Default()
	tn.NewsChance = 1
	cat := catalog.Default()
	m := NewMarket(tn)

	m.Reprice(PriceInputs{Catalog: cat, Abundance: evenAbundance(cat), Seed: 5})

	require.NotNil(t, m.Headline)
	assert.NotZero(t, m.Headline.Effect)
	assert.LessOrEqual(t, math.Abs(m.Headline.Effect), tn.NewsMaxEffect+1e-9)
	in, out := m.NewsTables()
	if m.Headline.OnInput {
		assert.Equal(t, m.Headline.Effect, in[m.Headline.Resource])
		assert.Nil(t, out)
	} else {
		assert.Equal(t, m.Headline.Effect, out[m.Headline.Resource])
		assert.Nil(t, in)
	}
}

func TestTreasury_RefundCappedByCumulativeSpend(t *testing.T) {
	// Arrange
	tr := NewTreasury(100)
	require.NoError(t, tr.Spend(60))

	// Act
	first := tr.Refund(50)
	second := tr.Refund(50)

	// Assert
	assert.Equal(t, 50.0, first)
	assert.Equal(t, 10.0, second)
	assert.Equal(t, 100.0, tr.Cash)
	assert.Zero(t, tr.RefundRoom())
	assert.ErrorIs(t, tr.Spend(1000), ErrInsufficientFunds)
}

func TestStockpile_WithdrawAndSellAll(t *testing.T) {
	m, _ := repriced(t)
	s := NewStockpile()
	s.Deposit(catalog.Coal, 10)
	s.Deposit(catalog.Coal, math.NaN())

	assert.ErrorIs(t, s.Withdraw(catalog.Coal, 11), ErrStockpileShort)
	require.NoError(t, s.Withdraw(catalog.Coal, 4))
	revenue := s.SellAll(m, []catalog.ResourceKey{catalog.Coal, catalog.Iron})

	assert.Greater(t, revenue, 0.0)
	assert.Zero(t, s.Amount(catalog.Coal))
}
