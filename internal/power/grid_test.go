package power

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/talgya/gridworks/internal/entity"
	"github.com/talgya/gridworks/internal/world"
)

func TestTryDeduct_InsufficientLeavesUsageUnchanged(t *testing.T) {
	// Arrange: supply 50, one bank holding 40.
	g := NewGrid()
	g.AddSupply(50)
	g.AddBank(world.HexCoord{}, &entity.BankState{Reserve: 40}, 100, 10, true)

	// Act
	ok := g.TryDeductPower(100)

	// Assert
	assert.False(t, g.HasEnoughPower(100))
	assert.False(t, ok)
	assert.Zero(t, g.Balance().Usage)
	assert.Equal(t, 40.0, g.Reserve())
}

func TestHasEnoughPower_IsStrict(t *testing.T) {
	g := NewGrid()
	g.AddSupply(10)

	assert.False(t, g.HasEnoughPower(10))
	assert.True(t, g.HasEnoughPower(9.99))
}

func TestTryDeduct_SupplyThenBanksByDescendingReserve(t *testing.T) {
	// Arrange
	g := NewGrid()
	g.AddSupply(50)
	small := &entity.BankState{Reserve: 10}
	large := &entity.BankState{Reserve: 30}
	g.AddBank(world.HexCoord{Q: 0}, small, 100, 10, true)
	g.AddBank(world.HexCoord{Q: 1}, large, 100, 10, true)

	// Act
	ok := g.TryDeductPower(70)

	// Assert
	assert.True(t, ok)
	assert.Equal(t, 50.0, g.Balance().Usage)
	assert.Equal(t, 10.0, large.Reserve)
	assert.Equal(t, 10.0, small.Reserve)
	assert.Equal(t, 20.0, g.Balance().BankDraw)
}

func TestIneligibleBankReserveForcedToZero(t *testing.T) {
	g := NewGrid()
	state := &entity.BankState{Reserve: 80}

	g.AddBank(world.HexCoord{}, state, 100, 10, false)

	assert.Zero(t, state.Reserve)
	assert.Zero(t, g.Reserve())
}

func TestHasEnoughFalseImpliesDeductFalse(t *testing.T) {
	for _, amount := range []float64{0.5, 5, 29.9, 30, 31, 1000} {
		g := NewGrid()
		g.AddSupply(20)
		g.AddBank(world.HexCoord{}, &entity.BankState{Reserve: 10}, 50, 5, true)

		if !g.HasEnoughPower(amount) {
			assert.False(t, g.TryDeductPower(amount), "amount %v", amount)
		}
	}
}

func TestConservation_TotalDrawNeverExceedsSupplyPlusReserve(t *testing.T) {
	g := NewGrid()
	g.AddSupply(40)
	g.AddBank(world.HexCoord{}, &entity.BankState{Reserve: 25}, 50, 5, true)
	start := 40.0 + 25.0

	drawn := 0.0
	for i := 0; i < 20; i++ {
		if g.TryDeductPower(7) {
			drawn += 7
		}
	}

	assert.LessOrEqual(t, drawn, start)
	b := g.Balance()
	assert.InDelta(t, drawn, b.Usage+b.BankDraw, 1e-9)
}

func TestChargeBanks_CappedByRateRoomAndSurplus(t *testing.T) {
	// Arrange
	g := NewGrid()
	g.AddSupply(30)
	a := &entity.BankState{Reserve: 95}
	b := &entity.BankState{Reserve: 0}
	c := &entity.BankState{Reserve: 0}
	g.AddBank(world.HexCoord{Q: 0}, a, 100, 20, true)
	g.AddBank(world.HexCoord{Q: 1}, b, 100, 20, true)
	g.AddBank(world.HexCoord{Q: 2}, c, 100, 20, true)
	g.TryDeductPower(2)

	// Act
	charged := g.ChargeBanks()

	// Assert: 5 room-limited, 20 rate-limited, 3 surplus-limited.
	assert.Equal(t, 100.0, a.Reserve)
	assert.Equal(t, 20.0, b.Reserve)
	assert.InDelta(t, 3, c.Reserve, 1e-9)
	assert.InDelta(t, 28, charged, 1e-9)
	assert.InDelta(t, 30, g.Balance().Usage, 1e-9)
}

func TestInvalidDeductionCountsViolation(t *testing.T) {
	g := NewGrid()
	g.AddSupply(10)

	assert.False(t, g.TryDeductPower(-1))
	assert.Equal(t, 1, g.Violations)
}
