// Package power arbitrates the single shared power pool of a tick: generator
// supply, consumer usage, and power-bank reserves.
package power

import (
	"log/slog"
	"math"
	"sort"

	"github.com/talgya/gridworks/internal/entity"
	"github.com/talgya/gridworks/internal/world"
)

// bank is a power bank registered for the current tick.
type bank struct {
	grid     world.HexCoord
	state    *entity.BankState
	capacity float64
	rate     float64
}

// Balance is a read-only view of the grid for queries and metrics.
type Balance struct {
	Supply    float64 `json:"supply"`
	Usage     float64 `json:"usage"`
	Reserve   float64 `json:"reserve"`
	Capacity  float64 `json:"capacity"`
	BankDraw  float64 `json:"bank_draw"`
	Charged   float64 `json:"charged"`
	Available float64 `json:"available"`
}

// Grid is rebuilt every tick. Supply comes from generators, usage from
// consumers; draws beyond supply come out of eligible banks.
type Grid struct {
	supply   float64
	usage    float64
	bankDraw float64
	charged  float64
	banks    []*bank

	// Violations counts invariant breaches seen since the last Reset.
	Violations int
}

// NewGrid returns an empty grid.
func NewGrid() *Grid {
	return &Grid{}
}

// Reset clears per-tick accumulators and bank registrations. Bank reserves
// live on the entities and carry over.
func (g *Grid) Reset() {
	g.supply, g.usage, g.bankDraw, g.charged = 0, 0, 0, 0
	g.banks = g.banks[:0]
	g.Violations = 0
}

// AddBank registers a bank for this tick. A bank without a producing
// neighbour does not participate and loses its reserve.
func (g *Grid) AddBank(grid world.HexCoord, state *entity.BankState, capacity, rate float64, eligible bool) {
	if state == nil {
		return
	}
	if !eligible {
		state.Reserve = 0
		return
	}
	if state.Reserve > capacity {
		state.Reserve = capacity
	}
	g.banks = append(g.banks, &bank{grid: grid, state: state, capacity: capacity, rate: rate})
}

// AddSupply records generator output.
func (g *Grid) AddSupply(amount float64) {
	if amount < 0 || math.IsNaN(amount) {
		g.violation("negative supply", "amount", amount)
		return
	}
	g.supply += amount
}

// Reserve is the total charge held by participating banks.
func (g *Grid) Reserve() float64 {
	total := 0.0
	for _, b := range g.banks {
		total += b.state.Reserve
	}
	return total
}

// HasEnoughPower reports whether supply + reserve - usage > amount.
func (g *Grid) HasEnoughPower(amount float64) bool {
	return g.supply+g.Reserve()-g.usage > amount
}

// TryDeductPower draws amount from the supply balance first, then from banks
// in descending reserve order. It fails without effect when HasEnoughPower
// would.
func (g *Grid) TryDeductPower(amount float64) bool {
	if amount < 0 || math.IsNaN(amount) {
		g.violation("invalid power deduction", "amount", amount)
		return false
	}
	if amount == 0 {
		return true
	}
	if !g.HasEnoughPower(amount) {
		return false
	}

	fromSupply := math.Min(math.Max(g.supply-g.usage, 0), amount)
	rest := amount - fromSupply

	order := make([]*bank, len(g.banks))
	copy(order, g.banks)
	sort.SliceStable(order, func(i, j int) bool { return order[i].state.Reserve > order[j].state.Reserve })

	// Plan the bank draw before mutating anything.
	plan := make([]float64, len(order))
	for i, b := range order {
		if rest <= 0 {
			break
		}
		take := math.Min(b.state.Reserve, rest)
		plan[i] = take
		rest -= take
	}
	if rest > 1e-9 {
		g.violation("pre-checked deduction fell short", "amount", amount, "short", rest)
		return false
	}

	g.usage += fromSupply
	for i, b := range order {
		b.state.Reserve -= plan[i]
		g.bankDraw += plan[i]
	}
	return true
}

// ChargeBanks moves surplus supply into banks in registration order, each
// transfer capped by the bank's rate, its free capacity, and what surplus is
// left. It runs after every consumer has drawn.
func (g *Grid) ChargeBanks() float64 {
	total := 0.0
	for _, b := range g.banks {
		surplus := g.supply - g.usage
		if surplus <= 0 {
			break
		}
		room := b.capacity - b.state.Reserve
		if room <= 0 {
			continue
		}
		amt := math.Min(b.rate, math.Min(room, surplus))
		b.state.Reserve += amt
		g.usage += amt
		total += amt
	}
	g.charged += total
	return total
}

// Balance snapshots the grid.
func (g *Grid) Balance() Balance {
	capacity := 0.0
	for _, b := range g.banks {
		capacity += b.capacity
	}
	reserve := g.Reserve()
	return Balance{
		Supply:    g.supply,
		Usage:     g.usage,
		Reserve:   reserve,
		Capacity:  capacity,
		BankDraw:  g.bankDraw,
		Charged:   g.charged,
		Available: g.supply + reserve - g.usage,
	}
}

func (g *Grid) violation(msg string, args ...any) {
	g.Violations++
	slog.Error(msg, append([]any{"invariant", "power"}, args...)...)
}
