// Package economy provides resource pricing, trade against the market, the
// session treasury, and the central stockpile.
package economy

import (
	"errors"
	"math"
	"sort"

	"github.com/talgya/gridworks/internal/catalog"
	"github.com/talgya/gridworks/internal/tuning"
)

// ErrUnpriced is returned when trading a resource the market has no entry for.
var ErrUnpriced = errors.New("resource has no market price")

// MarketEntry is the price state of one resource.
type MarketEntry struct {
	Resource   catalog.ResourceKey `json:"resource"`
	BasePrice  float64             `json:"base_price"`  // set by the last repricing
	Elasticity float64             `json:"elasticity"`  // price response per unit traded
	Net        float64             `json:"net"`         // bought minus sold since the last repricing
	LastNet    float64             `json:"last_net"`    // Net at the moment of the last repricing
	Rate       float64             `json:"rate"`        // smoothed production per second
}

// Market holds the price table for a session.
type Market struct {
	Entries map[catalog.ResourceKey]*MarketEntry `json:"entries"`

	// Epoch counts repricings; it seeds the per-repricing random draws.
	Epoch      uint64 `json:"epoch"`
	LastTick   uint64 `json:"last_tick"`
	Headline   *News  `json:"news,omitempty"`
	TradeCount int    `json:"trade_count"`

	tuning tuning.Tuning
}

// NewMarket creates an empty market. Reprice fills it.
func NewMarket(t tuning.Tuning) *Market {
	return &Market{
		Entries: make(map[catalog.ResourceKey]*MarketEntry),
		tuning:  t,
	}
}

// SetTuning replaces the tuning, e.g. after a config reload.
func (m *Market) SetTuning(t tuning.Tuning) {
	m.tuning = t
}

// Entry returns the entry for res, or nil.
func (m *Market) Entry(res catalog.ResourceKey) *MarketEntry {
	return m.Entries[res]
}

// Keys returns priced resources in sorted order.
func (m *Market) Keys() []catalog.ResourceKey {
	keys := make([]catalog.ResourceKey, 0, len(m.Entries))
	for k := range m.Entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Price is the current spot price of res at its accumulated net quantity.
func (m *Market) Price(res catalog.ResourceKey) float64 {
	e := m.Entries[res]
	if e == nil {
		return 0
	}
	return m.spot(e, e.Net)
}

// Prices snapshots the current spot price of every resource.
func (m *Market) Prices() map[catalog.ResourceKey]float64 {
	out := make(map[catalog.ResourceKey]float64, len(m.Entries))
	for k, e := range m.Entries {
		out[k] = m.spot(e, e.Net)
	}
	return out
}

// SpotAt is the price of res were its net quantity q.
func (m *Market) SpotAt(res catalog.ResourceKey, q float64) float64 {
	e := m.Entries[res]
	if e == nil {
		return 0
	}
	return m.spot(e, q)
}

// spot applies the piecewise power-law response. With x = E·|q|, moderate
// volumes move price by x^PriceExponent; beyond the cliff at x = 1 the
// exponent drops to CliffExponent. Both branches meet at 1, and the result is
// floored at PriceFloorRatio of the base.
func (m *Market) spot(e *MarketEntry, q float64) float64 {
	base := e.BasePrice
	if base <= 0 {
		return 0
	}
	x := e.Elasticity * math.Abs(q)
	var g float64
	if x <= 1 {
		g = math.Pow(x, m.tuning.PriceExponent)
	} else {
		g = math.Pow(x, m.tuning.CliffExponent)
	}
	if q < 0 {
		g = -g
	}
	price := base * (1 + g)
	return math.Max(price, base*m.tuning.PriceFloorRatio)
}

// Cliff is the net quantity at which the response switches exponent.
func (m *Market) Cliff(res catalog.ResourceKey) float64 {
	e := m.Entries[res]
	if e == nil || e.Elasticity <= 0 {
		return math.Inf(1)
	}
	return 1 / e.Elasticity
}

// QuoteSell values selling qty of res without trading.
func (m *Market) QuoteSell(res catalog.ResourceKey, qty float64) float64 {
	e := m.Entries[res]
	if e == nil || qty <= 0 {
		return 0
	}
	total, _ := m.integrate(e, qty, -1)
	return total
}

// QuoteBuy prices buying qty of res without trading.
func (m *Market) QuoteBuy(res catalog.ResourceKey, qty float64) float64 {
	e := m.Entries[res]
	if e == nil || qty <= 0 {
		return 0
	}
	total, _ := m.integrate(e, qty, 1)
	return total
}

// Sell moves res's net quantity down by qty and returns the revenue.
func (m *Market) Sell(res catalog.ResourceKey, qty float64) (float64, error) {
	e := m.Entries[res]
	if e == nil {
		return 0, ErrUnpriced
	}
	if qty <= 0 {
		return 0, nil
	}
	total, net := m.integrate(e, qty, -1)
	e.Net = net
	m.TradeCount++
	return total, nil
}

// Buy moves res's net quantity up by qty and returns the cost.
func (m *Market) Buy(res catalog.ResourceKey, qty float64) (float64, error) {
	e := m.Entries[res]
	if e == nil {
		return 0, ErrUnpriced
	}
	if qty <= 0 {
		return 0, nil
	}
	total, net := m.integrate(e, qty, 1)
	e.Net = net
	m.TradeCount++
	return total, nil
}

// integrate splits a trade into batches, pricing each at the midpoint of the
// net quantity it spans.
func (m *Market) integrate(e *MarketEntry, qty, sign float64) (total, net float64) {
	n := m.tuning.TradeBatches
	if n < 1 {
		n = 1
	}
	if whole := int(math.Ceil(qty)); whole < n {
		n = max(whole, 1)
	}
	step := qty / float64(n)
	net = e.Net
	for i := 0; i < n; i++ {
		mid := net + sign*step/2
		total += step * m.spot(e, mid)
		net += sign * step
	}
	return total, net
}

// ObserveRates folds this tick's production rates into each entry's smoothed
// rate.
func (m *Market) ObserveRates(rates map[catalog.ResourceKey]float64) {
	a := m.tuning.RateSmoothing
	for k, e := range m.Entries {
		e.Rate = (1-a)*e.Rate + a*rates[k]
	}
}
