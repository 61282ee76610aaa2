package economy

import (
	"log/slog"
	"math"
	"sort"

	"github.com/talgya/gridworks/internal/catalog"
	"github.com/talgya/gridworks/internal/world"
)

// Repricing inputs that change between calls.
type PriceInputs struct {
	Catalog   *catalog.Catalog
	Abundance map[string]float64 // deposit count relative to an even split
	Seed      int64
	Tick      uint64
}

const (
	minAbundance = 0.25
	minPrice     = 0.01
	// elasticityPerTier scales how strongly trade volume moves price.
	elasticityPerTier = 0.001
	// wellConnected is the producer+consumer count at which the random band tightens.
	wellConnected = 3
)

// Reprice recomputes every base price in two phases and resets the net
// traded quantities. Raw resources are priced from a seeded draw over their
// map abundance; everything else is the median recipe cost, resolved in
// approximate-price order.
func (m *Market) Reprice(in PriceInputs) {
	m.Epoch++
	m.LastTick = in.Tick
	cat := in.Catalog

	known := make(map[catalog.ResourceKey]float64)
	var derived []catalog.ResourceKey
	var custom []catalog.ResourceKey
	for _, k := range cat.ResourceKeys() {
		def := cat.Resources[k]
		switch {
		case def.Price != nil:
			custom = append(custom, k)
		case def.Kind == catalog.ResourceDeposit || def.Kind == catalog.ResourceCrop:
			known[k] = m.rawPrice(def, in)
		default:
			derived = append(derived, k)
		}
	}

	approx := m.approximate(cat, derived, known)
	sort.SliceStable(derived, func(i, j int) bool { return approx[derived[i]] < approx[derived[j]] })

	r := resolver{m: m, cat: cat, known: known, visiting: make(map[catalog.ResourceKey]bool)}
	for _, k := range derived {
		r.resolve(k)
	}
	for _, k := range derived {
		known[k] *= m.band(cat, k, in.Seed)
	}
	for _, k := range custom {
		known[k] = cat.Resources[k].Price(known) * m.band(cat, k, in.Seed)
	}

	for _, k := range cat.ResourceKeys() {
		price := math.Max(known[k], minPrice)
		e := m.Entries[k]
		if e == nil {
			e = &MarketEntry{Resource: k}
			m.Entries[k] = e
		}
		e.BasePrice = price
		e.Elasticity = elasticity(cat.Resources[k].Tier, price, e.Rate)
		e.LastNet = e.Net
		e.Net = 0
	}
	for k := range m.Entries {
		if _, ok := cat.Resources[k]; !ok {
			delete(m.Entries, k)
		}
	}

	m.rollNews(cat, in.Seed)
	slog.Debug("market repriced", "epoch", m.Epoch, "tick", in.Tick, "resources", len(m.Entries))
}

// rawPrice is phase one: a seeded draw in [0.8, 1.2] over abundance.
func (m *Market) rawPrice(def *catalog.ResourceDefinition, in PriceInputs) float64 {
	base := def.RawPrice
	if base <= 0 {
		base = m.tuning.RawPriceBase
	}
	ab := 1.0
	if def.Kind == catalog.ResourceDeposit {
		ab = in.Abundance[string(def.Key)]
		if ab < minAbundance {
			ab = minAbundance
		}
	}
	return base * (0.8 + 0.4*m.draw(in.Seed, def.Key, "raw")) / ab
}

// approximate is the first pass: tier order, no recursion, unknown inputs at
// zero. It only sequences the second pass.
func (m *Market) approximate(cat *catalog.Catalog, keys []catalog.ResourceKey, raw map[catalog.ResourceKey]float64) map[catalog.ResourceKey]float64 {
	order := append([]catalog.ResourceKey(nil), keys...)
	sort.SliceStable(order, func(i, j int) bool { return cat.Resources[order[i]].Tier < cat.Resources[order[j]].Tier })
	approx := make(map[catalog.ResourceKey]float64, len(raw)+len(keys))
	for k, v := range raw {
		approx[k] = v
	}
	for _, k := range order {
		approx[k] = m.medianCost(cat, k, func(in catalog.ResourceKey) float64 { return approx[in] })
	}
	return approx
}

type resolver struct {
	m        *Market
	cat      *catalog.Catalog
	known    map[catalog.ResourceKey]float64
	visiting map[catalog.ResourceKey]bool
}

// resolve prices k, recursing into inputs not yet known. A cycle resolves
// to zero contribution; a resource with no priced recipe gets RawPriceBase.
func (r *resolver) resolve(k catalog.ResourceKey) float64 {
	if v, ok := r.known[k]; ok {
		return v
	}
	if r.visiting[k] {
		return 0
	}
	def, ok := r.cat.Resources[k]
	if !ok || def.Price != nil {
		return 0
	}
	r.visiting[k] = true
	v := r.m.medianCost(r.cat, k, r.resolve)
	delete(r.visiting, k)
	if v <= 0 {
		v = r.m.tuning.RawPriceBase
	}
	r.known[k] = v
	return v
}

// medianCost is the median over producing recipes of input cost plus power
// cost, per unit of k produced.
func (m *Market) medianCost(cat *catalog.Catalog, k catalog.ResourceKey, price func(catalog.ResourceKey) float64) float64 {
	var costs []float64
	for _, p := range cat.Producers(k) {
		out := p.IO.Outputs[k]
		if out <= 0 {
			continue
		}
		cost := 0.0
		for _, in := range p.IO.Inputs.Keys() {
			cost += p.IO.Inputs[in] * price(in)
		}
		if p.IO.Power < 0 {
			cost += -p.IO.Power * m.tuning.PowerUnitPrice
		}
		costs = append(costs, cost/out)
	}
	return median(costs)
}

func median(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	sort.Float64s(v)
	n := len(v)
	if n%2 == 1 {
		return v[n/2]
	}
	return (v[n/2-1] + v[n/2]) / 2
}

// band is the bounded random multiplier: ±5% for well-connected resources,
// [0.7, 1.5] for speculative ones, ±10% otherwise.
func (m *Market) band(cat *catalog.Catalog, k catalog.ResourceKey, seed int64) float64 {
	u := m.draw(seed, k, "band")
	switch {
	case cat.Resources[k].Kind == catalog.ResourceSpeculative:
		return 0.7 + 0.8*u
	case len(cat.Producers(k))+cat.Consumers(k) >= wellConnected:
		return 0.95 + 0.1*u
	default:
		return 0.9 + 0.2*u
	}
}

// draw is a deterministic value in [0, 1) for (seed, epoch, resource, tag).
func (m *Market) draw(seed int64, k catalog.ResourceKey, tag string) float64 {
	return world.Unit(world.Hash64(seed, world.HexCoord{Q: int(m.Epoch)}, tag+":"+string(k)))
}

// elasticity grows with tier and price and shrinks with production rate.
func elasticity(tier int, price, rate float64) float64 {
	t := float64(max(tier, 1))
	return elasticityPerTier * t * (1 + math.Log10(1+price)) / (1 + math.Log10(1+math.Max(rate, 0)))
}
