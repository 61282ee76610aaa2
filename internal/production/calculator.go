package production

import (
	"github.com/talgya/gridworks/internal/catalog"
	"github.com/talgya/gridworks/internal/entity"
	"github.com/talgya/gridworks/internal/tuning"
	"github.com/talgya/gridworks/internal/weather"
	"github.com/talgya/gridworks/internal/world"
)

// News is the live market-news factor per resource, applied on top of the
// stable stack.
type News struct {
	Input  map[catalog.ResourceKey]float64
	Output map[catalog.ResourceKey]float64
}

// Multipliers is the factor breakdown for one entity.
type Multipliers struct {
	Level      float64 `json:"level"`
	Production float64 `json:"production"`
	TileIn     float64 `json:"tile_in"`
	TileOut    float64 `json:"tile_out"`
	Adjacency  int     `json:"adjacency"`
	AdjIn      float64 `json:"adj_in"`
	AdjOut     float64 `json:"adj_out"`
	Boost      float64 `json:"boost"`
	Input      float64 `json:"input"`
	Output     float64 `json:"output"`
}

// Result is the effective per-run IO of one entity.
type Result struct {
	Inputs  catalog.Amounts `json:"inputs"`
	Outputs catalog.Amounts `json:"outputs"`
	// Power is positive for generator output and negative for consumer draw.
	Power float64     `json:"power"`
	Mult  Multipliers `json:"multipliers"`
}

// Calculator evaluates the multiplier stack. It holds no per-entity state;
// everything mutable lives in the BoostCache it is given.
type Calculator struct {
	Tuning    tuning.Tuning
	Modifiers catalog.Modifiers
	Seed      int64
	Weather   weather.Clock
	Cache     *BoostCache
	News      News
}

// Multipliers computes the factor stack for e.
func (c *Calculator) Multipliers(e *entity.Entity, def *catalog.BuildingDefinition, mode Mode) Multipliers {
	m := Multipliers{
		Level:   catalog.LevelMultiplier(e.Level, c.Tuning.LevelStep),
		TileIn:  1,
		TileOut: 1,
		AdjIn:   1,
		AdjOut:  1,
	}

	if def.Exempt() {
		m.Production = 1
		if def.Kind == catalog.KindBooster && c.Cache != nil {
			m.Production = float64(max(c.Cache.Boosters(), 1))
		}
	} else {
		zone := 0.0
		if c.Cache != nil {
			zone = c.Cache.ZoneBonus(def.Industry, mode)
		}
		m.Production = c.Tuning.ProductionScaler * (1 + c.Modifiers.SwissBonus + c.Modifiers.MapBonus + zone)

		tile := world.TileModifier(c.Seed, e.Grid, string(def.Key), c.Tuning.TileModifierRange, c.Tuning.TileModifierStep) * c.Modifiers.TileScale()
		m.TileOut = 1 + tile
		if !c.Modifiers.TileOutputOnly {
			m.TileIn = 1 + tile
		}
	}

	if c.Cache != nil {
		m.Adjacency = c.Cache.Adjacency(e, def, mode)
		adj := 1 + float64(m.Adjacency)*c.Tuning.AdjacencyBonus
		m.AdjOut = adj
		if !c.Modifiers.AdjacencyOutputOnly {
			m.AdjIn = adj
		}
		if !def.Exempt() {
			m.Boost = c.Cache.Boost(e.Grid, mode)
		}
	}

	base := m.Level * m.Production * (1 + m.Boost)
	m.Input = base * m.TileIn * m.AdjIn
	m.Output = base * m.TileOut * m.AdjOut
	return m
}

// Amounts returns the effective IO of one run of e.
func (c *Calculator) Amounts(e *entity.Entity, def *catalog.BuildingDefinition, mode Mode, tick uint64) Result {
	io := e.IO(def)
	m := c.Multipliers(e, def, mode)
	r := Result{
		Inputs:  scaled(io.Inputs, m.Input, c.newsFor(c.News.Input, mode)),
		Outputs: scaled(io.Outputs, m.Output, c.newsFor(c.News.Output, mode)),
		Mult:    m,
	}

	switch {
	case io.Power > 0:
		r.Power = io.Power * m.Output * c.duty(def, tick)
	case io.Power < 0:
		r.Power = io.Power * m.Input
	}
	return r
}

// duty is the generator gating factor: 1 for fuel plants, daylight for solar,
// wind strength for turbines.
func (c *Calculator) duty(def *catalog.BuildingDefinition, tick uint64) float64 {
	switch def.Generator {
	case catalog.GeneratorSolar:
		if c.Weather.Daylight(tick) {
			return 1
		}
		return 0
	case catalog.GeneratorWind:
		return c.Weather.Wind(tick)
	default:
		return 1
	}
}

func (c *Calculator) newsFor(table map[catalog.ResourceKey]float64, mode Mode) map[catalog.ResourceKey]float64 {
	if mode != Live {
		return nil
	}
	return table
}

func scaled(a catalog.Amounts, f float64, news map[catalog.ResourceKey]float64) catalog.Amounts {
	out := make(catalog.Amounts, len(a))
	for k, v := range a {
		q := v * f
		if n, ok := news[k]; ok {
			q *= 1 + n
		}
		out[k] = q
	}
	return out
}

// Rate converts a per-run result into per-second rates for an entity that
// runs every ticks ticks.
func Rate(r Result, ticks int, tickSeconds float64) Result {
	period := float64(max(ticks, 1)) * tickSeconds
	if period <= 0 {
		return r
	}
	out := Result{
		Inputs:  r.Inputs.Scaled(1 / period),
		Outputs: r.Outputs.Scaled(1 / period),
		Power:   r.Power / period,
		Mult:    r.Mult,
	}
	return out
}
