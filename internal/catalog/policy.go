package catalog

import (
	"errors"
	"fmt"
	"sort"
)

// ErrUnknownPolicy is returned for a policy key absent from the policy table.
var ErrUnknownPolicy = errors.New("unknown policy")

// ErrUnknownProfile is returned for a map profile absent from the profile table.
var ErrUnknownProfile = errors.New("unknown map profile")

// Modifiers are the session-wide factors the production calculator and the
// transport resolver read alongside the catalog.
type Modifiers struct {
	SwissBonus float64 `json:"swiss_bonus"`
	MapBonus   float64 `json:"map_bonus"`

	FuelCostScale     float64 `json:"fuel_cost_scale"`
	TileModifierScale float64 `json:"tile_modifier_scale"`

	TileModifierOff     bool `json:"tile_modifier_off"`
	TileOutputOnly      bool `json:"tile_output_only"`
	AdjacencyOutputOnly bool `json:"adjacency_output_only"`

	// RepriceTicks overrides the tuning interval when non-zero.
	RepriceTicks int `json:"reprice_ticks,omitempty"`
}

// NeutralModifiers leaves every factor at its identity value.
func NeutralModifiers() Modifiers {
	return Modifiers{FuelCostScale: 1, TileModifierScale: 1}
}

// Combine folds d into m. Additive bonuses add, scales multiply, flags OR.
func (m Modifiers) Combine(d Modifiers) Modifiers {
	m.SwissBonus += d.SwissBonus
	m.MapBonus += d.MapBonus
	if d.FuelCostScale != 0 {
		m.FuelCostScale *= d.FuelCostScale
	}
	if d.TileModifierScale != 0 {
		m.TileModifierScale *= d.TileModifierScale
	}
	m.TileModifierOff = m.TileModifierOff || d.TileModifierOff
	m.TileOutputOnly = m.TileOutputOnly || d.TileOutputOnly
	m.AdjacencyOutputOnly = m.AdjacencyOutputOnly || d.AdjacencyOutputOnly
	if d.RepriceTicks > 0 {
		m.RepriceTicks = d.RepriceTicks
	}
	return m
}

// TileScale is the effective factor applied to every tile modifier.
func (m Modifiers) TileScale() float64 {
	if m.TileModifierOff {
		return 0
	}
	return m.TileModifierScale
}

// Patch mutates a cloned catalog. It must be idempotent on a fresh clone.
type Patch func(c *Catalog)

// Policy is a player-toggled rule.
type Policy struct {
	Key         string    `json:"key"`
	Description string    `json:"description"`
	Cost        float64   `json:"cost"`
	Delta       Modifiers `json:"delta"`
	Patch       Patch     `json:"-"`
}

// MapProfile is the per-map rule set chosen when a session starts.
type MapProfile struct {
	Key            string             `json:"key"`
	Delta          Modifiers          `json:"delta"`
	DepositWeights map[string]float64 `json:"deposit_weights,omitempty"`
	Patch          Patch              `json:"-"`
}

// Policy keys.
const (
	PolicySwissPrecision     = "swiss_precision"
	PolicyFreeTrade          = "free_trade"
	PolicyUniformLand        = "uniform_land"
	PolicyLandOutputFocus    = "land_output_focus"
	PolicyClusterOutputFocus = "cluster_output_focus"
	PolicyAusterity          = "austerity"
)

// DefaultPolicies returns the built-in policy table.
func DefaultPolicies() map[string]Policy {
	return map[string]Policy{
		PolicySwissPrecision: {
			Key: PolicySwissPrecision, Description: "Precision tooling raises every production multiplier.",
			Cost: 500, Delta: Modifiers{SwissBonus: 0.2},
		},
		PolicyFreeTrade: {
			Key: PolicyFreeTrade, Description: "Transport fuel costs drop by a quarter.",
			Cost: 300, Delta: Modifiers{FuelCostScale: 0.75},
		},
		PolicyUniformLand: {
			Key: PolicyUniformLand, Description: "Tile modifiers no longer apply.",
			Cost: 200, Delta: Modifiers{TileModifierOff: true},
		},
		PolicyLandOutputFocus: {
			Key: PolicyLandOutputFocus, Description: "Tile modifiers apply to output only.",
			Cost: 400, Delta: Modifiers{TileOutputOnly: true},
		},
		PolicyClusterOutputFocus: {
			Key: PolicyClusterOutputFocus, Description: "Adjacency bonuses apply to output only.",
			Cost: 400, Delta: Modifiers{AdjacencyOutputOnly: true},
		},
		PolicyAusterity: {
			Key: PolicyAusterity, Description: "Every consumer draws ten percent less power.",
			Cost: 600, Patch: scalePowerDemand(0.9),
		},
	}
}

// Map profile keys.
const (
	ProfileStandard    = "standard"
	ProfileArchipelago = "archipelago"
	ProfileHighlands   = "highlands"
)

// DefaultProfiles returns the built-in map profiles.
func DefaultProfiles() map[string]MapProfile {
	return map[string]MapProfile{
		ProfileStandard: {Key: ProfileStandard},
		ProfileArchipelago: {
			Key:   ProfileArchipelago,
			Delta: Modifiers{MapBonus: 0.1, RepriceTicks: 120},
		},
		ProfileHighlands: {
			Key:            ProfileHighlands,
			Delta:          Modifiers{MapBonus: 0.05},
			DepositWeights: map[string]float64{"Fe": 1.6, "Cu": 1.4, "Coal": 1.2, "Oil": 0.5},
			Patch: func(c *Catalog) {
				for _, k := range []ResourceKey{Fe, Cu} {
					if r, ok := c.Resources[k]; ok {
						r.FuelCost *= 1.25
					}
				}
			},
		},
	}
}

func scalePowerDemand(f float64) Patch {
	return func(c *Catalog) {
		for _, b := range c.Buildings {
			if b.Power < 0 {
				b.Power *= f
			}
			for i := range b.Recipes {
				if b.Recipes[i].Power < 0 {
					b.Recipes[i].Power *= f
				}
			}
			if dyn := b.Dynamic; dyn != nil {
				b.Dynamic = func(mix float64) IO {
					io := dyn(mix)
					if io.Power < 0 {
						io.Power *= f
					}
					return io
				}
			}
		}
	}
}

// Prepare clones base and applies the profile followed by each policy in
// sorted key order. base is never mutated, so repeated calls with the same
// arguments produce equal results.
func Prepare(base *Catalog, profile MapProfile, policies []Policy) (*Catalog, Modifiers) {
	c := base.Clone()
	mods := NeutralModifiers().Combine(profile.Delta)
	if profile.Patch != nil {
		profile.Patch(c)
	}

	sorted := append([]Policy(nil), policies...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Key < sorted[j].Key })
	for _, p := range sorted {
		mods = mods.Combine(p.Delta)
		if p.Patch != nil {
			p.Patch(c)
		}
	}
	return c, mods
}

// ResolvePolicies looks up keys in table, skipping unknown keys. The second
// return lists what was dropped.
func ResolvePolicies(table map[string]Policy, keys []string) ([]Policy, []string) {
	var out []Policy
	var dropped []string
	for _, k := range keys {
		p, ok := table[k]
		if !ok {
			dropped = append(dropped, k)
			continue
		}
		out = append(out, p)
	}
	return out, dropped
}

// LookupProfile returns the named profile.
func LookupProfile(table map[string]MapProfile, key string) (MapProfile, error) {
	p, ok := table[key]
	if !ok {
		return MapProfile{}, fmt.Errorf("%w: %q", ErrUnknownProfile, key)
	}
	return p, nil
}
