// Package catalog holds the static resource and building definitions, the
// recipe data behind them, and the per-session transforms (map profiles,
// policies) that patch a fresh copy of the base catalog.
package catalog

import (
	"math"
	"sort"

	"github.com/talgya/gridworks/internal/world"
)

// ResourceKey names a resource, e.g. "Coal".
type ResourceKey string

// BuildingKey names a building type, e.g. "CoalPowerPlant".
type BuildingKey string

// ResourceKind classifies resources for the pricing engine.
type ResourceKind uint8

const (
	ResourceDeposit      ResourceKind = iota // mined from a tile deposit
	ResourceCrop                             // grown on terrain
	ResourceManufactured                     // made from other resources
	ResourceSpeculative                      // priced with a wide random band
)

// Amounts maps resources to quantities.
type Amounts map[ResourceKey]float64

// Clone returns an independent copy.
func (a Amounts) Clone() Amounts {
	if a == nil {
		return nil
	}
	out := make(Amounts, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// Scaled returns a copy with every quantity multiplied by f.
func (a Amounts) Scaled(f float64) Amounts {
	out := make(Amounts, len(a))
	for k, v := range a {
		out[k] = v * f
	}
	return out
}

// Keys returns the resource keys in sorted order.
func (a Amounts) Keys() []ResourceKey {
	keys := make([]ResourceKey, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// IO is a resolved per-tick nominal input/output and power delta.
type IO struct {
	Inputs  Amounts `json:"inputs"`
	Outputs Amounts `json:"outputs"`
	Power   float64 `json:"power"`
}

// PriceFunc overrides the recipe-derived price of a resource. It receives the
// prices resolved so far.
type PriceFunc func(known map[ResourceKey]float64) float64

// ResourceDefinition is the static description of a resource.
type ResourceDefinition struct {
	Key      ResourceKey  `json:"key" yaml:"key"`
	Kind     ResourceKind `json:"kind" yaml:"kind"`
	Tier     int          `json:"tier" yaml:"tier"`
	FuelCost float64      `json:"fuel_cost" yaml:"fuel_cost"`   // fuel per (distance × sqrt(amount))
	RawPrice float64      `json:"raw_price" yaml:"raw_price"`   // phase-1 base for deposits and crops
	Price    PriceFunc    `json:"-" yaml:"-"`
}

// BuildingKind selects the runtime variant and tick behaviour of a building.
type BuildingKind uint8

const (
	KindProducer  BuildingKind = iota // converts inputs to outputs
	KindGenerator                     // converts inputs to power
	KindBank                          // stores surplus power
	KindBooster                       // boosts neighbours' production
	KindZone                          // industry zone, boosts its industry
	KindWarehouse                     // routes goods between partners
	KindMonument                      // adjacency compares by level
	KindCapacitor                     // meters power through accumulated charge
)

// GeneratorKind refines KindGenerator duty-cycle behaviour.
type GeneratorKind uint8

const (
	GeneratorFuel GeneratorKind = iota
	GeneratorSolar
	GeneratorWind
)

// Recipe is one sub-variant of a building sharing its slot.
type Recipe struct {
	Key      string  `json:"key"`
	Inputs   Amounts `json:"inputs"`
	Outputs  Amounts `json:"outputs"`
	Power    float64 `json:"power"`
	MinLevel int     `json:"min_level"`
}

// DynamicIO computes IO for variable-ratio buildings from their mixing ratio.
type DynamicIO func(mix float64) IO

// AvailabilityContext is what an availability predicate may inspect.
type AvailabilityContext struct {
	Profile  string
	Unlocked bool
	Counts   map[BuildingKey]int
}

// BuildingDefinition is the static description of a building type.
type BuildingDefinition struct {
	Key       BuildingKey   `json:"key"`
	Kind      BuildingKind  `json:"kind"`
	Generator GeneratorKind `json:"generator"`
	Industry  string        `json:"industry,omitempty"`

	Inputs  Amounts   `json:"inputs,omitempty"`
	Outputs Amounts   `json:"outputs,omitempty"`
	Power   float64   `json:"power"` // negative = consumer, positive = producer
	Dynamic DynamicIO `json:"-"`

	Recipes       []Recipe `json:"recipes,omitempty"`
	DefaultRecipe string   `json:"default_recipe,omitempty"`

	Available func(AvailabilityContext) bool `json:"-"`
	CanPlace  func(*world.Tile) bool         `json:"-"`

	UnlockCost float64 `json:"unlock_cost"`
	BaseCost   float64 `json:"base_cost"`
	TickLength int     `json:"tick_length"` // runs once every N ticks; 0 or 1 = every tick

	IgnorePricing   bool `json:"ignore_pricing"`
	IgnoreAdjacency bool `json:"ignore_adjacency"`

	// Variant parameters, scaled by level where noted.
	Capacity     float64 `json:"capacity,omitempty"`      // bank/warehouse/capacitor capacity per level
	ChargeRate   float64 `json:"charge_rate,omitempty"`   // bank charge per tick per level
	BoostAmount  float64 `json:"boost_amount,omitempty"`  // booster/zone boost per level
	BoostRadius  int     `json:"boost_radius,omitempty"`  // hex distance
	GlobalBonus  float64 `json:"global_bonus,omitempty"`  // zone contribution to productionMultiplier
	RouteRate    float64 `json:"route_rate,omitempty"`    // warehouse units per tick per level
}

// IsGenerator reports whether the building produces power.
func (d *BuildingDefinition) IsGenerator() bool {
	return d.Power > 0 || d.Kind == KindGenerator
}

// Exempt reports whether the building is excluded from the generic production
// multiplier and tile modifier.
func (d *BuildingDefinition) Exempt() bool {
	return d.Kind == KindBooster || d.Kind == KindZone
}

// HasRecipes reports whether the building selects among recipes.
func (d *BuildingDefinition) HasRecipes() bool {
	return len(d.Recipes) > 0
}

// Recipe returns the recipe with the given key.
func (d *BuildingDefinition) Recipe(key string) (Recipe, bool) {
	for _, r := range d.Recipes {
		if r.Key == key {
			return r, true
		}
	}
	return Recipe{}, false
}

// RecipeUnlocked reports whether the recipe exists and is unlockable at level.
func (d *BuildingDefinition) RecipeUnlocked(key string, level int) bool {
	r, ok := d.Recipe(key)
	return ok && level >= r.MinLevel
}

// IO resolves the nominal per-tick IO for an active recipe and mixing ratio.
// Unknown recipes fall back to the default recipe.
func (d *BuildingDefinition) IO(recipe string, mix float64) IO {
	switch {
	case d.Dynamic != nil:
		return d.Dynamic(mix)
	case d.HasRecipes():
		r, ok := d.Recipe(recipe)
		if !ok {
			r, _ = d.Recipe(d.DefaultRecipe)
		}
		return IO{Inputs: r.Inputs, Outputs: r.Outputs, Power: r.Power}
	default:
		return IO{Inputs: d.Inputs, Outputs: d.Outputs, Power: d.Power}
	}
}

// Consumes reports whether the resolved IO lists res as an input.
func (d *BuildingDefinition) Consumes(res ResourceKey, recipe string, mix float64) bool {
	_, ok := d.IO(recipe, mix).Inputs[res]
	return ok
}

// Placeable checks the tile predicate; a nil predicate accepts any buildable tile.
func (d *BuildingDefinition) Placeable(t *world.Tile) bool {
	if !t.Buildable() {
		return false
	}
	if d.CanPlace == nil {
		return true
	}
	return d.CanPlace(t)
}

// Ticks returns the effective tick length, at least 1.
func (d *BuildingDefinition) Ticks() int {
	if d.TickLength < 1 {
		return 1
	}
	return d.TickLength
}

// LevelMultiplier is the level factor of the production formula:
// level × (step + 1 + floor(level/step)) / (step + 1). It is exactly 1 at level 1
// and grows by an extra 1/(step+1) every step levels.
func LevelMultiplier(level, step int) float64 {
	if level < 1 {
		return 0
	}
	if step < 1 {
		step = 1
	}
	return float64(level) * float64(step+1+level/step) / float64(step+1)
}

// LevelCost is the price of raising a building from level-1 to level.
func LevelCost(d *BuildingDefinition, level int, growth float64) float64 {
	if level < 1 {
		return 0
	}
	return d.BaseCost * math.Pow(growth, float64(level-1))
}

// CostBetween is the total price of raising a building from level from to level to.
func CostBetween(d *BuildingDefinition, from, to int, growth float64) float64 {
	total := 0.0
	for l := from + 1; l <= to; l++ {
		total += LevelCost(d, l, growth)
	}
	return total
}

// OnDeposit is a tile predicate requiring a specific deposit.
func OnDeposit(res ResourceKey) func(*world.Tile) bool {
	return func(t *world.Tile) bool {
		return t != nil && t.Deposit == string(res)
	}
}

// OnTerrain is a tile predicate requiring one of the given terrains and no deposit.
func OnTerrain(terrains ...world.Terrain) func(*world.Tile) bool {
	return func(t *world.Tile) bool {
		if t == nil || t.Deposit != "" {
			return false
		}
		for _, tr := range terrains {
			if t.Terrain == tr {
				return true
			}
		}
		return false
	}
}
