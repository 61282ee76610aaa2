package catalog

import (
	"errors"
	"sort"
)

var (
	// ErrUnknownBuilding is returned for a building key absent from the catalog.
	ErrUnknownBuilding = errors.New("unknown building")

	// ErrUnknownResource is returned for a resource key absent from the catalog.
	ErrUnknownResource = errors.New("unknown resource")
)

// Catalog is the full set of definitions for one session. It is read-only
// during a tick.
type Catalog struct {
	Resources map[ResourceKey]*ResourceDefinition
	Buildings map[BuildingKey]*BuildingDefinition

	// FuelResource is paid for every transport transfer.
	FuelResource ResourceKey
}

// New returns an empty catalog.
func New(fuel ResourceKey) *Catalog {
	return &Catalog{
		Resources:    make(map[ResourceKey]*ResourceDefinition),
		Buildings:    make(map[BuildingKey]*BuildingDefinition),
		FuelResource: fuel,
	}
}

// AddResource registers a resource definition.
func (c *Catalog) AddResource(r *ResourceDefinition) {
	c.Resources[r.Key] = r
}

// AddBuilding registers a building definition.
func (c *Catalog) AddBuilding(b *BuildingDefinition) {
	c.Buildings[b.Key] = b
}

// Building looks up a building definition.
func (c *Catalog) Building(k BuildingKey) (*BuildingDefinition, bool) {
	b, ok := c.Buildings[k]
	return b, ok
}

// Resource looks up a resource definition.
func (c *Catalog) Resource(k ResourceKey) (*ResourceDefinition, bool) {
	r, ok := c.Resources[k]
	return r, ok
}

// ResourceKeys returns every resource key in sorted order.
func (c *Catalog) ResourceKeys() []ResourceKey {
	keys := make([]ResourceKey, 0, len(c.Resources))
	for k := range c.Resources {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// BuildingKeys returns every building key in sorted order.
func (c *Catalog) BuildingKeys() []BuildingKey {
	keys := make([]BuildingKey, 0, len(c.Buildings))
	for k := range c.Buildings {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Clone returns a deep copy. Function fields are shared; they are pure.
func (c *Catalog) Clone() *Catalog {
	out := New(c.FuelResource)
	for k, r := range c.Resources {
		cp := *r
		out.Resources[k] = &cp
	}
	for k, b := range c.Buildings {
		cp := *b
		cp.Inputs = b.Inputs.Clone()
		cp.Outputs = b.Outputs.Clone()
		if b.Recipes != nil {
			cp.Recipes = make([]Recipe, len(b.Recipes))
			for i, r := range b.Recipes {
				r.Inputs = r.Inputs.Clone()
				r.Outputs = r.Outputs.Clone()
				cp.Recipes[i] = r
			}
		}
		out.Buildings[k] = &cp
	}
	return out
}

// ProducerRecipe is one way of making a resource, used by the pricing engine.
type ProducerRecipe struct {
	Building BuildingKey
	Recipe   string
	IO       IO
}

// Producers returns every (building, recipe) whose outputs include res, in
// stable order. Buildings flagged IgnorePricing are skipped; dynamic buildings
// are evaluated at an even mix.
func (c *Catalog) Producers(res ResourceKey) []ProducerRecipe {
	var out []ProducerRecipe
	for _, bk := range c.BuildingKeys() {
		b := c.Buildings[bk]
		if b.IgnorePricing {
			continue
		}
		switch {
		case b.Dynamic != nil:
			io := b.Dynamic(0.5)
			if io.Outputs[res] > 0 {
				out = append(out, ProducerRecipe{Building: bk, IO: io})
			}
		case b.HasRecipes():
			for _, r := range b.Recipes {
				if r.Outputs[res] > 0 {
					out = append(out, ProducerRecipe{Building: bk, Recipe: r.Key, IO: IO{Inputs: r.Inputs, Outputs: r.Outputs, Power: r.Power}})
				}
			}
		default:
			if b.Outputs[res] > 0 {
				out = append(out, ProducerRecipe{Building: bk, IO: IO{Inputs: b.Inputs, Outputs: b.Outputs, Power: b.Power}})
			}
		}
	}
	return out
}

// Consumers counts how many (building, recipe) pairs take res as input.
func (c *Catalog) Consumers(res ResourceKey) int {
	n := 0
	for _, b := range c.Buildings {
		switch {
		case b.Dynamic != nil:
			if _, ok := b.Dynamic(0.5).Inputs[res]; ok {
				n++
			}
		case b.HasRecipes():
			for _, r := range b.Recipes {
				if _, ok := r.Inputs[res]; ok {
					n++
				}
			}
		default:
			if _, ok := b.Inputs[res]; ok {
				n++
			}
		}
	}
	return n
}
