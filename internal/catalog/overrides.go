package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// BuildingOverride replaces selected fields of a building definition. Nil
// fields are left untouched.
type BuildingOverride struct {
	BaseCost   *float64 `yaml:"base_cost"`
	UnlockCost *float64 `yaml:"unlock_cost"`
	Power      *float64 `yaml:"power"`
	TickLength *int     `yaml:"tick_length"`
	Inputs     Amounts  `yaml:"inputs"`
	Outputs    Amounts  `yaml:"outputs"`
	Capacity   *float64 `yaml:"capacity"`
	ChargeRate *float64 `yaml:"charge_rate"`
}

// ResourceOverride replaces selected fields of a resource definition.
type ResourceOverride struct {
	RawPrice *float64 `yaml:"raw_price"`
	FuelCost *float64 `yaml:"fuel_cost"`
	Tier     *int     `yaml:"tier"`
}

// Overrides is the on-disk catalog override file.
type Overrides struct {
	Buildings map[BuildingKey]BuildingOverride `yaml:"buildings"`
	Resources map[ResourceKey]ResourceOverride `yaml:"resources"`
}

// LoadOverrides reads an override file.
func LoadOverrides(path string) (Overrides, error) {
	var o Overrides
	b, err := os.ReadFile(path)
	if err != nil {
		return o, fmt.Errorf("read catalog overrides: %w", err)
	}
	if err := yaml.Unmarshal(b, &o); err != nil {
		return o, fmt.Errorf("parse catalog overrides: %w", err)
	}
	return o, nil
}

// Apply patches c in place. Keys the catalog does not know are returned
// wrapped in ErrUnknownBuilding or ErrUnknownResource after every known key has
// been applied.
func (o Overrides) Apply(c *Catalog) error {
	var firstErr error
	for k, bo := range o.Buildings {
		b, ok := c.Buildings[k]
		if !ok {
			if firstErr == nil {
				firstErr = fmt.Errorf("%w: %s", ErrUnknownBuilding, k)
			}
			continue
		}
		if bo.BaseCost != nil {
			b.BaseCost = *bo.BaseCost
		}
		if bo.UnlockCost != nil {
			b.UnlockCost = *bo.UnlockCost
		}
		if bo.Power != nil {
			b.Power = *bo.Power
		}
		if bo.TickLength != nil {
			b.TickLength = *bo.TickLength
		}
		if bo.Inputs != nil {
			b.Inputs = bo.Inputs.Clone()
		}
		if bo.Outputs != nil {
			b.Outputs = bo.Outputs.Clone()
		}
		if bo.Capacity != nil {
			b.Capacity = *bo.Capacity
		}
		if bo.ChargeRate != nil {
			b.ChargeRate = *bo.ChargeRate
		}
	}
	for k, ro := range o.Resources {
		r, ok := c.Resources[k]
		if !ok {
			if firstErr == nil {
				firstErr = fmt.Errorf("%w: %s", ErrUnknownResource, k)
			}
			continue
		}
		if ro.RawPrice != nil {
			r.RawPrice = *ro.RawPrice
		}
		if ro.FuelCost != nil {
			r.FuelCost = *ro.FuelCost
		}
		if ro.Tier != nil {
			r.Tier = *ro.Tier
		}
	}
	return firstErr
}

// AsPatch wraps the overrides as a catalog patch, dropping unknown keys.
func (o Overrides) AsPatch() Patch {
	return func(c *Catalog) { _ = o.Apply(c) }
}
