package entity

import (
	"errors"
	"fmt"
	"math"

	"github.com/talgya/gridworks/internal/catalog"
	"github.com/talgya/gridworks/internal/world"
)

var (
	// ErrInsufficient is returned when a debit exceeds stored quantity.
	ErrInsufficient = errors.New("insufficient stored quantity")

	// ErrInvalidAmount is returned for negative, NaN, or infinite amounts.
	ErrInvalidAmount = errors.New("invalid amount")
)

// epsilon absorbs float drift when comparing stored quantities.
const epsilon = 1e-9

// New creates an active level-1 entity with the variant payload its kind needs.
func New(grid world.HexCoord, def *catalog.BuildingDefinition) *Entity {
	e := &Entity{
		Grid:    grid,
		Type:    def.Key,
		Kind:    def.Kind,
		Level:   1,
		Storage: make(catalog.Amounts),
	}
	e.EnsureVariant(def)
	return e
}

// EnsureVariant attaches the payload matching def and drops any that do not.
// It is safe to call on loaded entities.
func (e *Entity) EnsureVariant(def *catalog.BuildingDefinition) {
	e.Kind = def.Kind
	if def.HasRecipes() || def.Dynamic != nil {
		if e.Recipe == nil {
			e.Recipe = &RecipeState{Active: def.DefaultRecipe, Mix: 0.5}
		}
	} else {
		e.Recipe = nil
	}
	if def.Kind == catalog.KindBank {
		if e.Bank == nil {
			e.Bank = &BankState{}
		}
	} else {
		e.Bank = nil
	}
	if def.Kind == catalog.KindCapacitor {
		if e.Charge == nil {
			e.Charge = &ChargeState{}
		}
	} else {
		e.Charge = nil
	}
	if def.Kind == catalog.KindWarehouse {
		if e.Warehouse == nil {
			e.Warehouse = &WarehouseState{}
		}
	} else {
		e.Warehouse = nil
	}
	if e.Storage == nil {
		e.Storage = make(catalog.Amounts)
	}
}

// Active reports whether the entity has finished construction.
func (e *Entity) Active() bool {
	return e.Construction == ConstructionNone
}

// Working reports whether the last tick produced.
func (e *Entity) Working() bool {
	return e.Status == StatusWorking
}

// Amount returns the stored quantity of res.
func (e *Entity) Amount(res catalog.ResourceKey) float64 {
	return e.Storage[res]
}

// Has reports whether at least amount of res is stored.
func (e *Entity) Has(res catalog.ResourceKey, amount float64) bool {
	return e.Storage[res]+epsilon >= amount
}

// Credit adds amount of res to storage.
func (e *Entity) Credit(res catalog.ResourceKey, amount float64) error {
	if !valid(amount) {
		return fmt.Errorf("credit %s %v to %s: %w", res, amount, e.Grid, ErrInvalidAmount)
	}
	if amount == 0 {
		return nil
	}
	if e.Storage == nil {
		e.Storage = make(catalog.Amounts)
	}
	e.Storage[res] += amount
	return nil
}

// Debit removes amount of res from storage. The store is left untouched on error.
func (e *Entity) Debit(res catalog.ResourceKey, amount float64) error {
	if !valid(amount) {
		return fmt.Errorf("debit %s %v from %s: %w", res, amount, e.Grid, ErrInvalidAmount)
	}
	if amount == 0 {
		return nil
	}
	have := e.Storage[res]
	if have+epsilon < amount {
		return fmt.Errorf("debit %s %v from %s holding %v: %w", res, amount, e.Grid, have, ErrInsufficient)
	}
	left := have - amount
	if left < epsilon {
		delete(e.Storage, res)
		return nil
	}
	e.Storage[res] = left
	return nil
}

// DebitAll removes every amount or none of them.
func (e *Entity) DebitAll(amounts catalog.Amounts) error {
	for _, k := range amounts.Keys() {
		if !e.Has(k, amounts[k]) {
			return fmt.Errorf("debit %s %v from %s: %w", k, amounts[k], e.Grid, ErrInsufficient)
		}
	}
	for _, k := range amounts.Keys() {
		if err := e.Debit(k, amounts[k]); err != nil {
			return err
		}
	}
	return nil
}

// Ticks is the effective run interval, honouring the per-entity override.
func (e *Entity) Ticks(def *catalog.BuildingDefinition) int {
	if e.TickLength > 0 {
		return e.TickLength
	}
	return def.Ticks()
}

// DueAt reports whether the entity runs on tick.
func (e *Entity) DueAt(def *catalog.BuildingDefinition, tick uint64) bool {
	return tick%uint64(e.Ticks(def)) == 0
}

// ActiveRecipe returns the selected recipe key and mix, or zero values.
func (e *Entity) ActiveRecipe() (string, float64) {
	if e.Recipe == nil {
		return "", 0.5
	}
	return e.Recipe.Active, e.Recipe.Mix
}

// IO resolves the nominal IO for the entity's current recipe.
func (e *Entity) IO(def *catalog.BuildingDefinition) catalog.IO {
	r, mix := e.ActiveRecipe()
	return def.IO(r, mix)
}

// Corrupt returns the keys whose stored quantity is negative or not finite.
func (e *Entity) Corrupt() []catalog.ResourceKey {
	var bad []catalog.ResourceKey
	for _, k := range e.Storage.Keys() {
		if !valid(e.Storage[k]) {
			bad = append(bad, k)
		}
	}
	return bad
}

// RemoveRoutesTo drops warehouse routes and source overrides naming partner.
// It returns how many references were removed.
func (e *Entity) RemoveRoutesTo(partner world.HexCoord) int {
	n := 0
	for res, o := range e.Overrides {
		if o.Source == partner {
			delete(e.Overrides, res)
			n++
		}
	}
	if e.Warehouse != nil {
		var k int
		e.Warehouse.Inbound, k = filterRoutes(e.Warehouse.Inbound, partner)
		n += k
		e.Warehouse.Outbound, k = filterRoutes(e.Warehouse.Outbound, partner)
		n += k
	}
	return n
}

func filterRoutes(routes []Route, partner world.HexCoord) ([]Route, int) {
	out := routes[:0]
	removed := 0
	for _, r := range routes {
		if r.Partner == partner {
			removed++
			continue
		}
		out = append(out, r)
	}
	if len(out) == 0 {
		return nil, removed
	}
	return out, removed
}

// Clone returns a deep copy for read-only views.
func (e *Entity) Clone() *Entity {
	cp := *e
	cp.Storage = e.Storage.Clone()
	cp.Incoming = e.Incoming.Clone()
	cp.LastInput = e.LastInput.Clone()
	cp.LastOutput = e.LastOutput.Clone()
	if e.Overrides != nil {
		cp.Overrides = make(map[catalog.ResourceKey]SourceOverride, len(e.Overrides))
		for k, v := range e.Overrides {
			cp.Overrides[k] = v
		}
	}
	if e.Recipe != nil {
		r := *e.Recipe
		cp.Recipe = &r
	}
	if e.Bank != nil {
		b := *e.Bank
		cp.Bank = &b
	}
	if e.Charge != nil {
		c := *e.Charge
		cp.Charge = &c
	}
	if e.Warehouse != nil {
		w := WarehouseState{
			Inbound:  append([]Route(nil), e.Warehouse.Inbound...),
			Outbound: append([]Route(nil), e.Warehouse.Outbound...),
		}
		cp.Warehouse = &w
	}
	return &cp
}

func valid(v float64) bool {
	return v >= 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}
