// Package entity provides the placed-building data model: a common base with
// per-kind variant payloads, checked storage mutation, and the grid-keyed store.
package entity

import (
	"github.com/talgya/gridworks/internal/catalog"
	"github.com/talgya/gridworks/internal/world"
)

// Status is the visible outcome of an entity's most recent tick.
type Status uint8

const (
	StatusIdle               Status = iota // has not run yet
	StatusWorking                          // produced this tick
	StatusNotEnoughResources               // inputs missing after transport
	StatusNotEnoughPower                   // grid could not cover the draw
	StatusNotEnoughFuel                    // transport could not pay fuel
	StatusNotEnoughPermit                  // beyond the permit cap
	StatusTurnedOff                        // manually disabled
	StatusUnderConstruction                // unpaid, queued, or building
)

var statusNames = [...]string{
	"idle", "working", "not_enough_resources", "not_enough_power",
	"not_enough_fuel", "not_enough_permit", "turned_off", "under_construction",
}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return "unknown"
}

// ParseStatus is the inverse of Status.String.
func ParseStatus(name string) (Status, bool) {
	for i, n := range statusNames {
		if n == name {
			return Status(i), true
		}
	}
	return StatusIdle, false
}

// Construction tracks the build pipeline. Only ConstructionNone entities tick.
type Construction uint8

const (
	ConstructionNone     Construction = iota // active
	ConstructionUnpaid                       // placed, waiting for cash
	ConstructionQueued                       // paid, waiting for a build slot
	ConstructionBuilding                     // occupying a build slot
)

var constructionNames = [...]string{"none", "unpaid", "queued", "building"}

func (c Construction) String() string {
	if int(c) < len(constructionNames) {
		return constructionNames[c]
	}
	return "unknown"
}

// BufferPolicy controls how much input an entity requests ahead of need.
type BufferPolicy uint8

const (
	BufferAuto      BufferPolicy = iota // a few ticks of input
	BufferStockpile                     // a large reserve
	BufferFixed                         // BufferMultiplier ticks of input
)

var bufferNames = [...]string{"auto", "stockpile", "fixed"}

func (b BufferPolicy) String() string {
	if int(b) < len(bufferNames) {
		return bufferNames[b]
	}
	return "unknown"
}

// ParseBufferPolicy is the inverse of BufferPolicy.String.
func ParseBufferPolicy(name string) (BufferPolicy, bool) {
	for i, n := range bufferNames {
		if n == name {
			return BufferPolicy(i), true
		}
	}
	return BufferAuto, false
}

// Fallback decides what happens when a manual source override runs short.
type Fallback uint8

const (
	FallbackAuto  Fallback = iota // search other suppliers for the rest
	FallbackDrain                 // take what the override has and stop
	FallbackSkip                  // skip sourcing this tick
)

var fallbackNames = [...]string{"auto", "drain", "skip"}

func (f Fallback) String() string {
	if int(f) < len(fallbackNames) {
		return fallbackNames[f]
	}
	return "unknown"
}

// ParseFallback is the inverse of Fallback.String.
func ParseFallback(name string) (Fallback, bool) {
	for i, n := range fallbackNames {
		if n == name {
			return Fallback(i), true
		}
	}
	return FallbackAuto, false
}

// SourceOverride pins a consumer's supplier for one resource.
type SourceOverride struct {
	Source   world.HexCoord `json:"source"`
	Fallback Fallback       `json:"fallback"`
}

// RecipeState is the payload of buildings that select among recipes or mix
// inputs dynamically.
type RecipeState struct {
	Active string  `json:"active,omitempty"`
	Mix    float64 `json:"mix"`
}

// BankState is the payload of power banks.
type BankState struct {
	Reserve float64 `json:"reserve"`
}

// ChargeState is the payload of capacitor consumers.
type ChargeState struct {
	Charge float64 `json:"charge"`
}

// Route is one weighted warehouse link.
type Route struct {
	Partner  world.HexCoord      `json:"partner"`
	Resource catalog.ResourceKey `json:"resource"`
	Weight   float64             `json:"weight"`
}

// WarehouseState is the payload of warehouses. Inbound routes pull from the
// partner, outbound routes push to it.
type WarehouseState struct {
	Inbound  []Route `json:"inbound,omitempty"`
	Outbound []Route `json:"outbound,omitempty"`
}

// Entity is one placed building.
type Entity struct {
	Grid  world.HexCoord       `json:"grid"`
	Type  catalog.BuildingKey  `json:"type"`
	Kind  catalog.BuildingKind `json:"kind"`
	Level int                  `json:"level"`

	Storage  catalog.Amounts `json:"storage"`
	Incoming catalog.Amounts `json:"incoming,omitempty"` // in-flight deliveries

	// Operating flags
	TurnedOff    bool `json:"turned_off"`
	HighPriority bool `json:"high_priority"`
	AllowPartial bool `json:"allow_partial"`
	SearchRadius int  `json:"search_radius,omitempty"` // 0 = unlimited

	Overrides map[catalog.ResourceKey]SourceOverride `json:"overrides,omitempty"`

	Buffer             BufferPolicy `json:"buffer"`
	BufferMultiplier   float64      `json:"buffer_multiplier,omitempty"`
	CapacityMultiplier float64      `json:"capacity_multiplier,omitempty"`
	TickLength         int          `json:"tick_length,omitempty"` // 0 = catalog default

	Construction     Construction `json:"construction"`
	ConstructionLeft int          `json:"construction_left,omitempty"`

	Invested float64 `json:"invested"` // cumulative build and upgrade spend

	// Last-tick outcome
	Status     Status          `json:"status"`
	LastInput  catalog.Amounts `json:"last_input,omitempty"`
	LastOutput catalog.Amounts `json:"last_output,omitempty"`
	LastPower  float64         `json:"last_power"`

	// Variant payloads; at most one is set, chosen by Kind.
	Recipe    *RecipeState    `json:"recipe,omitempty"`
	Bank      *BankState      `json:"bank,omitempty"`
	Charge    *ChargeState    `json:"charge,omitempty"`
	Warehouse *WarehouseState `json:"warehouse,omitempty"`
}
