// Simulation owns every piece of session state and wires the components
// together. Nothing in the engine is global.
package engine

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"

	"github.com/talgya/gridworks/internal/batch"
	"github.com/talgya/gridworks/internal/catalog"
	"github.com/talgya/gridworks/internal/economy"
	"github.com/talgya/gridworks/internal/entity"
	"github.com/talgya/gridworks/internal/power"
	"github.com/talgya/gridworks/internal/production"
	"github.com/talgya/gridworks/internal/transport"
	"github.com/talgya/gridworks/internal/tuning"
	"github.com/talgya/gridworks/internal/weather"
	"github.com/talgya/gridworks/internal/world"
)

// Observer receives per-tick summaries and invariant breaches. The metrics
// recorder implements it.
type Observer interface {
	ObserveTick(TickSummary)
	ObserveInvariant(kind string)
}

// Options configures a new simulation.
type Options struct {
	Seed         int64
	Profile      string
	Permits      int // 0 = unlimited
	StartingCash float64
	StartingFuel float64
	Policies     []string
	Tuning       tuning.Tuning
	Catalog      *catalog.Catalog // base catalog; catalog.Default() when nil
	Map          *world.Map
}

// Simulation holds the complete session state.
type Simulation struct {
	SessionID uuid.UUID
	Seed      int64
	Tick      uint64 // last prepared tick
	Permits   int

	Tuning    tuning.Tuning
	Base      *catalog.Catalog // never mutated
	Catalog   *catalog.Catalog // Base with profile and policies applied
	Modifiers catalog.Modifiers
	Profile   catalog.MapProfile
	Policies  map[string]bool
	Unlocked  map[catalog.BuildingKey]bool
	AutoSell  map[catalog.ResourceKey]bool

	PolicyTable  map[string]catalog.Policy
	ProfileTable map[string]catalog.MapProfile

	Map        *world.Map
	Store      *entity.Store
	Grid       *power.Grid
	Cache      *production.BoostCache
	Calc       *production.Calculator
	Resolver   *transport.Resolver
	Deliveries *transport.Queue
	Market     *economy.Market
	Treasury   *economy.Treasury
	Depot      *economy.Stockpile
	Clock      weather.Clock

	Observer Observer

	queue        []*entity.Entity
	perFrame     int
	draining     bool
	catalogDirty bool
	tickStats    tickStats
	last         TickSummary
	invariants   int
}

// NewSimulation creates a session on m. Unknown policies are dropped with a
// warning; an unknown profile falls back to standard.
func NewSimulation(opts Options) *Simulation {
	base := opts.Catalog
	if base == nil {
		base = catalog.Default()
	}
	m := opts.Map
	if m == nil {
		m = world.NewMap(0, opts.Seed)
	}

	s := &Simulation{
		SessionID:    uuid.New(),
		Seed:         opts.Seed,
		Permits:      opts.Permits,
		Tuning:       opts.Tuning,
		Base:         base,
		Policies:     make(map[string]bool),
		Unlocked:     make(map[catalog.BuildingKey]bool),
		AutoSell:     make(map[catalog.ResourceKey]bool),
		PolicyTable:  catalog.DefaultPolicies(),
		ProfileTable: catalog.DefaultProfiles(),
		Map:          m,
		Store:        entity.NewStore(),
		Grid:         power.NewGrid(),
		Cache:        production.NewBoostCache(),
		Deliveries:   transport.NewQueue(),
		Market:       economy.NewMarket(opts.Tuning),
		Treasury:     economy.NewTreasury(opts.StartingCash),
		Depot:        economy.NewStockpile(),
		Clock: weather.Clock{
			Seed:            opts.Seed,
			DayTicks:        opts.Tuning.DayTicks,
			WindPeriodTicks: opts.Tuning.WindPeriodTicks,
			WindDutyCycle:   opts.Tuning.WindDutyCycle,
		},
	}

	profile, err := catalog.LookupProfile(s.ProfileTable, opts.Profile)
	if err != nil {
		if opts.Profile != "" {
			slog.Warn("unknown map profile, using standard", "profile", opts.Profile)
		}
		profile = s.ProfileTable[catalog.ProfileStandard]
	}
	s.Profile = profile

	_, dropped := catalog.ResolvePolicies(s.PolicyTable, opts.Policies)
	for _, k := range dropped {
		slog.Warn("unknown policy dropped", "policy", k)
	}
	for _, k := range opts.Policies {
		if _, ok := s.PolicyTable[k]; ok {
			s.Policies[k] = true
		}
	}

	s.Calc = &production.Calculator{Tuning: s.Tuning, Seed: s.Seed, Weather: s.Clock, Cache: s.Cache}
	s.Resolver = &transport.Resolver{
		Store:          s.Store,
		Fuel:           s.Depot,
		Queue:          s.Deliveries,
		TransitSeconds: s.Tuning.TransitSeconds,
	}
	s.prepareCatalog()

	if opts.StartingFuel > 0 {
		s.Depot.Deposit(s.Catalog.FuelResource, opts.StartingFuel)
	}
	return s
}

// prepareCatalog re-derives the session catalog from the base, profile and
// active policies. It runs at construction and at tick boundaries after a
// policy toggle.
func (s *Simulation) prepareCatalog() {
	keys := s.PolicyKeys()
	policies, _ := catalog.ResolvePolicies(s.PolicyTable, keys)
	s.Catalog, s.Modifiers = catalog.Prepare(s.Base, s.Profile, policies)

	s.Calc.Modifiers = s.Modifiers
	s.Resolver.Catalog = s.Catalog
	s.Resolver.FuelCostScale = s.Modifiers.FuelCostScale
	s.catalogDirty = false
	slog.Debug("catalog prepared", "profile", s.Profile.Key, "policies", keys)
}

// PolicyKeys returns the active policies in sorted order.
func (s *Simulation) PolicyKeys() []string {
	keys := make([]string, 0, len(s.Policies))
	for k, on := range s.Policies {
		if on {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// Operator returns a batch operator bound to the session.
func (s *Simulation) Operator() *batch.Operator {
	return &batch.Operator{
		Store:    s.Store,
		Catalog:  s.Catalog,
		Treasury: s.Treasury,
		Depot:    s.Depot,
		Tuning:   s.Tuning,
	}
}

// RepriceInterval is the profile's override or the tuning value.
func (s *Simulation) RepriceInterval() uint64 {
	if s.Modifiers.RepriceTicks > 0 {
		return uint64(s.Modifiers.RepriceTicks)
	}
	return uint64(max(s.Tuning.RepriceTicks, 1))
}

// GameSeconds converts a tick to game time.
func (s *Simulation) GameSeconds(tick uint64) float64 {
	return float64(tick) * s.Tuning.TickSeconds
}

// Invariants is the number of invariant breaches logged so far.
func (s *Simulation) Invariants() int {
	return s.invariants
}

// invariant logs a simulation defect loudly and keeps going.
func (s *Simulation) invariant(kind, msg string, args ...any) {
	s.invariants++
	slog.Error(msg, append([]any{"invariant", kind, "tick", s.Tick}, args...)...)
	if s.Observer != nil {
		s.Observer.ObserveInvariant(kind)
	}
}

// GameTime renders a tick as a day and clock time.
func GameTime(tick uint64, tickSeconds float64) string {
	total := uint64(float64(tick) * tickSeconds)
	day := total/86400 + 1
	h := (total % 86400) / 3600
	m := (total % 3600) / 60
	sec := total % 60
	return fmt.Sprintf("Day %d, %02d:%02d:%02d", day, h, m, sec)
}
