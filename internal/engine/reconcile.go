package engine

import (
	"log/slog"
	"sort"

	"github.com/google/uuid"

	"github.com/talgya/gridworks/internal/catalog"
	"github.com/talgya/gridworks/internal/economy"
	"github.com/talgya/gridworks/internal/entity"
	"github.com/talgya/gridworks/internal/transport"
	"github.com/talgya/gridworks/internal/world"
)

// StateVersion is bumped when the persisted layout changes.
const StateVersion = 1

// State is the persisted surface of a session. Entities are keyed by grid
// string.
type State struct {
	Version    int                                          `json:"version"`
	SessionID  uuid.UUID                                    `json:"session_id"`
	Seed       int64                                        `json:"seed"`
	Tick       uint64                                       `json:"tick"`
	Permits    int                                          `json:"permits"`
	Profile    string                                       `json:"profile"`
	Entities   map[string]*entity.Entity                    `json:"entities"`
	Prices     map[catalog.ResourceKey]*economy.MarketEntry `json:"prices"`
	Epoch      uint64                                       `json:"epoch"`
	PricedAt   uint64                                       `json:"priced_at"`
	News       *economy.News                                `json:"news,omitempty"`
	Treasury   economy.Treasury                             `json:"treasury"`
	Depot      catalog.Amounts                              `json:"depot"`
	Unlocked   []catalog.BuildingKey                        `json:"unlocked"`
	Policies   []string                                     `json:"policies"`
	AutoSell   []catalog.ResourceKey                        `json:"auto_sell"`
	Deliveries []transport.Delivery                         `json:"deliveries,omitempty"`
}

// Snapshot copies the persisted surface. It must run at a tick boundary.
func (s *Simulation) Snapshot() State {
	st := State{
		Version:   StateVersion,
		SessionID: s.SessionID,
		Seed:      s.Seed,
		Tick:      s.Tick,
		Permits:   s.Permits,
		Profile:   s.Profile.Key,
		Entities:  make(map[string]*entity.Entity, s.Store.Len()),
		Prices:    make(map[catalog.ResourceKey]*economy.MarketEntry, len(s.Market.Entries)),
		Epoch:     s.Market.Epoch,
		PricedAt:  s.Market.LastTick,
		Treasury:  *s.Treasury,
		Depot:     s.Depot.Holdings.Clone(),
		Policies:  s.PolicyKeys(),
	}
	if st.Depot == nil {
		st.Depot = make(catalog.Amounts)
	}
	if s.Market.Headline != nil {
		n := *s.Market.Headline
		st.News = &n
	}
	for _, e := range s.Store.All() {
		st.Entities[e.Grid.Key()] = e.Clone()
	}
	for k, me := range s.Market.Entries {
		cp := *me
		st.Prices[k] = &cp
	}
	for k, on := range s.Unlocked {
		if on {
			st.Unlocked = append(st.Unlocked, k)
		}
	}
	sort.Slice(st.Unlocked, func(i, j int) bool { return st.Unlocked[i] < st.Unlocked[j] })
	for k, on := range s.AutoSell {
		if on {
			st.AutoSell = append(st.AutoSell, k)
		}
	}
	sort.Slice(st.AutoSell, func(i, j int) bool { return st.AutoSell[i] < st.AutoSell[j] })
	st.Deliveries = s.Deliveries.Pending()
	return st
}

// Repairs counts what Reconcile corrected.
type Repairs struct {
	Entities  int `json:"entities"`  // unknown building types dropped
	Resources int `json:"resources"` // unknown resource keys dropped
	Recipes   int `json:"recipes"`   // invalid recipes reset
	Routes    int `json:"routes"`    // dangling routes and overrides removed
	Storage   int `json:"storage"`   // corrupt quantities reset
	Keys      int `json:"keys"`      // unknown policies, unlocks, auto-sell entries dropped
}

// Total is the number of repairs.
func (r Repairs) Total() int {
	return r.Entities + r.Resources + r.Recipes + r.Routes + r.Storage + r.Keys
}

// Restore replaces the session state with st and reconciles it against the
// current catalog. A queue in progress is discarded.
func (s *Simulation) Restore(st State) Repairs {
	s.queue = nil
	s.perFrame = 0
	s.draining = false

	if st.SessionID != uuid.Nil {
		s.SessionID = st.SessionID
	}
	s.Tick = st.Tick
	s.Permits = max(st.Permits, 0)
	if st.Profile != "" {
		if p, err := catalog.LookupProfile(s.ProfileTable, st.Profile); err == nil {
			s.Profile = p
		} else {
			slog.Warn("saved map profile unknown, keeping current", "profile", st.Profile)
		}
	}

	s.Store = entity.NewStore()
	for key, e := range st.Entities {
		if e == nil {
			continue
		}
		if g, err := world.ParseKey(key); err == nil {
			e.Grid = g
		}
		s.Store.Insert(e)
	}

	s.Market = economy.NewMarket(s.Tuning)
	for k, me := range st.Prices {
		if me == nil {
			continue
		}
		cp := *me
		cp.Resource = k
		s.Market.Entries[k] = &cp
	}
	s.Market.Epoch = st.Epoch
	s.Market.LastTick = st.PricedAt
	s.Market.Headline = st.News
	s.refreshNews()

	tr := st.Treasury
	s.Treasury = &tr
	s.Depot = economy.NewStockpile()
	for _, k := range st.Depot.Keys() {
		s.Depot.Deposit(k, st.Depot[k])
	}

	s.Unlocked = make(map[catalog.BuildingKey]bool, len(st.Unlocked))
	for _, k := range st.Unlocked {
		s.Unlocked[k] = true
	}
	s.Policies = make(map[string]bool, len(st.Policies))
	for _, k := range st.Policies {
		s.Policies[k] = true
	}
	s.AutoSell = make(map[catalog.ResourceKey]bool, len(st.AutoSell))
	for _, k := range st.AutoSell {
		s.AutoSell[k] = true
	}

	s.Deliveries = transport.NewQueue()
	for i := range st.Deliveries {
		d := st.Deliveries[i]
		s.Deliveries.Push(&d)
	}

	s.Resolver.Store = s.Store
	s.Resolver.Fuel = s.Depot
	s.Resolver.Queue = s.Deliveries

	return s.Reconcile()
}

// Reconcile repairs references that no longer resolve against the session
// catalog. It never fails; every correction is counted and logged once.
func (s *Simulation) Reconcile() Repairs {
	var r Repairs

	for _, k := range s.PolicyKeys() {
		if _, ok := s.PolicyTable[k]; !ok {
			delete(s.Policies, k)
			r.Keys++
		}
	}
	s.prepareCatalog()

	for k := range s.Unlocked {
		if _, ok := s.Catalog.Building(k); !ok {
			delete(s.Unlocked, k)
			r.Keys++
		}
	}
	for k := range s.AutoSell {
		if _, ok := s.Catalog.Resource(k); !ok {
			delete(s.AutoSell, k)
			r.Keys++
		}
	}
	for k := range s.Market.Entries {
		if _, ok := s.Catalog.Resource(k); !ok {
			delete(s.Market.Entries, k)
			r.Resources++
		}
	}
	for _, k := range s.Depot.Holdings.Keys() {
		if _, ok := s.Catalog.Resource(k); !ok {
			delete(s.Depot.Holdings, k)
			r.Resources++
		}
	}

	for _, e := range append([]*entity.Entity(nil), s.Store.All()...) {
		if _, ok := s.Catalog.Building(e.Type); !ok {
			s.Store.Remove(e.Grid)
			r.Entities++
		}
	}

	for _, e := range s.Store.All() {
		def, _ := s.Catalog.Building(e.Type)
		s.reconcileEntity(e, def, &r)
	}

	s.reconcileIncoming(&r)

	if r.Total() > 0 {
		slog.Info("state reconciled",
			"entities", r.Entities, "resources", r.Resources, "recipes", r.Recipes,
			"routes", r.Routes, "storage", r.Storage, "keys", r.Keys,
		)
	}
	return r
}

func (s *Simulation) reconcileEntity(e *entity.Entity, def *catalog.BuildingDefinition, r *Repairs) {
	e.EnsureVariant(def)
	if e.Level < 1 {
		e.Level = 1
	}
	if e.Construction > entity.ConstructionBuilding {
		e.Construction = entity.ConstructionNone
	}
	if e.Status > entity.StatusUnderConstruction {
		e.Status = entity.StatusIdle
	}
	if !(e.Invested >= 0) {
		e.Invested = 0
	}

	for _, k := range e.Corrupt() {
		s.invariant("storage", "corrupt stored quantity reset", "grid", e.Grid, "resource", k, "value", e.Storage[k])
		delete(e.Storage, k)
		r.Storage++
	}
	for k := range e.Storage {
		if _, ok := s.Catalog.Resource(k); !ok {
			delete(e.Storage, k)
			r.Resources++
		}
	}

	if e.Recipe != nil {
		if def.HasRecipes() && !def.RecipeUnlocked(e.Recipe.Active, e.Level) {
			e.Recipe.Active = def.DefaultRecipe
			r.Recipes++
		}
		if !(e.Recipe.Mix >= 0 && e.Recipe.Mix <= 1) {
			e.Recipe.Mix = 0.5
			r.Recipes++
		}
	}

	inputs := e.IO(def).Inputs
	for res, o := range e.Overrides {
		_, consumes := inputs[res]
		src := s.Store.Get(o.Source)
		if !consumes || src == nil || src == e || o.Fallback > entity.FallbackSkip {
			delete(e.Overrides, res)
			r.Routes++
		}
	}

	if e.Warehouse != nil {
		valid := func(x entity.Route) bool {
			_, known := s.Catalog.Resource(x.Resource)
			return known && x.Partner != e.Grid && s.Store.Get(x.Partner) != nil && x.Weight > 0
		}
		var n int
		e.Warehouse.Inbound, n = keepRoutes(e.Warehouse.Inbound, valid)
		r.Routes += n
		e.Warehouse.Outbound, n = keepRoutes(e.Warehouse.Outbound, valid)
		r.Routes += n
	}
}

func keepRoutes(routes []entity.Route, valid func(entity.Route) bool) ([]entity.Route, int) {
	var out []entity.Route
	for _, x := range routes {
		if valid(x) {
			out = append(out, x)
		}
	}
	return out, len(routes) - len(out)
}

// reconcileIncoming rebuilds every entity's in-flight totals from the
// delivery queue, dropping deliveries of unknown resources.
func (s *Simulation) reconcileIncoming(r *Repairs) {
	pending := s.Deliveries.Pending()
	s.Deliveries = transport.NewQueue()
	s.Resolver.Queue = s.Deliveries
	for i := range pending {
		d := pending[i]
		if _, ok := s.Catalog.Resource(d.Resource); !ok || !(d.Amount > 0) {
			r.Resources++
			continue
		}
		s.Deliveries.Push(&d)
	}
	inflight := s.Deliveries.InFlight()
	for _, e := range s.Store.All() {
		e.Incoming = inflight[e.Grid]
	}
}
