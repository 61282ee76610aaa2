package engine

import (
	"log/slog"
	"sort"
	"time"

	"github.com/talgya/gridworks/internal/catalog"
	"github.com/talgya/gridworks/internal/economy"
	"github.com/talgya/gridworks/internal/entity"
	"github.com/talgya/gridworks/internal/power"
	"github.com/talgya/gridworks/internal/production"
	"github.com/talgya/gridworks/internal/transport"
)

// tickStats accumulates while a tick drains.
type tickStats struct {
	started  time.Time
	queued   int
	denied   int
	ran      int
	produced catalog.Amounts
	consumed catalog.Amounts
}

// Pending is the number of entities still waiting in this tick's queue.
func (s *Simulation) Pending() int {
	return len(s.queue)
}

// Draining reports whether a tick is prepared and not yet finished.
func (s *Simulation) Draining() bool {
	return s.draining
}

// PrepareTick advances the tick counter, refreshes everything entities read
// during the tick (catalog, prices, deliveries, construction, power banks,
// boost cache, supplier index) and rebuilds the work queue under the permit
// cap. It returns the queue length.
func (s *Simulation) PrepareTick() int {
	if len(s.queue) > 0 || s.draining {
		s.invariant("scheduler", "tick prepared with a non-empty queue, resetting", "pending", len(s.queue))
		s.queue = nil
		s.draining = false
	}

	s.Tick++
	now := s.GameSeconds(s.Tick)
	s.tickStats = tickStats{
		started:  time.Now(),
		produced: make(catalog.Amounts),
		consumed: make(catalog.Amounts),
	}

	if s.catalogDirty {
		s.prepareCatalog()
	}
	if s.Market.Epoch == 0 || s.Tick-s.Market.LastTick >= s.RepriceInterval() {
		s.reprice()
	}

	s.Resolver.Arrive(now, s.Depot)
	s.advanceConstruction()

	s.Grid.Reset()
	s.registerBanks()
	s.Cache.Rebuild(s.Store, s.Catalog)
	s.Resolver.Now = now
	s.Resolver.Rebuild()

	s.queue = s.buildQueue()
	s.tickStats.queued = len(s.queue)
	frames := max(s.Tuning.FramesPerTick, 1)
	s.perFrame = max((len(s.queue)+frames-1)/frames, 1)
	s.draining = true
	return len(s.queue)
}

// reprice runs the pricing engine and refreshes the live news tables.
func (s *Simulation) reprice() {
	s.Market.Reprice(economy.PriceInputs{
		Catalog:   s.Catalog,
		Abundance: s.Map.Abundance(),
		Seed:      s.Seed,
		Tick:      s.Tick,
	})
	s.refreshNews()
}

// refreshNews loads the market headline into the calculator's live tables.
func (s *Simulation) refreshNews() {
	in, out := s.Market.NewsTables()
	s.Calc.News = production.News{Input: in, Output: out}
}

// registerBanks adds every active bank to the grid. A bank participates only
// next to an active generator.
func (s *Simulation) registerBanks() {
	for _, e := range s.Store.All() {
		if e.Bank == nil || !e.Active() || e.TurnedOff {
			continue
		}
		def, ok := s.Catalog.Building(e.Type)
		if !ok {
			continue
		}
		eligible := false
		for _, n := range s.Store.Neighbors(e.Grid) {
			nd, ok := s.Catalog.Building(n.Type)
			if ok && nd.IsGenerator() && n.Active() && !n.TurnedOff {
				eligible = true
				break
			}
		}
		lvl := float64(e.Level)
		s.Grid.AddBank(e.Grid, e.Bank, def.Capacity*lvl, def.ChargeRate*lvl, eligible)
	}
}

// buildQueue orders runnable entities and applies the permit cap.
// Permits go to high-priority entities first, then generators, then the
// rest, each in grid order. Admitted entities run generators first so supply
// exists before consumers draw, high priority first within each group.
func (s *Simulation) buildQueue() []*entity.Entity {
	type slot struct {
		e   *entity.Entity
		gen bool
	}
	var runnable []slot
	for _, e := range s.Store.All() {
		def, ok := s.Catalog.Building(e.Type)
		if !ok {
			continue
		}
		switch {
		case !e.Active():
			e.Status = entity.StatusUnderConstruction
			continue
		case e.TurnedOff:
			e.Status = entity.StatusTurnedOff
			continue
		case !e.DueAt(def, s.Tick):
			continue
		}
		runnable = append(runnable, slot{e: e, gen: def.IsGenerator()})
	}

	rank := func(x slot) int {
		switch {
		case x.e.HighPriority:
			return 0
		case x.gen:
			return 1
		default:
			return 2
		}
	}
	sort.SliceStable(runnable, func(i, j int) bool { return rank(runnable[i]) < rank(runnable[j]) })

	admitted := runnable
	if s.Permits > 0 && len(runnable) > s.Permits {
		admitted = runnable[:s.Permits]
		for _, x := range runnable[s.Permits:] {
			x.e.Status = entity.StatusNotEnoughPermit
		}
		s.tickStats.denied = len(runnable) - s.Permits
	}

	order := make([]slot, len(admitted))
	copy(order, admitted)
	sort.SliceStable(order, func(i, j int) bool {
		if order[i].gen != order[j].gen {
			return order[i].gen
		}
		if order[i].e.HighPriority != order[j].e.HighPriority {
			return order[i].e.HighPriority
		}
		return order[i].e.Grid.Less(order[j].e.Grid)
	})

	q := make([]*entity.Entity, len(order))
	for i, x := range order {
		q[i] = x.e
	}
	return q
}

// DrainTick runs up to budget queued entities and returns how many ran. When
// the queue empties the tick is finished.
func (s *Simulation) DrainTick(budget int) int {
	if !s.draining {
		return 0
	}
	n := 0
	for n < budget && len(s.queue) > 0 {
		e := s.queue[0]
		s.queue[0] = nil
		s.queue = s.queue[1:]
		n++
		if s.Store.Get(e.Grid) != e {
			continue
		}
		s.runEntity(e)
	}
	s.tickStats.ran += n
	if len(s.queue) == 0 {
		s.finishTick()
	}
	return n
}

// FrameBudget is how many entities one frame drains so that the queue
// empties within FramesPerTick frames. It is fixed when the tick is prepared.
func (s *Simulation) FrameBudget() int {
	return max(s.perFrame, 1)
}

// RunTick prepares and synchronously drains one tick.
func (s *Simulation) RunTick() TickSummary {
	n := s.PrepareTick()
	s.DrainTick(max(n, 1))
	return s.last
}

// finishTick charges banks, sells the auto-sell set, folds rates into the
// market and publishes the summary.
func (s *Simulation) finishTick() {
	s.queue = nil
	s.perFrame = 0
	s.draining = false

	s.Grid.ChargeBanks()
	for range s.Grid.Violations {
		s.invariants++
		if s.Observer != nil {
			s.Observer.ObserveInvariant("power")
		}
	}

	if len(s.AutoSell) > 0 {
		keys := make([]catalog.ResourceKey, 0, len(s.AutoSell))
		for k, on := range s.AutoSell {
			if on {
				keys = append(keys, k)
			}
		}
		sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
		s.Treasury.Earn(s.Depot.SellAll(s.Market, keys))
	}

	rates := make(map[catalog.ResourceKey]float64, len(s.tickStats.produced))
	for k, v := range s.tickStats.produced {
		rates[k] = v / max(s.Tuning.TickSeconds, 1e-9)
	}
	s.Market.ObserveRates(rates)

	s.last = s.summarize()
	if s.Observer != nil {
		s.Observer.ObserveTick(s.last)
	}
	if s.Tuning.TicksPerDay > 0 && s.Tick%uint64(s.Tuning.TicksPerDay) == 0 {
		s.dailyReport()
	}
}

// TickSummary describes the last finished tick.
type TickSummary struct {
	Tick        uint64          `json:"tick"`
	GameTime    string          `json:"game_time"`
	Entities    int             `json:"entities"`
	Queued      int             `json:"queued"`
	Ran         int             `json:"ran"`
	Denied      int             `json:"denied"`
	Statuses    map[string]int  `json:"statuses"`
	Power       power.Balance   `json:"power"`
	Cash        float64         `json:"cash"`
	Transport   transport.Stats `json:"transport"`
	InFlight    int             `json:"in_flight"`
	Produced    catalog.Amounts `json:"produced"`
	Consumed    catalog.Amounts `json:"consumed"`
	Invariants  int             `json:"invariants"`
	News        *economy.News   `json:"news,omitempty"`
	DurationMS  float64         `json:"duration_ms"`
	MarketEpoch uint64          `json:"market_epoch"`
}

func (s *Simulation) summarize() TickSummary {
	statuses := make(map[string]int)
	for _, e := range s.Store.All() {
		statuses[e.Status.String()]++
	}
	return TickSummary{
		Tick:        s.Tick,
		GameTime:    GameTime(s.Tick, s.Tuning.TickSeconds),
		Entities:    s.Store.Len(),
		Queued:      s.tickStats.queued,
		Ran:         s.tickStats.ran,
		Denied:      s.tickStats.denied,
		Statuses:    statuses,
		Power:       s.Grid.Balance(),
		Cash:        s.Treasury.Cash,
		Transport:   s.Resolver.Stats,
		InFlight:    s.Deliveries.Len(),
		Produced:    s.tickStats.produced,
		Consumed:    s.tickStats.consumed,
		Invariants:  s.invariants,
		News:        s.Market.Headline,
		DurationMS:  float64(time.Since(s.tickStats.started).Microseconds()) / 1000,
		MarketEpoch: s.Market.Epoch,
	}
}

// LastSummary returns the summary of the most recently finished tick.
func (s *Simulation) LastSummary() TickSummary {
	return s.last
}

func (s *Simulation) dailyReport() {
	sum := s.last
	meanPrice := 0.0
	prices := s.Market.Prices()
	for _, p := range prices {
		meanPrice += p
	}
	if len(prices) > 0 {
		meanPrice /= float64(len(prices))
	}
	slog.Info("daily report",
		"tick", sum.Tick,
		"time", sum.GameTime,
		"entities", sum.Entities,
		"working", sum.Statuses[entity.StatusWorking.String()],
		"power_starved", sum.Statuses[entity.StatusNotEnoughPower.String()],
		"resource_starved", sum.Statuses[entity.StatusNotEnoughResources.String()],
		"fuel_starved", sum.Statuses[entity.StatusNotEnoughFuel.String()],
		"permit_denied", sum.Statuses[entity.StatusNotEnoughPermit.String()],
		"supply", sum.Power.Supply,
		"usage", sum.Power.Usage,
		"reserve", sum.Power.Reserve,
		"cash", sum.Cash,
		"mean_price", meanPrice,
		"invariants", sum.Invariants,
	)
}
