package transport

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/talgya/gridworks/internal/catalog"
	"github.com/talgya/gridworks/internal/entity"
	"github.com/talgya/gridworks/internal/world"
)

// ErrNoFuel is returned when the fuel pool cannot pay for a transfer.
var ErrNoFuel = errors.New("not enough fuel")

// FuelPool pays transport fuel.
type FuelPool interface {
	Amount(res catalog.ResourceKey) float64
	Withdraw(res catalog.ResourceKey, amount float64) error
}

// Result classifies the outcome of a request.
type Result uint8

const (
	Satisfied  Result = iota // requested minimum moved
	Partial                  // something moved, below the minimum
	NoSupplier               // nothing qualified or held enough
	NoFuel                   // a transfer was aborted for fuel
	Skipped                  // override fallback said skip
)

// Request asks for Amount of Resource for Consumer; Min is the least that
// makes the trip worthwhile for a single-source pick.
type Request struct {
	Consumer *entity.Entity
	Resource catalog.ResourceKey
	Amount   float64
	Min      float64
}

// Outcome reports what a request achieved.
type Outcome struct {
	Result    Result
	Moved     float64
	Fuel      float64
	Transfers int
}

// Stats accumulates per-tick transport totals.
type Stats struct {
	Transfers   int     `json:"transfers"`
	Moved       float64 `json:"moved"`
	Fuel        float64 `json:"fuel"`
	FuelStarved int     `json:"fuel_starved"`
}

// Resolver matches consumers with suppliers for one tick.
type Resolver struct {
	Catalog        *catalog.Catalog
	Store          *entity.Store
	Fuel           FuelPool
	Queue          *Queue
	FuelCostScale  float64
	TransitSeconds float64

	// Now is the current game time in seconds.
	Now float64

	index map[catalog.ResourceKey][]*entity.Entity
	Stats Stats
}

// Rebuild indexes every potential supplier per resource. Storage is checked
// at resolve time, so the index stays valid for the whole tick.
func (r *Resolver) Rebuild() {
	r.index = make(map[catalog.ResourceKey][]*entity.Entity)
	r.Stats = Stats{}
	for _, e := range r.Store.All() {
		if !e.Active() {
			continue
		}
		def, ok := r.Catalog.Building(e.Type)
		if !ok {
			continue
		}
		if def.Kind == catalog.KindWarehouse {
			if e.Warehouse != nil && len(e.Warehouse.Outbound) > 0 {
				continue
			}
			for _, k := range r.Catalog.ResourceKeys() {
				r.index[k] = append(r.index[k], e)
			}
			continue
		}
		io := e.IO(def)
		for k := range io.Outputs {
			if _, consumes := io.Inputs[k]; consumes {
				continue
			}
			r.index[k] = append(r.index[k], e)
		}
	}
}

// Suppliers returns qualifying suppliers of res for consumer, nearest first.
// Ties keep index order.
func (r *Resolver) Suppliers(consumer *entity.Entity, res catalog.ResourceKey) []*entity.Entity {
	var out []*entity.Entity
	for _, e := range r.index[res] {
		if e == consumer || e.Amount(res) <= 0 {
			continue
		}
		if r.Store.Get(e.Grid) != e {
			continue
		}
		if consumer.SearchRadius > 0 && world.Distance(e.Grid, consumer.Grid) > consumer.SearchRadius {
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return world.SquaredDistance(out[i].Grid, consumer.Grid) < world.SquaredDistance(out[j].Grid, consumer.Grid)
	})
	return out
}

// Resolve sources a request: the manual override first, then either the
// single nearest supplier holding the minimum or, for consumers that allow
// it, every supplier by ascending distance.
func (r *Resolver) Resolve(req Request) Outcome {
	var out Outcome
	need := req.Amount
	if need <= 0 {
		out.Result = Satisfied
		return out
	}
	c := req.Consumer

	if o, ok := c.Overrides[req.Resource]; ok {
		src := r.Store.Get(o.Source)
		have := 0.0
		if src != nil && src != c {
			have = src.Amount(req.Resource)
		}
		if have >= need {
			moved, err := r.Transfer(src, c, req.Resource, need)
			return r.finish(out.add(moved, err), req)
		}
		switch o.Fallback {
		case entity.FallbackSkip:
			out.Result = Skipped
			return out
		case entity.FallbackDrain:
			if have > 0 {
				moved, err := r.Transfer(src, c, req.Resource, have)
				out = out.add(moved, err)
			}
			return r.finish(out, req)
		default:
			if have > 0 {
				moved, err := r.Transfer(src, c, req.Resource, have)
				out = out.add(moved, err)
				if err != nil {
					return r.finish(out, req)
				}
				need -= moved
			}
		}
	}

	suppliers := r.Suppliers(c, req.Resource)
	if !c.AllowPartial {
		floor := math.Min(req.Min, need)
		for _, s := range suppliers {
			if s.Amount(req.Resource) >= floor {
				moved, err := r.Transfer(s, c, req.Resource, math.Min(need, s.Amount(req.Resource)))
				return r.finish(out.add(moved, err), req)
			}
		}
		return r.finish(out, req)
	}

	for _, s := range suppliers {
		if need <= 1e-9 {
			break
		}
		moved, err := r.Transfer(s, c, req.Resource, math.Min(need, s.Amount(req.Resource)))
		out = out.add(moved, err)
		if err != nil {
			break
		}
		need -= moved
	}
	return r.finish(out, req)
}

func (o Outcome) add(moved float64, err error) Outcome {
	if err != nil {
		if errors.Is(err, ErrNoFuel) {
			o.Result = NoFuel
		}
		return o
	}
	if moved > 0 {
		o.Moved += moved
		o.Transfers++
	}
	return o
}

func (r *Resolver) finish(o Outcome, req Request) Outcome {
	switch {
	case o.Result == NoFuel:
		r.Stats.FuelStarved++
	case o.Moved+1e-9 >= math.Min(req.Min, req.Amount) && o.Moved > 0:
		o.Result = Satisfied
	case o.Moved > 0:
		o.Result = Partial
	default:
		o.Result = NoSupplier
	}
	return o
}

// FuelCost is the fuel needed to move amount of res over grid distance dist.
func (r *Resolver) FuelCost(res catalog.ResourceKey, dist, amount float64) float64 {
	def, ok := r.Catalog.Resource(res)
	if !ok {
		return 0
	}
	scale := r.FuelCostScale
	if scale == 0 {
		scale = 1
	}
	return dist * math.Sqrt(amount) * def.FuelCost * scale
}

// Transfer debits from immediately, pays fuel, and enqueues a delivery to to.
// Nothing changes when fuel cannot be paid.
func (r *Resolver) Transfer(from, to *entity.Entity, res catalog.ResourceKey, amount float64) (float64, error) {
	if amount <= 0 {
		return 0, nil
	}
	dist := math.Sqrt(float64(world.SquaredDistance(from.Grid, to.Grid)))
	fuel := r.FuelCost(res, dist, amount)
	fuelKey := r.Catalog.FuelResource
	if fuel > 0 && r.Fuel.Amount(fuelKey)+1e-9 < fuel {
		return 0, fmt.Errorf("move %v %s %s->%s needs %v %s: %w", amount, res, from.Grid, to.Grid, fuel, fuelKey, ErrNoFuel)
	}
	if err := from.Debit(res, amount); err != nil {
		return 0, err
	}
	if fuel > 0 {
		if err := r.Fuel.Withdraw(fuelKey, fuel); err != nil {
			// Undo the debit; the pool was checked above.
			_ = from.Credit(res, amount)
			return 0, fmt.Errorf("%w: %v", ErrNoFuel, err)
		}
	}
	if to.Incoming == nil {
		to.Incoming = make(catalog.Amounts)
	}
	to.Incoming[res] += amount
	r.Queue.Push(&Delivery{
		From:     from.Grid,
		To:       to.Grid,
		Resource: res,
		Amount:   amount,
		Fuel:     fuel,
		Deadline: r.Now + dist*r.TransitSeconds,
	})
	r.Stats.Transfers++
	r.Stats.Moved += amount
	r.Stats.Fuel += fuel
	return amount, nil
}

// Deposit receives deliveries whose destination no longer exists.
type Deposit interface {
	Deposit(res catalog.ResourceKey, amount float64)
}

// Arrive credits every delivery due at now. Deliveries whose destination is
// gone go to fallback. It returns how many deliveries landed.
func (r *Resolver) Arrive(now float64, fallback Deposit) int {
	due := r.Queue.PollDue(now)
	for _, d := range due {
		dest := r.Store.Get(d.To)
		if dest == nil {
			fallback.Deposit(d.Resource, d.Amount)
			continue
		}
		if dest.Incoming != nil {
			left := dest.Incoming[d.Resource] - d.Amount
			if left <= 1e-9 {
				delete(dest.Incoming, d.Resource)
			} else {
				dest.Incoming[d.Resource] = left
			}
		}
		if err := dest.Credit(d.Resource, d.Amount); err != nil {
			fallback.Deposit(d.Resource, d.Amount)
		}
	}
	return len(due)
}
