// Package batch applies upgrade, downgrade, and sell actions across a group
// of same-type buildings.
package batch

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/talgya/gridworks/internal/catalog"
	"github.com/talgya/gridworks/internal/economy"
	"github.com/talgya/gridworks/internal/entity"
	"github.com/talgya/gridworks/internal/tuning"
	"github.com/talgya/gridworks/internal/world"
)

// ErrUnknownMode and ErrUnknownAction are returned by the parsers.
var (
	ErrUnknownMode   = errors.New("unknown group mode")
	ErrUnknownAction = errors.New("unknown batch action")
)

// Mode selects the group an action applies to.
type Mode uint8

const (
	ModeSingle   Mode = iota // the reference entity only
	ModeAll                  // every entity of the reference's type
	ModeCluster              // flood fill over adjacent same-type entities
	ModeAdjacent             // the reference and its same-type neighbours
)

var modeNames = map[string]Mode{"single": ModeSingle, "all": ModeAll, "cluster": ModeCluster, "adjacent": ModeAdjacent}

// ParseMode parses a mode name.
func ParseMode(s string) (Mode, error) {
	m, ok := modeNames[s]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
	return m, nil
}

func (m Mode) String() string {
	for k, v := range modeNames {
		if v == m {
			return k
		}
	}
	return "unknown"
}

// Kind is the action to apply.
type Kind uint8

const (
	Upgrade Kind = iota
	Downgrade
	Sell
)

var kindNames = map[string]Kind{"upgrade": Upgrade, "downgrade": Downgrade, "sell": Sell}

// ParseKind parses an action name.
func ParseKind(s string) (Kind, error) {
	k, ok := kindNames[s]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownAction, s)
	}
	return k, nil
}

func (k Kind) String() string {
	for name, v := range kindNames {
		if v == k {
			return name
		}
	}
	return "unknown"
}

// Action is a batch request. Level is the target for upgrade and downgrade.
type Action struct {
	Kind  Kind `json:"kind"`
	Level int  `json:"level,omitempty"`
}

// Failure explains why one entity was skipped.
type Failure struct {
	Grid   world.HexCoord `json:"grid"`
	Reason string         `json:"reason"`
}

// Result summarises a batch. It is returned even when every entity failed.
type Result struct {
	Action    string    `json:"action"`
	Mode      string    `json:"mode"`
	Selected  int       `json:"selected"`
	Succeeded int       `json:"succeeded"`
	Failed    int       `json:"failed"`
	TotalCost float64   `json:"total_cost"`
	TotalGain float64   `json:"total_gain"`
	Failures  []Failure `json:"failures,omitempty"`
}

func (r *Result) fail(g world.HexCoord, reason string) {
	r.Failed++
	r.Failures = append(r.Failures, Failure{Grid: g, Reason: reason})
}

// Operator applies batch actions against the session state.
type Operator struct {
	Store    *entity.Store
	Catalog  *catalog.Catalog
	Treasury *economy.Treasury
	Depot    *economy.Stockpile
	Tuning   tuning.Tuning
}

// Select returns the group for ref under mode, in grid order. An empty ref
// grid yields nil.
func (o *Operator) Select(ref world.HexCoord, mode Mode) []*entity.Entity {
	start := o.Store.Get(ref)
	if start == nil {
		return nil
	}
	switch mode {
	case ModeAll:
		return o.Store.OfType(start.Type)
	case ModeAdjacent:
		group := []*entity.Entity{start}
		for _, n := range o.Store.Neighbors(ref) {
			if n.Type == start.Type {
				group = append(group, n)
			}
		}
		sortByGrid(group)
		return group
	case ModeCluster:
		return o.cluster(start)
	default:
		return []*entity.Entity{start}
	}
}

// cluster flood-fills over hex-adjacent entities of start's type.
func (o *Operator) cluster(start *entity.Entity) []*entity.Entity {
	seen := map[world.HexCoord]bool{start.Grid: true}
	frontier := []*entity.Entity{start}
	group := []*entity.Entity{start}
	for len(frontier) > 0 {
		cur := frontier[0]
		frontier = frontier[1:]
		for _, n := range o.Store.Neighbors(cur.Grid) {
			if n.Type != start.Type || seen[n.Grid] {
				continue
			}
			seen[n.Grid] = true
			group = append(group, n)
			frontier = append(frontier, n)
		}
	}
	sortByGrid(group)
	return group
}

func sortByGrid(es []*entity.Entity) {
	sort.Slice(es, func(i, j int) bool { return es[i].Grid.Less(es[j].Grid) })
}

// Apply runs action over the group selected from ref.
func (o *Operator) Apply(ref world.HexCoord, mode Mode, action Action) Result {
	group := o.Select(ref, mode)
	res := Result{Action: action.Kind.String(), Mode: mode.String(), Selected: len(group)}
	for _, e := range group {
		def, ok := o.Catalog.Building(e.Type)
		if !ok {
			res.fail(e.Grid, "unknown building type")
			continue
		}
		switch action.Kind {
		case Upgrade:
			o.upgrade(e, def, action.Level, &res)
		case Downgrade:
			o.downgrade(e, def, action.Level, &res)
		case Sell:
			o.sell(e, &res)
		}
	}
	if res.Selected > 0 {
		slog.Info("batch applied",
			"action", res.Action, "mode", res.Mode,
			"selected", res.Selected, "succeeded", res.Succeeded, "failed", res.Failed,
			"cost", res.TotalCost, "gain", res.TotalGain,
		)
	}
	return res
}

func (o *Operator) upgrade(e *entity.Entity, def *catalog.BuildingDefinition, target int, res *Result) {
	if e.Level >= target {
		res.fail(e.Grid, "already at or above target")
		return
	}
	cost := catalog.CostBetween(def, e.Level, target, o.Tuning.LevelCostGrowth)
	if err := o.Treasury.Spend(cost); err != nil {
		res.fail(e.Grid, "insufficient funds")
		return
	}
	e.Level = target
	e.Invested += cost
	res.Succeeded++
	res.TotalCost += cost
}

func (o *Operator) downgrade(e *entity.Entity, def *catalog.BuildingDefinition, target int, res *Result) {
	if target < 1 {
		target = 1
	}
	if e.Level <= target {
		res.fail(e.Grid, "already at or below target")
		return
	}
	removed := min(catalog.CostBetween(def, target, e.Level, o.Tuning.LevelCostGrowth), e.Invested)
	gain := o.Treasury.Refund(removed * o.Tuning.RefundRate)
	e.Invested -= removed
	e.Level = target
	if e.Recipe != nil && def.HasRecipes() && !def.RecipeUnlocked(e.Recipe.Active, e.Level) {
		e.Recipe.Active = def.DefaultRecipe
	}
	res.Succeeded++
	res.TotalGain += gain
}

func (o *Operator) sell(e *entity.Entity, res *Result) {
	gain := Liquidate(o.Store, o.Treasury, o.Depot, o.Tuning, e.Grid)
	res.Succeeded++
	res.TotalGain += gain
}

// Liquidate removes the entity at grid, refunds RefundRate of its invested
// cost (capped by the treasury), and moves ResidualShare of its storage to
// the depot. It returns the refund.
func Liquidate(store *entity.Store, tr *economy.Treasury, depot *economy.Stockpile, t tuning.Tuning, grid world.HexCoord) float64 {
	e := store.Detach(grid)
	if e == nil {
		return 0
	}
	gain := tr.Refund(e.Invested * t.RefundRate)
	for _, k := range e.Storage.Keys() {
		depot.Deposit(k, e.Storage[k]*t.ResidualShare)
	}
	return gain
}
