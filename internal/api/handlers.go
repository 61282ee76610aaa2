package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/talgya/gridworks/internal/batch"
	"github.com/talgya/gridworks/internal/catalog"
	"github.com/talgya/gridworks/internal/engine"
	"github.com/talgya/gridworks/internal/entity"
	"github.com/talgya/gridworks/internal/world"
)

// commandTimeout bounds how long a POST waits for the tick boundary.
const commandTimeout = 10 * time.Second

// exec runs fn as an engine command. It writes 504 and returns false when
// the boundary is not reached in time.
func (s *Server) exec(w http.ResponseWriter, r *http.Request, fn func(*engine.Simulation)) bool {
	ctx, cancel := context.WithTimeout(r.Context(), commandTimeout)
	defer cancel()
	if err := s.Eng.Exec(ctx, fn); err != nil {
		http.Error(w, "command timed out", http.StatusGatewayTimeout)
		return false
	}
	return true
}

func gridParam(w http.ResponseWriter, r *http.Request) (world.HexCoord, bool) {
	g, err := world.ParseKey(r.PathValue("grid"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return g, false
	}
	return g, true
}

// ── Queries ───────────────────────────────────────────────────────────

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	speed := s.Eng.Speed()
	var status map[string]any
	s.Eng.View(func(sim *engine.Simulation) {
		status = map[string]any{
			"session_id":    sim.SessionID,
			"tick":          sim.Tick,
			"game_time":     engine.GameTime(sim.Tick, sim.Tuning.TickSeconds),
			"speed":         speed,
			"profile":       sim.Profile.Key,
			"policies":      sim.PolicyKeys(),
			"permits":       sim.Permits,
			"entities":      sim.Store.Len(),
			"cash":          sim.Treasury.Cash,
			"power":         sim.PowerBalance(),
			"in_flight":     sim.Deliveries.Len(),
			"market_epoch":  sim.Market.Epoch,
			"statuses":      sim.StatusCounts(),
			"constructions": sim.Constructions(),
		}
	})
	writeJSON(w, status)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	var sum engine.TickSummary
	s.Eng.View(func(sim *engine.Simulation) { sum = sim.LastSummary() })
	writeJSON(w, sum)
}

func (s *Server) handleEntities(w http.ResponseWriter, r *http.Request) {
	typ := catalog.BuildingKey(r.URL.Query().Get("type"))
	var views []engine.EntityView
	s.Eng.View(func(sim *engine.Simulation) { views = sim.Entities(typ) })
	if views == nil {
		views = []engine.EntityView{}
	}
	writeJSON(w, views)
}

func (s *Server) handleEntity(w http.ResponseWriter, r *http.Request) {
	g, ok := gridParam(w, r)
	if !ok {
		return
	}
	var (
		view  engine.EntityView
		found bool
	)
	s.Eng.View(func(sim *engine.Simulation) { view, found = sim.Entity(g) })
	if !found {
		http.Error(w, "no entity at "+g.Key(), http.StatusNotFound)
		return
	}
	writeJSON(w, view)
}

func (s *Server) handlePrices(w http.ResponseWriter, r *http.Request) {
	var table []engine.PriceView
	s.Eng.View(func(sim *engine.Simulation) { table = sim.PriceTable() })
	if table == nil {
		table = []engine.PriceView{}
	}
	writeJSON(w, table)
}

func (s *Server) handlePrice(w http.ResponseWriter, r *http.Request) {
	res := catalog.ResourceKey(r.PathValue("resource"))
	var (
		pv    engine.PriceView
		found bool
	)
	s.Eng.View(func(sim *engine.Simulation) { pv, found = sim.PriceInfo(res) })
	if !found {
		http.Error(w, "resource not priced", http.StatusNotFound)
		return
	}
	writeJSON(w, pv)
}

func (s *Server) handlePower(w http.ResponseWriter, r *http.Request) {
	var out any
	s.Eng.View(func(sim *engine.Simulation) { out = sim.PowerBalance() })
	writeJSON(w, out)
}

func (s *Server) handleBuildings(w http.ResponseWriter, r *http.Request) {
	var out []engine.BuildingInfo
	s.Eng.View(func(sim *engine.Simulation) { out = sim.Buildings() })
	writeJSON(w, out)
}

func (s *Server) handlePolicies(w http.ResponseWriter, r *http.Request) {
	var out []engine.PolicyInfo
	s.Eng.View(func(sim *engine.Simulation) { out = sim.PolicyList() })
	writeJSON(w, out)
}

func (s *Server) handleConstructions(w http.ResponseWriter, r *http.Request) {
	var out map[string]int
	s.Eng.View(func(sim *engine.Simulation) { out = sim.Constructions() })
	writeJSON(w, out)
}

// handleMap returns every tile for map renderers.
func (s *Server) handleMap(w http.ResponseWriter, r *http.Request) {
	type tileEntry struct {
		Q         int     `json:"q"`
		R         int     `json:"r"`
		Terrain   string  `json:"terrain"`
		Elevation float64 `json:"elevation"`
		Deposit   string  `json:"deposit,omitempty"`
		Building  string  `json:"building,omitempty"`
	}

	var (
		radius int
		tiles  []tileEntry
	)
	s.Eng.View(func(sim *engine.Simulation) {
		radius = sim.Map.Radius
		for _, c := range sim.Map.Coords() {
			t := sim.Map.Get(c)
			entry := tileEntry{
				Q:         c.Q,
				R:         c.R,
				Terrain:   world.TerrainName(t.Terrain),
				Elevation: t.Elevation,
				Deposit:   t.Deposit,
			}
			if e := sim.Store.Get(c); e != nil {
				entry.Building = string(e.Type)
			}
			tiles = append(tiles, entry)
		}
	})
	writeJSON(w, map[string]any{"radius": radius, "tiles": tiles})
}

// ── Commands ──────────────────────────────────────────────────────────

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Speed float64 `json:"speed"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Speed < 0 || req.Speed > 1000 {
		http.Error(w, "speed must be 0-1000", http.StatusBadRequest)
		return
	}
	s.Eng.SetSpeed(req.Speed)
	writeJSON(w, map[string]float64{"speed": s.Eng.Speed()})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "database not available", http.StatusServiceUnavailable)
		return
	}
	var st engine.State
	if !s.exec(w, r, func(sim *engine.Simulation) { st = sim.Snapshot() }) {
		return
	}
	if err := s.DB.SaveState(st); err != nil {
		slog.Error("snapshot save failed", "error", err)
		http.Error(w, "snapshot failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"tick": st.Tick, "message": "snapshot saved"})
}

func (s *Server) handlePermits(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Permits int `json:"permits"`
	}
	if !decode(w, r, &req) {
		return
	}
	var ok bool
	if !s.exec(w, r, func(sim *engine.Simulation) { ok = sim.SetPermits(req.Permits) }) {
		return
	}
	if !ok {
		http.Error(w, "permits must be >= 0", http.StatusBadRequest)
		return
	}
	writeJSON(w, map[string]int{"permits": req.Permits})
}

type gridRequest struct {
	Q int `json:"q"`
	R int `json:"r"`
}

func (g gridRequest) coord() world.HexCoord {
	return world.HexCoord{Q: g.Q, R: g.R}
}

func (s *Server) handleBuild(w http.ResponseWriter, r *http.Request) {
	var req struct {
		gridRequest
		Type  catalog.BuildingKey `json:"type"`
		Defer bool                `json:"defer"`
	}
	if !decode(w, r, &req) {
		return
	}
	var rc engine.Receipt
	if !s.exec(w, r, func(sim *engine.Simulation) { rc = sim.Build(req.coord(), req.Type, req.Defer) }) {
		return
	}
	writeReceipt(w, rc)
}

func (s *Server) handleSellBuilding(w http.ResponseWriter, r *http.Request) {
	var req gridRequest
	if !decode(w, r, &req) {
		return
	}
	var rc engine.Receipt
	if !s.exec(w, r, func(sim *engine.Simulation) { rc = sim.SellBuilding(req.coord()) }) {
		return
	}
	writeReceipt(w, rc)
}

func (s *Server) handleUnlock(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Type catalog.BuildingKey `json:"type"`
	}
	if !decode(w, r, &req) {
		return
	}
	var rc engine.Receipt
	if !s.exec(w, r, func(sim *engine.Simulation) { rc = sim.Unlock(req.Type) }) {
		return
	}
	writeReceipt(w, rc)
}

func (s *Server) handlePolicy(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Key string `json:"key"`
		On  bool   `json:"on"`
	}
	if !decode(w, r, &req) {
		return
	}
	var rc engine.Receipt
	if !s.exec(w, r, func(sim *engine.Simulation) { rc = sim.TogglePolicy(req.Key, req.On) }) {
		return
	}
	writeReceipt(w, rc)
}

type tradeRequest struct {
	Resource catalog.ResourceKey `json:"resource"`
	Quantity float64             `json:"quantity"`
}

func (s *Server) handleMarketSell(w http.ResponseWriter, r *http.Request) {
	var req tradeRequest
	if !decode(w, r, &req) {
		return
	}
	var rc engine.Receipt
	if !s.exec(w, r, func(sim *engine.Simulation) { rc = sim.SellResource(req.Resource, req.Quantity) }) {
		return
	}
	writeReceipt(w, rc)
}

func (s *Server) handleMarketBuy(w http.ResponseWriter, r *http.Request) {
	var req tradeRequest
	if !decode(w, r, &req) {
		return
	}
	var rc engine.Receipt
	if !s.exec(w, r, func(sim *engine.Simulation) { rc = sim.BuyResource(req.Resource, req.Quantity) }) {
		return
	}
	writeReceipt(w, rc)
}

func (s *Server) handleAutoSell(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Resource catalog.ResourceKey `json:"resource"`
		On       bool                `json:"on"`
	}
	if !decode(w, r, &req) {
		return
	}
	var ok bool
	if !s.exec(w, r, func(sim *engine.Simulation) { ok = sim.SetAutoSell(req.Resource, req.On) }) {
		return
	}
	if !ok {
		http.Error(w, "unknown resource", http.StatusBadRequest)
		return
	}
	writeJSON(w, map[string]any{"resource": req.Resource, "on": req.On})
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		gridRequest
		Mode   string `json:"mode"`
		Action string `json:"action"`
		Level  int    `json:"level"`
	}
	if !decode(w, r, &req) {
		return
	}
	mode, err := batch.ParseMode(req.Mode)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	kind, err := batch.ParseKind(req.Action)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var res batch.Result
	action := batch.Action{Kind: kind, Level: req.Level}
	if !s.exec(w, r, func(sim *engine.Simulation) { res = sim.BatchApply(req.coord(), mode, action) }) {
		return
	}
	writeJSON(w, res)
}

// settingsRequest carries optional per-entity settings. Absent fields are
// left alone.
type settingsRequest struct {
	TurnOff            *bool    `json:"turn_off"`
	HighPriority       *bool    `json:"high_priority"`
	AllowPartial       *bool    `json:"allow_partial"`
	SearchRadius       *int     `json:"search_radius"`
	Level              *int     `json:"level"`
	TickLength         *int     `json:"tick_length"`
	CapacityMultiplier *float64 `json:"capacity_multiplier"`
	Buffer             *string  `json:"buffer"`
	BufferMultiplier   float64  `json:"buffer_multiplier"`
	Recipe             *string  `json:"recipe"`
	Mix                *float64 `json:"mix"`
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	g, ok := gridParam(w, r)
	if !ok {
		return
	}
	var req settingsRequest
	if !decode(w, r, &req) {
		return
	}
	var buffer entity.BufferPolicy
	if req.Buffer != nil {
		if buffer, ok = entity.ParseBufferPolicy(*req.Buffer); !ok {
			http.Error(w, "unknown buffer policy", http.StatusBadRequest)
			return
		}
	}

	applied := map[string]bool{}
	if !s.exec(w, r, func(sim *engine.Simulation) {
		if req.TurnOff != nil {
			applied["turn_off"] = sim.SetTurnOff(g, *req.TurnOff)
		}
		if req.HighPriority != nil {
			applied["high_priority"] = sim.SetHighPriority(g, *req.HighPriority)
		}
		if req.AllowPartial != nil {
			applied["allow_partial"] = sim.SetAllowPartial(g, *req.AllowPartial)
		}
		if req.SearchRadius != nil {
			applied["search_radius"] = sim.SetSearchRadius(g, *req.SearchRadius)
		}
		if req.Level != nil {
			applied["level"] = sim.SetEntityLevel(g, *req.Level)
		}
		if req.TickLength != nil {
			applied["tick_length"] = sim.SetTickLength(g, *req.TickLength)
		}
		if req.CapacityMultiplier != nil {
			applied["capacity_multiplier"] = sim.SetCapacityMultiplier(g, *req.CapacityMultiplier)
		}
		if req.Buffer != nil {
			applied["buffer"] = sim.SetBuffer(g, buffer, req.BufferMultiplier)
		}
		if req.Recipe != nil {
			applied["recipe"] = sim.SetRecipe(g, *req.Recipe)
		}
		if req.Mix != nil {
			applied["mix"] = sim.SetMix(g, *req.Mix)
		}
	}) {
		return
	}
	code := http.StatusOK
	for _, v := range applied {
		if !v {
			code = http.StatusConflict
		}
	}
	writeJSONStatus(w, code, applied)
}

func (s *Server) handleOverride(w http.ResponseWriter, r *http.Request) {
	g, ok := gridParam(w, r)
	if !ok {
		return
	}
	var req struct {
		Resource catalog.ResourceKey `json:"resource"`
		Source   *gridRequest        `json:"source"` // null clears
		Fallback string              `json:"fallback"`
	}
	if !decode(w, r, &req) {
		return
	}
	fallback := entity.FallbackAuto
	if req.Fallback != "" {
		if fallback, ok = entity.ParseFallback(req.Fallback); !ok {
			http.Error(w, "unknown fallback", http.StatusBadRequest)
			return
		}
	}
	var source *world.HexCoord
	if req.Source != nil {
		c := req.Source.coord()
		source = &c
	}
	var applied bool
	if !s.exec(w, r, func(sim *engine.Simulation) {
		applied = sim.SetInputOverride(g, req.Resource, source, fallback)
	}) {
		return
	}
	if !applied {
		http.Error(w, "override rejected", http.StatusConflict)
		return
	}
	writeJSON(w, map[string]bool{"ok": true})
}

func (s *Server) handleRoute(w http.ResponseWriter, r *http.Request) {
	g, ok := gridParam(w, r)
	if !ok {
		return
	}
	var req struct {
		Direction string              `json:"direction"`
		Partner   gridRequest         `json:"partner"`
		Resource  catalog.ResourceKey `json:"resource"`
		Weight    float64             `json:"weight"`
		Remove    bool                `json:"remove"`
	}
	if !decode(w, r, &req) {
		return
	}
	var applied bool
	if !s.exec(w, r, func(sim *engine.Simulation) {
		if req.Remove {
			applied = sim.RemoveRoute(g, req.Partner.coord(), req.Resource)
			return
		}
		applied = sim.AddRoute(g, req.Direction, entity.Route{
			Partner:  req.Partner.coord(),
			Resource: req.Resource,
			Weight:   req.Weight,
		})
	}) {
		return
	}
	if !applied {
		http.Error(w, "route rejected", http.StatusConflict)
		return
	}
	writeJSON(w, map[string]bool{"ok": true})
}
