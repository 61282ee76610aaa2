// Command gridsim runs a production simulation session and serves it over
// HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/talgya/gridworks/internal/api"
	"github.com/talgya/gridworks/internal/catalog"
	"github.com/talgya/gridworks/internal/config"
	"github.com/talgya/gridworks/internal/engine"
	"github.com/talgya/gridworks/internal/metrics"
	"github.com/talgya/gridworks/internal/persistence"
	"github.com/talgya/gridworks/internal/tuning"
	"github.com/talgya/gridworks/internal/world"
)

func main() {
	configPath := flag.String("config", "", "path to gridworks.yaml")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("gridsim failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}
	slog.SetDefault(cfg.Logging.Logger())
	slog.Info("gridworks production simulation", "seed", cfg.Sim.Seed, "profile", cfg.Sim.MapProfile)

	// ── Tuning and catalog ────────────────────────────────────────────
	tu := tuning.Default()
	if cfg.Sim.TuningFile != "" {
		if tu, err = tuning.Load(cfg.Sim.TuningFile); err != nil {
			return err
		}
	}
	tu.FramesPerTick = cfg.Sim.FramesPerTick

	base := catalog.Default()
	if cfg.Sim.CatalogOverrides != "" {
		ov, err := catalog.LoadOverrides(cfg.Sim.CatalogOverrides)
		if err != nil {
			return err
		}
		if err := ov.Apply(base); err != nil {
			slog.Warn("catalog overrides partly applied", "error", err)
		}
	}

	// ── Map (always regenerated, deterministic from seed) ─────────────
	worldMap := generateMap(cfg.Sim)
	for t, c := range world.TerrainCounts(worldMap) {
		slog.Info("terrain", "type", world.TerrainName(t), "count", c)
	}

	// ── Database ──────────────────────────────────────────────────────
	if cfg.Database.Driver == persistence.DriverSQLite {
		if err := os.MkdirAll(filepath.Dir(cfg.Database.DSN), 0o755); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}
	}
	db, err := persistence.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer db.Close()
	slog.Info("database opened", "driver", cfg.Database.Driver)

	// ── Simulation ────────────────────────────────────────────────────
	sim := engine.NewSimulation(engine.Options{
		Seed:         cfg.Sim.Seed,
		Profile:      cfg.Sim.MapProfile,
		Permits:      cfg.Sim.Permits,
		StartingCash: cfg.Sim.StartingCash,
		StartingFuel: cfg.Sim.StartingFuel,
		Policies:     cfg.Sim.Policies,
		Tuning:       tu,
		Catalog:      base,
		Map:          worldMap,
	})

	st, err := db.LoadState()
	switch {
	case err == nil:
		repairs := sim.Restore(st)
		slog.Info("session restored",
			"tick", sim.Tick,
			"game_time", engine.GameTime(sim.Tick, sim.Tuning.TickSeconds),
			"entities", sim.Store.Len(),
			"repairs", repairs.Total(),
		)
	case errors.Is(err, persistence.ErrNoState):
		slog.Info("no saved state found, starting a new session", "session", sim.SessionID)
		if err := db.SaveState(sim.Snapshot()); err != nil {
			slog.Error("initial save failed", "error", err)
		}
	default:
		return err
	}

	var recorder *metrics.Recorder
	if cfg.Metrics.Enabled {
		if recorder, err = metrics.NewRecorder(); err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
		sim.Observer = recorder
	}

	eng := engine.NewEngine(sim)
	eng.Interval = cfg.Sim.FrameInterval
	eng.SetSpeed(cfg.Sim.Speed)

	hub := api.NewHub()
	saver := &autosaver{eng: eng, db: db, every: uint64(cfg.Database.AutosaveTicks), dir: cfg.Database.SnapshotDir}
	eng.OnTick = func(sum engine.TickSummary) {
		hub.Publish(sum)
		if recorder != nil {
			eng.View(func(sim *engine.Simulation) { recorder.ObservePrices(sim.Market.Prices()) })
		}
		saver.maybeSave(sum.Tick)
	}
	eng.OnDay = func(tick uint64) {
		var cash float64
		eng.View(func(sim *engine.Simulation) { cash = sim.Treasury.Cash })
		slog.Info("day complete", "tick", tick, "cash", humanize.CommafWithDigits(cash, 2))
	}

	// ── HTTP API ──────────────────────────────────────────────────────
	if cfg.API.AdminKey == "" {
		slog.Warn("api.admin_key not set, admin POST endpoints will be disabled")
	}
	server := &api.Server{
		Eng:         eng,
		DB:          db,
		Port:        cfg.API.Port,
		AdminKey:    cfg.API.AdminKey,
		CORSOrigins: cfg.API.CORSOrigins,
		Limiter:     api.NewRateLimiter(cfg.API.RateLimit.RequestsPerSecond, cfg.API.RateLimit.Burst),
		Hub:         hub,
	}
	if recorder != nil {
		server.Metrics = recorder.Handler()
		server.MetricsPath = cfg.Metrics.Path
	}
	httpServer := server.Start()

	// ── Run until signalled ───────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	eng.Run(ctx)

	slog.Info("shutting down, saving state...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Warn("HTTP shutdown", "error", err)
	}
	saver.save()
	slog.Info("shutdown complete")
	return nil
}

// generateMap builds the session map, applying the profile's deposit
// weights on top of the defaults.
func generateMap(sc config.SimConfig) *world.Map {
	gen := world.DefaultGenConfig()
	gen.Radius = sc.MapRadius
	gen.Seed = sc.Seed
	if p, ok := catalog.DefaultProfiles()[sc.MapProfile]; ok {
		for k, w := range p.DepositWeights {
			gen.DepositWeights[k] = w
		}
	}
	return world.Generate(gen)
}

// autosaver writes the session to the database every n ticks and, when a
// snapshot directory is configured, exports a compressed snapshot as well.
type autosaver struct {
	eng   *engine.Engine
	db    *persistence.DB
	every uint64
	dir   string
}

func (a *autosaver) maybeSave(tick uint64) {
	if a.every > 0 && tick%a.every == 0 {
		a.save()
	}
}

// save must run at a tick boundary: from OnTick or after Run returns.
func (a *autosaver) save() {
	var st engine.State
	a.eng.View(func(sim *engine.Simulation) { st = sim.Snapshot() })
	if err := a.db.SaveState(st); err != nil {
		slog.Error("autosave failed", "tick", st.Tick, "error", err)
		return
	}
	if a.dir == "" {
		return
	}
	path := filepath.Join(a.dir, fmt.Sprintf("session-%08d.json.zst", st.Tick))
	if err := persistence.WriteSnapshot(path, st); err != nil {
		slog.Error("snapshot export failed", "path", path, "error", err)
		return
	}
	slog.Info("snapshot exported", "path", path)
}
