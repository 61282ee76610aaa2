// Package persistence stores the session state in SQLite (or Postgres
// through pgx) and exports compressed snapshots.
package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/gridworks/internal/catalog"
	"github.com/talgya/gridworks/internal/economy"
	"github.com/talgya/gridworks/internal/engine"
	"github.com/talgya/gridworks/internal/entity"
	"github.com/talgya/gridworks/internal/transport"
	"github.com/talgya/gridworks/internal/world"
)

// Drivers accepted by Open.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"
)

// ErrNoState is returned by LoadState when nothing has been saved yet.
var ErrNoState = errors.New("no saved state")

// ErrUnknownDriver is returned by Open for an unsupported driver name.
var ErrUnknownDriver = errors.New("unknown database driver")

// DB wraps a connection for session persistence.
type DB struct {
	conn   *sqlx.DB
	driver string
}

// Open opens or creates the database and migrates the schema. For sqlite the
// dsn is a file path.
func Open(driver, dsn string) (*DB, error) {
	switch driver {
	case DriverSQLite:
		dsn += "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	case DriverPostgres:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}

	conn, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if driver == DriverSQLite {
		conn.SetMaxOpenConns(1)
	}

	db := &DB{conn: conn, driver: driver}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Driver names the underlying driver.
func (db *DB) Driver() string {
	return db.driver
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS entities (
		grid TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		level INTEGER NOT NULL,
		data TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS prices (
		resource TEXT PRIMARY KEY,
		base_price DOUBLE PRECISION NOT NULL,
		elasticity DOUBLE PRECISION NOT NULL,
		net DOUBLE PRECISION NOT NULL,
		last_net DOUBLE PRECISION NOT NULL,
		rate DOUBLE PRECISION NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS depot (
		resource TEXT PRIMARY KEY,
		amount DOUBLE PRECISION NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS session_keys (
		kind TEXT NOT NULL,
		key TEXT NOT NULL,
		PRIMARY KEY (kind, key)
	)`,
	`CREATE TABLE IF NOT EXISTS deliveries (
		id TEXT PRIMARY KEY,
		from_grid TEXT NOT NULL,
		to_grid TEXT NOT NULL,
		resource TEXT NOT NULL,
		amount DOUBLE PRECISION NOT NULL,
		fuel DOUBLE PRECISION NOT NULL,
		deadline DOUBLE PRECISION NOT NULL,
		seq INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS world_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_entities_type ON entities(type)`,
}

func (db *DB) migrate() error {
	for _, stmt := range schema {
		if _, err := db.conn.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Session key kinds.
const (
	keyUnlocked = "unlocked"
	keyPolicy   = "policy"
	keyAutoSell = "auto_sell"
)

// Meta keys.
const (
	metaVersion  = "version"
	metaSession  = "session_id"
	metaSeed     = "seed"
	metaTick     = "last_tick"
	metaPermits  = "permits"
	metaProfile  = "profile"
	metaEpoch    = "market_epoch"
	metaPricedAt = "priced_at"
	metaNews     = "news"
	metaTreasury = "treasury"
)

type entityRow struct {
	Grid  string `db:"grid"`
	Type  string `db:"type"`
	Level int    `db:"level"`
	Data  string `db:"data"`
}

type priceRow struct {
	Resource   string  `db:"resource"`
	BasePrice  float64 `db:"base_price"`
	Elasticity float64 `db:"elasticity"`
	Net        float64 `db:"net"`
	LastNet    float64 `db:"last_net"`
	Rate       float64 `db:"rate"`
}

type amountRow struct {
	Resource string  `db:"resource"`
	Amount   float64 `db:"amount"`
}

type keyRow struct {
	Kind string `db:"kind"`
	Key  string `db:"key"`
}

type deliveryRow struct {
	ID       string  `db:"id"`
	From     string  `db:"from_grid"`
	To       string  `db:"to_grid"`
	Resource string  `db:"resource"`
	Amount   float64 `db:"amount"`
	Fuel     float64 `db:"fuel"`
	Deadline float64 `db:"deadline"`
	Seq      int     `db:"seq"`
}

// SaveState writes the full state in one transaction (full replace).
func (db *DB) SaveState(st engine.State) error {
	slog.Info("saving session state", "tick", st.Tick, "entities", len(st.Entities), "deliveries", len(st.Deliveries))

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{"entities", "prices", "depot", "session_keys", "deliveries"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	stmt, err := tx.Preparex(tx.Rebind(`INSERT INTO entities (grid, type, level, data) VALUES (?, ?, ?, ?)`))
	if err != nil {
		return err
	}
	defer stmt.Close()
	for key, e := range st.Entities {
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("encode entity %s: %w", key, err)
		}
		if _, err := stmt.Exec(key, string(e.Type), e.Level, string(data)); err != nil {
			return fmt.Errorf("insert entity %s: %w", key, err)
		}
	}

	for k, p := range st.Prices {
		_, err := tx.Exec(tx.Rebind(`INSERT INTO prices (resource, base_price, elasticity, net, last_net, rate)
			VALUES (?, ?, ?, ?, ?, ?)`),
			string(k), p.BasePrice, p.Elasticity, p.Net, p.LastNet, p.Rate)
		if err != nil {
			return fmt.Errorf("insert price %s: %w", k, err)
		}
	}

	for k, v := range st.Depot {
		if _, err := tx.Exec(tx.Rebind(`INSERT INTO depot (resource, amount) VALUES (?, ?)`), string(k), v); err != nil {
			return fmt.Errorf("insert depot %s: %w", k, err)
		}
	}

	keys := make([]keyRow, 0, len(st.Unlocked)+len(st.Policies)+len(st.AutoSell))
	for _, k := range st.Unlocked {
		keys = append(keys, keyRow{Kind: keyUnlocked, Key: string(k)})
	}
	for _, k := range st.Policies {
		keys = append(keys, keyRow{Kind: keyPolicy, Key: k})
	}
	for _, k := range st.AutoSell {
		keys = append(keys, keyRow{Kind: keyAutoSell, Key: string(k)})
	}
	for _, k := range keys {
		if _, err := tx.Exec(tx.Rebind(`INSERT INTO session_keys (kind, key) VALUES (?, ?)`), k.Kind, k.Key); err != nil {
			return fmt.Errorf("insert %s %s: %w", k.Kind, k.Key, err)
		}
	}

	for i, d := range st.Deliveries {
		_, err := tx.Exec(tx.Rebind(`INSERT INTO deliveries (id, from_grid, to_grid, resource, amount, fuel, deadline, seq)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
			d.ID.String(), d.From.Key(), d.To.Key(), string(d.Resource), d.Amount, d.Fuel, d.Deadline, i)
		if err != nil {
			return fmt.Errorf("insert delivery %s: %w", d.ID, err)
		}
	}

	treasury, err := json.Marshal(st.Treasury)
	if err != nil {
		return fmt.Errorf("encode treasury: %w", err)
	}
	news := ""
	if st.News != nil {
		b, err := json.Marshal(st.News)
		if err != nil {
			return fmt.Errorf("encode news: %w", err)
		}
		news = string(b)
	}
	meta := map[string]string{
		metaVersion:  strconv.Itoa(st.Version),
		metaSession:  st.SessionID.String(),
		metaSeed:     strconv.FormatInt(st.Seed, 10),
		metaTick:     strconv.FormatUint(st.Tick, 10),
		metaPermits:  strconv.Itoa(st.Permits),
		metaProfile:  st.Profile,
		metaEpoch:    strconv.FormatUint(st.Epoch, 10),
		metaPricedAt: strconv.FormatUint(st.PricedAt, 10),
		metaNews:     news,
		metaTreasury: string(treasury),
	}
	for k, v := range meta {
		if err := saveMeta(tx, k, v); err != nil {
			return fmt.Errorf("save meta %s: %w", k, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	slog.Info("session state saved", "tick", st.Tick)
	return nil
}

func saveMeta(ex sqlx.Ext, key, value string) error {
	_, err := ex.Exec(ex.Rebind(`INSERT INTO world_meta (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value`), key, value)
	return err
}

// SaveMeta stores a key-value pair in world metadata.
func (db *DB) SaveMeta(key, value string) error {
	return saveMeta(db.conn, key, value)
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, db.conn.Rebind("SELECT value FROM world_meta WHERE key = ?"), key)
	return value, err
}

// LoadState reads the saved state. Rows that cannot be decoded are skipped
// with a warning; semantic repair against the catalog is left to
// engine.Simulation.Restore.
func (db *DB) LoadState() (engine.State, error) {
	st := engine.State{
		Entities: make(map[string]*entity.Entity),
		Prices:   make(map[catalog.ResourceKey]*economy.MarketEntry),
		Depot:    make(catalog.Amounts),
	}

	meta := make(map[string]string)
	var kv []struct {
		Key   string `db:"key"`
		Value string `db:"value"`
	}
	if err := db.conn.Select(&kv, "SELECT key, value FROM world_meta"); err != nil {
		return st, fmt.Errorf("load meta: %w", err)
	}
	for _, r := range kv {
		meta[r.Key] = r.Value
	}
	if _, ok := meta[metaTick]; !ok {
		return st, ErrNoState
	}

	skipped := 0
	parseU := func(key string) uint64 {
		v, err := strconv.ParseUint(meta[key], 10, 64)
		if err != nil && meta[key] != "" {
			slog.Warn("bad meta value", "key", key, "value", meta[key])
			skipped++
		}
		return v
	}
	st.Version, _ = strconv.Atoi(meta[metaVersion])
	st.Tick = parseU(metaTick)
	st.Epoch = parseU(metaEpoch)
	st.PricedAt = parseU(metaPricedAt)
	st.Seed, _ = strconv.ParseInt(meta[metaSeed], 10, 64)
	st.Permits, _ = strconv.Atoi(meta[metaPermits])
	st.Profile = meta[metaProfile]
	if id, err := uuid.Parse(meta[metaSession]); err == nil {
		st.SessionID = id
	}
	if raw := meta[metaTreasury]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &st.Treasury); err != nil {
			slog.Warn("bad treasury record", "error", err)
			skipped++
		}
	}
	if raw := meta[metaNews]; raw != "" {
		var n economy.News
		if err := json.Unmarshal([]byte(raw), &n); err == nil {
			st.News = &n
		} else {
			skipped++
		}
	}

	var entities []entityRow
	if err := db.conn.Select(&entities, "SELECT grid, type, level, data FROM entities"); err != nil {
		return st, fmt.Errorf("load entities: %w", err)
	}
	for _, r := range entities {
		g, err := world.ParseKey(r.Grid)
		if err != nil {
			slog.Warn("skipping entity with bad grid", "grid", r.Grid)
			skipped++
			continue
		}
		var e entity.Entity
		if err := json.Unmarshal([]byte(r.Data), &e); err != nil {
			slog.Warn("skipping undecodable entity", "grid", r.Grid, "error", err)
			skipped++
			continue
		}
		e.Grid = g
		e.Type = catalog.BuildingKey(r.Type)
		st.Entities[g.Key()] = &e
	}

	var prices []priceRow
	if err := db.conn.Select(&prices, "SELECT resource, base_price, elasticity, net, last_net, rate FROM prices"); err != nil {
		return st, fmt.Errorf("load prices: %w", err)
	}
	for _, r := range prices {
		k := catalog.ResourceKey(r.Resource)
		st.Prices[k] = &economy.MarketEntry{
			Resource:   k,
			BasePrice:  r.BasePrice,
			Elasticity: r.Elasticity,
			Net:        r.Net,
			LastNet:    r.LastNet,
			Rate:       r.Rate,
		}
	}

	var depot []amountRow
	if err := db.conn.Select(&depot, "SELECT resource, amount FROM depot"); err != nil {
		return st, fmt.Errorf("load depot: %w", err)
	}
	for _, r := range depot {
		st.Depot[catalog.ResourceKey(r.Resource)] = r.Amount
	}

	var keys []keyRow
	if err := db.conn.Select(&keys, "SELECT kind, key FROM session_keys ORDER BY kind, key"); err != nil {
		return st, fmt.Errorf("load session keys: %w", err)
	}
	for _, r := range keys {
		switch r.Kind {
		case keyUnlocked:
			st.Unlocked = append(st.Unlocked, catalog.BuildingKey(r.Key))
		case keyPolicy:
			st.Policies = append(st.Policies, r.Key)
		case keyAutoSell:
			st.AutoSell = append(st.AutoSell, catalog.ResourceKey(r.Key))
		default:
			skipped++
		}
	}

	var deliveries []deliveryRow
	if err := db.conn.Select(&deliveries, "SELECT id, from_grid, to_grid, resource, amount, fuel, deadline, seq FROM deliveries ORDER BY seq"); err != nil {
		return st, fmt.Errorf("load deliveries: %w", err)
	}
	for _, r := range deliveries {
		from, errFrom := world.ParseKey(r.From)
		to, errTo := world.ParseKey(r.To)
		if errFrom != nil || errTo != nil {
			skipped++
			continue
		}
		id, _ := uuid.Parse(r.ID)
		st.Deliveries = append(st.Deliveries, transport.Delivery{
			ID:       id,
			From:     from,
			To:       to,
			Resource: catalog.ResourceKey(r.Resource),
			Amount:   r.Amount,
			Fuel:     r.Fuel,
			Deadline: r.Deadline,
		})
	}

	slog.Info("session state loaded",
		"tick", st.Tick, "entities", len(st.Entities), "prices", len(st.Prices),
		"deliveries", len(st.Deliveries), "skipped", skipped,
	)
	return st, nil
}

// HasState reports whether a state has been saved.
func (db *DB) HasState() (bool, error) {
	_, err := db.GetMeta(metaTick)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}
