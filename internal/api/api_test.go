package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/gridworks/internal/catalog"
	"github.com/talgya/gridworks/internal/engine"
	"github.com/talgya/gridworks/internal/entity"
	"github.com/talgya/gridworks/internal/tuning"
	"github.com/talgya/gridworks/internal/world"
)

const adminKey = "letmein"

func plainsMap(radius int) *world.Map {
	m := world.NewMap(radius, 1)
	for q := -radius; q <= radius; q++ {
		for r := -radius; r <= radius; r++ {
			c := world.HexCoord{Q: q, R: r}
			if m.InBounds(c) {
				m.Set(&world.Tile{Coord: c, Terrain: world.TerrainPlains})
			}
		}
	}
	return m
}

type fakeSaver struct {
	saved []engine.State
	err   error
}

func (f *fakeSaver) SaveState(st engine.State) error {
	f.saved = append(f.saved, st)
	return f.err
}

func newServer(t *testing.T) (*Server, http.Handler) {
	t.Helper()
	tu := tuning.Default()
	tu.NewsChance = 0
	sim := engine.NewSimulation(engine.Options{
		Seed:         3,
		StartingCash: 1000,
		StartingFuel: 100,
		Tuning:       tu,
		Map:          plainsMap(3),
	})
	s := &Server{Eng: engine.NewEngine(sim), AdminKey: adminKey}
	return s, s.Handler()
}

func do(h http.Handler, method, path, body string, admin bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if admin {
		req.Header.Set("Authorization", "Bearer "+adminKey)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestStatus_ReportsSession(t *testing.T) {
	// Arrange
	_, h := newServer(t)

	// Act
	rec := do(h, "GET", "/api/v1/status", "", false)

	// Assert
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.EqualValues(t, 0, body["tick"])
	assert.EqualValues(t, 1000, body["cash"])
	assert.Equal(t, "standard", body["profile"])
}

func TestAdminOnly(t *testing.T) {
	t.Run("wrong token", func(t *testing.T) {
		_, h := newServer(t)
		req := httptest.NewRequest("POST", "/api/v1/speed", strings.NewReader(`{"speed":2}`))
		req.Header.Set("Authorization", "Bearer nope")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
	t.Run("no admin key configured", func(t *testing.T) {
		s, _ := newServer(t)
		s.AdminKey = ""
		rec := do(s.Handler(), "POST", "/api/v1/speed", `{"speed":2}`, true)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
	t.Run("GET on command route", func(t *testing.T) {
		_, h := newServer(t)
		rec := do(h, "GET", "/api/v1/build", "", true)
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}

func TestBuild_ThenInspectEntity(t *testing.T) {
	// Arrange
	s, h := newServer(t)

	// Act
	built := do(h, "POST", "/api/v1/build", `{"q":1,"r":0,"type":"Farm"}`, true)
	again := do(h, "POST", "/api/v1/build", `{"q":1,"r":0,"type":"Farm"}`, true)
	view := do(h, "GET", "/api/v1/entity/1,0", "", false)
	missing := do(h, "GET", "/api/v1/entity/2,0", "", false)

	// Assert
	require.Equal(t, http.StatusOK, built.Code)
	var rc engine.Receipt
	require.NoError(t, json.Unmarshal(built.Body.Bytes(), &rc))
	assert.True(t, rc.OK)
	assert.Greater(t, rc.Cost, 0.0)

	assert.Equal(t, http.StatusConflict, again.Code)

	require.Equal(t, http.StatusOK, view.Code)
	var ev map[string]any
	require.NoError(t, json.Unmarshal(view.Body.Bytes(), &ev))
	assert.Equal(t, "Farm", ev["type"])
	assert.Equal(t, "under_construction", ev["status_name"])

	assert.Equal(t, http.StatusNotFound, missing.Code)
	s.Eng.View(func(sim *engine.Simulation) {
		assert.Equal(t, 1, sim.Store.Len())
	})
}

func TestEntity_BadGridKey(t *testing.T) {
	// Arrange
	_, h := newServer(t)

	// Act
	rec := do(h, "GET", "/api/v1/entity/north", "", false)

	// Assert
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSettings_AppliesPresentFieldsOnly(t *testing.T) {
	// Arrange
	s, h := newServer(t)
	s.Eng.View(func(sim *engine.Simulation) {
		sim.PlaceBuilding(world.HexCoord{}, catalog.Farm, nil)
	})

	// Act
	rec := do(h, "POST", "/api/v1/entity/0,0/settings", `{"turn_off":true,"buffer":"fixed","buffer_multiplier":3}`, true)
	bad := do(h, "POST", "/api/v1/entity/0,0/settings", `{"tick_length":-4}`, true)

	// Assert
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, http.StatusConflict, bad.Code)
	s.Eng.View(func(sim *engine.Simulation) {
		e := sim.Store.Get(world.HexCoord{})
		assert.True(t, e.TurnedOff)
		assert.Equal(t, entity.BufferFixed, e.Buffer)
		assert.False(t, e.HighPriority)
	})
}

func TestBatch_RejectsUnknownMode(t *testing.T) {
	// Arrange
	_, h := newServer(t)

	// Act
	rec := do(h, "POST", "/api/v1/batch", `{"q":0,"r":0,"mode":"galaxy","action":"sell"}`, true)

	// Assert
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMarket_SellWithoutStockIsRejected(t *testing.T) {
	// Arrange
	_, h := newServer(t)

	// Act
	rec := do(h, "POST", "/api/v1/market/sell", `{"resource":"Coal","quantity":5}`, true)

	// Assert
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestSnapshot(t *testing.T) {
	t.Run("saves a state", func(t *testing.T) {
		s, _ := newServer(t)
		saver := &fakeSaver{}
		s.DB = saver
		rec := do(s.Handler(), "POST", "/api/v1/snapshot", "", true)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Len(t, saver.saved, 1)
		assert.Equal(t, engine.StateVersion, saver.saved[0].Version)
	})
	t.Run("save error", func(t *testing.T) {
		s, _ := newServer(t)
		s.DB = &fakeSaver{err: errors.New("disk full")}
		rec := do(s.Handler(), "POST", "/api/v1/snapshot", "", true)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
	t.Run("no database", func(t *testing.T) {
		_, h := newServer(t)
		rec := do(h, "POST", "/api/v1/snapshot", "", true)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestSpeed(t *testing.T) {
	// Arrange
	s, h := newServer(t)

	// Act
	ok := do(h, "POST", "/api/v1/speed", `{"speed":4}`, true)
	bad := do(h, "POST", "/api/v1/speed", `{"speed":-1}`, true)

	// Assert
	assert.Equal(t, http.StatusOK, ok.Code)
	assert.Equal(t, http.StatusBadRequest, bad.Code)
	assert.InDelta(t, 4, s.Eng.Speed(), 1e-9)
}

func TestCORS_Preflight(t *testing.T) {
	// Arrange
	s, _ := newServer(t)
	s.CORSOrigins = []string{"https://grid.example"}
	req := httptest.NewRequest("OPTIONS", "/api/v1/status", nil)
	req.Header.Set("Origin", "https://grid.example")
	rec := httptest.NewRecorder()

	// Act
	s.Handler().ServeHTTP(rec, req)

	// Assert
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://grid.example", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimit_Returns429AfterBurst(t *testing.T) {
	// Arrange
	s, _ := newServer(t)
	s.Limiter = NewRateLimiter(0.001, 2)
	h := s.Handler()

	// Act
	first := do(h, "GET", "/api/v1/power", "", false)
	second := do(h, "GET", "/api/v1/power", "", false)
	third := do(h, "GET", "/api/v1/power", "", false)

	// Assert
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, http.StatusTooManyRequests, third.Code)
	assert.NotEmpty(t, third.Header().Get("Retry-After"))
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "10.0.0.7:5555"
	assert.Equal(t, "10.0.0.7", clientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	assert.Equal(t, "203.0.113.9", clientIP(req))
}

func TestMetricsMounted(t *testing.T) {
	// Arrange
	s, _ := newServer(t)
	s.Metrics = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("gridworks_tick_total 1\n"))
	})

	// Act
	rec := do(s.Handler(), "GET", "/metrics", "", false)

	// Assert
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "gridworks_tick_total")
}

func TestStream_PushesTickSummaries(t *testing.T) {
	// Arrange
	s, h := newServer(t)
	ts := httptest.NewServer(h)
	defer ts.Close()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return s.Hub.Len() == 1 }, time.Second, 10*time.Millisecond)

	// Act
	sum := s.Eng.Step()
	s.Hub.Publish(sum)

	// Assert
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	var got engine.TickSummary
	require.NoError(t, json.Unmarshal(msg, &got))
	assert.Equal(t, uint64(1), got.Tick)
}
