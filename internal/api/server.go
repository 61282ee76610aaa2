// Package api serves the simulation over HTTP.
// GET endpoints are public and read-only.
// POST endpoints require the admin bearer token and run as engine commands
// at the next tick boundary.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/talgya/gridworks/internal/engine"
)

// StateSaver persists a snapshot of the session.
type StateSaver interface {
	SaveState(engine.State) error
}

// Server serves the session over HTTP.
type Server struct {
	Eng         *engine.Engine
	DB          StateSaver // nil disables /snapshot
	Metrics     http.Handler
	MetricsPath string
	Port        int
	AdminKey    string // empty disables POST endpoints
	CORSOrigins []string
	Limiter     *RateLimiter
	Hub         *Hub
}

// Handler builds the routed, CORS-wrapped handler.
func (s *Server) Handler() http.Handler {
	if s.Hub == nil {
		s.Hub = NewHub()
	}
	mux := http.NewServeMux()

	// Public endpoints.
	mux.HandleFunc("GET /api/v1/status", s.handleStatus)
	mux.HandleFunc("GET /api/v1/summary", s.handleSummary)
	mux.HandleFunc("GET /api/v1/entities", s.handleEntities)
	mux.HandleFunc("GET /api/v1/entity/{grid}", s.handleEntity)
	mux.HandleFunc("GET /api/v1/prices", s.handlePrices)
	mux.HandleFunc("GET /api/v1/price/{resource}", s.handlePrice)
	mux.HandleFunc("GET /api/v1/power", s.handlePower)
	mux.HandleFunc("GET /api/v1/buildings", s.handleBuildings)
	mux.HandleFunc("GET /api/v1/policies", s.handlePolicies)
	mux.HandleFunc("GET /api/v1/constructions", s.handleConstructions)
	mux.HandleFunc("GET /api/v1/map", s.handleMap)
	mux.HandleFunc("GET /api/v1/stream", s.handleStream)

	// Admin endpoints.
	mux.HandleFunc("POST /api/v1/speed", s.adminOnly(s.handleSpeed))
	mux.HandleFunc("POST /api/v1/snapshot", s.adminOnly(s.handleSnapshot))
	mux.HandleFunc("POST /api/v1/permits", s.adminOnly(s.handlePermits))
	mux.HandleFunc("POST /api/v1/build", s.adminOnly(s.handleBuild))
	mux.HandleFunc("POST /api/v1/sell-building", s.adminOnly(s.handleSellBuilding))
	mux.HandleFunc("POST /api/v1/unlock", s.adminOnly(s.handleUnlock))
	mux.HandleFunc("POST /api/v1/policy", s.adminOnly(s.handlePolicy))
	mux.HandleFunc("POST /api/v1/market/sell", s.adminOnly(s.handleMarketSell))
	mux.HandleFunc("POST /api/v1/market/buy", s.adminOnly(s.handleMarketBuy))
	mux.HandleFunc("POST /api/v1/auto-sell", s.adminOnly(s.handleAutoSell))
	mux.HandleFunc("POST /api/v1/batch", s.adminOnly(s.handleBatch))
	mux.HandleFunc("POST /api/v1/entity/{grid}/settings", s.adminOnly(s.handleSettings))
	mux.HandleFunc("POST /api/v1/entity/{grid}/override", s.adminOnly(s.handleOverride))
	mux.HandleFunc("POST /api/v1/entity/{grid}/route", s.adminOnly(s.handleRoute))

	if s.Metrics != nil {
		path := s.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		mux.Handle("GET "+path, s.Metrics)
	}

	var h http.Handler = mux
	if s.Limiter != nil {
		h = s.Limiter.Middleware(h)
	}
	return corsMiddleware(s.CORSOrigins, h)
}

// Start serves the API in a goroutine. Shut it down through the returned
// server.
func (s *Server) Start() *http.Server {
	addr := fmt.Sprintf(":%d", s.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "", "metrics", s.Metrics != nil)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()
	return srv
}

// corsMiddleware adds CORS headers for allowed frontend origins. Localhost
// dev servers are always allowed.
func corsMiddleware(origins []string, next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:3000": true,
	}
	for _, origin := range origins {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			allowedOrigins[origin] = true
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkBearerToken returns true if the request has a valid admin bearer token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly wraps a handler to require bearer token auth.
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.AdminKey == "" {
			http.Error(w, "admin endpoints disabled (no admin key set)", http.StatusForbidden)
			return
		}
		if !s.checkBearerToken(r) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func writeJSON(w http.ResponseWriter, data any) {
	writeJSONStatus(w, http.StatusOK, data)
}

func writeJSONStatus(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		slog.Warn("encode response", "error", err)
	}
}

// writeReceipt answers 200 for accepted commands and 409 for rejected ones.
func writeReceipt(w http.ResponseWriter, rc engine.Receipt) {
	if !rc.OK {
		writeJSONStatus(w, http.StatusConflict, rc)
		return
	}
	writeJSON(w, rc)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return false
	}
	return true
}
