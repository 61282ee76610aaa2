// Package client talks to the gridworks HTTP API. Reads are public; commands
// need the admin key.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/talgya/gridworks/internal/batch"
	"github.com/talgya/gridworks/internal/catalog"
	"github.com/talgya/gridworks/internal/engine"
	"github.com/talgya/gridworks/internal/power"
	"github.com/talgya/gridworks/internal/world"
)

// StatusError is returned for unexpected HTTP status codes.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s returned %d: %s", e.Method, e.Path, e.Code, e.Body)
}

// Status mirrors GET /api/v1/status.
type Status struct {
	SessionID     uuid.UUID      `json:"session_id"`
	Tick          uint64         `json:"tick"`
	GameTime      string         `json:"game_time"`
	Speed         float64        `json:"speed"`
	Profile       string         `json:"profile"`
	Policies      []string       `json:"policies"`
	Permits       int            `json:"permits"`
	Entities      int            `json:"entities"`
	Cash          float64        `json:"cash"`
	Power         power.Balance  `json:"power"`
	InFlight      int            `json:"in_flight"`
	MarketEpoch   uint64         `json:"market_epoch"`
	Statuses      map[string]int `json:"statuses"`
	Constructions map[string]int `json:"constructions"`
}

// Client is an API client.
type Client struct {
	BaseURL    string
	AdminKey   string
	HTTPClient *http.Client
}

// New creates a client for baseURL. adminKey may be empty for read-only use.
func New(baseURL, adminKey string) *Client {
	return &Client{
		BaseURL:    baseURL,
		AdminKey:   adminKey,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// do sends a request and decodes the JSON response into target. Status codes
// listed in accept besides 200 are decoded too.
func (c *Client) do(ctx context.Context, method, path string, body, target any, accept ...int) (int, error) {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("marshal request: %w", err)
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, rd)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.AdminKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.AdminKey)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	ok := resp.StatusCode == http.StatusOK
	for _, code := range accept {
		ok = ok || resp.StatusCode == code
	}
	if !ok {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return resp.StatusCode, &StatusError{Method: method, Path: path, Code: resp.StatusCode, Body: string(bytes.TrimSpace(b))}
	}
	if target != nil {
		if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
			return resp.StatusCode, fmt.Errorf("decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

func (c *Client) get(ctx context.Context, path string, target any) error {
	_, err := c.do(ctx, http.MethodGet, path, nil, target)
	return err
}

// command posts body and decodes a Receipt. Rejections come back as a
// Receipt with OK false, not as an error.
func (c *Client) command(ctx context.Context, path string, body any) (engine.Receipt, error) {
	var rc engine.Receipt
	_, err := c.do(ctx, http.MethodPost, path, body, &rc, http.StatusConflict)
	return rc, err
}

// ── Queries ───────────────────────────────────────────────────────────

// Status fetches the session overview.
func (c *Client) Status(ctx context.Context) (*Status, error) {
	var st Status
	if err := c.get(ctx, "/api/v1/status", &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// Summary fetches the last tick summary.
func (c *Client) Summary(ctx context.Context) (engine.TickSummary, error) {
	var sum engine.TickSummary
	err := c.get(ctx, "/api/v1/summary", &sum)
	return sum, err
}

// Prices fetches the price table.
func (c *Client) Prices(ctx context.Context) ([]engine.PriceView, error) {
	var out []engine.PriceView
	err := c.get(ctx, "/api/v1/prices", &out)
	return out, err
}

// Entities lists entities, optionally filtered by type.
func (c *Client) Entities(ctx context.Context, typ catalog.BuildingKey) ([]engine.EntityView, error) {
	path := "/api/v1/entities"
	if typ != "" {
		path += "?type=" + url.QueryEscape(string(typ))
	}
	var out []engine.EntityView
	err := c.get(ctx, path, &out)
	return out, err
}

// Entity fetches one entity.
func (c *Client) Entity(ctx context.Context, grid world.HexCoord) (engine.EntityView, error) {
	var out engine.EntityView
	err := c.get(ctx, "/api/v1/entity/"+grid.Key(), &out)
	return out, err
}

// Buildings lists the session catalog.
func (c *Client) Buildings(ctx context.Context) ([]engine.BuildingInfo, error) {
	var out []engine.BuildingInfo
	err := c.get(ctx, "/api/v1/buildings", &out)
	return out, err
}

// Policies lists the policy table.
func (c *Client) Policies(ctx context.Context) ([]engine.PolicyInfo, error) {
	var out []engine.PolicyInfo
	err := c.get(ctx, "/api/v1/policies", &out)
	return out, err
}

// ── Commands ──────────────────────────────────────────────────────────

type gridBody struct {
	Q int `json:"q"`
	R int `json:"r"`
}

func at(g world.HexCoord) gridBody {
	return gridBody{Q: g.Q, R: g.R}
}

// Build places a construction site.
func (c *Client) Build(ctx context.Context, grid world.HexCoord, typ catalog.BuildingKey, allowDefer bool) (engine.Receipt, error) {
	return c.command(ctx, "/api/v1/build", struct {
		gridBody
		Type  catalog.BuildingKey `json:"type"`
		Defer bool                `json:"defer"`
	}{at(grid), typ, allowDefer})
}

// SellBuilding removes a building for a refund.
func (c *Client) SellBuilding(ctx context.Context, grid world.HexCoord) (engine.Receipt, error) {
	return c.command(ctx, "/api/v1/sell-building", at(grid))
}

// Unlock researches a building type.
func (c *Client) Unlock(ctx context.Context, typ catalog.BuildingKey) (engine.Receipt, error) {
	return c.command(ctx, "/api/v1/unlock", map[string]any{"type": typ})
}

// TogglePolicy activates or deactivates a policy.
func (c *Client) TogglePolicy(ctx context.Context, key string, on bool) (engine.Receipt, error) {
	return c.command(ctx, "/api/v1/policy", map[string]any{"key": key, "on": on})
}

// Sell sells qty of res from the depot.
func (c *Client) Sell(ctx context.Context, res catalog.ResourceKey, qty float64) (engine.Receipt, error) {
	return c.command(ctx, "/api/v1/market/sell", map[string]any{"resource": res, "quantity": qty})
}

// Buy buys qty of res into the depot.
func (c *Client) Buy(ctx context.Context, res catalog.ResourceKey, qty float64) (engine.Receipt, error) {
	return c.command(ctx, "/api/v1/market/buy", map[string]any{"resource": res, "quantity": qty})
}

// Batch applies a batch action to the group selected from grid.
func (c *Client) Batch(ctx context.Context, grid world.HexCoord, mode batch.Mode, kind batch.Kind, level int) (batch.Result, error) {
	var res batch.Result
	_, err := c.do(ctx, http.MethodPost, "/api/v1/batch", struct {
		gridBody
		Mode   string `json:"mode"`
		Action string `json:"action"`
		Level  int    `json:"level,omitempty"`
	}{at(grid), mode.String(), kind.String(), level}, &res)
	return res, err
}

// SetSpeed changes the engine speed; 0 pauses.
func (c *Client) SetSpeed(ctx context.Context, speed float64) error {
	_, err := c.do(ctx, http.MethodPost, "/api/v1/speed", map[string]float64{"speed": speed}, nil)
	return err
}

// Snapshot asks the server to save its state now and returns the saved tick.
func (c *Client) Snapshot(ctx context.Context) (uint64, error) {
	var out struct {
		Tick uint64 `json:"tick"`
	}
	_, err := c.do(ctx, http.MethodPost, "/api/v1/snapshot", nil, &out)
	return out.Tick, err
}
