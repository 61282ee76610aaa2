package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/gridworks/internal/api"
	"github.com/talgya/gridworks/internal/batch"
	"github.com/talgya/gridworks/internal/catalog"
	"github.com/talgya/gridworks/internal/engine"
	"github.com/talgya/gridworks/internal/tuning"
	"github.com/talgya/gridworks/internal/world"
)

func newAPI(t *testing.T, adminKey string) *Client {
	t.Helper()
	m := world.NewMap(3, 1)
	for _, c := range (world.HexCoord{}).Neighbors() {
		m.Set(&world.Tile{Coord: c, Terrain: world.TerrainPlains})
	}
	m.Set(&world.Tile{Coord: world.HexCoord{}, Terrain: world.TerrainPlains})
	tu := tuning.Default()
	tu.NewsChance = 0
	sim := engine.NewSimulation(engine.Options{Seed: 1, StartingCash: 500, Tuning: tu, Map: m})
	srv := &api.Server{Eng: engine.NewEngine(sim), AdminKey: adminKey}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return New(ts.URL, adminKey)
}

func TestClient_StatusAndBuild(t *testing.T) {
	// Arrange
	c := newAPI(t, "k")
	ctx := context.Background()

	// Act
	rc, err := c.Build(ctx, world.HexCoord{}, catalog.Farm, false)
	require.NoError(t, err)
	dup, dupErr := c.Build(ctx, world.HexCoord{}, catalog.Farm, false)
	st, stErr := c.Status(ctx)

	// Assert
	assert.True(t, rc.OK)
	require.NoError(t, dupErr)
	assert.False(t, dup.OK)
	assert.NotEmpty(t, dup.Reason)
	require.NoError(t, stErr)
	assert.Equal(t, 1, st.Entities)
	assert.InDelta(t, 500-rc.Cost, st.Cash, 1e-9)
}

func TestClient_EntityAndLists(t *testing.T) {
	// Arrange
	c := newAPI(t, "k")
	ctx := context.Background()
	_, err := c.Build(ctx, world.HexCoord{Q: 1}, catalog.Farm, false)
	require.NoError(t, err)

	// Act
	e, err := c.Entity(ctx, world.HexCoord{Q: 1})
	farms, listErr := c.Entities(ctx, catalog.Farm)
	buildings, bErr := c.Buildings(ctx)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, catalog.Farm, e.Type)
	require.NoError(t, listErr)
	assert.Len(t, farms, 1)
	require.NoError(t, bErr)
	assert.NotEmpty(t, buildings)
}

func TestClient_BatchSell(t *testing.T) {
	// Arrange
	c := newAPI(t, "k")
	ctx := context.Background()
	for _, g := range []world.HexCoord{{}, {Q: 1}} {
		_, err := c.Build(ctx, g, catalog.Farm, false)
		require.NoError(t, err)
	}

	// Act
	res, err := c.Batch(ctx, world.HexCoord{}, batch.ModeAll, batch.Sell, 0)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 2, res.Selected)
}

func TestClient_StatusErrors(t *testing.T) {
	// Arrange
	c := newAPI(t, "")
	ctx := context.Background()

	// Act
	_, buildErr := c.Build(ctx, world.HexCoord{}, catalog.Farm, false)
	_, entityErr := c.Entity(ctx, world.HexCoord{Q: 2})

	// Assert
	var se *StatusError
	require.True(t, errors.As(buildErr, &se))
	assert.Equal(t, http.StatusForbidden, se.Code)
	require.True(t, errors.As(entityErr, &se))
	assert.Equal(t, http.StatusNotFound, se.Code)
}
