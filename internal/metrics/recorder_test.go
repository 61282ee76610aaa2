package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/gridworks/internal/catalog"
	"github.com/talgya/gridworks/internal/engine"
	"github.com/talgya/gridworks/internal/power"
	"github.com/talgya/gridworks/internal/transport"
)

func TestRecorder_ObserveTick(t *testing.T) {
	// Arrange
	r, err := NewRecorder()
	require.NoError(t, err)
	sum := engine.TickSummary{
		Tick:      3,
		Entities:  4,
		Statuses:  map[string]int{"working": 3, "idle": 1},
		Power:     power.Balance{Supply: 150, Usage: 90},
		Cash:      1200,
		Transport: transport.Stats{Transfers: 2, Moved: 20, Fuel: 1.5},
		Produced:  catalog.Amounts{catalog.Coal: 10, catalog.Iron: 0},
	}

	// Act
	r.ObserveTick(sum)
	r.ObserveTick(sum)

	// Assert
	assert.InDelta(t, 2, testutil.ToFloat64(r.ticksTotal), 1e-9)
	assert.InDelta(t, 4, testutil.ToFloat64(r.entities), 1e-9)
	assert.InDelta(t, 3, testutil.ToFloat64(r.entityStatus.WithLabelValues("working")), 1e-9)
	assert.InDelta(t, 150, testutil.ToFloat64(r.powerSupply), 1e-9)
	assert.InDelta(t, 4, testutil.ToFloat64(r.transfersTotal), 1e-9)
	assert.InDelta(t, 20, testutil.ToFloat64(r.producedTotal.WithLabelValues("Coal")), 1e-9)
	assert.Equal(t, 1, testutil.CollectAndCount(r.producedTotal))
}

func TestRecorder_InvariantsAndPrices(t *testing.T) {
	// Arrange
	r, err := NewRecorder()
	require.NoError(t, err)

	// Act
	r.ObserveInvariant("power")
	r.ObserveInvariant("storage")
	r.ObserveInvariant("power")
	r.ObservePrices(map[catalog.ResourceKey]float64{catalog.Coal: 2.5})

	// Assert
	assert.InDelta(t, 2, testutil.ToFloat64(r.invariantsTotal.WithLabelValues("power")), 1e-9)
	assert.InDelta(t, 2.5, testutil.ToFloat64(r.price.WithLabelValues("Coal")), 1e-9)
}

func TestRecorder_Handler(t *testing.T) {
	// Arrange
	r, err := NewRecorder()
	require.NoError(t, err)
	r.ObserveInvariant("power")
	rec := httptest.NewRecorder()

	// Act
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	// Assert
	assert.Equal(t, 200, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "gridworks_invariant_violations_total"))
}
