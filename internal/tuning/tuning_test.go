package tuning

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoad_OverridesOnlyPresentKeys(t *testing.T) {
	// Arrange
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	require.NoError(t, os.WriteFile(path, []byte("adjacency_bonus: 0.2\nreprice_ticks: 60\n"), 0o644))

	// Act
	got, err := Load(path)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 0.2, got.AdjacencyBonus)
	assert.Equal(t, 60, got.RepriceTicks)
	assert.Equal(t, Default().ProductionScaler, got.ProductionScaler)
}

func TestLoad_RejectsBrokenBounds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	require.NoError(t, os.WriteFile(path, []byte("price_floor_ratio: 1.5\n"), 0o644))

	_, err := Load(path)

	assert.ErrorIs(t, err, ErrInvalidTuning)
}
