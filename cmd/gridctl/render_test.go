package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/gridworks/internal/catalog"
	"github.com/talgya/gridworks/internal/engine"
)

func TestAmounts_SortedAndFormatted(t *testing.T) {
	got := amounts(catalog.Amounts{catalog.Iron: 1500, catalog.Coal: 2.5})
	assert.Equal(t, "2.5 Coal, 1,500 Iron", got)
	assert.Equal(t, "-", amounts(nil))
}

func TestPrintReceipt(t *testing.T) {
	t.Run("accepted", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, printReceipt(&buf, "build Farm at 0,0", engine.Receipt{OK: true, Cost: 10}))
		assert.Contains(t, buf.String(), "build Farm at 0,0")
		assert.Contains(t, buf.String(), "$10")
	})
	t.Run("rejected", func(t *testing.T) {
		var buf bytes.Buffer
		err := printReceipt(&buf, "unlock SolarPanel", engine.Receipt{Reason: "insufficient funds"})
		assert.ErrorContains(t, err, "insufficient funds")
		assert.Empty(t, buf.String())
	})
}

func TestPrintPrices_RendersRows(t *testing.T) {
	var buf bytes.Buffer
	printPrices(&buf, []engine.PriceView{{Resource: catalog.Coal, Price: 2, BasePrice: 2, AutoSell: true}})
	assert.Contains(t, buf.String(), "Coal")
	assert.Contains(t, buf.String(), "yes")
}
