package economy

import (
	"errors"
	"fmt"
	"math"

	"github.com/talgya/gridworks/internal/catalog"
)

// ErrStockpileShort is returned when a withdrawal exceeds holdings.
var ErrStockpileShort = errors.New("stockpile short")

// Stockpile is the central holding: it takes output overflow, sale residuals
// and market purchases, and pays transport fuel.
type Stockpile struct {
	Holdings catalog.Amounts `json:"holdings"`
}

// NewStockpile returns an empty stockpile.
func NewStockpile() *Stockpile {
	return &Stockpile{Holdings: make(catalog.Amounts)}
}

// Amount returns the held quantity of res.
func (s *Stockpile) Amount(res catalog.ResourceKey) float64 {
	return s.Holdings[res]
}

// Deposit adds amount of res. Invalid amounts are ignored.
func (s *Stockpile) Deposit(res catalog.ResourceKey, amount float64) {
	if amount <= 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return
	}
	if s.Holdings == nil {
		s.Holdings = make(catalog.Amounts)
	}
	s.Holdings[res] += amount
}

// Withdraw removes amount of res or fails without effect.
func (s *Stockpile) Withdraw(res catalog.ResourceKey, amount float64) error {
	if amount < 0 || math.IsNaN(amount) {
		return fmt.Errorf("withdraw %v %s: invalid amount", amount, res)
	}
	have := s.Holdings[res]
	if have+1e-9 < amount {
		return fmt.Errorf("withdraw %v %s holding %v: %w", amount, res, have, ErrStockpileShort)
	}
	if have-amount < 1e-9 {
		delete(s.Holdings, res)
		return nil
	}
	s.Holdings[res] = have - amount
	return nil
}

// SellAll sells the entire holding of each resource in keys and returns the
// revenue. Resources without a price stay in the stockpile.
func (s *Stockpile) SellAll(m *Market, keys []catalog.ResourceKey) float64 {
	total := 0.0
	for _, k := range keys {
		qty := s.Holdings[k]
		if qty <= 0 {
			continue
		}
		revenue, err := m.Sell(k, qty)
		if err != nil {
			continue
		}
		delete(s.Holdings, k)
		total += revenue
	}
	return total
}
