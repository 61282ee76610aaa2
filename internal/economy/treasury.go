package economy

import (
	"errors"
	"fmt"
)

// ErrInsufficientFunds is returned when cash cannot cover a payment.
var ErrInsufficientFunds = errors.New("insufficient funds")

// Treasury is the session's cash and its cumulative spend counters.
type Treasury struct {
	Cash float64 `json:"cash"`
	// TotalSpent counts building, upgrade, and unlock spend. Refunds are
	// capped so they never exceed it.
	TotalSpent    float64 `json:"total_spent"`
	TotalRefunded float64 `json:"total_refunded"`
	TotalEarned   float64 `json:"total_earned"`
	TotalPurchase float64 `json:"total_purchase"`
}

// NewTreasury starts with cash on hand.
func NewTreasury(cash float64) *Treasury {
	return &Treasury{Cash: cash}
}

// CanAfford reports whether amount can be paid now.
func (t *Treasury) CanAfford(amount float64) bool {
	return amount <= t.Cash+1e-9
}

// Spend pays an investment and records it toward the refund cap.
func (t *Treasury) Spend(amount float64) error {
	if amount < 0 {
		return fmt.Errorf("spend %v: negative amount", amount)
	}
	if !t.CanAfford(amount) {
		return fmt.Errorf("spend %.2f with %.2f: %w", amount, t.Cash, ErrInsufficientFunds)
	}
	t.Cash -= amount
	t.TotalSpent += amount
	return nil
}

// Purchase pays for market goods. It does not count toward the refund cap.
func (t *Treasury) Purchase(amount float64) error {
	if !t.CanAfford(amount) {
		return fmt.Errorf("purchase %.2f with %.2f: %w", amount, t.Cash, ErrInsufficientFunds)
	}
	t.Cash -= amount
	t.TotalPurchase += amount
	return nil
}

// Earn credits trade revenue.
func (t *Treasury) Earn(amount float64) {
	if amount <= 0 {
		return
	}
	t.Cash += amount
	t.TotalEarned += amount
}

// RefundRoom is how much may still be refunded.
func (t *Treasury) RefundRoom() float64 {
	return max(t.TotalSpent-t.TotalRefunded, 0)
}

// Refund credits up to amount, capped by RefundRoom, and returns what was paid.
func (t *Treasury) Refund(amount float64) float64 {
	if amount <= 0 {
		return 0
	}
	paid := min(amount, t.RefundRoom())
	t.Cash += paid
	t.TotalRefunded += paid
	return paid
}
