// Package weather derives daylight and wind for a tick. Conditions are a pure
// function of (seed, tick): no randomness state, no external services, so a
// replayed session sees the same sun and the same wind.
package weather

import (
	"github.com/talgya/gridworks/internal/world"
)

// Conditions holds the environment seen by solar and wind generators.
type Conditions struct {
	Daylight bool    `json:"daylight"`
	Windy    bool    `json:"windy"`
	Wind     float64 `json:"wind"` // 0.0–1.0 strength; zero when not windy
}

// Clock describes the cycle lengths used to derive conditions.
type Clock struct {
	Seed            int64
	DayTicks        int
	WindPeriodTicks int
	WindDutyCycle   float64
}

// At returns the conditions for a tick.
func (c Clock) At(tick uint64) Conditions {
	return Conditions{
		Daylight: c.Daylight(tick),
		Windy:    c.Wind(tick) > 0,
		Wind:     c.Wind(tick),
	}
}

// Daylight is true for the first half of each day. The seed shifts the phase
// so maps don't all share a sunrise.
func (c Clock) Daylight(tick uint64) bool {
	day := uint64(c.DayTicks)
	if day < 2 {
		return true
	}
	offset := uint64(c.Seed) % day
	return (tick+offset)%day < day/2
}

// Wind returns the wind strength for the period containing tick. Strength is
// zero for the (1 - duty cycle) share of calm periods and in [0.5, 1.0)
// otherwise.
func (c Clock) Wind(tick uint64) float64 {
	period := uint64(c.WindPeriodTicks)
	if period == 0 {
		period = 1
	}
	epoch := int(tick / period)
	u := world.Unit(world.Hash64(c.Seed, world.HexCoord{Q: epoch}, "wind"))
	if u >= c.WindDutyCycle {
		return 0
	}
	// Strength comes from a separate hash so gating and strength stay independent.
	s := world.Unit(world.Hash64(c.Seed, world.HexCoord{Q: epoch, R: 1}, "wind-strength"))
	return 0.5 + s*0.5
}
