// Package tuning holds the numeric knobs of the production and market simulation.
// Defaults are compiled in; a YAML file may override any subset of them.
package tuning

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Tuning is the full set of simulation constants for one session.
type Tuning struct {
	// Production formula stack.
	ProductionScaler  float64 `yaml:"production_scaler" json:"production_scaler"`     // fixed scaler inside productionMultiplier
	AdjacencyBonus    float64 `yaml:"adjacency_bonus" json:"adjacency_bonus"`         // per qualifying neighbor
	TileModifierRange float64 `yaml:"tile_modifier_range" json:"tile_modifier_range"` // tile modifier lies in [-range, +range]
	TileModifierStep  float64 `yaml:"tile_modifier_step" json:"tile_modifier_step"`   // rounding step
	LevelStep         int     `yaml:"level_step" json:"level_step"`                   // every N levels the upgrade multiplier grows

	// Time.
	TickSeconds      float64 `yaml:"tick_seconds" json:"tick_seconds"` // game seconds per tick
	DayTicks         int     `yaml:"day_ticks" json:"day_ticks"`       // solar cycle length
	WindPeriodTicks  int     `yaml:"wind_period_ticks" json:"wind_period_ticks"`
	WindDutyCycle    float64 `yaml:"wind_duty_cycle" json:"wind_duty_cycle"` // fraction of wind periods that blow
	TransitSeconds   float64 `yaml:"transit_seconds" json:"transit_seconds"` // game seconds per unit of grid distance
	RepriceTicks     int     `yaml:"reprice_ticks" json:"reprice_ticks"`
	TicksPerDay      int     `yaml:"ticks_per_day" json:"ticks_per_day"` // daily report cadence
	RateSmoothing    float64 `yaml:"rate_smoothing" json:"rate_smoothing"`
	PowerUnitPrice   float64 `yaml:"power_unit_price" json:"power_unit_price"`
	FramesPerTick    int     `yaml:"frames_per_tick" json:"frames_per_tick"`
	ConstructionTick int     `yaml:"construction_ticks" json:"construction_ticks"` // build duration
	BuildSlots       int     `yaml:"build_slots" json:"build_slots"`               // concurrent constructions

	// Buffers, expressed in ticks of nominal throughput.
	AutoBufferTicks      float64 `yaml:"auto_buffer_ticks" json:"auto_buffer_ticks"`
	StockpileBufferTicks float64 `yaml:"stockpile_buffer_ticks" json:"stockpile_buffer_ticks"`
	OutputBufferTicks    float64 `yaml:"output_buffer_ticks" json:"output_buffer_ticks"`

	// Market.
	PriceFloorRatio float64 `yaml:"price_floor_ratio" json:"price_floor_ratio"`
	PriceExponent   float64 `yaml:"price_exponent" json:"price_exponent"`
	CliffExponent   float64 `yaml:"cliff_exponent" json:"cliff_exponent"`
	TradeBatches    int     `yaml:"trade_batches" json:"trade_batches"`
	RawPriceBase    float64 `yaml:"raw_price_base" json:"raw_price_base"`
	NewsChance      float64 `yaml:"news_chance" json:"news_chance"`
	NewsMaxEffect   float64 `yaml:"news_max_effect" json:"news_max_effect"`

	// Costs.
	LevelCostGrowth float64 `yaml:"level_cost_growth" json:"level_cost_growth"`
	RefundRate      float64 `yaml:"refund_rate" json:"refund_rate"`
	ResidualShare   float64 `yaml:"residual_share" json:"residual_share"` // share of stored goods routed to the depot on sell
}

// Default returns the compiled-in tuning.
func Default() Tuning {
	return Tuning{
		ProductionScaler:  10,
		AdjacencyBonus:    0.1,
		TileModifierRange: 0.25,
		TileModifierStep:  0.05,
		LevelStep:         10,

		TickSeconds:      1,
		DayTicks:         600,
		WindPeriodTicks:  30,
		WindDutyCycle:    0.6,
		TransitSeconds:   2,
		RepriceTicks:     300,
		TicksPerDay:      1440,
		RateSmoothing:    0.1,
		PowerUnitPrice:   0.05,
		FramesPerTick:    10,
		ConstructionTick: 10,
		BuildSlots:       3,

		AutoBufferTicks:      5,
		StockpileBufferTicks: 50,
		OutputBufferTicks:    100,

		PriceFloorRatio: 0.1,
		PriceExponent:   0.8,
		CliffExponent:   0.5,
		TradeBatches:    100,
		RawPriceBase:    2,
		NewsChance:      0.25,
		NewsMaxEffect:   0.3,

		LevelCostGrowth: 1.15,
		RefundRate:      0.5,
		ResidualShare:   0.5,
	}
}

// ErrInvalidTuning is returned when a loaded tuning breaks a basic bound.
var ErrInvalidTuning = errors.New("invalid tuning")

// Load reads a YAML file over the defaults. Keys absent from the file keep
// their default value.
func Load(path string) (Tuning, error) {
	t := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning %s: %w", path, err)
	}
	if err := t.Validate(); err != nil {
		return t, err
	}
	return t, nil
}

// Validate checks the bounds the simulation relies on.
func (t Tuning) Validate() error {
	switch {
	case t.ProductionScaler <= 0:
		return fmt.Errorf("%w: production_scaler must be positive", ErrInvalidTuning)
	case t.TickSeconds <= 0:
		return fmt.Errorf("%w: tick_seconds must be positive", ErrInvalidTuning)
	case t.DayTicks <= 1 || t.WindPeriodTicks <= 0:
		return fmt.Errorf("%w: day_ticks and wind_period_ticks must be positive", ErrInvalidTuning)
	case t.RepriceTicks <= 0:
		return fmt.Errorf("%w: reprice_ticks must be positive", ErrInvalidTuning)
	case t.PriceFloorRatio <= 0 || t.PriceFloorRatio >= 1:
		return fmt.Errorf("%w: price_floor_ratio must be in (0,1)", ErrInvalidTuning)
	case t.TradeBatches <= 0:
		return fmt.Errorf("%w: trade_batches must be positive", ErrInvalidTuning)
	case t.RefundRate < 0 || t.RefundRate >= 1:
		return fmt.Errorf("%w: refund_rate must be in [0,1)", ErrInvalidTuning)
	case t.FramesPerTick <= 0:
		return fmt.Errorf("%w: frames_per_tick must be positive", ErrInvalidTuning)
	case t.LevelStep <= 0:
		return fmt.Errorf("%w: level_step must be positive", ErrInvalidTuning)
	}
	return nil
}
