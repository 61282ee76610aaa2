package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// SetDefaults fills every zero field.
func SetDefaults(cfg *Config) {
	if cfg.Sim.MapRadius == 0 {
		cfg.Sim.MapRadius = 12
	}
	if cfg.Sim.MapProfile == "" {
		cfg.Sim.MapProfile = "standard"
	}
	if cfg.Sim.FramesPerTick == 0 {
		cfg.Sim.FramesPerTick = 10
	}
	if cfg.Sim.FrameInterval == 0 {
		cfg.Sim.FrameInterval = 100 * time.Millisecond
	}
	if cfg.Sim.StartingCash == 0 {
		cfg.Sim.StartingCash = 5000
	}
	if cfg.Sim.StartingFuel == 0 {
		cfg.Sim.StartingFuel = 200
	}
	if cfg.Sim.Speed == 0 {
		cfg.Sim.Speed = 1
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.DSN == "" && cfg.Database.Driver == "sqlite" {
		cfg.Database.DSN = "data/gridworks.db"
	}
	if cfg.Database.AutosaveTicks == 0 {
		cfg.Database.AutosaveTicks = 600
	}

	if cfg.API.Port == 0 {
		cfg.API.Port = 8080
	}
	if cfg.API.RateLimit.RequestsPerSecond == 0 {
		cfg.API.RateLimit.RequestsPerSecond = 20
	}
	if cfg.API.RateLimit.Burst == 0 {
		cfg.API.RateLimit.Burst = 40
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}

	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
}

// ValidateConfig checks the validate tags and reports every failing field.
func ValidateConfig(cfg *Config) error {
	err := validator.New().Struct(cfg)
	if err == nil {
		return nil
	}
	validationErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	messages := make([]string, 0, len(validationErrs))
	for _, e := range validationErrs {
		messages = append(messages, fmt.Sprintf("field '%s' failed validation: %s (value: '%v')",
			e.Namespace(), e.Tag(), e.Value()))
	}
	return fmt.Errorf("validation failed:\n  %s", strings.Join(messages, "\n  "))
}
