// Package config loads server configuration from gridworks.yaml, GW_*
// environment variables and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config combines all sections.
type Config struct {
	Sim      SimConfig      `mapstructure:"sim"`
	Database DatabaseConfig `mapstructure:"database"`
	API      APIConfig      `mapstructure:"api"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// SimConfig controls the session and the frame loop.
type SimConfig struct {
	Seed          int64         `mapstructure:"seed"`
	MapRadius     int           `mapstructure:"map_radius" validate:"min=1,max=200"`
	MapProfile    string        `mapstructure:"map_profile" validate:"required"`
	FramesPerTick int           `mapstructure:"frames_per_tick" validate:"min=1"`
	FrameInterval time.Duration `mapstructure:"frame_interval" validate:"gt=0"`
	Permits       int           `mapstructure:"permits" validate:"min=0"`
	StartingCash  float64       `mapstructure:"starting_cash" validate:"gte=0"`
	StartingFuel  float64       `mapstructure:"starting_fuel" validate:"gte=0"`
	// TuningFile and CatalogOverrides are optional YAML files.
	TuningFile       string   `mapstructure:"tuning_file"`
	CatalogOverrides string   `mapstructure:"catalog_overrides"`
	Policies         []string `mapstructure:"policies"`
	Speed            float64  `mapstructure:"speed" validate:"gte=0"`
}

// DatabaseConfig selects the persistence backend.
type DatabaseConfig struct {
	Driver        string `mapstructure:"driver" validate:"required,oneof=sqlite pgx"`
	DSN           string `mapstructure:"dsn" validate:"required"`
	AutosaveTicks int    `mapstructure:"autosave_ticks" validate:"min=0"`
	SnapshotDir   string `mapstructure:"snapshot_dir"`
}

// APIConfig holds HTTP server settings.
type APIConfig struct {
	Port        int             `mapstructure:"port" validate:"min=1,max=65535"`
	AdminKey    string          `mapstructure:"admin_key"` // empty disables POST endpoints
	RateLimit   RateLimitConfig `mapstructure:"rate_limit"`
	CORSOrigins []string        `mapstructure:"cors_origins"`
}

// RateLimitConfig is a per-IP token bucket.
type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second" validate:"gt=0"`
	Burst             int     `mapstructure:"burst" validate:"min=1"`
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"required,oneof=json text"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path" validate:"omitempty,startswith=/"`
}

// LoadConfig reads configuration with priority env > file > defaults. A
// missing config file is not an error.
func LoadConfig(configPath string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("gridworks")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}

	v.SetEnvPrefix("GW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnv(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		cfg.Database.Driver = "pgx"
		cfg.Database.DSN = dbURL
	}

	SetDefaults(&cfg)
	if err := ValidateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// bindEnv registers every key so AutomaticEnv sees variables for keys absent
// from the file.
func bindEnv(v *viper.Viper) {
	for _, key := range []string{
		"sim.seed", "sim.map_radius", "sim.map_profile", "sim.frames_per_tick",
		"sim.frame_interval", "sim.permits", "sim.starting_cash", "sim.starting_fuel",
		"sim.tuning_file", "sim.catalog_overrides", "sim.policies", "sim.speed",
		"database.driver", "database.dsn", "database.autosave_ticks", "database.snapshot_dir",
		"api.port", "api.admin_key", "api.rate_limit.requests_per_second", "api.rate_limit.burst",
		"api.cors_origins",
		"logging.level", "logging.format",
		"metrics.enabled", "metrics.path",
	} {
		_ = v.BindEnv(key)
	}
}

// Logger builds the slog logger described by the logging section.
func (c LoggingConfig) Logger() *slog.Logger {
	var level slog.Level
	switch c.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
