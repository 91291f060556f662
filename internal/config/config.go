// Package config loads the guidance service configuration from an optional
// YAML file and GUIDANCE_ environment variables, layered over built-in
// defaults.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kawanjalan/guidance/internal/lib/catalog"
)

// Config is the complete service configuration.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Directions DirectionsConfig `koanf:"directions"`
	Places     PlacesConfig     `koanf:"places"`
	Hazards    HazardsConfig    `koanf:"hazards"`
	Guidance   GuidanceConfig   `koanf:"guidance"`
	Simulation SimulationConfig `koanf:"simulation"`
	Catalog    []catalog.Template `koanf:"catalog"`
}

// ServerConfig holds the monitor API settings.
type ServerConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`
}

// DirectionsConfig holds the directions backend settings.
type DirectionsConfig struct {
	APIKey   string        `koanf:"api_key"`
	BaseURL  string        `koanf:"base_url"`
	CacheTTL time.Duration `koanf:"cache_ttl"`
}

// PlacesConfig holds the places backend settings.
type PlacesConfig struct {
	APIKey   string        `koanf:"api_key"`
	BaseURL  string        `koanf:"base_url"`
	CacheTTL time.Duration `koanf:"cache_ttl"`
}

// HazardsConfig holds the optional hazard feed settings. An empty URL
// disables the feed.
type HazardsConfig struct {
	FeedURL      string  `koanf:"feed_url"`
	RadiusMeters float64 `koanf:"radius_meters"`
}

// GuidanceConfig holds the presentation timing windows.
type GuidanceConfig struct {
	DedupWindow      time.Duration `koanf:"dedup_window"`
	SpeakDedupWindow time.Duration `koanf:"speak_dedup_window"`
	DismissAfter     time.Duration `koanf:"dismiss_after"`
	TypeInterval     time.Duration `koanf:"type_interval"`
	SpeechLanguage   string        `koanf:"speech_language"`
}

// SimulationConfig controls the autonomous feeds.
type SimulationConfig struct {
	// Modes lists the vehicle modes that run simulated feeds when no real
	// telemetry is configured.
	Modes []string `koanf:"modes"`

	TravelTick time.Duration `koanf:"travel_tick"`
	WalkTick   time.Duration `koanf:"walk_tick"`

	// WalkStepMeters bounds each random-walk perturbation.
	WalkStepMeters float64 `koanf:"walk_step_meters"`

	// WalkFireEvery is the countdown interval (in samples) for advisory
	// firing in random-walk mode.
	WalkFireEvery int `koanf:"walk_fire_every"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Directions: DirectionsConfig{
			CacheTTL: 5 * time.Minute,
		},
		Places: PlacesConfig{
			CacheTTL: 10 * time.Minute,
		},
		Hazards: HazardsConfig{
			RadiusMeters: 500,
		},
		Guidance: GuidanceConfig{
			DedupWindow:      4 * time.Second,
			SpeakDedupWindow: 2 * time.Second,
			DismissAfter:     15 * time.Second,
			TypeInterval:     50 * time.Millisecond,
			SpeechLanguage:   "id-ID",
		},
		Simulation: SimulationConfig{
			Modes:          []string{string(catalog.ModeMotor)},
			TravelTick:     1200 * time.Millisecond,
			WalkTick:       2000 * time.Millisecond,
			WalkStepMeters: 30,
			WalkFireEvery:  5,
		},
	}
}

// Load reads configuration from path (optional; empty skips the file) and
// the environment, over the defaults.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	// GUIDANCE_DIRECTIONS_API_KEY -> directions.api_key. Section names
	// contain no underscores, so only the first one splits.
	if err := k.Load(env.Provider("GUIDANCE_", ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, "GUIDANCE_"))
		return strings.Replace(key, "_", ".", 1)
	}), nil); err != nil {
		return nil, fmt.Errorf("load config env: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SimulatedMode reports whether mode should run autonomous simulated feeds.
func (c *Config) SimulatedMode(mode catalog.VehicleMode) bool {
	for _, m := range c.Simulation.Modes {
		if m == string(mode) {
			return true
		}
	}
	return false
}

// AdvisoryCatalog returns the configured catalog, or the built-in default
// when the config file supplies none.
func (c *Config) AdvisoryCatalog() *catalog.Catalog {
	if len(c.Catalog) == 0 {
		return catalog.Default()
	}
	return catalog.New(c.Catalog)
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	for _, m := range c.Simulation.Modes {
		if _, err := catalog.ParseMode(m); err != nil {
			return fmt.Errorf("simulation.modes: %w", err)
		}
	}
	if c.Simulation.WalkFireEvery < 1 {
		return fmt.Errorf("simulation.walk_fire_every must be >= 1")
	}
	return nil
}
