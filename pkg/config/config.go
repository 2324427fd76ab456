package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Log     LogConfig     `yaml:"log"`
	DB      DBConfig      `yaml:"db"`
	Engine  EngineConfig  `yaml:"engine"`
	Catalog CatalogConfig `yaml:"catalog"`
	Venue   VenueConfig   `yaml:"venue"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Address string `yaml:"address"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Server LogSettings `yaml:"server"`
	Visits LogSettings `yaml:"visits"`
}

// LogSettings holds settings for a specific logger.
type LogSettings struct {
	Path  string `yaml:"path"`
	Level string `yaml:"level"`
}

// DBConfig holds database settings.
type DBConfig struct {
	Path string `yaml:"path"`
}

// EngineConfig holds settings for the narration engine.
type EngineConfig struct {
	MaxTriggerDistance Distance `yaml:"max_trigger_distance"`
	RepeatCooldown     Duration `yaml:"repeat_cooldown"`
	DefaultLanguage    string   `yaml:"default_language"`
	VisitorTTL         Duration `yaml:"visitor_ttl"` // 0 disables idle eviction
}

// CatalogConfig holds settings for the POI catalog.
type CatalogConfig struct {
	SeedFile string `yaml:"seed_file"`
}

// VenueConfig holds settings for the venue boundary.
type VenueConfig struct {
	BoundaryFile string `yaml:"boundary_file"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Address: "localhost:2110",
		},
		Log: LogConfig{
			Server: LogSettings{
				Path:  "./logs/server.log",
				Level: "INFO",
			},
			Visits: LogSettings{
				Path: "./logs/visits.log",
			},
		},
		DB: DBConfig{
			Path: "./data/tourgo.db",
		},
		Engine: EngineConfig{
			MaxTriggerDistance: Distance(10),
			RepeatCooldown:     Duration(30 * time.Minute),
			DefaultLanguage:    "vi",
			VisitorTTL:         0,
		},
		Catalog: CatalogConfig{
			SeedFile: "./configs/catalog.yaml",
		},
		Venue: VenueConfig{
			BoundaryFile: "",
		},
	}
}

// Load loads the configuration from the given path.
// If the file does not exist, it creates it with default values.
// If the file exists, it merges defaults with existing values but does NOT
// save back to disk (to preserve user formatting and comments).
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else {
		if err := Save(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to save config file: %w", err)
		}
	}

	if !isValidLanguage(cfg.Engine.DefaultLanguage) {
		return nil, fmt.Errorf("invalid default_language %q: must be a two-letter ISO 639-1 code (e.g. 'vi', 'en')", cfg.Engine.DefaultLanguage)
	}
	if cfg.Engine.MaxTriggerDistance <= 0 {
		return nil, fmt.Errorf("max_trigger_distance must be positive, got %v", float64(cfg.Engine.MaxTriggerDistance))
	}

	return cfg, nil
}

func isValidLanguage(s string) bool {
	matched, _ := regexp.MatchString(`^[a-z]{2}$`, s)
	return matched
}

// Save writes the configuration to the path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# TourGo Configuration
# -------------------
# Supported units:
#   Duration: ns, us, ms, s, m, h, d (day), w (week)
#   Distance: m (meters), km (kilometers)

`)
	data = append(header, data...)

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GenerateDefault creates a default config file at the given path.
// Returns nil if the file already exists.
func GenerateDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	return Save(path, DefaultConfig())
}
