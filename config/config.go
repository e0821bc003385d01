// Package config loads the service configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

// Config is the root of config.yaml.
type Config struct {
	HTTP         HTTPConfig         `yaml:"http"`
	Database     DatabaseConfig     `yaml:"database"`
	Log          LogConfig          `yaml:"log"`
	ML           MLConfig           `yaml:"ml"`
	Observations ObservationsConfig `yaml:"observations"`
	Cache        CacheConfig        `yaml:"cache"`
}

type HTTPConfig struct {
	Port           int             `yaml:"port"`
	Timeout        time.Duration   `yaml:"timeout"`
	AllowedOrigins []string        `yaml:"allowed_origins"`
	RateLimit      RateLimitConfig `yaml:"rate_limit"`
	MaxBodyBytes   int64           `yaml:"max_body_bytes"`
}

// RateLimitConfig configures the token bucket; RPS 0 disables limiting.
type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type DatabaseConfig struct {
	Path      string `yaml:"path"`
	EnableWAL bool   `yaml:"enable_wal"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

type MLConfig struct {
	LearningRate float64 `yaml:"learning_rate"`
	MaxEpochs    int     `yaml:"max_epochs"`
	Tolerance    float64 `yaml:"tolerance"`
	L2           float64 `yaml:"l2"`
	// RetrainInterval of 0 disables periodic retraining.
	RetrainInterval time.Duration `yaml:"retrain_interval"`
}

type ObservationsConfig struct {
	SeedFile   string        `yaml:"seed_file"`
	Watch      bool          `yaml:"watch"`
	Debounce   time.Duration `yaml:"debounce"`
	MaxMileage float64       `yaml:"max_mileage"`
}

type CacheConfig struct {
	CarCacheSize int `yaml:"car_cache_size"`
}

// Default returns the configuration used when a key is absent from the file.
func Default() Config {
	return Config{
		HTTP: HTTPConfig{
			Port:           8080,
			Timeout:        30 * time.Second,
			AllowedOrigins: []string{"*"},
			RateLimit:      RateLimitConfig{RPS: 50, Burst: 100},
			MaxBodyBytes:   1 << 20,
		},
		Database: DatabaseConfig{Path: "data/carregistry.db", EnableWAL: true},
		Log:      LogConfig{Level: "info", MaxSizeMB: 100, MaxBackups: 5, MaxAgeDays: 30},
		ML: MLConfig{
			LearningRate: 1.0,
			MaxEpochs:    5000,
			Tolerance:    1e-7,
			L2:           1e-3,
		},
		Observations: ObservationsConfig{
			Debounce:   500 * time.Millisecond,
			MaxMileage: 2000000,
		},
		Cache: CacheConfig{CarCacheSize: 1024},
	}
}

// Load reads path, falling back to ../<path> when run from cmd/. Relative
// database and seed paths are then resolved against the config file's
// directory.
func Load(path string) (*Config, error) {
	resolved := path
	if _, err := os.Stat(resolved); errors.Is(err, os.ErrNotExist) && !filepath.IsAbs(path) {
		resolved = filepath.Join("..", path)
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(resolved)
	cfg.Database.Path = resolvePath(dir, cfg.Database.Path)
	cfg.Observations.SeedFile = resolvePath(dir, cfg.Observations.SeedFile)
	cfg.Log.File = resolvePath(dir, cfg.Log.File)
	return cfg, nil
}

// Parse decodes YAML over Default and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Database.Path = os.ExpandEnv(cfg.Database.Path)
	cfg.Observations.SeedFile = os.ExpandEnv(cfg.Observations.SeedFile)
	cfg.Log.File = os.ExpandEnv(cfg.Log.File)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func resolvePath(dir, p string) string {
	if p == "" || p == ":memory:" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var problems []string
	if c.HTTP.Port < 0 || c.HTTP.Port > 65535 {
		problems = append(problems, fmt.Sprintf("http.port %d out of range", c.HTTP.Port))
	}
	if c.HTTP.Timeout <= 0 {
		problems = append(problems, "http.timeout must be positive")
	}
	if c.HTTP.MaxBodyBytes <= 0 {
		problems = append(problems, "http.max_body_bytes must be positive")
	}
	if c.HTTP.RateLimit.RPS < 0 || (c.HTTP.RateLimit.RPS > 0 && c.HTTP.RateLimit.Burst <= 0) {
		problems = append(problems, "http.rate_limit needs rps >= 0 and a positive burst")
	}
	if c.Database.Path == "" {
		problems = append(problems, "database.path is required")
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		problems = append(problems, fmt.Sprintf("log.level %q is not one of debug|info|warn|error", c.Log.Level))
	}
	if c.ML.LearningRate <= 0 {
		problems = append(problems, "ml.learning_rate must be positive")
	}
	if c.ML.MaxEpochs <= 0 {
		problems = append(problems, "ml.max_epochs must be positive")
	}
	if c.ML.Tolerance < 0 || c.ML.L2 < 0 {
		problems = append(problems, "ml.tolerance and ml.l2 must not be negative")
	}
	if c.ML.RetrainInterval < 0 {
		problems = append(problems, "ml.retrain_interval must not be negative")
	}
	if c.Observations.MaxMileage <= 0 {
		problems = append(problems, "observations.max_mileage must be positive")
	}
	if c.Observations.Watch && c.Observations.SeedFile == "" {
		problems = append(problems, "observations.watch requires observations.seed_file")
	}
	if c.Cache.CarCacheSize <= 0 {
		problems = append(problems, "cache.car_cache_size must be positive")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}
