// Package config loads the YAML configuration shared by the commands.
// Defaults come from struct tags, secrets can be overridden from the
// environment, and the result is validated before use.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"heimdall/internal/logging"
)

// Config is the full process configuration.
type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"oneof=development staging production"`

	Database DatabaseConfig `yaml:"database"`
	Logging  logging.Config `yaml:"logging"`
	HTTP     HTTPConfig     `yaml:"http"`
	Sources  SourcesConfig  `yaml:"sources"`
	Trend    TrendConfig    `yaml:"trend"`
	Schedule ScheduleConfig `yaml:"schedule"`
}

// DatabaseConfig selects the storage backend. The memory backend needs
// no DSN and exists for local runs and tests.
type DatabaseConfig struct {
	DSN       string `yaml:"dsn"`
	UseMemory bool   `yaml:"use_memory"`
}

// HTTPConfig tunes the shared outbound HTTP client.
type HTTPConfig struct {
	Timeout    time.Duration `yaml:"timeout" default:"30s"`
	MaxRetries uint64        `yaml:"max_retries" default:"3" validate:"max=10"`
	UserAgent  string        `yaml:"user_agent" default:"heimdall/1.0"`
}

// SourcesConfig carries per-source endpoints and credentials.
type SourcesConfig struct {
	FRED struct {
		APIKey  string `yaml:"api_key"`
		BaseURL string `yaml:"base_url" default:"https://api.stlouisfed.org/fred"`
	} `yaml:"fred"`
	Yahoo struct {
		// The chart path is part of the base: the adapter appends only
		// the ticker.
		BaseURL string `yaml:"base_url" default:"https://query1.finance.yahoo.com/v8/finance/chart"`
	} `yaml:"yahoo"`
	NewsAPI struct {
		APIKey  string `yaml:"api_key"`
		BaseURL string `yaml:"base_url" default:"https://newsapi.org/v2"`
	} `yaml:"newsapi"`
}

// TrendConfig locates the trend result cache.
type TrendConfig struct {
	CacheDir string `yaml:"cache_dir" default:"data/cache"`
}

// ScheduleConfig carries the cron specs and metrics listener for the
// scheduler command.
type ScheduleConfig struct {
	HourlyIngest    string        `yaml:"hourly_ingest" default:"5 * * * *"`
	DailyIngest     string        `yaml:"daily_ingest" default:"30 21 * * *"`
	MonthlyIngest   string        `yaml:"monthly_ingest" default:"0 6 1 * *"`
	Cleaning        string        `yaml:"cleaning" default:"15 * * * *"`
	Trend           string        `yaml:"trend" default:"45 22 * * *"`
	MetricsAddr     string        `yaml:"metrics_addr" default:":9090"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
}

// Load reads a config file, applies defaults, environment overrides, and
// any caller overrides (command-line flags), then validates the result.
// An empty path yields the default config.
func Load(path string, overrides ...func(*Config)) (*Config, error) {
	var cfg Config
	if err := defaults.Set(&cfg); err != nil {
		return nil, fmt.Errorf("apply config defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(&cfg)
	for _, override := range overrides {
		override(&cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

// applyEnv overrides secrets and the DSN from the environment so they
// stay out of config files.
func applyEnv(cfg *Config) {
	if v := os.Getenv("HEIMDALL_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("FRED_API_KEY"); v != "" {
		cfg.Sources.FRED.APIKey = v
	}
	if v := os.Getenv("NEWSAPI_API_KEY"); v != "" {
		cfg.Sources.NewsAPI.APIKey = v
	}
}

// Validate checks tag rules plus the cross-field constraints tags
// cannot express.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	if !c.Database.UseMemory && c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required unless database.use_memory is set")
	}
	return nil
}
