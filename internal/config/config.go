// Package config provides unified configuration loading for the catalog assistant.
// Supports YAML files, environment variables, and programmatic overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Pablo751/dentcb/internal/domain"
)

// Config holds all configuration for the assistant.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Catalog       CatalogConfig       `yaml:"catalog"`
	Cache         CacheConfig         `yaml:"cache"`
	Oracle        OracleConfig        `yaml:"oracle"`
	Ranking       RankingConfig       `yaml:"ranking"`
	Database      DatabaseConfig      `yaml:"database"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	IdleTimeout      time.Duration `yaml:"idle_timeout"`
	RequestTimeout   time.Duration `yaml:"request_timeout"`
	GracefulShutdown time.Duration `yaml:"graceful_shutdown"`
	SessionIdleTTL   time.Duration `yaml:"session_idle_ttl"`
	CORSOrigins      []string      `yaml:"cors_origins"`
}

// CatalogConfig locates the per-country CSV files.
type CatalogConfig struct {
	Dir   string            `yaml:"dir"`
	Files map[string]string `yaml:"files"` // country name -> file name
	Watch bool              `yaml:"watch"`
}

// CacheConfig holds snapshot cache settings.
type CacheConfig struct {
	Driver     string        `yaml:"driver"` // memory, redis or bolt
	TTL        time.Duration `yaml:"ttl"`
	MaxEntries int           `yaml:"max_entries"`
	Redis      RedisConfig   `yaml:"redis"`
	Bolt       BoltConfig    `yaml:"bolt"`
}

// RedisConfig holds Redis-specific settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
	Prefix   string `yaml:"prefix"`
}

// BoltConfig holds bbolt-specific settings.
type BoltConfig struct {
	Path string `yaml:"path"`
}

// OracleConfig holds text-generation service settings.
type OracleConfig struct {
	APIKey         string        `yaml:"api_key"`
	BaseURL        string        `yaml:"base_url"`
	Model          string        `yaml:"model"`
	Timeout        time.Duration `yaml:"timeout"`
	MaxRetries     int           `yaml:"max_retries"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
}

// RankingConfig holds scoring and selection settings.
type RankingConfig struct {
	FuzzyThreshold     float64 `yaml:"fuzzy_threshold"`
	TopK               int     `yaml:"top_k"`
	ParallelThreshold  int     `yaml:"parallel_threshold"`
	Workers            int     `yaml:"workers"`
	RelatedCount       int     `yaml:"related_count"`
	ValidationAttempts int     `yaml:"validation_attempts"`
	KeywordPrompt      string  `yaml:"keyword_prompt"` // single or list
}

// DatabaseConfig holds the query audit database settings.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // none, sqlite or postgres
	DSN    string `yaml:"dsn"`
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
	ServiceName string `yaml:"service_name"`
}

// Load reads configuration from a YAML file and applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}

		if cfg.Catalog.Dir != "" {
			cfg.Catalog.Dir = ResolveRelativePath(path, cfg.Catalog.Dir)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// DefaultCatalogFiles returns the CSV file name used for each country.
func DefaultCatalogFiles() map[string]string {
	return map[string]string{
		string(domain.CountryFrance):  "Dentaly URLS - Dentaly FR.csv",
		string(domain.CountryUS):      "Dentaly URLS - Dentaly US.csv",
		string(domain.CountryUK):      "Dentaly URLS - Dentaly UK.csv",
		string(domain.CountryGermany): "Dentaly URLS - Dentaly DE.csv",
		string(domain.CountrySpain):   "Dentaly URLS - Dentaly ES.csv",
		string(domain.CountryItaly):   "Dentaly URLS - DD.csv",
	}
}

// DefaultConfig returns a configuration with sensible defaults for development.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             8086,
			ReadTimeout:      30 * time.Second,
			WriteTimeout:     120 * time.Second,
			IdleTimeout:      120 * time.Second,
			RequestTimeout:   90 * time.Second,
			GracefulShutdown: 10 * time.Second,
			SessionIdleTTL:   30 * time.Minute,
			CORSOrigins:      []string{"*"},
		},
		Catalog: CatalogConfig{
			Dir:   ".",
			Files: DefaultCatalogFiles(),
		},
		Cache: CacheConfig{
			Driver:     "memory",
			TTL:        time.Hour,
			MaxEntries: 64,
			Redis: RedisConfig{
				Addr:     "localhost:6379",
				PoolSize: 10,
				Prefix:   "dentcb:",
			},
			Bolt: BoltConfig{
				Path: "/tmp/dentcb-cache.db",
			},
		},
		Oracle: OracleConfig{
			BaseURL:        "https://api.openai.com/v1",
			Model:          "gpt-3.5-turbo",
			Timeout:        60 * time.Second,
			MaxRetries:     3,
			InitialBackoff: time.Second,
			MaxBackoff:     30 * time.Second,
		},
		Ranking: RankingConfig{
			FuzzyThreshold:     0.6,
			TopK:               10,
			ParallelThreshold:  500,
			Workers:            8,
			RelatedCount:       2,
			ValidationAttempts: 2,
			KeywordPrompt:      "single",
		},
		Database: DatabaseConfig{
			Driver: "none",
		},
		Observability: ObservabilityConfig{
			LogLevel:    "info",
			LogFormat:   "console",
			ServiceName: "dentcb",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	switch c.Cache.Driver {
	case "memory", "redis", "bolt":
	default:
		return fmt.Errorf("invalid cache driver: %s", c.Cache.Driver)
	}

	switch c.Database.Driver {
	case "none", "":
	case "sqlite", "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("database dsn is required for driver %s", c.Database.Driver)
		}
	default:
		return fmt.Errorf("invalid database driver: %s", c.Database.Driver)
	}

	for name := range c.Catalog.Files {
		if !isKnownCountry(name) {
			return fmt.Errorf("unknown catalog country: %s", name)
		}
	}

	if c.Ranking.FuzzyThreshold <= 0 || c.Ranking.FuzzyThreshold >= 1 {
		return fmt.Errorf("fuzzy_threshold must be between 0 and 1")
	}

	if c.Ranking.TopK < 1 {
		return fmt.Errorf("top_k must be at least 1")
	}

	if c.Ranking.KeywordPrompt != "single" && c.Ranking.KeywordPrompt != "list" {
		return fmt.Errorf("invalid keyword_prompt: %s", c.Ranking.KeywordPrompt)
	}

	if c.Oracle.MaxRetries < 0 {
		return fmt.Errorf("max_retries must not be negative")
	}

	return nil
}

// CatalogPath returns the CSV path for a country, or "" when none is configured.
func (c *Config) CatalogPath(country domain.Country) string {
	name, ok := c.Catalog.Files[string(country)]
	if !ok || name == "" {
		return ""
	}
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.Catalog.Dir, name)
}

// DatabaseEnabled reports whether query auditing is persisted.
func (c *Config) DatabaseEnabled() bool {
	return c.Database.Driver == "sqlite" || c.Database.Driver == "postgres"
}

// SQLDriverName maps the configured driver to its database/sql name.
func (c *Config) SQLDriverName() string {
	if c.Database.Driver == "sqlite" {
		return "sqlite3"
	}
	return c.Database.Driver
}

func isKnownCountry(name string) bool {
	for _, c := range domain.Countries {
		if string(c) == name {
			return true
		}
	}
	return false
}

// applyEnvOverrides applies environment variable overrides to config.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}

	if v := os.Getenv("SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}

	if v := os.Getenv("CATALOG_DIR"); v != "" {
		cfg.Catalog.Dir = v
	}

	// OPENROUTER_API_KEY wins when both are present, matching the base url override below.
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Oracle.APIKey = v
	}
	if v := os.Getenv("OPENROUTER_API_KEY"); v != "" {
		cfg.Oracle.APIKey = v
		if os.Getenv("LLM_BASE_URL") == "" {
			cfg.Oracle.BaseURL = "https://openrouter.ai/api/v1"
		}
	}

	if v := os.Getenv("LLM_BASE_URL"); v != "" {
		cfg.Oracle.BaseURL = v
	}

	if v := os.Getenv("LLM_MODEL"); v != "" {
		cfg.Oracle.Model = v
	}

	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Cache.Driver = "redis"
		cfg.Cache.Redis.Addr = strings.TrimPrefix(v, "redis://")
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		if strings.HasPrefix(v, "sqlite:") {
			cfg.Database.Driver = "sqlite"
			cfg.Database.DSN = strings.TrimPrefix(v, "sqlite:")
		} else if strings.HasPrefix(v, "postgres") {
			cfg.Database.Driver = "postgres"
			cfg.Database.DSN = v
		}
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Observability.LogFormat = v
	}
}

// ResolveRelativePath resolves a path relative to the config file location.
func ResolveRelativePath(configPath, targetPath string) string {
	if filepath.IsAbs(targetPath) {
		return targetPath
	}
	configDir := filepath.Dir(configPath)
	return filepath.Join(configDir, targetPath)
}
