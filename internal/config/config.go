// Package config provides unified configuration loading for the recommendation engine.
// Supports YAML files, .env files, environment variables, and programmatic overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the engine and its surfaces.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Storage       StorageConfig       `yaml:"storage"`
	Cache         CacheConfig         `yaml:"cache"`
	LLM           LLMConfig           `yaml:"llm"`
	Places        PlacesConfig        `yaml:"places"`
	Search        SearchConfig        `yaml:"search"`
	Synthesis     SynthesisConfig     `yaml:"synthesis"`
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
	AllowedOrigins   []string      `yaml:"allowed_origins"`
}

// StorageConfig selects the restaurant repository backend.
type StorageConfig struct {
	Driver   string         `yaml:"driver"` // memory, sqlite or postgres
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// SQLiteConfig holds SQLite-specific settings.
type SQLiteConfig struct {
	Path         string `yaml:"path"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

// PostgresConfig holds Postgres-specific settings.
type PostgresConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// CacheConfig holds result cache settings.
type CacheConfig struct {
	Driver        string        `yaml:"driver"` // memory or redis
	Enabled       bool          `yaml:"enabled"`
	TTL           time.Duration `yaml:"ttl"`
	MaxEntries    int           `yaml:"max_entries"`
	PurgeInterval time.Duration `yaml:"purge_interval"`
	Redis         RedisConfig   `yaml:"redis"`
}

// RedisConfig holds Redis-specific settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
	Prefix   string `yaml:"prefix"`
}

// LLMConfig configures the text-completion collaborator.
type LLMConfig struct {
	Provider          string        `yaml:"provider"` // openrouter, openai, gemini or none
	BaseURL           string        `yaml:"base_url"`
	APIKey            string        `yaml:"api_key"`
	Model             string        `yaml:"model"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Burst             int           `yaml:"burst"`
	MaxRetries        int           `yaml:"max_retries"`
	Referer           string        `yaml:"referer"`
	Title             string        `yaml:"title"`
}

// PlacesConfig configures the places lookup collaborator.
type PlacesConfig struct {
	Enabled bool          `yaml:"enabled"`
	BaseURL string        `yaml:"base_url"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout"`
}

// SearchConfig holds search service settings.
type SearchConfig struct {
	HistoryLimit   int  `yaml:"history_limit"`
	SeedSampleData bool `yaml:"seed_sample_data"`
}

// SynthesisConfig holds synthetic fallback settings.
type SynthesisConfig struct {
	Enabled bool  `yaml:"enabled"`
	Seed    int64 `yaml:"seed"` // 0 seeds from the clock
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
	ServiceName string `yaml:"service_name"`
}

// Load reads configuration from a YAML file and applies environment overrides.
// A .env file in the working directory, when present, is loaded first.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}

		if cfg.Storage.Driver == "sqlite" {
			cfg.Storage.SQLite.Path = ResolveRelativePath(path, cfg.Storage.SQLite.Path)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a configuration with sensible defaults for development.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             5000,
			ReadTimeout:      30 * time.Second,
			WriteTimeout:     30 * time.Second,
			IdleTimeout:      120 * time.Second,
			RequestTimeout:   60 * time.Second,
			GracefulShutdown: 10 * time.Second,
			AllowedOrigins:   []string{"*"},
		},
		Storage: StorageConfig{
			Driver: "memory",
			SQLite: SQLiteConfig{
				Path:         "/tmp/recos.db",
				MaxOpenConns: 1,
			},
			Postgres: PostgresConfig{
				MaxOpenConns:    25,
				MaxIdleConns:    5,
				ConnMaxLifetime: 5 * time.Minute,
			},
		},
		Cache: CacheConfig{
			Driver:        "memory",
			Enabled:       true,
			TTL:           time.Hour,
			MaxEntries:    10000,
			PurgeInterval: 10 * time.Minute,
			Redis: RedisConfig{
				Addr:     "localhost:6379",
				DB:       0,
				PoolSize: 10,
				Prefix:   "recos:",
			},
		},
		LLM: LLMConfig{
			Provider:          "openrouter",
			BaseURL:           "https://openrouter.ai/api/v1",
			Model:             "openai/gpt-3.5-turbo",
			Timeout:           30 * time.Second,
			RequestsPerSecond: 2,
			Burst:             4,
			MaxRetries:        3,
			Referer:           "https://localrecos.app",
			Title:             "Local Recos",
		},
		Places: PlacesConfig{
			Enabled: false,
			BaseURL: "https://places.googleapis.com/v1",
			Timeout: 10 * time.Second,
		},
		Search: SearchConfig{
			HistoryLimit:   10,
			SeedSampleData: true,
		},
		Synthesis: SynthesisConfig{
			Enabled: true,
		},
		Observability: ObservabilityConfig{
			LogLevel:    "info",
			LogFormat:   "json",
			ServiceName: "recos-engine",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	switch c.Storage.Driver {
	case "memory", "sqlite":
	case "postgres":
		if c.Storage.Postgres.DSN == "" {
			return fmt.Errorf("postgres storage requires a dsn")
		}
	default:
		return fmt.Errorf("invalid storage driver: %s", c.Storage.Driver)
	}

	if c.Cache.Driver != "memory" && c.Cache.Driver != "redis" {
		return fmt.Errorf("invalid cache driver: %s", c.Cache.Driver)
	}

	if c.Cache.Enabled && c.Cache.TTL <= 0 {
		return fmt.Errorf("cache ttl must be positive")
	}

	switch c.LLM.Provider {
	case "openrouter", "openai", "gemini", "none":
	default:
		return fmt.Errorf("invalid llm provider: %s", c.LLM.Provider)
	}

	if c.LLM.RequestsPerSecond < 0 {
		return fmt.Errorf("llm requests_per_second must not be negative")
	}

	if c.Places.Enabled && c.Places.APIKey == "" {
		return fmt.Errorf("places lookup enabled without an api key")
	}

	if c.Search.HistoryLimit < 1 {
		return fmt.Errorf("history_limit must be at least 1")
	}

	return nil
}

// LLMEnabled reports whether a text-completion backend can be constructed.
func (c *Config) LLMEnabled() bool {
	return c.LLM.Provider != "none" && c.LLM.APIKey != ""
}

// StorageDSN returns the connection string for the configured SQL driver.
func (c *Config) StorageDSN() string {
	if c.Storage.Driver == "sqlite" {
		return c.Storage.SQLite.Path
	}
	return c.Storage.Postgres.DSN
}

// applyEnvOverrides applies environment variable overrides to config.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}

	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}

	if v := os.Getenv("SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		if strings.HasPrefix(v, "sqlite:") {
			cfg.Storage.Driver = "sqlite"
			cfg.Storage.SQLite.Path = strings.TrimPrefix(v, "sqlite:")
		} else if strings.HasPrefix(v, "postgres") {
			cfg.Storage.Driver = "postgres"
			cfg.Storage.Postgres.DSN = v
		}
	}

	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Cache.Driver = "redis"
		if opts, err := redis.ParseURL(v); err == nil {
			cfg.Cache.Redis.Addr = opts.Addr
			cfg.Cache.Redis.Username = opts.Username
			cfg.Cache.Redis.Password = opts.Password
			cfg.Cache.Redis.DB = opts.DB
		} else {
			// A bare host:port is accepted as an address.
			cfg.Cache.Redis.Addr = strings.TrimPrefix(v, "redis://")
		}
	}

	if v := os.Getenv("LLM_PROVIDER"); v != "" {
		cfg.LLM.Provider = v
	}

	if v := os.Getenv("LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}

	// Provider-specific keys win only for their provider.
	switch cfg.LLM.Provider {
	case "openrouter":
		if v := os.Getenv("OPENROUTER_API_KEY"); v != "" {
			cfg.LLM.APIKey = v
		}
	case "openai":
		if v := os.Getenv("OPENAI_API_KEY"); v != "" {
			cfg.LLM.APIKey = v
		}
		if cfg.LLM.BaseURL == DefaultConfig().LLM.BaseURL {
			cfg.LLM.BaseURL = ""
		}
	case "gemini":
		if v := os.Getenv("GEMINI_API_KEY"); v != "" {
			cfg.LLM.APIKey = v
		}
	}

	if v := os.Getenv("PLACES_API_KEY"); v != "" {
		cfg.Places.APIKey = v
		cfg.Places.Enabled = true
	}

	if v := os.Getenv("SEARCH_SEED_SAMPLE_DATA"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Search.SeedSampleData = b
		}
	}

	if v := os.Getenv("SYNTHESIS_SEED"); v != "" {
		if seed, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Synthesis.Seed = seed
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
	if targetPath == "" || targetPath == ":memory:" || filepath.IsAbs(targetPath) {
		return targetPath
	}
	return filepath.Join(filepath.Dir(configPath), targetPath)
}
