// Package config loads service configuration from YAML with environment
// overrides for the values that differ per deployment (API keys, addresses,
// secrets).
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete service configuration.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Polygon     PolygonConfig     `yaml:"polygon"`
	Cache       CacheConfig       `yaml:"cache"`
	Scan        ScanConfig        `yaml:"scan"`
	Scheduler   SchedulerConfig   `yaml:"scheduler"`
	Persistence PersistenceConfig `yaml:"persistence"`
	Universe    UniverseConfig    `yaml:"universe"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host             string `yaml:"host"`
	Port             int    `yaml:"port"`
	ReadTimeoutSecs  int    `yaml:"read_timeout_secs"`
	WriteTimeoutSecs int    `yaml:"write_timeout_secs"` // must cover an inline batch scan
	IdleTimeoutSecs  int    `yaml:"idle_timeout_secs"`
	CronSecret       string `yaml:"cron_secret"` // overridden by CRON_SECRET
}

// ReadTimeout returns the read timeout as a time.Duration.
func (s ServerConfig) ReadTimeout() time.Duration {
	return time.Duration(s.ReadTimeoutSecs) * time.Second
}

// WriteTimeout returns the write timeout as a time.Duration.
func (s ServerConfig) WriteTimeout() time.Duration {
	return time.Duration(s.WriteTimeoutSecs) * time.Second
}

// IdleTimeout returns the idle timeout as a time.Duration.
func (s ServerConfig) IdleTimeout() time.Duration {
	return time.Duration(s.IdleTimeoutSecs) * time.Second
}

// PolygonConfig configures the market data provider.
type PolygonConfig struct {
	APIKey         string `yaml:"api_key"` // overridden by POLYGON_API_KEY
	BaseURL        string `yaml:"base_url"`
	RequestsPerMin int    `yaml:"requests_per_min"`
	Burst          int    `yaml:"burst"`
	TimeoutSecs    int    `yaml:"timeout_secs"`
	MaxChainPages  int    `yaml:"max_chain_pages"`
	StreamQuotes   bool   `yaml:"stream_quotes"` // live quote websocket feed
}

// Timeout returns the request timeout as a time.Duration.
func (p PolygonConfig) Timeout() time.Duration {
	return time.Duration(p.TimeoutSecs) * time.Second
}

// CacheConfig configures the snapshot cache.
type CacheConfig struct {
	TTLSecs       int    `yaml:"ttl_secs"`
	RedisAddr     string `yaml:"redis_addr"` // overridden by REDIS_ADDR; empty = in-memory
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
}

// TTL returns the snapshot TTL as a time.Duration.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSecs) * time.Second
}

// ScanConfig configures the scan pipeline.
type ScanConfig struct {
	TotalBatches        int   `yaml:"total_batches"`
	MinOpenInterest     int64 `yaml:"min_open_interest"`
	MaxDTE              int   `yaml:"max_dte"`
	MaxScanDurationSecs int   `yaml:"max_scan_duration_secs"`
}

// MaxScanDuration returns the per-batch wall-clock budget.
func (s ScanConfig) MaxScanDuration() time.Duration {
	return time.Duration(s.MaxScanDurationSecs) * time.Second
}

// SchedulerConfig configures the in-process batch rotation.
type SchedulerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Schedule string `yaml:"schedule"` // cron expression for batch ticks
}

// PersistenceConfig configures optional scan-history storage.
type PersistenceConfig struct {
	DSN string `yaml:"dsn"` // overridden by PG_DSN; empty = disabled
}

// UniverseConfig points at an optional ticker-universe override file.
type UniverseConfig struct {
	Path string `yaml:"path"`
}

// Default returns the configuration used when no file is supplied.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeoutSecs: 10,
			// Cron endpoints run a batch scan inline; the write timeout
			// must cover the scan budget.
			WriteTimeoutSecs: 300,
			IdleTimeoutSecs:  60,
		},
		Polygon: PolygonConfig{
			BaseURL:        "https://api.polygon.io",
			RequestsPerMin: 40,
			Burst:          2,
			TimeoutSecs:    15,
			MaxChainPages:  5,
		},
		Cache: CacheConfig{
			TTLSecs: 900,
		},
		Scan: ScanConfig{
			TotalBatches:        5,
			MinOpenInterest:     10,
			MaxDTE:              60,
			MaxScanDurationSecs: 270,
		},
		Scheduler: SchedulerConfig{
			Enabled:  true,
			Schedule: "*/3 * * * *",
		},
	}
}

// Load reads the YAML file at path (skipped when path is empty), applies
// environment overrides, and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("POLYGON_API_KEY"); v != "" {
		c.Polygon.APIKey = v
	}
	if v := os.Getenv("CRON_SECRET"); v != "" {
		c.Server.CronSecret = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Cache.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Cache.RedisPassword = v
	}
	if v := os.Getenv("PG_DSN"); v != "" {
		c.Persistence.DSN = v
	}
	if v := os.Getenv("HTTP_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
}

// Validate checks the configuration for values that would misbehave at
// runtime rather than fail loudly.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be in 1..65535, got %d", c.Server.Port)
	}
	if c.Polygon.RequestsPerMin <= 0 {
		return fmt.Errorf("polygon requests_per_min must be positive, got %d", c.Polygon.RequestsPerMin)
	}
	if c.Polygon.Burst <= 0 {
		return fmt.Errorf("polygon burst must be positive, got %d", c.Polygon.Burst)
	}
	if c.Polygon.TimeoutSecs <= 0 {
		return fmt.Errorf("polygon timeout_secs must be positive, got %d", c.Polygon.TimeoutSecs)
	}
	if c.Cache.TTLSecs <= 0 {
		return fmt.Errorf("cache ttl_secs must be positive, got %d", c.Cache.TTLSecs)
	}
	if c.Scan.TotalBatches <= 0 {
		return fmt.Errorf("scan total_batches must be positive, got %d", c.Scan.TotalBatches)
	}
	if c.Scan.MaxScanDurationSecs <= 0 {
		return fmt.Errorf("scan max_scan_duration_secs must be positive, got %d", c.Scan.MaxScanDurationSecs)
	}
	if c.Scheduler.Enabled && c.Scheduler.Schedule == "" {
		return fmt.Errorf("scheduler schedule cannot be empty when enabled")
	}
	return nil
}
