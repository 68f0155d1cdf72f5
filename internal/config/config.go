// Package config loads the tool server configuration from an optional TOML
// file and the environment. Environment variables win over file values.
package config

import (
	"fmt"
	"os"

	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"

	"github.com/njchilds90/symcanon"
)

// Config holds all application configuration.
type Config struct {
	Server        ServerConfig        `toml:"server"`
	Logging       LogConfig           `toml:"logging"`
	RateLimit     RateLimitConfig     `toml:"rate_limit"`
	Canonicalizer CanonicalizerConfig `toml:"canonicalizer"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string `envconfig:"PORT" default:"8080" toml:"port"`
	Host            string `envconfig:"HOST" default:"0.0.0.0" toml:"host"`
	MaxBodyBytes    int64  `envconfig:"MAX_BODY_BYTES" default:"1048576" toml:"max_body_bytes"`
	ShutdownTimeout int    `envconfig:"SHUTDOWN_TIMEOUT_SECONDS" default:"10" toml:"shutdown_timeout_seconds"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info" toml:"level"`
	Development bool   `envconfig:"LOG_DEV" default:"false" toml:"development"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100" toml:"requests_per_second"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200" toml:"burst"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true" toml:"enabled"`
	MaxClients        int  `envconfig:"RATE_LIMIT_MAX_CLIENTS" default:"10000" toml:"max_clients"`
}

// CanonicalizerConfig tunes the default Canonicalizer.
type CanonicalizerConfig struct {
	MaxIterations int `envconfig:"SYMCANON_MAX_ITERATIONS" default:"256" toml:"max_iterations"`
	CacheSize     int `envconfig:"SYMCANON_CACHE_SIZE" default:"4096" toml:"cache_size"`
	MaxUnroll     int `envconfig:"SYMCANON_MAX_UNROLL" default:"16" toml:"max_unroll"`
}

// Options converts the section to canonicalizer options.
func (c CanonicalizerConfig) Options() symcanon.Options {
	return symcanon.Options{MaxIterations: c.MaxIterations, CacheSize: c.CacheSize, MaxUnroll: c.MaxUnroll}
}

// Addr is the listen address.
func (s ServerConfig) Addr() string { return s.Host + ":" + s.Port }

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadFile reads path as TOML, then applies environment overrides. Keys
// missing from the file keep their defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides cfg with every variable that is actually set.
func applyEnv(cfg *Config) error {
	var env Config
	if err := envconfig.Process("", &env); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	set := func(key string) bool {
		_, ok := os.LookupEnv(key)
		return ok
	}
	if set("PORT") {
		cfg.Server.Port = env.Server.Port
	}
	if set("HOST") {
		cfg.Server.Host = env.Server.Host
	}
	if set("MAX_BODY_BYTES") {
		cfg.Server.MaxBodyBytes = env.Server.MaxBodyBytes
	}
	if set("SHUTDOWN_TIMEOUT_SECONDS") {
		cfg.Server.ShutdownTimeout = env.Server.ShutdownTimeout
	}
	if set("LOG_LEVEL") {
		cfg.Logging.Level = env.Logging.Level
	}
	if set("LOG_DEV") {
		cfg.Logging.Development = env.Logging.Development
	}
	if set("RATE_LIMIT_RPS") {
		cfg.RateLimit.RequestsPerSecond = env.RateLimit.RequestsPerSecond
	}
	if set("RATE_LIMIT_BURST") {
		cfg.RateLimit.Burst = env.RateLimit.Burst
	}
	if set("RATE_LIMIT_ENABLED") {
		cfg.RateLimit.Enabled = env.RateLimit.Enabled
	}
	if set("RATE_LIMIT_MAX_CLIENTS") {
		cfg.RateLimit.MaxClients = env.RateLimit.MaxClients
	}
	if set("SYMCANON_MAX_ITERATIONS") {
		cfg.Canonicalizer.MaxIterations = env.Canonicalizer.MaxIterations
	}
	if set("SYMCANON_CACHE_SIZE") {
		cfg.Canonicalizer.CacheSize = env.Canonicalizer.CacheSize
	}
	if set("SYMCANON_MAX_UNROLL") {
		cfg.Canonicalizer.MaxUnroll = env.Canonicalizer.MaxUnroll
	}
	return nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8080",
			Host:            "0.0.0.0",
			MaxBodyBytes:    1 << 20,
			ShutdownTimeout: 10,
		},
		Logging: LogConfig{
			Level: "info",
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
			MaxClients:        10000,
		},
		Canonicalizer: CanonicalizerConfig{
			MaxIterations: 256,
			CacheSize:     4096,
			MaxUnroll:     16,
		},
	}
}
