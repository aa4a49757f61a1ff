package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
)

// Config holds the proxy configuration.
type Config struct {
	ServerURL      string
	Port           string
	RedisURL       string
	RequestTimeout time.Duration
	CacheTTL       time.Duration
}

// DefaultConfig returns the proxy defaults.
func DefaultConfig() Config {
	return Config{
		ServerURL:      "wss://s1.ripple.com",
		Port:           "8080",
		RequestTimeout: 30 * time.Second,
		CacheTTL:       10 * time.Minute,
	}
}

// envConfig is read after the config file; set variables win.
type envConfig struct {
	ConfigFile     string        `env:"XRPL_PROXY_CONFIG"`
	ServerURL      string        `env:"XRPL_SERVER_URL"`
	Port           string        `env:"PORT"`
	RedisURL       string        `env:"REDIS_URL"`
	RequestTimeout time.Duration `env:"XRPL_REQUEST_TIMEOUT"`
}

type fileConfig struct {
	ServerURL      string `toml:"server_url"`
	Port           string `toml:"port"`
	RedisURL       string `toml:"redis_url"`
	RequestTimeout string `toml:"request_timeout"`
	CacheTTL       string `toml:"cache_ttl"`
}

// LoadConfig builds the configuration from defaults, the TOML file named by
// XRPL_PROXY_CONFIG (if any) and the environment, in that order.
func LoadConfig() (Config, error) {
	var ec envConfig
	if err := env.Parse(&ec); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	cfg := DefaultConfig()
	if ec.ConfigFile != "" {
		if err := loadConfigFile(ec.ConfigFile, &cfg); err != nil {
			return Config{}, err
		}
	}

	if ec.ServerURL != "" {
		cfg.ServerURL = ec.ServerURL
	}
	if ec.Port != "" {
		cfg.Port = ec.Port
	}
	if ec.RedisURL != "" {
		cfg.RedisURL = ec.RedisURL
	}
	if ec.RequestTimeout > 0 {
		cfg.RequestTimeout = ec.RequestTimeout
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadConfigFile(path string, cfg *Config) error {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return fmt.Errorf("load proxy config: %w", err)
	}

	if meta.IsDefined("server_url") {
		cfg.ServerURL = strings.TrimSpace(raw.ServerURL)
	}
	if meta.IsDefined("port") {
		cfg.Port = strings.TrimSpace(raw.Port)
	}
	if meta.IsDefined("redis_url") {
		cfg.RedisURL = strings.TrimSpace(raw.RedisURL)
	}
	if meta.IsDefined("request_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.RequestTimeout))
		if err != nil {
			return fmt.Errorf("parse request_timeout: %w", err)
		}
		cfg.RequestTimeout = d
	}
	if meta.IsDefined("cache_ttl") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.CacheTTL))
		if err != nil {
			return fmt.Errorf("parse cache_ttl: %w", err)
		}
		cfg.CacheTTL = d
	}
	return nil
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if !strings.HasPrefix(c.ServerURL, "ws://") && !strings.HasPrefix(c.ServerURL, "wss://") {
		return fmt.Errorf("server url must be ws:// or wss://, got %q", c.ServerURL)
	}
	if c.Port == "" {
		return fmt.Errorf("port is required")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive")
	}
	return nil
}
