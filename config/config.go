// Package config loads the YAML configuration of the chrome-remote command.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	Target TargetConfig `yaml:"target"`
	Client ClientConfig `yaml:"client"`
	Logger LoggerConfig `yaml:"logger"`
}

// TargetConfig says how to find the endpoint to connect to.
type TargetConfig struct {
	// URL skips discovery and dials this WebSocket URL directly.
	URL      string         `yaml:"url"`
	Host     string         `yaml:"host"`
	Port     int            `yaml:"port"`
	Name     string         `yaml:"name"` // target type for devtools, service name for etcd
	Registry RegistryConfig `yaml:"registry"`
	Balancer string         `yaml:"balancer"`
	Key      string         `yaml:"key"` // consistent_hash key
}

// RegistryConfig selects the discovery backend.
type RegistryConfig struct {
	Kind      string   `yaml:"kind"` // devtools, etcd
	Endpoints []string `yaml:"endpoints"`
}

// ClientConfig holds the command pipeline settings.
type ClientConfig struct {
	CommandTimeout time.Duration `yaml:"command_timeout"`
	RateLimit      float64       `yaml:"rate_limit"` // commands per second, 0 = unlimited
	Burst          int           `yaml:"burst"`
	Retries        int           `yaml:"retries"`
	RetryDelay     time.Duration `yaml:"retry_delay"`
	Breaker        BreakerConfig `yaml:"breaker"`
	HandlerErrors  string        `yaml:"handler_errors"` // isolate, propagate
}

// BreakerConfig configures the circuit breaker; MaxFailures 0 disables it.
type BreakerConfig struct {
	MaxFailures uint32        `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
	Interval    time.Duration `yaml:"interval"`
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Defaults returns a config pointing at a local Chrome on port 9222.
func Defaults() *Config {
	return &Config{
		Target: TargetConfig{
			Host:     "127.0.0.1",
			Port:     9222,
			Name:     "page",
			Registry: RegistryConfig{Kind: "devtools"},
			Balancer: "first",
		},
		Client: ClientConfig{
			CommandTimeout: 30 * time.Second,
			Burst:          1,
			RetryDelay:     100 * time.Millisecond,
			Breaker: BreakerConfig{
				Timeout:  10 * time.Second,
				Interval: time.Minute,
			},
			HandlerErrors: "isolate",
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// Load reads path over the defaults. A missing file is not an error.
// Environment overrides apply last.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	ApplyEnvOverrides(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnvOverrides applies CHROME_REMOTE_* variables to cfg.
func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CHROME_REMOTE_URL"); v != "" {
		cfg.Target.URL = v
	}
	if v := os.Getenv("CHROME_REMOTE_HOST"); v != "" {
		cfg.Target.Host = v
	}
	if v := os.Getenv("CHROME_REMOTE_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Target.Port = p
		}
	}
	if v := os.Getenv("CHROME_REMOTE_LOGGER_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
	if v := os.Getenv("CHROME_REMOTE_COMMAND_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Client.CommandTimeout = d
		}
	}
}
