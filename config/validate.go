package config

import (
	"fmt"
	"strings"
)

// ValidationError accumulates config validation errors.
type ValidationError struct {
	Errors []string
}

func (v *ValidationError) Error() string {
	return "config validation failed:\n  - " + strings.Join(v.Errors, "\n  - ")
}

// HasErrors reports whether any validation errors have been recorded.
func (v *ValidationError) HasErrors() bool {
	return len(v.Errors) > 0
}

// Add records a formatted validation error.
func (v *ValidationError) Add(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

// Validate checks cfg and reports every problem at once as a *ValidationError.
func Validate(cfg *Config) error {
	ve := &ValidationError{}
	validateTarget(cfg, ve)
	validateClient(cfg, ve)
	validateLogger(cfg, ve)
	if ve.HasErrors() {
		return ve
	}
	return nil
}

var validBalancers = map[string]bool{
	"":                true,
	"first":           true,
	"round_robin":     true,
	"weighted_random": true,
	"consistent_hash": true,
}

func validateTarget(cfg *Config, ve *ValidationError) {
	t := cfg.Target
	if t.URL != "" {
		if !strings.HasPrefix(t.URL, "ws://") && !strings.HasPrefix(t.URL, "wss://") {
			ve.Add("target.url must be a ws:// or wss:// URL, got %q", t.URL)
		}
		return
	}

	switch t.Registry.Kind {
	case "devtools":
		if t.Host == "" {
			ve.Add("target.host must not be empty")
		}
		if t.Port <= 0 || t.Port > 65535 {
			ve.Add("target.port must be in 1..65535, got %d", t.Port)
		}
	case "etcd":
		if len(t.Registry.Endpoints) == 0 {
			ve.Add("target.registry.endpoints must not be empty for etcd")
		}
		if t.Name == "" {
			ve.Add("target.name must not be empty for etcd")
		}
	default:
		ve.Add("target.registry.kind must be devtools or etcd, got %q", t.Registry.Kind)
	}

	if !validBalancers[t.Balancer] {
		ve.Add("target.balancer %q is not supported", t.Balancer)
	}
	if t.Balancer == "consistent_hash" && t.Key == "" {
		ve.Add("target.key must be set for consistent_hash")
	}
}

func validateClient(cfg *Config, ve *ValidationError) {
	c := cfg.Client
	if c.CommandTimeout < 0 {
		ve.Add("client.command_timeout must be >= 0")
	}
	if c.RateLimit < 0 {
		ve.Add("client.rate_limit must be >= 0")
	}
	if c.RateLimit > 0 && c.Burst <= 0 {
		ve.Add("client.burst must be > 0 when rate_limit is set")
	}
	if c.Retries < 0 {
		ve.Add("client.retries must be >= 0")
	}
	if c.Breaker.MaxFailures > 0 && c.Breaker.Timeout <= 0 {
		ve.Add("client.breaker.timeout must be > 0 when the breaker is enabled")
	}
	switch c.HandlerErrors {
	case "", "isolate", "propagate":
	default:
		ve.Add("client.handler_errors must be isolate or propagate, got %q", c.HandlerErrors)
	}
}

func validateLogger(cfg *Config, ve *ValidationError) {
	switch strings.ToLower(cfg.Logger.Format) {
	case "", "text", "json":
	default:
		ve.Add("logger.format must be text or json, got %q", cfg.Logger.Format)
	}
}
