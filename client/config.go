package client

import (
	"log/slog"

	"chrome-remote/config"
	"chrome-remote/middleware"
)

// FromConfig turns the client section of a config file into options.
// The command pipeline is, outermost first:
//
//	Logging → Retry → CircuitBreaker → Throttle → Timeout → round trip
//
// so every retry gets a fresh timeout and the breaker sees each attempt.
func FromConfig(cfg config.ClientConfig, log *slog.Logger) []Option {
	mws := []middleware.Middleware{middleware.Logging(log)}
	if cfg.Retries > 0 {
		mws = append(mws, middleware.Retry(cfg.Retries, cfg.RetryDelay, log))
	}
	if cfg.Breaker.MaxFailures > 0 {
		mws = append(mws, middleware.CircuitBreaker("chrome-remote", middleware.BreakerSettings{
			MaxFailures: cfg.Breaker.MaxFailures,
			Timeout:     cfg.Breaker.Timeout,
			Interval:    cfg.Breaker.Interval,
		}, log))
	}
	if cfg.RateLimit > 0 {
		mws = append(mws, middleware.Throttle(cfg.RateLimit, cfg.Burst))
	}
	if cfg.CommandTimeout > 0 {
		mws = append(mws, middleware.Timeout(cfg.CommandTimeout))
	}

	policy := IsolateHandlerErrors
	if cfg.HandlerErrors == "propagate" {
		policy = PropagateHandlerErrors
	}

	return []Option{
		WithLogger(log),
		WithMiddleware(mws...),
		WithHandlerErrorPolicy(policy),
	}
}
