package middleware

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"chrome-remote/errs"
	"chrome-remote/message"
)

// BreakerSettings configures CircuitBreaker. Zero values fall back to defaults.
type BreakerSettings struct {
	MaxFailures uint32        // consecutive failures before the circuit opens, default 5
	Timeout     time.Duration // open → half-open delay, default 30s
	Interval    time.Duration // closed-state counter reset period, default 60s
}

// CircuitBreaker fails commands fast once the connection keeps failing.
// A command answered with an error object proves the remote is alive and counts as success.
func CircuitBreaker(name string, cfg BreakerSettings, logger *slog.Logger) Middleware {
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 5
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Interval == 0 {
		cfg.Interval = 60 * time.Second
	}

	cb := gobreaker.NewCircuitBreaker[*message.Message](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
		IsSuccessful: func(err error) bool {
			var cmdErr *errs.CommandError
			return err == nil || errors.As(err, &cmdErr)
		},
	})

	return func(next CommandFunc) CommandFunc {
		return func(ctx context.Context, cmd *message.Command) (*message.Message, error) {
			resp, err := cb.Execute(func() (*message.Message, error) {
				return next(ctx, cmd)
			})
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return nil, errs.ErrCircuitOpen
			}
			return resp, err
		}
	}
}
