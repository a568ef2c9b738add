package middleware

import (
	"context"

	"golang.org/x/time/rate"

	"chrome-remote/errs"
	"chrome-remote/message"
)

// RateLimit rejects commands beyond a token bucket of r per second with the given burst.
func RateLimit(r float64, burst int) Middleware {
	limiter := rate.NewLimiter(rate.Limit(r), burst)
	return func(next CommandFunc) CommandFunc {
		return func(ctx context.Context, cmd *message.Command) (*message.Message, error) {
			if !limiter.Allow() {
				return nil, errs.ErrRateLimited
			}
			return next(ctx, cmd)
		}
	}
}

// Throttle delays commands to stay within r per second instead of rejecting them.
func Throttle(r float64, burst int) Middleware {
	limiter := rate.NewLimiter(rate.Limit(r), burst)
	return func(next CommandFunc) CommandFunc {
		return func(ctx context.Context, cmd *message.Command) (*message.Message, error) {
			if err := limiter.Wait(ctx); err != nil {
				return nil, err
			}
			return next(ctx, cmd)
		}
	}
}
