package middleware

import (
	"context"
	"log/slog"
	"time"

	"chrome-remote/errs"
	"chrome-remote/message"
)

// Retry re-issues a command that failed with a retryable error (see errs.Retryable),
// backing off exponentially from baseDelay. Transport, decode and command errors
// return immediately. Place it outside Timeout so each attempt gets its own bound.
//
// The client assigns ids inside the round trip, so every attempt goes out with a fresh id
// and a late response to an abandoned attempt is never mistaken for the current one.
func Retry(maxRetries int, baseDelay time.Duration, logger *slog.Logger) Middleware {
	return func(next CommandFunc) CommandFunc {
		return func(ctx context.Context, cmd *message.Command) (*message.Message, error) {
			resp, err := next(ctx, cmd)
			for i := 0; i < maxRetries; i++ {
				if err == nil || !errs.Retryable(err) {
					return resp, err
				}
				logger.Info("retrying command", "attempt", i+1, "method", cmd.Method, "error", err)

				select {
				case <-time.After(baseDelay * time.Duration(1<<i)):
				case <-ctx.Done():
					return nil, ctx.Err()
				}
				resp, err = next(ctx, cmd)
			}
			return resp, err
		}
	}
}
