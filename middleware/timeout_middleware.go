package middleware

import (
	"context"
	"errors"
	"fmt"
	"time"

	"chrome-remote/errs"
	"chrome-remote/message"
)

// Timeout bounds a command round trip. An expired bound surfaces as errs.ErrTimeout;
// cancellation by the caller keeps the caller's context error.
func Timeout(timeout time.Duration) Middleware {
	return func(next CommandFunc) CommandFunc {
		return func(ctx context.Context, cmd *message.Command) (*message.Message, error) {
			tctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			resp, err := next(tctx, cmd)
			if err != nil && errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
				return nil, fmt.Errorf("%s after %s: %w", cmd.Method, timeout, errs.ErrTimeout)
			}
			return resp, err
		}
	}
}
