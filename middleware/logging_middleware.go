package middleware

import (
	"context"
	"log/slog"
	"time"

	"chrome-remote/message"
)

// Logging records method, id, duration and outcome of every command.
func Logging(logger *slog.Logger) Middleware {
	return func(next CommandFunc) CommandFunc {
		return func(ctx context.Context, cmd *message.Command) (*message.Message, error) {
			start := time.Now()
			resp, err := next(ctx, cmd)
			attrs := []any{
				"method", cmd.Method,
				"id", cmd.ID,
				"duration", time.Since(start),
			}
			if err != nil {
				logger.Warn("command failed", append(attrs, "error", err)...)
				return resp, err
			}
			logger.Debug("command completed", attrs...)
			return resp, nil
		}
	}
}
