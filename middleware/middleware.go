// Package middleware wraps command round trips with cross-cutting behavior.
//
// The same chain type serves both ends of a connection: the client wraps the
// send-and-await of a command, the server wraps the dispatch of an inbound one.
//
//	Chain(A, B, C)(roundTrip) → A(B(C(roundTrip)))
//	Execution order: A.before → B.before → C.before → roundTrip → C.after → B.after → A.after
package middleware

import (
	"context"

	"chrome-remote/message"
)

// CommandFunc issues (client) or serves (server) one command and returns its response.
type CommandFunc func(ctx context.Context, cmd *message.Command) (*message.Message, error)

type Middleware func(next CommandFunc) CommandFunc

// Chain composes several middlewares into one.
func Chain(middlewares ...Middleware) Middleware {
	return func(next CommandFunc) CommandFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}
