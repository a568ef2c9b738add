// Package errs holds the error taxonomy shared by the client, its transports and
// the command middleware.
//
// Callers tell failures apart with errors.Is and errors.As:
//
//	ErrTimeout        nothing matched before a wait deadline (recoverable)
//	*TransportError   the connection failed while sending or receiving
//	*DecodeError      an inbound frame could not be decoded
//	*CommandError     the remote answered a command with an error object
//	*HandlerError     an event handler failed under the propagate policy
package errs

import (
	"errors"
	"fmt"

	"chrome-remote/message"
)

var (
	ErrTimeout     = errors.New("timed out waiting for message")
	ErrNoCondition = errors.New("wait needs an event name or a predicate")
	ErrClosed      = errors.New("transport closed")
	ErrRateLimited = errors.New("rate limit exceeded")
	ErrCircuitOpen = errors.New("circuit breaker open")
)

// TransportError wraps a send or receive failure of the underlying connection.
type TransportError struct {
	Op  string // "send" or "receive"
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// DecodeError means a frame arrived that is not a valid message.
// The stream may be desynchronized, so the wait that read it fails.
type DecodeError struct {
	Data []byte
	Err  error
}

func (e *DecodeError) Error() string {
	const max = 128
	data := e.Data
	if len(data) > max {
		data = data[:max]
	}
	return fmt.Sprintf("decode message %q: %v", data, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// CommandError is returned when the response to a command carries an error object.
type CommandError struct {
	Method string
	ID     int64
	Err    *message.RPCError
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command %s (id %d) failed: %v", e.Method, e.ID, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// HandlerError reports an event handler that returned an error or panicked.
type HandlerError struct {
	Event string
	Index int // position of the handler in registration order
	Err   error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("handler %d for %s: %v", e.Index, e.Event, e.Err)
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}

// Retryable reports whether a command may be issued again after err.
// Only a command timeout or a local rate limit qualifies; transport and decode
// failures are never retried.
func Retryable(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrRateLimited)
}
