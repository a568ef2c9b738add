// Package client multiplexes commands, events and waits over one debugging connection.
//
// One connection carries interleaved command responses (matched by id) and events
// (named by method). The client owns the receive side and pulls from it through a
// single loop, readUntil, which every public operation shares:
//
//	Call / ListenUntil / Listen / WaitFor
//	        │ predicate over *message.Message
//	        ▼
//	readUntil: Receive → Decode → dispatch if event → predicate? return : repeat
//
// Events are handed to registered handlers as they pass through the loop, whichever
// operation happens to be reading. Messages are never buffered: a message that does
// not satisfy the current predicate is dispatched (if it is an event) and dropped.
//
// Only one operation reads at a time. Concurrent callers queue on an internal slot
// that is held for the whole operation, so a command's response can never be consumed
// by another caller's wait. Handlers run on the reading goroutine and must not call
// waiting operations on the same client.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"chrome-remote/codec"
	"chrome-remote/errs"
	"chrome-remote/logger"
	"chrome-remote/message"
	"chrome-remote/middleware"
	"chrome-remote/registry"
	"chrome-remote/transport"
)

// Client multiplexes commands and events over one transport.
type Client struct {
	transport transport.Transport
	codec     codec.Codec
	logger    *slog.Logger
	policy    HandlerErrorPolicy

	lastID   atomic.Int64
	handlers *handlerRegistry

	busy chan struct{} // single slot: one operation reads at a time
	call middleware.CommandFunc

	target *registry.Target // set by Connect
}

// Option configures a Client.
type Option func(*options)

type options struct {
	logger      *slog.Logger
	codec       codec.Codec
	middlewares []middleware.Middleware
	policy      HandlerErrorPolicy
	ws          transport.WebSocketOptions
}

// WithLogger sets the logger for dispatch and transport diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithCodec replaces the JSON codec.
func WithCodec(c codec.Codec) Option {
	return func(o *options) { o.codec = c }
}

// WithMiddleware wraps every command round trip, outermost first.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(o *options) { o.middlewares = append(o.middlewares, mws...) }
}

// WithHandlerErrorPolicy chooses how handler failures affect waits.
func WithHandlerErrorPolicy(p HandlerErrorPolicy) Option {
	return func(o *options) { o.policy = p }
}

// WithWebSocketOptions configures the transport dialed by Connect.
func WithWebSocketOptions(ws transport.WebSocketOptions) Option {
	return func(o *options) { o.ws = ws }
}

func buildOptions(opts []Option) *options {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = logger.Discard()
	}
	if o.codec == nil {
		o.codec = codec.Default()
	}
	return o
}

// New wraps a connected transport. The client owns it from here on.
func New(t transport.Transport, opts ...Option) *Client {
	return newClient(t, buildOptions(opts))
}

func newClient(t transport.Transport, o *options) *Client {
	c := &Client{
		transport: t,
		codec:     o.codec,
		logger:    o.logger,
		policy:    o.policy,
		handlers:  newHandlerRegistry(),
		busy:      make(chan struct{}, 1),
	}
	c.call = middleware.Chain(o.middlewares...)(c.roundTrip)
	return c
}

// NextID returns a fresh command id. Ids start at 1 and never repeat.
func (c *Client) NextID() int64 {
	return c.lastID.Add(1)
}

// On registers handler for event. Handlers for one event run in registration order.
func (c *Client) On(event string, handler Handler) {
	c.handlers.add(event, handler)
}

// Handlers returns the handlers registered for event, or nil.
func (c *Client) Handlers(event string) []Handler {
	return c.handlers.lookup(event)
}

// Target is the target the client was connected to by Connect, or nil.
func (c *Client) Target() *registry.Target {
	return c.target
}

// Call sends a command and blocks until its response arrives.
// An error reply is returned as *errs.CommandError.
func (c *Client) Call(ctx context.Context, method string, params any) (message.Payload, error) {
	cmd, err := message.NewCommand(0, method, params)
	if err != nil {
		return message.Payload{}, err
	}
	resp, err := c.call(ctx, cmd)
	if err != nil {
		return message.Payload{}, err
	}
	return message.NewPayload(resp.Result), nil
}

// CallInto is Call with the result decoded into reply.
func (c *Client) CallInto(ctx context.Context, method string, params any, reply any) error {
	result, err := c.Call(ctx, method, params)
	if err != nil {
		return err
	}
	if reply == nil {
		return nil
	}
	if err := result.Decode(reply); err != nil {
		return fmt.Errorf("decode %s result: %w", method, err)
	}
	return nil
}

// CallAs issues a command and decodes its result as T.
func CallAs[T any](ctx context.Context, c *Client, method string, params any) (T, error) {
	var out T
	err := c.CallInto(ctx, method, params, &out)
	return out, err
}

// Close closes the transport. A wait in progress fails with a transport error.
func (c *Client) Close() error {
	return c.transport.Close()
}

// roundTrip is the innermost CommandFunc: assign an id, send, await the matching response.
func (c *Client) roundTrip(ctx context.Context, cmd *message.Command) (*message.Message, error) {
	if err := c.acquire(ctx); err != nil {
		return nil, err
	}
	defer c.release()

	cmd.ID = c.NextID()
	data, err := c.codec.Encode(cmd)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", cmd.Method, err)
	}

	if err := c.transport.Send(ctx, data); err != nil {
		return nil, c.transportErr(ctx, "send", err)
	}

	id := cmd.ID
	resp, err := c.readUntil(ctx, func(msg *message.Message) bool {
		return msg.HasID(id)
	})
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return resp, &errs.CommandError{Method: cmd.Method, ID: id, Err: resp.Error}
	}
	return resp, nil
}

func (c *Client) acquire(ctx context.Context) error {
	select {
	case c.busy <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) release() {
	<-c.busy
}

// transportErr keeps the caller's own cancellation distinguishable from a broken connection.
func (c *Client) transportErr(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		return err
	}
	return &errs.TransportError{Op: op, Err: err}
}
