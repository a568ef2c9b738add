package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"chrome-remote/errs"
	"chrome-remote/message"
)

// ListenUntil pumps messages, dispatching events, until cond reports true after a
// message has been read. It returns that last message. cond is evaluated once per
// message and never sees the message itself.
func (c *Client) ListenUntil(ctx context.Context, cond func() bool) (*message.Message, error) {
	if err := c.acquire(ctx); err != nil {
		return nil, err
	}
	defer c.release()

	return c.readUntil(ctx, func(*message.Message) bool {
		return cond()
	})
}

// Listen pumps events to their handlers until ctx is done or the connection fails.
// It always returns a non-nil error.
func (c *Client) Listen(ctx context.Context) error {
	_, err := c.ListenUntil(ctx, func() bool { return false })
	return err
}

// WaitOptions selects the event WaitFor returns.
type WaitOptions struct {
	// Event matches any event with this method. It takes precedence over Match.
	Event string
	// Match is consulted for every event when Event is empty.
	Match func(method string, params message.Payload) bool
	// Timeout bounds the wait; 0 waits as long as ctx allows.
	Timeout time.Duration
}

func (o WaitOptions) predicate() (func(*message.Message) bool, error) {
	switch {
	case o.Event != "":
		event := o.Event
		return func(msg *message.Message) bool {
			return msg.IsEvent() && msg.Method == event
		}, nil
	case o.Match != nil:
		match := o.Match
		return func(msg *message.Message) bool {
			return msg.IsEvent() && match(msg.Method, message.NewPayload(msg.Params))
		}, nil
	}
	return nil, errs.ErrNoCondition
}

func (o WaitOptions) String() string {
	if o.Event != "" {
		return o.Event
	}
	return "matching event"
}

// WaitFor blocks until an event selected by opts arrives and returns its params.
// When opts.Timeout elapses first the error wraps errs.ErrTimeout; the connection
// stays usable and the next read continues with the next unread message.
func (c *Client) WaitFor(ctx context.Context, opts WaitOptions) (message.Payload, error) {
	match, err := opts.predicate()
	if err != nil {
		return message.Payload{}, err
	}

	wctx := ctx
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		wctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	msg, err := c.waitLocked(wctx, match)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return message.Payload{}, fmt.Errorf("wait for %s after %s: %w", opts, opts.Timeout, errs.ErrTimeout)
		}
		return message.Payload{}, err
	}
	return message.NewPayload(msg.Params), nil
}

// WaitForEvent waits for the next event named event.
func (c *Client) WaitForEvent(ctx context.Context, event string, timeout time.Duration) (message.Payload, error) {
	return c.WaitFor(ctx, WaitOptions{Event: event, Timeout: timeout})
}

func (c *Client) waitLocked(ctx context.Context, match func(*message.Message) bool) (*message.Message, error) {
	if err := c.acquire(ctx); err != nil {
		return nil, err
	}
	defer c.release()
	return c.readUntil(ctx, match)
}
