package client

import (
	"context"

	"chrome-remote/errs"
	"chrome-remote/message"
)

// readUntil pulls messages in arrival order until match accepts one and returns it.
// Every event is dispatched before match sees it. There is no deadline of its own;
// ctx bounds the wait. The caller must hold the read slot.
func (c *Client) readUntil(ctx context.Context, match func(*message.Message) bool) (*message.Message, error) {
	for {
		msg, err := c.readMsg(ctx)
		if err != nil {
			return nil, err
		}
		if match(msg) {
			return msg, nil
		}
		if msg.IsResponse() {
			c.logger.Debug("dropping unawaited response", "id", *msg.ID)
		}
	}
}

// readMsg receives and decodes exactly one message, dispatching it if it is an event.
func (c *Client) readMsg(ctx context.Context) (*message.Message, error) {
	data, err := c.transport.Receive(ctx)
	if err != nil {
		return nil, c.transportErr(ctx, "receive", err)
	}

	var msg message.Message
	if err := c.codec.Decode(data, &msg); err != nil {
		return nil, &errs.DecodeError{Data: data, Err: err}
	}

	if msg.IsEvent() {
		if err := c.dispatch(ctx, &msg); err != nil {
			return nil, err
		}
	}
	return &msg, nil
}

// dispatch runs every handler registered for the event, in order.
func (c *Client) dispatch(ctx context.Context, msg *message.Message) error {
	handlers := c.handlers.lookup(msg.Method)
	if len(handlers) == 0 {
		return nil
	}

	params := message.NewPayload(msg.Params)
	var first error
	for i, h := range handlers {
		err := invoke(ctx, h, params)
		if err == nil {
			continue
		}
		herr := &errs.HandlerError{Event: msg.Method, Index: i, Err: err}
		if c.policy == PropagateHandlerErrors {
			if first == nil {
				first = herr
			}
			continue
		}
		c.logger.Warn("event handler failed", "event", msg.Method, "handler", i, "error", err)
	}
	return first
}
