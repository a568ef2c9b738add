package client

import (
	"context"
	"fmt"

	"chrome-remote/loadbalance"
	"chrome-remote/registry"
	"chrome-remote/transport"
)

// Connect discovers the targets published under name, picks one with bal and
// opens a WebSocket client to it.
//
//	disc := registry.NewDevTools("127.0.0.1", 9222)
//	c, err := client.Connect(ctx, disc, loadbalance.First{}, "page")
func Connect(ctx context.Context, disc registry.Discoverer, bal loadbalance.Balancer, name string, opts ...Option) (*Client, error) {
	o := buildOptions(opts)

	targets, err := disc.Discover(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("discover %q: %w", name, err)
	}

	target, err := bal.Pick(targets)
	if err != nil {
		return nil, fmt.Errorf("pick target for %q: %w", name, err)
	}
	if target.WebSocketURL == "" {
		return nil, fmt.Errorf("target %s has no websocket debugger url", target.ID)
	}

	wsOpts := o.ws
	if wsOpts.Logger == nil {
		wsOpts.Logger = o.logger
	}
	t, err := transport.DialWebSocket(ctx, target.WebSocketURL, wsOpts)
	if err != nil {
		return nil, err
	}

	o.logger.Info("connected to target",
		"target", target.ID,
		"type", target.Type,
		"title", target.Title,
		"balancer", bal.Name(),
	)

	c := newClient(t, o)
	picked := *target
	c.target = &picked
	return c, nil
}
