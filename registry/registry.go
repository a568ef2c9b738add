// Package registry finds debuggable targets to connect to.
//
// A target is one inspectable thing behind a DevTools endpoint (a page, a worker,
// a Node.js process) together with the WebSocket URL that speaks the protocol.
package registry

import "context"

// Target describes one debuggable endpoint.
type Target struct {
	ID           string `json:"id"`
	Type         string `json:"type"`
	Title        string `json:"title"`
	URL          string `json:"url"`
	WebSocketURL string `json:"webSocketDebuggerUrl"`
	Weight       int    `json:"weight,omitempty"` // Weight for load balancing
}

// Discoverer lists the targets published under a name.
type Discoverer interface {
	Discover(ctx context.Context, name string) ([]Target, error)
}

// Registry is a Discoverer that targets can also be published to.
type Registry interface {
	Discoverer
	Register(ctx context.Context, name string, target Target, ttl int64) error
	Deregister(ctx context.Context, name string, id string) error
	Watch(ctx context.Context, name string) <-chan []Target
}

// Static always returns the same targets, whatever the name.
type Static []Target

func (s Static) Discover(ctx context.Context, name string) ([]Target, error) {
	out := make([]Target, len(s))
	copy(out, s)
	return out, nil
}
