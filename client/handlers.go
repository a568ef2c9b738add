package client

import (
	"context"
	"fmt"
	"sync"

	"chrome-remote/message"
)

// Handler receives the params of one event.
type Handler func(ctx context.Context, params message.Payload) error

// HandlerErrorPolicy decides what a failing handler does to the wait that is
// pumping the event.
type HandlerErrorPolicy int

const (
	// IsolateHandlerErrors logs the failure and keeps dispatching and waiting.
	IsolateHandlerErrors HandlerErrorPolicy = iota
	// PropagateHandlerErrors runs the remaining handlers for the event, then fails
	// the current wait with the first *errs.HandlerError.
	PropagateHandlerErrors
)

// handlerRegistry maps event names to handlers in registration order.
// Looking up a name never creates an entry for it.
type handlerRegistry struct {
	mu sync.RWMutex
	m  map[string][]Handler
}

func newHandlerRegistry() *handlerRegistry {
	return &handlerRegistry{m: make(map[string][]Handler)}
}

func (r *handlerRegistry) add(event string, h Handler) {
	r.mu.Lock()
	r.m[event] = append(r.m[event], h)
	r.mu.Unlock()
}

// lookup returns a snapshot, so handlers registered during dispatch apply from the next event.
func (r *handlerRegistry) lookup(event string) []Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	hs, ok := r.m[event]
	if !ok {
		return nil
	}
	out := make([]Handler, len(hs))
	copy(out, hs)
	return out
}

func (r *handlerRegistry) events() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.m)
}

// invoke runs one handler, turning a panic into an error.
func invoke(ctx context.Context, h Handler, params message.Payload) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return h(ctx, params)
}
