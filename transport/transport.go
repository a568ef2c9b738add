// Package transport moves whole text messages between the client and a remotely
// debuggable process.
//
// A Transport has one job: send a message, and hand back the next inbound message
// in arrival order. Decoding, correlation and event dispatch live in the client.
//
// Every implementation reads the connection from a single background goroutine
// (recvLoop) and hands each message over an unbuffered channel:
//
//	conn ──recvLoop──► frames (unbuffered) ──Receive(ctx)──► client
//
// A Receive abandoned through its context therefore never loses or reorders a
// message: the next Receive gets it.
package transport

import (
	"context"
	"sync"

	"chrome-remote/errs"
)

// Transport is a message-oriented, bidirectional connection.
type Transport interface {
	// Send writes one whole message.
	Send(ctx context.Context, data []byte) error

	// Receive blocks until the next message arrives, the connection fails,
	// or ctx is done.
	Receive(ctx context.Context) ([]byte, error)

	// Close shuts the connection down. Pending and later Receive calls fail.
	Close() error
}

// inbox is the receive half shared by all transports.
type inbox struct {
	frames    chan []byte
	done      chan struct{} // closed when recvLoop exits; err is set before
	err       error
	closed    chan struct{} // closed by Close
	closeOnce sync.Once
}

func newInbox() *inbox {
	return &inbox{
		frames: make(chan []byte),
		done:   make(chan struct{}),
		closed: make(chan struct{}),
	}
}

// deliver hands one message to the next Receive. It returns false once the
// transport has been closed.
func (b *inbox) deliver(data []byte) bool {
	select {
	case b.frames <- data:
		return true
	case <-b.closed:
		return false
	}
}

// fail records why recvLoop stopped and wakes every receiver.
func (b *inbox) fail(err error) {
	if b.isClosed() {
		err = errs.ErrClosed
	}
	b.err = err
	close(b.done)
}

func (b *inbox) receive(ctx context.Context) ([]byte, error) {
	select {
	case data := <-b.frames:
		return data, nil
	case <-b.done:
		return nil, b.err
	case <-b.closed:
		return nil, errs.ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// markClosed reports whether this call performed the close.
func (b *inbox) markClosed() bool {
	first := false
	b.closeOnce.Do(func() {
		close(b.closed)
		first = true
	})
	return first
}

func (b *inbox) isClosed() bool {
	select {
	case <-b.closed:
		return true
	default:
		return false
	}
}
