package transport

import (
	"context"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"chrome-remote/errs"
	"chrome-remote/protocol"
)

// DefaultHeartbeat is the keepalive interval of a stream transport.
const DefaultHeartbeat = 30 * time.Second

// StreamOptions configures a stream transport.
type StreamOptions struct {
	// HeartbeatInterval between keepalive frames. 0 means DefaultHeartbeat,
	// a negative value disables heartbeats.
	HeartbeatInterval time.Duration
	Logger            *slog.Logger
}

// Stream carries framed messages over a byte stream (TCP, unix socket, pipe).
type Stream struct {
	conn    net.Conn
	in      *inbox
	sending sync.Mutex // whole frames must not interleave on the wire
	logger  *slog.Logger
}

// DialStream connects to a framed endpoint.
func DialStream(ctx context.Context, network, addr string, opts StreamOptions) (*Stream, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}
	return NewStream(conn, opts), nil
}

// NewStream wraps conn and starts the recvLoop and heartbeatLoop goroutines.
func NewStream(conn net.Conn, opts StreamOptions) *Stream {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	t := &Stream{
		conn:   conn,
		in:     newInbox(),
		logger: logger,
	}

	interval := opts.HeartbeatInterval
	if interval == 0 {
		interval = DefaultHeartbeat
	}
	go t.recvLoop()
	if interval > 0 {
		go t.heartbeatLoop(interval)
	}
	return t
}

// Send writes one framed message. A ctx deadline becomes the write deadline.
func (t *Stream) Send(ctx context.Context, data []byte) error {
	if t.in.isClosed() {
		return errs.ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	t.sending.Lock()
	defer t.sending.Unlock()

	if deadline, ok := ctx.Deadline(); ok {
		t.conn.SetWriteDeadline(deadline)
		defer t.conn.SetWriteDeadline(time.Time{})
	}
	return protocol.EncodeText(t.conn, data)
}

// Receive returns the next inbound message.
func (t *Stream) Receive(ctx context.Context) ([]byte, error) {
	return t.in.receive(ctx)
}

// Close closes the connection. Safe to call more than once.
func (t *Stream) Close() error {
	if !t.in.markClosed() {
		return nil
	}
	return t.conn.Close()
}

// recvLoop reads frames sequentially; a byte stream has exactly one reader.
func (t *Stream) recvLoop() {
	for {
		header, body, err := protocol.Decode(t.conn)
		if err != nil {
			t.logger.Debug("stream recv loop stopped", "error", err)
			t.in.fail(err)
			return
		}
		if header.MsgType == protocol.MsgTypeHeartbeat {
			continue
		}
		if !t.in.deliver(body) {
			t.in.fail(errs.ErrClosed)
			return
		}
	}
}

// heartbeatLoop keeps idle connections from being reaped by the remote or by middleboxes.
func (t *Stream) heartbeatLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
		case <-t.in.closed:
			return
		}
		t.sending.Lock()
		err := protocol.Encode(t.conn, &protocol.Header{MsgType: protocol.MsgTypeHeartbeat}, nil)
		t.sending.Unlock()
		if err != nil {
			return
		}
	}
}
