package transport

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"nhooyr.io/websocket"

	"chrome-remote/errs"
)

// DefaultReadLimit caps one inbound WebSocket message. Chrome sends screenshots and
// DOM snapshots well above the library's 32KiB default.
const DefaultReadLimit int64 = 64 << 20

// WebSocketOptions configures a WebSocket transport.
type WebSocketOptions struct {
	ReadLimit  int64        // 0 means DefaultReadLimit
	HTTPHeader http.Header  // extra handshake headers
	HTTPClient *http.Client // nil means http.DefaultClient
	Logger     *slog.Logger
}

// WebSocket carries one JSON message per text frame, as Chrome's DevTools endpoint does.
type WebSocket struct {
	conn   *websocket.Conn
	in     *inbox
	logger *slog.Logger
}

// DialWebSocket opens a WebSocket connection to a debugger URL such as
// ws://127.0.0.1:9222/devtools/page/<id>.
func DialWebSocket(ctx context.Context, url string, opts WebSocketOptions) (*WebSocket, error) {
	conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		HTTPHeader: opts.HTTPHeader,
		HTTPClient: opts.HTTPClient,
	})
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return NewWebSocket(conn, opts), nil
}

// NewWebSocket wraps an established connection and starts its recvLoop.
// The server side uses it for accepted sessions.
func NewWebSocket(conn *websocket.Conn, opts WebSocketOptions) *WebSocket {
	limit := opts.ReadLimit
	if limit == 0 {
		limit = DefaultReadLimit
	}
	conn.SetReadLimit(limit)

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	t := &WebSocket{
		conn:   conn,
		in:     newInbox(),
		logger: logger,
	}
	go t.recvLoop()
	return t
}

// Send writes data as a single text frame. The library serializes concurrent writers.
func (t *WebSocket) Send(ctx context.Context, data []byte) error {
	if t.in.isClosed() {
		return errs.ErrClosed
	}
	return t.conn.Write(ctx, websocket.MessageText, data)
}

// Receive returns the next inbound message.
func (t *WebSocket) Receive(ctx context.Context) ([]byte, error) {
	return t.in.receive(ctx)
}

// Close performs the closing handshake. Safe to call more than once.
func (t *WebSocket) Close() error {
	if !t.in.markClosed() {
		return nil
	}
	err := t.conn.Close(websocket.StatusNormalClosure, "")
	if err != nil && websocket.CloseStatus(err) == websocket.StatusNormalClosure {
		return nil
	}
	return err
}

// recvLoop reads with a background context on purpose: cancelling a Read closes
// the connection, so callers' deadlines are applied in Receive instead.
func (t *WebSocket) recvLoop() {
	for {
		typ, data, err := t.conn.Read(context.Background())
		if err != nil {
			t.logger.Debug("websocket recv loop stopped", "error", err)
			t.in.fail(err)
			return
		}
		if typ != websocket.MessageText {
			t.logger.Debug("dropping binary websocket frame", "bytes", len(data))
			continue
		}
		if !t.in.deliver(data) {
			t.in.fail(errs.ErrClosed)
			return
		}
	}
}
