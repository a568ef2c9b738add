// Package server implements the remote end of a debugging connection: it answers
// commands and pushes events over the same wire protocol the client speaks.
//
// It backs the integration tests and local development, where a real browser is
// not at hand. Request processing pipeline:
//
//	session recv loop (single reader per connection)
//	  → for each command: go handleRequest (parallel processing)
//	    → Codec.Decode → Middleware Chain → dispatch (handler lookup) → Codec.Encode → Send
//
// Events from Emit are written to every open session in call order.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"nhooyr.io/websocket"

	"chrome-remote/codec"
	"chrome-remote/message"
	"chrome-remote/middleware"
	"chrome-remote/registry"
	"chrome-remote/transport"
)

// Error codes used in error responses, following Chrome's choices.
const (
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeServerError    = -32000
)

// CommandHandler serves one command. Returning a *message.RPCError controls the
// error code on the wire; any other error is reported as CodeServerError.
type CommandHandler func(ctx context.Context, params json.RawMessage) (any, error)

type advert struct {
	name string
	id   string
}

// Server answers commands and emits events on every session.
type Server struct {
	// Title and URL describe the single page target in /json/list.
	Title string
	URL   string

	id     string
	codec  codec.Codec
	logger *slog.Logger

	mu          sync.RWMutex
	handlers    map[string]CommandHandler // "Domain.method" → handler
	middlewares []middleware.Middleware
	chainOnce   sync.Once
	handler     middleware.CommandFunc

	sessions    sync.Map // uint64 → transport.Transport
	nextSession atomic.Uint64
	emitMu      sync.Mutex // keeps Emit order identical on every session

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup // in-flight sessions and requests
	shutdown  atomic.Bool
	listeners []net.Listener
	registry  registry.Registry
	adverts   []advert
}

// NewServer creates a server with an empty handler table.
func NewServer(logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		Title:    "chrome-remote",
		URL:      "about:blank",
		id:       ulid.Make().String(),
		codec:    codec.Default(),
		logger:   logger,
		handlers: make(map[string]CommandHandler),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// ID is the target id the server publishes.
func (s *Server) ID() string {
	return s.id
}

// Handle registers a handler for one method name. Safe to call while serving.
func (s *Server) Handle(method string, h CommandHandler) {
	s.mu.Lock()
	s.handlers[method] = h
	s.mu.Unlock()
}

// Register exposes the methods of rcvr as the domain named after its type.
func (s *Server) Register(rcvr any) error {
	svc, err := newService(rcvr)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, m := range svc.method {
		s.handlers[svc.name+"."+name] = svc.handler(m)
	}
	return nil
}

// Use registers a middleware. Middlewares apply in the order added and must be
// registered before the first command is served.
func (s *Server) Use(mw middleware.Middleware) {
	s.mu.Lock()
	s.middlewares = append(s.middlewares, mw)
	s.mu.Unlock()
}

func (s *Server) chain() middleware.CommandFunc {
	s.chainOnce.Do(func() {
		s.mu.RLock()
		mws := append([]middleware.Middleware(nil), s.middlewares...)
		s.mu.RUnlock()
		s.handler = middleware.Chain(mws...)(s.dispatch)
	})
	return s.handler
}

// Emit sends an event to every open session.
func (s *Server) Emit(ctx context.Context, method string, params any) error {
	ev, err := message.NewEvent(method, params)
	if err != nil {
		return err
	}
	data, err := s.codec.Encode(ev)
	if err != nil {
		return err
	}

	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	var errs []error
	s.sessions.Range(func(key, value any) bool {
		if err := value.(transport.Transport).Send(ctx, data); err != nil {
			errs = append(errs, fmt.Errorf("session %d: %w", key, err))
		}
		return true
	})
	return errors.Join(errs...)
}

// Sessions counts open sessions.
func (s *Server) Sessions() int {
	n := 0
	s.sessions.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Serve accepts framed stream sessions on ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	s.listeners = append(s.listeners, ln)
	s.mu.Unlock()

	for {
		conn, err := ln.Accept()
		if err != nil {
			// Shutdown closes the listener; that Accept error is expected.
			if s.shutdown.Load() {
				return nil
			}
			return err
		}
		t := transport.NewStream(conn, transport.StreamOptions{Logger: s.logger})
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serveSession(t)
		}()
	}
}

// Handler serves the DevTools HTTP surface:
//
//	GET /json/version          browser metadata
//	GET /json, /json/list      the page target
//	    /devtools/page/{id}    WebSocket session
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /json/version", s.handleVersion)
	mux.HandleFunc("GET /json", s.handleList)
	mux.HandleFunc("GET /json/list", s.handleList)
	mux.HandleFunc("/devtools/page/{id}", s.handleWebSocket)
	return mux
}

// Target describes the page this server exposes, as reached through host.
func (s *Server) Target(host string) registry.Target {
	return registry.Target{
		ID:           s.id,
		Type:         "page",
		Title:        s.Title,
		URL:          s.URL,
		WebSocketURL: "ws://" + host + "/devtools/page/" + s.id,
	}
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{
		"Browser":              "chrome-remote/1.0",
		"Protocol-Version":     "1.3",
		"webSocketDebuggerUrl": s.Target(r.Host).WebSocketURL,
	})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, []registry.Target{s.Target(r.Host)})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	json.NewEncoder(w).Encode(v)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if r.PathValue("id") != s.id {
		http.NotFound(w, r)
		return
	}
	if s.shutdown.Load() {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket accept failed", "error", err)
		return
	}
	t := transport.NewWebSocket(conn, transport.WebSocketOptions{Logger: s.logger})

	s.wg.Add(1)
	defer s.wg.Done()
	s.serveSession(t)
}

// serveSession reads commands sequentially and serves each one in its own goroutine,
// so a slow handler does not hold up later commands on the same session.
func (s *Server) serveSession(t transport.Transport) {
	id := s.nextSession.Add(1)
	s.sessions.Store(id, t)
	s.logger.Debug("session opened", "session", id)
	defer func() {
		s.sessions.Delete(id)
		t.Close()
		s.logger.Debug("session closed", "session", id)
	}()

	for {
		data, err := t.Receive(s.ctx)
		if err != nil {
			return
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleRequest(t, data)
		}()
	}
}

func (s *Server) handleRequest(t transport.Transport, data []byte) {
	var msg message.Message
	if err := s.codec.Decode(data, &msg); err != nil {
		s.logger.Warn("dropping undecodable frame", "error", err)
		return
	}
	if msg.ID == nil {
		s.logger.Warn("dropping frame without id", "method", msg.Method)
		return
	}

	cmd := &message.Command{ID: *msg.ID, Method: msg.Method, Params: msg.Params}
	resp, err := s.chain()(s.ctx, cmd)
	if err != nil {
		resp = errorResponse(cmd.ID, err)
	}

	out, err := s.codec.Encode(resp)
	if err != nil {
		s.logger.Error("failed to encode response", "method", cmd.Method, "error", err)
		return
	}
	if err := t.Send(s.ctx, out); err != nil {
		s.logger.Debug("failed to send response", "method", cmd.Method, "error", err)
	}
}

// dispatch is the innermost handler of the chain: look the method up and run it.
func (s *Server) dispatch(ctx context.Context, cmd *message.Command) (*message.Message, error) {
	s.mu.RLock()
	h, ok := s.handlers[cmd.Method]
	s.mu.RUnlock()
	if !ok {
		return nil, &message.RPCError{Code: CodeMethodNotFound, Message: fmt.Sprintf("'%s' wasn't found", cmd.Method)}
	}

	result, err := h(ctx, cmd.Params)
	if err != nil {
		return nil, err
	}
	return message.NewResponse(cmd.ID, result)
}

func errorResponse(id int64, err error) *message.Message {
	var rpcErr *message.RPCError
	if errors.As(err, &rpcErr) {
		return &message.Message{ID: &id, Error: rpcErr}
	}
	return message.NewErrorResponse(id, CodeServerError, err.Error())
}

func invalidParams(err error) error {
	return &message.RPCError{Code: CodeInvalidParams, Message: "Invalid parameters", Data: mustJSON(err.Error())}
}

func mustJSON(s string) json.RawMessage {
	b, _ := json.Marshal(s)
	return b
}

// Advertise publishes the target in reg under name until Shutdown.
func (s *Server) Advertise(reg registry.Registry, name string, target registry.Target, ttl int64) error {
	if err := reg.Register(s.ctx, name, target, ttl); err != nil {
		return err
	}
	s.mu.Lock()
	s.registry = reg
	s.adverts = append(s.adverts, advert{name: name, id: target.ID})
	s.mu.Unlock()
	return nil
}

// Shutdown performs graceful shutdown:
//  1. Deregister advertised targets (clients stop discovering this server)
//  2. Set shutdown flag (so Accept errors are recognized as intentional)
//  3. Close listeners and open sessions
//  4. Wait for in-flight requests to finish (with timeout)
func (s *Server) Shutdown(timeout time.Duration) error {
	s.mu.Lock()
	reg, adverts, listeners := s.registry, s.adverts, s.listeners
	s.adverts, s.listeners = nil, nil
	s.mu.Unlock()

	if reg != nil {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		for _, a := range adverts {
			if err := reg.Deregister(ctx, a.name, a.id); err != nil {
				s.logger.Warn("deregister failed", "name", a.name, "target", a.id, "error", err)
			}
		}
		cancel()
	}

	s.shutdown.Store(true)
	for _, ln := range listeners {
		ln.Close()
	}
	s.cancel()
	s.sessions.Range(func(_, value any) bool {
		value.(transport.Transport).Close()
		return true
	})

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("timeout waiting for ongoing requests to finish")
	}
}
