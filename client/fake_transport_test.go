package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"testing"

	"chrome-remote/errs"
	"chrome-remote/message"
)

// fakeTransport replays queued inbound frames and records outbound ones.
type fakeTransport struct {
	inbound chan []byte
	sentc   chan []byte

	mu   sync.Mutex
	sent [][]byte

	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		inbound: make(chan []byte, 64),
		sentc:   make(chan []byte, 64),
		closed:  make(chan struct{}),
	}
}

func (f *fakeTransport) Send(ctx context.Context, data []byte) error {
	select {
	case <-f.closed:
		return errs.ErrClosed
	default:
	}
	f.mu.Lock()
	f.sent = append(f.sent, data)
	f.mu.Unlock()
	select {
	case f.sentc <- data:
	default:
	}
	return nil
}

func (f *fakeTransport) Receive(ctx context.Context) ([]byte, error) {
	select {
	case data, ok := <-f.inbound:
		if !ok {
			return nil, io.EOF
		}
		return data, nil
	case <-f.closed:
		return nil, errs.ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *fakeTransport) Close() error {
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

// push queues inbound frames in order.
func (f *fakeTransport) push(frames ...string) {
	for _, fr := range frames {
		f.inbound <- []byte(fr)
	}
}

// sentCommands decodes everything sent so far.
func (f *fakeTransport) sentCommands(t *testing.T) []message.Command {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	cmds := make([]message.Command, len(f.sent))
	for i, data := range f.sent {
		if err := json.Unmarshal(data, &cmds[i]); err != nil {
			t.Fatalf("sent frame %d is not a command: %v", i, err)
		}
	}
	return cmds
}

// autoRespond answers every command with result(cmd) until the test ends.
func (f *fakeTransport) autoRespond(t *testing.T, result func(cmd message.Command) string) {
	stop := make(chan struct{})
	t.Cleanup(func() { close(stop) })
	go func() {
		for {
			select {
			case data := <-f.sentc:
				var cmd message.Command
				if err := json.Unmarshal(data, &cmd); err != nil {
					continue
				}
				f.inbound <- []byte(fmt.Sprintf(`{"id":%d,"result":%s}`, cmd.ID, result(cmd)))
			case <-stop:
				return
			}
		}
	}()
}
