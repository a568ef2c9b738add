package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chrome-remote/errs"
	"chrome-remote/message"
	"chrome-remote/middleware"
)

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestNextIDStartsAtOneAndIncreases(t *testing.T) {
	c := New(newFakeTransport())

	prev := int64(0)
	for i := 0; i < 100; i++ {
		id := c.NextID()
		require.Greater(t, id, prev)
		prev = id
	}
	assert.Equal(t, int64(100), prev)
}

func TestNextIDConcurrentUnique(t *testing.T) {
	c := New(newFakeTransport())

	var mu sync.Mutex
	seen := make(map[int64]bool)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				id := c.NextID()
				mu.Lock()
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Len(t, seen, 1600)
}

func TestCallIDsDistinctAndIncreasing(t *testing.T) {
	ft := newFakeTransport()
	ft.autoRespond(t, func(message.Command) string { return `{}` })
	c := New(ft)
	ctx := testCtx(t)

	for i := 0; i < 10; i++ {
		_, err := c.Call(ctx, "Runtime.enable", nil)
		require.NoError(t, err)
	}

	cmds := ft.sentCommands(t)
	require.Len(t, cmds, 10)
	for i := 1; i < len(cmds); i++ {
		assert.Greater(t, cmds[i].ID, cmds[i-1].ID)
	}
	assert.Equal(t, int64(1), cmds[0].ID)
	assert.Equal(t, "Runtime.enable", cmds[0].Method)
	assert.JSONEq(t, `{}`, string(cmds[0].Params))
}

func TestCallCorrelatesResponse(t *testing.T) {
	ft := newFakeTransport()
	c := New(ft)
	c.lastID.Store(1) // the next command goes out as id 2

	var events []string
	c.On("Evt", func(ctx context.Context, params message.Payload) error {
		events = append(events, params.String())
		return nil
	})

	ft.push(
		`{"id":1,"result":{"v":"A"}}`,
		`{"method":"Evt","params":{"p":1}}`,
		`{"id":2,"result":{"v":"B"}}`,
	)

	result, err := c.Call(testCtx(t), "Page.navigate", map[string]string{"url": "about:blank"})
	require.NoError(t, err)

	v, ok := result.GetString("v")
	require.True(t, ok)
	assert.Equal(t, "B", v)
	assert.Equal(t, []string{`{"p":1}`}, events)

	cmds := ft.sentCommands(t)
	require.Len(t, cmds, 1)
	assert.Equal(t, int64(2), cmds[0].ID)
	assert.JSONEq(t, `{"url":"about:blank"}`, string(cmds[0].Params))
}

func TestCallCommandError(t *testing.T) {
	ft := newFakeTransport()
	c := New(ft)
	ft.push(`{"id":1,"error":{"code":-1,"message":"no such node"}}`)

	result, err := c.Call(testCtx(t), "DOM.describeNode", nil)
	require.Error(t, err)
	assert.True(t, result.IsEmpty())

	var cmdErr *errs.CommandError
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, int64(1), cmdErr.ID)
	assert.Equal(t, "DOM.describeNode", cmdErr.Method)
	assert.Equal(t, -1, cmdErr.Err.Code)

	var transportErr *errs.TransportError
	assert.False(t, errors.As(err, &transportErr))
}

func TestCallIntoAndCallAs(t *testing.T) {
	ft := newFakeTransport()
	ft.autoRespond(t, func(message.Command) string {
		return `{"result":{"type":"number","value":2}}`
	})
	c := New(ft)
	ctx := testCtx(t)

	type remoteObject struct {
		Type  string  `json:"type"`
		Value float64 `json:"value"`
	}
	type evaluateReply struct {
		Result remoteObject `json:"result"`
	}

	var reply evaluateReply
	require.NoError(t, c.CallInto(ctx, "Runtime.evaluate", map[string]string{"expression": "1+1"}, &reply))
	assert.Equal(t, "number", reply.Result.Type)
	assert.Equal(t, 2.0, reply.Result.Value)

	typed, err := CallAs[evaluateReply](ctx, c, "Runtime.evaluate", map[string]string{"expression": "1+1"})
	require.NoError(t, err)
	assert.Equal(t, reply, typed)
}

func TestCallDecodeFailure(t *testing.T) {
	ft := newFakeTransport()
	c := New(ft)
	ft.push(`{"id":1,"result":`)

	_, err := c.Call(testCtx(t), "Page.enable", nil)
	var decodeErr *errs.DecodeError
	require.ErrorAs(t, err, &decodeErr)
}

func TestCallTransportFailure(t *testing.T) {
	ft := newFakeTransport()
	c := New(ft)
	close(ft.inbound)

	_, err := c.Call(testCtx(t), "Page.enable", nil)
	var transportErr *errs.TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, "receive", transportErr.Op)

	c.Close()
	_, err = c.Call(testCtx(t), "Page.enable", nil)
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, "send", transportErr.Op)
	assert.ErrorIs(t, err, errs.ErrClosed)
}

func TestCallContextCancelled(t *testing.T) {
	c := New(newFakeTransport())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := c.Call(ctx, "Page.enable", nil)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	var transportErr *errs.TransportError
	assert.False(t, errors.As(err, &transportErr))
	assert.False(t, errors.Is(err, errs.ErrTimeout))
}

func TestConcurrentCallsGetOwnResponses(t *testing.T) {
	ft := newFakeTransport()
	ft.autoRespond(t, func(cmd message.Command) string {
		return fmt.Sprintf(`{"echo":%s}`, cmd.Params)
	})
	c := New(ft)
	ctx := testCtx(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			result, err := c.Call(ctx, "Test.echo", map[string]int{"n": n})
			if !assert.NoError(t, err) {
				return
			}
			echo, _ := result.Field("echo")
			got, _ := echo.GetInt("n")
			assert.Equal(t, int64(n), got)
		}(i)
	}
	wg.Wait()
}

func TestCallMiddlewareTimeout(t *testing.T) {
	c := New(newFakeTransport(), WithMiddleware(middleware.Timeout(30*time.Millisecond)))

	_, err := c.Call(testCtx(t), "Page.enable", nil)
	require.ErrorIs(t, err, errs.ErrTimeout)
}

func TestResponseIsNeverDispatchedAsEvent(t *testing.T) {
	ft := newFakeTransport()
	c := New(ft)

	calls := 0
	c.On("Page.navigate", func(ctx context.Context, params message.Payload) error {
		calls++
		return nil
	})
	ft.push(`{"id":1,"method":"Page.navigate","result":{"frameId":"F"}}`)

	result, err := c.Call(testCtx(t), "Page.navigate", nil)
	require.NoError(t, err)
	frameID, _ := result.GetString("frameId")
	assert.Equal(t, "F", frameID)
	assert.Zero(t, calls)
}
