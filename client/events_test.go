package client

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chrome-remote/errs"
	"chrome-remote/message"
)

func TestDispatchInRegistrationOrder(t *testing.T) {
	ft := newFakeTransport()
	c := New(ft)

	var order []string
	c.On("X", func(ctx context.Context, params message.Payload) error {
		order = append(order, "H1")
		return nil
	})
	c.On("X", func(ctx context.Context, params message.Payload) error {
		order = append(order, "H2")
		return nil
	})
	ft.push(`{"method":"X","params":{}}`)

	_, err := c.ListenUntil(testCtx(t), func() bool { return true })
	require.NoError(t, err)
	assert.Equal(t, []string{"H1", "H2"}, order)
}

func TestDispatchBeforeMatchedReturn(t *testing.T) {
	ft := newFakeTransport()
	c := New(ft)

	dispatched := 0
	c.On("Page.loadEventFired", func(ctx context.Context, params message.Payload) error {
		dispatched++
		return nil
	})
	ft.push(`{"method":"Page.loadEventFired","params":{"timestamp":12.5}}`)

	params, err := c.WaitFor(testCtx(t), WaitOptions{Event: "Page.loadEventFired"})
	require.NoError(t, err)
	assert.Equal(t, 1, dispatched)

	ts, ok := params.GetFloat("timestamp")
	require.True(t, ok)
	assert.Equal(t, 12.5, ts)
}

func TestEventWithoutHandlersIsNoop(t *testing.T) {
	ft := newFakeTransport()
	c := New(ft)
	ft.push(`{"method":"Network.dataReceived","params":{}}`)

	msg, err := c.ListenUntil(testCtx(t), func() bool { return true })
	require.NoError(t, err)
	assert.Equal(t, "Network.dataReceived", msg.Method)

	// Looking up unknown events neither fails nor registers anything.
	assert.Nil(t, c.Handlers("Network.dataReceived"))
	assert.Nil(t, c.Handlers("Never.registered"))
	assert.Zero(t, c.handlers.events())
}

func TestListenUntilStrictArrivalOrder(t *testing.T) {
	ft := newFakeTransport()
	c := New(ft)

	var seen []string
	record := func(ctx context.Context, params message.Payload) error {
		name, _ := params.GetString("name")
		seen = append(seen, name)
		return nil
	}
	c.On("A", record)
	c.On("B", record)

	ft.push(
		`{"method":"A","params":{"name":"first"}}`,
		`{"method":"B","params":{"name":"second"}}`,
		`{"id":99,"result":{}}`,
		`{"method":"A","params":{"name":"fourth"}}`,
	)

	reads := 0
	msg, err := c.ListenUntil(testCtx(t), func() bool {
		reads++
		return reads == 3
	})
	require.NoError(t, err)
	require.True(t, msg.HasID(99))
	assert.Equal(t, []string{"first", "second"}, seen)

	// The fourth message is still there for the next read.
	msg, err = c.ListenUntil(testCtx(t), func() bool { return true })
	require.NoError(t, err)
	assert.Equal(t, "A", msg.Method)
	assert.Equal(t, []string{"first", "second", "fourth"}, seen)
}

func TestWaitForTimeout(t *testing.T) {
	ft := newFakeTransport()
	c := New(ft)
	ft.push(`{"method":"Other","params":{}}`)

	start := time.Now()
	_, err := c.WaitFor(testCtx(t), WaitOptions{Event: "Never", Timeout: 50 * time.Millisecond})
	elapsed := time.Since(start)

	require.ErrorIs(t, err, errs.ErrTimeout)
	assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond)
	assert.Less(t, elapsed, time.Second)

	var transportErr *errs.TransportError
	assert.False(t, errors.As(err, &transportErr))

	// The client is still usable after a timeout.
	ft.push(`{"method":"Never","params":{"late":true}}`)
	params, err := c.WaitForEvent(testCtx(t), "Never", time.Second)
	require.NoError(t, err)
	late, _ := params.GetBool("late")
	assert.True(t, late)
}

func TestWaitForCallerCancelIsNotTimeout(t *testing.T) {
	c := New(newFakeTransport())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := c.WaitFor(ctx, WaitOptions{Event: "Never", Timeout: time.Second})
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, errors.Is(err, errs.ErrTimeout))
}

func TestWaitForMatch(t *testing.T) {
	ft := newFakeTransport()
	c := New(ft)
	ft.push(
		`{"id":1,"result":{"requestId":"R2"}}`,
		`{"method":"Network.responseReceived","params":{"requestId":"R1"}}`,
		`{"method":"Network.responseReceived","params":{"requestId":"R2","status":200}}`,
	)

	params, err := c.WaitFor(testCtx(t), WaitOptions{
		Match: func(method string, params message.Payload) bool {
			id, _ := params.GetString("requestId")
			return method == "Network.responseReceived" && id == "R2"
		},
	})
	require.NoError(t, err)
	status, _ := params.GetInt("status")
	assert.Equal(t, int64(200), status)
}

func TestWaitForEventTakesPrecedence(t *testing.T) {
	ft := newFakeTransport()
	c := New(ft)
	ft.push(`{"method":"A","params":{}}`, `{"method":"B","params":{"which":"B"}}`)

	params, err := c.WaitFor(testCtx(t), WaitOptions{
		Event: "B",
		Match: func(string, message.Payload) bool { return true },
	})
	require.NoError(t, err)
	which, _ := params.GetString("which")
	assert.Equal(t, "B", which)
}

func TestWaitForNoCondition(t *testing.T) {
	c := New(newFakeTransport())
	_, err := c.WaitFor(testCtx(t), WaitOptions{Timeout: time.Second})
	require.ErrorIs(t, err, errs.ErrNoCondition)
}

func TestHandlerErrorsIsolated(t *testing.T) {
	ft := newFakeTransport()
	c := New(ft)

	later := 0
	c.On("X", func(ctx context.Context, params message.Payload) error {
		return errors.New("boom")
	})
	c.On("X", func(ctx context.Context, params message.Payload) error {
		panic("handler bug")
	})
	c.On("X", func(ctx context.Context, params message.Payload) error {
		later++
		return nil
	})
	ft.push(`{"method":"X","params":{}}`, `{"method":"Y","params":{}}`)

	_, err := c.WaitForEvent(testCtx(t), "Y", time.Second)
	require.NoError(t, err)
	assert.Equal(t, 1, later)
}

func TestHandlerErrorsPropagated(t *testing.T) {
	ft := newFakeTransport()
	c := New(ft, WithHandlerErrorPolicy(PropagateHandlerErrors))

	later := 0
	c.On("X", func(ctx context.Context, params message.Payload) error {
		return io.ErrUnexpectedEOF
	})
	c.On("X", func(ctx context.Context, params message.Payload) error {
		later++
		return nil
	})
	ft.push(`{"method":"X","params":{}}`, `{"method":"Y","params":{}}`)

	_, err := c.WaitForEvent(testCtx(t), "Y", time.Second)
	var handlerErr *errs.HandlerError
	require.ErrorAs(t, err, &handlerErr)
	assert.Equal(t, "X", handlerErr.Event)
	assert.Equal(t, 0, handlerErr.Index)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Equal(t, 1, later, "remaining handlers still run")

	// The wait aborted before Y; Y is the next message.
	msg, err := c.ListenUntil(testCtx(t), func() bool { return true })
	require.NoError(t, err)
	assert.Equal(t, "Y", msg.Method)
}

func TestListenStopsOnTransportFailure(t *testing.T) {
	ft := newFakeTransport()
	c := New(ft)

	received := 0
	c.On("Tick", func(ctx context.Context, params message.Payload) error {
		received++
		return nil
	})
	ft.push(`{"method":"Tick","params":{}}`, `{"method":"Tick","params":{}}`)
	close(ft.inbound)

	err := c.Listen(testCtx(t))
	var transportErr *errs.TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, 2, received)
}

func TestCloseUnblocksListen(t *testing.T) {
	c := New(newFakeTransport())

	done := make(chan error, 1)
	go func() { done <- c.Listen(context.Background()) }()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, c.Close())

	select {
	case err := <-done:
		assert.ErrorIs(t, err, errs.ErrClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("Listen did not return after Close")
	}
}

func TestHandlerRegisteredDuringDispatch(t *testing.T) {
	ft := newFakeTransport()
	c := New(ft)

	lateCalls := 0
	c.On("X", func(ctx context.Context, params message.Payload) error {
		c.On("X", func(ctx context.Context, params message.Payload) error {
			lateCalls++
			return nil
		})
		return nil
	})
	ft.push(`{"method":"X","params":{}}`, `{"method":"X","params":{}}`)

	reads := 0
	_, err := c.ListenUntil(testCtx(t), func() bool {
		reads++
		return reads == 2
	})
	require.NoError(t, err)
	// Registered during the first event, so it sees only the second.
	assert.Equal(t, 1, lateCalls)
	assert.Len(t, c.Handlers("X"), 3)
}
