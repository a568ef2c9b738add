package errs

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"chrome-remote/message"
)

func TestErrorsUnwrap(t *testing.T) {
	te := fmt.Errorf("call: %w", &TransportError{Op: "receive", Err: io.EOF})
	assert.ErrorIs(t, te, io.EOF)

	var transportErr *TransportError
	assert.ErrorAs(t, te, &transportErr)
	assert.Equal(t, "receive", transportErr.Op)

	ce := &CommandError{Method: "Page.navigate", ID: 3, Err: &message.RPCError{Code: -1, Message: "bad url"}}
	var rpcErr *message.RPCError
	assert.ErrorAs(t, ce, &rpcErr)
	assert.Equal(t, -1, rpcErr.Code)
	assert.Contains(t, ce.Error(), "Page.navigate")

	he := &HandlerError{Event: "Page.frameNavigated", Index: 1, Err: io.ErrUnexpectedEOF}
	assert.ErrorIs(t, he, io.ErrUnexpectedEOF)
}

func TestDecodeErrorTruncatesData(t *testing.T) {
	de := &DecodeError{Data: []byte(strings.Repeat("x", 500)), Err: errors.New("bad")}
	assert.Less(t, len(de.Error()), 200)
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(fmt.Errorf("wrap: %w", ErrTimeout)))
	assert.True(t, Retryable(ErrRateLimited))
	assert.False(t, Retryable(&TransportError{Op: "send", Err: io.EOF}))
	assert.False(t, Retryable(&CommandError{Err: &message.RPCError{}}))
	assert.False(t, Retryable(nil))
}
