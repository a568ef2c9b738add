package client

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chrome-remote/config"
	"chrome-remote/errs"
	"chrome-remote/logger"
	"chrome-remote/message"
)

func TestFromConfigCommandTimeout(t *testing.T) {
	cfg := config.Defaults().Client
	cfg.CommandTimeout = 30 * time.Millisecond

	ft := newFakeTransport()
	c := New(ft, FromConfig(cfg, logger.Discard())...)

	_, err := c.Call(testCtx(t), "Page.enable", nil)
	require.ErrorIs(t, err, errs.ErrTimeout)
}

func TestFromConfigRetriesTimeouts(t *testing.T) {
	cfg := config.Defaults().Client
	cfg.CommandTimeout = 20 * time.Millisecond
	cfg.Retries = 2
	cfg.RetryDelay = time.Millisecond

	ft := newFakeTransport()
	c := New(ft, FromConfig(cfg, logger.Discard())...)

	_, err := c.Call(testCtx(t), "Page.enable", nil)
	require.ErrorIs(t, err, errs.ErrTimeout)

	cmds := ft.sentCommands(t)
	require.Len(t, cmds, 3)
	assert.Equal(t, []int64{1, 2, 3}, []int64{cmds[0].ID, cmds[1].ID, cmds[2].ID})
}

func TestFromConfigHandlerPolicy(t *testing.T) {
	cfg := config.Defaults().Client
	cfg.HandlerErrors = "propagate"

	ft := newFakeTransport()
	c := New(ft, FromConfig(cfg, logger.Discard())...)
	c.On("X", func(ctx context.Context, params message.Payload) error {
		return errors.New("bad event")
	})
	ft.push(`{"method":"X","params":{}}`)

	_, err := c.WaitForEvent(testCtx(t), "Y", time.Second)
	var handlerErr *errs.HandlerError
	require.ErrorAs(t, err, &handlerErr)
}
