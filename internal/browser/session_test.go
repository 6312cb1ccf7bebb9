package browser

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSession_Defaults(t *testing.T) {
	s := NewSession(Config{})
	defer s.Close()

	assert.Equal(t, defaultTimeout, s.config.Timeout)
	assert.Equal(t, defaultSettle, s.config.Settle)
	assert.NotNil(t, s.logger)
	assert.Nil(t, s.browserCtx, "browser must not start before first use")
}

func TestAllocatorOptions(t *testing.T) {
	s := &Session{config: Config{NoSandbox: true, UserAgent: "price-scout-test"}}
	withFlags := s.allocatorOptions()

	s.config = Config{}
	plain := s.allocatorOptions()

	assert.Len(t, withFlags, len(plain)+2)
}

func TestSession_EvaluateAfterClose(t *testing.T) {
	s := NewSession(Config{})
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	var out string
	err := s.Evaluate(context.Background(), "about:blank", "'x'", &out)
	assert.ErrorIs(t, err, ErrSessionClosed)
}

func TestSession_RestartsDeadBrowser(t *testing.T) {
	s := NewSession(Config{})
	defer s.Close()

	var started []context.Context
	var cancelled int
	s.start = func(alloc context.Context) (context.Context, context.CancelFunc, error) {
		ctx, cancel := context.WithCancel(alloc)
		started = append(started, ctx)
		return ctx, func() { cancelled++; cancel() }, nil
	}

	first, err := s.browser()
	require.NoError(t, err)
	again, err := s.browser()
	require.NoError(t, err)
	assert.True(t, first == again, "live browser is reused")
	require.Len(t, started, 1)

	// chromedp cancels the browser context when Chrome dies
	s.browserCancel()
	cancelled = 0

	second, err := s.browser()
	require.NoError(t, err)
	assert.True(t, first != second, "a new browser is started")
	assert.NoError(t, second.Err())
	assert.Len(t, started, 2)
	assert.Equal(t, 1, cancelled, "dead browser is released")
}

func TestSession_StartFailureIsRetried(t *testing.T) {
	s := NewSession(Config{})
	defer s.Close()

	calls := 0
	s.start = func(alloc context.Context) (context.Context, context.CancelFunc, error) {
		calls++
		if calls == 1 {
			return nil, nil, errors.New("chrome not found")
		}
		ctx, cancel := context.WithCancel(alloc)
		return ctx, cancel, nil
	}

	_, err := s.browser()
	require.Error(t, err)
	assert.Nil(t, s.browserCtx)

	ctx, err := s.browser()
	require.NoError(t, err)
	assert.NotNil(t, ctx)
	assert.Equal(t, 2, calls)
}

// Requires a local Chrome; enabled with BROWSER_TEST=1
func TestSession_Evaluate(t *testing.T) {
	if os.Getenv("BROWSER_TEST") == "" {
		t.Skip("set BROWSER_TEST=1 to run against a local Chrome")
	}

	s := NewSession(Config{NoSandbox: true, Settle: 100 * time.Millisecond})
	defer s.Close()

	var title string
	err := s.Evaluate(context.Background(),
		"data:text/html,<title>scout</title><p>hi</p>",
		"document.title", &title)
	require.NoError(t, err)
	assert.Equal(t, "scout", title)
}
