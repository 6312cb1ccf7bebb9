// Package browser owns the headless Chrome instance used by crawlers whose
// sources only render listings client-side.
package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

const (
	defaultTimeout = 30 * time.Second
	defaultSettle  = 2 * time.Second
)

// ErrSessionClosed is returned by Evaluate after Close
var ErrSessionClosed = errors.New("browser session closed")

// Config contains configuration for the browser session
type Config struct {
	// RemoteURL is the devtools websocket URL of a running Chrome (optional).
	// If empty, a local Chrome is launched on first use.
	RemoteURL string
	// NoSandbox runs Chrome without sandbox (required for Docker/root)
	NoSandbox bool
	UserAgent string
	// Timeout per page load
	Timeout time.Duration
	// Settle is how long to let client-side rendering run after the DOM is ready
	Settle time.Duration
	Logger *zap.Logger
}

// Evaluator renders a page and evaluates a script in it
type Evaluator interface {
	Evaluate(ctx context.Context, url, expression string, res any) error
}

// Session is a single browser process shared by all tabs. The process is
// started on the first Evaluate and released by Close.
type Session struct {
	config      Config
	logger      *zap.Logger
	allocCtx    context.Context
	allocCancel context.CancelFunc

	// start launches or attaches to a browser under the allocator
	start func(alloc context.Context) (context.Context, context.CancelFunc, error)

	mu            sync.Mutex
	browserCtx    context.Context
	browserCancel context.CancelFunc
	closed        bool
}

// NewSession creates a browser session. No browser is started yet.
func NewSession(config Config) *Session {
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}
	if config.Settle == 0 {
		config.Settle = defaultSettle
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Session{
		config: config,
		logger: logger,
	}
	s.start = s.startBrowser

	if config.RemoteURL != "" {
		s.allocCtx, s.allocCancel = chromedp.NewRemoteAllocator(context.Background(), config.RemoteURL)
	} else {
		s.allocCtx, s.allocCancel = chromedp.NewExecAllocator(context.Background(), s.allocatorOptions()...)
	}
	return s
}

func (s *Session) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("blink-settings", "imagesEnabled=false"),
		chromedp.WindowSize(1366, 900),
	)
	if s.config.NoSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}
	if s.config.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(s.config.UserAgent))
	}
	return opts
}

// browser returns the shared browser context, starting Chrome if needed.
// A browser whose context is done (crashed process, dropped devtools
// socket) is released and replaced.
func (s *Session) browser() (context.Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrSessionClosed
	}
	if s.browserCtx != nil {
		if s.browserCtx.Err() == nil {
			return s.browserCtx, nil
		}
		s.logger.Warn("Browser went away, restarting", zap.Error(context.Cause(s.browserCtx)))
		s.browserCancel()
		s.browserCtx, s.browserCancel = nil, nil
	}

	ctx, cancel, err := s.start(s.allocCtx)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Browser started", zap.Bool("remote", s.config.RemoteURL != ""))
	s.browserCtx, s.browserCancel = ctx, cancel
	return ctx, nil
}

func (s *Session) startBrowser(alloc context.Context) (context.Context, context.CancelFunc, error) {
	ctx, cancel := chromedp.NewContext(alloc,
		chromedp.WithLogf(func(format string, args ...interface{}) {
			s.logger.Debug(fmt.Sprintf(format, args...))
		}),
	)
	if err := chromedp.Run(ctx); err != nil {
		cancel()
		return nil, nil, fmt.Errorf("failed to start browser: %w", err)
	}
	return ctx, cancel, nil
}

// Evaluate opens url in a new tab, waits for the page to render and decodes
// the value of expression into res
func (s *Session) Evaluate(ctx context.Context, url, expression string, res any) error {
	browserCtx, err := s.browser()
	if err != nil {
		return err
	}

	tabCtx, cancelTab := chromedp.NewContext(browserCtx)
	defer cancelTab()
	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, s.config.Timeout)
	defer cancelTimeout()

	// tabs hang off the browser context, so follow the caller's cancellation
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	start := time.Now()
	err = chromedp.Run(tabCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(s.config.Settle),
		chromedp.Evaluate(expression, res),
	)
	if err != nil {
		if errors.Is(tabCtx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("page load timed out after %v: %w", s.config.Timeout, err)
		}
		if ctx.Err() != nil {
			return fmt.Errorf("page load cancelled: %w", ctx.Err())
		}
		return fmt.Errorf("failed to render page: %w", err)
	}

	s.logger.Debug("Page evaluated",
		zap.String("url", url),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}

// Close releases the browser process
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if s.browserCancel != nil {
		s.browserCancel()
	}
	if s.allocCancel != nil {
		s.allocCancel()
	}
	return nil
}

var _ Evaluator = (*Session)(nil)
