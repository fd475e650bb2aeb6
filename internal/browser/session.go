// Package browser drives a headless Chrome through chromedp. It snapshots
// media elements on a loaded page, records live elements, and performs
// saves from inside an isolated tab.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/chromedp/chromedp"

	"vidgrab/internal/config"
	"vidgrab/internal/download"
	"vidgrab/internal/media"
)

// ErrDisabled is returned by New when the browser is switched off.
var ErrDisabled = errors.New("browser disabled by configuration")

// ErrNoPage is returned when an operation needs a loaded page.
var ErrNoPage = errors.New("no page loaded")

// Session owns one Chrome process and at most one loaded page tab.
type Session struct {
	allocCtx      context.Context
	cancelAlloc   context.CancelFunc
	browserCtx    context.Context
	cancelBrowser context.CancelFunc

	saver     download.Saver
	grace     time.Duration
	userAgent string
	logger    *slog.Logger

	mu         sync.Mutex
	pageCtx    context.Context
	cancelPage context.CancelFunc
	pageURL    string
}

// Option customises a Session.
type Option func(*Session)

// WithReleaseGrace sets how long staged download copies outlive the save.
func WithReleaseGrace(d time.Duration) Option {
	return func(s *Session) { s.grace = d }
}

// WithUserAgent overrides the browser User-Agent.
func WithUserAgent(ua string) Option {
	return func(s *Session) { s.userAgent = ua }
}

// New starts Chrome. Tabs are created lazily.
func New(ctx context.Context, cfg config.BrowserConfig, saver download.Saver, logger *slog.Logger, opts ...Option) (*Session, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Session{
		saver:  saver,
		logger: logger.With(slog.String("component", "browser")),
	}
	for _, opt := range opts {
		opt(s)
	}

	allocOpts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	allocOpts = append(allocOpts,
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("autoplay-policy", "no-user-gesture-required"),
		chromedp.Flag("mute-audio", true),
	)
	if cfg.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(cfg.ExecPath))
	}
	if s.userAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(s.userAgent))
	}

	s.allocCtx, s.cancelAlloc = chromedp.NewExecAllocator(context.WithoutCancel(ctx), allocOpts...)
	s.browserCtx, s.cancelBrowser = chromedp.NewContext(s.allocCtx,
		chromedp.WithErrorf(func(format string, args ...interface{}) {
			s.logger.Debug("chromedp", slog.String("message", fmt.Sprintf(format, args...)))
		}))

	// Run with no actions starts the browser process.
	if err := chromedp.Run(s.browserCtx); err != nil {
		s.cancelBrowser()
		s.cancelAlloc()
		return nil, fmt.Errorf("start browser: %w", err)
	}

	s.logger.Info("browser started", slog.Bool("headless", cfg.Headless))
	return s, nil
}

// Load navigates the page tab to pageURL, replacing any previous page, and
// returns a snapshot of its media elements.
func (s *Session) Load(ctx context.Context, pageURL string) (*media.PageSnapshot, error) {
	s.mu.Lock()
	if s.cancelPage != nil {
		s.cancelPage()
	}
	s.pageCtx, s.cancelPage = chromedp.NewContext(s.browserCtx)
	s.pageURL = pageURL
	pageCtx := s.pageCtx
	s.mu.Unlock()

	if err := attach(pageCtx); err != nil {
		return nil, err
	}
	runCtx, cancel := bind(pageCtx, ctx)
	defer cancel()

	if err := chromedp.Run(runCtx,
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		return nil, fmt.Errorf("load %s: %w", pageURL, err)
	}
	return s.Snapshot(ctx)
}

// Snapshot reads every <video> element and inline script of the loaded page.
func (s *Session) Snapshot(ctx context.Context) (*media.PageSnapshot, error) {
	pageCtx, err := s.page()
	if err != nil {
		return nil, err
	}
	runCtx, cancel := bind(pageCtx, ctx)
	defer cancel()

	var snap media.PageSnapshot
	if err := chromedp.Run(runCtx, chromedp.Evaluate(snapshotScript, &snap)); err != nil {
		return nil, fmt.Errorf("snapshot page: %w", err)
	}
	for _, v := range snap.Videos {
		v.Live = true
	}
	return &snap, nil
}

// Close shuts the browser down.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.cancelPage != nil {
		s.cancelPage()
		s.cancelPage = nil
		s.pageCtx = nil
	}
	s.mu.Unlock()

	err := chromedp.Cancel(s.browserCtx)
	s.cancelBrowser()
	s.cancelAlloc()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (s *Session) page() (context.Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pageCtx == nil {
		return nil, ErrNoPage
	}
	return s.pageCtx, nil
}

// attach creates the tab behind a fresh chromedp context. The context
// passed to the first Run owns the tab's event loop, so it must be the tab
// context itself and never a shorter-lived caller context.
func attach(tabCtx context.Context) error {
	if err := chromedp.Run(tabCtx); err != nil {
		return fmt.Errorf("open tab: %w", err)
	}
	return nil
}

// bind derives a context that carries the chromedp target of target and is
// cancelled when either target or caller is done.
func bind(target, caller context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(target)
	stop := context.AfterFunc(caller, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

const snapshotScript = `(() => ({
	url: location.href,
	scripts: Array.from(document.querySelectorAll('script:not([src])')).map(s => s.textContent || ''),
	videos: Array.from(document.querySelectorAll('video')).map((v, i) => ({
		index: i,
		attrs: Object.fromEntries(Array.from(v.attributes).map(a => [a.name.toLowerCase(), a.value])),
		sources: Array.from(v.querySelectorAll('source')).map(s => s.getAttribute('src') || ''),
		currentSrc: v.currentSrc || '',
		videoWidth: v.videoWidth || 0,
		videoHeight: v.videoHeight || 0,
		readyState: v.readyState || 0,
	})),
}))()`
