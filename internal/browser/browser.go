// Package browser provides Chrome/Chromedp initialization, the driver
// capabilities the rest of the tool consumes, and browser session lifecycle
// management.
package browser

import (
	"context"
	"fmt"
	"time"

	cdpbrowser "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// Config holds browser configuration options.
type Config struct {
	ExecPath     string
	DownloadDir  string
	Headless     bool
	BlockImages  bool
	WindowWidth  int
	WindowHeight int
	NavTimeout   time.Duration
	OpTimeout    time.Duration
	Log          *zap.Logger
}

// DefaultConfig returns default browser configuration.
func DefaultConfig() Config {
	return Config{
		Headless:     true,
		BlockImages:  true,
		WindowWidth:  1920,
		WindowHeight: 1080,
		NavTimeout:   60 * time.Second,
		OpTimeout:    30 * time.Second,
	}
}

// Session owns one running browser and exposes the capabilities the clicker
// and scraper need: navigate, evaluate, native click, pointer click.
type Session struct {
	cfg         Config
	ctx         context.Context
	allocCancel context.CancelFunc
	ctxCancel   context.CancelFunc
	log         *zap.Logger
}

// New launches a browser with the given configuration and routes its
// downloads into cfg.DownloadDir.
func New(cfg Config) (*Session, error) {
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.ExecPath(cfg.ExecPath),
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.WindowSize(cfg.WindowWidth, cfg.WindowHeight),
	)
	if cfg.BlockImages {
		// Images add nothing to a download page and slow rendering down.
		opts = append(opts, chromedp.Flag("blink-settings", "imagesEnabled=false"))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	ctx, ctxCancel := chromedp.NewContext(allocCtx)

	s := &Session{
		cfg:         cfg,
		ctx:         ctx,
		allocCancel: allocCancel,
		ctxCancel:   ctxCancel,
		log:         log,
	}

	// Start the process eagerly so bootstrap failures surface here, not on
	// the first target.
	if err := chromedp.Run(ctx); err != nil {
		s.Close()
		return nil, fmt.Errorf("start browser: %w", err)
	}

	if err := s.configureDownloads(); err != nil {
		s.Close()
		return nil, err
	}

	log.Info("browser session started",
		zap.String("exec", cfg.ExecPath),
		zap.Bool("headless", cfg.Headless),
		zap.String("download_dir", cfg.DownloadDir))
	return s, nil
}

// configureDownloads tells the browser to save downloads into the
// destination directory without prompting.
func (s *Session) configureDownloads() error {
	err := chromedp.Run(s.ctx,
		cdpbrowser.SetDownloadBehavior(cdpbrowser.SetDownloadBehaviorBehaviorAllow).
			WithDownloadPath(s.cfg.DownloadDir).
			WithEventsEnabled(true),
	)
	if err != nil {
		return fmt.Errorf("configure download directory: %w", err)
	}
	return nil
}

// Close shuts the browser down.
func (s *Session) Close() {
	if s.ctxCancel != nil {
		s.ctxCancel()
	}
	if s.allocCancel != nil {
		s.allocCancel()
	}
}

// run executes chromedp actions against this session's browser, bounded by
// the given timeout and by the caller's context.
func (s *Session) run(parent context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if err := parent.Err(); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(parent, cancel)
	defer stop()
	return chromedp.Run(ctx, actions...)
}

// Navigate loads url and gives the page a moment to settle.
func (s *Session) Navigate(ctx context.Context, url string) error {
	if err := s.run(ctx, s.cfg.NavTimeout,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(time.Second),
	); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

// Eval runs js in the page and unmarshals its result into out. Pass a nil
// out to discard the result.
func (s *Session) Eval(ctx context.Context, js string, out any) error {
	return s.run(ctx, s.cfg.OpTimeout, chromedp.Evaluate(js, out))
}

// Click waits for selector to become visible and clicks it natively.
func (s *Session) Click(ctx context.Context, selector string) error {
	return s.run(ctx, s.cfg.OpTimeout,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Click(selector, chromedp.ByQuery),
	)
}

// MouseClick dispatches a raw left click at viewport coordinates.
func (s *Session) MouseClick(ctx context.Context, x, y float64) error {
	return s.run(ctx, s.cfg.OpTimeout, chromedp.MouseClickXY(x, y, chromedp.ButtonLeft))
}

// CurrentURL returns the page's current location.
func (s *Session) CurrentURL(ctx context.Context) (string, error) {
	var url string
	if err := s.run(ctx, s.cfg.OpTimeout, chromedp.Location(&url)); err != nil {
		return "", err
	}
	return url, nil
}
