package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/MohamedBouchiba/Travliaq-Google-Flights-Scrapper/config"
	"github.com/MohamedBouchiba/Travliaq-Google-Flights-Scrapper/utils"
)

// Page is the set of browser primitives the navigator and extractor need.
type Page interface {
	Navigate(ctx context.Context, url string) error
	Location(ctx context.Context) (string, error)
	// Call invokes the JavaScript function expression fn with JSON-encoded
	// args and decodes its return value into out (which may be nil).
	Call(ctx context.Context, fn string, out any, args ...any) error
}

// Session owns one Chrome process and one tab. It implements Page.
type Session struct {
	ctx         context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
	timeout     time.Duration
	userAgent   string
	strategy    utils.AllocatorStrategy
	log         *slog.Logger

	closeOnce sync.Once
}

// OpenSession starts a browser with a random user agent. The stealth
// allocator is tried first and the plain one second; if both fail the
// returned DriverInitError carries both causes.
func OpenSession(parent context.Context, cfg config.Config, logger *slog.Logger) (*Session, error) {
	userAgent := cfg.RandomUserAgent()

	var errs []error
	for _, strategy := range []utils.AllocatorStrategy{utils.StealthAllocator, utils.PlainAllocator} {
		s, err := openWith(parent, cfg, userAgent, strategy, logger)
		if err == nil {
			logger.Info("browser started", "strategy", strategy.String(), "headless", cfg.Headless)
			return s, nil
		}
		logger.Warn("browser start failed", "strategy", strategy.String(), "err", err)
		errs = append(errs, fmt.Errorf("%s allocator: %w", strategy, err))
	}
	return nil, &DriverInitError{Err: errors.Join(errs...)}
}

func openWith(parent context.Context, cfg config.Config, userAgent string, strategy utils.AllocatorStrategy, logger *slog.Logger) (*Session, error) {
	allocCtx, cancelAlloc := utils.NewAllocator(parent, cfg, userAgent, strategy)

	tabCtx, cancelTab := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...interface{}) {
			logger.Debug(fmt.Sprintf(format, args...))
		}),
	)

	var setup []chromedp.Action
	if strategy == utils.StealthAllocator {
		setup = append(setup,
			chromedp.ActionFunc(func(ctx context.Context) error {
				_, err := page.AddScriptToEvaluateOnNewDocument(stealthJS).Do(ctx)
				return err
			}),
			emulation.SetLocaleOverride().WithLocale(strings.ReplaceAll(cfg.Locale, "-", "_")),
			emulation.SetTimezoneOverride(cfg.Timezone),
		)
	}

	// The first Run launches the browser process.
	if err := chromedp.Run(tabCtx, setup...); err != nil {
		cancelTab()
		cancelAlloc()
		return nil, err
	}

	timeout := cfg.PageTimeout
	if timeout <= 0 {
		timeout = 25 * time.Second
	}
	return &Session{
		ctx:         tabCtx,
		cancelTab:   cancelTab,
		cancelAlloc: cancelAlloc,
		timeout:     timeout,
		userAgent:   userAgent,
		strategy:    strategy,
		log:         logger,
	}, nil
}

// run executes actions on the tab, bounded by the page timeout and by ctx.
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

func (s *Session) Navigate(ctx context.Context, url string) error {
	if err := s.run(ctx, chromedp.Navigate(url)); err != nil {
		return &PageLoadError{URL: url, Err: err}
	}
	return nil
}

func (s *Session) Location(ctx context.Context) (string, error) {
	var loc string
	if err := s.run(ctx, chromedp.Location(&loc)); err != nil {
		return "", fmt.Errorf("read location: %w", err)
	}
	return loc, nil
}

func (s *Session) Call(ctx context.Context, fn string, out any, args ...any) error {
	encoded := make([]string, len(args))
	for i, arg := range args {
		b, err := json.Marshal(arg)
		if err != nil {
			return fmt.Errorf("encode script argument %d: %w", i, err)
		}
		encoded[i] = string(b)
	}
	script := "(" + fn + ")(" + strings.Join(encoded, ", ") + ")"
	return s.run(ctx, chromedp.Evaluate(script, out))
}

// Screenshot writes a full-page PNG to path.
func (s *Session) Screenshot(ctx context.Context, path string) error {
	var buf []byte
	if err := s.run(ctx, chromedp.FullScreenshot(&buf, 90)); err != nil {
		return fmt.Errorf("capture screenshot: %w", err)
	}
	return os.WriteFile(path, buf, 0o644)
}

// HTML returns the outer HTML of the first element matching sel.
func (s *Session) HTML(ctx context.Context, sel string) (string, error) {
	var html string
	if err := s.run(ctx, chromedp.OuterHTML(sel, &html, chromedp.ByQuery, chromedp.AtLeast(0))); err != nil {
		return "", fmt.Errorf("read html of %s: %w", sel, err)
	}
	return html, nil
}

// SaveDebugArtifacts stores a screenshot and the calendar dialog markup
// under dir, named after label. Failures are logged, never returned.
func (s *Session) SaveDebugArtifacts(ctx context.Context, dir, label string) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		s.log.Warn("create screenshot dir", "dir", dir, "err", err)
		return
	}
	stamp := time.Now().Format("20060102_150405")
	base := filepath.Join(dir, fmt.Sprintf("%s_%s", label, stamp))

	if err := s.Screenshot(ctx, base+".png"); err != nil {
		s.log.Warn("save screenshot", "err", err)
	} else {
		s.log.Info("screenshot saved", "path", base+".png")
	}

	html, err := s.HTML(ctx, DialogSelector)
	if err != nil || html == "" {
		return
	}
	if err := os.WriteFile(base+".html", []byte(html), 0o644); err != nil {
		s.log.Warn("save dialog snapshot", "err", err)
	}
}

// Close releases the tab and the browser process. It is safe to call more
// than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.cancelTab()
		s.cancelAlloc()
		s.log.Debug("browser closed", "strategy", s.strategy.String())
	})
}
