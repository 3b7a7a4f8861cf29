package utils

import (
	"context"

	"github.com/chromedp/chromedp"

	"github.com/MohamedBouchiba/Travliaq-Google-Flights-Scrapper/config"
)

// AllocatorStrategy selects how much of the Chrome command line is tuned.
type AllocatorStrategy int

const (
	// StealthAllocator disables automation hints and pins locale and window size.
	StealthAllocator AllocatorStrategy = iota
	// PlainAllocator uses chromedp defaults only. It is the fallback when the
	// tuned command line fails to start a browser.
	PlainAllocator
)

func (s AllocatorStrategy) String() string {
	if s == PlainAllocator {
		return "plain"
	}
	return "stealth"
}

// NewAllocator creates a Chrome exec allocator context from the given Config.
func NewAllocator(parent context.Context, cfg config.Config, userAgent string, strategy AllocatorStrategy) (context.Context, context.CancelFunc) {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-gpu", true),
	)

	if strategy == StealthAllocator {
		opts = append(opts,
			chromedp.Flag("disable-blink-features", "AutomationControlled"),
			chromedp.Flag("enable-automation", false),
			chromedp.Flag("lang", cfg.Locale),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.WindowSize(1920, 1080),
		)
	}
	if userAgent != "" {
		opts = append(opts, chromedp.UserAgent(userAgent))
	}
	if cfg.UseProxy && cfg.ProxyURL != "" {
		opts = append(opts, chromedp.ProxyServer(cfg.ProxyURL))
	}

	return chromedp.NewExecAllocator(parent, opts...)
}
