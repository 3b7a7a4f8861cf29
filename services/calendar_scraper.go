package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/MohamedBouchiba/Travliaq-Google-Flights-Scrapper/config"
	"github.com/MohamedBouchiba/Travliaq-Google-Flights-Scrapper/jobs"
	"github.com/MohamedBouchiba/Travliaq-Google-Flights-Scrapper/models"
	"github.com/MohamedBouchiba/Travliaq-Google-Flights-Scrapper/scraper"
	"github.com/MohamedBouchiba/Travliaq-Google-Flights-Scrapper/utils"
)

type monthFocuser interface {
	Focus(ctx context.Context, month models.MonthWindow) error
}

type monthExtractor interface {
	Extract(ctx context.Context, month models.MonthWindow) (models.PriceMap, error)
}

type debugArtifacts interface {
	SaveDebugArtifacts(ctx context.Context, dir, label string)
}

// sleep waits between page interactions. Tests replace it.
var sleep = scraper.Sleep

// ScrapeDateRange loads the calendar for req on page and collects the price
// of every day in [start, end]. Months are visited in order; a month that
// cannot be focused or read is logged and skipped. Failing to load the page
// or open the calendar aborts the whole range.
func ScrapeDateRange(ctx context.Context, page scraper.Page, req models.ScrapeRequest, start, end time.Time, cfg config.Config, logger *slog.Logger) (models.PriceMap, error) {
	route := req.Route().String()
	logger = logger.With("route", route)

	artifacts := func(label string) {
		if d, ok := page.(debugArtifacts); ok && cfg.ScreenshotOnError {
			d.SaveDebugArtifacts(ctx, cfg.ScreenshotDir, route+"_"+label)
		}
	}

	logger.Info("loading search page")
	if err := page.Navigate(ctx, scraper.SearchURL(req.Origin, req.Destination)); err != nil {
		artifacts("page_load")
		return nil, err
	}
	if err := sleep(ctx, cfg.RandomDelay()); err != nil {
		return nil, err
	}

	nav := scraper.NewNavigator(page, logger)
	if err := nav.Open(ctx); err != nil {
		artifacts("calendar_not_opened")
		return nil, err
	}

	months := models.MonthsBetween(start, end)
	prices, err := scrapeMonths(ctx, nav, scraper.NewExtractor(page, logger), months, logger, artifacts)
	if err != nil {
		return nil, err
	}
	prices = prices.Within(start, end)

	if len(prices) == 0 {
		logger.Warn("no prices found", "months", len(months))
		artifacts("no_prices")
		return prices, nil
	}
	stats := utils.BuildPriceStats(req.Route(), prices, time.Now(), false)
	logger.Info("range scraped",
		"prices", stats.TotalDates, "min", stats.MinPrice, "max", stats.MaxPrice,
		"avg", stats.AveragePrice, "clicks", nav.Clicks())
	return prices, nil
}

// scrapeMonths focuses and extracts each month in turn. Per-month focus
// failures are skipped; cancellation or any other focus error stops the loop.
func scrapeMonths(ctx context.Context, nav monthFocuser, ext monthExtractor, months []models.MonthWindow, logger *slog.Logger, onFailure func(label string)) (models.PriceMap, error) {
	all := make(models.PriceMap)
	for i, month := range months {
		logger.Info("scanning month", "month", month.String(), "n", i+1, "of", len(months))

		if err := nav.Focus(ctx, month); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if !scraper.IsFocusFailure(err) {
				return nil, err
			}
			logger.Warn("month skipped", "month", month.String(), "err", err)
			onFailure("focus_" + month.Prefix())
			continue
		}

		got, err := ext.Extract(ctx, month)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.Warn("month extraction failed", "month", month.String(), "err", err)
			onFailure("extract_" + month.Prefix())
			continue
		}
		all.Merge(got)
	}
	return all, nil
}

// ScrapeWithBrowser returns a jobs.ScrapeFunc that runs each scrape in its
// own browser session. It is what the worker process executes.
func ScrapeWithBrowser(cfg config.Config, logger *slog.Logger) jobs.ScrapeFunc {
	return func(ctx context.Context, req models.ScrapeRequest, start, end time.Time) (models.PriceMap, error) {
		session, err := scraper.OpenSession(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		defer session.Close()

		return ScrapeDateRange(ctx, session, req, start, end, cfg, logger)
	}
}
