package services

//go:generate go run go.uber.org/mock/mockgen -source=calendar_service.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MohamedBouchiba/Travliaq-Google-Flights-Scrapper/config"
	"github.com/MohamedBouchiba/Travliaq-Google-Flights-Scrapper/models"
	"github.com/MohamedBouchiba/Travliaq-Google-Flights-Scrapper/utils"
	"github.com/MohamedBouchiba/Travliaq-Google-Flights-Scrapper/validate"
)

// ErrNoPrices is returned when a scrape finished but found no price in the
// requested window.
var ErrNoPrices = errors.New("no prices found")

// PriceCache is the persistence the service needs. storage.Store and
// storage.MemoCache implement it.
type PriceCache interface {
	Get(ctx context.Context, route models.Route, maxAge time.Duration) (models.CachedPrices, bool, error)
	Save(ctx context.Context, route models.Route, prices models.PriceMap) (int, error)
	LogScrape(ctx context.Context, entry models.ScrapeLog) error
}

// JobRunner runs scrapes out of process. jobs.Scheduler implements it.
type JobRunner interface {
	Submit(ctx context.Context, req models.ScrapeRequest, start, end time.Time) (string, error)
	Wait(ctx context.Context, id string, timeout time.Duration) (models.PriceMap, error)
}

// CalendarService answers price requests from the cache when it can and
// from a fresh worker scrape otherwise.
type CalendarService struct {
	cache PriceCache
	jobs  JobRunner
	cfg   config.Config
	log   *slog.Logger
	now   func() time.Time
}

func NewCalendarService(cache PriceCache, jobs JobRunner, cfg config.Config, logger *slog.Logger) *CalendarService {
	return &CalendarService{cache: cache, jobs: jobs, cfg: cfg, log: logger, now: time.Now}
}

// GetPrices validates req, then serves it from a fresh cache entry or runs a
// worker scrape and stores the result. force skips the cache lookup.
func (s *CalendarService) GetPrices(ctx context.Context, req models.ScrapeRequest, force bool) (models.CalendarPrices, error) {
	now := s.now()
	if err := validate.Request(&req, now); err != nil {
		return models.CalendarPrices{}, err
	}
	start, end, err := req.Window(now)
	if err != nil {
		return models.CalendarPrices{}, err
	}
	route := req.Route()
	log := s.log.With("route", route.String())

	if !force {
		if stats, ok := s.fromCache(ctx, route, start, end, log); ok {
			return stats, nil
		}
	}

	log.Info("scraping", "start", start.Format(models.DateLayout), "end", end.Format(models.DateLayout), "force", force)
	started := s.now()
	prices, err := s.scrape(ctx, req, start, end)
	if err == nil && len(prices) == 0 {
		err = fmt.Errorf("%w for %s", ErrNoPrices, route)
	}
	s.audit(ctx, req, force, started, len(prices), err)
	if err != nil {
		return models.CalendarPrices{}, err
	}

	if n, err := s.cache.Save(ctx, route, prices); err != nil {
		log.Warn("cache save failed", "err", err)
	} else {
		log.Debug("cache updated", "rows", n)
	}
	return utils.BuildPriceStats(route, prices, s.now(), false), nil
}

func (s *CalendarService) fromCache(ctx context.Context, route models.Route, start, end time.Time, log *slog.Logger) (models.CalendarPrices, bool) {
	cached, ok, err := s.cache.Get(ctx, route, s.cfg.CacheTTL)
	if err != nil {
		log.Warn("cache lookup failed", "err", err)
		return models.CalendarPrices{}, false
	}
	if !ok {
		log.Debug("cache miss")
		return models.CalendarPrices{}, false
	}
	prices := cached.Prices.Within(start, end)
	if len(prices) == 0 {
		log.Debug("cache entry outside requested window")
		return models.CalendarPrices{}, false
	}
	log.Info("cache hit", "prices", len(prices), "scraped_at", cached.ScrapedAt)
	return utils.BuildPriceStats(route, prices, cached.ScrapedAt, true), true
}

func (s *CalendarService) scrape(ctx context.Context, req models.ScrapeRequest, start, end time.Time) (models.PriceMap, error) {
	id, err := s.jobs.Submit(ctx, req, start, end)
	if err != nil {
		return nil, fmt.Errorf("submit scrape: %w", err)
	}
	prices, err := s.jobs.Wait(ctx, id, s.cfg.WorkerTimeout)
	if err != nil {
		return nil, err
	}
	return prices.Within(start, end), nil
}

func (s *CalendarService) audit(ctx context.Context, req models.ScrapeRequest, force bool, started time.Time, count int, scrapeErr error) {
	completed := s.now()
	entry := models.ScrapeLog{
		ScrapeType:      "calendar",
		Origin:          req.Origin,
		Destination:     req.Destination,
		Success:         scrapeErr == nil,
		ResultsCount:    count,
		StartedAt:       started,
		CompletedAt:     completed,
		DurationSeconds: completed.Sub(started).Seconds(),
		Params: map[string]any{
			"months":        req.Months,
			"start_date":    req.StartDate,
			"end_date":      req.EndDate,
			"force_refresh": force,
		},
	}
	if scrapeErr != nil {
		entry.ErrorMessage = scrapeErr.Error()
	}
	if err := s.cache.LogScrape(ctx, entry); err != nil {
		s.log.Warn("write scrape log", "route", req.Route().String(), "err", err)
	}
}

// NoCache is a PriceCache that never hits and never stores.
type NoCache struct{}

func (NoCache) Get(context.Context, models.Route, time.Duration) (models.CachedPrices, bool, error) {
	return models.CachedPrices{}, false, nil
}

func (NoCache) Save(context.Context, models.Route, models.PriceMap) (int, error) {
	return 0, nil
}

func (NoCache) LogScrape(context.Context, models.ScrapeLog) error { return nil }
