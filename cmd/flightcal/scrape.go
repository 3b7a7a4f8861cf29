package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/MohamedBouchiba/Travliaq-Google-Flights-Scrapper/jobs"
	"github.com/MohamedBouchiba/Travliaq-Google-Flights-Scrapper/models"
	"github.com/MohamedBouchiba/Travliaq-Google-Flights-Scrapper/services"
	"github.com/MohamedBouchiba/Travliaq-Google-Flights-Scrapper/storage"
	"github.com/MohamedBouchiba/Travliaq-Google-Flights-Scrapper/utils"
)

var scrapeFlags struct {
	months  int
	start   string
	end     string
	force   bool
	noCache bool
	out     string
	workers int
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape <ORIGIN-DESTINATION>...",
	Short: "Scrapes one or more routes and writes the calendars to a file.",
	Example: `  flightcal scrape CDG-NCL ORY-BCN --months 3 --out prices.json
  flightcal scrape CDG-NCL --start 2026-11-01 --end 2026-12-15 --out prices.csv`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reqs, err := parseRoutes(args)
		if err != nil {
			return err
		}
		return scrape(cmd.Context(), reqs)
	},
}

func init() {
	f := scrapeCmd.Flags()
	f.IntVar(&scrapeFlags.months, "months", 3, "number of months from today")
	f.StringVar(&scrapeFlags.start, "start", "", "first departure date (YYYY-MM-DD)")
	f.StringVar(&scrapeFlags.end, "end", "", "last departure date (YYYY-MM-DD)")
	f.BoolVar(&scrapeFlags.force, "force", false, "ignore cached prices")
	f.BoolVar(&scrapeFlags.noCache, "no-cache", false, "do not read or write the database")
	f.StringVarP(&scrapeFlags.out, "out", "o", "prices.json", "output file (.json or .csv)")
	f.IntVarP(&scrapeFlags.workers, "workers", "w", 0, "routes processed concurrently (default from config)")
	rootCmd.AddCommand(scrapeCmd)
}

func parseRoutes(args []string) ([]models.ScrapeRequest, error) {
	reqs := make([]models.ScrapeRequest, 0, len(args))
	for _, arg := range args {
		origin, destination, ok := strings.Cut(arg, "-")
		if !ok {
			return nil, fmt.Errorf("route %q: want ORIGIN-DESTINATION", arg)
		}
		reqs = append(reqs, models.ScrapeRequest{
			Origin:      origin,
			Destination: destination,
			Months:      scrapeFlags.months,
			StartDate:   scrapeFlags.start,
			EndDate:     scrapeFlags.end,
		})
	}
	return reqs, nil
}

func newCalendarService(cache services.PriceCache, runner services.JobRunner) *services.CalendarService {
	return services.NewCalendarService(cache, runner, cfg, logger.With("component", "service"))
}

func scrape(ctx context.Context, reqs []models.ScrapeRequest) error {
	write := utils.WriteJSON
	switch strings.ToLower(filepath.Ext(scrapeFlags.out)) {
	case ".json":
	case ".csv":
		write = utils.WriteCSV
	default:
		return fmt.Errorf("output %q: want a .json or .csv file", scrapeFlags.out)
	}

	workers := scrapeFlags.workers
	if workers <= 0 {
		workers = cfg.Workers
	}

	logger.Info("scrape batch", "routes", len(reqs), "workers", workers,
		"out", scrapeFlags.out, "cache", !scrapeFlags.noCache)

	var cache services.PriceCache = services.NoCache{}
	if !scrapeFlags.noCache {
		store, err := storage.Open(ctx, cfg, logger.With("component", "storage"))
		if err != nil {
			return err
		}
		defer store.Close()
		cache = store
	}

	scheduler, err := newScheduler()
	if err != nil {
		return err
	}
	defer scheduler.Shutdown()

	started := time.Now()
	results := services.RunBatch(ctx, newCalendarService(cache, scheduler), reqs, scrapeFlags.force, workers, logger)

	total, err := write(scrapeFlags.out, results)
	if err != nil {
		return fmt.Errorf("write %s: %w", scrapeFlags.out, err)
	}

	failed := 0
	for _, r := range results {
		route := r.Request.Route().String()
		if r.Err != nil {
			failed++
			logger.Error("route failed", "route", route, "err", r.Err, "timeout", isTimeout(r.Err))
			continue
		}
		logger.Info("route", "route", route, "dates", r.Prices.TotalDates,
			"min", r.Prices.MinPrice, "max", r.Prices.MaxPrice, "avg", r.Prices.AveragePrice,
			"from_cache", r.Prices.FromCache)
	}
	logger.Info("done", "rows", total, "out", scrapeFlags.out, "failed", failed,
		"elapsed", time.Since(started).Round(time.Second))

	if failed == len(results) {
		return fmt.Errorf("all %d routes failed", failed)
	}
	return nil
}

func isTimeout(err error) bool {
	var te *jobs.TimeoutError
	return errors.As(err, &te)
}
