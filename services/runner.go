package services

import (
	"context"
	"log/slog"
	"sync"

	"github.com/MohamedBouchiba/Travliaq-Google-Flights-Scrapper/models"
)

// Pricer answers one route's price request. *CalendarService implements it.
type Pricer interface {
	GetPrices(ctx context.Context, req models.ScrapeRequest, force bool) (models.CalendarPrices, error)
}

// RunBatch processes routes concurrently and returns results in original order.
func RunBatch(ctx context.Context, pricer Pricer, reqs []models.ScrapeRequest, force bool, workers int, logger *slog.Logger) []models.RouteResult {
	ordered := make([]models.RouteResult, len(reqs))
	if len(reqs) == 0 {
		return ordered
	}

	if workers <= 0 {
		workers = 1
	}
	if workers > len(reqs) {
		workers = len(reqs)
	}

	type routeJob struct {
		index int
		req   models.ScrapeRequest
	}

	jobs := make(chan routeJob)
	results := make(chan models.RouteResult, len(reqs))

	var wg sync.WaitGroup
	for workerID := 0; workerID < workers; workerID++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				route := job.req.Route().String()
				logger.Info("starting", "route", route)

				result := models.RouteResult{Request: job.req, Index: job.index}
				prices, err := pricer.GetPrices(ctx, job.req, force)
				if err != nil {
					logger.Error("route failed", "route", route, "err", err)
					result.Err = err
				} else {
					logger.Info("route done", "route", route, "prices", prices.TotalDates, "from_cache", prices.FromCache)
					result.Prices = &prices
				}
				results <- result
			}
		}()
	}

	go func() {
	feed:
		for i, req := range reqs {
			select {
			case jobs <- routeJob{index: i, req: req}:
			case <-ctx.Done():
				// Unsent routes report the cancellation.
				for j := i; j < len(reqs); j++ {
					results <- models.RouteResult{Request: reqs[j], Index: j, Err: ctx.Err()}
				}
				break feed
			}
		}
		close(jobs)
		wg.Wait()
		close(results)
	}()

	for result := range results {
		ordered[result.Index] = result
	}

	return ordered
}
