package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"github.com/MohamedBouchiba/Travliaq-Google-Flights-Scrapper/models"
	"github.com/MohamedBouchiba/Travliaq-Google-Flights-Scrapper/utils"
)

// WorkerArgs is the number of positional arguments a worker expects:
// origin, destination, start, end, result file and job id.
const WorkerArgs = 6

// ScrapeFunc performs one scrape inside a worker process.
type ScrapeFunc func(ctx context.Context, req models.ScrapeRequest, start, end time.Time) (models.PriceMap, error)

// failure is the hand-off payload of a failed worker.
type failure struct {
	Error     string `json:"error"`
	Traceback string `json:"traceback"`
}

// RunWorker is the body of the worker process. It runs scrape for the
// request encoded in args and writes either the price map or a failure
// payload to the result file. The return value is the process exit code.
func RunWorker(ctx context.Context, args []string, scrape ScrapeFunc, logger *slog.Logger) int {
	if len(args) != WorkerArgs {
		logger.Error("usage: worker <origin> <destination> <start> <end> <result_file> <job_id>", "got", len(args))
		return 1
	}
	origin, destination, startArg, endArg, resultFile, id := args[0], args[1], args[2], args[3], args[4], args[5]
	logger = logger.With("job", id)

	prices, traceback, err := runScrape(ctx, scrape, origin, destination, startArg, endArg)
	if err != nil {
		logger.Error("worker failed", "err", err)
		if werr := utils.WriteJSONAtomic(resultFile, failure{Error: err.Error(), Traceback: traceback}); werr != nil {
			logger.Error("write failure payload", "err", werr)
		}
		return 1
	}

	if err := utils.WriteJSONAtomic(resultFile, prices); err != nil {
		logger.Error("write result", "err", err)
		return 1
	}
	logger.Info("worker done", "prices", len(prices), "file", resultFile)
	return 0
}

func runScrape(ctx context.Context, scrape ScrapeFunc, origin, destination, startArg, endArg string) (prices models.PriceMap, traceback string, err error) {
	defer func() {
		if r := recover(); r != nil {
			prices = nil
			traceback = string(debug.Stack())
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	start, err := time.Parse(models.DateLayout, startArg)
	if err != nil {
		return nil, "", fmt.Errorf("parse start date: %w", err)
	}
	end, err := time.Parse(models.DateLayout, endArg)
	if err != nil {
		return nil, "", fmt.Errorf("parse end date: %w", err)
	}

	req := models.ScrapeRequest{
		Origin:      origin,
		Destination: destination,
		StartDate:   startArg,
		EndDate:     endArg,
	}
	prices, err = scrape(ctx, req, start, end)
	if err != nil {
		return nil, errorChain(err), err
	}
	if prices == nil {
		prices = models.PriceMap{}
	}
	return prices, "", nil
}

// errorChain renders each wrapped error with its type, outermost first.
func errorChain(err error) string {
	var lines []string
	for e := err; e != nil; e = errors.Unwrap(e) {
		lines = append(lines, fmt.Sprintf("%T: %v", e, e))
	}
	return strings.Join(lines, "\n")
}
