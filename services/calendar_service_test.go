package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/MohamedBouchiba/Travliaq-Google-Flights-Scrapper/config"
	"github.com/MohamedBouchiba/Travliaq-Google-Flights-Scrapper/jobs"
	"github.com/MohamedBouchiba/Travliaq-Google-Flights-Scrapper/models"
	"github.com/MohamedBouchiba/Travliaq-Google-Flights-Scrapper/services/mocks"
	"github.com/MohamedBouchiba/Travliaq-Google-Flights-Scrapper/validate"
)

var testNow = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(t *testing.T) (*CalendarService, *mocks.MockPriceCache, *mocks.MockJobRunner) {
	ctrl := gomock.NewController(t)
	cache := mocks.NewMockPriceCache(ctrl)
	runner := mocks.NewMockJobRunner(ctrl)

	cfg := config.Default()
	cfg.CacheTTL = time.Hour
	cfg.WorkerTimeout = 5 * time.Minute

	svc := NewCalendarService(cache, runner, cfg, quietLogger())
	svc.now = func() time.Time { return testNow }
	return svc, cache, runner
}

func dailyPrices(start, end string) models.PriceMap {
	from, _ := time.Parse(models.DateLayout, start)
	to, _ := time.Parse(models.DateLayout, end)
	prices := make(models.PriceMap)
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		prices[d.Format(models.DateLayout)] = float64(80 + d.Day())
	}
	return prices
}

func TestGetPricesScrapesOnMiss(t *testing.T) {
	svc, cache, runner := newTestService(t)
	ctx := context.Background()
	route := models.Route{Origin: "AAA", Destination: "BBB"}
	scraped := dailyPrices("2026-03-05", "2026-05-01")
	require.Len(t, scraped, 58)

	start, _ := time.Parse(models.DateLayout, "2026-03-05")
	end, _ := time.Parse(models.DateLayout, "2026-05-01")

	gomock.InOrder(
		cache.EXPECT().Get(gomock.Any(), route, time.Hour).Return(models.CachedPrices{}, false, nil),
		runner.EXPECT().Submit(gomock.Any(), gomock.Any(), start, end).Return("a1b2c3d4", nil),
		runner.EXPECT().Wait(gomock.Any(), "a1b2c3d4", 5*time.Minute).Return(scraped, nil),
	)
	cache.EXPECT().LogScrape(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, entry models.ScrapeLog) error {
			require.True(t, entry.Success)
			require.Equal(t, 58, entry.ResultsCount)
			require.Equal(t, "AAA", entry.Origin)
			require.Equal(t, "2026-03-05", entry.Params["start_date"])
			return nil
		})
	cache.EXPECT().Save(gomock.Any(), route, scraped).Return(58, nil)

	got, err := svc.GetPrices(ctx, models.ScrapeRequest{
		Origin: " aaa", Destination: "bbb", StartDate: "2026-03-05", EndDate: "2026-05-01",
	}, false)
	require.NoError(t, err)
	require.Equal(t, 58, got.TotalDates)
	require.False(t, got.FromCache)
	require.Equal(t, "AAA", got.Origin)
	require.Equal(t, models.Currency, got.Currency)
	require.Len(t, got.BestDates, 5)
}

func TestGetPricesServesFreshCache(t *testing.T) {
	svc, cache, _ := newTestService(t)
	scrapedAt := testNow.Add(-10 * time.Minute)

	cache.EXPECT().Get(gomock.Any(), models.Route{Origin: "CDG", Destination: "NCL"}, time.Hour).Return(
		models.CachedPrices{
			Prices:    models.PriceMap{"2026-02-27": 10, "2026-03-02": 98, "2026-03-03": 120, "2026-06-01": 50},
			ScrapedAt: scrapedAt,
		}, true, nil)

	got, err := svc.GetPrices(context.Background(), models.ScrapeRequest{Origin: "CDG", Destination: "NCL", Months: 1}, false)
	require.NoError(t, err)
	require.True(t, got.FromCache)
	require.Equal(t, models.PriceMap{"2026-03-02": 98, "2026-03-03": 120}, got.Prices)
	require.Equal(t, 98.0, got.MinPrice)
	require.Equal(t, scrapedAt, got.ScrapedAt)
}

func TestGetPricesCacheOutsideWindowIsMiss(t *testing.T) {
	svc, cache, runner := newTestService(t)

	cache.EXPECT().Get(gomock.Any(), gomock.Any(), gomock.Any()).Return(
		models.CachedPrices{Prices: models.PriceMap{"2026-09-01": 50}, ScrapedAt: testNow}, true, nil)
	runner.EXPECT().Submit(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return("j", nil)
	runner.EXPECT().Wait(gomock.Any(), "j", gomock.Any()).Return(models.PriceMap{"2026-03-10": 70}, nil)
	cache.EXPECT().LogScrape(gomock.Any(), gomock.Any()).Return(nil)
	cache.EXPECT().Save(gomock.Any(), gomock.Any(), gomock.Any()).Return(1, nil)

	got, err := svc.GetPrices(context.Background(), models.ScrapeRequest{Origin: "CDG", Destination: "NCL", Months: 1}, false)
	require.NoError(t, err)
	require.False(t, got.FromCache)
	require.Equal(t, 1, got.TotalDates)
}

func TestGetPricesForceSkipsCache(t *testing.T) {
	svc, cache, runner := newTestService(t)

	runner.EXPECT().Submit(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return("j", nil)
	runner.EXPECT().Wait(gomock.Any(), "j", gomock.Any()).Return(models.PriceMap{"2026-03-10": 70}, nil)
	cache.EXPECT().LogScrape(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, entry models.ScrapeLog) error {
			require.Equal(t, true, entry.Params["force_refresh"])
			return nil
		})
	cache.EXPECT().Save(gomock.Any(), gomock.Any(), gomock.Any()).Return(1, nil)

	_, err := svc.GetPrices(context.Background(), models.ScrapeRequest{Origin: "CDG", Destination: "NCL"}, true)
	require.NoError(t, err)
}

func TestGetPricesWorkerTimeout(t *testing.T) {
	svc, cache, runner := newTestService(t)

	cache.EXPECT().Get(gomock.Any(), gomock.Any(), gomock.Any()).Return(models.CachedPrices{}, false, nil)
	runner.EXPECT().Submit(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return("j", nil)
	runner.EXPECT().Wait(gomock.Any(), "j", gomock.Any()).Return(nil, &jobs.TimeoutError{JobID: "j", Timeout: 5 * time.Minute})
	cache.EXPECT().LogScrape(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, entry models.ScrapeLog) error {
			require.False(t, entry.Success)
			require.Contains(t, entry.ErrorMessage, "timed out")
			return nil
		})

	_, err := svc.GetPrices(context.Background(), models.ScrapeRequest{Origin: "CDG", Destination: "NCL"}, false)
	var te *jobs.TimeoutError
	require.True(t, errors.As(err, &te))
}

func TestGetPricesNothingFound(t *testing.T) {
	svc, cache, runner := newTestService(t)

	cache.EXPECT().Get(gomock.Any(), gomock.Any(), gomock.Any()).Return(models.CachedPrices{}, false, nil)
	runner.EXPECT().Submit(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return("j", nil)
	runner.EXPECT().Wait(gomock.Any(), "j", gomock.Any()).Return(models.PriceMap{}, nil)
	cache.EXPECT().LogScrape(gomock.Any(), gomock.Any()).Return(nil)

	_, err := svc.GetPrices(context.Background(), models.ScrapeRequest{Origin: "CDG", Destination: "NCL"}, false)
	require.ErrorIs(t, err, ErrNoPrices)
}

func TestGetPricesSurvivesCacheFailures(t *testing.T) {
	svc, cache, runner := newTestService(t)

	cache.EXPECT().Get(gomock.Any(), gomock.Any(), gomock.Any()).Return(models.CachedPrices{}, false, errors.New("connection refused"))
	runner.EXPECT().Submit(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return("j", nil)
	runner.EXPECT().Wait(gomock.Any(), "j", gomock.Any()).Return(models.PriceMap{"2026-03-10": 70}, nil)
	cache.EXPECT().LogScrape(gomock.Any(), gomock.Any()).Return(errors.New("connection refused"))
	cache.EXPECT().Save(gomock.Any(), gomock.Any(), gomock.Any()).Return(0, errors.New("connection refused"))

	got, err := svc.GetPrices(context.Background(), models.ScrapeRequest{Origin: "CDG", Destination: "NCL"}, false)
	require.NoError(t, err)
	require.Equal(t, 1, got.TotalDates)
}

func TestGetPricesRejectsInvalidRequest(t *testing.T) {
	svc, _, _ := newTestService(t)

	tests := []models.ScrapeRequest{
		{Origin: "PARIS", Destination: "NCL"},
		{Origin: "CDG", Destination: "CDG"},
		{Origin: "CDG", Destination: "NCL", Months: 13},
		{Origin: "CDG", Destination: "NCL", StartDate: "2026-02-01", EndDate: "2026-03-01"},
	}
	for _, req := range tests {
		_, err := svc.GetPrices(context.Background(), req, false)
		var ve *validate.Error
		require.True(t, errors.As(err, &ve), "%+v", req)
	}
}

func TestNoCache(t *testing.T) {
	var c PriceCache = NoCache{}
	_, ok, err := c.Get(context.Background(), models.Route{}, time.Hour)
	require.NoError(t, err)
	require.False(t, ok)
}
