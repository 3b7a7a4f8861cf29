package scraper

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/MohamedBouchiba/Travliaq-Google-Flights-Scrapper/models"
)

// Readiness polling defaults.
const (
	DefaultMinPricedCells = 4
	DefaultReadyTimeout   = 7 * time.Second
	DefaultReadyPoll      = 250 * time.Millisecond
)

// Extractor reads day prices from the rendered grid of one month.
type Extractor struct {
	page  Page
	log   *slog.Logger
	sleep func(context.Context, time.Duration) error

	MinPricedCells int
	ReadyTimeout   time.Duration
	ReadyPoll      time.Duration
}

func NewExtractor(page Page, logger *slog.Logger) *Extractor {
	return &Extractor{
		page:           page,
		log:            logger,
		sleep:          Sleep,
		MinPricedCells: DefaultMinPricedCells,
		ReadyTimeout:   DefaultReadyTimeout,
		ReadyPoll:      DefaultReadyPoll,
	}
}

// WaitReady polls until at least MinPricedCells cells of month carry a price
// string. It reports whether that happened before ReadyTimeout.
func (e *Extractor) WaitReady(ctx context.Context, month models.MonthWindow) (bool, error) {
	polls := int(e.ReadyTimeout / e.ReadyPoll)
	if polls < 1 {
		polls = 1
	}
	for i := 0; i < polls; i++ {
		cells, err := e.cells(ctx, month)
		if err == nil && countPriced(cells) >= e.MinPricedCells {
			return true, nil
		}
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		if err := e.sleep(ctx, e.ReadyPoll); err != nil {
			return false, err
		}
	}
	return false, nil
}

// Extract waits briefly for prices to populate and then parses every visible
// cell of month. Cells without a numeric day or a price are skipped.
func (e *Extractor) Extract(ctx context.Context, month models.MonthWindow) (models.PriceMap, error) {
	ready, err := e.WaitReady(ctx, month)
	if err != nil {
		return nil, err
	}
	if !ready {
		e.log.Warn("prices not fully loaded, extracting anyway",
			"month", month.String(), "min_cells", e.MinPricedCells)
	}

	cells, err := e.cells(ctx, month)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &PriceExtractionError{Month: month, Err: err}
	}

	prices := ParseCells(cells, month)
	e.log.Info("month extracted", "month", month.String(), "cells", len(cells), "prices", len(prices))
	return prices, nil
}

func (e *Extractor) cells(ctx context.Context, month models.MonthWindow) ([]models.CalendarCell, error) {
	var cells []models.CalendarCell
	if err := e.page.Call(ctx, cellsJS, &cells, month.Prefix()+"-"); err != nil {
		return nil, err
	}
	return cells, nil
}

func countPriced(cells []models.CalendarCell) int {
	n := 0
	for _, c := range cells {
		if _, price := cellText(c); strings.TrimSpace(price) != "" {
			n++
		}
	}
	return n
}

// ParseCells applies the extraction rules to reported grid cells.
func ParseCells(cells []models.CalendarCell, month models.MonthWindow) models.PriceMap {
	prices := make(models.PriceMap)
	for _, c := range cells {
		if !c.Visible || c.Hidden {
			continue
		}
		w, ok := monthFromISO(c.ISO)
		if !ok || w.Index() != month.Index() {
			continue
		}
		iso := isoPattern.FindString(c.ISO)
		if _, err := time.Parse(models.DateLayout, iso); err != nil {
			continue
		}

		day, priceText := cellText(c)
		if !isDigits(day) {
			continue
		}
		price, ok := ParsePrice(priceText)
		if !ok {
			continue
		}
		prices[iso] = price
	}
	return prices
}

// cellText returns the day and price strings of a cell, falling back to the
// first two lines of its text when the dedicated elements are empty.
func cellText(c models.CalendarCell) (string, string) {
	day := strings.TrimSpace(c.Day)
	price := strings.TrimSpace(c.Price)
	if day != "" && price != "" {
		return day, price
	}

	var lines []string
	for _, l := range strings.Split(c.Raw, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	if day == "" && len(lines) > 0 {
		day = lines[0]
	}
	if price == "" && len(lines) > 1 {
		price = lines[1]
	}
	return day, price
}

// ParsePrice keeps only the digits of text. "1 234 €" is 1234. Text without
// any digit is not a price.
func ParsePrice(text string) (float64, bool) {
	var b strings.Builder
	for _, r := range text {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return 0, false
	}
	v, err := strconv.ParseFloat(b.String(), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
