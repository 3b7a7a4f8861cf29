package models

import "time"

// CalendarPrices is the response body returned to API and CLI callers.
type CalendarPrices struct {
	Origin       string       `json:"origin"`
	Destination  string       `json:"destination"`
	Prices       PriceMap     `json:"prices"`
	Currency     string       `json:"currency"`
	TotalDates   int          `json:"total_dates"`
	MinPrice     float64      `json:"min_price"`
	MaxPrice     float64      `json:"max_price"`
	AveragePrice float64      `json:"avg_price"`
	BestDates    []PricePoint `json:"best_dates"`
	ScrapedAt    time.Time    `json:"scraped_at"`
	FromCache    bool         `json:"from_cache"`
}

// RouteResult is sent back from each batch goroutine.
type RouteResult struct {
	Request ScrapeRequest
	Index   int // original position in the batch, preserves output order
	Prices  *CalendarPrices
	Err     error
}

// ClickResult captures the JS evaluation result of clicking a widget control.
type ClickResult struct {
	Found     bool `json:"found"`
	Clickable bool `json:"clickable"`
	Clicked   bool `json:"clicked"`
}

// CalendarCell is one rendered grid cell as reported by the page script.
type CalendarCell struct {
	ISO     string `json:"iso"`
	Day     string `json:"day"`
	Price   string `json:"price"`
	Raw     string `json:"raw"`
	Visible bool   `json:"visible"`
	Hidden  bool   `json:"hidden"`
}

// MonthGroup is one rendered month block of the calendar dialog.
type MonthGroup struct {
	Header   string `json:"header"`
	FirstISO string `json:"first_iso"`
}
