package models

import (
	"fmt"
	"sort"
	"time"
)

// Currency is the single currency every price in the system is expressed in.
const Currency = "EUR"

// DateLayout is the ISO day layout used for every date key.
const DateLayout = "2006-01-02"

// PriceMap maps an ISO date (YYYY-MM-DD) to the cheapest fare for that day.
type PriceMap map[string]float64

// Dates returns the keys of m in ascending order.
func (m PriceMap) Dates() []string {
	dates := make([]string, 0, len(m))
	for d := range m {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	return dates
}

// Merge copies every entry of other into m, overwriting existing dates.
func (m PriceMap) Merge(other PriceMap) {
	for d, p := range other {
		m[d] = p
	}
}

// Within returns the subset of m whose dates fall in [start, end].
func (m PriceMap) Within(start, end time.Time) PriceMap {
	lo := start.Format(DateLayout)
	hi := end.Format(DateLayout)
	out := make(PriceMap, len(m))
	for d, p := range m {
		if d >= lo && d <= hi {
			out[d] = p
		}
	}
	return out
}

// Points flattens m into date-ordered price points.
func (m PriceMap) Points() []PricePoint {
	points := make([]PricePoint, 0, len(m))
	for _, d := range m.Dates() {
		points = append(points, PricePoint{Date: d, Price: m[d], Currency: Currency})
	}
	return points
}

// PricePoint is one day of a calendar.
type PricePoint struct {
	Date     string  `json:"date" csv:"date"`
	Price    float64 `json:"price" csv:"price"`
	Currency string  `json:"currency" csv:"currency"`
}

// Route identifies an origin/destination pair.
type Route struct {
	Origin      string `json:"origin"`
	Destination string `json:"destination"`
}

func (r Route) String() string {
	return r.Origin + "-" + r.Destination
}

// MonthWindow is one calendar month. Index orders months across years.
type MonthWindow struct {
	Year   int
	Month  time.Month
	Loaded bool
}

func NewMonthWindow(t time.Time) MonthWindow {
	return MonthWindow{Year: t.Year(), Month: t.Month()}
}

func (w MonthWindow) Index() int {
	return w.Year*12 + int(w.Month)
}

// Prefix is the YYYY-MM prefix shared by every day of w.
func (w MonthWindow) Prefix() string {
	return fmt.Sprintf("%04d-%02d", w.Year, int(w.Month))
}

func (w MonthWindow) Next() MonthWindow {
	t := time.Date(w.Year, w.Month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
	return NewMonthWindow(t)
}

func (w MonthWindow) String() string {
	return w.Prefix()
}

// MonthsBetween lists every month touched by [start, end], in order.
func MonthsBetween(start, end time.Time) []MonthWindow {
	if end.Before(start) {
		return nil
	}
	last := NewMonthWindow(end)
	var months []MonthWindow
	for m := NewMonthWindow(start); m.Index() <= last.Index(); m = m.Next() {
		months = append(months, m)
	}
	return months
}

// CacheEntry is one persisted day of a route's calendar.
type CacheEntry struct {
	Origin      string
	Destination string
	Date        string
	Price       float64
	Currency    string
	ScrapedAt   time.Time
}

// CachedPrices is a route's calendar as read back from the cache, stamped
// with the time of its most recent row.
type CachedPrices struct {
	Prices    PriceMap
	ScrapedAt time.Time
}
