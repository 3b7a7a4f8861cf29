package models

import (
	"fmt"
	"time"
)

// ScrapeRequest is what a caller asks for. Either Months (counted from the
// current month) or StartDate/EndDate is used; explicit dates win.
type ScrapeRequest struct {
	Origin      string `json:"origin" validate:"required,airport"`
	Destination string `json:"destination" validate:"required,airport,nefield=Origin"`
	Months      int    `json:"months,omitempty" validate:"omitempty,min=1,max=12"`
	StartDate   string `json:"start_date,omitempty" validate:"required_with=EndDate,omitempty,isodate"`
	EndDate     string `json:"end_date,omitempty" validate:"required_with=StartDate,omitempty,isodate"`
}

func (r ScrapeRequest) Route() Route {
	return Route{Origin: r.Origin, Destination: r.Destination}
}

// Window resolves the request into an inclusive date range. Month counts run
// from today to the last day of the final month.
func (r ScrapeRequest) Window(now time.Time) (time.Time, time.Time, error) {
	if r.StartDate != "" && r.EndDate != "" {
		start, err := time.Parse(DateLayout, r.StartDate)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("parse start date: %w", err)
		}
		end, err := time.Parse(DateLayout, r.EndDate)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("parse end date: %w", err)
		}
		return start, end, nil
	}

	months := r.Months
	if months <= 0 {
		months = 3
	}
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	firstOfMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := firstOfMonth.AddDate(0, months, -1)
	return start, end, nil
}

// ScrapeLog is one audit row describing a scrape attempt.
type ScrapeLog struct {
	ID              int64          `json:"id"`
	ScrapeType      string         `json:"scrape_type"`
	Origin          string         `json:"origin"`
	Destination     string         `json:"destination"`
	Success         bool           `json:"success"`
	ResultsCount    int            `json:"results_count"`
	ErrorMessage    string         `json:"error_message,omitempty"`
	StartedAt       time.Time      `json:"started_at"`
	CompletedAt     time.Time      `json:"completed_at"`
	DurationSeconds float64        `json:"duration_seconds"`
	Params          map[string]any `json:"params,omitempty"`
}

// CacheStats summarises the price cache.
type CacheStats struct {
	TotalEntries  int         `json:"total_entries"`
	TotalRoutes   int         `json:"total_routes"`
	OldestEntry   *time.Time  `json:"oldest_entry"`
	NewestEntry   *time.Time  `json:"newest_entry"`
	RecentScrapes []ScrapeLog `json:"recent_scrapes"`
}
