package scraper

import (
	"errors"
	"fmt"
	"strings"

	"github.com/MohamedBouchiba/Travliaq-Google-Flights-Scrapper/models"
)

var (
	// ErrNotOpen is returned when Focus is called before Open succeeded.
	ErrNotOpen = errors.New("calendar is not open")
	// ErrFocusExhausted means the target month never rendered within the
	// iteration bound.
	ErrFocusExhausted = errors.New("calendar month not reachable")
)

// DriverInitError means no browser could be started with any strategy.
type DriverInitError struct {
	Err error
}

func (e *DriverInitError) Error() string {
	return fmt.Sprintf("initialise browser: %v", e.Err)
}

func (e *DriverInitError) Unwrap() error { return e.Err }

// PageLoadError wraps a failed navigation.
type PageLoadError struct {
	URL string
	Err error
}

func (e *PageLoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.URL, e.Err)
}

func (e *PageLoadError) Unwrap() error { return e.Err }

// CalendarNotFoundError is returned by Open when no locator strategy
// produced a visible date picker.
type CalendarNotFoundError struct {
	Tried []string
	Err   error
}

func (e *CalendarNotFoundError) Error() string {
	msg := fmt.Sprintf("calendar not found after %d locator(s): %s", len(e.Tried), strings.Join(e.Tried, ", "))
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CalendarNotFoundError) Unwrap() error { return e.Err }

// FocusError is a navigation failure for a single month.
type FocusError struct {
	Month   models.MonthWindow
	Control string
	Outcome ClickOutcome
	Err     error
}

func (e *FocusError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("focus %s: %v", e.Month, e.Err)
	}
	return fmt.Sprintf("focus %s: %s control %s", e.Month, e.Control, e.Outcome)
}

func (e *FocusError) Unwrap() error { return e.Err }

// PriceExtractionError means the extraction script itself failed, as
// opposed to finding no priced cells.
type PriceExtractionError struct {
	Month models.MonthWindow
	Err   error
}

func (e *PriceExtractionError) Error() string {
	return fmt.Sprintf("extract prices for %s: %v", e.Month, e.Err)
}

func (e *PriceExtractionError) Unwrap() error { return e.Err }
