package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/MohamedBouchiba/Travliaq-Google-Flights-Scrapper/models"
)

// fakeCalendar is a scripted date picker. Months lo..hi are loaded; months in
// lazy are loaded but not rendered until a block is scrolled to the center.
type fakeCalendar struct {
	location string

	openSelector string
	dialogOpen   bool
	consented    bool

	lo, hi   int
	lazy     map[int]bool
	noGroups bool
	groupErr error
	unclicky bool
	arrowErr error
	noArrows bool
	nextStep int
	cells    map[string][]models.CalendarCell
	cellsErr error

	groupCalls   int
	arrowCalls   int
	forcedCalls  int
	scrollBlocks []string
}

func newFakeCalendar(lo, hi models.MonthWindow) *fakeCalendar {
	return &fakeCalendar{
		location:     "https://www.google.com/travel/flights",
		openSelector: DateInputSelectors[0],
		dialogOpen:   true,
		lo:           lo.Index(),
		hi:           hi.Index(),
		lazy:         map[int]bool{},
		nextStep:     1,
		cells:        map[string][]models.CalendarCell{},
	}
}

func (f *fakeCalendar) Navigate(ctx context.Context, url string) error {
	f.location = url
	return nil
}

func (f *fakeCalendar) Location(ctx context.Context) (string, error) {
	return f.location, nil
}

func (f *fakeCalendar) Call(ctx context.Context, fn string, out any, args ...any) error {
	var result any
	switch fn {
	case consentJS:
		f.consented = true
		result = models.ClickResult{Found: true, Clickable: true, Clicked: true}
	case openDateInputJS:
		if args[0].(string) == f.openSelector {
			result = models.ClickResult{Found: true, Clickable: true, Clicked: true}
		} else {
			result = models.ClickResult{}
		}
	case dialogOpenJS:
		result = f.dialogOpen
	case monthGroupsJS:
		f.groupCalls++
		if f.groupErr != nil {
			return f.groupErr
		}
		result = f.groups()
	case scrollGroupJS:
		block := args[1].(string)
		f.scrollBlocks = append(f.scrollBlocks, block)
		if block == "center" {
			f.lazy = map[int]bool{}
		}
		result = true
	case arrowJS:
		label, force := args[0].(string), args[1].(bool)
		f.arrowCalls++
		if force {
			f.forcedCalls++
		}
		switch {
		case f.arrowErr != nil && !force:
			return f.arrowErr
		case f.noArrows:
			result = models.ClickResult{}
		case f.unclicky && !force:
			result = models.ClickResult{Found: true}
		default:
			if label == PrevLabel {
				f.lo--
			} else {
				f.hi += f.nextStep
			}
			result = models.ClickResult{Found: true, Clickable: true, Clicked: true}
		}
	case cellsJS:
		if f.cellsErr != nil {
			return f.cellsErr
		}
		result = f.cells[args[0].(string)]
	default:
		return errors.New("unexpected script")
	}

	if out == nil {
		return nil
	}
	b, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

func (f *fakeCalendar) groups() []models.MonthGroup {
	if f.noGroups {
		return nil
	}
	var out []models.MonthGroup
	for idx := f.lo; idx <= f.hi; idx++ {
		if f.lazy[idx] {
			continue
		}
		w := windowOf(idx)
		out = append(out, models.MonthGroup{
			Header:   "",
			FirstISO: fmt.Sprintf("%s-01", w.Prefix()),
		})
	}
	return out
}

func windowOf(idx int) models.MonthWindow {
	// Index is year*12+month with month in 1..12.
	year := (idx - 1) / 12
	month := idx - year*12
	return models.MonthWindow{Year: year, Month: time.Month(month)}
}

func month(year int, m time.Month) models.MonthWindow {
	return models.MonthWindow{Year: year, Month: m}
}

func noSleep(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func pricedCell(iso, day, price string) models.CalendarCell {
	return models.CalendarCell{ISO: iso, Day: day, Price: price, Visible: true}
}
