package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/MohamedBouchiba/Travliaq-Google-Flights-Scrapper/models"
)

const maxFocusIterations = 60

// Pauses between widget interactions, matching how long the calendar takes
// to settle after each kind of action.
var (
	consentPause = 2 * time.Second
	openPause    = 2 * time.Second
	dialogPoll   = 250 * time.Millisecond
	dialogPolls  = 20
	emptyPause   = 500 * time.Millisecond
	clickPause   = time.Second
	scrollPause  = 800 * time.Millisecond
)

// NavState is the navigator's position in its state machine.
type NavState int

const (
	Closed NavState = iota
	Opening
	Browsing
	Focused
	Failed
)

func (s NavState) String() string {
	switch s {
	case Closed:
		return "closed"
	case Opening:
		return "opening"
	case Browsing:
		return "browsing"
	case Focused:
		return "focused"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("NavState(%d)", int(s))
}

// ClickOutcome is the tagged result of clicking a widget control.
type ClickOutcome int

const (
	Clicked ClickOutcome = iota
	NotFound
	NotClickable
)

func (o ClickOutcome) String() string {
	switch o {
	case Clicked:
		return "clicked"
	case NotFound:
		return "not found"
	case NotClickable:
		return "not clickable"
	}
	return fmt.Sprintf("ClickOutcome(%d)", int(o))
}

func outcomeOf(r models.ClickResult) ClickOutcome {
	switch {
	case r.Clicked:
		return Clicked
	case r.Found:
		return NotClickable
	default:
		return NotFound
	}
}

// Navigator opens the date picker and brings requested months into view.
type Navigator struct {
	page  Page
	log   *slog.Logger
	sleep func(context.Context, time.Duration) error

	state   NavState
	current models.MonthWindow
	clicks  int
}

func NewNavigator(page Page, logger *slog.Logger) *Navigator {
	return &Navigator{page: page, log: logger, sleep: Sleep}
}

func (n *Navigator) State() NavState { return n.state }

// Current is the month last brought into focus.
func (n *Navigator) Current() models.MonthWindow { return n.current }

// Clicks counts prev/next arrow clicks performed so far.
func (n *Navigator) Clicks() int { return n.clicks }

// Open accepts the consent wall if present and opens the date picker.
func (n *Navigator) Open(ctx context.Context) error {
	n.state = Opening

	if err := n.acceptConsent(ctx); err != nil {
		return err
	}

	var tried []string
	var lastErr error
	for _, sel := range DateInputSelectors {
		tried = append(tried, sel)

		var res models.ClickResult
		if err := n.page.Call(ctx, openDateInputJS, &res, sel); err != nil {
			if ctx.Err() != nil {
				n.state = Closed
				return ctx.Err()
			}
			lastErr = err
			continue
		}
		if outcomeOf(res) != Clicked {
			n.log.Debug("date input locator failed", "selector", sel, "outcome", outcomeOf(res).String())
			continue
		}

		if err := n.sleep(ctx, openPause); err != nil {
			n.state = Closed
			return err
		}
		open, err := n.waitDialog(ctx)
		if err != nil {
			n.state = Closed
			return err
		}
		if open {
			n.state = Browsing
			n.log.Info("calendar opened", "selector", sel)
			return nil
		}
	}

	n.state = Closed
	return &CalendarNotFoundError{Tried: tried, Err: lastErr}
}

func (n *Navigator) acceptConsent(ctx context.Context) error {
	loc, err := n.page.Location(ctx)
	if err != nil {
		return err
	}
	if !strings.Contains(loc, ConsentHost) {
		return nil
	}

	var res models.ClickResult
	if err := n.page.Call(ctx, consentJS, &res); err != nil {
		n.log.Warn("consent click failed", "err", err)
		return nil
	}
	if outcomeOf(res) == Clicked {
		n.log.Info("consent accepted")
		return n.sleep(ctx, consentPause)
	}
	return nil
}

func (n *Navigator) waitDialog(ctx context.Context) (bool, error) {
	for i := 0; i < dialogPolls; i++ {
		var open bool
		if err := n.page.Call(ctx, dialogOpenJS, &open); err == nil && open {
			return true, nil
		}
		if err := n.sleep(ctx, dialogPoll); err != nil {
			return false, err
		}
	}
	return false, nil
}

// Focus brings target into a rendered state. Rendered months are located
// through their day stamps; otherwise the loaded range is extended with the
// prev/next arrows or the nearest block is scrolled to force rendering.
// The loop is bounded, and a month that is already rendered costs no clicks.
func (n *Navigator) Focus(ctx context.Context, target models.MonthWindow) error {
	if n.state == Closed || n.state == Opening {
		return ErrNotOpen
	}
	n.state = Browsing

	for i := 0; i < maxFocusIterations; i++ {
		groups, err := n.monthGroups(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			n.log.Debug("read month groups", "err", err)
			groups = nil
		}

		if len(groups) == 0 {
			if err := n.sleep(ctx, emptyPause); err != nil {
				return err
			}
			continue
		}

		pos, lo, hi, closest := locate(groups, target)
		if pos >= 0 {
			if err := n.scrollTo(ctx, pos, "start"); err != nil {
				return err
			}
			if err := n.sleep(ctx, scrollPause); err != nil {
				return err
			}
			n.state = Focused
			n.current = target
			n.log.Debug("month focused", "month", target.String(), "iterations", i+1)
			return nil
		}

		switch {
		case target.Index() < lo:
			if err := n.clickArrow(ctx, PrevLabel, target); err != nil {
				n.state = Failed
				return err
			}
			if err := n.sleep(ctx, clickPause); err != nil {
				return err
			}
		case target.Index() > hi:
			if err := n.clickArrow(ctx, NextLabel, target); err != nil {
				n.state = Failed
				return err
			}
			if err := n.sleep(ctx, clickPause); err != nil {
				return err
			}
		default:
			if err := n.scrollTo(ctx, closest, "center"); err != nil {
				return err
			}
			if err := n.sleep(ctx, scrollPause); err != nil {
				return err
			}
		}
	}

	n.state = Failed
	return &FocusError{Month: target, Err: ErrFocusExhausted}
}

// locate finds target among the rendered groups. It returns the target's
// position (or -1), the loaded index bounds and the position of the group
// closest to target.
func locate(groups []models.MonthWindow, target models.MonthWindow) (pos, lo, hi, closest int) {
	pos, closest = -1, 0
	lo, hi = groups[0].Index(), groups[0].Index()
	best := -1
	for i, g := range groups {
		idx := g.Index()
		if g.Loaded && idx == target.Index() && pos < 0 {
			pos = i
		}
		lo = min(lo, idx)
		hi = max(hi, idx)
		d := idx - target.Index()
		if d < 0 {
			d = -d
		}
		if best < 0 || d < best {
			best, closest = d, i
		}
	}
	return pos, lo, hi, closest
}

// monthGroups returns the rendered month blocks in DOM order. Unresolved
// blocks keep their slot so positions stay aligned with scrollGroupJS.
func (n *Navigator) monthGroups(ctx context.Context) ([]models.MonthWindow, error) {
	var raw []models.MonthGroup
	if err := n.page.Call(ctx, monthGroupsJS, &raw); err != nil {
		return nil, fmt.Errorf("read month groups: %w", err)
	}
	groups := make([]models.MonthWindow, 0, len(raw))
	resolved := 0
	for _, g := range raw {
		w, ok := ResolveGroup(g)
		if ok {
			resolved++
		}
		groups = append(groups, w)
	}
	if resolved == 0 {
		return nil, nil
	}
	return compact(groups), nil
}

// compact gives unresolved slots the month of their nearest resolved
// neighbour. They stay unloaded and never match a target.
func compact(groups []models.MonthWindow) []models.MonthWindow {
	for i := range groups {
		if groups[i].Loaded {
			continue
		}
		for d := 1; d < len(groups); d++ {
			if j := i - d; j >= 0 && groups[j].Loaded {
				groups[i] = models.MonthWindow{Year: groups[j].Year, Month: groups[j].Month}
				break
			}
			if j := i + d; j < len(groups) && groups[j].Loaded {
				groups[i] = models.MonthWindow{Year: groups[j].Year, Month: groups[j].Month}
				break
			}
		}
	}
	return groups
}

func (n *Navigator) scrollTo(ctx context.Context, index int, block string) error {
	var ok bool
	if err := n.page.Call(ctx, scrollGroupJS, &ok, index, block); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		n.log.Debug("scroll month group", "index", index, "err", err)
	}
	return nil
}

// clickArrow presses prev or next. Any failed normal click gets one forced
// script click.
func (n *Navigator) clickArrow(ctx context.Context, label string, target models.MonthWindow) error {
	outcome, err := n.arrow(ctx, label, false)
	if err != nil || outcome != Clicked {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		n.log.Debug("arrow click failed, forcing", "control", label, "outcome", outcome, "err", err)
		outcome, err = n.arrow(ctx, label, true)
		if err != nil {
			return &FocusError{Month: target, Control: label, Err: err}
		}
	}
	if outcome != Clicked {
		return &FocusError{Month: target, Control: label, Outcome: outcome}
	}
	n.clicks++
	return nil
}

func (n *Navigator) arrow(ctx context.Context, label string, force bool) (ClickOutcome, error) {
	var res models.ClickResult
	if err := n.page.Call(ctx, arrowJS, &res, label, force); err != nil {
		return NotFound, err
	}
	return outcomeOf(res), nil
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// IsFocusFailure reports whether err is a per-month navigation failure that
// the caller may skip.
func IsFocusFailure(err error) bool {
	var fe *FocusError
	return errors.As(err, &fe)
}
