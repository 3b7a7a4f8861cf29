package scraper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/MohamedBouchiba/Travliaq-Google-Flights-Scrapper/models"
)

func openNavigator(t *testing.T, f *fakeCalendar) *Navigator {
	t.Helper()
	n := NewNavigator(f, quietLogger())
	n.sleep = noSleep
	require.NoError(t, n.Open(context.Background()))
	require.Equal(t, Browsing, n.State())
	return n
}

func TestFocusRenderedMonthIsIdempotent(t *testing.T) {
	f := newFakeCalendar(month(2026, time.March), month(2026, time.May))
	n := openNavigator(t, f)

	target := month(2026, time.April)
	require.NoError(t, n.Focus(context.Background(), target))
	require.NoError(t, n.Focus(context.Background(), target))

	require.Equal(t, Focused, n.State())
	require.Equal(t, target, n.Current())
	require.Zero(t, n.Clicks())
	require.Zero(t, f.arrowCalls)
	require.Equal(t, []string{"start", "start"}, f.scrollBlocks)
}

func TestFocusForwardLoadsWithNext(t *testing.T) {
	f := newFakeCalendar(month(2026, time.March), month(2026, time.May))
	n := openNavigator(t, f)

	require.NoError(t, n.Focus(context.Background(), month(2026, time.September)))
	require.Equal(t, 4, n.Clicks())
	require.Zero(t, f.forcedCalls)
}

func TestFocusAcrossYearBoundary(t *testing.T) {
	f := newFakeCalendar(month(2025, time.November), month(2025, time.December))
	n := openNavigator(t, f)

	require.NoError(t, n.Focus(context.Background(), month(2026, time.February)))
	require.Equal(t, 2, n.Clicks())
}

func TestFocusBackwardLoadsWithPrevious(t *testing.T) {
	f := newFakeCalendar(month(2026, time.March), month(2026, time.May))
	n := openNavigator(t, f)

	require.NoError(t, n.Focus(context.Background(), month(2026, time.January)))
	require.Equal(t, 2, n.Clicks())
}

func TestFocusScrollsIntoLazyGap(t *testing.T) {
	f := newFakeCalendar(month(2026, time.March), month(2026, time.June))
	april := month(2026, time.April)
	f.lazy[april.Index()] = true
	n := openNavigator(t, f)

	require.NoError(t, n.Focus(context.Background(), april))
	require.Zero(t, n.Clicks())
	require.Equal(t, []string{"center", "start"}, f.scrollBlocks)
}

func TestFocusForcesClickOnce(t *testing.T) {
	f := newFakeCalendar(month(2026, time.March), month(2026, time.May))
	f.unclicky = true
	n := openNavigator(t, f)

	require.NoError(t, n.Focus(context.Background(), month(2026, time.July)))
	require.Equal(t, 2, n.Clicks())
	// every click needed exactly one normal attempt and one forced retry
	require.Equal(t, 2, f.forcedCalls)
	require.Equal(t, 4, f.arrowCalls)
}

func TestFocusMissingArrowFailsThatMonthOnly(t *testing.T) {
	f := newFakeCalendar(month(2026, time.March), month(2026, time.May))
	f.noArrows = true
	n := openNavigator(t, f)

	err := n.Focus(context.Background(), month(2026, time.December))
	var fe *FocusError
	require.True(t, errors.As(err, &fe))
	require.Equal(t, NotFound, fe.Outcome)
	require.Equal(t, NextLabel, fe.Control)
	require.Equal(t, Failed, n.State())
	require.True(t, IsFocusFailure(err))
	// a missing control still gets the forced retry before giving up
	require.Equal(t, 2, f.arrowCalls)
	require.Equal(t, 1, f.forcedCalls)

	// the caller may skip the month and keep going
	require.NoError(t, n.Focus(context.Background(), month(2026, time.April)))
	require.Equal(t, Focused, n.State())
}

func TestFocusForcesClickAfterScriptError(t *testing.T) {
	f := newFakeCalendar(month(2026, time.March), month(2026, time.May))
	f.arrowErr = errors.New("execution context was destroyed")
	n := openNavigator(t, f)

	require.NoError(t, n.Focus(context.Background(), month(2026, time.June)))
	require.Equal(t, 1, n.Clicks())
	require.Equal(t, 1, f.forcedCalls)
	require.Equal(t, Focused, n.State())
}

func TestFocusIsBounded(t *testing.T) {
	f := newFakeCalendar(month(2026, time.March), month(2026, time.May))
	f.noGroups = true
	n := openNavigator(t, f)

	err := n.Focus(context.Background(), month(2026, time.April))
	require.ErrorIs(t, err, ErrFocusExhausted)
	require.Equal(t, maxFocusIterations, f.groupCalls)
	require.Equal(t, Failed, n.State())
}

func TestFocusGivesUpOnUnreachableMonth(t *testing.T) {
	f := newFakeCalendar(month(2026, time.March), month(2026, time.May))
	// the widget never loads anything new
	f.nextStep = 0
	n := openNavigator(t, f)

	err := n.Focus(context.Background(), month(2027, time.May))
	require.ErrorIs(t, err, ErrFocusExhausted)
	require.Equal(t, maxFocusIterations, n.Clicks())
}

func TestFocusBeforeOpen(t *testing.T) {
	f := newFakeCalendar(month(2026, time.March), month(2026, time.May))
	n := NewNavigator(f, quietLogger())
	require.ErrorIs(t, n.Focus(context.Background(), month(2026, time.April)), ErrNotOpen)
}

func TestFocusHonoursCancellation(t *testing.T) {
	f := newFakeCalendar(month(2026, time.March), month(2026, time.May))
	n := openNavigator(t, f)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, n.Focus(ctx, month(2026, time.September)), context.Canceled)
}

func TestOpenAcceptsConsentAndFallsBackThroughLocators(t *testing.T) {
	f := newFakeCalendar(month(2026, time.March), month(2026, time.May))
	f.location = "https://consent.google.com/ml?continue=https://www.google.com/travel/flights"
	f.openSelector = DateInputSelectors[2]

	n := NewNavigator(f, quietLogger())
	n.sleep = noSleep
	require.NoError(t, n.Open(context.Background()))
	require.True(t, f.consented)
	require.Equal(t, Browsing, n.State())
}

func TestOpenCalendarNotFound(t *testing.T) {
	f := newFakeCalendar(month(2026, time.March), month(2026, time.May))
	f.openSelector = "nothing matches"

	n := NewNavigator(f, quietLogger())
	n.sleep = noSleep
	err := n.Open(context.Background())

	var cnf *CalendarNotFoundError
	require.True(t, errors.As(err, &cnf))
	require.Equal(t, DateInputSelectors, cnf.Tried)
	require.Equal(t, Closed, n.State())
}

func TestOpenDialogNeverAppears(t *testing.T) {
	f := newFakeCalendar(month(2026, time.March), month(2026, time.May))
	f.dialogOpen = false

	n := NewNavigator(f, quietLogger())
	n.sleep = noSleep
	var cnf *CalendarNotFoundError
	require.True(t, errors.As(n.Open(context.Background()), &cnf))
}

func TestLocate(t *testing.T) {
	groups := []struct{ y, m int }{{2026, 3}, {2026, 4}, {2026, 6}}
	windows := make([]models.MonthWindow, 0, len(groups))
	for _, g := range groups {
		w := month(g.y, time.Month(g.m))
		w.Loaded = true
		windows = append(windows, w)
	}

	pos, lo, hi, closest := locate(windows, month(2026, time.May))
	require.Equal(t, -1, pos)
	require.Equal(t, month(2026, time.March).Index(), lo)
	require.Equal(t, month(2026, time.June).Index(), hi)
	require.Equal(t, 1, closest)

	pos, _, _, _ = locate(windows, month(2026, time.June))
	require.Equal(t, 2, pos)
}
