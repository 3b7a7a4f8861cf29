package scraper

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/MohamedBouchiba/Travliaq-Google-Flights-Scrapper/models"
)

// monthTokens maps every month name or abbreviation the widget renders
// (French UI, plus English for non-pinned locales) to its number.
var monthTokens = map[string]time.Month{
	"janvier": time.January, "janv": time.January, "janv.": time.January,
	"février": time.February, "fevrier": time.February, "févr": time.February,
	"févr.": time.February, "fevr": time.February, "fevr.": time.February,
	"mars": time.March,
	"avril": time.April, "avr": time.April, "avr.": time.April,
	"mai": time.May,
	"juin": time.June,
	"juillet": time.July, "juil": time.July, "juil.": time.July,
	"août": time.August, "aout": time.August,
	"septembre": time.September, "sept": time.September, "sept.": time.September,
	"octobre": time.October, "oct": time.October, "oct.": time.October,
	"novembre": time.November, "nov": time.November, "nov.": time.November,
	"décembre": time.December, "decembre": time.December, "déc": time.December,
	"déc.": time.December, "dec": time.December, "dec.": time.December,

	"january": time.January, "jan": time.January,
	"february": time.February, "feb": time.February,
	"march": time.March, "mar": time.March,
	"april": time.April, "apr": time.April,
	"may": time.May,
	"june": time.June, "jun": time.June,
	"july": time.July, "jul": time.July,
	"august": time.August, "aug": time.August,
	"september": time.September, "sep": time.September,
	"october": time.October,
	"november": time.November,
	"december": time.December,
}

func init() {
	seen := make(map[time.Month]bool)
	for token, m := range monthTokens {
		if token != strings.ToLower(strings.TrimSpace(token)) {
			panic(fmt.Sprintf("scraper: month token %q is not canonical", token))
		}
		if m < time.January || m > time.December {
			panic(fmt.Sprintf("scraper: month token %q maps to %d", token, m))
		}
		seen[m] = true
	}
	if len(seen) != 12 {
		panic(fmt.Sprintf("scraper: month table covers %d months", len(seen)))
	}
}

// LookupMonth resolves a month name or abbreviation. Unknown tokens are
// rejected rather than guessed.
func LookupMonth(token string) (time.Month, bool) {
	m, ok := monthTokens[strings.ToLower(strings.TrimSpace(token))]
	return m, ok
}

var (
	isoPattern    = regexp.MustCompile(`(\d{4})-(\d{2})-(\d{2})`)
	headerPattern = regexp.MustCompile(`^\s*(\S+)(?:\s+(\d{4}))?\s*$`)
)

// monthFromISO reads year and month out of a data-iso day stamp.
func monthFromISO(iso string) (models.MonthWindow, bool) {
	m := isoPattern.FindStringSubmatch(iso)
	if m == nil {
		return models.MonthWindow{}, false
	}
	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	if month < 1 || month > 12 {
		return models.MonthWindow{}, false
	}
	return models.MonthWindow{Year: year, Month: time.Month(month)}, true
}

// monthFromHeader parses "janvier 2026" style headers. Headers without a
// year are ambiguous and are reported as unresolved.
func monthFromHeader(header string) (models.MonthWindow, bool) {
	m := headerPattern.FindStringSubmatch(header)
	if m == nil || m[2] == "" {
		return models.MonthWindow{}, false
	}
	month, ok := LookupMonth(m[1])
	if !ok {
		return models.MonthWindow{}, false
	}
	year, _ := strconv.Atoi(m[2])
	return models.MonthWindow{Year: year, Month: month}, true
}

// ResolveGroup determines which month a rendered block shows, preferring the
// concrete day stamp over the header text.
func ResolveGroup(g models.MonthGroup) (models.MonthWindow, bool) {
	if w, ok := monthFromISO(g.FirstISO); ok {
		w.Loaded = true
		return w, true
	}
	if w, ok := monthFromHeader(g.Header); ok {
		w.Loaded = true
		return w, true
	}
	return models.MonthWindow{}, false
}

// ParseMonth accepts "2026-04", "avril 2026" or "april 2026".
func ParseMonth(s string) (models.MonthWindow, error) {
	if t, err := time.Parse("2006-01", strings.TrimSpace(s)); err == nil {
		return models.NewMonthWindow(t), nil
	}
	if w, ok := monthFromHeader(s); ok {
		w.Loaded = false
		return w, nil
	}
	return models.MonthWindow{}, fmt.Errorf("unrecognised month %q", s)
}
