package scraper

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/MohamedBouchiba/Travliaq-Google-Flights-Scrapper/models"
)

// ParseSnapshot applies the extraction rules to saved date picker markup,
// such as the .html files written next to error screenshots.
func ParseSnapshot(r io.Reader, month models.MonthWindow) (models.PriceMap, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}

	root := doc.Find(DialogSelector)
	if root.Length() == 0 {
		root = doc.Selection
	}

	var cells []models.CalendarCell
	root.Find(`[role="gridcell"][data-iso]`).Each(func(_ int, s *goquery.Selection) {
		iso, _ := s.Attr("data-iso")
		ariaHidden, _ := s.Attr("aria-hidden")
		cells = append(cells, models.CalendarCell{
			ISO:     iso,
			Day:     strings.TrimSpace(s.Find(CellDaySelector).First().Text()),
			Price:   strings.TrimSpace(s.Find(CellPriceSelector).First().Text()),
			Raw:     leafText(s),
			Visible: displayed(s),
			Hidden:  ariaHidden == "true",
		})
	})

	return ParseCells(cells, month), nil
}

// SnapshotMonths lists the months a snapshot renders, in document order.
func SnapshotMonths(r io.Reader) ([]models.MonthWindow, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	var months []models.MonthWindow
	doc.Find(`[role="rowgroup"]`).Each(func(_ int, s *goquery.Selection) {
		iso, _ := s.Find(DayStampSelector).First().Attr("data-iso")
		g := models.MonthGroup{
			Header:   strings.TrimSpace(s.Find(MonthHeaderSelector).First().Text()),
			FirstISO: iso,
		}
		if w, ok := ResolveGroup(g); ok {
			months = append(months, w)
		}
	})
	return months, nil
}

// leafText joins the text of elements without element children, one per
// line, approximating the browser's innerText for a cell.
func leafText(s *goquery.Selection) string {
	var lines []string
	s.Find("*").Each(func(_ int, el *goquery.Selection) {
		if el.Children().Length() > 0 {
			return
		}
		if t := strings.TrimSpace(el.Text()); t != "" {
			lines = append(lines, t)
		}
	})
	return strings.Join(lines, "\n")
}

// displayed rejects cells hidden by attribute or inline style, on the cell
// or any ancestor.
func displayed(s *goquery.Selection) bool {
	for sel := s; sel.Length() > 0; sel = sel.Parent() {
		if _, hidden := sel.Attr("hidden"); hidden {
			return false
		}
		style, _ := sel.Attr("style")
		style = strings.ReplaceAll(strings.ToLower(style), " ", "")
		if strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden") {
			return false
		}
	}
	return true
}
