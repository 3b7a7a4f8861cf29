package scraper

import (
	"fmt"
	"net/url"
)

// Selectors for the Google Flights date picker. The widget is served in
// French (hl=fr) so aria labels are French.
const (
	// Search page
	SearchURLFormat = "https://www.google.com/travel/flights?q=Flights+from+%s+to+%s&curr=EUR&hl=fr"
	ConsentHost     = "consent.google.com"
	ConsentButton   = `//button[.//span[contains(text(), 'Tout accepter')]]`

	// Date picker dialog
	DialogSelector = `div[role="dialog"]`
	MonthGroupXPath = `//div[@role='dialog']//div[@jsname='RAZSvb']` +
		`//div[@role='rowgroup' and contains(@class,'Bc6Ryd')]`
	MonthHeaderSelector = `.BgYkof.B5dqIf.qZwLKe`
	DayStampSelector    = `[data-iso]`

	// Month navigation arrows
	PrevLabel   = "Précédent"
	NextLabel   = "Suivant"
	ArrowXPathF = `//div[@role='dialog']//button[contains(@class,'a2rVxf') and @aria-label='%s']`

	// Grid cells
	GridCellXPath     = `//div[@role='dialog']//*[@role='gridcell' and @data-iso]`
	CellDaySelector   = `[jsname='nEWxA']`
	CellPriceSelector = `[jsname='qCDwBb']`
)

// DateInputSelectors are tried in order to open the date picker.
var DateInputSelectors = []string{
	`input[aria-label*="Départ"]`,
	`button[aria-label*="Départ"]`,
	`input[placeholder*="Départ"]`,
	`button[jsname="oYxtQd"]`,
}

// SearchURL returns the flights search page for a route.
func SearchURL(origin, destination string) string {
	return fmt.Sprintf(SearchURLFormat, url.QueryEscape(origin), url.QueryEscape(destination))
}
