package utils

import (
	"fmt"
	"os"

	"github.com/jszwec/csvutil"

	"github.com/MohamedBouchiba/Travliaq-Google-Flights-Scrapper/models"
)

type csvRow struct {
	Origin      string  `csv:"origin"`
	Destination string  `csv:"destination"`
	Date        string  `csv:"date"`
	Price       float64 `csv:"price"`
	Currency    string  `csv:"currency"`
}

// WriteCSV flattens every successful route result into one row per day.
// Returns the number of rows written.
func WriteCSV(filename string, results []models.RouteResult) (int, error) {
	rows := make([]csvRow, 0)
	for _, r := range results {
		if r.Err != nil || r.Prices == nil {
			continue
		}
		for _, p := range r.Prices.Prices.Points() {
			rows = append(rows, csvRow{
				Origin:      r.Prices.Origin,
				Destination: r.Prices.Destination,
				Date:        p.Date,
				Price:       p.Price,
				Currency:    p.Currency,
			})
		}
	}

	data, err := csvutil.Marshal(rows)
	if err != nil {
		return 0, fmt.Errorf("marshal csv: %w", err)
	}
	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return 0, fmt.Errorf("write %s: %w", filename, err)
	}
	return len(rows), nil
}
