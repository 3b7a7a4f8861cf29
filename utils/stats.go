package utils

import (
	"math"
	"sort"
	"time"

	"github.com/MohamedBouchiba/Travliaq-Google-Flights-Scrapper/models"
)

const bestDatesCount = 5

// BuildPriceStats turns a raw price map into the response document: totals,
// min/max/average and the cheapest days.
func BuildPriceStats(route models.Route, prices models.PriceMap, scrapedAt time.Time, fromCache bool) models.CalendarPrices {
	stats := models.CalendarPrices{
		Origin:      route.Origin,
		Destination: route.Destination,
		Prices:      prices,
		Currency:    models.Currency,
		TotalDates:  len(prices),
		BestDates:   []models.PricePoint{},
		ScrapedAt:   scrapedAt,
		FromCache:   fromCache,
	}
	if len(prices) == 0 {
		return stats
	}

	points := prices.Points()
	minPrice := points[0].Price
	maxPrice := points[0].Price
	var total float64

	for _, p := range points {
		total += p.Price
		if p.Price < minPrice {
			minPrice = p.Price
		}
		if p.Price > maxPrice {
			maxPrice = p.Price
		}
	}

	stats.MinPrice = minPrice
	stats.MaxPrice = maxPrice
	stats.AveragePrice = math.Round(total/float64(len(points))*100) / 100

	cheapest := make([]models.PricePoint, len(points))
	copy(cheapest, points)
	sort.SliceStable(cheapest, func(i, j int) bool {
		if cheapest[i].Price == cheapest[j].Price {
			return cheapest[i].Date < cheapest[j].Date
		}
		return cheapest[i].Price < cheapest[j].Price
	})
	if len(cheapest) > bestDatesCount {
		cheapest = cheapest[:bestDatesCount]
	}
	stats.BestDates = cheapest

	return stats
}
