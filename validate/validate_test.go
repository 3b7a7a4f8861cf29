package validate

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/MohamedBouchiba/Travliaq-Google-Flights-Scrapper/models"
)

var now = time.Date(2026, time.March, 10, 15, 0, 0, 0, time.UTC)

func TestAirportCode(t *testing.T) {
	code, err := AirportCode("  cdg ")
	require.NoError(t, err)
	require.Equal(t, "CDG", code)

	for _, bad := range []string{"", "CD", "CDGX", "C1G", "ÇDG"} {
		_, err := AirportCode(bad)
		require.Error(t, err, bad)
	}
}

func TestRequestNormalises(t *testing.T) {
	req := models.ScrapeRequest{Origin: " bru", Destination: "cdg ", Months: 3}
	require.NoError(t, Request(&req, now))
	require.Equal(t, "BRU", req.Origin)
	require.Equal(t, "CDG", req.Destination)
}

func TestRequestRejects(t *testing.T) {
	cases := []struct {
		name  string
		req   models.ScrapeRequest
		field string
	}{
		{"same route", models.ScrapeRequest{Origin: "CDG", Destination: "cdg"}, "destination"},
		{"bad origin", models.ScrapeRequest{Origin: "PARIS", Destination: "CDG"}, "origin"},
		{"missing destination", models.ScrapeRequest{Origin: "CDG"}, "destination"},
		{"months too large", models.ScrapeRequest{Origin: "CDG", Destination: "NCL", Months: 13}, "months"},
		{"bad date", models.ScrapeRequest{Origin: "CDG", Destination: "NCL", StartDate: "2026/04/01", EndDate: "2026-04-30"}, "start_date"},
		{"half range", models.ScrapeRequest{Origin: "CDG", Destination: "NCL", EndDate: "2026-04-30"}, "start_date"},
		{"past date", models.ScrapeRequest{Origin: "CDG", Destination: "NCL", StartDate: "2026-03-09", EndDate: "2026-04-30"}, "start_date"},
		{"inverted range", models.ScrapeRequest{Origin: "CDG", Destination: "NCL", StartDate: "2026-05-01", EndDate: "2026-04-30"}, "end_date"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Request(&tc.req, now)
			var verr *Error
			require.True(t, errors.As(err, &verr), "got %v", err)
			require.Equal(t, tc.field, verr.Field)
		})
	}
}

func TestRequestAcceptsToday(t *testing.T) {
	req := models.ScrapeRequest{Origin: "CDG", Destination: "NCL", StartDate: "2026-03-10", EndDate: "2026-03-10"}
	require.NoError(t, Request(&req, now))
}
