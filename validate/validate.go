// Package validate normalises and checks scrape requests before any browser
// or database work happens.
package validate

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/MohamedBouchiba/Travliaq-Google-Flights-Scrapper/models"
)

var airportPattern = regexp.MustCompile(`^[A-Z]{3}$`)

var (
	validate *validator.Validate
	once     sync.Once
)

// Error is returned for any request that fails validation.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func instance() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
			if name == "" || name == "-" {
				return fld.Name
			}
			return name
		})
		_ = validate.RegisterValidation("airport", func(fl validator.FieldLevel) bool {
			return airportPattern.MatchString(fl.Field().String())
		})
		_ = validate.RegisterValidation("isodate", func(fl validator.FieldLevel) bool {
			_, err := time.Parse(models.DateLayout, fl.Field().String())
			return err == nil
		})
	})
	return validate
}

// AirportCode upper-cases and trims code and checks it is three letters.
func AirportCode(code string) (string, error) {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	if !airportPattern.MatchString(normalized) {
		return "", &Error{Field: "airport", Message: fmt.Sprintf("invalid airport code %q", code)}
	}
	return normalized, nil
}

// Request normalises req in place and validates it against now. Dates may not
// lie before today and the end date may not precede the start date.
func Request(req *models.ScrapeRequest, now time.Time) error {
	req.Origin = strings.ToUpper(strings.TrimSpace(req.Origin))
	req.Destination = strings.ToUpper(strings.TrimSpace(req.Destination))
	req.StartDate = strings.TrimSpace(req.StartDate)
	req.EndDate = strings.TrimSpace(req.EndDate)

	if err := instance().Struct(req); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return translate(fieldErrs[0])
		}
		return &Error{Message: err.Error()}
	}

	if req.StartDate == "" {
		return nil
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	start, _ := time.Parse(models.DateLayout, req.StartDate)
	end, _ := time.Parse(models.DateLayout, req.EndDate)
	if start.Before(today) {
		return &Error{Field: "start_date", Message: fmt.Sprintf("date %s is in the past", req.StartDate)}
	}
	if end.Before(start) {
		return &Error{Field: "end_date", Message: "end date precedes start date"}
	}
	return nil
}

func translate(fe validator.FieldError) error {
	field := fe.Field()
	switch fe.Tag() {
	case "required", "required_with":
		return &Error{Field: field, Message: "is required"}
	case "airport":
		return &Error{Field: field, Message: fmt.Sprintf("invalid airport code %q", fe.Value())}
	case "nefield":
		return &Error{Field: field, Message: "origin and destination must differ"}
	case "isodate":
		return &Error{Field: field, Message: fmt.Sprintf("invalid date %q, expected YYYY-MM-DD", fe.Value())}
	case "min", "max":
		return &Error{Field: field, Message: fmt.Sprintf("must be between 1 and 12, got %v", fe.Value())}
	}
	return &Error{Field: field, Message: fe.Error()}
}
