package validator

import (
	"errors"
	"fmt"
	"time"
)

// DateLayout is the wire format for calendar dates
const DateLayout = "2006-01-02"

var (
	// ErrEmptyDate indicates a date string is empty
	ErrEmptyDate = errors.New("date cannot be empty")

	// ErrInvalidFormat indicates a date string is not YYYY-MM-DD
	ErrInvalidFormat = errors.New("date must be in YYYY-MM-DD format")

	// ErrEndBeforeStart indicates end date is not after start date
	ErrEndBeforeStart = errors.New("end date must be after start date")

	// ErrStartInPast indicates the start date is before today
	ErrStartInPast = errors.New("start date cannot be in the past")
)

// DateRangeValidator validates half-open [start, end) calendar date ranges
type DateRangeValidator struct {
	// Now is injectable for tests; defaults to time.Now
	Now func() time.Time
}

// NewDateRangeValidator creates a new date range validator instance
func NewDateRangeValidator() *DateRangeValidator {
	return &DateRangeValidator{Now: time.Now}
}

// ParseDate parses a YYYY-MM-DD string into a UTC midnight time
func (v *DateRangeValidator) ParseDate(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, ErrEmptyDate
	}
	t, err := time.Parse(DateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidFormat, value)
	}
	return t.UTC(), nil
}

// ParseRange parses and orders a start/end pair. The range is half-open:
// end is the checkout day and is excluded from the stay.
func (v *DateRangeValidator) ParseRange(startValue, endValue string) (time.Time, time.Time, error) {
	start, err := v.ParseDate(startValue)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("start_date: %w", err)
	}
	end, err := v.ParseDate(endValue)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("end_date: %w", err)
	}
	if !end.After(start) {
		return time.Time{}, time.Time{}, ErrEndBeforeStart
	}
	return start, end, nil
}

// ValidateFuture rejects ranges whose start day is before today
func (v *DateRangeValidator) ValidateFuture(start time.Time) error {
	now := v.Now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if start.Before(today) {
		return ErrStartInPast
	}
	return nil
}

// Overlaps reports whether two half-open ranges overlap. Strict inequality on
// both sides: a range ending on day D never conflicts with one starting on D.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}

// DaysBetween returns each calendar day of [start, end)
func DaysBetween(start, end time.Time) []time.Time {
	var days []time.Time
	for d := start; d.Before(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}
