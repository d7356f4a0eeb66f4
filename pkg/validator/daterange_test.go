package validator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(value string) time.Time {
	t, err := time.Parse(DateLayout, value)
	if err != nil {
		panic(err)
	}
	return t.UTC()
}

func TestParseDate(t *testing.T) {
	v := NewDateRangeValidator()

	t.Run("Valid", func(t *testing.T) {
		parsed, err := v.ParseDate("2025-06-01")
		require.NoError(t, err)
		assert.Equal(t, 2025, parsed.Year())
		assert.Equal(t, time.June, parsed.Month())
		assert.Equal(t, 1, parsed.Day())
	})

	t.Run("Empty", func(t *testing.T) {
		_, err := v.ParseDate("")
		assert.ErrorIs(t, err, ErrEmptyDate)
	})

	t.Run("BadFormat", func(t *testing.T) {
		for _, value := range []string{"01-06-2025", "2025/06/01", "June 1 2025", "2025-13-01"} {
			_, err := v.ParseDate(value)
			assert.ErrorIs(t, err, ErrInvalidFormat, value)
		}
	})
}

func TestParseRange(t *testing.T) {
	v := NewDateRangeValidator()

	t.Run("Valid", func(t *testing.T) {
		start, end, err := v.ParseRange("2025-06-01", "2025-06-05")
		require.NoError(t, err)
		assert.Equal(t, day("2025-06-01"), start)
		assert.Equal(t, day("2025-06-05"), end)
	})

	t.Run("ZeroNights", func(t *testing.T) {
		_, _, err := v.ParseRange("2025-06-01", "2025-06-01")
		assert.ErrorIs(t, err, ErrEndBeforeStart)
	})

	t.Run("Reversed", func(t *testing.T) {
		_, _, err := v.ParseRange("2025-06-05", "2025-06-01")
		assert.ErrorIs(t, err, ErrEndBeforeStart)
	})
}

func TestValidateFuture(t *testing.T) {
	v := NewDateRangeValidator()
	v.Now = func() time.Time { return day("2025-05-01") }

	assert.NoError(t, v.ValidateFuture(day("2025-05-01")))
	assert.NoError(t, v.ValidateFuture(day("2025-06-01")))
	assert.ErrorIs(t, v.ValidateFuture(day("2025-04-30")), ErrStartInPast)
}

func TestOverlaps(t *testing.T) {
	tests := []struct {
		name                       string
		aStart, aEnd, bStart, bEnd string
		want                       bool
	}{
		{"Contained", "2025-06-01", "2025-06-05", "2025-06-02", "2025-06-03", true},
		{"PartialTail", "2025-06-01", "2025-06-05", "2025-06-03", "2025-06-07", true},
		{"PartialHead", "2025-06-03", "2025-06-07", "2025-06-01", "2025-06-05", true},
		{"Identical", "2025-06-01", "2025-06-05", "2025-06-01", "2025-06-05", true},
		{"TouchingBoundary", "2025-06-01", "2025-06-05", "2025-06-05", "2025-06-08", false},
		{"TouchingBoundaryReverse", "2025-06-05", "2025-06-08", "2025-06-01", "2025-06-05", false},
		{"Disjoint", "2025-06-01", "2025-06-03", "2025-06-10", "2025-06-12", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Overlaps(day(tt.aStart), day(tt.aEnd), day(tt.bStart), day(tt.bEnd))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDaysBetween(t *testing.T) {
	days := DaysBetween(day("2025-06-01"), day("2025-06-04"))
	require.Len(t, days, 3)
	assert.Equal(t, day("2025-06-01"), days[0])
	assert.Equal(t, day("2025-06-03"), days[2])

	assert.Empty(t, DaysBetween(day("2025-06-01"), day("2025-06-01")))
}
