package utils

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestRoundCurrency(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"No rounding needed", "1080.00", "1080"},
		{"Half rounds up", "10.005", "10.01"},
		{"Below half rounds down", "10.004", "10"},
		{"Three decimals", "1234.567", "1234.57"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, err := decimal.NewFromString(tt.input)
			assert.NoError(t, err)
			expected, err := decimal.NewFromString(tt.expected)
			assert.NoError(t, err)
			assert.True(t, RoundCurrency(in).Equal(expected),
				"got %s, want %s", RoundCurrency(in), expected)
		})
	}
}

func TestParseFeeMonth(t *testing.T) {
	monthStart, err := ParseFeeMonth("2026-08")
	assert.NoError(t, err)
	assert.Equal(t, 2026, monthStart.Year())
	assert.Equal(t, time.August, monthStart.Month())
	assert.Equal(t, 1, monthStart.Day())

	_, err = ParseFeeMonth("08-2026")
	assert.Error(t, err)

	_, err = ParseFeeMonth("2026-13")
	assert.Error(t, err)
}

func TestFeeMonthOf(t *testing.T) {
	assert.Equal(t, "2026-02", FeeMonthOf(time.Date(2026, 2, 17, 10, 0, 0, 0, time.UTC)))
}

func TestDueDateInMonth(t *testing.T) {
	tests := []struct {
		name     string
		month    string
		dueDay   int
		expected int
	}{
		{"Normal day", "2026-08", 10, 10},
		{"Day 31 in 30-day month clamps", "2026-04", 31, 30},
		{"Day 31 in February clamps", "2026-02", 31, 28},
		{"Day 31 in leap February clamps", "2028-02", 31, 29},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			monthStart, err := ParseFeeMonth(tt.month)
			assert.NoError(t, err)
			due := DueDateInMonth(monthStart, tt.dueDay)
			assert.Equal(t, tt.expected, due.Day())
			assert.Equal(t, monthStart.Month(), due.Month())
		})
	}
}

func TestMonthsBetween(t *testing.T) {
	jan := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	apr := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, 3, MonthsBetween(jan, apr))
	assert.Equal(t, -3, MonthsBetween(apr, jan))
	assert.Equal(t, 0, MonthsBetween(jan, jan))
	assert.Equal(t, 12, MonthsBetween(jan, jan.AddDate(1, 0, 0)))
}

func TestIsPastGrace(t *testing.T) {
	due := time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)

	assert.False(t, IsPastGrace(due, 5, due.AddDate(0, 0, 5)))
	assert.True(t, IsPastGrace(due, 5, due.AddDate(0, 0, 6)))
	assert.False(t, IsPastGrace(due, 0, due))
}

func TestGenerateReceiptNumber(t *testing.T) {
	at := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)

	first := GenerateReceiptNumber("RCP", at)
	second := GenerateReceiptNumber("RCP", at)

	assert.True(t, strings.HasPrefix(first, "RCP-20260828-"))
	assert.Len(t, first, len("RCP-20260828-")+8)
	assert.NotEqual(t, first, second)
}
