package utils

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// FeeMonthLayout is the wire format for billing periods (e.g. "2026-08").
const FeeMonthLayout = "2006-01"

// RoundCurrency rounds a monetary value to 2 decimal places, half-up.
func RoundCurrency(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// MaxDecimal returns the larger of two decimals.
func MaxDecimal(a, b decimal.Decimal) decimal.Decimal {
	if a.GreaterThanOrEqual(b) {
		return a
	}
	return b
}

// ParseFeeMonth parses a YYYY-MM billing period into the first day of that month, UTC.
func ParseFeeMonth(feeMonth string) (time.Time, error) {
	t, err := time.Parse(FeeMonthLayout, feeMonth)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid fee month %q: %w", feeMonth, err)
	}
	return t, nil
}

// FeeMonthOf formats a date as its YYYY-MM billing period.
func FeeMonthOf(t time.Time) string {
	return t.Format(FeeMonthLayout)
}

// DueDateInMonth resolves a configured day-of-month within a billing period.
// Days past the end of a short month clamp to its last day (31 -> Feb 28/29).
func DueDateInMonth(monthStart time.Time, dueDay int) time.Time {
	lastDay := monthStart.AddDate(0, 1, -1).Day()
	if dueDay > lastDay {
		dueDay = lastDay
	}
	return time.Date(monthStart.Year(), monthStart.Month(), dueDay, 0, 0, 0, 0, monthStart.Location())
}

// MonthsBetween counts whole calendar months from a to b, ignoring day-of-month.
func MonthsBetween(a, b time.Time) int {
	return (b.Year()-a.Year())*12 + int(b.Month()) - int(a.Month())
}

// IsPastGrace reports whether a due date plus its grace period has elapsed.
func IsPastGrace(dueDate time.Time, graceDays int, now time.Time) bool {
	return now.After(dueDate.AddDate(0, 0, graceDays))
}

// GenerateReceiptNumber builds a unique receipt number like RCP-20260828-9F3A1C04.
func GenerateReceiptNumber(prefix string, at time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("%s-%s-%s", prefix, at.Format("20060102"), suffix)
}

// DecimalFromString converts string to decimal.Decimal
func DecimalFromString(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(s)
}
