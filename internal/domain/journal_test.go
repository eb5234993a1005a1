package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	customError "github.com/schoolbill/fee-engine/pkg/errors"
)

func entryWithDue(amount int64) *FeeJournalEntry {
	due := decimal.NewFromInt(amount)
	return &FeeJournalEntry{
		StudentID:       "STU-001",
		FeeMonth:        "2026-08",
		DueAmount:       due,
		PaidAmount:      decimal.Zero,
		BalanceAmount:   due,
		Status:          JournalStatusPending,
		DueDate:         time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC),
		GracePeriodDays: 5,
		LateFeeAmount:   decimal.NewFromInt(50),
	}
}

func TestNewJournalEntry(t *testing.T) {
	assignment := &StudentFeeAssignment{StudentID: "STU-001"}
	structure := validStructure()

	entry, err := NewJournalEntry(assignment, structure, "2026-08", decimal.NewFromInt(1080))
	assert.NoError(t, err)
	assert.Equal(t, JournalStatusPending, entry.Status)
	assert.True(t, entry.PaidAmount.IsZero())
	assert.True(t, entry.BalanceAmount.Equal(decimal.NewFromInt(1080)))
	assert.Equal(t, 10, entry.DueDate.Day())
	assert.Equal(t, time.August, entry.DueDate.Month())
	assert.Equal(t, structure.DueDate.GracePeriodDays, entry.GracePeriodDays)

	_, err = NewJournalEntry(assignment, structure, "August 2026", decimal.NewFromInt(1080))
	assert.Error(t, err)
}

func TestApplyAmount_FullPayment(t *testing.T) {
	entry := entryWithDue(1080)
	paidAt := time.Date(2026, 8, 5, 0, 0, 0, 0, time.UTC)

	err := entry.ApplyAmount(decimal.NewFromInt(1080), paidAt)

	assert.NoError(t, err)
	assert.Equal(t, JournalStatusPaid, entry.Status)
	assert.True(t, entry.BalanceAmount.IsZero())
	assert.NotNil(t, entry.PaidDate)

	// Any further payment overpays a zero balance.
	err = entry.ApplyAmount(decimal.NewFromInt(1), paidAt)
	assert.True(t, errors.Is(err, customError.ErrOverpayment))
}

func TestApplyAmount_PartialThenFull(t *testing.T) {
	entry := entryWithDue(1080)
	paidAt := time.Date(2026, 8, 5, 0, 0, 0, 0, time.UTC)

	assert.NoError(t, entry.ApplyAmount(decimal.NewFromInt(500), paidAt))
	assert.Equal(t, JournalStatusPartial, entry.Status)
	assert.True(t, entry.BalanceAmount.Equal(decimal.NewFromInt(580)))
	assert.Nil(t, entry.PaidDate)

	assert.NoError(t, entry.ApplyAmount(decimal.NewFromInt(580), paidAt))
	assert.Equal(t, JournalStatusPaid, entry.Status)
	assert.True(t, entry.BalanceAmount.IsZero())

	// Balance never drifts from due - paid.
	assert.True(t, entry.BalanceAmount.Equal(entry.DueAmount.Sub(entry.PaidAmount)))
}

func TestApplyAmount_Rejections(t *testing.T) {
	paidAt := time.Date(2026, 8, 5, 0, 0, 0, 0, time.UTC)

	t.Run("Zero amount", func(t *testing.T) {
		entry := entryWithDue(1080)
		err := entry.ApplyAmount(decimal.Zero, paidAt)
		assert.True(t, errors.Is(err, customError.ErrValidation))
		assert.Equal(t, JournalStatusPending, entry.Status)
	})

	t.Run("Negative amount", func(t *testing.T) {
		entry := entryWithDue(1080)
		err := entry.ApplyAmount(decimal.NewFromInt(-10), paidAt)
		assert.True(t, errors.Is(err, customError.ErrValidation))
	})

	t.Run("Amount above balance", func(t *testing.T) {
		entry := entryWithDue(1080)
		err := entry.ApplyAmount(decimal.NewFromInt(1081), paidAt)
		assert.True(t, errors.Is(err, customError.ErrOverpayment))
		assert.True(t, entry.PaidAmount.IsZero(), "failed payment must not mutate the entry")
	})

	t.Run("Waived entry rejects payment", func(t *testing.T) {
		entry := entryWithDue(1080)
		assert.NoError(t, entry.Waive("hardship case", paidAt))
		err := entry.ApplyAmount(decimal.NewFromInt(100), paidAt)
		assert.True(t, errors.Is(err, customError.ErrInvalidState))
	})
}

func TestWaive(t *testing.T) {
	at := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)

	t.Run("Waive forces balance to zero", func(t *testing.T) {
		entry := entryWithDue(1080)
		assert.NoError(t, entry.ApplyAmount(decimal.NewFromInt(300), at))

		err := entry.Waive("family hardship", at)
		assert.NoError(t, err)
		assert.Equal(t, JournalStatusWaived, entry.Status)
		assert.True(t, entry.BalanceAmount.IsZero())
		assert.Equal(t, "family hardship", *entry.WaiverReason)
	})

	t.Run("Paid entry cannot be waived", func(t *testing.T) {
		entry := entryWithDue(100)
		assert.NoError(t, entry.ApplyAmount(decimal.NewFromInt(100), at))
		assert.True(t, errors.Is(entry.Waive("late request", at), customError.ErrInvalidState))
	})

	t.Run("Waive is terminal", func(t *testing.T) {
		entry := entryWithDue(100)
		assert.NoError(t, entry.Waive("first waiver", at))
		assert.True(t, errors.Is(entry.Waive("second waiver", at), customError.ErrInvalidState))
	})

	t.Run("Reason required", func(t *testing.T) {
		entry := entryWithDue(100)
		assert.True(t, errors.Is(entry.Waive("ab", at), customError.ErrValidation))
	})
}

func TestMarkOverdue(t *testing.T) {
	pastGrace := time.Date(2026, 8, 16, 0, 0, 0, 0, time.UTC) // due 10th + 5 grace

	t.Run("Informational mode records fee without re-invoicing", func(t *testing.T) {
		entry := entryWithDue(1080)

		assert.True(t, entry.MarkOverdue(pastGrace, false))
		assert.Equal(t, JournalStatusOverdue, entry.Status)
		assert.True(t, entry.LateFeeApplied.Valid)
		assert.True(t, entry.LateFeeApplied.Decimal.Equal(decimal.NewFromInt(50)))
		assert.True(t, entry.DueAmount.Equal(decimal.NewFromInt(1080)), "due amount untouched")
		assert.True(t, entry.BalanceAmount.Equal(decimal.NewFromInt(1080)))
	})

	t.Run("Auto-apply mode adds fee to due and balance", func(t *testing.T) {
		entry := entryWithDue(1080)

		assert.True(t, entry.MarkOverdue(pastGrace, true))
		assert.True(t, entry.DueAmount.Equal(decimal.NewFromInt(1130)))
		assert.True(t, entry.BalanceAmount.Equal(decimal.NewFromInt(1130)))
	})

	t.Run("Late fee applied at most once", func(t *testing.T) {
		entry := entryWithDue(1080)
		assert.True(t, entry.MarkOverdue(pastGrace, true))

		entry.Status = JournalStatusPartial // a payment came in later
		assert.True(t, entry.MarkOverdue(pastGrace.AddDate(0, 0, 10), true))
		assert.True(t, entry.DueAmount.Equal(decimal.NewFromInt(1130)), "fee must not compound")
	})

	t.Run("Within grace does nothing", func(t *testing.T) {
		entry := entryWithDue(1080)
		assert.False(t, entry.MarkOverdue(time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC), false))
		assert.Equal(t, JournalStatusPending, entry.Status)
	})

	t.Run("Paid entry never goes overdue", func(t *testing.T) {
		entry := entryWithDue(1080)
		assert.NoError(t, entry.ApplyAmount(decimal.NewFromInt(1080), pastGrace))
		assert.False(t, entry.MarkOverdue(pastGrace, false))
	})
}

func TestEffectiveStatus(t *testing.T) {
	entry := entryWithDue(1080)

	withinGrace := time.Date(2026, 8, 12, 0, 0, 0, 0, time.UTC)
	pastGrace := time.Date(2026, 8, 16, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, JournalStatusPending, entry.EffectiveStatus(withinGrace))
	assert.Equal(t, JournalStatusOverdue, entry.EffectiveStatus(pastGrace))
	assert.Equal(t, JournalStatusPending, entry.Status, "derivation must not mutate")
}

func TestReverseAmount(t *testing.T) {
	at := time.Date(2026, 8, 5, 0, 0, 0, 0, time.UTC)

	entry := entryWithDue(1080)
	assert.NoError(t, entry.ApplyAmount(decimal.NewFromInt(1080), at))

	assert.NoError(t, entry.ReverseAmount(decimal.NewFromInt(500)))
	assert.Equal(t, JournalStatusPartial, entry.Status)
	assert.True(t, entry.BalanceAmount.Equal(decimal.NewFromInt(500)))
	assert.Nil(t, entry.PaidDate)

	assert.NoError(t, entry.ReverseAmount(decimal.NewFromInt(580)))
	assert.Equal(t, JournalStatusPending, entry.Status)
	assert.True(t, entry.PaidAmount.IsZero())

	err := entry.ReverseAmount(decimal.NewFromInt(1))
	assert.True(t, errors.Is(err, customError.ErrInvalidState))
}
