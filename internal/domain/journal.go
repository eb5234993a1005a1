package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	customError "github.com/schoolbill/fee-engine/pkg/errors"
	"github.com/schoolbill/fee-engine/pkg/utils"
)

// Journal entry lifecycle states
const (
	JournalStatusPending = "PENDING"
	JournalStatusPartial = "PARTIAL"
	JournalStatusPaid    = "PAID"
	JournalStatusOverdue = "OVERDUE"
	JournalStatusWaived  = "WAIVED"
)

// FeeJournalEntry is one billable instance for a student in a fee month.
// It is a financial record: never deleted, mutated only by payment
// application, the overdue sweep, or an administrative waiver. Due-date
// and late-fee configuration are snapshotted from the structure at
// materialization time so later structure edits cannot rewrite history.
type FeeJournalEntry struct {
	ID                uuid.UUID           `json:"id" db:"id"`
	AssignmentID      uuid.UUID           `json:"assignment_id" db:"assignment_id"`
	StudentID         string              `json:"student_id" db:"student_id"`
	FeeMonth          string              `json:"fee_month" db:"fee_month"`
	DueAmount         decimal.Decimal     `json:"due_amount" db:"due_amount"`
	PaidAmount        decimal.Decimal     `json:"paid_amount" db:"paid_amount"`
	BalanceAmount     decimal.Decimal     `json:"balance_amount" db:"balance_amount"`
	Status            string              `json:"status" db:"status"`
	DueDate           time.Time           `json:"due_date" db:"due_date"`
	GracePeriodDays   int                 `json:"grace_period_days" db:"grace_period_days"`
	LateFeeAmount     decimal.Decimal     `json:"late_fee_amount" db:"late_fee_amount"`
	LateFeePercentage decimal.NullDecimal `json:"late_fee_percentage,omitempty" db:"late_fee_percentage"`
	LateFeeApplied    decimal.NullDecimal `json:"late_fee_applied,omitempty" db:"late_fee_applied"`
	PaidDate          *time.Time          `json:"paid_date,omitempty" db:"paid_date"`
	WaiverReason      *string             `json:"waiver_reason,omitempty" db:"waiver_reason"`
	CreatedAt         time.Time           `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time           `json:"updated_at" db:"updated_at"`
}

// NewJournalEntry materializes a billable entry for an assignment.
func NewJournalEntry(a *StudentFeeAssignment, s *FeeStructure, feeMonth string, netAmount decimal.Decimal) (*FeeJournalEntry, error) {
	monthStart, err := utils.ParseFeeMonth(feeMonth)
	if err != nil {
		return nil, customError.WrapFieldError("feeMonth", "must match YYYY-MM")
	}

	return &FeeJournalEntry{
		ID:                uuid.New(),
		AssignmentID:      a.ID,
		StudentID:         a.StudentID,
		FeeMonth:          feeMonth,
		DueAmount:         netAmount,
		PaidAmount:        decimal.Zero,
		BalanceAmount:     netAmount,
		Status:            JournalStatusPending,
		DueDate:           utils.DueDateInMonth(monthStart, s.DueDate.DueDay),
		GracePeriodDays:   s.DueDate.GracePeriodDays,
		LateFeeAmount:     s.DueDate.LateFeeAmount,
		LateFeePercentage: s.DueDate.LateFeePercentage,
	}, nil
}

// ApplyAmount records a payment of amount against the entry and advances
// the state machine. The caller persists the mutated entry.
func (e *FeeJournalEntry) ApplyAmount(amount decimal.Decimal, paidAt time.Time) error {
	if e.Status == JournalStatusWaived {
		return customError.WrapInvalidState("journal entry " + e.ID.String() + " is waived; no further payments may be applied")
	}
	if !amount.IsPositive() {
		return customError.WrapFieldError("amountPaid", "must be > 0")
	}
	if amount.GreaterThan(e.BalanceAmount) {
		return customError.WrapOverpayment(e.ID.String(), amount, e.BalanceAmount)
	}

	e.PaidAmount = e.PaidAmount.Add(amount)
	e.BalanceAmount = e.DueAmount.Sub(e.PaidAmount)
	if e.BalanceAmount.IsZero() {
		e.Status = JournalStatusPaid
		e.PaidDate = &paidAt
	} else {
		e.Status = JournalStatusPartial
	}
	return nil
}

// ReverseAmount backs a refunded amount out of the entry, reopening it.
// Only meaningful when refund reversal is enabled by configuration.
func (e *FeeJournalEntry) ReverseAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return customError.WrapFieldError("refundAmount", "must be > 0")
	}
	if amount.GreaterThan(e.PaidAmount) {
		return customError.WrapInvalidState("cannot reverse more than was paid on journal entry " + e.ID.String())
	}

	e.PaidAmount = e.PaidAmount.Sub(amount)
	e.BalanceAmount = e.DueAmount.Sub(e.PaidAmount)
	e.PaidDate = nil
	if e.PaidAmount.IsZero() {
		e.Status = JournalStatusPending
	} else {
		e.Status = JournalStatusPartial
	}
	return nil
}

// Waive terminally closes the entry, forcing the balance to zero.
func (e *FeeJournalEntry) Waive(reason string, at time.Time) error {
	if e.Status == JournalStatusPaid {
		return customError.WrapInvalidState("journal entry " + e.ID.String() + " is already paid")
	}
	if e.Status == JournalStatusWaived {
		return customError.WrapInvalidState("journal entry " + e.ID.String() + " is already waived")
	}
	if len(reason) < 5 {
		return customError.WrapFieldError("waiverReason", "is required (>= 5 characters)")
	}

	e.Status = JournalStatusWaived
	e.BalanceAmount = decimal.Zero
	e.WaiverReason = &reason
	return nil
}

// IsPastGrace reports whether the grace period after the due date has
// elapsed while a balance remains.
func (e *FeeJournalEntry) IsPastGrace(now time.Time) bool {
	return e.BalanceAmount.IsPositive() && utils.IsPastGrace(e.DueDate, e.GracePeriodDays, now)
}

// EffectiveStatus derives the status as of now, surfacing OVERDUE between
// sweeps without mutating the stored record.
func (e *FeeJournalEntry) EffectiveStatus(now time.Time) string {
	if (e.Status == JournalStatusPending || e.Status == JournalStatusPartial) && e.IsPastGrace(now) {
		return JournalStatusOverdue
	}
	return e.Status
}

// MarkOverdue transitions the entry to OVERDUE and records the late fee
// once. When autoApply is set the late fee is added to the due amount and
// balance; otherwise it is informational only.
func (e *FeeJournalEntry) MarkOverdue(now time.Time, autoApply bool) bool {
	if !e.IsPastGrace(now) {
		return false
	}
	if e.Status != JournalStatusPending && e.Status != JournalStatusPartial {
		return false
	}

	e.Status = JournalStatusOverdue
	if !e.LateFeeApplied.Valid {
		fee := DueDateConfig{
			LateFeeAmount:     e.LateFeeAmount,
			LateFeePercentage: e.LateFeePercentage,
		}.LateFeeFor(e.DueAmount)
		e.LateFeeApplied = decimal.NewNullDecimal(fee)
		if autoApply {
			e.DueAmount = e.DueAmount.Add(fee)
			e.BalanceAmount = e.DueAmount.Sub(e.PaidAmount)
		}
	}
	return true
}

// DTOs for requests and responses

type MaterializeRequest struct {
	FeeMonth     string  `json:"fee_month" validate:"required"`
	AssignmentID *string `json:"assignment_id"`
}

type WaiveRequest struct {
	Reason string `json:"reason" validate:"required,min=5"`
}

type JournalFilter struct {
	FeeMonth string
	Status   string
}

// StudentFeeSummary aggregates a student's journal entries for display.
// Served read-through from the cache; recomputed on every invalidation.
type StudentFeeSummary struct {
	StudentID        string             `json:"student_id"`
	TotalDue         decimal.Decimal    `json:"total_due"`
	TotalPaid        decimal.Decimal    `json:"total_paid"`
	TotalOutstanding decimal.Decimal    `json:"total_outstanding"`
	OverdueCount     int                `json:"overdue_count"`
	Entries          []*FeeJournalEntry `json:"entries"`
	GeneratedAt      time.Time          `json:"generated_at"`
}
