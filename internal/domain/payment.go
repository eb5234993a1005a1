package domain

import (
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	customError "github.com/schoolbill/fee-engine/pkg/errors"
)

// Payment methods
const (
	MethodCash         = "Cash"
	MethodCard         = "Card"
	MethodBankTransfer = "Bank Transfer"
	MethodUPI          = "UPI"
	MethodCheque       = "Cheque"
)

// Payment lifecycle states
const (
	PaymentStatusCompleted         = "Completed"
	PaymentStatusPending           = "Pending"
	PaymentStatusFailed            = "Failed"
	PaymentStatusRefunded          = "Refunded"
	PaymentStatusPartiallyRefunded = "Partially Refunded"
)

// PaymentFeeItem is one allocation of a payment to a journal entry, with
// snapshots of the entry's due amount and post-payment balance.
type PaymentFeeItem struct {
	ID               uuid.UUID       `json:"id" db:"id"`
	PaymentID        uuid.UUID       `json:"payment_id" db:"payment_id"`
	JournalEntryID   uuid.UUID       `json:"journal_entry_id" db:"journal_entry_id"`
	AmountDue        decimal.Decimal `json:"amount_due" db:"amount_due"`
	AmountPaid       decimal.Decimal `json:"amount_paid" db:"amount_paid"`
	RemainingBalance decimal.Decimal `json:"remaining_balance" db:"remaining_balance"`
}

// Payment is one transaction applying money against one or more journal
// entries for a single student. Written atomically with all of its items
// and the entry updates; immutable once Completed except for refund-driven
// status transitions.
type Payment struct {
	ID                   uuid.UUID         `json:"id" db:"id"`
	StudentID            string            `json:"student_id" db:"student_id"`
	Items                []*PaymentFeeItem `json:"fee_items" db:"-"`
	TotalAmount          decimal.Decimal   `json:"total_amount" db:"total_amount"`
	PreviousBalance      decimal.Decimal   `json:"previous_balance" db:"previous_balance"`
	RemainingBalance     decimal.Decimal   `json:"remaining_balance" db:"remaining_balance"`
	PaymentDate          time.Time         `json:"payment_date" db:"payment_date"`
	PaymentMethod        string            `json:"payment_method" db:"payment_method"`
	TransactionReference *string           `json:"transaction_reference,omitempty" db:"transaction_reference"`
	Notes                *string           `json:"notes,omitempty" db:"notes"`
	Status               string            `json:"status" db:"status"`
	ReceiptNumber        string            `json:"receipt_number" db:"receipt_number"`
	CreatedAt            time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time         `json:"updated_at" db:"updated_at"`
}

// ValidMethod reports whether m is a supported payment method.
func ValidMethod(m string) bool {
	switch m {
	case MethodCash, MethodCard, MethodBankTransfer, MethodUPI, MethodCheque:
		return true
	}
	return false
}

// DTOs for requests and responses

type PaymentFeeItemRequest struct {
	JournalEntryID string          `json:"journal_entry_id" validate:"required,uuid4"`
	AmountPaid     decimal.Decimal `json:"amount_paid" validate:"decimal_gt=0"`
}

type ApplyPaymentRequest struct {
	StudentID            string                  `json:"student_id" validate:"required"`
	FeeItems             []PaymentFeeItemRequest `json:"fee_items" validate:"required,min=1,dive"`
	PaymentMethod        string                  `json:"payment_method" validate:"required"`
	TransactionReference *string                 `json:"transaction_reference"`
	PaymentDate          time.Time               `json:"payment_date" validate:"required"`
	Notes                *string                 `json:"notes"`
}

// Validate enforces the request-level payment rules before any state is
// touched: duplicate targeting, method/reference pairing, and the
// no-future-dates rule. Per-entry balance checks happen under lock in the
// repository transaction.
func (r *ApplyPaymentRequest) Validate(now time.Time) error {
	var fields []customError.FieldError

	if !ValidMethod(r.PaymentMethod) {
		fields = append(fields, customError.FieldError{Field: "paymentMethod", Constraint: "must be one of Cash, Card, Bank Transfer, UPI, Cheque"})
	}
	if r.PaymentMethod != MethodCash && (r.TransactionReference == nil || *r.TransactionReference == "") {
		fields = append(fields, customError.FieldError{Field: "transactionReference", Constraint: "is required for non-Cash payment methods"})
	}
	if r.PaymentDate.After(now) {
		fields = append(fields, customError.FieldError{Field: "paymentDate", Constraint: "must not be in the future"})
	}
	for i, item := range r.FeeItems {
		if !item.AmountPaid.IsPositive() {
			fields = append(fields, customError.FieldError{
				Field:      "feeItems[" + strconv.Itoa(i) + "].amountPaid",
				Constraint: "must be > 0",
			})
		}
	}
	if len(fields) > 0 {
		return customError.WrapValidation(fields...)
	}

	seen := make(map[string]struct{}, len(r.FeeItems))
	for _, item := range r.FeeItems {
		if _, dup := seen[item.JournalEntryID]; dup {
			return customError.WrapDuplicateFeeItem(item.JournalEntryID)
		}
		seen[item.JournalEntryID] = struct{}{}
	}
	return nil
}

type PaymentResponse struct {
	Payment *Payment `json:"payment"`
	Receipt *Receipt `json:"receipt"`
}
