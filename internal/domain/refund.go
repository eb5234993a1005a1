package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	customError "github.com/schoolbill/fee-engine/pkg/errors"
)

// Refund lifecycle states
const (
	RefundStatusPending   = "Pending"
	RefundStatusApproved  = "Approved"
	RefundStatusRejected  = "Rejected"
	RefundStatusCompleted = "Completed"
)

// Refund references exactly one completed payment. It starts Pending;
// approval or rejection is an administrative step, and completion of an
// approved refund transitions the source payment to Refunded or
// Partially Refunded.
type Refund struct {
	ID           uuid.UUID       `json:"id" db:"id"`
	PaymentID    uuid.UUID       `json:"payment_id" db:"payment_id"`
	RefundAmount decimal.Decimal `json:"refund_amount" db:"refund_amount"`
	Reason       string          `json:"reason" db:"reason"`
	IsFullRefund bool            `json:"is_full_refund" db:"is_full_refund"`
	Status       string          `json:"status" db:"status"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at" db:"updated_at"`
}

// NewRefund validates a refund request against its source payment.
func NewRefund(p *Payment, amount decimal.Decimal, reason string, isFull bool) (*Refund, error) {
	if p.Status != PaymentStatusCompleted {
		return nil, customError.WrapInvalidState("payment " + p.ID.String() + " is not Completed; refunds require a completed payment")
	}

	var fields []customError.FieldError
	if len(reason) < 10 {
		fields = append(fields, customError.FieldError{Field: "reason", Constraint: "must be at least 10 characters"})
	}
	if !amount.IsPositive() || amount.GreaterThan(p.TotalAmount) {
		fields = append(fields, customError.FieldError{Field: "refundAmount", Constraint: "must be > 0 and <= the payment total"})
	}
	if isFull && !amount.Equal(p.TotalAmount) {
		fields = append(fields, customError.FieldError{Field: "isFullRefund", Constraint: "full refund amount must equal the payment total"})
	}
	if len(fields) > 0 {
		return nil, customError.WrapValidation(fields...)
	}

	return &Refund{
		ID:           uuid.New(),
		PaymentID:    p.ID,
		RefundAmount: amount,
		Reason:       reason,
		IsFullRefund: isFull,
		Status:       RefundStatusPending,
	}, nil
}

// Approve moves a pending refund to Approved.
func (r *Refund) Approve() error {
	if r.Status != RefundStatusPending {
		return customError.WrapInvalidState("refund " + r.ID.String() + " is " + r.Status + "; only pending refunds can be approved")
	}
	r.Status = RefundStatusApproved
	return nil
}

// Reject moves a pending refund to Rejected (terminal).
func (r *Refund) Reject() error {
	if r.Status != RefundStatusPending {
		return customError.WrapInvalidState("refund " + r.ID.String() + " is " + r.Status + "; only pending refunds can be rejected")
	}
	r.Status = RefundStatusRejected
	return nil
}

// Complete finishes an approved refund and returns the status the source
// payment must transition to.
func (r *Refund) Complete() (paymentStatus string, err error) {
	if r.Status != RefundStatusApproved {
		return "", customError.WrapInvalidState("refund " + r.ID.String() + " is " + r.Status + "; only approved refunds can be completed")
	}
	r.Status = RefundStatusCompleted
	if r.IsFullRefund {
		return PaymentStatusRefunded, nil
	}
	return PaymentStatusPartiallyRefunded, nil
}

// DTOs for requests and responses

type RequestRefundRequest struct {
	RefundAmount decimal.Decimal `json:"refund_amount" validate:"decimal_gt=0"`
	Reason       string          `json:"reason" validate:"required,min=10"`
	IsFullRefund bool            `json:"is_full_refund"`
}
