package domain

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	customError "github.com/schoolbill/fee-engine/pkg/errors"
)

func completedPayment(total int64) *Payment {
	return &Payment{
		ID:          uuid.New(),
		StudentID:   "STU-001",
		TotalAmount: decimal.NewFromInt(total),
		Status:      PaymentStatusCompleted,
	}
}

func TestNewRefund(t *testing.T) {
	tests := []struct {
		name          string
		payment       *Payment
		amount        decimal.Decimal
		reason        string
		isFull        bool
		expectedErr   error
		expectedField string
	}{
		{
			name:    "Valid partial refund",
			payment: completedPayment(1080),
			amount:  decimal.NewFromInt(500),
			reason:  "duplicate charge on statement",
		},
		{
			name:    "Valid full refund",
			payment: completedPayment(1080),
			amount:  decimal.NewFromInt(1080),
			reason:  "student withdrew mid-term",
			isFull:  true,
		},
		{
			name:          "Zero amount rejected",
			payment:       completedPayment(1080),
			amount:        decimal.Zero,
			reason:        "duplicate charge on statement",
			expectedErr:   customError.ErrValidation,
			expectedField: "refundAmount",
		},
		{
			name:          "Amount above payment total rejected",
			payment:       completedPayment(1080),
			amount:        decimal.NewFromInt(1081),
			reason:        "duplicate charge on statement",
			expectedErr:   customError.ErrValidation,
			expectedField: "refundAmount",
		},
		{
			name:          "Reason shorter than ten characters rejected",
			payment:       completedPayment(1080),
			amount:        decimal.NewFromInt(500),
			reason:        "wrong fee",
			expectedErr:   customError.ErrValidation,
			expectedField: "reason",
		},
		{
			name:          "Full refund flag with partial amount rejected",
			payment:       completedPayment(1080),
			amount:        decimal.NewFromInt(500),
			reason:        "student withdrew mid-term",
			isFull:        true,
			expectedErr:   customError.ErrValidation,
			expectedField: "isFullRefund",
		},
		{
			name: "Non-completed payment rejected",
			payment: &Payment{
				ID:          uuid.New(),
				TotalAmount: decimal.NewFromInt(1080),
				Status:      PaymentStatusPending,
			},
			amount:      decimal.NewFromInt(500),
			reason:      "duplicate charge on statement",
			expectedErr: customError.ErrInvalidState,
		},
		{
			name: "Already refunded payment rejected",
			payment: &Payment{
				ID:          uuid.New(),
				TotalAmount: decimal.NewFromInt(1080),
				Status:      PaymentStatusRefunded,
			},
			amount:      decimal.NewFromInt(500),
			reason:      "duplicate charge on statement",
			expectedErr: customError.ErrInvalidState,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			refund, err := NewRefund(tt.payment, tt.amount, tt.reason, tt.isFull)

			if tt.expectedErr != nil {
				assert.Error(t, err)
				assert.True(t, errors.Is(err, tt.expectedErr))
				if tt.expectedField != "" {
					var be *customError.BusinessError
					assert.True(t, errors.As(err, &be))
					found := false
					for _, f := range be.Fields {
						if f.Field == tt.expectedField {
							found = true
						}
					}
					assert.True(t, found, "expected field %q in %v", tt.expectedField, be.Fields)
				}
				return
			}

			assert.NoError(t, err)
			assert.Equal(t, RefundStatusPending, refund.Status)
			assert.Equal(t, tt.payment.ID, refund.PaymentID)
			assert.Equal(t, tt.isFull, refund.IsFullRefund)
		})
	}
}

func TestRefundTransitions(t *testing.T) {
	newPending := func() *Refund {
		r, err := NewRefund(completedPayment(1080), decimal.NewFromInt(1080), "student withdrew mid-term", true)
		assert.NoError(t, err)
		return r
	}

	t.Run("Approve then complete full refund", func(t *testing.T) {
		r := newPending()
		assert.NoError(t, r.Approve())
		assert.Equal(t, RefundStatusApproved, r.Status)

		paymentStatus, err := r.Complete()
		assert.NoError(t, err)
		assert.Equal(t, RefundStatusCompleted, r.Status)
		assert.Equal(t, PaymentStatusRefunded, paymentStatus)
	})

	t.Run("Partial refund completes to partially refunded", func(t *testing.T) {
		r, err := NewRefund(completedPayment(1080), decimal.NewFromInt(400), "duplicate charge on statement", false)
		assert.NoError(t, err)
		assert.NoError(t, r.Approve())

		paymentStatus, err := r.Complete()
		assert.NoError(t, err)
		assert.Equal(t, PaymentStatusPartiallyRefunded, paymentStatus)
	})

	t.Run("Reject is terminal", func(t *testing.T) {
		r := newPending()
		assert.NoError(t, r.Reject())
		assert.Equal(t, RefundStatusRejected, r.Status)

		assert.True(t, errors.Is(r.Approve(), customError.ErrInvalidState))
		_, err := r.Complete()
		assert.True(t, errors.Is(err, customError.ErrInvalidState))
	})

	t.Run("Complete requires approval first", func(t *testing.T) {
		r := newPending()
		_, err := r.Complete()
		assert.True(t, errors.Is(err, customError.ErrInvalidState))
	})

	t.Run("Approve twice rejected", func(t *testing.T) {
		r := newPending()
		assert.NoError(t, r.Approve())
		assert.True(t, errors.Is(r.Approve(), customError.ErrInvalidState))
	})
}
