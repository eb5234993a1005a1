package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	customError "github.com/schoolbill/fee-engine/pkg/errors"
	"github.com/schoolbill/fee-engine/pkg/utils"
)

// Discount kinds
const (
	DiscountPercentage = "PERCENTAGE"
	DiscountFixed      = "FIXED"
)

// StudentFeeAssignment binds a fee structure to a student, optionally
// overriding the structure amount and applying a discount.
type StudentFeeAssignment struct {
	ID             uuid.UUID           `json:"id" db:"id"`
	StructureID    uuid.UUID           `json:"structure_id" db:"structure_id"`
	StudentID      string              `json:"student_id" db:"student_id"`
	CustomAmount   decimal.NullDecimal `json:"custom_amount,omitempty" db:"custom_amount"`
	DiscountType   *string             `json:"discount_type,omitempty" db:"discount_type"`
	DiscountValue  decimal.NullDecimal `json:"discount_value,omitempty" db:"discount_value"`
	DiscountReason *string             `json:"discount_reason,omitempty" db:"discount_reason"`
	EffectiveFrom  time.Time           `json:"effective_from" db:"effective_from"`
	EffectiveTo    *time.Time          `json:"effective_to,omitempty" db:"effective_to"`
	CreatedAt      time.Time           `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at" db:"updated_at"`
}

// HasDiscount reports whether a discount is attached.
func (a *StudentFeeAssignment) HasDiscount() bool {
	return a.DiscountType != nil && a.DiscountValue.Valid
}

// ResolveNetAmount computes the effective amount owed per billing period:
// customAmount when set, otherwise the structure total, reduced by the
// discount. A fixed discount floors at zero; the result is rounded half-up
// to 2 decimal places. Pure function of its inputs.
func (a *StudentFeeAssignment) ResolveNetAmount(structureTotal decimal.Decimal) decimal.Decimal {
	base := structureTotal
	if a.CustomAmount.Valid {
		base = a.CustomAmount.Decimal
	}

	if a.HasDiscount() {
		switch *a.DiscountType {
		case DiscountPercentage:
			factor := decimal.NewFromInt(1).Sub(a.DiscountValue.Decimal.Div(hundred))
			base = base.Mul(factor)
		case DiscountFixed:
			base = base.Sub(a.DiscountValue.Decimal)
			if base.IsNegative() {
				base = decimal.Zero
			}
		}
	}

	return utils.RoundCurrency(base)
}

// Validate checks assignment invariants. A PERCENTAGE discount above 100
// is rejected outright, never clamped.
func (a *StudentFeeAssignment) Validate() error {
	var fields []customError.FieldError

	if a.StudentID == "" {
		fields = append(fields, customError.FieldError{Field: "studentId", Constraint: "is required"})
	}
	if a.CustomAmount.Valid && !a.CustomAmount.Decimal.IsPositive() {
		fields = append(fields, customError.FieldError{Field: "customAmount", Constraint: "must be > 0 when present"})
	}

	hasType := a.DiscountType != nil
	hasValue := a.DiscountValue.Valid
	if hasType != hasValue {
		fields = append(fields, customError.FieldError{Field: "discount", Constraint: "discountType and discountValue must be set together"})
	}
	if hasType && hasValue {
		switch *a.DiscountType {
		case DiscountPercentage:
			if a.DiscountValue.Decimal.IsNegative() || a.DiscountValue.Decimal.GreaterThan(hundred) {
				fields = append(fields, customError.FieldError{Field: "discount.value", Constraint: "percentage discount must be between 0 and 100"})
			}
		case DiscountFixed:
			if a.DiscountValue.Decimal.IsNegative() {
				fields = append(fields, customError.FieldError{Field: "discount.value", Constraint: "fixed discount must be >= 0"})
			}
		default:
			fields = append(fields, customError.FieldError{Field: "discount.type", Constraint: "must be PERCENTAGE or FIXED"})
		}
		if a.DiscountReason == nil || len(*a.DiscountReason) < 5 {
			fields = append(fields, customError.FieldError{Field: "discount.reason", Constraint: "is required (>= 5 characters) when a discount is present"})
		}
	}

	if a.EffectiveTo != nil && !a.EffectiveTo.After(a.EffectiveFrom) {
		fields = append(fields, customError.FieldError{Field: "effectiveTo", Constraint: "must be after effectiveFrom"})
	}

	if len(fields) > 0 {
		return customError.WrapValidation(fields...)
	}
	return nil
}

// CoversMonth reports whether the assignment's effective window contains
// the given billing month.
func (a *StudentFeeAssignment) CoversMonth(monthStart time.Time) bool {
	if utils.MonthsBetween(a.EffectiveFrom, monthStart) < 0 {
		return false
	}
	if a.EffectiveTo != nil && monthStart.After(*a.EffectiveTo) {
		return false
	}
	return true
}

// DTOs for requests and responses

type DiscountRequest struct {
	Type   string          `json:"type" validate:"required,oneof=PERCENTAGE FIXED"`
	Value  decimal.Decimal `json:"value" validate:"decimal_gte=0"`
	Reason string          `json:"reason" validate:"required,min=5"`
}

type AssignFeeRequest struct {
	StudentID     string           `json:"student_id" validate:"required"`
	StructureID   string           `json:"structure_id" validate:"required,uuid4"`
	CustomAmount  *decimal.Decimal `json:"custom_amount"`
	Discount      *DiscountRequest `json:"discount"`
	EffectiveFrom time.Time        `json:"effective_from" validate:"required"`
	EffectiveTo   *time.Time       `json:"effective_to"`
}

type AssignmentResponse struct {
	Assignment *StudentFeeAssignment `json:"assignment"`
	NetAmount  decimal.Decimal       `json:"net_amount"`
}
