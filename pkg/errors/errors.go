package errors

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Domain errors
var (
	ErrValidation         = errors.New("validation failed")
	ErrInvalidState       = errors.New("operation not permitted in current state")
	ErrOverpayment        = errors.New("payment amount exceeds outstanding balance")
	ErrDuplicateFeeItem   = errors.New("journal entry targeted more than once in one payment")
	ErrNotFound           = errors.New("record not found")
	ErrStructureInUse     = errors.New("fee structure is referenced by assignments")
	ErrEntryAlreadyBilled = errors.New("journal entry already exists for fee month")
)

// Error codes
const (
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeInvalidState     = "INVALID_STATE"
	ErrCodeOverpayment      = "OVERPAYMENT"
	ErrCodeDuplicateFeeItem = "DUPLICATE_FEE_ITEM"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeStructureInUse   = "STRUCTURE_IN_USE"
	ErrCodeAlreadyBilled    = "ALREADY_BILLED"
	ErrCodeDatabaseError    = "DATABASE_ERROR"
	ErrCodeCacheError       = "CACHE_ERROR"
)

// FieldError names the offending field and the constraint it violated.
type FieldError struct {
	Field      string `json:"field"`
	Constraint string `json:"constraint"`
}

func (f FieldError) String() string {
	return fmt.Sprintf("%s: %s", f.Field, f.Constraint)
}

// BusinessError represents a business logic error
type BusinessError struct {
	Code    string
	Message string
	Fields  []FieldError
	Err     error
}

func (e *BusinessError) Error() string {
	msg := e.Message
	if len(e.Fields) > 0 {
		parts := make([]string, 0, len(e.Fields))
		for _, f := range e.Fields {
			parts = append(parts, f.String())
		}
		msg = fmt.Sprintf("%s [%s]", msg, strings.Join(parts, "; "))
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

// NewBusinessError creates a new business error
func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// WrapValidation collects field-level violations into one validation error.
func WrapValidation(fields ...FieldError) *BusinessError {
	return &BusinessError{
		Code:    ErrCodeValidation,
		Message: "validation failed",
		Fields:  fields,
		Err:     ErrValidation,
	}
}

// WrapFieldError reports a single field violation.
func WrapFieldError(field, constraint string) *BusinessError {
	return WrapValidation(FieldError{Field: field, Constraint: constraint})
}

func WrapInvalidState(message string) *BusinessError {
	return NewBusinessError(ErrCodeInvalidState, message, ErrInvalidState)
}

func WrapOverpayment(entryID string, amount, balance decimal.Decimal) *BusinessError {
	return NewBusinessError(
		ErrCodeOverpayment,
		fmt.Sprintf("payment of %s against journal entry %s exceeds outstanding balance %s",
			amount.StringFixed(2), entryID, balance.StringFixed(2)),
		ErrOverpayment,
	)
}

func WrapDuplicateFeeItem(entryID string) *BusinessError {
	return NewBusinessError(
		ErrCodeDuplicateFeeItem,
		fmt.Sprintf("journal entry %s appears more than once in the payment", entryID),
		ErrDuplicateFeeItem,
	)
}

func WrapNotFound(entity, id string) *BusinessError {
	return NewBusinessError(
		ErrCodeNotFound,
		fmt.Sprintf("%s %s not found", entity, id),
		ErrNotFound,
	)
}

func WrapStructureInUse(structureID string, assignments int) *BusinessError {
	return NewBusinessError(
		ErrCodeStructureInUse,
		fmt.Sprintf("fee structure %s is referenced by %d assignment(s)", structureID, assignments),
		ErrStructureInUse,
	)
}

func WrapAlreadyBilled(assignmentID, feeMonth string) *BusinessError {
	return NewBusinessError(
		ErrCodeAlreadyBilled,
		fmt.Sprintf("assignment %s already has a journal entry for %s", assignmentID, feeMonth),
		ErrEntryAlreadyBilled,
	)
}

func WrapDatabaseError(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeDatabaseError,
		"database operation failed",
		err,
	)
}

func WrapCacheError(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeCacheError,
		"cache operation failed",
		err,
	)
}

// CodeOf returns the business error code, or DATABASE_ERROR for plain errors.
func CodeOf(err error) string {
	var be *BusinessError
	if errors.As(err, &be) {
		return be.Code
	}
	return ErrCodeDatabaseError
}
