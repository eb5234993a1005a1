package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	customError "github.com/schoolbill/fee-engine/pkg/errors"
)

// newValidator builds the request validator with decimal-aware rules so
// DTOs can declare constraints like `decimal_gt=0` on money fields.
func newValidator() *validator.Validate {
	v := validator.New()

	compare := func(fl validator.FieldLevel, cmp func(d, p decimal.Decimal) bool) bool {
		d, ok := fl.Field().Interface().(decimal.Decimal)
		if !ok {
			return false
		}
		p, err := decimal.NewFromString(fl.Param())
		if err != nil {
			return false
		}
		return cmp(d, p)
	}

	_ = v.RegisterValidation("decimal_gt", func(fl validator.FieldLevel) bool {
		return compare(fl, decimal.Decimal.GreaterThan)
	})
	_ = v.RegisterValidation("decimal_gte", func(fl validator.FieldLevel) bool {
		return compare(fl, decimal.Decimal.GreaterThanOrEqual)
	})
	_ = v.RegisterValidation("decimal_lte", func(fl validator.FieldLevel) bool {
		return compare(fl, decimal.Decimal.LessThanOrEqual)
	})

	return v
}

// validationError converts validator output into the field-error shape
// the rest of the API reports.
func validationError(err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return customError.WrapFieldError("body", err.Error())
	}

	fields := make([]customError.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		constraint := fe.Tag()
		if fe.Param() != "" {
			constraint += "=" + fe.Param()
		}
		fields = append(fields, customError.FieldError{
			Field:      fe.Namespace(),
			Constraint: "failed rule " + constraint,
		})
	}
	return customError.WrapValidation(fields...)
}
