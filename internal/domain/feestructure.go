package domain

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	customError "github.com/schoolbill/fee-engine/pkg/errors"
	"github.com/schoolbill/fee-engine/pkg/utils"
)

// Fee component categories
const (
	FeeTypeTuition   = "TUITION"
	FeeTypeAdmission = "ADMISSION"
	FeeTypeExam      = "EXAM"
	FeeTypeLibrary   = "LIBRARY"
	FeeTypeLab       = "LAB"
	FeeTypeTransport = "TRANSPORT"
	FeeTypeSports    = "SPORTS"
	FeeTypeHostel    = "HOSTEL"
	FeeTypeMisc      = "MISC"
)

// Billing frequencies
const (
	FrequencyMonthly   = "MONTHLY"
	FrequencyQuarterly = "QUARTERLY"
	FrequencyAnnual    = "ANNUAL"
	FrequencyOneTime   = "ONE_TIME"
)

const (
	maxComponents        = 20
	maxApplicableClasses = 50
)

var (
	academicYearPattern = regexp.MustCompile(`^\d{4}-\d{4}$`)
	maxComponentAmount  = decimal.NewFromInt(1_000_000)
	maxLateFeeAmount    = decimal.NewFromInt(10_000)
	hundred             = decimal.NewFromInt(100)
)

// FeeComponent is one line item within a fee structure. Components are
// immutable once the owning structure is active for a billing period.
type FeeComponent struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	StructureID uuid.UUID       `json:"structure_id" db:"structure_id"`
	Position    int             `json:"position" db:"position"`
	FeeType     string          `json:"fee_type" db:"fee_type"`
	FeeName     string          `json:"fee_name" db:"fee_name"`
	Amount      decimal.Decimal `json:"amount" db:"amount"`
	Description string          `json:"description,omitempty" db:"description"`
}

// DueDateConfig drives due-date and late-fee handling for every journal
// entry materialized from the structure.
type DueDateConfig struct {
	DueDay            int                 `json:"due_day" db:"due_day"`
	GracePeriodDays   int                 `json:"grace_period_days" db:"grace_period_days"`
	LateFeeAmount     decimal.Decimal     `json:"late_fee_amount" db:"late_fee_amount"`
	LateFeePercentage decimal.NullDecimal `json:"late_fee_percentage,omitempty" db:"late_fee_percentage"`
}

// LateFeeFor computes the late fee for a due amount:
// max(flat late fee, dueAmount * percentage / 100), rounded to currency.
func (c DueDateConfig) LateFeeFor(dueAmount decimal.Decimal) decimal.Decimal {
	fee := c.LateFeeAmount
	if c.LateFeePercentage.Valid {
		pct := dueAmount.Mul(c.LateFeePercentage.Decimal).Div(hundred)
		fee = utils.MaxDecimal(fee, pct)
	}
	return utils.RoundCurrency(fee)
}

// FeeStructure is the aggregate root describing what a class of students
// owes for an academic year. TotalAmount is always re-derived from the
// components; it is never an independent source of truth.
type FeeStructure struct {
	ID                uuid.UUID       `json:"id" db:"id"`
	StructureName     string          `json:"structure_name" db:"structure_name"`
	AcademicYearCode  string          `json:"academic_year_code" db:"academic_year_code"`
	Frequency         string          `json:"frequency" db:"frequency"`
	Components        []FeeComponent  `json:"components" db:"-"`
	ApplicableClasses pq.StringArray  `json:"applicable_classes" db:"applicable_classes"`
	TotalAmount       decimal.Decimal `json:"total_amount" db:"total_amount"`
	EffectiveFrom     time.Time       `json:"effective_from" db:"effective_from"`
	EffectiveTo       *time.Time      `json:"effective_to,omitempty" db:"effective_to"`
	DueDate           DueDateConfig   `json:"due_date_config" db:"-"`
	IsActive          bool            `json:"is_active" db:"is_active"`
	Version           int             `json:"version" db:"version"`
	CreatedAt         time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at" db:"updated_at"`
}

// ComputeTotal sums the component amounts and stores the result on the
// structure. Every write path that touches components must call this in
// the same transaction that persists them.
func (s *FeeStructure) ComputeTotal() decimal.Decimal {
	total := decimal.Zero
	for _, c := range s.Components {
		total = total.Add(c.Amount)
	}
	s.TotalAmount = utils.RoundCurrency(total)
	return s.TotalAmount
}

// Validate checks every structural invariant and reports all violations
// at once as field errors.
func (s *FeeStructure) Validate() error {
	var fields []customError.FieldError

	if l := len(s.StructureName); l < 3 || l > 200 {
		fields = append(fields, customError.FieldError{Field: "structureName", Constraint: "must be 3-200 characters"})
	}

	fields = append(fields, validateAcademicYear(s.AcademicYearCode)...)

	switch s.Frequency {
	case FrequencyMonthly, FrequencyQuarterly, FrequencyAnnual, FrequencyOneTime:
	default:
		fields = append(fields, customError.FieldError{Field: "frequency", Constraint: "must be one of MONTHLY, QUARTERLY, ANNUAL, ONE_TIME"})
	}

	if len(s.Components) < 1 || len(s.Components) > maxComponents {
		fields = append(fields, customError.FieldError{Field: "components", Constraint: fmt.Sprintf("must contain 1-%d components", maxComponents)})
	}
	for i, c := range s.Components {
		fields = append(fields, c.validate(i)...)
	}

	if len(s.ApplicableClasses) < 1 || len(s.ApplicableClasses) > maxApplicableClasses {
		fields = append(fields, customError.FieldError{Field: "applicableClasses", Constraint: fmt.Sprintf("must contain 1-%d classes", maxApplicableClasses)})
	}

	if s.EffectiveTo != nil && !s.EffectiveTo.After(s.EffectiveFrom) {
		fields = append(fields, customError.FieldError{Field: "effectiveTo", Constraint: "must be after effectiveFrom"})
	}

	fields = append(fields, s.DueDate.validate()...)

	if len(fields) > 0 {
		return customError.WrapValidation(fields...)
	}
	return nil
}

func (c FeeComponent) validate(index int) []customError.FieldError {
	var fields []customError.FieldError
	prefix := fmt.Sprintf("components[%d]", index)

	switch c.FeeType {
	case FeeTypeTuition, FeeTypeAdmission, FeeTypeExam, FeeTypeLibrary,
		FeeTypeLab, FeeTypeTransport, FeeTypeSports, FeeTypeHostel, FeeTypeMisc:
	default:
		fields = append(fields, customError.FieldError{Field: prefix + ".feeType", Constraint: "unknown fee type"})
	}
	if c.FeeName == "" {
		fields = append(fields, customError.FieldError{Field: prefix + ".feeName", Constraint: "is required"})
	}
	if !c.Amount.IsPositive() || c.Amount.GreaterThan(maxComponentAmount) {
		fields = append(fields, customError.FieldError{Field: prefix + ".amount", Constraint: "must be > 0 and <= 1000000"})
	}
	if c.Amount.Exponent() < -2 {
		fields = append(fields, customError.FieldError{Field: prefix + ".amount", Constraint: "must have at most 2 decimal places"})
	}
	return fields
}

func (c DueDateConfig) validate() []customError.FieldError {
	var fields []customError.FieldError

	if c.DueDay < 1 || c.DueDay > 31 {
		fields = append(fields, customError.FieldError{Field: "dueDateConfig.dueDay", Constraint: "must be between 1 and 31"})
	}
	if c.GracePeriodDays < 0 || c.GracePeriodDays > 30 {
		fields = append(fields, customError.FieldError{Field: "dueDateConfig.gracePeriodDays", Constraint: "must be between 0 and 30"})
	}
	if c.LateFeeAmount.IsNegative() || c.LateFeeAmount.GreaterThan(maxLateFeeAmount) {
		fields = append(fields, customError.FieldError{Field: "dueDateConfig.lateFeeAmount", Constraint: "must be >= 0 and <= 10000"})
	}
	if c.LateFeePercentage.Valid {
		pct := c.LateFeePercentage.Decimal
		if pct.IsNegative() || pct.GreaterThan(hundred) {
			fields = append(fields, customError.FieldError{Field: "dueDateConfig.lateFeePercentage", Constraint: "must be between 0 and 100"})
		}
	}
	if !c.LateFeeAmount.IsPositive() && !c.LateFeePercentage.Valid {
		fields = append(fields, customError.FieldError{Field: "dueDateConfig", Constraint: "at least one of lateFeeAmount > 0 or lateFeePercentage must be set"})
	}
	return fields
}

func validateAcademicYear(code string) []customError.FieldError {
	if !academicYearPattern.MatchString(code) {
		return []customError.FieldError{{Field: "academicYearCode", Constraint: "must match YYYY-YYYY"}}
	}
	start, _ := strconv.Atoi(code[:4])
	end, _ := strconv.Atoi(code[5:])
	if end != start+1 {
		return []customError.FieldError{{Field: "academicYearCode", Constraint: "end year must equal start year + 1"}}
	}
	return nil
}

// BillableInMonth reports whether the structure's frequency bills the
// given month for an assignment that started at effectiveFrom.
func BillableInMonth(frequency string, effectiveFrom, monthStart time.Time) bool {
	diff := utils.MonthsBetween(effectiveFrom, monthStart)
	if diff < 0 {
		return false
	}
	switch frequency {
	case FrequencyMonthly:
		return true
	case FrequencyQuarterly:
		return diff%3 == 0
	case FrequencyAnnual:
		return diff%12 == 0
	case FrequencyOneTime:
		return diff == 0
	}
	return false
}

// DTOs for requests and responses

type FeeComponentRequest struct {
	FeeType     string          `json:"fee_type" validate:"required"`
	FeeName     string          `json:"fee_name" validate:"required"`
	Amount      decimal.Decimal `json:"amount" validate:"decimal_gt=0"`
	Description string          `json:"description"`
}

type DueDateConfigRequest struct {
	DueDay            int                 `json:"due_day" validate:"min=1,max=31"`
	GracePeriodDays   int                 `json:"grace_period_days" validate:"min=0,max=30"`
	LateFeeAmount     decimal.Decimal     `json:"late_fee_amount" validate:"decimal_gte=0"`
	LateFeePercentage decimal.NullDecimal `json:"late_fee_percentage"`
}

type CreateFeeStructureRequest struct {
	StructureName     string                `json:"structure_name" validate:"required,min=3,max=200"`
	AcademicYearCode  string                `json:"academic_year_code" validate:"required"`
	Frequency         string                `json:"frequency" validate:"required,oneof=MONTHLY QUARTERLY ANNUAL ONE_TIME"`
	Components        []FeeComponentRequest `json:"components" validate:"required,min=1,max=20,dive"`
	ApplicableClasses []string              `json:"applicable_classes" validate:"required,min=1,max=50"`
	EffectiveFrom     time.Time             `json:"effective_from" validate:"required"`
	EffectiveTo       *time.Time            `json:"effective_to"`
	DueDateConfig     DueDateConfigRequest  `json:"due_date_config" validate:"required"`
	IsActive          bool                  `json:"is_active"`
}

type UpdateFeeStructureRequest struct {
	StructureName     string                `json:"structure_name" validate:"required,min=3,max=200"`
	Components        []FeeComponentRequest `json:"components" validate:"required,min=1,max=20,dive"`
	ApplicableClasses []string              `json:"applicable_classes" validate:"required,min=1,max=50"`
	EffectiveTo       *time.Time            `json:"effective_to"`
	DueDateConfig     DueDateConfigRequest  `json:"due_date_config" validate:"required"`
}

type StructureFilter struct {
	AcademicYearCode string
	ActiveOnly       bool
}
