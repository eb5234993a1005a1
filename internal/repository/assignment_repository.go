package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/schoolbill/fee-engine/internal/domain"
)

type assignmentRepository struct {
	db *sqlx.DB
}

func NewAssignmentRepository(db *sqlx.DB) AssignmentRepository {
	return &assignmentRepository{db: db}
}

const assignmentColumns = `
	id, structure_id, student_id, custom_amount, discount_type, discount_value,
	discount_reason, effective_from, effective_to, created_at, updated_at
`

func (r *assignmentRepository) Create(ctx context.Context, assignment *domain.StudentFeeAssignment) error {
	query := `
		INSERT INTO student_fee_assignments (` + assignmentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	now := time.Now()
	assignment.CreatedAt = now
	assignment.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, query,
		assignment.ID,
		assignment.StructureID,
		assignment.StudentID,
		assignment.CustomAmount,
		assignment.DiscountType,
		assignment.DiscountValue,
		assignment.DiscountReason,
		assignment.EffectiveFrom,
		assignment.EffectiveTo,
		assignment.CreatedAt,
		assignment.UpdatedAt,
	)
	return err
}

func (r *assignmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.StudentFeeAssignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM student_fee_assignments WHERE id = $1`

	var assignment domain.StudentFeeAssignment
	if err := r.db.GetContext(ctx, &assignment, query, id); err != nil {
		return nil, err
	}
	return &assignment, nil
}

func (r *assignmentRepository) ListByStudent(ctx context.Context, studentID string) ([]*domain.StudentFeeAssignment, error) {
	query := `
		SELECT ` + assignmentColumns + `
		FROM student_fee_assignments
		WHERE student_id = $1
		ORDER BY effective_from DESC
	`

	var assignments []*domain.StudentFeeAssignment
	if err := r.db.SelectContext(ctx, &assignments, query, studentID); err != nil {
		return nil, err
	}
	return assignments, nil
}

// ListCoveringMonth returns assignments whose effective window overlaps
// the billing month starting at monthStart, matching the month-granular
// coverage rule in domain.StudentFeeAssignment.CoversMonth. An assignment
// ending mid-month still bills that month.
func (r *assignmentRepository) ListCoveringMonth(ctx context.Context, monthStart time.Time) ([]*domain.StudentFeeAssignment, error) {
	query := `
		SELECT ` + assignmentColumns + `
		FROM student_fee_assignments
		WHERE effective_from < $2 AND (effective_to IS NULL OR effective_to >= $1)
		ORDER BY student_id, effective_from
	`

	var assignments []*domain.StudentFeeAssignment
	nextMonth := monthStart.AddDate(0, 1, 0)
	if err := r.db.SelectContext(ctx, &assignments, query, monthStart, nextMonth); err != nil {
		return nil, err
	}
	return assignments, nil
}

func (r *assignmentRepository) CountByStructure(ctx context.Context, structureID uuid.UUID) (int, error) {
	query := `SELECT COUNT(*) FROM student_fee_assignments WHERE structure_id = $1`

	var count int
	if err := r.db.GetContext(ctx, &count, query, structureID); err != nil {
		return 0, err
	}
	return count, nil
}
