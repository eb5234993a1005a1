package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/schoolbill/fee-engine/internal/domain"
)

type feeStructureRepository struct {
	db *sqlx.DB
}

func NewFeeStructureRepository(db *sqlx.DB) FeeStructureRepository {
	return &feeStructureRepository{db: db}
}

// structureRow flattens the due-date configuration columns stored on the
// fee_structures row alongside the aggregate fields.
type structureRow struct {
	domain.FeeStructure
	DueDay            int                 `db:"due_day"`
	GracePeriodDays   int                 `db:"grace_period_days"`
	LateFeeAmount     decimal.Decimal     `db:"late_fee_amount"`
	LateFeePercentage decimal.NullDecimal `db:"late_fee_percentage"`
}

func (r structureRow) toDomain() *domain.FeeStructure {
	s := r.FeeStructure
	s.DueDate = domain.DueDateConfig{
		DueDay:            r.DueDay,
		GracePeriodDays:   r.GracePeriodDays,
		LateFeeAmount:     r.LateFeeAmount,
		LateFeePercentage: r.LateFeePercentage,
	}
	return &s
}

const structureColumns = `
	id, structure_name, academic_year_code, frequency, applicable_classes,
	total_amount, effective_from, effective_to, due_day, grace_period_days,
	late_fee_amount, late_fee_percentage, is_active, version, created_at, updated_at
`

func (r *feeStructureRepository) Create(ctx context.Context, structure *domain.FeeStructure) error {
	structure.ComputeTotal()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO fee_structures (` + structureColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`

	now := time.Now()
	structure.CreatedAt = now
	structure.UpdatedAt = now

	_, err = tx.ExecContext(ctx, query,
		structure.ID,
		structure.StructureName,
		structure.AcademicYearCode,
		structure.Frequency,
		structure.ApplicableClasses,
		structure.TotalAmount,
		structure.EffectiveFrom,
		structure.EffectiveTo,
		structure.DueDate.DueDay,
		structure.DueDate.GracePeriodDays,
		structure.DueDate.LateFeeAmount,
		structure.DueDate.LateFeePercentage,
		structure.IsActive,
		structure.Version,
		structure.CreatedAt,
		structure.UpdatedAt,
	)
	if err != nil {
		return err
	}

	if err = insertComponents(ctx, tx, structure); err != nil {
		return err
	}

	return tx.Commit()
}

func insertComponents(ctx context.Context, tx *sqlx.Tx, structure *domain.FeeStructure) error {
	query := `
		INSERT INTO fee_components (id, structure_id, position, fee_type, fee_name, amount, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	for i := range structure.Components {
		c := &structure.Components[i]
		if c.ID == uuid.Nil {
			c.ID = uuid.New()
		}
		c.StructureID = structure.ID
		c.Position = i

		if _, err := tx.ExecContext(ctx, query,
			c.ID, c.StructureID, c.Position, c.FeeType, c.FeeName, c.Amount, c.Description,
		); err != nil {
			return err
		}
	}
	return nil
}

func (r *feeStructureRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.FeeStructure, error) {
	query := `SELECT ` + structureColumns + ` FROM fee_structures WHERE id = $1`

	var row structureRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		return nil, err
	}

	structure := row.toDomain()
	if err := r.loadComponents(ctx, structure); err != nil {
		return nil, err
	}
	return structure, nil
}

func (r *feeStructureRepository) loadComponents(ctx context.Context, structure *domain.FeeStructure) error {
	query := `
		SELECT id, structure_id, position, fee_type, fee_name, amount, description
		FROM fee_components
		WHERE structure_id = $1
		ORDER BY position
	`

	return r.db.SelectContext(ctx, &structure.Components, query, structure.ID)
}

func (r *feeStructureRepository) List(ctx context.Context, filter domain.StructureFilter) ([]*domain.FeeStructure, error) {
	query := `SELECT ` + structureColumns + ` FROM fee_structures WHERE 1=1`
	args := []interface{}{}

	if filter.AcademicYearCode != "" {
		args = append(args, filter.AcademicYearCode)
		query += ` AND academic_year_code = $1`
	}
	if filter.ActiveOnly {
		query += ` AND is_active = true`
	}
	query += ` ORDER BY created_at DESC`

	var rows []structureRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}

	structures := make([]*domain.FeeStructure, 0, len(rows))
	for _, row := range rows {
		structure := row.toDomain()
		if err := r.loadComponents(ctx, structure); err != nil {
			return nil, err
		}
		structures = append(structures, structure)
	}
	return structures, nil
}

func (r *feeStructureRepository) Update(ctx context.Context, structure *domain.FeeStructure) error {
	structure.ComputeTotal()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		UPDATE fee_structures
		SET structure_name = $2, applicable_classes = $3, total_amount = $4,
		    effective_to = $5, due_day = $6, grace_period_days = $7,
		    late_fee_amount = $8, late_fee_percentage = $9, version = $10, updated_at = $11
		WHERE id = $1
	`

	structure.UpdatedAt = time.Now()
	_, err = tx.ExecContext(ctx, query,
		structure.ID,
		structure.StructureName,
		structure.ApplicableClasses,
		structure.TotalAmount,
		structure.EffectiveTo,
		structure.DueDate.DueDay,
		structure.DueDate.GracePeriodDays,
		structure.DueDate.LateFeeAmount,
		structure.DueDate.LateFeePercentage,
		structure.Version,
		structure.UpdatedAt,
	)
	if err != nil {
		return err
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM fee_components WHERE structure_id = $1`, structure.ID); err != nil {
		return err
	}
	if err = insertComponents(ctx, tx, structure); err != nil {
		return err
	}

	return tx.Commit()
}

func (r *feeStructureRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	query := `UPDATE fee_structures SET is_active = $2, updated_at = $3 WHERE id = $1`

	_, err := r.db.ExecContext(ctx, query, id, active, time.Now())
	return err
}

func (r *feeStructureRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err = tx.ExecContext(ctx, `DELETE FROM fee_components WHERE structure_id = $1`, id); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM fee_structures WHERE id = $1`, id); err != nil {
		return err
	}

	return tx.Commit()
}
