package repository

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/schoolbill/fee-engine/internal/domain"
)

type journalRepository struct {
	db *sqlx.DB
}

func NewJournalRepository(db *sqlx.DB) JournalRepository {
	return &journalRepository{db: db}
}

const journalColumns = `
	id, assignment_id, student_id, fee_month, due_amount, paid_amount,
	balance_amount, status, due_date, grace_period_days, late_fee_amount,
	late_fee_percentage, late_fee_applied, paid_date, waiver_reason,
	created_at, updated_at
`

func (r *journalRepository) Create(ctx context.Context, entry *domain.FeeJournalEntry) error {
	query := `
		INSERT INTO fee_journal_entries (` + journalColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`

	now := time.Now()
	entry.CreatedAt = now
	entry.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, query,
		entry.ID,
		entry.AssignmentID,
		entry.StudentID,
		entry.FeeMonth,
		entry.DueAmount,
		entry.PaidAmount,
		entry.BalanceAmount,
		entry.Status,
		entry.DueDate,
		entry.GracePeriodDays,
		entry.LateFeeAmount,
		entry.LateFeePercentage,
		entry.LateFeeApplied,
		entry.PaidDate,
		entry.WaiverReason,
		entry.CreatedAt,
		entry.UpdatedAt,
	)
	return err
}

func (r *journalRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.FeeJournalEntry, error) {
	query := `SELECT ` + journalColumns + ` FROM fee_journal_entries WHERE id = $1`

	var entry domain.FeeJournalEntry
	if err := r.db.GetContext(ctx, &entry, query, id); err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *journalRepository) ListByStudent(ctx context.Context, studentID string, filter domain.JournalFilter) ([]*domain.FeeJournalEntry, error) {
	query := `SELECT ` + journalColumns + ` FROM fee_journal_entries WHERE student_id = $1`
	args := []interface{}{studentID}

	if filter.FeeMonth != "" {
		args = append(args, filter.FeeMonth)
		query += ` AND fee_month = $2`
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		query += ` AND status = $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY fee_month, created_at`

	var entries []*domain.FeeJournalEntry
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *journalRepository) Exists(ctx context.Context, assignmentID uuid.UUID, feeMonth string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM fee_journal_entries WHERE assignment_id = $1 AND fee_month = $2)`

	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, assignmentID, feeMonth); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *journalRepository) Update(ctx context.Context, entry *domain.FeeJournalEntry) error {
	query := `
		UPDATE fee_journal_entries
		SET due_amount = $2, paid_amount = $3, balance_amount = $4, status = $5,
		    late_fee_applied = $6, paid_date = $7, waiver_reason = $8, updated_at = $9
		WHERE id = $1
	`

	entry.UpdatedAt = time.Now()
	_, err := r.db.ExecContext(ctx, query,
		entry.ID,
		entry.DueAmount,
		entry.PaidAmount,
		entry.BalanceAmount,
		entry.Status,
		entry.LateFeeApplied,
		entry.PaidDate,
		entry.WaiverReason,
		entry.UpdatedAt,
	)
	return err
}

func (r *journalRepository) ListOverdueCandidates(ctx context.Context, asOf time.Time) ([]*domain.FeeJournalEntry, error) {
	query := `
		SELECT ` + journalColumns + `
		FROM fee_journal_entries
		WHERE status IN ('PENDING', 'PARTIAL')
		  AND balance_amount > 0
		  AND due_date + make_interval(days => grace_period_days) < $1
		ORDER BY due_date
	`

	var entries []*domain.FeeJournalEntry
	if err := r.db.SelectContext(ctx, &entries, query, asOf); err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *journalRepository) SumOutstandingByStudent(ctx context.Context, studentID string) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(balance_amount), 0)
		FROM fee_journal_entries
		WHERE student_id = $1 AND status <> 'WAIVED'
	`

	var total decimal.Decimal
	if err := r.db.GetContext(ctx, &total, query, studentID); err != nil {
		return decimal.Zero, err
	}
	return total, nil
}
