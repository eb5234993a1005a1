package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/schoolbill/fee-engine/internal/domain"
)

type refundRepository struct {
	db *sqlx.DB
}

func NewRefundRepository(db *sqlx.DB) RefundRepository {
	return &refundRepository{db: db}
}

const refundColumns = `
	id, payment_id, refund_amount, reason, is_full_refund, status, created_at, updated_at
`

func (r *refundRepository) Create(ctx context.Context, refund *domain.Refund) error {
	query := `
		INSERT INTO refunds (` + refundColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	now := time.Now()
	refund.CreatedAt = now
	refund.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, query,
		refund.ID,
		refund.PaymentID,
		refund.RefundAmount,
		refund.Reason,
		refund.IsFullRefund,
		refund.Status,
		refund.CreatedAt,
		refund.UpdatedAt,
	)
	return err
}

func (r *refundRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Refund, error) {
	query := `SELECT ` + refundColumns + ` FROM refunds WHERE id = $1`

	var refund domain.Refund
	if err := r.db.GetContext(ctx, &refund, query, id); err != nil {
		return nil, err
	}
	return &refund, nil
}

func (r *refundRepository) ListByPayment(ctx context.Context, paymentID uuid.UUID) ([]*domain.Refund, error) {
	query := `
		SELECT ` + refundColumns + `
		FROM refunds
		WHERE payment_id = $1
		ORDER BY created_at
	`

	var refunds []*domain.Refund
	if err := r.db.SelectContext(ctx, &refunds, query, paymentID); err != nil {
		return nil, err
	}
	return refunds, nil
}

func (r *refundRepository) Update(ctx context.Context, refund *domain.Refund) error {
	query := `UPDATE refunds SET status = $2, updated_at = $3 WHERE id = $1`

	refund.UpdatedAt = time.Now()
	_, err := r.db.ExecContext(ctx, query, refund.ID, refund.Status, refund.UpdatedAt)
	return err
}
