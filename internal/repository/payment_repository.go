package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/schoolbill/fee-engine/internal/domain"
	customError "github.com/schoolbill/fee-engine/pkg/errors"
)

type paymentRepository struct {
	db *sqlx.DB
}

func NewPaymentRepository(db *sqlx.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

const paymentColumns = `
	id, student_id, total_amount, previous_balance, remaining_balance,
	payment_date, payment_method, transaction_reference, notes, status,
	receipt_number, created_at, updated_at
`

// Create applies the payment atomically: the targeted journal entries are
// locked FOR UPDATE (ordered by id to keep lock acquisition deterministic),
// every item is validated against the locked balance, and the entry
// updates, the payment row and its items are committed together or not at
// all. Item snapshots and the student-level previous/remaining balances
// are filled in here, from state read under the lock.
func (r *paymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return customError.WrapDatabaseError(err)
	}
	defer tx.Rollback()

	entries, err := lockEntries(ctx, tx, payment)
	if err != nil {
		return err
	}

	previous, err := sumOutstandingTx(ctx, tx, payment.StudentID)
	if err != nil {
		return customError.WrapDatabaseError(err)
	}

	total := decimal.Zero
	for _, item := range payment.Items {
		entry, ok := entries[item.JournalEntryID]
		if !ok {
			return customError.WrapNotFound("journal entry", item.JournalEntryID.String())
		}
		if entry.StudentID != payment.StudentID {
			return customError.WrapFieldError("feeItems", "journal entry "+entry.ID.String()+" does not belong to student "+payment.StudentID)
		}

		item.AmountDue = entry.DueAmount
		if err = entry.ApplyAmount(item.AmountPaid, payment.PaymentDate); err != nil {
			return err
		}
		item.RemainingBalance = entry.BalanceAmount
		total = total.Add(item.AmountPaid)

		if err = updateEntryTx(ctx, tx, entry); err != nil {
			return customError.WrapDatabaseError(err)
		}
	}

	payment.TotalAmount = total
	payment.PreviousBalance = previous
	payment.RemainingBalance = previous.Sub(total)

	now := time.Now()
	payment.CreatedAt = now
	payment.UpdatedAt = now

	query := `
		INSERT INTO payments (` + paymentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err = tx.ExecContext(ctx, query,
		payment.ID,
		payment.StudentID,
		payment.TotalAmount,
		payment.PreviousBalance,
		payment.RemainingBalance,
		payment.PaymentDate,
		payment.PaymentMethod,
		payment.TransactionReference,
		payment.Notes,
		payment.Status,
		payment.ReceiptNumber,
		payment.CreatedAt,
		payment.UpdatedAt,
	)
	if err != nil {
		return customError.WrapDatabaseError(err)
	}

	itemQuery := `
		INSERT INTO payment_fee_items (id, payment_id, journal_entry_id, amount_due, amount_paid, remaining_balance)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	for _, item := range payment.Items {
		item.ID = uuid.New()
		item.PaymentID = payment.ID
		if _, err = tx.ExecContext(ctx, itemQuery,
			item.ID, item.PaymentID, item.JournalEntryID,
			item.AmountDue, item.AmountPaid, item.RemainingBalance,
		); err != nil {
			return customError.WrapDatabaseError(err)
		}
	}

	if err = tx.Commit(); err != nil {
		return customError.WrapDatabaseError(err)
	}
	return nil
}

func lockEntries(ctx context.Context, tx *sqlx.Tx, payment *domain.Payment) (map[uuid.UUID]*domain.FeeJournalEntry, error) {
	ids := make([]uuid.UUID, 0, len(payment.Items))
	for _, item := range payment.Items {
		ids = append(ids, item.JournalEntryID)
	}

	query := `
		SELECT ` + journalColumns + `
		FROM fee_journal_entries
		WHERE id = ANY($1)
		ORDER BY id
		FOR UPDATE
	`

	var entries []*domain.FeeJournalEntry
	if err := tx.SelectContext(ctx, &entries, query, pq.Array(ids)); err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	byID := make(map[uuid.UUID]*domain.FeeJournalEntry, len(entries))
	for _, entry := range entries {
		byID[entry.ID] = entry
	}
	return byID, nil
}

func sumOutstandingTx(ctx context.Context, tx *sqlx.Tx, studentID string) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(balance_amount), 0)
		FROM fee_journal_entries
		WHERE student_id = $1 AND status <> 'WAIVED'
	`

	var total decimal.Decimal
	if err := tx.GetContext(ctx, &total, query, studentID); err != nil {
		return decimal.Zero, err
	}
	return total, nil
}

func updateEntryTx(ctx context.Context, tx *sqlx.Tx, entry *domain.FeeJournalEntry) error {
	query := `
		UPDATE fee_journal_entries
		SET due_amount = $2, paid_amount = $3, balance_amount = $4, status = $5,
		    late_fee_applied = $6, paid_date = $7, updated_at = $8
		WHERE id = $1
	`

	entry.UpdatedAt = time.Now()
	_, err := tx.ExecContext(ctx, query,
		entry.ID,
		entry.DueAmount,
		entry.PaidAmount,
		entry.BalanceAmount,
		entry.Status,
		entry.LateFeeApplied,
		entry.PaidDate,
		entry.UpdatedAt,
	)
	return err
}

func (r *paymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`

	var payment domain.Payment
	if err := r.db.GetContext(ctx, &payment, query, id); err != nil {
		return nil, err
	}
	if err := r.loadItems(ctx, &payment); err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *paymentRepository) loadItems(ctx context.Context, payment *domain.Payment) error {
	query := `
		SELECT id, payment_id, journal_entry_id, amount_due, amount_paid, remaining_balance
		FROM payment_fee_items
		WHERE payment_id = $1
		ORDER BY id
	`

	return r.db.SelectContext(ctx, &payment.Items, query, payment.ID)
}

func (r *paymentRepository) ListByStudent(ctx context.Context, studentID string) ([]*domain.Payment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE student_id = $1
		ORDER BY payment_date DESC, created_at DESC
	`

	var payments []*domain.Payment
	if err := r.db.SelectContext(ctx, &payments, query, studentID); err != nil {
		return nil, err
	}
	for _, payment := range payments {
		if err := r.loadItems(ctx, payment); err != nil {
			return nil, err
		}
	}
	return payments, nil
}

// FinalizeRefund commits refund completion in one transaction: the refund
// row moves to its completed status, the payment row to paymentStatus, and
// when reverseEntries is set the refunded amount is backed out of the
// underlying journal entries under the same row locks payment application
// takes. All three outcomes land together or not at all.
func (r *paymentRepository) FinalizeRefund(ctx context.Context, payment *domain.Payment, refund *domain.Refund, paymentStatus string, reverseEntries bool) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return customError.WrapDatabaseError(err)
	}
	defer tx.Rollback()

	if reverseEntries {
		if err = reverseItemsTx(ctx, tx, payment, refund.RefundAmount); err != nil {
			return err
		}
	}

	refund.UpdatedAt = time.Now()
	_, err = tx.ExecContext(ctx,
		`UPDATE refunds SET status = $2, updated_at = $3 WHERE id = $1`,
		refund.ID, refund.Status, refund.UpdatedAt,
	)
	if err != nil {
		return customError.WrapDatabaseError(err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE payments SET status = $2, updated_at = $3 WHERE id = $1`,
		payment.ID, paymentStatus, time.Now(),
	)
	if err != nil {
		return customError.WrapDatabaseError(err)
	}

	if err = tx.Commit(); err != nil {
		return customError.WrapDatabaseError(err)
	}
	return nil
}

// reverseItemsTx walks the payment's allocations newest-first and backs the
// refunded amount out of the underlying journal entries.
func reverseItemsTx(ctx context.Context, tx *sqlx.Tx, payment *domain.Payment, amount decimal.Decimal) error {
	entries, err := lockEntries(ctx, tx, payment)
	if err != nil {
		return err
	}

	remaining := amount
	for i := len(payment.Items) - 1; i >= 0 && remaining.IsPositive(); i-- {
		item := payment.Items[i]
		entry, ok := entries[item.JournalEntryID]
		if !ok {
			return customError.WrapNotFound("journal entry", item.JournalEntryID.String())
		}

		reversal := decimal.Min(remaining, item.AmountPaid)
		if err = entry.ReverseAmount(reversal); err != nil {
			return err
		}
		if err = updateEntryTx(ctx, tx, entry); err != nil {
			return customError.WrapDatabaseError(err)
		}
		remaining = remaining.Sub(reversal)
	}
	return nil
}
