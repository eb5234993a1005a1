package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/schoolbill/fee-engine/internal/domain"
)

// FeeStructureRepository defines the interface for fee structure data operations
type FeeStructureRepository interface {
	// Create persists a structure with its components, re-deriving the total
	Create(ctx context.Context, structure *domain.FeeStructure) error

	// GetByID retrieves a structure and its components
	GetByID(ctx context.Context, id uuid.UUID) (*domain.FeeStructure, error)

	// List retrieves structures matching the filter
	List(ctx context.Context, filter domain.StructureFilter) ([]*domain.FeeStructure, error)

	// Update rewrites the structure and its components in one transaction
	Update(ctx context.Context, structure *domain.FeeStructure) error

	// SetActive toggles the soft-active flag
	SetActive(ctx context.Context, id uuid.UUID, active bool) error

	// Delete hard-deletes an unreferenced structure
	Delete(ctx context.Context, id uuid.UUID) error
}

// AssignmentRepository defines the interface for student fee assignment data operations
type AssignmentRepository interface {
	Create(ctx context.Context, assignment *domain.StudentFeeAssignment) error

	GetByID(ctx context.Context, id uuid.UUID) (*domain.StudentFeeAssignment, error)

	ListByStudent(ctx context.Context, studentID string) ([]*domain.StudentFeeAssignment, error)

	// ListCoveringMonth returns assignments whose effective window overlaps
	// the billing month starting at monthStart
	ListCoveringMonth(ctx context.Context, monthStart time.Time) ([]*domain.StudentFeeAssignment, error)

	// CountByStructure counts assignments referencing a structure
	CountByStructure(ctx context.Context, structureID uuid.UUID) (int, error)
}

// JournalRepository defines the interface for fee journal entry data operations
type JournalRepository interface {
	Create(ctx context.Context, entry *domain.FeeJournalEntry) error

	GetByID(ctx context.Context, id uuid.UUID) (*domain.FeeJournalEntry, error)

	ListByStudent(ctx context.Context, studentID string, filter domain.JournalFilter) ([]*domain.FeeJournalEntry, error)

	// Exists reports whether an entry already covers the assignment's fee month
	Exists(ctx context.Context, assignmentID uuid.UUID, feeMonth string) (bool, error)

	// Update persists waiver and overdue mutations
	Update(ctx context.Context, entry *domain.FeeJournalEntry) error

	// ListOverdueCandidates returns entries past due date + grace with a balance
	ListOverdueCandidates(ctx context.Context, asOf time.Time) ([]*domain.FeeJournalEntry, error)

	// SumOutstandingByStudent totals positive balances across a student's entries
	SumOutstandingByStudent(ctx context.Context, studentID string) (decimal.Decimal, error)
}

// PaymentRepository defines the interface for payment data operations.
// Create runs the whole read-validate-write sequence inside one database
// transaction with row locks on the targeted journal entries, so two
// concurrent payments can never overpay the same entry.
type PaymentRepository interface {
	Create(ctx context.Context, payment *domain.Payment) error

	GetByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error)

	ListByStudent(ctx context.Context, studentID string) ([]*domain.Payment, error)

	// FinalizeRefund commits a completed refund, the payment's new status
	// and (optionally) the journal-entry reversals in one transaction
	FinalizeRefund(ctx context.Context, payment *domain.Payment, refund *domain.Refund, paymentStatus string, reverseEntries bool) error
}

// RefundRepository defines the interface for refund data operations
type RefundRepository interface {
	Create(ctx context.Context, refund *domain.Refund) error

	GetByID(ctx context.Context, id uuid.UUID) (*domain.Refund, error)

	ListByPayment(ctx context.Context, paymentID uuid.UUID) ([]*domain.Refund, error)

	Update(ctx context.Context, refund *domain.Refund) error
}
