package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/schoolbill/fee-engine/internal/domain"
)

type MockFeeStructureRepository struct {
	mock.Mock
}

func (m *MockFeeStructureRepository) Create(ctx context.Context, structure *domain.FeeStructure) error {
	args := m.Called(ctx, structure)
	return args.Error(0)
}

func (m *MockFeeStructureRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.FeeStructure, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.FeeStructure), args.Error(1)
}

func (m *MockFeeStructureRepository) List(ctx context.Context, filter domain.StructureFilter) ([]*domain.FeeStructure, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.FeeStructure), args.Error(1)
}

func (m *MockFeeStructureRepository) Update(ctx context.Context, structure *domain.FeeStructure) error {
	args := m.Called(ctx, structure)
	return args.Error(0)
}

func (m *MockFeeStructureRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	args := m.Called(ctx, id, active)
	return args.Error(0)
}

func (m *MockFeeStructureRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type MockAssignmentRepository struct {
	mock.Mock
}

func (m *MockAssignmentRepository) Create(ctx context.Context, assignment *domain.StudentFeeAssignment) error {
	args := m.Called(ctx, assignment)
	return args.Error(0)
}

func (m *MockAssignmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.StudentFeeAssignment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.StudentFeeAssignment), args.Error(1)
}

func (m *MockAssignmentRepository) ListByStudent(ctx context.Context, studentID string) ([]*domain.StudentFeeAssignment, error) {
	args := m.Called(ctx, studentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.StudentFeeAssignment), args.Error(1)
}

func (m *MockAssignmentRepository) ListCoveringMonth(ctx context.Context, monthStart time.Time) ([]*domain.StudentFeeAssignment, error) {
	args := m.Called(ctx, monthStart)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.StudentFeeAssignment), args.Error(1)
}

func (m *MockAssignmentRepository) CountByStructure(ctx context.Context, structureID uuid.UUID) (int, error) {
	args := m.Called(ctx, structureID)
	return args.Int(0), args.Error(1)
}

type MockJournalRepository struct {
	mock.Mock
}

func (m *MockJournalRepository) Create(ctx context.Context, entry *domain.FeeJournalEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockJournalRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.FeeJournalEntry, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.FeeJournalEntry), args.Error(1)
}

func (m *MockJournalRepository) ListByStudent(ctx context.Context, studentID string, filter domain.JournalFilter) ([]*domain.FeeJournalEntry, error) {
	args := m.Called(ctx, studentID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.FeeJournalEntry), args.Error(1)
}

func (m *MockJournalRepository) Exists(ctx context.Context, assignmentID uuid.UUID, feeMonth string) (bool, error) {
	args := m.Called(ctx, assignmentID, feeMonth)
	return args.Bool(0), args.Error(1)
}

func (m *MockJournalRepository) Update(ctx context.Context, entry *domain.FeeJournalEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockJournalRepository) ListOverdueCandidates(ctx context.Context, asOf time.Time) ([]*domain.FeeJournalEntry, error) {
	args := m.Called(ctx, asOf)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.FeeJournalEntry), args.Error(1)
}

func (m *MockJournalRepository) SumOutstandingByStudent(ctx context.Context, studentID string) (decimal.Decimal, error) {
	args := m.Called(ctx, studentID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

type MockPaymentRepository struct {
	mock.Mock
}

func (m *MockPaymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	args := m.Called(ctx, payment)
	return args.Error(0)
}

func (m *MockPaymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Payment), args.Error(1)
}

func (m *MockPaymentRepository) ListByStudent(ctx context.Context, studentID string) ([]*domain.Payment, error) {
	args := m.Called(ctx, studentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Payment), args.Error(1)
}

func (m *MockPaymentRepository) FinalizeRefund(ctx context.Context, payment *domain.Payment, refund *domain.Refund, paymentStatus string, reverseEntries bool) error {
	args := m.Called(ctx, payment, refund, paymentStatus, reverseEntries)
	return args.Error(0)
}

type MockRefundRepository struct {
	mock.Mock
}

func (m *MockRefundRepository) Create(ctx context.Context, refund *domain.Refund) error {
	args := m.Called(ctx, refund)
	return args.Error(0)
}

func (m *MockRefundRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Refund, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Refund), args.Error(1)
}

func (m *MockRefundRepository) ListByPayment(ctx context.Context, paymentID uuid.UUID) ([]*domain.Refund, error) {
	args := m.Called(ctx, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Refund), args.Error(1)
}

func (m *MockRefundRepository) Update(ctx context.Context, refund *domain.Refund) error {
	args := m.Called(ctx, refund)
	return args.Error(0)
}
