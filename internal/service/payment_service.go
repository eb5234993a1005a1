package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/schoolbill/fee-engine/internal/config"
	"github.com/schoolbill/fee-engine/internal/domain"
	"github.com/schoolbill/fee-engine/internal/repository"
	customError "github.com/schoolbill/fee-engine/pkg/errors"
	"github.com/schoolbill/fee-engine/pkg/utils"
)

// PaymentService applies payments against journal entries and processes
// the refund lifecycle.
type PaymentService struct {
	paymentRepo repository.PaymentRepository
	refundRepo  repository.RefundRepository
	billing     *BillingService
	config      *config.Config
	now         func() time.Time
}

func NewPaymentService(
	paymentRepo repository.PaymentRepository,
	refundRepo repository.RefundRepository,
	billing *BillingService,
	config *config.Config,
) *PaymentService {
	return &PaymentService{
		paymentRepo: paymentRepo,
		refundRepo:  refundRepo,
		billing:     billing,
		config:      config,
		now:         time.Now,
	}
}

// ApplyPayment validates the request, then hands the atomic application
// to the repository: all fee items commit together with the journal entry
// updates, or nothing does. On success the payment is Completed, carries
// a fresh receipt number, and the student's summary cache is dropped.
func (s *PaymentService) ApplyPayment(ctx context.Context, request *domain.ApplyPaymentRequest) (*domain.PaymentResponse, error) {
	now := s.now()
	if err := request.Validate(now); err != nil {
		return nil, err
	}

	items := make([]*domain.PaymentFeeItem, 0, len(request.FeeItems))
	for _, item := range request.FeeItems {
		entryID, err := uuid.Parse(item.JournalEntryID)
		if err != nil {
			return nil, customError.WrapFieldError("feeItems.journalEntryId", "must be a valid UUID")
		}
		items = append(items, &domain.PaymentFeeItem{
			JournalEntryID: entryID,
			AmountPaid:     item.AmountPaid,
		})
	}

	payment := &domain.Payment{
		ID:                   uuid.New(),
		StudentID:            request.StudentID,
		Items:                items,
		PaymentDate:          request.PaymentDate,
		PaymentMethod:        request.PaymentMethod,
		TransactionReference: request.TransactionReference,
		Notes:                request.Notes,
		Status:               domain.PaymentStatusCompleted,
		ReceiptNumber:        utils.GenerateReceiptNumber(s.config.Business.ReceiptPrefix, now),
	}

	if err := s.paymentRepo.Create(ctx, payment); err != nil {
		return nil, err
	}

	s.billing.InvalidateSummary(ctx, payment.StudentID)

	return &domain.PaymentResponse{
		Payment: payment,
		Receipt: domain.BuildReceipt(s.receiptHeader(), payment),
	}, nil
}

func (s *PaymentService) receiptHeader() domain.ReceiptHeader {
	return domain.ReceiptHeader{
		SchoolName: s.config.Receipt.SchoolName,
		Address:    s.config.Receipt.Address,
		Phone:      s.config.Receipt.Phone,
	}
}

// GetPayment retrieves a payment with its fee items.
func (s *PaymentService) GetPayment(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	payment, err := s.paymentRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, customError.WrapNotFound("payment", id.String())
		}
		return nil, customError.WrapDatabaseError(err)
	}
	return payment, nil
}

// ListStudentPayments retrieves a student's payments, newest first.
func (s *PaymentService) ListStudentPayments(ctx context.Context, studentID string) ([]*domain.Payment, error) {
	payments, err := s.paymentRepo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	return payments, nil
}

// GetReceipt rebuilds the printable receipt for a payment.
func (s *PaymentService) GetReceipt(ctx context.Context, paymentID uuid.UUID) (*domain.Receipt, error) {
	payment, err := s.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	return domain.BuildReceipt(s.receiptHeader(), payment), nil
}

// RequestRefund opens a pending refund against a completed payment.
func (s *PaymentService) RequestRefund(ctx context.Context, paymentID uuid.UUID, request *domain.RequestRefundRequest) (*domain.Refund, error) {
	payment, err := s.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	refund, err := domain.NewRefund(payment, request.RefundAmount, request.Reason, request.IsFullRefund)
	if err != nil {
		return nil, err
	}

	if err = s.refundRepo.Create(ctx, refund); err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	return refund, nil
}

// ListPaymentRefunds retrieves every refund opened against a payment.
func (s *PaymentService) ListPaymentRefunds(ctx context.Context, paymentID uuid.UUID) ([]*domain.Refund, error) {
	refunds, err := s.refundRepo.ListByPayment(ctx, paymentID)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	return refunds, nil
}

// GetRefund retrieves a refund.
func (s *PaymentService) GetRefund(ctx context.Context, id uuid.UUID) (*domain.Refund, error) {
	refund, err := s.refundRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, customError.WrapNotFound("refund", id.String())
		}
		return nil, customError.WrapDatabaseError(err)
	}
	return refund, nil
}

// ApproveRefund moves a pending refund to Approved.
func (s *PaymentService) ApproveRefund(ctx context.Context, id uuid.UUID) (*domain.Refund, error) {
	return s.transitionRefund(ctx, id, (*domain.Refund).Approve)
}

// RejectRefund moves a pending refund to Rejected.
func (s *PaymentService) RejectRefund(ctx context.Context, id uuid.UUID) (*domain.Refund, error) {
	return s.transitionRefund(ctx, id, (*domain.Refund).Reject)
}

func (s *PaymentService) transitionRefund(ctx context.Context, id uuid.UUID, transition func(*domain.Refund) error) (*domain.Refund, error) {
	refund, err := s.GetRefund(ctx, id)
	if err != nil {
		return nil, err
	}
	if err = transition(refund); err != nil {
		return nil, err
	}
	if err = s.refundRepo.Update(ctx, refund); err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	return refund, nil
}

// CompleteRefund finishes an approved refund: the source payment moves to
// Refunded or Partially Refunded, and when refund reversal is enabled the
// refunded amount is backed out of the underlying journal entries. The
// refund, payment and journal writes land in one repository transaction.
func (s *PaymentService) CompleteRefund(ctx context.Context, id uuid.UUID) (*domain.Refund, error) {
	refund, err := s.GetRefund(ctx, id)
	if err != nil {
		return nil, err
	}

	payment, err := s.GetPayment(ctx, refund.PaymentID)
	if err != nil {
		return nil, err
	}

	// Re-check against all refunds already completed for this payment.
	// Several refunds can be opened and approved while the payment is
	// still Completed; their cumulative amount must never exceed it.
	siblings, err := s.refundRepo.ListByPayment(ctx, refund.PaymentID)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	alreadyRefunded := decimal.Zero
	for _, sibling := range siblings {
		if sibling.ID != refund.ID && sibling.Status == domain.RefundStatusCompleted {
			alreadyRefunded = alreadyRefunded.Add(sibling.RefundAmount)
		}
	}
	if refund.RefundAmount.Add(alreadyRefunded).GreaterThan(payment.TotalAmount) {
		return nil, customError.WrapInvalidState(
			"refund amount exceeds the unrefunded remainder of the payment")
	}

	paymentStatus, err := refund.Complete()
	if err != nil {
		return nil, err
	}

	if err = s.paymentRepo.FinalizeRefund(ctx, payment, refund, paymentStatus, s.config.Business.RefundReopenEntries); err != nil {
		return nil, err
	}

	s.billing.InvalidateSummary(ctx, payment.StudentID)
	return refund, nil
}
