package service

import (
	"bytes"
	"context"
	"log"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/schoolbill/fee-engine/internal/config"
	"github.com/schoolbill/fee-engine/internal/domain"
	customError "github.com/schoolbill/fee-engine/pkg/errors"
	"github.com/schoolbill/fee-engine/tests/mocks"
)

func testConfig(lateFeeMode string) *config.Config {
	cfg := &config.Config{}
	cfg.Business.LateFeeMode = lateFeeMode
	cfg.Business.SummaryCacheTTL = 15 * time.Minute
	return cfg
}

func newBillingService(
	journalRepo *mocks.MockJournalRepository,
	assignRepo *mocks.MockAssignmentRepository,
	structRepo *mocks.MockFeeStructureRepository,
	cfg *config.Config,
	now time.Time,
) *BillingService {
	s := NewBillingService(journalRepo, assignRepo, structRepo, nil, cfg)
	s.now = func() time.Time { return now }
	return s
}

func monthlyAssignment(structureID uuid.UUID, studentID string) *domain.StudentFeeAssignment {
	return &domain.StudentFeeAssignment{
		ID:            uuid.New(),
		StructureID:   structureID,
		StudentID:     studentID,
		EffectiveFrom: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestBillingService_MaterializeMonth(t *testing.T) {
	structure := storedStructure(true)
	sweepNow := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	t.Run("Creates one entry per billable assignment", func(t *testing.T) {
		journalRepo := new(mocks.MockJournalRepository)
		assignRepo := new(mocks.MockAssignmentRepository)
		structRepo := new(mocks.MockFeeStructureRepository)

		first := monthlyAssignment(structure.ID, "STU-001")
		second := monthlyAssignment(structure.ID, "STU-002")

		assignRepo.On("ListCoveringMonth", mock.Anything, time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)).
			Return([]*domain.StudentFeeAssignment{first, second}, nil)
		// Shared structure must be fetched once, not per assignment.
		structRepo.On("GetByID", mock.Anything, structure.ID).Return(structure, nil).Once()
		journalRepo.On("Exists", mock.Anything, first.ID, "2026-08").Return(false, nil)
		journalRepo.On("Exists", mock.Anything, second.ID, "2026-08").Return(false, nil)
		journalRepo.On("Create", mock.Anything, mock.AnythingOfType("*domain.FeeJournalEntry")).Return(nil).Twice()

		service := newBillingService(journalRepo, assignRepo, structRepo, testConfig(config.LateFeeInformational), sweepNow)
		created, err := service.MaterializeMonth(context.Background(), "2026-08")

		assert.NoError(t, err)
		assert.Equal(t, 2, created)
		journalRepo.AssertExpectations(t)
		structRepo.AssertExpectations(t)
	})

	t.Run("Assignment ending mid-month still bills that month", func(t *testing.T) {
		journalRepo := new(mocks.MockJournalRepository)
		assignRepo := new(mocks.MockAssignmentRepository)
		structRepo := new(mocks.MockFeeStructureRepository)

		assignment := monthlyAssignment(structure.ID, "STU-001")
		effectiveTo := time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC)
		assignment.EffectiveTo = &effectiveTo
		assert.True(t, assignment.CoversMonth(time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)))

		// The lookup is keyed by the month start, so a window closing on
		// the 15th is still in scope for August.
		assignRepo.On("ListCoveringMonth", mock.Anything, time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)).
			Return([]*domain.StudentFeeAssignment{assignment}, nil)
		structRepo.On("GetByID", mock.Anything, structure.ID).Return(structure, nil)
		journalRepo.On("Exists", mock.Anything, assignment.ID, "2026-08").Return(false, nil)
		journalRepo.On("Create", mock.Anything, mock.AnythingOfType("*domain.FeeJournalEntry")).Return(nil).Once()

		service := newBillingService(journalRepo, assignRepo, structRepo, testConfig(config.LateFeeInformational), sweepNow)
		created, err := service.MaterializeMonth(context.Background(), "2026-08")

		assert.NoError(t, err)
		assert.Equal(t, 1, created)
		journalRepo.AssertExpectations(t)
		assignRepo.AssertExpectations(t)
	})

	t.Run("Already billed assignments are skipped", func(t *testing.T) {
		journalRepo := new(mocks.MockJournalRepository)
		assignRepo := new(mocks.MockAssignmentRepository)
		structRepo := new(mocks.MockFeeStructureRepository)

		assignment := monthlyAssignment(structure.ID, "STU-001")
		assignRepo.On("ListCoveringMonth", mock.Anything, mock.AnythingOfType("time.Time")).
			Return([]*domain.StudentFeeAssignment{assignment}, nil)
		structRepo.On("GetByID", mock.Anything, structure.ID).Return(structure, nil)
		journalRepo.On("Exists", mock.Anything, assignment.ID, "2026-08").Return(true, nil)

		service := newBillingService(journalRepo, assignRepo, structRepo, testConfig(config.LateFeeInformational), sweepNow)
		created, err := service.MaterializeMonth(context.Background(), "2026-08")

		assert.NoError(t, err)
		assert.Equal(t, 0, created)
		journalRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("Malformed fee month rejected", func(t *testing.T) {
		service := newBillingService(new(mocks.MockJournalRepository), new(mocks.MockAssignmentRepository), new(mocks.MockFeeStructureRepository), testConfig(config.LateFeeInformational), sweepNow)
		_, err := service.MaterializeMonth(context.Background(), "August 2026")
		assert.Equal(t, customError.ErrCodeValidation, customError.CodeOf(err))
	})
}

func TestBillingService_MaterializeAssignment(t *testing.T) {
	structure := storedStructure(true)
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	t.Run("Materializes with a resolved net amount", func(t *testing.T) {
		journalRepo := new(mocks.MockJournalRepository)
		assignRepo := new(mocks.MockAssignmentRepository)
		structRepo := new(mocks.MockFeeStructureRepository)

		assignment := monthlyAssignment(structure.ID, "STU-001")
		assignment.DiscountType = func() *string { v := domain.DiscountPercentage; return &v }()
		assignment.DiscountValue = decimal.NewNullDecimal(decimal.NewFromInt(10))
		assignment.DiscountReason = func() *string { v := "sibling discount"; return &v }()

		assignRepo.On("GetByID", mock.Anything, assignment.ID).Return(assignment, nil)
		structRepo.On("GetByID", mock.Anything, structure.ID).Return(structure, nil)
		journalRepo.On("Exists", mock.Anything, assignment.ID, "2026-08").Return(false, nil)
		journalRepo.On("Create", mock.Anything, mock.AnythingOfType("*domain.FeeJournalEntry")).Return(nil)

		service := newBillingService(journalRepo, assignRepo, structRepo, testConfig(config.LateFeeInformational), now)
		entry, err := service.MaterializeAssignment(context.Background(), assignment.ID, "2026-08")

		assert.NoError(t, err)
		assert.True(t, entry.DueAmount.Equal(decimal.NewFromInt(1080)))
		assert.Equal(t, domain.JournalStatusPending, entry.Status)
		assert.Equal(t, "STU-001", entry.StudentID)
	})

	t.Run("Duplicate month returns already billed", func(t *testing.T) {
		journalRepo := new(mocks.MockJournalRepository)
		assignRepo := new(mocks.MockAssignmentRepository)
		structRepo := new(mocks.MockFeeStructureRepository)

		assignment := monthlyAssignment(structure.ID, "STU-001")
		assignRepo.On("GetByID", mock.Anything, assignment.ID).Return(assignment, nil)
		structRepo.On("GetByID", mock.Anything, structure.ID).Return(structure, nil)
		journalRepo.On("Exists", mock.Anything, assignment.ID, "2026-08").Return(true, nil)

		service := newBillingService(journalRepo, assignRepo, structRepo, testConfig(config.LateFeeInformational), now)
		_, err := service.MaterializeAssignment(context.Background(), assignment.ID, "2026-08")

		assert.Equal(t, customError.ErrCodeAlreadyBilled, customError.CodeOf(err))
	})

	t.Run("Month outside assignment window rejected", func(t *testing.T) {
		journalRepo := new(mocks.MockJournalRepository)
		assignRepo := new(mocks.MockAssignmentRepository)
		structRepo := new(mocks.MockFeeStructureRepository)

		assignment := monthlyAssignment(structure.ID, "STU-001")
		assignRepo.On("GetByID", mock.Anything, assignment.ID).Return(assignment, nil)
		structRepo.On("GetByID", mock.Anything, structure.ID).Return(structure, nil)

		service := newBillingService(journalRepo, assignRepo, structRepo, testConfig(config.LateFeeInformational), now)
		_, err := service.MaterializeAssignment(context.Background(), assignment.ID, "2026-05")

		assert.Equal(t, customError.ErrCodeInvalidState, customError.CodeOf(err))
		journalRepo.AssertNotCalled(t, "Exists", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestBillingService_ListEntries(t *testing.T) {
	t.Run("Derives overdue status past grace without persisting", func(t *testing.T) {
		journalRepo := new(mocks.MockJournalRepository)
		entry := &domain.FeeJournalEntry{
			ID:              uuid.New(),
			StudentID:       "STU-001",
			DueAmount:       decimal.NewFromInt(1080),
			BalanceAmount:   decimal.NewFromInt(1080),
			Status:          domain.JournalStatusPending,
			DueDate:         time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC),
			GracePeriodDays: 5,
		}
		journalRepo.On("ListByStudent", mock.Anything, "STU-001", domain.JournalFilter{}).
			Return([]*domain.FeeJournalEntry{entry}, nil)

		pastGrace := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
		service := newBillingService(journalRepo, new(mocks.MockAssignmentRepository), new(mocks.MockFeeStructureRepository), testConfig(config.LateFeeInformational), pastGrace)

		entries, err := service.ListEntries(context.Background(), "STU-001", domain.JournalFilter{})

		assert.NoError(t, err)
		assert.Equal(t, domain.JournalStatusOverdue, entries[0].Status)
		journalRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})
}

func TestBillingService_WaiveEntry(t *testing.T) {
	now := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)

	t.Run("Waives and persists", func(t *testing.T) {
		journalRepo := new(mocks.MockJournalRepository)
		entry := &domain.FeeJournalEntry{
			ID:            uuid.New(),
			StudentID:     "STU-001",
			DueAmount:     decimal.NewFromInt(1080),
			BalanceAmount: decimal.NewFromInt(1080),
			Status:        domain.JournalStatusPending,
			DueDate:       time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC),
		}
		journalRepo.On("GetByID", mock.Anything, entry.ID).Return(entry, nil)
		journalRepo.On("Update", mock.Anything, entry).Return(nil)

		service := newBillingService(journalRepo, new(mocks.MockAssignmentRepository), new(mocks.MockFeeStructureRepository), testConfig(config.LateFeeInformational), now)
		waived, err := service.WaiveEntry(context.Background(), entry.ID, "family hardship")

		assert.NoError(t, err)
		assert.Equal(t, domain.JournalStatusWaived, waived.Status)
		assert.True(t, waived.BalanceAmount.IsZero())
		journalRepo.AssertExpectations(t)
	})

	t.Run("Paid entry cannot be waived", func(t *testing.T) {
		journalRepo := new(mocks.MockJournalRepository)
		entry := &domain.FeeJournalEntry{
			ID:        uuid.New(),
			StudentID: "STU-001",
			Status:    domain.JournalStatusPaid,
		}
		journalRepo.On("GetByID", mock.Anything, entry.ID).Return(entry, nil)

		service := newBillingService(journalRepo, new(mocks.MockAssignmentRepository), new(mocks.MockFeeStructureRepository), testConfig(config.LateFeeInformational), now)
		_, err := service.WaiveEntry(context.Background(), entry.ID, "family hardship")

		assert.Equal(t, customError.ErrCodeInvalidState, customError.CodeOf(err))
		journalRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})
}

func TestBillingService_RunOverdueSweep(t *testing.T) {
	pastGrace := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)

	candidate := func() *domain.FeeJournalEntry {
		return &domain.FeeJournalEntry{
			ID:              uuid.New(),
			StudentID:       "STU-001",
			DueAmount:       decimal.NewFromInt(1080),
			BalanceAmount:   decimal.NewFromInt(1080),
			Status:          domain.JournalStatusPending,
			DueDate:         time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC),
			GracePeriodDays: 5,
			LateFeeAmount:   decimal.NewFromInt(50),
		}
	}

	t.Run("Informational mode records fee without changing due amount", func(t *testing.T) {
		journalRepo := new(mocks.MockJournalRepository)
		entry := candidate()
		journalRepo.On("ListOverdueCandidates", mock.Anything, pastGrace).
			Return([]*domain.FeeJournalEntry{entry}, nil)
		journalRepo.On("Update", mock.Anything, entry).Return(nil)

		service := newBillingService(journalRepo, new(mocks.MockAssignmentRepository), new(mocks.MockFeeStructureRepository), testConfig(config.LateFeeInformational), pastGrace)
		marked, err := service.RunOverdueSweep(context.Background())

		assert.NoError(t, err)
		assert.Equal(t, 1, marked)
		assert.Equal(t, domain.JournalStatusOverdue, entry.Status)
		assert.True(t, entry.DueAmount.Equal(decimal.NewFromInt(1080)))
		assert.True(t, entry.LateFeeApplied.Valid)
	})

	t.Run("Auto-apply mode adds the late fee to the balance", func(t *testing.T) {
		journalRepo := new(mocks.MockJournalRepository)
		entry := candidate()
		journalRepo.On("ListOverdueCandidates", mock.Anything, pastGrace).
			Return([]*domain.FeeJournalEntry{entry}, nil)
		journalRepo.On("Update", mock.Anything, entry).Return(nil)

		service := newBillingService(journalRepo, new(mocks.MockAssignmentRepository), new(mocks.MockFeeStructureRepository), testConfig(config.LateFeeAutoApply), pastGrace)
		marked, err := service.RunOverdueSweep(context.Background())

		assert.NoError(t, err)
		assert.Equal(t, 1, marked)
		assert.True(t, entry.DueAmount.Equal(decimal.NewFromInt(1130)))
		assert.True(t, entry.BalanceAmount.Equal(decimal.NewFromInt(1130)))
	})

	t.Run("Sweep is idempotent within a day", func(t *testing.T) {
		journalRepo := new(mocks.MockJournalRepository)
		entry := candidate()
		assert.True(t, entry.MarkOverdue(pastGrace, true)) // first sweep already ran

		journalRepo.On("ListOverdueCandidates", mock.Anything, pastGrace).
			Return([]*domain.FeeJournalEntry{entry}, nil)

		service := newBillingService(journalRepo, new(mocks.MockAssignmentRepository), new(mocks.MockFeeStructureRepository), testConfig(config.LateFeeAutoApply), pastGrace)
		marked, err := service.RunOverdueSweep(context.Background())

		assert.NoError(t, err)
		assert.Equal(t, 0, marked)
		assert.True(t, entry.DueAmount.Equal(decimal.NewFromInt(1130)), "fee must not compound")
	})
}

func TestBillingService_GetStudentSummary(t *testing.T) {
	now := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)

	t.Run("Aggregates totals excluding waived balances", func(t *testing.T) {
		journalRepo := new(mocks.MockJournalRepository)
		waivedReason := "family hardship"
		entries := []*domain.FeeJournalEntry{
			{
				ID: uuid.New(), StudentID: "STU-001",
				DueAmount:     decimal.NewFromInt(1080),
				PaidAmount:    decimal.NewFromInt(500),
				BalanceAmount: decimal.NewFromInt(580),
				Status:        domain.JournalStatusPartial,
				DueDate:       time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC),
				// past grace: derived OVERDUE on read
				GracePeriodDays: 5,
			},
			{
				ID: uuid.New(), StudentID: "STU-001",
				DueAmount:     decimal.NewFromInt(300),
				PaidAmount:    decimal.Zero,
				BalanceAmount: decimal.Zero,
				Status:        domain.JournalStatusWaived,
				WaiverReason:  &waivedReason,
				DueDate:       time.Date(2026, 7, 10, 0, 0, 0, 0, time.UTC),
			},
		}
		journalRepo.On("ListByStudent", mock.Anything, "STU-001", domain.JournalFilter{}).Return(entries, nil)

		service := newBillingService(journalRepo, new(mocks.MockAssignmentRepository), new(mocks.MockFeeStructureRepository), testConfig(config.LateFeeInformational), now)
		summary, err := service.GetStudentSummary(context.Background(), "STU-001")

		assert.NoError(t, err)
		assert.True(t, summary.TotalDue.Equal(decimal.NewFromInt(1380)))
		assert.True(t, summary.TotalPaid.Equal(decimal.NewFromInt(500)))
		assert.True(t, summary.TotalOutstanding.Equal(decimal.NewFromInt(580)))
		assert.Equal(t, 1, summary.OverdueCount)
		assert.Equal(t, now, summary.GeneratedAt)
	})

	t.Run("Unreachable cache is logged as a cache error and bypassed", func(t *testing.T) {
		journalRepo := new(mocks.MockJournalRepository)
		journalRepo.On("ListByStudent", mock.Anything, "STU-001", domain.JournalFilter{}).
			Return([]*domain.FeeJournalEntry{}, nil)

		// Nothing listens on this address, so both the read and the
		// write-back fail without a redis.Nil sentinel.
		unreachable := redis.NewClient(&redis.Options{
			Addr:        "127.0.0.1:1",
			DialTimeout: 100 * time.Millisecond,
			MaxRetries:  -1,
		})
		service := NewBillingService(journalRepo, new(mocks.MockAssignmentRepository), new(mocks.MockFeeStructureRepository), unreachable, testConfig(config.LateFeeInformational))
		service.now = func() time.Time { return now }

		var logged bytes.Buffer
		log.SetOutput(&logged)
		defer log.SetOutput(os.Stderr)

		summary, err := service.GetStudentSummary(context.Background(), "STU-001")

		assert.NoError(t, err)
		assert.NotNil(t, summary)
		assert.Contains(t, logged.String(), customError.ErrCodeCacheError)
	})
}
