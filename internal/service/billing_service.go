package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/schoolbill/fee-engine/internal/config"
	"github.com/schoolbill/fee-engine/internal/domain"
	"github.com/schoolbill/fee-engine/internal/repository"
	customError "github.com/schoolbill/fee-engine/pkg/errors"
	"github.com/schoolbill/fee-engine/pkg/utils"
)

const summaryKeyPrefix = "fees:summary:"

// BillingService materializes journal entries for billing periods, runs
// the overdue sweep and serves cached student fee summaries.
type BillingService struct {
	journalRepo repository.JournalRepository
	assignRepo  repository.AssignmentRepository
	structRepo  repository.FeeStructureRepository
	redis       *redis.Client
	config      *config.Config
	now         func() time.Time
}

func NewBillingService(
	journalRepo repository.JournalRepository,
	assignRepo repository.AssignmentRepository,
	structRepo repository.FeeStructureRepository,
	redis *redis.Client,
	config *config.Config,
) *BillingService {
	return &BillingService{
		journalRepo: journalRepo,
		assignRepo:  assignRepo,
		structRepo:  structRepo,
		redis:       redis,
		config:      config,
		now:         time.Now,
	}
}

// MaterializeMonth creates journal entries for every active assignment
// whose structure bills the given fee month. Already-billed assignments
// are skipped, so the scheduler can re-run the job safely.
func (s *BillingService) MaterializeMonth(ctx context.Context, feeMonth string) (int, error) {
	monthStart, err := utils.ParseFeeMonth(feeMonth)
	if err != nil {
		return 0, customError.WrapFieldError("feeMonth", "must match YYYY-MM")
	}

	assignments, err := s.assignRepo.ListCoveringMonth(ctx, monthStart)
	if err != nil {
		return 0, customError.WrapDatabaseError(err)
	}

	structures := make(map[uuid.UUID]*domain.FeeStructure)
	created := 0
	for _, assignment := range assignments {
		structure, ok := structures[assignment.StructureID]
		if !ok {
			structure, err = s.structRepo.GetByID(ctx, assignment.StructureID)
			if err != nil {
				return created, customError.WrapDatabaseError(err)
			}
			structures[assignment.StructureID] = structure
		}

		entry, err := s.materialize(ctx, assignment, structure, feeMonth, monthStart)
		if err != nil {
			return created, err
		}
		if entry != nil {
			created++
		}
	}
	return created, nil
}

// MaterializeAssignment creates the journal entry for one assignment and
// fee month, failing when the month is already billed or not billable.
func (s *BillingService) MaterializeAssignment(ctx context.Context, assignmentID uuid.UUID, feeMonth string) (*domain.FeeJournalEntry, error) {
	monthStart, err := utils.ParseFeeMonth(feeMonth)
	if err != nil {
		return nil, customError.WrapFieldError("feeMonth", "must match YYYY-MM")
	}

	assignment, err := s.assignRepo.GetByID(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, customError.WrapNotFound("assignment", assignmentID.String())
		}
		return nil, customError.WrapDatabaseError(err)
	}

	structure, err := s.structRepo.GetByID(ctx, assignment.StructureID)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	if !assignment.CoversMonth(monthStart) || !domain.BillableInMonth(structure.Frequency, assignment.EffectiveFrom, monthStart) {
		return nil, customError.WrapInvalidState("assignment " + assignmentID.String() + " does not bill fee month " + feeMonth)
	}

	entry, err := s.materialize(ctx, assignment, structure, feeMonth, monthStart)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, customError.WrapAlreadyBilled(assignmentID.String(), feeMonth)
	}
	return entry, nil
}

// materialize creates the entry unless one already exists; nil without
// error means the month was already billed.
func (s *BillingService) materialize(ctx context.Context, assignment *domain.StudentFeeAssignment, structure *domain.FeeStructure, feeMonth string, monthStart time.Time) (*domain.FeeJournalEntry, error) {
	if !structure.IsActive {
		return nil, nil
	}
	if !assignment.CoversMonth(monthStart) {
		return nil, nil
	}
	if !domain.BillableInMonth(structure.Frequency, assignment.EffectiveFrom, monthStart) {
		return nil, nil
	}

	exists, err := s.journalRepo.Exists(ctx, assignment.ID, feeMonth)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	if exists {
		return nil, nil
	}

	net := assignment.ResolveNetAmount(structure.TotalAmount)
	entry, err := domain.NewJournalEntry(assignment, structure, feeMonth, net)
	if err != nil {
		return nil, err
	}

	if err = s.journalRepo.Create(ctx, entry); err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	s.invalidateSummary(ctx, assignment.StudentID)
	return entry, nil
}

// ListEntries returns a student's journal entries with OVERDUE derived
// lazily for entries past grace that the sweep has not visited yet.
func (s *BillingService) ListEntries(ctx context.Context, studentID string, filter domain.JournalFilter) ([]*domain.FeeJournalEntry, error) {
	entries, err := s.journalRepo.ListByStudent(ctx, studentID, filter)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	now := s.now()
	for _, entry := range entries {
		entry.Status = entry.EffectiveStatus(now)
	}
	return entries, nil
}

// WaiveEntry administratively waives an entry. Terminal: the balance is
// forced to zero and no further payments may be applied.
func (s *BillingService) WaiveEntry(ctx context.Context, entryID uuid.UUID, reason string) (*domain.FeeJournalEntry, error) {
	entry, err := s.journalRepo.GetByID(ctx, entryID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, customError.WrapNotFound("journal entry", entryID.String())
		}
		return nil, customError.WrapDatabaseError(err)
	}

	if err = entry.Waive(reason, s.now()); err != nil {
		return nil, err
	}

	if err = s.journalRepo.Update(ctx, entry); err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	s.invalidateSummary(ctx, entry.StudentID)
	return entry, nil
}

// RunOverdueSweep marks entries past due date + grace as OVERDUE and
// records late fees once per entry, honoring the configured late-fee mode.
func (s *BillingService) RunOverdueSweep(ctx context.Context) (int, error) {
	now := s.now()
	candidates, err := s.journalRepo.ListOverdueCandidates(ctx, now)
	if err != nil {
		return 0, customError.WrapDatabaseError(err)
	}

	marked := 0
	for _, entry := range candidates {
		if !entry.MarkOverdue(now, s.config.AutoApplyLateFee()) {
			continue
		}
		if err = s.journalRepo.Update(ctx, entry); err != nil {
			return marked, customError.WrapDatabaseError(err)
		}
		s.invalidateSummary(ctx, entry.StudentID)
		marked++
	}
	return marked, nil
}

// GetStudentSummary serves the per-student fee aggregate, read-through
// from Redis when a client is configured.
func (s *BillingService) GetStudentSummary(ctx context.Context, studentID string) (*domain.StudentFeeSummary, error) {
	if s.redis != nil {
		cached, err := s.redis.Get(ctx, summaryKeyPrefix+studentID).Bytes()
		if err == nil {
			var summary domain.StudentFeeSummary
			if jsonErr := json.Unmarshal(cached, &summary); jsonErr == nil {
				return &summary, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			log.Printf("summary cache read failed for %s: %v", studentID, customError.WrapCacheError(err))
		}
	}

	summary, err := s.computeSummary(ctx, studentID)
	if err != nil {
		return nil, err
	}

	if s.redis != nil {
		if payload, jsonErr := json.Marshal(summary); jsonErr == nil {
			if err := s.redis.Set(ctx, summaryKeyPrefix+studentID, payload, s.config.Business.SummaryCacheTTL).Err(); err != nil {
				log.Printf("summary cache write failed for %s: %v", studentID, customError.WrapCacheError(err))
			}
		}
	}
	return summary, nil
}

func (s *BillingService) computeSummary(ctx context.Context, studentID string) (*domain.StudentFeeSummary, error) {
	entries, err := s.ListEntries(ctx, studentID, domain.JournalFilter{})
	if err != nil {
		return nil, err
	}

	summary := &domain.StudentFeeSummary{
		StudentID:        studentID,
		TotalDue:         decimal.Zero,
		TotalPaid:        decimal.Zero,
		TotalOutstanding: decimal.Zero,
		Entries:          entries,
		GeneratedAt:      s.now(),
	}
	for _, entry := range entries {
		summary.TotalDue = summary.TotalDue.Add(entry.DueAmount)
		summary.TotalPaid = summary.TotalPaid.Add(entry.PaidAmount)
		if entry.Status != domain.JournalStatusWaived {
			summary.TotalOutstanding = summary.TotalOutstanding.Add(entry.BalanceAmount)
		}
		if entry.Status == domain.JournalStatusOverdue {
			summary.OverdueCount++
		}
	}
	return summary, nil
}

// invalidateSummary drops the cached summary; cache failures are logged,
// never surfaced, because the journal entries are the source of truth.
func (s *BillingService) invalidateSummary(ctx context.Context, studentID string) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Del(ctx, summaryKeyPrefix+studentID).Err(); err != nil {
		log.Printf("summary cache invalidation failed for %s: %v", studentID, customError.WrapCacheError(err))
	}
}

// InvalidateSummary exposes cache invalidation to collaborating services.
func (s *BillingService) InvalidateSummary(ctx context.Context, studentID string) {
	s.invalidateSummary(ctx, studentID)
}
