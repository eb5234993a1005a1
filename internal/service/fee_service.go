package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/schoolbill/fee-engine/internal/domain"
	"github.com/schoolbill/fee-engine/internal/repository"
	customError "github.com/schoolbill/fee-engine/pkg/errors"
)

// FeeService manages fee structures and student fee assignments.
type FeeService struct {
	structRepo repository.FeeStructureRepository
	assignRepo repository.AssignmentRepository
}

func NewFeeService(
	structRepo repository.FeeStructureRepository,
	assignRepo repository.AssignmentRepository,
) *FeeService {
	return &FeeService{
		structRepo: structRepo,
		assignRepo: assignRepo,
	}
}

// CreateStructure validates and persists a new fee structure, deriving
// its total from the components.
func (s *FeeService) CreateStructure(ctx context.Context, request *domain.CreateFeeStructureRequest) (*domain.FeeStructure, error) {
	structure := structureFromRequest(request)

	if err := structure.Validate(); err != nil {
		return nil, err
	}
	structure.ComputeTotal()

	if err := s.structRepo.Create(ctx, structure); err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	return structure, nil
}

func structureFromRequest(request *domain.CreateFeeStructureRequest) *domain.FeeStructure {
	components := make([]domain.FeeComponent, 0, len(request.Components))
	for _, c := range request.Components {
		components = append(components, domain.FeeComponent{
			ID:          uuid.New(),
			FeeType:     c.FeeType,
			FeeName:     c.FeeName,
			Amount:      c.Amount,
			Description: c.Description,
		})
	}

	return &domain.FeeStructure{
		ID:                uuid.New(),
		StructureName:     request.StructureName,
		AcademicYearCode:  request.AcademicYearCode,
		Frequency:         request.Frequency,
		Components:        components,
		ApplicableClasses: request.ApplicableClasses,
		EffectiveFrom:     request.EffectiveFrom,
		EffectiveTo:       request.EffectiveTo,
		DueDate: domain.DueDateConfig{
			DueDay:            request.DueDateConfig.DueDay,
			GracePeriodDays:   request.DueDateConfig.GracePeriodDays,
			LateFeeAmount:     request.DueDateConfig.LateFeeAmount,
			LateFeePercentage: request.DueDateConfig.LateFeePercentage,
		},
		IsActive: request.IsActive,
		Version:  1,
	}
}

// GetStructure retrieves a structure with its components.
func (s *FeeService) GetStructure(ctx context.Context, id uuid.UUID) (*domain.FeeStructure, error) {
	structure, err := s.structRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, customError.WrapNotFound("fee structure", id.String())
		}
		return nil, customError.WrapDatabaseError(err)
	}
	return structure, nil
}

// ListStructures retrieves structures matching the filter.
func (s *FeeService) ListStructures(ctx context.Context, filter domain.StructureFilter) ([]*domain.FeeStructure, error) {
	structures, err := s.structRepo.List(ctx, filter)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	return structures, nil
}

// UpdateStructure rewrites a structure's mutable fields. An inactive
// structure mutates in place; an active one takes the update as a new
// version so materialized history stays attributable.
func (s *FeeService) UpdateStructure(ctx context.Context, id uuid.UUID, request *domain.UpdateFeeStructureRequest) (*domain.FeeStructure, error) {
	structure, err := s.GetStructure(ctx, id)
	if err != nil {
		return nil, err
	}

	structure.StructureName = request.StructureName
	structure.ApplicableClasses = request.ApplicableClasses
	structure.EffectiveTo = request.EffectiveTo
	structure.DueDate = domain.DueDateConfig{
		DueDay:            request.DueDateConfig.DueDay,
		GracePeriodDays:   request.DueDateConfig.GracePeriodDays,
		LateFeeAmount:     request.DueDateConfig.LateFeeAmount,
		LateFeePercentage: request.DueDateConfig.LateFeePercentage,
	}
	structure.Components = structure.Components[:0]
	for _, c := range request.Components {
		structure.Components = append(structure.Components, domain.FeeComponent{
			ID:          uuid.New(),
			FeeType:     c.FeeType,
			FeeName:     c.FeeName,
			Amount:      c.Amount,
			Description: c.Description,
		})
	}

	if err = structure.Validate(); err != nil {
		return nil, err
	}
	structure.ComputeTotal()

	if structure.IsActive {
		structure.Version++
	}

	if err = s.structRepo.Update(ctx, structure); err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	return structure, nil
}

// DeactivateStructure soft-deactivates a structure.
func (s *FeeService) DeactivateStructure(ctx context.Context, id uuid.UUID) (*domain.FeeStructure, error) {
	structure, err := s.GetStructure(ctx, id)
	if err != nil {
		return nil, err
	}
	if !structure.IsActive {
		return nil, customError.WrapInvalidState("fee structure " + id.String() + " is already inactive")
	}

	if err = s.structRepo.SetActive(ctx, id, false); err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	structure.IsActive = false
	return structure, nil
}

// DeleteStructure removes an unreferenced structure outright. A structure
// referenced by any assignment is a financial record and is soft-
// deactivated instead; the returned flag reports which path was taken.
func (s *FeeService) DeleteStructure(ctx context.Context, id uuid.UUID) (deleted bool, err error) {
	structure, err := s.GetStructure(ctx, id)
	if err != nil {
		return false, err
	}

	count, err := s.assignRepo.CountByStructure(ctx, id)
	if err != nil {
		return false, customError.WrapDatabaseError(err)
	}
	if count > 0 {
		if structure.IsActive {
			if err = s.structRepo.SetActive(ctx, id, false); err != nil {
				return false, customError.WrapDatabaseError(err)
			}
		}
		return false, nil
	}

	if err = s.structRepo.Delete(ctx, id); err != nil {
		return false, customError.WrapDatabaseError(err)
	}
	return true, nil
}

// CreateAssignment binds a structure to a student with optional custom
// amount and discount.
func (s *FeeService) CreateAssignment(ctx context.Context, request *domain.AssignFeeRequest) (*domain.AssignmentResponse, error) {
	structureID, err := uuid.Parse(request.StructureID)
	if err != nil {
		return nil, customError.WrapFieldError("structureId", "must be a valid UUID")
	}

	structure, err := s.GetStructure(ctx, structureID)
	if err != nil {
		return nil, err
	}
	if !structure.IsActive {
		return nil, customError.WrapInvalidState("fee structure " + structureID.String() + " is inactive and cannot be assigned")
	}

	assignment := &domain.StudentFeeAssignment{
		ID:            uuid.New(),
		StructureID:   structureID,
		StudentID:     request.StudentID,
		EffectiveFrom: request.EffectiveFrom,
		EffectiveTo:   request.EffectiveTo,
	}
	if request.CustomAmount != nil {
		assignment.CustomAmount = decimal.NewNullDecimal(*request.CustomAmount)
	}
	if request.Discount != nil {
		discountType := request.Discount.Type
		reason := request.Discount.Reason
		assignment.DiscountType = &discountType
		assignment.DiscountValue = decimal.NewNullDecimal(request.Discount.Value)
		assignment.DiscountReason = &reason
	}

	if err = assignment.Validate(); err != nil {
		return nil, err
	}

	if err = s.assignRepo.Create(ctx, assignment); err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	return &domain.AssignmentResponse{
		Assignment: assignment,
		NetAmount:  assignment.ResolveNetAmount(structure.TotalAmount),
	}, nil
}

// GetAssignment retrieves an assignment together with its resolved net amount.
func (s *FeeService) GetAssignment(ctx context.Context, id uuid.UUID) (*domain.AssignmentResponse, error) {
	assignment, err := s.assignRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, customError.WrapNotFound("assignment", id.String())
		}
		return nil, customError.WrapDatabaseError(err)
	}

	structure, err := s.GetStructure(ctx, assignment.StructureID)
	if err != nil {
		return nil, err
	}

	return &domain.AssignmentResponse{
		Assignment: assignment,
		NetAmount:  assignment.ResolveNetAmount(structure.TotalAmount),
	}, nil
}

// ListStudentAssignments retrieves a student's assignments with net amounts.
func (s *FeeService) ListStudentAssignments(ctx context.Context, studentID string) ([]*domain.AssignmentResponse, error) {
	assignments, err := s.assignRepo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	responses := make([]*domain.AssignmentResponse, 0, len(assignments))
	for _, assignment := range assignments {
		structure, err := s.GetStructure(ctx, assignment.StructureID)
		if err != nil {
			return nil, err
		}
		responses = append(responses, &domain.AssignmentResponse{
			Assignment: assignment,
			NetAmount:  assignment.ResolveNetAmount(structure.TotalAmount),
		})
	}
	return responses, nil
}
