package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/schoolbill/fee-engine/internal/domain"
	"github.com/schoolbill/fee-engine/internal/service"
	"github.com/schoolbill/fee-engine/pkg/response"
)

// FeeHandler serves fee structure and assignment endpoints.
type FeeHandler struct {
	service   *service.FeeService
	validator *validator.Validate
}

func NewFeeHandler(service *service.FeeService) *FeeHandler {
	return &FeeHandler{
		service:   service,
		validator: newValidator(),
	}
}

func (h *FeeHandler) CreateStructure(w http.ResponseWriter, r *http.Request) {
	var request domain.CreateFeeStructureRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		response.BadRequest(w, "invalid request body", err)
		return
	}
	if err := h.validator.Struct(&request); err != nil {
		response.BusinessError(w, validationError(err))
		return
	}

	structure, err := h.service.CreateStructure(r.Context(), &request)
	if err != nil {
		response.BusinessError(w, err)
		return
	}
	response.Created(w, structure)
}

func (h *FeeHandler) GetStructure(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		response.BadRequest(w, "invalid structure id", err)
		return
	}

	structure, err := h.service.GetStructure(r.Context(), id)
	if err != nil {
		response.BusinessError(w, err)
		return
	}
	response.Success(w, structure)
}

func (h *FeeHandler) ListStructures(w http.ResponseWriter, r *http.Request) {
	filter := domain.StructureFilter{
		AcademicYearCode: r.URL.Query().Get("academic_year"),
		ActiveOnly:       r.URL.Query().Get("active") == "true",
	}

	structures, err := h.service.ListStructures(r.Context(), filter)
	if err != nil {
		response.BusinessError(w, err)
		return
	}
	response.Success(w, structures)
}

func (h *FeeHandler) UpdateStructure(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		response.BadRequest(w, "invalid structure id", err)
		return
	}

	var request domain.UpdateFeeStructureRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		response.BadRequest(w, "invalid request body", err)
		return
	}
	if err := h.validator.Struct(&request); err != nil {
		response.BusinessError(w, validationError(err))
		return
	}

	structure, err := h.service.UpdateStructure(r.Context(), id, &request)
	if err != nil {
		response.BusinessError(w, err)
		return
	}
	response.Success(w, structure)
}

func (h *FeeHandler) DeactivateStructure(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		response.BadRequest(w, "invalid structure id", err)
		return
	}

	structure, err := h.service.DeactivateStructure(r.Context(), id)
	if err != nil {
		response.BusinessError(w, err)
		return
	}
	response.Success(w, structure)
}

func (h *FeeHandler) DeleteStructure(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		response.BadRequest(w, "invalid structure id", err)
		return
	}

	deleted, err := h.service.DeleteStructure(r.Context(), id)
	if err != nil {
		response.BusinessError(w, err)
		return
	}
	response.Success(w, map[string]bool{"deleted": deleted, "deactivated": !deleted})
}

func (h *FeeHandler) CreateAssignment(w http.ResponseWriter, r *http.Request) {
	var request domain.AssignFeeRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		response.BadRequest(w, "invalid request body", err)
		return
	}
	if err := h.validator.Struct(&request); err != nil {
		response.BusinessError(w, validationError(err))
		return
	}

	assignment, err := h.service.CreateAssignment(r.Context(), &request)
	if err != nil {
		response.BusinessError(w, err)
		return
	}
	response.Created(w, assignment)
}

func (h *FeeHandler) GetAssignment(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		response.BadRequest(w, "invalid assignment id", err)
		return
	}

	assignment, err := h.service.GetAssignment(r.Context(), id)
	if err != nil {
		response.BusinessError(w, err)
		return
	}
	response.Success(w, assignment)
}

func (h *FeeHandler) ListStudentAssignments(w http.ResponseWriter, r *http.Request) {
	studentID := mux.Vars(r)["studentId"]

	assignments, err := h.service.ListStudentAssignments(r.Context(), studentID)
	if err != nil {
		response.BusinessError(w, err)
		return
	}
	response.Success(w, assignments)
}

func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	return uuid.Parse(mux.Vars(r)[name])
}
