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

// BillingHandler serves journal entry and fee summary endpoints.
type BillingHandler struct {
	service   *service.BillingService
	validator *validator.Validate
}

func NewBillingHandler(service *service.BillingService) *BillingHandler {
	return &BillingHandler{
		service:   service,
		validator: newValidator(),
	}
}

// Materialize creates journal entries for a fee month, either for one
// assignment or across every active assignment.
func (h *BillingHandler) Materialize(w http.ResponseWriter, r *http.Request) {
	var request domain.MaterializeRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		response.BadRequest(w, "invalid request body", err)
		return
	}
	if err := h.validator.Struct(&request); err != nil {
		response.BusinessError(w, validationError(err))
		return
	}

	if request.AssignmentID != nil {
		assignmentID, err := uuid.Parse(*request.AssignmentID)
		if err != nil {
			response.BadRequest(w, "invalid assignment id", err)
			return
		}
		entry, err := h.service.MaterializeAssignment(r.Context(), assignmentID, request.FeeMonth)
		if err != nil {
			response.BusinessError(w, err)
			return
		}
		response.Created(w, entry)
		return
	}

	created, err := h.service.MaterializeMonth(r.Context(), request.FeeMonth)
	if err != nil {
		response.BusinessError(w, err)
		return
	}
	response.Created(w, map[string]int{"entries_created": created})
}

func (h *BillingHandler) ListStudentEntries(w http.ResponseWriter, r *http.Request) {
	studentID := mux.Vars(r)["studentId"]
	filter := domain.JournalFilter{
		FeeMonth: r.URL.Query().Get("fee_month"),
		Status:   r.URL.Query().Get("status"),
	}

	entries, err := h.service.ListEntries(r.Context(), studentID, filter)
	if err != nil {
		response.BusinessError(w, err)
		return
	}
	response.Success(w, entries)
}

func (h *BillingHandler) WaiveEntry(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		response.BadRequest(w, "invalid journal entry id", err)
		return
	}

	var request domain.WaiveRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		response.BadRequest(w, "invalid request body", err)
		return
	}
	if err := h.validator.Struct(&request); err != nil {
		response.BusinessError(w, validationError(err))
		return
	}

	entry, err := h.service.WaiveEntry(r.Context(), id, request.Reason)
	if err != nil {
		response.BusinessError(w, err)
		return
	}
	response.Success(w, entry)
}

func (h *BillingHandler) GetStudentSummary(w http.ResponseWriter, r *http.Request) {
	studentID := mux.Vars(r)["studentId"]

	summary, err := h.service.GetStudentSummary(r.Context(), studentID)
	if err != nil {
		response.BusinessError(w, err)
		return
	}
	response.Success(w, summary)
}
