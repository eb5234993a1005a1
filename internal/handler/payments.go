package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/schoolbill/fee-engine/internal/domain"
	"github.com/schoolbill/fee-engine/internal/service"
	"github.com/schoolbill/fee-engine/pkg/response"
)

// PaymentHandler serves payment, receipt and refund endpoints.
type PaymentHandler struct {
	service   *service.PaymentService
	validator *validator.Validate
}

func NewPaymentHandler(service *service.PaymentService) *PaymentHandler {
	return &PaymentHandler{
		service:   service,
		validator: newValidator(),
	}
}

func (h *PaymentHandler) ApplyPayment(w http.ResponseWriter, r *http.Request) {
	var request domain.ApplyPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		response.BadRequest(w, "invalid request body", err)
		return
	}
	if err := h.validator.Struct(&request); err != nil {
		response.BusinessError(w, validationError(err))
		return
	}

	result, err := h.service.ApplyPayment(r.Context(), &request)
	if err != nil {
		response.BusinessError(w, err)
		return
	}
	response.Created(w, result)
}

func (h *PaymentHandler) GetPayment(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		response.BadRequest(w, "invalid payment id", err)
		return
	}

	payment, err := h.service.GetPayment(r.Context(), id)
	if err != nil {
		response.BusinessError(w, err)
		return
	}
	response.Success(w, payment)
}

func (h *PaymentHandler) ListStudentPayments(w http.ResponseWriter, r *http.Request) {
	studentID := mux.Vars(r)["studentId"]

	payments, err := h.service.ListStudentPayments(r.Context(), studentID)
	if err != nil {
		response.BusinessError(w, err)
		return
	}
	response.Success(w, payments)
}

func (h *PaymentHandler) GetReceipt(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		response.BadRequest(w, "invalid payment id", err)
		return
	}

	receipt, err := h.service.GetReceipt(r.Context(), id)
	if err != nil {
		response.BusinessError(w, err)
		return
	}
	response.Success(w, receipt)
}

func (h *PaymentHandler) RequestRefund(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		response.BadRequest(w, "invalid payment id", err)
		return
	}

	var request domain.RequestRefundRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		response.BadRequest(w, "invalid request body", err)
		return
	}
	if err := h.validator.Struct(&request); err != nil {
		response.BusinessError(w, validationError(err))
		return
	}

	refund, err := h.service.RequestRefund(r.Context(), id, &request)
	if err != nil {
		response.BusinessError(w, err)
		return
	}
	response.Created(w, refund)
}

func (h *PaymentHandler) ListPaymentRefunds(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		response.BadRequest(w, "invalid payment id", err)
		return
	}

	refunds, err := h.service.ListPaymentRefunds(r.Context(), id)
	if err != nil {
		response.BusinessError(w, err)
		return
	}
	response.Success(w, refunds)
}

func (h *PaymentHandler) GetRefund(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		response.BadRequest(w, "invalid refund id", err)
		return
	}

	refund, err := h.service.GetRefund(r.Context(), id)
	if err != nil {
		response.BusinessError(w, err)
		return
	}
	response.Success(w, refund)
}

func (h *PaymentHandler) ApproveRefund(w http.ResponseWriter, r *http.Request) {
	h.transitionRefund(w, r, h.service.ApproveRefund)
}

func (h *PaymentHandler) RejectRefund(w http.ResponseWriter, r *http.Request) {
	h.transitionRefund(w, r, h.service.RejectRefund)
}

func (h *PaymentHandler) CompleteRefund(w http.ResponseWriter, r *http.Request) {
	h.transitionRefund(w, r, h.service.CompleteRefund)
}

func (h *PaymentHandler) transitionRefund(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, id uuid.UUID) (*domain.Refund, error)) {
	id, err := pathUUID(r, "id")
	if err != nil {
		response.BadRequest(w, "invalid refund id", err)
		return
	}

	refund, err := op(r.Context(), id)
	if err != nil {
		response.BusinessError(w, err)
		return
	}
	response.Success(w, refund)
}
