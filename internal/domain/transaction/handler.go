package transaction

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/splitpay/splitpay-api/internal/domain/credit"
	"github.com/splitpay/splitpay-api/internal/domain/merchant"
	"github.com/splitpay/splitpay-api/internal/domain/user"
	"github.com/splitpay/splitpay-api/internal/middleware"
	"github.com/splitpay/splitpay-api/internal/pkg/errorhandler"
	"github.com/splitpay/splitpay-api/internal/pkg/response"
	"github.com/splitpay/splitpay-api/internal/pkg/stripegate"
	"github.com/splitpay/splitpay-api/internal/pkg/validator"
)

// maxWebhookBody bounds how much of a webhook payload is read.
const maxWebhookBody = 64 * 1024

// Handler serves the transaction HTTP surface.
type Handler struct {
	service       Service
	webhookSecret string
}

// NewHandler creates transaction handler
func NewHandler(service Service, webhookSecret string) *Handler {
	return &Handler{service: service, webhookSecret: webhookSecret}
}

// Routes mounts the authenticated transaction routes.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{id}", h.GetByID)
	r.Get("/{id}/schedule", h.GetSchedule)
	r.Post("/{id}/cancel", h.Cancel)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireOperator())
		r.Post("/{id}/approve", h.Approve)
		r.Post("/{id}/reject", h.Reject)
		r.Post("/{id}/retry", h.Retry)
	})
}

// Create handles POST /transactions
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req CreateRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}
	if req.Amount.IsNegative() || req.Amount.IsZero() {
		response.ValidationError(w, map[string]string{"amount": "Value must be greater than 0"})
		return
	}

	result, err := h.service.Create(r.Context(), userID, &req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	response.Created(w, result)
}

// List handles GET /transactions
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	limit, offset := paginationParams(r)

	items, err := h.service.ListByUser(r.Context(), userID, limit, offset)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	out := make([]*Response, 0, len(items))
	for _, t := range items {
		out = append(out, ResponseFromEntity(t))
	}
	response.OK(w, out)
}

// GetByID handles GET /transactions/{id}
func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid transaction id")
		return
	}

	t, err := h.service.GetByID(r.Context(), middleware.GetUserID(r.Context()), id, isOperator(r))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	response.OK(w, ResponseFromEntity(t))
}

// GetSchedule handles GET /transactions/{id}/schedule
func (h *Handler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid transaction id")
		return
	}

	installments, err := h.service.GetSchedule(r.Context(), middleware.GetUserID(r.Context()), id, isOperator(r))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	response.OK(w, InstallmentResponsesFromEntities(installments))
}

// Cancel handles POST /transactions/{id}/cancel
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid transaction id")
		return
	}

	t, err := h.service.Cancel(r.Context(), middleware.GetUserID(r.Context()), id, isOperator(r))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	response.OK(w, ResponseFromEntity(t))
}

// Approve handles POST /transactions/{id}/approve (operator only)
func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid transaction id")
		return
	}

	t, err := h.service.Approve(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	response.OK(w, ResponseFromEntity(t))
}

// rejectRequest is the optional payload for POST /transactions/{id}/reject.
type rejectRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

// Reject handles POST /transactions/{id}/reject (operator only)
func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid transaction id")
		return
	}

	var req rejectRequest
	// Body is optional; a rejection without a reason is still valid.
	_ = response.DecodeJSON(r.Body, &req)

	t, err := h.service.Reject(r.Context(), id, req.Reason)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	response.OK(w, ResponseFromEntity(t))
}

// Retry handles POST /transactions/{id}/retry (operator only): the manual
// rejected → pending re-presentment.
func (h *Handler) Retry(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid transaction id")
		return
	}

	t, err := h.service.RetryPayment(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	response.OK(w, ResponseFromEntity(t))
}

// Webhook handles POST /webhooks/stripe. It is mounted outside the
// authenticated router; authenticity comes from the signature header.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		response.BadRequest(w, "Failed to read payload")
		return
	}
	defer r.Body.Close()

	event, err := stripegate.ParseWebhook(payload, r.Header.Get("Stripe-Signature"), h.webhookSecret)
	if err != nil {
		response.Error(w, http.StatusUnauthorized, "INVALID_SIGNATURE", "Webhook signature verification failed")
		return
	}

	if err := h.service.HandleChargeWebhook(r.Context(), event); err != nil {
		errorhandler.HandleError(r.Context(), w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to process webhook", err)
		return
	}

	response.OK(w, map[string]string{"received": event.ID})
}

func isOperator(r *http.Request) bool {
	role := middleware.GetRole(r.Context())
	return role == "operator" || role == "admin"
}

func paginationParams(r *http.Request) (limit, offset int) {
	limit = 20
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 && v <= 100 {
		limit = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v >= 0 {
		offset = v
	}
	return limit, offset
}

// respondError maps domain errors onto the error taxonomy of the API.
func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrDuplicateTransaction):
		response.Conflict(w, "DUPLICATE_TRANSACTION", "An identical transaction was submitted moments ago")
	case errors.Is(err, ErrItemsAmountMismatch):
		response.UnprocessableEntity(w, "ITEMS_AMOUNT_MISMATCH", "Item totals do not match the transaction amount")
	case errors.Is(err, ErrInvalidPaymentPlan):
		response.UnprocessableEntity(w, "INVALID_PAYMENT_PLAN", "Payment plan must be 2, 3 or 4 installments")
	case errors.Is(err, ErrInvalidTransition):
		response.Conflict(w, "INVALID_TRANSITION", "Transaction status does not permit this operation")
	case errors.Is(err, ErrInstallmentsAttempted):
		response.Conflict(w, "INVALID_TRANSITION", "Installments were already processed, cancellation is no longer possible")
	case errors.Is(err, credit.ErrInsufficientCredit):
		response.UnprocessableEntity(w, "INSUFFICIENT_CREDIT", "Available credit does not cover the requested amount")
	case errors.Is(err, credit.ErrLimitExceeded):
		response.UnprocessableEntity(w, "LIMIT_EXCEEDED", "Restoration would exceed the credit limit")
	case errors.Is(err, user.ErrUserInactive):
		response.UnprocessableEntity(w, "USER_INACTIVE", "User account is inactive")
	case errors.Is(err, merchant.ErrMerchantInactive):
		response.UnprocessableEntity(w, "MERCHANT_INACTIVE", "Merchant is inactive")
	case errors.Is(err, stripegate.ErrGateway):
		response.BadGateway(w, "GATEWAY_ERROR", "Card gateway is unavailable")
	case errors.Is(err, ErrNotTransactionOwner):
		response.Forbidden(w, "Transaction belongs to another user")
	case errors.Is(err, ErrTransactionNotFound):
		response.NotFound(w, "Transaction not found")
	case errors.Is(err, ErrInstallmentNotFound):
		response.NotFound(w, "Installment not found")
	case errors.Is(err, user.ErrUserNotFound):
		response.NotFound(w, "User not found")
	case errors.Is(err, merchant.ErrMerchantNotFound):
		response.NotFound(w, "Merchant not found")
	default:
		errorhandler.HandleError(r.Context(), w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", err)
	}
}
