package credit

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/splitpay/splitpay-api/internal/middleware"
	"github.com/splitpay/splitpay-api/internal/pkg/errorhandler"
	"github.com/splitpay/splitpay-api/internal/pkg/response"
)

// Handler serves the credit ledger read surface.
type Handler struct {
	service Service
}

// NewHandler creates credit handler
func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// Routes mounts the credit routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/balance", h.GetBalance)
	r.Get("/entries", h.ListEntries)
}

// balanceResponse is the API view of a credit balance.
type balanceResponse struct {
	CreditLimit     decimal.Decimal `json:"credit_limit"`
	AvailableCredit decimal.Decimal `json:"available_credit"`
}

// entryResponse is the API view of one ledger entry.
type entryResponse struct {
	ID            string          `json:"id"`
	AmountDelta   decimal.Decimal `json:"amount_delta"`
	EntryType     string          `json:"entry_type"`
	TransactionID string          `json:"transaction_id,omitempty"`
	Description   string          `json:"description,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// GetBalance handles GET /credit/balance
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	bal, err := h.service.GetBalance(r.Context(), userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			response.NotFound(w, "User not found")
			return
		}
		errorhandler.HandleError(r.Context(), w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load balance", err)
		return
	}

	response.OK(w, balanceResponse{
		CreditLimit:     bal.CreditLimit,
		AvailableCredit: bal.AvailableCredit,
	})
}

// ListEntries handles GET /credit/entries
func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	limit := 20
	offset := 0
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 && v <= 100 {
		limit = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v >= 0 {
		offset = v
	}

	entries, err := h.service.ListEntries(r.Context(), userID, limit, offset)
	if err != nil {
		errorhandler.HandleError(r.Context(), w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load ledger entries", err)
		return
	}

	out := make([]entryResponse, 0, len(entries))
	for _, e := range entries {
		item := entryResponse{
			ID:          e.ID,
			AmountDelta: e.AmountDelta,
			EntryType:   e.EntryType,
			Description: e.Description,
			CreatedAt:   e.CreatedAt,
		}
		if e.TransactionID != nil {
			item.TransactionID = *e.TransactionID
		}
		out = append(out, item)
	}
	response.OK(w, out)
}
