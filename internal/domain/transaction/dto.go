package transaction

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ItemRequest is one purchased line item in a creation request.
type ItemRequest struct {
	Name      string          `json:"name" validate:"required,max=255"`
	UnitPrice decimal.Decimal `json:"unit_price" validate:"required"`
	Quantity  int             `json:"quantity" validate:"required,gte=1"`
}

// PreferenceRequest is an optional explicit funding preference.
type PreferenceRequest struct {
	Method       string           `json:"method" validate:"payment_method"`
	CreditAmount *decimal.Decimal `json:"credit_amount,omitempty"`
}

// CreateRequest is the payload for POST /transactions.
type CreateRequest struct {
	MerchantID uuid.UUID          `json:"merchant_id" validate:"required"`
	Amount     decimal.Decimal    `json:"amount" validate:"required"`
	Items      []ItemRequest      `json:"items" validate:"required,min=1,dive"`
	Plan       int                `json:"payment_plan" validate:"required,payment_plan"`
	Preference *PreferenceRequest `json:"preference,omitempty"`
}

// CreateResponse is the creation result. ClientSecret is present only while
// a card charge awaits client-side completion.
type CreateResponse struct {
	Transaction  *Response `json:"transaction"`
	ClientSecret string    `json:"client_secret,omitempty"`
}

// InstallmentResponse is the API view of one installment.
type InstallmentResponse struct {
	ID            uuid.UUID       `json:"id"`
	Number        int             `json:"installment_number"`
	Amount        decimal.Decimal `json:"amount"`
	DueDate       time.Time       `json:"due_date"`
	Status        string          `json:"status"`
	FailureReason string          `json:"failure_reason,omitempty"`
}

// Response is the API view of a transaction.
type Response struct {
	ID           uuid.UUID             `json:"id"`
	MerchantID   uuid.UUID             `json:"merchant_id"`
	Amount       decimal.Decimal       `json:"amount"`
	Plan         int                   `json:"payment_plan"`
	Status       string                `json:"status"`
	RiskScore    int                   `json:"risk_score"`
	CreditAmount decimal.Decimal       `json:"credit_amount"`
	CardAmount   decimal.Decimal       `json:"card_amount"`
	Method       string                `json:"method"`
	Items        []Item                `json:"items,omitempty"`
	Installments []InstallmentResponse `json:"payments,omitempty"`
	CreatedAt    time.Time             `json:"created_at"`
}

// ResponseFromEntity maps a transaction onto its API view.
func ResponseFromEntity(t *Transaction) *Response {
	resp := &Response{
		ID:           t.ID,
		MerchantID:   t.MerchantID,
		Amount:       t.Amount,
		Plan:         t.Plan.InstallmentCount(),
		Status:       string(t.Status),
		RiskScore:    t.RiskScore,
		CreditAmount: t.CreditAmount,
		CardAmount:   t.CardAmount,
		Method:       string(t.Method),
		Items:        t.Items,
		CreatedAt:    t.CreatedAt,
	}
	for _, inst := range t.Installments {
		resp.Installments = append(resp.Installments, installmentResponse(inst))
	}
	return resp
}

func installmentResponse(inst Installment) InstallmentResponse {
	out := InstallmentResponse{
		ID:      inst.ID,
		Number:  inst.Number,
		Amount:  inst.Amount,
		DueDate: inst.DueDate,
		Status:  string(inst.Status),
	}
	if inst.FailureReason != nil {
		out.FailureReason = *inst.FailureReason
	}
	return out
}

// InstallmentResponsesFromEntities maps a schedule onto its API view.
func InstallmentResponsesFromEntities(installments []Installment) []InstallmentResponse {
	out := make([]InstallmentResponse, 0, len(installments))
	for _, inst := range installments {
		out = append(out, installmentResponse(inst))
	}
	return out
}
