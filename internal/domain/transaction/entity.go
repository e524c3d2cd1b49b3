package transaction

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status represents transaction status
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusApproved   Status = "approved"
	StatusRejected   Status = "rejected"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
	StatusFailed     Status = "failed"
)

// IsTerminal reports whether no further transitions are permitted.
func (s Status) IsTerminal() bool {
	return s == StatusRejected || s == StatusCompleted || s == StatusCancelled
}

// InstallmentStatus represents the status of a single scheduled charge.
type InstallmentStatus string

const (
	InstallmentScheduled  InstallmentStatus = "scheduled"
	InstallmentProcessing InstallmentStatus = "processing"
	InstallmentCompleted  InstallmentStatus = "completed"
	InstallmentFailed     InstallmentStatus = "failed"
)

// Plan is the closed set of supported installment plans.
type Plan string

const (
	PlanTwo   Plan = "two"
	PlanThree Plan = "three"
	PlanFour  Plan = "four"
)

// PlanFromCount maps a requested installment count onto a plan.
func PlanFromCount(count int) (Plan, error) {
	switch count {
	case 2:
		return PlanTwo, nil
	case 3:
		return PlanThree, nil
	case 4:
		return PlanFour, nil
	}
	return "", ErrInvalidPaymentPlan
}

// InstallmentCount returns the number of installments for the plan.
// The switch is exhaustive over the closed enum; an unknown plan value can
// only come from corrupted storage and yields 0, which fails validation
// upstream.
func (p Plan) InstallmentCount() int {
	switch p {
	case PlanTwo:
		return 2
	case PlanThree:
		return 3
	case PlanFour:
		return 4
	}
	return 0
}

// Method is the derived funding method of a transaction.
type Method string

const (
	MethodCredit Method = "credit"
	MethodStripe Method = "stripe"
	MethodHybrid Method = "hybrid"
)

// Item is a single purchased line item.
type Item struct {
	ID            uuid.UUID       `db:"id" json:"id"`
	TransactionID uuid.UUID       `db:"transaction_id" json:"-"`
	Name          string          `db:"name" json:"name"`
	UnitPrice     decimal.Decimal `db:"unit_price" json:"unit_price"`
	Quantity      int             `db:"quantity" json:"quantity"`
}

// Total returns unit price times quantity.
func (i Item) Total() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// itemsTolerance is the permitted gap between the declared amount and the
// item total, one cent.
var itemsTolerance = decimal.New(1, -2)

// ValidateItems checks that every item is well-formed and that the item
// total matches the declared amount within one cent.
func ValidateItems(amount decimal.Decimal, items []Item) error {
	if len(items) == 0 {
		return ErrItemsAmountMismatch
	}

	minPrice := decimal.New(1, -2)
	sum := decimal.Zero
	for _, item := range items {
		if item.UnitPrice.LessThan(minPrice) || item.Quantity < 1 {
			return ErrItemsAmountMismatch
		}
		sum = sum.Add(item.Total())
	}

	if sum.Sub(amount).Abs().GreaterThan(itemsTolerance) {
		return ErrItemsAmountMismatch
	}

	return nil
}

// Installment is one scheduled charge within a transaction. Installments are
// owned exclusively by their transaction and re-created as a set whenever the
// schedule is recalculated.
type Installment struct {
	ID            uuid.UUID         `db:"id" json:"id"`
	TransactionID uuid.UUID         `db:"transaction_id" json:"transaction_id"`
	Number        int               `db:"number" json:"installment_number"`
	Amount        decimal.Decimal   `db:"amount" json:"amount"`
	DueDate       time.Time         `db:"due_date" json:"due_date"`
	Status        InstallmentStatus `db:"status" json:"status"`
	ChargeID      *string           `db:"charge_id" json:"charge_id,omitempty"`
	FailureReason *string           `db:"failure_reason" json:"failure_reason,omitempty"`
	CreatedAt     time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time         `db:"updated_at" json:"updated_at"`
}

// Transaction is the unit of a purchase. It is a plain record; all mutation
// logic lives in the state machine, the schedule calculator and the
// orchestrator service.
type Transaction struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	UserID       uuid.UUID       `db:"user_id" json:"user_id"`
	MerchantID   uuid.UUID       `db:"merchant_id" json:"merchant_id"`
	Amount       decimal.Decimal `db:"amount" json:"amount"`
	Plan         Plan            `db:"plan" json:"plan"`
	Status       Status          `db:"status" json:"status"`
	RiskScore    int             `db:"risk_score" json:"risk_score"`
	CreditAmount decimal.Decimal `db:"credit_amount" json:"credit_amount"`
	CardAmount   decimal.Decimal `db:"card_amount" json:"card_amount"`
	Method       Method          `db:"method" json:"method"`
	RetryCount   int             `db:"retry_count" json:"retry_count"`
	ChargeID     *string         `db:"charge_id" json:"-"`
	ClientSecret *string         `db:"client_secret" json:"-"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`

	Items        []Item        `db:"-" json:"items,omitempty"`
	Installments []Installment `db:"-" json:"payments,omitempty"`
}

// AllInstallmentsCompleted reports whether every installment has settled.
func AllInstallmentsCompleted(installments []Installment) bool {
	if len(installments) == 0 {
		return false
	}
	for _, inst := range installments {
		if inst.Status != InstallmentCompleted {
			return false
		}
	}
	return true
}

// NoInstallmentAttempted reports whether no installment has left the
// scheduled/failed pair, i.e. none has been processed or settled yet.
// Cancellation of an approved transaction is only allowed while this holds.
func NoInstallmentAttempted(installments []Installment) bool {
	for _, inst := range installments {
		if inst.Status == InstallmentProcessing || inst.Status == InstallmentCompleted {
			return false
		}
	}
	return true
}
