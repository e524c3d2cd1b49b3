package user

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// User is the engine's view of a customer account. Profile, auth and
// session data live in the identity service; only the fields the settlement
// engine needs are read here.
type User struct {
	ID              uuid.UUID       `db:"id" json:"id"`
	Email           string          `db:"email" json:"email"`
	IsActive        bool            `db:"is_active" json:"is_active"`
	CreditLimit     decimal.Decimal `db:"credit_limit" json:"credit_limit"`
	AvailableCredit decimal.Decimal `db:"available_credit" json:"available_credit"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
}
