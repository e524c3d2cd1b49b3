package credit

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LedgerMeta contains metadata for ledger mutations.
type LedgerMeta struct {
	TransactionID uuid.UUID
	Description   string
}

// Service defines the credit ledger operations. Every mutation keeps the
// invariant 0 <= available_credit <= credit_limit; violations fail the
// operation, they are never clamped silently.
type Service interface {
	// Debit atomically reduces a user's available credit.
	// Returns ErrInsufficientCredit if available credit would go negative.
	Debit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, meta LedgerMeta) error

	// Restore atomically returns previously debited credit.
	// Returns ErrLimitExceeded if the restoration would exceed the limit.
	Restore(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, meta LedgerMeta) error

	// GetBalance returns the user's credit limit and available credit.
	GetBalance(ctx context.Context, userID uuid.UUID) (*Balance, error)

	// HasDebit reports whether a debit was recorded for the given
	// transaction. Used to decide whether a rejection or cancellation owes a
	// restoration at all.
	HasDebit(ctx context.Context, transactionID uuid.UUID) (bool, error)

	// HasRestore reports whether a restoration was already recorded for the
	// given transaction. Used to keep cancellation refunds idempotent.
	HasRestore(ctx context.Context, transactionID uuid.UUID) (bool, error)

	// ListEntries returns paginated ledger history for a user.
	ListEntries(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Entry, error)
}
