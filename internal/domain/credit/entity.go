package credit

import (
	"time"

	"github.com/shopspring/decimal"
)

// EntryType defines supported ledger entry types.
type EntryType string

const (
	EntryTypeDebit   EntryType = "debit"
	EntryTypeRestore EntryType = "restore"
)

// EntryMeta represents optional metadata attached to a ledger entry.
type EntryMeta struct {
	TransactionID *string
	Description   string
}

// Pagination controls simple list pagination.
type Pagination struct {
	Limit  int
	Offset int
}

// Entry is a ledger row. AmountDelta is negative for debits and positive
// for restorations.
type Entry struct {
	ID            string          `db:"id"`
	UserID        string          `db:"user_id"`
	AmountDelta   decimal.Decimal `db:"amount_delta"`
	EntryType     string          `db:"entry_type"`
	TransactionID *string         `db:"transaction_id"`
	Description   string          `db:"description"`
	CreatedAt     time.Time       `db:"created_at"`
}

// Balance is a point-in-time view of a user's credit line.
type Balance struct {
	CreditLimit     decimal.Decimal `db:"credit_limit"`
	AvailableCredit decimal.Decimal `db:"available_credit"`
}
