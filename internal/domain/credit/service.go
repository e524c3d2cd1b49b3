package credit

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// service implements the Service interface
type service struct {
	repo Repository
}

// NewService creates a new credit ledger service
func NewService(db *sqlx.DB) Service {
	return &service{repo: NewRepository(db)}
}

// NewServiceWithRepository creates a service over an explicit repository.
// Used by tests.
func NewServiceWithRepository(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) Debit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, meta LedgerMeta) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidAmount
	}
	return s.repo.Debit(ctx, userID.String(), amount, toEntryMeta(meta))
}

func (s *service) Restore(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, meta LedgerMeta) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidAmount
	}
	return s.repo.Restore(ctx, userID.String(), amount, toEntryMeta(meta))
}

func (s *service) GetBalance(ctx context.Context, userID uuid.UUID) (*Balance, error) {
	return s.repo.GetBalance(ctx, userID.String())
}

func (s *service) HasDebit(ctx context.Context, transactionID uuid.UUID) (bool, error) {
	return s.repo.HasEntry(ctx, transactionID.String(), EntryTypeDebit)
}

func (s *service) HasRestore(ctx context.Context, transactionID uuid.UUID) (bool, error) {
	return s.repo.HasEntry(ctx, transactionID.String(), EntryTypeRestore)
}

func (s *service) ListEntries(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.repo.ListEntries(ctx, userID.String(), Pagination{Limit: limit, Offset: offset})
}

func toEntryMeta(meta LedgerMeta) EntryMeta {
	out := EntryMeta{Description: meta.Description}
	if meta.TransactionID != uuid.Nil {
		id := meta.TransactionID.String()
		out.TransactionID = &id
	}
	return out
}
