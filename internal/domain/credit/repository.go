package credit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

const queryTimeout = 3 * time.Second

// Repository provides credit ledger and balance operations.
type Repository interface {
	Debit(ctx context.Context, userID string, amount decimal.Decimal, meta EntryMeta) error
	Restore(ctx context.Context, userID string, amount decimal.Decimal, meta EntryMeta) error
	GetBalance(ctx context.Context, userID string) (*Balance, error)
	HasEntry(ctx context.Context, transactionID string, entryType EntryType) (bool, error)
	ListEntries(ctx context.Context, userID string, pagination Pagination) ([]Entry, error)
}

// LedgerRepository implements Repository on PostgreSQL. Balance mutations
// use conditional single-row UPDATEs so that two concurrent debits against
// the same user can never both pass the available-credit check.
type LedgerRepository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

func (r *LedgerRepository) Debit(ctx context.Context, userID string, amount decimal.Decimal, meta EntryMeta) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidAmount
	}

	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx2, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("%w: begin tx", ErrInternal)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx2, `
		UPDATE users
		SET available_credit = available_credit - $2
		WHERE id = $1 AND available_credit >= $2
	`, userID, amount)
	if err != nil {
		return fmt.Errorf("%w: update available credit", ErrInternal)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: rows affected", ErrInternal)
	}
	if rows == 0 {
		return ErrInsufficientCredit
	}

	if err := r.insertEntry(ctx2, tx, userID, amount.Neg(), string(EntryTypeDebit), meta); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit tx", ErrInternal)
	}

	return nil
}

func (r *LedgerRepository) Restore(ctx context.Context, userID string, amount decimal.Decimal, meta EntryMeta) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidAmount
	}

	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx2, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("%w: begin tx", ErrInternal)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx2, `
		UPDATE users
		SET available_credit = available_credit + $2
		WHERE id = $1 AND available_credit + $2 <= credit_limit
	`, userID, amount)
	if err != nil {
		return fmt.Errorf("%w: update available credit", ErrInternal)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: rows affected", ErrInternal)
	}
	if rows == 0 {
		// Either the user is missing or the restoration would exceed the
		// limit; distinguish for the caller.
		var exists bool
		if err := tx.QueryRowContext(ctx2, `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists); err != nil {
			return fmt.Errorf("%w: check user", ErrInternal)
		}
		if !exists {
			return ErrUserNotFound
		}
		return ErrLimitExceeded
	}

	if err := r.insertEntry(ctx2, tx, userID, amount, string(EntryTypeRestore), meta); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit tx", ErrInternal)
	}

	return nil
}

func (r *LedgerRepository) GetBalance(ctx context.Context, userID string) (*Balance, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var bal Balance
	err := r.db.GetContext(ctx2, &bal, `SELECT credit_limit, available_credit FROM users WHERE id = $1`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("%w: get balance", ErrInternal)
	}

	return &bal, nil
}

func (r *LedgerRepository) HasEntry(ctx context.Context, transactionID string, entryType EntryType) (bool, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var exists bool
	err := r.db.GetContext(ctx2, &exists, `
		SELECT EXISTS(
			SELECT 1 FROM credit_entries
			WHERE transaction_id = $1 AND entry_type = $2
		)
	`, transactionID, string(entryType))
	if err != nil {
		return false, fmt.Errorf("%w: check ledger entry", ErrInternal)
	}

	return exists, nil
}

func (r *LedgerRepository) ListEntries(ctx context.Context, userID string, pagination Pagination) ([]Entry, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	limit := pagination.Limit
	if limit <= 0 {
		limit = 20
	}

	entries := make([]Entry, 0)
	err := r.db.SelectContext(ctx2, &entries, `
		SELECT id, user_id, amount_delta, entry_type, transaction_id, description, created_at
		FROM credit_entries
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, pagination.Offset)
	if err != nil {
		return nil, fmt.Errorf("%w: list entries", ErrInternal)
	}

	return entries, nil
}

func (r *LedgerRepository) insertEntry(ctx context.Context, tx *sqlx.Tx, userID string, delta decimal.Decimal, entryType string, meta EntryMeta) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO credit_entries (id, user_id, amount_delta, entry_type, transaction_id, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
	`, uuid.New().String(), userID, delta, entryType, meta.TransactionID, meta.Description)
	if err != nil {
		return fmt.Errorf("%w: insert ledger entry", ErrInternal)
	}
	return nil
}
