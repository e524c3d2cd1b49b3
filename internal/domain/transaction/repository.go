package transaction

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

// Repository defines transaction and installment data access.
type Repository interface {
	Create(ctx context.Context, t *Transaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*Transaction, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Transaction, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) error
	SetCharge(ctx context.Context, id uuid.UUID, chargeID, clientSecret string) error

	// ReplaceSchedule atomically deletes the prior scheduled set and inserts
	// the new one so no reader observes a partial schedule.
	ReplaceSchedule(ctx context.Context, txID uuid.UUID, installments []Installment) error
	GetInstallments(ctx context.Context, txID uuid.UUID) ([]Installment, error)
	GetInstallmentByID(ctx context.Context, id uuid.UUID) (*Installment, error)
	GetInstallmentByChargeID(ctx context.Context, chargeID string) (*Installment, error)
	SetInstallmentCharge(ctx context.Context, id uuid.UUID, chargeID string) error
	CompleteInstallment(ctx context.Context, id uuid.UUID) error
	// MarkInstallmentProcessing claims a scheduled installment for
	// settlement; returns false when another worker already claimed it.
	MarkInstallmentProcessing(ctx context.Context, id uuid.UUID) (bool, error)

	// RecordInstallmentFailure counts one payment failure atomically: the
	// retry counter increment, the installment update and (at the cap) the
	// transaction failure commit in one database transaction, so concurrent
	// failure reports cannot lose counter updates. The decide callback maps
	// the incremented counter onto a retry decision.
	RecordInstallmentFailure(ctx context.Context, txID, instID uuid.UUID, reason string, decide func(retryCount int) RetryDecision) (RetryDecision, error)
	ResetRetryCount(ctx context.Context, txID uuid.UUID) error

	CountByUser(ctx context.Context, userID uuid.UUID) (int, error)
	CountFailedSince(ctx context.Context, userID uuid.UUID, since time.Time) (int, error)
	CountCreatedSince(ctx context.Context, userID uuid.UUID, since time.Time) (int, error)

	// DueInstallments lists scheduled installments due at or before the
	// given time, oldest first. Used by the sweep worker.
	DueInstallments(ctx context.Context, before time.Time, limit int) ([]Installment, error)
	// SettlementStats aggregates settlement outcomes inside [from, to).
	SettlementStats(ctx context.Context, from, to time.Time) (*SettlementStats, error)
}

// SettlementStats is a settlement outcome aggregate for reporting.
type SettlementStats struct {
	SettledCount    int             `db:"settled_count"`
	SettledTotal    decimal.Decimal `db:"settled_total"`
	FailedCount     int             `db:"failed_count"`
	FailedTotal     decimal.Decimal `db:"failed_total"`
	RetriesExceeded int             `db:"retries_exceeded"`
}

type repository struct {
	db *sqlx.DB
}

// NewRepository creates transaction repository
func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, t *Transaction) error {
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("%w: begin tx", ErrInternal)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO transactions
			(id, user_id, merchant_id, amount, plan, status, risk_score,
			 credit_amount, card_amount, method, retry_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 0, NOW(), NOW())
	`, t.ID, t.UserID, t.MerchantID, t.Amount, t.Plan, t.Status, t.RiskScore,
		t.CreditAmount, t.CardAmount, t.Method)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}

	for i := range t.Items {
		item := &t.Items[i]
		if item.ID == uuid.Nil {
			item.ID = uuid.New()
		}
		item.TransactionID = t.ID
		_, err = tx.ExecContext(ctx, `
			INSERT INTO transaction_items (id, transaction_id, name, unit_price, quantity)
			VALUES ($1, $2, $3, $4, $5)
		`, item.ID, item.TransactionID, item.Name, item.UnitPrice, item.Quantity)
		if err != nil {
			return fmt.Errorf("failed to insert item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit tx", ErrInternal)
	}
	return nil
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Transaction, error) {
	var t Transaction
	err := r.db.GetContext(ctx, &t, `SELECT * FROM transactions WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}

	if err := r.db.SelectContext(ctx, &t.Items, `
		SELECT id, transaction_id, name, unit_price, quantity
		FROM transaction_items WHERE transaction_id = $1
	`, id); err != nil {
		return nil, err
	}

	installments, err := r.GetInstallments(ctx, id)
	if err != nil {
		return nil, err
	}
	t.Installments = installments

	return &t, nil
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Transaction, error) {
	if limit <= 0 {
		limit = 20
	}
	var items []*Transaction
	err := r.db.SelectContext(ctx, &items, `
		SELECT * FROM transactions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	return items, err
}

func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE transactions SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
	`, id, from, to)
	if err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}
	return checkTransitionRows(result)
}

// checkTransitionRows maps a zero-row guarded status update onto
// ErrInvalidTransition: the row moved out from under us.
func checkTransitionRows(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: rows affected", ErrInternal)
	}
	if rows == 0 {
		return ErrInvalidTransition
	}
	return nil
}

func (r *repository) SetCharge(ctx context.Context, id uuid.UUID, chargeID, clientSecret string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE transactions SET charge_id = $2, client_secret = $3, updated_at = NOW()
		WHERE id = $1
	`, id, chargeID, clientSecret)
	return err
}

func (r *repository) ReplaceSchedule(ctx context.Context, txID uuid.UUID, installments []Installment) error {
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("%w: begin tx", ErrInternal)
	}
	defer tx.Rollback()

	// Only the scheduled set is replaced; settled and failed installments
	// are history and stay untouched.
	_, err = tx.ExecContext(ctx, `
		DELETE FROM installments
		WHERE transaction_id = $1 AND status = $2
	`, txID, InstallmentScheduled)
	if err != nil {
		return fmt.Errorf("failed to delete prior schedule: %w", err)
	}

	for _, inst := range installments {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO installments
				(id, transaction_id, number, amount, due_date, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		`, inst.ID, inst.TransactionID, inst.Number, inst.Amount, inst.DueDate, inst.Status)
		if err != nil {
			return fmt.Errorf("failed to insert installment: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit tx", ErrInternal)
	}
	return nil
}

func (r *repository) GetInstallments(ctx context.Context, txID uuid.UUID) ([]Installment, error) {
	installments := make([]Installment, 0)
	err := r.db.SelectContext(ctx, &installments, `
		SELECT * FROM installments
		WHERE transaction_id = $1
		ORDER BY number ASC
	`, txID)
	return installments, err
}

func (r *repository) GetInstallmentByID(ctx context.Context, id uuid.UUID) (*Installment, error) {
	var inst Installment
	err := r.db.GetContext(ctx, &inst, `SELECT * FROM installments WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInstallmentNotFound
		}
		return nil, err
	}
	return &inst, nil
}

func (r *repository) GetInstallmentByChargeID(ctx context.Context, chargeID string) (*Installment, error) {
	var inst Installment
	err := r.db.GetContext(ctx, &inst, `SELECT * FROM installments WHERE charge_id = $1`, chargeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInstallmentNotFound
		}
		return nil, err
	}
	return &inst, nil
}

func (r *repository) SetInstallmentCharge(ctx context.Context, id uuid.UUID, chargeID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE installments SET charge_id = $2, updated_at = NOW() WHERE id = $1
	`, id, chargeID)
	return err
}

func (r *repository) CompleteInstallment(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE installments
		SET status = $2, failure_reason = NULL, updated_at = NOW()
		WHERE id = $1 AND status IN ($3, $4)
	`, id, InstallmentCompleted, InstallmentScheduled, InstallmentProcessing)
	if err != nil {
		return fmt.Errorf("failed to complete installment: %w", err)
	}
	return checkTransitionRows(result)
}

func (r *repository) MarkInstallmentProcessing(ctx context.Context, id uuid.UUID) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE installments SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = $3
	`, id, InstallmentProcessing, InstallmentScheduled)
	if err != nil {
		return false, fmt.Errorf("failed to claim installment: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: rows affected", ErrInternal)
	}
	return rows > 0, nil
}

func (r *repository) RecordInstallmentFailure(ctx context.Context, txID, instID uuid.UUID, reason string, decide func(retryCount int) RetryDecision) (RetryDecision, error) {
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{})
	if err != nil {
		return RetryDecision{}, fmt.Errorf("%w: begin tx", ErrInternal)
	}
	defer tx.Rollback()

	var count int
	err = tx.QueryRowContext(ctx, `
		UPDATE transactions SET retry_count = retry_count + 1, updated_at = NOW()
		WHERE id = $1
		RETURNING retry_count
	`, txID).Scan(&count)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return RetryDecision{}, ErrTransactionNotFound
		}
		return RetryDecision{}, fmt.Errorf("failed to increment retry count: %w", err)
	}

	decision := decide(count)
	if decision.Retry {
		_, err = tx.ExecContext(ctx, `
			UPDATE installments
			SET status = $2, due_date = $3, failure_reason = $4, updated_at = NOW()
			WHERE id = $1
		`, instID, InstallmentScheduled, decision.NextDueDate, reason)
		if err != nil {
			return RetryDecision{}, fmt.Errorf("failed to reschedule installment: %w", err)
		}
	} else {
		_, err = tx.ExecContext(ctx, `
			UPDATE installments
			SET status = $2, failure_reason = $3, updated_at = NOW()
			WHERE id = $1
		`, instID, InstallmentFailed, reason)
		if err != nil {
			return RetryDecision{}, fmt.Errorf("failed to fail installment: %w", err)
		}
		// External failure signal toward the state machine; a transaction
		// already out of approved is left alone.
		_, err = tx.ExecContext(ctx, `
			UPDATE transactions SET status = $3, updated_at = NOW()
			WHERE id = $1 AND status = $2
		`, txID, StatusApproved, StatusFailed)
		if err != nil {
			return RetryDecision{}, fmt.Errorf("failed to fail transaction: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return RetryDecision{}, fmt.Errorf("%w: commit tx", ErrInternal)
	}
	return decision, nil
}

func (r *repository) ResetRetryCount(ctx context.Context, txID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE transactions SET retry_count = 0, updated_at = NOW() WHERE id = $1
	`, txID)
	return err
}

func (r *repository) CountByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM transactions WHERE user_id = $1
	`, userID)
	return count, err
}

func (r *repository) CountFailedSince(ctx context.Context, userID uuid.UUID, since time.Time) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM transactions
		WHERE user_id = $1 AND status = $2 AND updated_at >= $3
	`, userID, StatusFailed, since)
	return count, err
}

func (r *repository) CountCreatedSince(ctx context.Context, userID uuid.UUID, since time.Time) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM transactions
		WHERE user_id = $1 AND created_at >= $2
	`, userID, since)
	return count, err
}

func (r *repository) DueInstallments(ctx context.Context, before time.Time, limit int) ([]Installment, error) {
	if limit <= 0 {
		limit = 100
	}
	installments := make([]Installment, 0)
	err := r.db.SelectContext(ctx, &installments, `
		SELECT * FROM installments
		WHERE status = $1 AND due_date <= $2
		ORDER BY due_date ASC
		LIMIT $3
	`, InstallmentScheduled, before, limit)
	return installments, err
}

func (r *repository) SettlementStats(ctx context.Context, from, to time.Time) (*SettlementStats, error) {
	var stats SettlementStats
	err := r.db.GetContext(ctx, &stats, `
		SELECT
			COUNT(*) FILTER (WHERE status = $3)                   AS settled_count,
			COALESCE(SUM(amount) FILTER (WHERE status = $3), 0)   AS settled_total,
			COUNT(*) FILTER (WHERE status = $4)                   AS failed_count,
			COALESCE(SUM(amount) FILTER (WHERE status = $4), 0)   AS failed_total,
			COUNT(DISTINCT transaction_id) FILTER (WHERE status = $4) AS retries_exceeded
		FROM installments
		WHERE updated_at >= $1 AND updated_at < $2
	`, from, to, InstallmentCompleted, InstallmentFailed)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate settlement stats: %w", err)
	}
	return &stats, nil
}
