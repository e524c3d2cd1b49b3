package merchant

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Repository defines merchant data access
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Merchant, error)
}

type repository struct {
	db *sqlx.DB
}

// NewRepository creates merchant repository
func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Merchant, error) {
	query := `SELECT id, name, is_active, created_at FROM merchants WHERE id = $1`
	var m Merchant
	err := r.db.GetContext(ctx, &m, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMerchantNotFound
		}
		return nil, err
	}
	return &m, nil
}
