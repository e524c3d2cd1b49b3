package merchant

import (
	"time"

	"github.com/google/uuid"
)

// Merchant is the engine's view of a merchant account.
type Merchant struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	IsActive  bool      `db:"is_active" json:"is_active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
