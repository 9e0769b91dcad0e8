package payments

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

// RecordEvent inserts the charge event inside the caller's transaction.
// Returns false when this charge id was already recorded (duplicate webhook
// delivery), in which case no fulfillment job should be enqueued.
func (r *Repository) RecordEvent(ctx context.Context, tx pgx.Tx, chargeID string, accountID uuid.UUID, amount decimal.Decimal) (bool, error) {
	tag, err := tx.Exec(ctx, `
		INSERT INTO charge_events (charge_id, account_id, amount)
		VALUES ($1, $2, $3)
		ON CONFLICT (charge_id) DO NOTHING
	`, chargeID, accountID, amount)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
