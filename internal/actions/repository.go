package actions

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const actionColumns = `id, user_id, action_id, status, proof, started_at, completed_at, created_at, updated_at`

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanAction(row pgx.Row) (*UserAction, error) {
	var a UserAction
	err := row.Scan(&a.ID, &a.UserID, &a.ActionID, &a.Status, &a.Proof,
		&a.StartedAt, &a.CompletedAt, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// InsertStarted records the start of an action. The (user_id, action_id)
// unique constraint arbitrates concurrent starts: exactly one insert lands and
// the rest return (nil, nil).
func (r *Repository) InsertStarted(ctx context.Context, userID uuid.UUID, actionID string) (*UserAction, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO user_actions (user_id, action_id, status)
		VALUES ($1, $2, 'IN_PROGRESS')
		ON CONFLICT (user_id, action_id) DO NOTHING
		RETURNING `+actionColumns+`
	`, userID, actionID)
	a, err := scanAction(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return a, err
}

// UpsertCompleted completes an action in one statement: inserts a COMPLETED
// record when none exists, promotes an IN_PROGRESS record otherwise. A record
// already COMPLETED is left untouched (the DO UPDATE predicate excludes it)
// and (nil, nil) is returned.
func (r *Repository) UpsertCompleted(ctx context.Context, userID uuid.UUID, actionID, proof string) (*UserAction, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO user_actions (user_id, action_id, status, proof, completed_at)
		VALUES ($1, $2, 'COMPLETED', $3, now())
		ON CONFLICT (user_id, action_id) DO UPDATE
		SET status = 'COMPLETED', proof = EXCLUDED.proof, completed_at = now(), updated_at = now()
		WHERE user_actions.status = 'IN_PROGRESS'
		RETURNING `+actionColumns+`
	`, userID, actionID, proof)
	a, err := scanAction(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return a, err
}

// Get returns the record for (userID, actionID), or nil.
func (r *Repository) Get(ctx context.Context, userID uuid.UUID, actionID string) (*UserAction, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+actionColumns+` FROM user_actions WHERE user_id = $1 AND action_id = $2
	`, userID, actionID)
	a, err := scanAction(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return a, err
}

func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*UserAction, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+actionColumns+` FROM user_actions WHERE user_id = $1 ORDER BY started_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*UserAction
	for rows.Next() {
		a, err := scanAction(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, a)
	}
	return list, rows.Err()
}
