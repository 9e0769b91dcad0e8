package kits

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const kitColumns = `id, creator_id, claimer_id, charge_id, value, balance, self_requested, created_at, claimed_at, deleted_at`

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanKit(row pgx.Row) (*StarterKit, error) {
	var k StarterKit
	err := row.Scan(&k.ID, &k.CreatorID, &k.ClaimerID, &k.ChargeID, &k.Value, &k.Balance,
		&k.SelfRequested, &k.CreatedAt, &k.ClaimedAt, &k.DeletedAt)
	if err != nil {
		return nil, err
	}
	return &k, nil
}

// Insert creates an unclaimed kit. When chargeID is set and a kit already
// exists for that charge the insert is suppressed (duplicate webhook delivery)
// and (nil, nil) is returned so the caller can fetch the existing kit.
func (r *Repository) Insert(ctx context.Context, creatorID uuid.UUID, value decimal.Decimal, chargeID *string) (*StarterKit, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO starter_kits (creator_id, charge_id, value)
		VALUES ($1, $2, $3)
		ON CONFLICT (charge_id) DO NOTHING
		RETURNING `+kitColumns+`
	`, creatorID, chargeID, value)
	k, err := scanKit(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return k, err
}

// GetByChargeID returns the kit created for a payment charge, or nil.
func (r *Repository) GetByChargeID(ctx context.Context, chargeID string) (*StarterKit, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+kitColumns+` FROM starter_kits WHERE charge_id = $1
	`, chargeID)
	k, err := scanKit(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return k, err
}

func (r *Repository) ListAvailable(ctx context.Context) ([]*StarterKit, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+kitColumns+` FROM starter_kits
		WHERE claimer_id IS NULL AND deleted_at IS NULL
		ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectKits(rows)
}

// ClaimOldest assigns the oldest unclaimed, live kit to userID in a single
// statement. SKIP LOCKED keeps racing claimants off each other's row: each
// transaction locks a distinct candidate, and the outer claimer_id guard
// ensures a row is never claimed twice. Returns (nil, nil) when the pool is
// empty.
func (r *Repository) ClaimOldest(ctx context.Context, userID uuid.UUID) (*StarterKit, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE starter_kits SET claimer_id = $1, claimed_at = now()
		WHERE id = (
			SELECT id FROM starter_kits
			WHERE claimer_id IS NULL AND deleted_at IS NULL
			ORDER BY created_at ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		AND claimer_id IS NULL
		RETURNING `+kitColumns+`
	`, userID)
	k, err := scanKit(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return k, err
}

// ClaimByID claims a specific kit. The claimer_id IS NULL guard makes the
// check-and-set atomic; a zero-row result is disambiguated with a follow-up
// read that only classifies the failure (the claim itself never happens there).
func (r *Repository) ClaimByID(ctx context.Context, kitID, userID uuid.UUID) (*StarterKit, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE starter_kits SET claimer_id = $2, claimed_at = now()
		WHERE id = $1 AND claimer_id IS NULL AND deleted_at IS NULL
		RETURNING `+kitColumns+`
	`, kitID, userID)
	k, err := scanKit(row)
	if err == nil {
		return k, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	return nil, r.classifyClaimFailure(ctx, kitID)
}

// GiveByID directs an unclaimed kit the giver created to a specific recipient.
// Ownership (creator_id) is part of the same conditional update as the claim
// guard. Non-owners get ErrNotFound rather than a forbidden error so the call
// does not leak which kit ids exist.
func (r *Repository) GiveByID(ctx context.Context, kitID, fromUserID, toUserID uuid.UUID) (*StarterKit, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE starter_kits SET claimer_id = $3, claimed_at = now()
		WHERE id = $1 AND creator_id = $2 AND claimer_id IS NULL AND deleted_at IS NULL
		RETURNING `+kitColumns+`
	`, kitID, fromUserID, toUserID)
	k, err := scanKit(row)
	if err == nil {
		return k, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	var creatorID, claimerID *uuid.UUID
	var deleted bool
	probe := r.pool.QueryRow(ctx, `
		SELECT creator_id, claimer_id, deleted_at IS NOT NULL FROM starter_kits WHERE id = $1
	`, kitID)
	if err := probe.Scan(&creatorID, &claimerID, &deleted); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if deleted || creatorID == nil || *creatorID != fromUserID {
		return nil, ErrNotFound
	}
	if claimerID != nil {
		return nil, ErrAlreadyClaimed
	}
	return nil, ErrNotFound
}

// InsertSelf creates a kit that is claimed by its creator in the same insert.
// The partial unique index on (claimer_id) WHERE self_requested is the
// enforcement of last resort: under concurrent duplicate requests only one
// insert lands and the rest return (nil, nil). The flag is set only here, so
// claiming a kit one created through the normal paths never hits the index.
func (r *Repository) InsertSelf(ctx context.Context, userID uuid.UUID, value decimal.Decimal) (*StarterKit, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO starter_kits (creator_id, claimer_id, value, self_requested, claimed_at)
		VALUES ($1, $1, $2, true, now())
		ON CONFLICT (claimer_id) WHERE self_requested DO NOTHING
		RETURNING `+kitColumns+`
	`, userID, value)
	k, err := scanKit(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return k, err
}

// FindClaimedBy returns the oldest kit claimed by userID, or nil.
func (r *Repository) FindClaimedBy(ctx context.Context, userID uuid.UUID) (*StarterKit, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+kitColumns+` FROM starter_kits
		WHERE claimer_id = $1 AND deleted_at IS NULL
		ORDER BY claimed_at ASC
		LIMIT 1
	`, userID)
	k, err := scanKit(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return k, err
}

func (r *Repository) ListCreatedBy(ctx context.Context, userID uuid.UUID) ([]*StarterKit, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+kitColumns+` FROM starter_kits
		WHERE creator_id = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectKits(rows)
}

func (r *Repository) ListClaimedBy(ctx context.Context, userID uuid.UUID) ([]*StarterKit, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+kitColumns+` FROM starter_kits
		WHERE claimer_id = $1 AND deleted_at IS NULL
		ORDER BY claimed_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectKits(rows)
}

func (r *Repository) classifyClaimFailure(ctx context.Context, kitID uuid.UUID) error {
	var claimed, deleted bool
	row := r.pool.QueryRow(ctx, `
		SELECT claimer_id IS NOT NULL, deleted_at IS NOT NULL FROM starter_kits WHERE id = $1
	`, kitID)
	if err := row.Scan(&claimed, &deleted); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	if deleted {
		return ErrNotFound
	}
	if claimed {
		return ErrAlreadyClaimed
	}
	return ErrNotFound
}

func collectKits(rows pgx.Rows) ([]*StarterKit, error) {
	var list []*StarterKit
	for rows.Next() {
		k, err := scanKit(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, k)
	}
	return list, rows.Err()
}
