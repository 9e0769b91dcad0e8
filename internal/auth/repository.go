package auth

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a new account and returns the created Account.
func (r *Repository) Create(ctx context.Context, email, passwordHash, displayName string, walletAddress *string) (*Account, error) {
	var a Account
	row := r.pool.QueryRow(ctx, `
		INSERT INTO accounts (email, password_hash, display_name, wallet_address)
		VALUES ($1, $2, $3, $4)
		RETURNING id, email, display_name, wallet_address, created_at
	`, email, passwordHash, displayName, walletAddress)
	if err := row.Scan(&a.ID, &a.Email, &a.DisplayName, &a.WalletAddress, &a.CreatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

// GetByEmail returns the account and password hash for login. Returns nil if not found.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*Account, string, error) {
	var a Account
	var passwordHash string
	row := r.pool.QueryRow(ctx, `
		SELECT id, email, display_name, wallet_address, password_hash, created_at
		FROM accounts WHERE email = $1
	`, email)
	if err := row.Scan(&a.ID, &a.Email, &a.DisplayName, &a.WalletAddress, &passwordHash, &a.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", nil
		}
		return nil, "", err
	}
	return &a, passwordHash, nil
}

// GetByID returns the account, or nil if it does not exist.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Account, error) {
	var a Account
	row := r.pool.QueryRow(ctx, `
		SELECT id, email, display_name, wallet_address, created_at
		FROM accounts WHERE id = $1
	`, id)
	if err := row.Scan(&a.ID, &a.Email, &a.DisplayName, &a.WalletAddress, &a.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}
