package actions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	StatusInProgress = "IN_PROGRESS"
	StatusCompleted  = "COMPLETED"
)

var (
	ErrValidation     = errors.New("missing user or action identifier")
	ErrAlreadyStarted = errors.New("action already in progress")
)

// UserAction tracks one user performing one action. At most one record exists
// per (user, action) pair.
type UserAction struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	ActionID    string
	Status      string
	Proof       *string
	StartedAt   time.Time
	CompletedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Service interface {
	Start(ctx context.Context, userID uuid.UUID, actionID string) (*UserAction, error)
	Complete(ctx context.Context, userID uuid.UUID, actionID, proof string) (*UserAction, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*UserAction, error)
}

// Store is the persistence contract; *Repository implements it.
type Store interface {
	InsertStarted(ctx context.Context, userID uuid.UUID, actionID string) (*UserAction, error)
	UpsertCompleted(ctx context.Context, userID uuid.UUID, actionID, proof string) (*UserAction, error)
	Get(ctx context.Context, userID uuid.UUID, actionID string) (*UserAction, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*UserAction, error)
}

type service struct {
	store Store
}

func NewService(store Store) Service {
	return &service{store: store}
}

var _ Service = (*service)(nil)

func (s *service) Start(ctx context.Context, userID uuid.UUID, actionID string) (*UserAction, error) {
	if userID == uuid.Nil || actionID == "" {
		return nil, ErrValidation
	}
	a, err := s.store.InsertStarted(ctx, userID, actionID)
	if err != nil {
		return nil, fmt.Errorf("start action: %w", err)
	}
	if a == nil {
		return nil, ErrAlreadyStarted
	}
	return a, nil
}

// Complete is idempotent: completing an already-completed action returns the
// existing record unchanged rather than an error.
func (s *service) Complete(ctx context.Context, userID uuid.UUID, actionID, proof string) (*UserAction, error) {
	if userID == uuid.Nil || actionID == "" {
		return nil, ErrValidation
	}
	a, err := s.store.UpsertCompleted(ctx, userID, actionID, proof)
	if err != nil {
		return nil, fmt.Errorf("complete action: %w", err)
	}
	if a != nil {
		return a, nil
	}
	existing, err := s.store.Get(ctx, userID, actionID)
	if err != nil {
		return nil, fmt.Errorf("fetch completed action: %w", err)
	}
	if existing == nil {
		return nil, fmt.Errorf("action record for (%s, %s) vanished after upsert", userID, actionID)
	}
	return existing, nil
}

func (s *service) ListByUser(ctx context.Context, userID uuid.UUID) ([]*UserAction, error) {
	if userID == uuid.Nil {
		return nil, ErrValidation
	}
	return s.store.ListByUser(ctx, userID)
}
