package kits

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stablestation/backend/internal/cache"
)

// DefaultValue is the face value assigned when a kit is created without one.
var DefaultValue = decimal.NewFromInt(100)

var (
	ErrValidation     = errors.New("missing required identifier")
	ErrNotFound       = errors.New("starter kit not found")
	ErrAlreadyClaimed = errors.New("starter kit already claimed")
	ErrNoneAvailable  = errors.New("no starter kits available")
)

// StarterKit is one allocation of reward value. claimer_id and claimed_at are
// written together, exactly once, by one of the claim paths; value never
// changes after creation. balance is maintained by the spend subsystem and is
// inert here.
type StarterKit struct {
	ID            uuid.UUID
	CreatorID     *uuid.UUID
	ClaimerID     *uuid.UUID
	ChargeID      *string
	Value         decimal.Decimal
	Balance       decimal.Decimal
	SelfRequested bool
	CreatedAt     time.Time
	ClaimedAt     *time.Time
	DeletedAt     *time.Time
}

type Service interface {
	Create(ctx context.Context, creatorID uuid.UUID, value decimal.Decimal, chargeID *string) (*StarterKit, error)
	ListAvailable(ctx context.Context) ([]*StarterKit, error)
	ClaimAvailable(ctx context.Context, userID uuid.UUID) (*StarterKit, error)
	Claim(ctx context.Context, kitID, userID uuid.UUID) (*StarterKit, error)
	Give(ctx context.Context, kitID, fromUserID, toUserID uuid.UUID) (*StarterKit, error)
	RequestOwn(ctx context.Context, userID uuid.UUID) (kit *StarterKit, alreadyHad bool, err error)
	ListCreatedBy(ctx context.Context, userID uuid.UUID) ([]*StarterKit, error)
	ListClaimedBy(ctx context.Context, userID uuid.UUID) ([]*StarterKit, error)
}

// Store is the persistence contract the service needs. *Repository implements
// it; tests substitute an in-memory version.
type Store interface {
	Insert(ctx context.Context, creatorID uuid.UUID, value decimal.Decimal, chargeID *string) (*StarterKit, error)
	GetByChargeID(ctx context.Context, chargeID string) (*StarterKit, error)
	ListAvailable(ctx context.Context) ([]*StarterKit, error)
	ClaimOldest(ctx context.Context, userID uuid.UUID) (*StarterKit, error)
	ClaimByID(ctx context.Context, kitID, userID uuid.UUID) (*StarterKit, error)
	GiveByID(ctx context.Context, kitID, fromUserID, toUserID uuid.UUID) (*StarterKit, error)
	InsertSelf(ctx context.Context, userID uuid.UUID, value decimal.Decimal) (*StarterKit, error)
	FindClaimedBy(ctx context.Context, userID uuid.UUID) (*StarterKit, error)
	ListCreatedBy(ctx context.Context, userID uuid.UUID) ([]*StarterKit, error)
	ListClaimedBy(ctx context.Context, userID uuid.UUID) ([]*StarterKit, error)
}

const (
	availableCacheKey = "starter-kits:available"
	availableCacheTTL = 5 * time.Second
)

type service struct {
	store Store
	cache cache.Cache
}

// NewService wires the ledger over an explicit store handle. The cache is
// advisory: it only serves the availability listing and every cache error is
// treated as a miss. Claim paths never consult it.
func NewService(store Store, c cache.Cache) Service {
	if c == nil {
		c = cache.NewMemory()
	}
	return &service{store: store, cache: c}
}

var _ Service = (*service)(nil)

func (s *service) Create(ctx context.Context, creatorID uuid.UUID, value decimal.Decimal, chargeID *string) (*StarterKit, error) {
	if creatorID == uuid.Nil {
		return nil, ErrValidation
	}
	if value.LessThanOrEqual(decimal.Zero) {
		value = DefaultValue
	}
	kit, err := s.store.Insert(ctx, creatorID, value, chargeID)
	if err != nil {
		return nil, fmt.Errorf("insert starter kit: %w", err)
	}
	if kit == nil {
		// Duplicate charge delivery: the kit for this charge already exists.
		if chargeID == nil {
			return nil, fmt.Errorf("insert starter kit: no row returned")
		}
		kit, err = s.store.GetByChargeID(ctx, *chargeID)
		if err != nil {
			return nil, fmt.Errorf("fetch kit for charge %s: %w", *chargeID, err)
		}
		if kit == nil {
			return nil, fmt.Errorf("kit for charge %s vanished after conflict", *chargeID)
		}
		return kit, nil
	}
	s.invalidateAvailable(ctx)
	return kit, nil
}

func (s *service) ListAvailable(ctx context.Context) ([]*StarterKit, error) {
	if data, err := s.cache.Get(ctx, availableCacheKey); err == nil {
		var list []*StarterKit
		if err := json.Unmarshal(data, &list); err == nil {
			return list, nil
		}
	}
	list, err := s.store.ListAvailable(ctx)
	if err != nil {
		return nil, fmt.Errorf("list available kits: %w", err)
	}
	if data, err := json.Marshal(list); err == nil {
		_ = s.cache.Set(ctx, availableCacheKey, data, availableCacheTTL)
	}
	return list, nil
}

func (s *service) ClaimAvailable(ctx context.Context, userID uuid.UUID) (*StarterKit, error) {
	if userID == uuid.Nil {
		return nil, ErrValidation
	}
	kit, err := s.store.ClaimOldest(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("claim oldest kit: %w", err)
	}
	if kit == nil {
		return nil, ErrNoneAvailable
	}
	s.invalidateAvailable(ctx)
	return kit, nil
}

func (s *service) Claim(ctx context.Context, kitID, userID uuid.UUID) (*StarterKit, error) {
	if kitID == uuid.Nil || userID == uuid.Nil {
		return nil, ErrValidation
	}
	kit, err := s.store.ClaimByID(ctx, kitID, userID)
	if err != nil {
		return nil, err
	}
	s.invalidateAvailable(ctx)
	return kit, nil
}

func (s *service) Give(ctx context.Context, kitID, fromUserID, toUserID uuid.UUID) (*StarterKit, error) {
	if kitID == uuid.Nil || fromUserID == uuid.Nil || toUserID == uuid.Nil {
		return nil, ErrValidation
	}
	kit, err := s.store.GiveByID(ctx, kitID, fromUserID, toUserID)
	if err != nil {
		return nil, err
	}
	s.invalidateAvailable(ctx)
	return kit, nil
}

func (s *service) RequestOwn(ctx context.Context, userID uuid.UUID) (*StarterKit, bool, error) {
	if userID == uuid.Nil {
		return nil, false, ErrValidation
	}
	existing, err := s.store.FindClaimedBy(ctx, userID)
	if err != nil {
		return nil, false, fmt.Errorf("find claimed kit: %w", err)
	}
	if existing != nil {
		return existing, true, nil
	}
	kit, err := s.store.InsertSelf(ctx, userID, DefaultValue)
	if err != nil {
		return nil, false, fmt.Errorf("insert self kit: %w", err)
	}
	if kit == nil {
		// A concurrent request won the unique-index race; theirs is ours.
		existing, err = s.store.FindClaimedBy(ctx, userID)
		if err != nil {
			return nil, false, fmt.Errorf("find claimed kit after conflict: %w", err)
		}
		if existing == nil {
			return nil, false, fmt.Errorf("self kit for %s vanished after conflict", userID)
		}
		return existing, true, nil
	}
	return kit, false, nil
}

func (s *service) ListCreatedBy(ctx context.Context, userID uuid.UUID) ([]*StarterKit, error) {
	if userID == uuid.Nil {
		return nil, ErrValidation
	}
	return s.store.ListCreatedBy(ctx, userID)
}

func (s *service) ListClaimedBy(ctx context.Context, userID uuid.UUID) ([]*StarterKit, error) {
	if userID == uuid.Nil {
		return nil, ErrValidation
	}
	return s.store.ListClaimedBy(ctx, userID)
}

func (s *service) invalidateAvailable(ctx context.Context) {
	_ = s.cache.Delete(ctx, availableCacheKey)
}
