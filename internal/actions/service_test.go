package actions

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

// mockActionStore emulates the composite unique constraint and conditional
// upsert under a single mutex.
type mockActionStore struct {
	mu      sync.Mutex
	records map[string]*UserAction
	now     time.Time
}

func newMockActionStore() *mockActionStore {
	return &mockActionStore{
		records: make(map[string]*UserAction),
		now:     time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func key(userID uuid.UUID, actionID string) string {
	return userID.String() + "/" + actionID
}

func (m *mockActionStore) tick() time.Time {
	m.now = m.now.Add(time.Second)
	return m.now
}

func (m *mockActionStore) InsertStarted(_ context.Context, userID uuid.UUID, actionID string) (*UserAction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := key(userID, actionID)
	if _, exists := m.records[k]; exists {
		return nil, nil
	}
	at := m.tick()
	a := &UserAction{
		ID:        uuid.New(),
		UserID:    userID,
		ActionID:  actionID,
		Status:    StatusInProgress,
		StartedAt: at,
		CreatedAt: at,
		UpdatedAt: at,
	}
	m.records[k] = a
	cp := *a
	return &cp, nil
}

func (m *mockActionStore) UpsertCompleted(_ context.Context, userID uuid.UUID, actionID, proof string) (*UserAction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := key(userID, actionID)
	at := m.tick()
	existing, ok := m.records[k]
	if !ok {
		p := proof
		a := &UserAction{
			ID:          uuid.New(),
			UserID:      userID,
			ActionID:    actionID,
			Status:      StatusCompleted,
			Proof:       &p,
			StartedAt:   at,
			CompletedAt: &at,
			CreatedAt:   at,
			UpdatedAt:   at,
		}
		m.records[k] = a
		cp := *a
		return &cp, nil
	}
	if existing.Status != StatusInProgress {
		return nil, nil
	}
	p := proof
	existing.Status = StatusCompleted
	existing.Proof = &p
	existing.CompletedAt = &at
	existing.UpdatedAt = at
	cp := *existing
	return &cp, nil
}

func (m *mockActionStore) Get(_ context.Context, userID uuid.UUID, actionID string) (*UserAction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.records[key(userID, actionID)]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (m *mockActionStore) ListByUser(_ context.Context, userID uuid.UUID) ([]*UserAction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*UserAction
	for _, a := range m.records {
		if a.UserID == userID {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func TestStart(t *testing.T) {
	svc := NewService(newMockActionStore())
	ctx := context.Background()
	user := uuid.New()

	a, err := svc.Start(ctx, user, "swap-tokens")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if a.Status != StatusInProgress {
		t.Errorf("status: got %s, want %s", a.Status, StatusInProgress)
	}
	if a.CompletedAt != nil {
		t.Error("completedAt should be unset on start")
	}

	if _, err := svc.Start(ctx, user, "swap-tokens"); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second start: expected ErrAlreadyStarted, got %v", err)
	}

	// A different action for the same user is independent.
	if _, err := svc.Start(ctx, user, "bridge-funds"); err != nil {
		t.Errorf("distinct action should start cleanly: %v", err)
	}
}

func TestStart_Validation(t *testing.T) {
	svc := NewService(newMockActionStore())
	ctx := context.Background()

	if _, err := svc.Start(ctx, uuid.Nil, "swap-tokens"); !errors.Is(err, ErrValidation) {
		t.Errorf("nil user: expected ErrValidation, got %v", err)
	}
	if _, err := svc.Start(ctx, uuid.New(), ""); !errors.Is(err, ErrValidation) {
		t.Errorf("empty action: expected ErrValidation, got %v", err)
	}
}

func TestStart_ConcurrentOneWinner(t *testing.T) {
	svc := NewService(newMockActionStore())
	ctx := context.Background()
	user := uuid.New()

	const callers = 12
	var wg sync.WaitGroup
	results := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, results[n] = svc.Start(ctx, user, "swap-tokens")
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range results {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, ErrAlreadyStarted):
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if successes != 1 {
		t.Errorf("successes: got %d, want 1", successes)
	}
}

func TestComplete_AfterStart(t *testing.T) {
	svc := NewService(newMockActionStore())
	ctx := context.Background()
	user := uuid.New()

	svc.Start(ctx, user, "swap-tokens")
	a, err := svc.Complete(ctx, user, "swap-tokens", "0xdeadbeef")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if a.Status != StatusCompleted {
		t.Errorf("status: got %s, want %s", a.Status, StatusCompleted)
	}
	if a.Proof == nil || *a.Proof != "0xdeadbeef" {
		t.Error("proof should be stored verbatim")
	}
	if a.CompletedAt == nil {
		t.Error("completedAt should be set")
	}
}

func TestComplete_WithoutStart(t *testing.T) {
	svc := NewService(newMockActionStore())
	ctx := context.Background()
	user := uuid.New()

	// Completion without a prior start records the action directly.
	a, err := svc.Complete(ctx, user, "swap-tokens", "0xabc")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if a.Status != StatusCompleted {
		t.Errorf("status: got %s, want %s", a.Status, StatusCompleted)
	}
}

func TestComplete_Idempotent(t *testing.T) {
	svc := NewService(newMockActionStore())
	ctx := context.Background()
	user := uuid.New()

	svc.Start(ctx, user, "swap-tokens")
	first, err := svc.Complete(ctx, user, "swap-tokens", "0xfirst")
	if err != nil {
		t.Fatalf("first Complete: %v", err)
	}

	// Repeat completion returns the original record: same proof, same timestamp.
	second, err := svc.Complete(ctx, user, "swap-tokens", "0xsecond")
	if err != nil {
		t.Fatalf("second Complete: %v", err)
	}
	if second.Proof == nil || *second.Proof != "0xfirst" {
		t.Errorf("proof should not be overwritten: got %v", second.Proof)
	}
	if second.CompletedAt == nil || !second.CompletedAt.Equal(*first.CompletedAt) {
		t.Error("completedAt should be unchanged by repeat completion")
	}
}

func TestListByUser(t *testing.T) {
	svc := NewService(newMockActionStore())
	ctx := context.Background()
	user := uuid.New()
	other := uuid.New()

	svc.Start(ctx, user, "swap-tokens")
	svc.Complete(ctx, user, "bridge-funds", "0xabc")
	svc.Start(ctx, other, "swap-tokens")

	list, err := svc.ListByUser(ctx, user)
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(list) != 2 {
		t.Errorf("got %d actions, want 2", len(list))
	}
	for _, a := range list {
		if a.UserID != user {
			t.Errorf("listing leaked action for user %s", a.UserID)
		}
	}
}
