package payments

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/riverqueue/river"
	"github.com/shopspring/decimal"

	"github.com/stablestation/backend/internal/kits"
)

type mockKitCreator struct {
	calls []struct {
		creatorID uuid.UUID
		value     decimal.Decimal
		chargeID  *string
	}
	err error
}

func (m *mockKitCreator) Create(_ context.Context, creatorID uuid.UUID, value decimal.Decimal, chargeID *string) (*kits.StarterKit, error) {
	m.calls = append(m.calls, struct {
		creatorID uuid.UUID
		value     decimal.Decimal
		chargeID  *string
	}{creatorID, value, chargeID})
	if m.err != nil {
		return nil, m.err
	}
	return &kits.StarterKit{ID: uuid.New(), CreatorID: &creatorID, Value: value}, nil
}

func TestFulfillChargeWorker(t *testing.T) {
	creator := &mockKitCreator{}
	w := NewFulfillChargeWorker(creator, nil)
	account := uuid.New()

	job := &river.Job[FulfillChargeArgs]{Args: FulfillChargeArgs{
		ChargeID:  "charge-42",
		AccountID: account,
		Amount:    decimal.NewFromInt(250),
	}}
	if err := w.Work(context.Background(), job); err != nil {
		t.Fatalf("Work: %v", err)
	}

	if len(creator.calls) != 1 {
		t.Fatalf("Create calls: got %d, want 1", len(creator.calls))
	}
	call := creator.calls[0]
	if call.creatorID != account {
		t.Errorf("creator: got %s, want %s", call.creatorID, account)
	}
	if !call.value.Equal(decimal.NewFromInt(250)) {
		t.Errorf("value: got %s, want 250", call.value)
	}
	if call.chargeID == nil || *call.chargeID != "charge-42" {
		t.Error("charge id should be forwarded for idempotency")
	}
}

func TestFulfillChargeWorker_ErrorPropagates(t *testing.T) {
	boom := errors.New("db down")
	w := NewFulfillChargeWorker(&mockKitCreator{err: boom}, nil)

	job := &river.Job[FulfillChargeArgs]{Args: FulfillChargeArgs{
		ChargeID:  "charge-43",
		AccountID: uuid.New(),
		Amount:    decimal.NewFromInt(10),
	}}
	// The error must surface so River retries the job.
	if err := w.Work(context.Background(), job); !errors.Is(err, boom) {
		t.Errorf("expected wrapped error, got %v", err)
	}
}
