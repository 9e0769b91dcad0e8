package payments

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/riverqueue/river"
	"github.com/shopspring/decimal"

	"github.com/stablestation/backend/internal/kits"
)

type FulfillChargeArgs struct {
	ChargeID  string          `json:"charge_id"`
	AccountID uuid.UUID       `json:"account_id"`
	Amount    decimal.Decimal `json:"amount"`
}

func (FulfillChargeArgs) Kind() string { return "fulfill_charge" }

// KitCreator is the slice of the starter-kit ledger the worker needs.
type KitCreator interface {
	Create(ctx context.Context, creatorID uuid.UUID, value decimal.Decimal, chargeID *string) (*kits.StarterKit, error)
}

// FulfillChargeWorker turns a confirmed payment charge into a starter kit.
// Creation is idempotent on the charge id, so River retries are safe.
type FulfillChargeWorker struct {
	river.WorkerDefaults[FulfillChargeArgs]
	kits KitCreator
	log  *slog.Logger
}

func NewFulfillChargeWorker(kc KitCreator, log *slog.Logger) *FulfillChargeWorker {
	if log == nil {
		log = slog.Default()
	}
	return &FulfillChargeWorker{kits: kc, log: log}
}

func (w *FulfillChargeWorker) Work(ctx context.Context, job *river.Job[FulfillChargeArgs]) error {
	args := job.Args
	chargeID := args.ChargeID

	kit, err := w.kits.Create(ctx, args.AccountID, args.Amount, &chargeID)
	if err != nil {
		return fmt.Errorf("fulfill charge %s: %w", chargeID, err)
	}
	w.log.Info("charge fulfilled", "charge_id", chargeID, "kit_id", kit.ID)
	return nil
}
