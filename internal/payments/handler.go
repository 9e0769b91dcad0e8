package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// SignatureHeader carries the hex HMAC-SHA256 of the raw request body.
const SignatureHeader = "X-Webhook-Signature"

// eventChargeConfirmed is the only event type that mints a kit; everything
// else is acknowledged and dropped.
const eventChargeConfirmed = "charge:confirmed"

type ChargeEvent struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	ChargeID  string `json:"charge_id"`
	AccountID string `json:"account_id"`
	Amount    string `json:"amount"`
}

// InsertFulfillChargeTxFunc enqueues a FulfillCharge job within the given
// transaction. Provided by main using river.Client.InsertTx.
type InsertFulfillChargeTxFunc func(ctx context.Context, tx pgx.Tx, args FulfillChargeArgs) error

// EventStore is the slice of the repository the webhook handler needs.
type EventStore interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	RecordEvent(ctx context.Context, tx pgx.Tx, chargeID string, accountID uuid.UUID, amount decimal.Decimal) (bool, error)
}

type Handler struct {
	repo          EventStore
	insertFulfill InsertFulfillChargeTxFunc
	secret        []byte
	log           *slog.Logger
}

func NewHandler(repo EventStore, insertFulfill InsertFulfillChargeTxFunc, sharedSecret string, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{repo: repo, insertFulfill: insertFulfill, secret: []byte(sharedSecret), log: log}
}

// HandleChargeWebhook handles POST /webhooks/charges. The event is recorded
// and the fulfillment job enqueued in one transaction, so a charge is either
// fully accepted or not at all. Kit creation itself happens in the worker and
// is idempotent on the charge id.
func (h *Handler) HandleChargeWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}
	if !h.verifySignature(body, r.Header.Get(SignatureHeader)) {
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	var event ChargeEvent
	if err := json.Unmarshal(body, &event); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if event.Type != eventChargeConfirmed {
		writeStatus(w, "ignored")
		return
	}
	if event.ChargeID == "" {
		http.Error(w, "missing charge_id", http.StatusBadRequest)
		return
	}
	accountID, err := uuid.Parse(event.AccountID)
	if err != nil {
		http.Error(w, "invalid account_id", http.StatusBadRequest)
		return
	}
	amount, err := decimal.NewFromString(event.Amount)
	if err != nil || amount.LessThanOrEqual(decimal.Zero) {
		http.Error(w, "invalid amount", http.StatusBadRequest)
		return
	}

	tx, err := h.repo.Begin(r.Context())
	if err != nil {
		h.log.Error("begin webhook tx failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	defer tx.Rollback(r.Context())

	inserted, err := h.repo.RecordEvent(r.Context(), tx, event.ChargeID, accountID, amount)
	if err != nil {
		h.log.Error("record charge event failed", "error", err, "charge_id", event.ChargeID)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if !inserted {
		writeStatus(w, "duplicate")
		return
	}

	if err := h.insertFulfill(r.Context(), tx, FulfillChargeArgs{
		ChargeID:  event.ChargeID,
		AccountID: accountID,
		Amount:    amount,
	}); err != nil {
		h.log.Error("enqueue fulfillment failed", "error", err, "charge_id", event.ChargeID)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if err := tx.Commit(r.Context()); err != nil {
		h.log.Error("commit webhook tx failed", "error", err, "charge_id", event.ChargeID)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeStatus(w, "accepted")
}

func (h *Handler) verifySignature(body []byte, signature string) bool {
	if signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, h.secret)
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

func writeStatus(w http.ResponseWriter, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": status})
}
