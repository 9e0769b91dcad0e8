package kits

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stablestation/backend/internal/middleware"
)

// Request/response structs use snake_case JSON to match the public API.

// CreateKitRequest deliberately has no charge_id field: charge-backed creation
// happens only through the webhook fulfillment worker, so a caller cannot
// pre-empt a pending charge by guessing its id.
type CreateKitRequest struct {
	Value string `json:"value,omitempty"`
}

type GiveKitRequest struct {
	RecipientID string `json:"recipient_id"`
}

type KitResponse struct {
	ID        string     `json:"id"`
	CreatorID *string    `json:"creator_id,omitempty"`
	ClaimerID *string    `json:"claimer_id,omitempty"`
	ChargeID  *string    `json:"charge_id,omitempty"`
	Value     string     `json:"value"`
	Balance   string     `json:"balance"`
	CreatedAt time.Time  `json:"created_at"`
	ClaimedAt *time.Time `json:"claimed_at,omitempty"`
}

type RequestOwnResponse struct {
	Kit        KitResponse `json:"kit"`
	AlreadyHad bool        `json:"already_had"`
	Message    string      `json:"message"`
}

type Handler struct {
	svc Service
	log *slog.Logger
}

func NewHandler(svc Service, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{svc: svc, log: log}
}

// Create handles POST /starter-kits (admin/test creation funded by the caller).
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	creatorID := middleware.AccountIDFromCtx(r.Context())
	if creatorID == uuid.Nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	var req CreateKitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	value := decimal.Zero
	if req.Value != "" {
		parsed, err := decimal.NewFromString(req.Value)
		if err != nil {
			http.Error(w, "invalid value", http.StatusBadRequest)
			return
		}
		value = parsed
	}
	kit, err := h.svc.Create(r.Context(), creatorID, value, nil)
	if err != nil {
		h.writeError(w, err, "create starter kit")
		return
	}
	writeJSON(w, http.StatusCreated, kitToResponse(kit))
}

// ListAvailable handles GET /starter-kits/available.
func (h *Handler) ListAvailable(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.ListAvailable(r.Context())
	if err != nil {
		h.writeError(w, err, "list available kits")
		return
	}
	writeJSON(w, http.StatusOK, kitsToResponse(list))
}

// ClaimAvailable handles POST /starter-kits/available: claim the oldest kit.
func (h *Handler) ClaimAvailable(w http.ResponseWriter, r *http.Request) {
	userID := middleware.AccountIDFromCtx(r.Context())
	if userID == uuid.Nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	kit, err := h.svc.ClaimAvailable(r.Context(), userID)
	if err != nil {
		h.writeError(w, err, "claim available kit")
		return
	}
	writeJSON(w, http.StatusOK, kitToResponse(kit))
}

// Claim handles POST /starter-kits/{id}/claim.
func (h *Handler) Claim(w http.ResponseWriter, r *http.Request) {
	userID := middleware.AccountIDFromCtx(r.Context())
	if userID == uuid.Nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	kitID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid kit id", http.StatusBadRequest)
		return
	}
	kit, err := h.svc.Claim(r.Context(), kitID, userID)
	if err != nil {
		h.writeError(w, err, "claim kit")
		return
	}
	writeJSON(w, http.StatusOK, kitToResponse(kit))
}

// Give handles POST /starter-kits/{id}/give.
func (h *Handler) Give(w http.ResponseWriter, r *http.Request) {
	fromID := middleware.AccountIDFromCtx(r.Context())
	if fromID == uuid.Nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	kitID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid kit id", http.StatusBadRequest)
		return
	}
	var req GiveKitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	toID, err := uuid.Parse(req.RecipientID)
	if err != nil {
		http.Error(w, "invalid recipient id", http.StatusBadRequest)
		return
	}
	kit, err := h.svc.Give(r.Context(), kitID, fromID, toID)
	if err != nil {
		h.writeError(w, err, "give kit")
		return
	}
	writeJSON(w, http.StatusOK, kitToResponse(kit))
}

// RequestOwn handles POST /starter-kits/request: self-service create-or-fetch.
func (h *Handler) RequestOwn(w http.ResponseWriter, r *http.Request) {
	userID := middleware.AccountIDFromCtx(r.Context())
	if userID == uuid.Nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	kit, alreadyHad, err := h.svc.RequestOwn(r.Context(), userID)
	if err != nil {
		h.writeError(w, err, "request own kit")
		return
	}
	resp := RequestOwnResponse{Kit: kitToResponse(kit), AlreadyHad: alreadyHad}
	status := http.StatusCreated
	if alreadyHad {
		resp.Message = "you already have a starter kit"
		status = http.StatusOK
	} else {
		resp.Message = "starter kit created"
	}
	writeJSON(w, status, resp)
}

// ListCreated handles GET /starter-kits/created.
func (h *Handler) ListCreated(w http.ResponseWriter, r *http.Request) {
	userID := middleware.AccountIDFromCtx(r.Context())
	if userID == uuid.Nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	list, err := h.svc.ListCreatedBy(r.Context(), userID)
	if err != nil {
		h.writeError(w, err, "list created kits")
		return
	}
	writeJSON(w, http.StatusOK, kitsToResponse(list))
}

// ListClaimed handles GET /starter-kits/claimed.
func (h *Handler) ListClaimed(w http.ResponseWriter, r *http.Request) {
	userID := middleware.AccountIDFromCtx(r.Context())
	if userID == uuid.Nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	list, err := h.svc.ListClaimedBy(r.Context(), userID)
	if err != nil {
		h.writeError(w, err, "list claimed kits")
		return
	}
	writeJSON(w, http.StatusOK, kitsToResponse(list))
}

func (h *Handler) writeError(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, ErrValidation):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrNoneAvailable), errors.Is(err, ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ErrAlreadyClaimed):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		h.log.Error(op+" failed", "error", err)
		http.Error(w, op+" failed", http.StatusInternalServerError)
	}
}

func kitToResponse(k *StarterKit) KitResponse {
	out := KitResponse{
		ID:        k.ID.String(),
		ChargeID:  k.ChargeID,
		Value:     k.Value.String(),
		Balance:   k.Balance.String(),
		CreatedAt: k.CreatedAt,
		ClaimedAt: k.ClaimedAt,
	}
	if k.CreatorID != nil {
		s := k.CreatorID.String()
		out.CreatorID = &s
	}
	if k.ClaimerID != nil {
		s := k.ClaimerID.String()
		out.ClaimerID = &s
	}
	return out
}

func kitsToResponse(list []*StarterKit) []KitResponse {
	resp := make([]KitResponse, 0, len(list))
	for _, k := range list {
		resp = append(resp, kitToResponse(k))
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
