package actions

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/stablestation/backend/internal/middleware"
)

type CompleteActionRequest struct {
	Proof string `json:"proof"`
}

type ActionResponse struct {
	ID          string     `json:"id"`
	ActionID    string     `json:"action_id"`
	Status      string     `json:"status"`
	Proof       *string    `json:"proof,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
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

// Start handles POST /actions/{actionID}/start.
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	userID := middleware.AccountIDFromCtx(r.Context())
	if userID == uuid.Nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	a, err := h.svc.Start(r.Context(), userID, r.PathValue("actionID"))
	if err != nil {
		h.writeError(w, err, "start action")
		return
	}
	writeJSON(w, http.StatusCreated, actionToResponse(a))
}

// Complete handles POST /actions/{actionID}/complete. The proof is an opaque
// user-submitted string (e.g. a transaction hash); it is stored, not verified.
func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	userID := middleware.AccountIDFromCtx(r.Context())
	if userID == uuid.Nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	var req CompleteActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	a, err := h.svc.Complete(r.Context(), userID, r.PathValue("actionID"), req.Proof)
	if err != nil {
		h.writeError(w, err, "complete action")
		return
	}
	writeJSON(w, http.StatusOK, actionToResponse(a))
}

// List handles GET /actions.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.AccountIDFromCtx(r.Context())
	if userID == uuid.Nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	list, err := h.svc.ListByUser(r.Context(), userID)
	if err != nil {
		h.writeError(w, err, "list actions")
		return
	}
	resp := make([]ActionResponse, 0, len(list))
	for _, a := range list {
		resp = append(resp, actionToResponse(a))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) writeError(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, ErrValidation):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrAlreadyStarted):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		h.log.Error(op+" failed", "error", err)
		http.Error(w, op+" failed", http.StatusInternalServerError)
	}
}

func actionToResponse(a *UserAction) ActionResponse {
	return ActionResponse{
		ID:          a.ID.String(),
		ActionID:    a.ActionID,
		Status:      a.Status,
		Proof:       a.Proof,
		StartedAt:   a.StartedAt,
		CompletedAt: a.CompletedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
