package conversation

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/smartcaller/qualification-engine/internal/scheduling"
	"github.com/smartcaller/qualification-engine/pkg/logging"
)

// Handler exposes the conversation flow over HTTP. Turns go through the
// dispatcher so the queue ordering guarantees hold; read-only operations hit
// the manager directly.
type Handler struct {
	dispatcher *Dispatcher
	manager    *Manager
	logger     *logging.Logger
}

// NewHandler creates a conversation handler.
func NewHandler(dispatcher *Dispatcher, manager *Manager, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		dispatcher: dispatcher,
		manager:    manager,
		logger:     logger,
	}
}

// StartSessionRequest is the body for POST /conversations.
type StartSessionRequest struct {
	OrgID string `json:"org_id"`
}

// StartSession handles POST /conversations
func (h *Handler) StartSession(w http.ResponseWriter, r *http.Request) {
	var req StartSessionRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.logger.Error("failed to decode start session request", "error", err)
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
	}

	res, err := h.dispatcher.StartSession(r.Context(), req.OrgID)
	if err != nil {
		h.logger.Error("failed to start session", "error", err)
		h.writeError(w, err)
		return
	}

	h.logger.Info("session started", "session_id", res.SessionID, "org_id", req.OrgID)
	h.writeJSON(w, http.StatusCreated, res)
}

// MessageRequest is the body for POST /conversations/{id}/messages.
type MessageRequest struct {
	Text string `json:"text"`
}

// HandleMessage handles POST /conversations/{id}/messages
func (h *Handler) HandleMessage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req MessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("failed to decode message request", "error", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Text == "" {
		http.Error(w, "missing message text", http.StatusBadRequest)
		return
	}

	res, err := h.dispatcher.HandleTurn(r.Context(), id, req.Text)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

// ChooseBooking handles POST /conversations/{id}/followup/book
func (h *Handler) ChooseBooking(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	res, err := h.dispatcher.HandleFollowup(r.Context(), id, FollowupBook, "")
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

// SubmitEmailRequest is the body for POST /conversations/{id}/followup/email.
type SubmitEmailRequest struct {
	Email string `json:"email"`
}

// SubmitEmail handles POST /conversations/{id}/followup/email
func (h *Handler) SubmitEmail(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req SubmitEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("failed to decode email request", "error", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	res, err := h.dispatcher.HandleFollowup(r.Context(), id, FollowupEmail, req.Email)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

// BackToBooking handles POST /conversations/{id}/followup/back
func (h *Handler) BackToBooking(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	res, err := h.dispatcher.HandleFollowup(r.Context(), id, FollowupBack, "")
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

// SlotDays handles GET /conversations/{id}/slots/days
func (h *Handler) SlotDays(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	days, err := h.manager.SlotDays(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"days": days})
}

// SelectDayRequest is the body for POST /conversations/{id}/slots/day.
type SelectDayRequest struct {
	ISO string `json:"iso"`
}

// SelectDay handles POST /conversations/{id}/slots/day
func (h *Handler) SelectDay(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req SelectDayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	times, err := h.manager.SelectDay(r.Context(), id, req.ISO)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"times": times})
}

// SelectTimeRequest is the body for POST /conversations/{id}/slots/time.
type SelectTimeRequest struct {
	Time string `json:"time"`
}

// SelectTime handles POST /conversations/{id}/slots/time
func (h *Handler) SelectTime(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req SelectTimeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.manager.SelectTime(r.Context(), id, req.Time); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ConfirmSlot handles POST /conversations/{id}/slots/confirm
func (h *Handler) ConfirmSlot(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	res, err := h.manager.ConfirmSlot(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

// Outcome handles GET /conversations/{id}/outcome
func (h *Handler) Outcome(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	outcome, err := h.manager.Outcome(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, outcome)
}

// Transcript handles GET /conversations/{id}/transcript
func (h *Handler) Transcript(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	transcript, err := h.manager.Transcript(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"transcript": transcript})
}

// writeError maps domain errors onto HTTP statuses.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrSessionNotFound):
		http.Error(w, "session not found", http.StatusNotFound)
	case errors.Is(err, ErrNotStarted), errors.Is(err, ErrInvalidAction):
		http.Error(w, "action not allowed in current state", http.StatusConflict)
	case errors.Is(err, ErrConversationEnded):
		http.Error(w, "conversation has ended", http.StatusConflict)
	case errors.Is(err, ErrMalformedEmail):
		http.Error(w, "invalid email address", http.StatusUnprocessableEntity)
	case errors.Is(err, scheduling.ErrIncompleteSelection):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		h.logger.Error("conversation request failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write JSON response", "error", err)
	}
}
