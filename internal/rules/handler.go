package rules

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/smartcaller/qualification-engine/internal/tenancy"
	"github.com/smartcaller/qualification-engine/pkg/logging"
)

// Handler handles HTTP requests for the qualification rule set
type Handler struct {
	repo   Repository
	logger *logging.Logger
}

// NewHandler creates a new rules handler
func NewHandler(repo Repository, logger *logging.Logger) *Handler {
	return &Handler{
		repo:   repo,
		logger: logger,
	}
}

// AddCriterion handles POST /rules/criteria
func (h *Handler) AddCriterion(w http.ResponseWriter, r *http.Request) {
	var req AddCriterionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("failed to decode add criterion request", "error", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := req.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	orgID, ok := tenancy.OrgIDFromContext(r.Context())
	if !ok {
		http.Error(w, "missing org context", http.StatusBadRequest)
		return
	}

	criterion, err := h.repo.Add(r.Context(), orgID, req.Type)
	if err != nil {
		h.logger.Error("failed to add criterion", "error", err, "org_id", orgID)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	h.logger.Info("criterion added", "id", criterion.ID, "type", criterion.Type)
	h.writeJSON(w, http.StatusCreated, criterion)
}

// UpdateCriterion handles PUT /rules/criteria/{id}
func (h *Handler) UpdateCriterion(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		http.Error(w, "missing criterion id", http.StatusBadRequest)
		return
	}

	var req UpdateCriterionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("failed to decode update criterion request", "error", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	orgID, ok := tenancy.OrgIDFromContext(r.Context())
	if !ok {
		http.Error(w, "missing org context", http.StatusBadRequest)
		return
	}

	if err := h.repo.Update(r.Context(), orgID, id, req.Text); err != nil {
		if errors.Is(err, ErrCriterionNotFound) {
			// Editing a vanished criterion is not an error for the caller.
			w.WriteHeader(http.StatusNoContent)
			return
		}
		h.logger.Error("failed to update criterion", "error", err, "id", id)
		http.Error(w, "failed to update criterion", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RemoveCriterion handles DELETE /rules/criteria/{id}
func (h *Handler) RemoveCriterion(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		http.Error(w, "missing criterion id", http.StatusBadRequest)
		return
	}

	orgID, ok := tenancy.OrgIDFromContext(r.Context())
	if !ok {
		http.Error(w, "missing org context", http.StatusBadRequest)
		return
	}

	if err := h.repo.Remove(r.Context(), orgID, id); err != nil {
		if errors.Is(err, ErrCriterionNotFound) {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		h.logger.Error("failed to remove criterion", "error", err, "id", id)
		http.Error(w, "failed to remove criterion", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListCriteriaResponse is the response for listing criteria.
type ListCriteriaResponse struct {
	Criteria []Criterion `json:"criteria"`
	Count    int         `json:"count"`
}

// ListCriteria handles GET /rules/criteria
func (h *Handler) ListCriteria(w http.ResponseWriter, r *http.Request) {
	orgID, ok := tenancy.OrgIDFromContext(r.Context())
	if !ok {
		http.Error(w, "missing org context", http.StatusBadRequest)
		return
	}

	criteria, err := h.repo.List(r.Context(), orgID)
	if err != nil {
		h.logger.Error("failed to list criteria", "error", err, "org_id", orgID)
		http.Error(w, "failed to list criteria", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, ListCriteriaResponse{Criteria: criteria, Count: len(criteria)})
}

// CompilePolicy handles GET /rules/policy
func (h *Handler) CompilePolicy(w http.ResponseWriter, r *http.Request) {
	orgID, ok := tenancy.OrgIDFromContext(r.Context())
	if !ok {
		http.Error(w, "missing org context", http.StatusBadRequest)
		return
	}

	criteria, err := h.repo.List(r.Context(), orgID)
	if err != nil {
		h.logger.Error("failed to load criteria for policy", "error", err, "org_id", orgID)
		http.Error(w, "failed to compile policy", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, NewRuleSet(criteria).Compile())
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write JSON response", "error", err)
	}
}
