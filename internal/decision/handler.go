// Package decision serves engine queries over HTTP.
package decision

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/valinor-ai/authority/internal/auth"
	"github.com/valinor-ai/authority/internal/authority"
)

const maxBatchSize = 100

// Request is one query for the authenticated identity.
type Request struct {
	Action       string               `json:"action"`
	ResourceType string               `json:"resource_type"`
	Attributes   authority.Attributes `json:"attributes,omitempty"`
}

type batchRequest struct {
	Checks []Request `json:"checks"`
}

// Handler answers decision queries.
type Handler struct {
	engine *authority.Engine
}

// NewHandler creates a decision handler.
func NewHandler(engine *authority.Engine) *Handler {
	return &Handler{engine: engine}
}

// HandleCheck evaluates a single query.
// POST /api/v1/decisions
func (h *Handler) HandleCheck(w http.ResponseWriter, r *http.Request) {
	identity := auth.GetIdentity(r.Context())
	if identity == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
		return
	}

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	d, status, err := h.check(identity, req)
	if err != nil {
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// HandleBatch evaluates several queries for the same identity. Each query is
// independent; the first failing one fails the whole batch.
// POST /api/v1/decisions/batch
func (h *Handler) HandleBatch(w http.ResponseWriter, r *http.Request) {
	identity := auth.GetIdentity(r.Context())
	if identity == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
		return
	}

	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if len(req.Checks) == 0 || len(req.Checks) > maxBatchSize {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "checks must hold between 1 and 100 queries"})
		return
	}

	decisions := make([]authority.Decision, 0, len(req.Checks))
	for _, check := range req.Checks {
		d, status, err := h.check(identity, check)
		if err != nil {
			writeJSON(w, status, map[string]string{"error": err.Error()})
			return
		}
		decisions = append(decisions, d)
	}
	writeJSON(w, http.StatusOK, map[string]any{"decisions": decisions})
}

func (h *Handler) check(identity *auth.Identity, req Request) (authority.Decision, int, error) {
	if req.Action == "" || req.ResourceType == "" {
		return authority.Decision{}, http.StatusBadRequest, errors.New("action and resource_type are required")
	}

	d, err := h.engine.For(identity).Can(req.Action, authority.NewResource(req.ResourceType, req.Attributes))
	if err != nil {
		if errors.Is(err, authority.ErrUnknownResourceType) {
			return authority.Decision{}, http.StatusUnprocessableEntity, err
		}
		slog.Error("evaluating decision", "error", err, "action", req.Action)
		return authority.Decision{}, http.StatusInternalServerError, errors.New("evaluation failed")
	}
	return d, http.StatusOK, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
