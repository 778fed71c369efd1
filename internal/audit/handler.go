package audit

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/valinor-ai/authority/internal/platform/database"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// Handler serves audit query endpoints.
type Handler struct {
	db    database.Querier
	store *Store
}

// NewHandler creates an audit query handler.
func NewHandler(db database.Querier, store *Store) *Handler {
	return &Handler{db: db, store: store}
}

// HandleListEvents returns recorded decisions.
// GET /api/v1/audit/events?subject=&action=&resource_type=&allowed=&after=&before=&limit=
func (h *Handler) HandleListEvents(w http.ResponseWriter, r *http.Request) {
	params, err := parseListParams(r)
	if err != nil {
		writeAuditJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	if h.db == nil {
		writeAuditJSON(w, http.StatusOK, map[string]any{"events": []Record{}, "count": 0})
		return
	}

	records, err := h.store.List(r.Context(), h.db, params)
	if err != nil {
		slog.Error("listing audit events", "error", err)
		writeAuditJSON(w, http.StatusInternalServerError, map[string]string{"error": "query failed"})
		return
	}

	writeAuditJSON(w, http.StatusOK, map[string]any{"events": records, "count": len(records)})
}

func parseListParams(r *http.Request) (ListEventsParams, error) {
	q := r.URL.Query()
	p := ListEventsParams{Limit: defaultListLimit}

	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return p, errBadParam("limit")
		}
		p.Limit = min(n, maxListLimit)
	}

	for key, dst := range map[string]**string{
		"subject":       &p.SubjectID,
		"action":        &p.Action,
		"resource_type": &p.ResourceType,
		"source":        &p.Source,
	} {
		if v := q.Get(key); v != "" {
			*dst = &v
		}
	}

	if raw := q.Get("allowed"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return p, errBadParam("allowed")
		}
		p.Allowed = &b
	}

	for key, dst := range map[string]**time.Time{"after": &p.After, "before": &p.Before} {
		if raw := q.Get(key); raw != "" {
			t, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				return p, errBadParam(key)
			}
			*dst = &t
		}
	}

	return p, nil
}

type errBadParam string

func (e errBadParam) Error() string { return "invalid " + string(e) + " parameter" }

func writeAuditJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
