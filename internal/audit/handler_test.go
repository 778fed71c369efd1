package audit

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleListEvents_NilPool(t *testing.T) {
	h := NewHandler(nil, NewStore())
	req := httptest.NewRequest("GET", "/api/v1/audit/events", nil)
	w := httptest.NewRecorder()

	h.HandleListEvents(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":0`)
	assert.Contains(t, w.Body.String(), `"events":[]`)
}

func TestHandleListEvents_Filters(t *testing.T) {
	tests := []struct {
		name  string
		query string
		code  int
	}{
		{"limit", "?limit=10", http.StatusOK},
		{"subject", "?subject=user-1", http.StatusOK},
		{"action", "?action=read", http.StatusOK},
		{"resource type", "?resource_type=document", http.StatusOK},
		{"allowed", "?allowed=false", http.StatusOK},
		{"before", "?before=2026-02-26T00:00:00Z", http.StatusOK},
		{"composed", "?subject=user-1&action=read&after=2026-02-25T00:00:00Z&limit=5", http.StatusOK},
		{"bad limit", "?limit=zero", http.StatusBadRequest},
		{"negative limit", "?limit=-1", http.StatusBadRequest},
		{"bad allowed", "?allowed=maybe", http.StatusBadRequest},
		{"bad after", "?after=yesterday", http.StatusBadRequest},
	}

	h := NewHandler(nil, NewStore())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/v1/audit/events"+tt.query, nil)
			w := httptest.NewRecorder()

			h.HandleListEvents(w, req)

			assert.Equal(t, tt.code, w.Code)
		})
	}
}

func TestParseListParams(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/v1/audit/events?limit=1000&subject=user-1&allowed=true&source=api", nil)
	p, err := parseListParams(req)
	require.NoError(t, err)

	assert.Equal(t, maxListLimit, p.Limit)
	require.NotNil(t, p.SubjectID)
	assert.Equal(t, "user-1", *p.SubjectID)
	require.NotNil(t, p.Allowed)
	assert.True(t, *p.Allowed)
	require.NotNil(t, p.Source)
	assert.Equal(t, SourceAPI, *p.Source)
	assert.Nil(t, p.Action)
	assert.Nil(t, p.After)

	req = httptest.NewRequest("GET", "/api/v1/audit/events", nil)
	p, err = parseListParams(req)
	require.NoError(t, err)
	assert.Equal(t, defaultListLimit, p.Limit)
}
