package ruledef_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valinor-ai/authority/internal/authority"
	"github.com/valinor-ai/authority/internal/platform/database/dbtest"
	"github.com/valinor-ai/authority/internal/ruledef"
)

func TestShippedRules(t *testing.T) {
	doc, err := ruledef.Load(filepath.Join(dbtest.ProjectRoot(t), "rules.yaml"))
	require.NoError(t, err)

	engine, err := authority.Initialize(ruledef.Initializer(doc, ruledef.DefaultPredicates()), authority.WithStrictMode())
	require.NoError(t, err)

	member := authority.NewSubject([]string{"member"}, authority.Attributes{"id": "u1", "department": "finance"})
	admin := authority.NewSubject([]string{"admin"}, authority.Attributes{"id": "u2"})

	tests := []struct {
		name     string
		subject  authority.Subject
		action   string
		resource authority.Resource
		allowed  bool
	}{
		{"member reads", member, "read", authority.NewResource("document", nil), true},
		{"member cannot delete", member, "delete", authority.NewResource("document", nil), false},
		{"owner updates", member, "update", authority.NewResource("document", authority.Attributes{"owner_id": "u1"}), true},
		{"lock beats ownership", member, "update", authority.NewResource("document", authority.Attributes{"owner_id": "u1", "locked": true}), false},
		{"admin inherits editor", admin, "delete", authority.NewResource("document", nil), true},
		{"admin inherits member", admin, "read", authority.NewResource("document", nil), true},
		{"department invoice", member, "read", authority.NewResource("invoice", authority.Attributes{"department": "finance"}), true},
		{"other department invoice", member, "read", authority.NewResource("invoice", authority.Attributes{"department": "sales"}), false},
		{"admin reads audit", admin, "read", authority.NewResource("audit", nil), true},
		{"member cannot read audit", member, "read", authority.NewResource("audit", nil), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := engine.Can(tt.subject, tt.action, tt.resource)
			require.NoError(t, err)
			assert.Equal(t, tt.allowed, d.Allowed, d.Reason)
		})
	}
}
