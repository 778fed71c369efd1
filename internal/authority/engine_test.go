package authority_test

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valinor-ai/authority/internal/authority"
)

var user = authority.NewSubject([]string{"member"}, authority.Attributes{"id": "user-1"})

func doc(attrs authority.Attributes) authority.Resource {
	return authority.NewResource("document", attrs)
}

func mustAdd(t *testing.T, rs *authority.RuleSet, rules ...authority.Rule) {
	t.Helper()
	for _, r := range rules {
		require.NoError(t, rs.AddRule(r))
	}
}

func TestCan_EmptyRuleSetDeniesEverything(t *testing.T) {
	engine := authority.NewEngine(authority.NewRuleSet())

	for _, action := range []string{"read", "delete", "manage", ""} {
		for _, res := range []authority.Resource{doc(nil), authority.NewResource("invoice", nil)} {
			d, err := engine.Can(user, action, res)
			require.NoError(t, err)
			assert.False(t, d.Allowed)
			assert.Nil(t, d.Rule)
			assert.Equal(t, -1, d.RuleIndex)
			assert.Equal(t, authority.ReasonNoMatch, d.Reason)
		}
	}
}

func TestCan_LockedDocumentScenario(t *testing.T) {
	rs := authority.NewRuleSet()
	mustAdd(t, rs,
		authority.Rule{Name: "rule1", Privilege: authority.Allow, Actions: []string{"read"}, ResourceType: "document"},
		authority.Rule{
			Name:         "rule2",
			Privilege:    authority.Deny,
			Actions:      []string{"read"},
			ResourceType: "document",
			Condition:    authority.ResourceAttributeEquals("locked", true),
		},
	)
	engine := authority.NewEngine(rs)

	d, err := engine.Can(user, "read", doc(authority.Attributes{"locked": true}))
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	require.NotNil(t, d.Rule)
	assert.Equal(t, "rule2", d.Rule.Name)
	assert.Equal(t, 1, d.RuleIndex)

	d, err = engine.Can(user, "read", doc(authority.Attributes{"locked": false}))
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	require.NotNil(t, d.Rule)
	assert.Equal(t, "rule1", d.Rule.Name)
	assert.Equal(t, 0, d.RuleIndex)
}

func TestCan_ManageAliasScenario(t *testing.T) {
	rs := authority.NewRuleSet()
	require.NoError(t, rs.AddAlias("manage", "create", "read", "update", "delete"))
	mustAdd(t, rs, authority.Rule{Name: "admin", Privilege: authority.Allow, Actions: []string{"manage"}, ResourceType: authority.Wildcard})
	engine := authority.NewEngine(rs)

	for _, typ := range []string{"document", "invoice", "project"} {
		d, err := engine.Can(user, "delete", authority.NewResource(typ, nil))
		require.NoError(t, err)
		assert.True(t, d.Allowed, typ)
		require.NotNil(t, d.Rule)
		assert.Equal(t, "admin", d.Rule.Name)
	}

	d, err := engine.Can(user, "publish", doc(nil))
	require.NoError(t, err)
	assert.False(t, d.Allowed)
}

func TestCan_QueryAliasIntersectsRuleActions(t *testing.T) {
	rs := authority.NewRuleSet()
	require.NoError(t, rs.AddAlias("manage", "create", "read", "update", "delete"))
	mustAdd(t, rs, authority.Rule{Privilege: authority.Allow, Actions: []string{"read"}, ResourceType: "document"})
	engine := authority.NewEngine(rs)

	d, err := engine.Can(user, "manage", doc(nil))
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, "manage", d.Action)
}

func TestCan_DenyOverridesAllow(t *testing.T) {
	rs := authority.NewRuleSet()
	mustAdd(t, rs,
		authority.Rule{Name: "allow-a", Privilege: authority.Allow, Actions: []string{"read"}, ResourceType: "document"},
		authority.Rule{Name: "allow-b", Privilege: authority.Allow, Actions: []string{"read"}, ResourceType: authority.Wildcard},
		authority.Rule{Name: "deny-other", Privilege: authority.Deny, Actions: []string{"read"}, ResourceType: "invoice"},
		authority.Rule{Name: "deny-first", Privilege: authority.Deny, Actions: []string{"read", "update"}, ResourceType: authority.Wildcard},
		authority.Rule{Name: "allow-c", Privilege: authority.Allow, Actions: []string{"read"}, ResourceType: "document"},
		authority.Rule{Name: "deny-second", Privilege: authority.Deny, Actions: []string{"read"}, ResourceType: "document"},
	)
	engine := authority.NewEngine(rs)

	d, err := engine.Can(user, "read", doc(nil))
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	require.NotNil(t, d.Rule)
	assert.Equal(t, "deny-first", d.Rule.Name)
	assert.Equal(t, 3, d.RuleIndex)
}

func TestCan_DenyOverridesAllowForAllOrders(t *testing.T) {
	allow := authority.Rule{Name: "allow", Privilege: authority.Allow, Actions: []string{"read"}, ResourceType: "document"}
	deny := authority.Rule{Name: "deny", Privilege: authority.Deny, Actions: []string{"read"}, ResourceType: "document"}

	orders := [][]authority.Rule{
		{allow, deny},
		{deny, allow},
		{allow, allow, deny, allow},
		{deny, deny, allow},
	}
	for i, rules := range orders {
		t.Run(fmt.Sprintf("order-%d", i), func(t *testing.T) {
			rs := authority.NewRuleSet()
			mustAdd(t, rs, rules...)
			d, err := authority.NewEngine(rs).Can(user, "read", doc(nil))
			require.NoError(t, err)
			assert.False(t, d.Allowed)
			assert.Equal(t, "deny", d.Rule.Name)

			for j, r := range rules {
				if r.Privilege == authority.Deny {
					assert.Equal(t, j, d.RuleIndex)
					break
				}
			}
		})
	}
}

func TestCan_FalseConditionDropsRule(t *testing.T) {
	rs := authority.NewRuleSet()
	mustAdd(t, rs,
		authority.Rule{
			Name:         "owner",
			Privilege:    authority.Allow,
			Actions:      []string{"update"},
			ResourceType: "document",
			Condition:    authority.SubjectOwnsResource("id", "owner_id"),
		},
	)
	engine := authority.NewEngine(rs)

	d, err := engine.Can(user, "update", doc(authority.Attributes{"owner_id": "user-1"}))
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	d, err = engine.Can(user, "update", doc(authority.Attributes{"owner_id": "user-2"}))
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, authority.ReasonNoMatch, d.Reason)
}

func TestCan_StrictModeUnknownType(t *testing.T) {
	rs := authority.NewRuleSet()
	mustAdd(t, rs, authority.Rule{Privilege: authority.Allow, Actions: []string{"read"}, ResourceType: "document"})
	engine := authority.NewEngine(rs, authority.WithStrictMode())

	_, err := engine.Can(user, "read", authority.NewResource("invoice", nil))
	require.ErrorIs(t, err, authority.ErrUnknownResourceType)

	var unknown *authority.UnknownResourceTypeError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "invoice", unknown.Type)

	d, err := engine.Can(user, "read", doc(nil))
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestCan_StrictModeRegisteredTypeWithoutRules(t *testing.T) {
	rs := authority.NewRuleSet()
	require.NoError(t, rs.RegisterResourceType("invoice"))
	engine := authority.NewEngine(rs, authority.WithStrictMode())

	d, err := engine.Can(user, "read", authority.NewResource("invoice", nil))
	require.NoError(t, err)
	assert.False(t, d.Allowed)
}

func TestCan_PermissiveModeUnknownType(t *testing.T) {
	rs := authority.NewRuleSet()
	mustAdd(t, rs, authority.Rule{Privilege: authority.Allow, Actions: []string{"read"}, ResourceType: "document"})
	engine := authority.NewEngine(rs)

	d, err := engine.Can(user, "read", authority.NewResource("invoice", nil))
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Nil(t, d.Rule)
}

func TestCan_RoleScopedRulesWithInheritance(t *testing.T) {
	rs := authority.NewRuleSet()
	require.NoError(t, rs.AddRoleInheritance("admin", "editor"))
	require.NoError(t, rs.AddRoleInheritance("editor", "viewer"))
	mustAdd(t, rs,
		authority.Rule{Name: "view", Privilege: authority.Allow, Actions: []string{"read"}, ResourceType: "document", Roles: []string{"viewer"}},
		authority.Rule{Name: "edit", Privilege: authority.Allow, Actions: []string{"update"}, ResourceType: "document", Roles: []string{"editor"}},
		authority.Rule{Name: "purge", Privilege: authority.Allow, Actions: []string{"delete"}, ResourceType: "document", Roles: []string{"admin"}},
	)
	engine := authority.NewEngine(rs)

	admin := authority.NewSubject([]string{"admin"}, nil)
	editor := authority.NewSubject([]string{"editor"}, nil)
	outsider := authority.NewSubject(nil, nil)

	tests := []struct {
		subject authority.Subject
		action  string
		want    bool
	}{
		{admin, "read", true},
		{admin, "update", true},
		{admin, "delete", true},
		{editor, "read", true},
		{editor, "update", true},
		{editor, "delete", false},
		{outsider, "read", false},
	}
	for _, tt := range tests {
		d, err := engine.Can(tt.subject, tt.action, doc(nil))
		require.NoError(t, err)
		assert.Equal(t, tt.want, d.Allowed, "%v %s", tt.subject.Roles(), tt.action)
	}
}

func TestCan_ReasonAlwaysPopulated(t *testing.T) {
	rs := authority.NewRuleSet()
	mustAdd(t, rs,
		authority.Rule{Privilege: authority.Allow, Actions: []string{"read"}, ResourceType: "document"},
		authority.Rule{Name: "no-delete", Privilege: authority.Deny, Actions: []string{"delete"}, ResourceType: "document"},
		authority.Rule{Description: "archives are read-only", Privilege: authority.Deny, Actions: []string{"update"}, ResourceType: "document"},
	)
	engine := authority.NewEngine(rs)

	d, err := engine.Can(user, "read", doc(nil))
	require.NoError(t, err)
	assert.Equal(t, "allow rule #0 matched read on document", d.Reason)

	d, err = engine.Can(user, "delete", doc(nil))
	require.NoError(t, err)
	assert.Equal(t, `deny rule "no-delete" matched delete on document`, d.Reason)

	d, err = engine.Can(user, "update", doc(nil))
	require.NoError(t, err)
	assert.Equal(t, "archives are read-only", d.Reason)
}

func TestCan_NilArguments(t *testing.T) {
	engine := authority.NewEngine(authority.NewRuleSet())

	_, err := engine.Can(nil, "read", doc(nil))
	assert.ErrorIs(t, err, authority.ErrNilSubject)

	_, err = engine.Can(user, "read", nil)
	assert.ErrorIs(t, err, authority.ErrNilResource)
}

func TestCannot(t *testing.T) {
	rs := authority.NewRuleSet()
	mustAdd(t, rs, authority.Rule{Privilege: authority.Allow, Actions: []string{"read"}, ResourceType: "document"})
	engine := authority.NewEngine(rs)

	denied, err := engine.Cannot(user, "read", doc(nil))
	require.NoError(t, err)
	assert.False(t, denied)

	denied, err = engine.Cannot(user, "delete", doc(nil))
	require.NoError(t, err)
	assert.True(t, denied)
}

type invoice struct {
	ID     string
	Locked bool
}

func TestAuthorize_Resolver(t *testing.T) {
	rs := authority.NewRuleSet()
	mustAdd(t, rs,
		authority.Rule{Privilege: authority.Allow, Actions: []string{"read"}, ResourceType: "invoice"},
		authority.Rule{Privilege: authority.Deny, Actions: []string{"read"}, ResourceType: "invoice", Condition: authority.ResourceAttributeEquals("locked", true)},
	)
	resolver := authority.ResolverFunc(func(obj any) (authority.Resource, error) {
		inv, ok := obj.(*invoice)
		if !ok {
			return nil, fmt.Errorf("unsupported %T", obj)
		}
		return authority.NewResource("invoice", authority.Attributes{"id": inv.ID, "locked": inv.Locked}), nil
	})
	engine := authority.NewEngine(rs, authority.WithResolver(resolver))

	d, err := engine.Authorize(user, "read", &invoice{ID: "inv-1"})
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	d, err = engine.Authorize(user, "read", &invoice{ID: "inv-2", Locked: true})
	require.NoError(t, err)
	assert.False(t, d.Allowed)

	_, err = engine.Authorize(user, "read", "not an invoice")
	assert.Error(t, err)

	d, err = engine.Authorize(user, "read", authority.NewResource("invoice", nil))
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestAuthorize_NoResolver(t *testing.T) {
	engine := authority.NewEngine(authority.NewRuleSet())

	_, err := engine.Authorize(user, "read", &invoice{})
	assert.ErrorIs(t, err, authority.ErrUnresolvable)

	_, err = engine.Authorize(user, "read", nil)
	assert.ErrorIs(t, err, authority.ErrNilResource)
}

func TestCan_ListenerReceivesDecision(t *testing.T) {
	rs := authority.NewRuleSet()
	mustAdd(t, rs, authority.Rule{Name: "readers", Privilege: authority.Allow, Actions: []string{"read"}, ResourceType: "document"})

	var events []authority.Event
	engine := authority.NewEngine(rs, authority.WithListener(func(e authority.Event) {
		events = append(events, e)
	}))

	_, err := engine.Can(user, "read", doc(nil))
	require.NoError(t, err)

	require.Len(t, events, 1)
	evt := events[0]
	assert.Equal(t, authority.EventDecision, evt.Name)
	allowed, ok := evt.Get(authority.PayloadAllowed)
	require.True(t, ok)
	assert.Equal(t, true, allowed)
	assert.Equal(t, "readers", evt.String(authority.PayloadRule))
	assert.Equal(t, "document", evt.String(authority.PayloadResourceType))
	assert.Equal(t, "0", evt.String(authority.PayloadRuleIndex))
	assert.Equal(t, "", evt.String("missing"))
}

func TestCan_LogsAtDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	engine := authority.NewEngine(authority.NewRuleSet(), authority.WithLogger(logger))

	_, err := engine.Can(user, "read", doc(nil))
	require.NoError(t, err)

	assert.Contains(t, buf.String(), "authorization decision")
	assert.Contains(t, buf.String(), `"allowed":false`)
}

func TestCan_ConcurrentQueries(t *testing.T) {
	rs := authority.NewRuleSet()
	require.NoError(t, rs.AddAlias("manage", "create", "read", "update", "delete"))
	mustAdd(t, rs,
		authority.Rule{Privilege: authority.Allow, Actions: []string{"manage"}, ResourceType: "document"},
		authority.Rule{Privilege: authority.Deny, Actions: []string{"delete"}, ResourceType: "document", Condition: authority.ResourceAttributeEquals("locked", true)},
	)
	engine := authority.NewEngine(rs)

	var wg sync.WaitGroup
	errs := make(chan error, 64)
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			locked := i%2 == 0
			d, err := engine.Can(user, "delete", doc(authority.Attributes{"locked": locked}))
			if err != nil {
				errs <- err
				return
			}
			if d.Allowed == locked {
				errs <- fmt.Errorf("locked=%v allowed=%v", locked, d.Allowed)
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
}

func TestDecision_RuleIsACopy(t *testing.T) {
	rs := authority.NewRuleSet()
	mustAdd(t, rs, authority.Rule{Name: "readers", Privilege: authority.Allow, Actions: []string{"read"}, ResourceType: "document"})
	engine := authority.NewEngine(rs)

	d, err := engine.Can(user, "read", doc(nil))
	require.NoError(t, err)
	d.Rule.Actions[0] = "delete"

	d, err = engine.Can(user, "read", doc(nil))
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, []string{"read"}, d.Rule.Actions)
}
