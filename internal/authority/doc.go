// Package authority implements a rule-based authorization engine.
//
// A RuleSet holds ordered allow and deny rules, an action alias table
// ("manage" expands to create, read, update and delete) and a role
// inheritance graph. It is built once at startup, frozen, and then queried
// through an Engine:
//
//	rs := authority.NewRuleSet()
//	_ = rs.AddAlias("manage", "create", "read", "update", "delete")
//	_ = rs.AddRule(authority.Rule{Privilege: authority.Allow, Actions: []string{"manage"}, ResourceType: "*"})
//	engine := authority.NewEngine(rs)
//	d, err := engine.Can(user, "delete", doc)
//
// Any matching deny rule beats every matching allow rule; the first deny in
// insertion order is reported. With no matching rule the answer is deny.
// Every Decision carries the rule that drove it and a reason for audit.
//
// The engine performs no I/O. Subjects and resources are supplied by the
// host through the Subject and Resource interfaces and are never cached.
package authority
