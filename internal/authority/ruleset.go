package authority

import (
	"slices"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

type compiledRule struct {
	rule    Rule
	index   int
	actions map[string]struct{}
}

// RuleSet is an ordered collection of rules together with the alias table,
// role inheritance graph and registry of known resource types.
//
// Building is single-writer: every Add* call and Freeze must complete before
// the first query. Once frozen the set is read-only and safe for any number
// of concurrent readers.
type RuleSet struct {
	mu     sync.Mutex
	frozen atomic.Bool

	rules    []Rule
	aliases  map[string][]string
	inherits map[string][]string
	types    map[string]struct{}

	// Populated by Freeze.
	expanded    map[string][]string
	roleClosure map[string][]string
	compiled    []compiledRule
}

// NewRuleSet returns an empty, mutable rule set.
func NewRuleSet() *RuleSet {
	return &RuleSet{
		aliases:  make(map[string][]string),
		inherits: make(map[string][]string),
		types:    make(map[string]struct{}),
	}
}

// AddAlias defines name as expanding to the given actions. Redefining an
// alias extends its expansion. The call fails with a CyclicAliasError, and
// leaves the table untouched, when the new edges close a cycle.
func (rs *RuleSet) AddAlias(name string, expandsTo ...string) error {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.frozen.Load() {
		return &FrozenRuleSetError{Op: "AddAlias"}
	}
	if strings.TrimSpace(name) == "" {
		return &InvalidRuleError{Reason: "alias name is empty"}
	}
	if len(expandsTo) == 0 {
		return &InvalidRuleError{Reason: "alias " + name + " expands to nothing"}
	}
	for _, a := range expandsTo {
		if strings.TrimSpace(a) == "" {
			return &InvalidRuleError{Reason: "alias " + name + " expands to a blank action"}
		}
	}

	previous, existed := rs.aliases[name]
	rs.aliases[name] = union(previous, expandsTo)

	if path := findCycle(rs.aliases, name); path != nil {
		if existed {
			rs.aliases[name] = previous
		} else {
			delete(rs.aliases, name)
		}
		return &CyclicAliasError{Path: path}
	}
	return nil
}

// AddRoleInheritance makes role inherit every rule scoped to the listed
// roles.
func (rs *RuleSet) AddRoleInheritance(role string, inherits ...string) error {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.frozen.Load() {
		return &FrozenRuleSetError{Op: "AddRoleInheritance"}
	}
	if strings.TrimSpace(role) == "" {
		return &InvalidRuleError{Reason: "role name is empty"}
	}
	for _, parent := range inherits {
		if strings.TrimSpace(parent) == "" {
			return &InvalidRuleError{Reason: "role " + role + " inherits a blank role"}
		}
	}

	previous, existed := rs.inherits[role]
	rs.inherits[role] = union(previous, inherits)

	if path := findCycle(rs.inherits, role); path != nil {
		if existed {
			rs.inherits[role] = previous
		} else {
			delete(rs.inherits, role)
		}
		return &CyclicRoleError{Path: path}
	}
	return nil
}

// RegisterResourceType declares resource types known to strict mode. Types
// named by non-wildcard rules are registered automatically.
func (rs *RuleSet) RegisterResourceType(types ...string) error {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.frozen.Load() {
		return &FrozenRuleSetError{Op: "RegisterResourceType"}
	}
	for _, t := range types {
		if strings.TrimSpace(t) == "" || t == Wildcard {
			return &InvalidRuleError{Reason: "resource type must be a concrete name"}
		}
	}
	for _, t := range types {
		rs.types[t] = struct{}{}
	}
	return nil
}

// AddRule appends a rule. Malformed rules are rejected with an
// InvalidRuleError and never stored.
func (rs *RuleSet) AddRule(rule Rule) error {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.frozen.Load() {
		return &FrozenRuleSetError{Op: "AddRule"}
	}
	if err := rule.validate(); err != nil {
		return err
	}

	rule = rule.clone()
	rs.rules = append(rs.rules, rule)
	if rule.ResourceType != Wildcard {
		rs.types[rule.ResourceType] = struct{}{}
	}
	return nil
}

// Freeze makes the set read-only and precomputes every alias and role
// expansion. Calling Freeze more than once has no further effect.
func (rs *RuleSet) Freeze() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.frozen.Load() {
		return
	}

	rs.expanded = make(map[string][]string, len(rs.aliases))
	for name := range rs.aliases {
		rs.expanded[name] = expandAlias(rs.aliases, name)
	}

	rs.roleClosure = make(map[string][]string, len(rs.inherits))
	for role := range rs.inherits {
		rs.roleClosure[role] = closure(rs.inherits, role)
	}

	rs.compiled = make([]compiledRule, len(rs.rules))
	for i, r := range rs.rules {
		actions := make(map[string]struct{})
		for _, a := range r.Actions {
			for _, concrete := range rs.expandLocked(a) {
				actions[concrete] = struct{}{}
			}
		}
		rs.compiled[i] = compiledRule{rule: r, index: i, actions: actions}
	}

	rs.frozen.Store(true)
}

// Frozen reports whether Freeze has been called.
func (rs *RuleSet) Frozen() bool {
	return rs.frozen.Load()
}

// Expand returns the concrete actions an action stands for: the action
// itself when it is not an alias, otherwise the sorted union of its
// recursively expanded targets.
func (rs *RuleSet) Expand(action string) []string {
	if rs.frozen.Load() {
		return slices.Clone(rs.expandLocked(action))
	}
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.expandLocked(action)
}

func (rs *RuleSet) expandLocked(action string) []string {
	if rs.expanded != nil {
		if v, ok := rs.expanded[action]; ok {
			return v
		}
		return []string{action}
	}
	return expandAlias(rs.aliases, action)
}

// Rules returns a copy of the rules in insertion order.
func (rs *RuleSet) Rules() []Rule {
	if !rs.frozen.Load() {
		rs.mu.Lock()
		defer rs.mu.Unlock()
	}
	out := make([]Rule, len(rs.rules))
	for i, r := range rs.rules {
		out[i] = r.clone()
	}
	return out
}

// Len returns the number of rules.
func (rs *RuleSet) Len() int {
	if !rs.frozen.Load() {
		rs.mu.Lock()
		defer rs.mu.Unlock()
	}
	return len(rs.rules)
}

// KnownResourceType reports whether typ was registered explicitly or named
// by a rule.
func (rs *RuleSet) KnownResourceType(typ string) bool {
	if !rs.frozen.Load() {
		rs.mu.Lock()
		defer rs.mu.Unlock()
	}
	_, ok := rs.types[typ]
	return ok
}

// effectiveRoles expands the subject's roles through inheritance. Only
// called on a frozen set.
func (rs *RuleSet) effectiveRoles(roles []string) map[string]struct{} {
	out := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		if c, ok := rs.roleClosure[r]; ok {
			for _, inherited := range c {
				out[inherited] = struct{}{}
			}
			continue
		}
		out[r] = struct{}{}
	}
	return out
}

func expandAlias(aliases map[string][]string, action string) []string {
	if _, ok := aliases[action]; !ok {
		return []string{action}
	}
	seen := make(map[string]struct{})
	var out []string
	var walk func(string)
	walk = func(a string) {
		if _, ok := seen[a]; ok {
			return
		}
		seen[a] = struct{}{}
		targets, isAlias := aliases[a]
		if !isAlias {
			out = append(out, a)
			return
		}
		for _, t := range targets {
			walk(t)
		}
	}
	walk(action)
	sort.Strings(out)
	return out
}

// closure returns start plus every node reachable from it, sorted.
func closure(graph map[string][]string, start string) []string {
	seen := map[string]struct{}{start: {}}
	stack := []string{start}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, next := range graph[n] {
			if _, ok := seen[next]; ok {
				continue
			}
			seen[next] = struct{}{}
			stack = append(stack, next)
		}
	}
	out := make([]string, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// findCycle runs a depth-first traversal from start and returns the first
// cycle found as a path whose last element repeats an earlier one.
func findCycle(graph map[string][]string, start string) []string {
	visiting := make(map[string]bool)
	done := make(map[string]bool)
	var stack []string

	var visit func(string) []string
	visit = func(n string) []string {
		if visiting[n] {
			i := slices.Index(stack, n)
			path := append([]string(nil), stack[i:]...)
			return append(path, n)
		}
		if done[n] {
			return nil
		}
		visiting[n] = true
		stack = append(stack, n)
		for _, next := range graph[n] {
			if path := visit(next); path != nil {
				return path
			}
		}
		stack = stack[:len(stack)-1]
		visiting[n] = false
		done[n] = true
		return nil
	}
	return visit(start)
}

func union(a, b []string) []string {
	out := append([]string(nil), a...)
	for _, v := range b {
		if !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	return out
}
