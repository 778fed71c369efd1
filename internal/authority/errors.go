package authority

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidRule         = errors.New("invalid rule")
	ErrCyclicAlias         = errors.New("cyclic alias")
	ErrCyclicRole          = errors.New("cyclic role inheritance")
	ErrFrozenRuleSet       = errors.New("rule set is frozen")
	ErrUnknownResourceType = errors.New("unknown resource type")
	ErrUnknownPredicate    = errors.New("unknown predicate")
	ErrNilSubject          = errors.New("nil subject")
	ErrNilResource         = errors.New("nil resource")
	ErrUnresolvable        = errors.New("resource cannot be resolved")
)

// InvalidRuleError reports a structurally malformed rule.
type InvalidRuleError struct {
	Rule   string
	Reason string
}

func (e *InvalidRuleError) Error() string {
	if e.Rule == "" {
		return fmt.Sprintf("invalid rule: %s", e.Reason)
	}
	return fmt.Sprintf("invalid rule %q: %s", e.Rule, e.Reason)
}

func (e *InvalidRuleError) Is(target error) bool { return target == ErrInvalidRule }

// CyclicAliasError reports the alias chain that loops back on itself.
type CyclicAliasError struct {
	Path []string
}

func (e *CyclicAliasError) Error() string {
	return fmt.Sprintf("cyclic alias: %s", strings.Join(e.Path, " -> "))
}

func (e *CyclicAliasError) Is(target error) bool { return target == ErrCyclicAlias }

// CyclicRoleError reports a role inheritance chain that loops back on itself.
type CyclicRoleError struct {
	Path []string
}

func (e *CyclicRoleError) Error() string {
	return fmt.Sprintf("cyclic role inheritance: %s", strings.Join(e.Path, " -> "))
}

func (e *CyclicRoleError) Is(target error) bool { return target == ErrCyclicRole }

// FrozenRuleSetError is returned by any mutation attempted after Freeze.
type FrozenRuleSetError struct {
	Op string
}

func (e *FrozenRuleSetError) Error() string {
	return fmt.Sprintf("%s: rule set is frozen", e.Op)
}

func (e *FrozenRuleSetError) Is(target error) bool { return target == ErrFrozenRuleSet }

// UnknownResourceTypeError is returned in strict mode when a query names a
// resource type the rule set never registered.
type UnknownResourceTypeError struct {
	Type string
}

func (e *UnknownResourceTypeError) Error() string {
	return fmt.Sprintf("unknown resource type %q", e.Type)
}

func (e *UnknownResourceTypeError) Is(target error) bool { return target == ErrUnknownResourceType }

// UnknownPredicateNameError is returned when a rule definition references a
// condition that was not registered with the loader.
type UnknownPredicateNameError struct {
	Name string
	Rule string
}

func (e *UnknownPredicateNameError) Error() string {
	if e.Rule == "" {
		return fmt.Sprintf("unknown predicate %q", e.Name)
	}
	return fmt.Sprintf("rule %q: unknown predicate %q", e.Rule, e.Name)
}

func (e *UnknownPredicateNameError) Is(target error) bool { return target == ErrUnknownPredicate }
