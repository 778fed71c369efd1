package authority

import (
	"fmt"
	"strings"
)

// Wildcard is the resource type that matches every resource.
const Wildcard = "*"

// Privilege is the effect a rule has when it matches.
type Privilege int

const (
	Allow Privilege = iota + 1
	Deny
)

// String returns "allow" or "deny".
func (p Privilege) String() string {
	switch p {
	case Allow:
		return "allow"
	case Deny:
		return "deny"
	default:
		return fmt.Sprintf("privilege(%d)", int(p))
	}
}

// ParsePrivilege parses the definition-format spelling of a privilege.
func ParsePrivilege(s string) (Privilege, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "allow":
		return Allow, nil
	case "deny":
		return Deny, nil
	default:
		return 0, fmt.Errorf("unknown privilege %q", s)
	}
}

// Rule is a single declarative statement. Once added to a RuleSet the set
// holds its own copy and the rule never changes.
type Rule struct {
	// Name identifies the rule in decisions and audit records. Optional.
	Name string
	// Description is used verbatim as the decision reason when set.
	Description string
	Privilege   Privilege
	// Actions may name concrete actions or aliases.
	Actions []string
	// ResourceType is an exact type name or Wildcard.
	ResourceType string
	// Roles, when non-empty, restricts the rule to subjects holding one of
	// these roles directly or through inheritance.
	Roles []string
	// Condition is evaluated against the subject and resource; nil means
	// the rule always applies.
	Condition Predicate
	// ConditionName records the registered predicate name when the rule
	// was loaded from a definition.
	ConditionName string
}

func (r Rule) label() string {
	if r.Name != "" {
		return r.Name
	}
	return fmt.Sprintf("%s %s on %s", r.Privilege, strings.Join(r.Actions, ","), r.ResourceType)
}

func (r Rule) validate() error {
	if r.Privilege != Allow && r.Privilege != Deny {
		return &InvalidRuleError{Rule: r.Name, Reason: "privilege must be allow or deny"}
	}
	if len(r.Actions) == 0 {
		return &InvalidRuleError{Rule: r.Name, Reason: "empty action set"}
	}
	for _, a := range r.Actions {
		if strings.TrimSpace(a) == "" {
			return &InvalidRuleError{Rule: r.Name, Reason: "blank action"}
		}
	}
	if strings.TrimSpace(r.ResourceType) == "" {
		return &InvalidRuleError{Rule: r.Name, Reason: "empty resource type"}
	}
	for _, role := range r.Roles {
		if strings.TrimSpace(role) == "" {
			return &InvalidRuleError{Rule: r.Name, Reason: "blank role"}
		}
	}
	return nil
}

func (r Rule) clone() Rule {
	r.Actions = append([]string(nil), r.Actions...)
	if r.Roles != nil {
		r.Roles = append([]string(nil), r.Roles...)
	}
	return r
}

func (r Rule) matchesType(typ string) bool {
	return r.ResourceType == Wildcard || r.ResourceType == typ
}
