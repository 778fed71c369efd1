package authority

import (
	"fmt"
	"sort"
)

// Definition is the serialized form of a rule. Conditions are referenced by
// the name of a predicate registered with the loader.
type Definition struct {
	Name         string   `koanf:"name" json:"name,omitempty" yaml:"name,omitempty"`
	Description  string   `koanf:"description" json:"description,omitempty" yaml:"description,omitempty"`
	Privilege    string   `koanf:"privilege" json:"privilege" yaml:"privilege"`
	Actions      []string `koanf:"actions" json:"actions" yaml:"actions"`
	ResourceType string   `koanf:"resource_type" json:"resource_type" yaml:"resource_type"`
	Roles        []string `koanf:"roles" json:"roles,omitempty" yaml:"roles,omitempty"`
	Condition    string   `koanf:"condition" json:"condition,omitempty" yaml:"condition,omitempty"`
}

// Document is a complete rule set definition.
type Document struct {
	Aliases       map[string][]string `koanf:"aliases" json:"aliases,omitempty" yaml:"aliases,omitempty"`
	Roles         map[string][]string `koanf:"roles" json:"roles,omitempty" yaml:"roles,omitempty"`
	ResourceTypes []string            `koanf:"resource_types" json:"resource_types,omitempty" yaml:"resource_types,omitempty"`
	Rules         []Definition        `koanf:"rules" json:"rules" yaml:"rules"`
}

// Merge appends other to d. Aliases and roles extend existing entries; rules
// keep file order.
func (d *Document) Merge(other Document) {
	if len(other.Aliases) > 0 && d.Aliases == nil {
		d.Aliases = make(map[string][]string)
	}
	for name, targets := range other.Aliases {
		d.Aliases[name] = union(d.Aliases[name], targets)
	}
	if len(other.Roles) > 0 && d.Roles == nil {
		d.Roles = make(map[string][]string)
	}
	for role, parents := range other.Roles {
		d.Roles[role] = union(d.Roles[role], parents)
	}
	d.ResourceTypes = union(d.ResourceTypes, other.ResourceTypes)
	d.Rules = append(d.Rules, other.Rules...)
}

// Rule converts the definition, resolving its condition through preds.
func (def Definition) Rule(preds *Predicates) (Rule, error) {
	priv, err := ParsePrivilege(def.Privilege)
	if err != nil {
		return Rule{}, &InvalidRuleError{Rule: def.Name, Reason: err.Error()}
	}
	r := Rule{
		Name:          def.Name,
		Description:   def.Description,
		Privilege:     priv,
		Actions:       def.Actions,
		ResourceType:  def.ResourceType,
		Roles:         def.Roles,
		ConditionName: def.Condition,
	}
	if def.Condition != "" {
		pred, ok := preds.Lookup(def.Condition)
		if !ok {
			return Rule{}, &UnknownPredicateNameError{Name: def.Condition, Rule: def.Name}
		}
		r.Condition = pred
	}
	return r, nil
}

// LoadDocument applies doc to rs: aliases, role inheritance and resource
// types first, then rules in order. It stops at the first error; rs must then
// be discarded rather than frozen.
func LoadDocument(rs *RuleSet, doc Document, preds *Predicates) error {
	for _, name := range sortedKeys(doc.Aliases) {
		if err := rs.AddAlias(name, doc.Aliases[name]...); err != nil {
			return fmt.Errorf("alias %q: %w", name, err)
		}
	}
	for _, role := range sortedKeys(doc.Roles) {
		if err := rs.AddRoleInheritance(role, doc.Roles[role]...); err != nil {
			return fmt.Errorf("role %q: %w", role, err)
		}
	}
	if len(doc.ResourceTypes) > 0 {
		if err := rs.RegisterResourceType(doc.ResourceTypes...); err != nil {
			return fmt.Errorf("resource types: %w", err)
		}
	}
	for i, def := range doc.Rules {
		r, err := def.Rule(preds)
		if err != nil {
			return fmt.Errorf("rule %d: %w", i, err)
		}
		if err := rs.AddRule(r); err != nil {
			return fmt.Errorf("rule %d: %w", i, err)
		}
	}
	return nil
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
