// Package rulestore persists rule definitions in Postgres.
package rulestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/valinor-ai/authority/internal/authority"
	"github.com/valinor-ai/authority/internal/platform/database"
)

var ErrRuleNotFound = errors.New("rule not found")

// StoredRule is a persisted rule definition. Position gives evaluation order.
type StoredRule struct {
	ID         uuid.UUID            `json:"id"`
	Position   int64                `json:"position"`
	Definition authority.Definition `json:"definition"`
	CreatedAt  time.Time            `json:"created_at"`
}

// Store reads and writes the authority_* tables.
type Store struct{}

// NewStore creates a rule store.
func NewStore() *Store {
	return &Store{}
}

// Load reads the complete rule set definition.
func (s *Store) Load(ctx context.Context, q database.Querier) (authority.Document, error) {
	var doc authority.Document

	aliases, err := s.loadPairs(ctx, q, `SELECT name, action FROM authority_aliases ORDER BY name, action`)
	if err != nil {
		return doc, fmt.Errorf("loading aliases: %w", err)
	}
	roles, err := s.loadPairs(ctx, q, `SELECT role, inherits FROM authority_roles ORDER BY role, inherits`)
	if err != nil {
		return doc, fmt.Errorf("loading roles: %w", err)
	}
	types, err := s.ResourceTypes(ctx, q)
	if err != nil {
		return doc, err
	}
	rules, err := s.ListRules(ctx, q)
	if err != nil {
		return doc, err
	}

	doc.Aliases = aliases
	doc.Roles = roles
	doc.ResourceTypes = types
	doc.Rules = make([]authority.Definition, len(rules))
	for i, r := range rules {
		doc.Rules[i] = r.Definition
	}
	return doc, nil
}

func (s *Store) loadPairs(ctx context.Context, q database.Querier, sql string) (map[string][]string, error) {
	rows, err := q.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		out[key] = append(out[key], value)
	}
	return out, rows.Err()
}

// ResourceTypes returns the declared resource types.
func (s *Store) ResourceTypes(ctx context.Context, q database.Querier) ([]string, error) {
	rows, err := q.Query(ctx, `SELECT name FROM authority_resource_types ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("loading resource types: %w", err)
	}
	defer rows.Close()

	var types []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning resource type: %w", err)
		}
		types = append(types, name)
	}
	return types, rows.Err()
}

// ListRules returns every rule in evaluation order.
func (s *Store) ListRules(ctx context.Context, q database.Querier) ([]StoredRule, error) {
	rows, err := q.Query(ctx,
		`SELECT id, position, name, description, privilege, actions, resource_type, roles, condition, created_at
		 FROM authority_rules ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("listing rules: %w", err)
	}
	defer rows.Close()

	var rules []StoredRule
	for rows.Next() {
		var (
			r   StoredRule
			def = &r.Definition
		)
		if err := rows.Scan(&r.ID, &r.Position, &def.Name, &def.Description, &def.Privilege,
			&def.Actions, &def.ResourceType, &def.Roles, &def.Condition, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning rule: %w", err)
		}
		if len(def.Roles) == 0 {
			def.Roles = nil
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

// SaveRule appends def after every stored rule.
func (s *Store) SaveRule(ctx context.Context, q database.Querier, def authority.Definition) (*StoredRule, error) {
	priv, err := validate(def)
	if err != nil {
		return nil, err
	}
	def.Privilege = priv.String()
	roles := def.Roles
	if roles == nil {
		roles = []string{}
	}

	r := StoredRule{ID: uuid.New(), Definition: def}
	err = q.QueryRow(ctx,
		`INSERT INTO authority_rules (id, name, description, privilege, actions, resource_type, roles, condition)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING position, created_at`,
		r.ID, def.Name, def.Description, def.Privilege, def.Actions, def.ResourceType, roles, def.Condition,
	).Scan(&r.Position, &r.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("inserting rule: %w", err)
	}
	return &r, nil
}

// DeleteRule removes the rule with the given ID.
func (s *Store) DeleteRule(ctx context.Context, q database.Querier, id uuid.UUID) error {
	tag, err := q.Exec(ctx, `DELETE FROM authority_rules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting rule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRuleNotFound
	}
	return nil
}

// SaveAlias adds actions to the alias name. Existing pairs are kept.
func (s *Store) SaveAlias(ctx context.Context, q database.Querier, name string, actions ...string) error {
	for _, action := range actions {
		if _, err := q.Exec(ctx,
			`INSERT INTO authority_aliases (name, action) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			name, action,
		); err != nil {
			return fmt.Errorf("saving alias %s: %w", name, err)
		}
	}
	return nil
}

// SaveRoleInheritance records that role inherits the listed roles.
func (s *Store) SaveRoleInheritance(ctx context.Context, q database.Querier, role string, inherits ...string) error {
	for _, parent := range inherits {
		if _, err := q.Exec(ctx,
			`INSERT INTO authority_roles (role, inherits) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			role, parent,
		); err != nil {
			return fmt.Errorf("saving role %s: %w", role, err)
		}
	}
	return nil
}

// SaveResourceTypes declares resource types.
func (s *Store) SaveResourceTypes(ctx context.Context, q database.Querier, types ...string) error {
	for _, name := range types {
		if _, err := q.Exec(ctx,
			`INSERT INTO authority_resource_types (name) VALUES ($1) ON CONFLICT DO NOTHING`,
			name,
		); err != nil {
			return fmt.Errorf("saving resource type %s: %w", name, err)
		}
	}
	return nil
}

// CountRules returns the number of stored rules.
func (s *Store) CountRules(ctx context.Context, q database.Querier) (int, error) {
	var n int
	if err := q.QueryRow(ctx, `SELECT count(*) FROM authority_rules`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting rules: %w", err)
	}
	return n, nil
}

// Clear removes every rule, alias, role inheritance and resource type.
func (s *Store) Clear(ctx context.Context, q database.Querier) error {
	for _, table := range []string{"authority_rules", "authority_aliases", "authority_roles", "authority_resource_types"} {
		if _, err := q.Exec(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clearing %s: %w", table, err)
		}
	}
	return nil
}

// ReplaceDocument clears the stored rule set and writes doc in its place.
// Run it inside database.WithTx so readers never see an empty set.
func (s *Store) ReplaceDocument(ctx context.Context, q database.Querier, doc authority.Document) error {
	if err := s.Clear(ctx, q); err != nil {
		return err
	}
	return s.SaveDocument(ctx, q, doc)
}

// SaveDocument writes every part of doc. Rules are appended, so saving the
// same document twice stores its rules twice; use ReplaceDocument to
// overwrite. Run it inside database.WithTx so a failure leaves nothing
// behind.
func (s *Store) SaveDocument(ctx context.Context, q database.Querier, doc authority.Document) error {
	for name, actions := range doc.Aliases {
		if err := s.SaveAlias(ctx, q, name, actions...); err != nil {
			return err
		}
	}
	for role, inherits := range doc.Roles {
		if err := s.SaveRoleInheritance(ctx, q, role, inherits...); err != nil {
			return err
		}
	}
	if err := s.SaveResourceTypes(ctx, q, doc.ResourceTypes...); err != nil {
		return err
	}
	for i, def := range doc.Rules {
		if _, err := s.SaveRule(ctx, q, def); err != nil {
			return fmt.Errorf("rule %d: %w", i, err)
		}
	}
	return nil
}

func validate(def authority.Definition) (authority.Privilege, error) {
	priv, err := authority.ParsePrivilege(def.Privilege)
	if err != nil {
		return 0, &authority.InvalidRuleError{Rule: def.Name, Reason: err.Error()}
	}
	if len(def.Actions) == 0 {
		return 0, &authority.InvalidRuleError{Rule: def.Name, Reason: "empty action set"}
	}
	if def.ResourceType == "" {
		return 0, &authority.InvalidRuleError{Rule: def.Name, Reason: "empty resource type"}
	}
	return priv, nil
}
