package ruledef

import "github.com/valinor-ai/authority/internal/authority"

// DefaultPredicates returns the conditions rule files may name out of the
// box:
//
//	owner            subject "id" equals resource "owner_id"
//	same_department  subject and resource "department" are equal
//	locked           resource "locked" is true
//	archived         resource "archived" is true
//	published        resource "status" is "published"
func DefaultPredicates() *authority.Predicates {
	preds := authority.NewPredicates()
	for name, p := range map[string]authority.Predicate{
		"owner":           authority.SubjectOwnsResource("id", "owner_id"),
		"same_department": authority.SubjectOwnsResource("department", "department"),
		"locked":          authority.ResourceAttributeEquals("locked", true),
		"archived":        authority.ResourceAttributeEquals("archived", true),
		"published":       authority.ResourceAttributeEquals("status", "published"),
	} {
		// Names are unique and predicates non-nil, so Register cannot fail.
		_ = preds.Register(name, p)
	}
	return preds
}
