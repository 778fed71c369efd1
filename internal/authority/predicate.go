package authority

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
)

// Predicate is a rule condition. It must be deterministic and free of side
// effects; the engine imposes no timeout on it.
type Predicate func(subject Subject, resource Resource) bool

// Predicates is a registry of named conditions that rule definitions can
// reference. Conditions are code, so definitions carry names only.
type Predicates struct {
	mu    sync.RWMutex
	preds map[string]Predicate
}

func NewPredicates() *Predicates {
	return &Predicates{preds: make(map[string]Predicate)}
}

// Register adds a named predicate. Names are unique.
func (p *Predicates) Register(name string, pred Predicate) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("predicate name is empty")
	}
	if pred == nil {
		return fmt.Errorf("predicate %q is nil", name)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.preds[name]; exists {
		return fmt.Errorf("predicate %q already registered", name)
	}
	p.preds[name] = pred
	return nil
}

// Lookup returns the predicate registered under name.
func (p *Predicates) Lookup(name string) (Predicate, bool) {
	if p == nil {
		return nil, false
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	pred, ok := p.preds[name]
	return pred, ok
}

// Names returns the registered predicate names, sorted.
func (p *Predicates) Names() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	names := make([]string, 0, len(p.preds))
	for n := range p.preds {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ResourceAttributeEquals holds when the resource attribute is present and
// equal to value.
func ResourceAttributeEquals(name string, value any) Predicate {
	return func(_ Subject, r Resource) bool {
		v, ok := r.Attribute(name)
		return ok && equal(v, value)
	}
}

// SubjectAttributeEquals holds when the subject attribute is present and
// equal to value.
func SubjectAttributeEquals(name string, value any) Predicate {
	return func(s Subject, _ Resource) bool {
		v, ok := s.Attribute(name)
		return ok && equal(v, value)
	}
}

// SubjectOwnsResource holds when both attributes are present and equal, e.g.
// subject "id" against resource "owner_id".
func SubjectOwnsResource(subjectAttr, resourceAttr string) Predicate {
	return func(s Subject, r Resource) bool {
		sv, ok := s.Attribute(subjectAttr)
		if !ok {
			return false
		}
		rv, ok := r.Attribute(resourceAttr)
		return ok && equal(sv, rv)
	}
}

// SubjectHasRole checks the subject's direct roles only.
func SubjectHasRole(role string) Predicate {
	return func(s Subject, _ Resource) bool {
		for _, r := range s.Roles() {
			if r == role {
				return true
			}
		}
		return false
	}
}

func Not(p Predicate) Predicate {
	return func(s Subject, r Resource) bool { return !p(s, r) }
}

// All holds when every predicate holds. All() is true.
func All(ps ...Predicate) Predicate {
	return func(s Subject, r Resource) bool {
		for _, p := range ps {
			if !p(s, r) {
				return false
			}
		}
		return true
	}
}

// Any holds when at least one predicate holds. Any() is false.
func Any(ps ...Predicate) Predicate {
	return func(s Subject, r Resource) bool {
		for _, p := range ps {
			if p(s, r) {
				return true
			}
		}
		return false
	}
}

// equal compares attribute values. Numbers of different Go types compare by
// value so YAML- and JSON-decoded attributes match literals in code. Two
// integers compare exactly; floats are used only when one side is a float.
// Other values must share a dynamic type and are compared with DeepEqual,
// which never panics on values holding slices or maps.
func equal(a, b any) bool {
	av, bv := reflect.ValueOf(a), reflect.ValueOf(b)
	ak, bk := numberKind(av), numberKind(bv)
	switch {
	case ak == kindNone || bk == kindNone:
	case ak == kindFloat || bk == kindFloat:
		return asFloat(av, ak) == asFloat(bv, bk)
	case ak == kindInt && bk == kindInt:
		return av.Int() == bv.Int()
	case ak == kindUint && bk == kindUint:
		return av.Uint() == bv.Uint()
	case ak == kindInt:
		return av.Int() >= 0 && uint64(av.Int()) == bv.Uint()
	default:
		return bv.Int() >= 0 && av.Uint() == uint64(bv.Int())
	}
	if reflect.TypeOf(a) != reflect.TypeOf(b) {
		return false
	}
	return reflect.DeepEqual(a, b)
}

type numKind int

const (
	kindNone numKind = iota
	kindInt
	kindUint
	kindFloat
)

func numberKind(v reflect.Value) numKind {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return kindInt
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return kindUint
	case reflect.Float32, reflect.Float64:
		return kindFloat
	default:
		return kindNone
	}
}

func asFloat(v reflect.Value, k numKind) float64 {
	switch k {
	case kindInt:
		return float64(v.Int())
	case kindUint:
		return float64(v.Uint())
	default:
		return v.Float()
	}
}
