package authority

// Subject is the principal whose permissions are checked. The engine borrows
// it for the duration of a single query and never retains it.
type Subject interface {
	Roles() []string
	Attribute(name string) (any, bool)
}

// Resource is the object access is checked against.
type Resource interface {
	Type() string
	Attribute(name string) (any, bool)
}

// Resolver maps a host object to the Resource view the engine evaluates.
// Implementations may be expensive but must not have side effects.
type Resolver interface {
	ResolveResource(obj any) (Resource, error)
}

// ResolverFunc adapts a plain function to Resolver.
type ResolverFunc func(obj any) (Resource, error)

func (f ResolverFunc) ResolveResource(obj any) (Resource, error) { return f(obj) }

// Attributes is a read-only attribute bag.
type Attributes map[string]any

// Get returns the named attribute and whether it was present.
func (a Attributes) Get(name string) (any, bool) {
	v, ok := a[name]
	return v, ok
}

type staticSubject struct {
	roles []string
	attrs Attributes
}

// NewSubject returns a Subject backed by fixed roles and attributes.
func NewSubject(roles []string, attrs Attributes) Subject {
	return staticSubject{roles: append([]string(nil), roles...), attrs: attrs}
}

func (s staticSubject) Roles() []string                   { return s.roles }
func (s staticSubject) Attribute(name string) (any, bool) { return s.attrs.Get(name) }

type staticResource struct {
	typ   string
	attrs Attributes
}

// NewResource returns a Resource of the given type backed by attrs.
func NewResource(typ string, attrs Attributes) Resource {
	return staticResource{typ: typ, attrs: attrs}
}

func (r staticResource) Type() string                       { return r.typ }
func (r staticResource) Attribute(name string) (any, bool) { return r.attrs.Get(name) }
