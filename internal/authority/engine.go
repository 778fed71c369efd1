package authority

import (
	"fmt"
	"log/slog"
)

// Option configures the Engine.
type Option func(*Engine)

// WithStrictMode makes queries against unregistered resource types fail
// with UnknownResourceTypeError instead of default-denying.
func WithStrictMode() Option {
	return func(e *Engine) {
		e.strict = true
	}
}

// WithResolver sets the Resolver used by Authorize for host objects that do
// not implement Resource themselves.
func WithResolver(r Resolver) Option {
	return func(e *Engine) {
		e.resolver = r
	}
}

// WithLogger sets the logger decisions are traced to at debug level.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithListener registers a listener notified after every decision.
func WithListener(l Listener) Option {
	return func(e *Engine) {
		if l != nil {
			e.listeners = append(e.listeners, l)
		}
	}
}

// Engine evaluates queries against a frozen RuleSet. It holds no mutable
// state and is safe for concurrent use.
type Engine struct {
	rules     *RuleSet
	strict    bool
	resolver  Resolver
	logger    *slog.Logger
	listeners []Listener
}

// NewEngine freezes rs, if it is not already, and returns an engine over it.
func NewEngine(rs *RuleSet, opts ...Option) *Engine {
	rs.Freeze()
	e := &Engine{
		rules:  rs,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RuleSet returns the frozen rule set the engine evaluates.
func (e *Engine) RuleSet() *RuleSet {
	return e.rules
}

// Strict reports whether strict mode is enabled.
func (e *Engine) Strict() bool {
	return e.strict
}

// Can decides whether subject may perform action on resource.
//
// Evaluation:
//  1. Expand action through the alias table.
//  2. Keep rules sharing an action with the expansion whose resource type is
//     the resource's type or the wildcard, and whose role scope the subject
//     satisfies.
//  3. Drop rules whose condition is false.
//  4. The first surviving deny in insertion order wins; otherwise the first
//     surviving allow; otherwise default-deny.
//
// Denial is a normal result. The only error outcomes are nil arguments and,
// in strict mode, an unregistered resource type.
func (e *Engine) Can(subject Subject, action string, resource Resource) (Decision, error) {
	if subject == nil {
		return Decision{}, ErrNilSubject
	}
	if resource == nil {
		return Decision{}, ErrNilResource
	}

	typ := resource.Type()
	if e.strict && !e.rules.KnownResourceType(typ) {
		return Decision{}, &UnknownResourceTypeError{Type: typ}
	}

	d := e.evaluate(subject, action, resource, typ)

	e.logger.Debug("authorization decision",
		"action", action,
		"resource_type", typ,
		"allowed", d.Allowed,
		"rule_index", d.RuleIndex,
		"reason", d.Reason,
	)
	if len(e.listeners) > 0 {
		evt := decisionEvent(subject, d)
		for _, l := range e.listeners {
			l(evt)
		}
	}
	return d, nil
}

// Cannot is the negation of Can. Errors are returned unchanged and the
// boolean is then meaningless.
func (e *Engine) Cannot(subject Subject, action string, resource Resource) (bool, error) {
	d, err := e.Can(subject, action, resource)
	if err != nil {
		return false, err
	}
	return !d.Allowed, nil
}

// Authorize is Can for arbitrary host objects: obj is used directly when it
// implements Resource, otherwise it is passed through the configured
// Resolver.
func (e *Engine) Authorize(subject Subject, action string, obj any) (Decision, error) {
	resource, err := e.resolve(obj)
	if err != nil {
		return Decision{}, err
	}
	return e.Can(subject, action, resource)
}

func (e *Engine) resolve(obj any) (Resource, error) {
	if obj == nil {
		return nil, ErrNilResource
	}
	if r, ok := obj.(Resource); ok {
		return r, nil
	}
	if e.resolver == nil {
		return nil, fmt.Errorf("%w: %T", ErrUnresolvable, obj)
	}
	r, err := e.resolver.ResolveResource(obj)
	if err != nil {
		return nil, fmt.Errorf("resolving %T: %w", obj, err)
	}
	if r == nil {
		return nil, fmt.Errorf("%w: %T", ErrUnresolvable, obj)
	}
	return r, nil
}

func (e *Engine) evaluate(subject Subject, action string, resource Resource, typ string) Decision {
	wanted := e.rules.expandLocked(action)

	var roles map[string]struct{}
	var firstAllow *compiledRule

	for i := range e.rules.compiled {
		c := &e.rules.compiled[i]
		if !c.rule.matchesType(typ) || !c.sharesAction(wanted) {
			continue
		}
		if len(c.rule.Roles) > 0 {
			if roles == nil {
				roles = e.rules.effectiveRoles(subject.Roles())
			}
			if !c.inScope(roles) {
				continue
			}
		}
		if c.rule.Condition != nil && !c.rule.Condition(subject, resource) {
			continue
		}
		if c.rule.Privilege == Deny {
			return ruleDecision(c, action, typ)
		}
		if firstAllow == nil {
			firstAllow = c
		}
	}

	if firstAllow != nil {
		return ruleDecision(firstAllow, action, typ)
	}
	return defaultDeny(action, typ)
}

func (c *compiledRule) sharesAction(actions []string) bool {
	for _, a := range actions {
		if _, ok := c.actions[a]; ok {
			return true
		}
	}
	return false
}

func (c *compiledRule) inScope(roles map[string]struct{}) bool {
	for _, r := range c.rule.Roles {
		if _, ok := roles[r]; ok {
			return true
		}
	}
	return false
}
