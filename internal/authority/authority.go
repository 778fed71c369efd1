package authority

import "fmt"

// Initializer populates a fresh rule set during process startup.
type Initializer func(rs *RuleSet) error

// Initialize builds a rule set, hands it to init exactly once, freezes it
// and returns an engine over it. When init fails no engine is returned.
func Initialize(init Initializer, opts ...Option) (*Engine, error) {
	rs := NewRuleSet()
	if init != nil {
		if err := init(rs); err != nil {
			return nil, fmt.Errorf("initializing rule set: %w", err)
		}
	}
	return NewEngine(rs, opts...), nil
}

// Authority is an engine bound to one subject, typically the authenticated
// user of a request.
type Authority struct {
	engine  *Engine
	subject Subject
}

// For binds the engine to subject.
func (e *Engine) For(subject Subject) *Authority {
	return &Authority{engine: e, subject: subject}
}

// Subject returns the bound subject.
func (a *Authority) Subject() Subject {
	return a.subject
}

func (a *Authority) Can(action string, resource Resource) (Decision, error) {
	return a.engine.Can(a.subject, action, resource)
}

func (a *Authority) Cannot(action string, resource Resource) (bool, error) {
	return a.engine.Cannot(a.subject, action, resource)
}

func (a *Authority) Authorize(action string, obj any) (Decision, error) {
	return a.engine.Authorize(a.subject, action, obj)
}
