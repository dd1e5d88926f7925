// Package engine turns loan terms into installment schedules and derives the
// ledger position, payment allocation and loss provisioning from them.
//
// Everything here is a pure function of its arguments: there is no clock, no
// I/O and no shared mutable state. Callers that apply payments must serialize
// them per credit.
package engine

// Engine evaluates ledgers against one validated set of rule tables.
type Engine struct {
	rules Rules
}

// New validates rules and returns an Engine using them.
func New(rules Rules) (*Engine, error) {
	if err := rules.Validate(); err != nil {
		return nil, err
	}
	return &Engine{rules: rules}, nil
}

// Default returns an Engine with DefaultRules.
func Default() *Engine {
	e, err := New(DefaultRules())
	mustHold(err == nil, "default rules rejected: %v", err)
	return e
}

// Rules returns the rule tables in use.
func (e *Engine) Rules() Rules {
	return e.rules
}
