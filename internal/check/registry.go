package check

import (
	"fmt"

	"github.com/roach88/bouncer/internal/event"
)

// Registry holds the checks built at startup.
//
// Registration order is load-bearing: the orchestrator collects outcomes
// and applies fixes in registration order regardless of completion order,
// which keeps aggregation deterministic for a given set of applicable
// checks. The registry is built once during startup and read-only
// afterwards, so it needs no locking.
type Registry struct {
	checks []Check
	byName map[string]Check
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Check)}
}

// Register appends a check. Duplicate names are a configuration error.
func (r *Registry) Register(c Check) error {
	name := c.Name()
	if name == "" {
		return fmt.Errorf("check has empty name")
	}
	if _, dup := r.byName[name]; dup {
		return fmt.Errorf("duplicate check name %q", name)
	}
	r.byName[name] = c
	r.checks = append(r.checks, c)
	return nil
}

// Applicable returns the checks whose predicate accepts the event, in
// registration order.
func (r *Registry) Applicable(ev event.ChangeEvent) []Check {
	var out []Check
	for _, c := range r.checks {
		if c.Applicable(ev) {
			out = append(out, c)
		}
	}
	return out
}

// Lookup returns the check registered under name, if any.
func (r *Registry) Lookup(name string) (Check, bool) {
	c, ok := r.byName[name]
	return c, ok
}

// All returns every registered check in registration order.
func (r *Registry) All() []Check {
	out := make([]Check, len(r.checks))
	copy(out, r.checks)
	return out
}

// Len returns the number of registered checks.
func (r *Registry) Len() int { return len(r.checks) }
