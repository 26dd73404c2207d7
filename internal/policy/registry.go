package policy

import (
	"sort"
	"sync"

	"github.com/bylapidist/dtifx-sub001/internal/dtifxerr"
)

// Registry maps a policy name to the Factory that constructs its Rules.
// Plugins register into the same Registry a built-in uses, per §4.10 --
// "no global state" beyond the one Registry passed to each loader.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds factory under name. Registering the same name twice is a
// configuration error (duplicate policy name), per §7's fatal
// configuration-error list.
func (r *Registry) Register(name string, factory Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[name]; exists {
		return dtifxerr.New(dtifxerr.ClassConfiguration, dtifxerr.CodeDuplicatePolicyName,
			"duplicate policy name: "+name)
	}
	r.factories[name] = factory
	return nil
}

// Lookup returns the factory registered under name.
func (r *Registry) Lookup(name string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[name]
	return f, ok
}

// Names returns every registered policy name, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Build constructs every Rule named in entries, in order, failing fast on
// the first unknown policy name.
func (r *Registry) Build(entries []Entry, fctx FactoryContext) ([]Rule, error) {
	var rules []Rule
	for _, entry := range entries {
		factory, ok := r.Lookup(entry.Name)
		if !ok {
			return nil, dtifxerr.New(dtifxerr.ClassConfiguration, dtifxerr.CodeUnknownPolicy,
				"unknown policy: "+entry.Name)
		}
		built, err := factory(entry, fctx)
		if err != nil {
			return nil, err
		}
		rules = append(rules, built...)
	}
	return rules, nil
}

// RegisterBuiltins registers every named built-in policy factory, per
// §4.10's fixed list.
func RegisterBuiltins(r *Registry) error {
	builtins := map[string]Factory{
		"governance.requireOwner":             requireOwnerFactory,
		"governance.deprecationHasReplacement": deprecationHasReplacementFactory,
		"governance.requireTag":               requireTagFactory,
		"governance.requireOverrideApproval":  requireOverrideApprovalFactory,
		"governance.wcagContrast":             wcagContrastFactory,
	}
	for name, factory := range builtins {
		if err := r.Register(name, factory); err != nil {
			return err
		}
	}
	return nil
}
