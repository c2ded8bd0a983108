package query

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	// ErrUnknownPredicate is returned when a pattern names a predicate with
	// no registered handler.
	ErrUnknownPredicate = errors.New("treequery: unknown predicate")
	// ErrUnknownDirective is returned when a pattern names a directive with
	// no registered handler.
	ErrUnknownDirective = errors.New("treequery: unknown directive")
	// ErrDuplicateHandler is returned by Register when the name is taken and
	// force was not set.
	ErrDuplicateHandler = errors.New("treequery: handler already registered")
)

// PredicateHandler decides whether a match satisfies one invocation.
// Negation ("not-" prefix) and vacuous truth for absent subject captures are
// handled by the evaluation loop, not by handlers.
type PredicateHandler func(q *Query, m *Match, source []byte, inv *Invocation) (bool, error)

// DirectiveHandler applies one invocation's side effect to the metadata of
// an accepted match.
type DirectiveHandler func(q *Query, m *Match, source []byte, inv *Invocation, md *Metadata) error

// PredicateRegistry is a named table of predicate handlers. Registration is
// rare and coarse locking is fine; evaluation takes only a read lock.
type PredicateRegistry struct {
	mu          sync.RWMutex
	handlers    map[string]PredicateHandler
	skipUnknown bool
}

// NewPredicateRegistry returns a registry preloaded with the built-in
// predicates (eq?, match? and its aliases, contains?, any-of?).
func NewPredicateRegistry() *PredicateRegistry {
	r := &PredicateRegistry{handlers: make(map[string]PredicateHandler)}
	registerBuiltinPredicates(r)
	return r
}

// Register adds a handler. The name must carry the "?" predicate marker and
// no "not-" prefix; negated forms are derived automatically. A duplicate
// name is an error unless force is set.
func (r *PredicateRegistry) Register(name string, h PredicateHandler, force bool) error {
	if err := checkHandlerName(name, "?"); err != nil {
		return err
	}
	if h == nil {
		return fmt.Errorf("handler for %q cannot be nil", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[name]; exists && !force {
		return fmt.Errorf("%w: %q", ErrDuplicateHandler, name)
	}
	r.handlers[name] = h
	return nil
}

// SetSkipUnknown switches the unknown-name policy from strict-fail (the
// default) to silently accepting invocations with no registered handler.
func (r *PredicateRegistry) SetSkipUnknown(skip bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.skipUnknown = skip
}

// List returns all registered predicate names, sorted.
func (r *PredicateRegistry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// test dispatches one predicate invocation, applying "not-" negation.
func (r *PredicateRegistry) test(q *Query, m *Match, source []byte, inv *Invocation) (bool, error) {
	name := inv.Name
	negate := false
	if rest, ok := strings.CutPrefix(name, "not-"); ok {
		negate = true
		name = rest
	}

	r.mu.RLock()
	h, ok := r.handlers[name]
	skip := r.skipUnknown
	r.mu.RUnlock()

	if !ok {
		if skip {
			return true, nil
		}
		return false, fmt.Errorf("%w: %q", ErrUnknownPredicate, inv.Name)
	}

	res, err := h(q, m, source, inv)
	if err != nil {
		return false, err
	}
	if negate {
		res = !res
	}
	return res, nil
}

// DirectiveRegistry is a named table of directive handlers.
type DirectiveRegistry struct {
	mu          sync.RWMutex
	handlers    map[string]DirectiveHandler
	skipUnknown bool
}

// NewDirectiveRegistry returns a registry preloaded with the built-in
// directives (set!, offset!).
func NewDirectiveRegistry() *DirectiveRegistry {
	r := &DirectiveRegistry{handlers: make(map[string]DirectiveHandler)}
	registerBuiltinDirectives(r)
	return r
}

// Register adds a handler. The name must carry the "!" directive marker.
// A duplicate name is an error unless force is set.
func (r *DirectiveRegistry) Register(name string, h DirectiveHandler, force bool) error {
	if err := checkHandlerName(name, "!"); err != nil {
		return err
	}
	if h == nil {
		return fmt.Errorf("handler for %q cannot be nil", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[name]; exists && !force {
		return fmt.Errorf("%w: %q", ErrDuplicateHandler, name)
	}
	r.handlers[name] = h
	return nil
}

// SetSkipUnknown switches the unknown-name policy from strict-fail (the
// default) to silently ignoring invocations with no registered handler.
func (r *DirectiveRegistry) SetSkipUnknown(skip bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.skipUnknown = skip
}

// List returns all registered directive names, sorted.
func (r *DirectiveRegistry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// apply dispatches one directive invocation. Directives are unconditional:
// no gating, no negation.
func (r *DirectiveRegistry) apply(q *Query, m *Match, source []byte, inv *Invocation, md *Metadata) error {
	r.mu.RLock()
	h, ok := r.handlers[inv.Name]
	skip := r.skipUnknown
	r.mu.RUnlock()

	if !ok {
		if skip {
			return nil
		}
		return fmt.Errorf("%w: %q", ErrUnknownDirective, inv.Name)
	}
	return h(q, m, source, inv, md)
}

func checkHandlerName(name, marker string) error {
	if name == "" {
		return fmt.Errorf("handler name cannot be empty")
	}
	if !strings.HasSuffix(name, marker) {
		return fmt.Errorf("handler name %q must end with %q", name, marker)
	}
	if strings.HasPrefix(name, "not-") {
		return fmt.Errorf("handler name %q must not carry a negation prefix", name)
	}
	return nil
}

// Default registries shared by compilers that are not given their own.
var (
	DefaultPredicates = NewPredicateRegistry()
	DefaultDirectives = NewDirectiveRegistry()
)

// RegisterPredicate adds a predicate handler to the default registry.
func RegisterPredicate(name string, h PredicateHandler, force bool) error {
	return DefaultPredicates.Register(name, h, force)
}

// RegisterDirective adds a directive handler to the default registry.
func RegisterDirective(name string, h DirectiveHandler, force bool) error {
	return DefaultDirectives.Register(name, h, force)
}

// ListPredicates returns the predicate names in the default registry.
func ListPredicates() []string {
	return DefaultPredicates.List()
}

// ListDirectives returns the directive names in the default registry.
func ListDirectives() []string {
	return DefaultDirectives.List()
}
