package props

import (
	"fmt"
	"sort"
	"sync"

	"github.com/solatis/normprops/internal/filter"
	"github.com/solatis/normprops/internal/types"
)

// Built-in kind names.
const (
	Manual    = "Manual"
	Dependent = "Dependent"
)

// AttributeBehavior supplies the kind-specific half of an Attribute.
type AttributeBehavior interface {
	// Value reads the current value for owner.
	Value(owner Instance) (any, error)

	// Satisfies tests the attribute against p.
	Satisfies(a *Attribute, p filter.Predicate) (bool, error)
}

// SetBehavior supplies the kind-specific half of a Set.
type SetBehavior interface {
	// Items reads the unfiltered collection for owner, in order.
	Items(owner Instance) ([]Instance, error)
}

// SourcesResolver is implemented by behaviors whose value derives from
// other properties of the same owner.
type SourcesResolver interface {
	// Sources returns the declared source property names.
	Sources() []string

	// ResolveFilter maps a predicate on the derived value onto an
	// equivalent filter over the sources.
	ResolveFilter(p filter.Predicate) (filter.Filter, error)
}

// WatcherProvider is implemented by behaviors with a default watch.
type WatcherProvider interface {
	Watcher(p Property) Watcher
}

// AttributeFactory builds the attribute behavior for a declaration.
type AttributeFactory func(cfg *Config, params Params) (AttributeBehavior, error)

// SetFactory builds the set behavior for a declaration.
type SetFactory func(cfg *Config, params Params) (SetBehavior, error)

// Kind is a named behavior family. Either factory may be nil when the
// kind does not support that shape.
type Kind struct {
	Name      string
	Attribute AttributeFactory
	Set       SetFactory
}

var kinds = struct {
	mu     sync.RWMutex
	byName map[string]Kind
}{byName: make(map[string]Kind)}

// RegisterKind adds a behavior kind.
// Returns ErrDuplicateKind if the name is taken.
func RegisterKind(k Kind) error {
	if k.Name == "" || (k.Attribute == nil && k.Set == nil) {
		return fmt.Errorf("%w: kind needs a name and at least one factory", types.ErrInvalidDeclaration)
	}

	kinds.mu.Lock()
	defer kinds.mu.Unlock()

	if _, exists := kinds.byName[k.Name]; exists {
		return fmt.Errorf("%w: %q", types.ErrDuplicateKind, k.Name)
	}
	kinds.byName[k.Name] = k
	return nil
}

// MustRegisterKind registers a kind and panics on error.
// Intended for init-time registration.
func MustRegisterKind(k Kind) {
	if err := RegisterKind(k); err != nil {
		panic(err)
	}
}

// LookupKind returns the kind registered under name.
func LookupKind(name string) (Kind, error) {
	kinds.mu.RLock()
	defer kinds.mu.RUnlock()

	k, ok := kinds.byName[name]
	if !ok {
		return Kind{}, fmt.Errorf("%w %q", types.ErrUnknownPropertyKind, name)
	}
	return k, nil
}

// Kinds returns the registered kind names, sorted.
func Kinds() []string {
	kinds.mu.RLock()
	defer kinds.mu.RUnlock()

	names := make([]string, 0, len(kinds.byName))
	for name := range kinds.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
