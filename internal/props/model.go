// internal/props/model.go
package props

import (
	"fmt"
	"sort"
	"sync"

	"github.com/solatis/normprops/internal/filter"
	"github.com/solatis/normprops/internal/types"
)

/*
 * Property declarations.
 *
 * A Model holds the Configs declared directly on it plus a parent link.
 * Lookup walks the chain innermost first, so a subtype redeclaring a name
 * shadows the ancestor's declaration. Declarations are expected at setup
 * time; lookups are safe from multiple goroutines afterwards.
 */

// Shape distinguishes single-valued and collection properties.
type Shape int

const (
	ShapeAttribute Shape = iota
	ShapeSet
)

// String returns the shape name.
func (s Shape) String() string {
	switch s {
	case ShapeAttribute:
		return "attribute"
	case ShapeSet:
		return "set"
	default:
		return "unknown"
	}
}

// Params are the declaration parameters handed to a kind's factory.
// Kinds use the fields relevant to them and ignore the rest.
type Params struct {
	// Model is the related model: the association target of an
	// attribute or the item model of a set.
	Model *Model

	// Get reads a Manual property from its owner. Defaults to the
	// owner's Field(name) when the owner implements Fields.
	Get func(owner Instance) (any, error)

	// Sources names the properties a Dependent property derives from.
	Sources []string

	// Value derives a Dependent attribute from its sources.
	Value func(src Sources) (any, error)

	// Items derives a Dependent set from its sources.
	Items func(src Sources) ([]Instance, error)

	// SourcesFilter maps a predicate on a Dependent property onto a
	// filter over its sources. Defaults to forwarding the predicate when
	// there is exactly one source.
	SourcesFilter func(p filter.Predicate) (filter.Filter, error)

	// ValueFilter contributes extra nested conditions derived from the
	// current value of a Dependent attribute.
	ValueFilter func(value any) filter.Filter

	// Watch overrides the kind's default watcher.
	Watch func(p Property) Watcher
}

// Config is an immutable property declaration.
type Config struct {
	owner *Model
	name  string
	shape Shape
	kind  string
	model *Model
	watch func(p Property) Watcher

	attr AttributeBehavior
	set  SetBehavior
}

// Owner returns the model the property was declared on.
func (c *Config) Owner() *Model { return c.owner }

// Name returns the property name.
func (c *Config) Name() string { return c.name }

// Shape returns the property shape.
func (c *Config) Shape() Shape { return c.shape }

// Kind returns the behavior kind name.
func (c *Config) Kind() string { return c.kind }

// Model returns the related model, nil when undeclared.
func (c *Config) Model() *Model { return c.model }

// String returns "model#name".
func (c *Config) String() string {
	return c.owner.name + "#" + c.name
}

// behavior returns whichever shape-specific behavior is set.
func (c *Config) behavior() any {
	if c.shape == ShapeSet {
		return c.set
	}
	return c.attr
}

// Derived reports whether the property derives from sources.
func (c *Config) Derived() bool {
	_, ok := c.behavior().(SourcesResolver)
	return ok
}

// Sources returns the declared sources of a derived property.
func (c *Config) Sources() []string {
	if r, ok := c.behavior().(SourcesResolver); ok {
		return r.Sources()
	}
	return nil
}

// ResolveFilter maps p onto the sources of a derived property.
func (c *Config) ResolveFilter(p filter.Predicate) (filter.Filter, error) {
	r, ok := c.behavior().(SourcesResolver)
	if !ok {
		return filter.Where(c.name, p), nil
	}
	return r.ResolveFilter(p)
}

// newProperty creates the per-owner property object.
func (c *Config) newProperty(owner Instance) Property {
	if c.shape == ShapeSet {
		return newSet(owner, c, filter.Filter{})
	}
	return newAttribute(owner, c)
}

// watcherFor builds the watcher engaged while p has change listeners.
func (c *Config) watcherFor(p Property) Watcher {
	if c.watch != nil {
		return c.watch(p)
	}
	if wp, ok := c.behavior().(WatcherProvider); ok {
		return wp.Watcher(p)
	}
	return nopWatcher{}
}

// Model is a type's property registry.
type Model struct {
	name   string
	parent *Model

	mu      sync.RWMutex
	configs map[string]*Config
}

// NewModel creates a model inheriting declarations from parent (may be nil).
func NewModel(name string, parent *Model) *Model {
	return &Model{
		name:    name,
		parent:  parent,
		configs: make(map[string]*Config),
	}
}

// Name returns the model name.
func (m *Model) Name() string { return m.name }

// Parent returns the parent model, nil for roots.
func (m *Model) Parent() *Model { return m.parent }

// String returns the model name.
func (m *Model) String() string { return m.name }

// Is reports whether m is other or descends from it.
func (m *Model) Is(other *Model) bool {
	for cur := m; cur != nil; cur = cur.parent {
		if cur == other {
			return true
		}
	}
	return false
}

// DeclareAttribute declares a single-valued property on m.
func (m *Model) DeclareAttribute(name, kind string, params Params) (*Config, error) {
	return m.declare(name, kind, ShapeAttribute, params)
}

// DeclareSet declares a collection property on m.
func (m *Model) DeclareSet(name, kind string, params Params) (*Config, error) {
	return m.declare(name, kind, ShapeSet, params)
}

// MustDeclareAttribute is DeclareAttribute that panics on error.
func (m *Model) MustDeclareAttribute(name, kind string, params Params) *Config {
	cfg, err := m.DeclareAttribute(name, kind, params)
	if err != nil {
		panic(err)
	}
	return cfg
}

// MustDeclareSet is DeclareSet that panics on error.
func (m *Model) MustDeclareSet(name, kind string, params Params) *Config {
	cfg, err := m.DeclareSet(name, kind, params)
	if err != nil {
		panic(err)
	}
	return cfg
}

func (m *Model) declare(name, kind string, shape Shape, params Params) (*Config, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: %s: empty property name", types.ErrInvalidDeclaration, m.name)
	}
	k, err := LookupKind(kind)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		owner: m,
		name:  name,
		shape: shape,
		kind:  k.Name,
		model: params.Model,
		watch: params.Watch,
	}

	switch shape {
	case ShapeSet:
		if k.Set == nil {
			return nil, fmt.Errorf("%w %q: no set support", types.ErrUnknownPropertyKind, kind)
		}
		if cfg.set, err = k.Set(cfg, params); err != nil {
			return nil, err
		}
	default:
		if k.Attribute == nil {
			return nil, fmt.Errorf("%w %q: no attribute support", types.ErrUnknownPropertyKind, kind)
		}
		if cfg.attr, err = k.Attribute(cfg, params); err != nil {
			return nil, err
		}
	}

	m.mu.Lock()
	m.configs[name] = cfg
	m.mu.Unlock()
	return cfg, nil
}

// Config resolves name through m and its ancestors, innermost first.
// Returns ErrUnknownProperty when no model in the chain declares it.
func (m *Model) Config(name string) (*Config, error) {
	for cur := m; cur != nil; cur = cur.parent {
		cur.mu.RLock()
		cfg, ok := cur.configs[name]
		cur.mu.RUnlock()
		if ok {
			return cfg, nil
		}
	}
	return nil, fmt.Errorf("%w: %s#%s", types.ErrUnknownProperty, m.name, name)
}

// Owns reports whether name resolves on m.
func (m *Model) Owns(name string) bool {
	_, err := m.Config(name)
	return err == nil
}

// Configs returns every property visible on m, innermost declarations
// winning, sorted by name.
func (m *Model) Configs() []*Config {
	seen := make(map[string]*Config)
	for cur := m; cur != nil; cur = cur.parent {
		cur.mu.RLock()
		for name, cfg := range cur.configs {
			if _, shadowed := seen[name]; !shadowed {
				seen[name] = cfg
			}
		}
		cur.mu.RUnlock()
	}

	out := make([]*Config, 0, len(seen))
	for _, cfg := range seen {
		out = append(out, cfg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}
