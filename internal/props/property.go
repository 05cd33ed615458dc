// internal/props/property.go
package props

import (
	"fmt"

	"github.com/solatis/normprops/internal/filter"
)

// Property is a named, observable facet of one owner instance.
type Property interface {
	// Owner returns the instance the property belongs to.
	Owner() Instance

	// Config returns the declaration the property was created from.
	Config() *Config

	// Name returns the declared name.
	Name() string

	// String returns "model#name", with the owner ID appended when the
	// owner is identified.
	String() string

	// Satisfies tests the property against p.
	Satisfies(p filter.Predicate) (bool, error)

	// On subscribes handler to event.
	On(event Event, handler Handler) *Subscription

	// Trigger delivers event to the current subscribers.
	Trigger(event Event, args ...any)

	// Watching reports whether the property's watcher is engaged.
	Watching() bool
}

// property carries what Attribute and Set share.
type property struct {
	owner  Instance
	config *Config
	hub    hub
}

// Owner returns the owning instance.
func (p *property) Owner() Instance { return p.owner }

// Config returns the property declaration.
func (p *property) Config() *Config { return p.config }

// Name returns the property name.
func (p *property) Name() string { return p.config.name }

// String returns "model#name" or "model#name(id)".
func (p *property) String() string {
	s := p.config.String()
	if id, ok := p.owner.(filter.Identified); ok && id.ID() != "" {
		s += fmt.Sprintf("(%s)", id.ID())
	}
	return s
}

// On subscribes handler to event.
func (p *property) On(event Event, handler Handler) *Subscription {
	return p.hub.on(event, handler)
}

// Trigger delivers event synchronously.
func (p *property) Trigger(event Event, args ...any) {
	p.hub.trigger(event, args)
}

// Watching reports whether the watcher is engaged.
func (p *property) Watching() bool { return p.hub.watching }

// Attribute is a single-valued property.
type Attribute struct {
	property
	behavior AttributeBehavior
}

func newAttribute(owner Instance, cfg *Config) *Attribute {
	a := &Attribute{
		property: property{owner: owner, config: cfg},
		behavior: cfg.attr,
	}
	a.hub = newHub([]Event{EventChanged}, func() Watcher { return cfg.watcherFor(a) })
	return a
}

// Value reads the current value.
func (a *Attribute) Value() (any, error) {
	return a.behavior.Value(a.owner)
}

// Satisfies tests the attribute against p.
func (a *Attribute) Satisfies(p filter.Predicate) (bool, error) {
	return a.behavior.Satisfies(a, p)
}

// Changed signals a new value. Owners call it after mutating the field
// backing a Manual attribute.
func (a *Attribute) Changed(value any) {
	a.Trigger(EventChanged, value)
}

// Set is an ordered collection property, optionally narrowed by a filter.
type Set struct {
	property
	behavior SetBehavior
	filter   filter.Filter
}

func newSet(owner Instance, cfg *Config, f filter.Filter) *Set {
	s := &Set{
		property: property{owner: owner, config: cfg},
		behavior: cfg.set,
		filter:   f,
	}
	s.hub = newHub([]Event{EventChanged, EventAdded, EventRemoved}, func() Watcher { return cfg.watcherFor(s) })
	return s
}

// Filter returns the filter attached by Where.
func (s *Set) Filter() filter.Filter { return s.filter }

// Model returns the declared item model, nil when undeclared.
func (s *Set) Model() *Model { return s.config.model }

// Value returns the items that pass the attached filter, in order. The
// returned slice is a fresh copy.
func (s *Set) Value() ([]Instance, error) {
	items, err := s.behavior.Items(s.owner)
	if err != nil {
		return nil, err
	}

	out := make([]Instance, 0, len(items))
	for _, item := range items {
		if !s.filter.IsEmpty() {
			ok, err := s.filter.SatisfiedBy(item)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}
		out = append(out, item)
	}
	return out, nil
}

// Where returns a set narrowed by f, conjoined with any filter already
// attached. An empty f returns s itself.
func (s *Set) Where(f filter.Filter) *Set {
	if f.IsEmpty() {
		return s
	}
	return newSet(s.owner, s.config, s.filter.And(f))
}

// ResolvedFilter returns the attached filter with Dependent properties of
// the item model rewritten onto their sources. Without a declared item
// model the filter is returned unchanged.
func (s *Set) ResolvedFilter() (filter.Filter, error) {
	if s.config.model == nil {
		return s.filter, nil
	}
	return ResolveDependent(s.filter, s.config.model)
}

// Satisfies tests the set against p: Presence on emptiness, Nested and
// DirectInstance on any item. A literal instance counts as DirectInstance;
// other literals never match a set.
func (s *Set) Satisfies(p filter.Predicate) (bool, error) {
	items, err := s.Value()
	if err != nil {
		return false, err
	}
	if p.Kind() == filter.Literal && filter.IsInstance(p.Value()) {
		p = filter.Is(p.Value())
	}

	switch p.Kind() {
	case filter.Presence:
		return (len(items) > 0) == p.Present(), nil
	case filter.Nested, filter.DirectInstance:
		for _, item := range items {
			ok, err := instanceSatisfies(item, p)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	default:
		return false, nil
	}
}

// Added signals that item joined the collection, then signals changed.
func (s *Set) Added(item Instance) {
	s.Trigger(EventAdded, item)
	s.Trigger(EventChanged)
}

// Removed signals that item left the collection, then signals changed.
func (s *Set) Removed(item Instance) {
	s.Trigger(EventRemoved, item)
	s.Trigger(EventChanged)
}

// Changed signals a wholesale change of the collection.
func (s *Set) Changed() {
	s.Trigger(EventChanged)
}
