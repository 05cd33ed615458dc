// internal/props/instance.go
package props

import (
	"fmt"

	"github.com/solatis/normprops/internal/filter"
	"github.com/solatis/normprops/internal/types"
)

// Instance is an object carrying properties.
type Instance interface {
	filter.Subject

	// Model returns the instance's model.
	Model() *Model

	// Property returns the named property, created on first access.
	Property(name string) (Property, error)
}

// Fields is implemented by owners that expose backing values by name.
// The default Manual getter reads through it.
type Fields interface {
	Field(name string) any
}

// Base implements Instance for embedding structs. Call Bind before use.
type Base struct {
	self  Instance
	model *Model
	props map[*Config]Property
}

// Bind attaches the embedding instance and its model. self is what
// properties report as their owner and what getters receive.
func (b *Base) Bind(self Instance, m *Model) {
	b.self = self
	b.model = m
	b.props = make(map[*Config]Property)
}

// Model returns the bound model.
func (b *Base) Model() *Model { return b.model }

// Property returns the named property. The same Property object is
// returned for every lookup resolving to the same declaration.
func (b *Base) Property(name string) (Property, error) {
	if b.model == nil {
		return nil, fmt.Errorf("%w: property %s", types.ErrUnboundInstance, name)
	}
	cfg, err := b.model.Config(name)
	if err != nil {
		return nil, err
	}
	if p, ok := b.props[cfg]; ok {
		return p, nil
	}
	p := cfg.newProperty(b.self)
	b.props[cfg] = p
	return p, nil
}

// Attribute returns the named property as an attribute.
func (b *Base) Attribute(name string) (*Attribute, error) {
	p, err := b.Property(name)
	if err != nil {
		return nil, err
	}
	a, ok := p.(*Attribute)
	if !ok {
		return nil, fmt.Errorf("%w: %s is a %s", types.ErrPropertyShape, p.Config(), p.Config().Shape())
	}
	return a, nil
}

// Set returns the named property as a set.
func (b *Base) Set(name string) (*Set, error) {
	p, err := b.Property(name)
	if err != nil {
		return nil, err
	}
	s, ok := p.(*Set)
	if !ok {
		return nil, fmt.Errorf("%w: %s is a %s", types.ErrPropertyShape, p.Config(), p.Config().Shape())
	}
	return s, nil
}

// Match tests the named property against p.
func (b *Base) Match(name string, p filter.Predicate) (bool, error) {
	prop, err := b.Property(name)
	if err != nil {
		return false, err
	}
	return prop.Satisfies(p)
}

// Satisfies reports whether the instance satisfies f.
func (b *Base) Satisfies(f filter.Filter) (bool, error) {
	return f.SatisfiedBy(b)
}

// instanceSatisfies tests a related instance against a Nested or
// DirectInstance predicate. Other variants do not apply to instances.
func instanceSatisfies(inst Instance, p filter.Predicate) (bool, error) {
	switch p.Kind() {
	case filter.Nested:
		f, _ := p.Filter()
		return f.SatisfiedBy(inst)
	case filter.DirectInstance:
		return filter.SameInstance(inst, p.Value()), nil
	default:
		return false, nil
	}
}

// matchValue tests an attribute value against p.
func matchValue(v any, p filter.Predicate) (bool, error) {
	inst, isInstance := v.(Instance)
	if isInstance && filter.IsNil(v) {
		inst, isInstance, v = nil, false, nil
	}

	switch p.Kind() {
	case filter.Literal:
		if isInstance {
			// An instance only equals another instance, by identity.
			return filter.SameInstance(inst, p.Value()), nil
		}
		return filter.EqualValues(v, p.Value()), nil
	case filter.Presence:
		if b, ok := v.(bool); ok {
			return b == p.Present(), nil
		}
		return (v != nil) == p.Present(), nil
	case filter.Nested, filter.DirectInstance:
		if !isInstance {
			return false, nil
		}
		return instanceSatisfies(inst, p)
	default:
		return false, nil
	}
}

// Getter adapts a typed accessor to Params.Get.
func Getter[T Instance](fn func(T) any) func(Instance) (any, error) {
	return func(owner Instance) (any, error) {
		t, ok := owner.(T)
		if !ok {
			return nil, fmt.Errorf("%w: unexpected owner %T", types.ErrNoField, owner)
		}
		return fn(t), nil
	}
}

// ItemsGetter adapts a typed collection accessor to Params.Get for sets.
func ItemsGetter[T Instance, E Instance](fn func(T) []E) func(Instance) (any, error) {
	return func(owner Instance) (any, error) {
		t, ok := owner.(T)
		if !ok {
			return nil, fmt.Errorf("%w: unexpected owner %T", types.ErrNoField, owner)
		}
		items := fn(t)
		out := make([]Instance, len(items))
		for i, item := range items {
			out[i] = item
		}
		return out, nil
	}
}
