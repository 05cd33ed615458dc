// internal/props/manual.go
package props

import (
	"fmt"

	"github.com/solatis/normprops/internal/filter"
	"github.com/solatis/normprops/internal/types"
)

/*
 * Manual properties.
 *
 * A Manual property reads a value the owner stores itself, through
 * Params.Get or the owner's Fields. Nothing watches the backing field:
 * owning code signals changes with Attribute.Changed, Set.Added,
 * Set.Removed and Set.Changed after mutating it.
 */

func init() {
	MustRegisterKind(Kind{
		Name:      Manual,
		Attribute: newManualAttribute,
		Set:       newManualSet,
	})
}

type manualAttribute struct {
	get func(Instance) (any, error)
}

func newManualAttribute(cfg *Config, params Params) (AttributeBehavior, error) {
	return &manualAttribute{get: fieldGetter(cfg.name, params.Get)}, nil
}

func (m *manualAttribute) Value(owner Instance) (any, error) {
	return m.get(owner)
}

func (m *manualAttribute) Satisfies(a *Attribute, p filter.Predicate) (bool, error) {
	v, err := a.Value()
	if err != nil {
		return false, err
	}
	return matchValue(v, p)
}

type manualSet struct {
	get func(Instance) (any, error)
}

func newManualSet(cfg *Config, params Params) (SetBehavior, error) {
	return &manualSet{get: fieldGetter(cfg.name, params.Get)}, nil
}

func (m *manualSet) Items(owner Instance) ([]Instance, error) {
	v, err := m.get(owner)
	if err != nil {
		return nil, err
	}
	return asInstances(v)
}

// fieldGetter returns get, or a reader of the owner's Field(name).
func fieldGetter(name string, get func(Instance) (any, error)) func(Instance) (any, error) {
	if get != nil {
		return get
	}
	return func(owner Instance) (any, error) {
		f, ok := owner.(Fields)
		if !ok {
			return nil, fmt.Errorf("%w: %T has no field %s", types.ErrNoField, owner, name)
		}
		return f.Field(name), nil
	}
}

// asInstances converts a stored collection value to an item list.
func asInstances(v any) ([]Instance, error) {
	switch items := v.(type) {
	case nil:
		return nil, nil
	case []Instance:
		return items, nil
	default:
		return nil, fmt.Errorf("%w: %T", types.ErrNotCollection, v)
	}
}
