package props

import (
	"fmt"

	"github.com/solatis/normprops/internal/filter"
	"github.com/solatis/normprops/internal/types"
)

// Record is a map-backed instance for models defined at runtime, e.g.
// loaded from a schema file. Its mutators store the value and then signal
// the matching property, so Record owners need no extra bookkeeping.
type Record struct {
	Base
	id     types.InstanceID
	fields map[string]any
}

// NewRecord creates a record of m with a fresh ID. fields is copied.
func NewRecord(m *Model, fields map[string]any) *Record {
	return NewRecordWithID(m, types.NewInstanceID(), fields)
}

// NewRecordWithID creates a record with a caller-supplied ID.
func NewRecordWithID(m *Model, id types.InstanceID, fields map[string]any) *Record {
	r := &Record{id: id, fields: make(map[string]any, len(fields))}
	for k, v := range fields {
		r.fields[k] = v
	}
	r.Bind(r, m)
	return r
}

// ID returns the record identifier.
func (r *Record) ID() string { return string(r.id) }

// InstanceID returns the typed identifier.
func (r *Record) InstanceID() types.InstanceID { return r.id }

// Field returns the stored value of name, nil when unset.
func (r *Record) Field(name string) any { return r.fields[name] }

// String returns "model(id)".
func (r *Record) String() string {
	return fmt.Sprintf("%s(%s)", r.model.name, r.id)
}

// Put stores v under name and signals changed on the attribute.
// Dependent attributes are rejected with ErrDerivedProperty.
func (r *Record) Put(name string, v any) error {
	a, err := r.Attribute(name)
	if err != nil {
		return err
	}
	if err := writable(a.config); err != nil {
		return err
	}
	r.fields[name] = v
	a.Changed(v)
	return nil
}

// Add appends item to the set name and signals added.
func (r *Record) Add(name string, item Instance) error {
	s, err := r.Set(name)
	if err != nil {
		return err
	}
	if err := writable(s.config); err != nil {
		return err
	}
	items, err := asInstances(r.fields[name])
	if err != nil {
		return err
	}
	r.fields[name] = append(items, item)
	s.Added(item)
	return nil
}

// Remove deletes the first occurrence of item from the set name and
// signals removed. Reports false when item was not a member.
func (r *Record) Remove(name string, item Instance) (bool, error) {
	s, err := r.Set(name)
	if err != nil {
		return false, err
	}
	if err := writable(s.config); err != nil {
		return false, err
	}
	items, err := asInstances(r.fields[name])
	if err != nil {
		return false, err
	}
	for i, cur := range items {
		if filter.SameInstance(cur, item) {
			kept := make([]Instance, 0, len(items)-1)
			kept = append(kept, items[:i]...)
			r.fields[name] = append(kept, items[i+1:]...)
			s.Removed(item)
			return true, nil
		}
	}
	return false, nil
}

func writable(cfg *Config) error {
	if cfg.Derived() {
		return fmt.Errorf("%w: %s", types.ErrDerivedProperty, cfg)
	}
	return nil
}
