package schema

import (
	"fmt"
	"sort"

	"github.com/solatis/normprops/internal/filter"
	"github.com/solatis/normprops/internal/props"
)

/*
 * Applying a reloaded data file.
 *
 * Reloading builds a fresh Dataset with fresh record objects, but
 * subscribers hold properties of the live records. Sync therefore copies
 * the fresh state onto the live records through Put, Add and Remove, so
 * every difference is signalled on the objects being watched. References
 * are matched by ID, which is stable across loads, and always point at
 * live records afterwards.
 *
 * Records whose key is new, or whose model changed, get a fresh live
 * record. Records missing from the new file are dropped from the dataset;
 * references to them disappear with the properties that held them.
 */

// SyncReport lists what Sync changed, by record key.
type SyncReport struct {
	Added    []string
	Removed  []string
	Modified []string // "key#property"
}

// Empty reports whether nothing changed.
func (r *SyncReport) Empty() bool {
	return len(r.Added) == 0 && len(r.Removed) == 0 && len(r.Modified) == 0
}

// Sync updates d in place to match fresh.
func (d *Dataset) Sync(fresh *Dataset) (*SyncReport, error) {
	report := &SyncReport{}

	keys := fresh.Keys()
	for _, key := range keys {
		f := fresh.records[key]
		live, ok := d.records[key]
		if ok && live.ID() == f.ID() && live.Model() == f.Model() {
			continue
		}
		if ok {
			delete(d.keys, live.ID())
			report.Removed = append(report.Removed, key)
		}
		r := props.NewRecordWithID(f.Model(), f.InstanceID(), nil)
		d.records[key] = r
		d.keys[r.ID()] = key
		report.Added = append(report.Added, key)
	}

	for _, key := range d.Keys() {
		if _, ok := fresh.records[key]; !ok {
			delete(d.keys, d.records[key].ID())
			delete(d.records, key)
			report.Removed = append(report.Removed, key)
		}
	}

	for _, key := range keys {
		changed, err := d.syncRecord(d.records[key], fresh.records[key])
		if err != nil {
			return nil, fmt.Errorf("record %s: %w", key, err)
		}
		for _, name := range changed {
			report.Modified = append(report.Modified, key+"#"+name)
		}
	}

	sort.Strings(report.Removed)
	return report, nil
}

// syncRecord copies the stored properties of fresh onto live.
func (d *Dataset) syncRecord(live, fresh *props.Record) ([]string, error) {
	var changed []string
	for _, cfg := range live.Model().Configs() {
		if cfg.Derived() {
			continue
		}
		name := cfg.Name()

		if cfg.Shape() == props.ShapeAttribute {
			next := d.localize(fresh.Field(name))
			if sameValue(live.Field(name), next) {
				continue
			}
			if err := live.Put(name, next); err != nil {
				return nil, err
			}
			changed = append(changed, name)
			continue
		}

		modified, err := d.syncSet(live, fresh, name)
		if err != nil {
			return nil, err
		}
		if modified {
			changed = append(changed, name)
		}
	}
	return changed, nil
}

// syncSet applies set membership differences. Order changes alone are
// not signalled.
func (d *Dataset) syncSet(live, fresh *props.Record, name string) (bool, error) {
	oldItems, err := items(live, name)
	if err != nil {
		return false, err
	}
	newItems, err := items(fresh, name)
	if err != nil {
		return false, err
	}

	modified := false
	for _, old := range oldItems {
		if !containsInstance(newItems, old) {
			if _, err := live.Remove(name, old); err != nil {
				return false, err
			}
			modified = true
		}
	}
	for _, item := range newItems {
		if !containsInstance(oldItems, item) {
			if err := live.Add(name, d.localize(item).(props.Instance)); err != nil {
				return false, err
			}
			modified = true
		}
	}
	return modified, nil
}

// localize maps a record reference onto the live record with the same ID.
func (d *Dataset) localize(v any) any {
	id, ok := v.(filter.Identified)
	if !ok || filter.IsNil(v) {
		return v
	}
	if key, ok := d.keys[id.ID()]; ok {
		return d.records[key]
	}
	return v
}

func items(r *props.Record, name string) ([]props.Instance, error) {
	s, err := r.Set(name)
	if err != nil {
		return nil, err
	}
	return s.Value()
}

func containsInstance(list []props.Instance, item props.Instance) bool {
	for _, cur := range list {
		if filter.SameInstance(cur, item) {
			return true
		}
	}
	return false
}

func sameValue(a, b any) bool {
	_, ai := a.(filter.Identified)
	_, bi := b.(filter.Identified)
	if ai || bi {
		return filter.SameInstance(a, b) || (filter.IsNil(a) && filter.IsNil(b))
	}
	return filter.EqualValues(a, b)
}
