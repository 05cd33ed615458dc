package schema

import (
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/solatis/normprops/internal/props"
	"github.com/solatis/normprops/internal/types"
	"gopkg.in/yaml.v3"
)

/*
 * Record data files.
 *
 *   records:
 *     owner:
 *       model: Owner
 *       fields:
 *         items: [{ref: item1}, {ref: item2}]
 *     item1:
 *       model: Item
 *       fields:
 *         attribute: a1
 *         association: {ref: assoc1}
 *
 * Keys name records within the file; {ref: key} links to another record.
 * Records without an explicit id get a name-based UUID derived from their
 * key, so reloading a file yields the same identities.
 */

// ErrUnknownRecord indicates a {ref: key} names no record in the file.
var ErrUnknownRecord = errors.New("unknown record")

// DataFile is the root of a record document.
type DataFile struct {
	Records map[string]RecordSpec `yaml:"records"`
}

// RecordSpec describes one record.
type RecordSpec struct {
	ID     string         `yaml:"id,omitempty"`
	Model  string         `yaml:"model"`
	Fields map[string]any `yaml:"fields,omitempty"`
}

// Dataset holds the records loaded from a data file.
type Dataset struct {
	records map[string]*props.Record
	keys    map[string]string // record ID -> key
}

// Record returns the record stored under key.
func (d *Dataset) Record(key string) (*props.Record, bool) {
	r, ok := d.records[key]
	return r, ok
}

// Keys returns the record keys, sorted.
func (d *Dataset) Keys() []string {
	keys := make([]string, 0, len(d.records))
	for k := range d.records {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// KeyOf returns the key of the record with the given ID.
func (d *Dataset) KeyOf(id string) (string, bool) {
	k, ok := d.keys[id]
	return k, ok
}

// Len returns the number of records.
func (d *Dataset) Len() int { return len(d.records) }

// ParseRecords decodes a record document against catalog.
func ParseRecords(data []byte, catalog *props.Catalog) (*Dataset, error) {
	var f DataFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse records: %w", err)
	}
	return f.Build(catalog)
}

// LoadRecords reads a record file.
func LoadRecords(path string, catalog *props.Catalog) (*Dataset, error) {
	data, err := readLimited(path)
	if err != nil {
		return nil, err
	}
	return ParseRecords(data, catalog)
}

// idNamespace seeds the name-based IDs of records without an explicit id.
var idNamespace = uuid.MustParse("6f1c2b7e-3d4a-5e8f-9a0b-1c2d3e4f5a6b")

// Build creates the records of f. Records are created first and linked in
// a second pass so references may point anywhere in the file.
func (f *DataFile) Build(catalog *props.Catalog) (*Dataset, error) {
	ds := &Dataset{
		records: make(map[string]*props.Record, len(f.Records)),
		keys:    make(map[string]string, len(f.Records)),
	}

	keys := make([]string, 0, len(f.Records))
	for k := range f.Records {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		spec := f.Records[key]
		m, err := catalog.Model(spec.Model)
		if err != nil {
			return nil, fmt.Errorf("record %s: %w", key, err)
		}

		id := types.InstanceID(uuid.NewSHA1(idNamespace, []byte(key)).String())
		if spec.ID != "" {
			if id, err = types.ParseInstanceID(spec.ID); err != nil {
				return nil, fmt.Errorf("record %s: id: %w", key, err)
			}
		}
		r := props.NewRecordWithID(m, id, nil)
		ds.records[key] = r
		ds.keys[r.ID()] = key
	}

	for _, key := range keys {
		spec := f.Records[key]
		r := ds.records[key]

		names := make([]string, 0, len(spec.Fields))
		for name := range spec.Fields {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			if err := ds.assign(r, name, spec.Fields[name]); err != nil {
				return nil, fmt.Errorf("record %s: %w", key, err)
			}
		}
	}
	return ds, nil
}

// assign stores one decoded field on r, resolving references.
func (d *Dataset) assign(r *props.Record, name string, raw any) error {
	cfg, err := r.Model().Config(name)
	if err != nil {
		return err
	}
	if cfg.Derived() {
		return fmt.Errorf("%w: %s", types.ErrDerivedProperty, cfg)
	}

	if cfg.Shape() == props.ShapeSet {
		list, ok := raw.([]any)
		if !ok && raw != nil {
			return fmt.Errorf("%w: %s expects a list of refs", types.ErrNotCollection, cfg)
		}
		for _, item := range list {
			target, isRef, err := d.deref(item)
			if err != nil {
				return err
			}
			if !isRef {
				return fmt.Errorf("%w: %s items must be refs", types.ErrNotCollection, cfg)
			}
			if err := r.Add(name, target); err != nil {
				return err
			}
		}
		return nil
	}

	target, isRef, err := d.deref(raw)
	if err != nil {
		return err
	}
	if isRef {
		return r.Put(name, target)
	}
	return r.Put(name, raw)
}

// deref resolves a {ref: key} value. Other values report isRef false.
func (d *Dataset) deref(raw any) (*props.Record, bool, error) {
	m, ok := raw.(map[string]any)
	if !ok || len(m) != 1 {
		return nil, false, nil
	}
	key, ok := m["ref"].(string)
	if !ok {
		return nil, false, nil
	}
	target, ok := d.records[key]
	if !ok {
		return nil, true, fmt.Errorf("%w: %q", ErrUnknownRecord, key)
	}
	return target, true, nil
}
