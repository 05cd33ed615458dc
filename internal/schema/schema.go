// Package schema loads model declarations and record data from YAML.
//
// A schema file declares models, their parents and their properties:
//
//	models:
//	  - name: Related
//	    attributes:
//	      - name: content
//	  - name: Item
//	    attributes:
//	      - name: attribute
//	      - name: association
//	        model: Related
//	      - name: label
//	        kind: Dependent
//	        sources: [attribute]
//	    sets:
//	      - name: set
//	        model: Related
//
// Kind defaults to Manual. Dependent properties declared in a file mirror
// exactly one source; derivations with custom logic are declared in Go.
package schema

import (
	"errors"
	"fmt"
	"os"

	"github.com/solatis/normprops/internal/props"
	"github.com/solatis/normprops/internal/types"
	"gopkg.in/yaml.v3"
)

// MaxFileSize bounds schema and data files read from disk (1MB).
const MaxFileSize = 1024 * 1024

// ErrFileTooLarge indicates a schema or data file exceeds MaxFileSize.
var ErrFileTooLarge = errors.New("file exceeds maximum size")

// File is the root of a schema document.
type File struct {
	Models []ModelSpec `yaml:"models"`
}

// ModelSpec declares one model.
type ModelSpec struct {
	Name       string         `yaml:"name"`
	Parent     string         `yaml:"parent,omitempty"`
	Attributes []PropertySpec `yaml:"attributes,omitempty"`
	Sets       []PropertySpec `yaml:"sets,omitempty"`
}

// PropertySpec declares one property.
type PropertySpec struct {
	Name    string   `yaml:"name"`
	Kind    string   `yaml:"kind,omitempty"`
	Model   string   `yaml:"model,omitempty"`
	Sources []string `yaml:"sources,omitempty"`
}

// Option customizes Build.
type Option func(*options)

type options struct {
	watch func(cfg PropertyRef, p props.Property) props.Watcher
}

// PropertyRef names a declared property for watch factories.
type PropertyRef struct {
	Model    string
	Property string
}

// WithWatch installs fn as the watcher factory of every Manual property.
func WithWatch(fn func(ref PropertyRef, p props.Property) props.Watcher) Option {
	return func(o *options) { o.watch = fn }
}

// Parse decodes a schema document.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}
	return &f, nil
}

// ReadFile reads and decodes a schema file.
func ReadFile(path string) (*File, error) {
	data, err := readLimited(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Load reads a schema file and builds its catalog.
func Load(path string, opts ...Option) (*props.Catalog, error) {
	f, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	return f.Build(opts...)
}

// Build declares every model of f in a new catalog. Models may reference
// each other in any order; parent cycles are rejected.
func (f *File) Build(opts ...Option) (*props.Catalog, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	specs := make(map[string]*ModelSpec, len(f.Models))
	for i := range f.Models {
		spec := &f.Models[i]
		if spec.Name == "" {
			return nil, fmt.Errorf("%w: model %d has no name", types.ErrInvalidDeclaration, i)
		}
		if _, dup := specs[spec.Name]; dup {
			return nil, fmt.Errorf("%w: %s", types.ErrDuplicateModel, spec.Name)
		}
		specs[spec.Name] = spec
	}

	b := &builder{
		specs:   specs,
		catalog: props.NewCatalog(),
		models:  make(map[string]*props.Model, len(specs)),
		state:   make(map[string]int, len(specs)),
		opts:    o,
	}

	// Models first, so properties can reference any model.
	for _, spec := range f.Models {
		if _, err := b.model(spec.Name); err != nil {
			return nil, err
		}
	}
	// Properties parents-first, so dependent sources resolve.
	for _, name := range b.order {
		if err := b.declare(specs[name]); err != nil {
			return nil, err
		}
	}
	return b.catalog, nil
}

const (
	unvisited = iota
	visiting
	done
)

type builder struct {
	specs   map[string]*ModelSpec
	catalog *props.Catalog
	models  map[string]*props.Model
	state   map[string]int
	order   []string
	opts    options
}

// model creates the named model after its ancestors.
func (b *builder) model(name string) (*props.Model, error) {
	switch b.state[name] {
	case done:
		return b.models[name], nil
	case visiting:
		return nil, fmt.Errorf("%w: parent cycle through %s", types.ErrInvalidDeclaration, name)
	}

	spec, ok := b.specs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrUnknownModel, name)
	}

	b.state[name] = visiting
	var parent *props.Model
	if spec.Parent != "" {
		p, err := b.model(spec.Parent)
		if err != nil {
			return nil, err
		}
		parent = p
	}

	m, err := b.catalog.New(name, parent)
	if err != nil {
		return nil, err
	}
	b.models[name] = m
	b.state[name] = done
	b.order = append(b.order, name)
	return m, nil
}

// declare adds spec's properties: Manual ones first, then derived ones
// in file order.
func (b *builder) declare(spec *ModelSpec) error {
	m := b.models[spec.Name]

	type pending struct {
		prop PropertySpec
		set  bool
	}
	var derived []pending

	for _, group := range []struct {
		props []PropertySpec
		set   bool
	}{{spec.Attributes, false}, {spec.Sets, true}} {
		for _, ps := range group.props {
			if kindOf(ps) != props.Manual {
				derived = append(derived, pending{prop: ps, set: group.set})
				continue
			}
			if err := b.declareOne(m, ps, group.set); err != nil {
				return err
			}
		}
	}

	for _, d := range derived {
		if err := b.declareOne(m, d.prop, d.set); err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) declareOne(m *props.Model, ps PropertySpec, set bool) error {
	kind := kindOf(ps)

	var params props.Params
	if kind == props.Dependent {
		if len(ps.Sources) != 1 {
			return fmt.Errorf("%w: %s#%s: file-declared dependents need exactly one source",
				types.ErrInvalidDeclaration, m.Name(), ps.Name)
		}
		params = props.Alias(ps.Sources[0])
	}

	if ps.Model != "" {
		related, ok := b.models[ps.Model]
		if !ok {
			return fmt.Errorf("%w: %s (model of %s#%s)", types.ErrUnknownModel, ps.Model, m.Name(), ps.Name)
		}
		params.Model = related
	}

	if kind == props.Manual && b.opts.watch != nil {
		ref := PropertyRef{Model: m.Name(), Property: ps.Name}
		watch := b.opts.watch
		params.Watch = func(p props.Property) props.Watcher { return watch(ref, p) }
	}

	var err error
	if set {
		_, err = m.DeclareSet(ps.Name, kind, params)
	} else {
		_, err = m.DeclareAttribute(ps.Name, kind, params)
	}
	return err
}

func kindOf(ps PropertySpec) string {
	if ps.Kind == "" {
		return props.Manual
	}
	return ps.Kind
}

// readLimited reads path, refusing files over MaxFileSize.
func readLimited(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Size() > MaxFileSize {
		return nil, fmt.Errorf("%w: %s (%d bytes)", ErrFileTooLarge, path, info.Size())
	}
	return os.ReadFile(path)
}
