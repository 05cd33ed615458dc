// internal/props/dependent.go
package props

import (
	"fmt"

	"github.com/solatis/normprops/internal/filter"
	"github.com/solatis/normprops/internal/types"
)

/*
 * Dependent properties.
 *
 * A Dependent property derives its value from named sources on the same
 * owner. Filtering never inspects the derived value directly: the
 * declaration's SourcesFilter rewrites the predicate into a filter over the
 * sources, which is then evaluated against the owner. A Nested predicate on
 * an attribute with a ValueFilter is first conjoined with the conditions
 * the ValueFilter derives from the current value; a directly given
 * instance must satisfy those conditions itself.
 *
 * The default watcher listens to changed on every source and re-signals
 * changed on the dependent property, carrying the recomputed value for
 * attributes.
 */

func init() {
	MustRegisterKind(Kind{
		Name:      Dependent,
		Attribute: newDependentAttribute,
		Set:       newDependentSet,
	})
}

// Sources holds the current source values of a Dependent property: the
// attribute value or the []Instance of a set, keyed by source name.
type Sources map[string]any

// Value returns the named source value.
func (s Sources) Value(name string) any {
	return s[name]
}

// Instance returns the named source as an instance, nil otherwise.
func (s Sources) Instance(name string) Instance {
	inst, ok := s[name].(Instance)
	if !ok || filter.IsNil(inst) {
		return nil
	}
	return inst
}

// Instances returns the named source as an item list, nil otherwise.
func (s Sources) Instances(name string) []Instance {
	items, _ := s[name].([]Instance)
	return items
}

// Alias declares a Dependent property mirroring a single source. Usable
// for both attributes and sets.
func Alias(source string) Params {
	return Params{
		Sources: []string{source},
		Value: func(src Sources) (any, error) {
			return src.Value(source), nil
		},
		Items: func(src Sources) ([]Instance, error) {
			return asInstances(src.Value(source))
		},
	}
}

type dependent struct {
	name          string
	sources       []string
	sourcesFilter func(filter.Predicate) (filter.Filter, error)
}

func newDependent(cfg *Config, params Params) (dependent, error) {
	if len(params.Sources) == 0 {
		return dependent{}, fmt.Errorf("%w: %s: dependent property has no sources", types.ErrInvalidDeclaration, cfg)
	}
	for _, src := range params.Sources {
		if src == cfg.name {
			return dependent{}, fmt.Errorf("%w: %s: depends on itself", types.ErrInvalidDeclaration, cfg)
		}
		if !cfg.owner.Owns(src) {
			return dependent{}, fmt.Errorf("%w: %s#%s (source of %s)", types.ErrUnknownProperty, cfg.owner.name, src, cfg.name)
		}
	}

	sf := params.SourcesFilter
	if sf == nil {
		if len(params.Sources) != 1 {
			return dependent{}, fmt.Errorf("%w: %s: multiple sources need a sources filter", types.ErrInvalidDeclaration, cfg)
		}
		src := params.Sources[0]
		sf = func(p filter.Predicate) (filter.Filter, error) {
			return filter.Where(src, p), nil
		}
	}

	sources := make([]string, len(params.Sources))
	copy(sources, params.Sources)
	return dependent{name: cfg.name, sources: sources, sourcesFilter: sf}, nil
}

// Sources returns the declared source names.
func (d *dependent) Sources() []string {
	out := make([]string, len(d.sources))
	copy(out, d.sources)
	return out
}

// ResolveFilter maps p onto the sources.
func (d *dependent) ResolveFilter(p filter.Predicate) (filter.Filter, error) {
	return d.sourcesFilter(p)
}

// Watcher returns the default sources watcher.
func (d *dependent) Watcher(p Property) Watcher {
	return &sourcesWatcher{target: p, sources: d.sources}
}

// read collects the current source values of owner.
func (d *dependent) read(owner Instance) (Sources, error) {
	src := make(Sources, len(d.sources))
	for _, name := range d.sources {
		prop, err := owner.Property(name)
		if err != nil {
			return nil, err
		}
		switch p := prop.(type) {
		case *Attribute:
			v, err := p.Value()
			if err != nil {
				return nil, err
			}
			src[name] = v
		case *Set:
			items, err := p.Value()
			if err != nil {
				return nil, err
			}
			src[name] = items
		}
	}
	return src, nil
}

// satisfies evaluates p, rewritten onto the sources, against owner.
func (d *dependent) satisfies(owner Instance, p filter.Predicate) (bool, error) {
	f, err := d.sourcesFilter(p)
	if err != nil {
		return false, err
	}
	return f.SatisfiedBy(owner)
}

type dependentAttribute struct {
	dependent
	value       func(Sources) (any, error)
	valueFilter func(any) filter.Filter
}

func newDependentAttribute(cfg *Config, params Params) (AttributeBehavior, error) {
	d, err := newDependent(cfg, params)
	if err != nil {
		return nil, err
	}
	if params.Value == nil {
		return nil, fmt.Errorf("%w: %s: dependent attribute has no value function", types.ErrInvalidDeclaration, cfg)
	}
	return &dependentAttribute{dependent: d, value: params.Value, valueFilter: params.ValueFilter}, nil
}

func (d *dependentAttribute) Value(owner Instance) (any, error) {
	src, err := d.read(owner)
	if err != nil {
		return nil, err
	}
	return d.value(src)
}

func (d *dependentAttribute) Satisfies(a *Attribute, p filter.Predicate) (bool, error) {
	if p.Kind() == filter.Literal && filter.IsInstance(p.Value()) {
		p = filter.Is(p.Value())
	}
	if d.valueFilter == nil {
		return d.satisfies(a.owner, p)
	}

	switch p.Kind() {
	case filter.Nested:
		v, err := a.Value()
		if err != nil {
			return false, err
		}
		nested, _ := p.Filter()
		p = filter.Sub(nested.And(d.valueFilter(v)))
	case filter.DirectInstance:
		v, err := a.Value()
		if err != nil {
			return false, err
		}
		ok, err := givenSatisfies(p.Value(), v, d.valueFilter(v))
		if err != nil || !ok {
			return false, err
		}
	}
	return d.satisfies(a.owner, p)
}

// givenSatisfies evaluates vf against the directly given instance. A given
// instance that cannot be inspected, such as a decoded Ref, is evaluated
// through the current value when both denote the same instance.
func givenSatisfies(given, current any, vf filter.Filter) (bool, error) {
	subject, ok := given.(filter.Subject)
	if !ok || filter.IsNil(given) {
		if !filter.SameInstance(given, current) {
			return false, nil
		}
		if subject, ok = current.(filter.Subject); !ok {
			return false, nil
		}
	}
	return vf.SatisfiedBy(subject)
}

type dependentSet struct {
	dependent
	items func(Sources) ([]Instance, error)
}

func newDependentSet(cfg *Config, params Params) (SetBehavior, error) {
	d, err := newDependent(cfg, params)
	if err != nil {
		return nil, err
	}
	if params.Items == nil {
		return nil, fmt.Errorf("%w: %s: dependent set has no items function", types.ErrInvalidDeclaration, cfg)
	}
	return &dependentSet{dependent: d, items: params.Items}, nil
}

func (d *dependentSet) Items(owner Instance) ([]Instance, error) {
	src, err := d.read(owner)
	if err != nil {
		return nil, err
	}
	return d.items(src)
}

// sourcesWatcher re-signals changed on target whenever a source changes.
type sourcesWatcher struct {
	target  Property
	sources []string
	subs    []*Subscription
}

func (w *sourcesWatcher) Watch() {
	owner := w.target.Owner()
	for _, name := range w.sources {
		src, err := owner.Property(name)
		if err != nil {
			// Sources are checked at declaration; a subtype can only
			// shadow them, never remove them.
			continue
		}
		w.subs = append(w.subs, src.On(EventChanged, w.forward))
	}
}

func (w *sourcesWatcher) Cancel() {
	for _, s := range w.subs {
		s.Cancel()
	}
	w.subs = nil
}

func (w *sourcesWatcher) forward(...any) {
	a, ok := w.target.(*Attribute)
	if !ok {
		w.target.Trigger(EventChanged)
		return
	}
	v, err := a.Value()
	if err != nil {
		// A failing derivation has no value to report; listeners see
		// the failure on their next read.
		return
	}
	a.Changed(v)
}
