// internal/props/resolve.go
package props

import (
	"github.com/solatis/normprops/internal/filter"
	"github.com/solatis/normprops/internal/types"
)

/*
 * Dependency resolution.
 *
 * ResolveDependent rewrites a filter so that it names only stored
 * properties. Leaves over Dependent properties are replaced by their
 * sources filter, which is resolved again against the same model since
 * sources may themselves be dependent. Nested predicates on properties
 * with a related model are resolved against that model. Everything else
 * passes through.
 *
 * Every name is looked up, so an unknown property anywhere in the tree
 * fails the whole resolution with ErrUnknownProperty. Dependency chains and
 * nesting together are bounded by MaxResolveDepth to reject cycles built
 * from custom sources filters.
 */

// ResolveDependent rewrites f, expressed against m, onto stored properties.
func ResolveDependent(f filter.Filter, m *Model) (filter.Filter, error) {
	return resolve(f, m, 0)
}

func resolve(f filter.Filter, m *Model, depth int) (filter.Filter, error) {
	if depth > types.MaxResolveDepth {
		return filter.Filter{}, types.ErrResolveTooDeep
	}

	return f.Rewrite(func(name string, p filter.Predicate) (filter.Filter, error) {
		cfg, err := m.Config(name)
		if err != nil {
			return filter.Filter{}, err
		}

		if cfg.Derived() {
			sf, err := cfg.ResolveFilter(p)
			if err != nil {
				return filter.Filter{}, err
			}
			return resolve(sf, m, depth+1)
		}

		nested, ok := p.Filter()
		if !ok || cfg.model == nil {
			return filter.Where(name, p), nil
		}
		rn, err := resolve(nested, cfg.model, depth+1)
		if err != nil {
			return filter.Filter{}, err
		}
		return filter.Where(name, filter.Sub(rn)), nil
	})
}
