// internal/filter/evaluate.go
package filter

/*
 * Filter evaluation.
 *
 * Evaluates a Filter against a Subject. AND is true iff every child is
 * true and stops at the first false child; OR is true iff any child is
 * true and stops at the first true child. A leaf delegates to the
 * subject's Match, which owns property lookup and predicate semantics.
 *
 * Errors from Match (unknown property names in particular) abort
 * evaluation and propagate unchanged: a typo in a filter is a caller
 * error, never a silent non-match.
 */

// Subject is anything a leaf can be tested against.
type Subject interface {
	// Match tests the named property against p.
	Match(property string, p Predicate) (bool, error)
}

// SatisfiedBy reports whether s satisfies f.
func (f Filter) SatisfiedBy(s Subject) (bool, error) {
	switch f.kind {
	case KindLeaf:
		return s.Match(f.property, f.pred)
	case KindOr:
		for _, c := range f.children {
			ok, err := c.SatisfiedBy(s)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	default:
		for _, c := range f.children {
			ok, err := c.SatisfiedBy(s)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil
	}
}

// Leaves calls fn for every leaf of f in order, stopping at the first error.
func (f Filter) Leaves(fn func(property string, p Predicate) error) error {
	if f.kind == KindLeaf {
		return fn(f.property, f.pred)
	}
	for _, c := range f.children {
		if err := c.Leaves(fn); err != nil {
			return err
		}
	}
	return nil
}

// Rewrite rebuilds f bottom-up, replacing every leaf with fn's result.
// AND and OR structure is kept; And/Or collapsing rules apply.
func (f Filter) Rewrite(fn func(property string, p Predicate) (Filter, error)) (Filter, error) {
	if f.kind == KindLeaf {
		return fn(f.property, f.pred)
	}
	children := make([]Filter, 0, len(f.children))
	for _, c := range f.children {
		rc, err := c.Rewrite(fn)
		if err != nil {
			return Filter{}, err
		}
		children = append(children, rc)
	}
	if f.kind == KindOr {
		return Or(children...), nil
	}
	return And(children...), nil
}
