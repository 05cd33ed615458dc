// internal/filter/filter.go
package filter

import (
	"fmt"
	"sort"
	"strings"
)

/*
 * Filter trees and predicate values.
 *
 * A Filter is an immutable predicate tree: AND and OR nodes over children,
 * and leaves pairing a property name with a Predicate. The zero Filter is
 * the empty AND, which every subject satisfies; it is the identity for
 * conjunction.
 *
 * Predicate is a tagged variant matched exhaustively by evaluators:
 *   - Literal: equality with a plain value (nil included)
 *   - Nested: a Filter applied to a related instance or to set items
 *   - Presence: association present / set non-empty (or its negation)
 *   - DirectInstance: identity match against a given instance
 *
 * Child order is preserved by every constructor so rendered filters and
 * evaluation order stay deterministic across identical inputs.
 */

// Kind distinguishes filter nodes.
type Kind int

const (
	KindAnd Kind = iota
	KindOr
	KindLeaf
)

// String returns the node kind name.
func (k Kind) String() string {
	switch k {
	case KindAnd:
		return "and"
	case KindOr:
		return "or"
	case KindLeaf:
		return "leaf"
	default:
		return "unknown"
	}
}

// PredicateKind tags the variant held by a Predicate.
type PredicateKind int

const (
	Literal PredicateKind = iota
	Nested
	Presence
	DirectInstance
)

// String returns the predicate kind name.
func (k PredicateKind) String() string {
	switch k {
	case Literal:
		return "literal"
	case Nested:
		return "nested"
	case Presence:
		return "presence"
	case DirectInstance:
		return "instance"
	default:
		return "unknown"
	}
}

// Predicate is the right-hand side of a leaf.
type Predicate struct {
	kind    PredicateKind
	value   any     // Literal value or DirectInstance instance
	nested  *Filter // Nested only
	present bool    // Presence only
}

// Eq returns a Literal predicate.
func Eq(value any) Predicate {
	return Predicate{kind: Literal, value: value}
}

// Sub returns a Nested predicate.
func Sub(f Filter) Predicate {
	return Predicate{kind: Nested, nested: &f}
}

// Has returns a Presence predicate.
func Has(present bool) Predicate {
	return Predicate{kind: Presence, present: present}
}

// Is returns a DirectInstance predicate.
func Is(instance any) Predicate {
	return Predicate{kind: DirectInstance, value: instance}
}

// Kind returns the predicate variant.
func (p Predicate) Kind() PredicateKind {
	return p.kind
}

// Value returns the literal value (Literal) or the instance (DirectInstance).
func (p Predicate) Value() any {
	return p.value
}

// Filter returns the nested filter and true for Nested predicates.
func (p Predicate) Filter() (Filter, bool) {
	if p.kind != Nested || p.nested == nil {
		return Filter{}, false
	}
	return *p.nested, true
}

// Present returns the flag of a Presence predicate.
func (p Predicate) Present() bool {
	return p.present
}

// String renders the predicate.
func (p Predicate) String() string {
	switch p.kind {
	case Literal:
		return fmt.Sprintf("%#v", p.value)
	case Nested:
		if p.nested.kind == KindOr {
			return "{" + p.nested.String() + "}"
		}
		return "{" + p.nested.body() + "}"
	case Presence:
		if p.present {
			return "present"
		}
		return "absent"
	case DirectInstance:
		if id, ok := p.value.(Identified); ok {
			return "is(" + id.ID() + ")"
		}
		return fmt.Sprintf("is(%v)", p.value)
	default:
		return "?"
	}
}

// Identified is implemented by instances that carry a stable identifier.
type Identified interface {
	ID() string
}

// Ref is an identifier-only stand-in for an instance, produced when a
// DirectInstance predicate is decoded from the wire.
type Ref string

// ID returns the referenced identifier.
func (r Ref) ID() string {
	return string(r)
}

// Filter is an immutable predicate tree.
type Filter struct {
	kind     Kind
	children []Filter
	property string
	pred     Predicate
}

// Where returns a leaf testing property against p.
func Where(property string, p Predicate) Filter {
	return Filter{kind: KindLeaf, property: property, pred: p}
}

// And conjoins filters. Empty ANDs are dropped and a single remaining
// child is returned as is.
func And(children ...Filter) Filter {
	kept := make([]Filter, 0, len(children))
	for _, c := range children {
		if c.IsEmpty() {
			continue
		}
		kept = append(kept, c)
	}
	if len(kept) == 1 {
		return kept[0]
	}
	if len(kept) == 0 {
		return Filter{}
	}
	return Filter{kind: KindAnd, children: kept}
}

// Or disjoins filters. A single child is returned as is; no children
// yields a filter nothing satisfies.
func Or(children ...Filter) Filter {
	if len(children) == 1 {
		return children[0]
	}
	kept := make([]Filter, len(children))
	copy(kept, children)
	return Filter{kind: KindOr, children: kept}
}

// Match builds the conjunction of one leaf per map entry, ordered by key.
// Values map to predicates: Predicate as is, Filter and map[string]any to
// Nested, bool to Presence, instances (Subject or Identified) to
// DirectInstance, anything else (nil included) to Literal.
func Match(fields map[string]any) Filter {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	leaves := make([]Filter, 0, len(keys))
	for _, k := range keys {
		leaves = append(leaves, Where(k, PredicateOf(fields[k])))
	}
	if len(leaves) == 1 {
		return leaves[0]
	}
	if len(leaves) == 0 {
		return Filter{}
	}
	return Filter{kind: KindAnd, children: leaves}
}

// PredicateOf converts a plain value into a Predicate using the Match rules.
func PredicateOf(v any) Predicate {
	switch x := v.(type) {
	case Predicate:
		return x
	case Filter:
		return Sub(x)
	case map[string]any:
		return Sub(Match(x))
	case bool:
		return Has(x)
	default:
		if IsInstance(v) {
			return Is(v)
		}
		return Eq(v)
	}
}

// And returns f conjoined with other. Either side being empty yields the
// other unchanged; an AND receiver gains other as its last child.
func (f Filter) And(other Filter) Filter {
	if other.IsEmpty() {
		return f
	}
	if f.IsEmpty() {
		return other
	}
	if f.kind == KindAnd {
		children := make([]Filter, 0, len(f.children)+1)
		children = append(children, f.children...)
		return Filter{kind: KindAnd, children: append(children, other)}
	}
	return Filter{kind: KindAnd, children: []Filter{f, other}}
}

// Or returns f disjoined with other. An OR receiver gains other as its
// last child.
func (f Filter) Or(other Filter) Filter {
	if f.kind == KindOr {
		children := make([]Filter, 0, len(f.children)+1)
		children = append(children, f.children...)
		return Filter{kind: KindOr, children: append(children, other)}
	}
	return Filter{kind: KindOr, children: []Filter{f, other}}
}

// Kind returns the node kind.
func (f Filter) Kind() Kind {
	return f.kind
}

// Children returns a copy of the node's children (nil for leaves).
func (f Filter) Children() []Filter {
	if f.kind == KindLeaf {
		return nil
	}
	out := make([]Filter, len(f.children))
	copy(out, f.children)
	return out
}

// Leaf returns the property and predicate of a leaf.
func (f Filter) Leaf() (string, Predicate) {
	return f.property, f.pred
}

// IsEmpty reports whether f is the empty AND.
func (f Filter) IsEmpty() bool {
	return f.kind == KindAnd && len(f.children) == 0
}

// String renders the filter, e.g. and(attribute="a1", association={content="x"}).
func (f Filter) String() string {
	switch f.kind {
	case KindLeaf:
		return f.body()
	default:
		return f.kind.String() + "(" + f.body() + ")"
	}
}

// body renders the node without the outer and(...) wrapper so nested
// conjunctions read as {a=1, b=2}.
func (f Filter) body() string {
	if f.kind == KindLeaf {
		return f.property + "=" + f.pred.String()
	}
	parts := make([]string, len(f.children))
	for i, c := range f.children {
		parts[i] = c.String()
	}
	return strings.Join(parts, ", ")
}

// Equal reports structural equality of two filters. Literals compare with
// the same numeric tolerance as evaluation; instances compare by identity.
func Equal(a, b Filter) bool {
	if a.kind != b.kind {
		return false
	}
	if a.kind == KindLeaf {
		return a.property == b.property && equalPredicates(a.pred, b.pred)
	}
	if len(a.children) != len(b.children) {
		return false
	}
	for i := range a.children {
		if !Equal(a.children[i], b.children[i]) {
			return false
		}
	}
	return true
}

// equalPredicates compares predicates variant by variant.
func equalPredicates(a, b Predicate) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case Literal:
		return EqualValues(a.value, b.value)
	case Nested:
		return Equal(*a.nested, *b.nested)
	case Presence:
		return a.present == b.present
	case DirectInstance:
		return SameInstance(a.value, b.value)
	default:
		return false
	}
}
