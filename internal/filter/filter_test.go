// internal/filter/filter_test.go
package filter

import (
	"errors"
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

var errNoSuchField = errors.New("no such field")

// doc is a minimal Subject over plain maps. Nested documents are docs.
type doc map[string]any

func (d doc) Match(property string, p Predicate) (bool, error) {
	v, ok := d[property]
	if !ok {
		return false, fmt.Errorf("%w: %s", errNoSuchField, property)
	}
	switch p.Kind() {
	case Literal:
		return EqualValues(v, p.Value()), nil
	case Presence:
		return !IsNil(v) == p.Present(), nil
	case Nested:
		sub, ok := v.(doc)
		if !ok {
			return false, nil
		}
		f, _ := p.Filter()
		return f.SatisfiedBy(sub)
	case DirectInstance:
		return SameInstance(v, p.Value()), nil
	}
	return false, nil
}

type named struct{ id string }

func (n *named) ID() string { return n.id }

func TestAnd_Collapsing(t *testing.T) {
	a := Where("a", Eq(1))
	b := Where("b", Eq(2))

	if got := And(); !got.IsEmpty() {
		t.Errorf("And() = %v, want empty", got)
	}
	if got := And(Filter{}, a, Filter{}); !Equal(got, a) {
		t.Errorf("And(empty, a, empty) = %v, want %v", got, a)
	}
	got := And(a, b)
	if got.Kind() != KindAnd || len(got.Children()) != 2 {
		t.Errorf("And(a, b) = %v, want and of two children", got)
	}
	if got.String() != "and(a=1, b=2)" {
		t.Errorf("String() = %q, want %q", got.String(), "and(a=1, b=2)")
	}
}

func TestOr_Collapsing(t *testing.T) {
	a := Where("a", Eq(1))

	if got := Or(a); !Equal(got, a) {
		t.Errorf("Or(a) = %v, want %v", got, a)
	}
	none := Or()
	if none.Kind() != KindOr || none.IsEmpty() {
		t.Fatalf("Or() = %v, want empty or", none)
	}
	ok, err := none.SatisfiedBy(doc{"a": 1})
	if err != nil {
		t.Fatalf("SatisfiedBy() error = %v", err)
	}
	if ok {
		t.Errorf("Or() satisfied, want nothing to satisfy it")
	}
}

func TestFilter_MethodComposition(t *testing.T) {
	a := Where("a", Eq(1))
	b := Where("b", Eq(2))
	c := Where("c", Eq(3))

	if got := (Filter{}).And(a); !Equal(got, a) {
		t.Errorf("empty.And(a) = %v, want %v", got, a)
	}
	if got := a.And(Filter{}); !Equal(got, a) {
		t.Errorf("a.And(empty) = %v, want %v", got, a)
	}

	ab := a.And(b)
	abc := ab.And(c)
	if len(abc.Children()) != 3 {
		t.Errorf("a.And(b).And(c) children = %d, want 3", len(abc.Children()))
	}
	if len(ab.Children()) != 2 {
		t.Errorf("receiver mutated: a.And(b) children = %d, want 2", len(ab.Children()))
	}

	or := a.Or(b).Or(c)
	if or.Kind() != KindOr || len(or.Children()) != 3 {
		t.Errorf("a.Or(b).Or(c) = %v, want or of three", or)
	}
	if or.String() != "or(a=1, b=2, c=3)" {
		t.Errorf("String() = %q", or.String())
	}
}

func TestMatch_Predicates(t *testing.T) {
	inner := Where("content", Eq("x"))
	f := Match(map[string]any{
		"b":      true,
		"a":      "v",
		"nested": map[string]any{"content": "x"},
		"sub":    inner,
		"none":   nil,
		"exact":  Is(&named{id: "n1"}),
		"ref":    Ref("r1"),
		"plain":  &named{id: "n2"},
	})

	want := []struct {
		property string
		kind     PredicateKind
	}{
		{"a", Literal},
		{"b", Presence},
		{"exact", DirectInstance},
		{"nested", Nested},
		{"none", Literal},
		{"plain", DirectInstance},
		{"ref", DirectInstance},
		{"sub", Nested},
	}

	children := f.Children()
	if len(children) != len(want) {
		t.Fatalf("Match() children = %d, want %d", len(children), len(want))
	}
	for i, w := range want {
		name, p := children[i].Leaf()
		if name != w.property || p.Kind() != w.kind {
			t.Errorf("child %d = %s/%v, want %s/%v", i, name, p.Kind(), w.property, w.kind)
		}
	}

	if got := Match(nil); !got.IsEmpty() {
		t.Errorf("Match(nil) = %v, want empty", got)
	}
	if got := Match(map[string]any{"a": 1}); got.Kind() != KindLeaf {
		t.Errorf("Match(single) kind = %v, want leaf", got.Kind())
	}
}

func TestSatisfiedBy(t *testing.T) {
	owner := &named{id: "o1"}
	subject := doc{
		"attribute":   "a1",
		"count":       3,
		"association": doc{"content": "association1"},
		"missing":     nil,
		"owner":       owner,
	}

	tests := []struct {
		name   string
		filter Filter
		want   bool
	}{
		{"empty filter", Filter{}, true},
		{"literal match", Where("attribute", Eq("a1")), true},
		{"literal mismatch", Where("attribute", Eq("a2")), false},
		{"numeric coercion", Where("count", Eq(float64(3))), true},
		{"nil literal", Where("missing", Eq(nil)), true},
		{"presence", Where("association", Has(true)), true},
		{"absence", Where("missing", Has(false)), true},
		{"nested", Where("association", Sub(Where("content", Eq("association1")))), true},
		{"nested mismatch", Where("association", Sub(Where("content", Eq("other")))), false},
		{"identity", Where("owner", Is(owner)), true},
		{"identity by ref", Where("owner", Is(Ref("o1"))), true},
		{"identity mismatch", Where("owner", Is(&named{id: "o2"})), false},
		{"and short circuit", And(Where("attribute", Eq("a2")), Where("nosuch", Eq(1))), false},
		{"or short circuit", Or(Where("attribute", Eq("a1")), Where("nosuch", Eq(1))), true},
		{"or none true", Or(Where("attribute", Eq("x")), Where("count", Eq(4))), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.filter.SatisfiedBy(subject)
			if err != nil {
				t.Fatalf("SatisfiedBy() error = %v, want nil", err)
			}
			if got != tt.want {
				t.Errorf("SatisfiedBy(%v) = %v, want %v", tt.filter, got, tt.want)
			}
		})
	}
}

func TestSatisfiedBy_PropagatesErrors(t *testing.T) {
	f := And(Where("attribute", Eq("a1")), Where("nosuch", Eq(1)))
	_, err := f.SatisfiedBy(doc{"attribute": "a1"})
	if !errors.Is(err, errNoSuchField) {
		t.Errorf("SatisfiedBy() error = %v, want errNoSuchField", err)
	}
}

func TestRewrite(t *testing.T) {
	f := And(
		Where("computed", Eq("x")),
		Or(Where("other", Eq(1)), Where("computed", Has(true))),
	)

	got, err := f.Rewrite(func(name string, p Predicate) (Filter, error) {
		if name == "computed" {
			return Where("raw", p), nil
		}
		return Where(name, p), nil
	})
	if err != nil {
		t.Fatalf("Rewrite() error = %v", err)
	}

	want := And(
		Where("raw", Eq("x")),
		Or(Where("other", Eq(1)), Where("raw", Has(true))),
	)
	if !Equal(got, want) {
		t.Errorf("Rewrite() = %v, want %v", got, want)
	}

	// Leaves rewritten to empty filters disappear from conjunctions.
	dropped, err := f.Rewrite(func(name string, p Predicate) (Filter, error) {
		if name == "computed" {
			return Filter{}, nil
		}
		return Where(name, p), nil
	})
	if err != nil {
		t.Fatalf("Rewrite() error = %v", err)
	}
	if dropped.Kind() != KindOr {
		t.Errorf("Rewrite() dropping leaves = %v, want the remaining or", dropped)
	}
}

func TestEqual(t *testing.T) {
	a := &named{id: "a"}
	tests := []struct {
		name string
		x, y Filter
		want bool
	}{
		{"empty", Filter{}, And(), true},
		{"numeric literals", Where("n", Eq(1)), Where("n", Eq(1.0)), true},
		{"different property", Where("n", Eq(1)), Where("m", Eq(1)), false},
		{"different kinds", Where("n", Eq(true)), Where("n", Has(true)), false},
		{"instances", Where("n", Is(a)), Where("n", Is(Ref("a"))), true},
		{"nested", Where("n", Sub(Where("c", Eq("x")))), Where("n", Sub(Where("c", Eq("x")))), true},
		{"and vs or", And(Where("a", Eq(1)), Where("b", Eq(1))), Or(Where("a", Eq(1)), Where("b", Eq(1))), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Equal(tt.x, tt.y); got != tt.want {
				t.Errorf("Equal(%v, %v) = %v, want %v", tt.x, tt.y, got, tt.want)
			}
		})
	}
}

func TestPredicate_String(t *testing.T) {
	tests := []struct {
		p    Predicate
		want string
	}{
		{Eq("x"), `"x"`},
		{Eq(nil), "<nil>"},
		{Has(true), "present"},
		{Has(false), "absent"},
		{Is(Ref("r1")), "is(r1)"},
		{Sub(Match(map[string]any{"a": 1, "b": 2})), "{a=1, b=2}"},
		{Sub(Or(Where("a", Eq(1)), Where("b", Eq(2)))), "{or(a=1, b=2)}"},
	}
	for _, tt := range tests {
		if got := tt.p.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

// genLeaf produces leaves over a small property universe.
func genLeaf() gopter.Gen {
	return gopter.CombineGens(
		gen.OneConstOf("attribute", "count", "association", "missing"),
		gen.IntRange(0, 3),
		gen.IntRange(0, 4),
	).Map(func(vals []any) Filter {
		name := vals[0].(string)
		switch vals[1].(int) {
		case 0:
			return Where(name, Eq(vals[2].(int)))
		case 1:
			return Where(name, Has(vals[2].(int)%2 == 0))
		case 2:
			return Where(name, Eq("a1"))
		default:
			return Where(name, Eq(nil))
		}
	})
}

// Property-based test: the empty filter is the identity for conjunction
func TestAnd_PropertyIdentity(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	subject := doc{"attribute": "a1", "count": 2, "association": doc{}, "missing": nil}

	properties.Property("f.And(empty) and empty.And(f) evaluate like f", prop.ForAll(
		func(leaves []Filter, useOr bool) bool {
			var f Filter
			if useOr {
				f = Or(leaves...)
			} else {
				f = And(leaves...)
			}

			want, err := f.SatisfiedBy(subject)
			if err != nil {
				return false
			}
			left, err := f.And(Filter{}).SatisfiedBy(subject)
			if err != nil {
				return false
			}
			right, err := (Filter{}).And(f).SatisfiedBy(subject)
			if err != nil {
				return false
			}
			return left == want && right == want
		},
		gen.SliceOfN(3, genLeaf()),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

// Property-based test: conjunction is associative under evaluation
func TestAnd_PropertyAssociative(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	subject := doc{"attribute": "a1", "count": 1, "association": nil, "missing": nil}

	properties.Property("(a and b) and c == a and (b and c)", prop.ForAll(
		func(a, b, c Filter) bool {
			left, err := a.And(b).And(c).SatisfiedBy(subject)
			if err != nil {
				return false
			}
			right, err := a.And(b.And(c)).SatisfiedBy(subject)
			if err != nil {
				return false
			}
			return left == right
		},
		genLeaf(),
		genLeaf(),
		genLeaf(),
	))

	properties.TestingRun(t)
}
