package props

import (
	"errors"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/solatis/normprops/internal/filter"
	"github.com/solatis/normprops/internal/types"
)

// scenario builds an owner with three items:
//
//	item1: attribute a1, association "association1", set [setitem1]
//	item2: attribute a2, no association,             set [setitem2]
//	item3: attribute a1, association "association3", set []
func scenario(t *testing.T) (*graph, *node, []*node) {
	t.Helper()
	g := newGraph(t)

	item1 := newNode(g.item, "item1")
	item1.attribute = "a1"
	item1.association = g.newRelated("assoc1", "association1")
	item1.set = []*node{g.newRelated("setitem1", "setitem1")}

	item2 := newNode(g.item, "item2")
	item2.attribute = "a2"
	item2.set = []*node{g.newRelated("setitem2", "setitem2")}

	item3 := newNode(g.item, "item3")
	item3.attribute = "a1"
	item3.association = g.newRelated("assoc3", "association3")

	owner := newNode(g.owner, "owner")
	owner.items = []*node{item1, item2, item3}
	return g, owner, owner.items
}

func TestSet_Where(t *testing.T) {
	_, owner, items := scenario(t)

	tests := []struct {
		name   string
		filter filter.Filter
		want   []string
	}{
		{"attribute literal", filter.Match(map[string]any{"attribute": "a1"}), []string{"item1", "item3"}},
		{"association present", filter.Match(map[string]any{"association": true}), []string{"item1", "item3"}},
		{"association absent", filter.Match(map[string]any{"association": false}), []string{"item2"}},
		{"association nil", filter.Match(map[string]any{"association": nil}), []string{"item2"}},
		{"association nested", filter.Match(map[string]any{"association": map[string]any{"content": "association1"}}), []string{"item1"}},
		{"association instance", filter.Match(map[string]any{"association": filter.Is(items[2].association)}), []string{"item3"}},
		{"association invalid literal", filter.Match(map[string]any{"association": "symbol"}), []string{}},
		{"set present", filter.Match(map[string]any{"set": true}), []string{"item1", "item2"}},
		{"set empty", filter.Match(map[string]any{"set": false}), []string{"item3"}},
		{"set nested", filter.Match(map[string]any{"set": map[string]any{"content": "setitem1"}}), []string{"item1"}},
		{"set instance", filter.Match(map[string]any{"set": filter.Is(items[1].set[0])}), []string{"item2"}},
		{"set invalid literal", filter.Match(map[string]any{"set": "symbol"}), []string{}},
		{"association unwrapped instance", filter.Match(map[string]any{"association": items[0].association}), []string{"item1"}},
		{"set unwrapped instance", filter.Match(map[string]any{"set": items[1].set[0]}), []string{"item2"}},
		{"set literal instance", filter.Where("set", filter.Eq(items[1].set[0])), []string{"item2"}},
		{"conjunction", filter.Match(map[string]any{"attribute": "a1", "set": true}), []string{"item1"}},
		{"disjunction", filter.Or(
			filter.Where("attribute", filter.Eq("a2")),
			filter.Where("association", filter.Sub(filter.Where("content", filter.Eq("association3")))),
		), []string{"item2", "item3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := itemsSet(t, owner).Where(tt.filter).Value()
			if err != nil {
				t.Fatalf("Value() error = %v", err)
			}
			if !equalIDs(ids(got), tt.want) {
				t.Errorf("Where(%v) = %v, want %v", tt.filter, ids(got), tt.want)
			}
		})
	}
}

func TestSet_WhereUnknownProperty(t *testing.T) {
	_, owner, _ := scenario(t)

	_, err := itemsSet(t, owner).Where(filter.Match(map[string]any{"nope": 1})).Value()
	if !errors.Is(err, types.ErrUnknownProperty) {
		t.Fatalf("Value() error = %v, want ErrUnknownProperty", err)
	}
	if err.Error() != "unknown property: Item#nope" {
		t.Errorf("error text = %q", err.Error())
	}
}

func TestSet_WhereEmptyReturnsSelf(t *testing.T) {
	_, owner, _ := scenario(t)
	s := itemsSet(t, owner)
	if got := s.Where(filter.Filter{}); got != s {
		t.Errorf("Where(empty) returned a new set")
	}

	narrowed := s.Where(filter.Match(map[string]any{"attribute": "a1"}))
	if narrowed == s {
		t.Fatalf("Where(f) returned the receiver")
	}
	if !s.Filter().IsEmpty() {
		t.Errorf("Where(f) mutated the receiver's filter")
	}
	if got := narrowed.Where(filter.Filter{}); got != narrowed {
		t.Errorf("Where(empty) on a narrowed set returned a new set")
	}
}

func TestSet_Satisfies(t *testing.T) {
	_, owner, items := scenario(t)

	ok, err := owner.Satisfies(filter.Where("items", filter.Sub(filter.Match(map[string]any{"attribute": "a2"}))))
	if err != nil || !ok {
		t.Errorf("Satisfies(items has a2) = %v, %v, want true", ok, err)
	}
	ok, err = owner.Satisfies(filter.Where("items", filter.Is(items[0])))
	if err != nil || !ok {
		t.Errorf("Satisfies(items contains item1) = %v, %v, want true", ok, err)
	}
	ok, err = owner.Satisfies(filter.Where("items", filter.Eq(items[0])))
	if err != nil || !ok {
		t.Errorf("Satisfies(items equals member item1) = %v, %v, want true", ok, err)
	}
	ok, err = owner.Satisfies(filter.Where("items", filter.Has(false)))
	if err != nil || ok {
		t.Errorf("Satisfies(items empty) = %v, %v, want false", ok, err)
	}

	// A narrowed set tests only the items passing its filter.
	narrowed := itemsSet(t, owner).Where(filter.Match(map[string]any{"attribute": "a1"}))
	ok, err = narrowed.Satisfies(filter.Is(items[1]))
	if err != nil || ok {
		t.Errorf("narrowed Satisfies(item2) = %v, %v, want false", ok, err)
	}
}

func TestAttribute_Satisfies(t *testing.T) {
	g := newGraph(t)
	it := newNode(g.item, "i")

	tests := []struct {
		name  string
		value any
		pred  filter.Predicate
		want  bool
	}{
		{"nil equals nil", nil, filter.Eq(nil), true},
		{"nil absent", nil, filter.Has(false), true},
		{"nil not present", nil, filter.Has(true), false},
		{"value present", "x", filter.Has(true), true},
		{"bool presence uses the bool", false, filter.Has(false), true},
		{"numeric coercion", int64(7), filter.Eq(7.0), true},
		{"nested on plain value", "x", filter.Sub(filter.Where("content", filter.Eq("x"))), false},
		{"instance on plain value", "x", filter.Is(it), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			it.attribute = tt.value
			a, err := it.Attribute("attribute")
			if err != nil {
				t.Fatalf("Attribute() error = %v", err)
			}
			got, err := a.Satisfies(tt.pred)
			if err != nil {
				t.Fatalf("Satisfies() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Satisfies(%v) with value %v = %v, want %v", tt.pred, tt.value, got, tt.want)
			}
		})
	}
}

func TestAttribute_NestedUnknownPropertyFails(t *testing.T) {
	_, _, items := scenario(t)
	_, err := items[0].Satisfies(filter.Where("association", filter.Sub(filter.Where("nope", filter.Eq(1)))))
	if !errors.Is(err, types.ErrUnknownProperty) {
		t.Errorf("Satisfies() error = %v, want ErrUnknownProperty", err)
	}
}

func TestManual_DefaultFieldGetter(t *testing.T) {
	m := NewModel("Plain", nil)
	m.MustDeclareAttribute("label", Manual, Params{})

	n := newNode(m, "n1")
	_, err := n.Match("label", filter.Eq("x"))
	if !errors.Is(err, types.ErrNoField) {
		t.Errorf("Match() on owner without fields error = %v, want ErrNoField", err)
	}
}

func TestManual_NotCollection(t *testing.T) {
	m := NewModel("Broken", nil)
	m.MustDeclareSet("items", Manual, Params{
		Get: func(Instance) (any, error) { return "not a list", nil },
	})
	n := newNode(m, "n1")
	s, err := n.Set("items")
	if err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if _, err := s.Value(); !errors.Is(err, types.ErrNotCollection) {
		t.Errorf("Value() error = %v, want ErrNotCollection", err)
	}
}

// genItemFilter produces filters over the scenario's item properties.
func genItemFilter() gopter.Gen {
	return gopter.CombineGens(
		gen.IntRange(0, 5),
		gen.Bool(),
	).Map(func(vals []any) filter.Filter {
		flag := vals[1].(bool)
		switch vals[0].(int) {
		case 0:
			return filter.Where("attribute", filter.Eq("a1"))
		case 1:
			return filter.Where("attribute", filter.Eq("a2"))
		case 2:
			return filter.Where("association", filter.Has(flag))
		case 3:
			return filter.Where("set", filter.Has(flag))
		case 4:
			return filter.Where("association", filter.Sub(filter.Where("content", filter.Eq("association1"))))
		default:
			return filter.Filter{}
		}
	})
}

// Property-based test: narrowing twice equals narrowing by the conjunction
func TestSet_PropertyNarrowingAssociative(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	_, owner, _ := scenario(t)
	s := itemsSet(t, owner)

	properties.Property("where(f1).where(f2) == where(and(f1, f2))", prop.ForAll(
		func(f1, f2 filter.Filter) bool {
			chained, err := s.Where(f1).Where(f2).Value()
			if err != nil {
				return false
			}
			combined, err := s.Where(filter.And(f1, f2)).Value()
			if err != nil {
				return false
			}
			return equalIDs(ids(chained), ids(combined))
		},
		genItemFilter(),
		genItemFilter(),
	))

	properties.Property("where(empty) keeps every item", prop.ForAll(
		func(f filter.Filter) bool {
			narrowed := s.Where(f)
			base, err := narrowed.Value()
			if err != nil {
				return false
			}
			same, err := narrowed.Where(filter.Filter{}).Value()
			if err != nil {
				return false
			}
			return equalIDs(ids(base), ids(same))
		},
		genItemFilter(),
	))

	properties.TestingRun(t)
}

// Property-based test: satisfies agrees with filtering the value directly
func TestAttribute_PropertySatisfiesMatchesValue(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	g := newGraph(t)
	it := newNode(g.item, "i")

	properties.Property("Satisfies(Eq(x)) iff value equals x", prop.ForAll(
		func(value, probe string) bool {
			it.attribute = value
			a, err := it.Attribute("attribute")
			if err != nil {
				return false
			}
			got, err := a.Satisfies(filter.Eq(probe))
			if err != nil {
				return false
			}
			v, _ := a.Value()
			return got == (v == probe)
		},
		gen.OneConstOf("a1", "a2", "a3"),
		gen.OneConstOf("a1", "a2", "a3"),
	))

	properties.TestingRun(t)
}
