package props

import (
	"errors"
	"strings"
	"testing"

	"github.com/solatis/normprops/internal/filter"
	"github.com/solatis/normprops/internal/types"
)

// person is a model with stored names and a derived full name.
func personModel(t *testing.T) *Model {
	t.Helper()

	m := NewModel("Person", nil)
	m.MustDeclareAttribute("first", Manual, Params{})
	m.MustDeclareAttribute("last", Manual, Params{})
	m.MustDeclareAttribute("raw", Manual, Params{})
	m.MustDeclareAttribute("computed", Dependent, Alias("raw"))
	m.MustDeclareAttribute("full", Dependent, Params{
		Sources: []string{"first", "last"},
		Value: func(src Sources) (any, error) {
			first, _ := src.Value("first").(string)
			last, _ := src.Value("last").(string)
			return first + " " + last, nil
		},
		SourcesFilter: func(p filter.Predicate) (filter.Filter, error) {
			if p.Kind() != filter.Literal {
				return filter.And(filter.Where("first", p), filter.Where("last", p)), nil
			}
			s, _ := p.Value().(string)
			first, last, _ := strings.Cut(s, " ")
			return filter.And(
				filter.Where("first", filter.Eq(first)),
				filter.Where("last", filter.Eq(last)),
			), nil
		},
	})
	return m
}

func TestDependent_AliasAttribute(t *testing.T) {
	m := personModel(t)
	p := NewRecord(m, map[string]any{"raw": "x"})

	a, err := p.Attribute("computed")
	if err != nil {
		t.Fatalf("Attribute() error = %v", err)
	}
	if !a.Config().Derived() {
		t.Errorf("Derived() = false, want true")
	}
	v, err := a.Value()
	if err != nil || v != "x" {
		t.Errorf("Value() = %v, %v, want x", v, err)
	}

	tests := []struct {
		pred filter.Predicate
		want bool
	}{
		{filter.Eq("x"), true},
		{filter.Eq("y"), false},
		{filter.Has(true), true},
		{filter.Eq(nil), false},
	}
	for _, tt := range tests {
		got, err := a.Satisfies(tt.pred)
		if err != nil {
			t.Fatalf("Satisfies(%v) error = %v", tt.pred, err)
		}
		if got != tt.want {
			t.Errorf("Satisfies(%v) = %v, want %v", tt.pred, got, tt.want)
		}
	}
}

func TestDependent_MultipleSources(t *testing.T) {
	m := personModel(t)
	p := NewRecord(m, map[string]any{"first": "Ada", "last": "Lovelace"})

	a, err := p.Attribute("full")
	if err != nil {
		t.Fatalf("Attribute() error = %v", err)
	}
	v, err := a.Value()
	if err != nil || v != "Ada Lovelace" {
		t.Errorf("Value() = %v, %v, want Ada Lovelace", v, err)
	}
	if got := a.Config().Sources(); !equalIDs(got, []string{"first", "last"}) {
		t.Errorf("Sources() = %v", got)
	}

	ok, err := p.Satisfies(filter.Where("full", filter.Eq("Ada Lovelace")))
	if err != nil || !ok {
		t.Errorf("Satisfies(full=Ada Lovelace) = %v, %v, want true", ok, err)
	}
	ok, err = p.Satisfies(filter.Where("full", filter.Eq("Ada Byron")))
	if err != nil || ok {
		t.Errorf("Satisfies(full=Ada Byron) = %v, %v, want false", ok, err)
	}
}

func TestDependent_ValueFilter(t *testing.T) {
	g := newGraph(t)
	g.item.MustDeclareAttribute("latest", Dependent, Params{
		Sources: []string{"set"},
		Value: func(src Sources) (any, error) {
			items := src.Instances("set")
			if len(items) == 0 {
				return nil, nil
			}
			return items[len(items)-1], nil
		},
		SourcesFilter: func(p filter.Predicate) (filter.Filter, error) {
			return filter.Where("set", p), nil
		},
		ValueFilter: func(v any) filter.Filter {
			n, ok := v.(*node)
			if !ok {
				return filter.Filter{}
			}
			return filter.Where("content", filter.Eq(n.content))
		},
	})

	it := newNode(g.item, "i1")
	s1, s2 := g.newRelated("s1", "x"), g.newRelated("s2", "y")
	it.set = []*node{s1, s2}

	tests := []struct {
		content string
		want    bool
	}{
		{"y", true},
		{"x", false},
	}
	for _, tt := range tests {
		f := filter.Where("latest", filter.Sub(filter.Where("content", filter.Eq(tt.content))))
		got, err := it.Satisfies(f)
		if err != nil {
			t.Fatalf("Satisfies(%v) error = %v", f, err)
		}
		if got != tt.want {
			t.Errorf("Satisfies(%v) = %v, want %v", f, got, tt.want)
		}
	}

	// A set member that is not the current value fails the value filter.
	direct := []struct {
		name string
		f    filter.Filter
		want bool
	}{
		{"current", filter.Where("latest", filter.Is(s2)), true},
		{"other member", filter.Where("latest", filter.Is(s1)), false},
		{"unwrapped current", filter.Match(map[string]any{"latest": s2}), true},
		{"unwrapped other", filter.Match(map[string]any{"latest": s1}), false},
		{"ref to current", filter.Where("latest", filter.Is(filter.Ref("s2"))), true},
		{"ref to other", filter.Where("latest", filter.Is(filter.Ref("s1"))), false},
	}
	for _, tt := range direct {
		t.Run(tt.name, func(t *testing.T) {
			got, err := it.Satisfies(tt.f)
			if err != nil {
				t.Fatalf("Satisfies(%v) error = %v", tt.f, err)
			}
			if got != tt.want {
				t.Errorf("Satisfies(%v) = %v, want %v", tt.f, got, tt.want)
			}
		})
	}

	// Presence does not consult the value filter.
	ok, err := it.Satisfies(filter.Where("latest", filter.Has(true)))
	if err != nil || !ok {
		t.Errorf("Satisfies(latest present) = %v, %v, want true", ok, err)
	}
}

func TestDependent_Set(t *testing.T) {
	g := newGraph(t)
	g.item.MustDeclareSet("mirror", Dependent, Alias("set"))

	it := newNode(g.item, "i1")
	it.set = []*node{g.newRelated("s1", "x"), g.newRelated("s2", "y")}

	s, err := it.Set("mirror")
	if err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	items, err := s.Where(filter.Match(map[string]any{"content": "y"})).Value()
	if err != nil {
		t.Fatalf("Value() error = %v", err)
	}
	if !equalIDs(ids(items), []string{"s2"}) {
		t.Errorf("Where(content=y).Value() = %v, want [s2]", ids(items))
	}

	ok, err := it.Satisfies(filter.Where("mirror", filter.Sub(filter.Match(map[string]any{"content": "x"}))))
	if err != nil || !ok {
		t.Errorf("Satisfies(mirror has x) = %v, %v, want true", ok, err)
	}
	ok, err = it.Satisfies(filter.Where("mirror", filter.Has(false)))
	if err != nil || ok {
		t.Errorf("Satisfies(mirror empty) = %v, %v, want false", ok, err)
	}
}

func TestDependent_DerivationErrorPropagates(t *testing.T) {
	errBroken := errors.New("broken derivation")
	m := NewModel("Broken", nil)
	m.MustDeclareAttribute("raw", Manual, Params{})
	m.MustDeclareAttribute("derived", Dependent, Params{
		Sources: []string{"raw"},
		Value:   func(Sources) (any, error) { return nil, errBroken },
	})

	r := NewRecord(m, nil)
	a, err := r.Attribute("derived")
	if err != nil {
		t.Fatalf("Attribute() error = %v", err)
	}
	if _, err := a.Value(); !errors.Is(err, errBroken) {
		t.Errorf("Value() error = %v, want errBroken", err)
	}
}

func TestDependent_DeclarationErrors(t *testing.T) {
	m := NewModel("Decl", nil)
	m.MustDeclareAttribute("a", Manual, Params{})
	m.MustDeclareAttribute("b", Manual, Params{})

	tests := []struct {
		name    string
		prop    string
		params  Params
		wantErr error
	}{
		{
			name:    "no sources",
			prop:    "x",
			params:  Params{Value: func(Sources) (any, error) { return nil, nil }},
			wantErr: types.ErrInvalidDeclaration,
		},
		{
			name:    "unknown source",
			prop:    "x",
			params:  Alias("missing"),
			wantErr: types.ErrUnknownProperty,
		},
		{
			name:    "self source",
			prop:    "a",
			params:  Alias("a"),
			wantErr: types.ErrInvalidDeclaration,
		},
		{
			name: "multiple sources without filter",
			prop: "x",
			params: Params{
				Sources: []string{"a", "b"},
				Value:   func(Sources) (any, error) { return nil, nil },
			},
			wantErr: types.ErrInvalidDeclaration,
		},
		{
			name:    "no value function",
			prop:    "x",
			params:  Params{Sources: []string{"a"}},
			wantErr: types.ErrInvalidDeclaration,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.DeclareAttribute(tt.prop, Dependent, tt.params)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("DeclareAttribute() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if _, err := m.DeclareSet("s", Dependent, Params{Sources: []string{"a"}}); !errors.Is(err, types.ErrInvalidDeclaration) {
		t.Errorf("DeclareSet() without items error = %v, want ErrInvalidDeclaration", err)
	}
}
