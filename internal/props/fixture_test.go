package props

import (
	"testing"
)

// node is the owner type used across the package tests.
type node struct {
	Base
	id          string
	attribute   any
	content     string
	association *node
	set         []*node
	items       []*node
}

func (n *node) ID() string { return n.id }

func newNode(m *Model, id string) *node {
	n := &node{id: id}
	n.Bind(n, m)
	return n
}

// graph mirrors a typical schema: an owner holding items, each item
// carrying a plain attribute, an association and a set of related nodes.
type graph struct {
	related *Model
	item    *Model
	owner   *Model
}

func newGraph(t *testing.T) *graph {
	t.Helper()

	related := NewModel("Related", nil)
	related.MustDeclareAttribute("content", Manual, Params{
		Get: Getter(func(n *node) any { return n.content }),
	})

	item := NewModel("Item", nil)
	item.MustDeclareAttribute("attribute", Manual, Params{
		Get: Getter(func(n *node) any { return n.attribute }),
	})
	item.MustDeclareAttribute("association", Manual, Params{
		Model: related,
		Get:   Getter(func(n *node) any { return n.association }),
	})
	item.MustDeclareSet("set", Manual, Params{
		Model: related,
		Get:   ItemsGetter(func(n *node) []*node { return n.set }),
	})

	owner := NewModel("Owner", nil)
	owner.MustDeclareSet("items", Manual, Params{
		Model: item,
		Get:   ItemsGetter(func(n *node) []*node { return n.items }),
	})

	return &graph{related: related, item: item, owner: owner}
}

func (g *graph) newRelated(id, content string) *node {
	n := newNode(g.related, id)
	n.content = content
	return n
}

// itemsSet returns the owner's items set, failing the test on error.
func itemsSet(t *testing.T, owner *node) *Set {
	t.Helper()
	s, err := owner.Set("items")
	if err != nil {
		t.Fatalf("Set(items) error = %v", err)
	}
	return s
}

// ids lists the IDs of instances in order.
func ids(items []Instance) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.(*node).id
	}
	return out
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
