package schema

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/solatis/normprops/internal/filter"
	"github.com/solatis/normprops/internal/props"
	"github.com/solatis/normprops/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSchema = `
models:
  - name: Special
    parent: Item
    attributes:
      - name: attribute
        kind: Dependent
        sources: [raw]
      - name: raw
  - name: Owner
    sets:
      - name: items
        model: Item
  - name: Item
    attributes:
      - name: attribute
      - name: association
        model: Related
      - name: label
        kind: Dependent
        sources: [attribute]
    sets:
      - name: set
        model: Related
  - name: Related
    attributes:
      - name: content
`

const testData = `
records:
  owner:
    model: Owner
    fields:
      items: [{ref: item1}, {ref: item2}, {ref: item3}]
  item1:
    model: Item
    fields:
      attribute: a1
      association: {ref: assoc1}
      set: [{ref: setitem1}]
  item2:
    model: Item
    fields:
      attribute: a2
      set: [{ref: setitem2}]
  item3:
    model: Special
    fields:
      raw: a1
      association: {ref: assoc3}
  assoc1:
    model: Related
    fields: {content: association1}
  assoc3:
    model: Related
    fields: {content: association3}
  setitem1:
    model: Related
    fields: {content: setitem1}
  setitem2:
    model: Related
    fields: {content: setitem2}
`

func buildTestCatalog(t *testing.T) *props.Catalog {
	t.Helper()
	f, err := Parse([]byte(testSchema))
	require.NoError(t, err)
	catalog, err := f.Build()
	require.NoError(t, err)
	return catalog
}

func TestBuild(t *testing.T) {
	catalog := buildTestCatalog(t)
	assert.Equal(t, []string{"Item", "Owner", "Related", "Special"}, catalog.Names())

	item, err := catalog.Model("Item")
	require.NoError(t, err)
	special, err := catalog.Model("Special")
	require.NoError(t, err)
	related, err := catalog.Model("Related")
	require.NoError(t, err)

	assert.Same(t, item, special.Parent())

	assoc, err := item.Config("association")
	require.NoError(t, err)
	assert.Same(t, related, assoc.Model())
	assert.Equal(t, props.Manual, assoc.Kind())

	label, err := special.Config("label")
	require.NoError(t, err)
	assert.True(t, label.Derived())
	assert.Equal(t, []string{"attribute"}, label.Sources())

	// Special shadows the inherited attribute with an alias of raw.
	attr, err := special.Config("attribute")
	require.NoError(t, err)
	assert.Same(t, special, attr.Owner())
	assert.True(t, attr.Derived())
}

func TestBuild_Errors(t *testing.T) {
	tests := []struct {
		name    string
		schema  string
		wantErr error
	}{
		{
			name:    "unknown kind",
			schema:  "models:\n  - name: A\n    attributes:\n      - {name: x, kind: Unknown}\n",
			wantErr: types.ErrUnknownPropertyKind,
		},
		{
			name:    "unknown parent",
			schema:  "models:\n  - name: A\n    parent: B\n",
			wantErr: types.ErrUnknownModel,
		},
		{
			name:    "unknown related model",
			schema:  "models:\n  - name: A\n    sets:\n      - {name: xs, model: B}\n",
			wantErr: types.ErrUnknownModel,
		},
		{
			name:    "parent cycle",
			schema:  "models:\n  - {name: A, parent: B}\n  - {name: B, parent: A}\n",
			wantErr: types.ErrInvalidDeclaration,
		},
		{
			name:    "duplicate model",
			schema:  "models:\n  - name: A\n  - name: A\n",
			wantErr: types.ErrDuplicateModel,
		},
		{
			name:    "dependent with two sources",
			schema:  "models:\n  - name: A\n    attributes:\n      - {name: a}\n      - {name: b}\n      - {name: c, kind: Dependent, sources: [a, b]}\n",
			wantErr: types.ErrInvalidDeclaration,
		},
		{
			name:    "dependent on unknown source",
			schema:  "models:\n  - name: A\n    attributes:\n      - {name: c, kind: Dependent, sources: [nope]}\n",
			wantErr: types.ErrUnknownProperty,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Parse([]byte(tt.schema))
			require.NoError(t, err)
			_, err = f.Build()
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestParseRecords(t *testing.T) {
	catalog := buildTestCatalog(t)
	ds, err := ParseRecords([]byte(testData), catalog)
	require.NoError(t, err)
	assert.Equal(t, 8, ds.Len())

	owner, ok := ds.Record("owner")
	require.True(t, ok)
	items, err := owner.Set("items")
	require.NoError(t, err)

	keysOf := func(f filter.Filter) []string {
		t.Helper()
		got, err := items.Where(f).Value()
		require.NoError(t, err)
		keys := make([]string, 0, len(got))
		for _, it := range got {
			k, ok := ds.KeyOf(it.(*props.Record).ID())
			require.True(t, ok)
			keys = append(keys, k)
		}
		return keys
	}

	assert.Equal(t, []string{"item1", "item3"}, keysOf(filter.Match(map[string]any{"attribute": "a1"})))
	assert.Equal(t, []string{"item1", "item3"}, keysOf(filter.Match(map[string]any{"label": "a1"})))
	assert.Equal(t, []string{"item2"}, keysOf(filter.Match(map[string]any{"association": nil})))
	assert.Equal(t, []string{"item1"}, keysOf(filter.Match(map[string]any{"association": map[string]any{"content": "association1"}})))
	assert.Equal(t, []string{"item1", "item2"}, keysOf(filter.Match(map[string]any{"set": true})))
	assert.Equal(t, []string{"item3"}, keysOf(filter.Match(map[string]any{"set": false})))
}

func TestParseRecords_StableIDs(t *testing.T) {
	catalog := buildTestCatalog(t)
	first, err := ParseRecords([]byte(testData), catalog)
	require.NoError(t, err)
	second, err := ParseRecords([]byte(testData), catalog)
	require.NoError(t, err)

	for _, key := range first.Keys() {
		a, _ := first.Record(key)
		b, ok := second.Record(key)
		require.True(t, ok)
		assert.Equal(t, a.ID(), b.ID(), "record %s", key)
	}
}

func TestParseRecords_Errors(t *testing.T) {
	catalog := buildTestCatalog(t)

	tests := []struct {
		name    string
		data    string
		wantErr error
	}{
		{"unknown model", "records:\n  a: {model: Nope}\n", types.ErrUnknownModel},
		{"unknown property", "records:\n  a: {model: Related, fields: {nope: 1}}\n", types.ErrUnknownProperty},
		{"unknown ref", "records:\n  a: {model: Item, fields: {association: {ref: missing}}}\n", ErrUnknownRecord},
		{"set not a list", "records:\n  a: {model: Item, fields: {set: x}}\n", types.ErrNotCollection},
		{"set item not a ref", "records:\n  a: {model: Item, fields: {set: [x]}}\n", types.ErrNotCollection},
		{"derived field", "records:\n  a: {model: Item, fields: {label: x}}\n", types.ErrDerivedProperty},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRecords([]byte(tt.data), catalog)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestLoad_Files(t *testing.T) {
	dir := t.TempDir()
	schemaPath := filepath.Join(dir, "schema.yaml")
	dataPath := filepath.Join(dir, "data.yaml")
	require.NoError(t, os.WriteFile(schemaPath, []byte(testSchema), 0o644))
	require.NoError(t, os.WriteFile(dataPath, []byte(testData), 0o644))

	var refs []PropertyRef
	catalog, err := Load(schemaPath, WithWatch(func(ref PropertyRef, p props.Property) props.Watcher {
		refs = append(refs, ref)
		return props.WatcherFuncs{}
	}))
	require.NoError(t, err)

	ds, err := LoadRecords(dataPath, catalog)
	require.NoError(t, err)

	owner, _ := ds.Record("owner")
	items, err := owner.Set("items")
	require.NoError(t, err)
	sub := items.On(props.EventChanged, func(...any) {})
	defer sub.Cancel()

	assert.True(t, items.Watching())
	assert.Equal(t, []PropertyRef{{Model: "Owner", Property: "items"}}, refs)

	big := filepath.Join(dir, "big.yaml")
	require.NoError(t, os.WriteFile(big, make([]byte, MaxFileSize+1), 0o644))
	_, err = ReadFile(big)
	assert.ErrorIs(t, err, ErrFileTooLarge)
}
