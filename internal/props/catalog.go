package props

import (
	"fmt"
	"sort"
	"sync"

	"github.com/solatis/normprops/internal/types"
)

// Catalog indexes models by name.
type Catalog struct {
	mu     sync.RWMutex
	models map[string]*Model
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{models: make(map[string]*Model)}
}

// Add registers m. Returns ErrDuplicateModel if the name is taken.
func (c *Catalog) Add(m *Model) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.models[m.name]; exists {
		return fmt.Errorf("%w: %s", types.ErrDuplicateModel, m.name)
	}
	c.models[m.name] = m
	return nil
}

// New creates a model and registers it.
func (c *Catalog) New(name string, parent *Model) (*Model, error) {
	m := NewModel(name, parent)
	if err := c.Add(m); err != nil {
		return nil, err
	}
	return m, nil
}

// Model returns the model registered under name.
func (c *Catalog) Model(name string) (*Model, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	m, ok := c.models[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrUnknownModel, name)
	}
	return m, nil
}

// Names returns the registered model names, sorted.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.models))
	for name := range c.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
