package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/solatis/normprops/internal/filter"
	"github.com/solatis/normprops/internal/props"
	"github.com/solatis/normprops/internal/types"
)

// Store persists snapshots of instances and answers filter queries over
// them in SQL. Models are looked up in the catalog the store was built
// with.
type Store struct {
	db      *sqlx.DB
	queries *Queries
	catalog *props.Catalog
	logger  *slog.Logger
	now     func() time.Time
}

// StoredInstance is an instance row with its property values.
type StoredInstance struct {
	ID        string    `db:"instance_id"`
	Model     string    `db:"model"`
	CreatedAt time.Time `db:"created_at"`
	Values    []PropertyValue
}

// PropertyValue is one stored attribute or one set item.
type PropertyValue struct {
	InstanceID string         `db:"instance_id"`
	Property   string         `db:"property"`
	Position   int            `db:"position"`
	Value      sql.NullString `db:"value"`
	RefID      sql.NullString `db:"ref_id"`
}

// NewStore creates a store over an open, migrated database.
func NewStore(db *sqlx.DB, catalog *props.Catalog, logger *slog.Logger) (*Store, error) {
	queries, err := LoadQueries(db)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		db:      db,
		queries: queries,
		catalog: catalog,
		logger:  logger.With("component", "store"),
		now:     time.Now,
	}, nil
}

// Save snapshots every stored property of inst, and of every instance it
// reaches through attributes and sets, in one transaction. Dependent
// properties are not stored; queries resolve them onto their sources.
func (s *Store) Save(ctx context.Context, inst props.Instance) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %w", types.ErrStorage, err)
	}

	seen := make(map[string]bool)
	if err := s.save(ctx, tx, inst, seen); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %w", types.ErrStorage, err)
	}
	s.logger.DebugContext(ctx, "saved snapshot", "instances", len(seen))
	return nil
}

func (s *Store) save(ctx context.Context, tx *sqlx.Tx, inst props.Instance, seen map[string]bool) error {
	id, err := instanceID(inst)
	if err != nil {
		return err
	}
	if seen[id] {
		return nil
	}
	seen[id] = true

	m := inst.Model()
	if _, err := s.queries.Exec(ctx, tx, "upsert-instance", id, m.Name(), s.now().UTC()); err != nil {
		return fmt.Errorf("%w: save %s: %w", types.ErrStorage, id, err)
	}
	if _, err := s.queries.Exec(ctx, tx, "delete-property-values", id); err != nil {
		return fmt.Errorf("%w: save %s: %w", types.ErrStorage, id, err)
	}

	var related []props.Instance
	insert := func(name string, position int, value, ref any) error {
		if _, err := s.queries.Exec(ctx, tx, "insert-property-value", id, name, position, value, ref); err != nil {
			return fmt.Errorf("%w: save %s#%s: %w", types.ErrStorage, id, name, err)
		}
		return nil
	}

	for _, cfg := range m.Configs() {
		if cfg.Derived() {
			continue
		}
		p, err := inst.Property(cfg.Name())
		if err != nil {
			return err
		}

		switch p := p.(type) {
		case *props.Attribute:
			v, err := p.Value()
			if err != nil {
				return err
			}
			var value, ref any
			switch {
			case filter.IsNil(v):
			case isInstance(v):
				rel := v.(props.Instance)
				if ref, err = instanceID(rel); err != nil {
					return err
				}
				related = append(related, rel)
			default:
				if value, err = encodeScalar(v); err != nil {
					return err
				}
			}
			if err := insert(cfg.Name(), 0, value, ref); err != nil {
				return err
			}

		case *props.Set:
			items, err := p.Value()
			if err != nil {
				return err
			}
			for i, item := range items {
				ref, err := instanceID(item)
				if err != nil {
					return err
				}
				if err := insert(cfg.Name(), i, nil, ref); err != nil {
					return err
				}
				related = append(related, item)
			}
		}
	}

	for _, rel := range related {
		if err := s.save(ctx, tx, rel, seen); err != nil {
			return err
		}
	}
	return nil
}

// Query returns the IDs of stored instances of model, or of a model
// descending from it, that satisfy f. Results are ordered by first save.
//
// Each model in the lineage gets its own branch, with f resolved against
// that model, so a property a subclass redeclares as Dependent is read
// through its sources. Nested predicates compile against the declared
// related model.
func (s *Store) Query(ctx context.Context, model string, f filter.Filter) ([]string, error) {
	m, err := s.catalog.Model(model)
	if err != nil {
		return nil, err
	}

	var branches []string
	var args []any
	for _, d := range s.lineage(m) {
		resolved, err := props.ResolveDependent(f, d)
		if err != nil {
			return nil, err
		}
		cond, condArgs, err := compileFilter(resolved, d, "i0")
		if err != nil {
			return nil, err
		}
		branches = append(branches, "(i0.model = ? AND "+cond+")")
		args = append(args, d.Name())
		args = append(args, condArgs...)
	}

	query := s.db.Rebind("SELECT i0.instance_id FROM instances i0 WHERE " +
		strings.Join(branches, " OR ") + " ORDER BY i0.created_at, i0.instance_id")

	var ids []string
	if err := s.db.SelectContext(ctx, &ids, query, args...); err != nil {
		return nil, fmt.Errorf("%w: query %s: %w", types.ErrStorage, model, err)
	}
	s.logger.DebugContext(ctx, "query", "model", model, "filter", f.String(), "matches", len(ids))
	return ids, nil
}

// Get returns the stored snapshot of one instance.
func (s *Store) Get(ctx context.Context, id string) (*StoredInstance, error) {
	var inst StoredInstance
	if err := s.queries.Get(ctx, &inst, "get-instance", id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: instance %s", types.ErrUnknownInstance, id)
		}
		return nil, fmt.Errorf("%w: get %s: %w", types.ErrStorage, id, err)
	}
	if err := s.queries.Select(ctx, &inst.Values, "list-property-values", id); err != nil {
		return nil, fmt.Errorf("%w: get %s: %w", types.ErrStorage, id, err)
	}
	return &inst, nil
}

// Instances lists the stored instances of exactly model, ordered by first save.
func (s *Store) Instances(ctx context.Context, model string) ([]StoredInstance, error) {
	var out []StoredInstance
	if err := s.queries.Select(ctx, &out, "list-instances-by-model", model); err != nil {
		return nil, fmt.Errorf("%w: list %s: %w", types.ErrStorage, model, err)
	}
	return out, nil
}

// Delete removes an instance snapshot. References to it from other
// instances are left in place and no longer match nested predicates.
func (s *Store) Delete(ctx context.Context, id string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %w", types.ErrStorage, err)
	}
	for _, name := range []string{"delete-property-values", "delete-instance"} {
		if _, err := s.queries.Exec(ctx, tx, name, id); err != nil {
			tx.Rollback()
			return fmt.Errorf("%w: delete %s: %w", types.ErrStorage, id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %w", types.ErrStorage, err)
	}
	return nil
}

// lineage returns m and every catalog model descending from it, by name.
func (s *Store) lineage(m *props.Model) []*props.Model {
	var models []*props.Model
	for _, name := range s.catalog.Names() {
		if other, err := s.catalog.Model(name); err == nil && other.Is(m) {
			models = append(models, other)
		}
	}
	return models
}

func isInstance(v any) bool {
	_, ok := v.(props.Instance)
	return ok
}
