// internal/core/db/sqlfilter.go
package db

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/solatis/normprops/internal/filter"
	"github.com/solatis/normprops/internal/props"
	"github.com/solatis/normprops/internal/types"
)

/*
 * Filter compilation.
 *
 * A resolved filter becomes a boolean SQL expression over an instances
 * alias. Each leaf is an EXISTS subquery on property_values correlated by
 * instance_id, so AND/OR map directly onto SQL AND/OR and a set leaf is
 * true when any of its rows qualifies.
 *
 *   Literal        value = <json>        (ref_id = <id> for instances)
 *   Literal nil    no row holding a value or reference
 *   Presence       a row holding a reference or a value other than false
 *   Nested         join instances on ref_id and recurse
 *   DirectInstance ref_id = <id>
 *
 * Placeholders are written as ? and rebound by the caller.
 */

// presentRow matches rows that make a property present.
const presentRow = "(%[1]s.ref_id IS NOT NULL OR (%[1]s.value IS NOT NULL AND %[1]s.value <> 'false'))"

type compiler struct {
	args    []any
	aliases int
}

// compileFilter renders f, resolved against m, as a condition on the
// instances alias owner.
func compileFilter(f filter.Filter, m *props.Model, owner string) (string, []any, error) {
	c := &compiler{}
	cond, err := c.filter(f, m, owner)
	if err != nil {
		return "", nil, err
	}
	return cond, c.args, nil
}

func (c *compiler) alias(prefix string) string {
	c.aliases++
	return fmt.Sprintf("%s%d", prefix, c.aliases)
}

func (c *compiler) filter(f filter.Filter, m *props.Model, owner string) (string, error) {
	switch f.Kind() {
	case filter.KindLeaf:
		name, p := f.Leaf()
		return c.leaf(m, owner, name, p)
	case filter.KindAnd, filter.KindOr:
		children := f.Children()
		if len(children) == 0 {
			if f.Kind() == filter.KindAnd {
				return "1 = 1", nil
			}
			return "1 = 0", nil
		}
		parts := make([]string, len(children))
		for i, child := range children {
			part, err := c.filter(child, m, owner)
			if err != nil {
				return "", err
			}
			parts[i] = part
		}
		op := " AND "
		if f.Kind() == filter.KindOr {
			op = " OR "
		}
		return "(" + strings.Join(parts, op) + ")", nil
	default:
		return "", fmt.Errorf("%w: filter kind %s", types.ErrMalformedFilter, f.Kind())
	}
}

func (c *compiler) leaf(m *props.Model, owner, name string, p filter.Predicate) (string, error) {
	var cfg *props.Config
	if m != nil {
		var err error
		if cfg, err = m.Config(name); err != nil {
			return "", err
		}
	}
	isSet := cfg != nil && cfg.Shape() == props.ShapeSet

	pv := c.alias("pv")
	rows := fmt.Sprintf("SELECT 1 FROM property_values %[1]s WHERE %[1]s.instance_id = %[2]s.instance_id AND %[1]s.property = ?", pv, owner)

	if p.Kind() == filter.Literal && filter.IsInstance(p.Value()) {
		p = filter.Is(p.Value())
	}

	switch p.Kind() {
	case filter.Literal:
		// Sets never equal a scalar literal.
		if isSet {
			return "1 = 0", nil
		}
		v := p.Value()
		if filter.IsNil(v) {
			c.args = append(c.args, name)
			return fmt.Sprintf("NOT EXISTS (%s AND (%[2]s.value IS NOT NULL OR %[2]s.ref_id IS NOT NULL))", rows, pv), nil
		}
		enc, err := encodeScalar(v)
		if err != nil {
			return "", err
		}
		c.args = append(c.args, name, enc)
		return fmt.Sprintf("EXISTS (%s AND %s.value = ?)", rows, pv), nil

	case filter.Presence:
		c.args = append(c.args, name)
		cond := fmt.Sprintf("EXISTS (%s AND %s)", rows, fmt.Sprintf(presentRow, pv))
		if p.Present() {
			return cond, nil
		}
		return "NOT " + cond, nil

	case filter.Nested:
		nested, _ := p.Filter()
		var related *props.Model
		if cfg != nil {
			related = cfg.Model()
		}
		inst := c.alias("i")
		c.args = append(c.args, name)
		cond, err := c.filter(nested, related, inst)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf(
			"EXISTS (SELECT 1 FROM property_values %[1]s JOIN instances %[2]s ON %[2]s.instance_id = %[1]s.ref_id WHERE %[1]s.instance_id = %[3]s.instance_id AND %[1]s.property = ? AND %[4]s)",
			pv, inst, owner, cond), nil

	case filter.DirectInstance:
		id, ok := p.Value().(filter.Identified)
		if !ok || id.ID() == "" {
			return "", fmt.Errorf("%w: direct instance on %s", types.ErrUnidentified, name)
		}
		c.args = append(c.args, name, id.ID())
		return fmt.Sprintf("EXISTS (%s AND %s.ref_id = ?)", rows, pv), nil

	default:
		return "", fmt.Errorf("%w: predicate on %s", types.ErrMalformedFilter, name)
	}
}

// encodeScalar renders a stored or compared value as JSON text. Numbers
// of any Go type encode identically when numerically equal.
func encodeScalar(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode value %v: %w", v, err)
	}
	return string(b), nil
}

// instanceID returns the identifier of an instance crossing into storage.
func instanceID(inst any) (string, error) {
	id, ok := inst.(filter.Identified)
	if !ok || id.ID() == "" {
		return "", fmt.Errorf("%w: %v", types.ErrUnidentified, inst)
	}
	return id.ID(), nil
}
