// internal/filter/path.go
package filter

import (
	"strings"

	"github.com/solatis/normprops/internal/types"
)

/*
 * Dotted property paths.
 *
 * Path turns "association.content" plus a predicate into the nested
 * filter {association: {content: p}}. Each segment names a property on the
 * model reached by the previous segment; the filter itself stays model
 * agnostic and names are checked only when the filter is evaluated or
 * resolved.
 *
 * Enforces MaxPathDepth (16) so CLI and wire inputs cannot build
 * arbitrarily deep nesting.
 */

// Path builds a nested filter from a dotted property path.
// Returns ErrInvalidPath for empty paths or empty segments and
// ErrPathTooDeep for paths longer than MaxPathDepth.
func Path(path string, p Predicate) (Filter, error) {
	if path == "" {
		return Filter{}, types.ErrInvalidPath
	}
	segments := strings.Split(path, ".")
	if len(segments) > types.MaxPathDepth {
		return Filter{}, types.ErrPathTooDeep
	}
	for _, seg := range segments {
		if seg == "" {
			return Filter{}, types.ErrInvalidPath
		}
	}

	f := Where(segments[len(segments)-1], p)
	for i := len(segments) - 2; i >= 0; i-- {
		f = Where(segments[i], Sub(f))
	}
	return f, nil
}

// ParseAssignment splits "path=value" into a path filter with a Literal
// predicate. The literal values true and false become Presence predicates
// and "null" becomes a nil Literal; everything else stays a string.
func ParseAssignment(expr string) (Filter, error) {
	path, raw, ok := strings.Cut(expr, "=")
	if !ok {
		return Filter{}, types.ErrInvalidPath
	}
	path = strings.TrimSpace(path)
	raw = strings.TrimSpace(raw)

	var p Predicate
	switch raw {
	case "true":
		p = Has(true)
	case "false":
		p = Has(false)
	case "null":
		p = Eq(nil)
	default:
		p = Eq(raw)
	}
	return Path(path, p)
}
