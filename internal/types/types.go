// Package types provides identifiers, limits and sentinel errors shared by
// the property, filter and storage packages.
//
// Zero-dependency design apart from ids.go, which imports uuid for
// UUIDv7 generation.
package types

// InstanceID identifies a property owner across process and storage boundaries.
// String alias keeps JSON and SQL serialization trivial.
type InstanceID string

// Resource limits enforced while building and rewriting filters.
const (
	// MaxPathDepth bounds dotted property paths ("a.b.c") turned into nested filters.
	MaxPathDepth = 16

	// MaxResolveDepth bounds dependency resolution recursion. Chained
	// dependents and nested related models each consume one level, so a
	// cyclic source declaration fails instead of recursing forever.
	MaxResolveDepth = 16
)
