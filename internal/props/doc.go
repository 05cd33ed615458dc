// Package props implements reactive, inheritance-aware properties for
// in-memory object graphs.
//
// A Model declares named properties. Each declaration picks a shape
// (Attribute for single values, Set for ordered collections of related
// instances) and a behavior kind (Manual reads the owner's own field,
// Dependent derives its value from other "source" properties). Kinds are
// registered by name, so new behaviors plug in with RegisterKind.
//
// Owners embed Base and bind it to their model:
//
//	type Item struct {
//		props.Base
//		Label string
//	}
//
//	func NewItem(label string) *Item {
//		it := &Item{Label: label}
//		it.Bind(it, itemModel)
//		return it
//	}
//
// Property lookups walk the model's parent chain, innermost first. Every
// Property supports Satisfies against a filter.Predicate and On for change
// notifications; Sets additionally narrow with Where. Subscribing to a
// change-class event engages the property's Watcher, and cancelling the
// last such subscription disengages it.
//
// ResolveDependent rewrites filters over Dependent properties into
// equivalent filters over their sources, recursing into related models,
// so a storage collaborator can execute them without materializing
// instances.
//
// The package is single-threaded by contract: property reads, filter
// evaluation and event dispatch are synchronous and unsynchronized.
// Models and catalogs are safe for concurrent lookup once declared.
package props
