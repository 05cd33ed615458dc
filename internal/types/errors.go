package types

import "errors"

// Sentinel errors for property and filter operations.
var (
	// ErrUnknownProperty indicates no model in the ancestor chain owns the property.
	ErrUnknownProperty = errors.New("unknown property")

	// ErrUnknownPropertyKind indicates a declaration names an unregistered behavior kind.
	ErrUnknownPropertyKind = errors.New("unknown property kind")

	// ErrUnknownModel indicates a catalog lookup for a model that was never added.
	ErrUnknownModel = errors.New("unknown model")

	// ErrDuplicateModel indicates a catalog already holds a model with that name.
	ErrDuplicateModel = errors.New("model already registered")

	// ErrDuplicateKind indicates a behavior kind name is already registered.
	ErrDuplicateKind = errors.New("property kind already registered")

	// ErrPropertyShape indicates an attribute was requested as a set or vice versa.
	ErrPropertyShape = errors.New("property has a different shape")

	// ErrInvalidDeclaration indicates behavior parameters are incomplete or inconsistent.
	ErrInvalidDeclaration = errors.New("invalid property declaration")

	// ErrDerivedProperty indicates a write to a Dependent property.
	ErrDerivedProperty = errors.New("property is derived and cannot be written")

	// ErrUnboundInstance indicates an owner used props.Base without calling Bind.
	ErrUnboundInstance = errors.New("instance is not bound to a model")

	// ErrNoField indicates a Manual property owner exposes no readable field.
	ErrNoField = errors.New("owner does not expose field")

	// ErrNotCollection indicates a set property read a value that is not a collection of instances.
	ErrNotCollection = errors.New("value is not a collection of instances")

	// ErrResolveTooDeep indicates dependency resolution exceeded MaxResolveDepth.
	ErrResolveTooDeep = errors.New("dependency resolution exceeds maximum depth")

	// ErrPathTooDeep indicates a property path exceeds MaxPathDepth.
	ErrPathTooDeep = errors.New("property path exceeds maximum depth")

	// ErrInvalidPath indicates a property path has an empty segment.
	ErrInvalidPath = errors.New("invalid property path")

	// ErrMalformedFilter indicates a wire-encoded filter could not be decoded.
	ErrMalformedFilter = errors.New("malformed filter")

	// ErrUnidentified indicates an instance without an ID crossed a boundary that needs one.
	ErrUnidentified = errors.New("instance has no identifier")

	// ErrUnknownInstance indicates no stored snapshot exists for an ID.
	ErrUnknownInstance = errors.New("unknown instance")

	// ErrStorage indicates the snapshot store failed to read or write.
	ErrStorage = errors.New("storage operation failed")
)
