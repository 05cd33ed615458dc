// internal/filter/wire.go
package filter

import (
	"fmt"

	"github.com/solatis/normprops/internal/types"
	"google.golang.org/protobuf/types/known/structpb"
)

/*
 * Wire format for filters.
 *
 * Resolved filters are handed to storage collaborators, locally or over the
 * query service, as protobuf Struct values:
 *
 *   {"and": [<filter>...]}
 *   {"or":  [<filter>...]}
 *   {"property": "name", "eq": <literal>}
 *   {"property": "name", "present": true|false}
 *   {"property": "name", "where": <filter>}
 *   {"property": "name", "instance": "<id>"}
 *
 * Literals must be representable as structpb values. Direct instances must
 * be Identified; they decode to Ref so identity matching falls back to ID
 * comparison. Numbers always decode as float64, which literal equality
 * already tolerates.
 */

// Wire keys.
const (
	keyAnd      = "and"
	keyOr       = "or"
	keyProperty = "property"
	keyEq       = "eq"
	keyPresent  = "present"
	keyWhere    = "where"
	keyInstance = "instance"
)

// ToValue encodes f into its wire representation.
func ToValue(f Filter) (*structpb.Value, error) {
	switch f.kind {
	case KindAnd, KindOr:
		items := make([]*structpb.Value, 0, len(f.children))
		for _, c := range f.children {
			cv, err := ToValue(c)
			if err != nil {
				return nil, err
			}
			items = append(items, cv)
		}
		key := keyAnd
		if f.kind == KindOr {
			key = keyOr
		}
		return structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
			key: structpb.NewListValue(&structpb.ListValue{Values: items}),
		}}), nil
	case KindLeaf:
		fields := map[string]*structpb.Value{keyProperty: structpb.NewStringValue(f.property)}
		switch f.pred.kind {
		case Literal:
			lit, err := structpb.NewValue(f.pred.value)
			if err != nil {
				return nil, fmt.Errorf("%w: literal for %s: %v", types.ErrMalformedFilter, f.property, err)
			}
			fields[keyEq] = lit
		case Presence:
			fields[keyPresent] = structpb.NewBoolValue(f.pred.present)
		case Nested:
			nv, err := ToValue(*f.pred.nested)
			if err != nil {
				return nil, err
			}
			fields[keyWhere] = nv
		case DirectInstance:
			id, ok := f.pred.value.(Identified)
			if !ok || id.ID() == "" {
				return nil, fmt.Errorf("%w: instance for %s", types.ErrUnidentified, f.property)
			}
			fields[keyInstance] = structpb.NewStringValue(id.ID())
		}
		return structpb.NewStructValue(&structpb.Struct{Fields: fields}), nil
	default:
		return nil, fmt.Errorf("%w: node kind %d", types.ErrMalformedFilter, f.kind)
	}
}

// FromValue decodes a wire representation into a Filter.
// Returns ErrMalformedFilter for anything outside the format above.
func FromValue(v *structpb.Value) (Filter, error) {
	s := v.GetStructValue()
	if s == nil {
		return Filter{}, fmt.Errorf("%w: expected object", types.ErrMalformedFilter)
	}
	return FromStruct(s)
}

// FromStruct decodes a filter object.
func FromStruct(s *structpb.Struct) (Filter, error) {
	fields := s.GetFields()

	if list, ok := fields[keyAnd]; ok {
		children, err := decodeList(list)
		if err != nil {
			return Filter{}, err
		}
		return And(children...), nil
	}
	if list, ok := fields[keyOr]; ok {
		children, err := decodeList(list)
		if err != nil {
			return Filter{}, err
		}
		return Or(children...), nil
	}

	propValue, ok := fields[keyProperty]
	if !ok {
		if len(fields) == 0 {
			return Filter{}, nil
		}
		return Filter{}, fmt.Errorf("%w: missing %q", types.ErrMalformedFilter, keyProperty)
	}
	property, ok := propValue.GetKind().(*structpb.Value_StringValue)
	if !ok || property.StringValue == "" {
		return Filter{}, fmt.Errorf("%w: %q must be a non-empty string", types.ErrMalformedFilter, keyProperty)
	}
	name := property.StringValue

	if lit, ok := fields[keyEq]; ok {
		return Where(name, Eq(lit.AsInterface())), nil
	}
	if flag, ok := fields[keyPresent]; ok {
		b, ok := flag.GetKind().(*structpb.Value_BoolValue)
		if !ok {
			return Filter{}, fmt.Errorf("%w: %q of %s must be a bool", types.ErrMalformedFilter, keyPresent, name)
		}
		return Where(name, Has(b.BoolValue)), nil
	}
	if nested, ok := fields[keyWhere]; ok {
		nf, err := FromValue(nested)
		if err != nil {
			return Filter{}, err
		}
		return Where(name, Sub(nf)), nil
	}
	if inst, ok := fields[keyInstance]; ok {
		id, ok := inst.GetKind().(*structpb.Value_StringValue)
		if !ok || id.StringValue == "" {
			return Filter{}, fmt.Errorf("%w: %q of %s must be a non-empty string", types.ErrMalformedFilter, keyInstance, name)
		}
		return Where(name, Is(Ref(id.StringValue))), nil
	}
	return Filter{}, fmt.Errorf("%w: leaf %s has no predicate", types.ErrMalformedFilter, name)
}

// decodeList decodes the children of an and/or node.
func decodeList(v *structpb.Value) ([]Filter, error) {
	list := v.GetListValue()
	if list == nil {
		return nil, fmt.Errorf("%w: expected list", types.ErrMalformedFilter)
	}
	children := make([]Filter, 0, len(list.GetValues()))
	for _, item := range list.GetValues() {
		c, err := FromValue(item)
		if err != nil {
			return nil, err
		}
		children = append(children, c)
	}
	return children, nil
}
