// Package kind holds the value-type capabilities used to compare, parse and
// store entity field values whose concrete Go types are only known through
// reflection.
package kind

import (
	"fmt"
	"reflect"
	"time"
)

// Names of the supported semantic value categories.
const (
	NameText     = "text"
	NameNumeric  = "numeric"
	NameTemporal = "temporal"
	NameEnum     = "enum"
	NameBoolean  = "boolean"
)

// Kind is the capability set of one semantic value category.
type Kind interface {
	// Name returns the category name (one of the Name* constants).
	Name() string

	// Text returns the canonical textual form of v used by free-text matching.
	// v may be a pointer; nil values render as "".
	Text(v any) string

	// Parse converts raw input (JSON or form value) into a value of type t.
	// t is never a pointer type.
	Parse(raw any, t reflect.Type) (any, error)

	// ColumnType returns the storage type name understood by store dialects
	// ("text", "int", "bigint", "decimal", "boolean", "timestamp").
	ColumnType(t reflect.Type) string
}

var (
	timeType     = reflect.TypeOf(time.Time{})
	stringerType = reflect.TypeOf((*fmt.Stringer)(nil)).Elem()
)

var registry = map[string]Kind{
	NameText:     textKind{},
	NameNumeric:  numericKind{},
	NameTemporal: temporalKind{},
	NameEnum:     enumKind{},
	NameBoolean:  booleanKind{},
}

// byReflectKind maps plain Go kinds to their semantic category.
var byReflectKind = map[reflect.Kind]string{
	reflect.String:  NameText,
	reflect.Bool:    NameBoolean,
	reflect.Int:     NameNumeric,
	reflect.Int8:    NameNumeric,
	reflect.Int16:   NameNumeric,
	reflect.Int32:   NameNumeric,
	reflect.Int64:   NameNumeric,
	reflect.Uint:    NameNumeric,
	reflect.Uint8:   NameNumeric,
	reflect.Uint16:  NameNumeric,
	reflect.Uint32:  NameNumeric,
	reflect.Uint64:  NameNumeric,
	reflect.Float32: NameNumeric,
	reflect.Float64: NameNumeric,
}

// Lookup returns the capability registered under name.
func Lookup(name string) (Kind, bool) {
	k, ok := registry[name]
	return k, ok
}

// For returns the capability for the Go type t. Pointer types resolve to
// their element type. The second result is false for types that have no
// scalar representation (structs, slices, maps).
func For(t reflect.Type) (Kind, bool) {
	if t == nil {
		return nil, false
	}
	t = Indirect(t)
	if t == timeType {
		return registry[NameTemporal], true
	}
	if isEnum(t) {
		return registry[NameEnum], true
	}
	name, ok := byReflectKind[t.Kind()]
	if !ok {
		return nil, false
	}
	return registry[name], true
}

// Of returns the capability for a runtime value. Unknown and nil values
// fall back to text.
func Of(v any) Kind {
	if v == nil {
		return registry[NameText]
	}
	if k, ok := For(reflect.TypeOf(v)); ok {
		return k
	}
	return registry[NameText]
}

// Indirect strips pointer indirections from t.
func Indirect(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}

// Coerce converts raw input into a value assignable to t, allocating a
// pointer when t is a pointer type. A nil raw value yields the zero value
// of t.
func Coerce(raw any, t reflect.Type) (any, error) {
	if raw == nil {
		return reflect.Zero(t).Interface(), nil
	}
	elem := Indirect(t)
	k, ok := For(elem)
	if !ok {
		return nil, fmt.Errorf("unsupported value type %s", elem)
	}
	v, err := k.Parse(deref(raw), elem)
	if err != nil {
		return nil, err
	}
	if t.Kind() != reflect.Pointer {
		return v, nil
	}
	p := reflect.New(elem)
	p.Elem().Set(reflect.ValueOf(v))
	return p.Interface(), nil
}

// isEnum reports whether t is a named scalar type with a String method.
func isEnum(t reflect.Type) bool {
	if t.PkgPath() == "" || !t.Implements(stringerType) {
		return false
	}
	name, ok := byReflectKind[t.Kind()]
	return ok && name != NameBoolean
}

// deref follows pointers in v, returning nil for nil pointers.
func deref(v any) any {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	return rv.Interface()
}
