package metadata

import (
	"fmt"
	"reflect"

	"entity-admin/internal/kind"
)

// PropertyMetadata describes one scalar field of an entity.
type PropertyMetadata struct {
	Name        string
	DisplayName string
	Description string
	Column      string
	Type        reflect.Type
	Kind        kind.Kind

	IsNullable               bool
	IsPrimaryKey             bool
	IsForeignKey             bool
	IsEditable               bool
	IsSearchable             bool
	IsHidden                 bool
	IsValueGeneratedOnAdd    bool
	IsValueGeneratedOnUpdate bool
	IsConcurrencyToken       bool
	IsUpload                 bool

	Order         int
	DisplayFormat string
	SearchType    SearchType
	Rules         []*Rule

	// index is the reflect field path, resolved once during resolution.
	index     []int
	declIndex int
}

// Value reads the property from an entity instance (struct or pointer).
// The second result is false when the field sits behind a nil embedded
// pointer.
func (p *PropertyMetadata) Value(entity any) (any, bool) {
	v := reflect.ValueOf(entity)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil, false
		}
		v = v.Elem()
	}
	return p.valueOf(v)
}

func (p *PropertyMetadata) valueOf(v reflect.Value) (any, bool) {
	f, err := v.FieldByIndexErr(p.index)
	if err != nil {
		return nil, false
	}
	if f.Kind() == reflect.Pointer && f.IsNil() {
		return nil, true
	}
	return f.Interface(), true
}

// Set assigns val to the property of the entity pointed to by entity.
// val is coerced to the property type when it is not directly assignable.
func (p *PropertyMetadata) Set(entity any, val any) error {
	v := reflect.ValueOf(entity)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return fmt.Errorf("set %s: entity must be a non-nil pointer", p.Name)
	}
	f := v.Elem()
	for i, x := range p.index {
		if i > 0 && f.Kind() == reflect.Pointer {
			if f.IsNil() {
				f.Set(reflect.New(f.Type().Elem()))
			}
			f = f.Elem()
		}
		f = f.Field(x)
	}

	if val == nil {
		f.Set(reflect.Zero(f.Type()))
		return nil
	}
	rv := reflect.ValueOf(val)
	if rv.Type().AssignableTo(f.Type()) {
		f.Set(rv)
		return nil
	}
	coerced, err := kind.Coerce(val, p.Type)
	if err != nil {
		return fmt.Errorf("set %s: %w", p.Name, err)
	}
	if coerced == nil {
		f.Set(reflect.Zero(f.Type()))
		return nil
	}
	f.Set(reflect.ValueOf(coerced))
	return nil
}

// Text returns the canonical text of the property's value in entity.
func (p *PropertyMetadata) Text(entity any) string {
	v, ok := p.Value(entity)
	if !ok || v == nil {
		return ""
	}
	return p.Kind.Text(v)
}
