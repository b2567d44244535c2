package metadata

import (
	"context"
	"fmt"
	"reflect"

	"entity-admin/internal/query"
)

// SearchFunc replaces the built-in free-text filter for one entity.
type SearchFunc func(base query.Sequence, search string) (query.Sequence, error)

// QueryFunc narrows or reshapes the base sequence of one entity before
// projection and search.
type QueryFunc func(base query.Sequence) query.Sequence

// AfterUpdateFunc runs after a record was persisted successfully.
type AfterUpdateFunc func(ctx context.Context, updated query.Record) error

// EntityMetadata is the canonical, merged description of one registered
// entity type. Instances are built once by the Resolver and shared
// read-only; callers must not mutate them.
type EntityMetadata struct {
	ID          string
	DisplayName string
	PluralName  string
	Description string
	Group       string
	Table       string
	Type        reflect.Type
	IsEditable  bool
	IsHidden    bool

	// Properties are sorted by display order.
	Properties  []*PropertyMetadata
	Navigations []*NavigationMetadata

	SearchFunc  SearchFunc
	QueryFunc   QueryFunc
	AfterUpdate AfterUpdateFunc

	byName   map[string]*PropertyMetadata
	byColumn map[string]*PropertyMetadata
	navs     map[string]*NavigationMetadata
}

// Property returns the property with the given name, or nil.
func (e *EntityMetadata) Property(name string) *PropertyMetadata {
	return e.byName[name]
}

// PropertyByColumn returns the property stored in the given column, or nil.
func (e *EntityMetadata) PropertyByColumn(column string) *PropertyMetadata {
	return e.byColumn[column]
}

// Navigation returns the included navigation with the given name, or nil.
func (e *EntityMetadata) Navigation(name string) *NavigationMetadata {
	return e.navs[name]
}

// PrimaryKey returns the first primary key property, or nil.
func (e *EntityMetadata) PrimaryKey() *PropertyMetadata {
	for _, p := range e.Properties {
		if p.IsPrimaryKey {
			return p
		}
	}
	return nil
}

// ConcurrencyToken returns the property checked on persist, or nil.
func (e *EntityMetadata) ConcurrencyToken() *PropertyMetadata {
	for _, p := range e.Properties {
		if p.IsConcurrencyToken {
			return p
		}
	}
	return nil
}

// PropertyNames returns the names of all properties in display order.
func (e *EntityMetadata) PropertyNames() []string {
	names := make([]string, len(e.Properties))
	for i, p := range e.Properties {
		names[i] = p.Name
	}
	return names
}

// VisibleProperties returns properties not flagged hidden.
func (e *EntityMetadata) VisibleProperties() []*PropertyMetadata {
	var out []*PropertyMetadata
	for _, p := range e.Properties {
		if !p.IsHidden {
			out = append(out, p)
		}
	}
	return out
}

// New allocates a zero entity instance and returns a pointer to it.
func (e *EntityMetadata) New() any {
	return reflect.New(e.Type).Interface()
}

// Record wraps an entity instance (struct or pointer to struct of e.Type)
// as a query.Record keyed by property name.
func (e *EntityMetadata) Record(entity any) (query.Record, error) {
	v := reflect.ValueOf(entity)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil, fmt.Errorf("nil %s instance", e.ID)
		}
		v = v.Elem()
	}
	if v.Type() != e.Type {
		return nil, fmt.Errorf("expected %s, got %s", e.Type, v.Type())
	}
	return &structRecord{meta: e, v: v}, nil
}

// Decode copies the fields of r into a new entity instance. Fields r does
// not expose keep their zero value.
func (e *EntityMetadata) Decode(r query.Record) (any, error) {
	ptr := e.New()
	for _, p := range e.Properties {
		v, ok := r.Get(p.Name)
		if !ok {
			continue
		}
		if err := p.Set(ptr, v); err != nil {
			return nil, err
		}
	}
	return ptr, nil
}

func (e *EntityMetadata) index() {
	e.byName = make(map[string]*PropertyMetadata, len(e.Properties))
	e.byColumn = make(map[string]*PropertyMetadata, len(e.Properties))
	for _, p := range e.Properties {
		e.byName[p.Name] = p
		e.byColumn[p.Column] = p
	}
	e.navs = make(map[string]*NavigationMetadata, len(e.Navigations))
	for _, n := range e.Navigations {
		e.navs[n.Name] = n
	}
}
