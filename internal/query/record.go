// Package query provides the type-erased record model, the composable
// predicate tree and the lazy record sequences shared by the search builder,
// the query pipeline and the data sources.
package query

import "sort"

// Record is a named-field accessor over one entity instance whose concrete
// shape is only known through metadata.
type Record interface {
	// Get returns the value of the named field and whether it exists.
	Get(field string) (any, bool)

	// Fields returns the names of the fields the record exposes.
	Fields() []string
}

// Row is a map-backed Record, used for database rows and projections.
type Row map[string]any

// Get implements Record.
func (r Row) Get(field string) (any, bool) {
	v, ok := r[field]
	return v, ok
}

// Fields implements Record. Names are sorted.
func (r Row) Fields() []string {
	names := make([]string, 0, len(r))
	for k := range r {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// ToMap copies a record into a plain map, e.g. for JSON encoding.
func ToMap(r Record) map[string]any {
	if r == nil {
		return nil
	}
	out := make(map[string]any)
	for _, f := range r.Fields() {
		v, _ := r.Get(f)
		out[f] = v
	}
	return out
}

// Project returns a Row holding only the given fields of r. Fields the
// record does not expose are skipped.
func Project(r Record, fields []string) Row {
	out := make(Row, len(fields))
	for _, f := range fields {
		if v, ok := r.Get(f); ok {
			out[f] = v
		}
	}
	return out
}
