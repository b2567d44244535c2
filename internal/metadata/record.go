package metadata

import "reflect"

// structRecord exposes an entity struct as a query.Record through the
// accessors cached on its PropertyMetadata.
type structRecord struct {
	meta *EntityMetadata
	v    reflect.Value
}

func (r *structRecord) Get(field string) (any, bool) {
	if p := r.meta.byName[field]; p != nil {
		return p.valueOf(r.v)
	}
	if n := r.meta.navs[field]; n != nil {
		return n.valueOf(r.v)
	}
	return nil, false
}

func (r *structRecord) Fields() []string {
	return r.meta.PropertyNames()
}

// Entity returns the underlying entity value.
func (r *structRecord) Entity() any {
	return r.v.Interface()
}
