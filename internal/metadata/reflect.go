package metadata

import (
	"reflect"
	"strings"
	"time"
	"unicode"

	"entity-admin/internal/kind"
)

var timeType = reflect.TypeOf(time.Time{})

// structField is one visible, exported field of an entity struct.
type structField struct {
	reflect.StructField
	decl int
}

// structFields lists the exported fields of t in declaration order,
// flattening embedded structs. Fields promoted through unexported
// embedded types are skipped because they cannot be set.
func structFields(t reflect.Type) []structField {
	var out []structField
	for _, f := range reflect.VisibleFields(t) {
		if !f.IsExported() {
			continue
		}
		if f.Anonymous && kind.Indirect(f.Type).Kind() == reflect.Struct && kind.Indirect(f.Type) != timeType {
			continue
		}
		if !reachable(t, f.Index) {
			continue
		}
		out = append(out, structField{StructField: f, decl: len(out)})
	}
	return out
}

func reachable(t reflect.Type, index []int) bool {
	for i := 1; i < len(index); i++ {
		if !t.FieldByIndex(index[:i]).IsExported() {
			return false
		}
	}
	return true
}

// isNavigationType reports whether t refers to another struct: a struct,
// pointer to struct, or slice/array of either.
func isNavigationType(t reflect.Type) (collection bool, target reflect.Type, ok bool) {
	switch t.Kind() {
	case reflect.Slice, reflect.Array:
		elem := kind.Indirect(t.Elem())
		if elem.Kind() == reflect.Struct && elem != timeType {
			return true, elem, true
		}
		return false, nil, false
	}
	elem := kind.Indirect(t)
	if elem.Kind() == reflect.Struct && elem != timeType {
		return false, elem, true
	}
	return false, nil, false
}

// defaultProperty derives the reflection defaults of a scalar field. The
// second result is false when the field has no scalar representation.
func defaultProperty(owner reflect.Type, f structField) (*PropertyMetadata, bool) {
	k, ok := kind.For(f.Type)
	if !ok {
		return nil, false
	}
	pk := isKeyName(owner, f.Name)
	integer := isInteger(kind.Indirect(f.Type))
	p := &PropertyMetadata{
		Name:                     f.Name,
		DisplayName:              humanize(f.Name),
		Column:                   toSnakeCase(f.Name),
		Type:                     f.Type,
		Kind:                     k,
		IsNullable:               f.Type.Kind() == reflect.Pointer,
		IsPrimaryKey:             pk,
		IsForeignKey:             !pk && isReferenceName(f.Name),
		IsValueGeneratedOnAdd:    (pk && integer) || f.Name == "CreatedAt",
		IsValueGeneratedOnUpdate: f.Name == "UpdatedAt",
		Order:                    orderUnset,
		SearchType:               SearchNone,
		index:                    f.Index,
		declIndex:                f.decl,
	}
	p.IsEditable = !p.IsPrimaryKey && !p.IsValueGeneratedOnAdd && !p.IsValueGeneratedOnUpdate
	return p, true
}

func defaultNavigation(owner reflect.Type, f structField, collection bool, target reflect.Type) *NavigationMetadata {
	n := &NavigationMetadata{
		PropertyMetadata: PropertyMetadata{
			Name:        f.Name,
			DisplayName: humanize(f.Name),
			Type:        f.Type,
			IsNullable:  true,
			IsEditable:  true,
			Order:       orderUnset,
			index:       f.Index,
			declIndex:   f.decl,
		},
		IsCollection: collection,
		TargetType:   target,
	}
	if collection {
		n.ForeignKey = toSnakeCase(owner.Name()) + "_id"
	} else {
		n.ForeignKey = toSnakeCase(f.Name) + "_id"
	}
	return n
}

func isKeyName(owner reflect.Type, name string) bool {
	switch name {
	case "ID", "Id", owner.Name() + "ID", owner.Name() + "Id":
		return true
	}
	return false
}

func isReferenceName(name string) bool {
	return len(name) > 2 && (strings.HasSuffix(name, "ID") || strings.HasSuffix(name, "Id"))
}

func isInteger(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}

// defaultEntityID derives an entity id from its type name.
func defaultEntityID(t reflect.Type) string {
	return toSnakeCase(t.Name())
}

// toSnakeCase converts CamelCase to snake_case, keeping acronyms together
// ("ShopID" -> "shop_id", "HTTPServer" -> "http_server").
func toSnakeCase(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 5)
	runes := []rune(s)
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prevLower := unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1])
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if prevLower || (nextLower && unicode.IsUpper(runes[i-1])) {
				b.WriteRune('_')
			}
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// humanize turns a Go identifier into words ("CreatedAt" -> "Created At").
func humanize(s string) string {
	words := strings.Split(toSnakeCase(s), "_")
	for i, w := range words {
		if w == "id" {
			words[i] = "ID"
			continue
		}
		if w != "" {
			r := []rune(w)
			r[0] = unicode.ToUpper(r[0])
			words[i] = string(r)
		}
	}
	return strings.Join(words, " ")
}

// pluralize forms a naive English plural.
func pluralize(s string) string {
	switch {
	case s == "":
		return s
	case strings.HasSuffix(s, "s"), strings.HasSuffix(s, "x"), strings.HasSuffix(s, "ch"), strings.HasSuffix(s, "sh"):
		return s + "es"
	case strings.HasSuffix(s, "y") && len(s) > 1 && !strings.ContainsRune("aeiou", rune(s[len(s)-2])):
		return s[:len(s)-1] + "ies"
	}
	return s + "s"
}
