package metadata

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// TagName is the struct tag key holding property annotations.
const TagName = "admin"

// orderUnset is the annotation order sentinel meaning "no explicit order".
const orderUnset = -1

// EntityAnnotation is the declarative entity-level configuration returned
// by an entity's AdminEntity method. Zero values mean unset.
type EntityAnnotation struct {
	ID          string
	DisplayName string
	PluralName  string
	Description string
	Group       string
	Table       string
	Hidden      bool
	ReadOnly    bool
}

// Annotated is implemented by entity types that carry an EntityAnnotation.
type Annotated interface {
	AdminEntity() EntityAnnotation
}

var annotatedType = reflect.TypeOf((*Annotated)(nil)).Elem()

// entityAnnotation returns the overlay declared by t's AdminEntity method,
// if any. Both value and pointer receivers are honoured.
func entityAnnotation(t reflect.Type) EntityOverlay {
	var o EntityOverlay
	if !reflect.PointerTo(t).Implements(annotatedType) {
		return o
	}
	a := reflect.New(t).Interface().(Annotated).AdminEntity()
	setString := func(dst **string, v string) {
		if v != "" {
			*dst = &v
		}
	}
	setString(&o.ID, a.ID)
	setString(&o.DisplayName, a.DisplayName)
	setString(&o.PluralName, a.PluralName)
	setString(&o.Description, a.Description)
	setString(&o.Group, a.Group)
	setString(&o.Table, a.Table)
	if a.Hidden {
		hidden := true
		o.IsHidden = &hidden
	}
	if a.ReadOnly {
		editable := false
		o.IsEditable = &editable
	}
	return o
}

// parseTag parses an admin struct tag of the form "key=value;flag;...".
// Flags accept an optional boolean value ("hidden=false"). The tag "-"
// excludes the field.
func parseTag(tag string) (*NavigationOverlay, error) {
	o := &NavigationOverlay{}
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return o, nil
	}
	if tag == "-" {
		excluded := true
		o.IsExcluded = &excluded
		return o, nil
	}

	for _, part := range strings.Split(tag, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, hasValue := strings.Cut(part, "=")
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		if dst, ok := o.stringKeys()[key]; ok {
			if !hasValue || value == "" {
				return nil, fmt.Errorf("tag key %q requires a value", key)
			}
			v := value
			*dst = &v
			continue
		}
		if dst, ok := o.flagKeys()[key]; ok {
			b := true
			if hasValue {
				parsed, err := strconv.ParseBool(value)
				if err != nil {
					return nil, fmt.Errorf("tag key %q: invalid boolean %q", key, value)
				}
				b = parsed
			}
			*dst = &b
			continue
		}

		switch key {
		case "order":
			n, err := strconv.Atoi(value)
			if err != nil {
				return nil, fmt.Errorf("tag key %q: invalid integer %q", key, value)
			}
			if o.Order != nil && *o.Order != n {
				return nil, fmt.Errorf("conflicting explicit orders %d and %d", *o.Order, n)
			}
			if n != orderUnset {
				o.Order = &n
			}
		case "search":
			t, err := ParseSearchType(value)
			if err != nil {
				return nil, fmt.Errorf("tag key %q: %w", key, err)
			}
			o.SearchType = &t
		case "readonly":
			editable := false
			if hasValue {
				readonly, err := strconv.ParseBool(value)
				if err != nil {
					return nil, fmt.Errorf("tag key %q: invalid boolean %q", key, value)
				}
				editable = !readonly
			}
			o.IsEditable = &editable
		case "required":
			nullable := false
			o.IsNullable = &nullable
		case "fk":
			fk := true
			o.IsForeignKey = &fk
			if hasValue && value != "" {
				col := value
				o.ForeignKey = &col
			}
		default:
			return nil, fmt.Errorf("unknown tag key %q", key)
		}
	}
	return o, nil
}

func (o *NavigationOverlay) stringKeys() map[string]**string {
	return map[string]**string{
		"name":        &o.Name,
		"column":      &o.Column,
		"display":     &o.DisplayName,
		"description": &o.Description,
		"format":      &o.DisplayFormat,
	}
}

func (o *NavigationOverlay) flagKeys() map[string]**bool {
	return map[string]**bool{
		"hidden":      &o.IsHidden,
		"exclude":     &o.IsExcluded,
		"editable":    &o.IsEditable,
		"nullable":    &o.IsNullable,
		"pk":          &o.IsPrimaryKey,
		"concurrency": &o.IsConcurrencyToken,
		"upload":      &o.IsUpload,
		"include":     &o.Include,
		"details":     &o.ShowDetails,
		"editdetails": &o.EditDetails,
		"eager":       &o.IsIncluded,
	}
}
