package metadata

import (
	"reflect"
	"sort"
)

// Configuration sources are merged by applying overlays to the reflection
// defaults from lowest to highest precedence: annotation, then fluent.
// Each pass only writes attributes its overlay sets, so precedence holds
// per attribute. Every precedence decision lives in this file.

func entityDefaults(t reflect.Type) *EntityMetadata {
	display := humanize(t.Name())
	return &EntityMetadata{
		ID:          defaultEntityID(t),
		DisplayName: display,
		PluralName:  pluralize(display),
		Table:       pluralize(toSnakeCase(t.Name())),
		Type:        t,
		IsEditable:  true,
	}
}

// mergeEntity builds the entity-level attributes of reg.
func mergeEntity(reg *EntityOptionsBuilder) *EntityMetadata {
	e := entityDefaults(reg.typ)
	pluralSet := false
	for _, o := range []EntityOverlay{entityAnnotation(reg.typ), reg.overlay} {
		pluralSet = pluralSet || o.PluralName != nil
		applyEntity(e, o)
	}
	if !pluralSet {
		e.PluralName = pluralize(e.DisplayName)
	}
	e.SearchFunc = reg.searchFunc
	e.QueryFunc = reg.queryFunc
	e.AfterUpdate = reg.afterUpdate
	return e
}

func applyEntity(e *EntityMetadata, o EntityOverlay) {
	setString(&e.ID, o.ID)
	setString(&e.DisplayName, o.DisplayName)
	setString(&e.PluralName, o.PluralName)
	setString(&e.Description, o.Description)
	setString(&e.Group, o.Group)
	setString(&e.Table, o.Table)
	setBool(&e.IsHidden, o.IsHidden)
	setBool(&e.IsEditable, o.IsEditable)
}

// mergeProperty applies the overlays to p and reports whether the property
// was excluded.
func mergeProperty(p *PropertyMetadata, overlays ...PropertyOverlay) (excluded bool) {
	editableSet := false
	for _, o := range overlays {
		if o.IsExcluded != nil {
			excluded = *o.IsExcluded
		}
		editableSet = editableSet || o.IsEditable != nil
		applyProperty(p, o)
	}
	if !editableSet {
		p.IsEditable = !p.IsPrimaryKey && !p.IsValueGeneratedOnAdd && !p.IsValueGeneratedOnUpdate
	}
	p.IsSearchable = p.SearchType != SearchNone
	return excluded
}

func applyProperty(p *PropertyMetadata, o PropertyOverlay) {
	setString(&p.Name, o.Name)
	setString(&p.DisplayName, o.DisplayName)
	setString(&p.Description, o.Description)
	setString(&p.Column, o.Column)
	setString(&p.DisplayFormat, o.DisplayFormat)
	if o.Order != nil {
		p.Order = *o.Order
	}
	if o.SearchType != nil {
		p.SearchType = *o.SearchType
	}
	setBool(&p.IsHidden, o.IsHidden)
	setBool(&p.IsEditable, o.IsEditable)
	setBool(&p.IsNullable, o.IsNullable)
	setBool(&p.IsPrimaryKey, o.IsPrimaryKey)
	setBool(&p.IsForeignKey, o.IsForeignKey)
	setBool(&p.IsConcurrencyToken, o.IsConcurrencyToken)
	setBool(&p.IsUpload, o.IsUpload)
	setBool(&p.IsValueGeneratedOnAdd, o.IsValueGeneratedOnAdd)
	setBool(&p.IsValueGeneratedOnUpdate, o.IsValueGeneratedOnUpdate)
}

// mergeNavigation applies the overlays to n and reports whether the
// relation ends up included.
func mergeNavigation(n *NavigationMetadata, overlays ...NavigationOverlay) (include bool) {
	for _, o := range overlays {
		if o.Include != nil {
			include = *o.Include
		}
		if o.IsExcluded != nil && *o.IsExcluded {
			include = false
		}
		applyNavigation(n, o)
	}
	return include
}

func applyNavigation(n *NavigationMetadata, o NavigationOverlay) {
	applyProperty(&n.PropertyMetadata, o.PropertyOverlay)
	setBool(&n.IsIncluded, o.IsIncluded)
	setBool(&n.ShowDetails, o.ShowDetails)
	setBool(&n.EditDetails, o.EditDetails)
	setString(&n.ForeignKey, o.ForeignKey)
}

// effectiveOrder is the explicit order when set, else the declaration index.
func effectiveOrder(p *PropertyMetadata) int {
	if p.Order != orderUnset {
		return p.Order
	}
	return p.declIndex
}

// sortProperties orders by effective order, ties by declaration order, and
// records the effective order on each property.
func sortProperties(props []*PropertyMetadata) {
	for _, p := range props {
		p.Order = effectiveOrder(p)
	}
	sort.SliceStable(props, func(i, j int) bool {
		if props[i].Order != props[j].Order {
			return props[i].Order < props[j].Order
		}
		return props[i].declIndex < props[j].declIndex
	})
}

func sortNavigations(navs []*NavigationMetadata) {
	for _, n := range navs {
		n.Order = effectiveOrder(&n.PropertyMetadata)
	}
	sort.SliceStable(navs, func(i, j int) bool {
		if navs[i].Order != navs[j].Order {
			return navs[i].Order < navs[j].Order
		}
		return navs[i].declIndex < navs[j].declIndex
	})
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}
