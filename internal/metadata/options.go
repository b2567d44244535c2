package metadata

import "reflect"

// EntityOverlay holds entity-level overrides from one configuration source.
// A nil field means "not set by this source".
type EntityOverlay struct {
	ID          *string
	DisplayName *string
	PluralName  *string
	Description *string
	Group       *string
	Table       *string
	IsHidden    *bool
	IsEditable  *bool
}

// PropertyOverlay holds property-level overrides from one configuration
// source.
type PropertyOverlay struct {
	Name          *string
	DisplayName   *string
	Description   *string
	Column        *string
	DisplayFormat *string
	Order         *int
	SearchType    *SearchType

	IsExcluded               *bool
	IsHidden                 *bool
	IsEditable               *bool
	IsNullable               *bool
	IsPrimaryKey             *bool
	IsForeignKey             *bool
	IsConcurrencyToken       *bool
	IsUpload                 *bool
	IsValueGeneratedOnAdd    *bool
	IsValueGeneratedOnUpdate *bool

	Rules []RuleSpec
}

// NavigationOverlay adds relation-specific overrides.
type NavigationOverlay struct {
	PropertyOverlay

	Include     *bool
	IsIncluded  *bool
	ShowDetails *bool
	EditDetails *bool
	ForeignKey  *string
}

func (o *NavigationOverlay) hasNavigationKeys() bool {
	return o.Include != nil || o.IsIncluded != nil || o.ShowDetails != nil || o.EditDetails != nil || o.ForeignKey != nil
}

// Builder collects fluent entity configuration at host startup. It is
// consumed once by NewResolver.
type Builder struct {
	entities []*EntityOptionsBuilder
	byType   map[reflect.Type]*EntityOptionsBuilder
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{byType: make(map[reflect.Type]*EntityOptionsBuilder)}
}

// Register adds the struct type T to b and returns its options builder.
// Registering the same type again returns the existing builder.
func Register[T any](b *Builder) *EntityOptionsBuilder {
	return b.Entity(reflect.TypeOf((*T)(nil)).Elem())
}

// Entity is the non-generic form of Register.
func (b *Builder) Entity(t reflect.Type) *EntityOptionsBuilder {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if e, ok := b.byType[t]; ok {
		return e
	}
	e := &EntityOptionsBuilder{
		typ:   t,
		props: make(map[string]*PropertyOptionsBuilder),
		navs:  make(map[string]*NavigationOptionsBuilder),
	}
	b.byType[t] = e
	b.entities = append(b.entities, e)
	return e
}

// EntityOptionsBuilder configures one entity type.
type EntityOptionsBuilder struct {
	typ     reflect.Type
	overlay EntityOverlay

	searchFunc  SearchFunc
	queryFunc   QueryFunc
	afterUpdate AfterUpdateFunc

	props     map[string]*PropertyOptionsBuilder
	propNames []string
	navs      map[string]*NavigationOptionsBuilder
	navNames  []string

	errs []error
}

func (e *EntityOptionsBuilder) SetID(id string) *EntityOptionsBuilder {
	e.overlay.ID = &id
	return e
}

func (e *EntityOptionsBuilder) SetDisplayName(name string) *EntityOptionsBuilder {
	e.overlay.DisplayName = &name
	return e
}

func (e *EntityOptionsBuilder) SetPluralName(name string) *EntityOptionsBuilder {
	e.overlay.PluralName = &name
	return e
}

func (e *EntityOptionsBuilder) SetDescription(desc string) *EntityOptionsBuilder {
	e.overlay.Description = &desc
	return e
}

// SetGroup places the entity under a named menu group.
func (e *EntityOptionsBuilder) SetGroup(group string) *EntityOptionsBuilder {
	e.overlay.Group = &group
	return e
}

func (e *EntityOptionsBuilder) SetTable(table string) *EntityOptionsBuilder {
	e.overlay.Table = &table
	return e
}

func (e *EntityOptionsBuilder) SetIsHidden(hidden bool) *EntityOptionsBuilder {
	e.overlay.IsHidden = &hidden
	return e
}

func (e *EntityOptionsBuilder) SetIsEditable(editable bool) *EntityOptionsBuilder {
	e.overlay.IsEditable = &editable
	return e
}

// SetSearchFunction replaces the built-in free-text filter.
func (e *EntityOptionsBuilder) SetSearchFunction(fn SearchFunc) *EntityOptionsBuilder {
	e.searchFunc = fn
	return e
}

// SetCustomQueryFunction transforms the base sequence before each query.
func (e *EntityOptionsBuilder) SetCustomQueryFunction(fn QueryFunc) *EntityOptionsBuilder {
	e.queryFunc = fn
	return e
}

// SetAfterUpdateAction registers a hook run after each successful update.
func (e *EntityOptionsBuilder) SetAfterUpdateAction(fn AfterUpdateFunc) *EntityOptionsBuilder {
	e.afterUpdate = fn
	return e
}

// Property returns the options builder of the named struct field. Calling
// it again for the same field returns the same builder.
func (e *EntityOptionsBuilder) Property(field string) *PropertyOptionsBuilder {
	if p, ok := e.props[field]; ok {
		return p
	}
	p := &PropertyOptionsBuilder{field: field, owner: e}
	e.props[field] = p
	e.propNames = append(e.propNames, field)
	return p
}

// ExcludeProperty drops the named field from the entity's metadata.
func (e *EntityOptionsBuilder) ExcludeProperty(field string) *EntityOptionsBuilder {
	e.Property(field).Exclude()
	return e
}

// IncludeNavigation adds the named relation field to the entity's
// navigations and returns its options builder.
func (e *EntityOptionsBuilder) IncludeNavigation(field string) *NavigationOptionsBuilder {
	if n, ok := e.navs[field]; ok {
		return n
	}
	include := true
	n := &NavigationOptionsBuilder{field: field, owner: e}
	n.overlay.Include = &include
	e.navs[field] = n
	e.navNames = append(e.navNames, field)
	return n
}

func (e *EntityOptionsBuilder) fail(field, format string, args ...any) {
	e.errs = append(e.errs, configErrorf(e.typ.Name(), field, format, args...))
}

func setOrder(owner *EntityOptionsBuilder, field string, dst **int, order int) {
	if *dst != nil && **dst != order {
		owner.fail(field, "conflicting explicit orders %d and %d", **dst, order)
		return
	}
	*dst = &order
}

// PropertyOptionsBuilder configures one scalar property.
type PropertyOptionsBuilder struct {
	field   string
	owner   *EntityOptionsBuilder
	overlay PropertyOverlay
}

func (p *PropertyOptionsBuilder) SetDisplayName(name string) *PropertyOptionsBuilder {
	p.overlay.DisplayName = &name
	return p
}

func (p *PropertyOptionsBuilder) SetDescription(desc string) *PropertyOptionsBuilder {
	p.overlay.Description = &desc
	return p
}

func (p *PropertyOptionsBuilder) SetColumn(column string) *PropertyOptionsBuilder {
	p.overlay.Column = &column
	return p
}

// SetDisplayFormat sets a fmt-style presentation format, e.g. "%.2f".
func (p *PropertyOptionsBuilder) SetDisplayFormat(format string) *PropertyOptionsBuilder {
	p.overlay.DisplayFormat = &format
	return p
}

// SetOrder sets the display order. Setting two different orders for the
// same property is a configuration error reported at resolve time.
func (p *PropertyOptionsBuilder) SetOrder(order int) *PropertyOptionsBuilder {
	setOrder(p.owner, p.field, &p.overlay.Order, order)
	return p
}

func (p *PropertyOptionsBuilder) SetSearchType(t SearchType) *PropertyOptionsBuilder {
	p.overlay.SearchType = &t
	return p
}

func (p *PropertyOptionsBuilder) SetIsHidden(hidden bool) *PropertyOptionsBuilder {
	p.overlay.IsHidden = &hidden
	return p
}

// Exclude drops the property from metadata entirely.
func (p *PropertyOptionsBuilder) Exclude() *PropertyOptionsBuilder {
	excluded := true
	p.overlay.IsExcluded = &excluded
	return p
}

func (p *PropertyOptionsBuilder) SetIsEditable(editable bool) *PropertyOptionsBuilder {
	p.overlay.IsEditable = &editable
	return p
}

func (p *PropertyOptionsBuilder) SetIsNullable(nullable bool) *PropertyOptionsBuilder {
	p.overlay.IsNullable = &nullable
	return p
}

func (p *PropertyOptionsBuilder) SetIsPrimaryKey(pk bool) *PropertyOptionsBuilder {
	p.overlay.IsPrimaryKey = &pk
	return p
}

func (p *PropertyOptionsBuilder) SetIsForeignKey(fk bool) *PropertyOptionsBuilder {
	p.overlay.IsForeignKey = &fk
	return p
}

// SetIsConcurrencyToken makes persist compare this property against the
// value originally read.
func (p *PropertyOptionsBuilder) SetIsConcurrencyToken(token bool) *PropertyOptionsBuilder {
	p.overlay.IsConcurrencyToken = &token
	return p
}

// SetIsUpload marks the property as holding the path of an uploaded file.
func (p *PropertyOptionsBuilder) SetIsUpload(upload bool) *PropertyOptionsBuilder {
	p.overlay.IsUpload = &upload
	return p
}

func (p *PropertyOptionsBuilder) SetIsValueGeneratedOnAdd(generated bool) *PropertyOptionsBuilder {
	p.overlay.IsValueGeneratedOnAdd = &generated
	return p
}

func (p *PropertyOptionsBuilder) SetIsValueGeneratedOnUpdate(generated bool) *PropertyOptionsBuilder {
	p.overlay.IsValueGeneratedOnUpdate = &generated
	return p
}

// AddRule adds a validation rule. expression is an expr-lang boolean that
// is true when the value is invalid; see Rule.
func (p *PropertyOptionsBuilder) AddRule(expression, message string) *PropertyOptionsBuilder {
	p.overlay.Rules = append(p.overlay.Rules, RuleSpec{Expression: expression, Message: message})
	return p
}

// NavigationOptionsBuilder configures one included relation.
type NavigationOptionsBuilder struct {
	field   string
	owner   *EntityOptionsBuilder
	overlay NavigationOverlay
}

func (n *NavigationOptionsBuilder) SetDisplayName(name string) *NavigationOptionsBuilder {
	n.overlay.DisplayName = &name
	return n
}

func (n *NavigationOptionsBuilder) SetDescription(desc string) *NavigationOptionsBuilder {
	n.overlay.Description = &desc
	return n
}

func (n *NavigationOptionsBuilder) SetOrder(order int) *NavigationOptionsBuilder {
	setOrder(n.owner, n.field, &n.overlay.Order, order)
	return n
}

func (n *NavigationOptionsBuilder) SetIsHidden(hidden bool) *NavigationOptionsBuilder {
	n.overlay.IsHidden = &hidden
	return n
}

func (n *NavigationOptionsBuilder) SetIsEditable(editable bool) *NavigationOptionsBuilder {
	n.overlay.IsEditable = &editable
	return n
}

// SetIsIncluded fetches the related data together with its owner.
func (n *NavigationOptionsBuilder) SetIsIncluded(included bool) *NavigationOptionsBuilder {
	n.overlay.IsIncluded = &included
	return n
}

func (n *NavigationOptionsBuilder) SetShowDetails(show bool) *NavigationOptionsBuilder {
	n.overlay.ShowDetails = &show
	return n
}

func (n *NavigationOptionsBuilder) SetEditDetails(edit bool) *NavigationOptionsBuilder {
	n.overlay.EditDetails = &edit
	return n
}

// SetForeignKey names the column holding the reference.
func (n *NavigationOptionsBuilder) SetForeignKey(column string) *NavigationOptionsBuilder {
	n.overlay.ForeignKey = &column
	return n
}
