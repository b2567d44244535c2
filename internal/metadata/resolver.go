package metadata

import (
	"fmt"
	"reflect"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"entity-admin/internal/metrics"
)

// Resolver owns the canonical EntityMetadata of every registered entity.
// Metadata is built lazily on first access, at most once per id, and
// cached for the lifetime of the process.
type Resolver struct {
	regs    map[string]*EntityOptionsBuilder
	ids     []string
	typeIDs map[reflect.Type]string

	cache  sync.Map // id -> *EntityMetadata
	group  singleflight.Group
	logger *zap.Logger
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithLogger sets the logger used for resolution events.
func WithLogger(l *zap.Logger) ResolverOption {
	return func(r *Resolver) { r.logger = l }
}

// NewResolver consumes the registrations of b. It fails when a registered
// type is not a struct or two registrations share an id.
func NewResolver(b *Builder, opts ...ResolverOption) (*Resolver, error) {
	r := &Resolver{
		regs:    make(map[string]*EntityOptionsBuilder, len(b.entities)),
		typeIDs: make(map[reflect.Type]string, len(b.entities)),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}

	for _, reg := range b.entities {
		if reg.typ.Kind() != reflect.Struct {
			return nil, configErrorf(reg.typ.String(), "", "entity type must be a struct, got %s", reg.typ.Kind())
		}
		id := mergeEntity(reg).ID
		if other, ok := r.regs[id]; ok {
			return nil, configErrorf(reg.typ.Name(), "", "duplicate entity id %q (also used by %s)", id, other.typ)
		}
		r.regs[id] = reg
		r.typeIDs[reg.typ] = id
		r.ids = append(r.ids, id)
	}
	return r, nil
}

// IDs returns the registered entity ids in registration order.
func (r *Resolver) IDs() []string {
	out := make([]string, len(r.ids))
	copy(out, r.ids)
	return out
}

// Resolve returns the metadata of the entity registered under id.
// Concurrent first calls for one id share a single computation and observe
// the same instance.
func (r *Resolver) Resolve(id string) (*EntityMetadata, error) {
	if m, ok := r.cache.Load(id); ok {
		metrics.ResolverCacheTotal.WithLabelValues("hit").Inc()
		return m.(*EntityMetadata), nil
	}
	reg, ok := r.regs[id]
	if !ok {
		return nil, fmt.Errorf("resolve %q: %w", id, ErrNotFound)
	}

	v, err, _ := r.group.Do(id, func() (any, error) {
		// A caller that lost the race to an earlier flight finds the result here.
		if m, ok := r.cache.Load(id); ok {
			return m, nil
		}
		metrics.ResolverCacheTotal.WithLabelValues("miss").Inc()
		m, err := r.build(id, reg)
		if err != nil {
			r.logger.Warn("entity metadata rejected", zap.String("entity", id), zap.Error(err))
			return nil, err
		}
		r.cache.Store(id, m)
		r.logger.Debug("entity metadata resolved",
			zap.String("entity", id),
			zap.Int("properties", len(m.Properties)),
			zap.Int("navigations", len(m.Navigations)),
		)
		return m, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*EntityMetadata), nil
}

// ResolveType resolves the entity registered for Go type t.
func (r *Resolver) ResolveType(t reflect.Type) (*EntityMetadata, error) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	id, ok := r.typeIDs[t]
	if !ok {
		return nil, fmt.Errorf("resolve type %s: %w", t, ErrNotFound)
	}
	return r.Resolve(id)
}

// All resolves every registered entity in registration order.
func (r *Resolver) All() ([]*EntityMetadata, error) {
	out := make([]*EntityMetadata, 0, len(r.ids))
	for _, id := range r.ids {
		m, err := r.Resolve(id)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// build merges reflection defaults, annotations and fluent configuration
// into the metadata of one entity.
func (r *Resolver) build(id string, reg *EntityOptionsBuilder) (*EntityMetadata, error) {
	if len(reg.errs) > 0 {
		return nil, reg.errs[0]
	}
	e := mergeEntity(reg)
	fields := structFields(reg.typ)

	known := make(map[string]structField, len(fields))
	for _, f := range fields {
		known[f.Name] = f
	}
	for _, name := range reg.propNames {
		f, ok := known[name]
		if !ok {
			return nil, configErrorf(id, name, "unknown property")
		}
		if _, _, nav := isNavigationType(f.Type); nav {
			return nil, configErrorf(id, name, "is a relation, configure it with IncludeNavigation")
		}
	}
	for _, name := range reg.navNames {
		f, ok := known[name]
		if !ok {
			return nil, configErrorf(id, name, "unknown navigation")
		}
		if _, _, nav := isNavigationType(f.Type); !nav {
			return nil, configErrorf(id, name, "is not a relation")
		}
	}

	for _, f := range fields {
		tag, err := parseTag(f.Tag.Get(TagName))
		if err != nil {
			return nil, configErrorf(id, f.Name, "%v", err)
		}

		if collection, target, nav := isNavigationType(f.Type); nav {
			n := defaultNavigation(reg.typ, f, collection, target)
			overlays := []NavigationOverlay{*tag}
			if fluent, ok := reg.navs[f.Name]; ok {
				overlays = append(overlays, fluent.overlay)
			}
			if !mergeNavigation(n, overlays...) {
				continue
			}
			n.TargetID = r.typeIDs[target]
			e.Navigations = append(e.Navigations, n)
			continue
		}

		if tag.ForeignKey != nil {
			return nil, configErrorf(id, f.Name, "fk=%s: a key column only applies to relations, use the bare fk flag", *tag.ForeignKey)
		}
		if tag.hasNavigationKeys() {
			return nil, configErrorf(id, f.Name, "relation options on a scalar property")
		}
		fluent, configured := reg.props[f.Name]
		p, ok := defaultProperty(reg.typ, f)
		if !ok {
			if configured || f.Tag.Get(TagName) != "" {
				return nil, configErrorf(id, f.Name, "unsupported property type %s", f.Type)
			}
			continue
		}
		overlays := []PropertyOverlay{tag.PropertyOverlay}
		if configured {
			overlays = append(overlays, fluent.overlay)
		}
		if mergeProperty(p, overlays...) {
			continue
		}
		if !p.SearchType.Valid() {
			return nil, configErrorf(id, p.Name, "undefined search type %d", int(p.SearchType))
		}
		for _, o := range overlays {
			for _, rs := range o.Rules {
				rule, err := compileRule(rs)
				if err != nil {
					return nil, configErrorf(id, p.Name, "%v", err)
				}
				p.Rules = append(p.Rules, rule)
			}
		}
		e.Properties = append(e.Properties, p)
	}

	if err := checkUnique(id, e.Properties); err != nil {
		return nil, err
	}
	sortProperties(e.Properties)
	sortNavigations(e.Navigations)
	e.index()
	return e, nil
}

func checkUnique(id string, props []*PropertyMetadata) error {
	names := make(map[string]bool, len(props))
	columns := make(map[string]string, len(props))
	for _, p := range props {
		if names[p.Name] {
			return configErrorf(id, p.Name, "duplicate property name")
		}
		names[p.Name] = true
		if other, ok := columns[p.Column]; ok {
			return configErrorf(id, p.Name, "column %q already used by %s", p.Column, other)
		}
		columns[p.Column] = p.Name
	}
	return nil
}
