package store

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"time"

	"entity-admin/internal/kind"
	"entity-admin/internal/metadata"
	"entity-admin/internal/query"
)

// MemorySource keeps entity instances in process memory. Sequences
// enumerate a snapshot taken when they are enumerated, so concurrent
// writes never show up half-applied.
type MemorySource struct {
	mu    sync.RWMutex
	items map[string][]reflect.Value // entity id -> pointers to instances
}

func NewMemorySource() *MemorySource {
	return &MemorySource{items: make(map[string][]reflect.Value)}
}

// Insert stores a copy of item. A zero generated integer key is assigned
// the next free value and a zero creation timestamp is set to now.
func (s *MemorySource) Insert(ctx context.Context, entity *metadata.EntityMetadata, item any) error {
	_, err := s.insert(ctx, entity, item)
	return err
}

// Create stores an instance built from values and returns its record with
// generated values filled in.
func (s *MemorySource) Create(ctx context.Context, entity *metadata.EntityMetadata, values query.Record) (query.Record, error) {
	item, err := entity.Decode(values)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", entity.ID, err)
	}
	stored, err := s.insert(ctx, entity, item)
	if err != nil {
		return nil, err
	}
	rec, err := entity.Record(stored.Interface())
	if err != nil {
		return nil, err
	}
	return query.Project(rec, entity.PropertyNames()), nil
}

// insert stores a copy of item and returns another copy of what was stored.
func (s *MemorySource) insert(ctx context.Context, entity *metadata.EntityMetadata, item any) (reflect.Value, error) {
	if err := ctx.Err(); err != nil {
		return reflect.Value{}, err
	}
	if _, err := entity.Record(item); err != nil {
		return reflect.Value{}, err
	}
	c := reflect.New(entity.Type)
	c.Elem().Set(reflect.Indirect(reflect.ValueOf(item)))
	cloneEmbedded(c.Elem())

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range entity.Properties {
		v, _ := p.Value(c.Interface())
		if !p.IsValueGeneratedOnAdd || !isZero(v) {
			continue
		}
		var generated any
		switch {
		case p.IsPrimaryKey && p.Kind.Name() == kind.NameNumeric:
			generated = s.nextKey(entity, p)
		case p.Kind.Name() == kind.NameTemporal:
			generated = time.Now().UTC()
		default:
			continue
		}
		if err := p.Set(c.Interface(), generated); err != nil {
			return reflect.Value{}, fmt.Errorf("insert %s: %w", entity.ID, err)
		}
	}

	if pk := entity.PrimaryKey(); pk != nil {
		key, _ := pk.Value(c.Interface())
		if s.indexOf(entity, pk, key) >= 0 {
			return reflect.Value{}, fmt.Errorf("insert %s %v: %w", entity.ID, key, ErrUniqueViolation)
		}
	}
	s.items[entity.ID] = append(s.items[entity.ID], c)
	return copyOf(c), nil
}

// BaseSequence returns the records of entity in insertion order.
func (s *MemorySource) BaseSequence(_ context.Context, entity *metadata.EntityMetadata) (query.Sequence, error) {
	return query.FromLoader(func(ctx context.Context) ([]query.Record, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		snapshot := s.snapshot(entity)
		records := make([]query.Record, len(snapshot))
		for i, v := range snapshot {
			r, err := entity.Record(v.Interface())
			if err != nil {
				return nil, err
			}
			records[i] = r
		}
		return records, nil
	}), nil
}

// Single returns the record whose primary key equals key. Included
// navigations carry the related values held by the instance.
func (s *MemorySource) Single(ctx context.Context, entity *metadata.EntityMetadata, key any, includes []string) (query.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pk := entity.PrimaryKey()
	if pk == nil {
		return nil, fmt.Errorf("entity %s has no primary key", entity.ID)
	}

	s.mu.RLock()
	i := s.indexOf(entity, pk, key)
	var item reflect.Value
	if i >= 0 {
		item = copyOf(s.items[entity.ID][i])
	}
	s.mu.RUnlock()
	if i < 0 {
		return nil, fmt.Errorf("load %s %v: %w", entity.ID, key, ErrNotFound)
	}

	rec, err := entity.Record(item.Interface())
	if err != nil {
		return nil, err
	}
	row := query.Project(rec, entity.PropertyNames())
	for _, name := range includes {
		if entity.Navigation(name) == nil {
			return nil, fmt.Errorf("load include %s: %s has no navigation %q", name, entity.ID, name)
		}
		row[name], _ = rec.Get(name)
	}
	return row, nil
}

// Persist replaces the properties of the stored instance with those of
// updated, after checking the concurrency token against original.
func (s *MemorySource) Persist(ctx context.Context, entity *metadata.EntityMetadata, updated, original query.Record) (query.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pk := entity.PrimaryKey()
	if pk == nil {
		return nil, fmt.Errorf("entity %s has no primary key", entity.ID)
	}
	key, ok := updated.Get(pk.Name)
	if !ok {
		return nil, fmt.Errorf("persist %s: record has no %s", entity.ID, pk.Name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(entity, pk, key)
	if i < 0 {
		return nil, fmt.Errorf("update %s %v: %w", entity.ID, key, ErrNotFound)
	}
	current := s.items[entity.ID][i]
	if token := entity.ConcurrencyToken(); token != nil && original != nil {
		if want, ok := original.Get(token.Name); ok {
			have, _ := token.Value(current.Interface())
			if !sameValue(have, want) {
				return nil, fmt.Errorf("update %s %v: %w", entity.ID, key, ErrConcurrencyConflict)
			}
		}
	}

	next := copyOf(current)
	for _, p := range entity.Properties {
		if p.IsPrimaryKey {
			continue
		}
		v, ok := updated.Get(p.Name)
		if !ok {
			continue
		}
		if err := p.Set(next.Interface(), v); err != nil {
			return nil, fmt.Errorf("update %s %v: %w", entity.ID, key, err)
		}
	}
	s.items[entity.ID][i] = next
	return entity.Record(copyOf(next).Interface())
}

func (s *MemorySource) snapshot(entity *metadata.EntityMetadata) []reflect.Value {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := s.items[entity.ID]
	out := make([]reflect.Value, len(items))
	for i, v := range items {
		out[i] = copyOf(v)
	}
	return out
}

// indexOf finds the stored instance with the given key. Callers hold mu.
func (s *MemorySource) indexOf(entity *metadata.EntityMetadata, pk *metadata.PropertyMetadata, key any) int {
	for i, v := range s.items[entity.ID] {
		if have, _ := pk.Value(v.Interface()); sameValue(have, key) {
			return i
		}
	}
	return -1
}

// nextKey returns one more than the largest integer key stored. Callers
// hold mu.
func (s *MemorySource) nextKey(entity *metadata.EntityMetadata, pk *metadata.PropertyMetadata) int64 {
	var highest int64
	for _, v := range s.items[entity.ID] {
		have, _ := pk.Value(v.Interface())
		if n, ok := plainValue(have).(int64); ok && n > highest {
			highest = n
		}
	}
	return highest + 1
}

// copyOf returns a pointer to a copy of the instance v points to. Embedded
// struct pointers are copied too, since properties may live behind them.
func copyOf(v reflect.Value) reflect.Value {
	c := reflect.New(v.Type().Elem())
	c.Elem().Set(v.Elem())
	cloneEmbedded(c.Elem())
	return c
}

func cloneEmbedded(v reflect.Value) {
	for i := 0; i < v.NumField(); i++ {
		sf := v.Type().Field(i)
		f := v.Field(i)
		if !sf.Anonymous || !f.CanSet() {
			continue
		}
		switch {
		case f.Kind() == reflect.Pointer && f.Type().Elem().Kind() == reflect.Struct && !f.IsNil():
			c := reflect.New(f.Type().Elem())
			c.Elem().Set(f.Elem())
			cloneEmbedded(c.Elem())
			f.Set(c)
		case f.Kind() == reflect.Struct:
			cloneEmbedded(f)
		}
	}
}

// sameValue compares two field values after stripping pointers and named
// types, so an int key matches an int64 one.
func sameValue(a, b any) bool {
	pa, pb := plainValue(a), plainValue(b)
	if ta, ok := pa.(time.Time); ok {
		tb, ok := pb.(time.Time)
		return ok && ta.Equal(tb)
	}
	return reflect.DeepEqual(pa, pb)
}
