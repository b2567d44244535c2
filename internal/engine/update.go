package engine

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"

	"go.uber.org/zap"

	"entity-admin/internal/kind"
	"entity-admin/internal/metadata"
	"entity-admin/internal/query"
	"entity-admin/internal/store"
)

// ErrAfterUpdate marks a failed AfterUpdate hook. The update it followed
// is already saved.
var ErrAfterUpdate = errors.New("after update hook failed")

// Get loads one record by its key, with the named navigations included.
func (s *Service) Get(ctx context.Context, entityID, rawKey string, includes []string) (query.Record, error) {
	entity, err := s.Entity(entityID)
	if err != nil {
		return nil, err
	}
	key, err := parseKey(entity, rawKey)
	if err != nil {
		return nil, err
	}
	var unknown []string
	for _, name := range includes {
		if entity.Navigation(name) == nil {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		return nil, UnknownFieldError(entity.ID, unknown...)
	}

	rec, err := s.source.Single(ctx, entity, key, includes)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, NotFoundError(entity.ID, rawKey)
		}
		return nil, fmt.Errorf("get %s/%s: %w", entity.ID, rawKey, err)
	}
	return rec, nil
}

// Update applies changes to the record with the given key. Changes are
// keyed by property name. When changes carry the concurrency token, its
// value is the token the client read and a stale value fails with
// CONCURRENCY_CONFLICT.
func (s *Service) Update(ctx context.Context, entityID, rawKey string, changes map[string]any) (query.Record, error) {
	entity, err := s.Entity(entityID)
	if err != nil {
		return nil, err
	}
	if !entity.IsEditable {
		return nil, ReadOnlyError(entity.ID)
	}
	key, err := parseKey(entity, rawKey)
	if err != nil {
		return nil, err
	}

	current, err := s.source.Single(ctx, entity, key, nil)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, NotFoundError(entity.ID, rawKey)
		}
		return nil, fmt.Errorf("load %s/%s: %w", entity.ID, rawKey, err)
	}

	original := query.Row(query.ToMap(current))
	values, changed, details := s.collectChanges(entity, key, changes, original)

	merged := query.Row(query.ToMap(current))
	for name, v := range values {
		merged[name] = v
	}
	details = append(details, EvaluateRules(entity, changed, plainMap(merged))...)
	if len(details) > 0 {
		return nil, ValidationError(details)
	}

	now := s.now()
	for _, p := range entity.Properties {
		if p.IsValueGeneratedOnUpdate && !p.IsConcurrencyToken && p.Kind.Name() == kind.NameTemporal {
			if v, err := kind.Coerce(now, p.Type); err == nil {
				merged[p.Name] = v
			}
		}
	}
	if token := entity.ConcurrencyToken(); token != nil {
		next, err := nextToken(token, original[token.Name], now)
		if err != nil {
			return nil, fmt.Errorf("advance %s token: %w", entity.ID, err)
		}
		merged[token.Name] = next
	}

	persisted, err := s.source.Persist(ctx, entity, merged, original)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrConcurrencyConflict):
			return nil, ConcurrencyConflictError(entity.ID, rawKey)
		case errors.Is(err, store.ErrNotFound):
			return nil, NotFoundError(entity.ID, rawKey)
		}
		return nil, fmt.Errorf("update %s/%s: %w", entity.ID, rawKey, err)
	}
	s.logger.Info("record updated",
		zap.String("entity", entity.ID),
		zap.String("key", rawKey),
		zap.Strings("fields", changed),
	)

	if entity.AfterUpdate != nil {
		if err := entity.AfterUpdate(ctx, persisted); err != nil {
			s.logger.Error("after update hook failed", zap.String("entity", entity.ID), zap.String("key", rawKey), zap.Error(err))
			return nil, fmt.Errorf("%w for %s/%s: %w", ErrAfterUpdate, entity.ID, rawKey, err)
		}
	}
	return persisted, nil
}

// collectChanges coerces the submitted values to their property types.
// On update the concurrency token is written into original rather than
// the values. A nil original means a new record is being built.
func (s *Service) collectChanges(entity *metadata.EntityMetadata, key any, changes map[string]any, original query.Row) (map[string]any, []string, []ErrorDetail) {
	values := make(map[string]any, len(changes))
	var changed []string
	var details []ErrorDetail

	for _, name := range sortedKeys(changes) {
		raw := changes[name]
		p := entity.Property(name)
		if p == nil {
			details = append(details, ErrorDetail{Field: name, Rule: "unknown", Message: fmt.Sprintf("%s has no field %s", entity.ID, name)})
			continue
		}

		if p.IsConcurrencyToken && original != nil {
			v, err := kind.Coerce(raw, p.Type)
			if err != nil {
				details = append(details, ErrorDetail{Field: name, Rule: "type", Message: err.Error()})
				continue
			}
			original[name] = v
			continue
		}

		if p.IsPrimaryKey {
			if v, err := kind.Coerce(raw, kind.Indirect(p.Type)); err == nil && reflect.DeepEqual(v, key) {
				continue
			}
		}
		if !p.IsEditable {
			details = append(details, ErrorDetail{Field: name, Rule: "read_only", Message: fmt.Sprintf("%s is read-only", name)})
			continue
		}
		if raw == nil {
			if !p.IsNullable {
				details = append(details, ErrorDetail{Field: name, Rule: "required", Message: fmt.Sprintf("%s is required", name)})
				continue
			}
			values[name] = nil
			changed = append(changed, name)
			continue
		}
		v, err := kind.Coerce(raw, p.Type)
		if err != nil {
			details = append(details, ErrorDetail{Field: name, Rule: "type", Message: err.Error()})
			continue
		}
		values[name] = v
		changed = append(changed, name)
	}
	return values, changed, details
}

// parseKey converts a key from a URL into the primary key's type.
func parseKey(entity *metadata.EntityMetadata, raw string) (any, error) {
	pk := entity.PrimaryKey()
	if pk == nil {
		return nil, ConfigurationError(fmt.Sprintf("%s has no primary key", entity.ID))
	}
	key, err := kind.Coerce(raw, kind.Indirect(pk.Type))
	if err != nil {
		return nil, InvalidPayloadError(fmt.Sprintf("invalid key %q for %s: %v", raw, entity.ID, err))
	}
	return key, nil
}

// nextToken advances a concurrency token: numbers count up, timestamps
// take the current time. Other kinds keep their value.
func nextToken(p *metadata.PropertyMetadata, current any, now time.Time) (any, error) {
	switch p.Kind.Name() {
	case kind.NameNumeric:
		n, err := kind.Coerce(plainOf(current), reflect.TypeOf(int64(0)))
		if err != nil {
			return nil, err
		}
		return kind.Coerce(n.(int64)+1, p.Type)
	case kind.NameTemporal:
		return kind.Coerce(now, p.Type)
	}
	return current, nil
}
