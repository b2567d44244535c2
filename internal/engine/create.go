package engine

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"reflect"

	"go.uber.org/zap"

	"entity-admin/internal/kind"
	"entity-admin/internal/metadata"
	"entity-admin/internal/query"
	"entity-admin/internal/store"
)

// Create stores a new record from values keyed by property name. Properties
// left out keep their zero value. Generated keys and timestamps are filled
// in, and a key that is not generated must be given.
func (s *Service) Create(ctx context.Context, entityID string, values map[string]any) (query.Record, error) {
	entity, err := s.Entity(entityID)
	if err != nil {
		return nil, err
	}
	if !entity.IsEditable {
		return nil, ReadOnlyError(entity.ID)
	}
	pk := entity.PrimaryKey()
	if pk == nil {
		return nil, ConfigurationError(fmt.Sprintf("%s has no primary key", entity.ID))
	}

	values = maps.Clone(values)
	var details []ErrorDetail
	var key any
	if !pk.IsValueGeneratedOnAdd {
		raw, ok := values[pk.Name]
		delete(values, pk.Name)
		key, details = createKey(pk, raw, ok)
	}

	fields, _, more := s.collectChanges(entity, nil, values, nil)
	details = append(details, more...)

	zero, err := entity.Record(entity.New())
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", entity.ID, err)
	}
	record := query.Row(query.ToMap(zero))
	for name, v := range fields {
		record[name] = v
	}
	if key != nil {
		record[pk.Name] = key
	}
	details = append(details, EvaluateRules(entity, entity.PropertyNames(), plainMap(record))...)
	if len(details) > 0 {
		return nil, ValidationError(details)
	}

	now := s.now()
	for _, p := range entity.Properties {
		if p.Kind.Name() != kind.NameTemporal || p.IsConcurrencyToken {
			continue
		}
		if !p.IsValueGeneratedOnAdd && !p.IsValueGeneratedOnUpdate {
			continue
		}
		if !isZeroValue(record[p.Name]) {
			continue
		}
		if v, err := kind.Coerce(now, p.Type); err == nil {
			record[p.Name] = v
		}
	}

	created, err := s.source.Create(ctx, entity, record)
	if err != nil {
		if errors.Is(err, store.ErrUniqueViolation) {
			return nil, ConflictError(fmt.Sprintf("%s with this key already exists", entity.DisplayName))
		}
		return nil, fmt.Errorf("create %s: %w", entity.ID, err)
	}
	newKey, _ := created.Get(pk.Name)
	s.logger.Info("record created",
		zap.String("entity", entity.ID),
		zap.Any("key", plainOf(newKey)),
	)
	return created, nil
}

// createKey coerces a client supplied primary key. A missing or nil key
// is reported as required.
func createKey(pk *metadata.PropertyMetadata, raw any, present bool) (any, []ErrorDetail) {
	if !present || raw == nil {
		return nil, []ErrorDetail{{Field: pk.Name, Rule: "required", Message: fmt.Sprintf("%s is required", pk.Name)}}
	}
	key, err := kind.Coerce(raw, pk.Type)
	if err != nil {
		return nil, []ErrorDetail{{Field: pk.Name, Rule: "type", Message: err.Error()}}
	}
	return key, nil
}

func isZeroValue(v any) bool {
	v = plainOf(v)
	return v == nil || reflect.ValueOf(v).IsZero()
}
