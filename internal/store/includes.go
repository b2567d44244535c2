package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"entity-admin/internal/metadata"
	"entity-admin/internal/query"
)

// loadIncludes fetches the named navigations of one loaded row and
// attaches them under the navigation name: a query.Row (or nil) for a
// reference, a []query.Record for a collection.
func (s *SQLSource) loadIncludes(ctx context.Context, q Querier, entity *metadata.EntityMetadata, row query.Row, includes []string) error {
	for _, name := range includes {
		nav := entity.Navigation(name)
		if nav == nil {
			return fmt.Errorf("load include %s: %s has no navigation %q", name, entity.ID, name)
		}
		if nav.TargetID == "" {
			return fmt.Errorf("load include %s: target %s is not registered", name, nav.TargetType)
		}
		target, err := s.resolver.Resolve(nav.TargetID)
		if err != nil {
			return fmt.Errorf("load include %s: %w", name, err)
		}

		if nav.IsCollection {
			err = s.loadCollection(ctx, q, entity, target, nav, row)
		} else {
			err = s.loadReference(ctx, q, entity, target, nav, row)
		}
		if err != nil {
			return fmt.Errorf("load include %s: %w", name, err)
		}
	}
	return nil
}

// loadCollection loads the target rows whose foreign key column holds the
// owner's primary key.
func (s *SQLSource) loadCollection(ctx context.Context, q Querier, owner, target *metadata.EntityMetadata, nav *metadata.NavigationMetadata, row query.Row) error {
	pk := owner.PrimaryKey()
	if pk == nil {
		return fmt.Errorf("entity %s has no primary key", owner.ID)
	}
	if target.PropertyByColumn(nav.ForeignKey) == nil {
		return fmt.Errorf("%s has no column %q", target.ID, nav.ForeignKey)
	}

	d := s.store.Dialect
	pb := d.NewParamBuilder()
	sqlStr := fmt.Sprintf("SELECT %s FROM %s WHERE %s = %s",
		strings.Join(columnList(target, nil), ", "), QuoteIdent(target.Table),
		QuoteIdent(nav.ForeignKey), pb.Add(d.BindValue(row[pk.Name])))
	if tpk := target.PrimaryKey(); tpk != nil {
		sqlStr += " ORDER BY " + QuoteIdent(tpk.Column)
	}

	debugSQL(ctx, sqlStr, pb.Params())
	rows, err := QueryRows(ctx, q, sqlStr, pb.Params()...)
	if err != nil {
		return err
	}
	children := make([]query.Record, 0, len(rows))
	for _, raw := range rows {
		child, err := decodeRow(target, raw)
		if err != nil {
			return err
		}
		children = append(children, child)
	}
	row[nav.Name] = children
	return nil
}

// loadReference loads the target row referenced by the owner's foreign key
// column.
func (s *SQLSource) loadReference(ctx context.Context, q Querier, owner, target *metadata.EntityMetadata, nav *metadata.NavigationMetadata, row query.Row) error {
	fk := owner.PropertyByColumn(nav.ForeignKey)
	if fk == nil {
		return fmt.Errorf("%s has no column %q", owner.ID, nav.ForeignKey)
	}
	if plainValue(row[fk.Name]) == nil {
		row[nav.Name] = nil
		return nil
	}

	ref, err := s.single(ctx, q, target, row[fk.Name])
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			row[nav.Name] = nil
			return nil
		}
		return err
	}
	row[nav.Name] = ref
	return nil
}
