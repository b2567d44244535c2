package store

import (
	"context"
	"fmt"
	"strings"

	"entity-admin/internal/kind"
	"entity-admin/internal/metadata"
)

type Migrator struct {
	store *Store
}

func NewMigrator(store *Store) *Migrator {
	return &Migrator{store: store}
}

// Migrate ensures a table matches the entity metadata.
// Creates the table if it doesn't exist, or adds missing columns.
func (m *Migrator) Migrate(ctx context.Context, entity *metadata.EntityMetadata) error {
	exists, err := m.store.Dialect.TableExists(ctx, m.store.DB, entity.Table)
	if err != nil {
		return fmt.Errorf("check table exists: %w", err)
	}

	if !exists {
		return m.createTable(ctx, entity)
	}

	return m.alterTable(ctx, entity)
}

// MigrateAll migrates every entity in order.
func (m *Migrator) MigrateAll(ctx context.Context, entities []*metadata.EntityMetadata) error {
	for _, e := range entities {
		if err := m.Migrate(ctx, e); err != nil {
			return fmt.Errorf("migrate %s: %w", e.ID, err)
		}
	}
	return nil
}

func (m *Migrator) createTable(ctx context.Context, entity *metadata.EntityMetadata) error {
	cols := make([]string, 0, len(entity.Properties))
	for _, p := range entity.Properties {
		cols = append(cols, m.buildColumnDef(p))
	}

	sql := fmt.Sprintf("CREATE TABLE %s (\n  %s\n)", QuoteIdent(entity.Table), strings.Join(cols, ",\n  "))

	if _, err := m.store.DB.ExecContext(ctx, sql); err != nil {
		return fmt.Errorf("create table %s: %w", entity.Table, err)
	}
	return nil
}

func (m *Migrator) alterTable(ctx context.Context, entity *metadata.EntityMetadata) error {
	existing, err := m.store.Dialect.GetColumns(ctx, m.store.DB, entity.Table)
	if err != nil {
		return fmt.Errorf("get columns for %s: %w", entity.Table, err)
	}

	for _, p := range entity.Properties {
		if _, ok := existing[p.Column]; ok {
			continue
		}
		// Added columns stay nullable so existing rows remain valid.
		sql := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s",
			QuoteIdent(entity.Table), QuoteIdent(p.Column), m.columnType(p))
		if _, err := m.store.DB.ExecContext(ctx, sql); err != nil {
			return fmt.Errorf("add column %s.%s: %w", entity.Table, p.Column, err)
		}
	}
	return nil
}

func (m *Migrator) buildColumnDef(p *metadata.PropertyMetadata) string {
	col := QuoteIdent(p.Column) + " "

	if p.IsPrimaryKey {
		if p.IsValueGeneratedOnAdd && p.Kind.Name() == kind.NameNumeric {
			return col + m.store.Dialect.AutoIncrementKey()
		}
		return col + m.columnType(p) + " PRIMARY KEY"
	}

	col += m.columnType(p)
	if !p.IsNullable {
		col += " NOT NULL"
	}
	return col
}

func (m *Migrator) columnType(p *metadata.PropertyMetadata) string {
	return m.store.Dialect.ColumnType(p.Kind.ColumnType(p.Type))
}
