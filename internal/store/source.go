package store

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"time"

	"go.uber.org/zap"

	"entity-admin/internal/kind"
	"entity-admin/internal/logger"
	"entity-admin/internal/metadata"
	"entity-admin/internal/query"
)

// totalColumn carries the window count of a paged query.
const totalColumn = "__total"

// EntityResolver looks up the metadata of related entities.
type EntityResolver interface {
	Resolve(id string) (*metadata.EntityMetadata, error)
}

// SQLSource serves entity records from a SQL database. Sequences it
// returns are translated into a single SELECT when enumerated.
type SQLSource struct {
	store    *Store
	resolver EntityResolver
}

// NewSQLSource creates a source over s. resolver is used to load included
// navigations.
func NewSQLSource(s *Store, resolver EntityResolver) *SQLSource {
	return &SQLSource{store: s, resolver: resolver}
}

// BaseSequence returns the unfiltered records of entity.
func (s *SQLSource) BaseSequence(_ context.Context, entity *metadata.EntityMetadata) (query.Sequence, error) {
	if entity.Table == "" {
		return nil, fmt.Errorf("entity %s has no table", entity.ID)
	}
	return &sqlSequence{src: s, entity: entity}, nil
}

// Single loads the record whose primary key equals key, together with the
// named navigations.
func (s *SQLSource) Single(ctx context.Context, entity *metadata.EntityMetadata, key any, includes []string) (query.Record, error) {
	row, err := s.single(ctx, s.store.DB, entity, key)
	if err != nil {
		return nil, err
	}
	if err := s.loadIncludes(ctx, s.store.DB, entity, row, includes); err != nil {
		return nil, err
	}
	return row, nil
}

func (s *SQLSource) single(ctx context.Context, q Querier, entity *metadata.EntityMetadata, key any) (query.Row, error) {
	pk := entity.PrimaryKey()
	if pk == nil {
		return nil, fmt.Errorf("entity %s has no primary key", entity.ID)
	}
	d := s.store.Dialect
	pb := d.NewParamBuilder()
	sqlStr := fmt.Sprintf("SELECT %s FROM %s WHERE %s = %s",
		strings.Join(columnList(entity, nil), ", "), QuoteIdent(entity.Table),
		QuoteIdent(pk.Column), pb.Add(d.BindValue(key)))

	debugSQL(ctx, sqlStr, pb.Params())
	raw, err := QueryRow(ctx, q, sqlStr, pb.Params()...)
	if err != nil {
		return nil, fmt.Errorf("load %s %v: %w", entity.ID, key, err)
	}
	return decodeRow(entity, raw)
}

// Persist writes the properties of updated to the row with the same
// primary key. When the entity has a concurrency token the write only
// succeeds if the stored token still equals the one in original.
func (s *SQLSource) Persist(ctx context.Context, entity *metadata.EntityMetadata, updated, original query.Record) (query.Record, error) {
	pk := entity.PrimaryKey()
	if pk == nil {
		return nil, fmt.Errorf("entity %s has no primary key", entity.ID)
	}
	key, ok := updated.Get(pk.Name)
	if !ok {
		return nil, fmt.Errorf("persist %s: record has no %s", entity.ID, pk.Name)
	}

	d := s.store.Dialect
	pb := d.NewParamBuilder()
	var sets []string
	for _, p := range entity.Properties {
		if p.IsPrimaryKey {
			continue
		}
		v, ok := updated.Get(p.Name)
		if !ok {
			continue
		}
		sets = append(sets, QuoteIdent(p.Column)+" = "+pb.Add(d.BindValue(v)))
	}
	if len(sets) == 0 {
		return s.Single(ctx, entity, key, nil)
	}

	where := fmt.Sprintf(" WHERE %s = %s", QuoteIdent(pk.Column), pb.Add(d.BindValue(key)))
	if token := entity.ConcurrencyToken(); token != nil && original != nil {
		if ov, ok := original.Get(token.Name); ok {
			if plainValue(ov) == nil {
				where += fmt.Sprintf(" AND %s IS NULL", QuoteIdent(token.Column))
			} else {
				where += fmt.Sprintf(" AND %s = %s", QuoteIdent(token.Column), pb.Add(d.BindValue(ov)))
			}
		}
	}
	sqlStr := fmt.Sprintf("UPDATE %s SET %s%s", QuoteIdent(entity.Table), strings.Join(sets, ", "), where)

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	debugSQL(ctx, sqlStr, pb.Params())
	n, err := Exec(ctx, tx, sqlStr, pb.Params()...)
	if err != nil {
		return nil, fmt.Errorf("update %s %v: %w", entity.ID, key, MapError(d, err))
	}
	if n == 0 {
		exists, err := s.exists(ctx, tx, entity, pk, key)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, fmt.Errorf("update %s %v: %w", entity.ID, key, ErrNotFound)
		}
		return nil, fmt.Errorf("update %s %v: %w", entity.ID, key, ErrConcurrencyConflict)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.Single(ctx, entity, key, nil)
}

func (s *SQLSource) exists(ctx context.Context, q Querier, entity *metadata.EntityMetadata, pk *metadata.PropertyMetadata, key any) (bool, error) {
	d := s.store.Dialect
	pb := d.NewParamBuilder()
	sqlStr := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s = %s",
		QuoteIdent(entity.Table), QuoteIdent(pk.Column), pb.Add(d.BindValue(key)))
	var n int64
	if err := q.QueryRowContext(ctx, sqlStr, pb.Params()...).Scan(&n); err != nil {
		return false, fmt.Errorf("check %s %v: %w", entity.ID, key, err)
	}
	return n > 0, nil
}

// Insert stores a new entity instance. Zero generated keys are left to the
// database and zero creation timestamps are set to now.
func (s *SQLSource) Insert(ctx context.Context, entity *metadata.EntityMetadata, item any) error {
	_, err := s.insert(ctx, entity, item)
	return err
}

// Create stores a record built from values and returns it as stored,
// including generated values.
func (s *SQLSource) Create(ctx context.Context, entity *metadata.EntityMetadata, values query.Record) (query.Record, error) {
	item, err := entity.Decode(values)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", entity.ID, err)
	}
	key, err := s.insert(ctx, entity, item)
	if err != nil {
		return nil, err
	}
	return s.Single(ctx, entity, key, nil)
}

// insert writes item and returns its primary key. A key generated by the
// database is read back with RETURNING.
func (s *SQLSource) insert(ctx context.Context, entity *metadata.EntityMetadata, item any) (any, error) {
	rec, err := entity.Record(item)
	if err != nil {
		return nil, err
	}
	d := s.store.Dialect
	pb := d.NewParamBuilder()
	var cols, vals []string
	var key any
	var generated *metadata.PropertyMetadata
	for _, p := range entity.Properties {
		v, _ := rec.Get(p.Name)
		if p.IsValueGeneratedOnAdd && isZero(v) {
			if p.IsPrimaryKey {
				generated = p
				continue
			}
			if p.Kind.Name() == kind.NameTemporal {
				v = time.Now().UTC()
			}
		}
		if p.IsPrimaryKey {
			key = plainValue(v)
		}
		cols = append(cols, QuoteIdent(p.Column))
		vals = append(vals, pb.Add(d.BindValue(v)))
	}
	sqlStr := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		QuoteIdent(entity.Table), strings.Join(cols, ", "), strings.Join(vals, ", "))

	if generated == nil {
		debugSQL(ctx, sqlStr, pb.Params())
		if _, err := Exec(ctx, s.store.DB, sqlStr, pb.Params()...); err != nil {
			return nil, fmt.Errorf("insert %s: %w", entity.ID, MapError(d, err))
		}
		return key, nil
	}

	sqlStr += " RETURNING " + QuoteIdent(generated.Column)
	debugSQL(ctx, sqlStr, pb.Params())
	if err := s.store.DB.QueryRowContext(ctx, sqlStr, pb.Params()...).Scan(&key); err != nil {
		return nil, fmt.Errorf("insert %s: %w", entity.ID, MapError(d, err))
	}
	return key, nil
}

// sqlSequence accumulates predicates and a projection; nothing touches the
// database until Count, Fetch or Page.
type sqlSequence struct {
	src    *SQLSource
	entity *metadata.EntityMetadata
	where  []query.Expr
	fields []string
}

func (q *sqlSequence) Where(e query.Expr) query.Sequence {
	where := make([]query.Expr, len(q.where), len(q.where)+1)
	copy(where, q.where)
	return &sqlSequence{src: q.src, entity: q.entity, where: append(where, e), fields: q.fields}
}

func (q *sqlSequence) Select(fields ...string) query.Sequence {
	selected := make([]string, len(fields))
	copy(selected, fields)
	return &sqlSequence{src: q.src, entity: q.entity, where: q.where, fields: selected}
}

func (q *sqlSequence) Count(ctx context.Context) (int, error) {
	d := q.src.store.Dialect
	pb := d.NewParamBuilder()
	where, err := compileWhere(q.entity, pb, q.where)
	if err != nil {
		return 0, err
	}
	sqlStr := "SELECT COUNT(*) FROM " + QuoteIdent(q.entity.Table) + where

	debugSQL(ctx, sqlStr, pb.Params())
	var n int64
	if err := q.src.store.DB.QueryRowContext(ctx, sqlStr, pb.Params()...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", q.entity.ID, err)
	}
	return int(n), nil
}

func (q *sqlSequence) Fetch(ctx context.Context, offset, limit int) ([]query.Record, error) {
	items, _, err := q.fetch(ctx, offset, limit, false)
	return items, err
}

// Page returns one page and the total match count in a single statement
// using a window count. The count is queried separately only when the
// page is empty.
func (q *sqlSequence) Page(ctx context.Context, offset, limit int) ([]query.Record, int, error) {
	if limit == 0 {
		n, err := q.Count(ctx)
		return nil, n, err
	}
	items, total, err := q.fetch(ctx, offset, limit, true)
	if err != nil {
		return nil, 0, err
	}
	if len(items) == 0 && offset > 0 {
		total, err = q.Count(ctx)
		if err != nil {
			return nil, 0, err
		}
	}
	return items, total, nil
}

func (q *sqlSequence) fetch(ctx context.Context, offset, limit int, withTotal bool) ([]query.Record, int, error) {
	if offset < 0 {
		return nil, 0, fmt.Errorf("negative offset %d", offset)
	}
	if limit == 0 {
		return nil, 0, nil
	}
	for _, f := range q.fields {
		if q.entity.Property(f) == nil {
			return nil, 0, fmt.Errorf("%w: unknown field %q", ErrUnsupportedExpr, f)
		}
	}

	d := q.src.store.Dialect
	pb := d.NewParamBuilder()
	where, err := compileWhere(q.entity, pb, q.where)
	if err != nil {
		return nil, 0, err
	}
	cols := strings.Join(columnList(q.entity, q.fields), ", ")
	if withTotal {
		cols += ", COUNT(*) OVER() AS " + QuoteIdent(totalColumn)
	}
	sqlStr := "SELECT " + cols + " FROM " + QuoteIdent(q.entity.Table) + where
	if pk := q.entity.PrimaryKey(); pk != nil {
		sqlStr += " ORDER BY " + QuoteIdent(pk.Column)
	}
	sqlStr += d.LimitOffset(pb, offset, limit)

	debugSQL(ctx, sqlStr, pb.Params())
	rows, err := QueryRows(ctx, q.src.store.DB, sqlStr, pb.Params()...)
	if err != nil {
		return nil, 0, fmt.Errorf("fetch %s: %w", q.entity.ID, err)
	}

	items := make([]query.Record, 0, len(rows))
	total := 0
	for _, raw := range rows {
		if withTotal {
			total = toInt(raw[totalColumn])
		}
		row, err := decodeRow(q.entity, raw)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, row)
	}
	return items, total, nil
}

// columnList returns the quoted columns of the named properties, or of all
// properties when names is empty.
func columnList(entity *metadata.EntityMetadata, names []string) []string {
	if len(names) == 0 {
		cols := make([]string, len(entity.Properties))
		for i, p := range entity.Properties {
			cols[i] = QuoteIdent(p.Column)
		}
		return cols
	}
	cols := make([]string, 0, len(names))
	for _, n := range names {
		if p := entity.Property(n); p != nil {
			cols = append(cols, QuoteIdent(p.Column))
		}
	}
	return cols
}

// decodeRow re-keys a database row by property name and converts each
// value to the property's Go type.
func decodeRow(entity *metadata.EntityMetadata, raw map[string]any) (query.Row, error) {
	row := make(query.Row, len(raw))
	for col, v := range raw {
		p := entity.PropertyByColumn(col)
		if p == nil {
			continue
		}
		if v == nil {
			row[p.Name] = nil
			continue
		}
		val, err := kind.Coerce(v, kind.Indirect(p.Type))
		if err != nil {
			return nil, fmt.Errorf("decode %s.%s: %w", entity.ID, p.Name, err)
		}
		row[p.Name] = val
	}
	return row, nil
}

func toInt(v any) int {
	switch n := v.(type) {
	case int64:
		return int(n)
	case int32:
		return int(n)
	case int:
		return n
	case float64:
		return int(n)
	default:
		return 0
	}
}

func isZero(v any) bool {
	if v == nil {
		return true
	}
	return reflect.ValueOf(v).IsZero()
}

func debugSQL(ctx context.Context, sqlStr string, args []any) {
	logger.FromContext(ctx).Debug("sql", zap.String("query", sqlStr), zap.Int("args", len(args)))
}
