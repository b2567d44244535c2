package store

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"entity-admin/internal/metadata"
	"entity-admin/internal/query"
)

// likeEscaper escapes LIKE wildcards in user input; the escape character
// is declared with ESCAPE '\'.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// compiler translates query.Expr trees into a WHERE fragment for one
// entity. Field names are property names and map to their columns.
type compiler struct {
	entity *metadata.EntityMetadata
	pb     ParamBuilder
}

// compileWhere renders the conjunction of exprs, or "" when there is none.
func compileWhere(entity *metadata.EntityMetadata, pb ParamBuilder, exprs []query.Expr) (string, error) {
	if len(exprs) == 0 {
		return "", nil
	}
	c := &compiler{entity: entity, pb: pb}
	parts := make([]string, 0, len(exprs))
	for _, e := range exprs {
		sqlStr, err := c.expr(e)
		if err != nil {
			return "", err
		}
		parts = append(parts, sqlStr)
	}
	return " WHERE " + strings.Join(parts, " AND "), nil
}

func (c *compiler) expr(e query.Expr) (string, error) {
	switch n := e.(type) {
	case query.And:
		return c.join(n, " AND ", "1=1")
	case query.Or:
		return c.join(n, " OR ", "1=0")
	case query.FieldTest:
		return c.fieldTest(n)
	case *query.FieldTest:
		return c.fieldTest(*n)
	default:
		return "", fmt.Errorf("%w: %T", ErrUnsupportedExpr, e)
	}
}

func (c *compiler) join(children []query.Expr, sep, empty string) (string, error) {
	if len(children) == 0 {
		return empty, nil
	}
	parts := make([]string, 0, len(children))
	for _, child := range children {
		s, err := c.expr(child)
		if err != nil {
			return "", err
		}
		parts = append(parts, s)
	}
	return "(" + strings.Join(parts, sep) + ")", nil
}

// fieldTest renders one comparison over the textual form of the column.
// NULL columns never match since every comparison with NULL is unknown.
func (c *compiler) fieldTest(ft query.FieldTest) (string, error) {
	p := c.entity.Property(ft.Field)
	if p == nil {
		return "", fmt.Errorf("%w: unknown field %q", ErrUnsupportedExpr, ft.Field)
	}
	col := "CAST(" + QuoteIdent(p.Column) + " AS TEXT)"

	switch ft.Op {
	case query.OpContainsFold:
		pattern := "%" + likeEscaper.Replace(strings.ToLower(ft.Value)) + "%"
		return fmt.Sprintf(`LOWER(%s) LIKE %s ESCAPE '\'`, col, c.pb.Add(pattern)), nil
	case query.OpHasPrefix:
		n := utf8.RuneCountInString(ft.Value)
		return fmt.Sprintf("substr(%s, 1, %d) = %s", col, n, c.pb.Add(ft.Value)), nil
	case query.OpEqualFold:
		return fmt.Sprintf("LOWER(%s) = %s", col, c.pb.Add(strings.ToLower(ft.Value))), nil
	default:
		return "", fmt.Errorf("%w: operator %s", ErrUnsupportedExpr, ft.Op)
	}
}
