package query

import (
	"fmt"
	"strings"

	"entity-admin/internal/kind"
)

// Op is a field-test primitive.
type Op int

const (
	// OpContainsFold is a case-insensitive substring test.
	OpContainsFold Op = iota + 1
	// OpHasPrefix is a case-sensitive prefix test.
	OpHasPrefix
	// OpEqualFold is a case-insensitive full-value equality test.
	OpEqualFold
)

// String returns the string representation of the operator
func (o Op) String() string {
	switch o {
	case OpContainsFold:
		return "contains_fold"
	case OpHasPrefix:
		return "has_prefix"
	case OpEqualFold:
		return "equal_fold"
	default:
		return "unknown"
	}
}

// Expr is a node of a boolean predicate tree over records. Data sources
// either evaluate it in memory via Match or translate it into a native
// query (see store).
type Expr interface {
	Match(r Record) bool
}

// And matches when every child matches. An empty And matches everything.
type And []Expr

// Match implements Expr.
func (a And) Match(r Record) bool {
	for _, e := range a {
		if !e.Match(r) {
			return false
		}
	}
	return true
}

// Or matches when any child matches. An empty Or matches nothing.
type Or []Expr

// Match implements Expr.
func (o Or) Match(r Record) bool {
	for _, e := range o {
		if e.Match(r) {
			return true
		}
	}
	return false
}

// FieldTest compares one field's canonical text against Value.
// Missing and nil field values never match.
type FieldTest struct {
	Field string
	Op    Op
	Value string
	// Kind renders non-text values; nil selects the kind from the value.
	Kind kind.Kind
}

// Match implements Expr.
func (t FieldTest) Match(r Record) bool {
	v, ok := r.Get(t.Field)
	if !ok || v == nil {
		return false
	}
	k := t.Kind
	if k == nil {
		k = kind.Of(v)
	}
	s := k.Text(v)
	switch t.Op {
	case OpContainsFold:
		return strings.Contains(strings.ToLower(s), strings.ToLower(t.Value))
	case OpHasPrefix:
		return strings.HasPrefix(s, t.Value)
	case OpEqualFold:
		return strings.EqualFold(s, t.Value)
	}
	return false
}

// String renders the expression for logs.
func (t FieldTest) String() string {
	return fmt.Sprintf("%s %s %q", t.Field, t.Op, t.Value)
}

// Walk calls fn for every FieldTest in e, depth first. It returns an error
// for node types it does not know.
func Walk(e Expr, fn func(FieldTest)) error {
	switch n := e.(type) {
	case And:
		for _, c := range n {
			if err := Walk(c, fn); err != nil {
				return err
			}
		}
	case Or:
		for _, c := range n {
			if err := Walk(c, fn); err != nil {
				return err
			}
		}
	case FieldTest:
		fn(n)
	default:
		return fmt.Errorf("unsupported expression node %T", e)
	}
	return nil
}
