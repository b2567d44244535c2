// Package search compiles a free-text search string and per-field matching
// strategies into a lazy filter over a record sequence.
package search

import (
	"strings"

	"entity-admin/internal/kind"
	"entity-admin/internal/metadata"
	"entity-admin/internal/query"
)

// quote marks a token that must match a whole field value.
const quote = '"'

// Spec is the search participation of one field.
type Spec struct {
	Field string
	Type  metadata.SearchType
	// Kind renders non-text values to canonical text. Nil selects the kind
	// from each value.
	Kind kind.Kind
}

// Specs is an ordered list of field specs.
type Specs []Spec

// SpecsFor builds the specs of the given properties.
func SpecsFor(props []*metadata.PropertyMetadata) Specs {
	specs := make(Specs, 0, len(props))
	for _, p := range props {
		specs = append(specs, Spec{Field: p.Name, Type: p.SearchType, Kind: p.Kind})
	}
	return specs
}

// Validate fails with a *metadata.ConfigError for a strategy outside the
// defined set.
func (s Specs) Validate() error {
	for _, spec := range s {
		if !spec.Type.Valid() {
			return &metadata.ConfigError{
				Property: spec.Field,
				Reason:   "undefined search type " + spec.Type.String(),
			}
		}
	}
	return nil
}

// Searchable reports whether any spec contributes to search.
func (s Specs) Searchable() bool {
	for _, spec := range s {
		if spec.Type != metadata.SearchNone {
			return true
		}
	}
	return false
}

// Token is one whitespace-separated search term.
type Token struct {
	Text string
	// Exact is set for quoted tokens, which match whole values only.
	Exact bool
}

// Tokenize splits s on whitespace. A token wrapped in double quotes is
// unquoted and marked exact; quoting applies per token, so a quoted phrase
// containing spaces is not kept together. Tokens that are empty after
// unquoting are dropped.
func Tokenize(s string) []Token {
	fields := strings.Fields(s)
	tokens := make([]Token, 0, len(fields))
	for _, f := range fields {
		t := Token{Text: f}
		if len(f) >= 2 && f[0] == quote && f[len(f)-1] == quote {
			t = Token{Text: f[1 : len(f)-1], Exact: true}
		}
		if t.Text == "" {
			continue
		}
		tokens = append(tokens, t)
	}
	return tokens
}

// BuildPredicate returns the expression matching records where every token
// matches at least one searchable field. It returns nil when the search
// would not restrict anything.
func BuildPredicate(search string, specs Specs) (query.Expr, error) {
	if err := specs.Validate(); err != nil {
		return nil, err
	}
	if search == "" || !specs.Searchable() {
		return nil, nil
	}
	tokens := Tokenize(search)
	if len(tokens) == 0 {
		return nil, nil
	}

	all := make(query.And, 0, len(tokens))
	for _, t := range tokens {
		fieldTests := make(query.Or, 0, len(specs))
		for _, spec := range specs {
			if spec.Type == metadata.SearchNone {
				continue
			}
			fieldTests = append(fieldTests, query.FieldTest{
				Field: spec.Field,
				Op:    opFor(spec.Type, t.Exact),
				Value: t.Text,
				Kind:  spec.Kind,
			})
		}
		all = append(all, fieldTests)
	}
	return all, nil
}

// BuildFilter restricts base to records matching search over specs. The
// result stays lazy; base is returned unchanged when the search is empty or
// no spec is searchable.
func BuildFilter(base query.Sequence, search string, specs Specs) (query.Sequence, error) {
	expr, err := BuildPredicate(search, specs)
	if err != nil {
		return nil, err
	}
	if expr == nil {
		return base, nil
	}
	return base.Where(expr), nil
}

func opFor(t metadata.SearchType, exact bool) query.Op {
	if exact {
		return query.OpEqualFold
	}
	switch t {
	case metadata.SearchStartsWithCaseSensitive:
		return query.OpHasPrefix
	case metadata.SearchExactMatchCaseInsensitive:
		return query.OpEqualFold
	default:
		return query.OpContainsFold
	}
}
