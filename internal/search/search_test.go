package search

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"entity-admin/internal/kind"
	"entity-admin/internal/metadata"
	"entity-admin/internal/query"
)

func addresses() query.Sequence {
	rows := []struct{ street, city string }{
		{"Main St.", "New York"},
		{"Main Square St.", "London"},
		{"Second Square St.", "London"},
		{"Second main St.", "New York"},
		{"Central", "London"},
		{"central street", "New York"},
	}
	records := make([]query.Record, len(rows))
	for i, r := range rows {
		records[i] = query.Row{"ID": i + 1, "Street": r.street, "City": r.city}
	}
	return query.FromRecords(records)
}

func streets(t *testing.T, seq query.Sequence) []string {
	t.Helper()
	items, err := seq.Fetch(context.Background(), 0, -1)
	require.NoError(t, err)
	out := make([]string, len(items))
	for i, r := range items {
		v, _ := r.Get("Street")
		out[i] = v.(string)
	}
	return out
}

func street(st metadata.SearchType) Specs {
	return Specs{{Field: "Street", Type: st}}
}

func TestBuildFilter_ContainsCaseInsensitive(t *testing.T) {
	seq, err := BuildFilter(addresses(), "ain", street(metadata.SearchContainsCaseInsensitive))
	require.NoError(t, err)
	assert.Equal(t, []string{"Main St.", "Main Square St.", "Second main St."}, streets(t, seq))
}

func TestBuildFilter_StartsWithCaseSensitive(t *testing.T) {
	seq, err := BuildFilter(addresses(), "Second", street(metadata.SearchStartsWithCaseSensitive))
	require.NoError(t, err)
	assert.Equal(t, []string{"Second Square St.", "Second main St."}, streets(t, seq))

	seq, err = BuildFilter(addresses(), "second", street(metadata.SearchStartsWithCaseSensitive))
	require.NoError(t, err)
	assert.Empty(t, streets(t, seq))
}

func TestBuildFilter_ExactMatchCaseInsensitive(t *testing.T) {
	seq, err := BuildFilter(addresses(), "Central", street(metadata.SearchExactMatchCaseInsensitive))
	require.NoError(t, err)
	assert.Equal(t, []string{"Central"}, streets(t, seq))
}

func TestBuildFilter_MultiTokenMultiField(t *testing.T) {
	specs := Specs{
		{Field: "Street", Type: metadata.SearchContainsCaseInsensitive},
		{Field: "City", Type: metadata.SearchContainsCaseInsensitive},
	}
	seq, err := BuildFilter(addresses(), "sq lond", specs)
	require.NoError(t, err)
	assert.Equal(t, []string{"Main Square St.", "Second Square St."}, streets(t, seq))
}

func TestBuildFilter_AllNoneLeavesBaseUnchanged(t *testing.T) {
	base := addresses()
	specs := Specs{
		{Field: "Street", Type: metadata.SearchNone},
		{Field: "City", Type: metadata.SearchNone},
	}
	seq, err := BuildFilter(base, "anything at all", specs)
	require.NoError(t, err)
	assert.Same(t, base, seq)
	assert.Len(t, streets(t, seq), 6)
}

func TestBuildFilter_EmptySearchLeavesBaseUnchanged(t *testing.T) {
	base := addresses()
	for _, s := range []string{"", "   ", `""`} {
		seq, err := BuildFilter(base, s, street(metadata.SearchContainsCaseInsensitive))
		require.NoError(t, err)
		assert.Same(t, base, seq, "search %q", s)
	}
}

func TestBuildFilter_QuotedTokenForcesExact(t *testing.T) {
	seq, err := BuildFilter(addresses(), `"central"`, street(metadata.SearchContainsCaseInsensitive))
	require.NoError(t, err)
	assert.Equal(t, []string{"Central"}, streets(t, seq))
}

func TestBuildFilter_QuotedPhraseIsNotKeptTogether(t *testing.T) {
	// Both halves keep their quote character and match nothing literally.
	seq, err := BuildFilter(addresses(), `"central street"`, street(metadata.SearchContainsCaseInsensitive))
	require.NoError(t, err)
	assert.Empty(t, streets(t, seq))
}

func TestBuildFilter_NoneFieldsDoNotContribute(t *testing.T) {
	specs := Specs{
		{Field: "Street", Type: metadata.SearchContainsCaseInsensitive},
		{Field: "City", Type: metadata.SearchNone},
	}
	seq, err := BuildFilter(addresses(), "london", specs)
	require.NoError(t, err)
	assert.Empty(t, streets(t, seq))
}

func TestBuildFilter_UndefinedSearchType(t *testing.T) {
	specs := Specs{
		{Field: "Street", Type: metadata.SearchContainsCaseInsensitive},
		{Field: "City", Type: metadata.SearchType(99)},
	}
	// Validation runs before the empty-search short-circuit.
	for _, s := range []string{"", "main"} {
		_, err := BuildFilter(addresses(), s, specs)
		require.Error(t, err)
		assert.ErrorIs(t, err, metadata.ErrConfiguration)
	}
}

func TestBuildFilter_NonTextValues(t *testing.T) {
	ts := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	base := query.FromRecords([]query.Record{
		query.Row{"Number": 1234, "Seen": ts},
		query.Row{"Number": 99, "Seen": ts.AddDate(1, 0, 0)},
	})
	numeric, _ := kind.Lookup(kind.NameNumeric)
	temporal, _ := kind.Lookup(kind.NameTemporal)

	seq, err := BuildFilter(base, "12", Specs{{Field: "Number", Type: metadata.SearchStartsWithCaseSensitive, Kind: numeric}})
	require.NoError(t, err)
	n, err := seq.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	seq, err = BuildFilter(base, "2024", Specs{{Field: "Seen", Type: metadata.SearchStartsWithCaseSensitive, Kind: temporal}})
	require.NoError(t, err)
	n, err = seq.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	seq, err = BuildFilter(base, "99", Specs{{Field: "Number", Type: metadata.SearchExactMatchCaseInsensitive, Kind: numeric}})
	require.NoError(t, err)
	n, err = seq.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		in   string
		want []Token
	}{
		{"", []Token{}},
		{"  main   street ", []Token{{Text: "main"}, {Text: "street"}}},
		{`"Central"`, []Token{{Text: "Central", Exact: true}}},
		{`"`, []Token{{Text: `"`}}},
		{`""`, []Token{}},
		{`"open`, []Token{{Text: `"open`}}},
		{`"a b"`, []Token{{Text: `"a`}, {Text: `b"`}}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Tokenize(tt.in), tt.in)
	}
}

func TestBuildPredicate_Shape(t *testing.T) {
	specs := Specs{
		{Field: "Street", Type: metadata.SearchContainsCaseInsensitive},
		{Field: "City", Type: metadata.SearchStartsWithCaseSensitive},
		{Field: "Zip", Type: metadata.SearchNone},
	}
	expr, err := BuildPredicate(`main "London"`, specs)
	require.NoError(t, err)

	var tests []query.FieldTest
	require.NoError(t, query.Walk(expr, func(ft query.FieldTest) { tests = append(tests, ft) }))
	require.Len(t, tests, 4)
	assert.Equal(t, query.FieldTest{Field: "Street", Op: query.OpContainsFold, Value: "main"}, tests[0])
	assert.Equal(t, query.FieldTest{Field: "City", Op: query.OpHasPrefix, Value: "main"}, tests[1])
	assert.Equal(t, query.FieldTest{Field: "Street", Op: query.OpEqualFold, Value: "London"}, tests[2])
	assert.Equal(t, query.FieldTest{Field: "City", Op: query.OpEqualFold, Value: "London"}, tests[3])
}

func TestSpecsFor(t *testing.T) {
	type Item struct {
		ID   int
		Name string `admin:"search=contains"`
	}
	b := metadata.NewBuilder()
	metadata.Register[Item](b)
	r, err := metadata.NewResolver(b)
	require.NoError(t, err)
	m, err := r.Resolve("item")
	require.NoError(t, err)

	specs := SpecsFor(m.Properties)
	require.Len(t, specs, 2)
	assert.Equal(t, metadata.SearchNone, specs[0].Type)
	assert.Equal(t, "Name", specs[1].Field)
	assert.Equal(t, metadata.SearchContainsCaseInsensitive, specs[1].Type)
	assert.True(t, specs.Searchable())
}
