package engine

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"entity-admin/internal/metadata"
	"entity-admin/internal/query"
	"entity-admin/internal/store"
)

func ids(t *testing.T, items []query.Record) []int {
	t.Helper()
	out := make([]int, len(items))
	for i, r := range items {
		out[i] = get(t, r, "ID").(int)
	}
	return out
}

func TestQuery_PageTwoOfSix(t *testing.T) {
	f := newFixture(t)
	res, err := f.svc.Query(context.Background(), Request{EntityID: "address", Page: 2, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, 6, res.Total)
	assert.Equal(t, 2, res.Page)
	assert.Equal(t, 2, res.PageSize)
	assert.Equal(t, []int{3, 4}, ids(t, res.Items))
}

func TestQuery_NormalizesPaging(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name           string
		page, size     int
		wantPage, want int
	}{
		{"page below one", -3, 2, 1, 2},
		{"default size", 1, 0, 1, 25},
		{"size above max", 1, 500, 1, 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := f.svc.Query(context.Background(), Request{EntityID: "address", Page: tt.page, PageSize: tt.size})
			require.NoError(t, err)
			assert.Equal(t, tt.wantPage, res.Page)
			assert.Equal(t, tt.want, res.PageSize)
		})
	}
}

func TestQuery_PageBeyondEnd(t *testing.T) {
	f := newFixture(t)
	res, err := f.svc.Query(context.Background(), Request{EntityID: "address", Page: 9, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, 6, res.Total)
	assert.NotNil(t, res.Items)
	assert.Empty(t, res.Items)
}

func TestQuery_HugePageIsClamped(t *testing.T) {
	f := newFixture(t)
	res, err := f.svc.Query(context.Background(), Request{EntityID: "address", Page: math.MaxInt, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, math.MaxInt/2, res.Page)
	assert.Equal(t, 6, res.Total)
	assert.Empty(t, res.Items)
}

func TestQuery_Projection(t *testing.T) {
	f := newFixture(t)
	res, err := f.svc.Query(context.Background(), Request{EntityID: "address", Fields: []string{"Street"}, PageSize: 1})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, []string{"Street"}, res.Items[0].Fields())
}

func TestQuery_DefaultProjectionSkipsHidden(t *testing.T) {
	f := newFixture(t)
	res, err := f.svc.Query(context.Background(), Request{EntityID: "address", PageSize: 1})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.NotContains(t, res.Items[0].Fields(), "Notes")
	assert.Contains(t, res.Items[0].Fields(), "Street")

	// Hidden properties can still be asked for by name.
	res, err = f.svc.Query(context.Background(), Request{EntityID: "address", Fields: []string{"Notes"}, PageSize: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"Notes"}, res.Items[0].Fields())
}

func TestQuery_UnknownField(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Query(context.Background(), Request{EntityID: "address", Fields: []string{"Street", "Planet", "Moon"}})
	ae := appErr(t, err)
	assert.Equal(t, "UNKNOWN_FIELD", ae.Code)
	assert.Equal(t, 400, ae.Status)
	require.Len(t, ae.Details, 2)
	assert.Equal(t, "Planet", ae.Details[0].Field)
	assert.Equal(t, "Moon", ae.Details[1].Field)
}

func TestQuery_UnknownEntity(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Query(context.Background(), Request{EntityID: "planet"})
	ae := appErr(t, err)
	assert.Equal(t, "UNKNOWN_ENTITY", ae.Code)
	assert.Equal(t, 404, ae.Status)
}

func TestQuery_Search(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		search string
		fields []string
		want   int
	}{
		{"ain", nil, 3},
		{"sq lond", nil, 2},
		{"   ", nil, 6},
		// No selected property is searchable, so the search is ignored.
		{"ain", []string{"ID"}, 6},
		// Only the selected street is searched.
		{"london", []string{"Street"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.search, func(t *testing.T) {
			res, err := f.svc.Query(context.Background(), Request{EntityID: "address", Search: tt.search, Fields: tt.fields})
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Total)
		})
	}
}

func TestQuery_HostSearchAndQueryFunctions(t *testing.T) {
	src := store.NewMemorySource()
	b := metadata.NewBuilder()
	var searched string
	metadata.Register[Address](b).
		SetSearchFunction(func(base query.Sequence, search string) (query.Sequence, error) {
			searched = search
			return base.Where(query.FieldTest{Field: "City", Op: query.OpEqualFold, Value: search}), nil
		}).
		SetCustomQueryFunction(func(base query.Sequence) query.Sequence {
			return base.Where(query.FieldTest{Field: "Street", Op: query.OpContainsFold, Value: "st"})
		})
	r, err := metadata.NewResolver(b)
	require.NoError(t, err)
	addr := mustResolve(t, r, "address")
	for i := range sixAddresses {
		require.NoError(t, src.Insert(context.Background(), addr, sixAddresses[i]))
	}
	svc := NewService(r, src, Config{})

	res, err := svc.Query(context.Background(), Request{EntityID: "address", Search: "new york"})
	require.NoError(t, err)
	assert.Equal(t, "new york", searched)
	// "Main St." and "Second main St." and "central street".
	assert.Equal(t, 3, res.Total)

	res, err = svc.Query(context.Background(), Request{EntityID: "address"})
	require.NoError(t, err)
	assert.Equal(t, 5, res.Total, "the custom query drops \"Central\"")
}

func TestQuery_CancelledContext(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := f.svc.Query(ctx, Request{EntityID: "address"})
	assert.Nil(t, res)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, "REQUEST_CANCELLED", AsAppError(err).Code)
}

func TestEntities(t *testing.T) {
	f := newFixture(t)
	all, err := f.svc.Entities()
	require.NoError(t, err)
	assert.Len(t, all, 4)

	_, err = f.svc.Entity("nope")
	assert.Equal(t, "UNKNOWN_ENTITY", appErr(t, err).Code)
}
