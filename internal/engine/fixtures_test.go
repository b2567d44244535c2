package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"entity-admin/internal/metadata"
	"entity-admin/internal/query"
	"entity-admin/internal/storage"
	"entity-admin/internal/store"
)

type Address struct {
	ID        int
	Street    string `admin:"search=contains"`
	City      string `admin:"search=contains"`
	Zip       *string
	Notes     string `admin:"hidden"`
	Version   int    `admin:"concurrency"`
	UpdatedAt time.Time
}

type Product struct {
	ID    int
	Name  string `admin:"search=contains"`
	Price float64
	Photo string `admin:"upload"`
}

type Country struct {
	ID   int
	Name string `admin:"search=contains"`
}

type Currency struct {
	Code string `admin:"pk"`
	Name string
}

var sixAddresses = []Address{
	{Street: "Main St.", City: "New York"},
	{Street: "Main Square St.", City: "London"},
	{Street: "Second Square St.", City: "London"},
	{Street: "Second main St.", City: "New York"},
	{Street: "Central", City: "London"},
	{Street: "central street", City: "New York"},
}

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	svc     *Service
	src     *store.MemorySource
	updated []query.Record

	// productHookErr is returned by the product AfterUpdate action.
	productHookErr error
}

// newFixture registers the test entities, seeds the six addresses and two
// products, and builds a Service with page sizes 25/50.
func newFixture(t *testing.T, opts ...ServiceOption) *fixture {
	t.Helper()
	f := &fixture{src: store.NewMemorySource()}

	b := metadata.NewBuilder()
	metadata.Register[Address](b).
		SetAfterUpdateAction(func(_ context.Context, rec query.Record) error {
			f.updated = append(f.updated, rec)
			return nil
		})
	product := metadata.Register[Product](b)
	product.Property("Price").AddRule("value < 0", "Price must not be negative")
	product.SetAfterUpdateAction(func(context.Context, query.Record) error { return f.productHookErr })
	metadata.Register[Country](b).SetIsEditable(false)
	metadata.Register[Currency](b)
	r, err := metadata.NewResolver(b)
	require.NoError(t, err)

	ctx := context.Background()
	addr := mustResolve(t, r, "address")
	for i := range sixAddresses {
		require.NoError(t, f.src.Insert(ctx, addr, sixAddresses[i]))
	}
	products := mustResolve(t, r, "product")
	require.NoError(t, f.src.Insert(ctx, products, Product{Name: "Tea", Price: 2.5}))
	require.NoError(t, f.src.Insert(ctx, products, Product{Name: "Cake", Price: 4}))
	require.NoError(t, f.src.Insert(ctx, mustResolve(t, r, "country"), Country{Name: "France"}))

	opts = append([]ServiceOption{WithClock(func() time.Time { return fixedNow })}, opts...)
	f.svc = NewService(r, f.src, Config{DefaultPageSize: 25, MaxPageSize: 50, MaxFileSize: 16}, opts...)
	return f
}

func withStorage(t *testing.T) (ServiceOption, string) {
	dir := t.TempDir()
	return WithFileStorage(storage.NewLocalStorage(dir)), dir
}

func mustResolve(t *testing.T, r *metadata.Resolver, id string) *metadata.EntityMetadata {
	t.Helper()
	m, err := r.Resolve(id)
	require.NoError(t, err)
	return m
}

func get(t *testing.T, r query.Record, field string) any {
	t.Helper()
	v, ok := r.Get(field)
	require.True(t, ok, "record has no field %s", field)
	return v
}

func appErr(t *testing.T, err error) *AppError {
	t.Helper()
	require.Error(t, err)
	var ae *AppError
	require.ErrorAs(t, err, &ae)
	return ae
}
