package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"entity-admin/internal/metadata"
)

type Address struct {
	ID      int
	Street  string `admin:"search=contains"`
	City    string `admin:"search=contains"`
	Version int    `admin:"concurrency"`
}

type Person struct {
	ID   int
	Name string
}

type Product struct {
	ID        int
	Name      string
	Price     float64
	ShopID    int
	CreatedAt time.Time
}

type Shop struct {
	ID       int
	Name     string
	OwnerID  *int
	Owner    *Person   `admin:"include"`
	Products []Product `admin:"include"`
}

func newResolver(t *testing.T) *metadata.Resolver {
	t.Helper()
	b := metadata.NewBuilder()
	metadata.Register[Address](b)
	metadata.Register[Person](b)
	metadata.Register[Product](b)
	metadata.Register[Shop](b)
	r, err := metadata.NewResolver(b)
	require.NoError(t, err)
	return r
}

func mustResolve(t *testing.T, r *metadata.Resolver, id string) *metadata.EntityMetadata {
	t.Helper()
	m, err := r.Resolve(id)
	require.NoError(t, err)
	return m
}

var sixAddresses = []Address{
	{Street: "Main St.", City: "New York"},
	{Street: "Main Square St.", City: "London"},
	{Street: "Second Square St.", City: "London"},
	{Street: "Second main St.", City: "New York"},
	{Street: "Central", City: "London"},
	{Street: "central street", City: "New York"},
}
