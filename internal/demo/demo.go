// Package demo registers a small shop domain used by the server's demo
// mode and by the describe command.
package demo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"entity-admin/internal/metadata"
	"entity-admin/internal/query"
	"entity-admin/internal/search"
)

// ProductStatus is stored by name so searches match in every source.
type ProductStatus string

const (
	StatusDraft        ProductStatus = "Draft"
	StatusActive       ProductStatus = "Active"
	StatusDiscontinued ProductStatus = "Discontinued"
)

func (s ProductStatus) String() string { return string(s) }

type Address struct {
	ID        int
	Street    string  `admin:"search=contains;order=1"`
	City      string  `admin:"search=contains;order=2"`
	Zip       *string `admin:"display=Postal code;search=startswith;order=3"`
	Version   int     `admin:"concurrency;hidden"`
	UpdatedAt time.Time
}

type Shop struct {
	ID        int
	Name      string    `admin:"search=contains;order=1"`
	AddressID *int      `admin:"display=Address"`
	Address   *Address  `admin:"include;details"`
	Products  []Product `admin:"include;details"`
	Logo      string    `admin:"upload;nullable"`
	CreatedAt time.Time `admin:"format=2006-01-02"`
}

type Product struct {
	ID        int
	Name      string        `admin:"search=contains;order=1"`
	SKU       string        `admin:"search=exact;order=2"`
	Price     float64       `admin:"format=%.2f"`
	Status    ProductStatus `admin:"search=exact"`
	ShopID    int
	CreatedAt time.Time
}

func (Product) AdminEntity() metadata.EntityAnnotation {
	return metadata.EntityAnnotation{
		Description: "Products offered by shops",
		Group:       "Catalog",
	}
}

// Register adds the demo entities to b.
func Register(b *metadata.Builder) {
	metadata.Register[Address](b).
		SetGroup("Locations").
		SetPluralName("Addresses").
		Property("Street").AddRule(`len(value) == 0`, "Street is required")

	shop := metadata.Register[Shop](b).SetGroup("Catalog")
	shop.Property("Name").AddRule(`len(value) < 2`, "Name needs at least two characters")
	shop.SetSearchFunction(searchShops)

	product := metadata.Register[Product](b)
	product.Property("Price").AddRule("value < 0", "Price must not be negative")
	// Discontinued products stay in the database but not in the admin.
	product.SetCustomQueryFunction(func(base query.Sequence) query.Sequence {
		return base.Where(query.Or{
			query.FieldTest{Field: "Status", Op: query.OpEqualFold, Value: StatusDraft.String()},
			query.FieldTest{Field: "Status", Op: query.OpEqualFold, Value: StatusActive.String()},
		})
	})
}

// searchShops matches a leading "#<id>" exactly and otherwise falls back
// to a contains search on the name.
func searchShops(base query.Sequence, text string) (query.Sequence, error) {
	text = strings.TrimSpace(text)
	if id, ok := strings.CutPrefix(text, "#"); ok && id != "" {
		return base.Where(query.FieldTest{Field: "ID", Op: query.OpEqualFold, Value: id}), nil
	}
	return search.BuildFilter(base, text, search.Specs{
		{Field: "Name", Type: metadata.SearchContainsCaseInsensitive},
	})
}

// Inserter adds records to a data source.
type Inserter interface {
	Insert(ctx context.Context, entity *metadata.EntityMetadata, item any) error
}

// Seed inserts the demo records.
func Seed(ctx context.Context, r *metadata.Resolver, dst Inserter) error {
	zip := func(s string) *string { return &s }
	id := func(n int) *int { return &n }

	addresses := []Address{
		{Street: "Main St.", City: "New York", Zip: zip("10001")},
		{Street: "Main Square St.", City: "London"},
		{Street: "Second Square St.", City: "London", Zip: zip("EC1A")},
		{Street: "Second main St.", City: "New York"},
		{Street: "Central", City: "London"},
		{Street: "central street", City: "New York", Zip: zip("10003")},
	}
	shops := []Shop{
		{Name: "Corner Tea", AddressID: id(2)},
		{Name: "Cake Factory", AddressID: id(4)},
		{Name: "Pop-up"},
	}
	products := []Product{
		{Name: "Green Tea", SKU: "TEA-001", Price: 3.5, Status: StatusActive, ShopID: 1},
		{Name: "Black Tea", SKU: "TEA-002", Price: 2.9, Status: StatusActive, ShopID: 1},
		{Name: "Earl Grey", SKU: "TEA-003", Price: 4.2, Status: StatusDiscontinued, ShopID: 1},
		{Name: "Cheesecake", SKU: "CAK-001", Price: 18, Status: StatusActive, ShopID: 2},
		{Name: "Carrot Cake", SKU: "CAK-002", Price: 16.5, Status: StatusDraft, ShopID: 2},
	}

	for _, batch := range []struct {
		id    string
		items []any
	}{
		{"address", toAny(addresses)},
		{"shop", toAny(shops)},
		{"product", toAny(products)},
	} {
		entity, err := r.Resolve(batch.id)
		if err != nil {
			return fmt.Errorf("seed %s: %w", batch.id, err)
		}
		for _, item := range batch.items {
			if err := dst.Insert(ctx, entity, item); err != nil {
				return fmt.Errorf("seed %s: %w", batch.id, err)
			}
		}
	}
	return nil
}

func toAny[T any](items []T) []any {
	out := make([]any, len(items))
	for i := range items {
		out[i] = items[i]
	}
	return out
}
