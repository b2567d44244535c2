package metadata

import (
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"entity-admin/internal/metrics"
	"entity-admin/internal/query"
)

type Base struct {
	ID        int
	CreatedAt time.Time
}

type Address struct {
	Base
	Street    string `admin:"search=contains;order=2"`
	City      string `admin:"search=contains;order=5;display=Town"`
	Zip       string `admin:"hidden"`
	Secret    string `admin:"exclude"`
	Internal  string
	Notes     *string
	UpdatedAt time.Time
	Version   int `admin:"concurrency"`
}

type Person struct {
	ID   int
	Name string
}

type Product struct {
	ID     int
	Name   string
	Price  float64
	ShopID int
}

type Shop struct {
	ID       int
	Name     string
	Owner    *Person `admin:"include;details"`
	Products []Product
	Tags     []string
}

type Category struct {
	ID    int
	Title string
}

func (Category) AdminEntity() EntityAnnotation {
	return EntityAnnotation{
		ID:          "cat",
		DisplayName: "Category",
		Description: "Product categories",
		Group:       "Catalog",
		ReadOnly:    true,
	}
}

func newAddressResolver(t *testing.T) *Resolver {
	t.Helper()
	b := NewBuilder()
	addr := Register[Address](b)
	addr.Property("Internal").Exclude()
	addr.Property("Street").SetOrder(7)
	r, err := NewResolver(b)
	require.NoError(t, err)
	return r
}

func TestResolve_Defaults(t *testing.T) {
	m, err := newAddressResolver(t).Resolve("address")
	require.NoError(t, err)

	assert.Equal(t, "address", m.ID)
	assert.Equal(t, "Address", m.DisplayName)
	assert.Equal(t, "Addresses", m.PluralName)
	assert.Equal(t, "addresses", m.Table)
	assert.True(t, m.IsEditable)
	assert.Equal(t, reflect.TypeOf(Address{}), m.Type)

	id := m.PrimaryKey()
	require.NotNil(t, id)
	assert.Equal(t, "ID", id.Name)
	assert.Equal(t, "id", id.Column)
	assert.True(t, id.IsValueGeneratedOnAdd)
	assert.False(t, id.IsEditable)

	created := m.Property("CreatedAt")
	require.NotNil(t, created)
	assert.Equal(t, "created_at", created.Column)
	assert.Equal(t, "Created At", created.DisplayName)
	assert.True(t, created.IsValueGeneratedOnAdd)
	assert.Equal(t, "temporal", created.Kind.Name())

	assert.True(t, m.Property("UpdatedAt").IsValueGeneratedOnUpdate)
	assert.True(t, m.Property("Notes").IsNullable)
	assert.False(t, m.Property("Street").IsNullable)
	assert.Equal(t, "Town", m.Property("City").DisplayName)

	version := m.ConcurrencyToken()
	require.NotNil(t, version)
	assert.Equal(t, "Version", version.Name)
}

func TestResolve_OrderPrecedence(t *testing.T) {
	m, err := newAddressResolver(t).Resolve("address")
	require.NoError(t, err)

	// City: annotation order 5, no fluent override.
	assert.Equal(t, 5, m.Property("City").Order)
	// Street: annotation order 2, fluent order 7 wins.
	assert.Equal(t, 7, m.Property("Street").Order)
	// Zip: no explicit order, declaration index.
	assert.Equal(t, 4, m.Property("Zip").Order)

	assert.Equal(t,
		[]string{"ID", "CreatedAt", "Zip", "City", "Street", "Notes", "UpdatedAt", "Version"},
		m.PropertyNames(),
	)
}

func TestResolve_ExclusionAndHidden(t *testing.T) {
	m, err := newAddressResolver(t).Resolve("address")
	require.NoError(t, err)

	assert.Nil(t, m.Property("Secret"), "excluded by annotation")
	assert.Nil(t, m.Property("Internal"), "excluded by fluent configuration")

	zip := m.Property("Zip")
	require.NotNil(t, zip)
	assert.True(t, zip.IsHidden)
	assert.NotContains(t, propertyNames(m.VisibleProperties()), "Zip")
}

func TestResolve_Searchability(t *testing.T) {
	b := NewBuilder()
	Register[Address](b).Property("City").SetSearchType(SearchNone)
	r, err := NewResolver(b)
	require.NoError(t, err)

	m, err := r.Resolve("address")
	require.NoError(t, err)
	for _, p := range m.Properties {
		assert.Equal(t, p.SearchType != SearchNone, p.IsSearchable, p.Name)
	}
	assert.True(t, m.Property("Street").IsSearchable)
	assert.Equal(t, SearchContainsCaseInsensitive, m.Property("Street").SearchType)
	assert.False(t, m.Property("City").IsSearchable)
}

func TestResolve_Idempotent(t *testing.T) {
	r := newAddressResolver(t)
	first, err := r.Resolve("address")
	require.NoError(t, err)
	second, err := r.Resolve("address")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, first.Describe(), second.Describe())
}

func TestResolve_ConcurrentFirstAccess(t *testing.T) {
	r := newAddressResolver(t)
	misses := testutil.ToFloat64(metrics.ResolverCacheTotal.WithLabelValues("miss"))

	const n = 64
	results := make([]*EntityMetadata, n)
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			m, err := r.Resolve("address")
			assert.NoError(t, err)
			results[i] = m
		}(i)
	}
	close(start)
	wg.Wait()

	for _, m := range results {
		assert.Same(t, results[0], m)
	}
	assert.Equal(t, misses+1, testutil.ToFloat64(metrics.ResolverCacheTotal.WithLabelValues("miss")))
}

func TestResolve_NotFound(t *testing.T) {
	r := newAddressResolver(t)

	_, err := r.Resolve("nope")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = r.ResolveType(reflect.TypeOf(Person{}))
	assert.ErrorIs(t, err, ErrNotFound)

	m, err := r.ResolveType(reflect.TypeOf(&Address{}))
	require.NoError(t, err)
	assert.Equal(t, "address", m.ID)
}

func TestResolve_EntityAnnotation(t *testing.T) {
	b := NewBuilder()
	Register[Category](b).SetDisplayName("Product Category")
	r, err := NewResolver(b)
	require.NoError(t, err)

	assert.Equal(t, []string{"cat"}, r.IDs())
	m, err := r.Resolve("cat")
	require.NoError(t, err)
	assert.Equal(t, "Product Category", m.DisplayName)
	assert.Equal(t, "Product Categories", m.PluralName)
	assert.Equal(t, "Product categories", m.Description)
	assert.Equal(t, "Catalog", m.Group)
	assert.False(t, m.IsEditable)
}

func TestResolve_Navigations(t *testing.T) {
	b := NewBuilder()
	Register[Shop](b).IncludeNavigation("Products").SetEditDetails(true)
	Register[Product](b)
	r, err := NewResolver(b)
	require.NoError(t, err)

	shop, err := r.Resolve("shop")
	require.NoError(t, err)
	assert.Equal(t, []string{"ID", "Name"}, shop.PropertyNames())
	require.Len(t, shop.Navigations, 2)

	owner := shop.Navigation("Owner")
	require.NotNil(t, owner)
	assert.False(t, owner.IsCollection)
	assert.True(t, owner.ShowDetails)
	assert.Empty(t, owner.TargetID, "Person is not registered")
	assert.Equal(t, "owner_id", owner.ForeignKey)

	products := shop.Navigation("Products")
	require.NotNil(t, products)
	assert.True(t, products.IsCollection)
	assert.True(t, products.EditDetails)
	assert.Equal(t, "product", products.TargetID)
	assert.Equal(t, "shop_id", products.ForeignKey)

	product, err := r.Resolve("product")
	require.NoError(t, err)
	assert.True(t, product.Property("ShopID").IsForeignKey)
	assert.Empty(t, product.Navigations)
}

func TestResolve_NavigationsNeverAutoIncluded(t *testing.T) {
	type Plain struct {
		ID       int
		Owner    *Person
		Products []Product
	}
	b := NewBuilder()
	Register[Plain](b)
	r, err := NewResolver(b)
	require.NoError(t, err)

	m, err := r.Resolve("plain")
	require.NoError(t, err)
	assert.Empty(t, m.Navigations)
	assert.Equal(t, []string{"ID"}, m.PropertyNames())
}

func TestResolve_Rules(t *testing.T) {
	b := NewBuilder()
	Register[Product](b).Property("Price").AddRule("value < 0", "must not be negative")
	r, err := NewResolver(b)
	require.NoError(t, err)

	m, err := r.Resolve("product")
	require.NoError(t, err)
	rules := m.Property("Price").Rules
	require.Len(t, rules, 1)

	bad, err := rules[0].Violated(-1.0, nil)
	require.NoError(t, err)
	assert.True(t, bad)
	ok, err := rules[0].Violated(3.5, nil)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "must not be negative", rules[0].Message)
}

func TestResolve_ConfigurationErrors(t *testing.T) {
	type UnknownKey struct {
		ID   int
		Name string `admin:"colour=red"`
	}
	type BadOrder struct {
		ID   int
		Name string `admin:"order=first"`
	}
	type BadSearch struct {
		ID   int
		Name string `admin:"search=fuzzy"`
	}
	type DupColumn struct {
		ID    int
		Name  string
		Title string `admin:"column=name"`
	}
	type DupName struct {
		ID    int
		Name  string
		Title string `admin:"name=Name"`
	}
	type ScalarInclude struct {
		ID   int
		Name string `admin:"include"`
	}
	type ScalarKeyColumn struct {
		ID      int
		OwnerID int `admin:"fk=owner"`
	}

	tests := []struct {
		name      string
		configure func(b *Builder)
		id        string
	}{
		{"unknown tag key", func(b *Builder) { Register[UnknownKey](b) }, "unknown_key"},
		{"malformed order", func(b *Builder) { Register[BadOrder](b) }, "bad_order"},
		{"undefined tag search type", func(b *Builder) { Register[BadSearch](b) }, "bad_search"},
		{"duplicate column", func(b *Builder) { Register[DupColumn](b) }, "dup_column"},
		{"duplicate name", func(b *Builder) { Register[DupName](b) }, "dup_name"},
		{"relation option on scalar", func(b *Builder) { Register[ScalarInclude](b) }, "scalar_include"},
		{"key column on scalar", func(b *Builder) { Register[ScalarKeyColumn](b) }, "scalar_key_column"},
		{"undefined fluent search type", func(b *Builder) {
			Register[Person](b).Property("Name").SetSearchType(SearchType(42))
		}, "person"},
		{"conflicting fluent orders", func(b *Builder) {
			p := Register[Person](b)
			p.Property("Name").SetOrder(1)
			p.Property("Name").SetOrder(2)
		}, "person"},
		{"unknown fluent property", func(b *Builder) {
			Register[Person](b).Property("Nickname").SetIsHidden(true)
		}, "person"},
		{"navigation configured as property", func(b *Builder) {
			Register[Shop](b).Property("Products").SetIsHidden(true)
		}, "shop"},
		{"scalar configured as navigation", func(b *Builder) {
			Register[Shop](b).IncludeNavigation("Name")
		}, "shop"},
		{"invalid rule", func(b *Builder) {
			Register[Product](b).Property("Price").AddRule("value <", "")
		}, "product"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBuilder()
			tt.configure(b)
			r, err := NewResolver(b)
			require.NoError(t, err)

			_, err = r.Resolve(tt.id)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrConfiguration)
			var cfg *ConfigError
			assert.True(t, errors.As(err, &cfg))
		})
	}
}

func TestResolve_ForeignKeyTags(t *testing.T) {
	type Owner struct {
		ID   int
		Name string
	}
	type Pet struct {
		ID      int
		OwnerID int    `admin:"fk"`
		Owner   *Owner `admin:"include;fk=owner_ref"`
	}
	b := NewBuilder()
	Register[Owner](b)
	Register[Pet](b)
	r, err := NewResolver(b)
	require.NoError(t, err)

	m, err := r.Resolve("pet")
	require.NoError(t, err)
	assert.True(t, m.Property("OwnerID").IsForeignKey)
	nav := m.Navigation("Owner")
	require.NotNil(t, nav)
	assert.Equal(t, "owner_ref", nav.ForeignKey)
}

func TestNewResolver_DuplicateID(t *testing.T) {
	b := NewBuilder()
	Register[Person](b).SetID("thing")
	Register[Product](b).SetID("thing")

	_, err := NewResolver(b)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestNewResolver_NonStruct(t *testing.T) {
	b := NewBuilder()
	Register[string](b)

	_, err := NewResolver(b)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestAll(t *testing.T) {
	b := NewBuilder()
	Register[Person](b)
	Register[Category](b)
	r, err := NewResolver(b)
	require.NoError(t, err)

	all, err := r.All()
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "person", all[0].ID)
	assert.Equal(t, "cat", all[1].ID)
}

func TestDescribe(t *testing.T) {
	m, err := newAddressResolver(t).Resolve("address")
	require.NoError(t, err)

	d := m.Describe()
	assert.Equal(t, "address", d.ID)
	require.Len(t, d.Properties, len(m.Properties))
	assert.Equal(t, "ID", d.Properties[0].Name)
	assert.Equal(t, "numeric", d.Properties[0].Kind)

	text, err := SearchContainsCaseInsensitive.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "contains", string(text))
}

func TestRecordAccessors(t *testing.T) {
	m, err := newAddressResolver(t).Resolve("address")
	require.NoError(t, err)

	a := &Address{Street: "Main St."}
	require.NoError(t, m.Property("ID").Set(a, "12"))
	assert.Equal(t, 12, a.ID)

	require.NoError(t, m.Property("Notes").Set(a, "ring twice"))
	require.NotNil(t, a.Notes)
	assert.Equal(t, "ring twice", *a.Notes)

	require.NoError(t, m.Property("Notes").Set(a, nil))
	assert.Nil(t, a.Notes)
	v, ok := m.Property("Notes").Value(a)
	assert.True(t, ok)
	assert.Nil(t, v)

	assert.Error(t, m.Property("Version").Set(a, "many"))
	assert.Error(t, m.Property("Version").Set(*a, 1), "non-pointer entity")

	rec, err := m.Record(a)
	require.NoError(t, err)
	street, ok := rec.Get("Street")
	assert.True(t, ok)
	assert.Equal(t, "Main St.", street)
	_, ok = rec.Get("Secret")
	assert.False(t, ok, "excluded properties are not exposed")
	assert.Equal(t, m.PropertyNames(), rec.Fields())

	_, err = m.Record(&Person{})
	assert.Error(t, err)

	decoded, err := m.Decode(query.Row{"Street": "Central", "ID": 3})
	require.NoError(t, err)
	got := decoded.(*Address)
	assert.Equal(t, "Central", got.Street)
	assert.Equal(t, 3, got.ID)
}

type Audit struct {
	CreatedBy string
}

type Note struct {
	ID int
	*Audit
	Body string
}

func TestRecordAccessors_EmbeddedPointer(t *testing.T) {
	b := NewBuilder()
	Register[Note](b)
	r, err := NewResolver(b)
	require.NoError(t, err)
	m, err := r.Resolve("note")
	require.NoError(t, err)

	by := m.Property("CreatedBy")
	require.NotNil(t, by)

	n := &Note{}
	_, ok := by.Value(n)
	assert.False(t, ok, "nil embedded pointer")

	require.NoError(t, by.Set(n, "ada"))
	require.NotNil(t, n.Audit)
	assert.Equal(t, "ada", n.CreatedBy)
	assert.Equal(t, "ada", by.Text(n))
}

func propertyNames(props []*PropertyMetadata) []string {
	out := make([]string, len(props))
	for i, p := range props {
		out[i] = p.Name
	}
	return out
}
