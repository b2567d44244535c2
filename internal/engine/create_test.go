package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreate_GeneratesKeyAndTimestamps(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec, err := f.svc.Create(ctx, "address", map[string]any{"Street": "Harbour Rd.", "City": "Oslo", "Notes": "new"})
	require.NoError(t, err)
	assert.Equal(t, 7, get(t, rec, "ID"))
	assert.Equal(t, "Harbour Rd.", get(t, rec, "Street"))
	assert.Equal(t, fixedNow, get(t, rec, "UpdatedAt"))
	assert.Equal(t, 0, get(t, rec, "Version"))

	got, err := f.svc.Get(ctx, "address", "7", nil)
	require.NoError(t, err)
	assert.Equal(t, "Oslo", get(t, got, "City"))

	res, err := f.svc.Query(ctx, Request{EntityID: "address"})
	require.NoError(t, err)
	assert.Equal(t, 7, res.Total)
	assert.Empty(t, f.updated, "creating does not run the after-update action")
}

func TestCreate_GivenKey(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec, err := f.svc.Create(ctx, "currency", map[string]any{"Code": "EUR", "Name": "Euro"})
	require.NoError(t, err)
	assert.Equal(t, "EUR", get(t, rec, "Code"))

	_, err = f.svc.Create(ctx, "currency", map[string]any{"Code": "EUR", "Name": "Euro again"})
	assert.Equal(t, "CONFLICT", appErr(t, err).Code)

	_, err = f.svc.Create(ctx, "currency", map[string]any{"Name": "Nameless"})
	ae := appErr(t, err)
	assert.Equal(t, "VALIDATION_FAILED", ae.Code)
	require.Len(t, ae.Details, 1)
	assert.Equal(t, ErrorDetail{Field: "Code", Rule: "required", Message: "Code is required"}, ae.Details[0])
}

func TestCreate_ValidationDetails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, "address", map[string]any{
		"ID":      3,
		"Planet":  "Mars",
		"Street":  nil,
		"Version": "x",
	})
	ae := appErr(t, err)
	assert.Equal(t, "VALIDATION_FAILED", ae.Code)
	rules := map[string]string{}
	for _, d := range ae.Details {
		rules[d.Field] = d.Rule
	}
	assert.Equal(t, "read_only", rules["ID"])
	assert.Equal(t, "unknown", rules["Planet"])
	assert.Equal(t, "required", rules["Street"])
	assert.Equal(t, "type", rules["Version"])

	// Rules run against every property of the new record.
	_, err = f.svc.Create(ctx, "product", map[string]any{"Name": "Refund", "Price": -1})
	ae = appErr(t, err)
	require.Len(t, ae.Details, 1)
	assert.Equal(t, "Price must not be negative", ae.Details[0].Message)

	res, err := f.svc.Query(ctx, Request{EntityID: "address"})
	require.NoError(t, err)
	assert.Equal(t, 6, res.Total, "nothing was stored")
}

func TestCreate_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, "country", map[string]any{"Name": "Spain"})
	assert.Equal(t, "READ_ONLY", appErr(t, err).Code)

	_, err = f.svc.Create(ctx, "planet", map[string]any{"Name": "Mars"})
	assert.Equal(t, "UNKNOWN_ENTITY", appErr(t, err).Code)
}
