package engine

import (
	"context"

	"entity-admin/internal/metadata"
	"entity-admin/internal/query"
)

// DataSource serves the records of registered entities. store.SQLSource
// and store.MemorySource implement it.
type DataSource interface {
	// BaseSequence returns the lazy, unfiltered records of entity.
	BaseSequence(ctx context.Context, entity *metadata.EntityMetadata) (query.Sequence, error)

	// Single loads the record with the given primary key together with
	// the named navigations. Missing records yield store.ErrNotFound.
	Single(ctx context.Context, entity *metadata.EntityMetadata, key any, includes []string) (query.Record, error)

	// Create stores a new record built from values and returns it as
	// stored, with generated keys and timestamps filled in. A duplicate
	// key yields store.ErrUniqueViolation.
	Create(ctx context.Context, entity *metadata.EntityMetadata, values query.Record) (query.Record, error)

	// Persist writes updated over the stored record. A stale concurrency
	// token in original yields store.ErrConcurrencyConflict.
	Persist(ctx context.Context, entity *metadata.EntityMetadata, updated, original query.Record) (query.Record, error)
}
