package query

import (
	"context"
	"fmt"
)

// Sequence is a lazy, immutable view over the records of one entity.
// Where and Select return new sequences and never run the underlying fetch;
// only Count and Fetch do, and both honour ctx cancellation.
type Sequence interface {
	// Where restricts the sequence to records matching e.
	Where(e Expr) Sequence

	// Select projects records to the given fields. No fields means all.
	Select(fields ...string) Sequence

	// Count returns the number of matching records.
	Count(ctx context.Context) (int, error)

	// Fetch returns up to limit matching records starting at offset.
	// A negative limit returns everything from offset on.
	Fetch(ctx context.Context, offset, limit int) ([]Record, error)
}

// Pager is implemented by sequences that can count and slice in a single
// round-trip to their source.
type Pager interface {
	Page(ctx context.Context, offset, limit int) (items []Record, total int, err error)
}

// Loader produces the full, unfiltered record set of an in-memory sequence.
type Loader func(ctx context.Context) ([]Record, error)

type memSequence struct {
	load   Loader
	where  []Expr
	fields []string
}

// FromRecords returns an in-memory sequence over a fixed record set.
func FromRecords(records []Record) Sequence {
	return FromLoader(func(context.Context) ([]Record, error) {
		return records, nil
	})
}

// FromLoader returns an in-memory sequence whose records are produced by
// load each time the sequence is enumerated.
func FromLoader(load Loader) Sequence {
	return &memSequence{load: load}
}

func (s *memSequence) Where(e Expr) Sequence {
	where := make([]Expr, len(s.where), len(s.where)+1)
	copy(where, s.where)
	return &memSequence{load: s.load, where: append(where, e), fields: s.fields}
}

func (s *memSequence) Select(fields ...string) Sequence {
	selected := make([]string, len(fields))
	copy(selected, fields)
	return &memSequence{load: s.load, where: s.where, fields: selected}
}

func (s *memSequence) Count(ctx context.Context) (int, error) {
	_, total, err := s.Page(ctx, 0, 0)
	return total, err
}

func (s *memSequence) Fetch(ctx context.Context, offset, limit int) ([]Record, error) {
	items, _, err := s.Page(ctx, offset, limit)
	return items, err
}

// Page implements Pager with a single enumeration of the loader's records.
func (s *memSequence) Page(ctx context.Context, offset, limit int) ([]Record, int, error) {
	if offset < 0 {
		return nil, 0, fmt.Errorf("negative offset %d", offset)
	}
	all, err := s.load(ctx)
	if err != nil {
		return nil, 0, err
	}

	var items []Record
	total := 0
	for _, r := range all {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}
		if !s.matches(r) {
			continue
		}
		if total >= offset && (limit < 0 || total < offset+limit) {
			items = append(items, s.project(r))
		}
		total++
	}
	return items, total, nil
}

func (s *memSequence) matches(r Record) bool {
	for _, e := range s.where {
		if !e.Match(r) {
			return false
		}
	}
	return true
}

func (s *memSequence) project(r Record) Record {
	if len(s.fields) == 0 {
		return r
	}
	return Project(r, s.fields)
}
