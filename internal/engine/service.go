package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"entity-admin/internal/metadata"
	"entity-admin/internal/metrics"
	"entity-admin/internal/query"
	"entity-admin/internal/search"
	"entity-admin/internal/storage"
)

// Config bounds paging and uploads.
type Config struct {
	DefaultPageSize int
	MaxPageSize     int
	MaxFileSize     int64
}

// Request is one list query against an entity.
type Request struct {
	EntityID string
	// Fields projects the result; empty means every visible property.
	Fields   []string
	Search   string
	Page     int
	PageSize int
}

// PageResult is one page of records plus the total match count.
type PageResult struct {
	Items    []query.Record
	Total    int
	Page     int
	PageSize int
}

// Service runs the admin operations over registered entities.
type Service struct {
	resolver *metadata.Resolver
	source   DataSource
	files    storage.Strategy
	cfg      Config
	logger   *zap.Logger
	now      func() time.Time
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

func WithLogger(l *zap.Logger) ServiceOption {
	return func(s *Service) { s.logger = l }
}

// WithFileStorage enables uploads to properties flagged as uploads.
func WithFileStorage(fs storage.Strategy) ServiceOption {
	return func(s *Service) { s.files = fs }
}

// WithClock replaces the time source of generated timestamps.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

func NewService(r *metadata.Resolver, src DataSource, cfg Config, opts ...ServiceOption) *Service {
	if cfg.DefaultPageSize <= 0 {
		cfg.DefaultPageSize = 25
	}
	if cfg.MaxPageSize < cfg.DefaultPageSize {
		cfg.MaxPageSize = cfg.DefaultPageSize
	}
	s := &Service{
		resolver: r,
		source:   src,
		cfg:      cfg,
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Entities returns the metadata of every registered entity.
func (s *Service) Entities() ([]*metadata.EntityMetadata, error) {
	return s.resolver.All()
}

// Entity returns the metadata of one entity.
func (s *Service) Entity(id string) (*metadata.EntityMetadata, error) {
	entity, err := s.resolver.Resolve(id)
	if err != nil {
		if errors.Is(err, metadata.ErrNotFound) {
			return nil, UnknownEntityError(id)
		}
		return nil, err
	}
	return entity, nil
}

// Query returns one page of an entity's records, optionally projected and
// filtered by free-text search.
func (s *Service) Query(ctx context.Context, req Request) (res *PageResult, err error) {
	start := time.Now()
	searched := strings.TrimSpace(req.Search) != ""
	label := "unknown"
	defer func() {
		metrics.QueryDuration.WithLabelValues(label, strconv.FormatBool(searched)).Observe(time.Since(start).Seconds())
		if err != nil {
			code := AsAppError(err).Code
			metrics.QueryErrorsTotal.WithLabelValues(label, code).Inc()
			s.logger.Warn("query failed", zap.String("entity", req.EntityID), zap.String("code", code), zap.Error(err))
		}
	}()

	entity, err := s.Entity(req.EntityID)
	if err != nil {
		return nil, err
	}
	label = entity.ID

	seq, err := s.source.BaseSequence(ctx, entity)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", entity.ID, err)
	}
	if entity.QueryFunc != nil {
		seq = entity.QueryFunc(seq)
	}

	selected, err := selectProperties(entity, req.Fields)
	if err != nil {
		return nil, err
	}
	if len(req.Fields) > 0 || len(selected) < len(entity.Properties) {
		seq = seq.Select(propertyNames(selected)...)
	}

	if searched {
		specs := search.SpecsFor(selected)
		if specs.Searchable() {
			if entity.SearchFunc != nil {
				seq, err = entity.SearchFunc(seq, req.Search)
			} else {
				seq, err = search.BuildFilter(seq, req.Search, specs)
			}
			if err != nil {
				return nil, fmt.Errorf("search %s: %w", entity.ID, err)
			}
		}
	}

	page, size := s.normalizePaging(req.Page, req.PageSize)
	offset := (page - 1) * size

	var items []query.Record
	var total int
	if pager, ok := seq.(query.Pager); ok {
		items, total, err = pager.Page(ctx, offset, size)
		if err != nil {
			return nil, fmt.Errorf("query %s: %w", entity.ID, err)
		}
	} else {
		if total, err = seq.Count(ctx); err != nil {
			return nil, fmt.Errorf("count %s: %w", entity.ID, err)
		}
		if items, err = seq.Fetch(ctx, offset, size); err != nil {
			return nil, fmt.Errorf("fetch %s: %w", entity.ID, err)
		}
	}
	if items == nil {
		items = []query.Record{}
	}

	s.logger.Debug("query",
		zap.String("entity", entity.ID),
		zap.Bool("search", searched),
		zap.Int("page", page),
		zap.Int("page_size", size),
		zap.Int("total", total),
	)
	return &PageResult{Items: items, Total: total, Page: page, PageSize: size}, nil
}

func (s *Service) normalizePaging(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = s.cfg.DefaultPageSize
	}
	if size > s.cfg.MaxPageSize {
		size = s.cfg.MaxPageSize
	}
	// (page-1)*size must not overflow.
	if page > math.MaxInt/size {
		page = math.MaxInt / size
	}
	return page, size
}

// selectProperties resolves requested field names. No names selects the
// visible properties.
func selectProperties(entity *metadata.EntityMetadata, fields []string) ([]*metadata.PropertyMetadata, error) {
	if len(fields) == 0 {
		return entity.VisibleProperties(), nil
	}
	selected := make([]*metadata.PropertyMetadata, 0, len(fields))
	var unknown []string
	for _, f := range fields {
		p := entity.Property(f)
		if p == nil {
			unknown = append(unknown, f)
			continue
		}
		selected = append(selected, p)
	}
	if len(unknown) > 0 {
		return nil, UnknownFieldError(entity.ID, unknown...)
	}
	return selected, nil
}

func propertyNames(props []*metadata.PropertyMetadata) []string {
	names := make([]string, len(props))
	for i, p := range props {
		names[i] = p.Name
	}
	return names
}
