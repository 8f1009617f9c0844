package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/sikiCompany/catalog-api/internal/cache"
	"github.com/sikiCompany/catalog-api/internal/domain"
	"github.com/sikiCompany/catalog-api/internal/repository"
	"github.com/sikiCompany/catalog-api/internal/search"
	apperrors "github.com/sikiCompany/catalog-api/pkg/errors"
)

// SearchService serves product searches through the search engine with the
// primary store as fallback. Engine hits carry only IDs; full rows are always
// hydrated from the store, so a stale index can rank but never fabricate
// results. When the engine is down or the breaker is open the database
// fallback serves a degraded, unranked result instead.
type SearchService struct {
	engine  search.Engine
	repo    repository.ProductRepository
	cache   *cache.Cache
	breaker *gobreaker.CircuitBreaker[*search.Hits]
	logger  *slog.Logger
}

// NewSearchService creates a new search service.
func NewSearchService(
	eng search.Engine,
	repo repository.ProductRepository,
	c *cache.Cache,
	logger *slog.Logger,
) *SearchService {
	breaker := gobreaker.NewCircuitBreaker[*search.Hits](gobreaker.Settings{
		Name:        "search-engine",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 5 &&
				float64(counts.TotalFailures)/float64(counts.Requests) >= 0.5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("search circuit breaker state changed",
				slog.String("name", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
			breakerState.WithLabelValues(name).Set(stateToFloat(to))
		},
	})

	return &SearchService{
		engine:  eng,
		repo:    repo,
		cache:   c,
		breaker: breaker,
		logger:  logger,
	}
}

// Search runs a product search. Non-degraded results are cached under the
// products tag; degraded fallback results are served but never cached so a
// recovered engine is not shadowed by stale fallback pages.
func (s *SearchService) Search(ctx context.Context, query *domain.SearchQuery) (*domain.SearchResult, error) {
	if err := s.normalize(query); err != nil {
		return nil, err
	}

	useCache := !cache.ShouldBypass(query.Page)
	key := cache.ListKey("products_search", searchCacheParams(query))

	if useCache {
		if result, ok := cache.Get[*domain.SearchResult](ctx, s.cache, key); ok {
			return result, nil
		}
	}

	result, err := s.search(ctx, query)
	if err != nil {
		return nil, err
	}

	if useCache && !result.Degraded {
		s.cache.Put(ctx, key, []string{cache.TagProducts}, result)
	}

	return result, nil
}

func (s *SearchService) search(ctx context.Context, query *domain.SearchQuery) (*domain.SearchResult, error) {
	hits, err := s.breaker.Execute(func() (*search.Hits, error) {
		engineCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		return s.engine.Search(engineCtx, query)
	})
	if err != nil {
		s.logger.WarnContext(ctx, "search engine unavailable, falling back to database",
			slog.String("query", query.Query),
			slog.String("error", err.Error()),
		)
		fallbackTotal.Inc()
		return s.fallback(ctx, query)
	}

	products, err := s.hydrate(ctx, hits)
	if err != nil {
		return nil, err
	}

	return &domain.SearchResult{
		Products: products,
		Total:    hits.Total,
		Page:     query.Page,
		PerPage:  query.PerPage,
		Degraded: false,
	}, nil
}

// hydrate loads the full rows for ranked hits, preserving engine rank order.
// IDs deleted since the last index sync are dropped.
func (s *SearchService) hydrate(ctx context.Context, hits *search.Hits) ([]*domain.Product, error) {
	ids := make([]string, 0, len(hits.Hits))
	for _, h := range hits.Hits {
		ids = append(ids, h.ID)
	}

	rows, err := s.repo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("hydrate search results: %w", err)
	}

	byID := make(map[string]*domain.Product, len(rows))
	for i := range rows {
		byID[rows[i].ID] = &rows[i]
	}

	products := make([]*domain.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			products = append(products, p)
		}
	}

	return products, nil
}

// fallback serves the search from the primary store with substring matching.
func (s *SearchService) fallback(ctx context.Context, query *domain.SearchQuery) (*domain.SearchResult, error) {
	filter := repository.ProductFilter{
		SortBy:    query.SortBy,
		SortOrder: query.SortOrder,
		MinCents:  query.MinCents,
		MaxCents:  query.MaxCents,
		Page:      query.Page,
		PerPage:   query.PerPage,
	}
	if query.Query != "" {
		filter.Search = &query.Query
	}
	if query.Category != "" {
		filter.Category = &query.Category
	}
	if query.Status != "" {
		filter.Status = &query.Status
	}

	rows, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("fallback search: %w", err)
	}

	products := make([]*domain.Product, len(rows))
	for i := range rows {
		products[i] = &rows[i]
	}

	return &domain.SearchResult{
		Products: products,
		Total:    int64(total),
		Page:     query.Page,
		PerPage:  query.PerPage,
		Degraded: true,
	}, nil
}

// reindexBatchSize is how many products each bulk index request carries.
const reindexBatchSize = 500

// Reindex rebuilds the search index from the primary store, walking every
// live product in stable order and bulk-upserting each batch. Soft-deleted
// products are not indexed; stale documents for rows deleted since the last
// sync are removed by the event stream, not here.
func (s *SearchService) Reindex(ctx context.Context) error {
	page := 1
	indexed := 0

	for {
		rows, total, err := s.repo.List(ctx, repository.ProductFilter{
			SortBy:    domain.SortByCreatedAt,
			SortOrder: domain.SortAsc,
			Page:      page,
			PerPage:   reindexBatchSize,
		})
		if err != nil {
			return fmt.Errorf("reindex: list products page %d: %w", page, err)
		}
		if len(rows) == 0 {
			break
		}

		docs := make([]search.Document, len(rows))
		for i := range rows {
			docs[i] = *search.DocumentFromProduct(&rows[i])
		}
		if err := s.engine.BulkUpsert(ctx, docs); err != nil {
			return fmt.Errorf("reindex: index page %d: %w", page, err)
		}

		indexed += len(rows)
		s.logger.InfoContext(ctx, "reindex progress",
			slog.Int("indexed", indexed),
			slog.Int("total", total),
		)

		if indexed >= total {
			break
		}
		page++
	}

	s.logger.InfoContext(ctx, "reindex complete", slog.Int("products", indexed))
	return nil
}

func (s *SearchService) normalize(query *domain.SearchQuery) error {
	if query.Page <= 0 {
		query.Page = 1
	}
	if query.PerPage <= 0 {
		query.PerPage = 20
	}
	if query.PerPage > 100 {
		query.PerPage = 100
	}

	if query.SortBy != "" && !domain.IsValidSort(query.SortBy, domain.SearchSortFields()) {
		return apperrors.InvalidInput("sort_by must be one of: price, created_at")
	}
	if query.Status != "" && !domain.IsValidStatus(query.Status) {
		return apperrors.InvalidInput("status must be one of: active, inactive")
	}
	if query.MinCents != nil && query.MaxCents != nil && *query.MinCents > *query.MaxCents {
		return apperrors.InvalidInput("min price must not exceed max price")
	}

	return nil
}

func searchCacheParams(query *domain.SearchQuery) map[string]string {
	params := map[string]string{
		"q":          query.Query,
		"category":   query.Category,
		"status":     query.Status,
		"sort_by":    query.SortBy,
		"sort_order": query.SortOrder,
		"page":       strconv.Itoa(query.Page),
		"per_page":   strconv.Itoa(query.PerPage),
	}
	if query.MinCents != nil {
		params["min_cents"] = strconv.FormatInt(*query.MinCents, 10)
	}
	if query.MaxCents != nil {
		params["max_cents"] = strconv.FormatInt(*query.MaxCents, 10)
	}
	return params
}
