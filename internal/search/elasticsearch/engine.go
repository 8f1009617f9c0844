package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"

	"github.com/sikiCompany/catalog-api/internal/domain"
	"github.com/sikiCompany/catalog-api/internal/search"
)

// Engine is an Elasticsearch-backed implementation of search.Engine.
type Engine struct {
	client    *elasticsearch.Client
	indexName string
	logger    *slog.Logger
}

// esSearchResponse is the structure used to decode Elasticsearch search responses.
type esSearchResponse struct {
	Took int `json:"took"`
	Hits struct {
		Total struct {
			Value int64 `json:"value"`
		} `json:"total"`
		Hits []struct {
			ID    string   `json:"_id"`
			Score *float64 `json:"_score"`
		} `json:"hits"`
	} `json:"hits"`
}

// esErrorResponse is used to decode Elasticsearch error responses.
type esErrorResponse struct {
	Error struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error"`
	Status int `json:"status"`
}

// New creates a new Elasticsearch engine connected to the given URL.
// It ensures the products index exists, creating it if necessary.
// If indexName is empty, DefaultIndexName ("catalog_products") is used.
func New(esURL string, indexName string, logger *slog.Logger) (*Engine, error) {
	if indexName == "" {
		indexName = DefaultIndexName
	}

	cfg := elasticsearch.Config{
		Addresses: []string{esURL},
	}

	client, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch: failed to create client: %w", err)
	}

	e := &Engine{
		client:    client,
		indexName: indexName,
		logger:    logger,
	}

	if err := e.ensureIndex(); err != nil {
		return nil, fmt.Errorf("elasticsearch: failed to ensure index: %w", err)
	}

	return e, nil
}

// Ping checks whether the Elasticsearch cluster is reachable.
func (e *Engine) Ping(ctx context.Context) error {
	res, err := e.client.Ping(e.client.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("elasticsearch ping: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		return fmt.Errorf("elasticsearch ping: unexpected status %s", res.Status())
	}
	return nil
}

// IndexExists reports whether the products index has been created.
func (e *Engine) IndexExists(ctx context.Context) (bool, error) {
	res, err := e.client.Indices.Exists(
		[]string{e.indexName},
		e.client.Indices.Exists.WithContext(ctx),
	)
	if err != nil {
		return false, fmt.Errorf("check index exists: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	return res.StatusCode == 200, nil
}

// ensureIndex checks whether the products index exists and creates it if not.
func (e *Engine) ensureIndex() error {
	exists, err := e.IndexExists(context.Background())
	if err != nil {
		return err
	}
	if exists {
		e.logger.Info("elasticsearch index already exists", "index", e.indexName)
		return nil
	}

	mapping := buildIndexMapping()
	res, err := e.client.Indices.Create(
		e.indexName,
		e.client.Indices.Create.WithBody(strings.NewReader(mapping)),
	)
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		return fmt.Errorf("create index: %s", decodeError(res.Body, res.Status()))
	}

	e.logger.Info("elasticsearch index created", "index", e.indexName)
	return nil
}

// Upsert adds or replaces a single document in the Elasticsearch index.
func (e *Engine) Upsert(ctx context.Context, doc *search.Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("elasticsearch upsert: marshal document: %w", err)
	}

	res, err := e.client.Index(
		e.indexName,
		bytes.NewReader(data),
		e.client.Index.WithDocumentID(doc.ID),
		e.client.Index.WithRefresh("true"),
		e.client.Index.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("elasticsearch upsert: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		return fmt.Errorf("elasticsearch upsert: %s", decodeError(res.Body, res.Status()))
	}

	e.logger.Debug("indexed product", "id", doc.ID, "sku", doc.SKU)
	return nil
}

// Delete removes a product from the Elasticsearch index by its ID.
// It does not return an error if the document does not exist (404 is ignored).
func (e *Engine) Delete(ctx context.Context, id string) error {
	res, err := e.client.Delete(
		e.indexName,
		id,
		e.client.Delete.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("elasticsearch delete: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	// Ignore 404, the document might not exist.
	if res.IsError() && res.StatusCode != 404 {
		return fmt.Errorf("elasticsearch delete: %s", decodeError(res.Body, res.Status()))
	}

	e.logger.Debug("deleted product from index", "id", id)
	return nil
}

// Search executes a query against Elasticsearch and returns ranked hit IDs.
func (e *Engine) Search(ctx context.Context, query *domain.SearchQuery) (*search.Hits, error) {
	page := query.Page
	if page < 1 {
		page = 1
	}
	perPage := query.PerPage
	if perPage < 1 {
		perPage = 20
	}
	if perPage > 100 {
		perPage = 100
	}

	esQuery := e.buildSearchQuery(query, page, perPage)

	data, err := json.Marshal(esQuery)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch search: marshal query: %w", err)
	}

	res, err := e.client.Search(
		e.client.Search.WithIndex(e.indexName),
		e.client.Search.WithBody(bytes.NewReader(data)),
		e.client.Search.WithContext(ctx),
		e.client.Search.WithTrackTotalHits(true),
		e.client.Search.WithSourceExcludes("*"),
	)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch search: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		return nil, fmt.Errorf("elasticsearch search: %s", decodeError(res.Body, res.Status()))
	}

	var esResp esSearchResponse
	if err := json.NewDecoder(res.Body).Decode(&esResp); err != nil {
		return nil, fmt.Errorf("elasticsearch search: decode response: %w", err)
	}

	hits := make([]search.Hit, 0, len(esResp.Hits.Hits))
	for _, h := range esResp.Hits.Hits {
		score := 0.0
		if h.Score != nil {
			score = *h.Score
		}
		hits = append(hits, search.Hit{ID: h.ID, Score: score})
	}

	return &search.Hits{
		Hits:  hits,
		Total: esResp.Hits.Total.Value,
	}, nil
}

// buildSearchQuery constructs the Elasticsearch query DSL as a map.
func (e *Engine) buildSearchQuery(query *domain.SearchQuery, page, perPage int) map[string]any {
	var mustClause any
	if query.Query != "" {
		mustClause = map[string]any{
			"multi_match": map[string]any{
				"query":         query.Query,
				"fields":        []string{"name^3", "name.autocomplete^2", "description", "sku.text"},
				"type":          "best_fields",
				"fuzziness":     "AUTO",
				"prefix_length": 1,
			},
		}
	} else {
		mustClause = map[string]any{
			"match_all": map[string]any{},
		}
	}

	filters := e.buildFilters(query)

	boolQuery := map[string]any{
		"must": []any{mustClause},
	}
	if len(filters) > 0 {
		boolQuery["filter"] = filters
	}

	esQuery := map[string]any{
		"query": map[string]any{
			"bool": boolQuery,
		},
		"from":             (page - 1) * perPage,
		"size":             perPage,
		"track_total_hits": true,
	}

	if sortClause := e.buildSort(query.SortBy, query.SortOrder); sortClause != nil {
		esQuery["sort"] = sortClause
	}

	return esQuery
}

// buildFilters constructs the filter clauses based on the search query.
func (e *Engine) buildFilters(query *domain.SearchQuery) []any {
	var filters []any

	if query.Category != "" {
		filters = append(filters, map[string]any{
			"term": map[string]any{
				"category": query.Category,
			},
		})
	}

	if query.Status != "" {
		filters = append(filters, map[string]any{
			"term": map[string]any{
				"status": query.Status,
			},
		})
	}

	if query.MinCents != nil || query.MaxCents != nil {
		rangeFilter := map[string]any{}
		if query.MinCents != nil {
			rangeFilter["gte"] = *query.MinCents
		}
		if query.MaxCents != nil {
			rangeFilter["lte"] = *query.MaxCents
		}
		filters = append(filters, map[string]any{
			"range": map[string]any{
				"price_cents": rangeFilter,
			},
		})
	}

	return filters
}

// buildSort constructs the sort clause. Relevance order (no explicit sort
// field) is the default.
func (e *Engine) buildSort(sortBy, sortOrder string) []any {
	direction := "desc"
	if strings.EqualFold(sortOrder, domain.SortAsc) {
		direction = "asc"
	}

	switch sortBy {
	case domain.SortByPrice:
		return []any{
			map[string]any{"price_cents": direction},
		}
	case domain.SortByCreatedAt:
		return []any{
			map[string]any{"created_at": direction},
		}
	default:
		return []any{
			map[string]any{"_score": "desc"},
		}
	}
}

// BulkUpsert adds or replaces multiple documents using the bulk NDJSON API.
// Intended for reindexing jobs.
func (e *Engine) BulkUpsert(ctx context.Context, docs []search.Document) error {
	if len(docs) == 0 {
		return nil
	}

	var buf bytes.Buffer

	for i := range docs {
		action := map[string]any{
			"index": map[string]any{
				"_index": e.indexName,
				"_id":    docs[i].ID,
			},
		}
		if err := json.NewEncoder(&buf).Encode(action); err != nil {
			return fmt.Errorf("elasticsearch bulk upsert: encode action: %w", err)
		}
		if err := json.NewEncoder(&buf).Encode(docs[i]); err != nil {
			return fmt.Errorf("elasticsearch bulk upsert: encode document: %w", err)
		}
	}

	res, err := e.client.Bulk(
		bytes.NewReader(buf.Bytes()),
		e.client.Bulk.WithIndex(e.indexName),
		e.client.Bulk.WithRefresh("true"),
		e.client.Bulk.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("elasticsearch bulk upsert: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		return fmt.Errorf("elasticsearch bulk upsert: %s", decodeError(res.Body, res.Status()))
	}

	var bulkResp struct {
		Errors bool `json:"errors"`
		Items  []struct {
			Index struct {
				ID    string `json:"_id"`
				Error struct {
					Type   string `json:"type"`
					Reason string `json:"reason"`
				} `json:"error"`
			} `json:"index"`
		} `json:"items"`
	}
	if err := json.NewDecoder(res.Body).Decode(&bulkResp); err != nil {
		return fmt.Errorf("elasticsearch bulk upsert: decode response: %w", err)
	}

	if bulkResp.Errors {
		var errMsgs []string
		for _, item := range bulkResp.Items {
			if item.Index.Error.Type != "" {
				errMsgs = append(errMsgs, fmt.Sprintf("id=%s: %s: %s", item.Index.ID, item.Index.Error.Type, item.Index.Error.Reason))
			}
		}
		return fmt.Errorf("elasticsearch bulk upsert: partial errors: %s", strings.Join(errMsgs, "; "))
	}

	e.logger.Info("bulk indexed products", "count", len(docs))
	return nil
}

// decodeError flattens an Elasticsearch error body into a message, falling
// back to the HTTP status line if the body is not parseable.
func decodeError(body io.Reader, status string) string {
	var errResp esErrorResponse
	if err := json.NewDecoder(body).Decode(&errResp); err == nil && errResp.Error.Type != "" {
		return fmt.Sprintf("%s: %s", errResp.Error.Type, errResp.Error.Reason)
	}
	return "unexpected status " + status
}
