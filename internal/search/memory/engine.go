package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/sikiCompany/catalog-api/internal/domain"
	"github.com/sikiCompany/catalog-api/internal/search"
)

// Engine is an in-memory implementation of search.Engine. Matching is simple
// substring search over name, description, and SKU, with a crude relevance
// score favoring name hits. Thread-safe via sync.RWMutex. Intended for tests
// and local development.
type Engine struct {
	mu   sync.RWMutex
	docs map[string]search.Document
}

// New creates a new in-memory search engine.
func New() *Engine {
	return &Engine{
		docs: make(map[string]search.Document),
	}
}

// Upsert adds or replaces a single document in the in-memory index.
func (e *Engine) Upsert(_ context.Context, doc *search.Document) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.docs[doc.ID] = *doc
	return nil
}

// BulkUpsert adds or replaces a batch of documents.
func (e *Engine) BulkUpsert(_ context.Context, docs []search.Document) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i := range docs {
		e.docs[docs[i].ID] = docs[i]
	}
	return nil
}

// Delete removes a document from the in-memory index by its ID.
func (e *Engine) Delete(_ context.Context, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	delete(e.docs, id)
	return nil
}

// IndexExists always reports true; the map is the index.
func (e *Engine) IndexExists(_ context.Context) (bool, error) {
	return true, nil
}

// Ping always succeeds.
func (e *Engine) Ping(_ context.Context) error {
	return nil
}

// Search executes a query against the in-memory index.
func (e *Engine) Search(_ context.Context, query *domain.SearchQuery) (*search.Hits, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	queryLower := strings.ToLower(query.Query)

	matched := make([]scored, 0)

	for _, d := range e.docs {
		score, ok := e.match(d, query, queryLower)
		if !ok {
			continue
		}
		matched = append(matched, scored{doc: d, score: score})
	}

	e.sortMatches(matched, query)

	total := len(matched)

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

	offset := (page - 1) * perPage
	if offset > total {
		offset = total
	}
	end := offset + perPage
	if end > total {
		end = total
	}

	hits := make([]search.Hit, 0, end-offset)
	for _, m := range matched[offset:end] {
		hits = append(hits, search.Hit{ID: m.doc.ID, Score: m.score})
	}

	return &search.Hits{
		Hits:  hits,
		Total: int64(total),
	}, nil
}

// match checks filters and returns a relevance score for the document.
func (e *Engine) match(d search.Document, query *domain.SearchQuery, queryLower string) (float64, bool) {
	score := 1.0
	if queryLower != "" {
		nameHit := strings.Contains(strings.ToLower(d.Name), queryLower)
		descHit := strings.Contains(strings.ToLower(d.Description), queryLower)
		skuHit := strings.Contains(strings.ToLower(d.SKU), queryLower)
		if !nameHit && !descHit && !skuHit {
			return 0, false
		}
		if nameHit {
			score += 2
		}
		if skuHit {
			score++
		}
	}

	if query.Category != "" && d.Category != query.Category {
		return 0, false
	}
	if query.Status != "" && d.Status != query.Status {
		return 0, false
	}
	if query.MinCents != nil && d.PriceCents < *query.MinCents {
		return 0, false
	}
	if query.MaxCents != nil && d.PriceCents > *query.MaxCents {
		return 0, false
	}

	return score, true
}

type scored struct {
	doc   search.Document
	score float64
}

func (e *Engine) sortMatches(matched []scored, query *domain.SearchQuery) {
	asc := strings.EqualFold(query.SortOrder, domain.SortAsc)

	switch query.SortBy {
	case domain.SortByPrice:
		sort.SliceStable(matched, func(i, j int) bool {
			if asc {
				return matched[i].doc.PriceCents < matched[j].doc.PriceCents
			}
			return matched[i].doc.PriceCents > matched[j].doc.PriceCents
		})
	case domain.SortByCreatedAt:
		sort.SliceStable(matched, func(i, j int) bool {
			if asc {
				return matched[i].doc.CreatedAt.Before(matched[j].doc.CreatedAt)
			}
			return matched[i].doc.CreatedAt.After(matched[j].doc.CreatedAt)
		})
	default:
		// Relevance: highest score first, ID as tie-breaker for determinism.
		sort.SliceStable(matched, func(i, j int) bool {
			if matched[i].score != matched[j].score {
				return matched[i].score > matched[j].score
			}
			return matched[i].doc.ID < matched[j].doc.ID
		})
	}
}
