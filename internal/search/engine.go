package search

import (
	"context"
	"time"

	"github.com/sikiCompany/catalog-api/internal/domain"
)

// Document is the denormalized product representation held in the search
// index. It mirrors the primary store but is only eventually consistent with
// it, so search results are hydrated from the database before serving.
type Document struct {
	ID          string    `json:"id"`
	SKU         string    `json:"sku"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	PriceCents  int64     `json:"price_cents"`
	Category    string    `json:"category"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

// DocumentFromProduct builds an index document from a product.
func DocumentFromProduct(p *domain.Product) *Document {
	return &Document{
		ID:          p.ID,
		SKU:         p.SKU,
		Name:        p.Name,
		Description: p.Description,
		PriceCents:  p.PriceCents,
		Category:    p.Category,
		Status:      p.Status,
		CreatedAt:   p.CreatedAt,
	}
}

// Hit is a single search match: the document ID and its relevance score.
type Hit struct {
	ID    string
	Score float64
}

// Hits is the ranked outcome of an index query. Only IDs come back from the
// engine; full rows are loaded from the primary store afterwards.
type Hits struct {
	Hits  []Hit
	Total int64
}

// Engine indexes and queries product documents. Implementations must treat
// deleting an absent document as success so replayed events stay harmless.
type Engine interface {
	// Upsert adds or replaces a single document in the index.
	Upsert(ctx context.Context, doc *Document) error

	// BulkUpsert adds or replaces a batch of documents. Used by reindexing.
	BulkUpsert(ctx context.Context, docs []Document) error

	// Delete removes a document from the index by ID. Deleting a document
	// that is not indexed is not an error.
	Delete(ctx context.Context, id string) error

	// Search executes a query and returns ranked document IDs.
	Search(ctx context.Context, query *domain.SearchQuery) (*Hits, error)

	// IndexExists reports whether the backing index has been created.
	IndexExists(ctx context.Context) (bool, error)

	// Ping checks whether the engine is reachable.
	Ping(ctx context.Context) error
}
