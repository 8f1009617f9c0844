package repository

import (
	"context"

	"github.com/sikiCompany/catalog-api/internal/domain"
)

// ProductFilter defines filter criteria for listing products.
type ProductFilter struct {
	Category    *string
	Status      *string
	Search      *string
	MinCents    *int64
	MaxCents    *int64
	SortBy      string
	SortOrder   string
	WithDeleted bool
	Page        int
	PerPage     int
}

// ProductRepository defines the interface for product persistence operations.
// Delete and Restore are soft operations: rows are flagged with deleted_at
// rather than removed, and excluded from reads unless withDeleted is set.
type ProductRepository interface {
	// Create inserts a new product into the store.
	Create(ctx context.Context, product *domain.Product) error

	// GetByID retrieves a product by its unique identifier. When withDeleted
	// is true, soft-deleted rows are visible.
	GetByID(ctx context.Context, id string, withDeleted bool) (*domain.Product, error)

	// GetByIDs retrieves the non-deleted products for the given identifiers.
	// Missing IDs are silently omitted from the result.
	GetByIDs(ctx context.Context, ids []string) ([]domain.Product, error)

	// List returns products matching the given filter along with the total count.
	List(ctx context.Context, filter ProductFilter) ([]domain.Product, int, error)

	// Update modifies an existing product in the store.
	Update(ctx context.Context, product *domain.Product) error

	// SoftDelete flags a product as deleted without removing the row.
	SoftDelete(ctx context.Context, id string) error

	// Restore clears the deleted flag on a soft-deleted product.
	Restore(ctx context.Context, id string) error

	// SKUExists reports whether any row, including soft-deleted ones, holds
	// the given SKU. An optional excludeID skips one row (used on update).
	SKUExists(ctx context.Context, sku string, excludeID string) (bool, error)
}
