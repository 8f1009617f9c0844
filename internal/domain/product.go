package domain

import (
	"time"
)

// Product status constants.
const (
	ProductStatusActive   = "active"
	ProductStatusInactive = "inactive"
)

// Price bounds in cents.
const (
	MinPriceCents int64 = 1
	MaxPriceCents int64 = 99_999_999
)

// Product represents a product in the catalog. Price is stored in cents to
// avoid floating-point drift. DeletedAt is non-nil for soft-deleted rows.
type Product struct {
	ID          string     `json:"id"`
	SKU         string     `json:"sku"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	PriceCents  int64      `json:"price_cents"`
	Category    string     `json:"category"`
	Status      string     `json:"status"`
	ImageURL    string     `json:"image_url,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
}

// IsDeleted reports whether the product is soft-deleted.
func (p *Product) IsDeleted() bool {
	return p.DeletedAt != nil
}

// ValidStatuses returns the set of valid product statuses.
func ValidStatuses() []string {
	return []string{ProductStatusActive, ProductStatusInactive}
}

// IsValidStatus checks whether the given status string is a valid product status.
func IsValidStatus(status string) bool {
	for _, s := range ValidStatuses() {
		if s == status {
			return true
		}
	}
	return false
}

// Sortable columns for product listings.
const (
	SortByPrice     = "price"
	SortByCreatedAt = "created_at"
	SortByName      = "name"
)

// ListSortFields returns the columns a product listing may sort on.
func ListSortFields() []string {
	return []string{SortByPrice, SortByCreatedAt, SortByName}
}

// SearchSortFields returns the columns a search may sort on. Relevance order
// is the default when no sort is given.
func SearchSortFields() []string {
	return []string{SortByPrice, SortByCreatedAt}
}

// IsValidSort checks a sort field against an allowed set.
func IsValidSort(field string, allowed []string) bool {
	for _, s := range allowed {
		if s == field {
			return true
		}
	}
	return false
}
