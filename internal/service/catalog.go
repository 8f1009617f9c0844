package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/sikiCompany/catalog-api/internal/cache"
	"github.com/sikiCompany/catalog-api/internal/domain"
	"github.com/sikiCompany/catalog-api/internal/repository"
	"github.com/sikiCompany/catalog-api/internal/storage"
	apperrors "github.com/sikiCompany/catalog-api/pkg/errors"
)

// EventPublisher dispatches product lifecycle events for the index sync
// worker to consume.
type EventPublisher interface {
	ProductCreated(ctx context.Context, id, sku string) error
	ProductUpdated(ctx context.Context, id, sku string) error
	ProductDeleted(ctx context.Context, id, sku string) error
	ProductRestored(ctx context.Context, id, sku string) error
}

// CatalogService implements the business logic for product operations.
// Writes go to the primary store first; cache invalidation and event dispatch
// follow, and a failed event dispatch never fails the write since the search
// index converges on the next successful sync.
type CatalogService struct {
	repo   repository.ProductRepository
	cache  *cache.Cache
	events EventPublisher
	images storage.ImageStore
	logger *slog.Logger
}

// NewCatalogService creates a new catalog service.
func NewCatalogService(
	repo repository.ProductRepository,
	c *cache.Cache,
	events EventPublisher,
	images storage.ImageStore,
	logger *slog.Logger,
) *CatalogService {
	return &CatalogService{
		repo:   repo,
		cache:  c,
		events: events,
		images: images,
		logger: logger,
	}
}

// CreateProductInput holds the parameters for creating a product.
type CreateProductInput struct {
	SKU         string
	Name        string
	Description string
	PriceCents  int64
	Category    string
	Status      string
}

// UpdateProductInput holds the parameters for updating a product. Nil fields
// are left unchanged.
type UpdateProductInput struct {
	SKU         *string
	Name        *string
	Description *string
	PriceCents  *int64
	Category    *string
	Status      *string
}

// ListProductsInput holds the parameters for listing products.
type ListProductsInput struct {
	Category    string
	Status      string
	Search      string
	MinCents    *int64
	MaxCents    *int64
	SortBy      string
	SortOrder   string
	WithDeleted bool
	Page        int
	PerPage     int
}

// CreateProduct creates a new product with the given input.
func (s *CatalogService) CreateProduct(ctx context.Context, input *CreateProductInput) (*domain.Product, error) {
	if err := validateSKU(input.SKU); err != nil {
		return nil, err
	}
	if err := validateName(input.Name); err != nil {
		return nil, err
	}
	if err := validatePrice(input.PriceCents); err != nil {
		return nil, err
	}
	if err := validateCategory(input.Category); err != nil {
		return nil, err
	}
	status := input.Status
	if status == "" {
		status = domain.ProductStatusActive
	}
	if !domain.IsValidStatus(status) {
		return nil, apperrors.InvalidInput("status must be one of: active, inactive")
	}

	// Soft-deleted rows keep their SKU reserved, so the check spans all rows.
	// The unique index remains the authority under concurrent creates.
	exists, err := s.repo.SKUExists(ctx, input.SKU, "")
	if err != nil {
		return nil, fmt.Errorf("check sku: %w", err)
	}
	if exists {
		return nil, apperrors.Conflict("product", "sku", input.SKU)
	}

	now := time.Now().UTC()
	product := &domain.Product{
		ID:          uuid.New().String(),
		SKU:         input.SKU,
		Name:        input.Name,
		Description: input.Description,
		PriceCents:  input.PriceCents,
		Category:    input.Category,
		Status:      status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Create(ctx, product); err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}

	s.cache.FlushTag(ctx, cache.TagProducts)
	s.publish(ctx, s.events.ProductCreated, product, "product.created")

	s.logger.InfoContext(ctx, "product created",
		slog.String("product_id", product.ID),
		slog.String("sku", product.SKU),
	)

	return product, nil
}

// GetProduct retrieves a product by its ID. The live view is served through
// the cache; requests that include soft-deleted rows go straight to the store.
func (s *CatalogService) GetProduct(ctx context.Context, id string, withDeleted bool) (*domain.Product, error) {
	if withDeleted {
		product, err := s.repo.GetByID(ctx, id, true)
		if err != nil {
			return nil, fmt.Errorf("get product by id: %w", err)
		}
		return product, nil
	}

	product, err := cache.GetOrCompute(ctx, s.cache, cache.ItemKey(id), []string{cache.TagProducts},
		func(ctx context.Context) (*domain.Product, error) {
			return s.repo.GetByID(ctx, id, false)
		})
	if err != nil {
		return nil, fmt.Errorf("get product by id: %w", err)
	}
	return product, nil
}

// ListProducts returns a page of products matching the filter. Deep pages and
// trashed views bypass the cache.
func (s *CatalogService) ListProducts(ctx context.Context, input *ListProductsInput) ([]domain.Product, int, error) {
	if input.Status != "" && !domain.IsValidStatus(input.Status) {
		return nil, 0, apperrors.InvalidInput("status must be one of: active, inactive")
	}
	if input.SortBy != "" && !domain.IsValidSort(input.SortBy, domain.ListSortFields()) {
		return nil, 0, apperrors.InvalidInput("sort_by must be one of: price, created_at, name")
	}

	filter := repository.ProductFilter{
		SortBy:      input.SortBy,
		SortOrder:   input.SortOrder,
		WithDeleted: input.WithDeleted,
		Page:        input.Page,
		PerPage:     input.PerPage,
		MinCents:    input.MinCents,
		MaxCents:    input.MaxCents,
	}
	if input.Category != "" {
		filter.Category = &input.Category
	}
	if input.Status != "" {
		filter.Status = &input.Status
	}
	if input.Search != "" {
		filter.Search = &input.Search
	}

	if input.WithDeleted || cache.ShouldBypass(input.Page) {
		return s.repo.List(ctx, filter)
	}

	type listPage struct {
		Products []domain.Product `json:"products"`
		Total    int              `json:"total"`
	}

	key := cache.ListKey("products_list", listCacheParams(input))
	page, err := cache.GetOrCompute(ctx, s.cache, key, []string{cache.TagProducts},
		func(ctx context.Context) (listPage, error) {
			products, total, err := s.repo.List(ctx, filter)
			if err != nil {
				return listPage{}, err
			}
			return listPage{Products: products, Total: total}, nil
		})
	if err != nil {
		return nil, 0, err
	}
	return page.Products, page.Total, nil
}

// UpdateProduct applies a partial update to an existing product.
func (s *CatalogService) UpdateProduct(ctx context.Context, id string, input *UpdateProductInput) (*domain.Product, error) {
	product, err := s.repo.GetByID(ctx, id, false)
	if err != nil {
		return nil, fmt.Errorf("get product for update: %w", err)
	}

	if input.SKU != nil && *input.SKU != product.SKU {
		if err := validateSKU(*input.SKU); err != nil {
			return nil, err
		}
		exists, err := s.repo.SKUExists(ctx, *input.SKU, id)
		if err != nil {
			return nil, fmt.Errorf("check sku: %w", err)
		}
		if exists {
			return nil, apperrors.Conflict("product", "sku", *input.SKU)
		}
		product.SKU = *input.SKU
	}
	if input.Name != nil {
		if err := validateName(*input.Name); err != nil {
			return nil, err
		}
		product.Name = *input.Name
	}
	if input.Description != nil {
		if len(*input.Description) > 1000 {
			return nil, apperrors.InvalidInput("description must not exceed 1000 characters")
		}
		product.Description = *input.Description
	}
	if input.PriceCents != nil {
		if err := validatePrice(*input.PriceCents); err != nil {
			return nil, err
		}
		product.PriceCents = *input.PriceCents
	}
	if input.Category != nil {
		if err := validateCategory(*input.Category); err != nil {
			return nil, err
		}
		product.Category = *input.Category
	}
	if input.Status != nil {
		if !domain.IsValidStatus(*input.Status) {
			return nil, apperrors.InvalidInput("status must be one of: active, inactive")
		}
		product.Status = *input.Status
	}

	if err := s.repo.Update(ctx, product); err != nil {
		return nil, fmt.Errorf("update product: %w", err)
	}

	s.cache.Forget(ctx, cache.ItemKey(id))
	s.cache.FlushTag(ctx, cache.TagProducts)
	s.publish(ctx, s.events.ProductUpdated, product, "product.updated")

	s.logger.InfoContext(ctx, "product updated",
		slog.String("product_id", product.ID),
		slog.String("sku", product.SKU),
	)

	return product, nil
}

// DeleteProduct soft-deletes a product. The row survives with its SKU
// reserved and can be restored later.
func (s *CatalogService) DeleteProduct(ctx context.Context, id string) error {
	product, err := s.repo.GetByID(ctx, id, false)
	if err != nil {
		return fmt.Errorf("get product for delete: %w", err)
	}

	if err := s.repo.SoftDelete(ctx, id); err != nil {
		return fmt.Errorf("delete product: %w", err)
	}

	s.cache.Forget(ctx, cache.ItemKey(id))
	s.cache.FlushTag(ctx, cache.TagProducts)
	s.publish(ctx, s.events.ProductDeleted, product, "product.deleted")

	s.logger.InfoContext(ctx, "product deleted",
		slog.String("product_id", id),
		slog.String("sku", product.SKU),
	)

	return nil
}

// RestoreProduct brings a soft-deleted product back. Only the single-item
// cache entry is dropped; list entries expire on their own TTL.
func (s *CatalogService) RestoreProduct(ctx context.Context, id string) (*domain.Product, error) {
	if err := s.repo.Restore(ctx, id); err != nil {
		return nil, fmt.Errorf("restore product: %w", err)
	}

	product, err := s.repo.GetByID(ctx, id, false)
	if err != nil {
		return nil, fmt.Errorf("get restored product: %w", err)
	}

	s.cache.Forget(ctx, cache.ItemKey(id))
	s.publish(ctx, s.events.ProductRestored, product, "product.restored")

	s.logger.InfoContext(ctx, "product restored",
		slog.String("product_id", id),
		slog.String("sku", product.SKU),
	)

	return product, nil
}

// UploadImage stores a product image and records its URL on the product.
func (s *CatalogService) UploadImage(ctx context.Context, id, filename string, r io.Reader) (*domain.Product, error) {
	product, err := s.repo.GetByID(ctx, id, false)
	if err != nil {
		return nil, fmt.Errorf("get product for image upload: %w", err)
	}

	url, err := s.images.Save(ctx, id, filename, r)
	if err != nil {
		return nil, fmt.Errorf("save image: %w", err)
	}

	product.ImageURL = url
	if err := s.repo.Update(ctx, product); err != nil {
		return nil, fmt.Errorf("update product image url: %w", err)
	}

	s.cache.Forget(ctx, cache.ItemKey(id))
	s.cache.FlushTag(ctx, cache.TagProducts)
	s.publish(ctx, s.events.ProductUpdated, product, "product.updated")

	s.logger.InfoContext(ctx, "product image uploaded",
		slog.String("product_id", id),
		slog.String("image_url", url),
	)

	return product, nil
}

// publish dispatches a lifecycle event. Failures are logged, never surfaced.
func (s *CatalogService) publish(ctx context.Context, fn func(context.Context, string, string) error, p *domain.Product, eventType string) {
	if err := fn(ctx, p.ID, p.SKU); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish event",
			slog.String("event_type", eventType),
			slog.String("product_id", p.ID),
			slog.String("error", err.Error()),
		)
	}
}

func listCacheParams(input *ListProductsInput) map[string]string {
	params := map[string]string{
		"category":   input.Category,
		"status":     input.Status,
		"search":     input.Search,
		"sort_by":    input.SortBy,
		"sort_order": input.SortOrder,
		"page":       strconv.Itoa(input.Page),
		"per_page":   strconv.Itoa(input.PerPage),
	}
	if input.MinCents != nil {
		params["min_cents"] = strconv.FormatInt(*input.MinCents, 10)
	}
	if input.MaxCents != nil {
		params["max_cents"] = strconv.FormatInt(*input.MaxCents, 10)
	}
	return params
}

func validateSKU(sku string) error {
	if sku == "" {
		return apperrors.InvalidInput("sku is required")
	}
	if len(sku) > 50 {
		return apperrors.InvalidInput("sku must not exceed 50 characters")
	}
	return nil
}

func validateName(name string) error {
	if len(name) < 3 {
		return apperrors.InvalidInput("name must be at least 3 characters")
	}
	if len(name) > 255 {
		return apperrors.InvalidInput("name must not exceed 255 characters")
	}
	return nil
}

func validatePrice(cents int64) error {
	if cents < domain.MinPriceCents {
		return apperrors.InvalidInput("price must be positive")
	}
	if cents > domain.MaxPriceCents {
		return apperrors.InvalidInput("price must not exceed 99999999 cents")
	}
	return nil
}

func validateCategory(category string) error {
	if category == "" {
		return apperrors.InvalidInput("category is required")
	}
	if len(category) > 100 {
		return apperrors.InvalidInput("category must not exceed 100 characters")
	}
	return nil
}
