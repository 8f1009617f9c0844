package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/sikiCompany/catalog-api/internal/domain"
	"github.com/sikiCompany/catalog-api/internal/repository"
	"github.com/sikiCompany/catalog-api/pkg/database"
	apperrors "github.com/sikiCompany/catalog-api/pkg/errors"
)

const productColumns = `id, sku, name, description, price_cents, category, status, image_url, created_at, updated_at, deleted_at`

// ProductRepository implements repository.ProductRepository using PostgreSQL.
type ProductRepository struct {
	db database.DBTX
}

// NewProductRepository creates a new PostgreSQL-backed product repository.
func NewProductRepository(db database.DBTX) *ProductRepository {
	return &ProductRepository{db: db}
}

// Create inserts a new product into the database.
func (r *ProductRepository) Create(ctx context.Context, p *domain.Product) error {
	query := `
		INSERT INTO products (id, sku, name, description, price_cents, category, status, image_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	ctx, end := database.TraceQuery(ctx, "CreateProduct", query)
	_, err := r.db.Exec(ctx, query,
		p.ID,
		p.SKU,
		p.Name,
		p.Description,
		p.PriceCents,
		p.Category,
		p.Status,
		p.ImageURL,
		p.CreatedAt,
		p.UpdatedAt,
	)
	end(err)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.Conflict("product", "sku", p.SKU)
		}
		return fmt.Errorf("insert product: %w", err)
	}

	return nil
}

// GetByID retrieves a product by its ID. Soft-deleted rows are excluded
// unless withDeleted is true.
func (r *ProductRepository) GetByID(ctx context.Context, id string, withDeleted bool) (*domain.Product, error) {
	query := fmt.Sprintf(`SELECT %s FROM products WHERE id = $1`, productColumns)
	if !withDeleted {
		query += ` AND deleted_at IS NULL`
	}

	ctx, end := database.TraceQuery(ctx, "GetProduct", query)
	p, err := r.scanProduct(ctx, query, id)
	end(err)
	return p, err
}

// GetByIDs retrieves the non-deleted products for the given identifiers.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []string) ([]domain.Product, error) {
	if len(ids) == 0 {
		return []domain.Product{}, nil
	}

	query := fmt.Sprintf(`SELECT %s FROM products WHERE id = ANY($1) AND deleted_at IS NULL`, productColumns)

	ctx, end := database.TraceQuery(ctx, "GetProductsByIDs", query)
	rows, err := r.db.Query(ctx, query, ids)
	if err != nil {
		end(err)
		return nil, fmt.Errorf("get products by ids: %w", err)
	}
	defer rows.Close()

	products := make([]domain.Product, 0, len(ids))
	for rows.Next() {
		p, err := scanProductRow(rows)
		if err != nil {
			end(err)
			return nil, err
		}
		products = append(products, *p)
	}
	if err := rows.Err(); err != nil {
		end(err)
		return nil, fmt.Errorf("iterate product rows: %w", err)
	}
	end(nil)

	return products, nil
}

// List returns products matching the given filter with the total count.
func (r *ProductRepository) List(ctx context.Context, filter repository.ProductFilter) ([]domain.Product, int, error) {
	var (
		conditions []string
		args       []any
		argIndex   = 1
	)

	if !filter.WithDeleted {
		conditions = append(conditions, "deleted_at IS NULL")
	}

	if filter.Category != nil {
		conditions = append(conditions, fmt.Sprintf("category = $%d", argIndex))
		args = append(args, *filter.Category)
		argIndex++
	}

	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIndex))
		args = append(args, *filter.Status)
		argIndex++
	}

	if filter.Search != nil {
		conditions = append(conditions, fmt.Sprintf("(name ILIKE $%d OR description ILIKE $%d OR sku ILIKE $%d)", argIndex, argIndex, argIndex))
		args = append(args, "%"+*filter.Search+"%")
		argIndex++
	}

	if filter.MinCents != nil {
		conditions = append(conditions, fmt.Sprintf("price_cents >= $%d", argIndex))
		args = append(args, *filter.MinCents)
		argIndex++
	}

	if filter.MaxCents != nil {
		conditions = append(conditions, fmt.Sprintf("price_cents <= $%d", argIndex))
		args = append(args, *filter.MaxCents)
		argIndex++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	// Use count(*) OVER() for total count in a single query.
	query := fmt.Sprintf(`
		SELECT %s, count(*) OVER() AS total_count
		FROM products
		%s
		ORDER BY %s
		LIMIT $%d OFFSET $%d`,
		productColumns, whereClause, orderClause(filter.SortBy, filter.SortOrder), argIndex, argIndex+1,
	)

	limit := filter.PerPage
	if limit <= 0 {
		limit = 20
	}
	offset := 0
	if filter.Page > 1 {
		offset = (filter.Page - 1) * limit
	}

	args = append(args, limit, offset)

	ctx, end := database.TraceQuery(ctx, "ListProducts", query)
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		end(err)
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var (
		products   []domain.Product
		totalCount int
	)

	for rows.Next() {
		var p domain.Product

		if err := rows.Scan(
			&p.ID,
			&p.SKU,
			&p.Name,
			&p.Description,
			&p.PriceCents,
			&p.Category,
			&p.Status,
			&p.ImageURL,
			&p.CreatedAt,
			&p.UpdatedAt,
			&p.DeletedAt,
			&totalCount,
		); err != nil {
			end(err)
			return nil, 0, fmt.Errorf("scan product row: %w", err)
		}

		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		end(err)
		return nil, 0, fmt.Errorf("iterate product rows: %w", err)
	}
	end(nil)

	if products == nil {
		products = []domain.Product{}
	}

	return products, totalCount, nil
}

// Update modifies an existing product in the database. Soft-deleted rows
// cannot be updated.
func (r *ProductRepository) Update(ctx context.Context, p *domain.Product) error {
	p.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE products
		SET sku = $1, name = $2, description = $3, price_cents = $4,
		    category = $5, status = $6, image_url = $7, updated_at = $8
		WHERE id = $9 AND deleted_at IS NULL`

	ctx, end := database.TraceQuery(ctx, "UpdateProduct", query)
	ct, err := r.db.Exec(ctx, query,
		p.SKU,
		p.Name,
		p.Description,
		p.PriceCents,
		p.Category,
		p.Status,
		p.ImageURL,
		p.UpdatedAt,
		p.ID,
	)
	end(err)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.Conflict("product", "sku", p.SKU)
		}
		return fmt.Errorf("update product: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("product", p.ID)
	}

	return nil
}

// SoftDelete flags a product as deleted. Deleting an already-deleted product
// returns not found.
func (r *ProductRepository) SoftDelete(ctx context.Context, id string) error {
	query := `UPDATE products SET deleted_at = $1, updated_at = $1 WHERE id = $2 AND deleted_at IS NULL`

	ctx, end := database.TraceQuery(ctx, "SoftDeleteProduct", query)
	ct, err := r.db.Exec(ctx, query, time.Now().UTC(), id)
	end(err)
	if err != nil {
		return fmt.Errorf("soft delete product: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("product", id)
	}

	return nil
}

// Restore clears the deleted flag on a soft-deleted product. Restoring a live
// product returns not found.
func (r *ProductRepository) Restore(ctx context.Context, id string) error {
	query := `UPDATE products SET deleted_at = NULL, updated_at = $1 WHERE id = $2 AND deleted_at IS NOT NULL`

	ctx, end := database.TraceQuery(ctx, "RestoreProduct", query)
	ct, err := r.db.Exec(ctx, query, time.Now().UTC(), id)
	end(err)
	if err != nil {
		return fmt.Errorf("restore product: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("product", id)
	}

	return nil
}

// SKUExists reports whether any row, including soft-deleted ones, holds the
// given SKU. Soft-deleted rows keep their SKU reserved so a restore can never
// collide with a product created in the meantime.
func (r *ProductRepository) SKUExists(ctx context.Context, sku string, excludeID string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM products WHERE sku = $1 AND ($2::uuid IS NULL OR id <> $2::uuid))`

	// The id column is uuid, so an empty exclusion must go over the wire as
	// NULL rather than an empty string.
	var exclude any
	if excludeID != "" {
		exclude = excludeID
	}

	ctx, end := database.TraceQuery(ctx, "SKUExists", query)
	var exists bool
	err := r.db.QueryRow(ctx, query, sku, exclude).Scan(&exists)
	end(err)
	if err != nil {
		return false, fmt.Errorf("check sku exists: %w", err)
	}

	return exists, nil
}

// scanProduct is a helper that executes a query expected to return a single product row.
func (r *ProductRepository) scanProduct(ctx context.Context, query string, args ...any) (*domain.Product, error) {
	var p domain.Product

	err := r.db.QueryRow(ctx, query, args...).Scan(
		&p.ID,
		&p.SKU,
		&p.Name,
		&p.Description,
		&p.PriceCents,
		&p.Category,
		&p.Status,
		&p.ImageURL,
		&p.CreatedAt,
		&p.UpdatedAt,
		&p.DeletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan product: %w", err)
	}

	return &p, nil
}

func scanProductRow(rows pgx.Rows) (*domain.Product, error) {
	var p domain.Product
	if err := rows.Scan(
		&p.ID,
		&p.SKU,
		&p.Name,
		&p.Description,
		&p.PriceCents,
		&p.Category,
		&p.Status,
		&p.ImageURL,
		&p.CreatedAt,
		&p.UpdatedAt,
		&p.DeletedAt,
	); err != nil {
		return nil, fmt.Errorf("scan product row: %w", err)
	}
	return &p, nil
}

// orderClause maps a validated sort field to an ORDER BY clause. Unknown
// fields fall back to newest-first.
func orderClause(sortBy, sortOrder string) string {
	column := "created_at"
	switch sortBy {
	case domain.SortByPrice:
		column = "price_cents"
	case domain.SortByName:
		column = "name"
	case domain.SortByCreatedAt:
		column = "created_at"
	}

	direction := "DESC"
	if strings.EqualFold(sortOrder, domain.SortAsc) {
		direction = "ASC"
	}

	return column + " " + direction
}

// isUniqueViolation checks if the error is a PostgreSQL unique constraint violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "23505")
}
