package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sikiCompany/catalog-api/internal/domain"
	"github.com/sikiCompany/catalog-api/internal/service"
	"github.com/sikiCompany/catalog-api/pkg/httputil"
	"github.com/sikiCompany/catalog-api/pkg/pagination"
	"github.com/sikiCompany/catalog-api/pkg/validator"
)

// maxImageUploadBytes caps the multipart body of an image upload (6 MiB,
// leaving headroom over the stored image limit for multipart framing).
const maxImageUploadBytes = 6 << 20

// ProductHandler handles HTTP requests for product endpoints.
type ProductHandler struct {
	service *service.CatalogService
	logger  *slog.Logger
}

// NewProductHandler creates a new product HTTP handler.
func NewProductHandler(svc *service.CatalogService, logger *slog.Logger) *ProductHandler {
	return &ProductHandler{
		service: svc,
		logger:  logger,
	}
}

// --- Request DTOs ---

// CreateProductRequest is the JSON request body for creating a product.
type CreateProductRequest struct {
	SKU         string `json:"sku" validate:"required,max=50"`
	Name        string `json:"name" validate:"required,min=3,max=255"`
	Description string `json:"description" validate:"max=1000"`
	PriceCents  int64  `json:"price_cents" validate:"required,gt=0,lte=99999999"`
	Category    string `json:"category" validate:"required,max=100"`
	Status      string `json:"status" validate:"omitempty,oneof=active inactive"`
}

// UpdateProductRequest is the JSON request body for updating a product.
type UpdateProductRequest struct {
	SKU         *string `json:"sku" validate:"omitempty,max=50"`
	Name        *string `json:"name" validate:"omitempty,min=3,max=255"`
	Description *string `json:"description" validate:"omitempty,max=1000"`
	PriceCents  *int64  `json:"price_cents" validate:"omitempty,gt=0,lte=99999999"`
	Category    *string `json:"category" validate:"omitempty,max=100"`
	Status      *string `json:"status" validate:"omitempty,oneof=active inactive"`
}

// --- Handlers ---

// ListProducts handles GET /api/v1/products
// @Summary List products
// @Description Returns a paginated list of products with optional filtering and sorting
// @Tags products
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param per_page query int false "Items per page (max 100)" default(20)
// @Param category query string false "Filter by category"
// @Param status query string false "Filter by status" Enums(active,inactive)
// @Param search query string false "Substring match on name, description, and SKU"
// @Param sort_by query string false "Sort column" Enums(price,created_at,name)
// @Param sort_order query string false "Sort direction" Enums(asc,desc)
// @Param min_price query int false "Minimum price in cents"
// @Param max_price query int false "Maximum price in cents"
// @Param with_trashed query bool false "Include soft-deleted products"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Router /api/v1/products [get]
func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	params := pagination.FromRequest(r)

	input := &service.ListProductsInput{
		Category:  r.URL.Query().Get("category"),
		Search:    r.URL.Query().Get("search"),
		SortOrder: r.URL.Query().Get("sort_order"),
		Page:      params.Page,
		PerPage:   params.PerPage,
	}

	if v := r.URL.Query().Get("status"); v != "" {
		if !domain.IsValidStatus(v) {
			httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
				Error: &httputil.ErrorResponse{Code: "INVALID_PARAMETER", Message: "status must be one of: active, inactive"},
			})
			return
		}
		input.Status = v
	}

	if v := r.URL.Query().Get("sort_by"); v != "" {
		if !domain.IsValidSort(v, domain.ListSortFields()) {
			httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
				Error: &httputil.ErrorResponse{Code: "INVALID_PARAMETER", Message: "sort_by must be one of: price, created_at, name"},
			})
			return
		}
		input.SortBy = v
	}

	minCents, ok := parseCentsParam(w, r, "min_price")
	if !ok {
		return
	}
	maxCents, ok := parseCentsParam(w, r, "max_price")
	if !ok {
		return
	}
	if minCents != nil && maxCents != nil && *minCents > *maxCents {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_PARAMETER", Message: "min_price must not exceed max_price"},
		})
		return
	}
	input.MinCents = minCents
	input.MaxCents = maxCents

	if v := r.URL.Query().Get("with_trashed"); v != "" {
		withTrashed, err := strconv.ParseBool(v)
		if err != nil {
			httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
				Error: &httputil.ErrorResponse{Code: "INVALID_PARAMETER", Message: "with_trashed must be a boolean"},
			})
			return
		}
		input.WithDeleted = withTrashed
	}

	products, total, err := h.service.ListProducts(r.Context(), input)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, pagination.NewResult(products, total, params))
}

// GetProduct handles GET /api/v1/products/{id}
// @Summary Get product by ID
// @Tags products
// @Produce json
// @Param id path string true "Product UUID"
// @Param with_trashed query bool false "Include soft-deleted products"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /api/v1/products/{id} [get]
func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	withTrashed := false
	if v := r.URL.Query().Get("with_trashed"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
				Error: &httputil.ErrorResponse{Code: "INVALID_PARAMETER", Message: "with_trashed must be a boolean"},
			})
			return
		}
		withTrashed = parsed
	}

	product, err := h.service.GetProduct(r.Context(), id.String(), withTrashed)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: product})
}

// CreateProduct handles POST /api/v1/products
// @Summary Create a product
// @Tags products
// @Accept json
// @Produce json
// @Param request body CreateProductRequest true "Product to create"
// @Success 201 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Router /api/v1/products [post]
func (h *ProductHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	// Limit request body to 1MB to prevent DoS via large payloads.
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req CreateProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	input := &service.CreateProductInput{
		SKU:         req.SKU,
		Name:        req.Name,
		Description: req.Description,
		PriceCents:  req.PriceCents,
		Category:    req.Category,
		Status:      req.Status,
	}

	product, err := h.service.CreateProduct(r.Context(), input)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: product})
}

// UpdateProduct handles PUT /api/v1/products/{id}
// @Summary Update a product
// @Description Partially updates a product, all fields are optional
// @Tags products
// @Accept json
// @Produce json
// @Param id path string true "Product UUID"
// @Param request body UpdateProductRequest true "Fields to update"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Router /api/v1/products/{id} [put]
func (h *ProductHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	// Limit request body to 1MB to prevent DoS via large payloads.
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req UpdateProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	input := &service.UpdateProductInput{
		SKU:         req.SKU,
		Name:        req.Name,
		Description: req.Description,
		PriceCents:  req.PriceCents,
		Category:    req.Category,
		Status:      req.Status,
	}

	product, err := h.service.UpdateProduct(r.Context(), id.String(), input)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: product})
}

// DeleteProduct handles DELETE /api/v1/products/{id}
// @Summary Delete a product
// @Description Soft-deletes a product; the SKU stays reserved until restore
// @Tags products
// @Produce json
// @Param id path string true "Product UUID"
// @Success 204 "No Content"
// @Failure 404 {object} map[string]interface{}
// @Router /api/v1/products/{id} [delete]
func (h *ProductHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	if err := h.service.DeleteProduct(r.Context(), id.String()); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RestoreProduct handles POST /api/v1/products/{id}/restore
// @Summary Restore a soft-deleted product
// @Tags products
// @Produce json
// @Param id path string true "Product UUID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /api/v1/products/{id}/restore [post]
func (h *ProductHandler) RestoreProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	product, err := h.service.RestoreProduct(r.Context(), id.String())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: product})
}

// UploadImage handles POST /api/v1/products/{id}/image
// @Summary Upload a product image
// @Description Accepts a multipart form with an "image" file field
// @Tags products
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Product UUID"
// @Param image formData file true "Image file (jpg, jpeg, png, webp; max 5MB)"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /api/v1/products/{id}/image [post]
func (h *ProductHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxImageUploadBytes)
	if err := r.ParseMultipartForm(maxImageUploadBytes); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid multipart form: " + err.Error()},
		})
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "image file field is required"},
		})
		return
	}
	defer func() { _ = file.Close() }()

	product, err := h.service.UploadImage(r.Context(), id.String(), header.Filename, file)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: product})
}

// parseCentsParam reads an optional integer query parameter in cents. It
// writes a 400 response and returns false on malformed input.
func parseCentsParam(w http.ResponseWriter, r *http.Request, name string) (*int64, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return nil, true
	}

	cents, err := strconv.ParseInt(v, 10, 64)
	if err != nil || cents < 0 {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_PARAMETER", Message: name + " must be a non-negative integer"},
		})
		return nil, false
	}
	return &cents, true
}
