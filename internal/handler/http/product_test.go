package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sikiCompany/catalog-api/internal/cache"
	"github.com/sikiCompany/catalog-api/internal/domain"
	"github.com/sikiCompany/catalog-api/internal/repository"
	"github.com/sikiCompany/catalog-api/internal/search"
	"github.com/sikiCompany/catalog-api/internal/search/memory"
	"github.com/sikiCompany/catalog-api/internal/service"
	apperrors "github.com/sikiCompany/catalog-api/pkg/errors"
	"github.com/sikiCompany/catalog-api/pkg/httputil"
	"github.com/sikiCompany/catalog-api/pkg/pagination"
)

// =============================================================================
// Mock ProductRepository
// =============================================================================

type mockProductRepo struct {
	mock.Mock
}

func (m *mockProductRepo) Create(ctx context.Context, product *domain.Product) error {
	args := m.Called(ctx, product)
	return args.Error(0)
}

func (m *mockProductRepo) GetByID(ctx context.Context, id string, withDeleted bool) (*domain.Product, error) {
	args := m.Called(ctx, id, withDeleted)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *mockProductRepo) GetByIDs(ctx context.Context, ids []string) ([]domain.Product, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Product), args.Error(1)
}

func (m *mockProductRepo) List(ctx context.Context, filter repository.ProductFilter) ([]domain.Product, int, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]domain.Product), args.Int(1), args.Error(2)
}

func (m *mockProductRepo) Update(ctx context.Context, product *domain.Product) error {
	args := m.Called(ctx, product)
	return args.Error(0)
}

func (m *mockProductRepo) SoftDelete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockProductRepo) Restore(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockProductRepo) SKUExists(ctx context.Context, sku string, excludeID string) (bool, error) {
	args := m.Called(ctx, sku, excludeID)
	return args.Bool(0), args.Error(1)
}

// =============================================================================
// Test helpers
// =============================================================================

const testProductID = "550e8400-e29b-41d4-a716-446655440001"

type noopPublisher struct{}

func (noopPublisher) ProductCreated(context.Context, string, string) error  { return nil }
func (noopPublisher) ProductUpdated(context.Context, string, string) error  { return nil }
func (noopPublisher) ProductDeleted(context.Context, string, string) error  { return nil }
func (noopPublisher) ProductRestored(context.Context, string, string) error { return nil }

type noopImageStore struct{}

func (noopImageStore) Save(_ context.Context, productID, filename string, _ io.Reader) (string, error) {
	return "/images/" + productID + "/" + filename, nil
}

func (noopImageStore) Remove(context.Context, string) error { return nil }

func productTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func productTestCache(t *testing.T) *cache.Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return cache.New(client, productTestLogger())
}

func productTestRouter(t *testing.T, repo *mockProductRepo) *chi.Mux {
	t.Helper()
	logger := productTestLogger()
	svc := service.NewCatalogService(repo, productTestCache(t), noopPublisher{}, noopImageStore{}, logger)
	handler := NewProductHandler(svc, logger)

	r := chi.NewRouter()
	r.Route("/api/v1/products", func(r chi.Router) {
		r.Get("/", handler.ListProducts)
		r.Post("/", handler.CreateProduct)
		r.Get("/{id}", handler.GetProduct)
		r.Put("/{id}", handler.UpdateProduct)
		r.Patch("/{id}", handler.UpdateProduct)
		r.Delete("/{id}", handler.DeleteProduct)
		r.Post("/{id}/restore", handler.RestoreProduct)
		r.Post("/{id}/image", handler.UploadImage)
	})
	return r
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) httputil.Response {
	t.Helper()
	var resp httputil.Response
	err := json.NewDecoder(rec.Body).Decode(&resp)
	require.NoError(t, err)
	return resp
}

func testProduct() *domain.Product {
	now := time.Now().UTC()
	return &domain.Product{
		ID:          testProductID,
		SKU:         "WIDGET-1",
		Name:        "Widget Pro",
		Description: "A great widget",
		PriceCents:  1999,
		Category:    "tools",
		Status:      domain.ProductStatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// =============================================================================
// POST /api/v1/products - CreateProduct
// =============================================================================

func TestCreateProductHandler_Success(t *testing.T) {
	repo := new(mockProductRepo)
	router := productTestRouter(t, repo)

	repo.On("SKUExists", mock.Anything, "WIDGET-1", "").Return(false, nil)
	repo.On("Create", mock.Anything, mock.AnythingOfType("*domain.Product")).Return(nil)

	body := CreateProductRequest{
		SKU:        "WIDGET-1",
		Name:       "Widget Pro",
		PriceCents: 1999,
		Category:   "tools",
	}
	b, _ := json.Marshal(body)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/products", bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	resp := decodeResponse(t, rec)
	assert.Nil(t, resp.Error)
	assert.NotNil(t, resp.Data)
	repo.AssertExpectations(t)
}

func TestCreateProductHandler_InvalidJSON(t *testing.T) {
	router := productTestRouter(t, new(mockProductRepo))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/products", bytes.NewReader([]byte(`{invalid`)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "INVALID_INPUT", resp.Error.Code)
}

func TestCreateProductHandler_ValidationError(t *testing.T) {
	router := productTestRouter(t, new(mockProductRepo))

	// Missing required fields: sku, name, category.
	body := CreateProductRequest{PriceCents: 1999}
	b, _ := json.Marshal(body)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/products", bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
	assert.NotEmpty(t, resp.Error.Fields)
}

func TestCreateProductHandler_DuplicateSKU(t *testing.T) {
	repo := new(mockProductRepo)
	router := productTestRouter(t, repo)

	repo.On("SKUExists", mock.Anything, "WIDGET-1", "").Return(true, nil)

	body := CreateProductRequest{
		SKU:        "WIDGET-1",
		Name:       "Widget Pro",
		PriceCents: 1999,
		Category:   "tools",
	}
	b, _ := json.Marshal(body)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/products", bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "CONFLICT", resp.Error.Code)
}

// =============================================================================
// GET /api/v1/products - ListProducts
// =============================================================================

func TestListProductsHandler_Success(t *testing.T) {
	repo := new(mockProductRepo)
	router := productTestRouter(t, repo)

	repo.On("List", mock.Anything, mock.AnythingOfType("repository.ProductFilter")).
		Return([]domain.Product{*testProduct()}, 1, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products?category=tools&page=1&per_page=20", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var result pagination.Result[domain.Product]
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&result))
	assert.Len(t, result.Data, 1)
	assert.Equal(t, 1, result.TotalCount)
	assert.Equal(t, 1, result.TotalPages)
}

func TestListProductsHandler_InvalidStatus(t *testing.T) {
	router := productTestRouter(t, new(mockProductRepo))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products?status=archived", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "INVALID_PARAMETER", resp.Error.Code)
}

func TestListProductsHandler_InvalidSortBy(t *testing.T) {
	router := productTestRouter(t, new(mockProductRepo))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products?sort_by=popularity", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListProductsHandler_InvalidPriceParam(t *testing.T) {
	router := productTestRouter(t, new(mockProductRepo))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products?min_price=abc", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListProductsHandler_MinAboveMax(t *testing.T) {
	router := productTestRouter(t, new(mockProductRepo))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products?min_price=5000&max_price=100", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// GET /api/v1/products/{id} - GetProduct
// =============================================================================

func TestGetProductHandler_Success(t *testing.T) {
	repo := new(mockProductRepo)
	router := productTestRouter(t, repo)

	repo.On("GetByID", mock.Anything, testProductID, false).Return(testProduct(), nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products/"+testProductID, nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	assert.Nil(t, resp.Error)
	assert.NotNil(t, resp.Data)
}

func TestGetProductHandler_InvalidUUID(t *testing.T) {
	router := productTestRouter(t, new(mockProductRepo))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products/not-a-uuid", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "INVALID_PARAMETER", resp.Error.Code)
}

func TestGetProductHandler_NotFound(t *testing.T) {
	repo := new(mockProductRepo)
	router := productTestRouter(t, repo)

	repo.On("GetByID", mock.Anything, testProductID, false).
		Return(nil, apperrors.NotFound("product", testProductID))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products/"+testProductID, nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "NOT_FOUND", resp.Error.Code)
}

func TestGetProductHandler_WithTrashed(t *testing.T) {
	repo := new(mockProductRepo)
	router := productTestRouter(t, repo)

	deletedAt := time.Now().UTC()
	deleted := testProduct()
	deleted.DeletedAt = &deletedAt
	repo.On("GetByID", mock.Anything, testProductID, true).Return(deleted, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products/"+testProductID+"?with_trashed=true", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	repo.AssertExpectations(t)
}

// =============================================================================
// PUT /api/v1/products/{id} - UpdateProduct
// =============================================================================

func TestUpdateProductHandler_Success(t *testing.T) {
	repo := new(mockProductRepo)
	router := productTestRouter(t, repo)

	repo.On("GetByID", mock.Anything, testProductID, false).Return(testProduct(), nil)
	repo.On("Update", mock.Anything, mock.AnythingOfType("*domain.Product")).Return(nil)

	b, _ := json.Marshal(map[string]any{"name": "Widget Pro Max", "price_cents": 2499})

	req := httptest.NewRequest(http.MethodPut, "/api/v1/products/"+testProductID, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	repo.AssertExpectations(t)
}

func TestUpdateProductHandler_PatchMethod(t *testing.T) {
	repo := new(mockProductRepo)
	router := productTestRouter(t, repo)

	repo.On("GetByID", mock.Anything, testProductID, false).Return(testProduct(), nil)
	repo.On("Update", mock.Anything, mock.AnythingOfType("*domain.Product")).Return(nil)

	b, _ := json.Marshal(map[string]any{"price_cents": 3499})

	req := httptest.NewRequest(http.MethodPatch, "/api/v1/products/"+testProductID, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	repo.AssertExpectations(t)
}

func TestUpdateProductHandler_ValidationError(t *testing.T) {
	router := productTestRouter(t, new(mockProductRepo))

	b, _ := json.Marshal(map[string]any{"name": "ab"})

	req := httptest.NewRequest(http.MethodPut, "/api/v1/products/"+testProductID, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// DELETE / restore / image
// =============================================================================

func TestDeleteProductHandler_Success(t *testing.T) {
	repo := new(mockProductRepo)
	router := productTestRouter(t, repo)

	repo.On("GetByID", mock.Anything, testProductID, false).Return(testProduct(), nil)
	repo.On("SoftDelete", mock.Anything, testProductID).Return(nil)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/products/"+testProductID, nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())
	repo.AssertExpectations(t)
}

func TestRestoreProductHandler_Success(t *testing.T) {
	repo := new(mockProductRepo)
	router := productTestRouter(t, repo)

	repo.On("Restore", mock.Anything, testProductID).Return(nil)
	repo.On("GetByID", mock.Anything, testProductID, false).Return(testProduct(), nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/products/"+testProductID+"/restore", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	repo.AssertExpectations(t)
}

func TestRestoreProductHandler_NotFound(t *testing.T) {
	repo := new(mockProductRepo)
	router := productTestRouter(t, repo)

	repo.On("Restore", mock.Anything, testProductID).
		Return(apperrors.NotFound("product", testProductID))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/products/"+testProductID+"/restore", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUploadImageHandler_Success(t *testing.T) {
	repo := new(mockProductRepo)
	router := productTestRouter(t, repo)

	repo.On("GetByID", mock.Anything, testProductID, false).Return(testProduct(), nil)
	repo.On("Update", mock.Anything, mock.AnythingOfType("*domain.Product")).Return(nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("image", "photo.jpg")
	require.NoError(t, err)
	_, err = fw.Write([]byte("fake image bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/products/"+testProductID+"/image", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	repo.AssertExpectations(t)
}

func TestUploadImageHandler_MissingFile(t *testing.T) {
	router := productTestRouter(t, new(mockProductRepo))

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("other", "value"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/products/"+testProductID+"/image", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "INVALID_INPUT", resp.Error.Code)
}

// =============================================================================
// GET /api/v1/search/products - SearchProducts
// =============================================================================

func searchTestRouter(t *testing.T, repo *mockProductRepo) *chi.Mux {
	t.Helper()
	logger := productTestLogger()

	eng := memory.New()
	require.NoError(t, eng.Upsert(context.Background(), &search.Document{
		ID: testProductID, SKU: "WIDGET-1", Name: "Widget Pro", Category: "tools", Status: "active", PriceCents: 1999,
	}))

	svc := service.NewSearchService(eng, repo, productTestCache(t), logger)
	handler := NewSearchHandler(svc, logger)

	r := chi.NewRouter()
	r.Get("/api/v1/search/products", handler.SearchProducts)
	return r
}

func TestSearchProductsHandler_Success(t *testing.T) {
	repo := new(mockProductRepo)
	router := searchTestRouter(t, repo)

	repo.On("GetByIDs", mock.Anything, []string{testProductID}).
		Return([]domain.Product{*testProduct()}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/search/products?q=widget", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data domain.SearchResult `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Data.Products, 1)
	assert.Equal(t, "WIDGET-1", resp.Data.Products[0].SKU)
	assert.False(t, resp.Data.Degraded)
}

func TestSearchProductsHandler_InvalidSort(t *testing.T) {
	router := searchTestRouter(t, new(mockProductRepo))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/search/products?sort_by=name", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearchProductsHandler_InvalidPriceParam(t *testing.T) {
	router := searchTestRouter(t, new(mockProductRepo))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/search/products?max_price=-5", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
