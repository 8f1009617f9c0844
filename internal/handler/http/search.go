package http

import (
	"log/slog"
	"net/http"

	"github.com/sikiCompany/catalog-api/internal/domain"
	"github.com/sikiCompany/catalog-api/internal/service"
	"github.com/sikiCompany/catalog-api/pkg/httputil"
	"github.com/sikiCompany/catalog-api/pkg/pagination"
)

// SearchHandler handles HTTP requests for search endpoints.
type SearchHandler struct {
	service *service.SearchService
	logger  *slog.Logger
}

// NewSearchHandler creates a new search HTTP handler.
func NewSearchHandler(svc *service.SearchService, logger *slog.Logger) *SearchHandler {
	return &SearchHandler{
		service: svc,
		logger:  logger,
	}
}

// SearchProducts handles GET /api/v1/search/products
// @Summary Search products
// @Description Full-text product search with relevance ranking. Served from
// @Description the search engine when healthy, with a database fallback; the
// @Description degraded flag marks fallback responses.
// @Tags search
// @Produce json
// @Param q query string false "Search query"
// @Param category query string false "Filter by category"
// @Param status query string false "Filter by status" Enums(active,inactive)
// @Param min_price query int false "Minimum price in cents"
// @Param max_price query int false "Maximum price in cents"
// @Param sort_by query string false "Sort column (relevance when omitted)" Enums(price,created_at)
// @Param sort_order query string false "Sort direction" Enums(asc,desc)
// @Param page query int false "Page number" default(1)
// @Param per_page query int false "Items per page (max 100)" default(20)
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Router /api/v1/search/products [get]
func (h *SearchHandler) SearchProducts(w http.ResponseWriter, r *http.Request) {
	params := pagination.FromRequest(r)

	query := &domain.SearchQuery{
		Query:     r.URL.Query().Get("q"),
		Category:  r.URL.Query().Get("category"),
		Status:    r.URL.Query().Get("status"),
		SortBy:    r.URL.Query().Get("sort_by"),
		SortOrder: r.URL.Query().Get("sort_order"),
		Page:      params.Page,
		PerPage:   params.PerPage,
	}

	minCents, ok := parseCentsParam(w, r, "min_price")
	if !ok {
		return
	}
	maxCents, ok := parseCentsParam(w, r, "max_price")
	if !ok {
		return
	}
	query.MinCents = minCents
	query.MaxCents = maxCents

	result, err := h.service.Search(r.Context(), query)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: result})
}
