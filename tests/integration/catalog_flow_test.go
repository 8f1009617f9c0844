package integration

import (
	"fmt"
	"net/http"
	"testing"
)

func createTestProduct(t *testing.T, sku string) string {
	t.Helper()

	resp := httpPost(t, "/api/v1/products", map[string]any{
		"sku":         sku,
		"name":        uniqueName(),
		"description": "Created by the integration suite",
		"price_cents": 4999,
		"category":    "integration",
		"status":      "active",
	})
	requireStatus(t, resp, http.StatusCreated)

	body := decodeBody(t, resp)
	return extractString(t, body, "data.id")
}

func TestProductLifecycle(t *testing.T) {
	skipIfNotRunning(t)

	sku := uniqueSKU()
	id := createTestProduct(t, sku)

	t.Run("get returns the created product", func(t *testing.T) {
		resp := httpGet(t, "/api/v1/products/"+id)
		requireStatus(t, resp, http.StatusOK)

		body := decodeBody(t, resp)
		if got := extractString(t, body, "data.sku"); got != sku {
			t.Fatalf("expected sku %s, got %s", sku, got)
		}
		if got := extractString(t, body, "data.status"); got != "active" {
			t.Fatalf("expected status active, got %s", got)
		}
	})

	t.Run("duplicate sku is rejected", func(t *testing.T) {
		resp := httpPost(t, "/api/v1/products", map[string]any{
			"sku":         sku,
			"name":        uniqueName(),
			"price_cents": 100,
			"category":    "integration",
		})
		requireStatus(t, resp, http.StatusConflict)

		body := decodeBody(t, resp)
		if code := extractString(t, body, "error.code"); code != "CONFLICT" {
			t.Fatalf("expected error code CONFLICT, got %s", code)
		}
	})

	t.Run("update changes name and price", func(t *testing.T) {
		resp := httpPut(t, "/api/v1/products/"+id, map[string]any{
			"name":        "Renamed Integration Widget",
			"price_cents": 9999,
		})
		requireStatus(t, resp, http.StatusOK)

		body := decodeBody(t, resp)
		if got := extractString(t, body, "data.name"); got != "Renamed Integration Widget" {
			t.Fatalf("expected updated name, got %s", got)
		}
		if got := extractField(t, body, "data.price_cents").(float64); got != 9999 {
			t.Fatalf("expected price_cents 9999, got %v", got)
		}
	})

	t.Run("list filtered by category contains product", func(t *testing.T) {
		resp := httpGet(t, "/api/v1/products?category=integration&per_page=100")
		requireStatus(t, resp, http.StatusOK)

		body := decodeBody(t, resp)
		items, ok := extractField(t, body, "data").([]any)
		if !ok {
			t.Fatalf("expected data to be an array")
		}

		found := false
		for _, item := range items {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			if m["id"] == id {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("product %s not found in category listing", id)
		}
	})

	t.Run("delete then fetch returns not found", func(t *testing.T) {
		resp := httpDelete(t, "/api/v1/products/"+id)
		requireStatus(t, resp, http.StatusNoContent)
		resp.Body.Close()

		resp = httpGet(t, "/api/v1/products/"+id)
		requireStatus(t, resp, http.StatusNotFound)

		body := decodeBody(t, resp)
		if code := extractString(t, body, "error.code"); code != "NOT_FOUND" {
			t.Fatalf("expected error code NOT_FOUND, got %s", code)
		}
	})

	t.Run("with_trashed still sees the deleted product", func(t *testing.T) {
		resp := httpGet(t, fmt.Sprintf("/api/v1/products/%s?with_trashed=true", id))
		requireStatus(t, resp, http.StatusOK)

		body := decodeBody(t, resp)
		if extractField(t, body, "data.deleted_at") == nil {
			t.Fatalf("expected deleted_at to be set")
		}
	})

	t.Run("restore brings the product back", func(t *testing.T) {
		resp := httpPost(t, "/api/v1/products/"+id+"/restore", nil)
		requireStatus(t, resp, http.StatusOK)

		resp = httpGet(t, "/api/v1/products/"+id)
		requireStatus(t, resp, http.StatusOK)

		body := decodeBody(t, resp)
		if got := extractString(t, body, "data.sku"); got != sku {
			t.Fatalf("expected sku %s after restore, got %s", sku, got)
		}
	})
}

func TestProductValidation(t *testing.T) {
	skipIfNotRunning(t)

	t.Run("missing required fields", func(t *testing.T) {
		resp := httpPost(t, "/api/v1/products", map[string]any{
			"description": "no sku or name",
		})
		requireStatus(t, resp, http.StatusBadRequest)

		body := decodeBody(t, resp)
		if code := extractString(t, body, "error.code"); code != "VALIDATION_ERROR" {
			t.Fatalf("expected error code VALIDATION_ERROR, got %s", code)
		}
	})

	t.Run("invalid status value", func(t *testing.T) {
		resp := httpPost(t, "/api/v1/products", map[string]any{
			"sku":         uniqueSKU(),
			"name":        uniqueName(),
			"price_cents": 100,
			"category":    "integration",
			"status":      "archived",
		})
		requireStatus(t, resp, http.StatusBadRequest)
	})

	t.Run("malformed product id", func(t *testing.T) {
		resp := httpGet(t, "/api/v1/products/not-a-uuid")
		requireStatus(t, resp, http.StatusBadRequest)

		body := decodeBody(t, resp)
		if code := extractString(t, body, "error.code"); code != "INVALID_PARAMETER" {
			t.Fatalf("expected error code INVALID_PARAMETER, got %s", code)
		}
	})

	t.Run("invalid list sort field", func(t *testing.T) {
		resp := httpGet(t, "/api/v1/products?sort_by=popularity")
		requireStatus(t, resp, http.StatusBadRequest)
	})
}
