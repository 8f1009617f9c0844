package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"
)

// Integration tests run against a live catalog-api instance. They are
// skipped automatically when the service is not reachable, so the suite
// stays green in unit-only CI runs.

const defaultBaseURL = "http://localhost:8080"

var httpClient = &http.Client{Timeout: 10 * time.Second}

func baseURL() string {
	if v := os.Getenv("CATALOG_API_URL"); v != "" {
		return strings.TrimSuffix(v, "/")
	}
	return defaultBaseURL
}

func skipIfNotRunning(t *testing.T) {
	t.Helper()

	resp, err := httpClient.Get(baseURL() + "/health/live")
	if err != nil {
		t.Skipf("catalog-api not reachable at %s: %v", baseURL(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Skipf("catalog-api liveness returned %d, skipping", resp.StatusCode)
	}
}

func uniqueSKU() string {
	return fmt.Sprintf("IT-%d-%04d", time.Now().UnixNano(), rand.Intn(10000))
}

func uniqueName() string {
	return fmt.Sprintf("Integration Widget %d", time.Now().UnixNano())
}

func httpGet(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := httpClient.Get(baseURL() + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	return resp
}

func httpPost(t *testing.T, path string, body any) *http.Response {
	t.Helper()
	return doJSONRequest(t, http.MethodPost, path, body)
}

func httpPut(t *testing.T, path string, body any) *http.Response {
	t.Helper()
	return doJSONRequest(t, http.MethodPut, path, body)
}

func httpDelete(t *testing.T, path string) *http.Response {
	t.Helper()
	return doJSONRequest(t, http.MethodDelete, path, nil)
}

func doJSONRequest(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, baseURL()+path, reader)
	if err != nil {
		t.Fatalf("build %s %s: %v", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

// decodeBody reads the response body into a map. Non-object payloads are
// returned under the "raw" key so callers can still inspect them.
func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()

	data, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		t.Fatalf("read response body: %v", err)
	}

	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return map[string]any{"raw": string(data)}
	}
	return out
}

func requireStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		body := decodeBody(t, resp)
		t.Fatalf("expected status %d, got %d (body: %v)", want, resp.StatusCode, body)
	}
}

// extractField navigates a decoded body by dot-separated path, e.g.
// "data.id" or "error.code".
func extractField(t *testing.T, body map[string]any, path string) any {
	t.Helper()

	var current any = body
	for _, part := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			t.Fatalf("field %q: %q is not an object", path, part)
		}
		current, ok = m[part]
		if !ok {
			t.Fatalf("field %q not found (missing %q)", path, part)
		}
	}
	return current
}

func extractString(t *testing.T, body map[string]any, path string) string {
	t.Helper()

	v := extractField(t, body, path)
	s, ok := v.(string)
	if !ok {
		t.Fatalf("field %q is %T, expected string", path, v)
	}
	return s
}
