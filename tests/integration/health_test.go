package integration

import (
	"net/http"
	"testing"
)

func TestLivenessEndpoint(t *testing.T) {
	skipIfNotRunning(t)

	resp := httpGet(t, "/health/live")
	requireStatus(t, resp, http.StatusOK)

	body := decodeBody(t, resp)
	if status := extractString(t, body, "status"); status != "up" {
		t.Fatalf("expected status up, got %s", status)
	}
}

func TestReadinessEndpoint(t *testing.T) {
	skipIfNotRunning(t)

	resp := httpGet(t, "/health/ready")
	body := decodeBody(t, resp)

	// Dependencies may legitimately be down in a partial environment, so
	// assert the shape of the response rather than requiring 200.
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("unexpected readiness status %d", resp.StatusCode)
	}

	checks, ok := extractField(t, body, "checks").(map[string]any)
	if !ok {
		t.Fatalf("expected checks object in readiness response")
	}
	for _, name := range []string{"postgres", "redis", "kafka"} {
		if _, present := checks[name]; !present {
			t.Errorf("readiness response missing %s check", name)
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	skipIfNotRunning(t)

	resp := httpGet(t, "/metrics")
	requireStatus(t, resp, http.StatusOK)
	resp.Body.Close()
}
