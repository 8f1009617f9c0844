package kafka

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Event tests ---

func TestNewEvent_Fields(t *testing.T) {
	type ProductData struct {
		ID  string `json:"id"`
		SKU string `json:"sku"`
	}

	data := ProductData{ID: "abc-123", SKU: "WIDGET-1"}
	event, err := NewEvent("product.created", "abc-123", "product", "catalog-api", data)
	require.NoError(t, err)

	assert.NotEmpty(t, event.EventID, "EventID should be a non-empty UUID")
	assert.Equal(t, "product.created", event.EventType)
	assert.Equal(t, "abc-123", event.AggregateID)
	assert.Equal(t, "product", event.AggregateType)
	assert.Equal(t, "catalog-api", event.Source)
	assert.WithinDuration(t, time.Now().UTC(), event.Timestamp, 2*time.Second)
	assert.NotNil(t, event.Data)

	var roundTripped ProductData
	require.NoError(t, json.Unmarshal(event.Data, &roundTripped))
	assert.Equal(t, data, roundTripped)
}

func TestNewEvent_InvalidData(t *testing.T) {
	// Channels are not serializable to JSON.
	_, err := NewEvent("test.event", "agg-1", "test", "test-service", make(chan int))
	require.Error(t, err)
}

func TestEvent_Marshal_Unmarshal(t *testing.T) {
	original, err := NewEvent("product.updated", "abc-456", "product", "catalog-api", map[string]string{"id": "abc-456"})
	require.NoError(t, err)
	original.CorrelationID = "corr-abc"

	raw, err := original.Marshal()
	require.NoError(t, err)
	assert.NotEmpty(t, raw)

	restored, err := UnmarshalEvent(raw)
	require.NoError(t, err)

	assert.Equal(t, original.EventID, restored.EventID)
	assert.Equal(t, original.EventType, restored.EventType)
	assert.Equal(t, original.AggregateID, restored.AggregateID)
	assert.Equal(t, original.AggregateType, restored.AggregateType)
	assert.Equal(t, original.Source, restored.Source)
	assert.Equal(t, original.CorrelationID, restored.CorrelationID)
	assert.JSONEq(t, string(original.Data), string(restored.Data))
	assert.WithinDuration(t, original.Timestamp, restored.Timestamp, time.Millisecond)
}

func TestUnmarshalEvent_Malformed(t *testing.T) {
	_, err := UnmarshalEvent([]byte("{not json"))
	assert.Error(t, err)
}

func TestEvent_WithCorrelationID(t *testing.T) {
	event, err := NewEvent("test.event", "agg-1", "test", "svc", nil)
	require.NoError(t, err)

	result := event.WithCorrelationID("corr-xyz")
	assert.Same(t, event, result, "WithCorrelationID should return the same event for chaining")
	assert.Equal(t, "corr-xyz", event.CorrelationID)
}

func TestEvent_UnmarshalData(t *testing.T) {
	event, err := NewEvent("product.deleted", "abc-789", "product", "catalog-api",
		map[string]string{"id": "abc-789", "sku": "WIDGET-9"})
	require.NoError(t, err)

	var data struct {
		ID  string `json:"id"`
		SKU string `json:"sku"`
	}
	require.NoError(t, event.UnmarshalData(&data))
	assert.Equal(t, "abc-789", data.ID)
	assert.Equal(t, "WIDGET-9", data.SKU)
}

// --- Topic naming ---

func TestTopic(t *testing.T) {
	tests := []struct {
		domain string
		action string
		want   string
	}{
		{"product", "created", "catalog.product.created"},
		{"product", "deleted", "catalog.product.deleted"},
		{"index", "rebuilt", "catalog.index.rebuilt"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, Topic(tt.domain, tt.action))
		})
	}
}
