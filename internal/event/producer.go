package event

import (
	"context"
	"fmt"
	"log/slog"

	pkgkafka "github.com/sikiCompany/catalog-api/pkg/kafka"
	"github.com/sikiCompany/catalog-api/pkg/logger"
)

// Kafka topic constants for product lifecycle events.
const (
	TopicProductCreated  = "catalog.product.created"
	TopicProductUpdated  = "catalog.product.updated"
	TopicProductDeleted  = "catalog.product.deleted"
	TopicProductRestored = "catalog.product.restored"
)

// Aggregate type constant.
const AggregateTypeProduct = "product"

// Source identifier for events originating from the catalog API.
const SourceCatalogAPI = "catalog-api"

// ProductEventData is the payload carried on every product lifecycle event.
// It holds only the identifiers; the index sync worker re-fetches the current
// row, so stale payloads cannot overwrite newer state.
type ProductEventData struct {
	ID  string `json:"id"`
	SKU string `json:"sku"`
}

// Producer publishes product lifecycle events to Kafka.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates a new event producer for the catalog API.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// ProductCreated publishes a product.created event.
func (p *Producer) ProductCreated(ctx context.Context, id, sku string) error {
	return p.publish(ctx, TopicProductCreated, id, sku)
}

// ProductUpdated publishes a product.updated event.
func (p *Producer) ProductUpdated(ctx context.Context, id, sku string) error {
	return p.publish(ctx, TopicProductUpdated, id, sku)
}

// ProductDeleted publishes a product.deleted event.
func (p *Producer) ProductDeleted(ctx context.Context, id, sku string) error {
	return p.publish(ctx, TopicProductDeleted, id, sku)
}

// ProductRestored publishes a product.restored event.
func (p *Producer) ProductRestored(ctx context.Context, id, sku string) error {
	return p.publish(ctx, TopicProductRestored, id, sku)
}

func (p *Producer) publish(ctx context.Context, topic, id, sku string) error {
	data := ProductEventData{ID: id, SKU: sku}

	event, err := pkgkafka.NewEvent(topic, id, AggregateTypeProduct, SourceCatalogAPI, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	if cid := logger.CorrelationIDFromContext(ctx); cid != "" {
		event.WithCorrelationID(cid)
	}

	if err := p.kafka.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published product event",
		slog.String("topic", topic),
		slog.String("product_id", id),
		slog.String("sku", sku),
	)

	return nil
}
