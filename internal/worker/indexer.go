package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/sikiCompany/catalog-api/internal/event"
	"github.com/sikiCompany/catalog-api/internal/repository"
	"github.com/sikiCompany/catalog-api/internal/search"
	apperrors "github.com/sikiCompany/catalog-api/pkg/errors"
	pkgkafka "github.com/sikiCompany/catalog-api/pkg/kafka"
)

// ConsumerGroup is the Kafka consumer group the index sync worker joins.
const ConsumerGroup = "catalog-indexer"

// indexedTopics are the lifecycle topics the worker subscribes to.
var indexedTopics = []string{
	event.TopicProductCreated,
	event.TopicProductUpdated,
	event.TopicProductDeleted,
	event.TopicProductRestored,
}

// Indexer keeps the search index converged with the primary store. Every
// event is handled the same way: re-fetch the current row and mirror it into
// the index. Event payloads are treated as hints only, so replays and
// out-of-order deliveries converge on the latest database state.
type Indexer struct {
	repo      repository.ProductRepository
	engine    search.Engine
	consumers []*pkgkafka.Consumer
	logger    *slog.Logger
}

// NewIndexer creates an index sync worker consuming the product lifecycle
// topics. Messages that exhaust handler retries go to the per-topic DLQ.
func NewIndexer(
	brokers []string,
	repo repository.ProductRepository,
	engine search.Engine,
	dlq *pkgkafka.DLQProducer,
	logger *slog.Logger,
) *Indexer {
	w := &Indexer{
		repo:   repo,
		engine: engine,
		logger: logger,
	}

	for _, topic := range indexedTopics {
		consumer := pkgkafka.NewConsumer(pkgkafka.ConsumerConfig{
			Brokers:  brokers,
			GroupID:  ConsumerGroup,
			Topic:    topic,
			MinBytes: 1,
			MaxBytes: 10 << 20,
		}, w.handleEvent, logger)
		if dlq != nil {
			consumer.WithDLQ(dlq)
		}
		w.consumers = append(w.consumers, consumer)
	}

	return w
}

// Run starts all topic consumers and blocks until the context is canceled.
func (w *Indexer) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	errCh := make(chan error, len(w.consumers))

	for _, c := range w.consumers {
		wg.Add(1)
		go func(c *pkgkafka.Consumer) {
			defer wg.Done()
			if err := c.Start(ctx); err != nil {
				errCh <- err
			}
		}(c)
	}

	wg.Wait()
	close(errCh)

	var errs []error
	for err := range errCh {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// handleEvent syncs a single product into the index. The current row wins:
// a missing or soft-deleted row removes the document, anything else upserts
// it with the latest fields.
func (w *Indexer) handleEvent(ctx context.Context, e *pkgkafka.Event) error {
	var data event.ProductEventData
	if err := e.UnmarshalData(&data); err != nil {
		return fmt.Errorf("decode event data: %w", err)
	}
	if data.ID == "" {
		return fmt.Errorf("event %s has no product id", e.EventID)
	}

	product, err := w.repo.GetByID(ctx, data.ID, true)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return w.removeFromIndex(ctx, data.ID)
		}
		return fmt.Errorf("fetch product %s: %w", data.ID, err)
	}

	if product.IsDeleted() {
		return w.removeFromIndex(ctx, product.ID)
	}

	if err := w.engine.Upsert(ctx, search.DocumentFromProduct(product)); err != nil {
		return fmt.Errorf("index product %s: %w", product.ID, err)
	}

	w.logger.DebugContext(ctx, "product synced to index",
		slog.String("product_id", product.ID),
		slog.String("event_type", e.EventType),
	)

	return nil
}

func (w *Indexer) removeFromIndex(ctx context.Context, id string) error {
	if err := w.engine.Delete(ctx, id); err != nil {
		return fmt.Errorf("remove product %s from index: %w", id, err)
	}
	w.logger.DebugContext(ctx, "product removed from index", slog.String("product_id", id))
	return nil
}

// Close shuts down all consumers.
func (w *Indexer) Close() error {
	var errs []error
	for _, c := range w.consumers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
