package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// maxHandlerRetries is the maximum number of times a message handler will be
// attempted before the message is routed to the dead-letter queue.
const maxHandlerRetries = 3

// retryBackoffStep is the linear backoff increment between handler attempts.
const retryBackoffStep = 100 * time.Millisecond

// Handler is a function that processes a Kafka event.
type Handler func(ctx context.Context, event *Event) error

// ConsumerConfig holds Kafka consumer configuration.
type ConsumerConfig struct {
	Brokers  []string
	GroupID  string
	Topic    string
	MinBytes int
	MaxBytes int
}

// Consumer wraps the kafka-go reader for consuming events. When a DLQ
// producer is attached, messages that exhaust all handler retries are
// forwarded to the dead-letter topic before being committed; without one
// they are logged and skipped.
type Consumer struct {
	reader    *kafka.Reader
	logger    *slog.Logger
	handler   Handler
	dlq       *DLQProducer
	closeOnce sync.Once
}

// NewConsumer creates a new Kafka consumer for a specific topic and group.
func NewConsumer(cfg ConsumerConfig, handler Handler, logger *slog.Logger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		GroupID:  cfg.GroupID,
		Topic:    cfg.Topic,
		MinBytes: cfg.MinBytes,
		MaxBytes: cfg.MaxBytes,
	})

	return &Consumer{
		reader:  r,
		logger:  logger,
		handler: handler,
	}
}

// WithDLQ attaches a dead-letter queue producer to the consumer.
func (c *Consumer) WithDLQ(dlq *DLQProducer) *Consumer {
	c.dlq = dlq
	return c
}

// Start begins consuming messages. It blocks until the context is canceled.
func (c *Consumer) Start(ctx context.Context) error {
	topic := c.reader.Config().Topic
	group := c.reader.Config().GroupID

	c.logger.Info("consumer started",
		slog.String("topic", topic),
		slog.String("group", group),
	)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("consumer stopping", slog.String("topic", topic))
			return c.Close()
		default:
			msg, err := c.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				c.logger.Error("failed to fetch message", slog.String("error", err.Error()))
				continue
			}

			event, err := UnmarshalEvent(msg.Value)
			if err != nil {
				c.logger.Error("failed to unmarshal event",
					slog.String("error", err.Error()),
					slog.String("topic", msg.Topic),
				)
				c.deadLetter(ctx, msg, err, group)
				if commitErr := c.reader.CommitMessages(ctx, msg); commitErr != nil {
					c.logger.Error("failed to commit bad message", slog.String("error", commitErr.Error()))
				}
				continue
			}

			start := time.Now()
			var lastErr error
			for attempt := 1; attempt <= maxHandlerRetries; attempt++ {
				if err := c.handler(ctx, event); err != nil {
					lastErr = err
					c.logger.Warn("handler failed, will retry",
						slog.String("event_type", event.EventType),
						slog.String("aggregate_id", event.AggregateID),
						slog.String("error", err.Error()),
						slog.String("topic", msg.Topic),
						slog.Int("partition", msg.Partition),
						slog.Int64("offset", msg.Offset),
						slog.Int("attempt", attempt),
						slog.Int("max_retries", maxHandlerRetries),
					)

					if attempt < maxHandlerRetries {
						backoff := time.Duration(attempt) * retryBackoffStep
						select {
						case <-ctx.Done():
							return nil
						case <-time.After(backoff):
						}
					}
				} else {
					lastErr = nil
					break
				}
			}
			consumeDuration.WithLabelValues(msg.Topic, group).Observe(time.Since(start).Seconds())

			if lastErr != nil {
				consumeFailures.WithLabelValues(msg.Topic, group).Inc()
				c.logger.Error("handler failed after all retries",
					slog.String("event_type", event.EventType),
					slog.String("aggregate_id", event.AggregateID),
					slog.String("error", lastErr.Error()),
					slog.String("topic", msg.Topic),
					slog.Int("partition", msg.Partition),
					slog.Int64("offset", msg.Offset),
					slog.Int("retries", maxHandlerRetries),
				)
				c.deadLetter(ctx, msg, lastErr, group)
				if commitErr := c.reader.CommitMessages(ctx, msg); commitErr != nil {
					c.logger.Error("failed to commit failed message", slog.String("error", commitErr.Error()))
				}
				continue
			}

			consumedTotal.WithLabelValues(msg.Topic, group).Inc()
			if err := c.reader.CommitMessages(ctx, msg); err != nil {
				c.logger.Error("failed to commit message", slog.String("error", err.Error()))
			}
		}
	}
}

func (c *Consumer) deadLetter(ctx context.Context, msg kafka.Message, cause error, group string) {
	if c.dlq == nil {
		return
	}
	if err := c.dlq.Publish(ctx, msg, cause, group); err != nil {
		c.logger.Error("failed to dead-letter message",
			slog.String("topic", msg.Topic),
			slog.Int64("offset", msg.Offset),
			slog.String("error", err.Error()),
		)
		return
	}
	dlqPublished.WithLabelValues(msg.Topic, group).Inc()
}

// Close closes the consumer. It is safe to call multiple times.
func (c *Consumer) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.reader.Close()
	})
	return err
}

// TopicPrefix is the standard prefix for all catalog Kafka topics.
const TopicPrefix = "catalog"

// Topic constructs a fully-qualified topic name.
func Topic(domain, action string) string {
	return fmt.Sprintf("%s.%s.%s", TopicPrefix, domain, action)
}
