package kafka

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	publishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_producer_messages_published_total",
			Help: "Total number of Kafka messages published",
		},
		[]string{"topic", "event_type"},
	)

	publishErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_producer_publish_errors_total",
			Help: "Total number of Kafka publish errors",
		},
		[]string{"topic"},
	)

	consumedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_consumer_messages_processed_total",
			Help: "Total number of successfully processed Kafka messages",
		},
		[]string{"topic", "consumer_group"},
	)

	consumeFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_consumer_messages_failed_total",
			Help: "Total number of Kafka messages that exhausted all retries",
		},
		[]string{"topic", "consumer_group"},
	)

	consumeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kafka_consumer_processing_duration_seconds",
			Help:    "Duration of Kafka message processing in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"topic", "consumer_group"},
	)

	dlqPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_consumer_dlq_published_total",
			Help: "Total number of messages published to the dead-letter queue",
		},
		[]string{"topic", "consumer_group"},
	)
)
