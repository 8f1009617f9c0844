package config

import (
	"fmt"
	"time"

	pkgconfig "github.com/sikiCompany/catalog-api/pkg/config"
	"github.com/sikiCompany/catalog-api/pkg/database"
)

// Config holds all configuration for the catalog API.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort int `env:"CATALOG_HTTP_PORT" envDefault:"8080"`

	// PostgreSQL
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"catalog"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"catalog_secret"`
	PostgresDB   string `env:"CATALOG_DB_NAME" envDefault:"catalog"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	// Database pool
	DBMaxConns            int32 `env:"DB_MAX_CONNS" envDefault:"25"`
	DBMinConns            int32 `env:"DB_MIN_CONNS" envDefault:"5"`
	DBMaxConnLifetimeMins int   `env:"DB_MAX_CONN_LIFETIME_MINUTES" envDefault:"60"`
	DBMaxConnIdleTimeMins int   `env:"DB_MAX_CONN_IDLE_TIME_MINUTES" envDefault:"30"`

	// Redis
	RedisHost string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPass string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB   int    `env:"REDIS_DB" envDefault:"0"`

	// Kafka
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// Elasticsearch
	ElasticsearchURL   string `env:"ELASTICSEARCH_URL" envDefault:"http://localhost:9200"`
	ElasticsearchIndex string `env:"ELASTICSEARCH_INDEX" envDefault:"catalog_products"`

	// Image storage
	ImageDir     string `env:"IMAGE_DIR" envDefault:"./data/images"`
	ImageBaseURL string `env:"IMAGE_BASE_URL" envDefault:"/images"`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// Slow query logging
	SlowQueryThresholdMs int `env:"LOG_SLOW_QUERY_MS" envDefault:"500"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load catalog config: %w", err)
	}
	if cfg.HTTPPort < 1 || cfg.HTTPPort > 65535 {
		return nil, fmt.Errorf("invalid HTTP port: %d", cfg.HTTPPort)
	}
	if cfg.PostgresHost == "" {
		return nil, fmt.Errorf("POSTGRES_HOST is required")
	}
	if cfg.PostgresUser == "" {
		return nil, fmt.Errorf("POSTGRES_USER is required")
	}
	if len(cfg.KafkaBrokers) == 0 {
		return nil, fmt.Errorf("KAFKA_BROKERS is required")
	}
	if cfg.ElasticsearchURL == "" {
		return nil, fmt.Errorf("ELASTICSEARCH_URL is required")
	}
	if cfg.OTELSampleRate < 0 || cfg.OTELSampleRate > 1.0 {
		return nil, fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %f", cfg.OTELSampleRate)
	}
	return cfg, nil
}

// PostgresConfig builds the connection pool settings.
func (c *Config) PostgresConfig() *database.PostgresConfig {
	return &database.PostgresConfig{
		Host:            c.PostgresHost,
		Port:            c.PostgresPort,
		User:            c.PostgresUser,
		Password:        c.PostgresPass,
		DBName:          c.PostgresDB,
		SSLMode:         c.PostgresSSL,
		MaxConns:        c.DBMaxConns,
		MinConns:        c.DBMinConns,
		MaxConnLifetime: time.Duration(c.DBMaxConnLifetimeMins) * time.Minute,
		MaxConnIdleTime: time.Duration(c.DBMaxConnIdleTimeMins) * time.Minute,
	}
}

// RedisConfig builds the Redis client settings.
func (c *Config) RedisConfig() *database.RedisConfig {
	cfg := database.DefaultRedisConfig()
	cfg.Host = c.RedisHost
	cfg.Port = c.RedisPort
	cfg.Password = c.RedisPass
	cfg.DB = c.RedisDB
	return &cfg
}
