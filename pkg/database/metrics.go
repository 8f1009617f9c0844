package database

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// PoolStatsCollector exports pgxpool statistics as Prometheus metrics.
type PoolStatsCollector struct {
	pool *pgxpool.Pool

	acquiredConns *prometheus.Desc
	idleConns     *prometheus.Desc
	totalConns    *prometheus.Desc
	maxConns      *prometheus.Desc
	acquireCount  *prometheus.Desc
	acquireWait   *prometheus.Desc
}

// NewPoolStatsCollector creates a collector for the given pool. The dbName
// label distinguishes pools when a process holds more than one.
func NewPoolStatsCollector(pool *pgxpool.Pool, dbName string) *PoolStatsCollector {
	labels := prometheus.Labels{"db": dbName}
	return &PoolStatsCollector{
		pool: pool,
		acquiredConns: prometheus.NewDesc(
			"pgxpool_acquired_conns", "Number of currently acquired connections.", nil, labels),
		idleConns: prometheus.NewDesc(
			"pgxpool_idle_conns", "Number of currently idle connections.", nil, labels),
		totalConns: prometheus.NewDesc(
			"pgxpool_total_conns", "Total number of connections in the pool.", nil, labels),
		maxConns: prometheus.NewDesc(
			"pgxpool_max_conns", "Maximum size of the pool.", nil, labels),
		acquireCount: prometheus.NewDesc(
			"pgxpool_acquire_count_total", "Cumulative count of successful acquires.", nil, labels),
		acquireWait: prometheus.NewDesc(
			"pgxpool_acquire_wait_seconds_total", "Total time spent waiting for an acquire.", nil, labels),
	}
}

func (c *PoolStatsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.acquiredConns
	ch <- c.idleConns
	ch <- c.totalConns
	ch <- c.maxConns
	ch <- c.acquireCount
	ch <- c.acquireWait
}

func (c *PoolStatsCollector) Collect(ch chan<- prometheus.Metric) {
	stats := c.pool.Stat()
	ch <- prometheus.MustNewConstMetric(c.acquiredConns, prometheus.GaugeValue, float64(stats.AcquiredConns()))
	ch <- prometheus.MustNewConstMetric(c.idleConns, prometheus.GaugeValue, float64(stats.IdleConns()))
	ch <- prometheus.MustNewConstMetric(c.totalConns, prometheus.GaugeValue, float64(stats.TotalConns()))
	ch <- prometheus.MustNewConstMetric(c.maxConns, prometheus.GaugeValue, float64(stats.MaxConns()))
	ch <- prometheus.MustNewConstMetric(c.acquireCount, prometheus.CounterValue, float64(stats.AcquireCount()))
	ch <- prometheus.MustNewConstMetric(c.acquireWait, prometheus.CounterValue, stats.AcquireDuration().Seconds())
}
