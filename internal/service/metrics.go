package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker/v2"
)

var (
	fallbackTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "catalog_search_fallback_total",
			Help: "Total number of searches served by the database fallback",
		},
	)

	breakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "catalog_circuit_breaker_state",
			Help: "Current state of the circuit breaker (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)
)

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
