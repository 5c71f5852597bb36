package reconciler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	writeThroughsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cart_write_throughs_total",
			Help: "Remote cart store write-throughs by result",
		},
		[]string{"result"},
	)

	staleWritesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cart_stale_writes_dropped_total",
			Help: "Write-throughs superseded by a newer value for the same key before being sent",
		},
	)

	hydrationFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cart_hydration_failures_total",
			Help: "Cart hydrations that degraded to an empty cart because the store was unavailable",
		},
	)

	mergesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cart_guest_merges_total",
			Help: "Guest carts merged into a user cart on sign-in",
		},
	)
)
