package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seatres_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "code", "method"},
	)

	LocksAcquired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "seatres_locks_acquired_total",
			Help: "Total seats successfully locked",
		},
	)

	LockConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "seatres_lock_conflicts_total",
			Help: "Total acquire requests refused on seat conflict",
		},
	)

	LocksExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "seatres_locks_expired_total",
			Help: "Total expired locks swept from storage",
		},
	)

	BookingsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "seatres_bookings_created_total",
			Help: "Total bookings finalized",
		},
	)

	BookingReplays = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "seatres_booking_replays_total",
			Help: "Total finalize retries answered from the idempotency record",
		},
	)

	BookingConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "seatres_booking_conflicts_total",
			Help: "Total finalize requests refused on seat conflict",
		},
	)

	DBTxDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "seatres_db_tx_seconds",
			Help:    "Duration of ledger transactions",
			Buckets: prometheus.DefBuckets,
		},
	)

	OutboxLag = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "seatres_outbox_lag_seconds",
			Help: "Lag of outbox publishing",
		},
	)

	RabbitPublishRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "seatres_rabbit_publish_retries_total",
			Help: "Total rabbit publish retries",
		},
	)

	RateLimitExceeded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "seatres_rate_limit_exceeded_total",
			Help: "Total rate limit exceeded",
		},
	)
)
