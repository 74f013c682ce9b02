package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CheckoutsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "checkouts_created_total",
		Help: "Total number of checkout sessions opened",
	})

	CheckoutsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkouts_failed_total",
		Help: "Total number of failed checkouts",
	}, []string{"reason"})

	SettlementsAppliedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "settlements_applied_total",
		Help: "Total number of payments whose ledger effects were applied",
	})

	SettlementsDuplicateTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settlements_duplicate_total",
		Help: "Total number of payment events ignored by an idempotency gate",
	}, []string{"gate"})

	PaymentEventsDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_events_dropped_total",
		Help: "Total number of payment events dropped without processing",
	}, []string{"reason"})

	PaymentEventConsumerRestartsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payment_event_consumer_restarts_total",
		Help: "Total number of times the payment event consumer lost its subscription",
	})

	ReversalsAppliedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reversals_applied_total",
		Help: "Total number of refunds reversed on the ledger",
	})

	RefundFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "refund_failures_total",
		Help: "Total number of refund calls rejected by the payment provider",
	})

	LedgerIntegrityAlarmsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_integrity_alarms_total",
		Help: "Total number of guarded debits refused for insufficient balance",
	})

	SettlementLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "settlement_latency_seconds",
		Help:    "Latency of settlement transactions",
		Buckets: prometheus.DefBuckets,
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})
)
