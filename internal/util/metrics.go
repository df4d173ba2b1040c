package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ClaimsAttemptedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "customer_claims_attempted_total",
		Help: "Total number of customer claim attempts",
	})

	ClaimsSucceededTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "customer_claims_succeeded_total",
		Help: "Total number of successful customer claims",
	})

	ClaimsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "customer_claims_failed_total",
		Help: "Total number of failed customer claims",
	}, []string{"reason"})

	ReleasesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "customer_releases_total",
		Help: "Total number of customers returned to the public pool",
	}, []string{"trigger"})

	CustomersDeletedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "customers_deleted_total",
		Help: "Total number of customers deleted",
	}, []string{"cascaded"})

	StageTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "opportunity_stage_transitions_total",
		Help: "Total number of opportunity stage transitions",
	}, []string{"to_stage"})

	QuoteSubmissionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quote_submissions_total",
		Help: "Total number of quotes submitted for approval",
	})

	QuoteEscalationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quote_escalations_total",
		Help: "Total number of quotes routed to approval by a floor price breach",
	})

	ApprovalDecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quote_approval_decisions_total",
		Help: "Total number of approval decisions recorded",
	}, []string{"action"})

	QuotesConvertedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quotes_converted_total",
		Help: "Total number of approved quotes converted to orders",
	})

	ClaimLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "customer_claim_latency_seconds",
		Help:    "Latency of the transactional claim operation",
		Buckets: prometheus.DefBuckets,
	})

	ReclaimedCustomersTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "customers_reclaimed_total",
		Help: "Total number of inactive customers auto-returned to the pool",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
