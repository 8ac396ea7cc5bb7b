package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Gate-domain collectors. Labels are bounded: provider names come from
// configuration and outcomes from fixed enums.
var (
	// GateRequests counts requestAccess outcomes
	// (issued, existing, rate_limited, error).
	GateRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gate_requests_total",
			Help: "Gate access requests by outcome.",
		},
		[]string{"outcome"},
	)

	// GateVerifications counts verify outcomes (unlocked, still_locked, error).
	GateVerifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gate_verifications_total",
			Help: "Gate verifications by outcome.",
		},
		[]string{"outcome"},
	)

	// ProviderCalls counts calls to shortener providers.
	ProviderCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provider_calls_total",
			Help: "Shortener provider calls by provider, operation and result.",
		},
		[]string{"provider", "op", "result"},
	)

	// ProviderLatency observes provider call duration in seconds.
	ProviderLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "provider_call_duration_seconds",
			Help:    "Duration of shortener provider calls in seconds.",
			Buckets: []float64{.025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"provider", "op"},
	)

	// MintCache counts mint cache lookups by tier (l1, l2, db) and result.
	MintCache = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mint_cache_operations_total",
			Help: "Mint cache lookups by tier and result.",
		},
		[]string{"tier", "result"},
	)

	// UnlockDeliveries counts dispatcher outcomes
	// (delivered, already_delivered, failed, payload_missing).
	UnlockDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "unlock_deliveries_total",
			Help: "Unlock deliveries by outcome.",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(GateRequests, GateVerifications, ProviderCalls, ProviderLatency, MintCache, UnlockDeliveries)
}
