package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "gptmeter"

// Outcome labels for UpstreamRequestsTotal.
const (
	OutcomeSuccess     = "success"
	OutcomeRateLimited = "rate_limited"
	OutcomeUpstream    = "upstream_error"
	OutcomeTimeout     = "timeout"
)

// Account kind labels.
const (
	AccountMetered    = "metered"
	AccountPrivileged = "privileged"
)

var (
	UpstreamRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "Total number of completion requests sent upstream",
		},
		[]string{"outcome"},
	)

	UpstreamRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_request_duration_seconds",
			Help:      "Completion request duration in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60},
		},
		[]string{"outcome"},
	)

	UnitsConsumedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "units_consumed_total",
			Help:      "Completion units recorded in the ledger",
		},
		[]string{"account"},
	)

	CostCentsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cost_cents_total",
			Help:      "Cost of recorded completions in cents",
		},
	)

	QuotaDenialsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quota_denials_total",
			Help:      "Requests refused because the balance is exhausted",
		},
	)

	EventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Inbound transport events by handling result",
		},
		[]string{"kind"},
	)

	AccountsRegisteredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "accounts_registered_total",
			Help:      "Accounts created since process start",
		},
	)
)

var registerOnce sync.Once

// Register registers the domain metrics with the default registry. Safe to
// call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			UpstreamRequestsTotal,
			UpstreamRequestDuration,
			UnitsConsumedTotal,
			CostCentsTotal,
			QuotaDenialsTotal,
			EventsTotal,
			AccountsRegisteredTotal,
		)
	})
}
