package application

import (
	"github.com/bnema/gptmeter/internal/domain"
	"github.com/bnema/gptmeter/internal/metrics"
)

const DenyReasonExhausted = "exhausted"

type Decision struct {
	Allowed bool
	Reason  string
}

// QuotaEnforcer is the pre-flight gate. The actual cost is only known after
// the call, so the last admitted request may overdraw the balance.
type QuotaEnforcer struct {
	registry *Registry
}

func NewQuotaEnforcer(registry *Registry) *QuotaEnforcer {
	return &QuotaEnforcer{registry: registry}
}

func (q *QuotaEnforcer) Authorize(id domain.Identity) (Decision, error) {
	account, err := q.registry.Get(id)
	if err != nil {
		return Decision{}, err
	}

	if q.registry.IsPrivileged(id) || account.Balance > 0 {
		return Decision{Allowed: true}, nil
	}

	metrics.QuotaDenialsTotal.Inc()
	return Decision{Reason: DenyReasonExhausted}, nil
}
