package application

import (
	"context"
	"fmt"
	"sync"

	"github.com/bnema/gptmeter/internal/domain"
	"github.com/bnema/gptmeter/internal/metrics"
	"github.com/bnema/gptmeter/internal/ports"
)

// DefaultCentsPerUnit prices one unit at $0.002 per thousand.
const DefaultCentsPerUnit = 0.0002

// UsageAccountant turns a completion into ledger usage and keeps tallies for
// the lifetime of the process.
type UsageAccountant struct {
	registry     *Registry
	clock        ports.Clock
	centsPerUnit float64

	mu              sync.Mutex
	sessionRequests int64
	sessionUnits    int64
}

func NewUsageAccountant(registry *Registry, clock ports.Clock, centsPerUnit float64) *UsageAccountant {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	if centsPerUnit <= 0 {
		centsPerUnit = DefaultCentsPerUnit
	}

	return &UsageAccountant{
		registry:     registry,
		clock:        clock,
		centsPerUnit: centsPerUnit,
	}
}

func (a *UsageAccountant) Cost(units int64) float64 {
	return float64(units) * a.centsPerUnit
}

func (a *UsageAccountant) Account(ctx context.Context, id domain.Identity, completion domain.Completion) (domain.UsageReport, error) {
	units := completion.Units

	account, aggregate, err := a.registry.RecordUsage(ctx, id, units, a.clock.Now())
	if err != nil {
		return domain.UsageReport{}, fmt.Errorf("account usage: %w", err)
	}

	a.mu.Lock()
	a.sessionRequests++
	a.sessionUnits += units
	sessionRequests, sessionUnits := a.sessionRequests, a.sessionUnits
	a.mu.Unlock()

	cost := a.Cost(units)
	kind := metrics.AccountMetered
	if a.registry.IsPrivileged(id) {
		kind = metrics.AccountPrivileged
	}
	metrics.UnitsConsumedTotal.WithLabelValues(kind).Add(float64(units))
	metrics.CostCentsTotal.Add(cost)

	return domain.UsageReport{
		Units:           units,
		Cost:            cost,
		Account:         account,
		Aggregate:       aggregate,
		SessionRequests: sessionRequests,
		SessionUnits:    sessionUnits,
		SessionCost:     a.Cost(sessionUnits),
	}, nil
}

// Session returns the request and unit tallies since process start.
func (a *UsageAccountant) Session() (requests, units int64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.sessionRequests, a.sessionUnits
}
