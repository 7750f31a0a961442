package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/bnema/gptmeter/internal/domain"
	"github.com/bnema/gptmeter/internal/logger"
	"github.com/bnema/gptmeter/internal/metrics"
	"github.com/bnema/gptmeter/internal/ports"
)

const DefaultDispatchTimeout = 60 * time.Second

// Dispatcher makes exactly one upstream attempt per call. Retries belong in a
// decorator around the Completer.
type Dispatcher struct {
	completer ports.Completer
	timeout   time.Duration
}

type DispatcherOption func(*Dispatcher)

func WithDispatchTimeout(timeout time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

func NewDispatcher(completer ports.Completer, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		completer: completer,
		timeout:   DefaultDispatchTimeout,
	}
	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Dispatch returns a *DispatchError on failure.
func (d *Dispatcher) Dispatch(ctx context.Context, conversation domain.Conversation) (domain.Completion, error) {
	log := logger.FromContext(ctx)

	callCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	start := time.Now()
	completion, err := d.completer.Complete(callCtx, conversation)
	elapsed := time.Since(start)

	if err == nil && completion.Units < 0 {
		err = fmt.Errorf("provider reported %d units: %w", completion.Units, domain.ErrInvalidUnits)
	}

	if err != nil {
		kind := classifyDispatchError(callCtx, err)
		observeDispatch(string(kind), elapsed)
		log.Warn("upstream completion failed",
			zap.String("kind", string(kind)),
			zap.Int("turns", len(conversation)),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
		return domain.Completion{}, newDispatchError(kind, err)
	}

	observeDispatch(metrics.OutcomeSuccess, elapsed)
	log.Info("upstream completion",
		zap.String("model", completion.Model),
		zap.Int64("units", completion.Units),
		zap.Int("turns", len(conversation)),
		zap.Duration("elapsed", elapsed),
	)

	return completion, nil
}

func classifyDispatchError(callCtx context.Context, err error) DispatchErrorKind {
	switch {
	case errors.Is(err, domain.ErrRateLimited):
		return DispatchRateLimited
	case errors.Is(err, domain.ErrTimeout),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(callCtx.Err(), context.DeadlineExceeded):
		return DispatchTimeout
	default:
		return DispatchUpstream
	}
}

func observeDispatch(outcome string, elapsed time.Duration) {
	metrics.UpstreamRequestsTotal.WithLabelValues(outcome).Inc()
	metrics.UpstreamRequestDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}
