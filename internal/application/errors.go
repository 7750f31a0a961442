package application

import (
	"fmt"

	"github.com/bnema/gptmeter/internal/domain"
)

type DispatchErrorKind string

const (
	DispatchRateLimited DispatchErrorKind = "rate_limited"
	DispatchUpstream    DispatchErrorKind = "upstream_error"
	DispatchTimeout     DispatchErrorKind = "timeout"
)

// DispatchError is the typed failure of a single upstream attempt.
type DispatchError struct {
	Kind DispatchErrorKind
	Err  error
}

func (e *DispatchError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("dispatch: %s", e.Kind)
	}
	return fmt.Sprintf("dispatch: %s: %v", e.Kind, e.Err)
}

func (e *DispatchError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches the domain sentinel of the error kind, so callers can test with
// errors.Is(err, domain.ErrRateLimited) and friends.
func (e *DispatchError) Is(target error) bool {
	if e == nil {
		return false
	}
	return target == e.Kind.sentinel()
}

func (k DispatchErrorKind) sentinel() error {
	switch k {
	case DispatchRateLimited:
		return domain.ErrRateLimited
	case DispatchTimeout:
		return domain.ErrTimeout
	default:
		return domain.ErrUpstream
	}
}

func newDispatchError(kind DispatchErrorKind, err error) *DispatchError {
	return &DispatchError{Kind: kind, Err: err}
}
