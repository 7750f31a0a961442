package ports

import (
	"context"

	"github.com/bnema/gptmeter/internal/domain"
)

// Completer sends a conversation to the upstream provider. Implementations
// wrap domain.ErrRateLimited when the provider throttles the request.
type Completer interface {
	Complete(ctx context.Context, conversation domain.Conversation) (domain.Completion, error)
}
