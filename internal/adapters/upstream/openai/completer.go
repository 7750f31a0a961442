package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/bnema/gptmeter/internal/domain"
	"github.com/bnema/gptmeter/internal/ports"
)

const (
	DefaultModel     = openai.GPT3Dot5Turbo
	DefaultMaxTokens = 3000
)

// Completer sends conversations to an OpenAI-compatible chat completion API.
type Completer struct {
	client    *openai.Client
	model     string
	maxTokens int
}

var _ ports.Completer = (*Completer)(nil)

type Config struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
	// HTTPClient overrides the default client; the per-call timeout comes from
	// the context.
	HTTPClient *http.Client
}

func NewCompleter(cfg Config) *Completer {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if cfg.HTTPClient != nil {
		clientCfg.HTTPClient = cfg.HTTPClient
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	return &Completer{
		client:    openai.NewClientWithConfig(clientCfg),
		model:     model,
		maxTokens: maxTokens,
	}
}

func (c *Completer) Complete(ctx context.Context, conversation domain.Conversation) (domain.Completion, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(conversation))
	for _, turn := range conversation {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    string(turn.Role),
			Content: turn.Content,
		})
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Messages:  messages,
	})
	if err != nil {
		return domain.Completion{}, parseAPIError(err)
	}

	if len(resp.Choices) == 0 {
		return domain.Completion{}, fmt.Errorf("chat completion returned no choices: %w", domain.ErrUpstream)
	}

	model := resp.Model
	if model == "" {
		model = c.model
	}

	return domain.Completion{
		Text:  resp.Choices[0].Message.Content,
		Units: int64(resp.Usage.TotalTokens),
		Model: model,
	}, nil
}

// HealthCheck verifies the key and endpoint via ListModels, which costs no
// units.
func (c *Completer) HealthCheck(ctx context.Context) error {
	if _, err := c.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", parseAPIError(err))
	}
	return nil
}

// parseAPIError maps throttling to domain.ErrRateLimited and keeps context
// errors intact so the caller can tell a timeout apart; everything else wraps
// domain.ErrUpstream.
func parseAPIError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("chat completion request: %w", err)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("chat completion API error %d: %s: %w",
			apiErr.HTTPStatusCode, apiErr.Message, classifyStatus(apiErr.HTTPStatusCode))
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		detail := extractMessage(reqErr.Body)
		if detail == "" {
			detail = strings.TrimSpace(string(reqErr.Body))
		}
		return fmt.Errorf("chat completion API error %d: %s: %w",
			reqErr.HTTPStatusCode, detail, classifyStatus(reqErr.HTTPStatusCode))
	}

	return fmt.Errorf("chat completion request failed: %v: %w", err, domain.ErrUpstream)
}

func classifyStatus(status int) error {
	if status == http.StatusTooManyRequests {
		return domain.ErrRateLimited
	}
	return domain.ErrUpstream
}

// extractMessage reads the error message of an OpenAI-style or
// detail-style error body.
func extractMessage(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
		Error  struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &parsed) != nil {
		return ""
	}
	if parsed.Error.Message != "" {
		return parsed.Error.Message
	}
	return parsed.Detail
}
