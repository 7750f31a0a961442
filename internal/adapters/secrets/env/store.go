package env

import (
	"context"
	"fmt"
	"os"
	"strings"
	"unicode"

	"github.com/bnema/gptmeter/internal/ports"
)

const DefaultPrefix = "GPTMETER_SECRET_"

// Store resolves secrets from environment variables. Key "openai/api_key"
// maps to GPTMETER_SECRET_OPENAI_API_KEY.
type Store struct {
	prefix string
	lookup func(string) (string, bool)
}

var _ ports.SecretStore = (*Store)(nil)

func NewStore() *Store {
	return &Store{prefix: DefaultPrefix, lookup: os.LookupEnv}
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	name := s.VariableName(key)
	value, ok := s.lookup(name)
	if !ok || value == "" {
		return "", fmt.Errorf("env secret %s: %w", name, ports.ErrSecretNotFound)
	}

	return value, nil
}

func (s *Store) Put(context.Context, string, string) error {
	return fmt.Errorf("env secrets: %w", ports.ErrSecretReadOnly)
}

func (s *Store) Delete(context.Context, string) error {
	return fmt.Errorf("env secrets: %w", ports.ErrSecretReadOnly)
}

func (s *Store) VariableName(key string) string {
	mapped := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToUpper(r)
		}
		return '_'
	}, strings.TrimSpace(key))

	return s.prefix + mapped
}
