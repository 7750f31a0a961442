package ports

import (
	"context"
	"errors"
)

var (
	ErrSecretNotFound = errors.New("secret not found")
	ErrSecretReadOnly = errors.New("secret store is read-only")
)

// SecretStore holds credentials referenced from configuration by key.
type SecretStore interface {
	Get(ctx context.Context, key string) (string, error)
	Put(ctx context.Context, key string, value string) error
	Delete(ctx context.Context, key string) error
}
