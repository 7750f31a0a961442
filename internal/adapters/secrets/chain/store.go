package chain

import (
	"context"
	"errors"
	"fmt"

	envstore "github.com/bnema/gptmeter/internal/adapters/secrets/env"
	filestore "github.com/bnema/gptmeter/internal/adapters/secrets/file"
	passstore "github.com/bnema/gptmeter/internal/adapters/secrets/pass"
	"github.com/bnema/gptmeter/internal/ports"
)

// Backend is one named store in a chain.
type Backend struct {
	Name  string
	Store ports.SecretStore
}

// Store tries its backends in order. Reads return the first hit; writes go to
// the first backend that accepts them; deletes reach every writable backend so
// a stale copy cannot shadow a removal.
type Store struct {
	backends []Backend
}

var _ ports.SecretStore = (*Store)(nil)

var errNoBackends = errors.New("secret chain has no backends")

func NewStore(backends ...Backend) (*Store, error) {
	if len(backends) == 0 {
		return nil, errNoBackends
	}
	for _, backend := range backends {
		if backend.Store == nil {
			return nil, fmt.Errorf("secret backend %q is nil", backend.Name)
		}
	}

	return &Store{backends: backends}, nil
}

// NewDefault reads environment variables first, then pass, then files below
// fileRoot. Writes land in pass when available, otherwise in files.
func NewDefault(fileRoot string) (*Store, error) {
	return NewStore(
		Backend{Name: "env", Store: envstore.NewStore()},
		Backend{Name: "pass", Store: passstore.NewStore()},
		Backend{Name: "file", Store: filestore.NewStore(fileRoot)},
	)
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	var errs []error
	notFound := true

	for _, backend := range s.backends {
		value, err := backend.Store.Get(ctx, key)
		if err == nil {
			return value, nil
		}
		if shouldStop(err) {
			return "", err
		}
		if !errors.Is(err, ports.ErrSecretNotFound) {
			notFound = false
		}
		errs = append(errs, fmt.Errorf("%s backend get failed: %w", backend.Name, err))
	}

	if notFound {
		return "", fmt.Errorf("secret %q: %w", key, ports.ErrSecretNotFound)
	}
	return "", errors.Join(errs...)
}

func (s *Store) Put(ctx context.Context, key string, value string) error {
	var errs []error

	for _, backend := range s.backends {
		err := backend.Store.Put(ctx, key, value)
		if err == nil {
			return nil
		}
		if shouldStop(err) {
			return err
		}
		if errors.Is(err, ports.ErrSecretReadOnly) {
			continue
		}
		errs = append(errs, fmt.Errorf("%s backend put failed: %w", backend.Name, err))
	}

	if len(errs) == 0 {
		return fmt.Errorf("put secret %q: %w", key, ports.ErrSecretReadOnly)
	}
	return errors.Join(errs...)
}

func (s *Store) Delete(ctx context.Context, key string) error {
	var (
		errs    []error
		deleted bool
	)

	for _, backend := range s.backends {
		err := backend.Store.Delete(ctx, key)
		switch {
		case err == nil:
			deleted = true
		case shouldStop(err):
			return err
		case errors.Is(err, ports.ErrSecretReadOnly):
		default:
			errs = append(errs, fmt.Errorf("%s backend delete failed: %w", backend.Name, err))
		}
	}

	if deleted {
		return nil
	}
	if len(errs) == 0 {
		return fmt.Errorf("delete secret %q: %w", key, ports.ErrSecretReadOnly)
	}
	return errors.Join(errs...)
}

func shouldStop(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
