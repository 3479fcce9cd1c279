// Package secrets provides credentials to sinks: from the environment, or from
// a local keychain file sealed with NaCl secretbox.
package secrets

import (
	"context"
	"errors"
	"os"
	"strings"
)

var ErrNotFound = errors.New("secret not found")

// Store resolves a secret by name.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
}

// EnvStore reads secrets from environment variables named Prefix+key.
type EnvStore struct {
	Prefix string
}

func (e EnvStore) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := os.LookupEnv(e.Prefix + key)
	if !ok {
		return nil, ErrNotFound
	}
	return []byte(v), nil
}

// Chain consults each store in order and returns the first hit.
type Chain []Store

func (c Chain) Get(ctx context.Context, key string) ([]byte, error) {
	for _, s := range c {
		if s == nil {
			continue
		}
		v, err := s.Get(ctx, key)
		if err == nil {
			return v, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}
	return nil, ErrNotFound
}

// Static is an in-memory store, mostly for tests.
type Static map[string]string

func (s Static) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := s[strings.TrimSpace(key)]
	if !ok {
		return nil, ErrNotFound
	}
	return []byte(v), nil
}
