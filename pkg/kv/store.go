package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotFound is returned when a key has no value.
var ErrNotFound = errors.New("key not found")

// Backend is the raw byte storage behind a Store.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error) // ErrNotFound if missing
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// Keys lists the full keys that start with prefix.
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// Store reads and writes values of type T under a namespace.
type Store[T any] struct {
	backend   Backend
	namespace string
	ttl       time.Duration
}

// Option configures a Store.
type Option func(*options)

type options struct {
	ttl time.Duration
}

// WithTTL sets the expiration applied on every Put. Zero means no expiration.
func WithTTL(ttl time.Duration) Option {
	return func(o *options) {
		o.ttl = ttl
	}
}

// New creates a store whose keys are prefixed with namespace.
// A trailing ":" is added to the namespace if missing.
func New[T any](backend Backend, namespace string, opts ...Option) *Store[T] {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if namespace != "" && !strings.HasSuffix(namespace, ":") {
		namespace += ":"
	}
	return &Store[T]{backend: backend, namespace: namespace, ttl: o.ttl}
}

// Namespace returns the key prefix of the store.
func (s *Store[T]) Namespace() string {
	return s.namespace
}

func (s *Store[T]) key(k string) string {
	return s.namespace + k
}

// Get returns the value stored under k.
func (s *Store[T]) Get(ctx context.Context, k string) (T, error) {
	var zero T
	raw, err := s.backend.Get(ctx, s.key(k))
	if err != nil {
		return zero, err
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return zero, fmt.Errorf("kv: decode %s: %w", s.key(k), err)
	}
	return v, nil
}

// Put stores v under k.
func (s *Store[T]) Put(ctx context.Context, k string, v T) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("kv: encode %s: %w", s.key(k), err)
	}
	return s.backend.Set(ctx, s.key(k), raw, s.ttl)
}

// Delete removes k. Deleting a missing key is not an error.
func (s *Store[T]) Delete(ctx context.Context, k string) error {
	return s.backend.Delete(ctx, s.key(k))
}

// List returns the keys of the namespace, without the prefix.
func (s *Store[T]) List(ctx context.Context) ([]string, error) {
	full, err := s.backend.Keys(ctx, s.namespace)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(full))
	for _, k := range full {
		out = append(out, strings.TrimPrefix(k, s.namespace))
	}
	return out, nil
}
