// Package kv defines the key-value store that recordbook persists into,
// plus an in-memory implementation and a capacity-limiting wrapper.
//
// Concrete backends live in subpackages: filekv, sqlitekv, rediskv and s3kv.
package kv

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrNotFound is returned by Get when the key is absent.
	ErrNotFound = errors.New("kv: key not found")

	// ErrQuotaExceeded is returned by Set when the value does not fit.
	ErrQuotaExceeded = errors.New("kv: quota exceeded")

	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("kv: store closed")
)

// Store is a string-keyed blob store.
type Store interface {
	// Get returns the value for key or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set replaces the value for key.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// Memory is a Store backed by a map. It is used in tests and as a scratch
// backend. Setting FailWith makes every Set return that error.
type Memory struct {
	mu       sync.RWMutex
	data     map[string][]byte
	failWith error
	sets     int
	closed   bool
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

// FailWith makes subsequent Set calls fail with err. Pass nil to restore.
func (m *Memory) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWith = err
}

// Sets returns how many Set calls succeeded.
func (m *Memory) Sets() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sets
}

// Get implements Store.
func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}
	v, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

// Set implements Store.
func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if m.failWith != nil {
		return m.failWith
	}
	v := make([]byte, len(value))
	copy(v, value)
	m.data[key] = v
	m.sets++
	return nil
}

// Delete implements Store.
func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	delete(m.data, key)
	return nil
}

// Close implements Store.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

type quotaStore struct {
	Store
	max int64
}

// WithQuota wraps s so that values larger than maxBytes are rejected with
// ErrQuotaExceeded. A non-positive maxBytes disables the check.
func WithQuota(s Store, maxBytes int64) Store {
	if maxBytes <= 0 {
		return s
	}
	return &quotaStore{Store: s, max: maxBytes}
}

func (q *quotaStore) Set(ctx context.Context, key string, value []byte) error {
	if size := int64(len(key) + len(value)); size > q.max {
		return fmt.Errorf("%w: %d bytes over limit of %d", ErrQuotaExceeded, size-q.max, q.max)
	}
	return q.Store.Set(ctx, key, value)
}
