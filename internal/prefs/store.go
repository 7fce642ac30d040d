// Package prefs persists per-list display preferences. The only preference
// today is the page size, stored as a positive integer per list key.
package prefs

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// ErrInvalidValue is returned when a non-positive page size is written.
var ErrInvalidValue = errors.New("prefs: value must be a positive integer")

// Store is a small key-value store for integer preferences.
type Store interface {
	// Get returns the stored value and whether one exists.
	Get(ctx context.Context, key string) (int, bool, error)
	// Set stores a positive value under key.
	Set(ctx context.Context, key string, value int) error
}

// Key returns the persisted preference key for a list view.
func Key(entity string) string {
	return "table_prefs_" + strings.ToLower(strings.TrimSpace(entity)) + "_items"
}

// MemoryStore keeps preferences in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]int
	writes int
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]int)}
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, key string) (int, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok, nil
}

// Set implements Store.
func (s *MemoryStore) Set(_ context.Context, key string, value int) error {
	if value <= 0 {
		return ErrInvalidValue
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	s.writes++
	return nil
}

// Writes reports how many successful writes the store accepted.
func (s *MemoryStore) Writes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes
}

type scopedStore struct {
	inner Store
	scope string
}

// Scoped namespaces every key of store under scope. An empty scope returns store unchanged.
func Scoped(store Store, scope string) Store {
	if store == nil || scope == "" {
		return store
	}
	return scopedStore{inner: store, scope: scope}
}

func (s scopedStore) key(key string) string {
	return "desk:" + s.scope + ":" + key
}

func (s scopedStore) Get(ctx context.Context, key string) (int, bool, error) {
	return s.inner.Get(ctx, s.key(key))
}

func (s scopedStore) Set(ctx context.Context, key string, value int) error {
	return s.inner.Set(ctx, s.key(key), value)
}
