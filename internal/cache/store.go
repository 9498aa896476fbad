// Package cache memoizes container access levels so that repeated
// visibility lookups do not hit the service.
package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/prn-tf/alexander-azblob/internal/config"
	"github.com/prn-tf/alexander-azblob/internal/domain"
)

// ErrCacheMiss indicates the key was not found in the store.
var ErrCacheMiss = errors.New("cache miss")

// KeyPrefix namespaces every key written by this package.
const KeyPrefix = "cache:container-access:"

// AccessKey returns the store key of one container.
func AccessKey(account, container string) string {
	return KeyPrefix + account + "/" + container
}

// Store holds known access levels keyed by AccessKey. Entries never expire.
type Store interface {
	// Get returns the stored level or ErrCacheMiss.
	Get(ctx context.Context, key string) (domain.AccessLevel, error)

	// Set stores level under key.
	Set(ctx context.Context, key string, level domain.AccessLevel) error

	// Delete removes key. Missing keys are not an error.
	Delete(ctx context.Context, key string) error
}

// NewStore builds the store selected by cfg.Cache.Backend.
func NewStore(cfg *config.Config) (Store, error) {
	switch cfg.Cache.Backend {
	case "", "memory":
		return NewMemoryStore(), nil
	case "redis":
		return NewRedisStore(cfg.Redis), nil
	default:
		return nil, fmt.Errorf("%w: unknown cache backend %q", domain.ErrInvalidConfiguration, cfg.Cache.Backend)
	}
}

// =============================================================================
// Memory Store
// =============================================================================

// MemoryStore implements Store in process memory. It is not shared between
// processes.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]domain.AccessLevel
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items: make(map[string]domain.AccessLevel),
	}
}

// Get retrieves a level by key.
func (s *MemoryStore) Get(_ context.Context, key string) (domain.AccessLevel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	level, ok := s.items[key]
	if !ok {
		return "", ErrCacheMiss
	}
	return level, nil
}

// Set stores a level.
func (s *MemoryStore) Set(_ context.Context, key string, level domain.AccessLevel) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items[key] = level
	return nil
}

// Delete removes a level by key.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.items, key)
	return nil
}

// Len returns the number of stored entries.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Ensure MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)
