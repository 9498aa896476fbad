package cache

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/prn-tf/alexander-azblob/internal/domain"
	"github.com/prn-tf/alexander-azblob/internal/metrics"
	"github.com/prn-tf/alexander-azblob/internal/storage"
)

// Config contains the settings of an AccessCache.
type Config struct {
	// Account and Container form the store key.
	Account   string
	Container string

	// Store defaults to a fresh MemoryStore.
	Store Store

	// Metrics is optional.
	Metrics *metrics.Metrics

	Logger zerolog.Logger
}

// AccessCache memoizes the access level of one container. It starts
// unknown; the first Get reads the level from the service and later calls
// answer from the store until Invalidate. Set writes through and records the
// new level without reading it back.
//
// The cache serializes its own transitions and is safe for concurrent use.
// Store failures fall back to the service and are never returned.
type AccessCache struct {
	mu      sync.Mutex
	remote  storage.AccessController
	store   Store
	key     string
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// NewAccessCache creates a cache in front of remote.
func NewAccessCache(remote storage.AccessController, cfg Config) *AccessCache {
	store := cfg.Store
	if store == nil {
		store = NewMemoryStore()
	}

	return &AccessCache{
		remote:  remote,
		store:   store,
		key:     AccessKey(cfg.Account, cfg.Container),
		metrics: cfg.Metrics,
		logger:  cfg.Logger.With().Str("component", "access-cache").Str("key", AccessKey(cfg.Account, cfg.Container)).Logger(),
	}
}

// Get returns the container access level, reading it from the service only
// when it is not known yet.
func (c *AccessCache) Get(ctx context.Context) (domain.AccessLevel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	level, err := c.store.Get(ctx, c.key)
	if err == nil {
		c.metrics.CacheHit()
		return level, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		c.logger.Warn().Err(err).Msg("access cache read failed")
	}
	c.metrics.CacheMiss()

	level, err = c.remote.GetContainerAccess(ctx)
	if err != nil {
		return "", err
	}

	c.remember(ctx, level)
	return level, nil
}

// Set changes the container access level. On success the cache holds level;
// on failure its state is unchanged.
func (c *AccessCache) Set(ctx context.Context, level domain.AccessLevel) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.remote.SetContainerAccess(ctx, level); err != nil {
		return err
	}

	c.remember(ctx, level)
	return nil
}

// Invalidate forgets the cached level so the next Get reads it again.
func (c *AccessCache) Invalidate(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.store.Delete(ctx, c.key); err != nil {
		c.logger.Warn().Err(err).Msg("access cache invalidate failed")
	}
}

// remember records level. Callers hold c.mu.
func (c *AccessCache) remember(ctx context.Context, level domain.AccessLevel) {
	if err := c.store.Set(ctx, c.key, level); err != nil {
		c.logger.Warn().Err(err).Msg("access cache write failed")
		return
	}
	c.logger.Debug().Str("level", string(level)).Msg("access level cached")
}
