package usecase

import (
	"context"
	"encoding/json"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/reltrace/pkg/domain/interfaces"
)

// getOrCompute returns the cached value under key unless it is older than ttl (zero
// means no expiry) or isStale reports it outdated; otherwise it computes, stores and
// returns a fresh value. Cache read and write failures degrade to computing.
func getOrCompute[T any](
	ctx context.Context,
	store interfaces.CacheStore,
	key string,
	ttl time.Duration,
	isStale func(ctx context.Context, cached *T) (bool, error),
	compute func(ctx context.Context) (*T, error),
) (*T, error) {
	logger := ctxlog.From(ctx)

	if cached := loadCached[T](ctx, store, key, ttl); cached != nil {
		stale := false
		if isStale != nil {
			var err error
			stale, err = isStale(ctx, cached)
			if err != nil {
				logger.Warn("Failed to check cache entry, refreshing", "key", key, "error", err)
				stale = true
			}
		}
		if !stale {
			logger.Debug("Cache hit", "key", key)
			return cached, nil
		}
		logger.Debug("Cache entry is outdated", "key", key)
	}

	value, err := compute(ctx)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(value)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to encode cache entry", goerr.V("key", key))
	}
	if err := store.Store(ctx, key, data); err != nil {
		logger.Warn("Failed to store cache entry", "key", key, "error", err)
	}

	return value, nil
}

func loadCached[T any](ctx context.Context, store interfaces.CacheStore, key string, ttl time.Duration) *T {
	logger := ctxlog.From(ctx)

	data, storedAt, ok, err := store.Load(ctx, key)
	if err != nil {
		logger.Warn("Failed to load cache entry", "key", key, "error", err)
		return nil
	}
	if !ok {
		return nil
	}
	if ttl > 0 && time.Since(storedAt) > ttl {
		logger.Debug("Cache entry expired", "key", key, "stored_at", storedAt)
		return nil
	}

	var cached T
	if err := json.Unmarshal(data, &cached); err != nil {
		logger.Warn("Dropping undecodable cache entry", "key", key, "error", err)
		return nil
	}
	return &cached
}
