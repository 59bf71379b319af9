package cache

import (
	"context"
	"time"

	"github.com/matzehuels/keyforge/pkg/observability"
)

// NullCache stores nothing. Runs with --no-cache or a disabled [cache]
// section use it, so triad counts and annealing results are always
// recomputed. Lookups still report misses to the cache hooks.
type NullCache struct{}

func NewNullCache() Cache {
	return NullCache{}
}

func (NullCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	observability.Cache().OnCacheMiss(ctx, keyType(key))
	return nil, false, nil
}

func (NullCache) Set(context.Context, string, []byte, time.Duration) error { return nil }

func (NullCache) Delete(context.Context, string) error { return nil }

func (NullCache) Close() error { return nil }
