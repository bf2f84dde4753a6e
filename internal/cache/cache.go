package cache

import (
	"context"
	"errors"
	"expvar"

	"github.com/DMarby/thumbs/internal/tracing"
	"golang.org/x/sync/singleflight"
)

// Provider is an interface for getting and setting cached objects
type Provider interface {
	Get(ctx context.Context, key string) (data []byte, err error)
	Set(ctx context.Context, key string, data []byte) (err error)
	Shutdown()
}

// LoaderFunc is a function for loading data into a cache
type LoaderFunc func(ctx context.Context, key string) (data []byte, err error)

var (
	cacheHits   = expvar.NewInt("counter_cache_hits")
	cacheMisses = expvar.NewInt("counter_cache_misses")
	cacheShared = expvar.NewInt("counter_cache_shared_loads")
)

// Auto is a cache that loads objects that don't exist, running at most one load per key at a time
type Auto struct {
	Tracer      *tracing.Tracer
	Provider    Provider
	lookupGroup singleflight.Group
}

// Get returns an object from the cache if it exists, otherwise it loads it into the cache using loader and returns it
// Failed loads are never stored, so the next Get for the key retries the loader
func (a *Auto) Get(ctx context.Context, key string, loader LoaderFunc) (data []byte, err error) {
	ctx, span := a.Tracer.Start(ctx, "cache.Auto.Get")
	defer span.End()
	span.SetAttributes(tracing.KeyAttribute(key))

	// Attempt to get the data from the cache
	data, err = a.Provider.Get(ctx, key)
	// Exit early if the error is nil as we got data from the cache
	// Or if there's an error indicating that something went wrong
	if err != ErrNotFound {
		if err == nil {
			cacheHits.Add(1)
		}
		return
	}
	cacheMisses.Add(1)

	// Use singleflight to avoid concurrent loads of the same key
	// The load is detached from the caller's cancellation so the result still lands in the cache if the caller goes away
	loadCtx := context.WithoutCancel(ctx)
	result := a.lookupGroup.DoChan(key, func() (interface{}, error) {
		// A load for the key may have completed between the lookup above and joining the group
		if data, err := a.Provider.Get(loadCtx, key); err == nil {
			return data, nil
		}

		data, err := loader(loadCtx, key)
		if err != nil {
			return nil, err
		}

		// Store the data in the cache
		err = a.Provider.Set(loadCtx, key, data)
		if err != nil {
			return nil, err
		}

		return data, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-result:
		if res.Shared {
			cacheShared.Add(1)
		}

		if res.Err != nil {
			return nil, res.Err
		}

		data, _ = res.Val.([]byte)
		return data, nil
	}
}

// Errors
var (
	ErrNotFound = errors.New("not found in cache")
)
