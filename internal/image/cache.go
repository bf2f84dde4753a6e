package image

import (
	"github.com/DMarby/thumbs/internal/cache"
	"github.com/DMarby/thumbs/internal/tracing"
)

// Cache is a thumbnail cache
type Cache = cache.Auto

// NewCache instantiates a new thumbnail cache on top of the given provider
func NewCache(tracer *tracing.Tracer, cacheProvider cache.Provider) *Cache {
	return &Cache{
		Tracer:   tracer,
		Provider: cacheProvider,
	}
}
