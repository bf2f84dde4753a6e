package memory

import (
	"bytes"
	"context"
	"errors"
	"expvar"
	"sync"

	"github.com/DMarby/thumbs/internal/cache"
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCapacity is the number of entries kept when no capacity is configured
const DefaultCapacity = 100

var cacheEvictions = expvar.NewInt("counter_cache_evictions")

// Errors
var (
	ErrInvalidCapacity = errors.New("cache capacity must be positive")
)

// Provider implements a bounded in-memory cache that evicts the least recently used entry
type Provider struct {
	cache    *lru.Cache[string, []byte]
	capacity int
	mutex    sync.RWMutex
}

// New returns a new Provider instance holding at most capacity entries
func New(capacity int) (*Provider, error) {
	c, err := newLRU(capacity)
	if err != nil {
		return nil, err
	}

	return &Provider{
		cache:    c,
		capacity: capacity,
	}, nil
}

func newLRU(capacity int) (*lru.Cache[string, []byte], error) {
	if capacity <= 0 {
		return nil, ErrInvalidCapacity
	}

	return lru.NewWithEvict(capacity, func(key string, data []byte) {
		cacheEvictions.Add(1)
	})
}

// current returns the active lru, guarding against a concurrent Reinitialize
func (p *Provider) current() *lru.Cache[string, []byte] {
	p.mutex.RLock()
	defer p.mutex.RUnlock()
	return p.cache
}

// Get returns a copy of an object from the cache if it exists, and marks it as most recently used
func (p *Provider) Get(ctx context.Context, key string) (data []byte, err error) {
	data, exists := p.current().Get(key)
	if !exists {
		return nil, cache.ErrNotFound
	}

	return bytes.Clone(data), nil
}

// Set adds or replaces an object in the cache, and marks it as most recently used
// If the cache is full the least recently used object is evicted
func (p *Provider) Set(ctx context.Context, key string, data []byte) (err error) {
	p.current().Add(key, bytes.Clone(data))

	return nil
}

// Reinitialize discards every entry and replaces the cache with an empty one of the given capacity
// It is meant to run before the provider serves traffic: a Get or Set racing with it may still
// land in the discarded cache
func (p *Provider) Reinitialize(capacity int) error {
	c, err := newLRU(capacity)
	if err != nil {
		return err
	}

	p.mutex.Lock()
	p.cache = c
	p.capacity = capacity
	p.mutex.Unlock()

	return nil
}

// Contains reports whether key is cached, without updating its recency
func (p *Provider) Contains(key string) bool {
	return p.current().Contains(key)
}

// Len returns the number of cached objects
func (p *Provider) Len() int {
	return p.current().Len()
}

// Capacity returns the maximum number of cached objects
func (p *Provider) Capacity() int {
	p.mutex.RLock()
	defer p.mutex.RUnlock()
	return p.capacity
}

// Shutdown shuts down the cache
func (p *Provider) Shutdown() {}
