package history

import (
	"context"
	"time"

	"github.com/neuralmind-ai/nsx-chatbot/cache"
)

// Provider is the read side of Store used by the reasoning handlers.
type Provider interface {
	IndexInformation(ctx context.Context, index, field string) (string, error)
}

// CachedProvider memoizes IndexInformation lookups for a short TTL. Errors
// are not cached.
type CachedProvider struct {
	next  Provider
	cache *cache.LRU[string]
}

func NewCachedProvider(next Provider, size int, ttl time.Duration) *CachedProvider {
	return &CachedProvider{next: next, cache: cache.NewLRU[string](size, ttl)}
}

func (p *CachedProvider) IndexInformation(ctx context.Context, index, field string) (string, error) {
	key := index + "\x00" + field
	if v, ok := p.cache.Get(key); ok {
		return v, nil
	}
	v, err := p.next.IndexInformation(ctx, index, field)
	if err != nil {
		return "", err
	}
	p.cache.Set(key, v)
	return v, nil
}

// Invalidate drops every cached value.
func (p *CachedProvider) Invalidate() { p.cache.Purge() }
