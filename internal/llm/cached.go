package llm

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/ppiankov/callreward/internal/cache"
	"github.com/ppiankov/callreward/internal/log"
)

// CachedProvider memoizes completions of another provider. Requests with
// identical provider, model, parameters and messages share one entry.
type CachedProvider struct {
	inner  Provider
	cache  cache.Cache
	config Config
	ttl    time.Duration
	logger log.Logger
}

// NewCachedProvider wraps inner with c; a nil cache returns inner unchanged
func NewCachedProvider(inner Provider, c cache.Cache, config Config, ttl time.Duration, logger log.Logger) Provider {
	if inner == nil || c == nil {
		return inner
	}
	if logger == nil {
		logger = log.Default
	}
	return &CachedProvider{inner: inner, cache: c, config: config, ttl: ttl, logger: logger}
}

// Name returns the wrapped provider name
func (p *CachedProvider) Name() string {
	return p.inner.Name()
}

// IsAvailable delegates to the wrapped provider
func (p *CachedProvider) IsAvailable(ctx context.Context) bool {
	return p.inner.IsAvailable(ctx)
}

// Complete returns a cached completion or asks the wrapped provider
func (p *CachedProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	key := p.key(req)

	if data, ok := p.cache.Get(key); ok {
		var resp CompletionResponse
		if err := json.Unmarshal(data, &resp); err == nil {
			resp.Cached = true
			return &resp, nil
		}
		p.logger.Warnf("discarding unreadable cache entry %s", key)
		_ = p.cache.Delete(key)
	}

	resp, err := p.inner.Complete(ctx, req)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(resp)
	if err == nil {
		err = p.cache.Set(key, data, p.ttl)
	}
	if err != nil {
		p.logger.Warnf("cache completion: %v", err)
	}

	return resp, nil
}

func (p *CachedProvider) key(req CompletionRequest) string {
	s := p.config.resolve(req, "")
	parts := []string{
		p.inner.Name(),
		s.model,
		s.system,
		strconv.Itoa(s.maxTokens),
		strconv.FormatFloat(s.temperature, 'g', -1, 64),
	}
	for _, m := range req.Messages {
		parts = append(parts, m.Role, m.Content)
	}
	return cache.CacheKey(parts...)
}
