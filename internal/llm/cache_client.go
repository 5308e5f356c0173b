package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"membench/internal/logging"
)

const (
	defaultCacheMaxSize = 256
	defaultCacheTTL     = 10 * time.Minute
)

// CacheConfig configures the completion cache behaviour.
type CacheConfig struct {
	// MaxSize is the maximum number of entries in the LRU cache.
	MaxSize int
	// TTL is how long a cached response remains valid.
	TTL time.Duration
}

// DefaultCacheConfig returns sensible defaults for completion caching.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		MaxSize: defaultCacheMaxSize,
		TTL:     defaultCacheTTL,
	}
}

// cacheClient memoizes completions keyed by (model + request). It makes
// repeated trials of deterministic (temperature 0, tool-free) prompts cheap
// when re-running a benchmark sweep.
type cacheClient struct {
	underlying Client
	cache      *expirable.LRU[string, *CompletionResponse]
	logger     logging.Logger
}

// WrapWithCache wraps a client with an LRU+TTL response cache. Requests that
// advertise tools or use nonzero temperature bypass the cache: their
// responses either mutate the environment or are intentionally sampled.
func WrapWithCache(client Client, config CacheConfig) Client {
	if config.MaxSize <= 0 {
		config.MaxSize = defaultCacheMaxSize
	}
	if config.TTL <= 0 {
		config.TTL = defaultCacheTTL
	}
	return &cacheClient{
		underlying: client,
		cache:      expirable.NewLRU[string, *CompletionResponse](config.MaxSize, nil, config.TTL),
		logger:     logging.NewComponentLogger("llm-cache"),
	}
}

func (c *cacheClient) Model() string {
	return c.underlying.Model()
}

func (c *cacheClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if !cacheable(req) {
		return c.underlying.Complete(ctx, req)
	}

	key := c.cacheKey(req)
	if key == "" {
		return c.underlying.Complete(ctx, req)
	}
	if resp, ok := c.cache.Get(key); ok {
		c.logger.Debug("cache hit for %s", key[:12])
		cloned := *resp
		return &cloned, nil
	}

	resp, err := c.underlying.Complete(ctx, req)
	if err != nil {
		return nil, err
	}

	stored := *resp
	c.cache.Add(key, &stored)
	return resp, nil
}

func cacheable(req CompletionRequest) bool {
	return len(req.Tools) == 0 && req.Temperature == 0
}

func (c *cacheClient) cacheKey(req CompletionRequest) string {
	payload, err := json.Marshal(struct {
		Model string
		Req   CompletionRequest
	}{c.underlying.Model(), req})
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
