package provider

import (
	"context"
	"time"

	"github.com/seenimoa/finsheet/internal/infra"
)

// BaseProvider provides common functionality for provider implementations.
// Embed this in concrete providers to get credential checks, caching and
// rate limiting.
type BaseProvider struct {
	info        ProviderInfo
	credentials map[string]string
	cache       *infra.Cache[any]
	limiter     *infra.RateLimiter
}

// NewBaseProvider creates a base provider with a 5 minute cache and a
// limit of 10 calls per second.
func NewBaseProvider(info ProviderInfo) BaseProvider {
	return NewBaseProviderWithOpts(info, 5*time.Minute, 10, time.Second)
}

// NewBaseProviderWithOpts creates a base provider with custom cache TTL and
// rate limit.
func NewBaseProviderWithOpts(info ProviderInfo, cacheTTL time.Duration, rateLimit int, rateWindow time.Duration) BaseProvider {
	return BaseProvider{
		info:        info,
		credentials: make(map[string]string),
		cache:       infra.NewCache[any](cacheTTL),
		limiter:     infra.NewRateLimiter(rateLimit, rateWindow),
	}
}

func (bp *BaseProvider) Info() ProviderInfo { return bp.info }

// SetRateLimit replaces the limiter. A non-positive limit disables pacing.
func (bp *BaseProvider) SetRateLimit(limit int, window time.Duration) {
	bp.limiter = infra.NewRateLimiter(limit, window)
}

func (bp *BaseProvider) Init(credentials map[string]string) error {
	for _, cred := range bp.info.Credentials {
		if !cred.Required {
			continue
		}
		if val, ok := credentials[cred.Name]; !ok || val == "" {
			return &ErrInvalidCredentials{
				Provider: bp.info.Name,
				Detail:   "missing required credential: " + cred.Name,
			}
		}
	}
	bp.credentials = make(map[string]string, len(credentials))
	for k, v := range credentials {
		bp.credentials[k] = v
	}
	return nil
}

func (bp *BaseProvider) Ping(ctx context.Context) error {
	return nil // Override in concrete providers.
}

// Credential returns a stored credential value.
func (bp *BaseProvider) Credential(name string) string {
	return bp.credentials[name]
}

// CacheGet retrieves a value from the provider's cache.
func (bp *BaseProvider) CacheGet(key string) (any, bool) {
	return bp.cache.Get(key)
}

// CacheSetTTL stores a value with a custom TTL.
func (bp *BaseProvider) CacheSetTTL(key string, value any, ttl time.Duration) {
	bp.cache.SetWithTTL(key, value, ttl)
}

// CacheInvalidate drops a cached value.
func (bp *BaseProvider) CacheInvalidate(key string) {
	bp.cache.Invalidate(key)
}

// RateLimit waits until a request slot is available.
func (bp *BaseProvider) RateLimit(ctx context.Context) error {
	return bp.limiter.Wait(ctx)
}
