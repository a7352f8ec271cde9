package cache

import (
	"context"
	"strconv"
	"strings"
	"time"

	apperrors "folio/internal/errors"
)

// DefaultPriceTTL is how long a cached price stays fresh unless configured otherwise.
const DefaultPriceTTL = 600 * time.Second

// PriceCache answers "price for ticker now" against the Redis backend.
// Keys are namespaced as price:<TICKER>. A miss is a normal absent result;
// a backend failure surfaces as ErrCacheUnavailable since the cache is
// presumed always-available infrastructure. Concurrent writers for the same
// ticker race harmlessly: prices are idempotent facts, last write wins.
type PriceCache struct {
	redis *RedisCache
	ttl   time.Duration
}

// NewPriceCache creates a PriceCache with the given TTL.
// A non-positive TTL falls back to DefaultPriceTTL.
func NewPriceCache(redis *RedisCache, ttl time.Duration) *PriceCache {
	if ttl <= 0 {
		ttl = DefaultPriceTTL
	}
	return &PriceCache{redis: redis, ttl: ttl}
}

// TTL returns the configured expiry for cached prices.
func (p *PriceCache) TTL() time.Duration { return p.ttl }

func priceKey(ticker string) string {
	return "price:" + strings.ToUpper(ticker)
}

// Get returns the cached price for a ticker, or ok=false when no fresh
// value exists.
func (p *PriceCache) Get(ctx context.Context, ticker string) (float64, bool, error) {
	value, ok, err := p.redis.Get(ctx, priceKey(ticker))
	if err != nil {
		return 0, false, apperrors.Wrap(apperrors.ErrCacheUnavailable, err)
	}
	if !ok {
		return 0, false, nil
	}

	price, err := strconv.ParseFloat(value, 64)
	if err != nil {
		// A corrupt entry is treated as a miss; the next fetch overwrites it.
		return 0, false, nil
	}
	return price, true, nil
}

// Set stores a price for a ticker with the configured TTL.
func (p *PriceCache) Set(ctx context.Context, ticker string, price float64) error {
	value := strconv.FormatFloat(price, 'f', -1, 64)
	if err := p.redis.Set(ctx, priceKey(ticker), value, p.ttl); err != nil {
		return apperrors.Wrap(apperrors.ErrCacheUnavailable, err)
	}
	return nil
}
