package testutil

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"folio/internal/cache"
)

// SetupTestPriceCache starts a miniredis instance and returns a PriceCache
// backed by it. Both are cleaned up when the test finishes.
func SetupTestPriceCache(t *testing.T, ttl time.Duration) (*cache.PriceCache, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return cache.NewPriceCache(cache.NewRedisCacheFromClient(client), ttl), mr
}
