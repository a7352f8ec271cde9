package services

import (
	"context"

	"folio/internal/cache"
	"folio/internal/logger"
)

// priceService composes the price cache and the external quote source.
type priceService struct {
	cache  *cache.PriceCache
	source QuoteSource
}

// NewPriceService creates a new PriceServicer.
func NewPriceService(priceCache *cache.PriceCache, source QuoteSource) PriceServicer {
	return &priceService{cache: priceCache, source: source}
}

// GetPrice returns the current price for a ticker. Unless forceRefresh is
// set, a fresh cached value is returned without an external call. On a miss
// (or forced refresh) the quote source is consulted; a fetched price is
// written back to the cache with the configured TTL. An absent result is
// never cached, so a flaky provider's false negatives are re-attempted on
// every call instead of being frozen in for a TTL.
func (s *priceService) GetPrice(ctx context.Context, ticker string, forceRefresh bool) (float64, bool, error) {
	if !forceRefresh {
		price, ok, err := s.cache.Get(ctx, ticker)
		if err != nil {
			return 0, false, err
		}
		if ok {
			return price, true, nil
		}
	}

	price, ok := s.source.FetchPrice(ctx, ticker)
	if !ok {
		return 0, false, nil
	}

	if err := s.cache.Set(ctx, ticker, price); err != nil {
		return 0, false, err
	}

	logger.Get().Debugw("price fetched", "ticker", ticker, "price", price, "source", s.source.Name())
	return price, true, nil
}
