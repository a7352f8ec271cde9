// Package market provides adapters over external quote providers.
// Adapters return price-or-absent: business-level absence (unknown ticker,
// provider outage, malformed body) is never an error to callers.
package market

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"folio/internal/logger"
)

// DefaultTimeout bounds each quote request independently of the caller.
const DefaultTimeout = 10 * time.Second

// coinGeckoIDs maps internal ticker symbols to CoinGecko coin ids.
// Unmapped tickers are absent without a network call.
var coinGeckoIDs = map[string]string{
	"BTC":   "bitcoin",
	"ETH":   "ethereum",
	"SOL":   "solana",
	"USDT":  "tether",
	"USDC":  "usd-coin",
	"DOGE":  "dogecoin",
	"XRP":   "ripple",
	"ADA":   "cardano",
	"DOT":   "polkadot",
	"AVAX":  "avalanche-2",
	"MATIC": "matic-network",
	"LINK":  "chainlink",
	"LTC":   "litecoin",
	"BCH":   "bitcoin-cash",
	"ATOM":  "cosmos",
	"UNI":   "uniswap",
	"XLM":   "stellar",
	"ETC":   "ethereum-classic",
}

// CoinGeckoClient fetches spot prices in USD from the CoinGecko simple price API.
type CoinGeckoClient struct {
	httpClient *http.Client
	baseURL    string // overridable for tests
}

// NewCoinGeckoClient creates a new CoinGecko quote client. An empty baseURL
// uses the public API; a non-positive timeout uses DefaultTimeout.
func NewCoinGeckoClient(baseURL string, timeout time.Duration) *CoinGeckoClient {
	if baseURL == "" {
		baseURL = "https://api.coingecko.com/api/v3"
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &CoinGeckoClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// Name returns the provider's display name.
func (c *CoinGeckoClient) Name() string { return "CoinGecko" }

// FetchPrice fetches the current USD price for a ticker (e.g. "BTC").
// Returns ok=false when the ticker is unmapped, the provider errors, or the
// response body does not contain a price.
func (c *CoinGeckoClient) FetchPrice(ctx context.Context, ticker string) (float64, bool) {
	coinID, ok := coinGeckoIDs[strings.ToUpper(ticker)]
	if !ok {
		return 0, false
	}

	reqURL := c.baseURL + "/simple/price?" + url.Values{
		"ids":           {coinID},
		"vs_currencies": {"usd"},
	}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		logger.Get().Errorw("failed to build quote request", "ticker", ticker, "error", err)
		return 0, false
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Get().Errorw("quote request failed", "ticker", ticker, "provider", c.Name(), "error", err)
		return 0, false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		logger.Get().Errorw("quote provider returned non-2xx", "ticker", ticker, "provider", c.Name(), "status", resp.StatusCode)
		return 0, false
	}

	// Response shape: {"bitcoin": {"usd": 50000}}
	var body map[string]map[string]float64
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		logger.Get().Errorw("malformed quote response", "ticker", ticker, "provider", c.Name(), "error", err)
		return 0, false
	}

	price, ok := body[coinID]["usd"]
	if !ok {
		return 0, false
	}
	return price, true
}
