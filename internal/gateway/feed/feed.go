package feed

import (
	"fmt"
	"strings"
	"time"

	"autotrader/internal/config"
	"autotrader/internal/market"
)

const (
	breakerThreshold = 5
	breakerCooldown  = 30 * time.Second
)

// New builds the configured feed provider. Network-backed providers get
// a circuit breaker; a short TTL cache goes on top when configured.
func New(cfg config.FeedConfig) (market.Feed, error) {
	var f market.Feed
	switch cfg.Provider {
	case "", "demo":
		f = NewDemo(time.Now().UnixNano())
	case "http":
		if strings.TrimSpace(cfg.QuoteURL) == "" {
			return nil, fmt.Errorf("feed: quote_url required for the http provider")
		}
		f = NewBreaker(NewQuoteAPI(cfg.QuoteURL, cfg.FeedTimeout()), "http", breakerThreshold, breakerCooldown)
	case "binance":
		f = NewBreaker(NewBinance(cfg.Binance.APIKey, cfg.Binance.APISecret, cfg.Binance.Interval),
			"binance", breakerThreshold, breakerCooldown)
	default:
		return nil, fmt.Errorf("feed: unknown provider %q", cfg.Provider)
	}
	if cfg.CacheTTL > 0 {
		f = NewCached(f, time.Duration(cfg.CacheTTL)*time.Second)
	}
	return f, nil
}
