package feed

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2"

	"autotrader/internal/market"
	"autotrader/internal/scheduler"
)

// Binance serves the most recent closed spot kline as a bar.
type Binance struct {
	client   *binance.Client
	interval string
}

func NewBinance(apiKey, apiSecret, interval string) *Binance {
	if strings.TrimSpace(interval) == "" {
		interval = "1m"
	}
	return &Binance{
		client:   binance.NewClient(apiKey, apiSecret),
		interval: interval,
	}
}

func (b *Binance) LatestBar(ctx context.Context, symbol string) (market.Bar, error) {
	klines, err := b.client.NewKlinesService().
		Symbol(strings.ToUpper(symbol)).
		Interval(b.interval).
		Limit(2).
		Do(ctx)
	if err != nil {
		return market.Bar{}, fmt.Errorf("%w: binance klines %s: %v", market.ErrUnavailable, symbol, err)
	}

	bars := make([]market.Bar, 0, len(klines))
	for _, kl := range klines {
		if kl == nil {
			continue
		}
		bars = append(bars, klineBar(symbol, kl))
	}
	if dur, ok := scheduler.KlineInterval(b.interval); ok {
		bars = scheduler.DropUnclosedBar(bars, dur)
	}
	if len(bars) == 0 {
		return market.Bar{}, fmt.Errorf("%w: binance klines %s: no closed candle yet", market.ErrUnavailable, symbol)
	}
	return bars[len(bars)-1], nil
}

func klineBar(symbol string, kl *binance.Kline) market.Bar {
	return market.Bar{
		Symbol:    strings.ToUpper(symbol),
		Timestamp: time.UnixMilli(kl.OpenTime).UTC(),
		Open:      parseFloat(kl.Open),
		High:      parseFloat(kl.High),
		Low:       parseFloat(kl.Low),
		Close:     parseFloat(kl.Close),
		Volume:    parseFloat(kl.Volume),
	}
}

func parseFloat(v string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0
	}
	return f
}
