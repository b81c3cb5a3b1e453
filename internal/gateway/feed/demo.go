package feed

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"autotrader/internal/market"
)

// demoBasePrices seeds the walk for well known tickers. Anything else
// starts at 100.
var demoBasePrices = map[string]float64{
	"AAPL":  190,
	"MSFT":  420,
	"GOOGL": 170,
	"AMZN":  185,
	"NVDA":  125,
	"META":  500,
	"TSLA":  250,
	"SPY":   560,
	"QQQ":   480,
}

// Demo synthesizes a gentle per-symbol random walk so the engine can
// run full cycles without touching any external service. A fixed seed
// yields a reproducible price path.
type Demo struct {
	mu    sync.Mutex
	rng   *rand.Rand
	last  map[string]float64
	nowFn func() time.Time
}

func NewDemo(seed int64) *Demo {
	return &Demo{
		rng:   rand.New(rand.NewSource(seed)),
		last:  make(map[string]float64),
		nowFn: time.Now,
	}
}

func (d *Demo) LatestBar(ctx context.Context, symbol string) (market.Bar, error) {
	if err := ctx.Err(); err != nil {
		return market.Bar{}, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	prev, ok := d.last[symbol]
	if !ok {
		prev = demoBasePrices[symbol]
		if prev <= 0 {
			prev = 100
		}
	}

	// Step at most ±0.5% per bar, floored at one cent.
	step := (d.rng.Float64() - 0.5) * 0.01
	price := roundCents(prev * (1 + step))
	if price < 0.01 {
		price = 0.01
	}
	d.last[symbol] = price

	volume := math.Floor(1e5 + d.rng.Float64()*9e5)

	return market.Bar{
		Symbol:    symbol,
		Timestamp: d.nowFn().UTC(),
		Open:      roundCents(prev),
		High:      roundCents(math.Max(prev, price)),
		Low:       roundCents(math.Min(prev, price)),
		Close:     price,
		Volume:    volume,
	}, nil
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
