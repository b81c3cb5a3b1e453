package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"

	"autotrader/internal/market"
)

const maxQuoteBody = 1 << 20

// quotePricePaths lists the JSON fields tried, in order, when reading
// a price out of a quote response.
var quotePricePaths = []string{"price", "last", "close", "c"}

var quoteVolumePaths = []string{"volume", "v"}

// QuoteAPI polls a JSON quote endpoint over HTTP. The configured URL
// carries a %s placeholder that is expanded with the symbol.
type QuoteAPI struct {
	urlTemplate string
	client      *http.Client
	nowFn       func() time.Time
}

func NewQuoteAPI(urlTemplate string, timeout time.Duration) *QuoteAPI {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &QuoteAPI{
		urlTemplate: urlTemplate,
		client:      &http.Client{Timeout: timeout},
		nowFn:       time.Now,
	}
}

func (q *QuoteAPI) LatestBar(ctx context.Context, symbol string) (market.Bar, error) {
	url := fmt.Sprintf(q.urlTemplate, symbol)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return market.Bar{}, fmt.Errorf("feed: build quote request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := q.client.Do(req)
	if err != nil {
		return market.Bar{}, fmt.Errorf("%w: quote %s: %v", market.ErrUnavailable, symbol, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return market.Bar{}, fmt.Errorf("%w: quote %s: status %d", market.ErrUnavailable, symbol, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxQuoteBody))
	if err != nil {
		return market.Bar{}, fmt.Errorf("%w: quote %s: read body: %v", market.ErrUnavailable, symbol, err)
	}

	price := firstNumber(body, quotePricePaths)
	if price <= 0 {
		return market.Bar{}, fmt.Errorf("%w: quote %s: no usable price in response", market.ErrUnavailable, symbol)
	}

	return market.Bar{
		Symbol:    symbol,
		Timestamp: q.nowFn().UTC(),
		Open:      price,
		High:      price,
		Low:       price,
		Close:     price,
		Volume:    firstNumber(body, quoteVolumePaths),
	}, nil
}

func firstNumber(body []byte, paths []string) float64 {
	for _, path := range paths {
		v := gjson.GetBytes(body, path)
		if !v.Exists() {
			continue
		}
		if f := v.Float(); f > 0 {
			return f
		}
	}
	return 0
}
