package venue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autotrader/internal/market"
)

func fixedDemo() *Demo {
	d := NewDemo()
	d.nowFn = func() time.Time {
		return time.Date(2026, 3, 2, 15, 4, 5, 0, time.UTC)
	}
	d.idFn = func() string { return "abcd1234" }
	return d
}

func TestDemoFillsAtObservedPrice(t *testing.T) {
	d := fixedDemo()

	fill, err := d.SubmitOrder(context.Background(), market.Order{
		Symbol:     "AAPL",
		Side:       market.SideBuy,
		Quantity:   25,
		LimitPrice: 190.55,
	})
	require.NoError(t, err)

	assert.Equal(t, "DEMO_20260302_150405_abcd1234", fill.OrderID)
	assert.Equal(t, "AAPL", fill.Symbol)
	assert.Equal(t, market.SideBuy, fill.Side)
	assert.Equal(t, 25.0, fill.Quantity)
	assert.Equal(t, 190.55, fill.Price)
	assert.Equal(t, time.Date(2026, 3, 2, 15, 4, 5, 0, time.UTC), fill.FilledAt)
}

func TestDemoSellFills(t *testing.T) {
	d := fixedDemo()

	fill, err := d.SubmitOrder(context.Background(), market.Order{
		Symbol:     "NVDA",
		Side:       market.SideSell,
		Quantity:   10,
		LimitPrice: 120.10,
	})
	require.NoError(t, err)
	assert.Equal(t, market.SideSell, fill.Side)
	assert.Equal(t, 120.10, fill.Price)
}

func TestDemoRejections(t *testing.T) {
	d := fixedDemo()

	cases := []struct {
		name  string
		order market.Order
	}{
		{name: "missing symbol", order: market.Order{Side: market.SideBuy, Quantity: 1, LimitPrice: 10}},
		{name: "unknown side", order: market.Order{Symbol: "AAPL", Side: "short", Quantity: 1, LimitPrice: 10}},
		{name: "zero quantity", order: market.Order{Symbol: "AAPL", Side: market.SideBuy, LimitPrice: 10}},
		{name: "negative quantity", order: market.Order{Symbol: "AAPL", Side: market.SideBuy, Quantity: -5, LimitPrice: 10}},
		{name: "no reference price", order: market.Order{Symbol: "AAPL", Side: market.SideBuy, Quantity: 1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := d.SubmitOrder(context.Background(), tc.order)
			assert.ErrorIs(t, err, market.ErrRejected)
		})
	}
}

func TestDemoContextCancelled(t *testing.T) {
	d := fixedDemo()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.SubmitOrder(ctx, market.Order{
		Symbol: "AAPL", Side: market.SideBuy, Quantity: 1, LimitPrice: 10,
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDemoImplementsVenue(t *testing.T) {
	var _ market.Venue = (*Demo)(nil)
}
