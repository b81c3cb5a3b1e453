package indicator

import (
	"testing"
	"time"

	"autotrader/internal/market"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bar(symbol string, close float64) market.Bar {
	return market.Bar{Symbol: symbol, Timestamp: time.Now(), Close: close}
}

func feed(c *Calculator, symbol string, closes ...float64) (Snapshot, bool) {
	var (
		snap Snapshot
		ok   bool
	)
	for _, close := range closes {
		snap, ok = c.Update(bar(symbol, close))
	}
	return snap, ok
}

func TestUpdate_InsufficientHistory(t *testing.T) {
	c := NewCalculator(3, 5, 14)

	// RSI(14) needs 15 closes, more than the slow SMA needs.
	for i := 1; i < 15; i++ {
		_, ok := c.Update(bar("AAPL", float64(i)))
		assert.False(t, ok, "no snapshot before 15 closes, got one at %d", i)
	}
	_, ok := c.Update(bar("AAPL", 15))
	assert.True(t, ok)
}

func TestUpdate_SMAValues(t *testing.T) {
	c := NewCalculator(3, 5, 14)

	closes := make([]float64, 15)
	for i := range closes {
		closes[i] = float64(i + 1)
	}
	snap, ok := feed(c, "AAPL", closes...)
	require.True(t, ok)

	assert.Equal(t, "AAPL", snap.Symbol)
	assert.Equal(t, 15.0, snap.Close)
	assert.InDelta(t, 14.0, snap.SMAFast, 1e-9) // mean of 13,14,15
	assert.InDelta(t, 13.0, snap.SMASlow, 1e-9) // mean of 11..15
}

func TestUpdate_WindowEviction(t *testing.T) {
	c := NewCalculator(3, 5, 14)

	// Capacity is max(5,14)+1 = 15. Feed far more and confirm only the
	// most recent closes drive the SMAs.
	for i := 1; i <= 100; i++ {
		c.Update(bar("AAPL", float64(i)))
	}
	assert.Equal(t, 15, c.History("AAPL"))

	snap, ok := c.Update(bar("AAPL", 101))
	require.True(t, ok)
	assert.InDelta(t, 100.0, snap.SMAFast, 1e-9) // mean of 99,100,101
	assert.InDelta(t, 99.0, snap.SMASlow, 1e-9)  // mean of 97..101
}

func TestRSI_Bounds(t *testing.T) {
	t.Run("all gains reads 100", func(t *testing.T) {
		c := NewCalculator(3, 5, 14)
		snap, ok := feed(c, "AAPL", ramp(1, 16)...)
		require.True(t, ok)
		assert.Equal(t, 100.0, snap.RSI)
	})

	t.Run("all losses reads 0", func(t *testing.T) {
		c := NewCalculator(3, 5, 14)
		snap, ok := feed(c, "AAPL", ramp(16, 1)...)
		require.True(t, ok)
		assert.Equal(t, 0.0, snap.RSI)
	})

	t.Run("flat window reads 100", func(t *testing.T) {
		c := NewCalculator(3, 5, 14)
		closes := make([]float64, 15)
		for i := range closes {
			closes[i] = 50
		}
		snap, ok := feed(c, "AAPL", closes...)
		require.True(t, ok)
		assert.Equal(t, 100.0, snap.RSI)
	})

	t.Run("mixed window stays in range", func(t *testing.T) {
		c := NewCalculator(3, 5, 14)
		closes := []float64{10, 11, 9, 12, 10, 13, 11, 14, 12, 15, 13, 16, 14, 17, 15, 18}
		snap, ok := feed(c, "AAPL", closes...)
		require.True(t, ok)
		assert.Greater(t, snap.RSI, 0.0)
		assert.Less(t, snap.RSI, 100.0)
	})
}

func TestRSI_WilderSmoothing(t *testing.T) {
	// period 2, closes 10,11,10,12: seed averages gain=0.5 loss=0.5,
	// then one smoothing step gives gain=1.25 loss=0.25, RSI 83.33.
	c := NewCalculator(2, 3, 2)
	snap, ok := feed(c, "AAPL", 10, 11, 10, 12)
	require.True(t, ok)
	assert.InDelta(t, 83.3333, snap.RSI, 1e-3)
}

func TestUpdate_SymbolsAreIndependent(t *testing.T) {
	c := NewCalculator(3, 5, 14)

	feed(c, "AAPL", ramp(1, 16)...)
	snapUp, okUp := c.Update(bar("AAPL", 17))
	require.True(t, okUp)

	feed(c, "MSFT", ramp(30, 15)...)
	snapDown, okDown := c.Update(bar("MSFT", 14))
	require.True(t, okDown)

	assert.Equal(t, 100.0, snapUp.RSI)
	assert.Equal(t, 0.0, snapDown.RSI)
}

func TestReset(t *testing.T) {
	c := NewCalculator(3, 5, 14)
	feed(c, "AAPL", ramp(1, 16)...)
	require.NotZero(t, c.History("AAPL"))

	c.Reset()
	assert.Zero(t, c.History("AAPL"))
	_, ok := c.Update(bar("AAPL", 1))
	assert.False(t, ok)
}

// ramp returns consecutive values from a towards b inclusive.
func ramp(a, b int) []float64 {
	step := 1
	if b < a {
		step = -1
	}
	out := make([]float64, 0, (b-a)*step+1)
	for v := a; v != b+step; v += step {
		out = append(out, float64(v))
	}
	return out
}
