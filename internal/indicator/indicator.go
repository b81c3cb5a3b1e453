package indicator

import (
	"time"

	"autotrader/internal/market"

	talib "github.com/markcheno/go-talib"
)

// Snapshot carries the indicator values derived from one bar. It is
// recomputed on every update and never merged with prior values.
type Snapshot struct {
	Symbol    string    `json:"symbol"`
	Timestamp time.Time `json:"timestamp"`
	Close     float64   `json:"close"`
	SMAFast   float64   `json:"sma_fast"`
	SMASlow   float64   `json:"sma_slow"`
	RSI       float64   `json:"rsi"`
}

// Calculator maintains a bounded window of closes per symbol and
// derives SMA fast/slow plus RSI from it. Not safe for concurrent use;
// the engine serializes access.
type Calculator struct {
	fast      int
	slow      int
	rsiPeriod int

	capacity   int
	minHistory int
	windows    map[string][]float64
}

// NewCalculator sizes the per-symbol window to the longest configured
// lookback. RSI needs one close more than its period for the first delta.
func NewCalculator(fast, slow, rsiPeriod int) *Calculator {
	capacity := slow
	if rsiPeriod > capacity {
		capacity = rsiPeriod
	}
	capacity++
	minHistory := slow
	if rsiPeriod+1 > minHistory {
		minHistory = rsiPeriod + 1
	}
	return &Calculator{
		fast:       fast,
		slow:       slow,
		rsiPeriod:  rsiPeriod,
		capacity:   capacity,
		minHistory: minHistory,
		windows:    make(map[string][]float64),
	}
}

// Update appends the bar's close to the symbol window, evicting the
// oldest close once the window is full. The second return is false
// until enough history has accumulated for every indicator.
func (c *Calculator) Update(bar market.Bar) (Snapshot, bool) {
	win := append(c.windows[bar.Symbol], bar.Close)
	if len(win) > c.capacity {
		win = win[len(win)-c.capacity:]
	}
	c.windows[bar.Symbol] = win
	if len(win) < c.minHistory {
		return Snapshot{}, false
	}
	return Snapshot{
		Symbol:    bar.Symbol,
		Timestamp: bar.Timestamp,
		Close:     bar.Close,
		SMAFast:   lastSMA(win, c.fast),
		SMASlow:   lastSMA(win, c.slow),
		RSI:       lastRSI(win, c.rsiPeriod),
	}, true
}

// History reports how many closes are buffered for a symbol.
func (c *Calculator) History(symbol string) int {
	return len(c.windows[symbol])
}

// Reset drops all buffered history.
func (c *Calculator) Reset() {
	c.windows = make(map[string][]float64)
}

func lastSMA(closes []float64, period int) float64 {
	series := talib.Sma(closes, period)
	return series[len(series)-1]
}

// lastRSI applies Wilder smoothing over the buffered closes. A window
// without losses reads 100 and one without gains reads 0, so the value
// is defined even where the gain/loss ratio is not.
func lastRSI(closes []float64, period int) float64 {
	hasGain, hasLoss := false, false
	for i := 1; i < len(closes); i++ {
		switch d := closes[i] - closes[i-1]; {
		case d > 0:
			hasGain = true
		case d < 0:
			hasLoss = true
		}
	}
	if !hasLoss {
		return 100
	}
	if !hasGain {
		return 0
	}
	series := talib.Rsi(closes, period)
	return series[len(series)-1]
}
