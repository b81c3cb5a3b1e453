package scheduler

import (
	"strconv"
	"strings"
	"time"

	"autotrader/internal/market"
)

// DefaultKlineGrace covers feed-side close lag before a trailing bar
// is trusted as final.
const DefaultKlineGrace = 10 * time.Second

// KlineInterval converts exchange interval notation ("1m", "4h", "1d",
// "1w") into a duration. Returns false on anything it cannot parse.
func KlineInterval(interval string) (time.Duration, bool) {
	s := strings.ToLower(strings.TrimSpace(interval))
	if len(s) < 2 {
		return 0, false
	}
	var unit time.Duration
	switch s[len(s)-1] {
	case 'm':
		unit = time.Minute
	case 'h':
		unit = time.Hour
	case 'd':
		unit = 24 * time.Hour
	case 'w':
		unit = 7 * 24 * time.Hour
	default:
		return 0, false
	}
	n, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || n <= 0 {
		return 0, false
	}
	return time.Duration(n) * unit, true
}

// DropUnclosedBar drops the trailing bar when its interval has not
// elapsed yet. Kline feeds report the current, in-progress candle as
// the last element.
func DropUnclosedBar(bars []market.Bar, interval time.Duration) []market.Bar {
	return dropUnclosedBarAt(bars, interval, time.Now().UTC(), DefaultKlineGrace)
}

func dropUnclosedBarAt(bars []market.Bar, interval time.Duration, now time.Time, grace time.Duration) []market.Bar {
	if len(bars) == 0 || interval <= 0 {
		return bars
	}
	if grace < 0 {
		grace = 0
	}
	last := bars[len(bars)-1]
	if last.Timestamp.IsZero() {
		return bars
	}
	cutoff := last.Timestamp.Add(interval).Add(grace)
	if now.Before(cutoff) {
		return bars[:len(bars)-1]
	}
	return bars
}
