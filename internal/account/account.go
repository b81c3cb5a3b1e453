package account

import (
	"fmt"
	"math"
	"time"

	"autotrader/internal/position"

	"github.com/shopspring/decimal"
)

// Stats are aggregate trade statistics, recomputed from the closed
// trade history on every call rather than drifted incrementally.
type Stats struct {
	TotalTrades int     `json:"total_trades"`
	Wins        int     `json:"winning_trades"`
	Losses      int     `json:"losing_trades"`
	WinRate     float64 `json:"win_rate"`
	TotalPnL    float64 `json:"total_pnl"`
	MaxWin      float64 `json:"max_win"`
	MaxLoss     float64 `json:"max_loss"`
}

// Snapshot captures the mutable account state so a failed cycle can
// roll back to it.
type Snapshot struct {
	Cash          float64
	PeakEquity    float64
	Day           string
	DailyRealized float64
	Trades        []position.ClosedTrade
}

// State holds cash, the closed-trade history, and the running extremes
// the risk rules read. Not safe for concurrent use; the engine
// serializes access.
type State struct {
	initialEquity float64
	cash          float64
	peakEquity    float64
	trades        []position.ClosedTrade

	day           string // date key of the daily realized window
	dailyRealized float64
}

func NewState(initialEquity float64) *State {
	return &State{
		initialEquity: initialEquity,
		cash:          initialEquity,
		peakEquity:    initialEquity,
	}
}

func (s *State) InitialEquity() float64 { return s.initialEquity }
func (s *State) Cash() float64          { return s.cash }
func (s *State) PeakEquity() float64    { return s.peakEquity }

// Debit removes the cost of an entry from cash.
func (s *State) Debit(amount float64) error {
	if amount < 0 {
		return fmt.Errorf("debit amount cannot be negative")
	}
	if decFromFloat(amount).GreaterThan(decFromFloat(s.cash)) {
		return fmt.Errorf("debit %.2f exceeds cash %.2f", amount, s.cash)
	}
	s.cash = decToFloat(decFromFloat(s.cash).Sub(decFromFloat(amount)))
	return nil
}

// Credit returns the proceeds of an exit to cash.
func (s *State) Credit(amount float64) {
	if amount < 0 {
		return
	}
	s.cash = decToFloat(decFromFloat(s.cash).Add(decFromFloat(amount)))
}

// RecordTrade appends a closed trade and folds its PnL into the daily
// realized window, rolling the window when the date changes.
func (s *State) RecordTrade(trade position.ClosedTrade) {
	s.trades = append(s.trades, trade)
	day := dayKey(trade.ExitTime)
	if day != s.day {
		s.day = day
		s.dailyRealized = 0
	}
	s.dailyRealized = decToFloat(decFromFloat(s.dailyRealized).Add(decFromFloat(trade.PnL)))
}

// DailyRealized reports today's realized PnL, zero once the window is
// from an earlier day.
func (s *State) DailyRealized(at time.Time) float64 {
	if dayKey(at) != s.day {
		return 0
	}
	return s.dailyRealized
}

// Equity is cash plus the open positions' market value.
func (s *State) Equity(marketValue float64) float64 {
	return decToFloat(decFromFloat(s.cash).Add(decFromFloat(marketValue)))
}

// ObserveEquity advances the peak used for drawdown checks.
func (s *State) ObserveEquity(equity float64) {
	if equity > s.peakEquity {
		s.peakEquity = equity
	}
}

// TotalRealized sums PnL over the whole trade history.
func (s *State) TotalRealized() float64 {
	total := decimal.Zero
	for _, tr := range s.trades {
		total = total.Add(decFromFloat(tr.PnL))
	}
	return decToFloat(total)
}

// CheckIdentity verifies cash conservation: cash plus market value
// must equal initial equity plus realized plus unrealized PnL. A
// violation means position bookkeeping diverged from cash movements.
func (s *State) CheckIdentity(marketValue, unrealizedPnL float64) error {
	lhs := decFromFloat(s.cash).Add(decFromFloat(marketValue))
	rhs := decFromFloat(s.initialEquity).
		Add(decFromFloat(s.TotalRealized())).
		Add(decFromFloat(unrealizedPnL))
	if diff := lhs.Sub(rhs).Abs(); diff.GreaterThan(identityTolerance) {
		return fmt.Errorf("equity identity violated: cash+value %.6f vs initial+pnl %.6f",
			decToFloat(lhs), decToFloat(rhs))
	}
	return nil
}

// Stats recomputes the aggregate statistics. Win rate is 0 when no
// trades have closed.
func (s *State) Stats() Stats {
	st := Stats{}
	total := decimal.Zero
	for _, tr := range s.trades {
		st.TotalTrades++
		total = total.Add(decFromFloat(tr.PnL))
		switch {
		case tr.PnL > 0:
			st.Wins++
			if tr.PnL > st.MaxWin {
				st.MaxWin = tr.PnL
			}
		case tr.PnL < 0:
			st.Losses++
			if tr.PnL < st.MaxLoss {
				st.MaxLoss = tr.PnL
			}
		}
	}
	if st.TotalTrades > 0 {
		st.WinRate = float64(st.Wins) / float64(st.TotalTrades)
	}
	st.TotalPnL = decToFloat(total)
	return st
}

// Trades returns the closed-trade history oldest first.
func (s *State) Trades() []position.ClosedTrade {
	out := make([]position.ClosedTrade, len(s.trades))
	copy(out, s.trades)
	return out
}

// History returns up to limit trades, newest first. A non-positive
// limit returns everything.
func (s *State) History(limit int) []position.ClosedTrade {
	n := len(s.trades)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]position.ClosedTrade, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, s.trades[i])
	}
	return out
}

// Snapshot captures state for rollback.
func (s *State) Snapshot() Snapshot {
	trades := make([]position.ClosedTrade, len(s.trades))
	copy(trades, s.trades)
	return Snapshot{
		Cash:          s.cash,
		PeakEquity:    s.peakEquity,
		Day:           s.day,
		DailyRealized: s.dailyRealized,
		Trades:        trades,
	}
}

// RestoreSnapshot reverts to a previously captured snapshot.
func (s *State) RestoreSnapshot(snap Snapshot) {
	s.cash = snap.Cash
	s.peakEquity = snap.PeakEquity
	s.day = snap.Day
	s.dailyRealized = snap.DailyRealized
	s.trades = snap.Trades
}

// Restore rebuilds state from persistence: cash and peak come from the
// stored account row, the daily window is replayed from the trades.
func (s *State) Restore(cash, peakEquity float64, trades []position.ClosedTrade) {
	s.cash = cash
	if peakEquity > s.initialEquity {
		s.peakEquity = peakEquity
	}
	s.trades = nil
	s.day = ""
	s.dailyRealized = 0
	for _, tr := range trades {
		s.RecordTrade(tr)
	}
}

// Reset restores the configured initial state and drops all history.
func (s *State) Reset() {
	s.cash = s.initialEquity
	s.peakEquity = s.initialEquity
	s.trades = nil
	s.day = ""
	s.dailyRealized = 0
}

// SetInitialEquity rebases the account, used when config changes while
// the account is flat.
func (s *State) SetInitialEquity(equity float64) {
	s.initialEquity = equity
}

var identityTolerance = decimal.NewFromFloat(1e-6)

func dayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

func decFromFloat(val float64) decimal.Decimal {
	if math.IsNaN(val) || math.IsInf(val, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(val)
}

func decToFloat(val decimal.Decimal) float64 {
	f, _ := val.Float64()
	return f
}
