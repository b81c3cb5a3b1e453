package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"autotrader/internal/config"
	"autotrader/internal/market"
	"autotrader/internal/position"
	"autotrader/internal/store/journal"
	"autotrader/internal/store/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// crossSeries warms up a 2/3 SMA pair with an RSI period of 3 and then
// produces a fast-over-slow cross with RSI 60 on the fifth close.
var crossSeries = []float64{100, 99, 98, 97, 100}

func testConfig() *config.Config {
	return &config.Config{
		Account: config.AccountConfig{InitialEquity: 10000, DemoMode: true},
		Strategy: config.StrategyConfig{
			SMAFast: 2, SMASlow: 3, RSIPeriod: 3,
			RSILower: 30, RSIUpper: 70,
			StopLossPct: 0.02, TakeProfitPct: 0.05,
		},
		Risk: config.RiskConfig{
			MaxPositionSize: 0.5, MaxRiskPerTrade: 0.02,
			MaxDrawdown: 0.2, MaxDailyLoss: 0.1, MaxPositions: 3,
		},
		Symbols: []string{"AAPL"},
		Trading: config.TradingConfig{
			CheckInterval: 1,
			MarketHours:   config.MarketHours{Start: "09:30", End: "16:00"},
			TestMode:      true,
		},
		Feed: config.FeedConfig{Provider: "demo", TimeoutSeconds: 5},
	}
}

type scriptedFeed struct {
	mu     sync.Mutex
	series map[string][]float64
	idx    map[string]int
	errs   map[string]error
	calls  int
}

func newScriptedFeed(series map[string][]float64) *scriptedFeed {
	return &scriptedFeed{
		series: series,
		idx:    make(map[string]int),
		errs:   make(map[string]error),
	}
}

func (f *scriptedFeed) LatestBar(_ context.Context, symbol string) (market.Bar, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err := f.errs[symbol]; err != nil {
		return market.Bar{}, err
	}
	s := f.series[symbol]
	if len(s) == 0 {
		return market.Bar{}, fmt.Errorf("%w: no script for %s", market.ErrUnavailable, symbol)
	}
	i := f.idx[symbol]
	if i >= len(s) {
		i = len(s) - 1 // repeat the last close once the script runs out
	}
	f.idx[symbol] = i + 1
	price := s[i]
	return market.Bar{
		Symbol:    symbol,
		Timestamp: time.Now(),
		Open:      price,
		High:      price,
		Low:       price,
		Close:     price,
		Volume:    1000,
	}, nil
}

func (f *scriptedFeed) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeVenue struct {
	mu     sync.Mutex
	orders []market.Order
	err    error
	seq    int
}

func (v *fakeVenue) SubmitOrder(_ context.Context, order market.Order) (market.Fill, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.err != nil {
		return market.Fill{}, v.err
	}
	v.orders = append(v.orders, order)
	v.seq++
	return market.Fill{
		OrderID:  fmt.Sprintf("TEST_%d", v.seq),
		Symbol:   order.Symbol,
		Side:     order.Side,
		Quantity: order.Quantity,
		Price:    order.LimitPrice,
		FilledAt: time.Now(),
	}, nil
}

func (v *fakeVenue) orderCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.orders)
}

type recordingNotifier struct {
	mu     sync.Mutex
	opened []string
	closed []position.ClosedTrade
	errors []string
}

func (n *recordingNotifier) TradeOpened(_ position.Position, orderID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.opened = append(n.opened, orderID)
}

func (n *recordingNotifier) TradeClosed(tr position.ClosedTrade) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.closed = append(n.closed, tr)
}

func (n *recordingNotifier) EngineError(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errors = append(n.errors, msg)
}

func (n *recordingNotifier) openedCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.opened)
}

func (n *recordingNotifier) closedCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.closed)
}

func (n *recordingNotifier) errorCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.errors)
}

type memStore struct {
	mu        sync.Mutex
	account   *model.AccountModel
	positions []model.PositionModel
	trades    []model.TradeModel // oldest first
	resets    int
}

func newMemStore() *memStore { return &memStore{} }

func (s *memStore) SaveAccount(_ context.Context, acct model.AccountModel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row := acct
	s.account = &row
	return nil
}

func (s *memStore) LoadAccount(_ context.Context) (*model.AccountModel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.account == nil {
		return nil, nil
	}
	row := *s.account
	return &row, nil
}

func (s *memStore) ReplacePositions(_ context.Context, positions []model.PositionModel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.positions = append([]model.PositionModel(nil), positions...)
	return nil
}

func (s *memStore) ListPositions(_ context.Context) ([]model.PositionModel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.PositionModel(nil), s.positions...), nil
}

func (s *memStore) SaveTrade(_ context.Context, trade model.TradeModel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.trades {
		if existing.TradeID == trade.TradeID {
			return nil
		}
	}
	s.trades = append(s.trades, trade)
	return nil
}

func (s *memStore) ListTrades(_ context.Context, limit int) ([]model.TradeModel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.TradeModel, 0, len(s.trades))
	for i := len(s.trades) - 1; i >= 0; i-- {
		out = append(out, s.trades[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *memStore) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.account = nil
	s.positions = nil
	s.trades = nil
	s.resets++
	return nil
}

func (s *memStore) Close() error { return nil }

func (s *memStore) tradeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.trades)
}

func (s *memStore) positionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.positions)
}

func (s *memStore) accountCash() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.account == nil {
		return 0
	}
	return s.account.Cash
}

type fixture struct {
	eng   *Engine
	feed  *scriptedFeed
	venue *fakeVenue
	notif *recordingNotifier
	st    *memStore
}

func newFixture(t *testing.T, cfg *config.Config, series map[string][]float64) *fixture {
	t.Helper()
	fd := newScriptedFeed(series)
	vn := &fakeVenue{}
	nt := &recordingNotifier{}
	st := newMemStore()
	eng, err := New(Params{Config: cfg, Feed: fd, Venue: vn, Notifier: nt, Store: st})
	require.NoError(t, err)
	return &fixture{eng: eng, feed: fd, venue: vn, notif: nt, st: st}
}

func (f *fixture) tick(n int) {
	for i := 0; i < n; i++ {
		f.eng.Tick()
	}
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(Params{Feed: newScriptedFeed(nil), Venue: &fakeVenue{}})
	require.Error(t, err)
	_, err = New(Params{Config: testConfig(), Venue: &fakeVenue{}})
	require.Error(t, err)
	_, err = New(Params{Config: testConfig(), Feed: newScriptedFeed(nil)})
	require.Error(t, err)
}

func TestOpensPositionOnCross(t *testing.T) {
	fx := newFixture(t, testConfig(), map[string][]float64{"AAPL": crossSeries})

	fx.tick(4)
	st := fx.eng.Status()
	assert.Equal(t, 0, st.PositionsCount, "warmup must not trade")
	assert.Equal(t, 0, fx.venue.orderCount())

	fx.tick(1)
	st = fx.eng.Status()
	require.Equal(t, 1, st.PositionsCount)
	pos := st.Positions[0]
	assert.Equal(t, "AAPL", pos.Symbol)
	assert.InDelta(t, 50, pos.Quantity, 1e-9)
	assert.InDelta(t, 100, pos.EntryPrice, 1e-9)
	assert.InDelta(t, 98, pos.StopPrice, 1e-9)
	assert.InDelta(t, 105, pos.TakePrice, 1e-9)

	assert.InDelta(t, 5000, st.Cash, 1e-6)
	assert.InDelta(t, 10000, st.TotalEquity, 1e-6)
	assert.InDelta(t, 0, st.UnrealizedPnL, 1e-6)
	assert.InDelta(t, 10000, st.Equity, 1e-6)
	assert.Empty(t, st.LastError)
	assert.False(t, st.LastTick.IsZero())

	require.Equal(t, 1, fx.venue.orderCount())
	order := fx.venue.orders[0]
	assert.Equal(t, market.SideBuy, order.Side)
	assert.InDelta(t, 50, order.Quantity, 1e-9)
	assert.InDelta(t, 100, order.LimitPrice, 1e-9)

	assert.InDelta(t, 5000, fx.st.accountCash(), 1e-6)
	assert.Equal(t, 1, fx.st.positionCount())

	require.Eventually(t, func() bool { return fx.notif.openedCount() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "TEST_1", fx.notif.opened[0])
}

func TestStopLossCloses(t *testing.T) {
	series := append(append([]float64(nil), crossSeries...), 96)
	fx := newFixture(t, testConfig(), map[string][]float64{"AAPL": series})

	fx.tick(6)
	st := fx.eng.Status()
	assert.Equal(t, 0, st.PositionsCount)
	assert.InDelta(t, 9800, st.Cash, 1e-6)
	assert.InDelta(t, 9800, st.TotalEquity, 1e-6)

	hist := fx.eng.History(0)
	require.Len(t, hist, 1)
	tr := hist[0]
	assert.Equal(t, position.ExitStopLoss, tr.Reason)
	assert.InDelta(t, 96, tr.ExitPrice, 1e-9)
	assert.InDelta(t, -200, tr.PnL, 1e-6)
	assert.NotEmpty(t, tr.ID)

	stats := fx.eng.Statistics()
	assert.Equal(t, 1, stats.TotalTrades)
	assert.Equal(t, 1, stats.Losses)
	assert.Zero(t, stats.WinRate)
	assert.InDelta(t, -200, stats.TotalPnL, 1e-6)
	assert.InDelta(t, -200, stats.MaxLoss, 1e-6)

	assert.Equal(t, 1, fx.st.tradeCount())
	assert.Equal(t, 0, fx.st.positionCount())
	require.Eventually(t, func() bool { return fx.notif.closedCount() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, position.ExitStopLoss, fx.notif.closed[0].Reason)
}

func TestTakeProfitCloses(t *testing.T) {
	series := append(append([]float64(nil), crossSeries...), 106)
	fx := newFixture(t, testConfig(), map[string][]float64{"AAPL": series})

	fx.tick(6)
	st := fx.eng.Status()
	assert.Equal(t, 0, st.PositionsCount)
	assert.InDelta(t, 10300, st.Cash, 1e-6)

	hist := fx.eng.History(0)
	require.Len(t, hist, 1)
	assert.Equal(t, position.ExitTakeProfit, hist[0].Reason)
	assert.InDelta(t, 300, hist[0].PnL, 1e-6)

	stats := fx.eng.Statistics()
	assert.Equal(t, 1, stats.Wins)
	assert.InDelta(t, 1.0, stats.WinRate, 1e-9)
	assert.InDelta(t, 300, stats.MaxWin, 1e-6)
}

func TestSignalExitCloses(t *testing.T) {
	// After the entry at 100 the price keeps clear of the 98 stop and
	// the 105 take until the fast SMA crosses back under the slow one.
	series := append(append([]float64(nil), crossSeries...), 103, 100, 98.2)
	fx := newFixture(t, testConfig(), map[string][]float64{"AAPL": series})

	fx.tick(7)
	assert.Equal(t, 1, fx.eng.Status().PositionsCount, "no exit before the cross-down")

	fx.tick(1)
	st := fx.eng.Status()
	assert.Equal(t, 0, st.PositionsCount)
	assert.InDelta(t, 9910, st.Cash, 1e-6)

	hist := fx.eng.History(0)
	require.Len(t, hist, 1)
	assert.Equal(t, position.ExitSignal, hist[0].Reason)
	assert.InDelta(t, -90, hist[0].PnL, 1e-6)
}

func TestStopLossWinsOverSignalExit(t *testing.T) {
	// 97 breaches the 98 stop on the same close that crosses the fast
	// SMA back under the slow one; the stop takes priority.
	series := append(append([]float64(nil), crossSeries...), 103, 100, 97)
	fx := newFixture(t, testConfig(), map[string][]float64{"AAPL": series})

	fx.tick(8)
	hist := fx.eng.History(0)
	require.Len(t, hist, 1)
	assert.Equal(t, position.ExitStopLoss, hist[0].Reason)
}

func TestSinglePositionPerSymbol(t *testing.T) {
	// A steady drift up keeps the fast SMA above the slow one and the
	// price inside the stop/take band, so nothing re-fires.
	series := append(append([]float64(nil), crossSeries...), 101, 102, 103, 104)
	fx := newFixture(t, testConfig(), map[string][]float64{"AAPL": series})

	fx.tick(9)
	assert.Equal(t, 1, fx.eng.Status().PositionsCount)
	assert.Equal(t, 1, fx.venue.orderCount(), "only the original entry order")
}

func TestEquityIdentityEveryTick(t *testing.T) {
	series := append(append([]float64(nil), crossSeries...), 103, 100, 98.2, 96, 100)
	fx := newFixture(t, testConfig(), map[string][]float64{"AAPL": series})

	for i := 0; i < len(series); i++ {
		fx.tick(1)
		st := fx.eng.Status()
		require.Empty(t, st.LastError, "tick %d", i+1)

		mv := 0.0
		for _, p := range st.Positions {
			mv += p.Quantity * p.CurrentPrice
		}
		assert.InDelta(t, st.Cash+mv, st.TotalEquity, 1e-6, "tick %d", i+1)
		assert.InDelta(t, st.TotalEquity-st.UnrealizedPnL, st.Equity, 1e-6, "tick %d", i+1)
	}
}

func TestMarketHoursGate(t *testing.T) {
	cfg := testConfig()
	cfg.Trading.TestMode = false
	fx := newFixture(t, cfg, map[string][]float64{"AAPL": crossSeries})

	saturday := time.Date(2026, 3, 7, 12, 0, 0, 0, time.UTC)
	fx.eng.nowFn = func() time.Time { return saturday }
	fx.tick(1)
	assert.Equal(t, 0, fx.feed.callCount(), "closed market must not hit the feed")
	assert.True(t, fx.eng.Status().LastTick.IsZero())

	monday := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	fx.eng.nowFn = func() time.Time { return monday }
	fx.tick(1)
	assert.Equal(t, 1, fx.feed.callCount())
	assert.Equal(t, monday, fx.eng.Status().LastTick)
}

func TestFeedErrorSkipsSymbol(t *testing.T) {
	cfg := testConfig()
	cfg.Symbols = []string{"AAPL", "MSFT"}
	fx := newFixture(t, cfg, map[string][]float64{"MSFT": crossSeries})
	fx.feed.errs["AAPL"] = market.ErrUnavailable

	fx.tick(5)
	st := fx.eng.Status()
	require.Equal(t, 1, st.PositionsCount)
	assert.Equal(t, "MSFT", st.Positions[0].Symbol)
	assert.Empty(t, st.LastError, "a skipped symbol is not a cycle error")
	assert.False(t, st.LastTick.IsZero())
}

func TestVenueRejectionLeavesStateClean(t *testing.T) {
	fx := newFixture(t, testConfig(), map[string][]float64{"AAPL": crossSeries})
	fx.venue.err = market.ErrRejected

	fx.tick(5)
	st := fx.eng.Status()
	assert.Equal(t, 0, st.PositionsCount)
	assert.InDelta(t, 10000, st.Cash, 1e-6)
	assert.Empty(t, st.LastError)
	assert.Equal(t, 0, fx.st.tradeCount())
}

func TestRollbackOnIdentityViolation(t *testing.T) {
	series := append(append([]float64(nil), crossSeries...), 96)
	fx := newFixture(t, testConfig(), map[string][]float64{"AAPL": series})

	fx.tick(5)
	require.Equal(t, 1, fx.eng.Status().PositionsCount)

	// Cash drifts without a matching realized entry, so the identity
	// check must fail and the stop-loss close on the next tick must be
	// rolled back.
	fx.eng.mu.Lock()
	fx.eng.acct.Credit(500)
	fx.eng.mu.Unlock()

	fx.tick(1)
	st := fx.eng.Status()
	assert.NotEmpty(t, st.LastError)
	assert.Equal(t, 1, st.PositionsCount, "close must be rolled back")
	assert.Empty(t, fx.eng.History(0))
	assert.Equal(t, 0, fx.st.tradeCount(), "rolled-back trade must not persist")
	assert.InDelta(t, 5000, fx.st.accountCash(), 1e-6, "store keeps the last committed cycle")
	require.Eventually(t, func() bool { return fx.notif.errorCount() >= 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, fx.notif.closedCount(), "rolled-back close must not notify")

	// Reset clears the drift and the surfaced error.
	require.NoError(t, fx.eng.Reset())
	st = fx.eng.Status()
	assert.Empty(t, st.LastError)
	assert.InDelta(t, 10000, st.Cash, 1e-6)
	assert.Equal(t, 0, st.PositionsCount)
}

func TestResetRestoresInitialState(t *testing.T) {
	series := append(append([]float64(nil), crossSeries...), 96)
	fx := newFixture(t, testConfig(), map[string][]float64{"AAPL": series})

	fx.tick(6)
	require.Len(t, fx.eng.History(0), 1)

	require.NoError(t, fx.eng.Reset())
	st := fx.eng.Status()
	assert.InDelta(t, 10000, st.Cash, 1e-6)
	assert.InDelta(t, 10000, st.TotalEquity, 1e-6)
	assert.Equal(t, 0, st.PositionsCount)
	assert.True(t, st.LastTick.IsZero())
	assert.Empty(t, fx.eng.History(0))
	assert.Zero(t, fx.eng.Statistics().TotalTrades)
	assert.Empty(t, fx.eng.EquityCurve(0))
	assert.Equal(t, 1, fx.st.resets)
	assert.Equal(t, 0, fx.st.tradeCount())
}

func TestResetWhileCycleInProgress(t *testing.T) {
	fx := newFixture(t, testConfig(), map[string][]float64{"AAPL": crossSeries})
	fx.eng.mu.Lock()
	err := fx.eng.Reset()
	fx.eng.mu.Unlock()
	require.ErrorIs(t, err, ErrCycleInProgress)
}

func TestStartStopIdempotent(t *testing.T) {
	fx := newFixture(t, testConfig(), map[string][]float64{"AAPL": crossSeries})

	require.NoError(t, fx.eng.Start())
	require.NoError(t, fx.eng.Start())
	assert.True(t, fx.eng.Status().Running)
	require.Eventually(t, func() bool { return !fx.eng.Status().LastTick.IsZero() }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, fx.eng.Stop())
	assert.False(t, fx.eng.Status().Running)
	require.NoError(t, fx.eng.Stop())
}

func TestStatisticsEmpty(t *testing.T) {
	fx := newFixture(t, testConfig(), map[string][]float64{"AAPL": crossSeries})
	stats := fx.eng.Statistics()
	assert.Zero(t, stats.TotalTrades)
	assert.Zero(t, stats.WinRate)
	assert.Zero(t, stats.TotalPnL)
}

func TestEquityCurveTail(t *testing.T) {
	fx := newFixture(t, testConfig(), map[string][]float64{"AAPL": crossSeries})
	fx.tick(3)

	full := fx.eng.EquityCurve(0)
	require.Len(t, full, 3)
	tail := fx.eng.EquityCurve(2)
	require.Len(t, tail, 2)
	assert.Equal(t, full[1], tail[0])
	assert.Equal(t, full[2], tail[1])
}

func TestApplyConfig(t *testing.T) {
	fx := newFixture(t, testConfig(), map[string][]float64{"AAPL": crossSeries})

	t.Run("rejects invalid", func(t *testing.T) {
		bad := testConfig()
		bad.Risk.MaxDrawdown = 2
		require.Error(t, fx.eng.ApplyConfig(bad))
	})

	t.Run("rejects nil", func(t *testing.T) {
		require.Error(t, fx.eng.ApplyConfig(nil))
	})

	t.Run("strategy change rebuilds indicators", func(t *testing.T) {
		before := fx.eng.calc
		next := testConfig()
		next.Strategy.SMAFast = 3
		next.Strategy.SMASlow = 5
		require.NoError(t, fx.eng.ApplyConfig(next))
		assert.NotSame(t, before, fx.eng.calc)
		assert.Equal(t, 3, fx.eng.Config().Strategy.SMAFast)
	})

	t.Run("unrelated change keeps indicators", func(t *testing.T) {
		before := fx.eng.calc
		next := fx.eng.Config()
		next.App.LogLevel = "debug"
		require.NoError(t, fx.eng.ApplyConfig(next))
		assert.Same(t, before, fx.eng.calc)
	})

	t.Run("initial equity adopted while flat", func(t *testing.T) {
		next := fx.eng.Config()
		next.Account.InitialEquity = 20000
		require.NoError(t, fx.eng.ApplyConfig(next))
		assert.InDelta(t, 20000, fx.eng.Status().TotalEquity, 1e-6)
	})
}

func TestApplyConfigKeepsEquityAfterTrades(t *testing.T) {
	series := append(append([]float64(nil), crossSeries...), 96)
	fx := newFixture(t, testConfig(), map[string][]float64{"AAPL": series})
	fx.tick(6)
	require.Len(t, fx.eng.History(0), 1)

	next := fx.eng.Config()
	next.Account.InitialEquity = 30000
	require.NoError(t, fx.eng.ApplyConfig(next))
	assert.InDelta(t, 9800, fx.eng.Status().Cash, 1e-6, "traded account keeps its balance until reset")
}

func TestApplyConfigRestartsLoopOnIntervalChange(t *testing.T) {
	fx := newFixture(t, testConfig(), map[string][]float64{"AAPL": crossSeries})
	require.NoError(t, fx.eng.Start())
	defer fx.eng.Stop()

	fx.eng.mu.Lock()
	before := fx.eng.runDone
	fx.eng.mu.Unlock()

	next := fx.eng.Config()
	next.Trading.CheckInterval = 2
	require.NoError(t, fx.eng.ApplyConfig(next))

	fx.eng.mu.Lock()
	after := fx.eng.runDone
	fx.eng.mu.Unlock()
	assert.True(t, fx.eng.Status().Running)
	assert.NotEqual(t, before, after, "loop must restart on a new interval")
}

func TestRestoreFromStore(t *testing.T) {
	cfg := testConfig()
	st := newMemStore()
	ctx := context.Background()

	// A consistent persisted run: +500 and -200 realized, one open
	// position of 10 @ 50 currently marked at 52.
	require.NoError(t, st.SaveAccount(ctx, model.AccountModel{
		ID: 1, Cash: 9800, InitialEquity: 10000, PeakEquity: 10500, UpdatedAtUnix: 1700000300,
	}))
	require.NoError(t, st.SaveTrade(ctx, model.TradeModel{
		TradeID: "t-1", Symbol: "AAPL", Quantity: 5, EntryPrice: 100, ExitPrice: 200,
		EntryUnix: 1700000000, ExitUnix: 1700000100, PnL: 500, Reason: "TAKE_PROFIT",
	}))
	require.NoError(t, st.SaveTrade(ctx, model.TradeModel{
		TradeID: "t-2", Symbol: "MSFT", Quantity: 10, EntryPrice: 80, ExitPrice: 60,
		EntryUnix: 1700000150, ExitUnix: 1700000200, PnL: -200, Reason: "STOP_LOSS",
	}))
	require.NoError(t, st.ReplacePositions(ctx, []model.PositionModel{{
		Symbol: "NVDA", Quantity: 10, EntryPrice: 50, EntryUnix: 1700000250,
		StopPrice: 45, TakePrice: 60, CurrentPrice: 52,
	}}))

	fx := &fixture{
		feed:  newScriptedFeed(map[string][]float64{"NVDA": {52}}),
		venue: &fakeVenue{},
		notif: &recordingNotifier{},
		st:    st,
	}
	cfg.Symbols = []string{"NVDA"}
	eng, err := New(Params{Config: cfg, Feed: fx.feed, Venue: fx.venue, Notifier: fx.notif, Store: st})
	require.NoError(t, err)
	fx.eng = eng

	require.NoError(t, eng.Restore(ctx))

	status := eng.Status()
	assert.InDelta(t, 9800, status.Cash, 1e-6)
	require.Equal(t, 1, status.PositionsCount)
	assert.Equal(t, "NVDA", status.Positions[0].Symbol)
	assert.InDelta(t, 20, status.UnrealizedPnL, 1e-6)
	assert.InDelta(t, 10320, status.TotalEquity, 1e-6)

	stats := eng.Statistics()
	assert.Equal(t, 2, stats.TotalTrades)
	assert.Equal(t, 1, stats.Wins)
	assert.InDelta(t, 0.5, stats.WinRate, 1e-9)
	assert.InDelta(t, 300, stats.TotalPnL, 1e-6)

	hist := eng.History(0)
	require.Len(t, hist, 2)
	assert.Equal(t, "t-2", hist[0].ID, "newest trade first")
	assert.Equal(t, "t-1", hist[1].ID)

	// The restored book must pass the identity check on the next cycle.
	fx.tick(1)
	assert.Empty(t, eng.Status().LastError)
}

func TestRestoreKeepsStoredInitialEquity(t *testing.T) {
	cfg := testConfig() // configured with 10000
	st := newMemStore()
	ctx := context.Background()
	require.NoError(t, st.SaveAccount(ctx, model.AccountModel{
		ID: 1, Cash: 12000, InitialEquity: 12000, PeakEquity: 12500,
	}))

	fx := newFixture(t, cfg, map[string][]float64{"AAPL": crossSeries})
	fx.eng.state = st
	require.NoError(t, fx.eng.Restore(ctx))

	st2 := fx.eng.Status()
	assert.InDelta(t, 12000, st2.Cash, 1e-6)
	assert.InDelta(t, 12000, st2.TotalEquity, 1e-6)

	fx.tick(1)
	assert.Empty(t, fx.eng.Status().LastError, "stored balance must stay consistent")
}

func TestRestoreCurveFromJournal(t *testing.T) {
	ctx := context.Background()
	j, err := journal.Open(filepath.Join(t.TempDir(), "data", "journal.db"))
	require.NoError(t, err)
	defer j.Close()

	for _, ts := range []int64{100, 200, 300} {
		_, err := j.Append(ctx, journal.EquityPoint{Timestamp: ts, Equity: 10000 + float64(ts)})
		require.NoError(t, err)
	}

	fd := newScriptedFeed(map[string][]float64{"AAPL": crossSeries})
	eng, err := New(Params{Config: testConfig(), Feed: fd, Venue: &fakeVenue{}, Journal: j})
	require.NoError(t, err)
	require.NoError(t, eng.Restore(ctx))

	curve := eng.EquityCurve(0)
	require.Len(t, curve, 3)
	assert.Equal(t, int64(100), curve[0].Timestamp)
	assert.Equal(t, int64(300), curve[2].Timestamp)
}

// mockStore tracks the engine's write calls; reads the tests never
// exercise return zero values directly.
type mockStore struct {
	mock.Mock
}

func (m *mockStore) SaveAccount(ctx context.Context, acct model.AccountModel) error {
	args := m.Called(ctx, acct)
	return args.Error(0)
}

func (m *mockStore) ReplacePositions(ctx context.Context, positions []model.PositionModel) error {
	args := m.Called(ctx, positions)
	return args.Error(0)
}

func (m *mockStore) SaveTrade(ctx context.Context, trade model.TradeModel) error {
	args := m.Called(ctx, trade)
	return args.Error(0)
}

func (m *mockStore) Reset(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *mockStore) LoadAccount(context.Context) (*model.AccountModel, error) { return nil, nil }

func (m *mockStore) ListPositions(context.Context) ([]model.PositionModel, error) { return nil, nil }

func (m *mockStore) ListTrades(context.Context, int) ([]model.TradeModel, error) { return nil, nil }

func (m *mockStore) Close() error { return nil }

func TestStoreWritesEveryTick(t *testing.T) {
	st := new(mockStore)
	st.On("SaveAccount", mock.Anything, mock.AnythingOfType("model.AccountModel")).Return(nil)
	st.On("ReplacePositions", mock.Anything, mock.Anything).Return(nil)
	st.On("SaveTrade", mock.Anything, mock.AnythingOfType("model.TradeModel")).Return(nil)
	st.On("Reset", mock.Anything).Return(nil)

	series := append(append([]float64(nil), crossSeries...), 96)
	fd := newScriptedFeed(map[string][]float64{"AAPL": series})
	eng, err := New(Params{Config: testConfig(), Feed: fd, Venue: &fakeVenue{}, Store: st})
	require.NoError(t, err)

	for i := 0; i < 6; i++ {
		eng.Tick()
	}
	require.NoError(t, eng.Reset())

	st.AssertExpectations(t)
	st.AssertNumberOfCalls(t, "SaveAccount", 6)
	st.AssertNumberOfCalls(t, "ReplacePositions", 6)
	st.AssertNumberOfCalls(t, "SaveTrade", 1)
	st.AssertNumberOfCalls(t, "Reset", 1)
}
