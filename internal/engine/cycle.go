package engine

import (
	"context"
	"fmt"
	"time"

	"autotrader/internal/config"
	"autotrader/internal/logger"
	"autotrader/internal/market"
	"autotrader/internal/position"
	"autotrader/internal/risk"
	"autotrader/internal/store/journal"
	"autotrader/internal/strategy"
)

type openedEvent struct {
	pos     position.Position
	orderID string
}

// Tick runs one full trading cycle under the state lock. Outside
// market hours the cycle is a no-op unless test mode is on.
func (e *Engine) Tick() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tickLocked()
}

func (e *Engine) tickLocked() {
	cfg := e.cfg
	now := e.nowFn()

	if !cfg.Trading.TestMode && !cfg.Trading.MarketHours.Contains(now) {
		logger.Debugf("market closed at %s, skipping cycle", now.Format("2006-01-02 15:04"))
		return
	}

	acctSnap := e.acct.Snapshot()
	bookSnap := e.book.All()

	closed, opened := e.stepSymbols(cfg, now)

	mv := e.book.MarketValue()
	upl := e.book.UnrealizedPnL()
	if err := e.acct.CheckIdentity(mv, upl); err != nil {
		e.acct.RestoreSnapshot(acctSnap)
		e.book.Reset()
		for _, p := range bookSnap {
			e.book.Restore(p)
		}
		e.lastError = err.Error()
		logger.Errorf("cycle rolled back: %v", err)
		e.notifyError(fmt.Sprintf("cycle rolled back: %v", err))
		return
	}

	total := e.acct.Equity(mv)
	e.acct.ObserveEquity(total)
	e.lastTick = now
	e.lastError = ""

	pt := journal.EquityPoint{
		Timestamp:     now.UnixMilli(),
		Equity:        total,
		Cash:          e.acct.Cash(),
		UnrealizedPnL: upl,
		Positions:     e.book.Count(),
	}
	e.curve = append(e.curve, pt)
	if len(e.curve) > maxCurvePoints {
		e.curve = e.curve[len(e.curve)-maxCurvePoints:]
	}

	e.persistCycle(pt, closed)

	// Events go out only after the cycle committed; a rolled-back trade
	// never reaches the notifier.
	for _, tr := range closed {
		e.notifyClosed(tr)
	}
	for _, ev := range opened {
		e.notifyOpened(ev.pos, ev.orderID)
	}
}

// stepSymbols walks the configured symbols in order. Each symbol is
// independent: a feed or venue failure skips that symbol and the cycle
// moves on. A close and an open never happen for the same symbol in
// the same cycle.
func (e *Engine) stepSymbols(cfg *config.Config, now time.Time) ([]position.ClosedTrade, []openedEvent) {
	rm := risk.NewManager(risk.Limits{
		MaxPositionSize: cfg.Risk.MaxPositionSize,
		MaxRiskPerTrade: cfg.Risk.MaxRiskPerTrade,
		MaxDrawdown:     cfg.Risk.MaxDrawdown,
		MaxDailyLoss:    cfg.Risk.MaxDailyLoss,
		MaxPositions:    cfg.Risk.MaxPositions,
		StopLossPct:     cfg.Strategy.StopLossPct,
	})

	var closed []position.ClosedTrade
	var opened []openedEvent
	for _, symbol := range cfg.Symbols {
		bar, err := e.fetchBar(cfg, symbol)
		if err != nil {
			logger.Warnf("feed %s: %v", symbol, err)
			continue
		}
		e.book.Mark(symbol, bar.Close)

		snap, ready := e.calc.Update(bar)
		sig := strategy.Signal{Symbol: symbol, Direction: strategy.Hold}
		if ready {
			sig = e.gen.Evaluate(snap)
		} else {
			logger.Debugf("%s warming up, %d closes buffered", symbol, e.calc.History(symbol))
		}

		// Exit checks run even while indicators warm up so restored
		// positions keep their stop and take protection.
		if e.book.Has(symbol) {
			reason, exit := e.book.ExitReasonFor(symbol, bar.Close, sig.Direction == strategy.Exit)
			if exit {
				if tr, ok := e.closePosition(cfg, symbol, bar, now, reason); ok {
					closed = append(closed, tr)
				}
			}
			continue
		}

		if sig.Direction == strategy.EnterLong {
			if ev, ok := e.openPosition(cfg, rm, symbol, bar, now); ok {
				opened = append(opened, ev)
			}
		}
	}
	return closed, opened
}

func (e *Engine) fetchBar(cfg *config.Config, symbol string) (market.Bar, error) {
	ctx, cancel := e.callCtx(cfg)
	defer cancel()
	return e.feed.LatestBar(ctx, symbol)
}

func (e *Engine) callCtx(cfg *config.Config) (context.Context, context.CancelFunc) {
	timeout := cfg.Feed.FeedTimeout()
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	return context.WithTimeout(e.baseCtx, timeout)
}

func (e *Engine) openPosition(cfg *config.Config, rm *risk.Manager, symbol string, bar market.Bar, now time.Time) (openedEvent, bool) {
	mv := e.book.MarketValue()
	decision := rm.Size(bar.Close, risk.Account{
		Cash:          e.acct.Cash(),
		Equity:        e.acct.Equity(mv),
		PeakEquity:    e.acct.PeakEquity(),
		InitialEquity: e.acct.InitialEquity(),
		DailyRealized: e.acct.DailyRealized(now),
		OpenPositions: e.book.Count(),
		HasPosition:   e.book.Has(symbol),
	})
	if !decision.Approved {
		logger.Debugf("entry vetoed for %s: %s", symbol, decision.Reason)
		return openedEvent{}, false
	}

	ctx, cancel := e.callCtx(cfg)
	defer cancel()
	fill, err := e.venue.SubmitOrder(ctx, market.Order{
		Symbol:     symbol,
		Side:       market.SideBuy,
		Quantity:   decision.Quantity,
		LimitPrice: bar.Close,
	})
	if err != nil {
		logger.Warnf("buy order %s: %v", symbol, err)
		return openedEvent{}, false
	}

	pos, err := e.book.Open(fill, cfg.Strategy.StopLossPct, cfg.Strategy.TakeProfitPct)
	if err != nil {
		logger.Errorf("record fill %s: %v", symbol, err)
		return openedEvent{}, false
	}
	cost := decFromFloat(fill.Quantity).Mul(decFromFloat(fill.Price))
	if err := e.acct.Debit(decToFloat(cost)); err != nil {
		// The venue filled but the account cannot cover it. Unwind the
		// book entry so the identity check sees a consistent state.
		e.book.Close(symbol, fill.Price, now, position.ExitManual)
		logger.Errorf("debit for %s fill: %v", symbol, err)
		return openedEvent{}, false
	}
	logger.Infof("opened %s: %.0f @ %.2f, stop %.2f, take %.2f",
		symbol, pos.Quantity, pos.EntryPrice, pos.StopPrice, pos.TakePrice)
	return openedEvent{pos: *pos, orderID: fill.OrderID}, true
}

func (e *Engine) closePosition(cfg *config.Config, symbol string, bar market.Bar, now time.Time, reason position.ExitReason) (position.ClosedTrade, bool) {
	pos, ok := e.book.Get(symbol)
	if !ok {
		return position.ClosedTrade{}, false
	}

	ctx, cancel := e.callCtx(cfg)
	defer cancel()
	fill, err := e.venue.SubmitOrder(ctx, market.Order{
		Symbol:     symbol,
		Side:       market.SideSell,
		Quantity:   pos.Quantity,
		LimitPrice: bar.Close,
	})
	if err != nil {
		logger.Warnf("sell order %s: %v", symbol, err)
		return position.ClosedTrade{}, false
	}

	tr, ok := e.book.Close(symbol, fill.Price, now, reason)
	if !ok {
		return position.ClosedTrade{}, false
	}
	proceeds := decFromFloat(fill.Quantity).Mul(decFromFloat(fill.Price))
	e.acct.Credit(decToFloat(proceeds))
	e.acct.RecordTrade(tr)
	logger.Infof("closed %s: %.0f @ %.2f, pnl %+.2f (%s)",
		symbol, tr.Quantity, tr.ExitPrice, tr.PnL, tr.Reason)
	return tr, true
}
