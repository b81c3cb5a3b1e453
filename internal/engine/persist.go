package engine

import (
	"context"
	"encoding/json"
	"math"
	"time"

	"autotrader/internal/logger"
	"autotrader/internal/position"
	"autotrader/internal/store/journal"
	"autotrader/internal/store/model"

	"github.com/shopspring/decimal"
)

// persistCycle writes the committed cycle to the state store and the
// equity journal. Persistence failures are logged and swallowed; the
// in-memory state already committed and stays authoritative.
func (e *Engine) persistCycle(pt journal.EquityPoint, closed []position.ClosedTrade) {
	ctx, cancel := context.WithTimeout(e.baseCtx, persistTimeout)
	defer cancel()

	now := e.nowFn().Unix()
	if e.state != nil {
		if err := e.state.SaveAccount(ctx, e.accountModel(now)); err != nil {
			logger.Warnf("persist account: %v", err)
		}
		if err := e.state.ReplacePositions(ctx, positionModels(e.book.All())); err != nil {
			logger.Warnf("persist positions: %v", err)
		}
		for _, tr := range closed {
			if err := e.state.SaveTrade(ctx, tradeModel(tr, now)); err != nil {
				logger.Warnf("persist trade %s: %v", tr.ID, err)
			}
		}
	}
	if e.journ != nil {
		if _, err := e.journ.Append(ctx, pt); err != nil {
			logger.Warnf("append equity journal: %v", err)
		}
	}
}

func (e *Engine) accountModel(now int64) model.AccountModel {
	return model.AccountModel{
		ID:            1,
		Cash:          e.acct.Cash(),
		InitialEquity: e.acct.InitialEquity(),
		PeakEquity:    e.acct.PeakEquity(),
		UpdatedAtUnix: now,
	}
}

func positionModels(positions []position.Position) []model.PositionModel {
	out := make([]model.PositionModel, 0, len(positions))
	for _, p := range positions {
		out = append(out, model.PositionModel{
			Symbol:       p.Symbol,
			Quantity:     p.Quantity,
			EntryPrice:   p.EntryPrice,
			EntryUnix:    p.EntryTime.Unix(),
			StopPrice:    p.StopPrice,
			TakePrice:    p.TakePrice,
			CurrentPrice: p.CurrentPrice,
		})
	}
	return out
}

func tradeModel(tr position.ClosedTrade, now int64) model.TradeModel {
	snapshot, err := json.Marshal(tr)
	if err != nil {
		snapshot = nil
	}
	return model.TradeModel{
		TradeID:       tr.ID,
		Symbol:        tr.Symbol,
		Quantity:      tr.Quantity,
		EntryPrice:    tr.EntryPrice,
		ExitPrice:     tr.ExitPrice,
		EntryUnix:     tr.EntryTime.Unix(),
		ExitUnix:      tr.ExitTime.Unix(),
		PnL:           tr.PnL,
		Reason:        string(tr.Reason),
		Snapshot:      snapshot,
		CreatedAtUnix: now,
	}
}

// Restore rebuilds in-memory state from the store: account row, closed
// trades replayed oldest first, open positions, and the recent equity
// curve. Missing persistence leaves the configured defaults in place.
func (e *Engine) Restore(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == nil {
		return nil
	}

	row, err := e.state.LoadAccount(ctx)
	if err != nil {
		return err
	}
	if row != nil {
		// The stored starting balance wins over the config value so the
		// accounting identity survives restarts.
		e.acct.SetInitialEquity(row.InitialEquity)

		rows, err := e.state.ListTrades(ctx, 0)
		if err != nil {
			return err
		}
		trades := make([]position.ClosedTrade, 0, len(rows))
		for i := len(rows) - 1; i >= 0; i-- {
			trades = append(trades, closedTradeFromModel(rows[i]))
		}
		e.acct.Restore(row.Cash, row.PeakEquity, trades)

		posRows, err := e.state.ListPositions(ctx)
		if err != nil {
			return err
		}
		for _, pr := range posRows {
			e.book.Restore(positionFromModel(pr))
		}
		logger.Infof("restored state: cash %.2f, %d positions, %d trades",
			row.Cash, len(posRows), len(trades))
	}

	if e.journ != nil {
		points, err := e.journ.Recent(ctx, maxCurvePoints)
		if err != nil {
			logger.Warnf("restore equity journal: %v", err)
		} else {
			e.curve = points
		}
	}
	return nil
}

func closedTradeFromModel(m model.TradeModel) position.ClosedTrade {
	tr := position.ClosedTrade{
		ID:         m.TradeID,
		Symbol:     m.Symbol,
		Quantity:   m.Quantity,
		EntryPrice: m.EntryPrice,
		ExitPrice:  m.ExitPrice,
		EntryTime:  unixTime(m.EntryUnix),
		ExitTime:   unixTime(m.ExitUnix),
		PnL:        m.PnL,
		Reason:     position.ExitReason(m.Reason),
	}
	if len(m.Snapshot) > 0 {
		var full position.ClosedTrade
		if err := json.Unmarshal(m.Snapshot, &full); err == nil && full.ID == m.TradeID {
			tr = full
		}
	}
	return tr
}

func positionFromModel(m model.PositionModel) position.Position {
	return position.Position{
		Symbol:       m.Symbol,
		Quantity:     m.Quantity,
		EntryPrice:   m.EntryPrice,
		EntryTime:    unixTime(m.EntryUnix),
		StopPrice:    m.StopPrice,
		TakePrice:    m.TakePrice,
		CurrentPrice: m.CurrentPrice,
	}
}

func unixTime(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
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
