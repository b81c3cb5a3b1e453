package engine

import (
	"autotrader/internal/logger"
	"autotrader/internal/position"
)

// Notifier receives trade lifecycle events after a cycle commits. A
// nil Notifier disables delivery. Implementations must not block the
// caller; the engine already dispatches from throwaway goroutines.
type Notifier interface {
	TradeOpened(pos position.Position, orderID string)
	TradeClosed(trade position.ClosedTrade)
	EngineError(msg string)
}

func (e *Engine) notifyOpened(pos position.Position, orderID string) {
	if e.notif == nil {
		return
	}
	n := e.notif
	go func() {
		defer recoverNotify("trade opened")
		n.TradeOpened(pos, orderID)
	}()
}

func (e *Engine) notifyClosed(trade position.ClosedTrade) {
	if e.notif == nil {
		return
	}
	n := e.notif
	go func() {
		defer recoverNotify("trade closed")
		n.TradeClosed(trade)
	}()
}

func (e *Engine) notifyError(msg string) {
	if e.notif == nil {
		return
	}
	n := e.notif
	go func() {
		defer recoverNotify("engine error")
		n.EngineError(msg)
	}()
}

func recoverNotify(event string) {
	if r := recover(); r != nil {
		logger.Errorf("notify %s panicked: %v", event, r)
	}
}
