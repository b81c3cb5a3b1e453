package notifier

import (
	"fmt"

	"autotrader/internal/logger"
	"autotrader/internal/position"
)

// Events 把交易事件渲染成结构化通知后转发给底层通道。
// sink 为 nil 时全部静默，调用方无需判空。
type Events struct {
	sink TextNotifier
	mode string
}

func NewEvents(sink TextNotifier, demoMode bool) *Events {
	mode := "live"
	if demoMode {
		mode = "demo"
	}
	return &Events{sink: sink, mode: mode}
}

func (e *Events) enabled() bool {
	return e != nil && e.sink != nil
}

// TradeOpened 推送开仓通知。
func (e *Events) TradeOpened(pos position.Position, orderID string) {
	if !e.enabled() {
		return
	}
	e.send(StructuredMessage{
		Icon:  "💰",
		Title: "Position Opened",
		Sections: []MessageSection{{Lines: []string{
			fmt.Sprintf("Symbol: %s", pos.Symbol),
			fmt.Sprintf("Quantity: %.0f @ $%.2f", pos.Quantity, pos.EntryPrice),
			fmt.Sprintf("Cost: $%.2f", pos.Quantity*pos.EntryPrice),
			fmt.Sprintf("Stop loss: $%.2f", pos.StopPrice),
			fmt.Sprintf("Take profit: $%.2f", pos.TakePrice),
			fmt.Sprintf("Order: %s", orderID),
		}}},
		Footer:    "Mode: " + e.mode,
		Timestamp: pos.EntryTime,
	})
}

// TradeClosed 推送平仓通知，附带盈亏和触发原因。
func (e *Events) TradeClosed(tr position.ClosedTrade) {
	if !e.enabled() {
		return
	}
	pnlPct := 0.0
	if tr.EntryPrice > 0 {
		pnlPct = (tr.ExitPrice - tr.EntryPrice) / tr.EntryPrice * 100
	}
	e.send(StructuredMessage{
		Icon:  "💸",
		Title: "Position Closed",
		Sections: []MessageSection{{Lines: []string{
			fmt.Sprintf("Symbol: %s", tr.Symbol),
			fmt.Sprintf("Quantity: %.0f @ $%.2f", tr.Quantity, tr.ExitPrice),
			fmt.Sprintf("Entry: $%.2f", tr.EntryPrice),
			fmt.Sprintf("PnL: $%+.2f (%+.2f%%)", tr.PnL, pnlPct),
			fmt.Sprintf("Reason: %s", tr.Reason),
		}}},
		Footer:    "Mode: " + e.mode,
		Timestamp: tr.ExitTime,
	})
}

// EngineError 推送运行时告警。
func (e *Events) EngineError(msg string) {
	if !e.enabled() {
		return
	}
	e.send(Plain("⚠️", "Engine Alert", msg))
}

func (e *Events) send(msg StructuredMessage) {
	if err := e.sink.SendText(msg.RenderMarkdown()); err != nil {
		logger.Warnf("notify failed: %v", err)
	}
}
