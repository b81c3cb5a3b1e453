package position

import (
	"fmt"
	"math"
	"sort"
	"time"

	"autotrader/internal/market"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ExitReason records why a position was closed.
type ExitReason string

const (
	ExitSignal     ExitReason = "SIGNAL"
	ExitStopLoss   ExitReason = "STOP_LOSS"
	ExitTakeProfit ExitReason = "TAKE_PROFIT"
	ExitManual     ExitReason = "MANUAL"
)

// Position is one open long holding. At most one exists per symbol.
type Position struct {
	Symbol     string    `json:"symbol"`
	Quantity   float64   `json:"quantity"`
	EntryPrice float64   `json:"entry_price"`
	EntryTime  time.Time `json:"entry_time"`
	StopPrice  float64   `json:"stop_price"`
	TakePrice  float64   `json:"take_price"`

	// Mark-to-market state, refreshed every cycle.
	CurrentPrice  float64 `json:"current_price"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
}

// ClosedTrade is the append-only record produced when a position
// closes. Never mutated afterwards.
type ClosedTrade struct {
	ID         string     `json:"id"`
	Symbol     string     `json:"symbol"`
	Quantity   float64    `json:"quantity"`
	EntryPrice float64    `json:"entry_price"`
	ExitPrice  float64    `json:"exit_price"`
	EntryTime  time.Time  `json:"entry_time"`
	ExitTime   time.Time  `json:"exit_time"`
	PnL        float64    `json:"pnl"`
	Reason     ExitReason `json:"reason"`
}

// Book owns the set of open positions. Not safe for concurrent use;
// the engine serializes access.
type Book struct {
	positions map[string]*Position
}

func NewBook() *Book {
	return &Book{positions: make(map[string]*Position)}
}

// Open creates the position for a fill, deriving stop and take prices
// from the entry. Fails if the symbol already has an open position.
func (b *Book) Open(fill market.Fill, stopLossPct, takeProfitPct float64) (*Position, error) {
	if _, exists := b.positions[fill.Symbol]; exists {
		return nil, fmt.Errorf("position already open for %s", fill.Symbol)
	}
	entry := decFromFloat(fill.Price)
	pos := &Position{
		Symbol:       fill.Symbol,
		Quantity:     fill.Quantity,
		EntryPrice:   fill.Price,
		EntryTime:    fill.FilledAt,
		StopPrice:    decToFloat(entry.Mul(decOne.Sub(decFromFloat(stopLossPct)))),
		TakePrice:    decToFloat(entry.Mul(decOne.Add(decFromFloat(takeProfitPct)))),
		CurrentPrice: fill.Price,
	}
	b.positions[fill.Symbol] = pos
	return pos, nil
}

// Restore re-adds a previously persisted position as-is.
func (b *Book) Restore(pos Position) {
	p := pos
	b.positions[p.Symbol] = &p
}

// Mark refreshes the mark-to-market state for a symbol.
func (b *Book) Mark(symbol string, price float64) {
	pos, ok := b.positions[symbol]
	if !ok {
		return
	}
	pos.CurrentPrice = price
	pos.UnrealizedPnL = decToFloat(decFromFloat(price).
		Sub(decFromFloat(pos.EntryPrice)).
		Mul(decFromFloat(pos.Quantity)))
}

// ExitReasonFor evaluates exit conditions in fixed priority: stop-loss
// breach first, then take-profit, then a signal-driven exit. The first
// match wins and the rest are not considered.
func (b *Book) ExitReasonFor(symbol string, price float64, exitSignal bool) (ExitReason, bool) {
	pos, ok := b.positions[symbol]
	if !ok {
		return "", false
	}
	switch {
	case decFromFloat(price).LessThanOrEqual(decFromFloat(pos.StopPrice)):
		return ExitStopLoss, true
	case decFromFloat(price).GreaterThanOrEqual(decFromFloat(pos.TakePrice)):
		return ExitTakeProfit, true
	case exitSignal:
		return ExitSignal, true
	}
	return "", false
}

// Close removes the position and returns its closed-trade record.
// Exactly one record is produced per closure.
func (b *Book) Close(symbol string, price float64, at time.Time, reason ExitReason) (ClosedTrade, bool) {
	pos, ok := b.positions[symbol]
	if !ok {
		return ClosedTrade{}, false
	}
	delete(b.positions, symbol)
	pnl := decFromFloat(price).
		Sub(decFromFloat(pos.EntryPrice)).
		Mul(decFromFloat(pos.Quantity))
	return ClosedTrade{
		ID:         uuid.NewString(),
		Symbol:     pos.Symbol,
		Quantity:   pos.Quantity,
		EntryPrice: pos.EntryPrice,
		ExitPrice:  price,
		EntryTime:  pos.EntryTime,
		ExitTime:   at,
		PnL:        decToFloat(pnl),
		Reason:     reason,
	}, true
}

// Get returns a copy of the open position for a symbol.
func (b *Book) Get(symbol string) (Position, bool) {
	pos, ok := b.positions[symbol]
	if !ok {
		return Position{}, false
	}
	return *pos, true
}

func (b *Book) Has(symbol string) bool {
	_, ok := b.positions[symbol]
	return ok
}

func (b *Book) Count() int {
	return len(b.positions)
}

// All returns copies of the open positions ordered by symbol.
func (b *Book) All() []Position {
	out := make([]Position, 0, len(b.positions))
	for _, pos := range b.positions {
		out = append(out, *pos)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// MarketValue sums quantity times current price over open positions.
func (b *Book) MarketValue() float64 {
	total := decimal.Zero
	for _, pos := range b.positions {
		total = total.Add(decFromFloat(pos.Quantity).Mul(decFromFloat(pos.CurrentPrice)))
	}
	return decToFloat(total)
}

// UnrealizedPnL sums the marked PnL over open positions.
func (b *Book) UnrealizedPnL() float64 {
	total := decimal.Zero
	for _, pos := range b.positions {
		total = total.Add(decFromFloat(pos.Quantity).
			Mul(decFromFloat(pos.CurrentPrice).Sub(decFromFloat(pos.EntryPrice))))
	}
	return decToFloat(total)
}

// Reset drops every open position.
func (b *Book) Reset() {
	b.positions = make(map[string]*Position)
}

var decOne = decimal.NewFromInt(1)

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
