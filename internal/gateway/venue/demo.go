package venue

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"autotrader/internal/logger"
	"autotrader/internal/market"
)

// Demo executes orders instantly at the caller's observed price. No
// slippage, no partial fills.
type Demo struct {
	nowFn func() time.Time
	idFn  func() string
}

func NewDemo() *Demo {
	return &Demo{
		nowFn: time.Now,
		idFn:  func() string { return uuid.NewString()[:8] },
	}
}

func (d *Demo) SubmitOrder(ctx context.Context, order market.Order) (market.Fill, error) {
	if err := ctx.Err(); err != nil {
		return market.Fill{}, err
	}
	if strings.TrimSpace(order.Symbol) == "" {
		return market.Fill{}, fmt.Errorf("%w: missing symbol", market.ErrRejected)
	}
	if order.Side != market.SideBuy && order.Side != market.SideSell {
		return market.Fill{}, fmt.Errorf("%w: unknown side %q", market.ErrRejected, order.Side)
	}
	if order.Quantity <= 0 {
		return market.Fill{}, fmt.Errorf("%w: quantity %v not positive", market.ErrRejected, order.Quantity)
	}
	if order.LimitPrice <= 0 {
		return market.Fill{}, fmt.Errorf("%w: no reference price for %s", market.ErrRejected, order.Symbol)
	}

	now := d.nowFn().UTC()
	fill := market.Fill{
		OrderID:  fmt.Sprintf("DEMO_%s_%s", now.Format("20060102_150405"), d.idFn()),
		Symbol:   order.Symbol,
		Side:     order.Side,
		Quantity: order.Quantity,
		Price:    order.LimitPrice,
		FilledAt: now,
	}
	logger.Infof("demo fill %s: %s %s %.0f @ %.2f", fill.OrderID, fill.Side, fill.Symbol, fill.Quantity, fill.Price)
	return fill, nil
}
