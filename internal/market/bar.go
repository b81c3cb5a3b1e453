package market

import (
	"context"
	"errors"
	"time"
)

// Bar is one OHLCV observation for a symbol. Immutable once produced.
type Bar struct {
	Symbol    string    `json:"symbol"`
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Order is a sized request handed to a venue. LimitPrice carries the
// last observed price; the demo venue fills at it.
type Order struct {
	Symbol     string  `json:"symbol"`
	Side       Side    `json:"side"`
	Quantity   float64 `json:"quantity"`
	LimitPrice float64 `json:"limit_price,omitempty"`
}

// Fill reports an executed order.
type Fill struct {
	OrderID  string    `json:"order_id"`
	Symbol   string    `json:"symbol"`
	Side     Side      `json:"side"`
	Quantity float64   `json:"quantity"`
	Price    float64   `json:"price"`
	FilledAt time.Time `json:"filled_at"`
}

// ErrUnavailable marks a transient feed outage; the affected symbol is
// skipped for the cycle and retried on the next one.
var ErrUnavailable = errors.New("market data unavailable")

// ErrRejected marks an order the venue refused to execute.
var ErrRejected = errors.New("order rejected")

// Feed supplies the most recent bar per symbol. Callers bound every
// call with a context deadline so a slow source cannot stall a cycle.
type Feed interface {
	LatestBar(ctx context.Context, symbol string) (Bar, error)
}

// Venue executes orders.
type Venue interface {
	SubmitOrder(ctx context.Context, order Order) (Fill, error)
}
