package model

import (
	"gorm.io/datatypes"
)

// AccountModel is the single persisted account row (id always 1).
type AccountModel struct {
	ID            int64   `gorm:"column:id;primaryKey"`
	Cash          float64 `gorm:"column:cash"`
	InitialEquity float64 `gorm:"column:initial_equity"`
	PeakEquity    float64 `gorm:"column:peak_equity"`
	UpdatedAtUnix int64   `gorm:"column:updated_at"`
}

func (AccountModel) TableName() string { return "account_state" }

type PositionModel struct {
	ID            int64   `gorm:"column:id;primaryKey"`
	Symbol        string  `gorm:"column:symbol;uniqueIndex"`
	Quantity      float64 `gorm:"column:quantity"`
	EntryPrice    float64 `gorm:"column:entry_price"`
	EntryUnix     int64   `gorm:"column:entry_at"`
	StopPrice     float64 `gorm:"column:stop_price"`
	TakePrice     float64 `gorm:"column:take_price"`
	CurrentPrice  float64 `gorm:"column:current_price"`
	UpdatedAtUnix int64   `gorm:"column:updated_at"`
}

func (PositionModel) TableName() string { return "open_positions" }

type TradeModel struct {
	ID            int64          `gorm:"column:id;primaryKey"`
	TradeID       string         `gorm:"column:trade_id;uniqueIndex"`
	Symbol        string         `gorm:"column:symbol;index"`
	Quantity      float64        `gorm:"column:quantity"`
	EntryPrice    float64        `gorm:"column:entry_price"`
	ExitPrice     float64        `gorm:"column:exit_price"`
	EntryUnix     int64          `gorm:"column:entry_at"`
	ExitUnix      int64          `gorm:"column:exit_at;index"`
	PnL           float64        `gorm:"column:pnl"`
	Reason        string         `gorm:"column:reason"`
	Snapshot      datatypes.JSON `gorm:"column:snapshot;type:TEXT"`
	CreatedAtUnix int64          `gorm:"column:created_at"`
}

func (TradeModel) TableName() string { return "closed_trades" }
