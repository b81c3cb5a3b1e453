package store

import (
	"context"

	"autotrader/internal/store/model"
)

// Store persists engine state between restarts. The engine serializes
// all writes; implementations only need to tolerate concurrent reads
// from the HTTP surface.
type Store interface {
	// SaveAccount upserts the single account row.
	SaveAccount(ctx context.Context, acct model.AccountModel) error
	// LoadAccount returns nil when no account row has been written yet.
	LoadAccount(ctx context.Context) (*model.AccountModel, error)

	// ReplacePositions swaps the full open-position set atomically.
	ReplacePositions(ctx context.Context, positions []model.PositionModel) error
	ListPositions(ctx context.Context) ([]model.PositionModel, error)

	SaveTrade(ctx context.Context, trade model.TradeModel) error
	// ListTrades returns trades most recent first; limit <= 0 means all.
	ListTrades(ctx context.Context, limit int) ([]model.TradeModel, error)

	// Reset drops every persisted row.
	Reset(ctx context.Context) error
	// Close closes the store connection.
	Close() error
}
