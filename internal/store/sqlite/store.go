package sqlite

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"autotrader/internal/store"
	"autotrader/internal/store/model"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Only one account row exists.
const accountRowID = 1

// SqliteStore implements store.Store using Gorm + SQLite.
type SqliteStore struct {
	db *gorm.DB
}

var _ store.Store = (*SqliteStore)(nil)

func NewSqliteStore(path string) (*SqliteStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	models := []interface{}{
		&model.AccountModel{},
		&model.PositionModel{},
		&model.TradeModel{},
	}
	if err := db.AutoMigrate(models...); err != nil {
		return nil, err
	}
	if sqlDB, err := db.DB(); err == nil {
		// SQLite + WAL: allow a small amount of parallelism for
		// concurrent HTTP reads while keeping lock contention low.
		sqlDB.SetMaxOpenConns(2)
		sqlDB.SetMaxIdleConns(2)
	}
	return &SqliteStore{db: db}, nil
}

func (s *SqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *SqliteStore) SaveAccount(ctx context.Context, acct model.AccountModel) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlite store not initialized")
	}
	acct.ID = accountRowID
	acct.UpdatedAtUnix = time.Now().Unix()
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, UpdateAll: true}).
		Create(&acct).Error
}

func (s *SqliteStore) LoadAccount(ctx context.Context) (*model.AccountModel, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlite store not initialized")
	}
	var m model.AccountModel
	err := s.db.WithContext(ctx).First(&m, accountRowID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *SqliteStore) ReplacePositions(ctx context.Context, positions []model.PositionModel) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlite store not initialized")
	}
	now := time.Now().Unix()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&model.PositionModel{}).Error; err != nil {
			return err
		}
		if len(positions) == 0 {
			return nil
		}
		for i := range positions {
			positions[i].ID = 0
			positions[i].UpdatedAtUnix = now
		}
		return tx.Create(&positions).Error
	})
}

func (s *SqliteStore) ListPositions(ctx context.Context) ([]model.PositionModel, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlite store not initialized")
	}
	var out []model.PositionModel
	if err := s.db.WithContext(ctx).Order("symbol").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// SaveTrade inserts a closed trade. Re-saving an already persisted
// trade id is a no-op, so a crash between commit and restart cannot
// duplicate history.
func (s *SqliteStore) SaveTrade(ctx context.Context, trade model.TradeModel) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlite store not initialized")
	}
	trade.ID = 0
	trade.CreatedAtUnix = time.Now().Unix()
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "trade_id"}}, DoNothing: true}).
		Create(&trade).Error
}

func (s *SqliteStore) ListTrades(ctx context.Context, limit int) ([]model.TradeModel, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlite store not initialized")
	}
	q := s.db.WithContext(ctx).Order("exit_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []model.TradeModel
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SqliteStore) Reset(ctx context.Context) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlite store not initialized")
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, m := range []any{&model.TradeModel{}, &model.PositionModel{}, &model.AccountModel{}} {
			if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(m).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
