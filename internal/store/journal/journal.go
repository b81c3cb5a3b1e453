package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const defaultCurveLimit = 500

// EquityPoint 一条权益快照，每个交易周期落一条。
type EquityPoint struct {
	ID            int64   `json:"id"`
	Timestamp     int64   `json:"ts"`
	Equity        float64 `json:"equity"`
	Cash          float64 `json:"cash"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
	Positions     int     `json:"positions"`
}

// Journal 持久化权益曲线，供图表接口与重启恢复使用。
type Journal struct {
	mu   sync.Mutex
	db   *sql.DB
	path string
}

// Open 初始化 SQLite 存储。
func Open(path string) (*Journal, error) {
	if path == "" {
		return nil, fmt.Errorf("journal path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)
	if err := ensureJournalSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Journal{db: db, path: path}, nil
}

func ensureJournalSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS equity_journal (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts INTEGER NOT NULL,
			equity REAL NOT NULL,
			cash REAL NOT NULL,
			unrealized_pnl REAL NOT NULL,
			positions INTEGER NOT NULL,
			created_at INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_equity_journal_ts ON equity_journal(ts);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Close 关闭底层 DB。
func (j *Journal) Close() error {
	if j == nil {
		return nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.db == nil {
		return nil
	}
	err := j.db.Close()
	j.db = nil
	return err
}

func (j *Journal) handle() (*sql.DB, error) {
	if j == nil {
		return nil, fmt.Errorf("journal not initialized")
	}
	j.mu.Lock()
	db := j.db
	j.mu.Unlock()
	if db == nil {
		return nil, fmt.Errorf("journal not initialized")
	}
	return db, nil
}

// Append 追加一条快照并返回其 id。
func (j *Journal) Append(ctx context.Context, pt EquityPoint) (int64, error) {
	db, err := j.handle()
	if err != nil {
		return 0, err
	}
	ts := pt.Timestamp
	if ts == 0 {
		ts = time.Now().UnixMilli()
	}
	res, err := db.ExecContext(ctx, `
		INSERT INTO equity_journal (ts, equity, cash, unrealized_pnl, positions, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		ts,
		pt.Equity,
		pt.Cash,
		pt.UnrealizedPnL,
		pt.Positions,
		time.Now().UnixMilli(),
	)
	if err != nil {
		return 0, err
	}
	id, _ := res.LastInsertId()
	return id, nil
}

// Recent 返回最近 limit 条快照，按时间升序，方便直接画曲线。
func (j *Journal) Recent(ctx context.Context, limit int) ([]EquityPoint, error) {
	db, err := j.handle()
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultCurveLimit
	}
	rows, err := db.QueryContext(ctx, `
		SELECT id, ts, equity, cash, unrealized_pnl, positions
		FROM equity_journal
		ORDER BY ts DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []EquityPoint
	for rows.Next() {
		var pt EquityPoint
		if err := rows.Scan(&pt.ID, &pt.Timestamp, &pt.Equity, &pt.Cash, &pt.UnrealizedPnL, &pt.Positions); err != nil {
			return nil, err
		}
		points = append(points, pt)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// 查询按时间倒序取最近 N 条，这里翻转成升序。
	for i, k := 0, len(points)-1; i < k; i, k = i+1, k-1 {
		points[i], points[k] = points[k], points[i]
	}
	return points, nil
}

// Reset 清空全部快照。
func (j *Journal) Reset(ctx context.Context) error {
	db, err := j.handle()
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `DELETE FROM equity_journal`)
	return err
}
