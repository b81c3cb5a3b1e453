package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the full configuration document for the trading bot.
type Config struct {
	App      AppConfig      `yaml:"app" json:"app"`
	Account  AccountConfig  `yaml:"account" json:"account"`
	Strategy StrategyConfig `yaml:"strategy" json:"strategy"`
	Risk     RiskConfig     `yaml:"risk" json:"risk"`
	Symbols  []string       `yaml:"symbols" json:"symbols"`
	Trading  TradingConfig  `yaml:"trading" json:"trading"`
	Feed     FeedConfig     `yaml:"feed" json:"feed"`
	Telegram TelegramConfig `yaml:"telegram" json:"telegram"`
	Database DatabaseConfig `yaml:"database" json:"database"`
}

type AppConfig struct {
	LogLevel   string `yaml:"log_level" json:"log_level"`
	LogPath    string `yaml:"log_path" json:"log_path"`
	ListenAddr string `yaml:"listen_addr" json:"listen_addr"`
}

type AccountConfig struct {
	InitialEquity float64 `yaml:"initial_equity" json:"initial_equity"`
	DemoMode      bool    `yaml:"demo_mode" json:"demo_mode"`
}

// StrategyConfig holds the indicator windows and exit thresholds. A
// running cycle reads one immutable snapshot of these values.
type StrategyConfig struct {
	SMAFast       int     `yaml:"sma_fast" json:"sma_fast"`
	SMASlow       int     `yaml:"sma_slow" json:"sma_slow"`
	RSIPeriod     int     `yaml:"rsi_period" json:"rsi_period"`
	RSILower      float64 `yaml:"rsi_lower" json:"rsi_lower"`
	RSIUpper      float64 `yaml:"rsi_upper" json:"rsi_upper"`
	StopLossPct   float64 `yaml:"stop_loss_pct" json:"stop_loss_pct"`
	TakeProfitPct float64 `yaml:"take_profit_pct" json:"take_profit_pct"`
}

type RiskConfig struct {
	MaxPositionSize float64 `yaml:"max_position_size" json:"max_position_size"`
	MaxRiskPerTrade float64 `yaml:"max_risk_per_trade" json:"max_risk_per_trade"`
	MaxDrawdown     float64 `yaml:"max_drawdown" json:"max_drawdown"`
	MaxDailyLoss    float64 `yaml:"max_daily_loss" json:"max_daily_loss"`
	MaxPositions    int     `yaml:"max_positions" json:"max_positions"`
}

type TradingConfig struct {
	CheckInterval int         `yaml:"check_interval" json:"check_interval"` // seconds between cycles
	MarketHours   MarketHours `yaml:"market_hours" json:"market_hours"`
	TestMode      bool        `yaml:"test_mode" json:"test_mode"` // bypasses the market-hours gate
}

// MarketHours is a same-day trading window, weekdays only. Times are
// "HH:MM" strings, for example 09:30 to 16:00.
type MarketHours struct {
	Start string `yaml:"start" json:"start"`
	End   string `yaml:"end" json:"end"`
}

// Contains reports whether t falls inside the window on a weekday.
func (h MarketHours) Contains(t time.Time) bool {
	wd := t.Weekday()
	if wd == time.Saturday || wd == time.Sunday {
		return false
	}
	start, err := minuteOfDay(h.Start)
	if err != nil {
		return false
	}
	end, err := minuteOfDay(h.End)
	if err != nil {
		return false
	}
	now := t.Hour()*60 + t.Minute()
	return now >= start && now < end
}

func minuteOfDay(s string) (int, error) {
	parsed, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	return parsed.Hour()*60 + parsed.Minute(), nil
}

type FeedConfig struct {
	Provider       string        `yaml:"provider" json:"provider"`   // demo | http | binance
	QuoteURL       string        `yaml:"quote_url" json:"quote_url"` // http provider, %s expands to the symbol
	CacheTTL       int           `yaml:"cache_ttl_seconds" json:"cache_ttl_seconds"`
	TimeoutSeconds int           `yaml:"timeout_seconds" json:"timeout_seconds"` // budget per external call
	Binance        BinanceConfig `yaml:"binance" json:"binance"`
}

type BinanceConfig struct {
	APIKey    string `yaml:"api_key" json:"api_key"`
	APISecret string `yaml:"api_secret" json:"api_secret"`
	Interval  string `yaml:"interval" json:"interval"` // kline interval, e.g. "1m"
}

type TelegramConfig struct {
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	BotToken string `yaml:"bot_token" json:"bot_token"`
	ChatID   string `yaml:"chat_id" json:"chat_id"`
}

type DatabaseConfig struct {
	Path        string `yaml:"path" json:"path"`                 // gorm state store; empty disables persistence
	JournalPath string `yaml:"journal_path" json:"journal_path"` // equity journal; empty disables
}

// Clone returns a deep copy safe to hand across the engine boundary.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	out := *c
	out.Symbols = append([]string(nil), c.Symbols...)
	return &out
}

// CheckIntervalDuration returns the cycle interval as a duration.
func (t TradingConfig) CheckIntervalDuration() time.Duration {
	return time.Duration(t.CheckInterval) * time.Second
}

// FeedTimeout returns the per-call budget for feed and venue calls.
func (f FeedConfig) FeedTimeout() time.Duration {
	return time.Duration(f.TimeoutSeconds) * time.Second
}

// keySet tracks the key paths explicitly present in the source
// document so defaults never clobber deliberate zero values.
type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	_, ok := k[path]
	return ok
}

// fieldDefault describes the default rule for a single field.
type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
