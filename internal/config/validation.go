package config

import (
	"fmt"
	"strings"
)

// Validate rejects out-of-range or inconsistent values. It runs after
// Load and again on every document handed in through the API or the
// file watcher; nothing reaches the engine unvalidated.
func Validate(c *Config) error {
	if c == nil {
		return fmt.Errorf("nil config")
	}
	if err := c.Account.validate(); err != nil {
		return err
	}
	if err := c.Strategy.validate(); err != nil {
		return err
	}
	if err := c.Risk.validate(); err != nil {
		return err
	}
	if len(c.Symbols) == 0 {
		return fmt.Errorf("symbols requires at least one symbol")
	}
	if err := c.Trading.validate(); err != nil {
		return err
	}
	if err := c.Feed.validate(); err != nil {
		return err
	}
	if err := c.Telegram.validate(); err != nil {
		return err
	}
	return nil
}

func (a *AccountConfig) validate() error {
	if a.InitialEquity <= 0 {
		return fmt.Errorf("account.initial_equity must be > 0")
	}
	return nil
}

func (s *StrategyConfig) validate() error {
	if s.SMAFast < 2 || s.SMAFast > 100 {
		return fmt.Errorf("strategy.sma_fast must be in [2,100]")
	}
	if s.SMASlow <= s.SMAFast {
		return fmt.Errorf("strategy.sma_slow must be greater than sma_fast")
	}
	if s.SMASlow > 500 {
		return fmt.Errorf("strategy.sma_slow must be <= 500")
	}
	if s.RSIPeriod < 2 || s.RSIPeriod > 100 {
		return fmt.Errorf("strategy.rsi_period must be in [2,100]")
	}
	if s.RSILower < 0 || s.RSILower >= s.RSIUpper {
		return fmt.Errorf("strategy.rsi_lower must be in [0, rsi_upper)")
	}
	if s.RSIUpper > 100 {
		return fmt.Errorf("strategy.rsi_upper must be <= 100")
	}
	if s.StopLossPct <= 0 || s.StopLossPct > 0.5 {
		return fmt.Errorf("strategy.stop_loss_pct must be in (0, 0.5]")
	}
	if s.TakeProfitPct <= 0 || s.TakeProfitPct > 1 {
		return fmt.Errorf("strategy.take_profit_pct must be in (0, 1]")
	}
	return nil
}

func (r *RiskConfig) validate() error {
	if r.MaxPositionSize <= 0 || r.MaxPositionSize > 1 {
		return fmt.Errorf("risk.max_position_size must be in (0, 1]")
	}
	if r.MaxRiskPerTrade <= 0 || r.MaxRiskPerTrade > 0.1 {
		return fmt.Errorf("risk.max_risk_per_trade must be in (0, 0.1]")
	}
	if r.MaxDrawdown <= 0 || r.MaxDrawdown > 1 {
		return fmt.Errorf("risk.max_drawdown must be in (0, 1]")
	}
	if r.MaxDailyLoss <= 0 || r.MaxDailyLoss > 1 {
		return fmt.Errorf("risk.max_daily_loss must be in (0, 1]")
	}
	if r.MaxPositions < 1 {
		return fmt.Errorf("risk.max_positions must be >= 1")
	}
	return nil
}

func (t *TradingConfig) validate() error {
	if t.CheckInterval < 1 {
		return fmt.Errorf("trading.check_interval must be >= 1 second")
	}
	start, err := minuteOfDay(t.MarketHours.Start)
	if err != nil {
		return fmt.Errorf("trading.market_hours.start: %w", err)
	}
	end, err := minuteOfDay(t.MarketHours.End)
	if err != nil {
		return fmt.Errorf("trading.market_hours.end: %w", err)
	}
	if start >= end {
		return fmt.Errorf("trading.market_hours.start must be before end")
	}
	return nil
}

func (f *FeedConfig) validate() error {
	switch f.Provider {
	case "demo", "http", "binance":
	default:
		return fmt.Errorf("feed.provider must be one of demo/http/binance, got %q", f.Provider)
	}
	if f.Provider == "http" && strings.TrimSpace(f.QuoteURL) == "" {
		return fmt.Errorf("feed.quote_url required for the http provider")
	}
	if f.TimeoutSeconds < 1 {
		return fmt.Errorf("feed.timeout_seconds must be >= 1")
	}
	if f.CacheTTL < 0 {
		return fmt.Errorf("feed.cache_ttl_seconds must be >= 0")
	}
	return nil
}

func (t *TelegramConfig) validate() error {
	if t.Enabled {
		if t.BotToken == "" || t.ChatID == "" {
			return fmt.Errorf("telegram enabled but missing bot_token or chat_id")
		}
	}
	return nil
}
