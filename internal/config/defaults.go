package config

import "strings"

const (
	defaultLogLevel   = "info"
	defaultLogPath    = "data/logs/autotrader.log"
	defaultListenAddr = ":8080"

	defaultInitialEquity = 10000.0

	defaultSMAFast       = 10
	defaultSMASlow       = 25
	defaultRSIPeriod     = 14
	defaultRSILower      = 25.0
	defaultRSIUpper      = 75.0
	defaultStopLossPct   = 0.05
	defaultTakeProfitPct = 0.10

	defaultMaxPositionSize = 0.10
	defaultMaxRiskPerTrade = 0.005
	defaultMaxDrawdown     = 0.15
	defaultMaxDailyLoss    = 0.03
	defaultMaxPositions    = 2

	defaultCheckInterval = 60
	defaultMarketOpen    = "09:30"
	defaultMarketClose   = "16:00"

	defaultFeedProvider    = "demo"
	defaultFeedCacheTTL    = 60
	defaultFeedTimeout     = 10
	defaultBinanceInterval = "1m"

	defaultDatabasePath = "data/trader.db"
	defaultJournalPath  = "data/journal.db"
)

func defaultSymbols() []string {
	return []string{"AAPL", "MSFT"}
}

// Default returns a fully defaulted configuration, the same document
// Load writes when the config file does not exist yet.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults(make(keySet))
	return cfg
}

func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Account.applyDefaults(keys)
	c.Strategy.applyDefaults(keys)
	c.Risk.applyDefaults(keys)
	c.Trading.applyDefaults(keys)
	c.Feed.applyDefaults(keys)
	c.Database.applyDefaults(keys)
	if len(c.Symbols) == 0 && !keys.isSet("symbols") {
		c.Symbols = defaultSymbols()
	}
	c.Symbols = normalizeSymbols(c.Symbols)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("app.log_level", &a.LogLevel, defaultLogLevel),
		stringFieldDefault("app.log_path", &a.LogPath, defaultLogPath),
		stringFieldDefault("app.listen_addr", &a.ListenAddr, defaultListenAddr),
	)
}

func (a *AccountConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "account.initial_equity",
			need:  func() bool { return a.InitialEquity <= 0 },
			apply: func() { a.InitialEquity = defaultInitialEquity },
		},
		boolFieldDefault("account.demo_mode", &a.DemoMode, true),
	)
}

func (s *StrategyConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "strategy.sma_fast",
			need:  func() bool { return s.SMAFast <= 0 },
			apply: func() { s.SMAFast = defaultSMAFast },
		},
		fieldDefault{
			key:   "strategy.sma_slow",
			need:  func() bool { return s.SMASlow <= 0 },
			apply: func() { s.SMASlow = defaultSMASlow },
		},
		fieldDefault{
			key:   "strategy.rsi_period",
			need:  func() bool { return s.RSIPeriod <= 0 },
			apply: func() { s.RSIPeriod = defaultRSIPeriod },
		},
		fieldDefault{
			key:   "strategy.rsi_lower",
			need:  func() bool { return s.RSILower <= 0 },
			apply: func() { s.RSILower = defaultRSILower },
		},
		fieldDefault{
			key:   "strategy.rsi_upper",
			need:  func() bool { return s.RSIUpper <= 0 },
			apply: func() { s.RSIUpper = defaultRSIUpper },
		},
		fieldDefault{
			key:   "strategy.stop_loss_pct",
			need:  func() bool { return s.StopLossPct <= 0 },
			apply: func() { s.StopLossPct = defaultStopLossPct },
		},
		fieldDefault{
			key:   "strategy.take_profit_pct",
			need:  func() bool { return s.TakeProfitPct <= 0 },
			apply: func() { s.TakeProfitPct = defaultTakeProfitPct },
		},
	)
}

func (r *RiskConfig) applyDefaults(keys keySet) {
	if r == nil {
		return
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "risk.max_position_size",
			need:  func() bool { return r.MaxPositionSize <= 0 },
			apply: func() { r.MaxPositionSize = defaultMaxPositionSize },
		},
		fieldDefault{
			key:   "risk.max_risk_per_trade",
			need:  func() bool { return r.MaxRiskPerTrade <= 0 },
			apply: func() { r.MaxRiskPerTrade = defaultMaxRiskPerTrade },
		},
		fieldDefault{
			key:   "risk.max_drawdown",
			need:  func() bool { return r.MaxDrawdown <= 0 },
			apply: func() { r.MaxDrawdown = defaultMaxDrawdown },
		},
		fieldDefault{
			key:   "risk.max_daily_loss",
			need:  func() bool { return r.MaxDailyLoss <= 0 },
			apply: func() { r.MaxDailyLoss = defaultMaxDailyLoss },
		},
		fieldDefault{
			key:   "risk.max_positions",
			need:  func() bool { return r.MaxPositions <= 0 },
			apply: func() { r.MaxPositions = defaultMaxPositions },
		},
	)
}

func (t *TradingConfig) applyDefaults(keys keySet) {
	if t == nil {
		return
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "trading.check_interval",
			need:  func() bool { return t.CheckInterval <= 0 },
			apply: func() { t.CheckInterval = defaultCheckInterval },
		},
		stringFieldDefault("trading.market_hours.start", &t.MarketHours.Start, defaultMarketOpen),
		stringFieldDefault("trading.market_hours.end", &t.MarketHours.End, defaultMarketClose),
		boolFieldDefault("trading.test_mode", &t.TestMode, true),
	)
}

func (f *FeedConfig) applyDefaults(keys keySet) {
	if f == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("feed.provider", &f.Provider, defaultFeedProvider),
		fieldDefault{
			key:   "feed.cache_ttl_seconds",
			need:  func() bool { return f.CacheTTL <= 0 },
			apply: func() { f.CacheTTL = defaultFeedCacheTTL },
		},
		fieldDefault{
			key:   "feed.timeout_seconds",
			need:  func() bool { return f.TimeoutSeconds <= 0 },
			apply: func() { f.TimeoutSeconds = defaultFeedTimeout },
		},
		stringFieldDefault("feed.binance.interval", &f.Binance.Interval, defaultBinanceInterval),
	)
	f.Provider = strings.ToLower(strings.TrimSpace(f.Provider))
}

func (d *DatabaseConfig) applyDefaults(keys keySet) {
	if d == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("database.path", &d.Path, defaultDatabasePath),
		stringFieldDefault("database.journal_path", &d.JournalPath, defaultJournalPath),
	)
}

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && strings.TrimSpace(*target) == ""
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func boolFieldDefault(key string, target *bool, def bool) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func normalizeSymbols(symbols []string) []string {
	if len(symbols) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, sym := range symbols {
		s := strings.ToUpper(strings.TrimSpace(sym))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
