package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"autotrader/internal/account"
	"autotrader/internal/config"
	"autotrader/internal/indicator"
	"autotrader/internal/logger"
	"autotrader/internal/market"
	"autotrader/internal/position"
	"autotrader/internal/scheduler"
	"autotrader/internal/store"
	"autotrader/internal/store/journal"
	"autotrader/internal/strategy"
)

// ErrCycleInProgress is returned by Reset when the state lock is held
// by a running cycle. Callers retry.
var ErrCycleInProgress = errors.New("a trading cycle is in progress")

const (
	defaultHistoryLimit = 50
	defaultCallTimeout  = 10 * time.Second
	persistTimeout      = 5 * time.Second
	maxCurvePoints      = 10000
)

// StatusSnapshot is the externally visible engine state. Equity is cash
// plus the cost basis of open positions; total equity marks positions
// to the latest price.
type StatusSnapshot struct {
	Running        bool                `json:"running"`
	Cash           float64             `json:"cash"`
	Equity         float64             `json:"equity"`
	UnrealizedPnL  float64             `json:"unrealized_pnl"`
	TotalEquity    float64             `json:"total_equity"`
	Positions      []position.Position `json:"positions"`
	PositionsCount int                 `json:"positions_count"`
	LastTick       time.Time           `json:"last_tick"`
	LastError      string              `json:"last_error,omitempty"`
}

// Params collects the engine's collaborators. Store and Journal are
// optional; a nil Notifier disables event delivery.
type Params struct {
	Config   *config.Config
	Feed     market.Feed
	Venue    market.Venue
	Notifier Notifier
	Store    store.Store
	Journal  *journal.Journal
}

// Engine owns all mutable trading state. One exclusive mutex guards it:
// a cycle holds the lock end to end, each control or query operation
// holds it for its own duration, so every read observes a fully
// completed cycle.
type Engine struct {
	mu sync.Mutex

	cfg   *config.Config
	feed  market.Feed
	venue market.Venue
	notif Notifier
	state store.Store
	journ *journal.Journal

	calc *indicator.Calculator
	gen  *strategy.Generator
	book *position.Book
	acct *account.State

	running   bool
	runCancel context.CancelFunc
	runDone   chan struct{}

	lastTick  time.Time
	lastError string

	curve []journal.EquityPoint

	// baseCtx bounds external calls so stopping the run loop does not
	// abort an in-flight cycle's feed or venue call.
	baseCtx context.Context
	nowFn   func() time.Time
}

func New(p Params) (*Engine, error) {
	if p.Config == nil {
		return nil, fmt.Errorf("engine: nil config")
	}
	if p.Feed == nil {
		return nil, fmt.Errorf("engine: nil feed")
	}
	if p.Venue == nil {
		return nil, fmt.Errorf("engine: nil venue")
	}
	cfg := p.Config.Clone()
	e := &Engine{
		cfg:     cfg,
		feed:    p.Feed,
		venue:   p.Venue,
		notif:   p.Notifier,
		state:   p.Store,
		journ:   p.Journal,
		book:    position.NewBook(),
		acct:    account.NewState(cfg.Account.InitialEquity),
		baseCtx: context.Background(),
		nowFn:   time.Now,
	}
	e.rebuildPipeline(cfg)
	return e, nil
}

func (e *Engine) rebuildPipeline(cfg *config.Config) {
	e.calc = indicator.NewCalculator(cfg.Strategy.SMAFast, cfg.Strategy.SMASlow, cfg.Strategy.RSIPeriod)
	e.gen = strategy.NewGenerator(cfg.Strategy.RSILower, cfg.Strategy.RSIUpper)
}

// Start transitions the engine to RUNNING and launches the cycle loop.
// Starting a running engine succeeds without effect.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		logger.Debugf("engine already running")
		return nil
	}
	runCtx, cancel := context.WithCancel(e.baseCtx)
	done := make(chan struct{})
	e.running = true
	e.runCancel = cancel
	e.runDone = done
	interval := e.cfg.Trading.CheckIntervalDuration()
	go e.runLoop(runCtx, interval, done)
	logger.Infof("engine started, check interval %s", interval)
	return nil
}

func (e *Engine) runLoop(ctx context.Context, interval time.Duration, done chan struct{}) {
	defer close(done)
	s := scheduler.NewIntervalScheduler(ctx, interval)
	s.RunImmediately = true
	s.Start(func() { e.Tick() })
}

// Stop transitions to STOPPED. An in-flight cycle runs to completion
// before Stop returns. Stopping a stopped engine succeeds without
// effect.
func (e *Engine) Stop() error {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return nil
	}
	cancel := e.runCancel
	done := e.runDone
	e.running = false
	e.runCancel = nil
	e.runDone = nil
	e.mu.Unlock()

	cancel()
	if done != nil {
		<-done
	}
	logger.Infof("engine stopped")
	return nil
}

// Reset restores the configured initial state: flat book, empty trade
// history, cash back to initial equity, persistence cleared. Rejected
// with ErrCycleInProgress when the state lock is contended.
func (e *Engine) Reset() error {
	if !e.mu.TryLock() {
		return ErrCycleInProgress
	}
	defer e.mu.Unlock()

	e.book.Reset()
	e.acct.SetInitialEquity(e.cfg.Account.InitialEquity)
	e.acct.Reset()
	e.calc.Reset()
	e.gen.Reset()
	e.curve = nil
	e.lastError = ""
	e.lastTick = time.Time{}

	ctx, cancelFn := context.WithTimeout(e.baseCtx, persistTimeout)
	defer cancelFn()
	if e.state != nil {
		if err := e.state.Reset(ctx); err != nil {
			logger.Warnf("reset state store: %v", err)
		}
	}
	if e.journ != nil {
		if err := e.journ.Reset(ctx); err != nil {
			logger.Warnf("reset equity journal: %v", err)
		}
	}
	logger.Infof("engine reset, equity restored to %.2f", e.cfg.Account.InitialEquity)
	return nil
}

// Status reports the externally visible engine state.
func (e *Engine) Status() StatusSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	mv := e.book.MarketValue()
	upl := e.book.UnrealizedPnL()
	total := e.acct.Equity(mv)
	return StatusSnapshot{
		Running:        e.running,
		Cash:           e.acct.Cash(),
		Equity:         decToFloat(decFromFloat(total).Sub(decFromFloat(upl))),
		UnrealizedPnL:  upl,
		TotalEquity:    total,
		Positions:      e.book.All(),
		PositionsCount: e.book.Count(),
		LastTick:       e.lastTick,
		LastError:      e.lastError,
	}
}

// Statistics recomputes aggregate trade statistics from the closed
// trade history.
func (e *Engine) Statistics() account.Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.acct.Stats()
}

// History returns closed trades, most recent first. A non-positive
// limit returns the default page of 50.
func (e *Engine) History(limit int) []position.ClosedTrade {
	e.mu.Lock()
	defer e.mu.Unlock()
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	return e.acct.History(limit)
}

// EquityCurve returns the most recent equity points in ascending time
// order. A non-positive limit returns the full in-memory curve.
func (e *Engine) EquityCurve(limit int) []journal.EquityPoint {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := len(e.curve)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]journal.EquityPoint, limit)
	copy(out, e.curve[n-limit:])
	return out
}

// Config returns a copy of the active configuration.
func (e *Engine) Config() *config.Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg.Clone()
}

// ApplyConfig validates and swaps the configuration atomically. An
// in-flight cycle keeps the snapshot it started with. Changing strategy
// parameters restarts indicator and signal state from empty; changing
// the check interval restarts the run loop.
func (e *Engine) ApplyConfig(cfg *config.Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}

	e.mu.Lock()
	prev := e.cfg
	e.cfg = cfg.Clone()
	if pipelineChanged(prev, e.cfg) {
		e.rebuildPipeline(e.cfg)
		logger.Infof("strategy parameters changed, indicator windows restarted")
	}
	// A changed starting balance only takes effect while the account is
	// untouched; otherwise it applies at the next reset.
	if prev.Account.InitialEquity != e.cfg.Account.InitialEquity &&
		e.book.Count() == 0 && len(e.acct.Trades()) == 0 {
		e.acct.SetInitialEquity(e.cfg.Account.InitialEquity)
		e.acct.Reset()
	}
	restart := e.running && prev.Trading.CheckInterval != e.cfg.Trading.CheckInterval
	e.mu.Unlock()

	if restart {
		if err := e.Stop(); err != nil {
			return err
		}
		if err := e.Start(); err != nil {
			return err
		}
		logger.Infof("check interval changed, run loop restarted")
	}
	return nil
}

func pipelineChanged(prev, next *config.Config) bool {
	a, b := prev.Strategy, next.Strategy
	return a.SMAFast != b.SMAFast ||
		a.SMASlow != b.SMASlow ||
		a.RSIPeriod != b.RSIPeriod ||
		a.RSILower != b.RSILower ||
		a.RSIUpper != b.RSIUpper
}
