package app

import (
	"context"
	"fmt"
	"strings"

	"autotrader/internal/config"
	"autotrader/internal/engine"
	feedgw "autotrader/internal/gateway/feed"
	"autotrader/internal/gateway/notifier"
	venuegw "autotrader/internal/gateway/venue"
	"autotrader/internal/logger"
	"autotrader/internal/market"
	"autotrader/internal/store"
	"autotrader/internal/store/journal"
	"autotrader/internal/store/sqlite"
	apihttp "autotrader/internal/transport/http"
)

// AppBuilder wires the engine's collaborators from configuration. Every
// external dependency sits behind an overridable constructor so tests can
// swap in fakes without touching sockets or databases.
type AppBuilder struct {
	cfg        *config.Config
	configPath string

	feedFn     func(config.FeedConfig) (market.Feed, error)
	venueFn    func(*config.Config) (market.Venue, error)
	notifierFn func(*config.Config) engine.Notifier
	storeFn    func(config.DatabaseConfig) (store.Store, error)
	journalFn  func(config.DatabaseConfig) (*journal.Journal, error)
	serverFn   func(apihttp.ServerConfig) (*apihttp.Server, error)
}

type AppBuilderOption func(*AppBuilder)

func NewAppBuilder(cfg *config.Config, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{
		cfg:        cfg,
		feedFn:     feedgw.New,
		venueFn:    buildVenue,
		notifierFn: buildNotifier,
		storeFn:    buildStore,
		journalFn:  buildJournal,
		serverFn:   apihttp.NewServer,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

func (b *AppBuilder) Build(_ context.Context) (*App, error) {
	if b.cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	cfg := b.cfg.Clone()
	logger.SetLevel(cfg.App.LogLevel)

	fd, err := b.feedFn(cfg.Feed)
	if err != nil {
		return nil, fmt.Errorf("build feed: %w", err)
	}
	vn, err := b.venueFn(cfg)
	if err != nil {
		return nil, fmt.Errorf("build venue: %w", err)
	}

	st, err := b.storeFn(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open state store: %w", err)
	}
	jr, err := b.journalFn(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open equity journal: %w", err)
	}

	eng, err := engine.New(engine.Params{
		Config:   cfg,
		Feed:     fd,
		Venue:    vn,
		Notifier: b.notifierFn(cfg),
		Store:    st,
		Journal:  jr,
	})
	if err != nil {
		return nil, fmt.Errorf("build engine: %w", err)
	}

	var watcher *config.Watcher
	if strings.TrimSpace(b.configPath) != "" {
		watcher, err = config.NewWatcher(b.configPath, cfg)
		if err != nil {
			return nil, fmt.Errorf("watch config: %w", err)
		}
	}

	api, err := b.serverFn(apihttp.ServerConfig{
		Addr:       cfg.App.ListenAddr,
		Engine:     eng,
		ConfigPath: b.configPath,
	})
	if err != nil {
		return nil, fmt.Errorf("build http server: %w", err)
	}

	logger.Infof("✓ watching %d symbols: %s", len(cfg.Symbols), strings.Join(cfg.Symbols, ", "))
	logger.Infof("✓ feed=%s venue=demo store=%v journal=%v",
		feedName(cfg.Feed), st != nil, jr != nil)

	return &App{
		cfg:     cfg,
		engine:  eng,
		watcher: watcher,
		api:     api,
		store:   st,
		journal: jr,
	}, nil
}

func buildVenue(cfg *config.Config) (market.Venue, error) {
	if !cfg.Account.DemoMode {
		return nil, fmt.Errorf("live order routing is not implemented, set account.demo_mode: true")
	}
	return venuegw.NewDemo(), nil
}

func buildNotifier(cfg *config.Config) engine.Notifier {
	return notifier.NewEvents(notifier.FromConfig(cfg.Telegram), cfg.Account.DemoMode)
}

func buildStore(cfg config.DatabaseConfig) (store.Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		logger.Warnf("database.path is empty, account state will not survive restarts")
		return nil, nil
	}
	st, err := sqlite.NewSqliteStore(cfg.Path)
	if err != nil {
		return nil, err
	}
	return st, nil
}

func buildJournal(cfg config.DatabaseConfig) (*journal.Journal, error) {
	if strings.TrimSpace(cfg.JournalPath) == "" {
		return nil, nil
	}
	return journal.Open(cfg.JournalPath)
}

func feedName(cfg config.FeedConfig) string {
	if cfg.Provider == "" {
		return "demo"
	}
	return cfg.Provider
}

func WithConfigPath(path string) AppBuilderOption {
	return func(b *AppBuilder) {
		b.configPath = strings.TrimSpace(path)
	}
}

func WithFeed(fn func(config.FeedConfig) (market.Feed, error)) AppBuilderOption {
	return func(b *AppBuilder) {
		if fn != nil {
			b.feedFn = fn
		}
	}
}

func WithVenue(fn func(*config.Config) (market.Venue, error)) AppBuilderOption {
	return func(b *AppBuilder) {
		if fn != nil {
			b.venueFn = fn
		}
	}
}

func WithNotifier(fn func(*config.Config) engine.Notifier) AppBuilderOption {
	return func(b *AppBuilder) {
		if fn != nil {
			b.notifierFn = fn
		}
	}
}

// WithStorage overrides the persistence layer with ready-made instances.
func WithStorage(st store.Store, jr *journal.Journal) AppBuilderOption {
	return func(b *AppBuilder) {
		if st != nil {
			b.storeFn = func(config.DatabaseConfig) (store.Store, error) { return st, nil }
		}
		if jr != nil {
			b.journalFn = func(config.DatabaseConfig) (*journal.Journal, error) { return jr, nil }
		}
	}
}

func WithHTTPServer(fn func(apihttp.ServerConfig) (*apihttp.Server, error)) AppBuilderOption {
	return func(b *AppBuilder) {
		if fn != nil {
			b.serverFn = fn
		}
	}
}
