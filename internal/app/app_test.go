package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"autotrader/internal/config"
	"autotrader/internal/store/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func appTestConfig() *config.Config {
	return &config.Config{
		App:     config.AppConfig{LogLevel: "error", ListenAddr: "127.0.0.1:0"},
		Account: config.AccountConfig{InitialEquity: 10000, DemoMode: true},
		Strategy: config.StrategyConfig{
			SMAFast: 2, SMASlow: 3, RSIPeriod: 3,
			RSILower: 30, RSIUpper: 70,
			StopLossPct: 0.02, TakeProfitPct: 0.05,
		},
		Risk: config.RiskConfig{
			MaxPositionSize: 0.5, MaxRiskPerTrade: 0.02,
			MaxDrawdown: 0.2, MaxDailyLoss: 0.1, MaxPositions: 3,
		},
		Symbols: []string{"AAPL"},
		Trading: config.TradingConfig{
			CheckInterval: 1,
			MarketHours:   config.MarketHours{Start: "09:30", End: "16:00"},
			TestMode:      true,
		},
		Feed: config.FeedConfig{Provider: "demo", TimeoutSeconds: 5},
	}
}

type nullStore struct{ closed bool }

func (s *nullStore) SaveAccount(context.Context, model.AccountModel) error { return nil }
func (s *nullStore) LoadAccount(context.Context) (*model.AccountModel, error) {
	return nil, nil
}
func (s *nullStore) ReplacePositions(context.Context, []model.PositionModel) error { return nil }
func (s *nullStore) ListPositions(context.Context) ([]model.PositionModel, error) {
	return nil, nil
}
func (s *nullStore) SaveTrade(context.Context, model.TradeModel) error { return nil }
func (s *nullStore) ListTrades(context.Context, int) ([]model.TradeModel, error) {
	return nil, nil
}
func (s *nullStore) Reset(context.Context) error { return nil }
func (s *nullStore) Close() error {
	s.closed = true
	return nil
}

func TestNewAppRequiresConfig(t *testing.T) {
	_, err := NewApp(nil, "")
	require.Error(t, err)
}

func TestBuildWiresCollaborators(t *testing.T) {
	a, err := NewAppBuilder(appTestConfig()).Build(context.Background())
	require.NoError(t, err)
	require.NotNil(t, a.Engine())
	assert.NotNil(t, a.api)
	assert.Nil(t, a.watcher, "no config path means no hot reload")
	assert.Nil(t, a.store)
	assert.Nil(t, a.journal)
	assert.False(t, a.Engine().Status().Running)
}

func TestBuildWatchesConfigFile(t *testing.T) {
	cfg := appTestConfig()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, config.Save(cfg, path))

	a, err := NewAppBuilder(cfg, WithConfigPath(path)).Build(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, a.watcher)
}

func TestBuildRejectsLiveMode(t *testing.T) {
	cfg := appTestConfig()
	cfg.Account.DemoMode = false
	_, err := NewAppBuilder(cfg).Build(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "demo_mode")
}

func TestBuildRejectsUnknownFeed(t *testing.T) {
	cfg := appTestConfig()
	cfg.Feed.Provider = "bogus"
	_, err := NewAppBuilder(cfg).Build(context.Background())
	require.Error(t, err)
}

func TestBuildStorageOverride(t *testing.T) {
	st := &nullStore{}
	a, err := NewAppBuilder(appTestConfig(), WithStorage(st, nil)).Build(context.Background())
	require.NoError(t, err)
	assert.Same(t, st, a.store)
}

func TestRunLifecycle(t *testing.T) {
	st := &nullStore{}
	a, err := NewAppBuilder(appTestConfig(), WithStorage(st, nil)).Build(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- a.Run(ctx) }()

	require.Eventually(t, func() bool {
		return a.Engine().Status().Running
	}, 3*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("app did not shut down")
	}
	assert.False(t, a.Engine().Status().Running)
	assert.True(t, st.closed, "stores must close on shutdown")
}
