package app

import (
	"context"
	"fmt"

	"autotrader/internal/config"
	"autotrader/internal/engine"
	"autotrader/internal/logger"
	"autotrader/internal/store"
	"autotrader/internal/store/journal"
	apihttp "autotrader/internal/transport/http"

	"golang.org/x/sync/errgroup"
)

// App 负责应用级编排：加载配置→初始化依赖→启动引擎与 HTTP 服务。
type App struct {
	cfg     *config.Config
	engine  *engine.Engine
	watcher *config.Watcher
	api     *apihttp.Server
	store   store.Store
	journal *journal.Journal
}

// NewApp 根据配置构建应用对象（不启动）。configPath 用于配置热加载与
// 保存，传空字符串则两者关闭。
func NewApp(cfg *config.Config, configPath string) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	return NewAppBuilder(cfg, WithConfigPath(configPath)).Build(context.Background())
}

// Run 恢复持久化状态、启动交易引擎并阻塞运行 HTTP 服务，直到 ctx 取消。
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	defer a.closeStores()

	if err := a.engine.Restore(ctx); err != nil {
		return fmt.Errorf("restore state: %w", err)
	}

	if a.watcher != nil {
		a.watcher.Subscribe(func(next *config.Config) {
			if err := a.engine.ApplyConfig(next); err != nil {
				logger.Errorf("hot reload rejected: %v", err)
			}
		})
	}

	if err := a.engine.Start(); err != nil {
		return fmt.Errorf("start engine: %w", err)
	}

	group, ctx := errgroup.WithContext(ctx)

	if a.api != nil {
		group.Go(func() error {
			if err := a.api.Start(ctx); err != nil {
				return fmt.Errorf("api server error: %w", err)
			}
			return nil
		})
	}

	// The engine loop ignores ctx so an in-flight cycle can finish;
	// Stop waits for it before Run returns and the stores close.
	group.Go(func() error {
		<-ctx.Done()
		if err := a.engine.Stop(); err != nil {
			logger.Warnf("engine stop: %v", err)
		}
		return nil
	})

	return group.Wait()
}

// Engine exposes the underlying engine instance (for testing/replay harnesses).
func (a *App) Engine() *engine.Engine {
	if a == nil {
		return nil
	}
	return a.engine
}

func (a *App) closeStores() {
	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			logger.Warnf("journal close: %v", err)
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			logger.Warnf("store close: %v", err)
		}
	}
}
