package config

import (
	"fmt"
	"strings"
	"sync"

	"autotrader/internal/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// ChangeListener 在配置变更时被调用。
type ChangeListener func(*Config)

// Watcher 监听配置文件的变更并热加载。编辑出错时保留上一份有效配置。
type Watcher struct {
	path string
	v    *viper.Viper

	mu        sync.RWMutex
	current   *Config
	listeners []ChangeListener
}

// NewWatcher 以 initial 为当前配置开始监听 path 的 FS 事件。
func NewWatcher(path string, initial *Config) (*Watcher, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("config watcher requires path")
	}
	if initial == nil {
		return nil, fmt.Errorf("config watcher requires initial config")
	}
	v := viper.New()
	v.SetConfigFile(path)
	w := &Watcher{path: path, v: v, current: initial.Clone()}
	v.OnConfigChange(func(evt fsnotify.Event) {
		if err := w.reload(); err != nil {
			logger.Errorf("config reload failed (%s): %v", evt.Name, err)
			return
		}
		logger.Infof("config reloaded: %s", w.path)
		w.notify()
	})
	v.WatchConfig()
	return w, nil
}

// Current 返回当前配置快照（深拷贝）。
func (w *Watcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current.Clone()
}

// Subscribe 注册监听器，并立即收到一次完整快照。
func (w *Watcher) Subscribe(fn ChangeListener) {
	if fn == nil {
		return
	}
	w.mu.Lock()
	w.listeners = append(w.listeners, fn)
	snap := w.current.Clone()
	w.mu.Unlock()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Errorf("config listener panic: %v", r)
			}
		}()
		fn(snap)
	}()
}

func (w *Watcher) reload() error {
	cfg, err := Load(w.path)
	if err != nil {
		return err
	}
	w.mu.Lock()
	w.current = cfg
	w.mu.Unlock()
	return nil
}

func (w *Watcher) notify() {
	w.mu.RLock()
	listeners := make([]ChangeListener, len(w.listeners))
	copy(listeners, w.listeners)
	snap := w.current.Clone()
	w.mu.RUnlock()
	for _, fn := range listeners {
		func(cb ChangeListener) {
			defer func() {
				if r := recover(); r != nil {
					logger.Errorf("config listener panic: %v", r)
				}
			}()
			cb(snap)
		}(fn)
	}
}
