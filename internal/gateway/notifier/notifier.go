package notifier

import (
	"autotrader/internal/config"
)

// TextNotifier defines a minimal text notification interface.
// It is intentionally small so different components can depend on it without
// importing concrete implementations (e.g. Telegram).
type TextNotifier interface {
	SendText(text string) error
}

// FromConfig 根据配置构建通知器。未启用或缺少凭据时返回 nil，
// 调用方把 nil 当作静默通道处理。
func FromConfig(cfg config.TelegramConfig) TextNotifier {
	if !cfg.Enabled || cfg.BotToken == "" || cfg.ChatID == "" {
		return nil
	}
	return NewTelegram(cfg.BotToken, cfg.ChatID)
}
