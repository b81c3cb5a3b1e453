package apihttp

import (
	"errors"
	"net/http"
	"strconv"

	"autotrader/internal/config"
	"autotrader/internal/engine"
	"autotrader/internal/logger"

	"github.com/gin-gonic/gin"
)

const maxHistoryLimit = 500

func (r *Router) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, r.engine.Status())
}

func (r *Router) handleStart(c *gin.Context) {
	if err := r.engine.Start(); err != nil {
		logger.Errorf("[api] start failed ip=%s err=%v", c.ClientIP(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	logger.Infof("[api] engine start ip=%s", c.ClientIP())
	c.JSON(http.StatusOK, gin.H{"status": "ok", "running": true})
}

func (r *Router) handleStop(c *gin.Context) {
	if err := r.engine.Stop(); err != nil {
		logger.Errorf("[api] stop failed ip=%s err=%v", c.ClientIP(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	logger.Infof("[api] engine stop ip=%s", c.ClientIP())
	c.JSON(http.StatusOK, gin.H{"status": "ok", "running": false})
}

func (r *Router) handleReset(c *gin.Context) {
	if err := r.engine.Reset(); err != nil {
		if errors.Is(err, engine.ErrCycleInProgress) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		logger.Errorf("[api] reset failed ip=%s err=%v", c.ClientIP(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	logger.Infof("[api] engine reset ip=%s", c.ClientIP())
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (r *Router) handleGetConfig(c *gin.Context) {
	c.JSON(http.StatusOK, redactSecrets(r.engine.Config()))
}

func (r *Router) handleUpdateConfig(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	update, err := config.ValidateUpdate(raw)
	if err != nil {
		logger.Warnf("[api] config update rejected ip=%s err=%v", c.ClientIP(), err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	merged, err := config.Merge(r.engine.Config(), update)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := r.engine.ApplyConfig(merged); err != nil {
		logger.Warnf("[api] config apply rejected ip=%s err=%v", c.ClientIP(), err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if r.configPath != "" {
		if err := config.Save(merged, r.configPath); err != nil {
			logger.Errorf("[api] config save failed ip=%s path=%s err=%v", c.ClientIP(), r.configPath, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "config applied but not saved: " + err.Error()})
			return
		}
	}
	logger.Infof("[api] config updated ip=%s keys=%d", c.ClientIP(), len(update))
	c.JSON(http.StatusOK, gin.H{"status": "ok", "config": redactSecrets(merged)})
}

func (r *Router) handleStatistics(c *gin.Context) {
	c.JSON(http.StatusOK, r.engine.Statistics())
}

func (r *Router) handleHistory(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	if limit < 0 {
		limit = 0
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	trades := r.engine.History(limit)
	c.JSON(http.StatusOK, gin.H{"trades": trades, "count": len(trades)})
}

// redactSecrets 去除配置中的凭据后再返回给调用方。
func redactSecrets(cfg *config.Config) *config.Config {
	if cfg == nil {
		return nil
	}
	out := cfg.Clone()
	if out.Telegram.BotToken != "" {
		out.Telegram.BotToken = "***"
	}
	if out.Feed.Binance.APIKey != "" {
		out.Feed.Binance.APIKey = "***"
	}
	if out.Feed.Binance.APISecret != "" {
		out.Feed.Binance.APISecret = "***"
	}
	return out
}
