package apihttp

import (
	"github.com/gin-gonic/gin"

	"autotrader/internal/account"
	"autotrader/internal/config"
	"autotrader/internal/engine"
	"autotrader/internal/position"
	"autotrader/internal/store/journal"
)

// EngineAPI 是 HTTP 层依赖的引擎控制与查询面。
type EngineAPI interface {
	Start() error
	Stop() error
	Reset() error
	Status() engine.StatusSnapshot
	Statistics() account.Stats
	History(limit int) []position.ClosedTrade
	EquityCurve(limit int) []journal.EquityPoint
	Config() *config.Config
	ApplyConfig(cfg *config.Config) error
}

// Router 暴露 /api 下的引擎接口。
type Router struct {
	engine     EngineAPI
	configPath string
}

// NewRouter 构造 API router。configPath 为空时 POST /config 只应用不落盘。
func NewRouter(eng EngineAPI, configPath string) *Router {
	return &Router{engine: eng, configPath: configPath}
}

// Register 将引擎路由挂载到给定分组下。
func (r *Router) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	group.GET("/status", r.handleStatus)
	group.POST("/start", r.handleStart)
	group.POST("/stop", r.handleStop)
	group.POST("/reset", r.handleReset)
	group.GET("/config", r.handleGetConfig)
	group.POST("/config", r.handleUpdateConfig)
	group.GET("/statistics", r.handleStatistics)
	group.GET("/history", r.handleHistory)
	group.GET("/chart", r.handleChart)
	group.GET("/chart.png", r.handleChartPNG)
}
