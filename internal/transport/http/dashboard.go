package apihttp

import (
	_ "embed"
	"net/http"

	"github.com/gin-gonic/gin"
)

//go:embed dashboard/index.html
var dashboardPage []byte

// registerDashboard 挂载内嵌的单页控制台，页面自行轮询 /api 接口。
func registerDashboard(router *gin.Engine) {
	serve := func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", dashboardPage)
	}
	router.GET("/", serve)
	router.GET("/dashboard", serve)
}
