package apihttp

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/gin-gonic/gin"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"

	"autotrader/internal/logger"
	"autotrader/internal/store/journal"
)

const (
	defaultChartPoints = 500
	maxChartPoints     = 5000

	chartWidthPx  = 1200
	chartHeightPx = 560

	colorBackground    = "#060c1b"
	colorTextPrimary   = "#eceff4"
	colorTextSecondary = "#9ca3af"
	colorEquity        = "#34d399"
	colorCash          = "#3b82f6"
)

func (r *Router) handleChart(c *gin.Context) {
	points := r.chartPoints(c)
	html, err := buildEquityChartHTML(points)
	if err != nil {
		logger.Errorf("[api] chart render failed ip=%s err=%v", c.ClientIP(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", html)
}

func (r *Router) handleChartPNG(c *gin.Context) {
	if err := ensureHeadlessAvailable(c.Request.Context()); err != nil {
		logger.Warnf("[api] chart.png unavailable ip=%s err=%v", c.ClientIP(), err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "headless browser unavailable"})
		return
	}
	points := r.chartPoints(c)
	html, err := buildEquityChartHTML(points)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	png, err := renderHTMLToPNG(c.Request.Context(), html, chartWidthPx, chartHeightPx+80)
	if err != nil {
		logger.Errorf("[api] chart.png render failed ip=%s err=%v", c.ClientIP(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

func (r *Router) chartPoints(c *gin.Context) []journal.EquityPoint {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultChartPoints)))
	if limit <= 0 {
		limit = defaultChartPoints
	}
	if limit > maxChartPoints {
		limit = maxChartPoints
	}
	return r.engine.EquityCurve(limit)
}

func buildEquityChartHTML(points []journal.EquityPoint) ([]byte, error) {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Theme:           types.ThemeWesteros,
			Width:           fmt.Sprintf("%dpx", chartWidthPx),
			Height:          fmt.Sprintf("%dpx", chartHeightPx),
			BackgroundColor: colorBackground,
			PageTitle:       "Equity Curve",
		}),
		charts.WithTitleOpts(opts.Title{
			Title:         "Equity Curve",
			Subtitle:      fmt.Sprintf("%d points", len(points)),
			Left:          "left",
			TitleStyle:    &opts.TextStyle{Color: colorTextPrimary, FontSize: 18},
			SubtitleStyle: &opts.TextStyle{Color: colorTextSecondary},
		}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), TextStyle: &opts.TextStyle{Color: colorTextPrimary}}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", XAxisIndex: []int{0}}),
		charts.WithXAxisOpts(opts.XAxis{
			Type:      "category",
			AxisLabel: &opts.AxisLabel{Color: colorTextSecondary},
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Scale:     opts.Bool(true),
			AxisLabel: &opts.AxisLabel{Color: colorTextSecondary},
			SplitLine: &opts.SplitLine{Show: opts.Bool(true), LineStyle: &opts.LineStyle{Color: colorTextSecondary, Opacity: opts.Float(0.2)}},
		}),
	)

	xAxis := make([]string, len(points))
	equity := make([]opts.LineData, len(points))
	cash := make([]opts.LineData, len(points))
	for i, pt := range points {
		xAxis[i] = time.UnixMilli(pt.Timestamp).UTC().Format("01-02 15:04")
		equity[i] = opts.LineData{Value: pt.Equity}
		cash[i] = opts.LineData{Value: pt.Cash}
	}
	line.SetXAxis(xAxis)
	line.AddSeries("Total Equity", equity,
		charts.WithLineStyleOpts(opts.LineStyle{Color: colorEquity, Width: 2}),
		charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false), Smooth: opts.Bool(true)}),
	)
	line.AddSeries("Cash", cash,
		charts.WithLineStyleOpts(opts.LineStyle{Color: colorCash, Width: 2}),
		charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false), Smooth: opts.Bool(true)}),
	)

	page := components.NewPage()
	page.SetLayout(components.PageFlexLayout)
	page.AddCharts(line)

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

var (
	headlessOnce sync.Once
	headlessErr  error
)

func ensureHeadlessAvailable(ctx context.Context) error {
	headlessOnce.Do(func() {
		targetCtx := ctx
		if targetCtx == nil {
			targetCtx = context.Background()
		}
		parent, cancel := chromedp.NewContext(targetCtx)
		if cancel != nil {
			defer cancel()
		}
		headlessErr = chromedp.Run(parent)
	})
	return headlessErr
}

func renderHTMLToPNG(ctx context.Context, html []byte, width, height int) ([]byte, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	parent, cancel := chromedp.NewContext(ctx)
	defer cancel()

	timeoutCtx, cancelTimeout := context.WithTimeout(parent, 20*time.Second)
	defer cancelTimeout()

	dataURI := "data:text/html;base64," + base64.StdEncoding.EncodeToString(html)
	var screenshot []byte
	tasks := chromedp.Tasks{
		chromedp.EmulateViewport(int64(width), int64(height)),
		chromedp.Navigate(dataURI),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(1500 * time.Millisecond),
		chromedp.FullScreenshot(&screenshot, 0),
	}
	if err := chromedp.Run(timeoutCtx, tasks...); err != nil {
		return nil, err
	}
	return screenshot, nil
}
