package backtest

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// EquityPoint 回测过程中的一次权益采样。
type EquityPoint struct {
	Time   time.Time
	Equity float64
}

// WriteEquityReport 把权益曲线渲染成单页 HTML 报表。
func WriteEquityReport(path string, title string, points []EquityPoint) error {
	if len(points) == 0 {
		return fmt.Errorf("没有权益采样，无法出图")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	xAxis := make([]string, 0, len(points))
	series := make([]opts.LineData, 0, len(points))
	for _, p := range points {
		xAxis = append(xAxis, p.Time.UTC().Format("2006-01-02 15:04"))
		series = append(series, opts.LineData{Value: p.Equity})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: "账户权益曲线"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "time"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "equity", Scale: opts.Bool(true)}),
	)
	line.SetXAxis(xAxis)
	line.AddSeries("equity", series, charts.WithLineStyleOpts(opts.LineStyle{Width: 2}))

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("创建报表文件失败: %w", err)
	}
	defer f.Close()
	if err := line.Render(f); err != nil {
		return fmt.Errorf("渲染权益曲线失败: %w", err)
	}
	return nil
}
