package render

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/crossing.report/internal/geometry"
	"github.com/banshee-data/crossing.report/internal/tracking"
)

// ChartSink collects a report into an interactive HTML page: a line chart of
// the trajectories, followed by a bar chart of the counters when any were
// drawn.
type ChartSink struct {
	o          Options
	assetsHost string

	paths *charts.Line

	counterLabel string
	counters     *tracking.Tally
}

// NewChartSink creates an empty page. An empty assetsHost keeps the
// go-echarts default.
func NewChartSink(o Options, assetsHost string) *ChartSink {
	o = o.withDefaults()
	title := o.Title
	if title == "" {
		title = "Trajectories"
	}

	paths := charts.NewLine()
	paths.SetGlobalOptions(
		charts.WithInitializationOpts(initOpts(o, assetsHost)),
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Min: 0, Max: o.Width, Name: "x (px)"}),
		// Values are plotted as height-y so the picture keeps the image
		// orientation.
		charts.WithYAxisOpts(opts.YAxis{Type: "value", Min: 0, Max: o.Height, Name: "y (px, flipped)"}),
	)
	return &ChartSink{o: o, assetsHost: assetsHost, paths: paths}
}

func initOpts(o Options, assetsHost string) opts.Initialization {
	return opts.Initialization{
		PageTitle:  o.Title,
		Width:      fmt.Sprintf("%.0fpx", o.Width),
		Height:     fmt.Sprintf("%.0fpx", o.Height),
		AssetsHost: assetsHost,
	}
}

func (c *ChartSink) lineData(pts []geometry.Point) []opts.LineData {
	data := make([]opts.LineData, len(pts))
	for i, pt := range pts {
		data[i] = opts.LineData{Value: []interface{}{pt.X, c.o.Height - pt.Y}}
	}
	return data
}

// DrawTrack adds one series per track.
func (c *ChartSink) DrawTrack(tv tracking.TrackView) error {
	pts := polyline(tv.Segments)
	if len(pts) == 0 {
		return nil
	}
	name := fmt.Sprintf("track %d (%s)", tv.TrackID, tv.Label)
	c.paths.AddSeries(name, c.lineData(pts),
		charts.WithLineStyleOpts(opts.LineStyle{Color: tv.CSS, Width: 3}),
		charts.WithItemStyleOpts(opts.ItemStyle{Color: tv.CSS}),
	)
	return nil
}

// DrawReference adds the reference as its own series.
func (c *ChartSink) DrawReference(ref geometry.Segment) error {
	c.paths.AddSeries("reference", c.lineData([]geometry.Point{ref.Start, ref.End}),
		charts.WithLineStyleOpts(opts.LineStyle{Color: "#ff0000", Width: 6}),
		charts.WithItemStyleOpts(opts.ItemStyle{Color: "#0000ff"}),
	)
	return nil
}

// DrawCounters records the tally for the bar chart. A later call replaces an
// earlier one.
func (c *ChartSink) DrawCounters(label string, t tracking.Tally) error {
	c.counterLabel = label
	c.counters = &t
	return nil
}

func (c *ChartSink) counterChart() *charts.Bar {
	name := c.counterLabel
	if name == "" {
		name = "crossings"
	}
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(initOpts(c.o, c.assetsHost)),
		charts.WithTitleOpts(opts.Title{Title: "Crossings", Subtitle: CounterText(*c.counters)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis([]string{"In", "Out"}).
		AddSeries(name, []opts.BarData{
			{Value: c.counters.Clockwise},
			{Value: c.counters.CounterClockwise},
		}, charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}))
	return bar
}

// Render writes the HTML page.
func (c *ChartSink) Render(w io.Writer) error {
	page := components.NewPage()
	if c.assetsHost != "" {
		page.SetAssetsHost(c.assetsHost)
	}
	page.AddCharts(c.paths)
	if c.counters != nil {
		page.AddCharts(c.counterChart())
	}
	return page.Render(w)
}
