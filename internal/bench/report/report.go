// Package report renders benchmark results as an interactive HTML page and
// as static PNG charts.
package report

import (
	"fmt"
	"io"
	"slices"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/octree.report/internal/db"
)

// echartsAssetsPrefix serves the echarts bundle from the public CDN.
const echartsAssetsPrefix = "https://go-echarts.github.io/go-echarts-assets/assets/"

// DepthPoint is the pooled cost of one depth across files.
type DepthPoint struct {
	Depth            int
	Files            int
	Candidates       int
	Bits             float64
	BitsPerCandidate float64
}

// ByDepth pools the level costs of successful results, coarsest depth
// first.
func ByDepth(results []db.Result) []DepthPoint {
	pooled := make(map[int]*DepthPoint)
	for _, r := range results {
		if r.Status != db.StatusOK {
			continue
		}
		for _, lc := range r.LevelCosts {
			p := pooled[lc.Depth]
			if p == nil {
				p = &DepthPoint{Depth: lc.Depth}
				pooled[lc.Depth] = p
			}
			p.Files++
			p.Candidates += lc.Candidates
			p.Bits += lc.LowerBits + lc.UpperBits
		}
	}
	out := make([]DepthPoint, 0, len(pooled))
	for _, p := range pooled {
		if p.Candidates > 0 {
			p.BitsPerCandidate = p.Bits / float64(p.Candidates)
		}
		out = append(out, *p)
	}
	slices.SortFunc(out, func(a, b DepthPoint) int { return b.Depth - a.Depth })
	return out
}

// WriteHTML renders a page with a bar chart of bits per point per file and
// a line chart of bits per candidate per depth.
func WriteHTML(w io.Writer, title string, results []db.Result) error {
	var files []string
	var bpp []opts.BarData
	failed := 0
	for _, r := range results {
		if r.Status != db.StatusOK {
			failed++
			continue
		}
		files = append(files, r.RelPath)
		bpp = append(bpp, opts.BarData{Value: r.BPP})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "100%", Height: "600px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "Bits per point", Subtitle: fmt.Sprintf("files=%d failed=%d", len(files), failed)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "bpp"}),
	)
	bar.SetXAxis(files).AddSeries("bpp", bpp)

	depths := ByDepth(results)
	labels := make([]string, len(depths))
	perCandidate := make([]opts.LineData, len(depths))
	for i, d := range depths {
		labels[i] = strconv.Itoa(d.Depth)
		perCandidate[i] = opts.LineData{Value: d.BitsPerCandidate}
	}
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "480px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "Bits per candidate by depth", Subtitle: "coarsest first"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "depth"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "bits/candidate"}),
	)
	line.SetXAxis(labels).AddSeries("bits/candidate", perCandidate,
		charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
	)

	page := components.NewPage()
	page.SetPageTitle(title)
	page.SetAssetsHost(echartsAssetsPrefix)
	page.AddCharts(bar, line)
	return page.Render(w)
}

// depthPlot builds the static bits-per-candidate chart.
func depthPlot(results []db.Result) (*plot.Plot, error) {
	depths := ByDepth(results)
	pts := make(plotter.XYs, len(depths))
	for i, d := range depths {
		pts[i] = plotter.XY{X: float64(d.Depth), Y: d.BitsPerCandidate}
	}

	p := plot.New()
	p.Title.Text = "Bits per candidate by depth"
	p.X.Label.Text = "depth"
	p.Y.Label.Text = "bits/candidate"
	p.Add(plotter.NewGrid())
	if len(pts) > 0 {
		line, points, err := plotter.NewLinePoints(pts)
		if err != nil {
			return nil, err
		}
		line.Width = vg.Points(1)
		p.Add(line, points)
	}
	return p, nil
}

// WritePNG writes the per-depth chart as a PNG.
func WritePNG(w io.Writer, results []db.Result) error {
	p, err := depthPlot(results)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(10*vg.Inch, 5*vg.Inch, "png")
	if err != nil {
		return err
	}
	_, err = wt.WriteTo(w)
	return err
}

// SavePNG writes the per-depth chart to path.
func SavePNG(path string, results []db.Result) error {
	p, err := depthPlot(results)
	if err != nil {
		return err
	}
	return p.Save(10*vg.Inch, 5*vg.Inch, path)
}
