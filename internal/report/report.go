// Package report renders charts from conversion results: point counts per
// frame from the catalog and a bird's-eye preview of a single cloud.
package report

import (
	"errors"
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/waymo2bag/internal/db"
	"github.com/banshee-data/waymo2bag/internal/lidar"
)

// ErrNoData is returned when there is nothing to draw.
var ErrNoData = errors.New("report: no data")

// MaxScatterPoints bounds the number of points in a bird's-eye chart.
const MaxScatterPoints = 20000

var viridis = []string{"#440154", "#482777", "#3e4989", "#31688e", "#26828e", "#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725"}

// PlotPointCounts draws one line per sensor of points written per frame
// and saves it to path. The image format follows the file extension.
func PlotPointCounts(stats []db.FrameStat, path string) error {
	p, err := pointCountPlot(stats)
	if err != nil {
		return err
	}
	if err := p.Save(14*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	return nil
}

// WritePointCounts is PlotPointCounts for an arbitrary writer, as PNG.
func WritePointCounts(stats []db.FrameStat, w io.Writer) error {
	p, err := pointCountPlot(stats)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(14*vg.Inch, 6*vg.Inch, "png")
	if err != nil {
		return err
	}
	_, err = wt.WriteTo(w)
	return err
}

func pointCountPlot(stats []db.FrameStat) (*plot.Plot, error) {
	if len(stats) == 0 {
		return nil, ErrNoData
	}
	bySensor := make(map[string]plotter.XYs)
	for _, s := range stats {
		bySensor[s.Sensor] = append(bySensor[s.Sensor], plotter.XY{X: float64(s.FrameIndex), Y: float64(s.Points)})
	}
	sensors := make([]string, 0, len(bySensor))
	for name := range bySensor {
		sensors = append(sensors, name)
	}
	sort.Strings(sensors)

	p := plot.New()
	p.Title.Text = "Points per frame"
	p.X.Label.Text = "Frame"
	p.Y.Label.Text = "Points"
	p.Add(plotter.NewGrid())

	for i, name := range sensors {
		pts := bySensor[name]
		sort.Slice(pts, func(a, b int) bool { return pts[a].X < pts[b].X })
		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, fmt.Errorf("sensor %s: %w", name, err)
		}
		line.Color = plotutil.Color(i)
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(name, line)
	}
	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10
	return p, nil
}

// birdsEyeData decimates cloud to at most max points by taking every
// stride-th point. It returns the data, the stride and the extent of the
// kept points.
func birdsEyeData(cloud *lidar.Cloud, max int) (data []opts.ScatterData, stride int, extent, minI, maxI float64) {
	n := cloud.Len()
	stride = 1
	if max > 0 && n > max {
		stride = (n + max - 1) / max
	}
	data = make([]opts.ScatterData, 0, n/stride+1)
	minI, maxI = math.Inf(1), math.Inf(-1)
	for i := 0; i < n; i += stride {
		p := cloud.Points[i]
		x, y, intensity := float64(p[0]), float64(p[1]), float64(p[3])
		extent = math.Max(extent, math.Max(math.Abs(x), math.Abs(y)))
		minI = math.Min(minI, intensity)
		maxI = math.Max(maxI, intensity)
		data = append(data, opts.ScatterData{Value: []interface{}{x, y, intensity}})
	}
	return data, stride, extent, minI, maxI
}

// RenderBirdsEye writes an HTML scatter of the cloud's x/y coloured by
// intensity.
func RenderBirdsEye(cloud *lidar.Cloud, title string, w io.Writer) error {
	if cloud.Len() == 0 {
		return ErrNoData
	}
	data, stride, extent, minI, maxI := birdsEyeData(cloud, MaxScatterPoints)
	pad := math.Ceil(extent/10) * 10
	if maxI <= minI {
		maxI = minI + 1
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Theme: "dark", Width: "900px", Height: "900px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: fmt.Sprintf("points=%d shown=%d stride=%d", cloud.Len(), len(data), stride)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: -pad, Max: pad, Name: "X (m)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: -pad, Max: pad, Name: "Y (m)", NameLocation: "middle", NameGap: 30}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        float32(minI),
			Max:        float32(maxI),
			Dimension:  "2",
			InRange:    &opts.VisualMapInRange{Color: viridis},
		}),
	)
	scatter.AddSeries("points", data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 2}))
	return scatter.Render(w)
}
