// Package render draws analysis.ChartSpec values with go-chart.
package render

import (
	"bytes"
	"errors"
	"fmt"
	"html"
	"image"
	"image/png"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/zenriquezs/APIReader/src/analysis"
	"github.com/zenriquezs/APIReader/src/logging"
)

// ErrNoData is returned for a chart with nothing to plot.
var ErrNoData = errors.New("chart has no data")

// Format is an output encoding.
type Format int

const (
	PNG Format = iota
	SVG
)

func (f Format) Ext() string {
	if f == SVG {
		return ".svg"
	}
	return ".png"
}

func (f Format) provider() chart.RendererProvider {
	if f == SVG {
		return chart.SVG
	}
	return chart.PNG
}

// ParseFormat accepts "png" or "svg".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "png":
		return PNG, nil
	case "svg":
		return SVG, nil
	default:
		return PNG, fmt.Errorf("unknown chart format %q (want png or svg)", s)
	}
}

// Options controls the output size and the hint overlay (PNG images only).
type Options struct {
	Width  int
	Height int
	Hints  bool
}

func (o Options) size() (int, int) {
	w, h := o.Width, o.Height
	if w <= 0 {
		w = 900
	}
	if h <= 0 {
		h = 420
	}
	return w, h
}

// Hint is the one-line explanation drawn under a chart when hints are on.
func Hint(kind analysis.ChartKind) string {
	switch kind {
	case analysis.ChartBar:
		return "Hint: mean per group over the filtered rows; darker bars are higher."
	case analysis.ChartLine:
		return "Hint: same group means as the bar chart, joined in first-seen group order."
	case analysis.ChartHistogram:
		return "Hint: 20 equal-width bins between the column minimum and maximum."
	case analysis.ChartScatter:
		return "Hint: every filtered row as a point, colored by group."
	default:
		return ""
	}
}

// Render encodes spec into w.
func Render(w io.Writer, spec analysis.ChartSpec, format Format, opts Options) error {
	if spec.Empty() {
		return ErrNoData
	}
	if format == SVG {
		spec = escapeText(spec)
	}
	width, height := opts.size()
	switch spec.Kind {
	case analysis.ChartBar:
		bc := barChart(spec, width, height)
		return bc.Render(format.provider(), w)
	case analysis.ChartHistogram:
		bc := histogramChart(spec, width, height)
		return bc.Render(format.provider(), w)
	case analysis.ChartLine:
		ch := lineChart(spec, width, height)
		return ch.Render(format.provider(), w)
	case analysis.ChartScatter:
		ch := scatterChart(spec, width, height)
		return ch.Render(format.provider(), w)
	default:
		return fmt.Errorf("unsupported chart kind %v", spec.Kind)
	}
}

// escapeText returns a copy of spec with every label XML-escaped. go-chart writes SVG
// text nodes verbatim, and labels come from remote data.
func escapeText(spec analysis.ChartSpec) analysis.ChartSpec {
	spec.Title = html.EscapeString(spec.Title)
	spec.XLabel = html.EscapeString(spec.XLabel)
	spec.YLabel = html.EscapeString(spec.YLabel)
	spec.Column = html.EscapeString(spec.Column)
	spec.GroupColumn = html.EscapeString(spec.GroupColumn)
	groups := make([]analysis.GroupMean, len(spec.Groups))
	for i, g := range spec.Groups {
		g.Label = html.EscapeString(g.Label)
		groups[i] = g
	}
	spec.Groups = groups
	series := make([]analysis.ScatterSeries, len(spec.Series))
	for i, s := range spec.Series {
		s.Label = html.EscapeString(s.Label)
		series[i] = s
	}
	spec.Series = series
	return spec
}

// Image renders spec as a decoded PNG. Failures are logged and replaced by a blank
// placeholder so callers always get something to show.
func Image(spec analysis.ChartSpec, opts Options) image.Image {
	w, h := opts.size()
	var buf bytes.Buffer
	if err := Render(&buf, spec, PNG, opts); err != nil {
		if !errors.Is(err, ErrNoData) {
			logging.Warnf("[render] %s: %v; showing blank fallback", spec.Title, err)
		}
		img := Blank(w, h)
		if opts.Hints {
			return drawHint(img, "No data for "+spec.Title)
		}
		return img
	}
	img, err := png.Decode(&buf)
	if err != nil {
		logging.Warnf("[render] %s decode: %v; showing blank fallback", spec.Title, err)
		return Blank(w, h)
	}
	if opts.Hints {
		return drawHint(img, Hint(spec.Kind))
	}
	return img
}

// WriteFiles renders every spec into dir as <kind>_<column><ext> and returns the
// written paths. Empty charts are skipped.
func WriteFiles(dir string, specs []analysis.ChartSpec, format Format, opts Options) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	var written []string
	for _, spec := range specs {
		if spec.Empty() {
			logging.Infof("[render] skipping %s: no data", spec.Title)
			continue
		}
		path := filepath.Join(dir, spec.FileName()+format.Ext())
		if err := writeFile(path, spec, format, opts); err != nil {
			return written, err
		}
		logging.Debugf("[render] wrote %s", path)
		written = append(written, path)
	}
	return written, nil
}

func writeFile(path string, spec analysis.ChartSpec, format Format, opts Options) error {
	var buf bytes.Buffer
	if format == PNG {
		if err := png.Encode(&buf, Image(spec, opts)); err != nil {
			return fmt.Errorf("encode %s: %w", path, err)
		}
	} else if err := Render(&buf, spec, format, opts); err != nil {
		return fmt.Errorf("render %s: %w", path, err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func background() chart.Style {
	return chart.Style{Padding: chart.Box{Top: 24, Left: 16, Right: 16, Bottom: 28}}
}

func barLayout(n, width int) (barWidth, spacing int) {
	usable := float64(width - 140)
	if usable < 100 {
		usable = 100
	}
	slot := usable / float64(n)
	barWidth = int(math.Max(2, math.Min(60, slot*0.65)))
	spacing = int(math.Max(1, slot-float64(barWidth)))
	return barWidth, spacing
}

func barChart(spec analysis.ChartSpec, width, height int) chart.BarChart {
	minV, maxV := math.Inf(1), math.Inf(-1)
	for _, g := range spec.Groups {
		if math.IsNaN(g.Mean) {
			continue
		}
		minV = math.Min(minV, g.Mean)
		maxV = math.Max(maxV, g.Mean)
	}
	bars := make([]chart.Value, 0, len(spec.Groups))
	for _, g := range spec.Groups {
		v := chart.Value{Label: truncate(g.Label, 14), Value: g.Mean}
		if math.IsNaN(g.Mean) {
			v.Value = 0
			v.Style = chart.Style{FillColor: drawing.ColorTransparent, StrokeColor: drawing.ColorTransparent}
		} else {
			c := blueScale(g.Mean, minV, maxV)
			v.Style = chart.Style{FillColor: c, StrokeColor: c, StrokeWidth: 1}
		}
		bars = append(bars, v)
	}
	lo, hi := zeroBasedBounds(minV, maxV)
	bw, sp := barLayout(len(bars), width)
	return chart.BarChart{
		Title:      spec.Title,
		Width:      width,
		Height:     height,
		Background: background(),
		BarWidth:   bw,
		BarSpacing: sp,
		YAxis: chart.YAxis{
			Name:  spec.YLabel,
			Range: &chart.ContinuousRange{Min: lo, Max: hi},
			Ticks: niceTicks(lo, hi, 6),
		},
		Bars: bars,
	}
}

func histogramChart(spec analysis.ChartSpec, width, height int) chart.BarChart {
	maxCount := 0
	bars := make([]chart.Value, len(spec.Bins))
	fill := drawing.ColorFromHex("4c78a8")
	step := len(spec.Bins) / 5
	if step < 1 {
		step = 1
	}
	for i, b := range spec.Bins {
		if b.Count > maxCount {
			maxCount = b.Count
		}
		label := ""
		if i%step == 0 {
			label = formatTick(b.Lo)
		}
		bars[i] = chart.Value{Label: label, Value: float64(b.Count), Style: chart.Style{FillColor: fill, StrokeColor: fill, StrokeWidth: 1}}
	}
	lo, hi := zeroBasedBounds(0, float64(maxCount))
	bw, sp := barLayout(len(bars), width)
	return chart.BarChart{
		Title:      spec.Title,
		Width:      width,
		Height:     height,
		Background: background(),
		BarWidth:   bw,
		BarSpacing: sp,
		YAxis: chart.YAxis{
			Name:  "count",
			Range: &chart.ContinuousRange{Min: lo, Max: hi},
			Ticks: niceTicks(lo, hi, 6),
		},
		Bars: bars,
	}
}

// categoryAxis places n categories at x = 0..n-1 with half a slot of padding.
func categoryAxis(name string, labels []string) chart.XAxis {
	ticks := append([]chart.Tick{{Value: -0.5, Label: ""}}, categoryTicks(labels)...)
	ticks = append(ticks, chart.Tick{Value: float64(len(labels)) - 0.5, Label: ""})
	return chart.XAxis{
		Name:  name,
		Range: &chart.ContinuousRange{Min: -0.5, Max: float64(len(labels)) - 0.5},
		Ticks: ticks,
	}
}

func valueAxis(name string, minV, maxV float64) chart.YAxis {
	lo, hi := niceAxisBounds(minV, maxV)
	return chart.YAxis{
		Name:  name,
		Range: &chart.ContinuousRange{Min: lo, Max: hi},
		Ticks: niceTicks(lo, hi, 6),
	}
}

func lineChart(spec analysis.ChartSpec, width, height int) chart.Chart {
	labels := make([]string, len(spec.Groups))
	minV, maxV := math.Inf(1), math.Inf(-1)
	for i, g := range spec.Groups {
		labels[i] = g.Label
		if !math.IsNaN(g.Mean) {
			minV = math.Min(minV, g.Mean)
			maxV = math.Max(maxV, g.Mean)
		}
	}
	col := groupColor(0)
	var series []chart.Series
	// NaN means break the line into separate segments
	var xs, ys []float64
	flush := func() {
		if len(xs) == 0 {
			return
		}
		if len(xs) == 1 {
			xs = append(xs, xs[0])
			ys = append(ys, ys[0])
		}
		series = append(series, chart.ContinuousSeries{Name: spec.Column, XValues: xs, YValues: ys, Style: lineStyle(col)})
		xs, ys = nil, nil
	}
	for i, g := range spec.Groups {
		if math.IsNaN(g.Mean) {
			flush()
			continue
		}
		xs = append(xs, float64(i))
		ys = append(ys, g.Mean)
	}
	flush()
	return chart.Chart{
		Title:      spec.Title,
		Width:      width,
		Height:     height,
		Background: background(),
		XAxis:      categoryAxis(spec.XLabel, labels),
		YAxis:      valueAxis(spec.YLabel, minV, maxV),
		Series:     series,
	}
}

func scatterChart(spec analysis.ChartSpec, width, height int) chart.Chart {
	labels := make([]string, len(spec.Series))
	minV, maxV := math.Inf(1), math.Inf(-1)
	series := make([]chart.Series, 0, len(spec.Series))
	for i, s := range spec.Series {
		labels[i] = s.Label
		xs := make([]float64, 0, len(s.Points)+1)
		ys := make([]float64, 0, len(s.Points)+1)
		for _, p := range s.Points {
			xs = append(xs, float64(s.Index))
			ys = append(ys, p.Value)
			minV = math.Min(minV, p.Value)
			maxV = math.Max(maxV, p.Value)
		}
		if len(xs) == 1 {
			xs = append(xs, xs[0])
			ys = append(ys, ys[0])
		}
		series = append(series, chart.ContinuousSeries{Name: truncate(s.Label, 24), XValues: xs, YValues: ys, Style: pointStyle(groupColor(s.Index))})
	}
	ch := chart.Chart{
		Title:      spec.Title,
		Width:      width,
		Height:     height,
		Background: background(),
		XAxis:      categoryAxis(spec.XLabel, labels),
		YAxis:      valueAxis(spec.YLabel, minV, maxV),
		Series:     series,
	}
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}
	return ch
}
