package analysis

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/zenriquezs/APIReader/src/table"
)

// ChartKind identifies one of the four per-column charts.
type ChartKind int

const (
	ChartBar ChartKind = iota
	ChartLine
	ChartHistogram
	ChartScatter
)

func (k ChartKind) String() string {
	switch k {
	case ChartBar:
		return "bar"
	case ChartLine:
		return "line"
	case ChartHistogram:
		return "histogram"
	case ChartScatter:
		return "scatter"
	default:
		return "unknown"
	}
}

// ChartSpec is a renderer-independent description of one chart. Only the field
// matching Kind is populated: Groups for bar and line, Bins for histogram, Series
// for scatter.
type ChartSpec struct {
	Kind        ChartKind
	Title       string
	XLabel      string
	YLabel      string
	Column      string
	GroupColumn string
	Groups      []GroupMean
	Bins        []Bin
	Series      []ScatterSeries
}

// Empty reports whether the chart has nothing to plot.
func (c ChartSpec) Empty() bool {
	switch c.Kind {
	case ChartBar, ChartLine:
		for _, g := range c.Groups {
			if g.Count > 0 {
				return false
			}
		}
		return true
	case ChartHistogram:
		return len(c.Bins) == 0
	default:
		return len(c.Series) == 0
	}
}

// FileName is the export name without extension, e.g. "bar_sales".
func (c ChartSpec) FileName() string {
	return c.Kind.String() + "_" + sanitize(c.Column)
}

func sanitize(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "column"
	}
	return b.String()
}

// BuildCharts produces bar, line, histogram and scatter specs for each numeric
// column, grouped by the first categorical column. Nothing is produced unless both
// sets are non-empty.
func BuildCharts(view *table.View, categorical, numeric []string) []ChartSpec {
	if len(categorical) == 0 || len(numeric) == 0 {
		return nil
	}
	group := categorical[0]
	out := make([]ChartSpec, 0, 4*len(numeric))
	for _, n := range numeric {
		// bar and line each aggregate on their own; the data is identical
		out = append(out, ChartSpec{
			Kind:        ChartBar,
			Title:       fmt.Sprintf("%s Average by %s", n, group),
			XLabel:      group,
			YLabel:      n,
			Column:      n,
			GroupColumn: group,
			Groups:      GroupMeans(view, group, n),
		})
		out = append(out, ChartSpec{
			Kind:        ChartLine,
			Title:       fmt.Sprintf("Trend of %s by %s", n, group),
			XLabel:      group,
			YLabel:      n,
			Column:      n,
			GroupColumn: group,
			Groups:      GroupMeans(view, group, n),
		})
		out = append(out, ChartSpec{
			Kind:        ChartHistogram,
			Title:       fmt.Sprintf("Distribution of %s", n),
			XLabel:      n,
			YLabel:      "count",
			Column:      n,
			GroupColumn: group,
			Bins:        Histogram(view, n),
		})
		out = append(out, ChartSpec{
			Kind:        ChartScatter,
			Title:       fmt.Sprintf("Relationship between %s and %s", group, n),
			XLabel:      group,
			YLabel:      n,
			Column:      n,
			GroupColumn: group,
			Series:      Scatter(view, group, n),
		})
	}
	return out
}
