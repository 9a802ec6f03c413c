package analysis

import (
	"math"

	"github.com/zenriquezs/APIReader/src/table"
)

// HistogramBins is the number of equal-width bins of every histogram.
const HistogramBins = 20

// GroupMean is the mean of a numeric column within one group. Mean is NaN when the
// group has no numeric values.
type GroupMean struct {
	Key   string
	Label string
	Mean  float64
	Count int
}

// GroupMeans groups the view by group and averages value per group. Groups come out
// in first-seen order; rows with a null group value are dropped.
func GroupMeans(view *table.View, group, value string) []GroupMean {
	gcol, ok := view.Table().Column(group)
	if !ok {
		return nil
	}
	vcol, ok := view.Table().Column(value)
	if !ok {
		return nil
	}
	idx := map[string]int{}
	var out []GroupMean
	sums := []float64{}
	for _, r := range view.Rows() {
		g := gcol.Values[r]
		if g.Null {
			continue
		}
		i, seen := idx[g.Key()]
		if !seen {
			i = len(out)
			idx[g.Key()] = i
			out = append(out, GroupMean{Key: g.Key(), Label: g.String()})
			sums = append(sums, 0)
		}
		if f, ok := vcol.Values[r].Float(); ok {
			sums[i] += f
			out[i].Count++
		}
	}
	for i := range out {
		if out[i].Count == 0 {
			out[i].Mean = math.NaN()
			continue
		}
		out[i].Mean = sums[i] / float64(out[i].Count)
	}
	return out
}

// Bin is one histogram bucket covering [Lo, Hi); the last bin also includes Hi.
type Bin struct {
	Lo    float64
	Hi    float64
	Count int
}

// Histogram buckets the numeric values of column into HistogramBins equal-width bins
// over [min, max]. A single distinct value is widened to [v-0.5, v+0.5]. No values
// yields nil.
func Histogram(view *table.View, column string) []Bin {
	return histogram(view.Floats(column), HistogramBins)
}

func histogram(vals []float64, n int) []Bin {
	if len(vals) == 0 || n <= 0 {
		return nil
	}
	lo, hi := vals[0], vals[0]
	for _, v := range vals[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if lo == hi {
		lo -= 0.5
		hi += 0.5
	}
	width := (hi - lo) / float64(n)
	bins := make([]Bin, n)
	for i := range bins {
		bins[i].Lo = lo + float64(i)*width
		bins[i].Hi = lo + float64(i+1)*width
	}
	bins[n-1].Hi = hi
	for _, v := range vals {
		i := int((v - lo) / width)
		if i >= n {
			i = n - 1
		}
		if i < 0 {
			i = 0
		}
		bins[i].Count++
	}
	return bins
}

// ScatterPoint is one (group, value) pair of the view.
type ScatterPoint struct {
	Row   int
	Group string
	Value float64
}

// ScatterSeries holds the points of one group. Index is the group's x position.
type ScatterSeries struct {
	Key    string
	Label  string
	Index  int
	Points []ScatterPoint
}

// Scatter splits the view's (group, value) pairs by group in first-seen order. Rows
// with a null group or a non-numeric value are skipped.
func Scatter(view *table.View, group, value string) []ScatterSeries {
	gcol, ok := view.Table().Column(group)
	if !ok {
		return nil
	}
	vcol, ok := view.Table().Column(value)
	if !ok {
		return nil
	}
	idx := map[string]int{}
	var out []ScatterSeries
	for _, r := range view.Rows() {
		g := gcol.Values[r]
		f, ok := vcol.Values[r].Float()
		if g.Null || !ok {
			continue
		}
		i, seen := idx[g.Key()]
		if !seen {
			i = len(out)
			idx[g.Key()] = i
			out = append(out, ScatterSeries{Key: g.Key(), Label: g.String(), Index: i})
		}
		out[i].Points = append(out[i].Points, ScatterPoint{Row: r, Group: g.Key(), Value: f})
	}
	return out
}
