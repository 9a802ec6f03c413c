package analysis

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zenriquezs/APIReader/src/table"
)

func decode(t *testing.T, body string) *table.Table {
	t.Helper()
	tbl, err := table.Decode([]byte(body))
	require.NoError(t, err)
	return tbl
}

const citySales = `[{"city":"A","sales":10},{"city":"B","sales":20},{"city":"A","sales":30}]`

func TestCitySalesScenario(t *testing.T) {
	tbl := decode(t, citySales)
	a := Analyze(tbl, nil)

	assert.Equal(t, []string{"city"}, a.Classification.Categorical)
	assert.Equal(t, []string{"sales"}, a.Classification.Numeric)
	assert.Equal(t, Selection{"city": {"A", "B"}}, a.Selection)
	assert.Equal(t, 3, a.View.Len())

	require.Len(t, a.Metrics, 1)
	assert.Equal(t, Metric{Column: "sales", Max: 30, OK: true}, a.Metrics[0])
	assert.Equal(t, "30.00", a.Metrics[0].Label())

	means := GroupMeans(a.View, "city", "sales")
	require.Len(t, means, 2)
	assert.Equal(t, "A", means[0].Key)
	assert.Equal(t, 20.0, means[0].Mean)
	assert.Equal(t, "B", means[1].Key)
	assert.Equal(t, 20.0, means[1].Mean)

	require.Len(t, a.Charts, 4)
	assert.Equal(t, "sales Average by city", a.Charts[0].Title)
	assert.Equal(t, "Trend of sales by city", a.Charts[1].Title)
	assert.Equal(t, "Distribution of sales", a.Charts[2].Title)
	assert.Equal(t, "Relationship between city and sales", a.Charts[3].Title)
	assert.Equal(t, a.Charts[0].Groups, a.Charts[1].Groups)
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name        string
		body        string
		categorical []string
		numeric     []string
	}{
		{"mixed", `[{"id":1,"name":"x","ok":true,"price":2.5}]`, []string{"name"}, []string{"id", "price"}},
		{"only numbers", `[{"a":1,"b":2}]`, []string{"a"}, []string{"a", "b"}},
		{"only strings", `[{"a":"x","b":"y"}]`, []string{"a", "b"}, []string{"b"}},
		{"single string column", `[{"a":"x"}]`, []string{"a"}, nil},
		{"bool and number", `[{"flag":true,"n":1}]`, []string{"flag"}, []string{"n"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := Classify(decode(t, tc.body))
			assert.Equal(t, tc.categorical, c.Categorical)
			assert.Equal(t, tc.numeric, c.Numeric)
		})
	}

	assert.Equal(t, Classification{}, Classify(table.Empty()))
	assert.Equal(t, Classification{}, Classify(nil))
}

func TestClassify_PartitionIsTotalWithoutFallback(t *testing.T) {
	tbl := decode(t, `[{"a":"x","b":1,"c":"y","d":2.5}]`)
	c := Classify(tbl)
	assert.False(t, c.CategoricalFallback)
	assert.False(t, c.NumericFallback)
	seen := map[string]int{}
	for _, n := range append(append([]string{}, c.Categorical...), c.Numeric...) {
		seen[n]++
	}
	for _, n := range tbl.ColumnNames() {
		assert.Equal(t, 1, seen[n], n)
	}
}

func TestFilter(t *testing.T) {
	tbl := decode(t, `[
		{"city":"A","kind":"x","v":1},
		{"city":"B","kind":"y","v":2},
		{"city":"A","kind":"y","v":3},
		{"city":null,"kind":"x","v":4}
	]`)
	all := tbl.All()

	t.Run("full selection is a no-op", func(t *testing.T) {
		sel := DefaultSelection(tbl, []string{"city", "kind"})
		assert.Equal(t, []string{"A", "B", table.NullKey}, sel["city"])
		assert.True(t, Filter(all, sel).Equal(all))
	})
	t.Run("and across columns, or within", func(t *testing.T) {
		v := Filter(all, Selection{"city": {"A", "B"}, "kind": {"y"}})
		assert.Equal(t, []int{1, 2}, v.Rows())
	})
	t.Run("empty set keeps nothing", func(t *testing.T) {
		assert.Equal(t, 0, Filter(all, Selection{"city": {}}).Len())
	})
	t.Run("unknown column is ignored", func(t *testing.T) {
		assert.Equal(t, 4, Filter(all, Selection{"nope": {"z"}}).Len())
	})
	t.Run("null can be selected", func(t *testing.T) {
		assert.Equal(t, []int{3}, Filter(all, Selection{"city": {table.NullKey}}).Rows())
	})
	t.Run("idempotent", func(t *testing.T) {
		sel := Selection{"city": {"A"}}
		once := Filter(all, sel)
		assert.True(t, Filter(once, sel).Equal(once))
		assert.Equal(t, 4, all.Len())
	})
}

func TestSelectionClone(t *testing.T) {
	s := Selection{"a": {"x"}}
	c := s.Clone()
	c["a"][0] = "y"
	assert.Equal(t, "x", s["a"][0])
	assert.Nil(t, Selection(nil).Clone())
}

func TestOptions(t *testing.T) {
	tbl := decode(t, citySales)
	opts := Options(tbl, []string{"city", "missing"})
	require.Len(t, opts["city"], 2)
	assert.Equal(t, "B", opts["city"][1].Str)
	_, ok := opts["missing"]
	assert.False(t, ok)
}

func TestSummarize(t *testing.T) {
	tbl := decode(t, `[{"c":"a","n":-5,"s":"x"},{"c":"b","n":null,"s":"y"},{"c":"a","n":-2,"s":"z"}]`)

	ms := Summarize(tbl.All(), []string{"n", "s"})
	require.Len(t, ms, 2)
	assert.Equal(t, Metric{Column: "n", Max: -2, OK: true}, ms[0])
	assert.False(t, ms[1].OK, "string fallback column has no numeric values")
	assert.Equal(t, AbsentLabel, ms[1].Label())

	empty := Filter(tbl.All(), Selection{"c": {}})
	ms = Summarize(empty, []string{"n"})
	require.Len(t, ms, 1)
	assert.False(t, ms[0].OK)

	filtered := Filter(tbl.All(), Selection{"c": {"a"}})
	assert.Equal(t, -2.0, Summarize(filtered, []string{"n"})[0].Max)

	assert.Equal(t, "Maximum value of n", ms[0].Help())
	assert.Equal(t, "1,234,567.89", FormatNumber(1234567.891))
}

func TestGroupMeans(t *testing.T) {
	tbl := decode(t, `[
		{"g":"b","v":1},
		{"g":"a","v":null},
		{"g":null,"v":100},
		{"g":"b","v":3},
		{"g":"a","v":null}
	]`)
	means := GroupMeans(tbl.All(), "g", "v")
	require.Len(t, means, 2)
	assert.Equal(t, "b", means[0].Key)
	assert.Equal(t, 2.0, means[0].Mean)
	assert.Equal(t, 2, means[0].Count)
	assert.Equal(t, "a", means[1].Key)
	assert.True(t, math.IsNaN(means[1].Mean))

	assert.Nil(t, GroupMeans(tbl.All(), "missing", "v"))
}

func TestHistogram(t *testing.T) {
	tbl := decode(t, `[{"v":0},{"v":10},{"v":5},{"v":null},{"v":10}]`)
	bins := Histogram(tbl.All(), "v")
	require.Len(t, bins, HistogramBins)
	total := 0
	for _, b := range bins {
		total += b.Count
	}
	assert.Equal(t, 4, total)
	assert.Equal(t, 0.0, bins[0].Lo)
	assert.Equal(t, 10.0, bins[HistogramBins-1].Hi)
	assert.Equal(t, 2, bins[HistogramBins-1].Count, "max lands in the closed last bin")

	single := Histogram(decode(t, `[{"v":3},{"v":3}]`).All(), "v")
	require.Len(t, single, HistogramBins)
	assert.Equal(t, 2.5, single[0].Lo)
	assert.Equal(t, 3.5, single[HistogramBins-1].Hi)

	assert.Nil(t, Histogram(decode(t, `[{"v":null}]`).All(), "v"))
}

func TestScatter(t *testing.T) {
	tbl := decode(t, citySales)
	series := Scatter(tbl.All(), "city", "sales")
	require.Len(t, series, 2)
	assert.Equal(t, "A", series[0].Key)
	assert.Equal(t, 0, series[0].Index)
	assert.Len(t, series[0].Points, 2)
	assert.Equal(t, 30.0, series[0].Points[1].Value)
	assert.Equal(t, 1, series[1].Index)
}

func TestBuildCharts(t *testing.T) {
	tbl := decode(t, `[{"c":"x","n1":1,"n2":2},{"c":"y","n1":3,"n2":4}]`)
	charts := BuildCharts(tbl.All(), []string{"c"}, []string{"n1", "n2"})
	require.Len(t, charts, 8)
	kinds := []ChartKind{ChartBar, ChartLine, ChartHistogram, ChartScatter}
	for i, c := range charts {
		assert.Equal(t, kinds[i%4], c.Kind)
		assert.False(t, c.Empty())
	}
	assert.Equal(t, "n2", charts[4].Column)
	assert.Equal(t, "bar_n2", charts[4].FileName())

	assert.Nil(t, BuildCharts(tbl.All(), nil, []string{"n1"}))
	assert.Nil(t, BuildCharts(tbl.All(), []string{"c"}, nil))

	empty := BuildCharts(Filter(tbl.All(), Selection{"c": {}}), []string{"c"}, []string{"n1"})
	require.Len(t, empty, 4)
	for _, c := range empty {
		assert.True(t, c.Empty())
	}
}

func TestChartFileNameSanitizes(t *testing.T) {
	c := ChartSpec{Kind: ChartScatter, Column: "price (€)/kg"}
	assert.Equal(t, "scatter_price_____kg", c.FileName())
	assert.Equal(t, "histogram_column", ChartSpec{Kind: ChartHistogram}.FileName())
}
