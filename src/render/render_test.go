package render

import (
	"bytes"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zenriquezs/APIReader/src/analysis"
	"github.com/zenriquezs/APIReader/src/table"
)

func charts(t *testing.T) []analysis.ChartSpec {
	t.Helper()
	tbl, err := table.Decode([]byte(`[
		{"city":"Lima","sales":10,"units":3},
		{"city":"Quito","sales":20,"units":null},
		{"city":"Lima","sales":30,"units":7},
		{"city":"Bogotá","sales":5,"units":1}
	]`))
	require.NoError(t, err)
	return analysis.Analyze(tbl, nil).Charts
}

func TestRender_AllKindsPNGAndSVG(t *testing.T) {
	specs := charts(t)
	require.Len(t, specs, 8)
	for _, spec := range specs {
		var pngBuf bytes.Buffer
		require.NoError(t, Render(&pngBuf, spec, PNG, Options{Width: 800, Height: 360}), spec.Title)
		img, err := png.Decode(&pngBuf)
		require.NoError(t, err)
		assert.Equal(t, 800, img.Bounds().Dx())
		assert.Equal(t, 360, img.Bounds().Dy())

		var svgBuf bytes.Buffer
		require.NoError(t, Render(&svgBuf, spec, SVG, Options{}), spec.Title)
		assert.True(t, strings.Contains(svgBuf.String(), "<svg"), spec.Title)
	}
}

func TestRender_GapsAndSingleGroup(t *testing.T) {
	line := analysis.ChartSpec{
		Kind:   analysis.ChartLine,
		Title:  "gaps",
		Column: "v",
		Groups: []analysis.GroupMean{
			{Key: "a", Label: "a", Mean: 1, Count: 1},
			{Key: "b", Label: "b", Mean: math.NaN()},
			{Key: "c", Label: "c", Mean: 3, Count: 2},
		},
	}
	var buf bytes.Buffer
	assert.NoError(t, Render(&buf, line, PNG, Options{}))

	bar := line
	bar.Kind = analysis.ChartBar
	buf.Reset()
	assert.NoError(t, Render(&buf, bar, PNG, Options{}))

	single := analysis.ChartSpec{
		Kind:   analysis.ChartScatter,
		Title:  "one",
		Series: []analysis.ScatterSeries{{Key: "a", Label: "a", Points: []analysis.ScatterPoint{{Value: 4}}}},
	}
	buf.Reset()
	assert.NoError(t, Render(&buf, single, PNG, Options{}))
}

func TestRender_EmptySpec(t *testing.T) {
	spec := analysis.ChartSpec{Kind: analysis.ChartHistogram, Title: "Distribution of x"}
	var buf bytes.Buffer
	assert.ErrorIs(t, Render(&buf, spec, PNG, Options{}), ErrNoData)

	img := Image(spec, Options{Width: 640, Height: 300, Hints: true})
	require.NotNil(t, img)
	assert.Equal(t, 640, img.Bounds().Dx())
	assert.Equal(t, 300, img.Bounds().Dy())
}

func TestImage_WithHints(t *testing.T) {
	specs := charts(t)
	img := Image(specs[0], Options{Width: 820, Height: 340, Hints: true})
	assert.Equal(t, 820, img.Bounds().Dx())
	for _, k := range []analysis.ChartKind{analysis.ChartBar, analysis.ChartLine, analysis.ChartHistogram, analysis.ChartScatter} {
		assert.True(t, strings.HasPrefix(Hint(k), "Hint:"))
	}
}

func TestWriteFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	specs := append(charts(t), analysis.ChartSpec{Kind: analysis.ChartBar, Column: "empty"})
	paths, err := WriteFiles(dir, specs, PNG, Options{Width: 640, Height: 280})
	require.NoError(t, err)
	require.Len(t, paths, 8)
	assert.Equal(t, filepath.Join(dir, "bar_sales.png"), paths[0])
	for _, p := range paths {
		st, err := os.Stat(p)
		require.NoError(t, err)
		if st.Size() == 0 {
			t.Fatalf("empty chart file %s", p)
		}
	}

	paths, err = WriteFiles(dir, specs[:1], SVG, Options{})
	require.NoError(t, err)
	require.Len(t, paths, 1)
	assert.Equal(t, ".svg", filepath.Ext(paths[0]))
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat(" SVG ")
	require.NoError(t, err)
	assert.Equal(t, SVG, f)
	f, err = ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, PNG, f)
	_, err = ParseFormat("gif")
	assert.Error(t, err)
}

func TestNiceAxisBoundsAndTicks(t *testing.T) {
	lo, hi := niceAxisBounds(12, 87)
	if lo > 12 || hi < 87 {
		t.Fatalf("bounds [%v,%v] do not cover data", lo, hi)
	}
	ticks := niceTicks(lo, hi, 6)
	if len(ticks) < 2 {
		t.Fatalf("expected ticks, got %d", len(ticks))
	}
	for i := 1; i < len(ticks); i++ {
		if ticks[i].Value <= ticks[i-1].Value {
			t.Fatalf("ticks not increasing: %v", ticks)
		}
	}
	assert.Nil(t, niceTicks(math.NaN(), 1, 6))

	lo, hi = zeroBasedBounds(5, 40)
	assert.Equal(t, 0.0, lo)
	assert.GreaterOrEqual(t, hi, 40.0)
	lo, hi = zeroBasedBounds(-10, -2)
	assert.LessOrEqual(t, lo, -10.0)
	assert.Equal(t, 0.0, hi)
}

func TestFormatTickAndTruncate(t *testing.T) {
	assert.Equal(t, "0", formatTick(0))
	assert.Equal(t, "1500", formatTick(1500))
	assert.Equal(t, "12.5", formatTick(12.5))
	assert.Equal(t, "0.25", formatTick(0.25))
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
	assert.Equal(t, "ab…", truncate("ab&lt;cdefgh", 5))
	assert.Equal(t, "a&lt;b…", truncate("a&lt;bcdefgh", 7))
}

func TestRender_SVGEscapesLabels(t *testing.T) {
	tbl, err := table.Decode([]byte(`[
		{"<img src=x onerror=alert(1)>":"<b>evil</b>","n":1},
		{"<img src=x onerror=alert(1)>":"ok & fine","n":2}
	]`))
	require.NoError(t, err)
	specs := analysis.Analyze(tbl, nil).Charts
	require.Len(t, specs, 4)
	for _, spec := range specs {
		var buf bytes.Buffer
		require.NoError(t, Render(&buf, spec, SVG, Options{Width: 640, Height: 360}), spec.Kind.String())
		out := buf.String()
		assert.NotContains(t, out, "<img", spec.Kind.String())
		assert.NotContains(t, out, "<b>", spec.Kind.String())
	}
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, specs[0], SVG, Options{Width: 640, Height: 360}))
	assert.Contains(t, buf.String(), "&lt;img")
	assert.Equal(t, "<img src=x onerror=alert(1)>", specs[0].GroupColumn, "caller's spec is untouched")
}

func TestColors(t *testing.T) {
	low := blueScale(0, 0, 10)
	high := blueScale(10, 0, 10)
	assert.Greater(t, int(low.R), int(high.R), "higher values are darker")
	assert.Equal(t, blueScale(5, 5, 5), high)
	assert.Equal(t, groupColor(0), groupColor(len(palette)))
}

func TestBlank(t *testing.T) {
	img := Blank(0, 0)
	assert.Equal(t, 800, img.Bounds().Dx())
}
