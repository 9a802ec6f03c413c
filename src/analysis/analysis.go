// Package analysis turns a table into the dashboard's derived data: the column
// classification, filtered views, per-column maxima and chart specifications.
//
// Everything here is pure. Functions take a *table.View (or *table.Table) and
// return new values; nothing is cached between calls.
package analysis

import (
	"time"

	"github.com/zenriquezs/APIReader/src/logging"
	"github.com/zenriquezs/APIReader/src/table"
)

// Analysis bundles the derived data for one pipeline run.
type Analysis struct {
	Classification Classification
	Selection      Selection
	View           *table.View
	Metrics        []Metric
	Charts         []ChartSpec
}

// Analyze classifies t, filters it with sel and derives metrics and charts from the
// filtered view. A nil selection keeps every row.
func Analyze(t *table.Table, sel Selection) Analysis {
	defer logging.TimeTrack(time.Now(), "analyze")
	cls := Classify(t)
	if sel == nil {
		sel = DefaultSelection(t, cls.Categorical)
	}
	view := Filter(t.All(), sel)
	return Analysis{
		Classification: cls,
		Selection:      sel,
		View:           view,
		Metrics:        Summarize(view, cls.Numeric),
		Charts:         BuildCharts(view, cls.Categorical, cls.Numeric),
	}
}
