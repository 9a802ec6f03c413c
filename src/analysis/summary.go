package analysis

import (
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/zenriquezs/APIReader/src/table"
)

// AbsentLabel is shown for a metric with no numeric values.
const AbsentLabel = "–"

// Metric is the maximum of one numeric column over a view. OK is false when the
// column had no numeric values in the view.
type Metric struct {
	Column string
	Max    float64
	OK     bool
}

// Summarize returns one metric per numeric column, in the given order.
func Summarize(view *table.View, numeric []string) []Metric {
	out := make([]Metric, 0, len(numeric))
	for _, col := range numeric {
		m := Metric{Column: col, Max: math.Inf(-1)}
		for _, f := range view.Floats(col) {
			if f > m.Max {
				m.Max = f
			}
			m.OK = true
		}
		if !m.OK {
			m.Max = 0
		}
		out = append(out, m)
	}
	return out
}

var printer = message.NewPrinter(language.English)

// Label renders the value with thousands separators and two decimals.
func (m Metric) Label() string {
	if !m.OK {
		return AbsentLabel
	}
	return FormatNumber(m.Max)
}

// Help is the tooltip text for the metric card.
func (m Metric) Help() string { return "Maximum value of " + m.Column }

// FormatNumber formats f as "1,234.50".
func FormatNumber(f float64) string {
	return printer.Sprintf("%.2f", f)
}
