package analysis

import "github.com/zenriquezs/APIReader/src/table"

// Classification partitions column names into categorical and numeric sets, both in
// table column order.
type Classification struct {
	Categorical []string
	Numeric     []string
	// Fallback flags report that a set was filled by the fallback rule rather than by
	// column kind.
	CategoricalFallback bool
	NumericFallback     bool
}

// Classify assigns String columns to the categorical set and Number columns to the
// numeric set. Bool columns go nowhere. When a set ends up empty it falls back to the
// first column (categorical) or the second column (numeric), so a fallback column can
// appear in both sets.
func Classify(t *table.Table) Classification {
	var c Classification
	if t == nil || t.NumColumns() == 0 {
		return c
	}
	for i := 0; i < t.NumColumns(); i++ {
		col := t.ColumnAt(i)
		switch col.Kind {
		case table.KindString:
			c.Categorical = append(c.Categorical, col.Name)
		case table.KindNumber:
			c.Numeric = append(c.Numeric, col.Name)
		}
	}
	if len(c.Categorical) == 0 {
		c.Categorical = []string{t.ColumnAt(0).Name}
		c.CategoricalFallback = true
	}
	if len(c.Numeric) == 0 && t.NumColumns() > 1 {
		c.Numeric = []string{t.ColumnAt(1).Name}
		c.NumericFallback = true
	}
	return c
}
