package table

// View is an ordered subset of a table's rows. Views never reorder rows; they only
// drop them.
type View struct {
	table *Table
	rows  []int
}

// NewView returns a view over the given row indices of t. Indices are used as-is.
func NewView(t *Table, rows []int) *View {
	return &View{table: t, rows: rows}
}

// Table returns the underlying table.
func (v *View) Table() *Table { return v.table }

// Len returns the number of rows in the view.
func (v *View) Len() int { return len(v.rows) }

// Rows returns a copy of the row indices in view order.
func (v *View) Rows() []int {
	out := make([]int, len(v.rows))
	copy(out, v.rows)
	return out
}

// Row returns the table row index of the i-th view row.
func (v *View) Row(i int) int { return v.rows[i] }

// Value returns the cell of the i-th view row in the named column.
func (v *View) Value(i int, column string) Value {
	return v.table.Value(v.rows[i], column)
}

// Values returns the named column's cells in view order.
func (v *View) Values(column string) ([]Value, bool) {
	c, ok := v.table.Column(column)
	if !ok {
		return nil, false
	}
	out := make([]Value, len(v.rows))
	for i, r := range v.rows {
		out[i] = c.Values[r]
	}
	return out, true
}

// Floats returns the numeric cells of the named column in view order, skipping nulls
// and non-number cells.
func (v *View) Floats(column string) []float64 {
	c, ok := v.table.Column(column)
	if !ok {
		return nil
	}
	out := make([]float64, 0, len(v.rows))
	for _, r := range v.rows {
		if f, ok := c.Values[r].Float(); ok {
			out = append(out, f)
		}
	}
	return out
}

// Distinct returns the distinct values of the named column in first-seen order.
func (v *View) Distinct(column string) []Value {
	c, ok := v.table.Column(column)
	if !ok {
		return nil
	}
	seen := map[string]struct{}{}
	var out []Value
	for _, r := range v.rows {
		val := c.Values[r]
		k := val.Key()
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, val)
	}
	return out
}

// Where returns a new view holding the rows for which keep returns true.
func (v *View) Where(keep func(row int) bool) *View {
	out := make([]int, 0, len(v.rows))
	for _, r := range v.rows {
		if keep(r) {
			out = append(out, r)
		}
	}
	return &View{table: v.table, rows: out}
}

// Equal reports whether both views cover the same table rows in the same order.
func (v *View) Equal(o *View) bool {
	if v.table != o.table || len(v.rows) != len(o.rows) {
		return false
	}
	for i := range v.rows {
		if v.rows[i] != o.rows[i] {
			return false
		}
	}
	return true
}
