// Package table holds the in-memory tabular model built from a JSON API response.
//
// A Table is an ordered list of named, typed columns with a uniform row count.
// Column kinds are resolved once when the table is built and never re-inspected.
// Tables are immutable; filtering produces a View (a list of row indices) instead
// of copying or mutating column data.
package table

import (
	"fmt"
	"math"
	"strconv"
)

// Kind is the inferred type of a column.
type Kind int

const (
	KindString Kind = iota
	KindNumber
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	default:
		return "string"
	}
}

// NullKey is the canonical key of a null cell. It cannot collide with the key of a
// printable string value.
const NullKey = "\x00null"

// NullLabel is how null cells are displayed.
const NullLabel = "(null)"

// Value is a single cell. Only the field matching Kind is meaningful; Null cells
// carry their column's kind.
type Value struct {
	Kind Kind
	Null bool
	Str  string
	Num  float64
	Bool bool
}

func NullValue(k Kind) Value      { return Value{Kind: k, Null: true} }
func StringValue(s string) Value  { return Value{Kind: KindString, Str: s} }
func NumberValue(f float64) Value { return Value{Kind: KindNumber, Num: f} }
func BoolValue(b bool) Value      { return Value{Kind: KindBool, Bool: b} }

// Key returns the canonical key used for grouping, distinct lists and filter selections.
func (v Value) Key() string {
	if v.Null {
		return NullKey
	}
	switch v.Kind {
	case KindNumber:
		if v.Num == 0 {
			// -0 and 0 are one value
			return "0"
		}
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.Bool)
	default:
		return v.Str
	}
}

// String returns the display form of the value.
func (v Value) String() string {
	if v.Null {
		return NullLabel
	}
	return v.Key()
}

// Float returns the numeric payload; ok is false for nulls and non-number cells.
func (v Value) Float() (float64, bool) {
	if v.Null || v.Kind != KindNumber || math.IsNaN(v.Num) {
		return 0, false
	}
	return v.Num, true
}

// LabelForKey converts a value key back into its display label.
func LabelForKey(key string) string {
	if key == NullKey {
		return NullLabel
	}
	return key
}

// Column is a named sequence of values of one kind.
type Column struct {
	Name   string
	Kind   Kind
	Values []Value
}

// NullCount returns the number of null cells in the column.
func (c *Column) NullCount() int {
	n := 0
	for _, v := range c.Values {
		if v.Null {
			n++
		}
	}
	return n
}

// Table is an immutable ordered set of columns.
type Table struct {
	columns []Column
	index   map[string]int
	rows    int
}

// New builds a table from columns; all columns must have the same length and unique names.
func New(columns []Column) (*Table, error) {
	t := &Table{columns: columns, index: make(map[string]int, len(columns))}
	for i, c := range columns {
		if _, dup := t.index[c.Name]; dup {
			return nil, fmt.Errorf("duplicate column %q", c.Name)
		}
		t.index[c.Name] = i
		if i == 0 {
			t.rows = len(c.Values)
			continue
		}
		if len(c.Values) != t.rows {
			return nil, fmt.Errorf("column %q has %d rows, want %d", c.Name, len(c.Values), t.rows)
		}
	}
	return t, nil
}

// Empty returns a table with no columns and no rows.
func Empty() *Table {
	return &Table{index: map[string]int{}}
}

// Len returns the number of rows.
func (t *Table) Len() int { return t.rows }

// NumColumns returns the number of columns.
func (t *Table) NumColumns() int { return len(t.columns) }

// IsEmpty reports whether the table has no rows or no columns.
func (t *Table) IsEmpty() bool { return t.rows == 0 || len(t.columns) == 0 }

// ColumnNames returns column names in table order.
func (t *Table) ColumnNames() []string {
	out := make([]string, len(t.columns))
	for i, c := range t.columns {
		out[i] = c.Name
	}
	return out
}

// Column returns the named column.
func (t *Table) Column(name string) (*Column, bool) {
	i, ok := t.index[name]
	if !ok {
		return nil, false
	}
	return &t.columns[i], true
}

// ColumnAt returns the i-th column.
func (t *Table) ColumnAt(i int) *Column { return &t.columns[i] }

// Value returns the cell at row of the named column. Unknown columns yield a string null.
func (t *Table) Value(row int, name string) Value {
	c, ok := t.Column(name)
	if !ok || row < 0 || row >= len(c.Values) {
		return NullValue(KindString)
	}
	return c.Values[row]
}

// All returns a view over every row.
func (t *Table) All() *View {
	rows := make([]int, t.rows)
	for i := range rows {
		rows[i] = i
	}
	return &View{table: t, rows: rows}
}
