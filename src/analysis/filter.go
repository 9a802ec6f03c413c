package analysis

import "github.com/zenriquezs/APIReader/src/table"

// Selection maps a categorical column to the value keys (table.Value.Key) allowed for
// it. A column missing from the map is unconstrained; a column mapped to an empty
// slice matches nothing.
type Selection map[string][]string

// Clone returns a deep copy.
func (s Selection) Clone() Selection {
	if s == nil {
		return nil
	}
	out := make(Selection, len(s))
	for k, v := range s {
		out[k] = append([]string{}, v...)
	}
	return out
}

// DefaultSelection selects every distinct value of each categorical column, in
// first-seen order.
func DefaultSelection(t *table.Table, categorical []string) Selection {
	sel := Selection{}
	all := t.All()
	for _, col := range categorical {
		if _, ok := t.Column(col); !ok {
			continue
		}
		keys := []string{}
		for _, v := range all.Distinct(col) {
			keys = append(keys, v.Key())
		}
		sel[col] = keys
	}
	return sel
}

// Filter keeps the rows of view whose value in every selected column is among the
// selected keys. Row order is preserved and the input view is not modified.
func Filter(view *table.View, sel Selection) *table.View {
	t := view.Table()
	type constraint struct {
		col     *table.Column
		allowed map[string]struct{}
	}
	var cs []constraint
	for name, keys := range sel {
		col, ok := t.Column(name)
		if !ok {
			continue
		}
		allowed := make(map[string]struct{}, len(keys))
		for _, k := range keys {
			allowed[k] = struct{}{}
		}
		cs = append(cs, constraint{col: col, allowed: allowed})
	}
	return view.Where(func(row int) bool {
		for _, c := range cs {
			if _, ok := c.allowed[c.col.Values[row].Key()]; !ok {
				return false
			}
		}
		return true
	})
}

// Options returns the selectable values of each categorical column over the full
// table, in first-seen order.
func Options(t *table.Table, categorical []string) map[string][]table.Value {
	out := make(map[string][]table.Value, len(categorical))
	all := t.All()
	for _, col := range categorical {
		if _, ok := t.Column(col); ok {
			out[col] = all.Distinct(col)
		}
	}
	return out
}
