package table

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	jsoniter "github.com/json-iterator/go"
)

// ErrNotArray is returned when the JSON document is not an array.
var ErrNotArray = errors.New("expected a JSON array")

type recordShape int

const (
	shapeUnknown recordShape = iota
	shapeObject
	shapeArray
	shapeScalar
)

// cell is a decoded JSON value before column kinds are known.
type cell struct {
	typ jsoniter.ValueType
	s   string
	f   float64
	b   bool
}

type columnBuilder struct {
	name  string
	cells []cell
}

// builder collects cells column-wise while records are streamed.
type builder struct {
	cols []*columnBuilder
	pos  map[string]int
	rows int
}

func (b *builder) set(name string, row int, c cell) {
	i, ok := b.pos[name]
	if !ok {
		i = len(b.cols)
		b.pos[name] = i
		b.cols = append(b.cols, &columnBuilder{name: name})
	}
	col := b.cols[i]
	for len(col.cells) < row {
		col.cells = append(col.cells, cell{typ: jsoniter.NilValue})
	}
	if len(col.cells) == row {
		col.cells = append(col.cells, c)
		return
	}
	// duplicate key within one object: last one wins
	col.cells[row] = c
}

// Decode parses a JSON array into a Table.
//
// Arrays of objects produce one column per key in first-seen order; records
// missing a key get a null. Arrays of arrays produce positional columns named
// "0", "1", ... and arrays of scalars a single column "0".
func Decode(data []byte) (*Table, error) {
	iter := jsoniter.ConfigCompatibleWithStandardLibrary.BorrowIterator(data)
	defer jsoniter.ConfigCompatibleWithStandardLibrary.ReturnIterator(iter)

	if next := iter.WhatIsNext(); next != jsoniter.ArrayValue {
		if iter.Error != nil && !errors.Is(iter.Error, io.EOF) {
			return nil, fmt.Errorf("decode: %w", iter.Error)
		}
		return nil, ErrNotArray
	}
	b := &builder{pos: map[string]int{}}
	shape := shapeUnknown
	for iter.ReadArray() {
		row := b.rows
		var s recordShape
		switch iter.WhatIsNext() {
		case jsoniter.ObjectValue:
			s = shapeObject
		case jsoniter.ArrayValue:
			s = shapeArray
		default:
			s = shapeScalar
		}
		if shape == shapeUnknown {
			shape = s
		} else if s != shape {
			return nil, fmt.Errorf("decode: record %d has a different shape than the first record", row)
		}
		switch s {
		case shapeObject:
			iter.ReadObjectCB(func(it *jsoniter.Iterator, field string) bool {
				b.set(field, row, readCell(it))
				return it.Error == nil
			})
		case shapeArray:
			idx := 0
			iter.ReadArrayCB(func(it *jsoniter.Iterator) bool {
				b.set(strconv.Itoa(idx), row, readCell(it))
				idx++
				return it.Error == nil
			})
		default:
			b.set("0", row, readCell(iter))
		}
		if iter.Error != nil {
			return nil, fmt.Errorf("decode record %d: %w", row, iter.Error)
		}
		b.rows++
	}
	if iter.Error != nil && !errors.Is(iter.Error, io.EOF) {
		return nil, fmt.Errorf("decode: %w", iter.Error)
	}
	if next := iter.WhatIsNext(); next != jsoniter.InvalidValue {
		return nil, errors.New("decode: unexpected data after the top-level array")
	}
	return b.table()
}

func readCell(it *jsoniter.Iterator) cell {
	switch t := it.WhatIsNext(); t {
	case jsoniter.StringValue:
		return cell{typ: t, s: it.ReadString()}
	case jsoniter.NumberValue:
		n := it.ReadNumber()
		f, err := strconv.ParseFloat(string(n), 64)
		if err != nil {
			return cell{typ: jsoniter.StringValue, s: string(n)}
		}
		return cell{typ: t, f: f}
	case jsoniter.BoolValue:
		return cell{typ: t, b: it.ReadBool()}
	case jsoniter.NilValue:
		it.ReadNil()
		return cell{typ: t}
	default:
		raw := it.SkipAndReturnBytes()
		var buf bytes.Buffer
		if err := json.Compact(&buf, raw); err != nil {
			return cell{typ: t, s: string(raw)}
		}
		return cell{typ: t, s: buf.String()}
	}
}

func (b *builder) table() (*Table, error) {
	cols := make([]Column, 0, len(b.cols))
	for _, cb := range b.cols {
		for len(cb.cells) < b.rows {
			cb.cells = append(cb.cells, cell{typ: jsoniter.NilValue})
		}
		cols = append(cols, buildColumn(cb.name, cb.cells))
	}
	if len(cols) == 0 {
		t := Empty()
		t.rows = b.rows
		return t, nil
	}
	return New(cols)
}

// buildColumn infers the column kind: all numbers -> number, all booleans -> bool,
// anything else (strings, mixed, nested, all null) -> string.
func buildColumn(name string, cells []cell) Column {
	var nums, bools, others int
	for _, c := range cells {
		switch c.typ {
		case jsoniter.NilValue:
		case jsoniter.NumberValue:
			nums++
		case jsoniter.BoolValue:
			bools++
		default:
			others++
		}
	}
	kind := KindString
	switch {
	case nums > 0 && bools == 0 && others == 0:
		kind = KindNumber
	case bools > 0 && nums == 0 && others == 0:
		kind = KindBool
	}
	values := make([]Value, len(cells))
	for i, c := range cells {
		if c.typ == jsoniter.NilValue {
			values[i] = NullValue(kind)
			continue
		}
		switch kind {
		case KindNumber:
			values[i] = NumberValue(c.f)
		case KindBool:
			values[i] = BoolValue(c.b)
		default:
			values[i] = StringValue(cellText(c))
		}
	}
	return Column{Name: name, Kind: kind, Values: values}
}

func cellText(c cell) string {
	switch c.typ {
	case jsoniter.NumberValue:
		return strconv.FormatFloat(c.f, 'f', -1, 64)
	case jsoniter.BoolValue:
		return strconv.FormatBool(c.b)
	default:
		return c.s
	}
}
