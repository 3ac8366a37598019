package dataset

import (
	"math"
	"strconv"
)

// Column is a named, typed vector of cells.
type Column struct {
	Name  string
	Kind  Kind
	cells []Value
}

// NewColumn creates a column of n null cells.
func NewColumn(name string, kind Kind, n int) *Column {
	return &Column{Name: name, Kind: kind, cells: make([]Value, n)}
}

// NewFilledColumn creates a column of n cells set to v.
func NewFilledColumn(name string, kind Kind, n int, v Value) *Column {
	c := NewColumn(name, kind, n)
	for i := range c.cells {
		c.Set(i, v)
	}
	return c
}

// NewFloatColumn builds a float column from raw values; NaN becomes null.
func NewFloatColumn(name string, values []float64) *Column {
	c := NewColumn(name, KindFloat, len(values))
	for i, f := range values {
		c.cells[i] = Float(f)
	}
	return c
}

// Len returns the number of cells.
func (c *Column) Len() int { return len(c.cells) }

// Get returns the cell at row i.
func (c *Column) Get(i int) Value { return c.cells[i] }

// Set stores v at row i, coercing it to the column kind. Integer columns are
// promoted to float when given a fractional value; float columns are promoted to
// string when given text that is not numeric.
func (c *Column) Set(i int, v Value) {
	if !v.Valid {
		c.cells[i] = Value{Kind: c.Kind}
		return
	}
	switch c.Kind {
	case KindString:
		c.cells[i] = String(v.String())
	case KindInt:
		switch v.Kind {
		case KindInt:
			c.cells[i] = v
			return
		case KindFloat:
			if v.Float == math.Trunc(v.Float) && !math.IsInf(v.Float, 0) {
				c.cells[i] = Int(int64(v.Float))
				return
			}
		case KindString:
			if n, err := strconv.ParseInt(v.Str, 10, 64); err == nil {
				c.cells[i] = Int(n)
				return
			}
		}
		c.promote(KindFloat)
		c.Set(i, v)
	case KindFloat:
		if f, ok := v.Float64(); ok {
			c.cells[i] = Float(f)
			return
		}
		c.promote(KindString)
		c.Set(i, v)
	}
}

// Append adds a cell at the end.
func (c *Column) Append(v Value) {
	c.cells = append(c.cells, Value{Kind: c.Kind})
	c.Set(len(c.cells)-1, v)
}

// Float64s returns the column as floats with NaN for nulls. ok is false for
// string columns holding non-numeric text.
func (c *Column) Float64s() ([]float64, bool) {
	out := make([]float64, len(c.cells))
	for i, v := range c.cells {
		if !v.Valid {
			out[i] = math.NaN()
			continue
		}
		f, ok := v.Float64()
		if !ok {
			return nil, false
		}
		out[i] = f
	}
	return out, true
}

// AllNull reports whether every cell is null.
func (c *Column) AllNull() bool {
	for _, v := range c.cells {
		if v.Valid {
			return false
		}
	}
	return true
}

// AllEqual reports whether every cell equals v.
func (c *Column) AllEqual(v Value) bool {
	for _, cell := range c.cells {
		if !Equal(cell, v) {
			return false
		}
	}
	return len(c.cells) > 0
}

// Clone returns a deep copy.
func (c *Column) Clone() *Column {
	return &Column{Name: c.Name, Kind: c.Kind, cells: append([]Value(nil), c.cells...)}
}

func (c *Column) remove(i int) {
	c.cells = append(c.cells[:i], c.cells[i+1:]...)
}

func (c *Column) promote(kind Kind) {
	old := c.cells
	c.Kind = kind
	c.cells = make([]Value, len(old))
	for i, v := range old {
		if !v.Valid {
			c.cells[i] = Value{Kind: kind}
			continue
		}
		switch kind {
		case KindFloat:
			f, _ := v.Float64()
			c.cells[i] = Float(f)
		default:
			c.cells[i] = String(v.String())
		}
	}
}
