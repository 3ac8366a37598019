package dataset

import (
	"fmt"
)

// Table is an ordered set of rows keyed by HashId with named, typed columns.
type Table struct {
	ids    []string
	index  map[string]int
	cols   []*Column
	byName map[string]*Column
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{
		index:  make(map[string]int),
		byName: make(map[string]*Column),
	}
}

// NewTableFromColumns assembles a table from row ids and equal-length columns.
func NewTableFromColumns(ids []string, cols []*Column) (*Table, error) {
	t := NewTable()
	if err := t.SetIDs(ids); err != nil {
		return nil, err
	}
	for _, c := range cols {
		if err := t.AddColumn(c); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.ids) }

// IDs returns a copy of the row ids in table order.
func (t *Table) IDs() []string { return append([]string(nil), t.ids...) }

// SetIDs replaces the row keys. The count must match existing columns and ids must be unique.
func (t *Table) SetIDs(ids []string) error {
	if len(t.cols) > 0 && len(ids) != t.cols[0].Len() {
		return fmt.Errorf("table has %d rows, got %d ids", t.cols[0].Len(), len(ids))
	}
	index := make(map[string]int, len(ids))
	for i, id := range ids {
		if _, dup := index[id]; dup {
			return fmt.Errorf("duplicate row id %q", id)
		}
		index[id] = i
	}
	t.ids = append([]string(nil), ids...)
	t.index = index
	return nil
}

// RowIndex returns the position of a row id.
func (t *Table) RowIndex(id string) (int, bool) {
	i, ok := t.index[id]
	return i, ok
}

// HasRow reports whether id is present.
func (t *Table) HasRow(id string) bool {
	_, ok := t.index[id]
	return ok
}

// ColumnNames returns the column names in physical order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.cols))
	for i, c := range t.cols {
		names[i] = c.Name
	}
	return names
}

// HasColumn reports whether name is a column.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.byName[name]
	return ok
}

// Column returns the named column.
func (t *Table) Column(name string) (*Column, bool) {
	c, ok := t.byName[name]
	return c, ok
}

// AddColumn appends a column at the end of the physical order.
func (t *Table) AddColumn(c *Column) error {
	if _, exists := t.byName[c.Name]; exists {
		return fmt.Errorf("column %q already exists", c.Name)
	}
	if c.Len() != len(t.ids) {
		return fmt.Errorf("column %q has %d rows, table has %d", c.Name, c.Len(), len(t.ids))
	}
	t.cols = append(t.cols, c)
	t.byName[c.Name] = c
	return nil
}

// RenameColumn renames a column in place.
func (t *Table) RenameColumn(from, to string) error {
	c, ok := t.byName[from]
	if !ok {
		return fmt.Errorf("column %q not found", from)
	}
	if _, exists := t.byName[to]; exists {
		return fmt.Errorf("column %q already exists", to)
	}
	delete(t.byName, from)
	c.Name = to
	t.byName[to] = c
	return nil
}

// ReplaceColumn swaps the column named c.Name for c, keeping its position.
func (t *Table) ReplaceColumn(c *Column) error {
	if _, ok := t.byName[c.Name]; !ok {
		return fmt.Errorf("column %q does not exist", c.Name)
	}
	if c.Len() != t.Len() {
		return fmt.Errorf("column %q has %d rows, table has %d", c.Name, c.Len(), t.Len())
	}
	for i, old := range t.cols {
		if old.Name == c.Name {
			t.cols[i] = c
			break
		}
	}
	t.byName[c.Name] = c
	return nil
}

// DropColumn removes a column. Unknown names are ignored.
func (t *Table) DropColumn(name string) {
	if _, ok := t.byName[name]; !ok {
		return
	}
	delete(t.byName, name)
	for i, c := range t.cols {
		if c.Name == name {
			t.cols = append(t.cols[:i], t.cols[i+1:]...)
			return
		}
	}
}

// AppendRow adds a row of nulls keyed by id.
func (t *Table) AppendRow(id string) error {
	if _, dup := t.index[id]; dup {
		return fmt.Errorf("duplicate row id %q", id)
	}
	t.index[id] = len(t.ids)
	t.ids = append(t.ids, id)
	for _, c := range t.cols {
		c.Append(Null())
	}
	return nil
}

// DropRow removes a row by id and reports whether it existed.
func (t *Table) DropRow(id string) bool {
	i, ok := t.index[id]
	if !ok {
		return false
	}
	t.ids = append(t.ids[:i], t.ids[i+1:]...)
	for _, c := range t.cols {
		c.remove(i)
	}
	delete(t.index, id)
	for j := i; j < len(t.ids); j++ {
		t.index[t.ids[j]] = j
	}
	return true
}

// Get returns the cell at (id, column).
func (t *Table) Get(id, column string) (Value, bool) {
	i, ok := t.index[id]
	if !ok {
		return Null(), false
	}
	c, ok := t.byName[column]
	if !ok {
		return Null(), false
	}
	return c.Get(i), true
}

// Set stores a cell at (id, column).
func (t *Table) Set(id, column string, v Value) error {
	i, ok := t.index[id]
	if !ok {
		return fmt.Errorf("row %q not found", id)
	}
	c, ok := t.byName[column]
	if !ok {
		return fmt.Errorf("column %q not found", column)
	}
	c.Set(i, v)
	return nil
}

// AllNull reports whether the named column is entirely null. Unknown columns count as null.
func (t *Table) AllNull(name string) bool {
	c, ok := t.byName[name]
	if !ok {
		return true
	}
	return c.AllNull()
}

// Clone returns a deep copy.
func (t *Table) Clone() *Table {
	out := NewTable()
	out.ids = append([]string(nil), t.ids...)
	for id, i := range t.index {
		out.index[id] = i
	}
	for _, c := range t.cols {
		cc := c.Clone()
		out.cols = append(out.cols, cc)
		out.byName[cc.Name] = cc
	}
	return out
}
