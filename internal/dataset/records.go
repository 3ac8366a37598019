package dataset

import (
	"fmt"
	"strconv"

	"github.com/leapstack-labs/cruiseqc/internal/catalog"
)

// KindForType maps a catalog data type onto a storage kind.
func KindForType(dt catalog.DataType) Kind {
	switch dt {
	case catalog.TypeInteger, catalog.TypeDate:
		return KindInt
	case catalog.TypeFloat:
		return KindFloat
	default:
		return KindString
	}
}

// Records renders the table as a header row plus one record per row. Nulls are empty.
func (t *Table) Records() [][]string {
	names := t.ColumnNames()
	out := make([][]string, 0, t.Len()+1)
	out = append(out, names)
	for i := 0; i < t.Len(); i++ {
		rec := make([]string, len(t.cols))
		for j, c := range t.cols {
			rec[j] = c.Get(i).String()
		}
		out = append(out, rec)
	}
	return out
}

// TableFromRecords parses a header plus data records into a table using kinds per
// column. Columns without an entry in kinds, or whose cells do not parse as the
// requested kind, are kept as strings. Rows receive positional placeholder ids.
func TableFromRecords(records [][]string, kinds map[string]Kind) (*Table, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("no header record")
	}
	header := records[0]
	rows := records[1:]
	ids := make([]string, len(rows))
	for i := range rows {
		ids[i] = strconv.Itoa(i)
	}
	cols := make([]*Column, len(header))
	for j, name := range header {
		raw := make([]string, len(rows))
		for i, rec := range rows {
			if j >= len(rec) {
				return nil, fmt.Errorf("record %d has %d fields, header has %d", i+1, len(rec), len(header))
			}
			raw[i] = rec[j]
		}
		cols[j] = parseColumn(name, raw, kinds[name])
	}
	return NewTableFromColumns(ids, cols)
}

func parseColumn(name string, raw []string, kind Kind) *Column {
	col := NewColumn(name, kind, len(raw))
	for i, s := range raw {
		v, err := ParseCell(s, kind)
		if err != nil {
			return parseColumn(name, raw, KindString)
		}
		col.Set(i, v)
	}
	return col
}
