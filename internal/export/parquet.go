package export

import (
	"fmt"
	"io"

	"github.com/parquet-go/parquet-go"

	"github.com/leapstack-labs/cruiseqc/internal/dataset"
)

// parquetNode maps a column kind onto an optional parquet leaf.
func parquetNode(kind dataset.Kind) parquet.Node {
	switch kind {
	case dataset.KindInt:
		return parquet.Optional(parquet.Int(64))
	case dataset.KindFloat:
		return parquet.Optional(parquet.Leaf(parquet.DoubleType))
	default:
		return parquet.Optional(parquet.String())
	}
}

// ParquetSchema builds the file schema for the selected columns. Field names are
// the external names.
func ParquetSchema(ds *dataset.Dataset, names []string) (*parquet.Schema, error) {
	cols, err := resolve(ds, names)
	if err != nil {
		return nil, err
	}
	return parquetSchema(cols)
}

func parquetSchema(cols []column) (*parquet.Schema, error) {
	group := make(parquet.Group, len(cols))
	for _, c := range cols {
		if _, dup := group[c.header]; dup {
			return nil, fmt.Errorf("duplicate output column %s", c.header)
		}
		group[c.header] = parquetNode(c.col.Kind)
	}
	return parquet.NewSchema("cruise", group), nil
}

// WriteParquet writes the selected columns as a parquet file. Nulls stay null.
func WriteParquet(w io.Writer, ds *dataset.Dataset, opts Options) error {
	cols, err := resolve(ds, opts.Columns)
	if err != nil {
		return err
	}
	schema, err := parquetSchema(cols)
	if err != nil {
		return err
	}

	index := make([]int, len(cols))
	for j, c := range cols {
		leaf, ok := schema.Lookup(c.header)
		if !ok {
			return fmt.Errorf("column %s missing from parquet schema", c.header)
		}
		index[j] = leaf.ColumnIndex
	}

	pw := parquet.NewWriter(w, schema)
	rows := make([]parquet.Row, 0, ds.Table.Len())
	for i := 0; i < ds.Table.Len(); i++ {
		row := make(parquet.Row, len(cols))
		for j, c := range cols {
			row[index[j]] = parquetValue(c.col.Get(i)).Level(0, definitionLevel(c.col.Get(i)), index[j])
		}
		rows = append(rows, row)
	}
	if _, err := pw.WriteRows(rows); err != nil {
		return fmt.Errorf("failed to write parquet rows: %w", err)
	}
	return pw.Close()
}

func definitionLevel(v dataset.Value) int {
	if v.IsNull() {
		return 0
	}
	return 1
}

func parquetValue(v dataset.Value) parquet.Value {
	switch {
	case v.IsNull():
		return parquet.NullValue()
	case v.Kind == dataset.KindInt:
		return parquet.Int64Value(v.Int)
	case v.Kind == dataset.KindFloat:
		return parquet.DoubleValue(v.Float)
	default:
		return parquet.ByteArrayValue([]byte(v.Str))
	}
}
