// Package export writes a dataset back out: flat CSV, WHP-exchange, spreadsheet and
// parquet files, plus the audit log. Headers use the columns' external names and
// null cells are written as -999.0.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/leapstack-labs/cruiseqc/internal/catalog"
	"github.com/leapstack-labs/cruiseqc/internal/dataset"
)

// Format is an output file format.
type Format string

// Output formats.
const (
	FormatCSV     Format = "csv"
	FormatWHP     Format = "whp"
	FormatXLSX    Format = "xlsx"
	FormatParquet Format = "parquet"
)

// App names the editing application in WHP headers.
const App = "CruiseQC"

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatCSV, FormatWHP, FormatXLSX, FormatParquet:
		return f, nil
	}
	return "", fmt.Errorf("unknown export format %q (expected csv, whp, xlsx or parquet)", s)
}

// FormatFromPath guesses the format from the file extension. Files ending in
// _hy1.csv follow the exchange naming convention.
func FormatFromPath(path string) Format {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, "_hy1.csv"):
		return FormatWHP
	case filepath.Ext(lower) == ".xlsx":
		return FormatXLSX
	case filepath.Ext(lower) == ".parquet":
		return FormatParquet
	}
	return FormatCSV
}

// DefaultColumns returns the exportable required, parameter, non-QC and flag
// columns in table order.
func DefaultColumns(ds *dataset.Dataset) []string {
	var out []string
	for _, name := range ds.ColumnsByRole(false, catalog.RoleRequired, catalog.RoleParam, catalog.RoleNonQC, catalog.RoleFlag) {
		if meta, _ := ds.Catalog.Get(name); meta.Export {
			out = append(out, name)
		}
	}
	return out
}

// Options controls an export.
type Options struct {
	// Columns to write, in order. Empty means DefaultColumns.
	Columns []string

	// Now stamps WHP headers. Defaults to time.Now.
	Now func() time.Time
}

func (o Options) now() time.Time {
	if o.Now == nil {
		return time.Now()
	}
	return o.Now()
}

// column is one output column resolved against the dataset.
type column struct {
	name      string
	header    string
	unit      string
	precision int
	col       *dataset.Column
}

func (c column) cell(i int) string {
	return c.col.Get(i).Format(c.precision)
}

func resolve(ds *dataset.Dataset, names []string) ([]column, error) {
	if len(names) == 0 {
		names = DefaultColumns(ds)
	}
	out := make([]column, 0, len(names))
	var unknown []string
	for _, name := range names {
		col, ok := ds.Table.Column(name)
		meta, known := ds.Catalog.Get(name)
		if !ok || !known {
			unknown = append(unknown, name)
			continue
		}
		header := meta.ExternalName
		if header == "" {
			header = name
		}
		out = append(out, column{
			name:      name,
			header:    header,
			unit:      meta.Unit,
			precision: meta.PrecisionOr(-1),
			col:       col,
		})
	}
	if len(unknown) > 0 {
		return nil, fmt.Errorf("%w: %s", dataset.ErrUnknownColumn, strings.Join(unknown, ", "))
	}
	return out, nil
}

func headers(cols []column) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.header
	}
	return out
}

func record(cols []column, i int) []string {
	rec := make([]string, len(cols))
	for j, c := range cols {
		rec[j] = c.cell(i)
	}
	return rec
}

// ToFile writes ds to path in format.
func ToFile(path string, format Format, ds *dataset.Dataset, opts Options) error {
	if format == FormatXLSX {
		return WriteXLSX(path, ds, opts)
	}

	f, err := os.Create(path) //nolint:gosec // G304: path is chosen by the user
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	switch format {
	case FormatWHP:
		err = WriteWHP(f, ds, opts)
	case FormatParquet:
		err = WriteParquet(f, ds, opts)
	default:
		err = WriteCSV(f, ds, opts)
	}
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(path)
		return fmt.Errorf("failed to export %s: %w", path, err)
	}
	return nil
}
