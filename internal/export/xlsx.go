package export

import (
	"fmt"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/leapstack-labs/cruiseqc/internal/dataset"
)

// Sheet is the worksheet data is written to.
const Sheet = "Sheet1"

// WriteXLSX writes the selected columns to a spreadsheet. Numbers are stored as
// numbers, nulls as -999.0.
func WriteXLSX(path string, ds *dataset.Dataset, opts Options) error {
	cols, err := resolve(ds, opts.Columns)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if idx, err := f.GetSheetIndex(Sheet); err != nil || idx == -1 {
		idx, err := f.NewSheet(Sheet)
		if err != nil {
			return err
		}
		f.SetActiveSheet(idx)
	}

	for j, c := range cols {
		cell, _ := excelize.CoordinatesToCellName(j+1, 1)
		if err := f.SetCellValue(Sheet, cell, c.header); err != nil {
			return err
		}
	}
	for i := 0; i < ds.Table.Len(); i++ {
		for j, c := range cols {
			cell, _ := excelize.CoordinatesToCellName(j+1, i+2)
			if err := f.SetCellValue(Sheet, cell, sheetValue(c, i)); err != nil {
				return err
			}
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	return nil
}

func sheetValue(c column, i int) any {
	v := c.col.Get(i)
	switch {
	case v.IsNull():
		return -999.0
	case v.Kind == dataset.KindInt:
		return v.Int
	case v.Kind == dataset.KindFloat:
		f, err := strconv.ParseFloat(v.Format(c.precision), 64)
		if err != nil {
			return v.Float
		}
		return f
	default:
		return v.Str
	}
}
