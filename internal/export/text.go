package export

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/leapstack-labs/cruiseqc/internal/dataset"
)

// WriteCSV writes the selected columns as a flat CSV file.
func WriteCSV(w io.Writer, ds *dataset.Dataset, opts Options) error {
	cols, err := resolve(ds, opts.Columns)
	if err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(headers(cols)); err != nil {
		return err
	}
	for i := 0; i < ds.Table.Len(); i++ {
		if err := cw.Write(record(cols, i)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

var nonWord = regexp.MustCompile(`\W+`)

// WHPFirstLine returns the format marker line for ds. Exchange sources keep their
// original line.
func WHPFirstLine(ds *dataset.Dataset, opts Options) string {
	if ds.Source.Format == dataset.FormatWHP && ds.Source.FirstLine != "" {
		return ds.Source.FirstLine
	}
	return fmt.Sprintf("BOTTLE,%s%s", opts.now().Format("20060102"), strings.ToUpper(nonWord.ReplaceAllString(App, "")))
}

// WriteWHP writes the selected columns as a WHP-exchange file: marker line, an
// edit stamp, the source metadata, header, units, data and END_DATA.
func WriteWHP(w io.Writer, ds *dataset.Dataset, opts Options) error {
	cols, err := resolve(ds, opts.Columns)
	if err != nil {
		return err
	}

	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, WHPFirstLine(ds, opts))
	fmt.Fprintf(bw, "# %s Edited by %s\n", opts.now().Format("2006-01-02"), App)
	for _, line := range ds.Source.Metadata {
		fmt.Fprintf(bw, "# %s\n", line)
	}

	cw := csv.NewWriter(bw)
	units := make([]string, len(cols))
	for i, c := range cols {
		units[i] = c.unit
	}
	if err := cw.Write(headers(cols)); err != nil {
		return err
	}
	if err := cw.Write(units); err != nil {
		return err
	}
	for i := 0; i < ds.Table.Len(); i++ {
		if err := cw.Write(record(cols, i)); err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	fmt.Fprintln(bw, "END_DATA")
	return bw.Flush()
}

// WriteMoves writes the audit log as CSV.
func WriteMoves(w io.Writer, moves []dataset.Move) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(dataset.MovesHeader); err != nil {
		return err
	}
	for _, m := range moves {
		if err := cw.Write(m.Record()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
