package loader

import (
	"encoding/csv"
	"strconv"
	"strings"

	"github.com/leapstack-labs/cruiseqc/internal/dataset"
)

// Literal markers of the WHP-exchange format.
const (
	WHPHeader  = "BOTTLE"
	WHPEndData = "END_DATA"
)

// DetectFormat reports whether raw is a WHP-exchange file. Trailing blank lines
// are ignored; the end marker may then be followed by one extra line.
func DetectFormat(raw string) dataset.Format {
	if !strings.HasPrefix(raw, WHPHeader) {
		return dataset.FormatCSV
	}
	lines := strings.Split(strings.TrimRight(raw, "\r\n \t"), "\n")
	for _, back := range []int{1, 2} {
		if i := len(lines) - back; i >= 0 && strings.HasPrefix(strings.TrimSpace(lines[i]), WHPEndData) {
			return dataset.FormatWHP
		}
	}
	return dataset.FormatCSV
}

// rawFile is a parsed file before any column handling. Line numbers are 1-based
// positions in the source file.
type rawFile struct {
	format    dataset.Format
	firstLine string
	metadata  []string
	header    []string
	units     []string
	rows      [][]string
	rowLines  []int
}

func (l *Loader) parseRaw(raw string) (*rawFile, error) {
	rf := &rawFile{format: DetectFormat(raw)}
	lines := strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n")

	headerLine := 0
scan:
	for n, line := range lines {
		lineNo := n + 1
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "":
			continue
		case n == 0 && rf.format == dataset.FormatWHP:
			rf.firstLine = trimmed
			continue
		case strings.HasPrefix(trimmed, "#"):
			rf.metadata = append(rf.metadata, strings.TrimPrefix(strings.TrimPrefix(trimmed, "#"), " "))
			continue
		case rf.format == dataset.FormatWHP && strings.HasPrefix(trimmed, WHPEndData):
			break scan
		}

		fields, err := splitRecord(line)
		if err != nil {
			return nil, l.invalid(nil, []int{lineNo}, "malformed line %d: %v", lineNo, err)
		}

		if rf.header == nil {
			for i, f := range fields {
				if f == "" {
					return nil, l.invalid(nil, []int{lineNo},
						"Some header column name is missing: FILE ROW = %d | COL = %d", lineNo, i+1)
				}
			}
			rf.header = fields
			headerLine = lineNo
			continue
		}

		if len(fields) != len(rf.header) {
			return nil, l.invalid(nil, []int{lineNo},
				"There is an invalid number of fields (%d) in the row: %d. The number of header columns fields is: %d",
				len(fields), lineNo, len(rf.header))
		}
		if rf.units == nil && len(rf.rows) == 0 && lineNo == headerLine+1 && l.isUnitsRow(rf.format, fields) {
			rf.units = fields
			continue
		}
		rf.rows = append(rf.rows, fields)
		rf.rowLines = append(rf.rowLines, lineNo)
	}
	if headerLine == 0 {
		return nil, l.invalid(nil, nil, "the file has no header line")
	}
	return rf, nil
}

// splitRecord parses one comma-separated line and strips whitespace from every cell.
func splitRecord(line string) ([]string, error) {
	r := csv.NewReader(strings.NewReader(line))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	fields, err := r.Read()
	if err != nil {
		return nil, err
	}
	for i, f := range fields {
		fields[i] = strings.Join(strings.Fields(f), "")
	}
	return fields, nil
}

// isUnitsRow reports whether every non-empty cell is non-numeric. In WHP files an
// entirely empty line after the header is a units row as well.
func (l *Loader) isUnitsRow(format dataset.Format, fields []string) bool {
	seen := false
	for _, f := range fields {
		if f == "" {
			continue
		}
		if _, err := strconv.ParseFloat(f, 64); err == nil {
			return false
		}
		seen = true
	}
	return seen || format == dataset.FormatWHP
}
