package loader

import (
	"math"
	"strconv"
	"strings"

	"github.com/leapstack-labs/cruiseqc/internal/catalog"
	"github.com/leapstack-labs/cruiseqc/internal/dataset"
)

// inferred is the storage decision for one raw column.
type inferred struct {
	kind      dataset.Kind
	dataType  catalog.DataType
	precision *int
}

// inferColumn decides the kind of a raw column from its text. Precision is the
// largest number of digits after the decimal point, taken before any parsing so
// trailing zeros in the source count. Numeric columns whose values are all whole
// numbers ("1", "2.0") are downcast to integers.
func inferColumn(name string, raw []string) inferred {
	switch name {
	case "DATE":
		if allMatch(raw, isIntLiteral) {
			return inferred{kind: dataset.KindInt, dataType: catalog.TypeDate, precision: catalog.Precision(0)}
		}
		return inferred{kind: dataset.KindString, dataType: catalog.TypeDate}
	case "TIME":
		return inferred{kind: dataset.KindString, dataType: catalog.TypeTime}
	}

	if allNull(raw) {
		return inferred{kind: dataset.KindFloat, dataType: catalog.TypeFloat}
	}
	if allMatch(raw, isIntegral) {
		return inferred{kind: dataset.KindInt, dataType: catalog.TypeInteger, precision: catalog.Precision(0)}
	}
	if allMatch(raw, isNumber) {
		return inferred{kind: dataset.KindFloat, dataType: catalog.TypeFloat, precision: catalog.Precision(maxDecimals(raw))}
	}
	return inferred{kind: dataset.KindString, dataType: catalog.TypeString}
}

func allNull(raw []string) bool {
	for _, s := range raw {
		if s != "" {
			return false
		}
	}
	return true
}

// allMatch applies pred to every non-null cell.
func allMatch(raw []string, pred func(string) bool) bool {
	for _, s := range raw {
		if s == "" {
			continue
		}
		if !pred(s) {
			return false
		}
	}
	return true
}

func isIntLiteral(s string) bool {
	_, err := strconv.ParseInt(s, 10, 64)
	return err == nil
}

func isNumber(s string) bool {
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}

// maxExactInt is the largest magnitude a float64 holds without losing integer precision.
const maxExactInt = 1 << 53

func isIntegral(s string) bool {
	if isIntLiteral(s) {
		return true
	}
	f, err := strconv.ParseFloat(s, 64)
	return err == nil && math.Abs(f) <= maxExactInt && f == math.Trunc(f)
}

func maxDecimals(raw []string) int {
	most := 0
	for _, s := range raw {
		if i := strings.IndexByte(s, '.'); i >= 0 {
			digits := 0
			for _, r := range s[i+1:] {
				if r < '0' || r > '9' {
					break
				}
				digits++
			}
			if digits > most {
				most = digits
			}
		}
	}
	return most
}

func buildColumn(name string, raw []string, kind dataset.Kind) *dataset.Column {
	col := dataset.NewColumn(name, kind, len(raw))
	for i, s := range raw {
		v, err := dataset.ParseCell(s, kind)
		if err != nil {
			v = dataset.Null()
		}
		col.Set(i, v)
	}
	return col
}
