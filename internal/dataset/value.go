package dataset

import (
	"math"
	"regexp"
	"strconv"
)

// Kind is the storage type of a column or cell.
type Kind uint8

// Storage kinds.
const (
	KindString Kind = iota
	KindInt
	KindFloat
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "integer"
	case KindFloat:
		return "float"
	default:
		return "string"
	}
}

// Epsilon is the machine epsilon for float64, used as the relative comparison tolerance.
const Epsilon = 0x1p-52

// NullSentinel is written in place of null values on export.
const NullSentinel = "-999.0"

var sentinelRe = regexp.MustCompile(`^-999[9]?[\.0]*?$`)

// IsNullSentinel reports whether a raw cell encodes a missing value.
func IsNullSentinel(s string) bool {
	return s == "" || sentinelRe.MatchString(s)
}

// Value is a single typed cell. The zero Value is null.
type Value struct {
	Kind  Kind
	Str   string
	Int   int64
	Float float64
	Valid bool
}

// Null returns the null value.
func Null() Value { return Value{} }

// String builds a string value. The empty string is null.
func String(s string) Value {
	if s == "" {
		return Value{}
	}
	return Value{Kind: KindString, Str: s, Valid: true}
}

// Int builds an integer value.
func Int(i int64) Value { return Value{Kind: KindInt, Int: i, Valid: true} }

// Float builds a float value. NaN is null.
func Float(f float64) Value {
	if math.IsNaN(f) {
		return Value{Kind: KindFloat}
	}
	return Value{Kind: KindFloat, Float: f, Valid: true}
}

// IsNull reports whether the value is missing.
func (v Value) IsNull() bool { return !v.Valid }

// Float64 returns the numeric value of v. Null and non-numeric strings report false.
func (v Value) Float64() (float64, bool) {
	if !v.Valid {
		return math.NaN(), false
	}
	switch v.Kind {
	case KindInt:
		return float64(v.Int), true
	case KindFloat:
		return v.Float, true
	default:
		f, err := strconv.ParseFloat(v.Str, 64)
		if err != nil {
			return math.NaN(), false
		}
		return f, true
	}
}

// String returns the canonical text form. Floats use the shortest representation
// so that 1.50 and 1.5 render identically.
func (v Value) String() string {
	if !v.Valid {
		return ""
	}
	switch v.Kind {
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindFloat:
		return strconv.FormatFloat(v.Float, 'f', -1, 64)
	default:
		return v.Str
	}
}

// Format renders v for export with the given decimal precision (negative for shortest).
// Null renders as NullSentinel.
func (v Value) Format(precision int) string {
	if !v.Valid {
		return NullSentinel
	}
	if v.Kind == KindFloat && precision >= 0 {
		return strconv.FormatFloat(v.Float, 'f', precision, 64)
	}
	return v.String()
}

// Equal compares two cells: strings by text, integers exactly, floats with a relative
// tolerance of Epsilon. Two nulls are equal, null and non-null are not.
func Equal(a, b Value) bool {
	if !a.Valid || !b.Valid {
		return !a.Valid && !b.Valid
	}
	if a.Kind == KindString || b.Kind == KindString {
		return a.String() == b.String()
	}
	if a.Kind == KindInt && b.Kind == KindInt {
		return a.Int == b.Int
	}
	x, _ := a.Float64()
	y, _ := b.Float64()
	return IsClose(x, y)
}

// IsClose reports whether |a-b| <= Epsilon*max(1,|b|).
func IsClose(a, b float64) bool {
	if a == b {
		return true
	}
	if math.IsNaN(a) || math.IsNaN(b) {
		return math.IsNaN(a) && math.IsNaN(b)
	}
	return math.Abs(a-b) <= Epsilon*math.Max(1, math.Abs(b))
}

// ParseCell converts a raw cell into a value of the requested kind. Empty cells and
// -999 style sentinels are null.
func ParseCell(raw string, kind Kind) (Value, error) {
	if raw == "" || IsNullSentinel(raw) {
		return Null(), nil
	}
	switch kind {
	case KindInt:
		i, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			f, ferr := strconv.ParseFloat(raw, 64)
			if ferr != nil || f != math.Trunc(f) {
				return Null(), err
			}
			return Int(int64(f)), nil
		}
		return Int(i), nil
	case KindFloat:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Null(), err
		}
		return Float(f), nil
	default:
		return String(raw), nil
	}
}
